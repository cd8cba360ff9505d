// Package store defines storage interfaces for persisting and retrieving
// curated bar series and backtest results.
package store

import (
	"context"
	"time"

	"fxlab/internal/domain"
)

// BarStore persists and retrieves OHLCV bar series. A series is identified
// by an (instrument, period) pair, e.g. ("EURUSD", "m15").
type BarStore interface {
	// WriteBars persists a batch of bars into the series for
	// (instrument, period), merging with any bars already stored.
	WriteBars(ctx context.Context, instrument, period string, bars []domain.Bar) error

	// ReadBars returns the bars of a series ordered by timestamp. Zero
	// start/end times leave the corresponding bound open.
	ReadBars(ctx context.Context, instrument, period string, start, end time.Time) ([]domain.Bar, error)

	// ListInstruments returns all instruments with at least one stored series.
	ListInstruments(ctx context.Context) ([]string, error)
}

// ResultStore persists completed backtest results and their trades.
type ResultStore interface {
	// SaveResult inserts a result with all of its trades and returns the
	// assigned result ID.
	SaveResult(ctx context.Context, result *domain.BacktestResult) (int64, error)

	// ListResults returns the most recent result summaries for a strategy,
	// newest first, up to limit. The summaries carry no trade lists.
	ListResults(ctx context.Context, strategyID string, limit int) ([]domain.BacktestResult, error)

	// GetTrades returns the trades recorded for a stored result.
	GetTrades(ctx context.Context, resultID int64) ([]domain.BacktestTrade, error)
}
