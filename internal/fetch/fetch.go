// Package fetch backfills bar series from the Alpaca market-data API into
// the local bar store.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"fxlab/internal/domain"
	"fxlab/internal/store"
	"fxlab/internal/util"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run starts the data gathering process and blocks until it finishes or
	// ctx is cancelled.
	Run(ctx context.Context) error
}

var _ Gatherer = (*BarGatherer)(nil)

// BarGatherer fetches historical bars for a fixed list of instruments and
// merges them into the bar store. Runs are idempotent: the store dedupes on
// timestamp, so re-fetching an overlapping range is harmless.
type BarGatherer struct {
	client      *marketdata.Client
	store       store.BarStore
	instruments []string
	period      string
	timeframe   marketdata.TimeFrame
	start       time.Time
	limiter     *util.RateLimiter
	cal         *util.FXCalendar
	log         *slog.Logger
}

// NewBarGatherer creates a BarGatherer for the given instruments and bar
// period ("m1", "m15", "h1", "d1").
func NewBarGatherer(apiKey, apiSecret, dataURL string, s store.BarStore, instruments []string, period string, start time.Time, ratePerMin int) (*BarGatherer, error) {
	tf, err := timeframeFor(period)
	if err != nil {
		return nil, err
	}
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if ratePerMin <= 0 {
		ratePerMin = 200
	}

	return &BarGatherer{
		client:      marketdata.NewClient(opts),
		store:       s,
		instruments: instruments,
		period:      period,
		timeframe:   tf,
		start:       start,
		limiter:     util.NewRateLimiter(ratePerMin, 5),
		cal:         util.NewFXCalendar(),
		log:         slog.Default().With("gatherer", "alpaca-bars"),
	}, nil
}

// Name returns the gatherer identifier.
func (g *BarGatherer) Name() string { return "alpaca-bars" }

// Run fetches each instrument in turn, retrying transient API failures, and
// writes the resulting bars to the store. A failed instrument is logged and
// skipped so the rest of the list still completes.
func (g *BarGatherer) Run(ctx context.Context) error {
	end := g.endTime(time.Now().UTC())
	runStart := time.Now()

	for _, inst := range g.instruments {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, 3, time.Second, func() error {
			var ferr error
			bars, ferr = g.fetchBars(ctx, inst, g.start, end)
			return ferr
		})
		if err != nil {
			g.log.Error("fetch failed", "instrument", inst, "err", err)
			continue
		}
		if len(bars) == 0 {
			g.log.Warn("no bars returned", "instrument", inst)
			continue
		}

		if err := g.store.WriteBars(ctx, inst, g.period, bars); err != nil {
			return fmt.Errorf("writing bars for %s: %w", inst, err)
		}
		g.log.Info("series updated",
			"instrument", inst, "period", g.period, "bars", len(bars),
			"elapsed", time.Since(runStart).Round(time.Second))
	}
	return ctx.Err()
}

// fetchBars pulls one instrument's bars from the API.
func (g *BarGatherer) fetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	apiBars, err := g.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: g.timeframe,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(apiBars))
	for _, ab := range apiBars {
		bars = append(bars, domain.Bar{
			Instrument: strings.ToUpper(symbol),
			Timestamp:  ab.Timestamp,
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     float64(ab.Volume),
		})
	}
	return bars, nil
}

// endTime caps the fetch range at now during trading hours, or at the most
// recent weekly close when the market is shut.
func (g *BarGatherer) endTime(now time.Time) time.Time {
	if g.cal.IsMarketOpen(now) {
		return now
	}
	return g.cal.NextClose(now).AddDate(0, 0, -7)
}

// timeframeFor maps a store period name onto an API timeframe.
func timeframeFor(period string) (marketdata.TimeFrame, error) {
	switch period {
	case "m1":
		return marketdata.OneMin, nil
	case "m15":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "h1":
		return marketdata.OneHour, nil
	case "d1":
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported period %q", period)
	}
}
