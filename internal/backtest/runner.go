package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fxlab/internal/domain"
	"fxlab/internal/store"
	"fxlab/internal/strategy"
)

// ErrNoData is returned by Runner.Run when the requested series has no bars
// in the requested range.
var ErrNoData = errors.New("no bar data")

// Runner drives a strategy over a stored bar series: it slides a fixed-size
// window across the series, collects the strategy's signals at each step,
// simulates each signal against the bars that follow the window, and tracks
// the equity curve.
type Runner struct {
	bars store.BarStore
	sim  *Simulator
	cfg  Config
	log  *slog.Logger
}

// NewRunner creates a Runner over the given bar store and simulator.
func NewRunner(bars store.BarStore, sim *Simulator, cfg Config, log *slog.Logger) *Runner {
	cfg.setDefaults()
	return &Runner{bars: bars, sim: sim, cfg: cfg, log: log}
}

// Run backtests one strategy over one instrument and period. Zero start/end
// times mean the full stored series. A missing or empty series is a hard
// error wrapping ErrNoData; a strategy error on a single window only skips
// that window. Equity is floored at zero and the run continues regardless.
func (r *Runner) Run(ctx context.Context, strat strategy.Strategy, instrument, period string, start, end time.Time) (*domain.BacktestResult, error) {
	bars, err := r.bars.ReadBars(ctx, instrument, period, start, end)
	if err != nil {
		return nil, fmt.Errorf("read bars %s/%s: %w", instrument, period, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", instrument, period, ErrNoData)
	}

	var trades []domain.BacktestTrade
	equity := []float64{r.cfg.InitialCapital}

	for i := r.cfg.WindowSize; i < len(bars); i += r.cfg.StepSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window := bars[i-r.cfg.WindowSize : i]
		signals, err := strat.GenerateSignals(window)
		if err != nil {
			r.log.Debug("signal generation failed, skipping window",
				"strategy", strat.ID(), "instrument", instrument, "bar", i, "error", err)
			continue
		}
		for _, sig := range signals {
			trade := r.sim.SimulateTrade(sig, bars[i:], window[len(window)-1].Timestamp)
			if trade == nil {
				continue
			}
			trades = append(trades, *trade)
			next := equity[len(equity)-1] + trade.NetPnL
			if next < 0 {
				next = 0
			}
			equity = append(equity, next)
		}
	}

	res := buildResult(strat.ID(), instrument, period,
		bars[0].Timestamp, bars[len(bars)-1].Timestamp,
		trades, equity, r.cfg.InitialCapital)
	r.log.Info("backtest complete",
		"strategy", strat.ID(), "instrument", instrument, "period", period,
		"trades", res.TotalTrades, "net_pnl", res.NetPnL, "sharpe", res.SharpeRatio)
	return res, nil
}
