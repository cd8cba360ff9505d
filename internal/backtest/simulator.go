// Package backtest implements the event-driven trade simulator, the
// window-sliding backtest runner, and the result aggregation metrics.
package backtest

import (
	"math"
	"time"

	"fxlab/internal/domain"
	"fxlab/internal/refdata"
)

// Config holds the runtime parameters of a backtest run. Zero values are
// replaced by defaults via setDefaults.
type Config struct {
	InitialCapital float64 // starting equity, default 100_000
	CommissionBPS  float64 // commission per side in basis points, default 0.5
	SlippageBPS    float64 // slippage per side in basis points, default 1.5
	WindowSize     int     // bars per signal-generation window, default 500
	StepSize       int     // bars the window advances per step, default 50
	MaxBars        int     // lookahead cap per simulated trade, default 200

	PartialClose     bool    // close part of the position once in profit
	PartialCloseAt   float64 // trigger, as a fraction of the distance to take-profit, default 0.5
	PartialCloseSize float64 // fraction of the open notional to close, default 0.5

	TrailingStop   bool    // ratchet the stop once in profit
	TrailingStopAt float64 // trigger, as a fraction of the distance to take-profit, default 0.5
}

func (c *Config) setDefaults() {
	if c.InitialCapital == 0 {
		c.InitialCapital = 100_000
	}
	if c.CommissionBPS == 0 {
		c.CommissionBPS = 0.5
	}
	if c.SlippageBPS == 0 {
		c.SlippageBPS = 1.5
	}
	if c.WindowSize == 0 {
		c.WindowSize = 500
	}
	if c.StepSize == 0 {
		c.StepSize = 50
	}
	if c.MaxBars == 0 {
		c.MaxBars = 200
	}
	if c.PartialCloseAt == 0 {
		c.PartialCloseAt = 0.5
	}
	if c.PartialCloseSize == 0 {
		c.PartialCloseSize = 0.5
	}
	if c.TrailingStopAt == 0 {
		c.TrailingStopAt = 0.5
	}
}

// Simulator turns one signal plus the bars that follow it into a single
// closed trade. It reads market and reference data but mutates no shared
// state, so calls are independent and freely parallelisable.
type Simulator struct {
	symbols *refdata.SymbolCache
	cfg     Config
}

// NewSimulator creates a Simulator using the given symbol reference cache
// and runtime parameters.
func NewSimulator(symbols *refdata.SymbolCache, cfg Config) *Simulator {
	cfg.setDefaults()
	return &Simulator{symbols: symbols, cfg: cfg}
}

// SimulateTrade walks futureBars in order, applying partial closes, trailing
// stop ratcheting, and exit checks per bar, then prices the outcome with the
// spread/slippage/commission/swap cost model. It returns nil when futureBars
// is empty. Intrabar ambiguity is resolved pessimistically: when one bar's
// range would trigger both the stop and the target, the stop wins.
func (s *Simulator) SimulateTrade(sig domain.Signal, futureBars []domain.Bar, entryTime time.Time) *domain.BacktestTrade {
	if len(futureBars) == 0 {
		return nil
	}
	search := futureBars
	if len(search) > s.cfg.MaxBars {
		search = search[:s.cfg.MaxBars]
	}

	entry := sig.EntryPrice
	stop := sig.StopLoss
	take := sig.TakeProfit
	long := sig.Direction == domain.Long

	remaining := sig.Notional
	partialClosed := false
	trailingActivated := false

	history := []domain.StopTakeEntry{{
		Timestamp:  entryTime,
		StopLoss:   stop,
		TakeProfit: take,
		Remaining:  remaining,
		Reason:     domain.ReasonEntry,
	}}

	profitToTake := profitPct(long, entry, take)

	var (
		exitTime        time.Time
		exitPrice       float64
		reason          domain.ExitReason
		partialTime     time.Time
		partialPrice    float64
		partialNotional float64
		exited          bool
	)

	for _, bar := range search {
		profit := profitPct(long, entry, bar.Close)

		// Partial close: once profit covers the configured share of the
		// distance to target, bank part of the position and move the stop
		// to break-even.
		if s.cfg.PartialClose && !partialClosed && profitToTake > 0 && profit >= s.cfg.PartialCloseAt*profitToTake {
			partialNotional = remaining * s.cfg.PartialCloseSize
			remaining -= partialNotional
			partialPrice = bar.Close
			partialTime = bar.Timestamp
			if long && entry > stop {
				stop = entry
			} else if !long && entry < stop {
				stop = entry
			}
			partialClosed = true
			history = append(history, domain.StopTakeEntry{
				Timestamp:  bar.Timestamp,
				StopLoss:   stop,
				TakeProfit: take,
				Remaining:  remaining,
				Reason:     domain.ReasonPartialClose,
			})
		}

		// Trailing stop: ratchet only in the favorable direction.
		if s.cfg.TrailingStop && profit > 0 && profitToTake > 0 && profit >= s.cfg.TrailingStopAt*profitToTake {
			var newStop float64
			if long {
				newStop = entry + (1-s.cfg.TrailingStopAt)*(bar.Close-entry)
			} else {
				newStop = entry - (1-s.cfg.TrailingStopAt)*(entry-bar.Close)
			}
			if (long && newStop > stop) || (!long && newStop < stop) {
				stop = newStop
				trailingActivated = true
				history = append(history, domain.StopTakeEntry{
					Timestamp:  bar.Timestamp,
					StopLoss:   stop,
					TakeProfit: take,
					Remaining:  remaining,
					Reason:     domain.ReasonTrailingStop,
				})
			}
		}

		// Exit check, stop before target.
		if long {
			if bar.Low <= stop {
				exitPrice, reason, exited = stop, stopReason(trailingActivated), true
			} else if bar.High >= take {
				exitPrice, reason, exited = take, domain.ReasonTakeProfit, true
			}
		} else {
			if bar.High >= stop {
				exitPrice, reason, exited = stop, stopReason(trailingActivated), true
			} else if bar.Low <= take {
				exitPrice, reason, exited = take, domain.ReasonTakeProfit, true
			}
		}
		if exited {
			exitTime = bar.Timestamp
			break
		}
	}

	if !exited {
		last := search[len(search)-1]
		exitTime = last.Timestamp
		exitPrice = last.Close
		reason = domain.ReasonTimeout
	}

	history = append(history, domain.StopTakeEntry{
		Timestamp:  exitTime,
		StopLoss:   stop,
		TakeProfit: take,
		Remaining:  0,
		Reason:     reason,
	})

	// Cost model. Unknown symbols degrade to frictionless spread/swap.
	var spreadPct, swapRate float64
	if info, ok := s.symbols.Get(sig.Instrument); ok {
		spreadPct = info.Spread * math.Pow(10, float64(info.PipLocation)) / entry
		if long {
			swapRate = info.SwapLong
		} else {
			swapRate = info.SwapShort
		}
	}
	slip := s.cfg.SlippageBPS / 10_000
	halfSpread := spreadPct / 2

	var entryAdj, exitAdj, partialAdj float64
	if long {
		entryAdj = entry * (1 + slip + halfSpread)
		exitAdj = exitPrice * (1 - slip - halfSpread)
		partialAdj = partialPrice * (1 - slip - halfSpread)
	} else {
		entryAdj = entry * (1 - slip - halfSpread)
		exitAdj = exitPrice * (1 + slip + halfSpread)
		partialAdj = partialPrice * (1 + slip + halfSpread)
	}

	gross := remaining * profitPct(long, entryAdj, exitAdj)
	if partialClosed {
		gross += partialNotional * profitPct(long, entryAdj, partialAdj)
	}

	commissionPct := s.cfg.CommissionBPS / 10_000
	commission := sig.Notional * commissionPct
	if partialClosed {
		commission += partialNotional * commissionPct
	}
	commission += remaining * commissionPct

	var swap float64
	if partialClosed {
		daysToPartial := partialTime.Sub(entryTime).Hours() / 24
		daysAfter := exitTime.Sub(partialTime).Hours() / 24
		swap = sig.Notional*swapRate*daysToPartial + remaining*swapRate*daysAfter
	} else {
		days := exitTime.Sub(entryTime).Hours() / 24
		swap = sig.Notional * swapRate * days
	}

	var pnlPct float64
	if sig.Notional > 0 {
		pnlPct = gross / sig.Notional
	}

	return &domain.BacktestTrade{
		EntryTime:  entryTime,
		ExitTime:   exitTime,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		EntryPrice: entryAdj,
		ExitPrice:  exitAdj,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Notional:   sig.Notional,
		PnL:        gross,
		PnLPct:     pnlPct,
		Commission: commission,
		Swap:       swap,
		NetPnL:     gross - commission - swap,
		ExitReason: reason,
		History:    history,
	}
}

// profitPct is the signed profit fraction of moving from entry to price in
// the trade's direction.
func profitPct(long bool, entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	if long {
		return (price - entry) / entry
	}
	return (entry - price) / entry
}

func stopReason(trailingActivated bool) domain.ExitReason {
	if trailingActivated {
		return domain.ReasonTrailingStop
	}
	return domain.ReasonStopLoss
}
