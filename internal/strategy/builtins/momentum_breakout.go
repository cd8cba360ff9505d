// Package builtins provides the built-in strategy implementations that ship
// with fxlab. They exist to feed the backtest runner and the hyperparameter
// search with realistic signals; their edge is not the point.
package builtins

import (
	"fxlab/internal/domain"
	"fxlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MomentumBreakout)(nil)

// MomentumBreakout signals when the latest closes break the high or low of
// the preceding lookback period, filtered by a minimum ATR. Stops are placed
// an ATR multiple away from entry, targets at twice the stop distance.
type MomentumBreakout struct {
	lookback      int
	checkWindow   int
	atrPeriod     int
	atrMultiplier float64
	minATR        float64
	notional      float64
}

// NewMomentumBreakout creates a MomentumBreakout from hyperparameters. All
// parameters have workable defaults.
func NewMomentumBreakout(p strategy.Params) (strategy.Strategy, error) {
	return &MomentumBreakout{
		lookback:      p.GetInt("lookback", 64),
		checkWindow:   p.GetInt("check_window", 5),
		atrPeriod:     p.GetInt("atr_period", 14),
		atrMultiplier: p.Get("atr_multiplier", 1.8),
		minATR:        p.Get("min_atr", 0.0001),
		notional:      p.Get("notional", 10_000),
	}, nil
}

// ID returns "momentum_breakout".
func (s *MomentumBreakout) ID() string { return "momentum_breakout" }

// GenerateSignals looks for a fresh break of the lookback high or low within
// the last checkWindow bars.
func (s *MomentumBreakout) GenerateSignals(window []domain.Bar) ([]domain.Signal, error) {
	need := s.lookback + s.checkWindow + s.atrPeriod + 1
	if len(window) < need {
		return nil, nil
	}

	a := atr(window, s.atrPeriod)
	if a < s.minATR {
		return nil, nil
	}

	// Breakout levels come from the bars before the check window.
	prev := window[len(window)-s.lookback-s.checkWindow : len(window)-s.checkWindow]
	highBreak, lowBreak := prev[0].High, prev[0].Low
	for _, b := range prev[1:] {
		if b.High > highBreak {
			highBreak = b.High
		}
		if b.Low < lowBreak {
			lowBreak = b.Low
		}
	}

	last := window[len(window)-1]
	stopDist := s.atrMultiplier * a

	var signals []domain.Signal
	switch {
	case last.Close > highBreak:
		signals = append(signals, domain.Signal{
			StrategyID: s.ID(),
			Instrument: last.Instrument,
			Direction:  domain.Long,
			EntryPrice: last.Close,
			StopLoss:   last.Close - stopDist,
			TakeProfit: last.Close + 2*stopDist,
			Notional:   s.notional,
			Confidence: confidence(last.Close-highBreak, a),
		})
	case last.Close < lowBreak:
		signals = append(signals, domain.Signal{
			StrategyID: s.ID(),
			Instrument: last.Instrument,
			Direction:  domain.Short,
			EntryPrice: last.Close,
			StopLoss:   last.Close + stopDist,
			TakeProfit: last.Close - 2*stopDist,
			Notional:   s.notional,
			Confidence: confidence(lowBreak-last.Close, a),
		})
	}
	return signals, nil
}

// confidence scales the breakout distance by ATR into [0.3, 1.0].
func confidence(dist, atr float64) float64 {
	if atr <= 0 {
		return 0.3
	}
	c := 0.3 + dist/atr*0.35
	if c > 1 {
		c = 1
	}
	if c < 0.3 {
		c = 0.3
	}
	return c
}
