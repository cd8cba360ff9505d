package builtins

import (
	"fxlab/internal/domain"
	"fxlab/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MeanReversion)(nil)

// MeanReversion fades short-term RSI extremes when price has stretched a
// bounded number of ATRs away from its long EMA. The take-profit sits at the
// EMA, the stop an ATR multiple beyond entry.
type MeanReversion struct {
	rsiPeriod     int
	rsiBuy        float64
	rsiSell       float64
	emaPeriod     int
	atrPeriod     int
	atrMultiplier float64
	minATR        float64
	minDeviation  float64
	maxDeviation  float64
	notional      float64
}

// NewMeanReversion creates a MeanReversion from hyperparameters.
func NewMeanReversion(p strategy.Params) (strategy.Strategy, error) {
	return &MeanReversion{
		rsiPeriod:     p.GetInt("rsi_period", 2),
		rsiBuy:        p.Get("rsi_buy", 15),
		rsiSell:       p.Get("rsi_sell", 85),
		emaPeriod:     p.GetInt("ema_period", 50),
		atrPeriod:     p.GetInt("atr_period", 14),
		atrMultiplier: p.Get("atr_multiplier", 1.2),
		minATR:        p.Get("min_atr", 0.00025),
		minDeviation:  p.Get("min_deviation_atr", 0.5),
		maxDeviation:  p.Get("max_deviation_atr", 2.5),
		notional:      p.Get("notional", 10_000),
	}, nil
}

// ID returns "mean_reversion".
func (s *MeanReversion) ID() string { return "mean_reversion" }

// GenerateSignals fades an oversold or overbought close back toward the EMA.
func (s *MeanReversion) GenerateSignals(window []domain.Bar) ([]domain.Signal, error) {
	if len(window) < s.emaPeriod+s.atrPeriod+1 {
		return nil, nil
	}

	a := atr(window, s.atrPeriod)
	if a < s.minATR {
		return nil, nil
	}

	mean := ema(window, s.emaPeriod)
	r := rsi(window, s.rsiPeriod)
	last := window[len(window)-1]
	price := last.Close

	deviation := abs(price-mean) / a
	if deviation < s.minDeviation || deviation > s.maxDeviation {
		return nil, nil
	}

	stopDist := s.atrMultiplier * a

	var signals []domain.Signal
	switch {
	case r <= s.rsiBuy && price < mean:
		signals = append(signals, domain.Signal{
			StrategyID: s.ID(),
			Instrument: last.Instrument,
			Direction:  domain.Long,
			EntryPrice: price,
			StopLoss:   price - stopDist,
			TakeProfit: mean,
			Notional:   s.notional,
			Confidence: 0.4 + 0.2*deviation/s.maxDeviation,
		})
	case r >= s.rsiSell && price > mean:
		signals = append(signals, domain.Signal{
			StrategyID: s.ID(),
			Instrument: last.Instrument,
			Direction:  domain.Short,
			EntryPrice: price,
			StopLoss:   price + stopDist,
			TakeProfit: mean,
			Notional:   s.notional,
			Confidence: 0.4 + 0.2*deviation/s.maxDeviation,
		})
	}
	return signals, nil
}

// Register adds both built-in strategies to a registry.
func Register(r *strategy.Registry) {
	r.Register("momentum_breakout", NewMomentumBreakout)
	r.Register("mean_reversion", NewMeanReversion)
}
