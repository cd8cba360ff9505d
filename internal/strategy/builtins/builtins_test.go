package builtins

import (
	"testing"
	"time"

	"fxlab/internal/domain"
	"fxlab/internal/strategy"
)

// flatBars builds n bars oscillating tightly around price.
func flatBars(n int, price float64) []domain.Bar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	for i := range bars {
		wiggle := 0.0002 * float64(i%3)
		bars[i] = domain.Bar{
			Instrument: "EURUSD",
			Timestamp:  base.Add(time.Duration(i) * 15 * time.Minute),
			Open:       price,
			High:       price + 0.0005 + wiggle,
			Low:        price - 0.0005 - wiggle,
			Close:      price + wiggle - 0.0002,
			Volume:     1000,
		}
	}
	return bars
}

func TestMomentumBreakoutLongSignal(t *testing.T) {
	s, err := NewMomentumBreakout(strategy.Params{"lookback": 20, "check_window": 3, "min_atr": 0})
	if err != nil {
		t.Fatalf("NewMomentumBreakout: %v", err)
	}

	bars := flatBars(60, 1.1000)
	// Push the last close decisively above the prior high.
	last := &bars[len(bars)-1]
	last.Close = 1.1050
	last.High = 1.1055

	signals, err := s.GenerateSignals(bars)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	sig := signals[0]
	if sig.Direction != domain.Long {
		t.Errorf("Direction = %v, want LONG", sig.Direction)
	}
	if !(sig.StopLoss < sig.EntryPrice && sig.EntryPrice < sig.TakeProfit) {
		t.Errorf("long signal must satisfy stop < entry < take, got %v/%v/%v",
			sig.StopLoss, sig.EntryPrice, sig.TakeProfit)
	}
	if sig.Confidence < 0.3 || sig.Confidence > 1 {
		t.Errorf("Confidence = %v, want within [0.3, 1]", sig.Confidence)
	}
}

func TestMomentumBreakoutNoSignalOnQuietMarket(t *testing.T) {
	s, _ := NewMomentumBreakout(strategy.Params{"lookback": 20, "check_window": 3, "min_atr": 0})
	signals, err := s.GenerateSignals(flatBars(60, 1.1000))
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("quiet market produced %d signals, want 0", len(signals))
	}
}

func TestMomentumBreakoutShortWindow(t *testing.T) {
	s, _ := NewMomentumBreakout(nil)
	signals, err := s.GenerateSignals(flatBars(10, 1.1000))
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	if signals != nil {
		t.Errorf("short window should yield no signals, got %v", signals)
	}
}

func TestMeanReversionLongSignal(t *testing.T) {
	s, err := NewMeanReversion(strategy.Params{
		"ema_period": 20,
		"min_atr":    0,
		"rsi_buy":    30,
	})
	if err != nil {
		t.Fatalf("NewMeanReversion: %v", err)
	}

	bars := flatBars(80, 1.1000)
	// Sell off over the last few bars so RSI pins low and price stretches
	// below the EMA.
	n := len(bars)
	for i := n - 4; i < n; i++ {
		drop := 0.0004 * float64(i-(n-5))
		bars[i].Open = 1.1000 - drop
		bars[i].Close = 1.0998 - drop
		bars[i].High = bars[i].Open + 0.0003
		bars[i].Low = bars[i].Close - 0.0003
	}

	signals, err := s.GenerateSignals(bars)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	sig := signals[0]
	if sig.Direction != domain.Long {
		t.Errorf("Direction = %v, want LONG", sig.Direction)
	}
	if sig.TakeProfit <= sig.EntryPrice {
		t.Errorf("take-profit %v should sit above entry %v for a long fade", sig.TakeProfit, sig.EntryPrice)
	}
}

func TestIndicators(t *testing.T) {
	bars := flatBars(50, 1.2000)

	if a := atr(bars, 14); a <= 0 {
		t.Errorf("atr = %v, want > 0 for wiggling bars", a)
	}
	if a := atr(bars[:5], 14); a != 0 {
		t.Errorf("atr on short window = %v, want 0", a)
	}

	e := ema(bars, 20)
	if e < 1.19 || e > 1.21 {
		t.Errorf("ema = %v, want near 1.20", e)
	}

	r := rsi(bars, 14)
	if r < 0 || r > 100 {
		t.Errorf("rsi = %v, want within [0, 100]", r)
	}
	if r := rsi(bars[:3], 14); r != 50 {
		t.Errorf("rsi on short window = %v, want neutral 50", r)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := strategy.NewRegistry()
	Register(r)

	ids := r.List()
	if len(ids) != 2 || ids[0] != "mean_reversion" || ids[1] != "momentum_breakout" {
		t.Fatalf("List() = %v, want [mean_reversion momentum_breakout]", ids)
	}

	s, err := r.New("momentum_breakout", strategy.Params{"lookback": 32})
	if err != nil {
		t.Fatalf("New(momentum_breakout): %v", err)
	}
	if s.ID() != "momentum_breakout" {
		t.Errorf("s.ID() = %q, want momentum_breakout", s.ID())
	}
}
