package backtest

import (
	"math"
	"reflect"
	"testing"
	"time"

	"fxlab/internal/domain"
	"fxlab/internal/refdata"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(ts time.Time, o, h, l, c float64) domain.Bar {
	return domain.Bar{Timestamp: ts, Open: o, High: h, Low: l, Close: c}
}

func within(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

// frictionlessSim builds a simulator with zero costs and no reference data,
// bypassing the config defaults.
func frictionlessSim(cfg Config) *Simulator {
	if cfg.MaxBars == 0 {
		cfg.MaxBars = 200
	}
	if cfg.PartialCloseAt == 0 {
		cfg.PartialCloseAt = 0.5
	}
	if cfg.PartialCloseSize == 0 {
		cfg.PartialCloseSize = 0.5
	}
	if cfg.TrailingStopAt == 0 {
		cfg.TrailingStopAt = 0.5
	}
	return &Simulator{symbols: refdata.NewSymbolCache(""), cfg: cfg}
}

func TestSimulateLongStopLoss(t *testing.T) {
	sim := frictionlessSim(Config{})
	sig := domain.Signal{
		Instrument: "EURUSD", Direction: domain.Long,
		EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100, Notional: 10_000,
	}
	bars := []domain.Bar{bar(t0.Add(time.Hour), 1.1000, 1.1010, 1.0940, 1.0960)}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade == nil {
		t.Fatal("SimulateTrade returned nil")
	}
	if trade.ExitReason != domain.ReasonStopLoss {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, domain.ReasonStopLoss)
	}
	if trade.ExitPrice != 1.0950 {
		t.Errorf("exit price = %v, want 1.0950", trade.ExitPrice)
	}
	wantPnL := 10_000 * (1.0950 - 1.1000) / 1.1000
	if !within(trade.NetPnL, wantPnL, 1e-9) {
		t.Errorf("net pnl = %v, want %v", trade.NetPnL, wantPnL)
	}
	if !trade.ExitTime.Equal(bars[0].Timestamp) {
		t.Errorf("exit time = %v, want %v", trade.ExitTime, bars[0].Timestamp)
	}
	if len(trade.History) != 2 {
		t.Errorf("history length = %d, want 2 (entry + exit)", len(trade.History))
	}
}

func TestSimulateShortTakeProfit(t *testing.T) {
	sim := frictionlessSim(Config{})
	sig := domain.Signal{
		Instrument: "USDJPY", Direction: domain.Short,
		EntryPrice: 150.00, StopLoss: 150.50, TakeProfit: 149.00, Notional: 10_000,
	}
	bars := []domain.Bar{bar(t0.Add(time.Hour), 150.00, 150.10, 148.90, 149.20)}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade.ExitReason != domain.ReasonTakeProfit {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, domain.ReasonTakeProfit)
	}
	if trade.ExitPrice != 149.00 {
		t.Errorf("exit price = %v, want 149.00", trade.ExitPrice)
	}
	wantPnL := 10_000 * (150.00 - 149.00) / 150.00
	if !within(trade.NetPnL, wantPnL, 1e-9) {
		t.Errorf("net pnl = %v, want %v", trade.NetPnL, wantPnL)
	}
}

func TestSimulateStopBeforeTakeOnSameBar(t *testing.T) {
	sim := frictionlessSim(Config{})
	sig := domain.Signal{
		Instrument: "EURUSD", Direction: domain.Long,
		EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1050, Notional: 10_000,
	}
	// Range wide enough to hit both levels; the stop must win.
	bars := []domain.Bar{bar(t0.Add(time.Hour), 1.1000, 1.1060, 1.0940, 1.1020)}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade.ExitReason != domain.ReasonStopLoss {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, domain.ReasonStopLoss)
	}
	if trade.ExitPrice != 1.0950 {
		t.Errorf("exit price = %v, want 1.0950", trade.ExitPrice)
	}
}

func TestSimulateTrailingStopRatchet(t *testing.T) {
	sim := frictionlessSim(Config{TrailingStop: true})
	sig := domain.Signal{
		Instrument: "EURUSD", Direction: domain.Long,
		EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1200, Notional: 10_000,
	}
	bars := []domain.Bar{
		// Close at half the distance to target arms the trail at 1.1050.
		bar(t0.Add(1*time.Hour), 1.1060, 1.1105, 1.1055, 1.1100),
		// Pullback through the trailed stop.
		bar(t0.Add(2*time.Hour), 1.1090, 1.1095, 1.1045, 1.1060),
	}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade.ExitReason != domain.ReasonTrailingStop {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, domain.ReasonTrailingStop)
	}
	if !within(trade.ExitPrice, 1.1050, 1e-12) {
		t.Errorf("exit price = %v, want 1.1050", trade.ExitPrice)
	}
	if trade.NetPnL <= 0 {
		t.Errorf("net pnl = %v, want > 0", trade.NetPnL)
	}
	// The recorded stop levels must never loosen.
	prev := math.Inf(-1)
	for _, h := range trade.History {
		if h.StopLoss < prev {
			t.Fatalf("stop loosened from %v to %v at %v", prev, h.StopLoss, h.Timestamp)
		}
		prev = h.StopLoss
	}
}

func TestSimulateShortTrailingStopRatchet(t *testing.T) {
	sim := frictionlessSim(Config{TrailingStop: true})
	sig := domain.Signal{
		Instrument: "EURUSD", Direction: domain.Short,
		EntryPrice: 1.1000, StopLoss: 1.1050, TakeProfit: 1.0800, Notional: 10_000,
	}
	bars := []domain.Bar{
		// Close past half the distance to target arms the trail at 1.0945.
		bar(t0.Add(1*time.Hour), 1.0930, 1.0935, 1.0885, 1.0890),
		// Pullback through the trailed stop.
		bar(t0.Add(2*time.Hour), 1.0910, 1.0955, 1.0905, 1.0940),
	}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade.ExitReason != domain.ReasonTrailingStop {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, domain.ReasonTrailingStop)
	}
	if !within(trade.ExitPrice, 1.0945, 1e-9) {
		t.Errorf("exit price = %v, want 1.0945", trade.ExitPrice)
	}
	if trade.NetPnL <= 0 {
		t.Errorf("net pnl = %v, want > 0", trade.NetPnL)
	}
	// Short stops only ratchet downward.
	prev := math.Inf(1)
	for _, h := range trade.History {
		if h.StopLoss > prev {
			t.Fatalf("stop loosened from %v to %v at %v", prev, h.StopLoss, h.Timestamp)
		}
		prev = h.StopLoss
	}
}

func TestSimulatePartialCloseMovesStopToBreakEven(t *testing.T) {
	sim := frictionlessSim(Config{PartialClose: true})
	sig := domain.Signal{
		Instrument: "EURUSD", Direction: domain.Long,
		EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100, Notional: 10_000,
	}
	bars := []domain.Bar{
		bar(t0.Add(1*time.Hour), 1.1020, 1.1060, 1.1010, 1.1052),
		bar(t0.Add(2*time.Hour), 1.1040, 1.1050, 1.0990, 1.1000),
	}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade.ExitReason != domain.ReasonStopLoss {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, domain.ReasonStopLoss)
	}
	// Remaining half exits at break-even, so the gross is the partial leg only.
	wantPnL := 5_000 * (1.1052 - 1.1000) / 1.1000
	if !within(trade.PnL, wantPnL, 1e-9) {
		t.Errorf("gross pnl = %v, want %v", trade.PnL, wantPnL)
	}

	var partial *domain.StopTakeEntry
	for i := range trade.History {
		if trade.History[i].Reason == domain.ReasonPartialClose {
			partial = &trade.History[i]
		}
	}
	if partial == nil {
		t.Fatal("no partial_close entry in history")
	}
	if partial.Remaining != 5_000 {
		t.Errorf("remaining after partial = %v, want 5000", partial.Remaining)
	}
	if partial.StopLoss != 1.1000 {
		t.Errorf("stop after partial = %v, want break-even 1.1000", partial.StopLoss)
	}
}

func TestSimulateTimeoutAtMaxBars(t *testing.T) {
	sim := frictionlessSim(Config{MaxBars: 50})
	sig := domain.Signal{
		Instrument: "EURUSD", Direction: domain.Long,
		EntryPrice: 1.1000, StopLoss: 1.0900, TakeProfit: 1.1300, Notional: 10_000,
	}
	bars := make([]domain.Bar, 80)
	for i := range bars {
		bars[i] = bar(t0.Add(time.Duration(i+1)*time.Hour), 1.1000, 1.1010, 1.0990, 1.1005)
	}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade.ExitReason != domain.ReasonTimeout {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, domain.ReasonTimeout)
	}
	if !trade.ExitTime.Equal(bars[49].Timestamp) {
		t.Errorf("exit time = %v, want %v (bar 50)", trade.ExitTime, bars[49].Timestamp)
	}
	if trade.ExitPrice != 1.1005 {
		t.Errorf("exit price = %v, want last close 1.1005", trade.ExitPrice)
	}
}

func TestSimulateCostModel(t *testing.T) {
	symbols := refdata.NewSymbolCache("")
	symbols.Put(domain.SymbolInfo{
		SymbolName: "EURUSD", PipLocation: -4,
		Spread: 1.0, SwapLong: -0.00002, SwapShort: 0.00001,
	})
	sim := &Simulator{symbols: symbols, cfg: Config{
		CommissionBPS: 0.5, SlippageBPS: 1.5, MaxBars: 200,
		PartialCloseAt: 0.5, PartialCloseSize: 0.5, TrailingStopAt: 0.5,
	}}
	sig := domain.Signal{
		Instrument: "EURUSD", Direction: domain.Long,
		EntryPrice: 1.1000, StopLoss: 1.0900, TakeProfit: 1.1100, Notional: 10_000,
	}
	bars := []domain.Bar{
		bar(t0.Add(24*time.Hour), 1.1000, 1.1040, 1.0990, 1.1030),
		bar(t0.Add(48*time.Hour), 1.1030, 1.1120, 1.1020, 1.1090),
	}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade.ExitReason != domain.ReasonTakeProfit {
		t.Fatalf("exit reason = %q, want %q", trade.ExitReason, domain.ReasonTakeProfit)
	}

	// Long entries pay up, long exits receive less.
	if trade.EntryPrice <= sig.EntryPrice {
		t.Errorf("adjusted entry %v not above raw entry %v", trade.EntryPrice, sig.EntryPrice)
	}
	if trade.ExitPrice >= sig.TakeProfit {
		t.Errorf("adjusted exit %v not below raw take %v", trade.ExitPrice, sig.TakeProfit)
	}

	// Two commission charges without a partial close: entry and exit notional.
	wantCommission := 2 * 10_000 * 0.5 / 10_000
	if !within(trade.Commission, wantCommission, 1e-9) {
		t.Errorf("commission = %v, want %v", trade.Commission, wantCommission)
	}

	// Two days held at the long swap rate.
	wantSwap := 10_000 * -0.00002 * 2
	if !within(trade.Swap, wantSwap, 1e-9) {
		t.Errorf("swap = %v, want %v", trade.Swap, wantSwap)
	}

	if trade.NetPnL != trade.PnL-trade.Commission-trade.Swap {
		t.Errorf("net pnl %v != gross %v - commission %v - swap %v",
			trade.NetPnL, trade.PnL, trade.Commission, trade.Swap)
	}
}

func TestSimulateUnknownSymbolIsFrictionless(t *testing.T) {
	sim := frictionlessSim(Config{})
	sig := domain.Signal{
		Instrument: "XAUUSD", Direction: domain.Long,
		EntryPrice: 2000.0, StopLoss: 1990.0, TakeProfit: 2020.0, Notional: 10_000,
	}
	bars := []domain.Bar{bar(t0.Add(time.Hour), 2000, 2025, 1999, 2021)}

	trade := sim.SimulateTrade(sig, bars, t0)
	if trade.EntryPrice != sig.EntryPrice {
		t.Errorf("entry price = %v, want unadjusted %v", trade.EntryPrice, sig.EntryPrice)
	}
	if trade.Swap != 0 {
		t.Errorf("swap = %v, want 0", trade.Swap)
	}
}

func TestSimulateEmptyBarsReturnsNil(t *testing.T) {
	sim := frictionlessSim(Config{})
	sig := domain.Signal{Instrument: "EURUSD", Direction: domain.Long, EntryPrice: 1.1, StopLoss: 1.09, TakeProfit: 1.12, Notional: 10_000}
	if trade := sim.SimulateTrade(sig, nil, t0); trade != nil {
		t.Errorf("SimulateTrade(nil bars) = %+v, want nil", trade)
	}
}

func TestSimulateIsDeterministic(t *testing.T) {
	sim := frictionlessSim(Config{TrailingStop: true, PartialClose: true})
	sig := domain.Signal{
		Instrument: "EURUSD", Direction: domain.Long,
		EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1200, Notional: 10_000,
	}
	bars := []domain.Bar{
		bar(t0.Add(1*time.Hour), 1.1060, 1.1105, 1.1055, 1.1100),
		bar(t0.Add(2*time.Hour), 1.1090, 1.1095, 1.1045, 1.1060),
	}

	first := sim.SimulateTrade(sig, bars, t0)
	second := sim.SimulateTrade(sig, bars, t0)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated simulation differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
