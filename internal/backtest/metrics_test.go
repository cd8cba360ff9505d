package backtest

import (
	"math"
	"testing"

	"fxlab/internal/domain"
)

func TestBuildResultEmptyTrades(t *testing.T) {
	res := buildResult("noop", "EURUSD", "h1", t0, t0, nil, []float64{100_000}, 100_000)
	if res.TotalTrades != 0 {
		t.Errorf("total trades = %d, want 0", res.TotalTrades)
	}
	if res.NetPnL != 0 || res.SharpeRatio != 0 || res.ProfitFactor != 0 || res.RecoveryFactor != 0 {
		t.Errorf("metrics not zeroed: %+v", res)
	}
	if res.StrategyID != "noop" || res.Instrument != "EURUSD" {
		t.Errorf("identity fields not carried: %+v", res)
	}
}

func TestBuildResultMixedTrades(t *testing.T) {
	trades := []domain.BacktestTrade{
		{PnL: 110, Commission: 8, Swap: 2, NetPnL: 100},
		{PnL: -45, Commission: 4, Swap: 1, NetPnL: -50},
	}
	equity := []float64{100_000, 100_100, 100_050}

	res := buildResult("s", "EURUSD", "h1", t0, t0, trades, equity, 100_000)
	if res.TotalTrades != 2 || res.WinningTrades != 1 || res.LosingTrades != 1 {
		t.Fatalf("trade counts = %d/%d/%d, want 2/1/1",
			res.TotalTrades, res.WinningTrades, res.LosingTrades)
	}
	if res.WinRate != 0.5 {
		t.Errorf("win rate = %v, want 0.5", res.WinRate)
	}
	if res.NetPnL != 50 {
		t.Errorf("net pnl = %v, want 50", res.NetPnL)
	}
	if res.TotalCommission != 12 || res.TotalSwap != 3 {
		t.Errorf("costs = %v/%v, want 12/3", res.TotalCommission, res.TotalSwap)
	}
	if res.ProfitFactor != 2 {
		t.Errorf("profit factor = %v, want 2", res.ProfitFactor)
	}
	if res.AverageWin != 100 {
		t.Errorf("average win = %v, want 100", res.AverageWin)
	}
	if res.AverageLoss != -50 {
		t.Errorf("average loss = %v, want -50", res.AverageLoss)
	}

	wantDD := (100_050.0 - 100_100.0) / 100_100.0
	if !within(res.MaxDrawdown, wantDD, 1e-12) {
		t.Errorf("max drawdown = %v, want %v", res.MaxDrawdown, wantDD)
	}
	wantRecovery := 50 / math.Abs(wantDD*100_000)
	if !within(res.RecoveryFactor, wantRecovery, 1e-9) {
		t.Errorf("recovery factor = %v, want %v", res.RecoveryFactor, wantRecovery)
	}
}

func TestBuildResultBreakEvenTrades(t *testing.T) {
	trades := []domain.BacktestTrade{
		{NetPnL: 100},
		{NetPnL: 0},
		{NetPnL: -50},
	}
	equity := []float64{1000, 1100, 1100, 1050}

	res := buildResult("s", "EURUSD", "h1", t0, t0, trades, equity, 1000)
	if res.TotalTrades != 3 || res.WinningTrades != 1 || res.LosingTrades != 1 {
		t.Fatalf("trade counts = %d/%d/%d, want 3/1/1",
			res.TotalTrades, res.WinningTrades, res.LosingTrades)
	}
	if res.AverageLoss != -50 {
		t.Errorf("average loss = %v, want -50 (break-even trades excluded)", res.AverageLoss)
	}
	if res.ProfitFactor != 2 {
		t.Errorf("profit factor = %v, want 2", res.ProfitFactor)
	}
	if !within(res.WinRate, 1.0/3.0, 1e-12) {
		t.Errorf("win rate = %v, want 1/3", res.WinRate)
	}
}

func TestBuildResultAllWinners(t *testing.T) {
	trades := []domain.BacktestTrade{{NetPnL: 10}, {NetPnL: 20}}
	equity := []float64{1000, 1010, 1030}

	res := buildResult("s", "EURUSD", "h1", t0, t0, trades, equity, 1000)
	if !math.IsInf(res.ProfitFactor, 1) {
		t.Errorf("profit factor = %v, want +Inf", res.ProfitFactor)
	}
	if res.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %v, want 0", res.MaxDrawdown)
	}
	if !math.IsInf(res.RecoveryFactor, 1) {
		t.Errorf("recovery factor = %v, want +Inf", res.RecoveryFactor)
	}
	if res.WinRate != 1 {
		t.Errorf("win rate = %v, want 1", res.WinRate)
	}
}

func TestBuildResultAllLosers(t *testing.T) {
	trades := []domain.BacktestTrade{{NetPnL: -10}, {NetPnL: -20}}
	equity := []float64{1000, 990, 970}

	res := buildResult("s", "EURUSD", "h1", t0, t0, trades, equity, 1000)
	if res.ProfitFactor != 0 {
		t.Errorf("profit factor = %v, want 0", res.ProfitFactor)
	}
	if res.RecoveryFactor >= 0 {
		t.Errorf("recovery factor = %v, want negative", res.RecoveryFactor)
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := sharpeRatio([]float64{100, 110}); got != 0 {
		t.Errorf("sharpe of a single return = %v, want 0", got)
	}
	// Both steps return exactly 1.0, so the variance is exactly zero.
	if got := sharpeRatio([]float64{100, 200, 400}); got != 0 {
		t.Errorf("sharpe of constant returns = %v, want 0", got)
	}
	if got := sharpeRatio([]float64{100, 104, 106, 111}); got <= 0 {
		t.Errorf("sharpe of a rising curve = %v, want > 0", got)
	}
	if got := sharpeRatio([]float64{100, 96, 94, 89}); got >= 0 {
		t.Errorf("sharpe of a falling curve = %v, want < 0", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	if got := maxDrawdown([]float64{100, 120, 90, 130}); !within(got, -0.25, 1e-12) {
		t.Errorf("max drawdown = %v, want -0.25", got)
	}
	if got := maxDrawdown([]float64{100, 110, 120}); got != 0 {
		t.Errorf("max drawdown of rising curve = %v, want 0", got)
	}
	if got := maxDrawdown(nil); got != 0 {
		t.Errorf("max drawdown of empty curve = %v, want 0", got)
	}
}

func TestStepReturnsSkipsZeroBase(t *testing.T) {
	got := stepReturns([]float64{100, 0, 50})
	if len(got) != 1 || got[0] != -1 {
		t.Errorf("step returns = %v, want [-1]", got)
	}
}
