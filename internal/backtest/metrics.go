package backtest

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"fxlab/internal/domain"
)

const tradingDaysPerYear = 252

// buildResult derives the aggregate metrics of one run from its trade list
// and equity curve. An empty trade list produces a zeroed result so that
// optimizer sweeps can rank it without special cases.
func buildResult(strategyID, instrument, period string, start, end time.Time, trades []domain.BacktestTrade, equity []float64, initialCapital float64) *domain.BacktestResult {
	res := &domain.BacktestResult{
		StrategyID:  strategyID,
		Instrument:  instrument,
		Period:      period,
		StartDate:   start,
		EndDate:     end,
		EquityCurve: equity,
		Trades:      trades,
	}
	if len(trades) == 0 {
		return res
	}

	var grossWins, grossLosses float64
	for _, t := range trades {
		res.TotalPnL += t.PnL
		res.TotalCommission += t.Commission
		res.TotalSwap += t.Swap
		res.NetPnL += t.NetPnL
		switch {
		case t.NetPnL > 0:
			res.WinningTrades++
			grossWins += t.NetPnL
		case t.NetPnL < 0:
			res.LosingTrades++
			grossLosses += -t.NetPnL
		}
	}
	res.TotalTrades = len(trades)
	res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades)

	if res.WinningTrades > 0 {
		res.AverageWin = grossWins / float64(res.WinningTrades)
	}
	if res.LosingTrades > 0 {
		res.AverageLoss = -grossLosses / float64(res.LosingTrades)
	}

	switch {
	case grossLosses == 0 && grossWins > 0:
		res.ProfitFactor = math.Inf(1)
	case grossWins == 0:
		res.ProfitFactor = 0
	default:
		res.ProfitFactor = grossWins / grossLosses
	}

	res.SharpeRatio = sharpeRatio(equity)
	res.MaxDrawdown = maxDrawdown(equity)

	switch {
	case res.MaxDrawdown == 0:
		res.RecoveryFactor = math.Inf(1)
	default:
		res.RecoveryFactor = res.NetPnL / math.Abs(res.MaxDrawdown*initialCapital)
	}
	return res
}

// sharpeRatio is the annualized ratio of mean to standard deviation of the
// equity curve's step returns. Curves too short or too flat to have a
// defined ratio yield 0.
func sharpeRatio(equity []float64) float64 {
	returns := stepReturns(equity)
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	return math.Sqrt(tradingDaysPerYear) * mean / std
}

// maxDrawdown is the most negative peak-to-trough fraction of the equity
// curve. Always <= 0.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (e - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// stepReturns converts an equity curve into per-step percentage changes,
// skipping steps whose base is zero.
func stepReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
	}
	return returns
}
