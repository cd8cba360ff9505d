package builtins

import "fxlab/internal/domain"

// atr computes the average true range over the last period bars of the
// window. Returns 0 when the window is too short.
func atr(bars []domain.Bar, period int) float64 {
	if len(bars) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		tr := bars[i].High - bars[i].Low
		if hc := abs(bars[i].High - bars[i-1].Close); hc > tr {
			tr = hc
		}
		if lc := abs(bars[i].Low - bars[i-1].Close); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period)
}

// ema computes an exponential moving average of closes over the window.
// Returns the last close when the window is shorter than the period.
func ema(bars []domain.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if len(bars) < period {
		return bars[len(bars)-1].Close
	}
	alpha := 2.0 / (float64(period) + 1.0)
	v := bars[0].Close
	for i := 1; i < len(bars); i++ {
		v = alpha*bars[i].Close + (1-alpha)*v
	}
	return v
}

// rsi computes the relative strength index of closes over the last period
// bars. Returns 50 (neutral) when the window is too short or flat.
func rsi(bars []domain.Bar, period int) float64 {
	if len(bars) < period+1 {
		return 50
	}
	gains, losses := 0.0, 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		diff := bars[i].Close - bars[i-1].Close
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if gains+losses == 0 {
		return 50
	}
	return 100 * gains / (gains + losses)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
