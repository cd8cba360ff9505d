// Package optimize implements hyperparameter search over strategy
// parameters: exhaustive grid search and a genetic search, both backed by a
// persistent evaluation cache keyed on the parameter set.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"fxlab/internal/domain"
	"fxlab/internal/strategy"
)

// Supported optimization metrics.
const (
	MetricNetPnL         = "net_pnl"
	MetricSharpe         = "sharpe_ratio"
	MetricProfitFactor   = "profit_factor"
	MetricRecoveryFactor = "recovery_factor"
	MetricWinRate        = "win_rate"
	MetricMaxDrawdown    = "max_drawdown"
)

// minTradesForInf is the sample size below which an infinite ratio metric is
// considered noise rather than performance.
const minTradesForInf = 5

// EvalFunc runs one full backtest for a candidate parameter set.
type EvalFunc func(ctx context.Context, params strategy.Params) (*domain.BacktestResult, error)

// Dimension describes one axis of a search space. Grid search requires a
// discrete Values list; genetic search samples Values when present and the
// [Min, Max] range otherwise.
type Dimension struct {
	Name    string
	Values  []float64
	Min     float64
	Max     float64
	Integer bool
	Sigma   float64 // gaussian mutation step, defaults to 10% of the range
}

// Space is an ordered list of search dimensions.
type Space []Dimension

// Result is one evaluated point of a search.
type Result struct {
	Params strategy.Params
	Score  float64
}

// Optimizer evaluates candidate parameter sets through an EvalFunc, scoring
// each backtest on a single metric, with a worker pool and a cache shared by
// all search methods.
type Optimizer struct {
	eval    EvalFunc
	scope   string
	metric  string
	cache   *Cache
	workers int
	log     *slog.Logger
}

// ValidateMetric reports whether name is a supported optimization metric.
// An empty name selects the default, recovery factor.
func ValidateMetric(name string) (string, error) {
	switch name {
	case "":
		return MetricRecoveryFactor, nil
	case MetricNetPnL, MetricSharpe, MetricProfitFactor, MetricRecoveryFactor, MetricWinRate, MetricMaxDrawdown:
		return name, nil
	default:
		return "", fmt.Errorf("unknown optimization metric %q", name)
	}
}

// New creates an Optimizer. scope names the evaluation context (strategy,
// instrument, period) and keeps cache entries from different runs apart.
// workers <= 0 means one worker per CPU.
func New(eval EvalFunc, scope, metric string, cache *Cache, workers int, log *slog.Logger) (*Optimizer, error) {
	metric, err := ValidateMetric(metric)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if cache == nil {
		cache = NewCache("")
	}
	return &Optimizer{eval: eval, scope: scope, metric: metric, cache: cache, workers: workers, log: log}, nil
}

// Score extracts the optimization target from a backtest result. Degenerate
// runs are clamped so the ranking stays total: no trades scores 0, and an
// infinite ratio only counts once the run has enough trades to mean
// something, and even then as a fixed cap.
func Score(res *domain.BacktestResult, metric string) float64 {
	if res == nil || res.TotalTrades == 0 {
		return 0
	}
	var v float64
	switch metric {
	case MetricNetPnL:
		v = res.NetPnL
	case MetricSharpe:
		v = res.SharpeRatio
	case MetricProfitFactor:
		v = res.ProfitFactor
	case MetricWinRate:
		v = res.WinRate
	case MetricMaxDrawdown:
		v = res.MaxDrawdown
	case MetricRecoveryFactor:
		v = res.RecoveryFactor
	default:
		return 0
	}
	if math.IsNaN(v) {
		return 0
	}
	if math.IsInf(v, 0) {
		if res.TotalTrades < minTradesForInf {
			return 0
		}
		if res.NetPnL > 0 {
			return 100
		}
		return 0
	}
	return v
}

// scoreParams evaluates one parameter set through the cache. Evaluation
// errors are logged and scored 0 so a single bad candidate cannot abort a
// sweep.
func (o *Optimizer) scoreParams(ctx context.Context, params strategy.Params) float64 {
	key := o.cache.Key(o.scope, o.metric, params)
	if s, ok := o.cache.Get(key); ok {
		return s
	}
	res, err := o.eval(ctx, params)
	if err != nil {
		o.log.Warn("candidate evaluation failed", "params", params, "error", err)
		return 0
	}
	s := Score(res, o.metric)
	o.cache.Put(key, o.scope, o.metric, params, s)
	return s
}

// evalBatch scores a batch of candidates on the worker pool. It returns an
// error only when the context is cancelled.
func (o *Optimizer) evalBatch(ctx context.Context, batch []strategy.Params) ([]float64, error) {
	scores := make([]float64, len(batch))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				scores[i] = o.scoreParams(ctx, batch[i])
			}
		}()
	}

	var cancelled bool
feed:
	for i := range batch {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case <-ctx.Done():
			cancelled = true
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}
	return scores, nil
}

// enumerate expands the Cartesian product of the space's discrete values.
func (s Space) enumerate() ([]strategy.Params, error) {
	if len(s) == 0 {
		return nil, errors.New("empty search space")
	}
	combos := []strategy.Params{{}}
	for _, d := range s {
		if len(d.Values) == 0 {
			return nil, fmt.Errorf("dimension %q has no discrete values", d.Name)
		}
		next := make([]strategy.Params, 0, len(combos)*len(d.Values))
		for _, c := range combos {
			for _, v := range d.Values {
				p := make(strategy.Params, len(c)+1)
				for k, val := range c {
					p[k] = val
				}
				p[d.Name] = v
				next = append(next, p)
			}
		}
		combos = next
	}
	return combos, nil
}
