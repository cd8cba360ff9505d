package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"fxlab/internal/backtest"
	"fxlab/internal/config"
	"fxlab/internal/domain"
	"fxlab/internal/optimize"
	"fxlab/internal/refdata"
	"fxlab/internal/store"
	"fxlab/internal/strategy"
	"fxlab/internal/strategy/builtins"
	"fxlab/internal/util"
)

func main() {
	strategyID := flag.String("strategy", "", "strategy ID to optimize (required)")
	instrument := flag.String("instrument", "EURUSD", "instrument to backtest")
	period := flag.String("period", "h1", "bar period (m1, m15, h1, d1)")
	method := flag.String("method", "grid", "search method: grid or genetic")
	metric := flag.String("metric", "", "target metric (default from config)")
	spaceStr := flag.String("space", "", `search space, e.g. "lookback=32,64,128;atr_multiplier=1.0:3.0;rsi_period=2:10:int"`)
	startStr := flag.String("start", "", "range start YYYY-MM-DD (default: full series)")
	endStr := flag.String("end", "", "range end YYYY-MM-DD (default: full series)")
	flag.Parse()

	cfgPath := "config/fxlab.yaml"
	if p := os.Getenv("FXLAB_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if *strategyID == "" {
		log.Fatal("-strategy is required")
	}
	space, err := parseSpace(*spaceStr)
	if err != nil {
		log.Fatalf("invalid -space: %v", err)
	}
	start, err := parseDate(*startStr)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := parseDate(*endStr)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	registry := strategy.NewRegistry()
	builtins.Register(registry)

	symbols := refdata.NewSymbolCache(cfg.Storage.SymbolCache)
	if err := symbols.Load(); err != nil {
		log.Fatalf("loading symbol cache: %v", err)
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	btCfg := backtest.Config{
		InitialCapital:   cfg.Backtest.InitialCapital,
		CommissionBPS:    cfg.Backtest.CommissionBPS,
		SlippageBPS:      cfg.Backtest.SlippageBPS,
		WindowSize:       cfg.Backtest.WindowSize,
		StepSize:         cfg.Backtest.StepSize,
		MaxBars:          cfg.Backtest.MaxBars,
		PartialClose:     cfg.Backtest.PartialClose,
		PartialCloseAt:   cfg.Backtest.PartialCloseAt,
		PartialCloseSize: cfg.Backtest.PartialCloseSize,
		TrailingStop:     cfg.Backtest.TrailingStop,
		TrailingStopAt:   cfg.Backtest.TrailingStopAt,
	}
	sim := backtest.NewSimulator(symbols, btCfg)
	runner := backtest.NewRunner(bars, sim, btCfg, logger)

	inst := strings.ToUpper(*instrument)
	eval := func(ctx context.Context, params strategy.Params) (*domain.BacktestResult, error) {
		strat, err := registry.New(*strategyID, params)
		if err != nil {
			return nil, err
		}
		return runner.Run(ctx, strat, inst, *period, start, end)
	}

	targetMetric := *metric
	if targetMetric == "" {
		targetMetric = cfg.Optimize.Metric
	}
	targetMetric, err = optimize.ValidateMetric(targetMetric)
	if err != nil {
		log.Fatalf("invalid -metric: %v", err)
	}
	cache := optimize.NewCache(cfg.Optimize.CacheDir)
	scope := fmt.Sprintf("%s/%s/%s", *strategyID, inst, *period)
	opt, err := optimize.New(eval, scope, targetMetric, cache, cfg.Optimize.MaxWorkers, logger)
	if err != nil {
		log.Fatalf("creating optimizer: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var results []optimize.Result
	switch *method {
	case "grid":
		results, err = opt.Grid(ctx, space)
	case "genetic":
		results, err = opt.Genetic(ctx, space, optimize.GeneticConfig{
			PopulationSize: cfg.Optimize.PopulationSize,
			Generations:    cfg.Optimize.Generations,
			CrossoverRate:  cfg.Optimize.CrossoverRate,
			MutationRate:   cfg.Optimize.MutationRate,
			EliteCount:     cfg.Optimize.EliteCount,
			TournamentSize: cfg.Optimize.TournamentSize,
			Seed:           cfg.Optimize.Seed,
		})
	default:
		log.Fatalf("unknown -method %q (want grid or genetic)", *method)
	}
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	best := results[0]
	fmt.Printf("best %s = %.4f\n", targetMetric, best.Score)
	fmt.Printf("params: %v\n", best.Params)

	path, err := optimize.SaveBest(cfg.Optimize.ResultsDir, optimize.BestParams{
		StrategyID: *strategyID,
		Instrument: inst,
		Period:     *period,
		Metric:     targetMetric,
		Score:      best.Score,
		Params:     best.Params,
	})
	if err != nil {
		log.Fatalf("saving best params: %v", err)
	}
	fmt.Printf("saved to %s\n", path)
}

// parseSpace parses a semicolon-separated space description. Each dimension
// is either a comma list of discrete values ("lookback=32,64,128"), a
// continuous range ("atr_multiplier=1.0:3.0"), or an integer range
// ("rsi_period=2:10:int").
func parseSpace(s string) (optimize.Space, error) {
	if s == "" {
		return nil, fmt.Errorf("empty space description")
	}
	var space optimize.Space
	for _, dimStr := range strings.Split(s, ";") {
		name, spec, ok := strings.Cut(strings.TrimSpace(dimStr), "=")
		if !ok {
			return nil, fmt.Errorf("malformed dimension %q", dimStr)
		}
		dim := optimize.Dimension{Name: name}
		if strings.Contains(spec, ":") {
			parts := strings.Split(spec, ":")
			if len(parts) < 2 || len(parts) > 3 {
				return nil, fmt.Errorf("malformed range %q", spec)
			}
			var err error
			if dim.Min, err = strconv.ParseFloat(parts[0], 64); err != nil {
				return nil, fmt.Errorf("range %q: %w", spec, err)
			}
			if dim.Max, err = strconv.ParseFloat(parts[1], 64); err != nil {
				return nil, fmt.Errorf("range %q: %w", spec, err)
			}
			if len(parts) == 3 {
				if parts[2] != "int" {
					return nil, fmt.Errorf("range %q: unknown modifier %q", spec, parts[2])
				}
				dim.Integer = true
			}
		} else {
			for _, vs := range strings.Split(spec, ",") {
				v, err := strconv.ParseFloat(strings.TrimSpace(vs), 64)
				if err != nil {
					return nil, fmt.Errorf("value %q in %q: %w", vs, dimStr, err)
				}
				dim.Values = append(dim.Values, v)
			}
		}
		space = append(space, dim)
	}
	return space, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
