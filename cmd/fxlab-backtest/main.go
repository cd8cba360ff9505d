package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fxlab/internal/backtest"
	"fxlab/internal/config"
	"fxlab/internal/refdata"
	"fxlab/internal/store"
	"fxlab/internal/strategy"
	"fxlab/internal/strategy/builtins"
	"fxlab/internal/util"
)

func main() {
	strategyID := flag.String("strategy", "", "strategy ID to run (required; see -list)")
	instrument := flag.String("instrument", "EURUSD", "instrument to backtest")
	period := flag.String("period", "h1", "bar period (m1, m15, h1, d1)")
	startStr := flag.String("start", "", "range start YYYY-MM-DD (default: full series)")
	endStr := flag.String("end", "", "range end YYYY-MM-DD (default: full series)")
	paramsStr := flag.String("params", "", "strategy parameters as name=value,name=value")
	list := flag.Bool("list", false, "list registered strategies and exit")
	save := flag.Bool("save", false, "persist the result to the SQLite store")
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

	registry := strategy.NewRegistry()
	builtins.Register(registry)

	if *list {
		for _, id := range registry.List() {
			fmt.Println(id)
		}
		return
	}
	if *strategyID == "" {
		log.Fatal("-strategy is required (use -list to see the registry)")
	}

	params, err := parseParams(*paramsStr)
	if err != nil {
		log.Fatalf("invalid -params: %v", err)
	}
	strat, err := registry.New(*strategyID, params)
	if err != nil {
		log.Fatalf("building strategy: %v", err)
	}

	start, err := parseDate(*startStr)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := parseDate(*endStr)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	symbols := refdata.NewSymbolCache(cfg.Storage.SymbolCache)
	if err := symbols.Load(); err != nil {
		log.Fatalf("loading symbol cache: %v", err)
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	btCfg := backtestConfig(cfg.Backtest)
	sim := backtest.NewSimulator(symbols, btCfg)
	runner := backtest.NewRunner(bars, sim, btCfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := runner.Run(ctx, strat, strings.ToUpper(*instrument), *period, start, end)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	fmt.Printf("strategy        %s\n", res.StrategyID)
	fmt.Printf("instrument      %s %s\n", res.Instrument, res.Period)
	fmt.Printf("range           %s .. %s\n",
		res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"))
	fmt.Printf("trades          %d (%d won / %d lost, win rate %.1f%%)\n",
		res.TotalTrades, res.WinningTrades, res.LosingTrades, res.WinRate*100)
	fmt.Printf("net pnl         %.2f (gross %.2f, commission %.2f, swap %.2f)\n",
		res.NetPnL, res.TotalPnL, res.TotalCommission, res.TotalSwap)
	fmt.Printf("sharpe          %.3f\n", res.SharpeRatio)
	fmt.Printf("max drawdown    %.2f%%\n", res.MaxDrawdown*100)
	fmt.Printf("recovery factor %.3f\n", res.RecoveryFactor)
	fmt.Printf("profit factor   %.3f\n", res.ProfitFactor)

	if *save {
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening result store: %v", err)
		}
		defer db.Close()
		id, err := db.SaveResult(ctx, res)
		if err != nil {
			log.Fatalf("saving result: %v", err)
		}
		fmt.Printf("saved as result %d\n", id)
	}
}

// backtestConfig maps the YAML section onto runner parameters.
func backtestConfig(c config.BacktestConfig) backtest.Config {
	return backtest.Config{
		InitialCapital:   c.InitialCapital,
		CommissionBPS:    c.CommissionBPS,
		SlippageBPS:      c.SlippageBPS,
		WindowSize:       c.WindowSize,
		StepSize:         c.StepSize,
		MaxBars:          c.MaxBars,
		PartialClose:     c.PartialClose,
		PartialCloseAt:   c.PartialCloseAt,
		PartialCloseSize: c.PartialCloseSize,
		TrailingStop:     c.TrailingStop,
		TrailingStopAt:   c.TrailingStopAt,
	}
}

// parseParams parses "name=value,name=value" into strategy parameters.
func parseParams(s string) (strategy.Params, error) {
	params := strategy.Params{}
	if s == "" {
		return params, nil
	}
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		var v float64
		if _, err := fmt.Sscanf(value, "%g", &v); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", pair, err)
		}
		params[name] = v
	}
	return params, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
