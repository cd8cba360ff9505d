package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fxlab/internal/config"
	"fxlab/internal/fetch"
	"fxlab/internal/store"
)

func main() {
	instruments := flag.String("instruments", "EURUSD,GBPUSD,USDJPY", "comma-separated instrument list")
	period := flag.String("period", "d1", "bar period to fetch (m1, m15, h1, d1)")
	startStr := flag.String("start", "2020-01-01", "history start YYYY-MM-DD")
	rate := flag.Int("rate", 200, "API requests per minute")
	flag.Parse()

	cfgPath := "config/fxlab.yaml"
	if p := os.Getenv("FXLAB_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/fxlab-fetch-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}

	var list []string
	for _, inst := range strings.Split(*instruments, ",") {
		if inst = strings.TrimSpace(inst); inst != "" {
			list = append(list, strings.ToUpper(inst))
		}
	}
	if len(list) == 0 {
		log.Fatal("-instruments is empty")
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	gatherer, err := fetch.NewBarGatherer(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		pstore,
		list,
		*period,
		start,
		*rate,
	)
	if err != nil {
		log.Fatalf("creating gatherer: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting fxlab-fetch",
		"logFile", logFileName, "instruments", len(list), "period", *period, "start", *startStr)
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("fetch error: %v", err)
	}
}
