package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the fxlab toolkit.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Backtest BacktestConfig `yaml:"backtest"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"`
	SQLitePath  string `yaml:"sqlite_path"`
	SymbolCache string `yaml:"symbol_cache"`
}

// BacktestConfig defines simulation and cost parameters.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	CommissionBPS  float64 `yaml:"commission_bps"`
	SlippageBPS    float64 `yaml:"slippage_bps"`
	WindowSize     int     `yaml:"window_size"`
	StepSize       int     `yaml:"step_size"`
	MaxBars        int     `yaml:"max_bars"`

	PartialClose     bool    `yaml:"partial_close"`
	PartialCloseAt   float64 `yaml:"partial_close_at"`
	PartialCloseSize float64 `yaml:"partial_close_size"`

	TrailingStop   bool    `yaml:"trailing_stop"`
	TrailingStopAt float64 `yaml:"trailing_stop_at"`
}

// OptimizeConfig controls hyperparameter search runs.
type OptimizeConfig struct {
	Metric     string `yaml:"metric"`
	MaxWorkers int    `yaml:"max_workers"`
	CacheDir   string `yaml:"cache_dir"`
	ResultsDir string `yaml:"results_dir"`

	PopulationSize int     `yaml:"population_size"`
	Generations    int     `yaml:"generations"`
	CrossoverRate  float64 `yaml:"crossover_rate"`
	MutationRate   float64 `yaml:"mutation_rate"`
	EliteCount     int     `yaml:"elite_count"`
	TournamentSize int     `yaml:"tournament_size"`
	Seed           int64   `yaml:"seed"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("SYMBOL_CACHE"); v != "" {
		cfg.Storage.SymbolCache = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
