// Package domain defines the core data types shared across the fxlab
// research toolkit: OHLCV bars, trade signals, simulated trades, and
// backtest results.
package domain

import "time"

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single OHLCV candle for one instrument. Bars in a series are
// ordered by strictly increasing UTC timestamps and are immutable once
// stored.
type Bar struct {
	Instrument string
	Timestamp  time.Time // UTC
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Direction is the side of a proposed trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Signal is a proposed trade produced by a strategy from a window of past
// bars. For Long signals StopLoss < EntryPrice < TakeProfit; Short signals
// mirror the ordering. Each signal is simulated exactly once.
type Signal struct {
	StrategyID string
	Instrument string
	Direction  Direction
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Notional   float64 // position size in base-currency units
	Confidence float64 // [0, 1]
}

// ---------------------------------------------------------------------------
// Simulated trades
// ---------------------------------------------------------------------------

// ExitReason explains why a simulated position was adjusted or closed.
type ExitReason string

const (
	ReasonEntry        ExitReason = "entry"
	ReasonPartialClose ExitReason = "partial_close"
	ReasonTrailingStop ExitReason = "trailing_stop"
	ReasonStopLoss     ExitReason = "stop_loss"
	ReasonTakeProfit   ExitReason = "take_profit"
	ReasonTimeout      ExitReason = "timeout"
)

// StopTakeEntry is one immutable snapshot of the position's protective
// levels, recorded whenever the simulator adjusts the position. The list on
// a trade is append-only.
type StopTakeEntry struct {
	Timestamp  time.Time
	StopLoss   float64
	TakeProfit float64
	Remaining  float64 // notional still open after this adjustment
	Reason     ExitReason
}

// BacktestTrade is the outcome of simulating one signal: entry and exit
// (post-cost prices), the realized PnL decomposition, and the full history
// of stop/take adjustments. Immutable once built.
type BacktestTrade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	Instrument string
	Direction  Direction
	EntryPrice float64 // cost-adjusted
	ExitPrice  float64 // cost-adjusted
	StopLoss   float64 // initial
	TakeProfit float64 // initial
	Notional   float64
	PnL        float64 // gross, before commission and swap
	PnLPct     float64
	Commission float64
	Swap       float64
	NetPnL     float64
	ExitReason ExitReason
	History    []StopTakeEntry
}

// ---------------------------------------------------------------------------
// Backtest results
// ---------------------------------------------------------------------------

// BacktestResult aggregates all trades of one (strategy, instrument, period)
// run. Derived from the trade list and equity curve; never mutated after
// construction. RecoveryFactor and ProfitFactor may be +Inf — see the
// metric definitions in internal/backtest.
type BacktestResult struct {
	StrategyID      string
	Instrument      string
	Period          string
	StartDate       time.Time
	EndDate         time.Time
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64
	TotalPnL        float64
	TotalCommission float64
	TotalSwap       float64
	NetPnL          float64
	SharpeRatio     float64
	MaxDrawdown     float64
	RecoveryFactor  float64
	ProfitFactor    float64
	AverageWin      float64
	AverageLoss     float64
	EquityCurve     []float64
	Trades          []BacktestTrade
}

// ---------------------------------------------------------------------------
// Symbol reference data
// ---------------------------------------------------------------------------

// SymbolInfo is per-instrument reference data used by the cost model.
// Loaded once per run and treated as read-only.
type SymbolInfo struct {
	SymbolID    int     `json:"symbol_id"`
	SymbolName  string  `json:"symbol_name"`
	Digits      int     `json:"digits"`
	PipLocation int     `json:"pip_location"` // decimal exponent, -4 for most pairs
	SwapLong    float64 `json:"swap_long"`    // per day, long positions
	SwapShort   float64 `json:"swap_short"`   // per day, short positions
	Commission  float64 `json:"commission"`
	Spread      float64 `json:"spread"` // in pips
	MinVolume   float64 `json:"min_volume"`
	MaxVolume   float64 `json:"max_volume"`
	VolumeStep  float64 `json:"volume_step"`
	Currency    string  `json:"currency"`
}
