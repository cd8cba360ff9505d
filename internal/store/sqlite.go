package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"fxlab/internal/domain"
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS backtest_results (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_id      TEXT NOT NULL,
	instrument       TEXT NOT NULL,
	period           TEXT NOT NULL,
	start_date       INTEGER NOT NULL,
	end_date         INTEGER NOT NULL,
	total_trades     INTEGER NOT NULL,
	winning_trades   INTEGER NOT NULL,
	losing_trades    INTEGER NOT NULL,
	win_rate         REAL NOT NULL,
	total_pnl        REAL NOT NULL,
	total_commission REAL NOT NULL,
	total_swap       REAL NOT NULL,
	net_pnl          REAL NOT NULL,
	sharpe_ratio     REAL NOT NULL,
	max_drawdown     REAL NOT NULL,
	recovery_factor  REAL NOT NULL,
	profit_factor    REAL NOT NULL,
	average_win      REAL NOT NULL,
	average_loss     REAL NOT NULL,
	created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_trades (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	result_id   INTEGER NOT NULL REFERENCES backtest_results(id),
	entry_time  INTEGER NOT NULL,
	exit_time   INTEGER NOT NULL,
	instrument  TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price  REAL NOT NULL,
	stop_loss   REAL NOT NULL,
	take_profit REAL NOT NULL,
	notional    REAL NOT NULL,
	pnl         REAL NOT NULL,
	pnl_pct     REAL NOT NULL,
	commission  REAL NOT NULL,
	swap        REAL NOT NULL,
	net_pnl     REAL NOT NULL,
	exit_reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_strategy
	ON backtest_results(strategy_id, created_at);
CREATE INDEX IF NOT EXISTS idx_trades_result
	ON backtest_trades(result_id);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migration, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating result schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult inserts a result and all of its trades in one transaction.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *domain.BacktestResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_results (
			strategy_id, instrument, period, start_date, end_date,
			total_trades, winning_trades, losing_trades, win_rate,
			total_pnl, total_commission, total_swap, net_pnl,
			sharpe_ratio, max_drawdown, recovery_factor, profit_factor,
			average_win, average_loss, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.StrategyID, result.Instrument, result.Period,
		result.StartDate.UnixMilli(), result.EndDate.UnixMilli(),
		result.TotalTrades, result.WinningTrades, result.LosingTrades, result.WinRate,
		result.TotalPnL, result.TotalCommission, result.TotalSwap, result.NetPnL,
		result.SharpeRatio, result.MaxDrawdown,
		clampInf(result.RecoveryFactor), clampInf(result.ProfitFactor),
		result.AverageWin, result.AverageLoss,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting result: %w", err)
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades (
			result_id, entry_time, exit_time, instrument, direction,
			entry_price, exit_price, stop_loss, take_profit, notional,
			pnl, pnl_pct, commission, swap, net_pnl, exit_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i := range result.Trades {
		t := &result.Trades[i]
		if _, err := stmt.ExecContext(ctx,
			resultID, t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(),
			t.Instrument, string(t.Direction),
			t.EntryPrice, t.ExitPrice, t.StopLoss, t.TakeProfit, t.Notional,
			t.PnL, t.PnLPct, t.Commission, t.Swap, t.NetPnL, string(t.ExitReason),
		); err != nil {
			return 0, fmt.Errorf("inserting trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return resultID, nil
}

// ListResults returns recent result summaries for a strategy, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, strategyID string, limit int) ([]domain.BacktestResult, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy_id, instrument, period, start_date, end_date,
			total_trades, winning_trades, losing_trades, win_rate,
			total_pnl, total_commission, total_swap, net_pnl,
			sharpe_ratio, max_drawdown, recovery_factor, profit_factor,
			average_win, average_loss
		FROM backtest_results
		WHERE strategy_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.BacktestResult
	for rows.Next() {
		var r domain.BacktestResult
		var startMs, endMs int64
		if err := rows.Scan(
			&r.StrategyID, &r.Instrument, &r.Period, &startMs, &endMs,
			&r.TotalTrades, &r.WinningTrades, &r.LosingTrades, &r.WinRate,
			&r.TotalPnL, &r.TotalCommission, &r.TotalSwap, &r.NetPnL,
			&r.SharpeRatio, &r.MaxDrawdown, &r.RecoveryFactor, &r.ProfitFactor,
			&r.AverageWin, &r.AverageLoss,
		); err != nil {
			return nil, err
		}
		r.StartDate = time.UnixMilli(startMs).UTC()
		r.EndDate = time.UnixMilli(endMs).UTC()
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetTrades returns the trades recorded for a stored result, in entry order.
func (s *SQLiteStore) GetTrades(ctx context.Context, resultID int64) ([]domain.BacktestTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_time, exit_time, instrument, direction,
			entry_price, exit_price, stop_loss, take_profit, notional,
			pnl, pnl_pct, commission, swap, net_pnl, exit_reason
		FROM backtest_trades
		WHERE result_id = ?
		ORDER BY entry_time, id`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.BacktestTrade
	for rows.Next() {
		var t domain.BacktestTrade
		var entryMs, exitMs int64
		var direction, reason string
		if err := rows.Scan(
			&entryMs, &exitMs, &t.Instrument, &direction,
			&t.EntryPrice, &t.ExitPrice, &t.StopLoss, &t.TakeProfit, &t.Notional,
			&t.PnL, &t.PnLPct, &t.Commission, &t.Swap, &t.NetPnL, &reason,
		); err != nil {
			return nil, err
		}
		t.EntryTime = time.UnixMilli(entryMs).UTC()
		t.ExitTime = time.UnixMilli(exitMs).UTC()
		t.Direction = domain.Direction(direction)
		t.ExitReason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// clampInf maps +Inf ratios to a large sentinel so they survive the trip
// through SQLite, which has no IEEE infinity literal.
func clampInf(v float64) float64 {
	const sentinel = 1e12
	if v > sentinel {
		return sentinel
	}
	return v
}
