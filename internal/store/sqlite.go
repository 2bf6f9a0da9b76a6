package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"backtester/internal/backtest"
	"backtester/internal/domain"
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy      TEXT NOT NULL,
	start_ms      INTEGER NOT NULL,
	end_ms        INTEGER NOT NULL,
	initial_cash  REAL NOT NULL,
	final_equity  REAL NOT NULL,
	truncated     INTEGER NOT NULL DEFAULT 0,
	created_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id       INTEGER NOT NULL REFERENCES runs(id),
	ts_ms        INTEGER NOT NULL,
	cash         REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	equity       REAL NOT NULL,
	PRIMARY KEY (run_id, ts_ms)
);

CREATE TABLE IF NOT EXISTS snapshot_positions (
	run_id   INTEGER NOT NULL,
	ts_ms    INTEGER NOT NULL,
	symbol   TEXT NOT NULL,
	qty      REAL NOT NULL,
	avg_cost REAL NOT NULL,
	PRIMARY KEY (run_id, ts_ms, symbol),
	FOREIGN KEY (run_id, ts_ms) REFERENCES snapshots(run_id, ts_ms)
);

CREATE TABLE IF NOT EXISTS fills (
	run_id   INTEGER NOT NULL REFERENCES runs(id),
	seq      INTEGER NOT NULL,
	order_id TEXT NOT NULL,
	symbol   TEXT NOT NULL,
	side     TEXT NOT NULL,
	qty      REAL NOT NULL,
	price    REAL NOT NULL,
	fees     REAL NOT NULL,
	ts_ms    INTEGER NOT NULL,
	reason   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
`

// SQLiteStore implements ResultStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult archives a completed run in a single transaction and returns
// its assigned run ID.
func (s *SQLiteStore) SaveResult(ctx context.Context, rec RunRecord, res *backtest.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	truncated := 0
	if res.Truncated {
		truncated = 1
	}
	r, err := tx.ExecContext(ctx,
		`INSERT INTO runs (strategy, start_ms, end_ms, initial_cash, final_equity, truncated, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Strategy, rec.Start.UnixMilli(), rec.End.UnixMilli(),
		rec.InitialCash, res.FinalEquity(), truncated, created.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, snap := range res.Snapshots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (run_id, ts_ms, cash, realized_pnl, equity) VALUES (?, ?, ?, ?, ?)`,
			runID, snap.Timestamp.UnixMilli(), snap.Cash, snap.RealizedPnL, snap.Equity,
		); err != nil {
			return 0, fmt.Errorf("inserting snapshot: %w", err)
		}
		for _, pos := range snap.Positions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO snapshot_positions (run_id, ts_ms, symbol, qty, avg_cost) VALUES (?, ?, ?, ?, ?)`,
				runID, snap.Timestamp.UnixMilli(), pos.Symbol, pos.Qty, pos.AvgCost,
			); err != nil {
				return 0, fmt.Errorf("inserting position: %w", err)
			}
		}
	}

	for i, f := range res.Fills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fills (run_id, seq, order_id, symbol, side, qty, price, fees, ts_ms, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i, f.OrderID, f.Symbol, string(f.Side), f.Qty, f.Price, f.Fees,
			f.Timestamp.UnixMilli(), f.Reason,
		); err != nil {
			return 0, fmt.Errorf("inserting fill: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// ListRuns returns archived run records, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy, start_ms, end_ms, initial_cash, final_equity, created_at_ms
		 FROM runs ORDER BY created_at_ms DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var startMS, endMS, createdMS int64
		if err := rows.Scan(&rec.ID, &rec.Strategy, &startMS, &endMS,
			&rec.InitialCash, &rec.FinalEquity, &createdMS); err != nil {
			return nil, err
		}
		rec.Start = time.UnixMilli(startMS).UTC()
		rec.End = time.UnixMilli(endMS).UTC()
		rec.CreatedAt = time.UnixMilli(createdMS).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LoadResult reconstructs an archived run's snapshots and fills.
func (s *SQLiteStore) LoadResult(ctx context.Context, id int64) (*backtest.Result, error) {
	res := &backtest.Result{State: backtest.StateCompleted}

	var truncated int
	err := s.db.QueryRowContext(ctx,
		`SELECT strategy, truncated FROM runs WHERE id = ?`, id,
	).Scan(&res.Strategy, &truncated)
	if err != nil {
		return nil, fmt.Errorf("loading run %d: %w", id, err)
	}
	res.Truncated = truncated != 0

	positions, err := s.loadPositions(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ts_ms, cash, realized_pnl, equity FROM snapshots WHERE run_id = ? ORDER BY ts_ms`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var snap domain.Snapshot
		var tsMS int64
		if err := rows.Scan(&tsMS, &snap.Cash, &snap.RealizedPnL, &snap.Equity); err != nil {
			return nil, err
		}
		snap.Timestamp = time.UnixMilli(tsMS).UTC()
		snap.Positions = positions[tsMS]
		res.Snapshots = append(res.Snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fills, err := s.db.QueryContext(ctx,
		`SELECT order_id, symbol, side, qty, price, fees, ts_ms, reason
		 FROM fills WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer fills.Close()
	for fills.Next() {
		var f domain.Fill
		var side string
		var tsMS int64
		if err := fills.Scan(&f.OrderID, &f.Symbol, &side, &f.Qty, &f.Price,
			&f.Fees, &tsMS, &f.Reason); err != nil {
			return nil, err
		}
		f.Side = domain.OrderSide(side)
		f.Timestamp = time.UnixMilli(tsMS).UTC()
		res.Fills = append(res.Fills, f)
	}
	return res, fills.Err()
}

func (s *SQLiteStore) loadPositions(ctx context.Context, id int64) (map[int64]map[string]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts_ms, symbol, qty, avg_cost FROM snapshot_positions WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byTS := make(map[int64]map[string]domain.Position)
	for rows.Next() {
		var tsMS int64
		var pos domain.Position
		if err := rows.Scan(&tsMS, &pos.Symbol, &pos.Qty, &pos.AvgCost); err != nil {
			return nil, err
		}
		if byTS[tsMS] == nil {
			byTS[tsMS] = make(map[string]domain.Position)
		}
		byTS[tsMS][pos.Symbol] = pos
	}
	return byTS, rows.Err()
}
