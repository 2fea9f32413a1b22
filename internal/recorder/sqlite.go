package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"trendcast-api/internal/logger"
	"trendcast-api/internal/models"
	"trendcast-api/internal/recommend"
)

// SQLiteRecorder persists forecast runs to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *logger.Logger
}

// New opens a SQLiteRecorder at dbPath, or returns a NoopRecorder when the
// path is empty.
func New(dbPath string, log *logger.Logger) (Recorder, error) {
	if dbPath == "" {
		return NoopRecorder{}, nil
	}
	return NewSQLiteRecorder(dbPath, log)
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *logger.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: log.Component("recorder")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS forecast_runs (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL UNIQUE,
			timestamp      INTEGER NOT NULL,
			ticker         TEXT NOT NULL,
			years          INTEGER NOT NULL,
			model          TEXT,
			history_rows   INTEGER,
			last_observed  REAL,
			last_predicted REAL,
			trend          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ticker_ts ON forecast_runs(ticker, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordForecast(ctx context.Context, run *models.ForecastRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO forecast_runs
		(run_id, timestamp, ticker, years, model, history_rows, last_observed, last_predicted, trend)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.RunID, createdAt.UnixMilli(), run.Ticker, run.Years, run.Model,
		run.HistoryRows, run.LastObserved, run.LastPredicted, string(run.Trend),
	)
	return err
}

func (r *SQLiteRecorder) ListForecasts(ctx context.Context, ticker string, limit int) ([]models.ForecastRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `SELECT
		run_id, timestamp, ticker, years, model, history_rows, last_observed, last_predicted, trend
		FROM forecast_runs WHERE ticker = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		ticker, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []models.ForecastRun{}
	for rows.Next() {
		var (
			run   models.ForecastRun
			ts    int64
			trend string
		)
		if err := rows.Scan(&run.RunID, &ts, &run.Ticker, &run.Years, &run.Model,
			&run.HistoryRows, &run.LastObserved, &run.LastPredicted, &trend); err != nil {
			return nil, err
		}
		run.CreatedAt = time.UnixMilli(ts).UTC()
		run.Trend = recommend.Trend(trend)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Ping checks the database connection.
func (r *SQLiteRecorder) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
