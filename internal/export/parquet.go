// Package export writes normalized price tables to Parquet files.
package export

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"trendcast-api/internal/frame"
	"trendcast-api/internal/logger"
	"trendcast-api/pkg/errors"
)

// ParquetWriter stages a table in an in-memory DuckDB database and copies
// it out as Parquet.
type ParquetWriter struct {
	dir    string
	logger *logger.Logger
}

// NewParquetWriter creates a writer saving files under dir.
func NewParquetWriter(dir string, log *logger.Logger) *ParquetWriter {
	return &ParquetWriter{dir: dir, logger: log.Component("export")}
}

// FileName is <TICKER>_<start>_<end>.parquet.
func FileName(ticker string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s.parquet", ticker, start.Format(time.DateOnly), end.Format(time.DateOnly))
}

// Write exports table and returns the output path. Missing values become NULL.
func (w *ParquetWriter) Write(table *frame.PriceTable, ticker string, start, end time.Time) (outputPath string, err error) {
	if table == nil || table.Empty() {
		return "", errors.Newf(errors.ErrCodeEmptyData, "no prices to export for %s", ticker)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	outputPath = filepath.Join(w.dir, FileName(ticker, start, end))

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return "", fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	defs := []string{quoteIdent(frame.DateColumn) + " TIMESTAMP"}
	cols := []string{quoteIdent(frame.DateColumn)}
	for _, f := range table.Fields {
		defs = append(defs, quoteIdent(f)+" DOUBLE")
		cols = append(cols, quoteIdent(f))
	}
	if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE prices (%s)`, strings.Join(defs, ", "))); err != nil {
		return "", fmt.Errorf("failed to create table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO prices (%s) VALUES (%s)`, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i, d := range table.Dates {
		args[0] = d
		for j, f := range table.Fields {
			v := table.Values[f][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				args[j+1] = nil
				continue
			}
			args[j+1] = v
		}
		if _, err = stmt.Exec(args...); err != nil {
			return "", fmt.Errorf("failed to insert data: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	if _, err = db.Exec(fmt.Sprintf(`COPY prices TO '%s' (FORMAT PARQUET)`, strings.ReplaceAll(outputPath, "'", "''"))); err != nil {
		return "", fmt.Errorf("failed to export to Parquet: %w", err)
	}

	w.logger.Info("exported prices",
		zap.String("ticker", ticker),
		zap.Int("rows", table.Len()),
		zap.String("path", outputPath))

	return outputPath, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
