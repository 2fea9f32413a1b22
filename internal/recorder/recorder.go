// Package recorder keeps a history of forecast runs.
package recorder

import (
	"context"

	"trendcast-api/internal/models"
)

// DefaultListLimit bounds ListForecasts when no limit is given.
const DefaultListLimit = 20

// Recorder persists forecast runs for later inspection.
type Recorder interface {
	RecordForecast(ctx context.Context, run *models.ForecastRun) error
	// ListForecasts returns the most recent runs for ticker, newest first.
	ListForecasts(ctx context.Context, ticker string, limit int) ([]models.ForecastRun, error)
	Close() error
}
