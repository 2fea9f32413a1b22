package recorder

import (
	"context"

	"trendcast-api/internal/models"
)

// NoopRecorder discards everything. Used when no database is configured.
type NoopRecorder struct{}

func (NoopRecorder) RecordForecast(context.Context, *models.ForecastRun) error { return nil }

func (NoopRecorder) ListForecasts(context.Context, string, int) ([]models.ForecastRun, error) {
	return []models.ForecastRun{}, nil
}

func (NoopRecorder) Close() error { return nil }
