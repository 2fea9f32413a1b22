// Package app wires configuration into a running forecast pipeline.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trendcast-api/internal/config"
	"trendcast-api/internal/forecast"
	"trendcast-api/internal/handlers"
	"trendcast-api/internal/logger"
	"trendcast-api/internal/recorder"
	"trendcast-api/internal/services"
)

// App holds the long-lived services.
type App struct {
	Config       *config.Config
	Store        services.Store
	Cache        *services.CacheService
	MarketData   *services.MarketDataService
	Model        forecast.Model
	Recorder     recorder.Recorder
	Orchestrator *services.ForecastOrchestrator
	// Logger is the root logger the app was built with.
	Logger *logger.Logger

	logger *logger.Logger
}

// NewModel returns the model selected by forecast.model.
func NewModel(cfg *config.Config, log *logger.Logger) (forecast.Model, error) {
	switch cfg.Forecast.Model {
	case "prophet":
		return forecast.NewRemoteModel(cfg.Forecast.ServiceURL, cfg.Forecast.Timeout, log), nil
	case "", "additive":
		return forecast.NewAdditiveModel(), nil
	default:
		return nil, fmt.Errorf("unsupported forecast model: %s", cfg.Forecast.Model)
	}
}

// New builds every service. A shared store or recorder that fails to open
// is replaced by the in-memory or noop variant.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, logger: log.Component("app")}

	store, err := services.NewStore(ctx, cfg)
	if err != nil {
		a.logger.Warn("shared cache unavailable, using memory only", zap.String("store", cfg.Cache.Store), zap.Error(err))
		store = nil
	}
	a.Store = store

	rec, err := recorder.New(cfg.Database.SQLitePath, log)
	if err != nil {
		a.logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		rec = recorder.NoopRecorder{}
	}
	a.Recorder = rec

	provider, err := services.NewProvider(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	model, err := NewModel(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Model = model

	a.Cache = services.NewCacheService(cfg, store, log)
	a.MarketData = services.NewMarketDataService(cfg, a.Cache, provider, log)
	a.Orchestrator = services.NewForecastOrchestrator(cfg, a.MarketData, model, rec, log)

	a.logger.Info("pipeline ready",
		zap.String("provider", provider.Name()),
		zap.String("model", model.Name()),
		zap.String("cache_store", cfg.Cache.Store))
	return a, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Checks returns readiness probes for the dependencies that support them.
func (a *App) Checks() map[string]handlers.Check {
	checks := map[string]handlers.Check{}
	if p, ok := a.Store.(pinger); ok {
		checks["cache"] = p.Ping
	}
	if p, ok := a.Recorder.(pinger); ok {
		checks["recorder"] = p.Ping
	}
	return checks
}

// Close releases every service. It is safe on a partially built App.
func (a *App) Close() {
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.logger.Warn("close cache", zap.Error(err))
		}
	} else if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	if a.Recorder != nil {
		if err := a.Recorder.Close(); err != nil {
			a.logger.Warn("close recorder", zap.Error(err))
		}
	}
}
