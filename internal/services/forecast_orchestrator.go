package services

import (
	"context"
	"crypto/md5"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"trendcast-api/internal/chart"
	"trendcast-api/internal/config"
	"trendcast-api/internal/forecast"
	"trendcast-api/internal/frame"
	"trendcast-api/internal/logger"
	"trendcast-api/internal/models"
	"trendcast-api/internal/recommend"
	"trendcast-api/internal/recorder"
	"trendcast-api/pkg/errors"
)

// ForecastOrchestrator coordinates the forecast generation pipeline
type ForecastOrchestrator struct {
	config     *config.Config
	marketData *MarketDataService
	cache      *CacheService
	model      forecast.Model
	recorder   recorder.Recorder
	logger     *logger.Logger
	validate   *validator.Validate
	cycles     *Cache[string, *cycle]
	now        func() time.Time
}

// cycle is the outcome of one render cycle.
type cycle struct {
	table    *frame.PriceTable
	input    *forecast.Input
	forecast *forecast.Forecast
	result   recommend.Result
}

func NewForecastOrchestrator(cfg *config.Config, marketData *MarketDataService, model forecast.Model, rec recorder.Recorder, log *logger.Logger) *ForecastOrchestrator {
	return &ForecastOrchestrator{
		config:     cfg,
		marketData: marketData,
		cache:      marketData.cache,
		model:      model,
		recorder:   rec,
		logger:     log.Component("orchestrator"),
		validate:   validator.New(),
		cycles:     NewCache[string, *cycle](cfg.Cache.ForecastTTL),
		now:        time.Now,
	}
}

// window is [start date, today] with naive dates.
func (o *ForecastOrchestrator) window() (time.Time, time.Time) {
	t := o.now()
	return o.config.StartTime(), time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Tickers returns the enumerated ticker set.
func (o *ForecastOrchestrator) Tickers() []string {
	return append([]string(nil), o.config.MarketData.Tickers...)
}

func (o *ForecastOrchestrator) checkTicker(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !o.config.HasTicker(ticker) {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "ticker %q is not one of %s", ticker, strings.Join(o.config.MarketData.Tickers, ", "))
	}
	return ticker, nil
}

func (o *ForecastOrchestrator) checkRequest(req *models.ForecastRequest) error {
	ticker, err := o.checkTicker(req.Ticker)
	if err != nil {
		return err
	}
	req.Ticker = ticker
	if err := o.validate.Struct(req); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid forecast request", err)
	}
	return nil
}

// GenerateForecast orchestrates the entire forecast pipeline
func (o *ForecastOrchestrator) GenerateForecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResponse, error) {
	if err := o.checkRequest(&req); err != nil {
		return nil, err
	}

	start, end := o.window()
	cacheKey := o.generateCacheKey(req, start, end)

	// Check cache
	if cached, found := o.cache.GetForecast(ctx, cacheKey); found {
		return cached, nil
	}

	c, err := o.runCycle(ctx, req.Ticker, req.Years, start, end)
	if err != nil {
		return nil, err
	}

	response := &models.ForecastResponse{
		RunID:          uuid.New().String(),
		Ticker:         req.Ticker,
		Years:          req.Years,
		PeriodDays:     req.Years * forecast.DaysPerYear,
		Model:          o.model.Name(),
		HistoryRows:    c.input.Len(),
		Prices:         c.table.Tail(o.config.Forecast.TailRows),
		Forecast:       c.forecast.Tail(o.config.Forecast.TailRows),
		Recommendation: c.result,
		Message:        c.result.Message(),
		GeneratedAt:    o.now(),
		CacheHit:       false,
	}

	if err := o.recorder.RecordForecast(ctx, &models.ForecastRun{
		RunID:         response.RunID,
		Ticker:        response.Ticker,
		Years:         response.Years,
		Model:         response.Model,
		HistoryRows:   response.HistoryRows,
		LastObserved:  c.result.LastObserved,
		LastPredicted: c.result.LastPredicted,
		Trend:         c.result.Trend,
		CreatedAt:     response.GeneratedAt,
	}); err != nil {
		o.logger.Warn("failed to record forecast run", zap.String("run_id", response.RunID), zap.Error(err))
	}

	// Cache the result
	o.cache.SetForecast(ctx, cacheKey, response)

	o.logger.Info("forecast generated",
		zap.String("run_id", response.RunID),
		zap.String("ticker", req.Ticker),
		zap.Int("years", req.Years),
		zap.String("trend", string(c.result.Trend)))

	return response, nil
}

// runCycle runs Loader, Normalizer, Adapter, Fit, Predict and the
// recommendation rule in order, stopping at the first failure.
func (o *ForecastOrchestrator) runCycle(ctx context.Context, ticker string, years int, start, end time.Time) (*cycle, error) {
	key := fmt.Sprintf("%s|%d", PriceKey(ticker, start, end), years)
	if c, found := o.cycles.Get(key); found {
		return c, nil
	}

	table, err := o.loadNonEmpty(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	input, err := forecast.ToForecastInput(table)
	if err != nil {
		return nil, err
	}
	if input.Len() < o.config.Forecast.MinRows {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory, "%s has %d rows, at least %d are needed to forecast", ticker, input.Len(), o.config.Forecast.MinRows)
	}

	fitted, err := o.model.Fit(ctx, input)
	if err != nil {
		return nil, o.forecastErr(err, "fit")
	}
	fc, err := fitted.Predict(ctx, years*forecast.DaysPerYear)
	if err != nil {
		return nil, o.forecastErr(err, "predict")
	}

	observed, ok := lastFinite(input.Y)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInsufficientHistory, "%s has no observed closing price", ticker)
	}
	last, ok := fc.Last()
	if !ok {
		return nil, errors.New(errors.ErrCodeForecastFailed, "model returned an empty forecast")
	}
	result, err := recommend.Recommend(observed, last.YHat)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeForecastFailed, "model returned a non-finite prediction", err)
	}

	c := &cycle{table: table, input: input, forecast: fc, result: result}
	o.cycles.Set(key, c)
	return c, nil
}

func (o *ForecastOrchestrator) forecastErr(err error, stage string) error {
	if errors.GetCode(err) != errors.ErrCodeUnknown {
		return err
	}
	return errors.Wrapf(errors.ErrCodeForecastFailed, err, "%s model %s", o.model.Name(), stage)
}

func (o *ForecastOrchestrator) loadNonEmpty(ctx context.Context, ticker string, start, end time.Time) (*frame.PriceTable, error) {
	table, err := o.marketData.Load(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	if table.Empty() {
		return nil, errors.Newf(errors.ErrCodeEmptyData, "no price data for %s between %s and %s", ticker, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return table, nil
}

// GetPrices returns the normalized history of a ticker.
func (o *ForecastOrchestrator) GetPrices(ctx context.Context, ticker string) (*models.PricesResponse, error) {
	ticker, err := o.checkTicker(ticker)
	if err != nil {
		return nil, err
	}
	start, end := o.window()
	table, err := o.loadNonEmpty(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	return &models.PricesResponse{
		Ticker: ticker,
		Start:  start.Format(time.DateOnly),
		End:    end.Format(time.DateOnly),
		Rows:   table.Len(),
		Table:  table,
	}, nil
}

// PriceChart renders the raw Open/Close chart of a ticker.
func (o *ForecastOrchestrator) PriceChart(ctx context.Context, ticker string) ([]byte, error) {
	ticker, err := o.checkTicker(ticker)
	if err != nil {
		return nil, err
	}
	start, end := o.window()
	table, err := o.loadNonEmpty(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	return chart.RawPrices(table, ticker)
}

// ForecastChart renders observed prices against the forecast.
func (o *ForecastOrchestrator) ForecastChart(ctx context.Context, req models.ForecastRequest) ([]byte, error) {
	c, err := o.chartCycle(ctx, &req)
	if err != nil {
		return nil, err
	}
	return chart.Forecast(c.input, c.forecast, req.Ticker)
}

// ComponentsChart renders the trend and seasonal components of the forecast.
func (o *ForecastOrchestrator) ComponentsChart(ctx context.Context, req models.ForecastRequest) ([]byte, error) {
	c, err := o.chartCycle(ctx, &req)
	if err != nil {
		return nil, err
	}
	return chart.Components(c.forecast)
}

func (o *ForecastOrchestrator) chartCycle(ctx context.Context, req *models.ForecastRequest) (*cycle, error) {
	if err := o.checkRequest(req); err != nil {
		return nil, err
	}
	start, end := o.window()
	return o.runCycle(ctx, req.Ticker, req.Years, start, end)
}

// History lists recorded forecast runs for a ticker.
func (o *ForecastOrchestrator) History(ctx context.Context, ticker string, limit int) (*models.HistoryResponse, error) {
	ticker, err := o.checkTicker(ticker)
	if err != nil {
		return nil, err
	}
	runs, err := o.recorder.ListForecasts(ctx, ticker, limit)
	if err != nil {
		return nil, err
	}
	return &models.HistoryResponse{Ticker: ticker, Runs: runs}, nil
}

// RefreshCache clears all caches
func (o *ForecastOrchestrator) RefreshCache(ctx context.Context) error {
	o.cycles.Clear()
	return o.cache.Clear(ctx)
}

// WarmCache refetches every configured ticker and replaces its cached
// prices, ignoring any entry still within its TTL. Failed
// tickers are logged and skipped; it errors only when all of them fail.
func (o *ForecastOrchestrator) WarmCache(ctx context.Context) (int, error) {
	start, end := o.window()
	tickers := o.Tickers()

	ok := 0
	var lastErr error
	for _, res := range o.marketData.RefreshBatch(ctx, tickers, start, end) {
		if res.Err != nil {
			lastErr = res.Err
			o.logger.Warn("warm-up load failed", zap.String("ticker", res.Ticker), zap.Error(res.Err))
			continue
		}
		ok++
	}
	if ok == 0 && lastErr != nil {
		return 0, fmt.Errorf("all %d warm-up loads failed: %w", len(tickers), lastErr)
	}
	return ok, nil
}

// Close stops the cycle cache cleanup.
func (o *ForecastOrchestrator) Close() {
	o.cycles.Close()
}

// Helper functions

func (o *ForecastOrchestrator) generateCacheKey(req models.ForecastRequest, start, end time.Time) string {
	key := fmt.Sprintf("%s|%d|%s|%s", req.Ticker, req.Years, start.Format(time.DateOnly), end.Format(time.DateOnly))
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}

func lastFinite(vals []float64) (float64, bool) {
	for i := len(vals) - 1; i >= 0; i-- {
		if !math.IsNaN(vals[i]) && !math.IsInf(vals[i], 0) {
			return vals[i], true
		}
	}
	return 0, false
}
