package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"trendcast-api/internal/config"
	"trendcast-api/internal/frame"
	"trendcast-api/internal/logger"
	"trendcast-api/pkg/errors"
)

// DefaultFetchTimeout bounds one provider call when
// market_data.fetch_timeout is unset.
const DefaultFetchTimeout = 30 * time.Second

// PriceProvider fetches a daily price history in the provider's native shape.
type PriceProvider interface {
	Name() string
	History(ctx context.Context, ticker string, start, end time.Time) (*frame.RawPriceTable, error)
}

// MarketDataService loads and normalizes price histories, memoized by
// (ticker, start, end).
type MarketDataService struct {
	config     *config.Config
	cache      *CacheService
	provider   PriceProvider
	logger     *logger.Logger
	group      singleflight.Group
	workerPool chan struct{} // Semaphore for bounded concurrency
}

func NewMarketDataService(cfg *config.Config, cache *CacheService, provider PriceProvider, log *logger.Logger) *MarketDataService {
	return &MarketDataService{
		config:     cfg,
		cache:      cache,
		provider:   provider,
		logger:     log.Component("market_data"),
		workerPool: make(chan struct{}, cfg.MarketData.MaxConcurrent),
	}
}

// PriceKey identifies a load in the cache.
func PriceKey(ticker string, start, end time.Time) string {
	return strings.Join([]string{ticker, start.Format(time.DateOnly), end.Format(time.DateOnly)}, "|")
}

// Load returns the normalized daily history of ticker over [start, end]. An
// unknown symbol or an empty range yields an empty table, not an error.
// Provider failures are returned as ErrCodeTransport and never retried.
func (s *MarketDataService) Load(ctx context.Context, ticker string, start, end time.Time) (*frame.PriceTable, error) {
	if err := checkRange(ticker, start, end); err != nil {
		return nil, err
	}

	key := PriceKey(ticker, start, end)
	if table, found := s.cache.GetPrices(ctx, key); found {
		return table, nil
	}
	return s.shared(ctx, key, ticker, start, end)
}

// Refresh is Load without the cache lookup. A non-empty result replaces the
// cached table.
func (s *MarketDataService) Refresh(ctx context.Context, ticker string, start, end time.Time) (*frame.PriceTable, error) {
	if err := checkRange(ticker, start, end); err != nil {
		return nil, err
	}
	return s.shared(ctx, PriceKey(ticker, start, end), ticker, start, end)
}

func checkRange(ticker string, start, end time.Time) error {
	if strings.TrimSpace(ticker) == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "ticker is required")
	}
	if start.After(end) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "start %s is after end %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return nil
}

// shared collapses concurrent identical fetches into one provider call. The
// call runs detached from any single caller so one caller giving up does not
// fail the others; each caller still stops waiting when its own ctx ends.
func (s *MarketDataService) shared(ctx context.Context, key, ticker string, start, end time.Time) (*frame.PriceTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout())
		defer cancel()
		return s.fetch(fetchCtx, key, ticker, start, end)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("load shared with concurrent caller", zap.String("key", key))
		}
		return res.Val.(*frame.PriceTable), nil
	}
}

func (s *MarketDataService) fetchTimeout() time.Duration {
	if t := s.config.MarketData.FetchTimeout; t > 0 {
		return t
	}
	return DefaultFetchTimeout
}

func (s *MarketDataService) fetch(ctx context.Context, key, ticker string, start, end time.Time) (*frame.PriceTable, error) {
	started := time.Now()
	raw, err := s.provider.History(ctx, ticker, start, end)
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeUnknown {
			err = errors.Wrapf(errors.ErrCodeTransport, err, "%s history for %s", s.provider.Name(), ticker)
		}
		return nil, err
	}

	table, err := frame.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", ticker, err)
	}

	s.logger.Info("loaded price history",
		zap.String("provider", s.provider.Name()),
		zap.String("ticker", ticker),
		zap.Int("rows", table.Len()),
		zap.Duration("elapsed", time.Since(started)))

	s.cache.SetPrices(ctx, key, table)
	return table, nil
}

// LoadResult is the outcome of one ticker in a batch load.
type LoadResult struct {
	Ticker string
	Table  *frame.PriceTable
	Err    error
}

// LoadBatch loads several tickers concurrently using worker pool pattern.
// Every ticker gets a result; failures do not stop the others.
func (s *MarketDataService) LoadBatch(ctx context.Context, tickers []string, start, end time.Time) []LoadResult {
	return s.batch(ctx, tickers, start, end, s.Load)
}

// RefreshBatch is LoadBatch bypassing the cache lookup.
func (s *MarketDataService) RefreshBatch(ctx context.Context, tickers []string, start, end time.Time) []LoadResult {
	return s.batch(ctx, tickers, start, end, s.Refresh)
}

type loadFunc func(ctx context.Context, ticker string, start, end time.Time) (*frame.PriceTable, error)

func (s *MarketDataService) batch(ctx context.Context, tickers []string, start, end time.Time, load loadFunc) []LoadResult {
	results := make([]LoadResult, len(tickers))
	var wg sync.WaitGroup

	// Launch workers
	for i, ticker := range tickers {
		wg.Add(1)

		go func(i int, symbol string) {
			defer wg.Done()

			// Acquire worker slot (bounded concurrency)
			select {
			case s.workerPool <- struct{}{}:
			case <-ctx.Done():
				results[i] = LoadResult{Ticker: symbol, Err: ctx.Err()}
				return
			}
			defer func() { <-s.workerPool }()

			table, err := load(ctx, symbol, start, end)
			results[i] = LoadResult{Ticker: symbol, Table: table, Err: err}
		}(i, ticker)
	}

	// Wait for all workers to complete
	wg.Wait()

	return results
}

// Provider returns the configured provider name.
func (s *MarketDataService) Provider() string {
	return s.provider.Name()
}
