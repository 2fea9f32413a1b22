package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trendcast-api/internal/config"
	"trendcast-api/internal/frame"
	"trendcast-api/internal/logger"
	"trendcast-api/internal/models"
)

// Generic in-memory cache with type safety
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*cacheItem[V]
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return newCache[K, V](ttl, 5*time.Minute)
}

func newCache[K comparable, V any](ttl, cleanupEvery time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]*cacheItem[V]),
		ttl:   ttl,
		done:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go c.cleanup(cleanupEvery)

	return c
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || time.Now().After(item.expiration) {
		var zero V
		return zero, false
	}

	return item.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem[V]{
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*cacheItem[V])
}

// Len counts entries, including expired ones not yet cleaned up.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine. The cache stays usable.
func (c *Cache[K, V]) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache[K, V]) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *Cache[K, V]) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if now.After(item.expiration) {
			delete(c.items, key)
		}
	}
}

// Namespaces of the shared store.
const (
	pricesNamespace    = "prices"
	forecastsNamespace = "forecasts"
)

// CacheService handles both in-memory and shared (Redis or Firestore) caching.
// Cached values are treated as immutable.
type CacheService struct {
	config        *config.Config
	store         Store
	logger        *logger.Logger
	priceCache    *Cache[string, *frame.PriceTable]
	forecastCache *Cache[string, *models.ForecastResponse]
}

// NewCacheService builds the cache. A nil store keeps everything in memory.
func NewCacheService(cfg *config.Config, store Store, log *logger.Logger) *CacheService {
	return &CacheService{
		config:        cfg,
		store:         store,
		logger:        log.Component("cache"),
		priceCache:    NewCache[string, *frame.PriceTable](cfg.Cache.TTL),
		forecastCache: NewCache[string, *models.ForecastResponse](cfg.Cache.ForecastTTL),
	}
}

// GetPrices retrieves a normalized table from cache
func (s *CacheService) GetPrices(ctx context.Context, key string) (*frame.PriceTable, bool) {
	// Try in-memory cache first
	if table, found := s.priceCache.Get(key); found {
		return table, true
	}

	if s.store == nil {
		return nil, false
	}
	var table frame.PriceTable
	found, err := s.store.Get(ctx, pricesNamespace, key, s.config.Cache.TTL, &table)
	if err != nil {
		s.logger.Warn("shared cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found || table.Empty() {
		return nil, false
	}
	s.priceCache.Set(key, &table)
	return &table, true
}

// SetPrices stores a normalized table. Empty tables are never cached.
func (s *CacheService) SetPrices(ctx context.Context, key string, table *frame.PriceTable) {
	if table == nil || table.Empty() {
		return
	}
	s.priceCache.Set(key, table)

	if s.store != nil {
		if err := s.store.Set(ctx, pricesNamespace, key, table, s.config.Cache.TTL); err != nil {
			s.logger.Warn("shared cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// GetForecast retrieves forecast from cache. The returned copy has CacheHit set.
func (s *CacheService) GetForecast(ctx context.Context, key string) (*models.ForecastResponse, bool) {
	if forecast, found := s.forecastCache.Get(key); found {
		hit := *forecast
		hit.CacheHit = true
		return &hit, true
	}

	if s.store == nil {
		return nil, false
	}
	var forecast models.ForecastResponse
	found, err := s.store.Get(ctx, forecastsNamespace, key, s.config.Cache.ForecastTTL, &forecast)
	if err != nil {
		s.logger.Warn("shared cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	s.forecastCache.Set(key, &forecast)
	hit := forecast
	hit.CacheHit = true
	return &hit, true
}

// SetForecast stores forecast in cache
func (s *CacheService) SetForecast(ctx context.Context, key string, forecast *models.ForecastResponse) {
	s.forecastCache.Set(key, forecast)

	if s.store != nil {
		if err := s.store.Set(ctx, forecastsNamespace, key, forecast, s.config.Cache.ForecastTTL); err != nil {
			s.logger.Warn("shared cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Clear empties both tiers.
func (s *CacheService) Clear(ctx context.Context) error {
	s.priceCache.Clear()
	s.forecastCache.Clear()

	if s.store != nil {
		return s.store.Clear(ctx)
	}
	return nil
}

// Close stops the cleanup goroutines and closes the shared store.
func (s *CacheService) Close() error {
	s.priceCache.Close()
	s.forecastCache.Close()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
