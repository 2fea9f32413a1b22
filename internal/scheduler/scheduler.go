// Package scheduler runs periodic cache warm-ups.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"trendcast-api/internal/logger"
)

// Warmer refreshes cached price histories.
type Warmer interface {
	// WarmCache loads every configured ticker and reports how many succeeded.
	WarmCache(ctx context.Context) (int, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron   *cron.Cron
	Warmer Warmer
	Ctx    context.Context
	logger *logger.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, warmer Warmer, log *logger.Logger) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds()),
		Warmer: warmer,
		Ctx:    ctx,
		logger: log.Component("scheduler"),
	}
}

// Register schedules the warm-up task. The cron expression has a leading seconds field.
func (s *Scheduler) Register(warmCron string) error {
	if _, err := s.Cron.AddFunc(warmCron, s.warmTask); err != nil {
		return fmt.Errorf("register warm task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the warm-up task immediately.
func (s *Scheduler) RunNow() {
	s.warmTask()
}

func (s *Scheduler) warmTask() {
	started := time.Now()
	n, err := s.Warmer.WarmCache(s.Ctx)
	if err != nil {
		s.logger.Error("cache warm-up failed", zap.Error(err))
		return
	}
	s.logger.Info("cache warmed", zap.Int("tickers", n), zap.Duration("elapsed", time.Since(started)))
}
