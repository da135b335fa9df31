// Package scheduler drives the actor's periodic cycles. Each cycle runs
// on its own ticker so a slow checkpoint never stalls queue drains, and a
// failing cycle logs and waits for its next tick instead of taking the
// others down.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/campushub/notifyhub/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPromotionInterval  = 60 * time.Second
	defaultDrainInterval      = 10 * time.Second
	defaultEvictionInterval   = 5 * time.Minute
	defaultCheckpointInterval = 30 * time.Second
)

// Cycles is the actor surface the scheduler drives.
type Cycles interface {
	PromoteDue(ctx context.Context) error
	DrainQueue(ctx context.Context) error
	EvictIdle(ctx context.Context) error
	Checkpoint(ctx context.Context) error
}

// Intervals configures the four cycle periods. Zero values fall back to
// the defaults.
type Intervals struct {
	Promotion  time.Duration
	Drain      time.Duration
	Eviction   time.Duration
	Checkpoint time.Duration
}

func (i Intervals) withDefaults() Intervals {
	if i.Promotion <= 0 {
		i.Promotion = defaultPromotionInterval
	}
	if i.Drain <= 0 {
		i.Drain = defaultDrainInterval
	}
	if i.Eviction <= 0 {
		i.Eviction = defaultEvictionInterval
	}
	if i.Checkpoint <= 0 {
		i.Checkpoint = defaultCheckpointInterval
	}
	return i
}

type Scheduler struct {
	cycles    Cycles
	intervals Intervals
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func New(cycles Cycles, intervals Intervals, logger *zap.Logger) (*Scheduler, error) {
	if cycles == nil {
		return nil, fmt.Errorf("cycles target is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cycles:    cycles,
		intervals: intervals.withDefaults(),
		logger:    logger,
	}, nil
}

func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs all four cycles until context cancellation. Each cycle fires
// once eagerly so a restart does not wait a full interval to promote
// overdue schedules or drain the recovered queue.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runCycle(groupCtx, "promotion", s.intervals.Promotion, s.cycles.PromoteDue) })
	g.Go(func() error { return s.runCycle(groupCtx, "drain", s.intervals.Drain, s.cycles.DrainQueue) })
	g.Go(func() error { return s.runCycle(groupCtx, "eviction", s.intervals.Eviction, s.cycles.EvictIdle) })
	g.Go(func() error { return s.runCycle(groupCtx, "checkpoint", s.intervals.Checkpoint, s.cycles.Checkpoint) })
	return g.Wait()
}

func (s *Scheduler) runCycle(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) error {
	s.logger.Info("cycle started",
		zap.String("cycle", name),
		zap.Duration("interval", interval),
	)

	s.runOnce(ctx, name, run)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cycle stopped", zap.String("cycle", name))
			return nil
		case <-ticker.C:
			s.runOnce(ctx, name, run)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("cycle run failed",
			zap.String("cycle", name),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.IncCycleFailure(name)
		}
	}
}
