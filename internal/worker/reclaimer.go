package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-desk/internal/queue"
)

// StaleClaimer takes over messages left pending by consumers that stopped acking them.
type StaleClaimer interface {
	ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]queue.Message, error)
}

// ReclaimerConfig tunes how often and how aggressively stale messages are claimed.
type ReclaimerConfig struct {
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer periodically hands abandoned triage requests back to the worker.
type Reclaimer struct {
	claimer StaleClaimer
	worker  *TriageWorker
	cfg     ReclaimerConfig
	logger  *zap.Logger
}

// NewReclaimer constructs the reclaimer.
func NewReclaimer(claimer StaleClaimer, worker *TriageWorker, cfg ReclaimerConfig, logger *zap.Logger) *Reclaimer {
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 2 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Reclaimer{claimer: claimer, worker: worker, cfg: cfg, logger: logger}
}

// Run claims stale messages on every tick until ctx is cancelled.
func (r *Reclaimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("reclaimer started",
		zap.Duration("interval", r.cfg.Interval),
		zap.Duration("min_idle", r.cfg.MinIdle))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reclaimer stopping")
			return nil
		case <-ticker.C:
			if _, err := r.reclaimOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("reclaim cycle error", zap.Error(err))
			}
		}
	}
}

func (r *Reclaimer) reclaimOnce(ctx context.Context) (int, error) {
	messages, err := r.claimer.ClaimStale(ctx, r.cfg.MinIdle, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim stale messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	r.logger.Info("reclaimed stale messages", zap.Int("count", len(messages)))
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		r.worker.handle(ctx, msg)
	}
	return len(messages), nil
}
