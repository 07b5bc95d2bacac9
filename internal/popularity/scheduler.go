package popularity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/serieshub/channels/pkg/config"
	"github.com/serieshub/channels/pkg/logging"
)

// Scheduler drives the recurring popularity rebuild. The first run is
// offset from process start so a fleet restarting together does not
// rebuild in unison.
type Scheduler struct {
	aggregator *Aggregator
	cfg        config.PopularityConfig
	logger     *zap.Logger
}

// NewScheduler creates a new rebuild scheduler
func NewScheduler(aggregator *Aggregator, cfg config.PopularityConfig) *Scheduler {
	return &Scheduler{
		aggregator: aggregator,
		cfg:        cfg,
		logger:     logging.WithComponent("popularity-scheduler"),
	}
}

// Run blocks until the context is cancelled, rebuilding on the
// configured interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting popularity scheduler",
		zap.Duration("start_delay", s.cfg.RebuildStartDelay),
		zap.Duration("interval", s.cfg.RebuildInterval))

	startTimer := time.NewTimer(s.cfg.RebuildStartDelay)
	defer startTimer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-startTimer.C:
	}

	s.rebuild(ctx)

	ticker := time.NewTicker(s.cfg.RebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.rebuild(ctx)
		}
	}
}

func (s *Scheduler) rebuild(ctx context.Context) {
	if _, err := s.aggregator.RebuildAll(ctx); err != nil {
		// Scheduled failures are retried on the next tick; a read can
		// also trigger a lazy rebuild in the meantime.
		s.logger.Error("Scheduled popularity rebuild failed", zap.Error(err))
	}
}
