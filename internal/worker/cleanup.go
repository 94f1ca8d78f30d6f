package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/internal/state"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
	"github.com/jwalitptl/clinic-sync/pkg/worker"
)

// Dispatcher applies state actions; *state.Hub satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, action state.Action) (model.StateEvent, error)
}

type CleanupConfig struct {
	// Retention keeps confirmed requests in the live store.
	Retention time.Duration
	// ArchiveRetention keeps archive rows; zero disables archive cleanup.
	ArchiveRetention time.Duration
	Interval         time.Duration
}

// CleanupWorker purges old confirmed requests from the live store and old
// rows from the archive.
type CleanupWorker struct {
	hub     Dispatcher
	archive repository.RequestArchiveRepository
	config  CleanupConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCleanupWorker(hub Dispatcher, archive repository.RequestArchiveRepository, config CleanupConfig,
	log *logger.Logger, m *metrics.Metrics) *CleanupWorker {
	return &CleanupWorker{
		hub:     hub,
		archive: archive,
		config:  config,
		logger:  log.With("component", "cleanup"),
		metrics: m,
		now:     time.Now,
	}
}

// Start runs a cleanup immediately and then every interval until ctx is done.
func (w *CleanupWorker) Start(ctx context.Context) {
	worker.Every(ctx, w.config.Interval, w.cleanup, func(err error) {
		w.logger.Error(err, "cleanup failed")
	})
}

func (w *CleanupWorker) cleanup(ctx context.Context) error {
	now := w.now()

	ev, err := w.hub.Dispatch(ctx, state.Purge{Before: now.Add(-w.config.Retention)})
	if err != nil {
		return fmt.Errorf("failed to purge requests: %w", err)
	}
	if w.metrics != nil {
		w.metrics.PurgedRequests.Add(float64(ev.Purged))
	}
	if ev.Purged > 0 {
		w.logger.Info("purged confirmed requests", "count", ev.Purged)
	}

	if w.archive == nil || w.config.ArchiveRetention <= 0 {
		return nil
	}
	cutoff := now.Add(-w.config.ArchiveRetention)
	rows, err := w.archive.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up request archive: %w", err)
	}
	if rows > 0 {
		w.logger.Info("cleaned up request archive", "rows", rows, "cutoff", cutoff)
	}
	return nil
}
