package scheduler

import (
	"context"
	"time"

	"github.com/perchkeep/perch/internal/logger"
	"github.com/perchkeep/perch/internal/store/sqlite"
)

const (
	// DefaultLogRetention is how long sync log rows are kept.
	DefaultLogRetention = 30 * 24 * time.Hour
)

// LogPruner deletes sync log rows older than the retention window. The
// log is append-only, so without pruning it grows forever.
type LogPruner struct {
	store     *sqlite.Store
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewLogPruner creates a new log pruner.
func NewLogPruner(
	store *sqlite.Store,
	log logger.Logger,
	interval time.Duration,
	retention time.Duration,
	now func() time.Time,
) *LogPruner {
	if retention == 0 {
		retention = DefaultLogRetention
	}
	if now == nil {
		now = time.Now
	}
	return &LogPruner{
		store:     store,
		logger:    log,
		interval:  interval,
		retention: retention,
		now:       now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic pruning process.
func (lp *LogPruner) Start(ctx context.Context) error {
	// Run immediately on start
	if err := lp.Prune(ctx); err != nil {
		lp.logger.Warn("initial log prune failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(lp.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := lp.Prune(ctx); err != nil {
					lp.logger.Error("log prune failed",
						logger.Error(err))
				}
			case <-lp.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the pruner.
func (lp *LogPruner) Stop() {
	close(lp.stopCh)
}

// Prune deletes log rows older than the retention window.
func (lp *LogPruner) Prune(ctx context.Context) error {
	cutoff := lp.now().Add(-lp.retention)

	deleted, err := lp.store.PruneLogs(ctx, cutoff)
	if err != nil {
		return err
	}

	if deleted > 0 {
		lp.logger.Info("pruned old sync log entries",
			logger.Int("deleted", int(deleted)))
	} else {
		lp.logger.Debug("no sync log entries to prune")
	}
	return nil
}
