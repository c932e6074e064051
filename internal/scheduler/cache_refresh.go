// Package scheduler runs the background maintenance loops: keeping
// active users' bookmark caches warm and pruning old sync log rows.
package scheduler

import (
	"context"
	"time"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/logger"
	"github.com/perchkeep/perch/internal/session"
	"github.com/perchkeep/perch/internal/store/sqlite"
	syncer "github.com/perchkeep/perch/internal/sync"
)

// CacheRefresher periodically re-syncs bookmarks for every active
// session whose cache has gone stale, so dashboard loads stay warm
// without each user paying the upstream latency.
type CacheRefresher struct {
	sessions     session.Manager
	store        *sqlite.Store
	orchestrator *syncer.Orchestrator
	newUpstream  func(accessToken, refreshToken string) syncer.UpstreamClient
	logger       logger.Logger
	interval     time.Duration
	now          func() time.Time
	stopCh       chan struct{}
}

// NewCacheRefresher creates a new cache refresher.
func NewCacheRefresher(
	sessions session.Manager,
	store *sqlite.Store,
	orchestrator *syncer.Orchestrator,
	newUpstream func(accessToken, refreshToken string) syncer.UpstreamClient,
	log logger.Logger,
	interval time.Duration,
	now func() time.Time,
) *CacheRefresher {
	if now == nil {
		now = time.Now
	}
	return &CacheRefresher{
		sessions:     sessions,
		store:        store,
		orchestrator: orchestrator,
		newUpstream:  newUpstream,
		logger:       log,
		interval:     interval,
		now:          now,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic refresh process.
func (cr *CacheRefresher) Start(ctx context.Context) error {
	ticker := time.NewTicker(cr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := cr.Refresh(ctx); err != nil {
					cr.logger.Error("scheduled cache refresh failed",
						logger.Error(err))
				}
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the refresher.
func (cr *CacheRefresher) Stop() {
	close(cr.stopCh)
}

// Refresh re-syncs every active session whose cache is stale. One
// user's failure never blocks the others.
func (cr *CacheRefresher) Refresh(ctx context.Context) error {
	sessions, err := cr.sessions.Active(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		cr.logger.Debug("no active sessions to refresh")
		return nil
	}

	refreshed := 0
	for _, sess := range sessions {
		if sess.AccessToken == "" {
			continue
		}
		if fresh, err := cr.cacheFresh(ctx, sess.UserID); err == nil && fresh {
			continue
		}

		client := cr.newUpstream(sess.AccessToken, sess.RefreshToken)
		if err := cr.orchestrator.RefreshUser(ctx, client, sess.UserID); err != nil {
			cr.logger.Warn("scheduled refresh failed for user",
				logger.String("user_id", sess.UserID),
				logger.Error(err))
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		cr.logger.Info("scheduled cache refresh completed",
			logger.Int("refreshed", refreshed),
			logger.Int("active_sessions", len(sessions)))
	}
	return nil
}

func (cr *CacheRefresher) cacheFresh(ctx context.Context, userID string) (bool, error) {
	entry, err := cr.store.ReadCache(ctx, userID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	return domain.IsFresh(cr.now(), entry.LastSyncedAt), nil
}
