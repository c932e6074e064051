// Package sync decides, per request, whether to serve cached bookmarks
// or refetch from the upstream platform, and keeps the audit log of
// every attempt.
package sync

import (
	"context"
	"time"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/logger"
	"github.com/perchkeep/perch/internal/normalize"
	"github.com/perchkeep/perch/internal/upstream"
)

// UpstreamClient is the slice of the upstream API the orchestrator
// needs. One client is built per request from the session's tokens.
type UpstreamClient interface {
	Me(ctx context.Context) (*domain.UserInfo, error)
	Bookmarks(ctx context.Context, userID string, opts upstream.BookmarksOptions) (*upstream.RawPage, error)
	AddBookmark(ctx context.Context, userID, tweetID string) error
	RemoveBookmark(ctx context.Context, userID, tweetID string) error
}

// CacheStore is the persistence capability the orchestrator writes to.
type CacheStore interface {
	ReadCache(ctx context.Context, userID string) (*domain.CacheEntry, error)
	WriteCache(ctx context.Context, userID string, bookmarks []domain.Bookmark, meta domain.PageMeta) (time.Time, error)
	ClearCache(ctx context.Context, userID string) error
	AppendLog(ctx context.Context, e *domain.SyncLogEntry) error
}

// Orchestrator runs the per-request sync state machine:
// resolve identity, check cache, fetch, normalize, update cache, log.
// It holds no per-user state; all calls are sequential within a request.
type Orchestrator struct {
	store      CacheStore
	normalizer *normalize.Normalizer
	log        logger.Logger
	now        func() time.Time
}

func New(store CacheStore, normalizer *normalize.Normalizer, log logger.Logger, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:      store,
		normalizer: normalizer,
		log:        log,
		now:        now,
	}
}

// Request selects one page of bookmarks.
type Request struct {
	MaxResults      int
	PaginationToken string
	ForceRefresh    bool
}

// Result is what the presentation layer renders.
type Result struct {
	Bookmarks    []domain.Bookmark
	Meta         domain.PageMeta
	User         *domain.UserInfo
	Cached       bool
	LastSyncedAt time.Time
}

// GetBookmarks serves a bookmarks request. The cache is consulted only
// for unforced, non-paginated requests; a fresh entry short-circuits the
// upstream fetch entirely. First-page fetches overwrite the cache.
func (o *Orchestrator) GetBookmarks(ctx context.Context, client UpstreamClient, req Request) (*Result, error) {
	startedAt := o.now()

	// Identity is always resolved live; it is cheap and token-bound.
	user, err := client.Me(ctx)
	if err != nil {
		return nil, err
	}

	syncType := domain.SyncAuto
	if req.ForceRefresh {
		syncType = domain.SyncManual
	}
	firstPage := req.PaginationToken == ""

	// The previous entry is read on any first-page request: it either
	// answers the request outright or supplies the first-seen
	// bookmarkedAt stamps for the overwrite below. Store failures never
	// block the fetch path.
	var prev *domain.CacheEntry
	if firstPage {
		prev, err = o.store.ReadCache(ctx, user.ID)
		if err != nil {
			o.log.Warn("cache read failed, falling through to upstream",
				logger.String("user_id", user.ID),
				logger.Error(err))
			prev = nil
		}
	}

	if !req.ForceRefresh && prev != nil && domain.IsFresh(o.now(), prev.LastSyncedAt) {
		o.log.Info("serving bookmarks from cache",
			logger.String("user_id", user.ID),
			logger.Int("count", len(prev.Bookmarks)),
			logger.Time("last_synced_at", prev.LastSyncedAt))
		o.appendLog(ctx, &domain.SyncLogEntry{
			UserID:    user.ID,
			Type:      syncType,
			Status:    domain.SyncSuccess,
			StartedAt: startedAt,
		})
		return &Result{
			Bookmarks:    prev.Bookmarks,
			Meta:         prev.Meta,
			User:         user,
			Cached:       true,
			LastSyncedAt: prev.LastSyncedAt,
		}, nil
	}

	page, err := client.Bookmarks(ctx, user.ID, upstream.BookmarksOptions{
		MaxResults:      req.MaxResults,
		PaginationToken: req.PaginationToken,
	})
	if err != nil {
		o.logFailure(ctx, user.ID, syncType, startedAt, err)
		return nil, err
	}

	bookmarks := o.normalizer.Normalize(page)
	added, updated := reconcileBookmarkedAt(bookmarks, prev)

	result := &Result{
		Bookmarks: bookmarks,
		Meta:      page.Meta,
		User:      user,
		Cached:    false,
	}

	// Only the first page represents the user's current snapshot;
	// paginated continuations never overwrite the cache.
	if firstPage {
		syncedAt, err := o.store.WriteCache(ctx, user.ID, bookmarks, page.Meta)
		if err != nil {
			o.log.Warn("cache write failed, serving fetch result anyway",
				logger.String("user_id", user.ID),
				logger.Error(err))
		} else {
			result.LastSyncedAt = syncedAt
		}
		o.appendLog(ctx, &domain.SyncLogEntry{
			UserID:           user.ID,
			Type:             syncType,
			Status:           domain.SyncSuccess,
			BookmarksAdded:   added,
			BookmarksUpdated: updated,
			StartedAt:        startedAt,
			CompletedAt:      o.now(),
		})
	}

	o.log.Info("fetched bookmarks from upstream",
		logger.String("user_id", user.ID),
		logger.Int("count", len(bookmarks)),
		logger.Bool("first_page", firstPage))
	return result, nil
}

// RefreshUser runs one scheduled first-page sync for a user whose cache
// has gone stale. Used by the background refresher, never by requests.
func (o *Orchestrator) RefreshUser(ctx context.Context, client UpstreamClient, userID string) error {
	startedAt := o.now()

	prev, err := o.store.ReadCache(ctx, userID)
	if err != nil {
		o.log.Warn("cache read failed during scheduled refresh",
			logger.String("user_id", userID),
			logger.Error(err))
		prev = nil
	}

	page, err := client.Bookmarks(ctx, userID, upstream.BookmarksOptions{})
	if err != nil {
		o.logFailure(ctx, userID, domain.SyncScheduled, startedAt, err)
		return err
	}

	bookmarks := o.normalizer.Normalize(page)
	added, updated := reconcileBookmarkedAt(bookmarks, prev)

	if _, err := o.store.WriteCache(ctx, userID, bookmarks, page.Meta); err != nil {
		o.logFailure(ctx, userID, domain.SyncScheduled, startedAt, err)
		return err
	}

	o.appendLog(ctx, &domain.SyncLogEntry{
		UserID:           userID,
		Type:             domain.SyncScheduled,
		Status:           domain.SyncSuccess,
		BookmarksAdded:   added,
		BookmarksUpdated: updated,
		StartedAt:        startedAt,
		CompletedAt:      o.now(),
	})
	return nil
}

// AddBookmark bookmarks a post upstream, then invalidates the user's
// cache so the next read is forced fresh. Cache-clear failure does not
// fail the mutation.
func (o *Orchestrator) AddBookmark(ctx context.Context, client UpstreamClient, tweetID string) error {
	user, err := client.Me(ctx)
	if err != nil {
		return err
	}
	if err := client.AddBookmark(ctx, user.ID, tweetID); err != nil {
		return err
	}
	o.invalidate(ctx, user.ID)
	return nil
}

// RemoveBookmark removes a bookmark upstream and invalidates the cache.
func (o *Orchestrator) RemoveBookmark(ctx context.Context, client UpstreamClient, tweetID string) error {
	user, err := client.Me(ctx)
	if err != nil {
		return err
	}
	if err := client.RemoveBookmark(ctx, user.ID, tweetID); err != nil {
		return err
	}
	o.invalidate(ctx, user.ID)
	return nil
}

// Status is the cache health summary for one user.
type Status struct {
	HasCache        bool       `json:"hasCache"`
	LastSynced      *time.Time `json:"lastSynced"`
	CacheAgeMinutes int        `json:"cacheAgeMinutes"`
	BookmarksCount  int        `json:"bookmarksCount"`
	IsFresh         bool       `json:"isFresh"`
}

// CacheStatus reports presence, age and freshness of the user's cache
// entry, using the same TTL constant as the read path.
func (o *Orchestrator) CacheStatus(ctx context.Context, client UpstreamClient) (*Status, error) {
	user, err := client.Me(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := o.store.ReadCache(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &Status{}, nil
	}

	now := o.now()
	return &Status{
		HasCache:        true,
		LastSynced:      &entry.LastSyncedAt,
		CacheAgeMinutes: int(now.Sub(entry.LastSyncedAt).Minutes()),
		BookmarksCount:  len(entry.Bookmarks),
		IsFresh:         domain.IsFresh(now, entry.LastSyncedAt),
	}, nil
}

// ClearCache drops the user's cache entry on explicit request and
// records a manual zero-delta sync.
func (o *Orchestrator) ClearCache(ctx context.Context, client UpstreamClient) error {
	user, err := client.Me(ctx)
	if err != nil {
		return err
	}
	if err := o.store.ClearCache(ctx, user.ID); err != nil {
		return err
	}
	o.appendLog(ctx, &domain.SyncLogEntry{
		UserID:      user.ID,
		Type:        domain.SyncManual,
		Status:      domain.SyncSuccess,
		StartedAt:   o.now(),
		CompletedAt: o.now(),
	})
	return nil
}

// invalidate clears the cache after a mutation, best effort.
func (o *Orchestrator) invalidate(ctx context.Context, userID string) {
	if err := o.store.ClearCache(ctx, userID); err != nil {
		o.log.Warn("cache invalidation failed after mutation",
			logger.String("user_id", userID),
			logger.Error(err))
	}
}

// appendLog writes an audit record; failures are logged and swallowed so
// they never change the outcome of the enclosing sync.
func (o *Orchestrator) appendLog(ctx context.Context, e *domain.SyncLogEntry) {
	if e.CompletedAt.IsZero() && e.Status == domain.SyncSuccess {
		e.CompletedAt = o.now()
	}
	if err := o.store.AppendLog(ctx, e); err != nil {
		o.log.Warn("sync log write failed",
			logger.String("user_id", e.UserID),
			logger.Error(err))
	}
}

func (o *Orchestrator) logFailure(ctx context.Context, userID string, syncType domain.SyncType, startedAt time.Time, cause error) {
	o.log.Error("sync failed",
		logger.String("user_id", userID),
		logger.String("sync_type", string(syncType)),
		logger.Error(cause))
	o.appendLog(ctx, &domain.SyncLogEntry{
		UserID:       userID,
		Type:         syncType,
		Status:       domain.SyncError,
		ErrorMessage: cause.Error(),
		StartedAt:    startedAt,
	})
}

// reconcileBookmarkedAt keeps bookmarkedAt stable across refreshes by
// carrying the first-seen stamp over from the previous cache entry.
// Returns how many bookmarks are new versus already known.
func reconcileBookmarkedAt(bookmarks []domain.Bookmark, prev *domain.CacheEntry) (added, updated int) {
	if prev == nil || len(prev.Bookmarks) == 0 {
		return len(bookmarks), 0
	}

	seen := make(map[string]time.Time, len(prev.Bookmarks))
	for _, b := range prev.Bookmarks {
		seen[b.ID] = b.BookmarkedAt
	}

	for i := range bookmarks {
		if first, ok := seen[bookmarks[i].ID]; ok {
			bookmarks[i].BookmarkedAt = first
			updated++
		} else {
			added++
		}
	}
	return added, updated
}
