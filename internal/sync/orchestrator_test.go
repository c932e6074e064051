package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/logger"
	"github.com/perchkeep/perch/internal/normalize"
	"github.com/perchkeep/perch/internal/store/sqlite"
	"github.com/perchkeep/perch/internal/upstream"
)

// fakeUpstream implements UpstreamClient per test, never shared.
type fakeUpstream struct {
	user *domain.UserInfo
	page *upstream.RawPage

	meErr        error
	bookmarksErr error
	mutateErr    error

	meCalls        int
	bookmarksCalls int
	lastOpts       upstream.BookmarksOptions
	added          []string
	removed        []string
}

func (f *fakeUpstream) Me(ctx context.Context) (*domain.UserInfo, error) {
	f.meCalls++
	if f.meErr != nil {
		return nil, f.meErr
	}
	return f.user, nil
}

func (f *fakeUpstream) Bookmarks(ctx context.Context, userID string, opts upstream.BookmarksOptions) (*upstream.RawPage, error) {
	f.bookmarksCalls++
	f.lastOpts = opts
	if f.bookmarksErr != nil {
		return nil, f.bookmarksErr
	}
	return f.page, nil
}

func (f *fakeUpstream) AddBookmark(ctx context.Context, userID, tweetID string) error {
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.added = append(f.added, tweetID)
	return nil
}

func (f *fakeUpstream) RemoveBookmark(ctx context.Context, userID, tweetID string) error {
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.removed = append(f.removed, tweetID)
	return nil
}

type fixture struct {
	orch     *Orchestrator
	store    *sqlite.Store
	upstream *fakeUpstream
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	nowFn := func() time.Time { return *clock }

	store, err := sqlite.New(filepath.Join(t.TempDir(), "perch.db"), nowFn)
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fu := &fakeUpstream{
		user: &domain.UserInfo{ID: "u1", Name: "Ada", Username: "ada"},
		page: &upstream.RawPage{
			Data: []upstream.Tweet{
				{ID: "1001", Text: "new programming post", AuthorID: "a1", CreatedAt: "2025-05-30T08:00:00Z"},
				{ID: "1002", Text: "plain post", AuthorID: "a1", CreatedAt: "2025-05-30T09:00:00Z"},
			},
			Includes: upstream.Includes{
				Users: []upstream.User{{ID: "a1", Name: "Bob", Username: "bob"}},
			},
			Meta: domain.PageMeta{ResultCount: 2},
		},
	}

	orch := New(store, normalize.New(normalize.Taxonomy{}, nowFn), logger.Nop(), nowFn)
	return &fixture{orch: orch, store: store, upstream: fu, clock: clock}
}

func (fx *fixture) advance(d time.Duration) {
	*fx.clock = fx.clock.Add(d)
}

func TestGetBookmarksPopulatesCacheOnMiss(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	res, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{MaxResults: 10})
	if err != nil {
		t.Fatalf("GetBookmarks() error = %v", err)
	}

	if res.Cached {
		t.Error("cached = true on first fetch, want false")
	}
	if len(res.Bookmarks) != 2 {
		t.Fatalf("bookmarks = %d, want 2", len(res.Bookmarks))
	}
	if fx.upstream.lastOpts.MaxResults != 10 {
		t.Errorf("upstream max results = %d, want 10", fx.upstream.lastOpts.MaxResults)
	}
	if res.User == nil || res.User.ID != "u1" {
		t.Errorf("user = %+v", res.User)
	}
	if res.LastSyncedAt.IsZero() {
		t.Error("lastSyncedAt not stamped after cache write")
	}

	entry, err := fx.store.ReadCache(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || len(entry.Bookmarks) != 2 {
		t.Fatalf("cache after fetch = %+v, want 2 bookmarks", entry)
	}

	logs, err := fx.store.RecentLogs(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Status != domain.SyncSuccess || logs[0].BookmarksAdded != 2 {
		t.Errorf("sync log = %+v, want one success with 2 added", logs)
	}
}

func TestGetBookmarksServesFreshCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{}); err != nil {
		t.Fatal(err)
	}
	fx.advance(10 * time.Minute)

	res, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{})
	if err != nil {
		t.Fatalf("GetBookmarks() error = %v", err)
	}

	if !res.Cached {
		t.Error("cached = false with a fresh entry, want true")
	}
	if len(res.Bookmarks) != 2 {
		t.Errorf("bookmarks = %d, want 2", len(res.Bookmarks))
	}
	if fx.upstream.bookmarksCalls != 1 {
		t.Errorf("upstream bookmarks calls = %d, want 1 (cache hit must not refetch)", fx.upstream.bookmarksCalls)
	}
	// Identity stays live on every request.
	if fx.upstream.meCalls != 2 {
		t.Errorf("me calls = %d, want 2", fx.upstream.meCalls)
	}

	// Cache hit still records a zero-delta success sync.
	logs, err := fx.store.RecentLogs(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].BookmarksAdded != 0 || logs[0].Status != domain.SyncSuccess {
		t.Errorf("logs = %+v, want zero-delta success on top", logs)
	}
}

func TestGetBookmarksStaleCacheRefetches(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{}); err != nil {
		t.Fatal(err)
	}
	fx.advance(domain.CacheTTL) // boundary is strict, exactly 1h is stale

	res, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached {
		t.Error("cached = true for stale entry, want refetch")
	}
	if fx.upstream.bookmarksCalls != 2 {
		t.Errorf("upstream bookmarks calls = %d, want 2", fx.upstream.bookmarksCalls)
	}
}

func TestGetBookmarksForceRefreshBypassesCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{}); err != nil {
		t.Fatal(err)
	}

	res, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached {
		t.Error("cached = true on forced refresh")
	}
	if fx.upstream.bookmarksCalls != 2 {
		t.Errorf("upstream bookmarks calls = %d, want 2", fx.upstream.bookmarksCalls)
	}

	logs, _ := fx.store.RecentLogs(ctx, "u1", 1)
	if len(logs) != 1 || logs[0].Type != domain.SyncManual {
		t.Errorf("forced refresh log = %+v, want manual sync type", logs)
	}
}

func TestGetBookmarksPaginationBypassesCacheAndWrite(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{}); err != nil {
		t.Fatal(err)
	}
	cached, _ := fx.store.ReadCache(ctx, "u1")

	fx.upstream.page.Data = []upstream.Tweet{{ID: "2001", Text: "page two", AuthorID: "a1"}}
	res, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{PaginationToken: "page2"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached {
		t.Error("paginated request served from cache")
	}
	if fx.upstream.lastOpts.PaginationToken != "page2" {
		t.Errorf("pagination token = %q", fx.upstream.lastOpts.PaginationToken)
	}

	// Page two must not overwrite the first-page snapshot.
	after, _ := fx.store.ReadCache(ctx, "u1")
	if len(after.Bookmarks) != len(cached.Bookmarks) {
		t.Errorf("cache overwritten by paginated fetch: %d -> %d bookmarks", len(cached.Bookmarks), len(after.Bookmarks))
	}
}

func TestGetBookmarksPreservesBookmarkedAt(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{})
	if err != nil {
		t.Fatal(err)
	}
	firstSeen := first.Bookmarks[0].BookmarkedAt

	fx.advance(2 * time.Hour)
	fx.upstream.page.Data = append(fx.upstream.page.Data, upstream.Tweet{ID: "3001", Text: "brand new", AuthorID: "a1"})

	second, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{})
	if err != nil {
		t.Fatal(err)
	}

	byID := map[string]domain.Bookmark{}
	for _, b := range second.Bookmarks {
		byID[b.ID] = b
	}
	if got := byID["1001"].BookmarkedAt; !got.Equal(firstSeen) {
		t.Errorf("bookmarkedAt drifted across refresh: %v -> %v", firstSeen, got)
	}
	if got := byID["3001"].BookmarkedAt; !got.Equal(*fx.clock) {
		t.Errorf("new bookmark stamp = %v, want current clock %v", got, *fx.clock)
	}

	logs, _ := fx.store.RecentLogs(ctx, "u1", 1)
	if logs[0].BookmarksAdded != 1 || logs[0].BookmarksUpdated != 2 {
		t.Errorf("delta = +%d/~%d, want +1/~2", logs[0].BookmarksAdded, logs[0].BookmarksUpdated)
	}
}

func TestGetBookmarksRateLimited(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.upstream.bookmarksErr = domain.E(domain.KindRateLimit, "upstream returned 429 - Too Many Requests")

	_, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{})
	if err == nil {
		t.Fatal("GetBookmarks() error = nil, want rate limit error")
	}
	if got := domain.KindOf(err); got != domain.KindRateLimit {
		t.Errorf("KindOf() = %v, want %v", got, domain.KindRateLimit)
	}

	// No cache mutation on failure.
	entry, _ := fx.store.ReadCache(ctx, "u1")
	if entry != nil {
		t.Errorf("cache = %+v after failed sync, want absent", entry)
	}

	// An error audit record was attempted.
	logs, _ := fx.store.RecentLogs(ctx, "u1", 10)
	if len(logs) != 1 || logs[0].Status != domain.SyncError {
		t.Fatalf("logs = %+v, want one error entry", logs)
	}
	if logs[0].ErrorMessage == "" {
		t.Error("error log entry has no message")
	}
	if !logs[0].CompletedAt.IsZero() {
		t.Error("error log entry should not be completed")
	}
}

func TestGetBookmarksAuthFailureOnIdentity(t *testing.T) {
	fx := newFixture(t)
	fx.upstream.meErr = domain.E(domain.KindAuth, "upstream returned 401 - token expired")

	_, err := fx.orch.GetBookmarks(context.Background(), fx.upstream, Request{})
	if err == nil {
		t.Fatal("GetBookmarks() error = nil, want auth error")
	}
	if got := domain.KindOf(err); got != domain.KindAuth {
		t.Errorf("KindOf() = %v, want %v", got, domain.KindAuth)
	}
	if fx.upstream.bookmarksCalls != 0 {
		t.Error("bookmarks endpoint called after identity failure")
	}
}

func TestAddBookmarkInvalidatesCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{}); err != nil {
		t.Fatal(err)
	}

	if err := fx.orch.AddBookmark(ctx, fx.upstream, "123"); err != nil {
		t.Fatalf("AddBookmark() error = %v", err)
	}
	if len(fx.upstream.added) != 1 || fx.upstream.added[0] != "123" {
		t.Errorf("upstream add calls = %v, want [123]", fx.upstream.added)
	}

	entry, err := fx.store.ReadCache(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Error("cache still present after add, want invalidated")
	}
}

func TestRemoveBookmarkInvalidatesCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{}); err != nil {
		t.Fatal(err)
	}
	if err := fx.orch.RemoveBookmark(ctx, fx.upstream, "1001"); err != nil {
		t.Fatalf("RemoveBookmark() error = %v", err)
	}
	if len(fx.upstream.removed) != 1 {
		t.Errorf("upstream remove calls = %v", fx.upstream.removed)
	}

	entry, _ := fx.store.ReadCache(ctx, "u1")
	if entry != nil {
		t.Error("cache still present after remove, want invalidated")
	}
}

func TestCacheStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	status, err := fx.orch.CacheStatus(ctx, fx.upstream)
	if err != nil {
		t.Fatalf("CacheStatus() error = %v", err)
	}
	if status.HasCache {
		t.Error("hasCache = true before any sync")
	}

	if _, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{}); err != nil {
		t.Fatal(err)
	}
	fx.advance(25 * time.Minute)

	status, err = fx.orch.CacheStatus(ctx, fx.upstream)
	if err != nil {
		t.Fatal(err)
	}
	if !status.HasCache || !status.IsFresh {
		t.Errorf("status = %+v, want fresh cache", status)
	}
	if status.CacheAgeMinutes != 25 {
		t.Errorf("cacheAgeMinutes = %d, want 25", status.CacheAgeMinutes)
	}
	if status.BookmarksCount != 2 {
		t.Errorf("bookmarksCount = %d, want 2", status.BookmarksCount)
	}

	fx.advance(40 * time.Minute) // 65 minutes total
	status, err = fx.orch.CacheStatus(ctx, fx.upstream)
	if err != nil {
		t.Fatal(err)
	}
	if status.IsFresh {
		t.Error("isFresh = true at 65 minutes, want stale")
	}
}

func TestClearCacheLogsManualSync(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.orch.GetBookmarks(ctx, fx.upstream, Request{}); err != nil {
		t.Fatal(err)
	}
	if err := fx.orch.ClearCache(ctx, fx.upstream); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}

	entry, _ := fx.store.ReadCache(ctx, "u1")
	if entry != nil {
		t.Error("cache present after explicit clear")
	}

	logs, _ := fx.store.RecentLogs(ctx, "u1", 1)
	if len(logs) != 1 || logs[0].Type != domain.SyncManual || logs[0].Status != domain.SyncSuccess {
		t.Errorf("clear log = %+v, want manual success", logs)
	}
}

func TestRefreshUserRecordsScheduledSync(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if err := fx.orch.RefreshUser(ctx, fx.upstream, "u1"); err != nil {
		t.Fatalf("RefreshUser() error = %v", err)
	}

	entry, err := fx.store.ReadCache(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil || len(entry.Bookmarks) != 2 {
		t.Fatalf("cache after scheduled refresh = %+v", entry)
	}

	logs, _ := fx.store.RecentLogs(ctx, "u1", 1)
	if len(logs) != 1 || logs[0].Type != domain.SyncScheduled {
		t.Errorf("log = %+v, want scheduled sync", logs)
	}
}
