package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/perchkeep/perch/internal/domain"
)

func newTestStore(t *testing.T, now func() time.Time) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "perch.db"), now)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleBookmarks() []domain.Bookmark {
	return []domain.Bookmark{
		{
			ID:       "1001",
			Text:     "hello #world",
			Author:   domain.Author{ID: "u1", Name: "Ada", Username: "ada"},
			Tags:     []string{"world"},
			Category: domain.CategoryGeneral,
		},
		{
			ID:       "1002",
			Text:     "learn go",
			Author:   domain.DefaultAuthor("ghost"),
			Tags:     []string{},
			Category: domain.CategoryEducation,
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, func() time.Time { return now })
	ctx := context.Background()

	// Absent entry reads as nil without error.
	entry, err := s.ReadCache(ctx, "user-1")
	if err != nil {
		t.Fatalf("ReadCache() error = %v", err)
	}
	if entry != nil {
		t.Fatalf("ReadCache() = %+v, want nil for absent entry", entry)
	}

	syncedAt, err := s.WriteCache(ctx, "user-1", sampleBookmarks(), domain.PageMeta{ResultCount: 2, NextToken: "next"})
	if err != nil {
		t.Fatalf("WriteCache() error = %v", err)
	}
	if !syncedAt.Equal(now) {
		t.Errorf("lastSyncedAt = %v, want store clock %v", syncedAt, now)
	}

	entry, err = s.ReadCache(ctx, "user-1")
	if err != nil {
		t.Fatalf("ReadCache() error = %v", err)
	}
	if entry == nil {
		t.Fatal("ReadCache() = nil after write")
	}
	if len(entry.Bookmarks) != 2 {
		t.Errorf("bookmarks = %d, want 2", len(entry.Bookmarks))
	}
	if entry.Bookmarks[0].ID != "1001" || entry.Bookmarks[0].Author.Name != "Ada" {
		t.Errorf("bookmark[0] = %+v", entry.Bookmarks[0])
	}
	if entry.Meta.NextToken != "next" {
		t.Errorf("meta = %+v", entry.Meta)
	}
	if !entry.LastSyncedAt.Equal(now) {
		t.Errorf("stored lastSyncedAt = %v, want %v", entry.LastSyncedAt, now)
	}
}

func TestWriteCacheReplacesWholesale(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	if _, err := s.WriteCache(ctx, "user-1", sampleBookmarks(), domain.PageMeta{ResultCount: 2}); err != nil {
		t.Fatal(err)
	}
	replacement := []domain.Bookmark{{ID: "2001", Text: "only one now", Category: domain.CategoryGeneral}}
	if _, err := s.WriteCache(ctx, "user-1", replacement, domain.PageMeta{ResultCount: 1}); err != nil {
		t.Fatal(err)
	}

	entry, err := s.ReadCache(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entry.Bookmarks) != 1 || entry.Bookmarks[0].ID != "2001" {
		t.Errorf("bookmarks after upsert = %+v, want the replacement set only", entry.Bookmarks)
	}
}

func TestClearCache(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	// Clearing an absent entry is a no-op.
	if err := s.ClearCache(ctx, "nobody"); err != nil {
		t.Fatalf("ClearCache(absent) error = %v", err)
	}

	if _, err := s.WriteCache(ctx, "user-1", sampleBookmarks(), domain.PageMeta{}); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearCache(ctx, "user-1"); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}

	entry, err := s.ReadCache(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry != nil {
		t.Errorf("ReadCache() after clear = %+v, want nil", entry)
	}
}

func TestStaleCacheUsers(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := current
	s := newTestStore(t, func() time.Time { return clock })
	ctx := context.Background()

	clock = current.Add(-2 * time.Hour)
	if _, err := s.WriteCache(ctx, "stale-user", sampleBookmarks(), domain.PageMeta{}); err != nil {
		t.Fatal(err)
	}
	clock = current
	if _, err := s.WriteCache(ctx, "fresh-user", sampleBookmarks(), domain.PageMeta{}); err != nil {
		t.Fatal(err)
	}

	users, err := s.StaleCacheUsers(ctx, current.Add(-domain.CacheTTL))
	if err != nil {
		t.Fatalf("StaleCacheUsers() error = %v", err)
	}
	if len(users) != 1 || users[0] != "stale-user" {
		t.Errorf("StaleCacheUsers() = %v, want [stale-user]", users)
	}
}

func TestAppendAndPruneLogs(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	entries := []domain.SyncLogEntry{
		{
			UserID:         "user-1",
			Type:           domain.SyncAuto,
			Status:         domain.SyncSuccess,
			BookmarksAdded: 5,
			StartedAt:      base.Add(-48 * time.Hour),
			CompletedAt:    base.Add(-48 * time.Hour),
		},
		{
			UserID:       "user-1",
			Type:         domain.SyncManual,
			Status:       domain.SyncError,
			ErrorMessage: "upstream returned 429",
			StartedAt:    base.Add(-time.Hour),
		},
		{
			UserID:      "user-2",
			Type:        domain.SyncScheduled,
			Status:      domain.SyncSuccess,
			StartedAt:   base,
			CompletedAt: base,
		},
	}
	for i := range entries {
		if err := s.AppendLog(ctx, &entries[i]); err != nil {
			t.Fatalf("AppendLog(%d) error = %v", i, err)
		}
	}

	logs, err := s.RecentLogs(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("RecentLogs() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("RecentLogs() = %d entries, want 2", len(logs))
	}
	// Newest first.
	if logs[0].Status != domain.SyncError || logs[0].ErrorMessage != "upstream returned 429" {
		t.Errorf("logs[0] = %+v", logs[0])
	}
	if !logs[0].CompletedAt.IsZero() {
		t.Error("error entry should have no completion timestamp")
	}
	if logs[1].BookmarksAdded != 5 || logs[1].CompletedAt.IsZero() {
		t.Errorf("logs[1] = %+v", logs[1])
	}

	pruned, err := s.PruneLogs(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneLogs() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("PruneLogs() = %d, want 1", pruned)
	}

	logs, err = s.RecentLogs(ctx, "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Errorf("logs after prune = %d, want 1", len(logs))
	}
}
