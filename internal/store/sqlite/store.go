// Package sqlite persists the per-user bookmark cache and the
// append-only sync log. One cache row per user, overwritten wholesale on
// refresh; the store's upsert-by-key is the only serialization point, so
// concurrent syncs for the same user resolve to last write wins.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/perchkeep/perch/internal/domain"
)

//go:embed schema.sql
var schema string

// Store wraps the SQLite database holding cache and log rows.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at path and applies the
// schema and production pragmas.
func New(path string, now func() time.Time) (*Store, error) {
	if now == nil {
		now = time.Now
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, now: now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// cachePayload is the JSON document stored in bookmark_cache.payload.
type cachePayload struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	Meta      domain.PageMeta   `json:"meta"`
}

// ReadCache returns the cached bookmark set for a user, or nil when no
// entry exists.
func (s *Store) ReadCache(ctx context.Context, userID string) (*domain.CacheEntry, error) {
	var (
		raw        []byte
		lastSynced time.Time
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, last_synced_at FROM bookmark_cache WHERE user_id = ?",
		userID,
	).Scan(&raw, &lastSynced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindStore, "failed to read bookmark cache", err)
	}

	var payload cachePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, domain.Wrap(domain.KindStore, "failed to decode cached bookmarks", err)
	}

	return &domain.CacheEntry{
		UserID:       userID,
		Bookmarks:    payload.Bookmarks,
		Meta:         payload.Meta,
		LastSyncedAt: lastSynced,
	}, nil
}

// WriteCache upserts the user's cache entry, replacing the previous
// bookmark set wholesale, and stamps last_synced_at with the store clock.
// Returns the stamped time.
func (s *Store) WriteCache(ctx context.Context, userID string, bookmarks []domain.Bookmark, meta domain.PageMeta) (time.Time, error) {
	raw, err := json.Marshal(cachePayload{Bookmarks: bookmarks, Meta: meta})
	if err != nil {
		return time.Time{}, domain.Wrap(domain.KindStore, "failed to encode bookmarks", err)
	}

	syncedAt := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookmark_cache (user_id, payload, last_synced_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			payload        = excluded.payload,
			last_synced_at = excluded.last_synced_at`,
		userID, raw, syncedAt,
	)
	if err != nil {
		return time.Time{}, domain.Wrap(domain.KindStore, "failed to write bookmark cache", err)
	}
	return syncedAt, nil
}

// ClearCache deletes the user's cache entry. Deleting an absent entry is
// a no-op, not an error.
func (s *Store) ClearCache(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM bookmark_cache WHERE user_id = ?", userID,
	); err != nil {
		return domain.Wrap(domain.KindStore, "failed to clear bookmark cache", err)
	}
	return nil
}

// StaleCacheUsers lists users whose cache entry is older than cutoff.
// Used by the scheduled refresher.
func (s *Store) StaleCacheUsers(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM bookmark_cache WHERE last_synced_at < ?", cutoff.UTC(),
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindStore, "failed to list stale cache entries", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Wrap(domain.KindStore, "failed to scan cache row", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindStore, "failed to iterate cache rows", err)
	}
	return users, nil
}

// AppendLog inserts one sync audit record. Entries are insert-only and
// never updated afterwards. Callers treat failures here as non-fatal.
func (s *Store) AppendLog(ctx context.Context, e *domain.SyncLogEntry) error {
	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}

	var completedAt any
	if !e.CompletedAt.IsZero() {
		completedAt = e.CompletedAt.UTC()
	}
	var errMsg any
	if e.ErrorMessage != "" {
		errMsg = e.ErrorMessage
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log
			(id, user_id, sync_type, status, bookmarks_added, bookmarks_updated, error_message, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.UserID, string(e.Type), string(e.Status),
		e.BookmarksAdded, e.BookmarksUpdated, errMsg,
		e.StartedAt.UTC(), completedAt,
	)
	if err != nil {
		return domain.Wrap(domain.KindStore, "failed to append sync log", err)
	}
	return nil
}

// RecentLogs returns the user's latest sync attempts, newest first.
func (s *Store) RecentLogs(ctx context.Context, userID string, limit int) ([]domain.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, sync_type, status, bookmarks_added, bookmarks_updated, error_message, started_at, completed_at
		FROM sync_log
		WHERE user_id = ?
		ORDER BY started_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindStore, "failed to query sync log", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.SyncLogEntry
	for rows.Next() {
		var (
			e           domain.SyncLogEntry
			errMsg      sql.NullString
			completedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Type, &e.Status,
			&e.BookmarksAdded, &e.BookmarksUpdated,
			&errMsg, &e.StartedAt, &completedAt,
		); err != nil {
			return nil, domain.Wrap(domain.KindStore, "failed to scan sync log row", err)
		}
		e.ErrorMessage = errMsg.String
		if completedAt.Valid {
			e.CompletedAt = completedAt.Time
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindStore, "failed to iterate sync log rows", err)
	}
	return entries, nil
}

// PruneLogs deletes sync log rows started before cutoff and reports how
// many were removed.
func (s *Store) PruneLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sync_log WHERE started_at < ?", cutoff.UTC(),
	)
	if err != nil {
		return 0, domain.Wrap(domain.KindStore, "failed to prune sync log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
