package domain

import "time"

// CacheTTL is the single freshness window shared by the read-path cache
// decision and the cache-status endpoint. Keep both on this constant.
const CacheTTL = time.Hour

// CacheEntry is the stored snapshot of one user's bookmark set.
// There is exactly one entry per user, overwritten wholesale on refresh.
//
// The cache is advisory: concurrent syncs for the same user may race on
// the overwrite with last-write-wins semantics. The upstream platform
// remains ground truth.
type CacheEntry struct {
	UserID       string     `json:"userId"`
	Bookmarks    []Bookmark `json:"bookmarks"`
	Meta         PageMeta   `json:"meta"`
	LastSyncedAt time.Time  `json:"lastSyncedAt"`
}

// PageMeta mirrors the upstream pagination metadata stored alongside the
// cached bookmark set.
type PageMeta struct {
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

// IsFresh reports whether a cache entry written at lastSyncedAt is still
// inside the TTL at the given instant. The boundary is strict: an entry
// exactly CacheTTL old is stale.
func IsFresh(now, lastSyncedAt time.Time) bool {
	return now.Sub(lastSyncedAt) < CacheTTL
}
