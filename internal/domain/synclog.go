package domain

import "time"

// SyncType records what triggered a sync attempt.
type SyncType string

const (
	SyncManual    SyncType = "manual"
	SyncScheduled SyncType = "scheduled"
	SyncAuto      SyncType = "auto"
)

// SyncStatus records the outcome of a sync attempt.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
	SyncPartial SyncStatus = "partial"
)

// SyncLogEntry is one append-only audit record per sync attempt.
// Entries are written once and never mutated afterwards.
type SyncLogEntry struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Type             SyncType   `json:"syncType"`
	Status           SyncStatus `json:"status"`
	BookmarksAdded   int        `json:"bookmarksAdded"`
	BookmarksUpdated int        `json:"bookmarksUpdated"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`

	// CompletedAt is zero for entries recording a failed sync.
	CompletedAt time.Time `json:"completedAt,omitempty"`
}
