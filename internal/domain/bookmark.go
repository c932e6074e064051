package domain

import "time"

// Bookmark is the canonical shape of a saved post after normalization.
// Everything downstream (cache, HTTP responses, dashboard) works on this
// structure, never on raw upstream payloads.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the upstream post identifier.
	// Unique within one user's bookmark set.
	ID string `json:"id"`

	// Text is the raw post body.
	Text string `json:"text"`

	// Author is resolved from the response's included-users side table.
	// A default stand-in is used when the lookup misses.
	Author Author `json:"author"`

	// ─────────────────────────────
	// Timestamps
	// ─────────────────────────────

	// CreatedAt is when the post was originally published.
	CreatedAt time.Time `json:"createdAt"`

	// BookmarkedAt is when this system first recorded the bookmark.
	// The upstream API does not expose a bookmark timestamp, so the
	// first-seen time is preserved across refreshes.
	BookmarkedAt time.Time `json:"bookmarkedAt"`

	// ─────────────────────────────
	// Derived data
	// ─────────────────────────────

	// Metrics are the post's public engagement counters.
	Metrics Metrics `json:"metrics"`

	// Media is resolved from media-key references, in the order the
	// post references them. Unresolvable keys are dropped.
	Media []Media `json:"media,omitempty"`

	// Tags are lowercase hashtags extracted from Text.
	Tags []string `json:"tags"`

	// Category is one of the Category* constants,
	// derived deterministically from Text and context annotations.
	Category string `json:"category"`
}

// Author describes the account that published a bookmarked post.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Verified  bool   `json:"verified"`
}

// Metrics holds public engagement counters, zero when absent upstream.
type Metrics struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
	Quotes   int `json:"quotes"`
}

// Media is a single resolved media attachment.
type Media struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Fixed category taxonomy. Categorization picks exactly one.
const (
	CategoryTech          = "Tech"
	CategoryEducation     = "Education"
	CategoryBusiness      = "Business"
	CategorySports        = "Sports"
	CategoryEntertainment = "Entertainment"
	CategoryGeneral       = "General"
)

// Categories lists the full taxonomy in display order.
func Categories() []string {
	return []string{
		CategoryTech,
		CategoryEducation,
		CategoryBusiness,
		CategorySports,
		CategoryEntertainment,
		CategoryGeneral,
	}
}

// DefaultAvatarURL is used when the author lookup misses.
const DefaultAvatarURL = "/placeholder.svg?height=40&width=40"

// DefaultAuthor is the stand-in used when a post's author id cannot be
// resolved from the included-users side table.
func DefaultAuthor(id string) Author {
	return Author{
		ID:        id,
		Name:      "Unknown",
		Username:  "unknown",
		AvatarURL: DefaultAvatarURL,
	}
}
