package upstream

import "github.com/perchkeep/perch/internal/domain"

// RawPage is one page of the upstream bookmarks endpoint, exactly as the
// platform returns it: posts plus the included users/media side tables.
type RawPage struct {
	Data     []Tweet         `json:"data"`
	Includes Includes        `json:"includes"`
	Meta     domain.PageMeta `json:"meta"`
}

// Includes carries the side tables referenced by the posts in Data.
type Includes struct {
	Users []User      `json:"users"`
	Media []MediaItem `json:"media"`
}

// Tweet is a raw upstream post.
type Tweet struct {
	ID                 string              `json:"id"`
	Text               string              `json:"text"`
	AuthorID           string              `json:"author_id"`
	CreatedAt          string              `json:"created_at"`
	PublicMetrics      *TweetMetrics       `json:"public_metrics,omitempty"`
	ContextAnnotations []ContextAnnotation `json:"context_annotations,omitempty"`
	Attachments        *Attachments        `json:"attachments,omitempty"`
}

// TweetMetrics are the upstream public engagement counters.
type TweetMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

// Attachments references included media by key.
type Attachments struct {
	MediaKeys []string `json:"media_keys"`
}

// ContextAnnotation is the platform's topic annotation on a post.
type ContextAnnotation struct {
	Domain AnnotationLabel `json:"domain"`
	Entity AnnotationLabel `json:"entity"`
}

// AnnotationLabel is one half of a context annotation.
type AnnotationLabel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// User is an entry of the included-users side table.
type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
	Verified        bool   `json:"verified"`
}

// MediaItem is an entry of the included-media side table.
type MediaItem struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
}

// apiError is the error envelope the platform attaches to non-2xx responses.
type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}
