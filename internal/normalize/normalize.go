package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/upstream"
)

// hashtagRe matches "#" followed by word characters.
var hashtagRe = regexp.MustCompile(`#\w+`)

// Normalizer turns raw upstream pages into canonical bookmarks. It is
// stateless apart from the category taxonomy and the injected clock;
// identical input always yields identical output.
type Normalizer struct {
	taxonomy Taxonomy
	now      func() time.Time
}

// New builds a Normalizer. A zero-value taxonomy falls back to the
// built-in keyword lists.
func New(taxonomy Taxonomy, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{taxonomy: taxonomy.withDefaults(), now: now}
}

// Normalize joins each post against the included users/media side tables
// and derives tags and category. Posts with an unresolvable author get
// the default stand-in; unresolvable media keys are dropped silently.
func (n *Normalizer) Normalize(page *upstream.RawPage) []domain.Bookmark {
	if page == nil {
		return nil
	}

	bookmarkedAt := n.now()
	bookmarks := make([]domain.Bookmark, 0, len(page.Data))
	for _, tweet := range page.Data {
		bookmarks = append(bookmarks, domain.Bookmark{
			ID:           tweet.ID,
			Text:         tweet.Text,
			Author:       resolveAuthor(tweet.AuthorID, page.Includes.Users),
			CreatedAt:    parseTime(tweet.CreatedAt),
			BookmarkedAt: bookmarkedAt,
			Metrics:      resolveMetrics(tweet.PublicMetrics),
			Media:        resolveMedia(tweet.Attachments, page.Includes.Media),
			Tags:         ExtractHashtags(tweet.Text),
			Category:     n.Categorize(tweet.Text, tweet.ContextAnnotations),
		})
	}
	return bookmarks
}

// resolveAuthor looks the author up by id in the included-users table,
// first match wins.
func resolveAuthor(authorID string, users []upstream.User) domain.Author {
	for _, u := range users {
		if u.ID == authorID {
			author := domain.Author{
				ID:        u.ID,
				Name:      u.Name,
				Username:  u.Username,
				AvatarURL: u.ProfileImageURL,
				Verified:  u.Verified,
			}
			if author.Name == "" {
				author.Name = "Unknown"
			}
			if author.Username == "" {
				author.Username = "unknown"
			}
			if author.AvatarURL == "" {
				author.AvatarURL = domain.DefaultAvatarURL
			}
			return author
		}
	}
	return domain.DefaultAuthor(authorID)
}

func resolveMetrics(m *upstream.TweetMetrics) domain.Metrics {
	if m == nil {
		return domain.Metrics{}
	}
	return domain.Metrics{
		Likes:    m.LikeCount,
		Retweets: m.RetweetCount,
		Replies:  m.ReplyCount,
		Quotes:   m.QuoteCount,
	}
}

// resolveMedia resolves media-key references in the order the post lists
// them. Keys absent from the side table are skipped, never an error.
func resolveMedia(att *upstream.Attachments, media []upstream.MediaItem) []domain.Media {
	if att == nil || len(att.MediaKeys) == 0 {
		return nil
	}

	resolved := make([]domain.Media, 0, len(att.MediaKeys))
	for _, key := range att.MediaKeys {
		for _, m := range media {
			if m.MediaKey != key {
				continue
			}
			u := m.URL
			if u == "" {
				u = m.PreviewImageURL
			}
			resolved = append(resolved, domain.Media{
				Type:   m.Type,
				URL:    u,
				Width:  m.Width,
				Height: m.Height,
			})
			break
		}
	}
	if len(resolved) == 0 {
		return nil
	}
	return resolved
}

// ExtractHashtags returns the lowercase hashtags of text, deduplicated
// in order of first appearance.
func ExtractHashtags(text string) []string {
	matches := hashtagRe.FindAllString(text, -1)
	tags := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1:])
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
