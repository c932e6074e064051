package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/httpserver/mw"
	syncer "github.com/perchkeep/perch/internal/sync"
	"github.com/perchkeep/perch/internal/upstream"
)

type bookmarksResponse struct {
	Bookmarks    []domain.Bookmark `json:"bookmarks"`
	Meta         domain.PageMeta   `json:"meta"`
	User         *domain.UserInfo  `json:"user"`
	Cached       bool              `json:"cached"`
	LastSyncedAt *time.Time        `json:"lastSyncedAt,omitempty"`
	RateLimit    rateLimitInfo     `json:"rateLimitInfo"`
}

type rateLimitInfo struct {
	Remaining  int `json:"remaining"`
	MaxResults int `json:"maxResults"`
}

// Bookmarks serves GET /api/bookmarks: cached when fresh, live otherwise.
func Bookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		if sess.AccessToken == "" {
			badRequest(w, "No access token available")
			return
		}

		q := r.URL.Query()
		maxResults := upstream.DefaultPageSize
		if v := q.Get("maxResults"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				maxResults = n
			}
		}
		forceRefresh, _ := strconv.ParseBool(q.Get("forceRefresh"))

		client := d.NewUpstream(sess.AccessToken, sess.RefreshToken)
		res, err := d.Orchestrator.GetBookmarks(r.Context(), client, syncer.Request{
			MaxResults:      maxResults,
			PaginationToken: q.Get("paginationToken"),
			ForceRefresh:    forceRefresh,
		})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		resp := bookmarksResponse{
			Bookmarks: res.Bookmarks,
			Meta:      res.Meta,
			User:      res.User,
			Cached:    res.Cached,
			RateLimit: rateLimitInfo{
				Remaining:  res.Meta.ResultCount,
				MaxResults: maxResults,
			},
		}
		if !res.LastSyncedAt.IsZero() {
			t := res.LastSyncedAt
			resp.LastSyncedAt = &t
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// AddBookmark serves POST /api/bookmarks and invalidates the cache.
func AddBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		if sess.AccessToken == "" {
			badRequest(w, "No access token available")
			return
		}

		var body struct {
			TweetID string `json:"tweetId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TweetID == "" {
			badRequest(w, "Tweet ID is required")
			return
		}

		client := d.NewUpstream(sess.AccessToken, sess.RefreshToken)
		if err := d.Orchestrator.AddBookmark(r.Context(), client, body.TweetID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// RemoveBookmark serves DELETE /api/bookmarks?tweetId= and invalidates
// the cache.
func RemoveBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		if sess.AccessToken == "" {
			badRequest(w, "No access token available")
			return
		}

		tweetID := r.URL.Query().Get("tweetId")
		if tweetID == "" {
			badRequest(w, "Tweet ID is required")
			return
		}

		client := d.NewUpstream(sess.AccessToken, sess.RefreshToken)
		if err := d.Orchestrator.RemoveBookmark(r.Context(), client, tweetID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
