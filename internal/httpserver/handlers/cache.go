package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/httpserver/mw"
)

// CacheStatus serves GET /api/cache.
func CacheStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		client := d.NewUpstream(sess.AccessToken, sess.RefreshToken)

		status, err := d.Orchestrator.CacheStatus(r.Context(), client)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// ClearCache serves DELETE /api/cache.
func ClearCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		client := d.NewUpstream(sess.AccessToken, sess.RefreshToken)

		if err := d.Orchestrator.ClearCache(r.Context(), client); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Cache cleared successfully",
		})
	}
}

// CacheAction serves POST /api/cache. The only supported action is
// "refresh", which drops the cache so the next read fetches fresh data.
func CacheAction(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Action string `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			badRequest(w, "Invalid action")
			return
		}
		if body.Action != "refresh" {
			badRequest(w, "Invalid action")
			return
		}

		sess := mw.SessionFrom(r.Context())
		client := d.NewUpstream(sess.AccessToken, sess.RefreshToken)
		if err := d.Orchestrator.ClearCache(r.Context(), client); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Cache cleared. Next bookmarks request will fetch fresh data.",
		})
	}
}
