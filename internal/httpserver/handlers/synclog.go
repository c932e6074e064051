package handlers

import (
	"net/http"
	"strconv"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/httpserver/mw"
)

const defaultLogLimit = 20

// SyncLogs serves GET /api/sync-log: the signed-in user's recent sync
// attempts, newest first.
func SyncLogs(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())

		limit := defaultLogLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		logs, err := d.Store.RecentLogs(r.Context(), sess.UserID, limit)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if logs == nil {
			logs = []domain.SyncLogEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
	}
}
