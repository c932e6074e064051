package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/logger"
)

type readyzResponse struct {
	Ready bool `json:"ready"`
}

// Readyz reports whether the backing stores answer. Redis is optional
// at startup but required for readiness once configured.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := true

		if d.Store != nil {
			if err := d.Store.Ping(r.Context()); err != nil {
				d.Logger.Warn("readiness: store ping failed", logger.Error(err))
				ready = false
			}
		}
		if d.RedisClient != nil {
			if err := d.RedisClient.Ping(r.Context()).Err(); err != nil {
				d.Logger.Warn("readiness: redis ping failed", logger.Error(err))
				ready = false
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(readyzResponse{Ready: ready})
	}
}
