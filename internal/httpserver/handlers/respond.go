package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/perchkeep/perch/internal/domain"
	"github.com/perchkeep/perch/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter string `json:"retryAfter,omitempty"`
}

// writeError maps a classified error to its stable status code and
// user-facing guidance. Internal detail stays in the server log only.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	kind := domain.KindOf(err)
	log.Error("request failed",
		logger.String("kind", string(kind)),
		logger.Error(err))

	resp := errorResponse{Error: kind.Guidance()}
	if kind == domain.KindRateLimit {
		resp.RetryAfter = "15 minutes"
	}
	writeJSON(w, kind.HTTPStatus(), resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
