package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/httpserver/handlers"
	"github.com/perchkeep/perch/internal/httpserver/mw"
)

func init() { Register(registerSyncLog) }

func registerSyncLog(r chi.Router, d deps.Deps) {
	r.With(mw.RequireSession(d.Sessions, d.Logger)).Get("/api/sync-log", handlers.SyncLogs(d))
}
