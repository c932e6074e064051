package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/httpserver/handlers"
	"github.com/perchkeep/perch/internal/httpserver/mw"
)

func init() { Register(registerCache) }

func registerCache(r chi.Router, d deps.Deps) {
	r.Route("/api/cache", func(r chi.Router) {
		r.Use(mw.RequireSession(d.Sessions, d.Logger))
		r.Get("/", handlers.CacheStatus(d))
		r.Delete("/", handlers.ClearCache(d))
		r.Post("/", handlers.CacheAction(d))
	})
}
