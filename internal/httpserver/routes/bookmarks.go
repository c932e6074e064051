package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/httpserver/handlers"
	"github.com/perchkeep/perch/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	r.Route("/api/bookmarks", func(r chi.Router) {
		r.Use(mw.RequireSession(d.Sessions, d.Logger))
		r.Get("/", handlers.Bookmarks(d))
		r.Post("/", handlers.AddBookmark(d))
		r.Delete("/", handlers.RemoveBookmark(d))
	})
}
