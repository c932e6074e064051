package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/httpserver/handlers"
	"github.com/perchkeep/perch/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/login", handlers.Login(d))
		r.Get("/callback", handlers.Callback(d))
		r.Post("/logout", handlers.Logout(d))
		r.With(mw.RequireSession(d.Sessions, d.Logger)).Get("/me", handlers.Me(d))
	})
}
