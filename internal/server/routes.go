package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"arkdrop/internal/metrics"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withRequestLogging)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.withAuth)
			r.Get("/list", s.handleList)
			r.Post("/create", s.handleCreate)
			r.Post("/favorite", s.handleFavorite)
			r.Post("/delete", s.handleDelete)
			r.Post("/clean", s.handleClean)
			r.Get("/ws", s.hub.ServeHTTP)
		})
	})

	r.With(s.withAuth).Get("/files/*", s.handleFile)

	return r
}
