package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "token"},
	}))
	r.Use(s.limitBody)

	r.Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Server is Live"))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/check-auth", s.handleCheckAuth)
			r.Put("/update-profile", s.handleUpdateProfile)
		})
	})

	r.Route("/api/messages", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/users", s.handleSidebarUsers)
		r.Get("/{id}", s.handleConversation)
		r.Post("/send/{id}", s.handleSend)
		r.Put("/mark/{id}", s.handleMarkSeen)
	})

	r.Get("/ws", s.handleWebsocket)

	return r
}
