package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", apiHandler.RegisterHandler)
		r.Post("/login", apiHandler.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)
			r.Post("/logout", apiHandler.LogoutHandler)
		})
	})

	r.Route("/chat", func(r chi.Router) {
		r.Use(apiHandler.JWTAuthMiddleware)

		r.Post("/session/create", apiHandler.CreateSessionHandler)
		r.Get("/session/history", apiHandler.SessionHistoryHandler)
		r.Get("/session/{sessionID}/chat-history", apiHandler.ChatHistoryHandler)
		r.Post("/session/{sessionID}/send", apiHandler.SendMessageHandler)

		r.Post("/{chatID}/feedback", apiHandler.FeedbackHandler)
	})

	return r
}
