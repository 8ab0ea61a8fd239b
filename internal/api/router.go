package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures a new chi router with all the application's routes.
// A nil limiter disables rate limiting on the relay route.
func NewRouter(relayHandler *RelayHandler, modelHandler *ModelHandler, limiter *IPRateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// --- Global Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Liveness probe.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	})

	// --- API Version 1 Routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Plain JSON routes get a request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/models", modelHandler.HandleListModels)
			r.Get("/models/{kind}", modelHandler.HandleGetModel)
		})

		// The relay holds the connection open for as long as the upstream
		// streams, so it must NOT have a timeout. The upstream leg carries its
		// own idle-read bound.
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.Middleware)
			}
			r.Post("/chat/completions", relayHandler.HandleChatCompletions)
		})
	})

	return r
}
