/**
 * @description
 * This file sets up the HTTP router for the registration-service. It defines the
 * funnel API endpoints and the spreadsheet store endpoint, and applies the
 * standard middleware stack.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware; the funnel is driven by a browser.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the registration service.
func Routes(h *FunnelHandlers) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		// The funnel API: one session per client, driven step by step.
		r.Route("/funnel", func(r chi.Router) {
			r.Post("/", h.CreateFunnelHandler)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetFunnelHandler)
				r.Post("/registration", h.SubmitRegistrationHandler)
				r.Post("/pay", h.InitiatePaymentHandler)
				r.Get("/payment/callback", h.PaymentCallbackHandler)
			})
		})

		// Direct spreadsheet append, kept unauthenticated to match the
		// observed design.
		r.Post("/store-user-data", h.StoreUserDataHandler)
	})

	return r
}
