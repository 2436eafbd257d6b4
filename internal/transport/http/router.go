package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-recipes-api/internal/application/auth"
	"github.com/go-recipes-api/internal/config"
	"github.com/go-recipes-api/internal/transport/http/handler"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, svc auth.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	// Slightly above the service deadline so the handler can still write its own error.
	r.Use(chimiddleware.Timeout(cfg.OperationTimeout + time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthH := handler.NewHealthHandler()
	challengeH := handler.NewChallengeHandler(svc)
	credentialH := handler.NewCredentialHandler(svc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check", healthH.Ping)

		r.Post("/signup/challenge", challengeH.IssueSignup)
		r.Post("/signup/complete", credentialH.CompleteSignup)
		r.Post("/password-reset/challenge", challengeH.IssuePasswordReset)
		r.Post("/password-reset/complete", credentialH.ResetPassword)
		r.Post("/challenges/resend", challengeH.Resend)
		r.Post("/challenges/verify", challengeH.Verify)
	})

	return r
}
