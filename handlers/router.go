package handlers

import (
	"context"
	"net/http"
	"time"

	"aether-notes/middleware"
	"aether-notes/services"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Pinger reports whether the storage handle is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Notes          *services.NoteService
	Auth           *services.AuthService
	Verifier       middleware.Verifier
	Health         Pinger
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires the public surface under /api, the authenticated surface
// under /api-private and signup/login under /auth.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", health(cfg.Health, cfg.Logger))

	public := NewNotesHandler(cfg.Notes, PublicScope)
	r.Route("/api", public.Routes)

	private := NewNotesHandler(cfg.Notes, CallerScope)
	r.Route("/api-private", func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Verifier, cfg.Logger))
		private.Routes(r)
	})

	auth := NewAuthHandler(cfg.Auth)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", auth.Signup)
		r.Post("/login", auth.Login)
	})

	return r
}

func health(p Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			Error(w, http.StatusServiceUnavailable, "Storage unavailable")
			return
		}
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
