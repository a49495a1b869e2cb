// Package api exposes the REST surface described in spec.md §6: tenant
// registration and auth, metrics, insights, event history, and network
// summaries, all behind bearer-token auth and per-tier rate limiting.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/deepclaw/nostr-analytics/internal/cache"
	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/registry"
	"github.com/deepclaw/nostr-analytics/internal/scanner"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

// Server wires the HTTP API to its dependencies.
type Server struct {
	store    *store.Store
	registry *registry.Registry
	scanner  *scanner.Scanner
	cache    *cache.Cache
	cfg      *config.Config
	logger   *ops.Logger

	httpServer *http.Server
}

// New builds the HTTP server and registers every route.
func New(cfg *config.Config, s *store.Store, reg *registry.Registry, sc *scanner.Scanner, c *cache.Cache, logger *ops.Logger) *Server {
	srv := &Server{store: s, registry: reg, scanner: sc, cache: c, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(srv.requestLogMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Get("/health", srv.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", srv.handleRegister)
		r.Group(func(r chi.Router) {
			r.Use(srv.authMiddleware)
			r.Get("/me", srv.handleMe)
			r.Post("/webhook", srv.handleSetWebhook)
			r.Post("/token", srv.handleIssueToken)
			r.Delete("/token/{token}", srv.handleRevokeToken)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(srv.authMiddleware)
		r.Use(srv.rateLimitMiddleware(cfg.RateLimit))

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/posts", srv.handleListPosts)
			r.Get("/posts/{noteID}", srv.handleGetPost)
		})

		r.Route("/insights", func(r chi.Router) {
			r.Get("/distribution", srv.handleInsight("distribution"))
			r.Get("/zone", srv.handleInsight("zone"))
			r.Get("/recommendation", srv.handleInsight("recommendation"))
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", srv.handleListEvents)
			r.Get("/{eventID}", srv.handleGetEvent)
			r.Post("/ack", srv.handleAcknowledgeEvents)
		})

		r.Route("/network", func(r chi.Router) {
			r.Get("/followers", srv.handleListFollowers)
			r.Get("/following", srv.handleListFollowing)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/scan", srv.handleTriggerScan)
		})
	})

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.logger != nil {
			s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
		}
	})
}

// Run starts the HTTP server and blocks until ctx is cancelled, at which
// point it shuts down gracefully within the configured grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Server.ShutdownGraceMs)*time.Millisecond)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
