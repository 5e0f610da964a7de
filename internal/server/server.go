// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: the one place where concrete backends are
// chosen and the whole dependency graph is wired —
//
//	store (sqlite or memory) → services → handlers → routes
//
// Everything below this package programs against interfaces; everything
// concrete is decided here, once, at startup.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/appforge/internal/ai"
	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/auth"
	"github.com/sakif/appforge/internal/billing"
	"github.com/sakif/appforge/internal/gitbridge"
	"github.com/sakif/appforge/internal/handler"
	"github.com/sakif/appforge/internal/middleware"
	"github.com/sakif/appforge/internal/repository"
	"github.com/sakif/appforge/internal/repository/memory"
	sqliteRepo "github.com/sakif/appforge/internal/repository/sqlite"
	"github.com/sakif/appforge/internal/service"
	"github.com/sakif/appforge/internal/workspace"
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port int

	// StorageBackend selects the store implementation: "sqlite" (default)
	// or "memory". The memory backend is for development and tests — all
	// data is lost on restart.
	StorageBackend string
	DBPath         string

	// WorkspaceDir is the base for per-project scratch directories
	// (snapshots for AI context, checkouts for git).
	WorkspaceDir string

	JWTSecret string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	StripeWebhookSecret string

	// Model provider keys. Anthropic wins when both are set.
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string

	// RedisAddr enables the rate limiter when non-empty.
	RedisAddr     string
	RedisPassword string
}

// Server owns the router and the resources that must be released on
// shutdown (the store, the Redis client).
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  repository.Store
	rdb    *redis.Client
}

// New creates a Server with its full dependency graph wired.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if cfg.RedisAddr != "" {
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// newStore picks the storage backend. The choice happens exactly once, here;
// nothing else in the codebase knows which backend is live.
func newStore(cfg Config) (repository.Store, error) {
	switch cfg.StorageBackend {
	case "", "sqlite":
		return sqliteRepo.New(cfg.DBPath)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want sqlite or memory)", cfg.StorageBackend)
	}
}

// newProvider picks the model provider from the configured keys.
func (s *Server) newProvider() ai.Provider {
	switch {
	case s.config.AnthropicAPIKey != "":
		return ai.NewAnthropic(s.config.AnthropicAPIKey, s.config.AnthropicModel, s.logger)
	case s.config.OpenAIAPIKey != "":
		return ai.NewOpenAI(s.config.OpenAIAPIKey, s.config.OpenAIModel, s.logger)
	default:
		s.logger.Warn("no model provider configured — generation endpoints will fail")
		return unconfiguredProvider{}
	}
}

// unconfiguredProvider stands in when no API key was supplied, so the rest
// of the app works and generation requests fail with a clear 502.
type unconfiguredProvider struct{}

func (unconfiguredProvider) Name() string { return "unconfigured" }

func (unconfiguredProvider) Generate(context.Context, ai.Request) (*ai.Result, error) {
	return nil, apperror.Upstream("model API", errors.New("no provider API key configured"))
}

// setupRoutes wires middleware, services, handlers, and routes.
//
// MIDDLEWARE ORDER MATTERS: RequestID and RealIP run first so the logger
// and rate limiter see the request's identity; Recoverer runs before
// anything that could panic.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	if s.rdb != nil {
		s.router.Use(middleware.RateLimit(s.rdb, middleware.RateLimitConfig{}, s.logger))
	}

	// === Shared infrastructure ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService()
	github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)

	ws := workspace.New(s.store, s.logger, s.config.WorkspaceDir)
	bridge := gitbridge.New(gitbridge.NewRunner(gitbridge.DefaultCommandTimeout), s.logger)
	contexts := ai.NewContextBuilder(ws, s.logger)
	provider := s.newProvider()

	// === Services ===
	authSvc := service.NewAuthService(s.store, tokens, passwords, s.logger)
	projectSvc := service.NewProjectService(s.store, s.store, ws, s.logger)
	generationSvc := service.NewGenerationService(s.store, provider, contexts, s.logger)
	gitSvc := service.NewGitService(s.store, s.store, ws, bridge, s.logger)
	billingSvc := service.NewBillingService(s.store, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authSvc, github, s.logger)
	projectHandler := handler.NewProjectHandler(projectSvc, s.logger)
	generationHandler := handler.NewGenerationHandler(generationSvc, s.logger)
	gitHandler := handler.NewGitHandler(gitSvc, s.logger)
	billingHandler := handler.NewBillingHandler(billingSvc, billing.NewVerifier(s.config.StripeWebhookSecret), s.logger)

	// === Routes ===
	s.router.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		// Stripe authenticates with its signature header, not a session.
		r.Post("/billing/webhook", billingHandler.HandleWebhook)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/auth/me", authHandler.HandleMe)

			r.Get("/github/connect", authHandler.HandleGitHubConnect)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
			r.Post("/github/disconnect", authHandler.HandleGitHubDisconnect)

			r.Post("/projects", projectHandler.HandleCreate)
			r.Get("/projects", projectHandler.HandleList)
			r.Get("/projects/{projectID}", projectHandler.HandleGet)
			r.Patch("/projects/{projectID}", projectHandler.HandleUpdate)
			r.Delete("/projects/{projectID}", projectHandler.HandleDelete)

			r.Get("/projects/{projectID}/files", projectHandler.HandleListFiles)
			r.Get("/projects/{projectID}/file", projectHandler.HandleGetFile)
			r.Put("/projects/{projectID}/files", projectHandler.HandleSaveFile)
			r.Delete("/projects/{projectID}/files", projectHandler.HandleDeleteFile)

			r.Post("/projects/{projectID}/git/connect", gitHandler.HandleConnect)
			r.Post("/projects/{projectID}/git/disconnect", gitHandler.HandleDisconnect)
			r.Post("/projects/{projectID}/git/clone", gitHandler.HandleClone)
			r.Post("/projects/{projectID}/git/push", gitHandler.HandlePush)
			r.Post("/projects/{projectID}/git/pull", gitHandler.HandlePull)

			r.Post("/generate", generationHandler.HandleGenerate)
			r.Get("/generations", generationHandler.HandleHistory)
		})
	})

	return nil
}

// Start runs the HTTP server and handles graceful shutdown:
//
//  1. stop accepting new connections
//  2. wait for in-flight requests (30s timeout)
//  3. close the store (flushes sqlite WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.store.Close()
	if s.rdb != nil {
		defer s.rdb.Close()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // model calls and git syncs run long
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("backend", storeName(s.config.StorageBackend)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func storeName(backend string) string {
	if backend == "" {
		return "sqlite"
	}
	return backend
}
