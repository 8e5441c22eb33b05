// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: the document store, services, handlers
// and middleware are all created and connected here, so every other
// package only sees the interfaces it needs.
//
//	Config → DocumentStore (jsonfile | sqlite) → repository.Documents
//	       → FavoritesService / AuthService → handlers → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/book-favorites/internal/auth"
	"github.com/sakif/book-favorites/internal/handler"
	"github.com/sakif/book-favorites/internal/middleware"
	"github.com/sakif/book-favorites/internal/ratelimit"
	"github.com/sakif/book-favorites/internal/repository"
	"github.com/sakif/book-favorites/internal/repository/jsonfile"
	sqliteRepo "github.com/sakif/book-favorites/internal/repository/sqlite"
	"github.com/sakif/book-favorites/internal/service"
)

// Store drivers accepted in Config.StoreDriver.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config holds server configuration.
type Config struct {
	Port int

	// StoreDriver selects where users and books live: DriverJSON reads
	// users.json and books.json from DataDir, DriverSQLite keeps both in
	// the database at DBPath. An sqlite database missing a collection is
	// seeded from DataDir on start.
	StoreDriver string
	DataDir     string
	DBPath      string

	JWTSecret string
	TokenTTL  time.Duration

	// RateLimit requests per RateWindow per client address.
	RateLimit  int
	RateWindow time.Duration
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Port:        8080,
		StoreDriver: DriverJSON,
		DataDir:     "data",
		DBPath:      filepath.Join("data", "favorites.db"),
		TokenTTL:    auth.DefaultTokenTTL,
		RateLimit:   100,
		RateWindow:  15 * time.Minute,
	}
}

// Server represents the HTTP server and all its dependencies.
//
// The server owns the limiter's cleanup goroutine and, for the sqlite
// driver, the database connection. Both are released by Close.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	limiter *ratelimit.Limiter
	closer  io.Closer
}

// New builds the store, services and routes described by cfg.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("configuring tokens: %w", err)
	}
	if cfg.TokenTTL > 0 {
		tokens = tokens.WithTTL(cfg.TokenTTL)
	}

	store, closer, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		limiter: ratelimit.New(cfg.RateLimit, cfg.RateWindow),
		closer:  closer,
	}
	s.setupRoutes(repository.NewDocuments(store), tokens)

	return s, nil
}

// openStore returns the DocumentStore selected by cfg.StoreDriver and,
// when it holds a resource, the io.Closer that releases it.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (repository.DocumentStore, io.Closer, error) {
	switch cfg.StoreDriver {
	case DriverJSON, "":
		store, err := jsonfile.New(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening data dir: %w", err)
		}
		return store, nil, nil

	case DriverSQLite:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if cfg.DataDir != "" {
			if err := seedFromFiles(ctx, db, cfg.DataDir, logger); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return db, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q (want %q or %q)", cfg.StoreDriver, DriverJSON, DriverSQLite)
	}
}

// seedFromFiles copies every collection the database doesn't have yet
// from the JSON files in dir. Collections already in the database are
// never overwritten.
func seedFromFiles(ctx context.Context, db *sqliteRepo.DB, dir string, logger *slog.Logger) error {
	var missing []repository.Collection
	for _, c := range []repository.Collection{repository.Users, repository.Books} {
		ok, err := db.Has(ctx, c)
		if err != nil {
			return fmt.Errorf("checking %s: %w", c, err)
		}
		if !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	files, err := jsonfile.New(dir)
	if err != nil {
		return fmt.Errorf("opening seed dir: %w", err)
	}
	if err := repository.Copy(ctx, db, files, missing...); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	logger.Info("seeded database from JSON files",
		slog.String("dir", dir),
		slog.Any("collections", missing),
	)
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTES:
//
//	GET    /healthz                          → liveness
//	POST   /api/login                        → exchange password for token
//	GET    /api/favorites                    → list (auth)
//	POST   /api/favorites                    → add (auth)
//	DELETE /api/favorites/{bookId}           → remove (auth)
//	PATCH  /api/favorites/{bookId}/comment   → update comment (auth)
//
// MIDDLEWARE ORDER MATTERS:
// RealIP runs before the rate limiter so the limiter keys on the real
// client address. The limiter runs before RequireAuth so rejected tokens
// still count against the caller's budget.
func (s *Server) setupRoutes(docs *repository.Documents, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth)

	favoritesService := service.NewFavoritesService(docs, docs, s.logger)
	favoritesHandler := handler.NewFavoritesHandler(favoritesService, s.logger)

	authService := service.NewAuthService(docs, tokens, auth.NewPasswordService(), s.logger)
	authHandler := handler.NewAuthHandler(authService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(ratelimit.Middleware(s.limiter, s.logger))

		r.Post("/login", authHandler.HandleLogin)

		r.Route("/favorites", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/", favoritesHandler.HandleList)
			r.Post("/", favoritesHandler.HandleAdd)
			r.Delete("/{bookId}", favoritesHandler.HandleRemove)
			r.Patch("/{bookId}/comment", favoritesHandler.HandleUpdateComment)
		})
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the limiter and releases the store.
func (s *Server) Close() error {
	s.limiter.Stop()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// On SIGINT/SIGTERM it stops accepting connections, gives in-flight
// requests 30 seconds to finish, then closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreDriver),
			slog.Int("rate_limit", s.config.RateLimit),
			slog.Duration("rate_window", s.config.RateWindow),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
