package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/cache"
	"github.com/gamevault/apiserver/internal/db"
	"github.com/gamevault/apiserver/internal/events"
	"github.com/gamevault/apiserver/internal/handlers"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/gamevault/apiserver/internal/mq"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/internal/storage"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Dependencies are the services the HTTP routes are built from.
type Dependencies struct {
	Users   *services.UserService
	Games   *services.GameService
	Library *services.LibraryService
	Tokens  *auth.TokenIssuer
	Policy  auth.Policy
	Logger  logging.Logger
}

// NewRouter mounts every route under its middleware stack.
func NewRouter(deps Dependencies) *chi.Mux {
	authMiddleware := handlers.RequireAuth(deps.Tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Users, deps.Tokens, deps.Logger)
		})
		r.Route("/games", func(r chi.Router) {
			handlers.GameRouter(r, deps.Games, deps.Policy, authMiddleware, deps.Logger)
		})
		r.Route("/library", func(r chi.Router) {
			handlers.LibraryRouter(r, deps.Library, deps.Policy, authMiddleware, deps.Logger)
		})
	})
	return router
}

// Server wraps the HTTP server, router and the clients it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	logger     logging.Logger
	closers    []io.Closer
}

// New connects to every configured backend and builds the HTTP server.
// Redis, object storage and the message queue are optional.
func New(ctx context.Context, cfg config.Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{db: dbConn, logger: logger}
	fail := func(err error) (*Server, error) {
		_ = s.close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	gameRepo := store.NewGameRepository(dbConn)
	libraryRepo := store.NewLibraryRepository(dbConn)

	var emitter services.EventEmitter
	if cfg.MQ.Backend != "" {
		queue, err := mq.New(ctx, cfg.MQ)
		if err != nil {
			return fail(err)
		}
		s.closers = append(s.closers, queue)
		emitter = events.NewEmitter(queue, logger.With("component", "events"))
		logger.Info(ctx, "domain events enabled", "backend", queue.Backend())
	}

	gameOpts := []services.GameOption{
		services.WithGameLogger(logger.With("component", "games")),
	}
	if emitter != nil {
		gameOpts = append(gameOpts, services.WithGameEvents(emitter))
	}
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		s.closers = append(s.closers, client)
		gameOpts = append(gameOpts, services.WithGameCache(cache.NewGameCache(client, cfg.Redis.TTL)))
		logger.Info(ctx, "game cache enabled", "addr", cfg.Redis.Addr)
	}
	if cfg.Storage.Backend != "" {
		objects, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return fail(err)
		}
		gameOpts = append(gameOpts, services.WithCoverStorage(objects, cfg.Storage.PublicURL))
		logger.Info(ctx, "cover uploads enabled", "backend", objects.Backend(), "bucket", objects.Bucket())
	}

	userService := services.NewUserService(userRepo)
	gameService := services.NewGameService(gameRepo, gameOpts...)
	libraryService := services.NewLibraryService(libraryRepo, userRepo, gameRepo, emitter, logger.With("component", "library"))

	s.router = NewRouter(Dependencies{
		Users:   userService,
		Games:   gameService,
		Library: libraryService,
		Tokens:  tokens,
		Policy:  auth.Policy{CatalogAdminOnly: cfg.Auth.CatalogAdminOnly},
		Logger:  logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases every owned client.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
