// StoryLab - Collaborative Storybook Dialogue Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haeundev/storylab/internal/ai"
	"github.com/haeundev/storylab/internal/api"
	"github.com/haeundev/storylab/internal/auth"
	"github.com/haeundev/storylab/internal/chat"
	"github.com/haeundev/storylab/internal/config"
	"github.com/haeundev/storylab/internal/gateway"
	"github.com/haeundev/storylab/internal/illustration"
	"github.com/haeundev/storylab/internal/media"
	"github.com/haeundev/storylab/internal/middleware"
	"github.com/haeundev/storylab/internal/rooms"
	"github.com/haeundev/storylab/internal/session"
	"github.com/haeundev/storylab/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Session store: Redis when configured, in-memory otherwise.
	var (
		sessions  session.Store
		roomMgr   *rooms.Manager
		redisSess *session.RedisStore
	)
	if cfg.RedisURL != "" {
		redisSess, err = session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := redisSess.Close(); closeErr != nil {
				slog.Error("Failed to close session store", "error", closeErr)
			}
		}()
		sessions = redisSess
		roomMgr = rooms.NewManager(redisSess.Client())
		slog.Info("Session store connected", "backend", "redis")
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL)
		slog.Info("Session store connected", "backend", "memory")
	}

	cached, err := session.NewCachedStore(sessions, 1024)
	if err != nil {
		slog.Error("Failed to initialize session cache", "error", err)
		os.Exit(1)
	}
	sessions = cached

	// AI collaborator and prose refiner.
	client := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.ImageModel)

	var refiner ai.Refiner = ai.NopRefiner{}
	if cfg.RefinerURL != "" {
		refiner = ai.NewHTTPRefiner(cfg.RefinerURL, cfg.RefinerAPIKey)
		slog.Info("Prose refiner enabled", "url", cfg.RefinerURL)
	}

	mediaStore, err := media.NewStore(cfg.MediaDir, cfg.MediaURLPrefix)
	if err != nil {
		slog.Error("Failed to initialize media store", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	chatService := chat.NewService(sessions, client, cfg.CompletionTimeout)
	coordinator := illustration.NewCoordinator(client, client, mediaStore)
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.TokenTTL)
	registry := gateway.NewRegistry()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions, verifier)
	sessionHandler := api.NewSessionHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo, sessions)
	wsHandler := gateway.NewHandler(verifier, registry, gateway.MachineDeps{
		Store:        sessions,
		Chat:         chatService,
		Images:       coordinator,
		Scenes:       repo,
		Refiner:      refiner,
		ImageRetries: cfg.ImageRetries,
		BatchTimeout: cfg.ImageBatchTimeout,
	}, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{cfg.FrontendURL}))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	sessionHandler.RegisterRoutes(r)

	if cfg.IsDevelopment() {
		api.NewDevHandler(baseHandler).RegisterRoutes(r)
		slog.Info("Dev token endpoint enabled")
	}

	// Shared rooms require Redis for cross-instance fan-out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if roomMgr != nil {
		api.NewRoomHandler(baseHandler, roomMgr).RegisterRoutes(r)
		r.Get("/ws/rooms/{code}", rooms.NewHandler(roomMgr, cfg.FrontendURL, cfg.IsDevelopment()).ServeHTTP)
		roomMgr.StartJanitor(ctx, time.Hour)
		slog.Info("Shared rooms enabled")
	} else {
		slog.Info("Shared rooms disabled (REDIS_URL not set)")
	}

	// WebSocket endpoint.
	r.Get("/ws/story/{sessionKey}", wsHandler.ServeHTTP)

	// Serve generated illustrations.
	r.Handle(cfg.MediaURLPrefix+"*", http.StripPrefix(cfg.MediaURLPrefix, http.FileServer(http.Dir(mediaStore.Dir()))))

	// Create server.
	// Note: WebSocket connections require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
