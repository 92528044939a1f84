// UEX Relay - marketplace notification and negotiation relay server
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

	"github.com/ashureev/uex-relay/internal/api"
	"github.com/ashureev/uex-relay/internal/bot"
	"github.com/ashureev/uex-relay/internal/config"
	"github.com/ashureev/uex-relay/internal/credentials"
	"github.com/ashureev/uex-relay/internal/identity"
	"github.com/ashureev/uex-relay/internal/middleware"
	"github.com/ashureev/uex-relay/internal/poller"
	"github.com/ashureev/uex-relay/internal/reply"
	"github.com/ashureev/uex-relay/internal/store"
	"github.com/ashureev/uex-relay/internal/surface"
	"github.com/ashureev/uex-relay/internal/uex"
	"github.com/ashureev/uex-relay/internal/webhook"
	"github.com/ashureev/uex-relay/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.Open(cfg.DBDSN)
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

	remote := uex.NewClient(uex.Config{
		BaseURL:    cfg.UEX.APIURL,
		Timeout:    cfg.UEX.Timeout,
		Production: cfg.UEX.Production,
	})
	site := surface.Links{SiteURL: cfg.UEX.SiteURL}

	// Initialize services.
	hub := surface.NewHub(repo, cfg.BacklogSize)
	gate := credentials.NewGate(repo, remote, cfg.UEX.Timeout)
	engine := poller.NewEngine(repo, remote, hub, site, gate, poller.Config{
		Interval:       cfg.Poll.Interval,
		Workers:        cfg.Poll.Workers,
		Attempts:       cfg.Poll.RetryAttempts,
		RetryDelay:     cfg.Poll.RetryDelay,
		AttemptTimeout: cfg.UEX.Timeout,
	})
	relay := bot.New(bot.Deps{
		Sessions:    repo,
		Messenger:   hub,
		Credentials: gate,
		Replies:     reply.NewCorrelator(repo, remote, site),
		Threads:     hub,
		Polls:       engine,
	})

	// Initialize handlers.
	apiHandler := api.NewHandler(relay, cfg.AdminToken)
	healthHandler := api.NewHealthHandler(repo)
	webhookHandler := webhook.NewHandler(webhook.NewRouter(repo, repo, hub, site))
	wsHandler := surface.NewWebSocketHandler(hub, relay, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	webhookHandler.RegisterRoutes(r)

	// Chat routes carry a user identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))
		apiHandler.RegisterRoutes(r)
		r.Get("/ws/threads", wsHandler.ServeHTTP)
	})

	// Serve embedded chat client (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Websocket connections are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.Start(ctx)
	slog.Info("Poller started", "interval", cfg.Poll.Interval, "workers", cfg.Poll.Workers)

	poller.StartLinkSweeper(ctx, repo, cfg.LinkTTL)

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

	engine.Wait()
	gate.Wait()

	slog.Info("Server stopped successfully")
}
