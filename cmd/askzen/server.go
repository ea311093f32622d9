package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/askzen/internal/api"
	"github.com/ashureev/askzen/internal/bot"
	"github.com/ashureev/askzen/internal/catalog"
	"github.com/ashureev/askzen/internal/completion"
	"github.com/ashureev/askzen/internal/config"
	"github.com/ashureev/askzen/internal/identity"
	"github.com/ashureev/askzen/internal/language"
	"github.com/ashureev/askzen/internal/middleware"
	"github.com/ashureev/askzen/internal/session"
	"github.com/ashureev/askzen/internal/store"
	"github.com/ashureev/askzen/internal/transport/telegram"
	"github.com/ashureev/askzen/internal/transport/ws"
)

const (
	shutdownTimeout      = 10 * time.Second
	limiterSweepInterval = time.Minute
	limiterIdleTimeout   = 10 * time.Minute
)

func run(parent context.Context, envFile string) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		slog.Info("No .env file found, using environment variables", "path", envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("Starting askzen", "version", version, "port", cfg.Port, "grpc_port", cfg.GRPCPort,
		"telegram", cfg.Telegram.Enabled, "transcript", cfg.Transcript.Enabled, "dev", cfg.IsDevelopment())

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	sessions := session.NewStore()
	resolver := language.NewResolver(sessions, language.TrigramDetector{})
	gateway := completion.NewGateway(completion.Config{
		BaseURL:       cfg.Completion.BaseURL,
		APIKey:        cfg.Completion.APIKey,
		Model:         cfg.Completion.Model,
		Timeout:       cfg.Completion.Timeout,
		MaxConcurrent: cfg.Completion.MaxConcurrent,
	}, slog.Default())
	limiter := bot.NewLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	opts := []bot.Option{
		bot.WithCatalog(cat),
		bot.WithLimiter(limiter),
		bot.WithLogger(slog.Default()),
	}

	// Interface-typed so a disabled transcript stays a true nil.
	var (
		repo   store.Repository
		writer api.WriterStatser
		pinger api.Pinger
	)
	if cfg.Transcript.Enabled {
		sqlite, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer func() {
			if closeErr := sqlite.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		if err := sqlite.Ping(parent); err != nil {
			return fmt.Errorf("database health check: %w", err)
		}
		slog.Info("Database connected", "path", cfg.DBPath)

		tw := store.NewTranscriptWriter(sqlite, cfg.Transcript.QueueSize, slog.Default())
		defer func() {
			if closeErr := tw.Close(); closeErr != nil {
				slog.Error("Failed to flush transcript", "error", closeErr)
			}
		}()

		repo, writer, pinger = sqlite, tw, sqlite
		opts = append(opts, bot.WithRecorder(tw))
	}

	router := bot.NewRouter(sessions, resolver, gateway, opts...)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		limiter.Run(gctx, limiterSweepInterval, limiterIdleTimeout)
		return nil
	})
	if repo != nil {
		// Inside the group so the database is closed only after the last sweep.
		g.Go(func() error {
			store.RunRetention(gctx, repo, cfg.Transcript.Retention, store.RetentionInterval)
			return nil
		})
	}

	registry := ws.NewRegistry()
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHTTPHandler(cfg, router, sessions, repo, writer, pinger, registry),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // WebSocket connections are long-lived
		IdleTimeout:       120 * time.Second,
	}
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		registry.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if cfg.Telegram.Enabled {
		adapter, err := telegram.New(cfg.Telegram.Token, router, slog.Default())
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return adapter.Run(gctx) })
	}

	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("listen grpc: %w", err)
		}
		hs := newHealthServer()
		g.Go(func() error {
			slog.Info("gRPC health server listening", "addr", lis.Addr().String())
			return hs.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			hs.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}

func newHTTPHandler(
	cfg *config.Config,
	dispatcher *bot.Router,
	sessions *session.Store,
	repo store.Repository,
	writer api.WriterStatser,
	pinger api.Pinger,
	registry *ws.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	api.NewHealthHandler(pinger).RegisterHealth(r)
	api.NewHandler(dispatcher, sessions, repo, writer).RegisterRoutes(r)

	wsHandler := ws.NewHandler(dispatcher, registry, cfg.AllowedOrigin, cfg.IsDevelopment(), slog.Default())
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	return r
}
