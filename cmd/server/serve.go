package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/todobot/internal/agent"
	"github.com/ashureev/todobot/internal/api"
	"github.com/ashureev/todobot/internal/cache"
	"github.com/ashureev/todobot/internal/config"
	"github.com/ashureev/todobot/internal/conversation"
	"github.com/ashureev/todobot/internal/events"
	"github.com/ashureev/todobot/internal/metrics"
	"github.com/ashureev/todobot/internal/middleware"
	"github.com/ashureev/todobot/internal/probe"
	"github.com/ashureev/todobot/internal/store"
	"github.com/ashureev/todobot/internal/todo"
	"github.com/ashureev/todobot/internal/user"
	"github.com/ashureev/todobot/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}
	logger := slog.Default()

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"provider", cfg.Agent.Provider,
	)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// Optional infrastructure.
	var todoOpts []todo.Option
	if cfg.RedisURL != "" {
		c, err := cache.NewTodoCache(ctx, cfg.RedisURL, cfg.TodoCacheTTL)
		if err != nil {
			slog.Warn("Redis unavailable, todo cache disabled", "error", err)
		} else {
			defer func() { _ = c.Close() }()
			todoOpts = append(todoOpts, todo.WithCache(c))
			slog.Info("Todo cache enabled", "ttl", cfg.TodoCacheTTL)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				slog.Warn("Failed to close event publisher", "error", closeErr)
			}
		}()
		todoOpts = append(todoOpts, todo.WithPublisher(pub))
		slog.Info("Todo events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// Services.
	users := user.NewService(repo, logger)
	todos := todo.NewService(repo, logger, todoOpts...)
	conversations := conversation.NewService(repo)

	agentCfg := cfg.AgentSettings()
	model, err := agent.NewModel(ctx, agentCfg)
	if err != nil {
		slog.Error("Failed to initialize language model", "provider", agentCfg.Provider, "error", err)
		return err
	}
	chat := agent.NewService(agentCfg, model, todos, conversations, logger, collector)
	slog.Info("Agent ready",
		"provider", agentCfg.Provider,
		"model", agentCfg.ModelName,
		"history_limit", agentCfg.HistoryLimit,
		"max_rounds", agentCfg.MaxRounds,
	)

	// Handlers.
	restHandler := api.NewHandler(users, todos, conversations, logger)
	chatHandler := agent.NewHandler(chat, users, cfg.ChatMaxBodyBytes, socketOrigins(cfg.CORSOrigins), logger)
	healthHandler := api.NewHealthHandler(repo)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Metrics(collector))

	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", metrics.Handler(reg))

	r.Route("/api", func(r chi.Router) {
		restHandler.RegisterRoutes(r)
		chatHandler.RegisterRoutes(r)
	})

	r.Handle("/*", web.SPAHandler())

	// Chat turns may take several model round trips, so no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			stop()
			return fmt.Errorf("listen grpc health port: %w", err)
		}
		healthProbe := probe.NewServer(repo, 10*time.Second, logger)
		g.Go(func() error {
			slog.Info("gRPC health probe listening", "addr", lis.Addr().String())
			return healthProbe.Serve(gctx, lis)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}

// socketOrigins converts CORS origins into websocket origin patterns,
// which match on host only.
func socketOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
