// TodoBot - conversational todo list server
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ashureev/todobot/internal/config"
	"github.com/ashureev/todobot/internal/probe"
	"github.com/ashureev/todobot/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "todobot",
		Short:         "TodoBot chat assistant and todo API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogger(os.Getenv("LOG_LEVEL"))
			if err := godotenv.Load(); err != nil {
				slog.Info("No .env file found, using environment variables")
			}
			// .env may carry LOG_LEVEL.
			setupLogger(os.Getenv("LOG_LEVEL"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		newMigrateCmd(),
		newHealthcheckCmd(),
	)

	return root
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

func newMigrateCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(store.Up), string(store.Down)},
		RunE: func(_ *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = config.DatabasePath()
			}
			if err := store.Migrate(dbPath, store.Direction(args[0])); err != nil {
				slog.Error("Migration failed", "direction", args[0], "db_path", dbPath, "error", err)
				return err
			}
			slog.Info("Migration complete", "direction", args[0], "db_path", dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (defaults to DB_PATH)")
	return cmd
}

func newHealthcheckCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local server and exit non-zero if it is unhealthy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			httpPort, grpcPort := config.Ports()
			url := fmt.Sprintf("http://127.0.0.1:%s/health", httpPort)
			if err := checkHTTP(ctx, url); err != nil {
				slog.Error("Health check failed", "url", url, "error", err)
				return err
			}

			if grpcPort != "" {
				status, err := probe.Check(ctx, "127.0.0.1:"+grpcPort)
				if err != nil {
					slog.Error("gRPC health check failed", "port", grpcPort, "error", err)
					return err
				}
				if status != healthpb.HealthCheckResponse_SERVING {
					err := fmt.Errorf("grpc health status %s", status)
					slog.Error("gRPC health check failed", "port", grpcPort, "error", err)
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "probe timeout")
	return cmd
}

func checkHTTP(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
