package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperengineering/nutrisync/internal/api"
	"github.com/hyperengineering/nutrisync/internal/config"
	"github.com/hyperengineering/nutrisync/pkg/nutrisync"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:           "nutrisync",
	Short:         "NutriSync - offline-first nutrition tracking",
	Long:          "Track meals, water and nutrition goals locally, sync them to the backend, and serve the companion API.",
	SilenceUsage:  true,
	RunE:          run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the companion API server",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(mealCmd)
	rootCmd.AddCommand(waterCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 3. Initialize logger
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("configuration loaded",
		"online", cfg.Online(),
		"assistant_mode", cfg.Assistant.Mode,
	)

	// 4. Open the local store and wire every domain store
	client, err := nutrisync.New(cfg)
	if err != nil {
		return err
	}

	// 5. Load persisted state, refresh today and start the workers
	if err := client.Initialize(ctx); err != nil {
		client.Shutdown(context.Background())
		return err
	}

	// 6. Initialize HTTP router
	handler := api.NewHandler(api.Options{
		Goals:   client.Goals(),
		Meals:   client.Meals(),
		Water:   client.Water(),
		Profile: client.Profile(),
		Agent:   client.Agent(),
		Stats:   client.Store(),
		Events:  client.Bus(),
		APIKey:  cfg.Auth.APIKey,
		Version: Version,
		Online:  cfg.Online(),
	})
	router := api.NewRouter(handler)
	if cfg.Auth.APIKey == "" {
		slog.Warn("companion API authentication disabled", "component", "server")
	}

	// 7. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 8. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 9. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 10. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 10a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 10b. Stop workers, flush the queue and close the store
	if err := client.Shutdown(shutdownCtx); err != nil {
		slog.Error("client shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// withClient opens a client for a one-shot command. Background workers stay
// off; Shutdown still pushes anything queued when a backend is configured.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *nutrisync.Client) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Log))
	cfg.Sync.AutoSync = false
	cfg.Backup.Interval = 0

	ctx := cmd.Context()
	client, err := nutrisync.New(cfg)
	if err != nil {
		return err
	}
	if err := client.Initialize(ctx); err != nil {
		client.Shutdown(ctx)
		return err
	}

	runErr := fn(ctx, client)
	if err := client.Shutdown(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
