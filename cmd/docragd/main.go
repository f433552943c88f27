// Docragd serves document ingestion, retrieval and chat over HTTP.
//
// Configuration is loaded from ~/.config/docrag/config.yaml, a .env file in
// the working directory and the environment. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (local embeddings, sqlite store)
//	docragd
//
//	# Serve on another port and ingest files dropped into a directory
//	SERVER_HTTP_PORT=8080 docragd --watch ~/papers
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/config"
	httpserver "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
	"github.com/fyrsmithlabs/docrag/internal/watcher"
)

// shutdownGrace bounds telemetry flushing after the server stopped.
const shutdownGrace = 5 * time.Second

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/docrag/config.yaml)")
	watchDir := flag.String("watch", "", "directory whose files are ingested as they change")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  docragd [--config path] [--watch dir]   Start the daemon\n")
			fmt.Fprintf(os.Stderr, "  docragd version                         Show version information\n")
			os.Exit(1)
		}
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *watchDir); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("docragd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled or the HTTP
// server fails.
func run(ctx context.Context, configPath, watchDir string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if watchDir != "" {
		cfg.Watch.Dir = watchDir
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = tel.Shutdown(flushCtx)
	}()

	lcfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return err
	}
	lcfg.OTEL = tel.LoggerProvider() != nil
	logger, err := logging.NewLogger(lcfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zl := logger.Underlying()

	zl.Info("starting docragd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("generation", cfg.Generation.Provider),
		zap.String("store", cfg.Store.Driver),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.Bool("telemetry", tel.IsEnabled()))

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			zl.Warn("closing app", zap.Error(err))
		}
	}()

	srv, err := httpserver.NewServer(a, zl, &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	if cfg.Watch.Dir != "" {
		w, err := watcher.New(watcher.Config{
			Dir:         cfg.Watch.Dir,
			Debounce:    cfg.Watch.Debounce.Duration(),
			Extensions:  cfg.Watch.Extensions,
			InitialScan: cfg.Watch.InitialScan,
		}, app.FileHandler{App: a}, zl.Named("watcher"))
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Stop()
		zl.Info("watching directory", zap.String("dir", cfg.Watch.Dir))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	zl.Info("received shutdown signal", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
