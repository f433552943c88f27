// Package main implements the docrag CLI. Commands run the pipeline
// in-process against the configured store, so no daemon is needed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/logging"
)

var (
	// configPath overrides the default ~/.config/docrag/config.yaml
	configPath string
	// jsonOutput prints results as JSON
	jsonOutput bool
	// logLevel applies to the stderr log of every command
	logLevel string
	// version information
	version = "dev"
)

// newApp builds the App a command runs against. Tests replace it.
var newApp = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Ingest documents and ask questions about them",
	Long: `docrag ingests PDF, CSV, text, markdown and source files into a local
vector index and answers questions from them with a configurable language
model and persona.

Configuration is read from ~/.config/docrag/config.yaml, a .env file and
the environment (for example PROVIDERS_GEMINI_KEY or EMBEDDING_PROVIDER).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/docrag/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr (trace, debug, info, warn, error)")
}

// session is an App opened for one command.
type session struct {
	app    *app.App
	cfg    *config.Config
	logger *zap.Logger
	sync   func() error
}

// openSession loads configuration and builds the App. Logs go to stderr
// at --log-level so stdout only carries results.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	cfg.Logging.Level = logLevel
	lcfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	lcfg.Stderr = true
	lcfg.Format = "console"
	logger, err := logging.NewLogger(lcfg, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	a, err := newApp(ctx, cfg, logger.Underlying())
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("initializing docrag: %w", err)
	}
	return &session{app: a, cfg: cfg, logger: logger.Underlying(), sync: logger.Sync}, nil
}

func (s *session) Close() {
	if err := s.app.Close(); err != nil {
		s.logger.Warn("closing docrag", zap.Error(err))
	}
	_ = s.sync()
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable aligns tab separated columns.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
