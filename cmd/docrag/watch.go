package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/app"
	"github.com/fyrsmithlabs/docrag/internal/watcher"
)

var watchNoScan bool

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "skip files already present when watching starts")
}

// watchCmd ingests files as they change
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest files in a directory as they change",
	Long: `Watch a directory and ingest supported files as they are created or
written. Removing a file removes its document. Files matched by .gitignore or
.docragignore are skipped. Runs until interrupted.

Examples:
  docrag watch ~/papers`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	w, err := watcher.New(watcher.Config{
		Dir:         args[0],
		Debounce:    s.cfg.Watch.Debounce.Duration(),
		Extensions:  s.cfg.Watch.Extensions,
		InitialScan: !watchNoScan,
	}, app.FileHandler{App: s.app}, s.logger.Named("watcher"))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	s.logger.Info("watching directory", zap.String("dir", args[0]))
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", args[0])
	<-ctx.Done()
	return nil
}
