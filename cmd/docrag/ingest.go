package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/ignore"
	"github.com/fyrsmithlabs/docrag/internal/watcher"
)

var (
	ingestJobs       int
	ingestExtensions []string
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().IntVarP(&ingestJobs, "jobs", "j", 4, "files ingested concurrently")
	ingestCmd.Flags().StringSliceVar(&ingestExtensions, "ext", nil, "file extensions picked up from directories (default: all supported types)")
}

// ingestCmd ingests files and directories
var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest files or directories",
	Long: `Ingest files into the index. Directories are walked recursively; files
matched by .gitignore or .docragignore, hidden files and unsupported types
are skipped. Re-ingesting a file replaces its earlier version.

Examples:
  # Ingest a report
  docrag ingest q3-report.pdf

  # Ingest the markdown and go files of a repository
  docrag ingest --ext md,go ~/src/project`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	exts := ingestExtensions
	if len(exts) == 0 {
		exts = watcher.DefaultExtensions
	}
	files, err := collectFiles(args, exts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files found")
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	docs, err := ingestFiles(cmd.Context(), s, files, ingestJobs)
	if jsonOutput {
		if perr := printJSON(cmd.OutOrStdout(), docs); perr != nil {
			return perr
		}
		return err
	}
	out := cmd.OutOrStdout()
	for _, d := range docs {
		fmt.Fprintf(out, "%s  %-40s %s  %d chunks", d.ID, d.Name, d.Class, len(d.Chunks))
		if d.DroppedChunks > 0 {
			fmt.Fprintf(out, " (%d dropped)", d.DroppedChunks)
		}
		fmt.Fprintln(out)
	}
	return err
}

// ingestFiles ingests files with at most jobs in flight. Every file is
// attempted; the first failure is returned after all finished.
func ingestFiles(ctx context.Context, s *session, files []string, jobs int) ([]*document.Document, error) {
	if jobs < 1 {
		jobs = 1
	}
	var (
		mu   sync.Mutex
		docs = make([]*document.Document, 0, len(files))
		g    errgroup.Group
	)
	g.SetLimit(jobs)
	for _, path := range files {
		g.Go(func() error {
			doc, err := s.app.IngestFile(ctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mu.Lock()
			docs = append(docs, doc)
			mu.Unlock()
			return nil
		})
	}
	return docs, g.Wait()
}

// collectFiles expands paths into the files to ingest. Files named
// explicitly are always kept; directories contribute the files with one of
// exts that are neither hidden nor ignored.
func collectFiles(paths []string, exts []string) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		matcher, err := ignore.NewParser(nil, nil).Load(p)
		if err != nil {
			return nil, fmt.Errorf("reading ignore files in %s: %w", p, err)
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == p {
				return nil
			}
			rel, err := filepath.Rel(p, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			hidden := strings.HasPrefix(d.Name(), ".")
			if d.IsDir() {
				if hidden || matcher.Match(rel, true) {
					return filepath.SkipDir
				}
				return nil
			}
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if hidden || !allowed[ext] || matcher.Match(rel, false) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return files, nil
}
