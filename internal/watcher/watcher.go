// Package watcher ingests files as they appear or change in a directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/ignore"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// DefaultExtensions are the file types picked up when none are configured.
var DefaultExtensions = []string{
	"pdf", "csv", "txt", "md", "json", "html", "css", "js", "ts", "tsx", "jsx",
	"py", "go", "yaml", "yml", "sh", "rs", "java",
}

// Handler reacts to settled file changes.
type Handler interface {
	// Ingest is called when path was created or written.
	Ingest(ctx context.Context, path string) error
	// Remove is called when path was removed or renamed away.
	Remove(ctx context.Context, path string) error
}

// Config configures a Watcher.
type Config struct {
	Dir        string
	Debounce   time.Duration
	Extensions []string
	// InitialScan ingests the files already present on Start.
	InitialScan bool
	// Ignore skips matching files. Defaults to the ignore files found in Dir.
	Ignore *ignore.Matcher
}

// Watcher watches one directory, non-recursively.
type Watcher struct {
	dir      string
	debounce time.Duration
	exts     map[string]bool
	ignore   *ignore.Matcher
	scan     bool
	handler  Handler
	logger   *zap.Logger

	fs      *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
	stop    chan struct{}
	once    sync.Once
}

// New creates a watcher. Start begins delivering events.
func New(cfg Config, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", cfg.Dir)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}

	if cfg.Ignore == nil {
		cfg.Ignore, err = ignore.NewParser(nil, nil).Load(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("reading ignore files: %w", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return &Watcher{
		dir:      cfg.Dir,
		debounce: cfg.Debounce,
		exts:     exts,
		ignore:   cfg.Ignore,
		scan:     cfg.InitialScan,
		handler:  handler,
		logger:   logger,
		fs:       fsw,
		pending:  make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// DocumentID derives a stable document id from a file path so a rewritten
// file replaces its previous version.
func DocumentID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String()
}

// Accepts reports whether path has a watched extension, is not hidden and
// is not ignored.
func (w *Watcher) Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	if !w.exts[strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))] {
		return false
	}
	if rel, err := filepath.Rel(w.dir, path); err == nil && w.ignore.Match(rel, false) {
		return false
	}
	return true
}

// Start watches the directory until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fs.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	if w.scan {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", w.dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				w.schedule(ctx, filepath.Join(w.dir, e.Name()), fsnotify.Create)
			}
		}
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop ends watching and waits for in-flight handler calls.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.fs.Close()

		w.mu.Lock()
		for p, t := range w.pending {
			if t.Stop() {
				w.wg.Done()
			}
			delete(w.pending, p)
		}
		w.mu.Unlock()
	})
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.Accepts(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				w.schedule(ctx, ev.Name, fsnotify.Write)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				w.schedule(ctx, ev.Name, fsnotify.Remove)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// schedule (re)arms the debounce timer of path. The last operation wins.
func (w *Watcher) schedule(ctx context.Context, path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.stop:
		return
	default:
	}

	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] != t {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.mu.Unlock()
		w.fire(ctx, path, op)
	})
	w.pending[path] = t
}

func (w *Watcher) fire(ctx context.Context, path string, op fsnotify.Op) {
	if ctx.Err() != nil {
		return
	}
	var err error
	if op == fsnotify.Remove {
		if _, statErr := os.Stat(path); statErr == nil {
			// Replaced in place by an atomic rename.
			err = w.handler.Ingest(ctx, path)
		} else {
			err = w.handler.Remove(ctx, path)
		}
	} else {
		err = w.handler.Ingest(ctx, path)
	}
	if err != nil {
		w.logger.Warn("file handler failed", zap.String("path", path), zap.Error(err))
	}
}
