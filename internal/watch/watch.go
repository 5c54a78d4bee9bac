// Package watch summarizes text documents as they land in a folder.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"ai-reading-assistant/internal/observability/logging"
)

const (
	// DefaultSettle is how long a file must stay quiet before it is read.
	DefaultSettle = 500 * time.Millisecond
	summarySuffix = ".summary.txt"
)

var supportedExts = []string{".txt", ".md"}

// Summarizer produces summaries on behalf of a named source.
type Summarizer interface {
	Summarize(source, text string) string
}

// Config controls the watcher.
type Config struct {
	Dir string
	// OutputDir receives <name>.summary.txt files. Defaults to Dir.
	OutputDir     string
	MaxConcurrent int
	Settle        time.Duration
}

// Watcher summarizes every new or rewritten document in a directory.
type Watcher struct {
	cfg        Config
	summarizer Summarizer
	watcher    *fsnotify.Watcher
	semaphore  chan struct{}
	logger     zerolog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher on cfg.Dir.
func New(cfg Config, s Summarizer) (*Watcher, error) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.Dir
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(cfg.Dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	return &Watcher{
		cfg:        cfg,
		summarizer: s,
		watcher:    fw,
		semaphore:  make(chan struct{}, cfg.MaxConcurrent),
		logger:     logging.WithComponent("watch"),
		pending:    make(map[string]*time.Timer),
	}, nil
}

// Run processes events until ctx is cancelled, then waits for in-flight
// documents.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info().
		Str("dir", w.cfg.Dir).
		Str("outputDir", w.cfg.OutputDir).
		Int("maxConcurrent", w.cfg.MaxConcurrent).
		Msg("Folder watcher started")

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			for path, t := range w.pending {
				if t.Stop() {
					w.wg.Done()
				}
				delete(w.pending, path)
			}
			w.mu.Unlock()
			w.wg.Wait()
			w.logger.Info().Msg("Folder watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !IsDocument(event.Name) {
				w.logger.Debug().Str("file", event.Name).Msg("Ignoring file")
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// schedule (re)arms the settle timer for path so bursts of writes produce
// one summary. Each armed timer holds one wg slot until it runs or is stopped.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.cfg.Settle)
		return
	}

	var t *time.Timer
	w.wg.Add(1)
	t = time.AfterFunc(w.cfg.Settle, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		select {
		case w.semaphore <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-w.semaphore }()

		if _, err := w.Process(path); err != nil {
			w.logger.Error().Err(err).Str("file", path).Msg("Failed to summarize document")
		}
	})
	w.pending[path] = t
}

// Process summarizes one document and writes the result next to the others
// in OutputDir. It returns the output path.
func (w *Watcher) Process(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	summary := w.summarizer.Summarize("watch", string(data))
	out := OutputPath(w.cfg.OutputDir, path)
	if err := os.WriteFile(out, []byte(summary+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}

	w.logger.Info().Str("file", path).Str("output", out).Int("bytes", len(data)).Msg("Document summarized")
	return out, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// IsDocument reports whether path is a text document that is not itself a
// summary output.
func IsDocument(path string) bool {
	if strings.HasSuffix(path, summarySuffix) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range supportedExts {
		if ext == e {
			return true
		}
	}
	return false
}

// OutputPath is where the summary of path is written.
func OutputPath(outputDir, path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(outputDir, base+summarySuffix)
}
