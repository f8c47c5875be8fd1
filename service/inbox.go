package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AnTengye/contractscore/model"
)

const (
	processedDir = "processed"
	rejectedDir  = "rejected"
)

// InboxWatcher ingests PDFs dropped into a directory. Each file is accepted
// and submitted once its writes have been quiet for the debounce interval,
// then moved to processed/ or rejected/.
type InboxWatcher struct {
	dir       string
	debounce  time.Duration
	processor *Processor
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewInboxWatcher(dir string, debounce time.Duration, processor *Processor, logger *slog.Logger) *InboxWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxWatcher{
		dir:       dir,
		debounce:  debounce,
		processor: processor,
		logger:    logger.With("component", "inbox", "dir", dir),
		pending:   make(map[string]*time.Timer),
	}
}

// Run watches until ctx is cancelled. Files already present are picked up on
// start.
func (w *InboxWatcher) Run(ctx context.Context) error {
	for _, sub := range []string{"", processedDir, rejectedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create inbox dir: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to scan inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && isPDFName(e.Name()) {
			w.schedule(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
	w.logger.Info("inbox watcher started")

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox watcher stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && isPDFName(ev.Name) {
				w.schedule(ctx, ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *InboxWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.Ingest(ctx, path); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("inbox file not ingested", "file", filepath.Base(path), "error", err)
		}
	})
	w.pending[path] = t
}

// stop cancels timers that have not fired and waits for running ingests.
func (w *InboxWatcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Ingest accepts and submits a single file, then moves it out of the inbox.
func (w *InboxWatcher) Ingest(ctx context.Context, path string) (*model.Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	contract, err := w.processor.Accept(ctx, filepath.Base(path), f)
	f.Close()
	if err != nil {
		if IsValidation(err) {
			w.move(path, rejectedDir, filepath.Base(path))
		}
		return nil, err
	}

	if err := w.processor.Submit(ctx, contract.ID); err != nil {
		return contract, err
	}
	w.move(path, processedDir, contract.ID+"-"+contract.Filename)
	w.logger.Info("inbox file submitted", "contract_id", contract.ID, "file", contract.Filename)
	return contract, nil
}

func (w *InboxWatcher) move(path, sub, name string) {
	if err := os.Rename(path, filepath.Join(w.dir, sub, name)); err != nil {
		w.logger.Warn("failed to move inbox file", "file", filepath.Base(path), "error", err)
	}
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
