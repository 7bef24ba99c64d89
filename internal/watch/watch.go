// Package watch implements a hot-reload trigger: it watches a local
// storage root and calls a tenant host's public Reload whenever a
// tenant's files change. Lives outside pkg/tenanthost entirely, wired
// to github.com/fsnotify/fsnotify for recursive directory watching.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader is the subset of tenanthost.Host the watcher drives.
type Reloader interface {
	Reload(ctx context.Context, tenantID string) error
}

// Watcher debounces filesystem change events under Root into
// per-tenant Reload calls. Root is expected to be laid out one
// subdirectory per tenant, matching the fs.Store layout.
type Watcher struct {
	Root     string
	Debounce time.Duration
	Reloader Reloader
	Logger   *zap.Logger

	fsw *fsnotify.Watcher
}

// New starts watching Root recursively and returns a Watcher. Call Run
// to begin debouncing events into reloads.
func New(root string, debounce time.Duration, reloader Reloader, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{Root: root, Debounce: debounce, Reloader: reloader, Logger: logger, fsw: fsw}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info != nil && info.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Run blocks, debouncing change events per tenant and calling
// Reloader.Reload once the debounce window elapses with no further
// activity for that tenant. It returns when ctx is cancelled or the
// underlying watcher errors fatally.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	pending := make(map[string]*time.Timer)
	reloadCh := make(chan string, 16)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			tenantID := w.tenantFor(event.Name)
			if tenantID == "" {
				continue
			}
			if t, exists := pending[tenantID]; exists {
				t.Stop()
			}
			pending[tenantID] = time.AfterFunc(w.Debounce, func() {
				reloadCh <- tenantID
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", zap.Error(err))

		case tenantID := <-reloadCh:
			delete(pending, tenantID)
			if err := w.Reloader.Reload(ctx, tenantID); err != nil {
				w.Logger.Error("tenant reload failed", zap.String("tenant", tenantID), zap.Error(err))
			} else {
				w.Logger.Info("tenant reloaded", zap.String("tenant", tenantID))
			}
		}
	}
}

// tenantFor derives the tenant id (the top-level directory name under
// Root) from a changed path.
func (w *Watcher) tenantFor(path string) string {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
