package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce is how long a path must stay quiet before it is re-imported.
const debounce = 200 * time.Millisecond

// Watch imports dir once and then re-imports *.md files as they change,
// until ctx is cancelled. New sub-directories are added to the watch list.
// With pruning enabled, removed or renamed files delete their item.
func (im *Importer) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir); err != nil {
		return err
	}
	if _, err := im.Sync(ctx, dir); err != nil {
		return err
	}
	im.logger.Info("ingest: watching", slog.String("dir", dir))

	changes := im.lib.Subscribe()
	defer im.lib.Unsubscribe(changes)

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			im.logger.Info("ingest: watcher stopped")
			return nil

		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			im.logger.Debug("ingest: cache changed",
				slog.String("kind", string(c.Kind)),
				slog.String("id", c.ID),
				slog.Int("items", c.Len))

		case <-timer.C:
			im.flush(ctx, dir, pending)
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						im.logger.Warn("ingest: watch new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// Files may land in the directory before it is watched.
					_ = filepath.WalkDir(ev.Name, func(p string, d fs.DirEntry, err error) error {
						if err == nil && !d.IsDir() && strings.HasSuffix(p, ".md") {
							pending[p] = struct{}{}
						}
						return nil
					})
					timer.Reset(debounce)
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(debounce)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("ingest: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// flush imports every pending path that still exists and, with pruning,
// removes the items of paths that are gone.
func (im *Importer) flush(ctx context.Context, dir string, pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}
	existing := im.imported()
	for abs := range pending {
		rel, err := filepath.Rel(dir, abs)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		if _, statErr := os.Stat(abs); statErr != nil {
			if !im.prune {
				continue
			}
			if err := im.remove(ctx, rel); err != nil {
				im.logger.Warn("ingest: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			}
			continue
		}
		if _, err := im.importFile(ctx, dir, rel, existing); err != nil {
			im.logger.Warn("ingest: import failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
