package index

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

// ChangeCallback is called once per quiet period with the last path that
// changed.
type ChangeCallback func(path string)

// generatedDirs hold build output; changes there never affect a manifest.
var generatedDirs = map[string]struct{}{
	"docs":        {},
	"_output":     {},
	"_data":       {},
	"__pycache__": {},
}

// Watch starts an fsnotify watcher on every root and calls onChange after
// debounce has elapsed without further events, until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Hidden
// entries and generated directories are ignored.
func Watch(ctx context.Context, roots []string, logger *slog.Logger, debounce time.Duration, onChange ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range roots {
		if err := addDirsRecursive(w, root); err != nil {
			return err
		}
		logger.Info("watcher: started", slog.String("root", root))
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		last    string
	)
	schedule := func(path string) {
		last = path
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			logger.Debug("watcher: change settled", slog.String("path", last))
			if onChange != nil {
				onChange(last)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ignored(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
				}
			}
			schedule(ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// ignored reports whether path's base name is hidden or a generated dir.
func ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return true
	}
	_, gen := generatedDirs[base]
	return gen
}

// addDirsRecursive adds root and its subdirectories to the watcher, skipping
// ignored ones.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignored(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
