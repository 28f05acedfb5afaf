package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/buildlens/buildlens/internal/logger"
)

// debounce absorbs the write/rename event bursts editors produce on save.
const debounce = 250 * time.Millisecond

// Watch reloads the store whenever its config file changes and calls
// onReload with the fresh settings. It watches the parent directory because
// most editors replace the file by rename. Blocks until ctx is cancelled.
func (s *ConfigStore) Watch(ctx context.Context, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		return fmt.Errorf("watching config directory: %w", err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := s.Load(); err != nil {
				logger.Warn("config reload failed: %v", err)
				continue
			}
			logger.Info("configuration reloaded from %s", s.filePath)
			if onReload != nil {
				onReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error: %v", err)
		}
	}
}
