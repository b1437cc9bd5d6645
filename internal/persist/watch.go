package persist

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store whenever another process rewrites its file and
// calls fn with the keys whose values changed. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(keys []string)) error {
	if s.path == "" {
		return errors.New("memory store cannot be watched")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	// Writes land via rename, so the directory is watched rather than the file.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}
	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if s.log != nil {
				s.log.Warn("store watch error", "err", err)
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			changed, err := s.reload()
			if err != nil {
				if s.log != nil {
					s.log.Warn("store reload failed", "err", err)
				}
				continue
			}
			if len(changed) == 0 {
				continue
			}
			if s.log != nil {
				s.log.Debug("store reloaded", "keys", changed)
			}
			if fn != nil {
				fn(changed)
			}
		}
	}
}
