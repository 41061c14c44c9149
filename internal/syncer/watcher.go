package syncer

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/kioshini/catalog-sync-service/internal/obs"
)

func newDirWatcher(dir string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return w, nil
}

// eventLoop turns file-system notifications into work items. Notifications
// are noisy: one write can raise several events, and a later event can refer
// to a path the pipeline has already archived. Both collapse to no-ops in the
// consumer, so the loop only filters directories and dispatches.
func (s *Service) eventLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer s.wg.Done()
	defer func() { _ = w.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil || info.IsDir() {
				continue
			}
			// A bare write may be mid-copy; give it a moment to settle
			// before the consumer reads it.
			s.dispatch(ctx, workItem{path: ev.Name, settle: !ev.Has(fsnotify.Create)})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			obs.Logger.Error("watch_error", "error", err)
		}
	}
}
