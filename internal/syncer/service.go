// Package syncer runs the delta ingestion pipeline: directory watcher, gated
// file processing, the daily full resync, and the status surface.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kioshini/catalog-sync-service/internal/archive"
	"github.com/kioshini/catalog-sync-service/internal/catalog"
	"github.com/kioshini/catalog-sync-service/internal/config"
	"github.com/kioshini/catalog-sync-service/internal/delta"
	"github.com/kioshini/catalog-sync-service/internal/model"
	"github.com/kioshini/catalog-sync-service/internal/obs"
	"github.com/kioshini/catalog-sync-service/internal/source"
)

var (
	// ErrFileNotFound marks a trigger for a path that no longer exists,
	// typically because the file was already processed and archived.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnrecognized marks a file whose name matches no delta kind.
	ErrUnrecognized = errors.New("unrecognized file")
	// ErrAlreadyRunning is returned by Start when monitoring is active.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNotRunning is returned by Stop when monitoring is not active.
	ErrNotRunning = errors.New("not running")
)

const recentFilesKept = 10

type workItem struct {
	path     string
	settle   bool
	enqueued time.Time
}

// Service wires the watcher, parser, applier, archiver and resync behind one
// capacity-1 gate. All catalog mutation flows through ProcessFile or
// FullResync; neither runs concurrently with the other.
type Service struct {
	cfg     config.Config
	store   *catalog.Store
	applier *delta.Applier
	arch    *archive.Manager
	loader  *source.Loader
	g       *gate

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	lastDelta  time.Time
	lastResync time.Time
	processed  int
	recent     []string
	nextResync time.Time

	work chan workItem
	wg   sync.WaitGroup
}

// New constructs the pipeline service over the given catalog store. Processed
// files archive into the "processed" subdirectory of the watched directory.
func New(cfg config.Config, st *catalog.Store) *Service {
	return &Service{
		cfg:     cfg,
		store:   st,
		applier: delta.NewApplier(st),
		arch:    archive.NewManager(filepath.Join(cfg.UpdatesDir, "processed")),
		loader:  source.NewLoader(cfg.CatalogSource),
		g:       newGate(),
	}
}

// Start begins watching the updates directory, schedules the daily resync and
// processes any files already present (catch-up after a restart).
func (s *Service) Start(parent context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if err := os.MkdirAll(s.cfg.UpdatesDir, 0o755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create updates dir: %w", err)
	}
	w, err := newDirWatcher(s.cfg.UpdatesDir)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.running = true
	s.work = make(chan workItem, 256)
	s.mu.Unlock()

	s.wg.Add(3)
	go s.consumeLoop(ctx)
	go s.eventLoop(ctx, w)
	go s.resyncLoop(ctx)

	s.enqueueExisting(ctx)
	obs.Logger.Info("monitoring_started", "dir", s.cfg.UpdatesDir)
	return nil
}

// Stop detaches the watcher and the timer. A file already admitted past the
// gate finishes processing; queued but unstarted work is dropped.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	obs.Logger.Info("monitoring_stopped")
	return nil
}

// Running reports whether monitoring is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ProcessFile reads, parses, applies and archives one delta file under the
// gate. Malformed files are archived anyway so they can never wedge the
// watcher; a vanished path is the no-op duplicate-notification case.
func (s *Service) ProcessFile(ctx context.Context, path string) (rep model.ApplyReport, err error) {
	kind := delta.KindOf(path)
	if kind == model.KindUnknown {
		obs.Logger.Warn("unrecognized_file", "path", path)
		return model.ApplyReport{}, ErrUnrecognized
	}
	if err := s.g.Acquire(ctx); err != nil {
		return model.ApplyReport{}, err
	}
	defer s.g.Release()
	defer func() {
		if r := recover(); r != nil {
			obs.Logger.Error("scheduler_fault", "path", path, "panic", fmt.Sprint(r))
			err = fmt.Errorf("scheduler fault: %v", r)
		}
	}()

	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			obs.Logger.Debug("file_already_gone", "path", path)
			return model.ApplyReport{}, ErrFileNotFound
		}
		obs.Logger.Error("file_read_failed", "path", path, "error", readErr)
		return model.ApplyReport{}, fmt.Errorf("read delta file: %w", readErr)
	}

	records, parseErr := delta.Parse(raw, kind)
	if parseErr != nil {
		obs.Logger.Error("delta_parse_failed", "path", path, "error", parseErr)
	} else {
		rep = s.applier.Apply(records, kind)
	}

	// Archive runs regardless of parse or per-record outcome.
	archived := s.arch.Archive(path)
	s.noteProcessed(archived)

	obs.Logger.Info("delta_file_processed",
		"path", path,
		"kind", string(kind),
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"archived_as", archived,
	)
	return rep, parseErr
}

// ProcessFileByName is the manual trigger: it processes a file by bare name
// inside the watched directory. Re-triggering an already archived name yields
// ErrFileNotFound.
func (s *Service) ProcessFileByName(ctx context.Context, name string) (model.ApplyReport, error) {
	if name == "" || name != filepath.Base(name) {
		return model.ApplyReport{}, ErrFileNotFound
	}
	path := filepath.Join(s.cfg.UpdatesDir, name)
	if _, err := os.Stat(path); err != nil {
		return model.ApplyReport{}, ErrFileNotFound
	}
	return s.ProcessFile(ctx, path)
}

// FullResync reloads every catalog section from the external source and swaps
// the store wholesale, under the same gate as delta processing.
func (s *Service) FullResync(ctx context.Context) (err error) {
	if err := s.g.Acquire(ctx); err != nil {
		return err
	}
	defer s.g.Release()
	defer func() {
		if r := recover(); r != nil {
			obs.Logger.Error("scheduler_fault", "op", "full_resync", "panic", fmt.Sprint(r))
			err = fmt.Errorf("scheduler fault: %v", r)
		}
	}()

	start := time.Now()
	entries, err := s.loader.Load()
	if err != nil {
		obs.Logger.Error("full_resync_failed", "error", err)
		return err
	}
	s.store.ReplaceAll(entries)

	s.mu.Lock()
	s.lastResync = time.Now()
	s.mu.Unlock()
	obs.Logger.Info("full_resync_complete", "entries", len(entries), "took_ms", time.Since(start).Milliseconds())
	return nil
}

// Status reports the pipeline state. IsProcessing is read off the gate itself
// so it cannot drift from reality.
func (s *Service) Status() model.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SyncStatus{
		IsRunning:               s.running,
		IsProcessing:            s.g.Held(),
		LastDeltaSyncTime:       s.lastDelta,
		ProcessedFileCount:      s.processed,
		NextScheduledResyncTime: s.nextResync,
	}
}

// RecentDeltaInfo reports the most recently archived file names, newest first.
func (s *Service) RecentDeltaInfo() model.RecentDeltaInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]string, len(s.recent))
	copy(files, s.recent)
	return model.RecentDeltaInfo{
		LastSyncTime:       s.lastDelta,
		ProcessedFileCount: s.processed,
		RecentFiles:        files,
	}
}

// LastResyncTime returns when the last full resync completed.
func (s *Service) LastResyncTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResync
}

func (s *Service) noteProcessed(archivedName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDelta = time.Now()
	s.processed++
	if archivedName == "" {
		return
	}
	s.recent = append([]string{archivedName}, s.recent...)
	if len(s.recent) > recentFilesKept {
		s.recent = s.recent[:recentFilesKept]
	}
}

// consumeLoop is the single consumer of watcher work items. Settling and
// processing happen here, never in the event callback path.
func (s *Service) consumeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-s.work:
			// The settle window is counted from enqueue, so a file that
			// sat behind earlier work only waits out what is left of it.
			if wait := s.settleWait(it); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
			if _, err := s.ProcessFile(ctx, it.path); err != nil {
				// Terminal boundary: nothing may propagate past the
				// consumer or the next notification would be lost.
				switch {
				case errors.Is(err, ErrFileNotFound):
				case errors.Is(err, ErrUnrecognized):
				case errors.Is(err, context.Canceled):
				case errors.Is(err, delta.ErrMalformed): // already logged and archived
				default:
					obs.Logger.Error("delta_processing_failed", "path", it.path, "error", err)
				}
			}
		}
	}
}

// resyncLoop fires the full resync at each daily boundary.
func (s *Service) resyncLoop(ctx context.Context) {
	defer s.wg.Done()
	hour, minute, err := parseResyncAt(s.cfg.ResyncAt)
	if err != nil {
		obs.Logger.Error("resync_time_invalid", "value", s.cfg.ResyncAt, "error", err)
		hour, minute = 0, 0
	}
	next := nextBoundary(time.Now(), hour, minute)
	s.setNextResync(next)
	t := time.NewTimer(time.Until(next))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			next = s.fireResync(ctx, next)
			t.Reset(time.Until(next))
		}
	}
}

// fireResync handles one timer tick. The boundary advances by 24h from the
// fire time before the resync launches, so a slow load or a long gate wait
// never shifts the schedule.
func (s *Service) fireResync(ctx context.Context, next time.Time) time.Time {
	next = next.Add(24 * time.Hour)
	s.setNextResync(next)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.FullResync(ctx); err != nil && !errors.Is(err, context.Canceled) {
			obs.Logger.Error("scheduled_resync_failed", "error", err)
		}
	}()
	return next
}

func (s *Service) setNextResync(at time.Time) {
	s.mu.Lock()
	s.nextResync = at
	s.mu.Unlock()
}

// enqueueExisting scans the watched directory once so files dropped while the
// service was down are processed without waiting for a new event.
func (s *Service) enqueueExisting(ctx context.Context) {
	ents, err := os.ReadDir(s.cfg.UpdatesDir)
	if err != nil {
		obs.Logger.Error("catchup_scan_failed", "dir", s.cfg.UpdatesDir, "error", err)
		return
	}
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		s.dispatch(ctx, workItem{path: filepath.Join(s.cfg.UpdatesDir, e.Name())})
	}
}

// settleWait returns how much of the settle window remains for an item, zero
// or negative when the item needs no settling or has already waited it out.
func (s *Service) settleWait(it workItem) time.Duration {
	if !it.settle || s.cfg.SettleDelay <= 0 {
		return 0
	}
	return s.cfg.SettleDelay - time.Since(it.enqueued)
}

func (s *Service) dispatch(ctx context.Context, it workItem) {
	if delta.KindOf(it.path) == model.KindUnknown {
		// Left in place for an operator: not archived, not deleted.
		obs.Logger.Warn("unrecognized_file", "path", it.path)
		return
	}
	if it.enqueued.IsZero() {
		it.enqueued = time.Now()
	}
	select {
	case s.work <- it:
	case <-ctx.Done():
	}
}
