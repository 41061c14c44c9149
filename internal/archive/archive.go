// Package archive relocates processed delta files out of the watched directory.
package archive

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kioshini/catalog-sync-service/internal/obs"
)

// stampLayout sorts lexicographically, so the archive lists in processing order.
const stampLayout = "20060102_150405"

// Manager moves processed files into the archive directory, renamed with a
// timestamp prefix. Archival failure is logged and swallowed; it must never
// block the pipeline.
type Manager struct {
	dir string
	now func() time.Time
}

// NewManager creates a Manager that archives into dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now}
}

// Archive moves path into the archive directory as
// "{YYYYMMDD_HHmmss}_{originalName}" and returns the archived file name. If
// the move fails the original is deleted instead, so the file can never be
// picked up again; in that case the returned name is empty.
func (m *Manager) Archive(path string) string {
	name := m.now().Format(stampLayout) + "_" + filepath.Base(path)
	dest := filepath.Join(m.dir, name)
	err := os.MkdirAll(m.dir, 0o755)
	if err == nil {
		if err = os.Rename(path, dest); err == nil {
			obs.Logger.Info("file_archived", "path", path, "archived_as", name)
			return name
		}
	}
	obs.Logger.Error("archive_move_failed", "path", path, "dest", dest, "error", err)
	if err := os.Remove(path); err != nil {
		obs.Logger.Error("archive_delete_failed", "path", path, "error", err)
	} else {
		obs.Logger.Warn("file_deleted_after_archive_failure", "path", path)
	}
	return ""
}
