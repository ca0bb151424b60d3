package service

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Suriyanand/financial-document-analyzer/pkg/log"
)

// UploadSweeper removes aged-out files from the uploads directory. Workers
// delete a document as soon as its analysis finishes; the sweeper catches
// the leftovers orphaned by crashes or rejected submissions.
type UploadSweeper struct {
	dir string
	ttl time.Duration
}

func NewUploadSweeper(dir string, ttl time.Duration) *UploadSweeper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UploadSweeper{dir: dir, ttl: ttl}
}

// Sweep removes upload files whose modification time is older than the TTL
// and returns how many were removed.
func (s *UploadSweeper) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, WrapError(err, ErrStorage, "read uploads directory")
	}

	cutoff := now.Add(-s.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Warn("Failed to remove stale upload %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Schedule registers the sweep on the given cron runner.
func (s *UploadSweeper) Schedule(c *cron.Cron, expr string) (cron.EntryID, error) {
	return c.AddFunc(expr, func() {
		removed, err := s.Sweep(time.Now())
		if err != nil {
			log.Error("Upload sweep failed: %v", err)
			return
		}
		if removed > 0 {
			log.Info("Upload sweep removed %d stale file(s)", removed)
		}
	})
}
