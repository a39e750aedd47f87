package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"videoforge/internal/catalog"
	"videoforge/internal/storage"
)

// Sweeper removes stale files from the processed directory that no
// catalog row points at: debris from crashes between a transform writing
// its output and the artifact being registered. Files younger than MaxAge
// are left alone, since a transform may still be in flight for them.
type Sweeper struct {
	Catalog catalog.Store
	Storage *storage.Manager
	MaxAge  time.Duration
	Logger  *slog.Logger
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	dir := s.Storage.Dir(storage.CategoryProcessed)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	now := time.Now()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < s.MaxAge {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		registered, err := s.Catalog.ArtifactExistsByPath(ctx, path)
		if err != nil {
			s.Logger.Warn("sweep: catalog lookup failed", "path", path, "error", err)
			continue
		}
		if registered {
			continue
		}
		if err := s.Storage.Discard(path); err != nil {
			s.Logger.Warn("sweep: failed to remove orphan", "path", path, "error", err)
			continue
		}
		s.Logger.Info("sweep: removed orphaned output", "path", path, "age", now.Sub(info.ModTime()))
		removed++
	}
	if removed > 0 {
		s.Logger.Info("sweep finished", "removed", removed)
	}
	return nil
}
