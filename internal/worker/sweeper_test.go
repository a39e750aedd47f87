package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoforge/internal/catalog"
	"videoforge/internal/model"
	"videoforge/internal/storage"
)

func TestSweepRemovesOnlyOldUnregisteredFiles(t *testing.T) {
	base := t.TempDir()
	st := storage.NewManager(filepath.Join(base, "uploads"), filepath.Join(base, "processed"))
	require.NoError(t, st.EnsureDir(storage.CategoryProcessed))
	dir := st.Dir(storage.CategoryProcessed)

	cat := catalog.NewMemoryStore()
	video := &model.Video{Filename: "v.mp4", OriginalFilename: "v.mp4", FilePath: "/uploads/v.mp4", FileSize: 1, MimeType: "video/mp4"}
	require.NoError(t, cat.RegisterVideo(context.Background(), video))

	old := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		stale := time.Now().Add(-48 * time.Hour)
		require.NoError(t, os.Chtimes(path, stale, stale))
		return path
	}

	orphan := old("orphan.mp4")
	registered := old("registered.mp4")
	require.NoError(t, cat.RegisterArtifact(context.Background(), &model.ProcessedVideo{
		OriginalVideoID: video.ID,
		Filename:        "registered.mp4",
		FilePath:        registered,
		FileSize:        1,
		ProcessingType:  model.KindTrim,
	}))

	fresh := filepath.Join(dir, "fresh.mp4")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	sweeper := &Sweeper{Catalog: cat, Storage: st, MaxAge: 24 * time.Hour, Logger: slog.Default()}
	require.NoError(t, sweeper.Sweep(context.Background()))

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err), "old unregistered file must be removed")
	_, err = os.Stat(registered)
	assert.NoError(t, err, "registered artifact must survive")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "recent file must survive, its transform may still be running")
}
