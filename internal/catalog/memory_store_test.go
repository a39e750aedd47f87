package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoforge/internal/errs"
	"videoforge/internal/model"
)

func seedVideo(t *testing.T, s *MemoryStore, uploadedAt time.Time) *model.Video {
	t.Helper()
	v := &model.Video{
		Filename:         "stored.mp4",
		OriginalFilename: "holiday.mp4",
		FilePath:         "/uploads/stored.mp4",
		FileSize:         1024,
		MimeType:         "video/mp4",
		UploadTime:       uploadedAt,
	}
	require.NoError(t, s.RegisterVideo(context.Background(), v))
	return v
}

func TestRegisterAndGetVideo(t *testing.T) {
	s := NewMemoryStore()
	v := seedVideo(t, s, time.Now().UTC())
	require.NotEmpty(t, v.ID)

	got, err := s.GetVideo(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.OriginalFilename, got.OriginalFilename)

	_, err = s.GetVideo(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Reference))
}

func TestListVideosOrderAndPaging(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedVideo(t, s, base.Add(time.Duration(i)*time.Minute))
	}

	page, total, err := s.ListVideos(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	// Newest first.
	assert.True(t, page[0].UploadTime.After(page[1].UploadTime))

	rest, _, err := s.ListVideos(context.Background(), 4, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	empty, total, err := s.ListVideos(context.Background(), 99, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, empty)
}

func TestListVideosTieBreakIsDeterministic(t *testing.T) {
	s := NewMemoryStore()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		seedVideo(t, s, at)
	}

	first, _, err := s.ListVideos(context.Background(), 0, 4)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, _, err := s.ListVideos(context.Background(), 0, 4)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSetVideoProbeWritesOnce(t *testing.T) {
	s := NewMemoryStore()
	v := seedVideo(t, s, time.Now().UTC())
	ctx := context.Background()

	require.NoError(t, s.SetVideoProbe(ctx, v.ID, ProbeResult{Duration: 42.5, Width: 1280, Height: 720, Format: "mp4"}))
	got, err := s.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Duration)
	assert.Equal(t, 42.5, *got.Duration)

	// The second write does not overwrite the first.
	require.NoError(t, s.SetVideoProbe(ctx, v.ID, ProbeResult{Duration: 99, Width: 1, Height: 1, Format: "avi"}))
	got, err = s.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.5, *got.Duration)
	assert.Equal(t, 1280, *got.Width)
}

func TestRegisterArtifactChecksSourceReference(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.RegisterArtifact(ctx, &model.ProcessedVideo{
		OriginalVideoID: "ghost",
		FilePath:        "/processed/x.mp4",
		ProcessingType:  model.KindTrim,
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Reference))

	v := seedVideo(t, s, time.Now().UTC())
	a := &model.ProcessedVideo{
		OriginalVideoID: v.ID,
		Filename:        "x.mp4",
		FilePath:        "/processed/x.mp4",
		FileSize:        10,
		ProcessingType:  model.KindTrim,
	}
	require.NoError(t, s.RegisterArtifact(ctx, a))
	require.NotEmpty(t, a.ID)

	exists, err := s.ArtifactExistsByPath(ctx, "/processed/x.mp4")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.ArtifactExistsByPath(ctx, "/processed/other.mp4")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListArtifactsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	v := seedVideo(t, s, time.Now().UTC())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RegisterArtifact(ctx, &model.ProcessedVideo{
			OriginalVideoID: v.ID,
			FilePath:        fmt.Sprintf("/processed/%d.mp4", i),
			ProcessingType:  model.KindQuality,
			CreatedAt:       base.Add(time.Duration(i) * time.Second),
		}))
	}

	artifacts, err := s.ListArtifacts(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	assert.Equal(t, "/processed/2.mp4", artifacts[0].FilePath)
	assert.Equal(t, "/processed/0.mp4", artifacts[2].FilePath)
}

func TestRegisterOverlayRequiresArtifact(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.RegisterOverlay(ctx, &model.Overlay{ProcessedVideoID: "missing", OverlayType: "text"})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Reference))

	v := seedVideo(t, s, time.Now().UTC())
	a := &model.ProcessedVideo{OriginalVideoID: v.ID, FilePath: "/processed/o.mp4", ProcessingType: model.KindOverlay}
	require.NoError(t, s.RegisterArtifact(ctx, a))
	require.NoError(t, s.RegisterOverlay(ctx, &model.Overlay{
		ProcessedVideoID: a.ID,
		OverlayType:      "text",
		Content:          "hello",
	}))
}
