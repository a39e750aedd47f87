// Package catalog owns the record of source videos, derived artifacts and
// overlay descriptors. All writes are single-row inserts or updates; the
// only cross-entity check is the artifact's parent-video reference, which
// runs in the same transaction as the insert.
package catalog

import (
	"context"

	"videoforge/internal/model"
)

// ProbeResult is the one-time metadata backfill for a source video.
type ProbeResult struct {
	Duration float64
	Width    int
	Height   int
	Format   string
}

type Store interface {
	// RegisterVideo persists a new source video, assigning an ID when
	// none is set.
	RegisterVideo(ctx context.Context, v *model.Video) error
	// GetVideo fails with a reference error when id does not resolve.
	GetVideo(ctx context.Context, id string) (*model.Video, error)
	// ListVideos pages by creation time descending, ID descending on
	// ties, and returns the total row count.
	ListVideos(ctx context.Context, offset, limit int) ([]model.Video, int64, error)
	// SetVideoProbe writes the metadata fields. They are written exactly
	// once, right after upload; transforms only ever read them.
	SetVideoProbe(ctx context.Context, id string, probe ProbeResult) error
	// RegisterArtifact persists a derived artifact; the source video must
	// exist or the call fails with a reference error.
	RegisterArtifact(ctx context.Context, a *model.ProcessedVideo) error
	// ListArtifacts returns a video's artifacts, newest first.
	ListArtifacts(ctx context.Context, videoID string) ([]model.ProcessedVideo, error)
	// ArtifactExistsByPath reports whether any artifact row points at
	// path. The orphan sweeper uses it to tell registered output from
	// debris.
	ArtifactExistsByPath(ctx context.Context, path string) (bool, error)
	// RegisterOverlay attaches an overlay descriptor to an artifact.
	RegisterOverlay(ctx context.Context, o *model.Overlay) error
}
