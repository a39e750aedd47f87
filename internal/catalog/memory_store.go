package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"videoforge/internal/errs"
	"videoforge/internal/model"
)

// MemoryStore is the mutex-and-maps implementation used by tests and by
// local development without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	videos    map[string]*model.Video
	artifacts map[string]*model.ProcessedVideo
	overlays  map[string]*model.Overlay
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:    make(map[string]*model.Video),
		artifacts: make(map[string]*model.ProcessedVideo),
		overlays:  make(map[string]*model.Overlay),
	}
}

func (s *MemoryStore) RegisterVideo(_ context.Context, v *model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.UploadTime.IsZero() {
		v.UploadTime = time.Now().UTC()
	}
	clone := *v
	s.videos[v.ID] = &clone
	return nil
}

func (s *MemoryStore) GetVideo(_ context.Context, id string) (*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, errs.New(errs.Reference, "video %s not found", id)
	}
	clone := *v
	return &clone, nil
}

func (s *MemoryStore) ListVideos(_ context.Context, offset, limit int) ([]model.Video, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]model.Video, 0, len(s.videos))
	for _, v := range s.videos {
		all = append(all, *v)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UploadTime.Equal(all[j].UploadTime) {
			return all[i].UploadTime.After(all[j].UploadTime)
		}
		return all[i].ID > all[j].ID
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Video{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *MemoryStore) SetVideoProbe(_ context.Context, id string, probe ProbeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok || v.Duration != nil {
		return nil
	}
	d, w, h, f := probe.Duration, probe.Width, probe.Height, probe.Format
	v.Duration, v.Width, v.Height, v.Format = &d, &w, &h, &f
	return nil
}

func (s *MemoryStore) RegisterArtifact(_ context.Context, a *model.ProcessedVideo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[a.OriginalVideoID]; !ok {
		return errs.New(errs.Reference, "source video %s not found", a.OriginalVideoID)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	clone := *a
	s.artifacts[a.ID] = &clone
	return nil
}

func (s *MemoryStore) ListArtifacts(_ context.Context, videoID string) ([]model.ProcessedVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ProcessedVideo, 0)
	for _, a := range s.artifacts {
		if a.OriginalVideoID == videoID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ArtifactExistsByPath(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.artifacts {
		if a.FilePath == path {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RegisterOverlay(_ context.Context, o *model.Overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[o.ProcessedVideoID]; !ok {
		return errs.New(errs.Reference, "artifact %s not found", o.ProcessedVideoID)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	clone := *o
	s.overlays[o.ID] = &clone
	return nil
}
