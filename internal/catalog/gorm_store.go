package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"videoforge/internal/errs"
	"videoforge/internal/model"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) RegisterVideo(ctx context.Context, v *model.Video) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.UploadTime.IsZero() {
		v.UploadTime = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return errs.Wrap(errs.Persistence, err, "register video")
	}
	return nil
}

func (s *GormStore) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	var v model.Video
	err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.New(errs.Reference, "video %s not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, err, "get video %s", id)
	}
	return &v, nil
}

func (s *GormStore) ListVideos(ctx context.Context, offset, limit int) ([]model.Video, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Video{}).Count(&total).Error; err != nil {
		return nil, 0, errs.Wrap(errs.Persistence, err, "count videos")
	}
	var videos []model.Video
	err := s.db.WithContext(ctx).
		Order("upload_time DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&videos).Error
	if err != nil {
		return nil, 0, errs.Wrap(errs.Persistence, err, "list videos")
	}
	return videos, total, nil
}

func (s *GormStore) SetVideoProbe(ctx context.Context, id string, probe ProbeResult) error {
	res := s.db.WithContext(ctx).Model(&model.Video{}).
		Where("id = ? AND duration IS NULL", id).
		Updates(map[string]any{
			"duration": probe.Duration,
			"width":    probe.Width,
			"height":   probe.Height,
			"format":   probe.Format,
		})
	if res.Error != nil {
		return errs.Wrap(errs.Persistence, res.Error, "backfill video %s", id)
	}
	// RowsAffected 0 means the row is already probed or missing; the
	// backfill is once-only either way.
	return nil
}

func (s *GormStore) RegisterArtifact(ctx context.Context, a *model.ProcessedVideo) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Video{}).Where("id = ?", a.OriginalVideoID).Count(&count).Error; err != nil {
			return errs.Wrap(errs.Persistence, err, "check source video")
		}
		if count == 0 {
			return errs.New(errs.Reference, "source video %s not found", a.OriginalVideoID)
		}
		if err := tx.Create(a).Error; err != nil {
			return errs.Wrap(errs.Persistence, err, "register artifact")
		}
		return nil
	})
	return err
}

func (s *GormStore) ListArtifacts(ctx context.Context, videoID string) ([]model.ProcessedVideo, error) {
	var artifacts []model.ProcessedVideo
	err := s.db.WithContext(ctx).
		Where("original_video_id = ?", videoID).
		Order("created_at DESC, id DESC").
		Find(&artifacts).Error
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, err, "list artifacts for %s", videoID)
	}
	return artifacts, nil
}

func (s *GormStore) ArtifactExistsByPath(ctx context.Context, path string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ProcessedVideo{}).
		Where("file_path = ?", path).Count(&count).Error
	if err != nil {
		return false, errs.Wrap(errs.Persistence, err, "lookup artifact by path")
	}
	return count > 0, nil
}

func (s *GormStore) RegisterOverlay(ctx context.Context, o *model.Overlay) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.ProcessedVideo{}).Where("id = ?", o.ProcessedVideoID).Count(&count).Error; err != nil {
			return errs.Wrap(errs.Persistence, err, "check artifact")
		}
		if count == 0 {
			return errs.New(errs.Reference, "artifact %s not found", o.ProcessedVideoID)
		}
		if err := tx.Create(o).Error; err != nil {
			return errs.Wrap(errs.Persistence, err, "register overlay")
		}
		return nil
	})
	return err
}
