package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"videoforge/internal/errs"
	"videoforge/internal/model"
)

type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewGormStore(db *gorm.DB, logger *slog.Logger) *GormStore {
	return &GormStore{db: db, logger: logger}
}

func (s *GormStore) Create(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.Status = model.StatusPending
	job.Progress = 0
	job.CreatedAt = now
	job.UpdatedAt = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Video{}).Where("id = ?", job.VideoID).Count(&count).Error; err != nil {
			return errs.Wrap(errs.Persistence, err, "check source video")
		}
		if count == 0 {
			return errs.New(errs.Reference, "video %s not found", job.VideoID)
		}
		if err := tx.Create(job).Error; err != nil {
			return errs.Wrap(errs.Persistence, err, "create job")
		}
		return nil
	})
	return err
}

func (s *GormStore) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.New(errs.Reference, "job %s not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Persistence, err, "get job %s", id)
	}
	return &job, nil
}

func (s *GormStore) Transition(ctx context.Context, id string, u Update) (*model.Job, error) {
	var job model.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.New(errs.Reference, "job %s not found", id)
			}
			return errs.Wrap(errs.Persistence, err, "load job %s", id)
		}
		changed, err := apply(&job, u)
		if err != nil {
			return err
		}
		if !changed {
			s.logger.Debug("transition on terminal job ignored",
				"job_id", id, "status", job.Status, "requested", u.Status)
			return nil
		}
		job.UpdatedAt = time.Now().UTC()
		// Guarded write: another worker completing the same delivery in
		// the window since the read would flip the row terminal, and a
		// save over that must not land.
		res := tx.Model(&model.Job{}).
			Where("id = ? AND status NOT IN ?", id, []model.JobStatus{model.StatusCompleted, model.StatusFailed}).
			Updates(map[string]any{
				"status":           job.Status,
				"progress":         job.Progress,
				"result_file_path": job.ResultFilePath,
				"error_message":    job.ErrorMessage,
				"updated_at":       job.UpdatedAt,
			})
		if res.Error != nil {
			return errs.Wrap(errs.Persistence, res.Error, "update job %s", id)
		}
		if res.RowsAffected == 0 {
			s.logger.Debug("transition lost to concurrent terminal write", "job_id", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}
