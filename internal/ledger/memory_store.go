package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"videoforge/internal/errs"
	"videoforge/internal/model"
)

// MemoryStore backs tests and database-less development. A VideoExists
// hook stands in for the foreign-key check the SQL store gets for free.
type MemoryStore struct {
	mu     sync.Mutex
	jobs   map[string]*model.Job
	logger *slog.Logger

	// VideoExists guards Create's source-video reference. Nil allows all.
	VideoExists func(videoID string) bool
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job), logger: logger}
}

func (s *MemoryStore) Create(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.VideoExists != nil && !s.VideoExists(job.VideoID) {
		return errs.New(errs.Reference, "video %s not found", job.VideoID)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.Status = model.StatusPending
	job.Progress = 0
	job.CreatedAt = now
	job.UpdatedAt = now
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, errs.New(errs.Reference, "job %s not found", id)
	}
	clone := *job
	return &clone, nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, u Update) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, errs.New(errs.Reference, "job %s not found", id)
	}
	changed, err := apply(job, u)
	if err != nil {
		return nil, err
	}
	if !changed {
		s.logger.Debug("transition on terminal job ignored",
			"job_id", id, "status", job.Status, "requested", u.Status)
	} else {
		job.UpdatedAt = time.Now().UTC()
	}
	clone := *job
	return &clone, nil
}
