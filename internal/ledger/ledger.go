// Package ledger owns the lifecycle record for each submitted unit of
// work. Legal transitions are pending -> processing -> {completed, failed};
// a transition requested on a terminal job is absorbed as a no-op because
// the queue delivers at least once and duplicate completion signals are
// expected, not exceptional.
package ledger

import (
	"context"

	"videoforge/internal/errs"
	"videoforge/internal/model"
)

// Update describes one requested transition. Progress is a pointer so a
// status change without a progress change leaves the current value alone.
type Update struct {
	Status         model.JobStatus
	Progress       *int
	ResultFilePath string
	ErrorMessage   string
}

type Store interface {
	// Create persists a new job in pending at progress 0.
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	// Transition applies u under the state machine and returns the row
	// as stored afterwards. On a terminal job it returns the unchanged
	// row and no error.
	Transition(ctx context.Context, id string, u Update) (*model.Job, error)
}

// apply mutates job in place per the state machine. It returns false with
// no error for the terminal no-op case.
func apply(job *model.Job, u Update) (bool, error) {
	if job.Status.Terminal() {
		return false, nil
	}

	switch u.Status {
	case model.StatusProcessing:
		if job.Status != model.StatusPending && job.Status != model.StatusProcessing {
			return false, errs.New(errs.Validation, "job %s: illegal transition %s -> %s", job.ID, job.Status, u.Status)
		}
		job.Status = model.StatusProcessing
		if u.Progress != nil && *u.Progress > job.Progress {
			job.Progress = *u.Progress
		}
	case model.StatusCompleted:
		if job.Status != model.StatusProcessing {
			return false, errs.New(errs.Validation, "job %s: illegal transition %s -> completed", job.ID, job.Status)
		}
		if u.ResultFilePath == "" {
			return false, errs.New(errs.Validation, "job %s: completed without result path", job.ID)
		}
		job.Status = model.StatusCompleted
		job.Progress = 100
		job.ResultFilePath = u.ResultFilePath
		job.ErrorMessage = ""
	case model.StatusFailed:
		if job.Status != model.StatusProcessing {
			return false, errs.New(errs.Validation, "job %s: illegal transition %s -> failed", job.ID, job.Status)
		}
		if u.ErrorMessage == "" {
			return false, errs.New(errs.Validation, "job %s: failed without error message", job.ID)
		}
		job.Status = model.StatusFailed
		job.ErrorMessage = u.ErrorMessage
		job.ResultFilePath = ""
		// Progress freezes at its last reported value.
	default:
		return false, errs.New(errs.Validation, "job %s: illegal target status %q", job.ID, u.Status)
	}
	return true, nil
}
