// Package worker is the dispatcher: a pool of N goroutines pulling tasks
// from the durable queue and driving the ledger, executor and catalog for
// each claimed job. A claimed job is mutated only by its worker until it
// reaches a terminal state.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"videoforge/internal/catalog"
	"videoforge/internal/errs"
	"videoforge/internal/ledger"
	"videoforge/internal/media"
	"videoforge/internal/model"
	"videoforge/internal/queue"
	"videoforge/internal/storage"
)

type Deps struct {
	Queue    queue.Queue
	Ledger   ledger.Store
	Catalog  catalog.Store
	Storage  *storage.Manager
	Mirror   *storage.Mirror // optional
	Executor *media.Executor
	Logger   *slog.Logger

	Count       int
	PollTimeout time.Duration
}

type Pool struct {
	deps Deps
	wg   sync.WaitGroup
}

func NewPool(deps Deps) *Pool {
	if deps.Count < 1 {
		deps.Count = 1
	}
	if deps.PollTimeout <= 0 {
		deps.PollTimeout = 5 * time.Second
	}
	return &Pool{deps: deps}
}

// Run blocks until ctx is cancelled and every worker has drained. A job
// claimed before cancellation runs to its terminal state; cancellation of
// in-flight work is not supported.
func (p *Pool) Run(ctx context.Context) error {
	for i := 0; i < p.deps.Count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Wait()
	return ctx.Err()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.deps.Logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping")
			return
		default:
		}

		task, err := p.deps.Queue.Dequeue(ctx, p.deps.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping")
				return
			}
			log.Error("failed to pop from queue", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		log.Info("claimed job", "job_id", task.JobID, "kind", task.Kind)
		// Detach from the shutdown signal so a claimed job finishes even
		// when the pool is asked to stop.
		p.process(context.WithoutCancel(ctx), log, task)
	}
}

func (p *Pool) process(ctx context.Context, log *slog.Logger, task *queue.Task) {
	job, err := p.deps.Ledger.Get(ctx, task.JobID)
	if err != nil {
		log.Error("job record missing for task", "job_id", task.JobID, "error", err)
		return
	}
	if job.Status.Terminal() {
		// At-least-once delivery: a duplicate of a finished job.
		log.Debug("dropping redelivered terminal job", "job_id", job.ID, "status", job.Status)
		return
	}

	if _, err := p.transition(ctx, job.ID, model.StatusProcessing, intPtr(0), "", ""); err != nil {
		log.Error("failed to mark job processing", "job_id", job.ID, "error", err)
		return
	}

	result, err := p.execute(ctx, log, job, task)
	if err != nil {
		p.fail(ctx, log, job.ID, err)
		return
	}

	if _, err := p.transition(ctx, job.ID, model.StatusCompleted, intPtr(100), result, ""); err != nil {
		log.Error("failed to mark job completed", "job_id", job.ID, "error", err)
		return
	}
	log.Info("job completed", "job_id", job.ID, "result", result)
}

func (p *Pool) execute(ctx context.Context, log *slog.Logger, job *model.Job, task *queue.Task) (string, error) {
	video, err := p.deps.Catalog.GetVideo(ctx, job.VideoID)
	if err != nil {
		return "", err
	}

	switch task.Kind {
	case model.KindProbe:
		return p.runProbe(ctx, job, video)
	case model.KindTrim:
		return p.runTrim(ctx, job, video)
	case model.KindOverlay:
		return p.runOverlay(ctx, job, video)
	case model.KindWatermark:
		return p.runWatermark(ctx, job, video)
	case model.KindQuality:
		return p.runQuality(ctx, log, job, video)
	default:
		return "", errs.New(errs.Validation, "unknown job kind: %s", task.Kind)
	}
}

func (p *Pool) fail(ctx context.Context, log *slog.Logger, jobID string, cause error) {
	log.Error("job failed", "job_id", jobID, "kind_of_failure", errs.KindOf(cause), "error", cause)
	if _, err := p.transition(ctx, jobID, model.StatusFailed, nil, "", cause.Error()); err != nil {
		log.Error("failed to mark job failure", "job_id", jobID, "error", err)
	}
}

func (p *Pool) transition(ctx context.Context, jobID string, status model.JobStatus, progress *int, result, errMsg string) (*model.Job, error) {
	return p.deps.Ledger.Transition(ctx, jobID, ledger.Update{
		Status:         status,
		Progress:       progress,
		ResultFilePath: result,
		ErrorMessage:   errMsg,
	})
}

func (p *Pool) progress(ctx context.Context, jobID string, value int) {
	if _, err := p.transition(ctx, jobID, model.StatusProcessing, &value, "", ""); err != nil {
		p.deps.Logger.Warn("failed to update progress", "job_id", jobID, "error", err)
	}
}

func intPtr(v int) *int { return &v }
