// Package queue is the durable hand-off between submission and execution.
// The Redis list gives at-least-once delivery with exactly one consumer
// claiming each task; the memory queue mirrors the contract for tests.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"videoforge/internal/model"
)

// Task is the queue envelope. JobID doubles as the ledger row ID so the
// two records stay correlated; Payload is the typed transform config.
type Task struct {
	JobID   string              `json:"job_id"`
	VideoID string              `json:"video_id"`
	Kind    model.TransformKind `json:"kind"`
	Payload json.RawMessage     `json:"payload,omitempty"`
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks up to timeout and returns (nil, nil) when nothing
	// arrived. A returned task is claimed by this caller alone.
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)
}
