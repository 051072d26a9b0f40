// Package queue is a Redis-backed delayed task queue with a worker pool
// consumer. Tasks carry plain values, never references to live objects.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskState is the lifecycle of one task.
type TaskState string

const (
	StateScheduled TaskState = "scheduled"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
)

// Task is one unit of deferred work.
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// NewTask builds a task with a fresh ID and payload encoded as JSON.
func NewTask(typ string, payload any) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Task{ID: uuid.NewString(), Type: typ, Payload: raw}, nil
}

// Decode unmarshals the payload into dest.
func (t Task) Decode(dest any) error {
	if err := json.Unmarshal(t.Payload, dest); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", t.Type, err))
	}
	return nil
}

// Scheduler defers a task until delay has elapsed.
type Scheduler interface {
	Schedule(ctx context.Context, task Task, delay time.Duration) error
}

// Handler runs a claimed task. Returning an error schedules a retry unless
// the error is Permanent or attempts are exhausted.
type Handler func(ctx context.Context, task Task) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
