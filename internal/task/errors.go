package task

import (
	"errors"
	"fmt"
)

// Common errors returned by the processor and its queue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")

	// ErrNotStarted is returned by Submit before Start has been called.
	ErrNotStarted = errors.New("processor not started")

	// ErrStuck is the cause recorded for tasks failed by the stuck task sweep.
	ErrStuck = errors.New("processing did not finish in time")

	// ErrShutdown is the cause recorded for runs interrupted by Stop.
	ErrShutdown = errors.New("processor shut down")
)

// IsUnavailable reports whether err means the processor refused a submission.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) || errors.Is(err, ErrNotStarted)
}

// ProcessorFault describes why a processing run failed. It never leaves the
// processor: it is resolved by marking the task failed and notifying.
type ProcessorFault struct {
	// Stage is where the run failed (load, phase N, complete, panic).
	Stage string
	Err   error
}

// Error implements the error interface.
func (f *ProcessorFault) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

// Unwrap returns the underlying error.
func (f *ProcessorFault) Unwrap() error {
	return f.Err
}
