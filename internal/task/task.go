package task

import (
	"context"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/service"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// EventTypeProcessingRequested is the event type that asks for a task to be processed.
const EventTypeProcessingRequested = service.EventTypeProcessingRequested

// ProcessingRequest is the payload of an EventTypeProcessingRequested event.
type ProcessingRequest struct {
	TaskID int64 `json:"task_id"`
}

// Lifecycle is the subset of the lifecycle engine the processor re-enters.
type Lifecycle interface {
	Get(ctx context.Context, id int64) (*domain.Task, error)
	Update(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error)
	List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error)
}

// Notifier receives human-readable outcome messages.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Phase is one step of the simulated workflow. A returned error fails the run.
type Phase func(ctx context.Context, task *domain.Task) error

// TaskQueueReader provides read-only access to queued task IDs
// allowing workers to consume them without the ability to enqueue.
type TaskQueueReader interface {
	// GetChannel returns a read-only channel of task IDs
	GetChannel() <-chan int64
}

// TaskQueueWriter provides write access to the task queue.
type TaskQueueWriter interface {
	// Enqueue adds a task ID to the queue.
	// Returns ErrQueueFull or ErrQueueClosed when it cannot.
	Enqueue(taskID int64) error

	// Close prevents further submissions.
	Close()
}
