package task

import (
	"fmt"
	"log/slog"
	"sync"
)

// TaskQueue implements a buffered queue of task IDs that satisfies both
// TaskQueueReader and TaskQueueWriter interfaces.
type TaskQueue struct {
	mu     sync.RWMutex
	tasks  chan int64
	logger *slog.Logger
	closed bool
}

// NewTaskQueue creates a new task queue with the specified buffer size
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskQueue{
		tasks:  make(chan int64, size),
		logger: logger,
	}
}

// Enqueue adds a task ID to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *TaskQueue) Enqueue(taskID int64) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- taskID:
		q.logger.Debug("task enqueued",
			"task_id", taskID,
			"queue_len", len(q.tasks),
			"queue_cap", cap(q.tasks))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.tasks))
	}
}

// Close closes the task queue, preventing further task submission.
// Already queued IDs remain readable.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
		q.logger.Info("task queue closed")
	}
}

// Len returns the number of queued task IDs.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// GetChannel returns a read-only channel for consuming task IDs
func (q *TaskQueue) GetChannel() <-chan int64 {
	return q.tasks
}
