package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/events"
	"github.com/phrazzld/taskhub-api/internal/platform/logger"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// EventTypeProcessingRequested is emitted by StartProcessing. The processor
// registers a handler for it.
const EventTypeProcessingRequested = "task_processing_requested"

// MaxListLimit is the largest page size List accepts.
const MaxListLimit = 1000

// CreateTaskParams holds the user-supplied fields of a new task.
type CreateTaskParams struct {
	Title       string
	Description *string
	// Priority of zero selects domain.DefaultPriority.
	Priority int
}

// TaskService is the task lifecycle engine.
type TaskService interface {
	// Create stores a new pending task. It returns a validation error for an
	// empty title or a priority outside [1,5].
	Create(ctx context.Context, params CreateTaskParams) (*domain.Task, error)

	// Get returns a task or ErrTaskNotFound.
	Get(ctx context.Context, id int64) (*domain.Task, error)

	// GetWithLogs returns a task with its status logs, oldest first.
	GetWithLogs(ctx context.Context, id int64) (*domain.TaskWithLogs, error)

	// List returns tasks in insertion order. A zero limit selects
	// store.DefaultListLimit.
	List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error)

	// Update applies a partial update. A status change appends a log entry
	// in the same transaction; an update that changes nothing writes nothing.
	Update(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error)

	// Delete removes a task and its logs.
	Delete(ctx context.Context, id int64) error

	// StartProcessing moves a task to in_progress and hands it to the
	// processor. If the processor refuses it, the task is marked failed and
	// ErrProcessingUnavailable is returned.
	StartProcessing(ctx context.Context, id int64) (*domain.Task, error)
}

// TaskServiceOption configures the task service.
type TaskServiceOption func(*taskServiceImpl)

// WithTxRetry retries update transactions that fail with an error retryable
// reports as transient. A nil retryable uses store.IsTransient.
func WithTxRetry(attempts int, retryable func(error) bool) TaskServiceOption {
	return func(s *taskServiceImpl) {
		if attempts > 0 {
			s.txAttempts = attempts
		}
		if retryable != nil {
			s.retryable = retryable
		}
	}
}

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *taskServiceImpl) {
		s.now = now
	}
}

type taskServiceImpl struct {
	repo       store.TaskStore
	emitter    events.EventEmitter
	logger     *slog.Logger
	now        func() time.Time
	txAttempts int
	retryable  func(error) bool
}

// NewTaskService creates a TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	repo store.TaskStore,
	emitter events.EventEmitter,
	logger *slog.Logger,
	opts ...TaskServiceOption,
) (TaskService, error) {
	if repo == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "repo cannot be nil"}
	}
	if emitter == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "emitter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &taskServiceImpl{
		repo:       repo,
		emitter:    emitter,
		logger:     logger.With("component", "task_service"),
		now:        time.Now,
		txAttempts: 1,
		retryable:  store.IsTransient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *taskServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

func (s *taskServiceImpl) txOptions() []store.TxOption {
	return []store.TxOption{store.WithRetry(s.txAttempts, s.retryable)}
}

// Create implements TaskService.Create.
func (s *taskServiceImpl) Create(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	log := s.log(ctx)

	task, err := domain.NewTask(params.Title, params.Description, params.Priority)
	if err != nil {
		log.Debug("rejected invalid task", "error", err)
		return nil, err
	}

	if err := s.repo.Create(ctx, task); err != nil {
		log.Error("failed to create task", "error", err)
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created",
		"task_id", task.ID,
		"priority", task.Priority)
	return task, nil
}

// Get implements TaskService.Get.
func (s *taskServiceImpl) Get(ctx context.Context, id int64) (*domain.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			s.log(ctx).Error("failed to retrieve task", "error", err, "task_id", id)
		}
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}
	return task, nil
}

// GetWithLogs implements TaskService.GetWithLogs. The task and its logs are
// read in one transaction so they describe the same state.
func (s *taskServiceImpl) GetWithLogs(ctx context.Context, id int64) (*domain.TaskWithLogs, error) {
	var result domain.TaskWithLogs

	err := store.RunInTransaction(ctx, s.repo.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txRepo := s.repo.WithTx(tx)

		task, err := txRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		logs, err := txRepo.GetLogs(ctx, id)
		if err != nil {
			return err
		}

		result = domain.TaskWithLogs{Task: task, Logs: logs}
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			s.log(ctx).Error("failed to retrieve task with logs", "error", err, "task_id", id)
		}
		return nil, NewTaskServiceError("get_task_with_logs", "failed to retrieve task", err)
	}
	return &result, nil
}

// List implements TaskService.List.
func (s *taskServiceImpl) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = store.DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}

	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		s.log(ctx).Error("failed to list tasks", "error", err)
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// Update implements TaskService.Update. The row is locked for the duration
// of the transaction so concurrent updates are logged in commit order.
func (s *taskServiceImpl) Update(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error) {
	log := s.log(ctx).With("task_id", id)

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var (
		result        *domain.Task
		statusChanged bool
	)
	err := store.RunInTransaction(ctx, s.repo.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txRepo := s.repo.WithTx(tx)

		task, err := txRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		var changed bool
		changed, statusChanged = task.Apply(patch)
		if !changed {
			result = task
			return nil
		}

		task.Touch(s.now())
		if err := txRepo.Update(ctx, task); err != nil {
			return err
		}

		if statusChanged {
			entry := &domain.TaskLog{
				TaskID:    task.ID,
				Status:    task.Status,
				CreatedAt: task.UpdatedAt,
			}
			if err := txRepo.CreateLog(ctx, entry); err != nil {
				return err
			}
		}

		result = task
		return nil
	}, s.txOptions()...)
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			log.Error("failed to update task", "error", err)
		}
		return nil, NewTaskServiceError("update_task", "failed to update task", err)
	}

	if statusChanged {
		log.Info("task status changed", "status", result.Status)
	} else {
		log.Debug("task updated")
	}
	return result, nil
}

// Delete implements TaskService.Delete.
func (s *taskServiceImpl) Delete(ctx context.Context, id int64) error {
	err := store.RunInTransaction(ctx, s.repo.DB(), func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	}, s.txOptions()...)
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			s.log(ctx).Error("failed to delete task", "error", err, "task_id", id)
		}
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	s.log(ctx).Info("task deleted", "task_id", id)
	return nil
}

// StartProcessing implements TaskService.StartProcessing.
func (s *taskServiceImpl) StartProcessing(ctx context.Context, id int64) (*domain.Task, error) {
	log := s.log(ctx).With("task_id", id)

	task, err := s.Update(ctx, id, domain.StatusPatch(domain.TaskStatusInProgress))
	if err != nil {
		return nil, err
	}

	payload := struct {
		TaskID int64 `json:"task_id"`
	}{
		TaskID: task.ID,
	}

	event, err := events.NewTaskRequestEvent(EventTypeProcessingRequested, payload)
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		log.Error("failed to hand task to processor", "error", err)

		// The processor will never pick this task up; do not leave it in_progress.
		if _, failErr := s.Update(context.WithoutCancel(ctx), id, domain.StatusPatch(domain.TaskStatusFailed)); failErr != nil {
			log.Error("failed to mark unprocessable task as failed", "error", failErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrProcessingUnavailable, err)
	}

	log.Info("task processing started", "event_id", event.ID)
	return task, nil
}
