package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/taskhub-api/internal/domain"
)

// DefaultListLimit is the page size used when a filter does not set one.
const DefaultListLimit = 100

// TaskFilter narrows a task listing. Zero values disable a filter.
type TaskFilter struct {
	Skip  int
	Limit int

	// Title matches tasks whose title contains the value, case-insensitively.
	Title string
	// Status matches the status exactly.
	Status string
	// Priority matches the priority exactly when non-nil.
	Priority *int
	// UpdatedBefore matches tasks last updated strictly before this instant.
	UpdatedBefore time.Time
}

// TaskStore defines the interface for task and task log persistence.
type TaskStore interface {
	// Create inserts a new task and assigns its ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// GetByIDForUpdate retrieves a task and locks its row until the surrounding
	// transaction ends. It only makes sense on a store bound with WithTx.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Task, error)

	// List returns tasks matching the filter in insertion order.
	// Returns an empty slice if nothing matches.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// Update writes the mutable fields of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task and all of its logs.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id int64) error

	// CreateLog appends a status log entry and assigns its ID.
	CreateLog(ctx context.Context, log *domain.TaskLog) error

	// GetLogs returns the logs of a task, oldest first.
	GetLogs(ctx context.Context, taskID int64) ([]domain.TaskLog, error)

	// WithTx returns a TaskStore that runs every statement on tx.
	WithTx(tx *sql.Tx) TaskStore

	// DB returns the underlying connection pool.
	DB() *sql.DB
}
