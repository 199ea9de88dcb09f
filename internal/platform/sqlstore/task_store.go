package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/platform/logger"
	"github.com/phrazzld/taskhub-api/internal/store"
)

const taskColumns = "id, title, description, status, priority, created_at, updated_at"

// TaskStore implements store.TaskStore on database/sql.
type TaskStore struct {
	db      store.DBTX
	pool    *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// TaskStoreOption configures a TaskStore.
type TaskStoreOption func(*TaskStore)

// WithClock overrides the time source used for created_at timestamps.
func WithClock(now func() time.Time) TaskStoreOption {
	return func(s *TaskStore) {
		s.now = now
	}
}

// NewTaskStore creates a TaskStore over db using the given dialect.
// If logger is nil, a default logger will be used.
func NewTaskStore(db *sql.DB, dialect Dialect, logger *slog.Logger, opts ...TaskStoreOption) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &TaskStore{
		db:      db,
		pool:    db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "task_store")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure TaskStore implements store.TaskStore interface
var _ store.TaskStore = (*TaskStore)(nil)

// WithTx implements store.TaskStore.WithTx.
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	clone := *s
	clone.db = tx
	return &clone
}

// DB implements store.TaskStore.DB.
func (s *TaskStore) DB() *sql.DB {
	return s.pool
}

// Create implements store.TaskStore.Create.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.timestamp()
	task.CreatedAt = now
	task.UpdatedAt = now

	query := `INSERT INTO tasks (title, description, status, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	args := []any{task.Title, nullString(task.Description), string(task.Status), task.Priority, now, now}

	id, err := s.insert(ctx, query, args...)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("title_prefix", prefix(task.Title, 32)))
		return store.NewStoreError("task", "create", "failed to insert task", MapError(err))
	}
	task.ID = id

	log.Debug("task created",
		slog.Int64("task_id", task.ID),
		slog.String("status", string(task.Status)))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *TaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	return s.get(ctx, id, "")
}

// GetByIDForUpdate implements store.TaskStore.GetByIDForUpdate.
func (s *TaskStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	return s.get(ctx, id, s.dialect.lockClause)
}

func (s *TaskStore) get(ctx context.Context, id int64, suffix string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := "SELECT " + taskColumns + " FROM tasks WHERE id = ?" + suffix
	task, err := scanTask(s.db.QueryRowContext(ctx, s.dialect.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, store.NewStoreError("task", "get", "failed to query task", MapError(err))
	}
	return task, nil
}

// List implements store.TaskStore.List.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		conds []string
		args  []any
	)
	if filter.Title != "" {
		conds = append(conds, s.dialect.titleMatch)
		args = append(args, likePattern(filter.Title))
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Priority != nil {
		conds = append(conds, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if !filter.UpdatedBefore.IsZero() {
		conds = append(conds, "updated_at < ?")
		args = append(args, filter.UpdatedBefore.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	var b strings.Builder
	b.WriteString("SELECT " + taskColumns + " FROM tasks")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY id LIMIT ? OFFSET ?")
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(b.String()), args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list", "failed to query tasks", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("task", "list", "failed to scan task", MapError(err))
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "list", "failed to iterate tasks", MapError(err))
	}

	log.Debug("tasks listed", slog.Int("count", len(tasks)))
	return tasks, nil
}

// Update implements store.TaskStore.Update.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE tasks
		SET title = ?, description = ?, status = ?, priority = ?, updated_at = ?
		WHERE id = ?`
	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		task.Title,
		nullString(task.Description),
		string(task.Status),
		task.Priority,
		task.UpdatedAt.UTC(),
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", task.ID))
		return store.NewStoreError("task", "update", "failed to update task", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return err
	}

	log.Debug("task updated",
		slog.Int64("task_id", task.ID),
		slog.String("status", string(task.Status)))
	return nil
}

// Delete implements store.TaskStore.Delete. Logs are deleted explicitly as
// well as through the foreign key so the result does not depend on
// foreign key enforcement being enabled.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind("DELETE FROM task_logs WHERE task_id = ?"), id); err != nil {
		log.Error("failed to delete task logs",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return store.NewStoreError("task_log", "delete", "failed to delete task logs", MapError(err))
	}

	result, err := s.db.ExecContext(ctx, s.dialect.Rebind("DELETE FROM tasks WHERE id = ?"), id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return store.NewStoreError("task", "delete", "failed to delete task", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return err
	}

	log.Debug("task deleted", slog.Int64("task_id", id))
	return nil
}

// CreateLog implements store.TaskStore.CreateLog.
func (s *TaskStore) CreateLog(ctx context.Context, entry *domain.TaskLog) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.timestamp()
	}

	query := `INSERT INTO task_logs (task_id, status, created_at) VALUES (?, ?, ?)`
	id, err := s.insert(ctx, query, entry.TaskID, string(entry.Status), entry.CreatedAt.UTC())
	if err != nil {
		log.Error("failed to create task log",
			slog.String("error", err.Error()),
			slog.Int64("task_id", entry.TaskID))
		return store.NewStoreError("task_log", "create", "failed to insert task log", MapError(err))
	}
	entry.ID = id

	log.Debug("task log created",
		slog.Int64("task_id", entry.TaskID),
		slog.String("status", string(entry.Status)))
	return nil
}

// GetLogs implements store.TaskStore.GetLogs.
func (s *TaskStore) GetLogs(ctx context.Context, taskID int64) ([]domain.TaskLog, error) {
	query := `SELECT id, task_id, status, created_at FROM task_logs WHERE task_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), taskID)
	if err != nil {
		return nil, store.NewStoreError("task_log", "list", "failed to query task logs", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	logs := make([]domain.TaskLog, 0)
	for rows.Next() {
		var (
			entry  domain.TaskLog
			status string
		)
		if err := rows.Scan(&entry.ID, &entry.TaskID, &status, &entry.CreatedAt); err != nil {
			return nil, store.NewStoreError("task_log", "list", "failed to scan task log", MapError(err))
		}
		entry.Status = domain.TaskStatus(status)
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task_log", "list", "failed to iterate task logs", MapError(err))
	}
	return logs, nil
}

// insert runs an INSERT and returns the generated id.
func (s *TaskStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect.insertReturning {
		var id int64
		err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *TaskStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		description sql.NullString
		status      string
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&status,
		&task.Priority,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = &description.String
	}
	task.Status = domain.TaskStatus(status)
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// prefix returns at most the first n runes of s.
func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
