package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task field limits.
const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 1
	MaxTitleLength  = 255
)

// TaskStatuses lists every status the lifecycle engine accepts.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusFailed,
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// ParseTaskStatus converts a raw string into a TaskStatus.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(raw)
	if !status.IsValid() {
		return "", NewValidationError("status",
			fmt.Sprintf("must be one of pending, in_progress, completed, failed; got %q", raw),
			ErrInvalidTaskStatus)
	}
	return status, nil
}

// Task is a unit of work tracked by the service.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    int        `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskLog records a single status transition of a task.
type TaskLog struct {
	ID        int64      `json:"id"`
	TaskID    int64      `json:"task_id"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// TaskWithLogs is a task together with its status history, oldest first.
type TaskWithLogs struct {
	Task *Task
	Logs []TaskLog
}

// NewTask creates a pending task. A zero priority selects DefaultPriority.
// The ID and timestamps are assigned by the store on insert.
func NewTask(title string, description *string, priority int) (*Task, error) {
	if priority == 0 {
		priority = DefaultPriority
	}

	task := &Task{
		Title:       title,
		Description: description,
		Status:      TaskStatusPending,
		Priority:    priority,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the task's user-controlled fields.
func (t *Task) Validate() error {
	if err := validateTitle(t.Title); err != nil {
		return err
	}
	if err := validatePriority(t.Priority); err != nil {
		return err
	}
	if !t.Status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", t.Status), ErrInvalidTaskStatus)
	}
	return nil
}

// Touch refreshes UpdatedAt. The new value is always strictly after the
// previous one, even when the clock has not advanced.
func (t *Task) Touch(now time.Time) {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Microsecond)
	}
	t.UpdatedAt = now
}

// Apply copies the fields set in p onto the task. It reports whether any
// field actually changed and whether the status changed.
func (t *Task) Apply(p TaskPatch) (changed, statusChanged bool) {
	if p.Title != nil && *p.Title != t.Title {
		t.Title = *p.Title
		changed = true
	}

	switch {
	case p.ClearDescription:
		if t.Description != nil {
			t.Description = nil
			changed = true
		}
	case p.Description != nil:
		if t.Description == nil || *t.Description != *p.Description {
			desc := *p.Description
			t.Description = &desc
			changed = true
		}
	}

	if p.Priority != nil && *p.Priority != t.Priority {
		t.Priority = *p.Priority
		changed = true
	}

	if p.Status != nil && *p.Status != t.Status {
		t.Status = *p.Status
		changed = true
		statusChanged = true
	}

	return changed, statusChanged
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	// ClearDescription removes the description; it takes precedence over Description.
	ClearDescription bool
	Status           *TaskStatus
	Priority         *int
}

// StatusPatch builds a patch that only changes the status.
func StatusPatch(status TaskStatus) TaskPatch {
	return TaskPatch{Status: &status}
}

// Validate checks every field present in the patch.
func (p TaskPatch) Validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Priority != nil {
		if err := validatePriority(*p.Priority); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.IsValid() {
		_, err := ParseTaskStatus(string(*p.Status))
		return err
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError("title", "title is required", ErrEmptyTitle)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return NewValidationError("title",
			fmt.Sprintf("must be at most %d characters", MaxTitleLength), ErrTitleTooLong)
	}
	return nil
}

func validatePriority(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return NewValidationError("priority",
			fmt.Sprintf("must be between %d and %d", MinPriority, MaxPriority), ErrInvalidPriority)
	}
	return nil
}
