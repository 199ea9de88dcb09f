package api

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title       string  `json:"title"       validate:"required,max=255"`
	Description *string `json:"description"`
	// Priority defaults to 1 when omitted.
	Priority *int `json:"priority" validate:"omitnil,min=1,max=5"`
}

// OptionalString distinguishes an absent JSON field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records that the field was present.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// UpdateTaskRequest is the body of PUT /tasks/{id}. Absent and null fields
// are left unchanged, except description, where null clears it.
type UpdateTaskRequest struct {
	Title       *string        `json:"title"       validate:"omitnil,max=255"`
	Description OptionalString `json:"description"`
	Status      *string        `json:"status"      validate:"omitnil,oneof=pending in_progress completed failed"`
	Priority    *int           `json:"priority"    validate:"omitnil,min=1,max=5"`
}

// Patch converts the request into a domain patch.
func (r UpdateTaskRequest) Patch() domain.TaskPatch {
	patch := domain.TaskPatch{
		Title:    r.Title,
		Priority: r.Priority,
	}
	if r.Description.Set {
		if r.Description.Value == nil {
			patch.ClearDescription = true
		} else {
			patch.Description = r.Description.Value
		}
	}
	if r.Status != nil {
		status := domain.TaskStatus(*r.Status)
		patch.Status = &status
	}
	return patch
}

// ListTasksQuery holds the query parameters of GET /tasks.
type ListTasksQuery struct {
	Skip     int    `json:"skip"     validate:"gte=0"`
	Limit    int    `json:"limit"    validate:"gte=1,lte=1000"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority *int   `json:"priority" validate:"omitnil,min=1,max=5"`
}

// ParseListTasksQuery reads list parameters from a URL query. Integer
// parameters that do not parse are reported as validation errors.
func ParseListTasksQuery(values url.Values) (ListTasksQuery, error) {
	q := ListTasksQuery{
		Limit:  store.DefaultListLimit,
		Title:  values.Get("title"),
		Status: values.Get("status"),
	}

	var err error
	if q.Skip, err = queryInt(values, "skip", q.Skip); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(values, "limit", q.Limit); err != nil {
		return q, err
	}
	if values.Has("priority") {
		p, err := queryInt(values, "priority", 0)
		if err != nil {
			return q, err
		}
		q.Priority = &p
	}
	return q, nil
}

func queryInt(values url.Values, name string, fallback int) (int, error) {
	if !values.Has(name) {
		return fallback, nil
	}
	n, err := strconv.Atoi(values.Get(name))
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", domain.ErrValidation)
	}
	return n, nil
}

// Filter converts the query into a store filter.
func (q ListTasksQuery) Filter() store.TaskFilter {
	return store.TaskFilter{
		Skip:     q.Skip,
		Limit:    q.Limit,
		Title:    q.Title,
		Status:   q.Status,
		Priority: q.Priority,
	}
}

// TaskResponse is the JSON form of a task.
type TaskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Priority    int       `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskLogResponse is the JSON form of a status log entry.
type TaskLogResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskWithLogsResponse is a task with its status history, oldest first.
type TaskWithLogsResponse struct {
	TaskResponse
	Logs []TaskLogResponse `json:"logs"`
}

func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, taskToResponse(task))
	}
	return resp
}

func taskWithLogsToResponse(twl *domain.TaskWithLogs) TaskWithLogsResponse {
	logs := make([]TaskLogResponse, 0, len(twl.Logs))
	for _, l := range twl.Logs {
		logs = append(logs, TaskLogResponse{
			ID:        l.ID,
			TaskID:    l.TaskID,
			Status:    string(l.Status),
			CreatedAt: l.CreatedAt,
		})
	}
	return TaskWithLogsResponse{
		TaskResponse: taskToResponse(twl.Task),
		Logs:         logs,
	}
}
