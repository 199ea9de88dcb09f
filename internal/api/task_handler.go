package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/taskhub-api/internal/api/shared"
	"github.com/phrazzld/taskhub-api/internal/platform/logger"
	"github.com/phrazzld/taskhub-api/internal/service"
)

// TaskHandler handles the /tasks endpoints.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// Routes mounts the task endpoints on r.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateTask)
	r.Get("/", h.ListTasks)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetTask)
		r.Put("/", h.UpdateTask)
		r.Delete("/", h.DeleteTask)
		r.Post("/process", h.ProcessTask)
	})
}

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err), "")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err), "Validation failed")
		return
	}

	params := service.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Priority != nil {
		params.Priority = *req.Priority
	}

	task, err := h.taskService.Create(r.Context(), params)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("task created", slog.Int64("task_id", task.ID), slog.Int("priority", task.Priority))
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	query, err := ParseListTasksQuery(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := shared.ValidateRequest(&query); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err), "Invalid query parameters")
		return
	}

	tasks, err := h.taskService.List(r.Context(), query.Filter())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// GetTask handles GET /tasks/{id} and includes the status history.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	twl, err := h.taskService.GetWithLogs(r.Context(), id)
	if err != nil {
		h.handleTaskError(w, r, id, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskWithLogsToResponse(twl))
}

// UpdateTask handles PUT /tasks/{id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err), "")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", ErrInvalidRequestBody, err), "Validation failed")
		return
	}

	task, err := h.taskService.Update(r.Context(), id, req.Patch())
	if err != nil {
		h.handleTaskError(w, r, id, err)
		return
	}

	log.Debug("task updated", slog.Int64("task_id", task.ID), slog.String("status", string(task.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), id); err != nil {
		h.handleTaskError(w, r, id, err)
		return
	}

	log.Info("task deleted", slog.Int64("task_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// ProcessTask handles POST /tasks/{id}/process. The task is returned as soon
// as it is in_progress; processing continues in the background.
func (h *TaskHandler) ProcessTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.StartProcessing(r.Context(), id)
	if err != nil {
		h.handleTaskError(w, r, id, err)
		return
	}

	log.Info("task processing started", slog.Int64("task_id", task.ID))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

func (h *TaskHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := getPathID(r, "id")
	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).
			Debug("invalid task id", slog.String("value", chi.URLParam(r, "id")))
		HandleAPIError(w, r, err, "")
		return 0, false
	}
	return id, true
}

// handleTaskError reports not-found with the requested ID in the message.
func (h *TaskHandler) handleTaskError(w http.ResponseWriter, r *http.Request, id int64, err error) {
	if errors.Is(err, service.ErrTaskNotFound) {
		HandleAPIError(w, r, err, fmt.Sprintf("Task with ID %d not found", id))
		return
	}
	HandleAPIError(w, r, err, "")
}
