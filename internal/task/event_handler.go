package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskhub-api/internal/events"
)

// Submitter accepts task IDs for background processing.
type Submitter interface {
	Submit(ctx context.Context, taskID int64) error
}

// ProcessingEventHandler implements events.EventHandler and hands processing
// requests to a Submitter.
type ProcessingEventHandler struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewProcessingEventHandler creates a handler that submits the task named in
// every EventTypeProcessingRequested event.
func NewProcessingEventHandler(submitter Submitter, logger *slog.Logger) *ProcessingEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessingEventHandler{
		submitter: submitter,
		logger:    logger.With("component", "processing_event_handler"),
	}
}

// HandleEvent submits the requested task. Events of other types are ignored.
func (h *ProcessingEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.Type != EventTypeProcessingRequested {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var req ProcessingRequest
	if err := event.UnmarshalPayload(&req); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if req.TaskID <= 0 {
		h.logger.Error("invalid task ID", "task_id", req.TaskID, "event_id", event.ID)
		return fmt.Errorf("invalid task ID %d", req.TaskID)
	}

	if err := h.submitter.Submit(ctx, req.TaskID); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", req.TaskID,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task %d: %w", req.TaskID, err)
	}

	h.logger.Info("task submitted for processing",
		"task_id", req.TaskID,
		"event_id", event.ID)
	return nil
}

var _ events.EventHandler = (*ProcessingEventHandler)(nil)
var _ Submitter = (*Processor)(nil)
