package events

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskflow-api/internal/platform/logger"
)

// LogHandler records every event at debug level.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler. If logger is nil, a default logger will be used.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger.With(slog.String("component", "event_log"))}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	attrs := []any{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.String("company_id", event.CompanyID.String()),
		slog.String("task_id", event.TaskID.String()),
		slog.String("state", string(event.State)),
	}
	if event.RecipientID != nil {
		attrs = append(attrs, slog.String("recipient_id", event.RecipientID.String()))
	}
	logger.FromContextOrDefault(ctx, h.logger).Debug("task event", attrs...)
	return nil
}
