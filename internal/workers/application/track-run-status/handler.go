// internal/workers/application/track-run-status/handler.go
package trackrunstatus

import (
	"context"
	"strings"

	"social-support-workers/internal/common/errors"
	"social-support-workers/internal/common/logger"
)

const (
	TaskType = "track-run-status"
)

// Handler is the status accessor callers poll while a run is in flight.
type Handler struct {
	store  *Store
	logger logger.Logger
}

func NewHandler(store *Store, log logger.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.ApplicationID) == "" {
		return nil, errors.NewInvalidApplicationError("applicationId is required")
	}

	view, source, err := h.store.Get(ctx, input.ApplicationID)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeRunNotFound) {
			h.logger.Error("status lookup failed", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"error":         err.Error(),
			})
		}
		return nil, err
	}

	if source == SourceDatabase {
		h.logger.Debug("status served from database", map[string]interface{}{
			"applicationId": input.ApplicationID,
		})
	}

	return &Output{Status: *view, Source: source}, nil
}
