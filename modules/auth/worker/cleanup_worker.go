package worker

import (
	"context"
	"syncup-api/core/constants"
	"syncup-api/core/errors"

	"github.com/hibiken/asynq"
)

// StateCleaner removes OAuth states that were never used.
type StateCleaner interface {
	CleanupExpiredStates(ctx context.Context) (int64, *errors.AppError)
}

func NewCleanupStatesTask() *asynq.Task {
	return asynq.NewTask(constants.TaskOAuthCleanupStates, nil, asynq.Queue(constants.QueueLow), asynq.MaxRetry(1))
}

type CleanupHandler struct {
	svc StateCleaner
}

func NewCleanupHandler(svc StateCleaner) *CleanupHandler {
	return &CleanupHandler{svc: svc}
}

func (h *CleanupHandler) HandleCleanupStates(ctx context.Context, _ *asynq.Task) error {
	if _, appErr := h.svc.CleanupExpiredStates(ctx); appErr != nil {
		return appErr
	}
	return nil
}
