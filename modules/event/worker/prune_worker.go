package worker

import (
	"context"
	"syncup-api/core/constants"
	"syncup-api/core/errors"

	"github.com/hibiken/asynq"
)

// CommitPruner forgets commit ids kept for duplicate detection.
type CommitPruner interface {
	PruneAppliedCommits(ctx context.Context) (int64, *errors.AppError)
}

func NewPruneCommitsTask() *asynq.Task {
	return asynq.NewTask(constants.TaskAvailabilityPruneCommits, nil, asynq.Queue(constants.QueueLow), asynq.MaxRetry(1))
}

type PruneHandler struct {
	svc CommitPruner
}

func NewPruneHandler(svc CommitPruner) *PruneHandler {
	return &PruneHandler{svc: svc}
}

func (h *PruneHandler) HandlePruneCommits(ctx context.Context, _ *asynq.Task) error {
	if _, appErr := h.svc.PruneAppliedCommits(ctx); appErr != nil {
		return appErr
	}
	return nil
}
