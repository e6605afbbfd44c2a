package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"syncup-api/core/constants"
	"syncup-api/core/errors"
	"syncup-api/core/logger"
	"syncup-api/modules/event/entity"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client the writer needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueWriter turns committed sets into availability:write tasks. It returns
// as soon as the task is queued.
type QueueWriter struct {
	client Enqueuer
}

func NewQueueWriter(client Enqueuer) *QueueWriter {
	return &QueueWriter{client: client}
}

func NewAvailabilityWriteTask(msg entity.CommitMessage) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{
		asynq.Queue(constants.QueueDefault),
		asynq.MaxRetry(constants.AvailabilityWriteRetry),
		asynq.Timeout(constants.AvailabilityWriteTimeout),
	}
	// The commit id doubles as the task id so a repeated enqueue is rejected.
	if msg.ID != "" {
		opts = append(opts, asynq.TaskID(msg.ID))
	}
	return asynq.NewTask(constants.TaskAvailabilityWrite, payload, opts...), nil
}

func (w *QueueWriter) Write(ctx context.Context, msg entity.CommitMessage) error {
	task, err := NewAvailabilityWriteTask(msg)
	if err != nil {
		return fmt.Errorf("encode availability write: %w", err)
	}

	info, err := w.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue availability write: %w", err)
	}

	logger.Info("QueueWriter:Write:Enqueued",
		"task_id", info.ID,
		"event_key", msg.EventKey,
		"participant", msg.Participant,
		"mode", msg.Mode,
		"slots", msg.Slots.Len(),
	)
	return nil
}

// CommitApplier applies a queued commit to the shared document.
type CommitApplier interface {
	ApplyCommit(ctx context.Context, msg entity.CommitMessage) *errors.AppError
}

type AvailabilityHandler struct {
	svc CommitApplier
}

func NewAvailabilityHandler(svc CommitApplier) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

// HandleAvailabilityWrite applies one commit. Payloads that can never succeed
// are not retried.
func (h *AvailabilityHandler) HandleAvailabilityWrite(ctx context.Context, task *asynq.Task) error {
	var msg entity.CommitMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		logger.Error("AvailabilityHandler:HandleAvailabilityWrite:Decode", "error", err)
		return fmt.Errorf("decode availability write: %v: %w", err, asynq.SkipRetry)
	}

	appErr := h.svc.ApplyCommit(ctx, msg)
	if appErr == nil {
		return nil
	}

	switch appErr.Code {
	case errors.ErrNotFound, errors.ErrInvalidInput:
		logger.Warn("AvailabilityHandler:HandleAvailabilityWrite:Dropped",
			"event_key", msg.EventKey,
			"participant", msg.Participant,
			"reason", appErr.Message,
		)
		return fmt.Errorf("%s: %w", appErr.Message, asynq.SkipRetry)
	default:
		return appErr
	}
}

// IsSkipRetry reports whether err was marked as permanent.
func IsSkipRetry(err error) bool {
	return stderrors.Is(err, asynq.SkipRetry)
}
