package queue

import (
	"context"
	"syncup-api/core/config"
	"syncup-api/core/constants"
	"syncup-api/core/logger"

	"github.com/hibiken/asynq"
)

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// NewServer builds the task server. Availability writes run on the default queue
// ahead of housekeeping on the low queue.
func NewServer(redisCfg config.RedisConfig, workerCfg config.WorkerConfig) *asynq.Server {
	concurrency := workerCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(RedisOpt(redisCfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			constants.QueueDefault: 6,
			constants.QueueLow:     1,
		},
		Logger:   logger.AsynqLogger{},
		LogLevel: asynq.InfoLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("Queue:Server:TaskFailed",
				"type", task.Type(),
				"retry", retried,
				"max_retry", maxRetry,
				"error", err,
			)
		}),
	})
}

func NewScheduler(cfg config.RedisConfig) *asynq.Scheduler {
	return asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		Logger: logger.AsynqLogger{},
	})
}
