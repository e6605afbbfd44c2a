package server

import (
	"context"
	"syncup-api/core/config"
	"syncup-api/core/constants"
	"syncup-api/core/logger"
	"syncup-api/core/queue"
	"syncup-api/modules/auth"
	authworker "syncup-api/modules/auth/worker"
	"syncup-api/modules/event"
	eventworker "syncup-api/modules/event/worker"

	"github.com/hibiken/asynq"
)

// NewMux routes task types to their handlers.
func NewMux(availability *eventworker.AvailabilityHandler, prune *eventworker.PruneHandler, cleanup *authworker.CleanupHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(constants.TaskAvailabilityWrite, availability.HandleAvailabilityWrite)
	mux.HandleFunc(constants.TaskAvailabilityPruneCommits, prune.HandlePruneCommits)
	mux.HandleFunc(constants.TaskOAuthCleanupStates, cleanup.HandleCleanupStates)
	return mux
}

func runWorker(ctx context.Context, cfg *config.Config, d *deps) error {
	eventService := event.NewService(d.db, d.redis, eventworker.NewQueueWriter(d.client), d.uploader, cfg)
	authService := auth.NewService(d.db, d.redis, cfg)

	mux := NewMux(
		eventworker.NewAvailabilityHandler(eventService),
		eventworker.NewPruneHandler(eventService),
		authworker.NewCleanupHandler(authService),
	)

	srv := queue.NewServer(cfg.Redis, cfg.Worker)
	if err := srv.Start(mux); err != nil {
		return err
	}

	scheduler := queue.NewScheduler(cfg.Redis)
	if _, err := scheduler.Register(constants.OAuthCleanupCronSpec, authworker.NewCleanupStatesTask()); err != nil {
		srv.Shutdown()
		return err
	}
	if _, err := scheduler.Register(constants.AvailabilityPruneCronSpec, eventworker.NewPruneCommitsTask()); err != nil {
		srv.Shutdown()
		return err
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return err
	}

	logger.Info("Worker:Run:Started", "concurrency", cfg.Worker.Concurrency)
	<-ctx.Done()

	logger.Info("Worker:Run:ShuttingDown")
	scheduler.Shutdown()
	srv.Shutdown()
	return nil
}
