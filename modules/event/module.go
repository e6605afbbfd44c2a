package event

import (
	"syncup-api/core/cache"
	"syncup-api/core/config"
	"syncup-api/core/database"
	"syncup-api/core/middleware"
	"syncup-api/core/storage"
	"syncup-api/modules/event/controller"
	"syncup-api/modules/event/document"
	"syncup-api/modules/event/repository"
	"syncup-api/modules/event/router"
	"syncup-api/modules/event/service"
	"syncup-api/modules/event/worker"

	"github.com/labstack/echo/v4"
)

// NewService builds the event service shared by the HTTP module and the worker.
func NewService(db database.Database, redis cache.Cache, writer service.AvailabilityWriter, uploader storage.Uploader, cfg *config.Config) *service.EventService {
	repo := repository.NewEventRepository(db)
	store := document.NewStore(repo, redis)
	return service.NewEventService(store, writer, redis, uploader, cfg.Frontend.URL)
}

// Init initializes the event module and registers routes
func Init(e *echo.Echo, db database.Database, redis cache.Cache, mw *middleware.Middleware, enqueuer worker.Enqueuer, uploader storage.Uploader, cfg *config.Config) *service.EventService {
	svc := NewService(db, redis, worker.NewQueueWriter(enqueuer), uploader, cfg)
	ctrl := controller.NewEventController(svc)
	rtr := router.NewEventRouter(ctrl, redis)

	rtr.Setup(e, mw)
	return svc
}
