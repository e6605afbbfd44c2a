package router

import (
	"syncup-api/core/middleware"
	"syncup-api/modules/event/controller"
	"time"

	"github.com/labstack/echo/v4"
)

// Event creation is limited per client IP.
const (
	createEventLimit  = 20
	createEventWindow = time.Minute
)

type EventRouter struct {
	EventController *controller.EventController
	counter         middleware.WindowCounter
}

func NewEventRouter(eventController *controller.EventController, counter middleware.WindowCounter) *EventRouter {
	return &EventRouter{
		EventController: eventController,
		counter:         counter,
	}
}

// Setup registers event routes
func (r *EventRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	publicRoutes := v1.Group("/public/events")
	publicRoutes.POST("", r.EventController.CreateEvent,
		mw.OptionalAuthMiddleware(),
		mw.RateLimit(r.counter, "events:create", createEventLimit, createEventWindow),
	)
	publicRoutes.GET("/:key", r.EventController.GetEvent)
	publicRoutes.GET("/:key/availability", r.EventController.GetGroupAvailability)
	publicRoutes.GET("/:key/presence", r.EventController.Presence)
	publicRoutes.GET("/:key/stream", r.EventController.Stream, mw.OptionalAuthMiddleware())

	privateRoutes := v1.Group("/private/events", mw.AuthMiddleware())
	privateRoutes.GET("/:key/availability/me", r.EventController.GetMyAvailability)
	privateRoutes.PUT("/:key/availability/me", r.EventController.ReplaceMyAvailability)
	privateRoutes.POST("/:key/export", r.EventController.Export)

	// Gestures from anonymous viewers are replayed read-only.
	v1.POST("/events/:key/availability/me/gestures", r.EventController.ReplayGesture, mw.OptionalAuthMiddleware())
}
