package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"syncup-api/core/constants"
	"syncup-api/core/controller"
	"syncup-api/core/errors"
	"syncup-api/core/logger"
	"syncup-api/core/utils"
	"syncup-api/modules/event/dto"
	"syncup-api/modules/event/service"
	"syncup-api/modules/event/validator"
	"time"

	"github.com/labstack/echo/v4"
)

// EventController handles event HTTP requests
type EventController struct {
	controller.BaseController
	EventService service.EventServiceInterface
	heartbeat    time.Duration
}

func NewEventController(svc service.EventServiceInterface) *EventController {
	return &EventController{
		BaseController: controller.NewBaseController(),
		EventService:   svc,
		heartbeat:      constants.StreamHeartbeat,
	}
}

// participant returns the username of the signed-in caller, or "" when anonymous.
func participant(ctx echo.Context) string {
	claims := utils.GetClaims(ctx)
	if claims == nil {
		return ""
	}
	return claims.Username
}

// CreateEvent handles POST /public/events
// @Summary Create an event
// @Description Creates a scheduling grid over the chosen dates and hours and returns its share link
// @Tags Event
// @Accept json
// @Produce json
// @Param request body dto.CreateEventRequest true "Event name, dates and hours"
// @Success 201 {object} dto.EventResponse
// @Failure 400 {object} errors.AppError
// @Failure 429 {object} errors.AppError
// @Router /public/events [post]
func (c *EventController) CreateEvent(ctx echo.Context) error {
	var req dto.CreateEventRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}

	if result := validator.ValidateCreateEvent(&req); result.HasError() {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid event", result.Errors)
	}

	resp, appErr := c.EventService.CreateEvent(ctx.Request().Context(), &req, participant(ctx))
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}

	return c.CreatedResponse(ctx, resp, "Event created successfully")
}

// GetEvent handles GET /public/events/:key
// @Summary Get an event
// @Description Returns the event with its slot axis, hour labels and date headers
// @Tags Event
// @Produce json
// @Param key path string true "Event key"
// @Success 200 {object} dto.EventResponse
// @Failure 404 {object} errors.AppError
// @Router /public/events/{key} [get]
func (c *EventController) GetEvent(ctx echo.Context) error {
	resp, appErr := c.EventService.GetEvent(ctx.Request().Context(), ctx.Param("key"))
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}
	return c.SuccessResponse(ctx, resp, "Get event successfully")
}

// GetGroupAvailability handles GET /public/events/:key/availability
// @Summary Group availability
// @Description Heatmap counts, legend, per-cell participants and ranked best times
// @Tags Event
// @Produce json
// @Param key path string true "Event key"
// @Success 200 {object} dto.GroupAvailabilityResponse
// @Failure 404 {object} errors.AppError
// @Router /public/events/{key}/availability [get]
func (c *EventController) GetGroupAvailability(ctx echo.Context) error {
	resp, appErr := c.EventService.GetGroupAvailability(ctx.Request().Context(), ctx.Param("key"))
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}
	return c.SuccessResponse(ctx, resp, "Get availability successfully")
}

// GetMyAvailability handles GET /private/events/:key/availability/me
// @Summary My availability
// @Tags Event
// @Security BearerAuth
// @Produce json
// @Param key path string true "Event key"
// @Success 200 {object} dto.MyAvailabilityResponse
// @Failure 401 {object} errors.AppError
// @Failure 404 {object} errors.AppError
// @Router /private/events/{key}/availability/me [get]
func (c *EventController) GetMyAvailability(ctx echo.Context) error {
	who := participant(ctx)
	if who == "" {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	resp, appErr := c.EventService.GetMyAvailability(ctx.Request().Context(), ctx.Param("key"), who)
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}
	return c.SuccessResponse(ctx, resp, "Get availability successfully")
}

// ReplaceMyAvailability handles PUT /private/events/:key/availability/me
// @Summary Replace my availability
// @Description Queues the caller's whole set; every slot must be on the event grid
// @Tags Event
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param key path string true "Event key"
// @Param request body dto.ReplaceAvailabilityRequest true "Selected slots"
// @Success 202 {object} dto.MyAvailabilityResponse
// @Failure 400 {object} errors.AppError
// @Failure 401 {object} errors.AppError
// @Failure 503 {object} errors.AppError
// @Router /private/events/{key}/availability/me [put]
func (c *EventController) ReplaceMyAvailability(ctx echo.Context) error {
	who := participant(ctx)
	if who == "" {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	var req dto.ReplaceAvailabilityRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}

	resp, appErr := c.EventService.ReplaceMyAvailability(ctx.Request().Context(), ctx.Param("key"), who, &req)
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}
	return ctx.JSON(http.StatusAccepted, controller.NewSuccessResponse(http.StatusAccepted, resp, "Availability update queued"))
}

// ReplayGesture handles POST /events/:key/availability/me/gestures. Anonymous
// callers get a read-only replay.
// @Summary Replay a pointer gesture
// @Description Runs down/enter/up/release events through the selection engine and queues the resulting toggle
// @Tags Event
// @Accept json
// @Produce json
// @Param key path string true "Event key"
// @Param request body dto.GestureRequest true "Recorded pointer events"
// @Success 200 {object} dto.GestureResponse
// @Failure 400 {object} errors.AppError
// @Failure 404 {object} errors.AppError
// @Failure 503 {object} errors.AppError
// @Router /events/{key}/availability/me/gestures [post]
func (c *EventController) ReplayGesture(ctx echo.Context) error {
	var req dto.GestureRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}

	if result := validator.ValidateGesture(&req); result.HasError() {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid gesture", result.Errors)
	}

	resp, appErr := c.EventService.ReplayGesture(ctx.Request().Context(), ctx.Param("key"), participant(ctx), &req)
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}
	return c.SuccessResponse(ctx, resp, "Gesture applied")
}

// Export handles POST /private/events/:key/export
// @Summary Export a snapshot
// @Description Uploads the event and its group view as JSON to object storage
// @Tags Event
// @Security BearerAuth
// @Produce json
// @Param key path string true "Event key"
// @Success 201 {object} dto.ExportResponse
// @Failure 404 {object} errors.AppError
// @Failure 503 {object} errors.AppError
// @Router /private/events/{key}/export [post]
func (c *EventController) Export(ctx echo.Context) error {
	resp, appErr := c.EventService.ExportSnapshot(ctx.Request().Context(), ctx.Param("key"))
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}
	return c.CreatedResponse(ctx, resp, "Snapshot exported")
}

// Presence handles GET /public/events/:key/presence
// @Summary Online viewers
// @Tags Event
// @Produce json
// @Param key path string true "Event key"
// @Success 200 {object} dto.PresenceResponse
// @Router /public/events/{key}/presence [get]
func (c *EventController) Presence(ctx echo.Context) error {
	key := ctx.Param("key")
	n, appErr := c.EventService.CountPresence(ctx.Request().Context(), key)
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}
	return c.SuccessResponse(ctx, dto.PresenceResponse{EventKey: key, Online: n}, "Get presence successfully")
}

// Stream handles GET /public/events/:key/stream. It sends the group view and
// viewer count on connect, again after every change, and keeps the viewer's
// presence alive until the client goes away.
// @Summary Live availability stream
// @Tags Event
// @Produce text/event-stream
// @Param key path string true "Event key"
// @Success 200 {string} string "availability and presence events"
// @Failure 404 {object} errors.AppError
// @Router /public/events/{key}/stream [get]
func (c *EventController) Stream(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	key := ctx.Param("key")

	changes, unsubscribe, appErr := c.EventService.Subscribe(reqCtx, key)
	if appErr != nil {
		return c.AppErrorResponse(appErr)
	}
	defer unsubscribe()

	viewer := participant(ctx)
	if viewer == "" {
		viewer = "anon-" + utils.GenerateID()
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	online, _ := c.EventService.JoinPresence(reqCtx, key, viewer)
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), constants.PresenceLeaveTimeout)
		defer cancel()
		c.EventService.LeavePresence(leaveCtx, key, viewer)
	}()

	logger.Info("EventController:Stream:Open", "event_key", key, "viewer", viewer)

	if err := c.sendAvailability(ctx, key); err != nil {
		return nil
	}
	if err := writeEvent(res, "presence", dto.PresenceResponse{EventKey: key, Online: online}); err != nil {
		return nil
	}

	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-reqCtx.Done():
			logger.Info("EventController:Stream:Closed", "event_key", key, "viewer", viewer)
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := c.sendAvailability(ctx, key); err != nil {
				return nil
			}
		case <-ticker.C:
			online, appErr := c.EventService.JoinPresence(reqCtx, key, viewer)
			if appErr != nil {
				continue
			}
			if err := writeEvent(res, "presence", dto.PresenceResponse{EventKey: key, Online: online}); err != nil {
				return nil
			}
		}
	}
}

func (c *EventController) sendAvailability(ctx echo.Context, key string) error {
	view, appErr := c.EventService.GetGroupAvailability(ctx.Request().Context(), key)
	if appErr != nil {
		logger.Warn("EventController:Stream:Availability", "event_key", key, "error", appErr)
		return appErr
	}
	return writeEvent(ctx.Response(), "availability", view)
}

func writeEvent(res *echo.Response, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
