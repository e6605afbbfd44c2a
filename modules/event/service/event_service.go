package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"syncup-api/core/constants"
	"syncup-api/core/errors"
	"syncup-api/core/logger"
	"syncup-api/core/storage"
	"syncup-api/core/utils"
	"syncup-api/modules/event/document"
	"syncup-api/modules/event/dto"
	"syncup-api/modules/event/entity"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// AvailabilityWriter delivers committed sets to the shared document. Write
// must not wait for the document to acknowledge.
type AvailabilityWriter interface {
	Write(ctx context.Context, msg entity.CommitMessage) error
}

// PresenceTracker counts viewers that currently have an event open.
type PresenceTracker interface {
	TouchPresence(ctx context.Context, eventKey, viewerID string) error
	RemovePresence(ctx context.Context, eventKey, viewerID string) error
	CountPresence(ctx context.Context, eventKey string) (int64, error)
}

type EventServiceInterface interface {
	CreateEvent(ctx context.Context, req *dto.CreateEventRequest, createdBy string) (*dto.EventResponse, *errors.AppError)
	GetEvent(ctx context.Context, key string) (*dto.EventResponse, *errors.AppError)
	GetGroupAvailability(ctx context.Context, key string) (*dto.GroupAvailabilityResponse, *errors.AppError)
	GetMyAvailability(ctx context.Context, key, participant string) (*dto.MyAvailabilityResponse, *errors.AppError)
	ReplaceMyAvailability(ctx context.Context, key, participant string, req *dto.ReplaceAvailabilityRequest) (*dto.MyAvailabilityResponse, *errors.AppError)
	ReplayGesture(ctx context.Context, key, participant string, req *dto.GestureRequest) (*dto.GestureResponse, *errors.AppError)
	ApplyCommit(ctx context.Context, msg entity.CommitMessage) *errors.AppError
	PruneAppliedCommits(ctx context.Context) (int64, *errors.AppError)
	ExportSnapshot(ctx context.Context, key string) (*dto.ExportResponse, *errors.AppError)
	Subscribe(ctx context.Context, key string) (<-chan document.Change, func(), *errors.AppError)
	JoinPresence(ctx context.Context, key, viewerID string) (int64, *errors.AppError)
	LeavePresence(ctx context.Context, key, viewerID string)
	CountPresence(ctx context.Context, key string) (int64, *errors.AppError)
}

type EventService struct {
	store       *document.Store
	writer      AvailabilityWriter
	presence    PresenceTracker
	uploader    storage.Uploader
	frontendURL string
	now         func() time.Time
}

func NewEventService(store *document.Store, writer AvailabilityWriter, presence PresenceTracker, uploader storage.Uploader, frontendURL string) *EventService {
	return &EventService{
		store:       store,
		writer:      writer,
		presence:    presence,
		uploader:    uploader,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         time.Now,
	}
}

// CreateEvent stores a validated request under a fresh random key.
func (s *EventService) CreateEvent(ctx context.Context, req *dto.CreateEventRequest, createdBy string) (*dto.EventResponse, *errors.AppError) {
	key := uuid.NewString()
	initial := &entity.Event{
		Name:          req.Name,
		SelectedDates: req.SelectedDates.Strings(),
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		CreatedBy:     createdBy,
	}

	doc, err := s.store.Open(ctx, key, initial)
	if err != nil {
		logger.Error("EventService:CreateEvent:Open", "event_key", key, "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create event", err)
	}

	logger.Info("EventService:CreateEvent:Created", "event_key", key, "dates", len(initial.SelectedDates))
	return s.toEventResponse(doc.Event()), nil
}

func (s *EventService) GetEvent(ctx context.Context, key string) (*dto.EventResponse, *errors.AppError) {
	doc, appErr := s.open(ctx, key)
	if appErr != nil {
		return nil, appErr
	}
	return s.toEventResponse(doc.Event()), nil
}

func (s *EventService) GetGroupAvailability(ctx context.Context, key string) (*dto.GroupAvailabilityResponse, *errors.AppError) {
	doc, appErr := s.open(ctx, key)
	if appErr != nil {
		return nil, appErr
	}
	return groupView(doc.Snapshot()), nil
}

func (s *EventService) GetMyAvailability(ctx context.Context, key, participant string) (*dto.MyAvailabilityResponse, *errors.AppError) {
	doc, appErr := s.open(ctx, key)
	if appErr != nil {
		return nil, appErr
	}
	set, _ := doc.Snapshot().Availability.Get(participant)
	return &dto.MyAvailabilityResponse{EventKey: key, Participant: participant, Slots: set}, nil
}

// ReplaceMyAvailability hands the whole set to the writer and answers with it
// optimistically.
func (s *EventService) ReplaceMyAvailability(ctx context.Context, key, participant string, req *dto.ReplaceAvailabilityRequest) (*dto.MyAvailabilityResponse, *errors.AppError) {
	doc, appErr := s.open(ctx, key)
	if appErr != nil {
		return nil, appErr
	}

	if err := gridFor(doc.Event()).Validate(req.Slots); err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, err.Error(), err)
	}

	if err := s.writer.Write(ctx, s.commitMessage(key, participant, entity.CommitReplace, req.Slots)); err != nil {
		logger.Error("EventService:ReplaceMyAvailability:Write", "event_key", key, "participant", participant, "error", err)
		return nil, errors.NewAppError(errors.ErrServiceUnavailable, "Failed to queue availability update", err)
	}

	return &dto.MyAvailabilityResponse{EventKey: key, Participant: participant, Slots: req.Slots}, nil
}

// ReplayGesture runs recorded pointer events through a SelectionEngine seeded
// with the participant's committed set. The engine is mounted on a bus local to
// the call; "release" events and the end of the recording fire that bus, so a
// drag that never saw a pointer-up still commits once.
//
// Every event is parsed before the engine sees any of them, and the commits of
// one replay are folded into a single toggle message. The writer applies that
// delta to whatever set is stored when the message runs, so replays queued
// back to back do not overwrite each other.
func (s *EventService) ReplayGesture(ctx context.Context, key, participant string, req *dto.GestureRequest) (*dto.GestureResponse, *errors.AppError) {
	steps, appErr := parseGesture(req.Events)
	if appErr != nil {
		return nil, appErr
	}

	doc, appErr := s.open(ctx, key)
	if appErr != nil {
		return nil, appErr
	}

	initial, _ := doc.Snapshot().Availability.Get(participant)
	bus := NewReleaseBus()

	commits := 0
	engine := NewSelectionEngine(EngineOptions{
		Grid:        gridFor(doc.Event()),
		Participant: participant,
		Initial:     initial,
		Bus:         bus,
		OnCommit: func(entity.SelectionSet) {
			commits++
		},
	})
	unmount := engine.Mount()
	defer unmount()

	for _, step := range steps {
		switch step.kind {
		case dto.PointerDown:
			engine.PointerDown(step.date, step.label)
		case dto.PointerEnter:
			engine.PointerEnter(step.date, step.label)
		case dto.PointerUp:
			engine.PointerUp()
		case dto.PointerRelease:
			bus.Release()
		}
	}
	bus.Release()

	committed := engine.Committed()
	changes := initial.Toggle(committed)
	if !changes.IsEmpty() {
		msg := s.commitMessage(key, participant, entity.CommitToggle, changes)
		if err := s.writer.Write(ctx, msg); err != nil {
			logger.Error("EventService:ReplayGesture:Write", "event_key", key, "participant", participant, "error", err)
			return nil, errors.NewAppError(errors.ErrServiceUnavailable, "Failed to queue availability update", err)
		}
	}

	return &dto.GestureResponse{
		EventKey:    key,
		Participant: participant,
		ReadOnly:    engine.ReadOnly(),
		Commits:     commits,
		Phase:       engine.Phase().String(),
		Slots:       committed,
		Changes:     changes,
	}, nil
}

type gestureStep struct {
	kind  string
	date  time.Time
	label string
}

// parseGesture rejects the whole recording when any event is malformed.
func parseGesture(events []dto.PointerEvent) ([]gestureStep, *errors.AppError) {
	steps := make([]gestureStep, 0, len(events))
	for i, ev := range events {
		switch ev.Type {
		case dto.PointerDown, dto.PointerEnter:
			date, err := entity.ParseDate(ev.Date)
			if err != nil {
				return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Invalid date in pointer event %d", i), err)
			}
			steps = append(steps, gestureStep{kind: ev.Type, date: date, label: ev.Time})
		case dto.PointerUp, dto.PointerRelease:
			steps = append(steps, gestureStep{kind: ev.Type})
		default:
			return nil, errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("Unknown pointer event %q", ev.Type), nil)
		}
	}
	return steps, nil
}

// ApplyCommit performs a queued write against the shared document.
func (s *EventService) ApplyCommit(ctx context.Context, msg entity.CommitMessage) *errors.AppError {
	doc, appErr := s.open(ctx, msg.EventKey)
	if appErr != nil {
		return appErr
	}

	if err := gridFor(doc.Event()).Validate(msg.Slots); err != nil {
		return errors.NewAppError(errors.ErrInvalidInput, err.Error(), err)
	}

	var (
		applied bool
		err     error
	)
	if msg.IsToggle() {
		applied, err = doc.Toggle(ctx, msg.Participant, msg.ID, msg.Slots, msg.CommittedAt)
	} else {
		applied, err = doc.Update(ctx, msg.Participant, msg.Slots, msg.CommittedAt)
	}
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to store availability", err)
	}

	logger.Info("EventService:ApplyCommit:Done",
		"event_key", msg.EventKey,
		"participant", msg.Participant,
		"commit_id", msg.ID,
		"mode", msg.Mode,
		"slots", msg.Slots.Len(),
		"applied", applied,
	)
	return nil
}

// PruneAppliedCommits forgets commit ids older than AppliedCommitRetention.
func (s *EventService) PruneAppliedCommits(ctx context.Context) (int64, *errors.AppError) {
	n, err := s.store.PruneCommits(ctx, s.now().Add(-constants.AppliedCommitRetention))
	if err != nil {
		return 0, errors.NewAppError(errors.ErrInternalServer, "Failed to prune applied commits", err)
	}
	if n > 0 {
		logger.Info("EventService:PruneAppliedCommits:Done", "deleted", n)
	}
	return n, nil
}

// ExportSnapshot uploads the event and its group view as JSON.
func (s *EventService) ExportSnapshot(ctx context.Context, key string) (*dto.ExportResponse, *errors.AppError) {
	doc, appErr := s.open(ctx, key)
	if appErr != nil {
		return nil, appErr
	}

	now := s.now().UTC()
	event := s.toEventResponse(doc.Event())
	body, err := json.Marshal(dto.EventSnapshot{
		Event:        event,
		Availability: groupView(doc.Snapshot()),
		ExportedAt:   now,
	})
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to encode snapshot", err)
	}

	objectKey := fmt.Sprintf("exports/%s-%s-%s.json", event.Slug, key, utils.GenerateID())
	if s.uploader == nil {
		return nil, errors.NewAppError(errors.ErrServiceUnavailable, "Export storage is not configured", nil)
	}
	stored, err := s.uploader.Upload(ctx, objectKey, body, "application/json")
	if err != nil {
		if stderrors.Is(err, storage.ErrNotConfigured) {
			return nil, errors.NewAppError(errors.ErrServiceUnavailable, "Export storage is not configured", err)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to upload snapshot", err)
	}

	return &dto.ExportResponse{EventKey: key, ObjectKey: stored, Bytes: len(body), CreatedAt: now}, nil
}

// Subscribe returns change notices for an existing event.
func (s *EventService) Subscribe(ctx context.Context, key string) (<-chan document.Change, func(), *errors.AppError) {
	if _, appErr := s.open(ctx, key); appErr != nil {
		return nil, nil, appErr
	}
	changes, cancel := s.store.Hub().Subscribe(ctx, key)
	return changes, cancel, nil
}

func (s *EventService) JoinPresence(ctx context.Context, key, viewerID string) (int64, *errors.AppError) {
	if s.presence == nil {
		return 0, nil
	}
	if err := s.presence.TouchPresence(ctx, key, viewerID); err != nil {
		logger.Warn("EventService:JoinPresence:Touch", "event_key", key, "error", err)
		return 0, errors.NewAppError(errors.ErrServiceUnavailable, "Presence unavailable", err)
	}
	return s.CountPresence(ctx, key)
}

func (s *EventService) LeavePresence(ctx context.Context, key, viewerID string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.RemovePresence(ctx, key, viewerID); err != nil {
		logger.Warn("EventService:LeavePresence:Remove", "event_key", key, "error", err)
	}
}

func (s *EventService) CountPresence(ctx context.Context, key string) (int64, *errors.AppError) {
	if s.presence == nil {
		return 0, nil
	}
	n, err := s.presence.CountPresence(ctx, key)
	if err != nil {
		logger.Warn("EventService:CountPresence", "event_key", key, "error", err)
		return 0, errors.NewAppError(errors.ErrServiceUnavailable, "Presence unavailable", err)
	}
	return n, nil
}

func (s *EventService) open(ctx context.Context, key string) (*document.Document, *errors.AppError) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Event key is required", nil)
	}
	doc, err := s.store.Open(ctx, key, nil)
	if err != nil {
		if stderrors.Is(err, document.ErrNotFound) {
			return nil, errors.NewAppError(errors.ErrNotFound, "Event not found", nil)
		}
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load event", err)
	}
	return doc, nil
}

func (s *EventService) commitMessage(key, participant string, mode entity.CommitMode, set entity.SelectionSet) entity.CommitMessage {
	return entity.CommitMessage{
		ID:          utils.GenerateID(),
		EventKey:    key,
		Participant: participant,
		Mode:        mode,
		Slots:       set,
		CommittedAt: s.now().UTC(),
	}
}

func gridFor(event *entity.Event) *SlotGrid {
	return NewSlotGrid(event.Dates(), event.StartTime, event.EndTime)
}

func (s *EventService) toEventResponse(event *entity.Event) *dto.EventResponse {
	grid := gridFor(event)
	axis := grid.Axis()

	hours := HourLabels(axis)
	hourLabels := make([]dto.HourLabel, len(hours))
	for i, h := range hours {
		hourLabels[i] = dto.HourLabel(h)
	}
	headers := grid.Headers()
	dateHeaders := make([]dto.DateHeader, len(headers))
	for i, h := range headers {
		dateHeaders[i] = dto.DateHeader(h)
	}

	return &dto.EventResponse{
		ID:            event.ID.String(),
		Key:           event.Key,
		Name:          event.Name,
		Slug:          slug.Make(event.Name),
		SelectedDates: entity.DateList(grid.Dates()).Strings(),
		StartTime:     event.StartTime,
		EndTime:       event.EndTime,
		ShareURL:      s.frontendURL + "/" + event.Key,
		Slots:         axis,
		HourLabels:    hourLabels,
		DateHeaders:   dateHeaders,
		CreatedBy:     event.CreatedBy,
		CreatedAt:     event.CreatedAt,
	}
}

// groupView aggregates a snapshot into the heatmap response. Cells are listed
// in grid order (date, then time) and only when someone is available.
func groupView(snap document.Snapshot) *dto.GroupAvailabilityResponse {
	heatmap := Aggregate(snap.Availability)
	grid := gridFor(snap.Event)

	legend := heatmap.Legend()
	items := make([]dto.LegendItem, len(legend))
	for i, l := range legend {
		items[i] = dto.LegendItem(l)
	}

	cells := make([]dto.CellAvailability, 0)
	for _, d := range grid.Dates() {
		for _, t := range grid.Axis() {
			count := heatmap.Count(d, t)
			if count == 0 {
				continue
			}
			cells = append(cells, dto.CellAvailability{
				Date:         entity.FormatDate(d),
				Time:         t,
				Count:        count,
				Intensity:    heatmap.Intensity(d, t),
				Participants: Who(snap.Availability, d, t),
			})
		}
	}

	best := BestTimes(grid, snap.Availability, DefaultBestTimesLimit)
	windows := make([]dto.TimeWindow, len(best))
	for i, w := range best {
		windows[i] = dto.TimeWindow{
			Date:         entity.FormatDate(w.Date),
			Start:        w.Start,
			End:          w.End,
			Count:        w.Count(),
			Participants: w.Participants,
		}
	}

	return &dto.GroupAvailabilityResponse{
		EventKey:     snap.Event.Key,
		Participants: snap.Availability.Participants(),
		Max:          heatmap.Max,
		Legend:       items,
		Cells:        cells,
		BestTimes:    windows,
		Availability: snap.Availability,
	}
}
