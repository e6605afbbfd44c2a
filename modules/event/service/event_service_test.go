package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"syncup-api/core/errors"
	"syncup-api/core/storage"
	"syncup-api/internal/testutil"
	"syncup-api/modules/event/document"
	"syncup-api/modules/event/dto"
	"syncup-api/modules/event/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc      *EventService
	repo     *testutil.MemoryEventRepository
	broker   *testutil.MemoryBroker
	writer   *testutil.RecordingWriter
	uploader *testutil.MemoryUploader
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:     testutil.NewMemoryEventRepository(),
		broker:   testutil.NewMemoryBroker(),
		writer:   &testutil.RecordingWriter{},
		uploader: testutil.NewMemoryUploader(),
	}
	store := document.NewStore(f.repo, f.broker)
	f.svc = NewEventService(store, f.writer, f.broker, f.uploader, "http://localhost:5173/")
	return f
}

func (f *serviceFixture) createEvent(t *testing.T) *dto.EventResponse {
	t.Helper()
	resp, appErr := f.svc.CreateEvent(context.Background(), &dto.CreateEventRequest{
		Name:          "Team Sync",
		SelectedDates: entity.DateList{mon, tue, wed},
		StartTime:     "09:00",
		EndTime:       "18:00",
	}, "alice")
	require.Nil(t, appErr)
	return resp
}

// apply drains recorded messages into the document, as the worker would.
func (f *serviceFixture) apply(t *testing.T) {
	t.Helper()
	for _, msg := range f.writer.Messages() {
		require.Nil(t, f.svc.ApplyCommit(context.Background(), msg))
	}
}

func TestCreateEvent(t *testing.T) {
	f := newServiceFixture(t)
	resp := f.createEvent(t)

	assert.NotEmpty(t, resp.Key)
	assert.Equal(t, "team-sync", resp.Slug)
	assert.Equal(t, "http://localhost:5173/"+resp.Key, resp.ShareURL)
	assert.Equal(t, []string{"2024-03-04", "2024-03-05", "2024-03-06"}, resp.SelectedDates)
	assert.Len(t, resp.Slots, 36)
	assert.Len(t, resp.HourLabels, 9)
	assert.Equal(t, "Mon", resp.DateHeaders[0].DayOfWeek)
	assert.Equal(t, "alice", resp.CreatedBy)

	got, appErr := f.svc.GetEvent(context.Background(), resp.Key)
	require.Nil(t, appErr)
	assert.Equal(t, resp.ID, got.ID)
}

func TestGetEvent_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, appErr := f.svc.GetEvent(context.Background(), "nope")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrNotFound, appErr.Code)
}

func TestGetEvent_StorageFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.Err = stderrors.New("connection refused")

	_, appErr := f.svc.GetEvent(context.Background(), "any")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInternalServer, appErr.Code)
}

func TestReplaceMyAvailability(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	ctx := context.Background()

	offGrid := &dto.ReplaceAvailabilityRequest{Slots: entity.NewSelectionSet(entity.NewTimeSlot(mon, "18:00"))}
	_, appErr := f.svc.ReplaceMyAvailability(ctx, ev.Key, "bob", offGrid)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)
	assert.Empty(t, f.writer.Messages())

	req := &dto.ReplaceAvailabilityRequest{Slots: entity.NewSelectionSet(entity.NewTimeSlot(mon, "09:00"), entity.NewTimeSlot(tue, "09:00"))}
	resp, appErr := f.svc.ReplaceMyAvailability(ctx, ev.Key, "bob", req)
	require.Nil(t, appErr)
	assert.Equal(t, 2, resp.Slots.Len())

	msgs := f.writer.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].Participant)
	assert.Equal(t, ev.Key, msgs[0].EventKey)

	f.apply(t)
	mine, appErr := f.svc.GetMyAvailability(ctx, ev.Key, "bob")
	require.Nil(t, appErr)
	assert.Equal(t, 2, mine.Slots.Len())
}

func TestReplaceMyAvailability_WriterDown(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	f.writer.Err = stderrors.New("redis down")

	req := &dto.ReplaceAvailabilityRequest{Slots: entity.NewSelectionSet(entity.NewTimeSlot(mon, "09:00"))}
	_, appErr := f.svc.ReplaceMyAvailability(context.Background(), ev.Key, "bob", req)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrServiceUnavailable, appErr.Code)
}

func TestReplayGesture_UnterminatedDragCommitsOnce(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	resp, appErr := f.svc.ReplayGesture(context.Background(), ev.Key, "bob", &dto.GestureRequest{Events: []dto.PointerEvent{
		{Type: dto.PointerDown, Date: "2024-03-04", Time: "10:00"},
		{Type: dto.PointerEnter, Date: "2024-03-05", Time: "10:30"},
	}})
	require.Nil(t, appErr)

	assert.False(t, resp.ReadOnly)
	assert.Equal(t, 1, resp.Commits)
	assert.Equal(t, "idle", resp.Phase)
	assert.Equal(t, 6, resp.Slots.Len())
	require.Len(t, f.writer.Messages(), 1)
}

func TestReplayGesture_ExplicitReleaseThenUp(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	resp, appErr := f.svc.ReplayGesture(context.Background(), ev.Key, "bob", &dto.GestureRequest{Events: []dto.PointerEvent{
		{Type: dto.PointerDown, Date: "2024-03-04", Time: "10:00"},
		{Type: dto.PointerEnter, Date: "2024-03-04", Time: "10:15"},
		{Type: dto.PointerRelease},
		{Type: dto.PointerUp},
	}})
	require.Nil(t, appErr)
	assert.Equal(t, 1, resp.Commits)
	assert.Equal(t, 2, resp.Slots.Len())
}

func TestReplayGesture_SeededFromCommittedSet(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	ctx := context.Background()

	_, appErr := f.svc.ReplaceMyAvailability(ctx, ev.Key, "bob", &dto.ReplaceAvailabilityRequest{
		Slots: entity.NewSelectionSet(entity.NewTimeSlot(mon, "09:00")),
	})
	require.Nil(t, appErr)
	f.apply(t)

	resp, appErr := f.svc.ReplayGesture(ctx, ev.Key, "bob", &dto.GestureRequest{Events: []dto.PointerEvent{
		{Type: dto.PointerDown, Date: "2024-03-04", Time: "09:00"},
		{Type: dto.PointerEnter, Date: "2024-03-04", Time: "09:15"},
		{Type: dto.PointerUp},
	}})
	require.Nil(t, appErr)
	assert.Equal(t, []string{"2024-03-04_09:15"}, resp.Slots.Keys())
}

func TestReplayGesture_AnonymousIsReadOnly(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	resp, appErr := f.svc.ReplayGesture(context.Background(), ev.Key, "", &dto.GestureRequest{Events: []dto.PointerEvent{
		{Type: dto.PointerDown, Date: "2024-03-04", Time: "10:00"},
		{Type: dto.PointerUp},
	}})
	require.Nil(t, appErr)
	assert.True(t, resp.ReadOnly)
	assert.Zero(t, resp.Commits)
	assert.Empty(t, f.writer.Messages())
}

func TestReplayGesture_UnknownPointerType(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	_, appErr := f.svc.ReplayGesture(context.Background(), ev.Key, "bob", &dto.GestureRequest{Events: []dto.PointerEvent{{Type: "hover"}}})
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)
}

func gesture(date, label string) *dto.GestureRequest {
	return &dto.GestureRequest{Events: []dto.PointerEvent{
		{Type: dto.PointerDown, Date: date, Time: label},
		{Type: dto.PointerUp},
	}}
}

func TestReplayGesture_BackToBackBeforeWorkerRuns(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	ctx := context.Background()

	_, appErr := f.svc.ReplayGesture(ctx, ev.Key, "bob", gesture("2024-03-04", "09:00"))
	require.Nil(t, appErr)
	second, appErr := f.svc.ReplayGesture(ctx, ev.Key, "bob", gesture("2024-03-04", "09:15"))
	require.Nil(t, appErr)
	assert.Equal(t, []string{"2024-03-04_09:15"}, second.Changes.Keys())

	_, appErr = f.svc.ReplayGesture(ctx, ev.Key, "carol", gesture("2024-03-04", "10:00"))
	require.Nil(t, appErr)
	_, appErr = f.svc.ReplayGesture(ctx, ev.Key, "carol", gesture("2024-03-04", "10:00"))
	require.Nil(t, appErr)

	msgs := f.writer.Messages()
	require.Len(t, msgs, 4)
	for _, msg := range msgs {
		assert.True(t, msg.IsToggle())
		assert.NotEmpty(t, msg.ID)
	}
	f.apply(t)

	bob, appErr := f.svc.GetMyAvailability(ctx, ev.Key, "bob")
	require.Nil(t, appErr)
	assert.ElementsMatch(t, []string{"2024-03-04_09:00", "2024-03-04_09:15"}, bob.Slots.Keys())

	carol, appErr := f.svc.GetMyAvailability(ctx, ev.Key, "carol")
	require.Nil(t, appErr)
	assert.True(t, carol.Slots.IsEmpty())
}

func TestReplayGesture_OnAndOffInOneReplayWritesNothing(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	resp, appErr := f.svc.ReplayGesture(context.Background(), ev.Key, "bob", &dto.GestureRequest{Events: []dto.PointerEvent{
		{Type: dto.PointerDown, Date: "2024-03-04", Time: "09:00"},
		{Type: dto.PointerUp},
		{Type: dto.PointerDown, Date: "2024-03-04", Time: "09:00"},
		{Type: dto.PointerUp},
	}})
	require.Nil(t, appErr)
	assert.Equal(t, 2, resp.Commits)
	assert.True(t, resp.Changes.IsEmpty())
	assert.Empty(t, f.writer.Messages())
}

func TestReplayGesture_MalformedEventWritesNothing(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	_, appErr := f.svc.ReplayGesture(context.Background(), ev.Key, "bob", &dto.GestureRequest{Events: []dto.PointerEvent{
		{Type: dto.PointerDown, Date: "2024-03-04", Time: "09:00"},
		{Type: dto.PointerUp},
		{Type: dto.PointerDown, Date: "not-a-date", Time: "09:15"},
	}})
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)
	assert.Empty(t, f.writer.Messages())
}

func TestReplayGesture_WriterDown(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	f.writer.Err = stderrors.New("redis down")

	_, appErr := f.svc.ReplayGesture(context.Background(), ev.Key, "bob", gesture("2024-03-04", "09:00"))
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrServiceUnavailable, appErr.Code)
}

func TestApplyCommit_DuplicateToggleAppliedOnce(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	ctx := context.Background()

	msg := entity.CommitMessage{
		ID:          "commit-1",
		EventKey:    ev.Key,
		Participant: "bob",
		Mode:        entity.CommitToggle,
		Slots:       entity.NewSelectionSet(entity.NewTimeSlot(mon, "09:00")),
		CommittedAt: time.Now(),
	}
	require.Nil(t, f.svc.ApplyCommit(ctx, msg))
	require.Nil(t, f.svc.ApplyCommit(ctx, msg))

	stored, ok := f.repo.Availability(ev.Key, "bob")
	require.True(t, ok)
	assert.Equal(t, []string{"2024-03-04_09:00"}, stored.Keys())
}

func TestPruneAppliedCommits(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	ctx := context.Background()

	_, appErr := f.svc.ReplayGesture(ctx, ev.Key, "bob", gesture("2024-03-04", "09:00"))
	require.Nil(t, appErr)
	f.apply(t)
	require.Equal(t, 1, f.repo.CommitCount())

	n, appErr := f.svc.PruneAppliedCommits(ctx)
	require.Nil(t, appErr)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, appErr = f.svc.PruneAppliedCommits(ctx)
	require.Nil(t, appErr)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, f.repo.CommitCount())
}

func TestApplyCommit_RejectsOffGrid(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	appErr := f.svc.ApplyCommit(context.Background(), entity.CommitMessage{
		EventKey:    ev.Key,
		Participant: "bob",
		Slots:       entity.NewSelectionSet(entity.NewTimeSlot(date("2024-04-01"), "09:00")),
		CommittedAt: time.Now(),
	})
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)
}

func TestGetGroupAvailability(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, p := range []struct {
		name  string
		slots entity.SelectionSet
	}{
		{"carol", entity.NewSelectionSet(entity.NewTimeSlot(mon, "09:00"), entity.NewTimeSlot(mon, "09:15"))},
		{"bob", entity.NewSelectionSet(entity.NewTimeSlot(mon, "09:00"))},
		{"dan", entity.NewSelectionSet()},
	} {
		_, appErr := f.svc.ReplaceMyAvailability(ctx, ev.Key, p.name, &dto.ReplaceAvailabilityRequest{Slots: p.slots})
		require.Nil(t, appErr)
	}
	f.apply(t)

	group, appErr := f.svc.GetGroupAvailability(ctx, ev.Key)
	require.Nil(t, appErr)

	assert.Equal(t, 2, group.Max)
	assert.Len(t, group.Legend, 3)
	require.Len(t, group.Cells, 2)
	assert.Equal(t, dto.CellAvailability{
		Date: "2024-03-04", Time: "09:00", Count: 2, Intensity: 1, Participants: []string{"carol", "bob"},
	}, group.Cells[0])
	assert.Equal(t, 0.5, group.Cells[1].Intensity)
	assert.ElementsMatch(t, []string{"carol", "bob", "dan"}, group.Participants)

	require.Len(t, group.BestTimes, 2)
	assert.Equal(t, dto.TimeWindow{
		Date: "2024-03-04", Start: "09:00", End: "09:15", Count: 2, Participants: []string{"carol", "bob"},
	}, group.BestTimes[0])
	assert.Equal(t, "09:15", group.BestTimes[1].Start)
}

func TestGetGroupAvailability_Empty(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	group, appErr := f.svc.GetGroupAvailability(context.Background(), ev.Key)
	require.Nil(t, appErr)
	assert.Zero(t, group.Max)
	assert.Empty(t, group.Cells)
	assert.Empty(t, group.Legend)
	assert.Empty(t, group.BestTimes)
}

func TestExportSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)

	resp, appErr := f.svc.ExportSnapshot(context.Background(), ev.Key)
	require.Nil(t, appErr)
	assert.True(t, strings.HasPrefix(resp.ObjectKey, "exports/team-sync-"+ev.Key+"-"), resp.ObjectKey)
	assert.True(t, strings.HasSuffix(resp.ObjectKey, ".json"))

	body, ok := f.uploader.Objects[resp.ObjectKey]
	require.True(t, ok)
	assert.Equal(t, "application/json", f.uploader.Types[resp.ObjectKey])

	var snap dto.EventSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, ev.Key, snap.Event.Key)
}

func TestExportSnapshot_StorageNotConfigured(t *testing.T) {
	f := newServiceFixture(t)
	var disabled *storage.S3Storage
	f.svc.uploader = disabled
	ev := f.createEvent(t)

	_, appErr := f.svc.ExportSnapshot(context.Background(), ev.Key)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrServiceUnavailable, appErr.Code)
}

func TestPresence(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	ctx := context.Background()

	n, appErr := f.svc.JoinPresence(ctx, ev.Key, "viewer-1")
	require.Nil(t, appErr)
	assert.Equal(t, int64(1), n)

	n, appErr = f.svc.JoinPresence(ctx, ev.Key, "viewer-2")
	require.Nil(t, appErr)
	assert.Equal(t, int64(2), n)

	f.svc.LeavePresence(ctx, ev.Key, "viewer-1")
	n, appErr = f.svc.CountPresence(ctx, ev.Key)
	require.Nil(t, appErr)
	assert.Equal(t, int64(1), n)
}

func TestSubscribe(t *testing.T) {
	f := newServiceFixture(t)
	ev := f.createEvent(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, appErr := f.svc.Subscribe(ctx, "missing")
	require.NotNil(t, appErr)

	changes, unsubscribe, appErr := f.svc.Subscribe(ctx, ev.Key)
	require.Nil(t, appErr)
	defer unsubscribe()

	_, appErr = f.svc.ReplaceMyAvailability(ctx, ev.Key, "bob", &dto.ReplaceAvailabilityRequest{
		Slots: entity.NewSelectionSet(entity.NewTimeSlot(mon, "09:00")),
	})
	require.Nil(t, appErr)
	f.apply(t)

	select {
	case change := <-changes:
		assert.Equal(t, "bob", change.Participant)
	case <-time.After(time.Second):
		t.Fatal("no change notice")
	}
}
