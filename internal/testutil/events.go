package testutil

import (
	"context"
	"sort"
	"sync"
	"syncup-api/modules/event/entity"
	"time"

	"github.com/google/uuid"
)

// MemoryEventRepository is an in-memory event and availability store. Safe for concurrent use.
type MemoryEventRepository struct {
	mu     sync.Mutex
	events map[string]*entity.Event
	rows   map[uuid.UUID]map[string]*entity.Availability

	// commits maps applied commit ids to when they were applied.
	commits map[string]time.Time

	// Err, when set, is returned by every call.
	Err error
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		events:  make(map[string]*entity.Event),
		rows:    make(map[uuid.UUID]map[string]*entity.Availability),
		commits: make(map[string]time.Time),
	}
}

func (r *MemoryEventRepository) GetEventByKey(_ context.Context, key string) (*entity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	event, ok := r.events[key]
	if !ok {
		return nil, nil
	}
	copied := *event
	return &copied, nil
}

func (r *MemoryEventRepository) CreateEvent(_ context.Context, event *entity.Event) (*entity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	created := *event
	created.ID = uuid.New()
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	r.events[created.Key] = &created
	copied := created
	return &copied, nil
}

func (r *MemoryEventRepository) ListAvailabilities(_ context.Context, eventID uuid.UUID) ([]entity.Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]entity.Availability, 0, len(r.rows[eventID]))
	for _, row := range r.rows[eventID] {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Participant < out[j].Participant
	})
	return out, nil
}

func (r *MemoryEventRepository) UpsertAvailability(_ context.Context, a *entity.Availability) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	rows, ok := r.rows[a.EventID]
	if !ok {
		rows = make(map[string]*entity.Availability)
		r.rows[a.EventID] = rows
	}
	existing, ok := rows[a.Participant]
	if !ok {
		copied := *a
		rows[a.Participant] = &copied
		return true, nil
	}
	if existing.UpdatedAt.After(a.UpdatedAt) {
		return false, nil
	}
	existing.Slots = a.Slots
	existing.UpdatedAt = a.UpdatedAt
	return true, nil
}

func (r *MemoryEventRepository) ToggleAvailability(_ context.Context, eventID uuid.UUID, participant, commitID string, delta entity.SelectionSet, at time.Time) (entity.SelectionSet, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return entity.SelectionSet{}, false, r.Err
	}
	if commitID != "" {
		if _, seen := r.commits[commitID]; seen {
			return entity.SelectionSet{}, false, nil
		}
		r.commits[commitID] = time.Now()
	}

	rows, ok := r.rows[eventID]
	if !ok {
		rows = make(map[string]*entity.Availability)
		r.rows[eventID] = rows
	}
	existing, ok := rows[participant]
	if !ok {
		existing = &entity.Availability{EventID: eventID, Participant: participant, CreatedAt: at, UpdatedAt: at}
		rows[participant] = existing
	}
	existing.Slots = existing.Slots.Toggle(delta)
	if at.After(existing.UpdatedAt) {
		existing.UpdatedAt = at
	}
	return existing.Slots, true, nil
}

func (r *MemoryEventRepository) PruneCommits(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for id, appliedAt := range r.commits {
		if appliedAt.Before(before) {
			delete(r.commits, id)
			n++
		}
	}
	return n, nil
}

// CommitCount returns how many applied commit ids are remembered.
func (r *MemoryEventRepository) CommitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

// Availability returns the stored set for a participant.
func (r *MemoryEventRepository) Availability(eventKey, participant string) (entity.SelectionSet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventKey]
	if !ok {
		return entity.SelectionSet{}, false
	}
	row, ok := r.rows[event.ID][participant]
	if !ok {
		return entity.SelectionSet{}, false
	}
	return row.Slots, true
}
