package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"syncup-api/core/constants"
	"syncup-api/core/logger"
	"syncup-api/modules/event/entity"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("document not found")

// Repository persists event roots and per-participant availability.
type Repository interface {
	GetEventByKey(ctx context.Context, key string) (*entity.Event, error)
	CreateEvent(ctx context.Context, event *entity.Event) (*entity.Event, error)
	ListAvailabilities(ctx context.Context, eventID uuid.UUID) ([]entity.Availability, error)
	// UpsertAvailability reports false when a newer write for the participant is already stored.
	UpsertAvailability(ctx context.Context, availability *entity.Availability) (bool, error)
	// ToggleAvailability XORs delta into the stored set atomically and returns
	// the result. It reports false when commitID was already applied.
	ToggleAvailability(ctx context.Context, eventID uuid.UUID, participant, commitID string, delta entity.SelectionSet, at time.Time) (entity.SelectionSet, bool, error)
	PruneCommits(ctx context.Context, before time.Time) (int64, error)
}

// Broker carries change notices between processes.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func())
}

// Change announces that a participant's availability was replaced.
type Change struct {
	EventKey    string    `json:"event_key"`
	Participant string    `json:"participant"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func Channel(eventKey string) string {
	return constants.RedisChannelEvent + eventKey
}

// Snapshot is a point-in-time copy of a document.
type Snapshot struct {
	Event        *entity.Event
	Availability *entity.AvailabilityMap
}

type Store struct {
	repo Repository
	hub  *Hub
}

func NewStore(repo Repository, broker Broker) *Store {
	return &Store{repo: repo, hub: NewHub(broker)}
}

func (s *Store) Hub() *Hub {
	return s.hub
}

// PruneCommits drops applied commit ids older than before.
func (s *Store) PruneCommits(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.PruneCommits(ctx, before)
}

// Open loads the document for key. When it does not exist and initial is not
// nil, the document is created from initial; otherwise ErrNotFound is returned.
func (s *Store) Open(ctx context.Context, key string, initial *entity.Event) (*Document, error) {
	event, err := s.repo.GetEventByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", key, err)
	}

	if event == nil {
		if initial == nil {
			return nil, ErrNotFound
		}
		initial.Key = key
		event, err = s.repo.CreateEvent(ctx, initial)
		if err != nil {
			return nil, fmt.Errorf("create event %s: %w", key, err)
		}
		logger.Info("DocumentStore:Open:Created", "event_key", key)
		return &Document{store: s, event: event, availability: entity.NewAvailabilityMap()}, nil
	}

	doc := &Document{store: s, event: event}
	if err := doc.Reload(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// Document is one event's shared state.
type Document struct {
	store *Store
	event *entity.Event

	mu           sync.RWMutex
	availability *entity.AvailabilityMap
}

func (d *Document) Event() *entity.Event {
	return d.event
}

func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{Event: d.event, Availability: d.availability.Clone()}
}

// Reload re-reads availability from storage.
func (d *Document) Reload(ctx context.Context) error {
	rows, err := d.store.repo.ListAvailabilities(ctx, d.event.ID)
	if err != nil {
		return fmt.Errorf("load availability %s: %w", d.event.Key, err)
	}

	availability := entity.NewAvailabilityMap()
	for _, row := range rows {
		availability.Set(row.Participant, row.Slots)
	}

	d.mu.Lock()
	d.availability = availability
	d.mu.Unlock()
	return nil
}

// Update replaces one participant's set, persists it and publishes a change
// notice. A write older than the stored one is dropped and reported as not applied.
func (d *Document) Update(ctx context.Context, participant string, set entity.SelectionSet, at time.Time) (bool, error) {
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	applied, err := d.store.repo.UpsertAvailability(ctx, &entity.Availability{
		EventID:     d.event.ID,
		Participant: participant,
		Slots:       set,
		CreatedAt:   at,
		UpdatedAt:   at,
	})
	if err != nil {
		return false, fmt.Errorf("store availability %s/%s: %w", d.event.Key, participant, err)
	}
	if !applied {
		logger.Info("Document:Update:Stale", "event_key", d.event.Key, "participant", participant, "committed_at", at)
		return false, nil
	}

	d.mu.Lock()
	d.availability.Set(participant, set)
	d.mu.Unlock()

	change := Change{EventKey: d.event.Key, Participant: participant, UpdatedAt: at}
	if err := d.store.hub.Publish(ctx, change); err != nil {
		// Stored already; subscribers catch up on their next notice.
		logger.Warn("Document:Update:PublishFailed", "event_key", d.event.Key, "error", err)
	}
	return true, nil
}

// Toggle XORs delta into the participant's stored set. The stored set at apply
// time is the base, so toggles queued back to back all take effect. A commit id
// seen before is skipped and reported as not applied.
func (d *Document) Toggle(ctx context.Context, participant, commitID string, delta entity.SelectionSet, at time.Time) (bool, error) {
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	next, applied, err := d.store.repo.ToggleAvailability(ctx, d.event.ID, participant, commitID, delta, at)
	if err != nil {
		return false, fmt.Errorf("toggle availability %s/%s: %w", d.event.Key, participant, err)
	}
	if !applied {
		logger.Info("Document:Toggle:Duplicate", "event_key", d.event.Key, "participant", participant, "commit_id", commitID)
		return false, nil
	}

	d.mu.Lock()
	d.availability.Set(participant, next)
	d.mu.Unlock()

	change := Change{EventKey: d.event.Key, Participant: participant, UpdatedAt: at}
	if err := d.store.hub.Publish(ctx, change); err != nil {
		logger.Warn("Document:Toggle:PublishFailed", "event_key", d.event.Key, "error", err)
	}
	return true, nil
}

// Hub fans change notices out over the broker.
type Hub struct {
	broker Broker
}

func NewHub(broker Broker) *Hub {
	return &Hub{broker: broker}
}

func (h *Hub) Publish(ctx context.Context, change Change) error {
	if h.broker == nil {
		return nil
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return h.broker.Publish(ctx, Channel(change.EventKey), payload)
}

// Subscribe delivers change notices for key until ctx ends or cancel is called.
func (h *Hub) Subscribe(ctx context.Context, key string) (<-chan Change, func()) {
	out := make(chan Change, 8)
	if h.broker == nil {
		close(out)
		return out, func() {}
	}

	raw, cancel := h.broker.Subscribe(ctx, Channel(key))
	go func() {
		defer close(out)
		for payload := range raw {
			var change Change
			if err := json.Unmarshal(payload, &change); err != nil {
				logger.Warn("Hub:Subscribe:BadPayload", "event_key", key, "error", err)
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()
	return out, cancel
}
