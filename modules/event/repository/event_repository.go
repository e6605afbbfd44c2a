package repository

import (
	"context"
	"database/sql"
	"errors"
	"syncup-api/core/database"
	"syncup-api/core/logger"
	"syncup-api/modules/event/entity"
	"time"

	"github.com/google/uuid"
)

// EventRepository stores events and per-participant availability in Postgres.
type EventRepository struct {
	DB database.Database
}

func NewEventRepository(db database.Database) *EventRepository {
	return &EventRepository{DB: db}
}

type EventRepositoryInterface interface {
	GetEventByKey(ctx context.Context, key string) (*entity.Event, error)
	CreateEvent(ctx context.Context, event *entity.Event) (*entity.Event, error)
	ListAvailabilities(ctx context.Context, eventID uuid.UUID) ([]entity.Availability, error)
	UpsertAvailability(ctx context.Context, availability *entity.Availability) (bool, error)
	ToggleAvailability(ctx context.Context, eventID uuid.UUID, participant, commitID string, delta entity.SelectionSet, at time.Time) (entity.SelectionSet, bool, error)
	PruneCommits(ctx context.Context, before time.Time) (int64, error)
}

// ===================== Events =====================

func (r *EventRepository) GetEventByKey(ctx context.Context, key string) (*entity.Event, error) {
	query := `
		SELECT id, event_key, name, selected_dates, start_time, end_time, created_by, created_at, updated_at
		FROM events WHERE event_key = $1
	`

	var event entity.Event
	err := r.DB.GetContext(ctx, &event, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("EventRepository:GetEventByKey", "event_key", key, "error", err)
		return nil, err
	}

	return &event, nil
}

func (r *EventRepository) CreateEvent(ctx context.Context, event *entity.Event) (*entity.Event, error) {
	query := `
		INSERT INTO events (event_key, name, selected_dates, start_time, end_time, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, event_key, name, selected_dates, start_time, end_time, created_by, created_at, updated_at
	`

	var created entity.Event
	err := r.DB.GetContext(ctx, &created, query,
		event.Key, event.Name, event.SelectedDates, event.StartTime, event.EndTime, event.CreatedBy)
	if err != nil {
		logger.Error("EventRepository:CreateEvent", "event_key", event.Key, "error", err)
		return nil, err
	}

	return &created, nil
}

// ===================== Availability =====================

// ListAvailabilities returns rows in the order participants first wrote them.
func (r *EventRepository) ListAvailabilities(ctx context.Context, eventID uuid.UUID) ([]entity.Availability, error) {
	query := `
		SELECT event_id, participant, slots, created_at, updated_at
		FROM event_availabilities
		WHERE event_id = $1
		ORDER BY created_at, participant
	`

	var rows []entity.Availability
	err := r.DB.SelectContext(ctx, &rows, query, eventID)
	if err != nil {
		logger.Error("EventRepository:ListAvailabilities", "event_id", eventID, "error", err)
		return nil, err
	}

	return rows, nil
}

// UpsertAvailability replaces the participant's set unless a newer write is
// already stored (last writer wins by updated_at).
func (r *EventRepository) UpsertAvailability(ctx context.Context, availability *entity.Availability) (bool, error) {
	query := `
		INSERT INTO event_availabilities (event_id, participant, slots, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, participant) DO UPDATE
		SET slots = EXCLUDED.slots, updated_at = EXCLUDED.updated_at
		WHERE event_availabilities.updated_at <= EXCLUDED.updated_at
		RETURNING updated_at
	`

	var updatedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query,
		availability.EventID, availability.Participant, availability.Slots,
		availability.CreatedAt, availability.UpdatedAt).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		logger.Error("EventRepository:UpsertAvailability",
			"event_id", availability.EventID,
			"participant", availability.Participant,
			"error", err,
		)
		return false, err
	}

	return true, nil
}

// ToggleAvailability XORs delta into the participant's stored set under a row
// lock. A commitID that was already applied leaves the row untouched and
// reports false.
func (r *EventRepository) ToggleAvailability(ctx context.Context, eventID uuid.UUID, participant, commitID string, delta entity.SelectionSet, at time.Time) (entity.SelectionSet, bool, error) {
	tx, err := r.DB.SQLx().BeginTxx(ctx, nil)
	if err != nil {
		logger.Error("EventRepository:ToggleAvailability:BeginTx", "event_id", eventID, "error", err)
		return entity.SelectionSet{}, false, err
	}
	defer tx.Rollback()

	if commitID != "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO availability_commits (commit_id, event_id, participant, applied_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (commit_id) DO NOTHING
		`, commitID, eventID, participant)
		if err != nil {
			logger.Error("EventRepository:ToggleAvailability:RecordCommit", "commit_id", commitID, "error", err)
			return entity.SelectionSet{}, false, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return entity.SelectionSet{}, false, nil
		}
	}

	// Make sure the row exists so FOR UPDATE has something to lock.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO event_availabilities (event_id, participant, slots, created_at, updated_at)
		VALUES ($1, $2, '[]'::jsonb, $3, $3)
		ON CONFLICT (event_id, participant) DO NOTHING
	`, eventID, participant, at); err != nil {
		logger.Error("EventRepository:ToggleAvailability:EnsureRow", "event_id", eventID, "participant", participant, "error", err)
		return entity.SelectionSet{}, false, err
	}

	var stored entity.SelectionSet
	if err := tx.QueryRowContext(ctx, `
		SELECT slots FROM event_availabilities
		WHERE event_id = $1 AND participant = $2
		FOR UPDATE
	`, eventID, participant).Scan(&stored); err != nil {
		logger.Error("EventRepository:ToggleAvailability:Lock", "event_id", eventID, "participant", participant, "error", err)
		return entity.SelectionSet{}, false, err
	}

	next := stored.Toggle(delta)
	if _, err := tx.ExecContext(ctx, `
		UPDATE event_availabilities
		SET slots = $3, updated_at = GREATEST(updated_at, $4)
		WHERE event_id = $1 AND participant = $2
	`, eventID, participant, next, at); err != nil {
		logger.Error("EventRepository:ToggleAvailability:Update", "event_id", eventID, "participant", participant, "error", err)
		return entity.SelectionSet{}, false, err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("EventRepository:ToggleAvailability:Commit", "event_id", eventID, "error", err)
		return entity.SelectionSet{}, false, err
	}

	return next, true, nil
}

// ===================== Commit log =====================

// PruneCommits forgets applied commit ids older than before.
func (r *EventRepository) PruneCommits(ctx context.Context, before time.Time) (int64, error) {
	query := `
		WITH deleted AS (
			DELETE FROM availability_commits WHERE applied_at < $1 RETURNING 1
		)
		SELECT COUNT(*) FROM deleted
	`

	var count int64
	if err := r.DB.QueryRowContext(ctx, query, before).Scan(&count); err != nil {
		logger.Error("EventRepository:PruneCommits", "error", err)
		return 0, err
	}

	return count, nil
}
