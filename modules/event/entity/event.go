package entity

import (
	coreentity "syncup-api/core/entity"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Event is the persisted event root; availability lives in event_availabilities.
type Event struct {
	coreentity.BaseEntity
	Key           string         `db:"event_key" json:"key"`
	Name          string         `db:"name" json:"name"`
	SelectedDates pq.StringArray `db:"selected_dates" json:"selected_dates"`
	StartTime     string         `db:"start_time" json:"start_time"`
	EndTime       string         `db:"end_time" json:"end_time"`
	CreatedBy     string         `db:"created_by" json:"created_by,omitempty"`
}

// Dates parses SelectedDates, skipping values that do not parse.
func (e *Event) Dates() []time.Time {
	out := make([]time.Time, 0, len(e.SelectedDates))
	for _, s := range e.SelectedDates {
		t, err := ParseDate(s)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Availability is one participant's committed set for an event.
type Availability struct {
	EventID     uuid.UUID    `db:"event_id" json:"event_id"`
	Participant string       `db:"participant" json:"participant"`
	Slots       SelectionSet `db:"slots" json:"slots"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// CommitMode says how a CommitMessage's Slots combine with the stored set.
type CommitMode string

const (
	// CommitReplace stores Slots as the participant's whole set.
	CommitReplace CommitMode = "replace"
	// CommitToggle XORs Slots into whatever set is stored when the message is applied.
	CommitToggle CommitMode = "toggle"
)

// CommitMessage carries a commit from the selection engine to the writer.
// An empty Mode means CommitReplace.
type CommitMessage struct {
	ID          string       `json:"id"`
	EventKey    string       `json:"event_key"`
	Participant string       `json:"participant"`
	Mode        CommitMode   `json:"mode,omitempty"`
	Slots       SelectionSet `json:"slots"`
	CommittedAt time.Time    `json:"committed_at"`
}

func (m CommitMessage) IsToggle() bool {
	return m.Mode == CommitToggle
}
