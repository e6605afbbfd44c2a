package dto

import (
	"syncup-api/modules/event/entity"
	"time"
)

// ===================== Request DTOs =====================

// CreateEventRequest mirrors the create-event form.
type CreateEventRequest struct {
	Name          string          `json:"name"`
	SelectedDates entity.DateList `json:"selected_dates"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
}

// ReplaceAvailabilityRequest replaces the caller's whole committed set.
type ReplaceAvailabilityRequest struct {
	Slots entity.SelectionSet `json:"slots"`
}

// Pointer event types accepted by the gesture endpoint.
const (
	PointerDown    = "down"
	PointerEnter   = "enter"
	PointerUp      = "up"
	PointerRelease = "release"
)

// PointerEvent is one step of a recorded gesture. release is a pointer-up
// outside the grid and carries no cell.
type PointerEvent struct {
	Type string `json:"type"`
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`
}

type GestureRequest struct {
	Events []PointerEvent `json:"events"`
}

// ===================== Response DTOs =====================

type HourLabel struct {
	Row   int    `json:"row"`
	Time  string `json:"time"`
	Label string `json:"label"`
}

type DateHeader struct {
	Date      string `json:"date"`
	Label     string `json:"label"`
	DayOfWeek string `json:"day_of_week"`
}

type EventResponse struct {
	ID            string       `json:"id"`
	Key           string       `json:"key"`
	Name          string       `json:"name"`
	Slug          string       `json:"slug"`
	SelectedDates []string     `json:"selected_dates"`
	StartTime     string       `json:"start_time"`
	EndTime       string       `json:"end_time"`
	ShareURL      string       `json:"share_url"`
	Slots         []string     `json:"slots"`
	HourLabels    []HourLabel  `json:"hour_labels"`
	DateHeaders   []DateHeader `json:"date_headers"`
	CreatedBy     string       `json:"created_by,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type LegendItem struct {
	Count   int     `json:"count"`
	Opacity float64 `json:"opacity"`
}

// CellAvailability describes one non-empty cell of the group heatmap.
type CellAvailability struct {
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Count        int      `json:"count"`
	Intensity    float64  `json:"intensity"`
	Participants []string `json:"participants"`
}

// TimeWindow is a ranked run of rows that the same participants share.
type TimeWindow struct {
	Date         string   `json:"date"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Count        int      `json:"count"`
	Participants []string `json:"participants"`
}

type GroupAvailabilityResponse struct {
	EventKey     string                  `json:"event_key"`
	Participants []string                `json:"participants"`
	Max          int                     `json:"max"`
	Legend       []LegendItem            `json:"legend"`
	Cells        []CellAvailability      `json:"cells"`
	BestTimes    []TimeWindow            `json:"best_times"`
	Availability *entity.AvailabilityMap `json:"availability"`
}

type MyAvailabilityResponse struct {
	EventKey    string              `json:"event_key"`
	Participant string              `json:"participant"`
	Slots       entity.SelectionSet `json:"slots"`
}

type GestureResponse struct {
	EventKey    string              `json:"event_key"`
	Participant string              `json:"participant,omitempty"`
	ReadOnly    bool                `json:"read_only"`
	Commits     int                 `json:"commits"`
	Phase       string              `json:"phase"`
	// Slots is the replay's result on top of the last applied set.
	Slots       entity.SelectionSet `json:"slots"`
	// Changes is the toggle delta queued for the document.
	Changes     entity.SelectionSet `json:"changes"`
}

type ExportResponse struct {
	EventKey  string    `json:"event_key"`
	ObjectKey string    `json:"object_key"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type PresenceResponse struct {
	EventKey string `json:"event_key"`
	Online   int64  `json:"online"`
}

// EventSnapshot is the exported document.
type EventSnapshot struct {
	Event        *EventResponse             `json:"event"`
	Availability *GroupAvailabilityResponse `json:"availability"`
	ExportedAt   time.Time                  `json:"exported_at"`
}
