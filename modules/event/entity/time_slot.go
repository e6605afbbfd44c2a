package entity

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage form of a calendar day.
const DateLayout = "2006-01-02"

// NormalizeDate keeps the calendar day of t as written in t's own location and
// anchors it at UTC midnight.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts "2006-01-02", an RFC3339 timestamp, or epoch milliseconds.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return NormalizeDate(t), nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return NormalizeDate(time.UnixMilli(ms).UTC()), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

// FormatDate renders a date in DateLayout.
func FormatDate(t time.Time) string {
	return NormalizeDate(t).Format(DateLayout)
}

// SlotKey is the canonical cell key. Distinct (date, time) pairs never collide
// since the date part has a fixed width and cannot contain "_".
func SlotKey(date time.Time, label string) string {
	return FormatDate(date) + "_" + label
}

// TimeSlot is one grid cell.
type TimeSlot struct {
	Date time.Time
	Time string
}

func NewTimeSlot(date time.Time, label string) TimeSlot {
	return TimeSlot{Date: NormalizeDate(date), Time: label}
}

func (s TimeSlot) Key() string {
	return SlotKey(s.Date, s.Time)
}

func (s TimeSlot) String() string {
	return s.Key()
}

type timeSlotJSON struct {
	Date json.RawMessage `json:"date"`
	Time string          `json:"time"`
}

func (s TimeSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}{Date: FormatDate(s.Date), Time: s.Time})
}

func (s *TimeSlot) UnmarshalJSON(data []byte) error {
	var raw timeSlotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := decodeDate(raw.Date)
	if err != nil {
		return err
	}
	*s = TimeSlot{Date: date, Time: raw.Time}
	return nil
}

// decodeDate reads a JSON string or number date.
func decodeDate(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		return ParseDate(s)
	}
	var ms json.Number
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("invalid date %s", string(raw))
	}
	return ParseDate(ms.String())
}

// DateList is a list of calendar days that accepts mixed JSON forms.
type DateList []time.Time

func (d DateList) MarshalJSON() ([]byte, error) {
	out := make([]string, len(d))
	for i, t := range d {
		out[i] = FormatDate(t)
	}
	return json.Marshal(out)
}

func (d *DateList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	list := make(DateList, 0, len(raws))
	for _, raw := range raws {
		t, err := decodeDate(raw)
		if err != nil {
			return err
		}
		list = append(list, t)
	}
	*d = list
	return nil
}

// Strings returns the dates in DateLayout.
func (d DateList) Strings() []string {
	out := make([]string, len(d))
	for i, t := range d {
		out[i] = FormatDate(t)
	}
	return out
}

// SelectionSet is an immutable set of cells that remembers insertion order.
// The zero value is an empty set.
type SelectionSet struct {
	keys  []string
	slots map[string]TimeSlot
}

func NewSelectionSet(slots ...TimeSlot) SelectionSet {
	s := SelectionSet{}
	for _, slot := range slots {
		s = s.with(NewTimeSlot(slot.Date, slot.Time))
	}
	return s
}

func (s SelectionSet) with(slot TimeSlot) SelectionSet {
	key := slot.Key()
	if _, ok := s.slots[key]; ok {
		return s
	}
	if s.slots == nil {
		s.slots = make(map[string]TimeSlot)
	}
	s.keys = append(s.keys, key)
	s.slots[key] = slot
	return s
}

func (s SelectionSet) Len() int {
	return len(s.keys)
}

func (s SelectionSet) IsEmpty() bool {
	return len(s.keys) == 0
}

func (s SelectionSet) Contains(date time.Time, label string) bool {
	return s.ContainsKey(SlotKey(date, label))
}

func (s SelectionSet) ContainsKey(key string) bool {
	_, ok := s.slots[key]
	return ok
}

// Slots returns the cells in insertion order.
func (s SelectionSet) Slots() []TimeSlot {
	out := make([]TimeSlot, len(s.keys))
	for i, key := range s.keys {
		out[i] = s.slots[key]
	}
	return out
}

func (s SelectionSet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Toggle flips every cell of candidate: cells in both sets are removed, the
// rest of candidate is added. Neither operand is modified.
func (s SelectionSet) Toggle(candidate SelectionSet) SelectionSet {
	out := SelectionSet{
		keys:  make([]string, 0, len(s.keys)+len(candidate.keys)),
		slots: make(map[string]TimeSlot, len(s.keys)+len(candidate.keys)),
	}
	for _, key := range s.keys {
		if candidate.ContainsKey(key) {
			continue
		}
		out.keys = append(out.keys, key)
		out.slots[key] = s.slots[key]
	}
	for _, key := range candidate.keys {
		if s.ContainsKey(key) {
			continue
		}
		out.keys = append(out.keys, key)
		out.slots[key] = candidate.slots[key]
	}
	return out
}

// Equal compares membership, ignoring order.
func (s SelectionSet) Equal(other SelectionSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, key := range s.keys {
		if !other.ContainsKey(key) {
			return false
		}
	}
	return true
}

func (s SelectionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slots())
}

func (s *SelectionSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = SelectionSet{}
		return nil
	}
	var slots []TimeSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		return err
	}
	*s = NewSelectionSet(slots...)
	return nil
}

// Value stores the set as a jsonb array.
func (s SelectionSet) Value() (driver.Value, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *SelectionSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = SelectionSet{}
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into SelectionSet", src)
	}
}
