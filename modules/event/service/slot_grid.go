package service

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"syncup-api/modules/event/entity"
	"time"
)

// SlotsPerHour is the number of 15-minute rows per hour.
const SlotsPerHour = 4

// slotCache is keyed on parsed hours, so it holds at most 25*25 axes.
var slotCache = struct {
	sync.Mutex
	axes map[[2]int][]string
}{axes: make(map[[2]int][]string)}

// ParseHour reads the leading hour of an "HH:MM" label. Minutes are ignored.
func ParseHour(label string) (int, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(label), ":")
	hour, err := strconv.Atoi(head)
	if err != nil || hour < 0 || hour > 24 {
		return 0, false
	}
	return hour, true
}

// GenerateSlots returns the 15-minute labels from start up to but excluding end.
// Unparseable labels or end <= start give an empty axis.
func GenerateSlots(startLabel, endLabel string) []string {
	start, okStart := ParseHour(startLabel)
	end, okEnd := ParseHour(endLabel)
	if !okStart || !okEnd || end <= start {
		return []string{}
	}
	key := [2]int{start, end}

	slotCache.Lock()
	cached, ok := slotCache.axes[key]
	slotCache.Unlock()
	if ok {
		return append([]string(nil), cached...)
	}

	axis := buildSlots(start, end)

	slotCache.Lock()
	slotCache.axes[key] = axis
	slotCache.Unlock()
	return append([]string(nil), axis...)
}

func buildSlots(start, end int) []string {
	slots := make([]string, 0, SlotsPerHour*(end-start))
	for hour := start; hour < end; hour++ {
		for quarter := 0; quarter < SlotsPerHour; quarter++ {
			slots = append(slots, fmt.Sprintf("%02d:%02d", hour, quarter*15))
		}
	}
	return slots
}

// TimeValue maps "HH:MM" to HHMM for ordering, -1 when malformed.
func TimeValue(label string) int {
	v, err := strconv.Atoi(strings.Replace(label, ":", "", 1))
	if err != nil {
		return -1
	}
	return v
}

// FormatTo12Hour renders the hour of a label for gridlines; minutes are dropped.
func FormatTo12Hour(label string) string {
	head, _, _ := strings.Cut(label, ":")
	hour, err := strconv.Atoi(head)
	if err != nil {
		return label
	}
	switch {
	case hour == 0:
		return "12:00 AM"
	case hour == 12:
		return "12:00 PM"
	case hour > 12:
		return fmt.Sprintf("%02d:00 PM", hour-12)
	default:
		return head + ":00 AM"
	}
}

// HourLabel is a gridline label shown on every 4th row.
type HourLabel struct {
	Row   int    `json:"row"`
	Time  string `json:"time"`
	Label string `json:"label"`
}

func HourLabels(axis []string) []HourLabel {
	labels := make([]HourLabel, 0, len(axis)/SlotsPerHour+1)
	for i := 0; i < len(axis); i += SlotsPerHour {
		labels = append(labels, HourLabel{Row: i, Time: axis[i], Label: FormatTo12Hour(axis[i])})
	}
	return labels
}

// DateHeader is the column heading for one date, e.g. "March 5" / "Wed".
type DateHeader struct {
	Date      string `json:"date"`
	Label     string `json:"label"`
	DayOfWeek string `json:"day_of_week"`
}

func FormatDateHeader(date time.Time) DateHeader {
	date = entity.NormalizeDate(date)
	return DateHeader{
		Date:      date.Format(entity.DateLayout),
		Label:     date.Format("January 2"),
		DayOfWeek: date.Format("Mon"),
	}
}

// SlotGrid is the immutable date × time axis of one event.
type SlotGrid struct {
	dates    []time.Time
	axis     []string
	dateSet  map[string]struct{}
	timeSet  map[string]struct{}
	timeRows map[string]int
}

func NewSlotGrid(dates []time.Time, startLabel, endLabel string) *SlotGrid {
	g := &SlotGrid{
		axis:     GenerateSlots(startLabel, endLabel),
		dateSet:  make(map[string]struct{}, len(dates)),
		timeSet:  make(map[string]struct{}),
		timeRows: make(map[string]int),
	}
	for _, d := range dates {
		d = entity.NormalizeDate(d)
		key := d.Format(entity.DateLayout)
		if _, dup := g.dateSet[key]; dup {
			continue
		}
		g.dateSet[key] = struct{}{}
		g.dates = append(g.dates, d)
	}
	for i, t := range g.axis {
		g.timeSet[t] = struct{}{}
		g.timeRows[t] = i
	}
	return g
}

func (g *SlotGrid) Dates() []time.Time {
	return append([]time.Time(nil), g.dates...)
}

func (g *SlotGrid) Axis() []string {
	return append([]string(nil), g.axis...)
}

func (g *SlotGrid) HasDate(date time.Time) bool {
	_, ok := g.dateSet[entity.FormatDate(date)]
	return ok
}

func (g *SlotGrid) HasTime(label string) bool {
	_, ok := g.timeSet[label]
	return ok
}

// Contains reports whether the cell is on the grid.
func (g *SlotGrid) Contains(date time.Time, label string) bool {
	return g.HasDate(date) && g.HasTime(label)
}

// TimesBetween returns axis labels whose TimeValue lies between a and b inclusive.
func (g *SlotGrid) TimesBetween(a, b string) []string {
	lo, hi := TimeValue(a), TimeValue(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	out := make([]string, 0)
	for _, t := range g.axis {
		v := TimeValue(t)
		if v >= lo && v <= hi {
			out = append(out, t)
		}
	}
	return out
}

// Validate reports the first slot that is not on the grid.
func (g *SlotGrid) Validate(set entity.SelectionSet) error {
	for _, slot := range set.Slots() {
		if !g.Contains(slot.Date, slot.Time) {
			return fmt.Errorf("slot %s is outside the event grid", slot.Key())
		}
	}
	return nil
}

// Headers returns the column headers in date order.
func (g *SlotGrid) Headers() []DateHeader {
	out := make([]DateHeader, len(g.dates))
	for i, d := range g.dates {
		out[i] = FormatDateHeader(d)
	}
	return out
}
