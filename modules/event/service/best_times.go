package service

import (
	"fmt"
	"sort"
	"strings"
	"syncup-api/modules/event/entity"
	"time"
)

// DefaultBestTimesLimit caps the ranked windows returned with the group view.
const DefaultBestTimesLimit = 10

// TimeWindow is a run of consecutive rows on one date shared by the same participants.
type TimeWindow struct {
	Date         time.Time
	Start        string
	End          string
	Rows         int
	Participants []string
}

func (w TimeWindow) Count() int {
	return len(w.Participants)
}

// BestTimes merges adjacent cells with the same participants into windows and
// ranks them by head count, then by length, then by grid order.
func BestTimes(grid *SlotGrid, availability *entity.AvailabilityMap, limit int) []TimeWindow {
	if limit <= 0 {
		limit = DefaultBestTimesLimit
	}

	windows := make([]TimeWindow, 0)
	for _, d := range grid.Dates() {
		var open *TimeWindow
		openKey := ""
		for _, t := range grid.Axis() {
			who := Who(availability, d, t)
			key := strings.Join(who, "\x00")
			if open != nil && key == openKey {
				open.Rows++
				open.End = slotEnd(t)
				continue
			}
			if open != nil {
				windows = append(windows, *open)
				open = nil
			}
			if len(who) == 0 {
				continue
			}
			open = &TimeWindow{Date: d, Start: t, End: slotEnd(t), Rows: 1, Participants: who}
			openKey = key
		}
		if open != nil {
			windows = append(windows, *open)
		}
	}

	// Stable so equal windows keep grid order.
	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Count() != windows[j].Count() {
			return windows[i].Count() > windows[j].Count()
		}
		return windows[i].Rows > windows[j].Rows
	})

	if len(windows) > limit {
		return windows[:limit]
	}
	return windows
}

// slotEnd is the label 15 minutes after t; the last row of a day ends at "24:00".
func slotEnd(label string) string {
	v := TimeValue(label)
	if v < 0 {
		return label
	}
	minutes := (v/100)*60 + v%100 + 60/SlotsPerHour
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
