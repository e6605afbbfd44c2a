package service

import (
	"syncup-api/modules/event/entity"
	"time"
)

// Heatmap holds per-cell participant counts and the grid-wide maximum.
type Heatmap struct {
	Counts map[string]int
	Max    int
}

type LegendItem struct {
	Count   int     `json:"count"`
	Opacity float64 `json:"opacity"`
}

// Aggregate counts, in one pass, how many participants committed each cell.
// Participants with no cells contribute nothing.
func Aggregate(availability *entity.AvailabilityMap) Heatmap {
	h := Heatmap{Counts: make(map[string]int)}
	availability.Range(func(_ string, set entity.SelectionSet) bool {
		for _, key := range set.Keys() {
			n := h.Counts[key] + 1
			h.Counts[key] = n
			if n > h.Max {
				h.Max = n
			}
		}
		return true
	})
	return h
}

func (h Heatmap) Count(date time.Time, label string) int {
	return h.Counts[entity.SlotKey(date, label)]
}

// Intensity is count/max, or 0 when nobody is available anywhere.
func (h Heatmap) Intensity(date time.Time, label string) float64 {
	return h.intensity(h.Count(date, label))
}

func (h Heatmap) intensity(count int) float64 {
	if h.Max <= 0 {
		return 0
	}
	return float64(count) / float64(h.Max)
}

// Legend lists the buckets 0..Max with their opacity; empty when Max is 0.
func (h Heatmap) Legend() []LegendItem {
	if h.Max <= 0 {
		return []LegendItem{}
	}
	items := make([]LegendItem, 0, h.Max+1)
	for i := 0; i <= h.Max; i++ {
		items = append(items, LegendItem{Count: i, Opacity: h.intensity(i)})
	}
	return items
}

// Who lists the participants available at the cell in the map's insertion order.
func Who(availability *entity.AvailabilityMap, date time.Time, label string) []string {
	key := entity.SlotKey(date, label)
	out := make([]string, 0)
	availability.Range(func(participant string, set entity.SelectionSet) bool {
		if set.ContainsKey(key) {
			out = append(out, participant)
		}
		return true
	})
	return out
}
