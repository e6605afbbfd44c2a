package service

import (
	"testing"
	"time"

	"syncup-api/modules/event/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestTimes_MergesAndRanks(t *testing.T) {
	mon, tue := date("2024-03-04"), date("2024-03-05")
	grid := NewSlotGrid([]time.Time{mon, tue}, "09:00", "11:00")

	m := entity.NewAvailabilityMap()
	m.Set("alice", entity.NewSelectionSet(
		entity.NewTimeSlot(mon, "09:00"),
		entity.NewTimeSlot(mon, "09:15"),
		entity.NewTimeSlot(mon, "09:30"),
		entity.NewTimeSlot(tue, "10:00"),
	))
	m.Set("bob", entity.NewSelectionSet(
		entity.NewTimeSlot(mon, "09:15"),
		entity.NewTimeSlot(mon, "09:30"),
		entity.NewTimeSlot(tue, "10:00"),
	))

	windows := BestTimes(grid, m, 0)
	require.Len(t, windows, 3)

	assert.Equal(t, mon, windows[0].Date)
	assert.Equal(t, "09:15", windows[0].Start)
	assert.Equal(t, "09:45", windows[0].End)
	assert.Equal(t, 2, windows[0].Rows)
	assert.Equal(t, []string{"alice", "bob"}, windows[0].Participants)

	assert.Equal(t, tue, windows[1].Date)
	assert.Equal(t, "10:00", windows[1].Start)
	assert.Equal(t, "10:15", windows[1].End)
	assert.Equal(t, 2, windows[1].Count())

	assert.Equal(t, "09:00", windows[2].Start)
	assert.Equal(t, []string{"alice"}, windows[2].Participants)
}

func TestBestTimes_Limit(t *testing.T) {
	d := date("2024-03-04")
	grid := NewSlotGrid([]time.Time{d}, "09:00", "10:00")

	m := entity.NewAvailabilityMap()
	m.Set("alice", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00"), entity.NewTimeSlot(d, "09:30")))

	windows := BestTimes(grid, m, 1)
	require.Len(t, windows, 1)
	assert.Equal(t, "09:00", windows[0].Start)
}

func TestBestTimes_Empty(t *testing.T) {
	grid := NewSlotGrid([]time.Time{date("2024-03-04")}, "09:00", "10:00")

	assert.Empty(t, BestTimes(grid, nil, 5))
	assert.Empty(t, BestTimes(grid, entity.NewAvailabilityMap(), 5))
}

func TestSlotEnd(t *testing.T) {
	assert.Equal(t, "09:15", slotEnd("09:00"))
	assert.Equal(t, "10:00", slotEnd("09:45"))
	assert.Equal(t, "24:00", slotEnd("23:45"))
}
