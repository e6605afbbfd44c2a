package service

import (
	"testing"

	"syncup-api/modules/event/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_TwoParticipantsSameCell(t *testing.T) {
	d := date("2024-03-05")
	m := entity.NewAvailabilityMap()
	m.Set("alice", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00")))
	m.Set("bob", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00")))

	h := Aggregate(m)

	assert.Equal(t, 2, h.Count(d, "09:00"))
	assert.Equal(t, 2, h.Max)
	assert.Equal(t, 1.0, h.Intensity(d, "09:00"))
	assert.Equal(t, 0.0, h.Intensity(d, "09:15"))
}

func TestAggregate_Empty(t *testing.T) {
	d := date("2024-03-05")

	for name, m := range map[string]*entity.AvailabilityMap{
		"nil":        nil,
		"empty":      entity.NewAvailabilityMap(),
		"empty sets": func() *entity.AvailabilityMap {
			m := entity.NewAvailabilityMap()
			m.Set("alice", entity.SelectionSet{})
			m.Set("bob", entity.NewSelectionSet())
			return m
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			h := Aggregate(m)
			assert.Equal(t, 0, h.Max)
			assert.Equal(t, 0.0, h.Intensity(d, "09:00"))
			assert.Empty(t, h.Legend())
		})
	}
}

func TestAggregate_IntensityAndLegend(t *testing.T) {
	d := date("2024-03-05")
	m := entity.NewAvailabilityMap()
	m.Set("alice", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00"), entity.NewTimeSlot(d, "09:15")))
	m.Set("bob", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00")))
	m.Set("carol", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00"), entity.NewTimeSlot(d, "10:00")))
	m.Set("dave", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00")))

	h := Aggregate(m)
	require.Equal(t, 4, h.Max)
	assert.Equal(t, 0.25, h.Intensity(d, "09:15"))

	legend := h.Legend()
	require.Len(t, legend, 5)
	assert.Equal(t, LegendItem{Count: 0, Opacity: 0}, legend[0])
	assert.Equal(t, LegendItem{Count: 2, Opacity: 0.5}, legend[2])
	assert.Equal(t, LegendItem{Count: 4, Opacity: 1}, legend[4])
}

func TestWho_InsertionOrder(t *testing.T) {
	d := date("2024-03-05")
	m := entity.NewAvailabilityMap()
	m.Set("zed", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00")))
	m.Set("amy", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:15")))
	m.Set("kim", entity.NewSelectionSet(entity.NewTimeSlot(d, "09:00")))

	assert.Equal(t, []string{"zed", "kim"}, Who(m, d, "09:00"))
	assert.Equal(t, []string{"amy"}, Who(m, d, "09:15"))
	assert.Empty(t, Who(m, d, "11:00"))
	assert.Empty(t, Who(nil, d, "09:00"))
}
