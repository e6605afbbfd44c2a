package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityMap_InsertionOrder(t *testing.T) {
	d := day("2024-03-05")
	m := NewAvailabilityMap()
	m.Set("carol", NewSelectionSet(NewTimeSlot(d, "09:00")))
	m.Set("alice", NewSelectionSet())
	m.Set("bob", NewSelectionSet(NewTimeSlot(d, "09:15")))
	m.Set("carol", NewSelectionSet(NewTimeSlot(d, "10:00")))

	assert.Equal(t, []string{"carol", "alice", "bob"}, m.Participants())

	carol, ok := m.Get("carol")
	require.True(t, ok)
	assert.Equal(t, []string{"2024-03-05_10:00"}, carol.Keys())
}

func TestAvailabilityMap_NilIsEmpty(t *testing.T) {
	var m *AvailabilityMap
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Participants())
	_, ok := m.Get("alice")
	assert.False(t, ok)

	calls := 0
	m.Range(func(string, SelectionSet) bool { calls++; return true })
	assert.Zero(t, calls)
}

func TestAvailabilityMap_JSONPreservesOrder(t *testing.T) {
	raw := `{"zed":[{"date":"2024-03-05","time":"09:00"}],"amy":[],"kim":[{"date":"2024-03-05","time":"09:15"}]}`

	var m AvailabilityMap
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, []string{"zed", "amy", "kim"}, m.Participants())

	out, err := json.Marshal(&m)
	require.NoError(t, err)
	assert.Equal(t, raw, string(out))
}

func TestAvailabilityMap_Clone(t *testing.T) {
	m := NewAvailabilityMap()
	m.Set("alice", NewSelectionSet())
	clone := m.Clone()
	clone.Set("bob", NewSelectionSet())

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, clone.Len())
}
