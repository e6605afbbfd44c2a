package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AvailabilityMap maps participant to committed set and iterates in the order
// participants were first added. A nil map behaves as empty.
type AvailabilityMap struct {
	order []string
	sets  map[string]SelectionSet
}

func NewAvailabilityMap() *AvailabilityMap {
	return &AvailabilityMap{sets: make(map[string]SelectionSet)}
}

// Set replaces the participant's set; a participant keeps its original position.
func (m *AvailabilityMap) Set(participant string, set SelectionSet) {
	if m.sets == nil {
		m.sets = make(map[string]SelectionSet)
	}
	if _, ok := m.sets[participant]; !ok {
		m.order = append(m.order, participant)
	}
	m.sets[participant] = set
}

func (m *AvailabilityMap) Get(participant string) (SelectionSet, bool) {
	if m == nil {
		return SelectionSet{}, false
	}
	set, ok := m.sets[participant]
	return set, ok
}

func (m *AvailabilityMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

func (m *AvailabilityMap) Participants() []string {
	if m == nil {
		return []string{}
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Range calls fn in insertion order until fn returns false.
func (m *AvailabilityMap) Range(fn func(participant string, set SelectionSet) bool) {
	if m == nil {
		return
	}
	for _, p := range m.order {
		if !fn(p, m.sets[p]) {
			return
		}
	}
}

func (m *AvailabilityMap) Clone() *AvailabilityMap {
	out := NewAvailabilityMap()
	m.Range(func(p string, set SelectionSet) bool {
		out.Set(p, set)
		return true
	})
	return out
}

// MarshalJSON writes an object whose keys keep insertion order.
func (m *AvailabilityMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	m.Range(func(p string, set SelectionSet) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var key, value []byte
		if key, err = json.Marshal(p); err != nil {
			return false
		}
		if value, err = set.MarshalJSON(); err != nil {
			return false
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *AvailabilityMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = AvailabilityMap{sets: make(map[string]SelectionSet)}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("availability map must be a JSON object")
	}

	out := AvailabilityMap{sets: make(map[string]SelectionSet)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		participant, ok := tok.(string)
		if !ok {
			return fmt.Errorf("availability map key must be a string")
		}
		var set SelectionSet
		if err := dec.Decode(&set); err != nil {
			return fmt.Errorf("availability for %q: %w", participant, err)
		}
		out.Set(participant, set)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}
