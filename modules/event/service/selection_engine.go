package service

import (
	"sync"
	"syncup-api/modules/event/entity"
	"time"
)

type DragPhase int

const (
	Idle DragPhase = iota
	Dragging
)

func (p DragPhase) String() string {
	if p == Dragging {
		return "dragging"
	}
	return "idle"
}

// CommitFunc receives the new committed set after every drag.
type CommitFunc func(committed entity.SelectionSet)

type EngineOptions struct {
	Grid        *SlotGrid
	Participant string
	ReadOnly    bool
	Initial     entity.SelectionSet
	OnCommit    CommitFunc
	// Bus defaults to DefaultReleaseBus.
	Bus *ReleaseBus
}

// SelectionEngine turns pointer gestures over a SlotGrid into XOR toggles of
// one participant's committed set.
type SelectionEngine struct {
	mu         sync.Mutex
	grid       *SlotGrid
	readOnly   bool
	committed  entity.SelectionSet
	candidate  entity.SelectionSet
	anchor     *entity.TimeSlot
	phase      DragPhase
	onCommit   CommitFunc
	bus        *ReleaseBus
	unregister func()
}

func NewSelectionEngine(opts EngineOptions) *SelectionEngine {
	bus := opts.Bus
	if bus == nil {
		bus = DefaultReleaseBus
	}
	grid := opts.Grid
	if grid == nil {
		grid = NewSlotGrid(nil, "", "")
	}
	return &SelectionEngine{
		grid:      grid,
		readOnly:  opts.ReadOnly || opts.Participant == "",
		committed: opts.Initial,
		onCommit:  opts.OnCommit,
		bus:       bus,
	}
}

// Mount registers the off-grid release handler and returns the func that
// removes it. Read-only engines register nothing. Mounting twice is a no-op.
func (e *SelectionEngine) Mount() func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly {
		return func() {}
	}
	if e.unregister == nil {
		e.unregister = e.bus.Register(e.release)
	}
	return e.Close
}

// Close deregisters the release handler and drops any in-flight drag without committing.
func (e *SelectionEngine) Close() {
	e.mu.Lock()
	unregister := e.unregister
	e.unregister = nil
	e.resetDrag()
	e.mu.Unlock()

	if unregister != nil {
		unregister()
	}
}

func (e *SelectionEngine) ReadOnly() bool {
	return e.readOnly
}

// PointerDown starts a drag at the cell. A second down while dragging restarts the gesture.
func (e *SelectionEngine) PointerDown(date time.Time, label string) {
	if e.readOnly || !e.grid.Contains(date, label) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := entity.NewTimeSlot(date, label)
	e.anchor = &slot
	e.candidate = entity.NewSelectionSet(slot)
	e.phase = Dragging
}

// PointerEnter recomputes the candidate rectangle between the anchor and the cell.
func (e *SelectionEngine) PointerEnter(date time.Time, label string) {
	if e.readOnly || !e.grid.Contains(date, label) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != Dragging || e.anchor == nil {
		return
	}
	e.candidate = e.span(*e.anchor, entity.NewTimeSlot(date, label))
}

// PointerUp ends the drag over a cell.
func (e *SelectionEngine) PointerUp() {
	if e.readOnly {
		return
	}
	e.release()
}

func (e *SelectionEngine) release() {
	e.mu.Lock()
	if e.phase != Dragging {
		e.mu.Unlock()
		return
	}
	committed := e.committed.Toggle(e.candidate)
	e.committed = committed
	e.resetDrag()
	onCommit := e.onCommit
	e.mu.Unlock()

	if onCommit != nil {
		onCommit(committed)
	}
}

// IsHighlighted previews the pending toggle: candidate XOR committed.
func (e *SelectionEngine) IsHighlighted(date time.Time, label string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := entity.SlotKey(date, label)
	return e.candidate.ContainsKey(key) != e.committed.ContainsKey(key)
}

func (e *SelectionEngine) Phase() DragPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *SelectionEngine) Committed() entity.SelectionSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.committed
}

func (e *SelectionEngine) Candidate() entity.SelectionSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.candidate
}

func (e *SelectionEngine) Anchor() (entity.TimeSlot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.anchor == nil {
		return entity.TimeSlot{}, false
	}
	return *e.anchor, true
}

// span walks calendar days from the earlier to the later date and keeps the
// days that are columns of the grid.
func (e *SelectionEngine) span(a, b entity.TimeSlot) entity.SelectionSet {
	from, to := a.Date, b.Date
	if to.Before(from) {
		from, to = to, from
	}
	times := e.grid.TimesBetween(a.Time, b.Time)

	var slots []entity.TimeSlot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !e.grid.HasDate(day) {
			continue
		}
		for _, t := range times {
			slots = append(slots, entity.NewTimeSlot(day, t))
		}
	}
	return entity.NewSelectionSet(slots...)
}

// resetDrag must be called with mu held.
func (e *SelectionEngine) resetDrag() {
	e.anchor = nil
	e.candidate = entity.SelectionSet{}
	e.phase = Idle
}
