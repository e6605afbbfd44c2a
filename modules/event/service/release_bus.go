package service

import "sync"

// ReleaseBus delivers pointer releases that happen outside any grid to every
// mounted engine, so an unfinished drag still commits.
type ReleaseBus struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]func()
}

func NewReleaseBus() *ReleaseBus {
	return &ReleaseBus{handlers: make(map[uint64]func())}
}

// DefaultReleaseBus is the process-wide bus.
var DefaultReleaseBus = NewReleaseBus()

// Register adds fn and returns a func that removes it. The returned func is idempotent.
func (b *ReleaseBus) Register(fn func()) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Release calls every registered handler. Handlers run outside the bus lock.
func (b *ReleaseBus) Release() {
	b.mu.Lock()
	handlers := make([]func(), 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (b *ReleaseBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
