package testutil

import (
	"context"
	"sync"
	"time"
)

// MemoryBroker is an in-process pub/sub and presence store.
type MemoryBroker struct {
	mu        sync.Mutex
	subs      map[string]map[int]chan []byte
	next      int
	published map[string][][]byte
	presence  map[string]map[string]time.Time
	windows   map[string]int64
	blacklist map[string]bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs:      make(map[string]map[int]chan []byte),
		published: make(map[string][][]byte),
		presence:  make(map[string]map[string]time.Time),
		windows:   make(map[string]int64),
		blacklist: make(map[string]bool),
	}
}

func (b *MemoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan []byte, 16)
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan []byte)
	}
	b.subs[channel][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], id)
			close(ch)
			b.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

// Published returns the payloads sent on channel.
func (b *MemoryBroker) Published(channel string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.published[channel]...)
}

// Subscribers reports the number of live subscriptions on channel.
func (b *MemoryBroker) Subscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

func (b *MemoryBroker) TouchPresence(_ context.Context, eventKey, viewerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.presence[eventKey] == nil {
		b.presence[eventKey] = make(map[string]time.Time)
	}
	b.presence[eventKey][viewerID] = time.Now()
	return nil
}

func (b *MemoryBroker) RemovePresence(_ context.Context, eventKey, viewerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.presence[eventKey], viewerID)
	return nil
}

func (b *MemoryBroker) CountPresence(_ context.Context, eventKey string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.presence[eventKey])), nil
}

func (b *MemoryBroker) IncrementWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows[key]++
	return b.windows[key], nil
}

func (b *MemoryBroker) AddToTokenBlacklist(_ context.Context, token string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ttl > 0 {
		b.blacklist[token] = true
	}
	return nil
}

func (b *MemoryBroker) IsTokenBlacklisted(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blacklist[token], nil
}

func (b *MemoryBroker) Ping(context.Context) error { return nil }

func (b *MemoryBroker) Close() error { return nil }
