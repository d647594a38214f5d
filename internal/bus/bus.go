package bus

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Bus fans events out to subscribers by kind prefix. Publishing never
// blocks: a subscriber whose buffer is full misses the event, and the miss
// is counted in Dropped.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	dropped atomic.Uint64
}

type subscription struct {
	prefixes []string
	ch       chan Event
}

func (s *subscription) wants(kind string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}

func New() *Bus {
	return &Bus{}
}

// Publish delivers evt to every interested subscriber. A nil Bus discards it.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.wants(evt.Kind) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Emit publishes an event of the given kind stamped with the current time.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Subscribe receives events whose kind starts with namespace; "" receives
// everything. The returned func unsubscribes and may be called repeatedly.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	return b.SubscribeAny([]string{namespace}, bufSize)
}

// SubscribeAny receives events matching any of prefixes, or every event
// when prefixes is empty.
func (b *Bus) SubscribeAny(prefixes []string, bufSize int) (<-chan Event, func()) {
	sub := &subscription{prefixes: slices.Clone(prefixes), ch: make(chan Event, bufSize)}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			b.subs = slices.DeleteFunc(b.subs, func(s *subscription) bool { return s == sub })
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
