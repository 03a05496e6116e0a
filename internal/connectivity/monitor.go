// Package connectivity tracks whether the remote log is believed reachable and
// announces transitions to subscribers.
package connectivity

import (
	"context"
	"sync"

	"example.com/liftcoach/internal/observability"
)

// Event is a connectivity transition.
type Event int

const (
	BecameOffline Event = iota
	BecameOnline
)

func (e Event) String() string {
	if e == BecameOnline {
		return "online"
	}
	return "offline"
}

const subscriberBuffer = 8

// Monitor holds the current online/offline belief. Subscribers receive an event only
// when the state actually changes.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]chan Event
	nextID int
}

// NewMonitor constructs a Monitor starting in the given state.
func NewMonitor(online bool) *Monitor {
	observability.RecordOnline(online)
	return &Monitor{online: online, subs: make(map[int]chan Event)}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the observed state and reports whether it changed. A subscriber whose
// buffer is full misses the event.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return false
	}
	m.online = online
	observability.RecordOnline(online)

	ev := BecameOffline
	if online {
		ev = BecameOnline
	}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return true
}

// Subscribe returns a channel of transitions and a function that cancels the
// subscription and closes the channel.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan Event, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// OnOnline subscribes to m and then calls fn in a background goroutine every time m
// becomes online, until ctx is cancelled. Transitions after OnOnline returns are never
// missed. The returned channel is closed when the goroutine exits.
func OnOnline(ctx context.Context, m *Monitor, fn func(context.Context)) <-chan struct{} {
	events, cancel := m.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev == BecameOnline {
					fn(ctx)
				}
			}
		}
	}()
	return done
}
