// Package outbox parks set-log writes locally and delivers them to the remote log.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"example.com/liftcoach/internal/domain"
	"example.com/liftcoach/internal/kvstore"
)

// QueueKey addresses the single durable record holding the pending entries.
const QueueKey = "liftcoach_offline_queue_v1"

// Entry is one pending action. Entries carry no identity beyond their payload and are
// never deduplicated.
type Entry = domain.Action

// Observer receives the queue length after every write.
type Observer func(pending int)

// QueueOption configures optional behaviour for the Queue.
type QueueOption func(*Queue)

// WithQueueLogger overrides the logger used to report unreadable state.
func WithQueueLogger(logger *log.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithObserver registers fn to be told the pending count after each write.
func WithObserver(fn Observer) QueueOption {
	return func(q *Queue) {
		q.observers = append(q.observers, fn)
	}
}

// Queue is the ordered, durable list of actions accepted locally but not yet confirmed
// delivered. Order is insertion order and is the replay order. Size is unbounded.
type Queue struct {
	store     kvstore.Store
	mu        sync.Mutex
	observers []Observer
	logger    *log.Logger
}

// NewQueue constructs a Queue over store.
func NewQueue(store kvstore.Store, opts ...QueueOption) *Queue {
	q := &Queue{
		store:  store,
		logger: log.New(log.Writer(), "[outbox] ", log.LstdFlags|log.Lmsgprefix),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Load returns the durable entries for display. Unreadable or corrupt state yields an
// empty slice.
func (q *Queue) Load(ctx context.Context) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, err := q.read(ctx)
	if err != nil {
		q.logger.Printf("queue unreadable, reporting empty: %v", err)
		return []Entry{}
	}
	return entries
}

// Len reports how many entries are pending.
func (q *Queue) Len(ctx context.Context) int {
	return len(q.Load(ctx))
}

// Save replaces the durable state with entries.
func (q *Queue) Save(ctx context.Context, entries []Entry) error {
	q.mu.Lock()
	err := q.save(ctx, entries)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	q.notify(len(entries))
	return nil
}

// Enqueue appends entry and persists the full sequence. If the stored sequence cannot be
// read the write is refused so the existing entries are never replaced.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) error {
	q.mu.Lock()
	current, err := q.read(ctx)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	entries := append(current, entry)
	err = q.save(ctx, entries)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	q.notify(len(entries))
	return nil
}

// Drain swaps the durable state for an empty queue and returns what it held. An empty
// queue is left untouched. When the state cannot be read or the swap cannot be persisted
// nothing is drained.
func (q *Queue) Drain(ctx context.Context) ([]Entry, error) {
	q.mu.Lock()
	snapshot, err := q.read(ctx)
	if err != nil {
		q.mu.Unlock()
		return nil, err
	}
	if len(snapshot) == 0 {
		q.mu.Unlock()
		return nil, nil
	}
	err = q.save(ctx, []Entry{})
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	q.notify(0)
	return snapshot, nil
}

// Requeue puts failed entries back ahead of anything enqueued since the drain, keeping
// their original relative order. Concurrent enqueues are merged, never overwritten.
func (q *Queue) Requeue(ctx context.Context, failed []Entry) error {
	if len(failed) == 0 {
		return nil
	}
	q.mu.Lock()
	current, err := q.read(ctx)
	if err != nil {
		q.mu.Unlock()
		return err
	}
	merged := make([]Entry, 0, len(failed)+len(current))
	merged = append(merged, failed...)
	merged = append(merged, current...)
	err = q.save(ctx, merged)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	q.notify(len(merged))
	return nil
}

// read returns the stored entries. A store failure is returned to the caller; a record
// that exists but does not decode is logged and treated as empty.
func (q *Queue) read(ctx context.Context) ([]Entry, error) {
	raw, ok, err := q.store.Get(ctx, QueueKey)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		q.logger.Printf("queue corrupt, treating as empty: %v", err)
		return []Entry{}, nil
	}
	if entries == nil {
		return []Entry{}, nil
	}
	return entries, nil
}

func (q *Queue) save(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := q.store.Put(ctx, QueueKey, raw); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

func (q *Queue) notify(pending int) {
	for _, fn := range q.observers {
		fn(pending)
	}
}
