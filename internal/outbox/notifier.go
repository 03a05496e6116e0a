package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/liftcoach/internal/domain"
	"example.com/liftcoach/internal/events"
)

// DeliveryNotifier is told about every set the remote log has confirmed.
type DeliveryNotifier interface {
	SetDelivered(ctx context.Context, record domain.SetRecord) error
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

// SetDelivered performs no action.
func (NoopNotifier) SetDelivered(context.Context, domain.SetRecord) error { return nil }

// ErrNotifierBusy is returned when the async notifier buffer is full and the
// notification was dropped.
var ErrNotifierBusy = errors.New("notification buffer full")

// ErrNotifierClosed is returned for notifications handed to a closed AsyncNotifier.
var ErrNotifierClosed = errors.New("notifier closed")

// AsyncNotifier hands notifications to a background worker so delivery never waits on
// the downstream broker. Each publish gets its own timeout. Notifications arriving while
// the buffer is full are dropped.
type AsyncNotifier struct {
	inner        DeliveryNotifier
	records      chan domain.SetRecord
	writeTimeout time.Duration
	drainTimeout time.Duration
	logger       *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncNotifier starts a worker publishing through inner. buffer bounds how many
// notifications may wait; writeTimeout bounds each publish; drainTimeout bounds how
// long Close waits for the backlog.
func NewAsyncNotifier(inner DeliveryNotifier, buffer int, writeTimeout, drainTimeout time.Duration) *AsyncNotifier {
	if buffer < 1 {
		buffer = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &AsyncNotifier{
		inner:        inner,
		records:      make(chan domain.SetRecord, buffer),
		writeTimeout: writeTimeout,
		drainTimeout: drainTimeout,
		logger:       log.New(log.Writer(), "[outbox] ", log.LstdFlags|log.Lmsgprefix),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go n.run()
	return n
}

// SetDelivered queues record for publishing and returns without waiting.
func (n *AsyncNotifier) SetDelivered(_ context.Context, record domain.SetRecord) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}
	select {
	case n.records <- record:
		return nil
	default:
		notifyDroppedCounter.Inc()
		return ErrNotifierBusy
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for record := range n.records {
		ctx, cancel := context.WithTimeout(n.ctx, n.writeTimeout)
		err := n.inner.SetDelivered(ctx, record)
		cancel()
		if err != nil {
			notifyFailedCounter.Inc()
			n.logger.Printf("delivery notification failed (set_id=%s): %v", record.SetID, err)
		}
	}
}

// Close stops accepting notifications, waits up to the drain timeout for the backlog,
// then abandons whatever is left and closes the inner notifier.
func (n *AsyncNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.records)
	n.mu.Unlock()

	timer := time.NewTimer(n.drainTimeout)
	defer timer.Stop()
	select {
	case <-n.done:
	case <-timer.C:
		n.logger.Printf("notification backlog not drained after %s, abandoning %d", n.drainTimeout, len(n.records))
		n.cancel()
		<-n.done
	}
	n.cancel()

	if closer, ok := n.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes set_log.appended events keyed by progress key, so every
// set of one training slot lands on the same partition in order.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaNotifier creates a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return newKafkaNotifier(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	})
}

func newKafkaNotifier(writer messageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, now: time.Now}
}

// SetDelivered implements DeliveryNotifier.
func (n *KafkaNotifier) SetDelivered(ctx context.Context, record domain.SetRecord) error {
	payload, err := json.Marshal(events.SetLogAppended{
		SetID:       record.SetID,
		UserID:      record.UserID,
		WorkoutID:   record.WorkoutID,
		ExerciseID:  record.ExerciseID,
		ProgressKey: record.ProgressKey(),
		SetNo:       record.SetNo,
		Weight:      record.Weight,
		Reps:        record.Reps,
		RIR:         record.RIR,
		RecordedAt:  record.RecordedAt(),
		DeliveredAt: n.now().UTC(),
	})
	if err != nil {
		return err
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ProgressKey()),
		Value: payload,
		Time:  n.now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.SetLogAppendedType)},
			{Key: "user_id", Value: []byte(record.UserID)},
		},
	})
}

// Close releases the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
