package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"example.com/liftcoach/internal/domain"
	"example.com/liftcoach/internal/observability"
	"example.com/liftcoach/internal/remotelog"
)

// Sender delivers one action to the remote log.
type Sender interface {
	Do(ctx context.Context, action domain.Action) (json.RawMessage, error)
}

// ConnectivityReporter tells whether the device currently believes it is online.
type ConnectivityReporter interface {
	Online() bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// Skip reasons reported in FlushResult.
const (
	SkipOffline    = "offline"
	SkipInProgress = "in_progress"
)

// FlushResult summarises one flush trigger.
type FlushResult struct {
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
	Attempted  int    `json:"attempted"`
	Delivered  int    `json:"delivered"`
	Requeued   int    `json:"requeued"`
}

// SaveOutcome tells the caller how an accepted action was handled. Reason says why
// the action was queued instead of delivered.
type SaveOutcome struct {
	Record    domain.SetRecord `json:"record"`
	Delivered bool             `json:"delivered"`
	Queued    bool             `json:"queued"`
	Reason    string           `json:"reason,omitempty"`
}

// Option configures optional behaviour for the Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the logger used to report delivery failures.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithConnectivity sets the source of the online/offline state.
func WithConnectivity(reporter ConnectivityReporter) Option {
	return func(d *Dispatcher) {
		d.connectivity = reporter
	}
}

// WithNotifier announces delivered sets downstream.
func WithNotifier(notifier DeliveryNotifier) Option {
	return func(d *Dispatcher) {
		d.notifier = notifier
	}
}

// WithInterval enables the periodic flush trigger used by Start.
func WithInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.interval = interval
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Dispatcher drains the queue against the remote log and owns the retry policy.
//
// At most one flush runs at a time. A flush swaps the durable queue for an empty one,
// delivers the snapshot in order, and merges the failures back ahead of anything
// enqueued meanwhile. Failed entries are retried on every later trigger with no backoff
// and no attempt limit. Delivery is at-least-once: a reply lost after the remote log
// committed a write leads to a duplicate on the next flush. Failures that cannot be
// written back are held in memory and restored ahead of the next drain.
type Dispatcher struct {
	queue            *Queue
	sender           Sender
	connectivity     ConnectivityReporter
	notifier         DeliveryNotifier
	interval         time.Duration
	draining         atomic.Bool
	stranded         []Entry
	logger           *log.Logger
	now              func() time.Time
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(queue *Queue, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:            queue,
		sender:           sender,
		connectivity:     alwaysOnline{},
		notifier:         NoopNotifier{},
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags|log.Lmsgprefix),
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Queue exposes the underlying queue.
func (d *Dispatcher) Queue() *Queue { return d.queue }

// Start runs the periodic flush trigger until ctx is cancelled. It should be called in
// a goroutine. Without an interval it only waits for cancellation.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.shutdownComplete)
	if d.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("periodic flush error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until Start returns.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// Flush delivers every pending entry once. A trigger while offline or while another
// flush is running is a no-op. Delivery failures are not returned; they leave the entry
// queued. The returned error reports local storage problems only.
func (d *Dispatcher) Flush(ctx context.Context) (FlushResult, error) {
	if !d.connectivity.Online() {
		flushSkippedCounter.WithLabelValues(SkipOffline).Inc()
		return FlushResult{Skipped: true, SkipReason: SkipOffline}, nil
	}
	if !d.draining.CompareAndSwap(false, true) {
		flushSkippedCounter.WithLabelValues(SkipInProgress).Inc()
		return FlushResult{Skipped: true, SkipReason: SkipInProgress}, nil
	}
	defer d.draining.Store(false)

	if len(d.stranded) > 0 {
		if err := d.queue.Requeue(ctx, d.stranded); err != nil {
			return FlushResult{}, fmt.Errorf("restore %d held entries: %w", len(d.stranded), err)
		}
		d.logger.Printf("restored %d held entries to the queue", len(d.stranded))
		d.stranded = nil
	}

	start := time.Now()
	snapshot, err := d.queue.Drain(ctx)
	if err != nil {
		return FlushResult{}, fmt.Errorf("drain queue: %w", err)
	}
	if len(snapshot) == 0 {
		return FlushResult{}, nil
	}
	defer func() { flushDuration.Observe(time.Since(start).Seconds()) }()

	result := FlushResult{}
	failed := make([]Entry, 0)
	for _, entry := range snapshot {
		if ctx.Err() != nil {
			failed = append(failed, entry)
			continue
		}
		result.Attempted++
		if err := d.deliver(ctx, entry); err != nil {
			d.logger.Printf("flush: keeping %s for next cycle: %v", entry.Name, err)
			failed = append(failed, entry)
			continue
		}
		result.Delivered++
	}

	result.Requeued = len(failed)
	if len(failed) > 0 {
		// Requeue even when ctx was cancelled mid-cycle; the entries are only in memory now.
		if err := d.queue.Requeue(context.WithoutCancel(ctx), failed); err != nil {
			d.stranded = failed
			return result, fmt.Errorf("requeue %d entries: %w", len(failed), err)
		}
	}
	if result.Attempted > 0 || result.Requeued > 0 {
		d.logger.Printf("flush complete: attempted=%d delivered=%d requeued=%d", result.Attempted, result.Delivered, result.Requeued)
	}
	return result, nil
}

// SaveSet records a new set for the session's current exercise. Invalid input is
// returned as a domain validation error before any network attempt. Otherwise the set
// is delivered immediately when online or parked in the queue; either way the session
// moves on to the next set number. The returned error reports local storage problems.
func (d *Dispatcher) SaveSet(ctx context.Context, session *domain.Session, input domain.SetInput) (SaveOutcome, error) {
	record, err := session.NewRecord(input, d.now())
	if err != nil {
		return SaveOutcome{}, err
	}
	action, err := domain.AppendSetLog(record)
	if err != nil {
		return SaveOutcome{}, err
	}

	outcome, err := d.Submit(ctx, action)
	outcome.Record = record
	if err != nil {
		return outcome, err
	}
	session.Advance()
	return outcome, nil
}

// Submit sends action once when online and falls back to the queue on any failure.
// When offline it skips the network entirely.
func (d *Dispatcher) Submit(ctx context.Context, action domain.Action) (SaveOutcome, error) {
	if !d.connectivity.Online() {
		if err := d.park(ctx, action, SkipOffline); err != nil {
			return SaveOutcome{}, err
		}
		return SaveOutcome{Queued: true, Reason: SkipOffline}, nil
	}

	if err := d.deliver(ctx, action); err != nil {
		d.logger.Printf("immediate %s failed, saved offline: %v", action.Name, err)
		if parkErr := d.park(ctx, action, "send_failed"); parkErr != nil {
			return SaveOutcome{}, parkErr
		}
		return SaveOutcome{Queued: true, Reason: err.Error()}, nil
	}
	return SaveOutcome{Delivered: true}, nil
}

func (d *Dispatcher) park(ctx context.Context, action domain.Action, reason string) error {
	if err := d.queue.Enqueue(context.WithoutCancel(ctx), action); err != nil {
		return fmt.Errorf("save %s offline: %w", action.Name, err)
	}
	enqueuedCounter.WithLabelValues(reason).Inc()
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, action domain.Action) error {
	if _, err := d.sender.Do(ctx, action); err != nil {
		failedCounter.WithLabelValues(action.Name, failureKind(err)).Inc()
		return err
	}

	deliveredAt := d.now()
	deliveredCounter.WithLabelValues(action.Name).Inc()
	observability.RecordDelivered(deliveredAt)

	if record, ok := action.SetRecord(); ok {
		if err := d.notifier.SetDelivered(ctx, record); err != nil {
			notifyFailedCounter.Inc()
			d.logger.Printf("delivery notification failed (set_id=%s): %v", record.SetID, err)
		}
	}
	return nil
}

func failureKind(err error) string {
	var derr *remotelog.DeliveryError
	if errors.As(err, &derr) {
		return derr.Kind.String()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "unknown"
}
