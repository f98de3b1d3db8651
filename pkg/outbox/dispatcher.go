package outbox

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"taskboard/pkg/trace"
)

// Source is the queue side the dispatcher drains. *Repository satisfies it.
type Source interface {
	Pending(ctx context.Context, limit int) ([]*Event, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, maxRetries int) error
}

// Sink delivers an event. *mq.Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Option func(*Dispatcher)

func MaxRetries(n int) Option { return func(d *Dispatcher) { d.maxRetries = n } }

func PollInterval(every time.Duration) Option { return func(d *Dispatcher) { d.every = every } }

func BatchSize(n int) Option { return func(d *Dispatcher) { d.batch = n } }

// Dispatcher moves task events from the outbox table to the broker.
type Dispatcher struct {
	src Source
	dst Sink
	log *zap.Logger

	maxRetries int
	every      time.Duration
	batch      int
}

func NewDispatcher(src Source, dst Sink, log *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		src:        src,
		dst:        dst,
		log:        log.Named("outbox"),
		maxRetries: 5,
		every:      time.Second,
		batch:      100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start polls until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info("Dispatcher running",
		zap.Duration("every", d.every),
		zap.Int("batch", d.batch),
		zap.Int("max_retries", d.maxRetries),
	)
	tick := time.NewTicker(d.every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			d.log.Info("Dispatcher stopped")
			return
		case <-tick.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce delivers up to one batch and returns the number delivered.
func (d *Dispatcher) RunOnce(ctx context.Context) int {
	batch, err := d.src.Pending(ctx, d.batch)
	if err != nil {
		d.log.Error("Load pending task events", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, ev := range batch {
		if d.deliver(ctx, ev) {
			delivered++
		}
	}
	return delivered
}

func (d *Dispatcher) deliver(ctx context.Context, ev *Event) bool {
	l := d.log.With(zap.Int64("outbox_id", ev.ID), zap.String("routing_key", ev.RoutingKey))

	if err := d.dst.Publish(payloadTrace(ctx, ev.Payload), ev.RoutingKey, ev.Payload); err != nil {
		l.Warn("Task event not delivered", zap.Int("attempt", ev.RetryCount+1), zap.Error(err))
		if err := d.src.MarkFailed(ctx, ev.ID, d.maxRetries); err != nil {
			l.Error("Record delivery failure", zap.Error(err))
		}
		return false
	}
	// the event is sent again next round; consumers dedupe on task_id
	if err := d.src.MarkSent(ctx, ev.ID); err != nil {
		l.Error("Record delivery", zap.Error(err))
		return false
	}
	return true
}

// payloadTrace carries the originating request's trace_id into the publish.
func payloadTrace(ctx context.Context, payload json.RawMessage) context.Context {
	var p struct {
		TraceID string `json:"trace_id"`
	}
	if json.Unmarshal(payload, &p) != nil || p.TraceID == "" {
		return ctx
	}
	return trace.WithContext(ctx, p.TraceID)
}
