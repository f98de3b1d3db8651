package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"taskboard/pkg/trace"
)

type fakeSource struct {
	events []*Event
	sent   []int64
	failed []int64
}

func (f *fakeSource) Pending(ctx context.Context, limit int) ([]*Event, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeSource) MarkSent(ctx context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeSource) MarkFailed(ctx context.Context, id int64, maxRetries int) error {
	f.failed = append(f.failed, id)
	return nil
}

type published struct {
	routingKey string
	traceID    string
	body       string
}

type fakeSink struct {
	failKey string
	got     []published
}

func (f *fakeSink) Publish(ctx context.Context, routingKey string, payload any) error {
	if routingKey == f.failKey {
		return errors.New("broker unavailable")
	}
	b, _ := json.Marshal(payload)
	f.got = append(f.got, published{routingKey: routingKey, traceID: trace.FromContext(ctx), body: string(b)})
	return nil
}

func TestDispatcherRunOnce(t *testing.T) {
	src := &fakeSource{events: []*Event{
		{ID: 1, RoutingKey: "task.created", Payload: json.RawMessage(`{"task_id":1,"trace_id":"t-1"}`)},
		{ID: 2, RoutingKey: "task.deleted", Payload: json.RawMessage(`{"task_id":2}`)},
		{ID: 3, RoutingKey: "task.updated", Payload: json.RawMessage(`{"task_id":3}`)},
	}}
	sink := &fakeSink{failKey: "task.deleted"}

	d := NewDispatcher(src, sink, zap.NewNop())
	if sent := d.RunOnce(context.Background()); sent != 2 {
		t.Errorf("RunOnce() = %d, want 2", sent)
	}

	if len(src.sent) != 2 || src.sent[0] != 1 || src.sent[1] != 3 {
		t.Errorf("sent = %v, want [1 3]", src.sent)
	}
	if len(src.failed) != 1 || src.failed[0] != 2 {
		t.Errorf("failed = %v, want [2]", src.failed)
	}
	if sink.got[0].traceID != "t-1" {
		t.Errorf("trace id = %q, want t-1", sink.got[0].traceID)
	}
	if sink.got[0].body != `{"task_id":1,"trace_id":"t-1"}` {
		t.Errorf("payload re-encoded as %s", sink.got[0].body)
	}
}

func TestDispatcherBatchSize(t *testing.T) {
	src := &fakeSource{}
	for i := int64(1); i <= 5; i++ {
		src.events = append(src.events, &Event{ID: i, RoutingKey: "task.created", Payload: json.RawMessage(`{}`)})
	}
	d := NewDispatcher(src, &fakeSink{}, zap.NewNop(), BatchSize(2))
	if sent := d.RunOnce(context.Background()); sent != 2 {
		t.Errorf("RunOnce() = %d, want 2", sent)
	}
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewDispatcher(&fakeSource{}, &fakeSink{}, zap.NewNop()).Start(ctx)
		close(done)
	}()
	cancel()
	<-done
}
