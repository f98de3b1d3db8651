package outbox

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Set TASKBOARD_TEST_POSTGRES_DSN to run against a scratch database.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TASKBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TASKBOARD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	r := NewRepository(pool)
	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE outbox_events RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return r
}

func TestRepositoryLifecycle(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	for _, key := range []string{"task.created", "task.updated"} {
		if err := Enqueue(ctx, r.db, key, map[string]any{"task_id": 7}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", key, err)
		}
	}

	pending, err := r.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 2 || pending[0].RoutingKey != "task.created" || pending[0].Status != StatusPending {
		t.Fatalf("Pending() = %+v", pending)
	}

	if err := r.MarkSent(ctx, pending[0].ID); err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}
	// one retry allowed: the first failure is final
	if err := r.MarkFailed(ctx, pending[1].ID, 1); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	if pending, _ := r.Pending(ctx, 10); len(pending) != 0 {
		t.Errorf("Pending() after delivery = %+v", pending)
	}
	failed, err := r.Failed(ctx, 10)
	if err != nil || len(failed) != 1 || failed[0].RetryCount != 1 {
		t.Fatalf("Failed() = %+v, %v", failed, err)
	}

	if err := r.Requeue(ctx, failed[0].ID); err != nil {
		t.Fatalf("Requeue() error = %v", err)
	}
	if pending, _ := r.Pending(ctx, 10); len(pending) != 1 {
		t.Errorf("Pending() after Requeue() = %+v", pending)
	}
	if err := r.Requeue(ctx, 9999); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Requeue(missing) error = %v, want ErrEventNotFound", err)
	}
}

func TestMarkFailedBacksOff(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	if err := Enqueue(ctx, r.db, "task.deleted", map[string]any{"task_id": 1}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	pending, _ := r.Pending(ctx, 1)
	if err := r.MarkFailed(ctx, pending[0].ID, 5); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	// still pending but not due yet
	if got, _ := r.Pending(ctx, 10); len(got) != 0 {
		t.Errorf("Pending() during backoff = %+v", got)
	}
	if failed, _ := r.Failed(ctx, 10); len(failed) != 0 {
		t.Errorf("Failed() = %+v, want none", failed)
	}
}

func TestEnqueueRollsBackWithTransaction(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := Enqueue(ctx, tx, "task.created", map[string]any{"task_id": 9}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatal(err)
	}
	if pending, _ := r.Pending(ctx, 10); len(pending) != 0 {
		t.Errorf("Pending() after rollback = %+v", pending)
	}
}
