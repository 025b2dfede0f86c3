package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/travelhub/internal/jobs"
	"github.com/google/uuid"
)

func setupQueue(t *testing.T) *Queue {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	c := New(Config{Addr: addr})
	t.Cleanup(func() { _ = c.Close() })

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	return c.Queue("travelhub:test:" + uuid.NewString())
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	j, err := jobs.NewRepairJob(jobs.JobLinkCreatedPlace, jobs.RepairPayload{UserID: "u1", PlaceID: "p1"})
	if err != nil {
		t.Fatalf("NewRepairJob error: %v", err)
	}

	if err := q.Enqueue(ctx, j); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	got, ok, err := q.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("Dequeue = (%v, %v)", ok, err)
	}
	if got.ID != j.ID {
		t.Fatalf("got job %s, want %s", got.ID, j.ID)
	}

	_, ok, err = q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("expected empty queue, got ok=%v err=%v", ok, err)
	}
}

func TestQueue_RetryThenPromote(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	j, err := jobs.NewRepairJob(jobs.JobUnlinkCreatedPlace, jobs.RepairPayload{UserID: "u1", PlaceID: "p1"})
	if err != nil {
		t.Fatalf("NewRepairJob error: %v", err)
	}

	if err := q.Retry(ctx, j, 50*time.Millisecond, nil); err != nil {
		t.Fatalf("Retry error: %v", err)
	}

	d, err := q.Depths(ctx)
	if err != nil || d.Delayed != 1 || d.Ready != 0 {
		t.Fatalf("Depths = (%+v, %v)", d, err)
	}

	moved, err := q.PromoteDue(ctx, time.Now().Add(time.Second))
	if err != nil || moved != 1 {
		t.Fatalf("PromoteDue = (%d, %v), want 1", moved, err)
	}

	got, ok, err := q.Dequeue(ctx, time.Second)
	if err != nil || !ok || got.Status != jobs.JobRetrying {
		t.Fatalf("Dequeue = (%+v, %v, %v)", got, ok, err)
	}
}
