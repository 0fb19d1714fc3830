package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elonfeng/handlescore/internal/refresh"
)

type countingRefresher struct {
	calls atomic.Int32
	limit atomic.Int32
}

func (c *countingRefresher) RefreshAll(_ context.Context, force bool, limit int) ([]refresh.Outcome, error) {
	c.calls.Add(1)
	c.limit.Store(int32(limit))
	return []refresh.Outcome{{Score: 50}, {Skipped: true}}, nil
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	if _, err := New(&countingRefresher{}, "every tuesday", time.UTC, 2, nil); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRunRefreshesOnStart(t *testing.T) {
	t.Parallel()

	r := &countingRefresher{}
	s, err := New(r, "", time.UTC, 0, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for r.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial refresh did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if r.limit.Load() != 4 {
		t.Fatalf("expected default limit 4, got %d", r.limit.Load())
	}
}
