package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestProcessKeepsInputOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	results := Process(context.Background(), items, 3, func(_ context.Context, n int) error {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return nil
	})
	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if r.Item != items[i] || r.Index != i {
			t.Fatalf("result %d out of order: %+v", i, r)
		}
	}
	if err := Errors(results); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProcessBoundsConcurrency(t *testing.T) {
	var running, peak int32
	items := make([]int, 20)
	Process(context.Background(), items, 4, func(context.Context, int) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})
	if peak > 4 {
		t.Fatalf("expected at most 4 concurrent workers, saw %d", peak)
	}
}

func TestProcessCollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	results := Process(context.Background(), []string{"a", "b", "c"}, 2, func(_ context.Context, s string) error {
		if s == "b" {
			return boom
		}
		return nil
	})
	err := Errors(results)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined boom, got %v", err)
	}
	if results[1].Err == nil || results[0].Err != nil {
		t.Fatalf("error attached to wrong item: %+v", results)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	results := Process(ctx, []int{1, 2, 3}, 2, func(context.Context, int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if calls != 0 {
		t.Fatalf("no job should run after cancel, ran %d", calls)
	}
	if !errors.Is(Errors(results), context.Canceled) {
		t.Fatalf("expected context.Canceled")
	}
}

func TestProcessEmpty(t *testing.T) {
	if got := Process(context.Background(), []int{}, 3, nil); len(got) != 0 {
		t.Fatalf("expected no results")
	}
}
