package cubit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestForEachBlockVisitsAll(t *testing.T) {
	for _, tc := range []struct{ n, workers int }{
		{1, 1}, {10, 3}, {1000, 8}, {5, 50}, {7, 0},
	} {
		seen := make([]int32, tc.n)
		err := forEachBlock(context.Background(), tc.n, tc.workers, func(i int) error {
			atomic.AddInt32(&seen[i], 1)
			return nil
		})
		if err != nil {
			t.Fatalf("n=%d workers=%d: %v", tc.n, tc.workers, err)
		}
		for i, c := range seen {
			if c != 1 {
				t.Errorf("n=%d workers=%d: index %d visited %d times", tc.n, tc.workers, i, c)
			}
		}
	}
}

func TestForEachBlockError(t *testing.T) {
	errBoom := errors.New("boom")
	err := forEachBlock(context.Background(), 100, 4, func(i int) error {
		if i == 42 {
			return errBoom
		}
		return nil
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom, got %v", err)
	}
}

func TestForEachBlockCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := forEachBlock(ctx, 1000, 4, func(int) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("fn called %d times after cancellation", calls.Load())
	}

	if err := forEachBlock(ctx, 0, 4, func(int) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("empty range: expected context.Canceled, got %v", err)
	}
}
