package worker

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{5, 3, 9, 1, 7, 2, 8}
	got, ok := Map(context.Background(), 3, items, func(_ context.Context, v int) int {
		return v * 10
	})

	for i, v := range items {
		if !ok[i] {
			t.Errorf("item %d not processed", i)
		}
		if got[i] != v*10 {
			t.Errorf("result[%d] = %d, want %d", i, got[i], v*10)
		}
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var active, peak int32
	items := make([]int, 50)

	Map(context.Background(), 4, items, func(_ context.Context, _ int) struct{} {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
		return struct{}{}
	})

	if peak > 4 {
		t.Errorf("peak concurrency %d exceeds limit 4", peak)
	}
}

func TestMap_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := Map(ctx, 2, []int{1, 2, 3}, func(_ context.Context, v int) int { return v })
	for i, done := range ok {
		if done {
			t.Logf("item %d raced cancellation", i)
		}
	}
}

func TestMap_Empty(t *testing.T) {
	got, ok := Map(context.Background(), 2, []string{}, func(_ context.Context, s string) string { return s })
	if len(got) != 0 || len(ok) != 0 {
		t.Error("expected empty results")
	}
}
