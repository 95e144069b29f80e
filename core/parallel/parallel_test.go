package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversEveryItem(t *testing.T) {
	for _, items := range []int{0, 1, 7, 100, 1001} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, v := range seen {
			if v != 1 {
				t.Fatalf("items=%d: index %d visited %d times", items, i, v)
			}
		}
	}
}

func TestParallelizeWorkers(t *testing.T) {
	var calls int32
	ParallelizeWorkers(3, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
	})
	if calls != 3 {
		t.Errorf("expected 3 ranges, got %d", calls)
	}
}

func TestWorkers(t *testing.T) {
	if Workers(-1) != runtime.NumCPU() {
		t.Error("-1 should map to NumCPU")
	}
	if Workers(4) != 4 {
		t.Error("positive n_jobs should be kept")
	}
}

func TestParallelizeWithThreshold(t *testing.T) {
	var ranges int32
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		atomic.AddInt32(&ranges, 1)
		if start != 0 || end != 10 {
			t.Errorf("sequential range = [%d,%d)", start, end)
		}
	})
	if ranges != 1 {
		t.Errorf("expected one sequential call, got %d", ranges)
	}
}
