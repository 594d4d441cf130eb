// Package parallel provides the chunked goroutine fan-out used by the
// histogram, split search and gradient update loops.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize splits the half-open range [0, items) into one contiguous
// chunk per available CPU core and runs fn(start, end) for each chunk on
// its own goroutine, returning once every chunk is done.
//
// Chunk boundaries are deterministic for a given items and core count,
// but fn must not rely on the order in which chunks run.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	workers := runtime.NumCPU()
	if workers > items {
		workers = items
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		// Balanced bounds, chunk sizes differ by at most one.
		start := i * items / workers
		end := (i + 1) * items / workers
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) on the calling goroutine
// when items is at or below threshold, and fans out like Parallelize
// otherwise. Small nodes stay serial so goroutine overhead never
// dominates the work.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
