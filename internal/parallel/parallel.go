// Package parallel provides the bounded parallel-for primitive used for the
// two embarrassingly-parallel subproblems of generation: the desired/loaded
// chunk diff and nearest-node distance scans. Work is dispatched to a fixed
// worker pool, each index writes only its own output slot, and ForEach does
// not return until every worker has joined.
package parallel

import "sync"

// DefaultWorkers bounds the pool size when the caller does not care.
const DefaultWorkers = 4

// ForEach runs fn(i) for every i in [0, n) across at most workers
// goroutines and blocks until all of them have finished. fn must not
// mutate shared state other than its own per-index slot; there is no
// cancellation once a phase is in flight.
func ForEach(n, workers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	indexChan := make(chan int, n)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexChan {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		indexChan <- i
	}
	close(indexChan)
	wg.Wait()
}

// Map runs fn over [0, n) with bounded workers and returns the per-index
// results. The output slice is the only shared state and each worker
// writes disjoint slots.
func Map[T any](n, workers int, fn func(i int) T) []T {
	out := make([]T, n)
	ForEach(n, workers, func(i int) {
		out[i] = fn(i)
	})
	return out
}
