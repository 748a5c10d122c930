// Package workers provides the fixed-size goroutine pool used for the
// per-element loops of the resampling engine.
package workers

import (
	"runtime"
	"sync"
)

// chunkSize is the number of consecutive indices handed to a worker at once
const chunkSize = 64

// Pool runs index-based loops on a fixed number of goroutines.
type Pool struct {
	size int
}

// New creates a pool with the given number of workers. A non-positive size
// uses all available CPUs.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	if p == nil {
		return 1
	}
	return p.size
}

// ForEach calls fn once for every index in [0, n). Calls run concurrently, so
// fn must only write to state owned by its index.
func (p *Pool) ForEach(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := p.Size()
	numChunks := (n + chunkSize - 1) / chunkSize
	if workers > numChunks {
		workers = numChunks
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	order := make(chan int, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for start := range order {
				end := start + chunkSize
				if end > n {
					end = n
				}
				for i := start; i < end; i++ {
					fn(i)
				}
			}
		}()
	}

	for start := 0; start < n; start += chunkSize {
		order <- start
	}
	close(order)
	wg.Wait()
}
