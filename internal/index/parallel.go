package index

import (
	"runtime"
	"sync"

	"github.com/gammazero/workerpool"
)

// forEachPixelStatic splits [0,cells) into one contiguous chunk per
// worker. Scalar kernels have uniform per-pixel cost, so a static
// partition keeps scheduling overhead at zero.
func forEachPixelStatic(workers, cells int, fn func(p int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > cells {
		workers = cells
	}
	if workers <= 1 {
		for p := 0; p < cells; p++ {
			fn(p)
		}
		return
	}

	chunk := (cells + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > cells {
			hi = cells
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for p := lo; p < hi; p++ {
				fn(p)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// forEachPixelDynamic schedules pixels one at a time onto a worker pool.
// The unmixing kernel's inner loop has wide runtime variance across
// pixels, so granularity-1 dynamic scheduling keeps the workers busy.
func forEachPixelDynamic(workers, cells int, fn func(p int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers <= 1 {
		for p := 0; p < cells; p++ {
			fn(p)
		}
		return
	}

	wp := workerpool.New(workers)
	for p := 0; p < cells; p++ {
		p := p
		wp.Submit(func() { fn(p) })
	}
	wp.StopWait()
}
