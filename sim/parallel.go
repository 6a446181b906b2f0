package sim

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum item count to use the worker pool.
// Below this, running inline is faster than the channel handoff.
const parallelThreshold = 64

// workChunk is a range of items for a worker to process.
type workChunk struct {
	start, end int
	fn         func(start, end int)
}

// WorkerPool is a Dispatcher backed by persistent worker goroutines.
// Workers are started lazily on the first parallel dispatch and live until
// Close. Dispatch and Barrier must be called from a single goroutine.
type WorkerPool struct {
	numWorkers int

	workChan chan workChunk // sends work to workers
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	pending  sync.WaitGroup // tracks dispatched chunks
	running  bool
}

// NewWorkerPool creates a pool with the given number of workers.
// workers <= 0 uses runtime.GOMAXPROCS(0).
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool{numWorkers: workers}
}

// Workers returns the pool size.
func (p *WorkerPool) Workers() int {
	return p.numWorkers
}

// startWorkers launches the worker goroutines.
func (p *WorkerPool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker processes chunks until stopped.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk := <-p.workChan:
			chunk.fn(chunk.start, chunk.end)
			p.pending.Done()
		}
	}
}

// Dispatch splits [0, n) into one chunk per worker and hands them out.
// Small workloads run inline.
func (p *WorkerPool) Dispatch(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		fn(0, n)
		return
	}

	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		p.pending.Add(1)
		p.workChan <- workChunk{start: start, end: end, fn: fn}
	}
}

// Barrier waits for every chunk dispatched so far.
func (p *WorkerPool) Barrier() {
	p.pending.Wait()
}

// Close drains outstanding work and stops the workers. The pool restarts
// if Dispatch is called again.
func (p *WorkerPool) Close() {
	if !p.running {
		return
	}

	p.pending.Wait()
	close(p.stopChan)
	p.wg.Wait()
	p.running = false
}
