package sim

// Dispatcher runs data-parallel work in fork-join passes. Dispatch may return
// before fn has finished; Barrier blocks until every dispatched chunk has
// returned. Chunks of one Dispatch call never overlap.
type Dispatcher interface {
	Dispatch(n int, fn func(start, end int))
	Barrier()
	Close()
}

// SerialDispatcher runs every pass inline on the calling goroutine.
type SerialDispatcher struct{}

// Dispatch runs fn over [0, n) immediately.
func (SerialDispatcher) Dispatch(n int, fn func(start, end int)) {
	if n > 0 {
		fn(0, n)
	}
}

// Barrier is a no-op; work is already complete.
func (SerialDispatcher) Barrier() {}

// Close is a no-op.
func (SerialDispatcher) Close() {}

// Workers reports the single calling goroutine.
func (SerialDispatcher) Workers() int { return 1 }
