// Package loadgen provides the worker loop and run coordination for the
// traffic-generation harness.
package loadgen

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huydz1817/surge/internal/loadgen/emitter"
	"github.com/huydz1817/surge/internal/loadgen/rate"
	"github.com/huydz1817/surge/internal/loadgen/stats"
)

// WorkerState represents the lifecycle state of a worker.
type WorkerState int32

const (
	// WorkerIdle indicates the worker has been created but not started.
	WorkerIdle WorkerState = iota
	// WorkerRunning indicates the worker is in its send loop.
	WorkerRunning
	// WorkerStopping indicates the worker has been asked to stop.
	WorkerStopping
	// WorkerStopped indicates the worker has fully exited.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerStopping:
		return "stopping"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker is one parallel execution unit of the send loop.
//
// Each worker owns its emitter and its pacer; the stats aggregator is the
// only shared resource, and every access to it is atomic. A worker never
// holds a lock across a Send call.
type Worker struct {
	// ID is unique across all workers of a run
	ID int

	// TrafficType is the emitter variant this worker drives
	TrafficType emitter.Type

	emitter emitter.Emitter
	pacer   *rate.Pacer
	stats   *stats.Aggregator

	// Lifecycle state (atomic for lock-free reads)
	state atomic.Int32

	// Stop coordination
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	// Per-worker tallies, used for the per-type report breakdown
	sends    atomic.Int64
	failures atomic.Int64
}

// NewWorker creates a worker pairing an emitter with a pacer.
func NewWorker(id int, typ emitter.Type, em emitter.Emitter, pacer *rate.Pacer, agg *stats.Aggregator) *Worker {
	return &Worker{
		ID:          id,
		TrafficType: typ,
		emitter:     em,
		pacer:       pacer,
		stats:       agg,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// State returns the current worker state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Sends returns the number of successful sends so far.
func (w *Worker) Sends() int64 {
	return w.sends.Load()
}

// Failures returns the number of failed send attempts so far.
func (w *Worker) Failures() int64 {
	return w.failures.Load()
}

// Run executes the send loop until cancellation, stop request, or a fatal
// emitter error.
//
// Transient send failures are counted and absorbed; the loop continues at
// full rate. A fatal failure exits early and is returned to the caller.
// The active-worker gauge is decremented exactly once on every exit path.
func (w *Worker) Run(ctx context.Context) error {
	w.state.Store(int32(WorkerRunning))
	w.stats.WorkerStarted()
	defer w.stats.WorkerExited()
	defer w.markStopped()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		default:
		}

		// Wait for a rate permit. A cancellation that lands mid-wait exits
		// the loop instead of blocking past shutdown.
		if err := w.pacer.Wait(ctx); err != nil {
			return nil
		}

		start := time.Now()
		n, err := w.emitter.Send(ctx)
		elapsed := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				// Cancellation surfaced through the emitter; not an error.
				return nil
			}

			w.failures.Add(1)
			w.stats.RecordError(elapsed)

			if emitter.IsFatal(err) {
				return err
			}
			continue
		}

		w.sends.Add(1)
		w.stats.RecordSend(n, elapsed)
	}
}

// RequestStop asks the worker to exit after its current send.
func (w *Worker) RequestStop() {
	if w.State() == WorkerStopped {
		return
	}
	w.stopOnce.Do(func() {
		w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerStopping))
		close(w.stopCh)
	})
}

// WaitForStop waits for the worker to exit, up to timeout.
//
// Returns true if the worker stopped in time.
func (w *Worker) WaitForStop(timeout time.Duration) bool {
	select {
	case <-w.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// markStopped transitions to the terminal state. Runs on every Run exit path.
func (w *Worker) markStopped() {
	w.state.Store(int32(WorkerStopped))
	select {
	case <-w.doneCh:
	default:
		close(w.doneCh)
	}
}

// Close releases the worker's emitter.
func (w *Worker) Close() error {
	return w.emitter.Close()
}
