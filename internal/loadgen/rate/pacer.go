// Package rate provides the per-worker pacing gate for load generation.
package rate

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Pacer schedules sends at a fixed target rate.
//
// Unlike an incremental "now + interval" scheme, Pacer computes each permitted
// timestamp from a fixed epoch: epoch + count*interval. A single slow wakeup
// therefore shifts one send, not every send after it, and the achieved rate
// over a long run converges to the target regardless of per-call jitter.
//
// When the caller has fallen more than one interval behind schedule, the epoch
// is re-anchored to the present instead of letting the backlog drain as a
// burst. Missed slots are forgiven, not replayed.
//
// A rate of 0 (or below) means unlimited: Next returns the current time and
// Wait never blocks.
//
// # Thread Safety
//
// Pacer is safe for concurrent use, though in practice each worker owns its
// own instance.
//
// # Example
//
//	p := rate.NewPacer(100.0) // 100 sends per second
//
//	for {
//	    if err := p.Wait(ctx); err != nil {
//	        return // cancelled
//	    }
//	    // send one unit of traffic
//	}
type Pacer struct {
	interval time.Duration // 0 means unlimited
	epoch    time.Time
	count    int64
	mu       sync.Mutex

	// Metrics
	totalPermits  atomic.Int64
	totalWaitTime atomic.Int64 // nanoseconds
}

// NewPacer creates a pacer targeting perSecond sends per second.
// A perSecond of 0 or less disables pacing entirely.
func NewPacer(perSecond float64) *Pacer {
	return &Pacer{
		interval: intervalFor(perSecond),
		epoch:    time.Now(),
	}
}

func intervalFor(perSecond float64) time.Duration {
	if perSecond <= 0 || math.IsNaN(perSecond) || math.IsInf(perSecond, 0) {
		return 0
	}
	return time.Duration(float64(time.Second) / perSecond)
}

// Next returns when the next send is permitted to start.
//
// The returned time may be in the past, meaning the send should execute
// immediately. Each call consumes one permit.
func (p *Pacer) Next() time.Time {
	now := time.Now()
	p.totalPermits.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval == 0 {
		return now
	}

	// The first permit is issued at the epoch itself, so a fresh pacer never
	// delays the first send.
	next := p.epoch.Add(time.Duration(p.count) * p.interval)
	p.count++

	if now.Sub(next) > p.interval {
		// More than one full interval behind schedule. Re-anchor the epoch so
		// the missed slots do not replay as a burst.
		p.epoch = now.Add(-time.Duration(p.count-1) * p.interval)
		next = now
	}

	return next
}

// Wait blocks until the next send is permitted, or until ctx is cancelled.
//
// Returns nil when the caller may proceed, ctx.Err() otherwise. When the
// pacer is unlimited, Wait returns immediately without consulting ctx.
func (p *Pacer) Wait(ctx context.Context) error {
	next := p.Next()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	p.totalWaitTime.Add(int64(wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Unlimited reports whether the pacer admits sends without blocking.
func (p *Pacer) Unlimited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval == 0
}

// Rate returns the current target rate in sends per second (0 = unlimited).
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interval == 0 {
		return 0
	}
	return float64(time.Second) / float64(p.interval)
}

// SetRate changes the target rate and restarts the schedule from now.
// Permits accumulated under the old rate do not carry over.
func (p *Pacer) SetRate(perSecond float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interval = intervalFor(perSecond)
	p.epoch = time.Now()
	p.count = 0
}

// Reset restarts the schedule from now and clears the permit metrics.
func (p *Pacer) Reset() {
	p.mu.Lock()
	p.epoch = time.Now()
	p.count = 0
	p.mu.Unlock()

	p.totalPermits.Store(0)
	p.totalWaitTime.Store(0)
}

// Stats returns counters describing the pacer's operation so far.
func (p *Pacer) Stats() PacerStats {
	return PacerStats{
		Rate:          p.Rate(),
		TotalPermits:  p.totalPermits.Load(),
		TotalWaitTime: time.Duration(p.totalWaitTime.Load()),
	}
}

// PacerStats contains statistics about a pacer.
type PacerStats struct {
	Rate          float64       `json:"rate"`          // Target rate in sends/second (0 = unlimited)
	TotalPermits  int64         `json:"totalPermits"`  // Permits issued
	TotalWaitTime time.Duration `json:"totalWaitTime"` // Cumulative time spent waiting
}
