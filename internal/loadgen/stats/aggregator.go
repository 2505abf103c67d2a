// Package stats collects and aggregates traffic statistics across workers.
package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Aggregator is the single shared sink for worker-side counters.
//
// Key properties:
// - Lock-free atomic counters on the send path (no lost updates)
// - HDR histogram for send-latency percentiles (mutex-protected)
// - Continuous time-series emission via a background goroutine
// - Snapshot reads never block worker progress
//
// # Thread Safety
//
// Aggregator is safe for concurrent use. All counters are monotonically
// non-decreasing between resets. A Snapshot reads the counters independently,
// which is acceptable for display: the values are monotone and never feed
// correctness decisions.
type Aggregator struct {
	// Atomic counters for lock-free updates from workers
	packets       atomic.Uint64
	bytes         atomic.Uint64
	errors        atomic.Uint64
	activeWorkers atomic.Int64

	// Send-latency histogram
	// Range: 1 microsecond to 1 minute, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	// Time-series samples
	intervals *IntervalStore

	// Timing
	startTime time.Time
	startMu   sync.RWMutex

	// Snapshot-to-snapshot rate tracking (only the reporter reads snapshots)
	lastSnapTime    time.Time
	lastSnapPackets uint64
	snapMu          sync.Mutex

	// Background emitter
	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup

	config Config
}

// Config contains configuration for the aggregator.
type Config struct {
	// Interval is the time-series sampling interval (default: 1s)
	Interval time.Duration

	// MaxIntervals bounds the retained time series (default: 3600)
	MaxIntervals int

	// HistogramMin is the minimum recordable latency in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable latency in microseconds (default: 1 minute)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		Interval:         time.Second,
		MaxIntervals:     3600,
		HistogramMin:     1,
		HistogramMax:     60_000_000, // 1 minute in microseconds
		HistogramSigFigs: 3,
	}
}

// NewAggregator creates an aggregator with default configuration and starts
// its background interval emitter.
func NewAggregator() *Aggregator {
	return NewAggregatorWithConfig(DefaultConfig())
}

// NewAggregatorWithConfig creates an aggregator with custom configuration.
func NewAggregatorWithConfig(config Config) *Aggregator {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Aggregator{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		intervals:     NewIntervalStore(config.MaxIntervals),
		startTime:     time.Now(),
		lastSnapTime:  time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	a.emitterWg.Add(1)
	go a.runEmitter()

	return a
}

// RecordSend records one successful send of n bytes taking d.
func (a *Aggregator) RecordSend(n int, d time.Duration) {
	a.packets.Add(1)
	a.bytes.Add(uint64(n))
	a.intervals.RecordSend(int64(n))
	a.recordLatency(d)
}

// RecordError records one failed send attempt taking d.
// Failed sends never count toward packets or bytes.
func (a *Aggregator) RecordError(d time.Duration) {
	a.errors.Add(1)
	a.intervals.RecordError()
	a.recordLatency(d)
}

// recordLatency records a send latency, clamped to the histogram range.
// NOTE: HDR histogram RecordValue is NOT thread-safe, so we must hold a lock.
func (a *Aggregator) recordLatency(d time.Duration) {
	micros := d.Microseconds()
	if micros < a.config.HistogramMin {
		micros = a.config.HistogramMin
	}
	if micros > a.config.HistogramMax {
		micros = a.config.HistogramMax
	}

	a.latencyHistMu.Lock()
	a.latencyHist.RecordValue(micros)
	a.latencyHistMu.Unlock()
}

// WorkerStarted marks one worker as entering its run loop.
func (a *Aggregator) WorkerStarted() {
	a.activeWorkers.Add(1)
}

// WorkerExited marks one worker as having left its run loop.
// Every worker calls this exactly once, on every exit path.
func (a *Aggregator) WorkerExited() {
	a.activeWorkers.Add(-1)
}

// ActiveWorkers returns the number of workers currently in their run loop.
func (a *Aggregator) ActiveWorkers() int64 {
	return a.activeWorkers.Load()
}

// runEmitter cuts one time-series interval per tick until stopped.
func (a *Aggregator) runEmitter() {
	defer a.emitterWg.Done()

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.emitterCtx.Done():
			return
		case <-ticker.C:
			a.cutInterval()
		}
	}
}

func (a *Aggregator) cutInterval() {
	a.intervals.Cut(
		int64(a.packets.Load()),
		int64(a.bytes.Load()),
		int64(a.errors.Load()),
		a.activeWorkers.Load(),
	)
}

// Snapshot returns a point-in-time view of all counters plus derived rates.
//
// The interval rate fields (PPS, Mbps) are computed against the previous
// Snapshot call; the overall fields against the run start. Reading a snapshot
// never blocks the send path.
func (a *Aggregator) Snapshot() Snapshot {
	now := time.Now()

	packets := a.packets.Load()
	bytes := a.bytes.Load()
	errors := a.errors.Load()
	active := a.activeWorkers.Load()

	a.startMu.RLock()
	start := a.startTime
	a.startMu.RUnlock()
	elapsed := now.Sub(start)

	// Overall averages
	var overallPPS, overallMbps float64
	if secs := elapsed.Seconds(); secs > 0 {
		overallPPS = float64(packets) / secs
		overallMbps = float64(bytes) * 8 / secs / 1e6
	}

	// Interval rates since the previous snapshot
	a.snapMu.Lock()
	intervalSecs := now.Sub(a.lastSnapTime).Seconds()
	deltaPackets := packets - a.lastSnapPackets
	a.lastSnapTime = now
	a.lastSnapPackets = packets
	a.snapMu.Unlock()

	intervalPPS := overallPPS
	if intervalSecs > 0 {
		intervalPPS = float64(deltaPackets) / intervalSecs
	}

	return Snapshot{
		Packets:       packets,
		Bytes:         bytes,
		Errors:        errors,
		ActiveWorkers: active,
		SuccessRate:   successRate(packets, errors),
		PPS:           overallPPS,
		IntervalPPS:   intervalPPS,
		Mbps:          overallMbps,
		Latency:       a.LatencyStats(),
		Elapsed:       elapsed,
		StartTime:     start,
		Timestamp:     now,
	}
}

// successRate applies the divide-by-zero rules: 100% when nothing was
// attempted, 0% when only errors occurred.
func successRate(packets, errors uint64) float64 {
	if packets == 0 && errors == 0 {
		return 100.0
	}
	return float64(packets) / float64(packets+errors) * 100.0
}

// LatencyStats returns current send-latency statistics.
func (a *Aggregator) LatencyStats() LatencyStats {
	a.latencyHistMu.Lock()
	defer a.latencyHistMu.Unlock()

	if a.latencyHist.TotalCount() == 0 {
		return LatencyStats{}
	}

	return LatencyStats{
		Min:   time.Duration(a.latencyHist.Min()) * time.Microsecond,
		Max:   time.Duration(a.latencyHist.Max()) * time.Microsecond,
		Mean:  time.Duration(a.latencyHist.Mean()) * time.Microsecond,
		P50:   time.Duration(a.latencyHist.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(a.latencyHist.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(a.latencyHist.ValueAtQuantile(99)) * time.Microsecond,
		Count: a.latencyHist.TotalCount(),
	}
}

// TimeSeries returns all retained interval samples in chronological order.
func (a *Aggregator) TimeSeries() []*Interval {
	return a.intervals.All()
}

// Stop stops the background emitter and cuts a final interval.
func (a *Aggregator) Stop() {
	a.emitterCancel()
	a.emitterWg.Wait()
	a.cutInterval()
}

// Reset restores the zero state and restarts the clock.
func (a *Aggregator) Reset() {
	a.packets.Store(0)
	a.bytes.Store(0)
	a.errors.Store(0)
	a.activeWorkers.Store(0)

	a.latencyHistMu.Lock()
	a.latencyHist.Reset()
	a.latencyHistMu.Unlock()

	a.intervals.Reset()

	now := time.Now()
	a.startMu.Lock()
	a.startTime = now
	a.startMu.Unlock()

	a.snapMu.Lock()
	a.lastSnapTime = now
	a.lastSnapPackets = 0
	a.snapMu.Unlock()
}

// Snapshot contains a point-in-time view of all counters.
type Snapshot struct {
	Packets       uint64        `json:"packets"`
	Bytes         uint64        `json:"bytes"`
	Errors        uint64        `json:"errors"`
	ActiveWorkers int64         `json:"activeWorkers"`
	SuccessRate   float64       `json:"successRate"` // percentage, 0-100
	PPS           float64       `json:"pps"`         // average over the whole run
	IntervalPPS   float64       `json:"intervalPps"` // since the previous snapshot
	Mbps          float64       `json:"mbps"`        // megabits/second over the whole run
	Latency       LatencyStats  `json:"latency"`
	Elapsed       time.Duration `json:"elapsed"`
	StartTime     time.Time     `json:"startTime"`
	Timestamp     time.Time     `json:"timestamp"`
}

// LatencyStats contains send-latency statistics.
type LatencyStats struct {
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Count int64         `json:"count"`
}
