package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Interval is one time-series sample of aggregate send activity.
type Interval struct {
	// Timestamp is when this interval was cut
	Timestamp time.Time `json:"timestamp"`

	// Running totals at the end of the interval
	TotalPackets int64 `json:"totalPackets"`
	TotalBytes   int64 `json:"totalBytes"`
	TotalErrors  int64 `json:"totalErrors"`

	// Activity within this interval only
	Packets int64 `json:"packets"`
	Errors  int64 `json:"errors"`
	Bytes   int64 `json:"bytes"`

	// PPS is the send rate achieved during this interval
	PPS float64 `json:"pps"`

	// Mbps is the bandwidth achieved during this interval (megabits/second)
	Mbps float64 `json:"mbps"`

	// ActiveWorkers at the time the interval was cut
	ActiveWorkers int64 `json:"activeWorkers"`
}

// IntervalStore keeps time-series samples in a bounded ring buffer.
//
// Workers feed the current interval through lock-free atomic accumulators;
// the aggregator's background emitter cuts one Interval per tick. When the
// ring fills up the oldest samples are discarded, so memory stays bounded
// for unbounded runs.
type IntervalStore struct {
	intervals []*Interval
	head      int // next write position
	count     int
	max       int
	mu        sync.RWMutex

	lastCut time.Time

	// Current interval accumulators (lock-free updates)
	curPackets atomic.Int64
	curErrors  atomic.Int64
	curBytes   atomic.Int64
}

// NewIntervalStore creates a store retaining at most max samples.
// For an hour-long run sampled every second, use max=3600.
func NewIntervalStore(max int) *IntervalStore {
	if max <= 0 {
		max = 3600
	}
	return &IntervalStore{
		intervals: make([]*Interval, max),
		max:       max,
		lastCut:   time.Now(),
	}
}

// RecordSend adds one successful send to the current interval.
func (s *IntervalStore) RecordSend(bytes int64) {
	s.curPackets.Add(1)
	s.curBytes.Add(bytes)
}

// RecordError adds one failed send to the current interval.
func (s *IntervalStore) RecordError() {
	s.curErrors.Add(1)
}

// Cut closes the current interval and appends it to the ring.
//
// Called by the aggregator's background emitter on every tick. The running
// totals are supplied by the caller so the sample is self-describing.
func (s *IntervalStore) Cut(totalPackets, totalBytes, totalErrors, activeWorkers int64) *Interval {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	packets := s.curPackets.Swap(0)
	errors := s.curErrors.Swap(0)
	bytes := s.curBytes.Swap(0)

	elapsed := now.Sub(s.lastCut).Seconds()
	if elapsed <= 0 {
		elapsed = 1.0
	}

	iv := &Interval{
		Timestamp:     now,
		TotalPackets:  totalPackets,
		TotalBytes:    totalBytes,
		TotalErrors:   totalErrors,
		Packets:       packets,
		Errors:        errors,
		Bytes:         bytes,
		PPS:           float64(packets) / elapsed,
		Mbps:          float64(bytes) * 8 / elapsed / 1e6,
		ActiveWorkers: activeWorkers,
	}

	s.intervals[s.head] = iv
	s.head = (s.head + 1) % s.max
	if s.count < s.max {
		s.count++
	}
	s.lastCut = now

	return iv
}

// All returns every retained interval in chronological order.
func (s *IntervalStore) All() []*Interval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}

	result := make([]*Interval, s.count)
	if s.count < s.max {
		copy(result, s.intervals[:s.count])
	} else {
		for i := 0; i < s.count; i++ {
			result[i] = s.intervals[(s.head+i)%s.max]
		}
	}
	return result
}

// Latest returns the most recent interval, or nil if none was cut yet.
func (s *IntervalStore) Latest() *Interval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}
	return s.intervals[(s.head-1+s.max)%s.max]
}

// Reset discards all samples and accumulated activity.
func (s *IntervalStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intervals = make([]*Interval, s.max)
	s.head = 0
	s.count = 0
	s.lastCut = time.Now()
	s.curPackets.Store(0)
	s.curErrors.Store(0)
	s.curBytes.Store(0)
}
