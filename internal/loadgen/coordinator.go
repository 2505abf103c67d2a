package loadgen

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huydz1817/surge/internal/config"
	"github.com/huydz1817/surge/internal/loadgen/emitter"
	"github.com/huydz1817/surge/internal/loadgen/rate"
	"github.com/huydz1817/surge/internal/loadgen/stats"
)

// State represents the coordinator's run state.
type State int32

const (
	// StateIdle means Run has not been called.
	StateIdle State = iota
	// StateStarting means workers are being constructed and spawned.
	StateStarting
	// StateRunning means workers are sending and live stats are flowing.
	StateRunning
	// StateStopping means cancellation has been signalled and workers are draining.
	StateStopping
	// StateDone means the final report has been produced.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Sink receives live snapshots and the final report as structured data.
// Formatting for display is the sink's business, not the coordinator's.
type Sink interface {
	// Live is called once per report interval while the run is active.
	Live(stats.Snapshot)

	// Final is called once with the completed report.
	Final(*Report)
}

// NopSink discards everything. Useful for embedding and tests.
type NopSink struct{}

func (NopSink) Live(stats.Snapshot) {}
func (NopSink) Final(*Report)       {}

// Report is the result of one completed run.
type Report struct {
	// Name of the run, from the config
	Name string `json:"name"`

	// Target the traffic was sent toward (host:port form)
	Target string `json:"target"`

	// Final counters with elapsed covering the whole run
	Stats stats.Snapshot `json:"stats"`

	// PerType breaks packets and errors down by traffic type
	PerType map[string]TypeStats `json:"perType"`

	// TimeSeries holds the per-interval samples collected during the run
	TimeSeries []*stats.Interval `json:"timeSeries,omitempty"`

	// FatalExits lists workers that terminated early on a fatal send error
	FatalExits []WorkerExit `json:"fatalExits,omitempty"`

	// SkippedTypes lists traffic types that could not be constructed at all
	SkippedTypes []TypeFailure `json:"skippedTypes,omitempty"`

	// Stragglers counts workers still running when the grace period expired
	Stragglers int `json:"stragglers"`

	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
}

// TypeStats is the per-traffic-type share of the totals.
type TypeStats struct {
	Workers int   `json:"workers"`
	Packets int64 `json:"packets"`
	Errors  int64 `json:"errors"`
}

// WorkerExit records a worker that left its loop early on a fatal error.
type WorkerExit struct {
	WorkerID int          `json:"workerId"`
	Type     emitter.Type `json:"type"`
	Err      string       `json:"error"`
}

// TypeFailure records a traffic type no worker could be built for.
type TypeFailure struct {
	Type emitter.Type `json:"type"`
	Err  string       `json:"error"`
}

// Coordinator owns a run end to end: it spawns one worker per configured
// (type, concurrency) slot, drives the live reporting cadence, applies
// duration and cancellation, and joins everything into a Report.
//
// A Coordinator runs exactly once.
type Coordinator struct {
	cfg  *config.TestConfig
	sink Sink

	stats   *stats.Aggregator
	workers []*Worker

	state atomic.Int32

	fatalMu    sync.Mutex
	fatalExits []WorkerExit

	// newEmitter builds one emitter per worker; tests substitute stubs here.
	newEmitter func(emitter.Type, emitter.Config) (emitter.Emitter, error)
}

// New creates a coordinator for a validated config.
//
// Validation failures are returned before anything is spawned; a partial run
// never starts.
func New(cfg *config.TestConfig, sink Sink) (*Coordinator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NopSink{}
	}

	return &Coordinator{
		cfg:        cfg,
		sink:       sink,
		newEmitter: emitter.New,
	}, nil
}

// State returns the coordinator's current run state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Stats returns the shared aggregator, or nil before Run.
func (c *Coordinator) Stats() *stats.Aggregator {
	return c.stats
}

// emitterConfig translates the run config into the emitter package's terms.
func (c *Coordinator) emitterConfig() emitter.Config {
	ec := emitter.Config{
		Host:        c.cfg.Target,
		Port:        c.cfg.Port,
		PayloadSize: c.cfg.PacketSize,
		Timeout:     c.cfg.Timeout.GetDuration(config.DefaultTimeout),
		HTTPPath:    c.cfg.HTTPPath,
	}
	if c.cfg.HTTPExpect != nil {
		ec.HTTPExpectPath = c.cfg.HTTPExpect.Path
		ec.HTTPExpectValue = c.cfg.HTTPExpect.Equals
	}
	return ec
}

// buildWorkers constructs one worker per (type, slot).
//
// A type whose emitters cannot be built at all is skipped and reported; the
// remaining types still run. Only a total inability to build any worker is an
// error.
func (c *Coordinator) buildWorkers() ([]*Worker, []TypeFailure, error) {
	ec := c.emitterConfig()

	var workers []*Worker
	var skipped []TypeFailure
	id := 0

	for _, typeName := range c.cfg.Types {
		typ := emitter.Type(typeName)

		built := make([]*Worker, 0, c.cfg.Workers)
		var typeErr error
		for i := 0; i < c.cfg.Workers; i++ {
			em, err := c.newEmitter(typ, ec)
			if err != nil {
				typeErr = err
				break
			}
			built = append(built, NewWorker(id, typ, em, rate.NewPacer(c.cfg.Rate), c.stats))
			id++
		}

		if typeErr != nil {
			// Unwind the partial set so no type runs understrength.
			for _, w := range built {
				w.Close()
			}
			skipped = append(skipped, TypeFailure{Type: typ, Err: typeErr.Error()})
			continue
		}

		workers = append(workers, built...)
	}

	if len(workers) == 0 {
		return nil, skipped, fmt.Errorf("no workers could be started: %s", describeFailures(skipped))
	}
	return workers, skipped, nil
}

func describeFailures(skipped []TypeFailure) string {
	if len(skipped) == 0 {
		return "no traffic types configured"
	}
	s := ""
	for i, f := range skipped {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%s: %s", f.Type, f.Err)
	}
	return s
}

// Run executes the configured test and blocks until completion.
//
// The run ends when the configured duration elapses, when ctx is cancelled,
// or when every worker has exited on its own. Workers that ignore
// cancellation past the grace period are counted as stragglers in the report,
// never waited on forever.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		return nil, fmt.Errorf("coordinator has already run (state: %s)", c.State())
	}

	interval := c.cfg.ReportInterval.GetDuration(config.DefaultReportInterval)

	aggCfg := stats.DefaultConfig()
	aggCfg.Interval = interval
	c.stats = stats.NewAggregatorWithConfig(aggCfg)

	workers, skipped, err := c.buildWorkers()
	if err != nil {
		c.stats.Stop()
		c.state.Store(int32(StateDone))
		return nil, err
	}
	c.workers = workers

	// Duration bounds the run; 0 means until cancelled.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if d := c.cfg.Duration.GetDuration(0); d > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(ctx, d)
		defer tcancel()
	}

	startTime := time.Now()
	c.stats.Reset()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if err := w.Run(runCtx); err != nil {
				c.recordFatal(w, err)
			}
		}(w)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	c.state.Store(int32(StateRunning))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

live:
	for {
		select {
		case <-runCtx.Done():
			break live
		case <-allDone:
			// Every worker exited on its own (all fatal, typically).
			break live
		case <-ticker.C:
			c.sink.Live(c.stats.Snapshot())
		}
	}

	c.state.Store(int32(StateStopping))
	cancel()

	stragglers := 0
	grace := c.cfg.GracePeriod.GetDuration(config.DefaultGracePeriod)
	select {
	case <-allDone:
	case <-time.After(grace):
		for _, w := range c.workers {
			if w.State() != WorkerStopped {
				stragglers++
			}
		}
	}

	for _, w := range c.workers {
		w.Close()
	}

	// Stop the background emitter before the terminal snapshot so the final
	// interval is cut.
	c.stats.Stop()

	endTime := time.Now()
	report := &Report{
		Name:         c.cfg.Name,
		Target:       fmt.Sprintf("%s:%d", c.cfg.Target, c.cfg.Port),
		Stats:        c.stats.Snapshot(),
		PerType:      c.perTypeStats(),
		TimeSeries:   c.stats.TimeSeries(),
		FatalExits:   c.fatalRecords(),
		SkippedTypes: skipped,
		Stragglers:   stragglers,
		StartTime:    startTime,
		EndTime:      endTime,
		Duration:     endTime.Sub(startTime),
	}

	c.state.Store(int32(StateDone))
	c.sink.Final(report)

	return report, nil
}

func (c *Coordinator) recordFatal(w *Worker, err error) {
	c.fatalMu.Lock()
	defer c.fatalMu.Unlock()
	c.fatalExits = append(c.fatalExits, WorkerExit{
		WorkerID: w.ID,
		Type:     w.TrafficType,
		Err:      err.Error(),
	})
}

func (c *Coordinator) fatalRecords() []WorkerExit {
	c.fatalMu.Lock()
	defer c.fatalMu.Unlock()
	out := make([]WorkerExit, len(c.fatalExits))
	copy(out, c.fatalExits)
	return out
}

func (c *Coordinator) perTypeStats() map[string]TypeStats {
	out := make(map[string]TypeStats)
	for _, w := range c.workers {
		ts := out[string(w.TrafficType)]
		ts.Workers++
		ts.Packets += w.Sends()
		ts.Errors += w.Failures()
		out[string(w.TrafficType)] = ts
	}
	return out
}
