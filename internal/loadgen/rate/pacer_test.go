package rate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewPacer(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		wantRate  float64
	}{
		{"positive rate", 100.0, 100.0},
		{"zero rate means unlimited", 0.0, 0.0},
		{"negative rate means unlimited", -10.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPacer(tt.perSecond)
			got := p.Rate()
			if got < tt.wantRate-0.01 || got > tt.wantRate+0.01 {
				t.Errorf("Rate() = %v, want %v", got, tt.wantRate)
			}
		})
	}
}

func TestPacer_Next_ImmediateFirst(t *testing.T) {
	p := NewPacer(100.0)

	// First permit is issued at the epoch, so it should be immediate
	now := time.Now()
	next := p.Next()

	if next.Sub(now) > 10*time.Millisecond {
		t.Errorf("First Next() should be immediate, got delay of %v", next.Sub(now))
	}
}

func TestPacer_Next_CorrectSpacing(t *testing.T) {
	perSecond := 100.0 // 100 per second = 10ms apart
	p := NewPacer(perSecond)

	// Consume the first permit
	_ = p.Next()

	next := p.Next()
	expectedDelay := time.Duration(float64(time.Second) / perSecond)

	actualDelay := next.Sub(time.Now())

	// Allow 5ms tolerance
	if actualDelay < expectedDelay-5*time.Millisecond || actualDelay > expectedDelay+5*time.Millisecond {
		t.Errorf("Delay between permits = %v, want ~%v", actualDelay, expectedDelay)
	}
}

func TestPacer_Next_FixedSchedule(t *testing.T) {
	p := NewPacer(1000.0) // 1ms apart

	// Permits drawn back to back must land on consecutive schedule slots,
	// not drift apart by per-call overhead.
	first := p.Next()
	var last time.Time
	for i := 0; i < 10; i++ {
		last = p.Next()
	}

	got := last.Sub(first)
	want := 10 * time.Millisecond
	if got < want-2*time.Millisecond || got > want+2*time.Millisecond {
		t.Errorf("10 permits spanned %v, want ~%v", got, want)
	}
}

func TestPacer_Next_NoBurstAfterStall(t *testing.T) {
	p := NewPacer(100.0) // 10ms apart

	_ = p.Next()

	// Fall several intervals behind schedule
	time.Sleep(50 * time.Millisecond)

	// The first permit after the stall is immediate, but the missed slots
	// must not replay: the following permit is a full interval out.
	first := p.Next()
	if d := time.Until(first); d > time.Millisecond {
		t.Errorf("Permit after stall should be immediate, got delay %v", d)
	}

	second := p.Next()
	delay := second.Sub(first)
	if delay < 5*time.Millisecond {
		t.Errorf("Permit spacing after stall = %v, want ~10ms (no burst)", delay)
	}
}

func TestPacer_Wait_Unlimited(t *testing.T) {
	p := NewPacer(0)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v, want nil", err)
		}
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("1000 unlimited Wait() calls took %v, should never block", elapsed)
	}
}

func TestPacer_Wait_RespectsContext(t *testing.T) {
	p := NewPacer(1.0) // 1 per second = slow

	// Consume the first permit
	_ = p.Next()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)
	elapsed := time.Since(start)

	if err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}

	// Should have cancelled quickly, not waited the full second
	if elapsed > 100*time.Millisecond {
		t.Errorf("Wait() took %v, should have cancelled quickly", elapsed)
	}
}

func TestPacer_SetRate_NoAccumulation(t *testing.T) {
	p := NewPacer(1000.0)

	for i := 0; i < 5; i++ {
		_ = p.Next()
	}

	p.SetRate(1.0)

	// No burst: permits drawn under the old rate do not carry over, so the
	// second permit after the change is ~1s out.
	_ = p.Next()
	next := p.Next()
	delay := next.Sub(time.Now())

	if delay < 500*time.Millisecond {
		t.Errorf("After SetRate, delay = %v, should be ~1s (no burst)", delay)
	}
}

func TestPacer_SetRate_UpdatesCorrectly(t *testing.T) {
	p := NewPacer(100.0)

	if got := p.Rate(); got < 99.9 || got > 100.1 {
		t.Errorf("Initial rate = %v, want 100.0", got)
	}

	p.SetRate(200.0)
	if got := p.Rate(); got < 199.9 || got > 200.1 {
		t.Errorf("After SetRate(200), rate = %v, want 200.0", got)
	}

	p.SetRate(0)
	if !p.Unlimited() {
		t.Error("After SetRate(0), Unlimited() = false, want true")
	}
}

func TestPacer_ConcurrentAccess(t *testing.T) {
	p := NewPacer(10000.0) // High rate for a fast test

	var wg sync.WaitGroup
	numGoroutines := 10
	callsPerGoroutine := 100

	ctx := context.Background()

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				_ = p.Wait(ctx)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success
	case <-time.After(5 * time.Second):
		t.Fatal("Concurrent test timed out")
	}

	stats := p.Stats()
	expectedPermits := int64(numGoroutines * callsPerGoroutine)
	if stats.TotalPermits != expectedPermits {
		t.Errorf("TotalPermits = %d, want %d", stats.TotalPermits, expectedPermits)
	}
}

func TestPacer_Stats(t *testing.T) {
	p := NewPacer(100.0)

	stats := p.Stats()
	if stats.Rate != 100.0 {
		t.Errorf("Stats.Rate = %v, want 100.0", stats.Rate)
	}
	if stats.TotalPermits != 0 {
		t.Errorf("Stats.TotalPermits = %d, want 0", stats.TotalPermits)
	}

	for i := 0; i < 5; i++ {
		_ = p.Next()
	}

	stats = p.Stats()
	if stats.TotalPermits != 5 {
		t.Errorf("After 5 Next(), TotalPermits = %d, want 5", stats.TotalPermits)
	}
}

func TestPacer_Reset(t *testing.T) {
	p := NewPacer(100.0)

	for i := 0; i < 10; i++ {
		_ = p.Next()
	}

	if stats := p.Stats(); stats.TotalPermits != 10 {
		t.Errorf("Before reset, TotalPermits = %d, want 10", stats.TotalPermits)
	}

	p.Reset()

	if stats := p.Stats(); stats.TotalPermits != 0 {
		t.Errorf("After reset, TotalPermits = %d, want 0", stats.TotalPermits)
	}

	// Schedule restarts from now, so the next permit is immediate
	next := p.Next()
	if d := time.Until(next); d > time.Millisecond {
		t.Errorf("Permit after Reset should be immediate, got delay %v", d)
	}
}
