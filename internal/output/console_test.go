package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/huydz1817/surge/internal/loadgen"
	"github.com/huydz1817/surge/internal/loadgen/stats"
)

func testSnapshot() stats.Snapshot {
	return stats.Snapshot{
		Packets:       1500,
		Bytes:         1536000,
		Errors:        3,
		ActiveWorkers: 10,
		SuccessRate:   99.8,
		PPS:           500.0,
		IntervalPPS:   512.5,
		Mbps:          4.1,
		Elapsed:       3 * time.Second,
	}
}

func testReport() *loadgen.Report {
	return &loadgen.Report{
		Name:   "console test",
		Target: "192.168.1.50:8080",
		Stats: stats.Snapshot{
			Packets:     10000,
			Bytes:       10240000,
			Errors:      12,
			SuccessRate: 99.9,
			PPS:         1000.0,
			Mbps:        8.19,
			Latency: stats.LatencyStats{
				Min:   100 * time.Microsecond,
				Mean:  250 * time.Microsecond,
				P95:   800 * time.Microsecond,
				P99:   2 * time.Millisecond,
				Count: 10000,
			},
		},
		PerType: map[string]loadgen.TypeStats{
			"udp":  {Workers: 5, Packets: 7000, Errors: 2},
			"http": {Workers: 5, Packets: 3000, Errors: 10},
		},
		Duration: 10 * time.Second,
	}
}

func TestConsole_PrintHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	c.PrintHeader("my run", "10.0.0.1:80", []string{"udp", "http"}, 10, 30*time.Second)

	out := buf.String()
	for _, want := range []string{"my run", "10.0.0.1:80", "udp, http", "10 per type", "30s"} {
		if !strings.Contains(out, want) {
			t.Errorf("Header missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_PrintHeader_NoDuration(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	c.PrintHeader("my run", "10.0.0.1:80", []string{"udp"}, 1, 0)

	if !strings.Contains(buf.String(), "until interrupted") {
		t.Errorf("Header for unbounded run should say so:\n%s", buf.String())
	}
}

func TestConsole_Live_Piped(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	c.Live(testSnapshot())
	c.Live(testSnapshot())

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Piped output has %d lines, want 2 (one per snapshot):\n%s", len(lines), out)
	}

	for _, want := range []string{"[   3.0s]", "packets: 1500", "512.5 pps", "4.10 Mbps", "errors: 3", "workers: 10"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("Live line missing %q: %s", want, lines[0])
		}
	}
	if strings.Contains(out, "\r") {
		t.Error("Piped output should not carry carriage returns")
	}
}

func TestConsole_Live_TTY(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, ForceTTY: true})

	c.Live(testSnapshot())
	c.Live(testSnapshot())

	out := buf.String()
	if strings.Count(out, "\r") != 2 {
		t.Errorf("TTY output should rewrite the line in place:\n%q", out)
	}
	if strings.Contains(out, "\n") {
		t.Errorf("TTY live lines should not advance:\n%q", out)
	}
}

func TestConsole_Live_Quiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})

	c.Live(testSnapshot())

	if buf.Len() != 0 {
		t.Errorf("Quiet sink wrote live output: %q", buf.String())
	}
}

func TestConsole_Final(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	c.Final(testReport())

	out := buf.String()
	for _, want := range []string{
		"Final statistics: console test",
		"192.168.1.50:8080",
		"Packets:       10000",
		"9.77 MB",
		"1000.0 pps",
		"8.19 Mbps",
		"Errors:        12",
		"99.9%",
		"Send latency",
		"udp:",
		"http:",
		"7000 packets",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Final report missing %q:\n%s", want, out)
		}
	}

	// Piped output carries no ANSI escapes
	if strings.Contains(out, "\033[") {
		t.Error("Non-TTY report should not contain ANSI escapes")
	}
}

func TestConsole_Final_Failures(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	r := testReport()
	r.SkippedTypes = []loadgen.TypeFailure{{Type: "ping", Err: "permission denied"}}
	r.FatalExits = []loadgen.WorkerExit{{WorkerID: 3, Type: "udp", Err: "socket gone"}}
	r.Stragglers = 2

	c.Final(r)

	out := buf.String()
	for _, want := range []string{
		"skipped ping: permission denied",
		"worker 3 (udp) exited: socket gone",
		"2 worker(s) did not stop within the grace period",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Final report missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_Final_SingleTypeOmitsBreakdown(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	r := testReport()
	r.PerType = map[string]loadgen.TypeStats{"udp": {Workers: 5, Packets: 10000}}

	c.Final(r)

	if strings.Contains(buf.String(), "udp:") {
		t.Error("Single-type report should skip the per-type breakdown")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{1073741824, "1.00 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
