// Package output renders live statistics and final reports for the terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/huydz1817/surge/internal/loadgen"
	"github.com/huydz1817/surge/internal/loadgen/stats"
)

// Console renders snapshots as a single in-place live line on a TTY, or as
// plain appended lines when piped. It implements loadgen.Sink.
type Console struct {
	writer    io.Writer
	isTTY     bool
	quiet     bool
	useColors bool

	wroteLive bool
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	// Writer defaults to os.Stdout
	Writer io.Writer

	// Quiet suppresses live lines; the final report still prints
	Quiet bool

	// ForceTTY treats the writer as a terminal (for tests)
	ForceTTY bool

	// ForceColors enables color even when the writer is not a terminal
	ForceColors bool
}

// NewConsole creates a console sink.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	tty := cfg.ForceTTY || isTerminal(cfg.Writer)

	return &Console{
		writer:    cfg.Writer,
		isTTY:     tty,
		quiet:     cfg.Quiet,
		useColors: cfg.ForceColors || tty,
	}
}

// isTerminal reports whether w is attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsTTY reports whether output goes to a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run banner before traffic starts.
func (c *Console) PrintHeader(name, target string, types []string, workers int, duration time.Duration) {
	bold := c.style(color.Bold)

	fmt.Fprintf(c.writer, "%s\n", bold.Sprint(name))
	fmt.Fprintf(c.writer, "  Target:   %s\n", target)
	fmt.Fprintf(c.writer, "  Types:    %s\n", strings.Join(types, ", "))
	fmt.Fprintf(c.writer, "  Workers:  %d per type\n", workers)
	if duration > 0 {
		fmt.Fprintf(c.writer, "  Duration: %s\n", duration)
	} else {
		fmt.Fprintf(c.writer, "  Duration: until interrupted (Ctrl+C)\n")
	}
	fmt.Fprintln(c.writer)
}

// Live renders one snapshot. On a TTY the line overwrites itself.
func (c *Console) Live(s stats.Snapshot) {
	if c.quiet {
		return
	}

	line := fmt.Sprintf("[%6.1fs] packets: %d | rate: %.1f pps | bandwidth: %.2f Mbps | errors: %d | workers: %d",
		s.Elapsed.Seconds(), s.Packets, s.IntervalPPS, s.Mbps, s.Errors, s.ActiveWorkers)

	if c.isTTY {
		fmt.Fprintf(c.writer, "\r\033[K%s", line)
		c.wroteLive = true
	} else {
		fmt.Fprintln(c.writer, line)
	}
}

// Final renders the completed report.
func (c *Console) Final(r *loadgen.Report) {
	if c.wroteLive {
		fmt.Fprintln(c.writer)
	}

	bold := c.style(color.Bold)
	green := c.style(color.FgGreen, color.Bold)
	red := c.style(color.FgRed, color.Bold)
	yellow := c.style(color.FgYellow)

	rule := strings.Repeat("=", 60)
	s := r.Stats

	fmt.Fprintln(c.writer)
	fmt.Fprintln(c.writer, rule)
	fmt.Fprintf(c.writer, " %s\n", bold.Sprintf("Final statistics: %s", r.Name))
	fmt.Fprintln(c.writer, rule)
	fmt.Fprintf(c.writer, "  Target:        %s\n", r.Target)
	fmt.Fprintf(c.writer, "  Duration:      %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(c.writer, "  Packets:       %d\n", s.Packets)
	fmt.Fprintf(c.writer, "  Bytes:         %s\n", formatBytes(int64(s.Bytes)))
	fmt.Fprintf(c.writer, "  Average rate:  %.1f pps\n", s.PPS)
	fmt.Fprintf(c.writer, "  Bandwidth:     %.2f Mbps\n", s.Mbps)

	errStyle := green
	if s.Errors > 0 {
		errStyle = red
	}
	fmt.Fprintf(c.writer, "  Errors:        %s\n", errStyle.Sprintf("%d", s.Errors))
	fmt.Fprintf(c.writer, "  Success rate:  %.1f%%\n", s.SuccessRate)

	if s.Latency.Count > 0 {
		fmt.Fprintf(c.writer, "  Send latency:  min %s / mean %s / p95 %s / p99 %s\n",
			s.Latency.Min.Round(time.Microsecond),
			s.Latency.Mean.Round(time.Microsecond),
			s.Latency.P95.Round(time.Microsecond),
			s.Latency.P99.Round(time.Microsecond))
	}

	if len(r.PerType) > 1 {
		fmt.Fprintln(c.writer)
		names := make([]string, 0, len(r.PerType))
		for name := range r.PerType {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ts := r.PerType[name]
			fmt.Fprintf(c.writer, "  %-12s %d workers, %d packets, %d errors\n",
				name+":", ts.Workers, ts.Packets, ts.Errors)
		}
	}

	for _, f := range r.SkippedTypes {
		fmt.Fprintf(c.writer, "  %s\n", yellow.Sprintf("skipped %s: %s", f.Type, f.Err))
	}
	for _, fe := range r.FatalExits {
		fmt.Fprintf(c.writer, "  %s\n", red.Sprintf("worker %d (%s) exited: %s", fe.WorkerID, fe.Type, fe.Err))
	}
	if r.Stragglers > 0 {
		fmt.Fprintf(c.writer, "  %s\n", red.Sprintf("%d worker(s) did not stop within the grace period", r.Stragglers))
	}

	fmt.Fprintln(c.writer, rule)
}

// style returns a color that respects the sink's color setting.
func (c *Console) style(attrs ...color.Attribute) *color.Color {
	s := color.New(attrs...)
	if !c.useColors {
		s.DisableColor()
	}
	return s
}

// formatBytes formats bytes to a human-readable string.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

var _ loadgen.Sink = (*Console)(nil)
