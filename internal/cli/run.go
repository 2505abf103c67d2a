package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/huydz1817/surge/internal/config"
	"github.com/huydz1817/surge/internal/loadgen"
	"github.com/huydz1817/surge/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a traffic-generation test against a target",
	Long: `Execute a load test with configurable traffic types, concurrency, rate
limiting, and duration. Live aggregate statistics print once per second;
a final report prints when the run ends or is interrupted.

Flag mode:
  surge run --target 192.168.1.50 --port 8080 --types udp --workers 10 --rate 1000

Multiple simultaneous types:
  surge run --target 192.168.1.50 --types udp,http --workers 5 --duration 30s

Config file mode:
  surge run --config test.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTest(cmd)
	},
}

// runTest builds the config, wires the sink, and drives the coordinator.
func runTest(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	quiet, _ := cmd.Flags().GetBool("quiet")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var cfg *config.TestConfig
	var err error

	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg, err = buildConfigFromFlags(cmd)
		if err != nil {
			return err
		}
	}

	console := output.NewConsole(output.ConsoleConfig{
		Quiet: quiet || jsonOutput,
	})

	var sink loadgen.Sink = console
	if jsonOutput {
		sink = loadgen.NopSink{}
	}

	coord, err := loadgen.New(cfg, sink)
	if err != nil {
		return err
	}

	if !quiet && !jsonOutput {
		console.PrintHeader(cfg.Name, fmt.Sprintf("%s:%d", cfg.Target, cfg.Port),
			cfg.Types, cfg.Workers, cfg.Duration.GetDuration(0))
	}

	// An operator interrupt is the external cancellation source; it becomes
	// the shared signal every worker observes.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := coord.Run(ctx)
	if err != nil {
		return fmt.Errorf("running test: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
	}

	return nil
}

// buildConfigFromFlags assembles a TestConfig from CLI flags.
func buildConfigFromFlags(cmd *cobra.Command) (*config.TestConfig, error) {
	target, _ := cmd.Flags().GetString("target")
	if target == "" {
		return nil, fmt.Errorf("either --target or --config is required")
	}

	port, _ := cmd.Flags().GetInt("port")
	types, _ := cmd.Flags().GetStringSlice("types")
	workers, _ := cmd.Flags().GetInt("workers")
	rateFlag, _ := cmd.Flags().GetFloat64("rate")
	packetSize, _ := cmd.Flags().GetInt("packet-size")
	duration, _ := cmd.Flags().GetDuration("duration")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	httpPath, _ := cmd.Flags().GetString("http-path")
	name, _ := cmd.Flags().GetString("name")

	cfg := &config.TestConfig{
		Name:       name,
		Target:     target,
		Port:       port,
		Types:      types,
		Workers:    workers,
		Rate:       rateFlag,
		PacketSize: packetSize,
		Duration:   config.Duration(duration),
		Timeout:    config.Duration(timeout),
		HTTPPath:   httpPath,
	}

	config.ApplyDefaults(cfg)
	return cfg, nil
}

// registerRunFlags defines the run command's flags on cmd.
func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("target", "t", "", "Target host or IP")
	cmd.Flags().IntP("port", "p", config.DefaultPort, "Target port")
	cmd.Flags().StringSlice("types", []string{"udp"}, "Traffic types: udp, tcp_connect, ping, http, mixed")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Workers per traffic type")
	cmd.Flags().Float64P("rate", "r", 0, "Packets per second per worker (0 = unlimited)")
	cmd.Flags().Int("packet-size", config.DefaultPacketSize, "Payload size in bytes")
	cmd.Flags().DurationP("duration", "d", 0, "Test duration (0 = until interrupted)")
	cmd.Flags().Duration("timeout", config.DefaultTimeout, "Per-send network timeout")
	cmd.Flags().String("http-path", "/", "Request path for the http type")
	cmd.Flags().String("name", "", "Run name for reporting")

	cmd.Flags().StringP("config", "c", "", "Configuration file (.yaml or .json)")
	cmd.Flags().BoolP("quiet", "q", false, "Disable live output, show only the final report")
	cmd.Flags().Bool("json", false, "Emit the final report as JSON")
}

func init() {
	registerRunFlags(runCmd)
}
