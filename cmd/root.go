package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/qnetsim/qnetsim/sim"
	"github.com/qnetsim/qnetsim/sim/trace"
)

var (
	// CLI flags
	configPath string // Scenario YAML path
	seed       int64  // Seed override for deterministic runs (-1 keeps the scenario's)
	until      int64  // Horizon override in ticks (0 keeps the scenario's)
	logLevel   string // Log verbosity level
	withTrace  bool   // Record and print the negotiation/protocol trace
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "qnetsim",
	Short: "Discrete-event simulator for entanglement distribution networks",
}

// runCmd executes a scenario using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an entanglement distribution scenario",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if configPath == "" {
			logrus.Fatalf("Scenario file not provided. Exiting simulation.")
		}
		spec, err := sim.LoadScenario(configPath)
		if err != nil {
			logrus.Fatalf("Unable to load scenario: %v", err)
		}
		if seed >= 0 {
			spec.Seed = seed
		}
		if until > 0 {
			spec.Horizon = until
		}

		logrus.Infof("Starting simulation: %d nodes, %d links, seed=%d, horizon=%d ticks",
			len(spec.Nodes), len(spec.Links), spec.Seed, spec.Horizon)

		net, err := sim.BuildNetwork(spec)
		if err != nil {
			logrus.Fatalf("Unable to build network: %v", err)
		}
		if withTrace {
			net.Trace = trace.NewSimulationTrace()
		}

		net.Timeline.RunUntil(spec.Horizon)
		net.Metrics.Print(net)
		if net.Trace != nil {
			if err := net.Trace.Write(os.Stdout); err != nil {
				logrus.Fatalf("Unable to write trace: %v", err)
			}
		}

		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Scenario YAML file")
	runCmd.Flags().Int64Var(&seed, "seed", -1, "Seed override for deterministic runs (-1 keeps the scenario's seed)")
	runCmd.Flags().Int64Var(&until, "until", 0, "Horizon override in ticks (0 keeps the scenario's horizon)")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().BoolVar(&withTrace, "trace", false, "Record and print the negotiation/protocol trace")

	rootCmd.AddCommand(runCmd)
}
