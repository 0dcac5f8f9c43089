package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	defaultStatsFile  = "flame-moe-290m_runid31066_epoch1080_layer2_shard0-0_512tokens_top2_stats.txt"
	defaultNPUTrace   = "SA_stage_E_npu2.tsv"
	defaultPIMTrace   = "SA_stage_E_pim2.tsv"
	defaultNPUResults = "npu_results.txt"
	defaultPIMResults = "pim_results.txt"
	defaultHybridFile = "hybrid_results.txt"
)

var (
	// Shared flags
	logLevel   string // Log verbosity level
	configPath string // Analysis YAML config
	statsPath  string // Gating stats file giving the expert order

	// Trace extraction
	npuTracePath  string // NPU simulator op trace (TSV)
	pimTracePath  string // PIM simulator op trace (TSV)
	npuOutputPath string // NPU results table written by npu
	pimOutputPath string // PIM results table written by pim

	// Boundary sweep
	npuResultsPath   string // NPU results table read by hybrid
	pimResultsPath   string // PIM results table read by hybrid
	hybridOutputPath string // Sweep report written by hybrid
	outputDir        string // Directory for run outputs
	summaryPath      string // Optional JSON summary path
	workers          int    // Parallel sweep width
	strict           bool   // Fail on missing timing records
	expertCount      int    // Default order length without a stats file

	analysisCfg AnalysisConfig
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "moe-hybrid",
	Short: "NPU/PIM expert partition analyzer for MoE layers",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := loadAnalysisConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load analysis config: %v", err)
		}
		// Flags override the config file only when set explicitly
		if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
			cfg.Workers = workers
		}
		if f := cmd.Flags().Lookup("strict"); f != nil && f.Changed {
			cfg.Strict = strict
		}
		if f := cmd.Flags().Lookup("expert-count"); f != nil && f.Changed {
			cfg.ExpertCount = expertCount
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid analysis settings: %v", err)
		}
		analysisCfg = cfg
	},
}

// npuCmd extracts per-expert NPU timing from a simulator op trace
var npuCmd = &cobra.Command{
	Use:   "npu",
	Short: "Extract per-expert NPU timing from an op trace",
	Run: func(cmd *cobra.Command, args []string) {
		if err := extractNPU(analysisCfg, npuTracePath, statsPath, npuOutputPath); err != nil {
			logrus.Fatalf("NPU extraction failed: %v", err)
		}
		logrus.Infof("Results written to %s", npuOutputPath)
	},
}

// pimCmd extracts per-expert PIM timing and activation movements from a simulator op trace
var pimCmd = &cobra.Command{
	Use:   "pim",
	Short: "Extract per-expert PIM timing from an op trace",
	Run: func(cmd *cobra.Command, args []string) {
		if err := extractPIM(analysisCfg, pimTracePath, statsPath, pimOutputPath); err != nil {
			logrus.Fatalf("PIM extraction failed: %v", err)
		}
		logrus.Infof("Results written to %s", pimOutputPath)
	},
}

// hybridCmd sweeps all NPU/PIM boundaries using the extracted results tables
var hybridCmd = &cobra.Command{
	Use:   "hybrid",
	Short: "Search the optimal NPU/PIM expert boundary from results tables",
	Run: func(cmd *cobra.Command, args []string) {
		in, err := loadResultsInputs(analysisCfg, statsPath, npuResultsPath, pimResultsPath)
		if err != nil {
			logrus.Fatalf("Failed to load sweep inputs: %v", err)
		}
		out, err := analyzeHybrid(context.Background(), analysisCfg, in, hybridOutputPath, summaryPath)
		if err != nil {
			logrus.Fatalf("Hybrid analysis failed: %v", err)
		}
		printOutcome(os.Stdout, hybridOutputPath, out)
	},
}

// runCmd runs extraction and the boundary sweep straight from the op traces
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract NPU and PIM timing and search the optimal boundary",
	Run: func(cmd *cobra.Command, args []string) {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			logrus.Fatalf("Failed to create output directory: %v", err)
		}
		in, err := loadTraceInputs(analysisCfg, statsPath, npuTracePath, pimTracePath)
		if err != nil {
			logrus.Fatalf("Failed to load op traces: %v", err)
		}
		if err := writeNPUTable(analysisCfg, in.Stats.Order, in.NPU, filepath.Join(outputDir, defaultNPUResults)); err != nil {
			logrus.Fatalf("Failed to write NPU results: %v", err)
		}
		if err := writePIMTable(analysisCfg, in.Stats.Order, in.PIM, in.Overhead, filepath.Join(outputDir, defaultPIMResults)); err != nil {
			logrus.Fatalf("Failed to write PIM results: %v", err)
		}

		hybridOut := filepath.Join(outputDir, defaultHybridFile)
		out, err := analyzeHybrid(context.Background(), analysisCfg, in, hybridOut, summaryPath)
		if err != nil {
			logrus.Fatalf("Hybrid analysis failed: %v", err)
		}
		printOutcome(os.Stdout, hybridOut, out)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerSweepFlags adds the flags shared by hybrid and run.
func registerSweepFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&summaryPath, "summary-json", "", "Also write a JSON summary of the sweep to this path")
	cmd.Flags().IntVar(&workers, "workers", 1, "Number of goroutines evaluating boundaries (<= 1 is sequential)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when an expert has no NPU or PIM timing record")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Analysis config YAML (scaling divisors, table notes, defaults)")
	rootCmd.PersistentFlags().StringVar(&statsPath, "stats", defaultStatsFile, "Gating stats file listing experts in priority order")
	rootCmd.PersistentFlags().IntVar(&expertCount, "expert-count", 64, "Number of experts in the default order used when the stats file is missing")

	npuCmd.Flags().StringVar(&npuTracePath, "trace", defaultNPUTrace, "NPU simulator op trace (TSV with OpName and TotalCycle)")
	npuCmd.Flags().StringVar(&npuOutputPath, "output", defaultNPUResults, "NPU results table to write")

	pimCmd.Flags().StringVar(&pimTracePath, "trace", defaultPIMTrace, "PIM simulator op trace (TSV with OpName and TotalCycle)")
	pimCmd.Flags().StringVar(&pimOutputPath, "output", defaultPIMResults, "PIM results table to write")

	hybridCmd.Flags().StringVar(&npuResultsPath, "npu-results", defaultNPUResults, "NPU results table to read")
	hybridCmd.Flags().StringVar(&pimResultsPath, "pim-results", defaultPIMResults, "PIM results table to read")
	hybridCmd.Flags().StringVar(&hybridOutputPath, "output", defaultHybridFile, "Hybrid sweep report to write")
	registerSweepFlags(hybridCmd)

	runCmd.Flags().StringVar(&npuTracePath, "npu-trace", defaultNPUTrace, "NPU simulator op trace")
	runCmd.Flags().StringVar(&pimTracePath, "pim-trace", defaultPIMTrace, "PIM simulator op trace")
	runCmd.Flags().StringVar(&outputDir, "output-dir", ".", "Directory for the three result files")
	registerSweepFlags(runCmd)

	rootCmd.AddCommand(npuCmd, pimCmd, hybridCmd, runCmd)
}
