package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/moe-hybrid/moe"
	"github.com/inference-sim/moe-hybrid/moe/report"
	"github.com/inference-sim/moe-hybrid/moe/timing"
)

// hybridInputs holds everything the boundary sweep needs, loaded before it starts.
type hybridInputs struct {
	Stats    *timing.ExpertStats
	NPU      moe.NPURecords
	PIM      moe.PIMRecords
	Overhead moe.Overhead
}

// hybridOutcome is the result of one sweep.
type hybridOutcome struct {
	Results []moe.PartitionResult
	Optimal moe.PartitionResult
}

// writeFile creates path and hands it to write, reporting the first error.
func writeFile(path string, write func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	if err := write(file); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// loadOrder reads the stats file and rejects orders with duplicate or negative ids.
func loadOrder(cfg AnalysisConfig, statsPath string) (*timing.ExpertStats, error) {
	stats, err := timing.LoadExpertStats(statsPath, cfg.ExpertCount)
	if err != nil {
		return nil, err
	}
	if err := moe.ValidateOrder(stats.Order); err != nil {
		return nil, fmt.Errorf("stats %s: %w", statsPath, err)
	}
	logrus.Debugf("Loaded order of %d experts from %s (defaulted=%v)", len(stats.Order), statsPath, stats.Defaulted)
	return stats, nil
}

// extractNPU converts an NPU op trace into the NPU results table.
func extractNPU(cfg AnalysisConfig, tracePath, statsPath, outPath string) error {
	stats, err := loadOrder(cfg, statsPath)
	if err != nil {
		return err
	}
	records, err := timing.LoadNPUTrace(tracePath, cfg.Scaling())
	if err != nil {
		return err
	}
	logrus.Infof("Parsed NPU timing for %d experts from %s", len(records), tracePath)
	return writeNPUTable(cfg, stats.Order, records, outPath)
}

func writeNPUTable(cfg AnalysisConfig, order []moe.ExpertID, records moe.NPURecords, outPath string) error {
	return writeFile(outPath, func(w io.Writer) error {
		return report.WriteNPUResults(w, order, records, cfg.NPUNote())
	})
}

// extractPIM converts a PIM op trace into the PIM results table.
func extractPIM(cfg AnalysisConfig, tracePath, statsPath, outPath string) error {
	stats, err := loadOrder(cfg, statsPath)
	if err != nil {
		return err
	}
	records, overhead, err := timing.LoadPIMTrace(tracePath, cfg.Scaling())
	if err != nil {
		return err
	}
	logrus.Infof("Parsed PIM timing for %d experts from %s (activation movements %d + %d)",
		len(records), tracePath, overhead.ActivationMovement1, overhead.ActivationMovement2)
	return writePIMTable(cfg, stats.Order, records, overhead, outPath)
}

func writePIMTable(cfg AnalysisConfig, order []moe.ExpertID, records moe.PIMRecords, overhead moe.Overhead, outPath string) error {
	return writeFile(outPath, func(w io.Writer) error {
		return report.WritePIMResults(w, order, records, overhead, cfg.PIMNote())
	})
}

// loadTraceInputs reads the stats file and both op traces.
func loadTraceInputs(cfg AnalysisConfig, statsPath, npuTrace, pimTrace string) (hybridInputs, error) {
	stats, err := loadOrder(cfg, statsPath)
	if err != nil {
		return hybridInputs{}, err
	}
	npu, err := timing.LoadNPUTrace(npuTrace, cfg.Scaling())
	if err != nil {
		return hybridInputs{}, err
	}
	pim, overhead, err := timing.LoadPIMTrace(pimTrace, cfg.Scaling())
	if err != nil {
		return hybridInputs{}, err
	}
	return hybridInputs{Stats: stats, NPU: npu, PIM: pim, Overhead: overhead}, nil
}

// loadResultsInputs reads the stats file and both results tables.
func loadResultsInputs(cfg AnalysisConfig, statsPath, npuResults, pimResults string) (hybridInputs, error) {
	stats, err := loadOrder(cfg, statsPath)
	if err != nil {
		return hybridInputs{}, err
	}
	npu, err := timing.LoadNPUResults(npuResults)
	if err != nil {
		return hybridInputs{}, err
	}
	pim, overhead, err := timing.LoadPIMResults(pimResults)
	if err != nil {
		return hybridInputs{}, err
	}
	return hybridInputs{Stats: stats, NPU: npu, PIM: pim, Overhead: overhead}, nil
}

// checkCoverage warns about experts that will cost 0 cycles, or fails in strict mode.
func checkCoverage(cfg AnalysisConfig, in hybridInputs) error {
	cov := moe.MissingRecords(in.Stats.Order, in.NPU, in.PIM)
	if cov.Complete() {
		return nil
	}
	if len(cov.MissingNPU) > 0 {
		logrus.Warnf("%d experts have no NPU timing and count as 0 cycles: %s", len(cov.MissingNPU), report.FormatExperts(cov.MissingNPU))
	}
	if len(cov.MissingPIM) > 0 {
		logrus.Warnf("%d experts have no PIM timing and count as 0 cycles: %s", len(cov.MissingPIM), report.FormatExperts(cov.MissingPIM))
	}
	if cfg.Strict {
		return fmt.Errorf("strict mode: %d NPU and %d PIM timing records missing", len(cov.MissingNPU), len(cov.MissingPIM))
	}
	return nil
}

// analyzeHybrid sweeps every boundary and writes the hybrid report to outPath,
// plus the JSON summary when summaryPath is set.
func analyzeHybrid(ctx context.Context, cfg AnalysisConfig, in hybridInputs, outPath, summaryPath string) (*hybridOutcome, error) {
	if err := checkCoverage(cfg, in); err != nil {
		return nil, err
	}
	results, best, err := moe.SearchParallel(ctx, cfg.Workers, in.Stats.Order, in.NPU, in.PIM, in.Overhead)
	if err != nil {
		return nil, fmt.Errorf("boundary sweep: %w", err)
	}
	logrus.Infof("Evaluated %d boundaries over %d experts", len(results), len(in.Stats.Order))
	if in.Stats.GatingH >= 0 {
		gating := moe.Evaluate(min(in.Stats.GatingH, len(in.Stats.Order)), in.Stats.Order, in.NPU, in.PIM, in.Overhead)
		logrus.Infof("Gating output H=%d costs %d cycles; optimal H=%d costs %d cycles",
			in.Stats.GatingH, gating.TotalExecutionCycles, best.H, best.TotalExecutionCycles)
	}

	err = writeFile(outPath, func(w io.Writer) error {
		return report.WriteHybridResults(w, results, best, in.NPU, in.Overhead)
	})
	if err != nil {
		return nil, err
	}
	if summaryPath != "" {
		err = writeFile(summaryPath, func(w io.Writer) error {
			return report.WriteSummaryJSON(w, results, best, in.Overhead)
		})
		if err != nil {
			return nil, err
		}
	}
	return &hybridOutcome{Results: results, Optimal: best}, nil
}

// printOutcome reports the optimum on stdout.
func printOutcome(w io.Writer, outPath string, out *hybridOutcome) {
	fmt.Fprintf(w, "Results written to %s\n", outPath)
	fmt.Fprintf(w, "Optimal H: %d\n", out.Optimal.H)
	fmt.Fprintf(w, "TOTAL EXECUTION CYCLES: %d\n", out.Optimal.TotalExecutionCycles)
}
