package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inference-sim/moe-hybrid/moe"
)

// FormatExperts renders ids as a bracketed list, e.g. "[28, 3, 61]".
func FormatExperts(ids []moe.ExpertID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// WriteHybridResults writes the sweep report: a one-line-per-H summary, the
// per-H breakdown, and the optimal configuration highlight.
// npu is used to list the Total+load of each NPU expert that has a record.
func WriteHybridResults(w io.Writer, results []moe.PartitionResult, optimal moe.PartitionResult, npu moe.NPURecords, overhead moe.Overhead) error {
	var buf bytes.Buffer
	heavy := strings.Repeat("=", 100) + "\n"
	banner := strings.Repeat("=", 65) + "\n"

	buf.WriteString("Hybrid NPU/PIM Execution Analysis - Optimal Configuration Search\n")
	buf.WriteString(banner)
	buf.WriteString("\n")

	buf.WriteString("All Configurations Summary:\n")
	fmt.Fprintf(&buf, "%-6s %-15s %-15s %-15s %-15s %-15s\n",
		"H", "NPU Experts", "NPU Total", "PIM Total", "Parallel Time", "Total Cycles")
	buf.WriteString(rule(82))
	for _, r := range results {
		fmt.Fprintf(&buf, "%-6d %-15d %-15d %-15d %-15d %-15d\n",
			r.H, len(r.NPUExperts), r.NPUCycles, r.PIMCyclesWithActivation, r.ParallelCycles, r.TotalExecutionCycles)
	}

	buf.WriteString("\n")
	buf.WriteString(heavy)
	buf.WriteString("DETAILED RESULTS FOR EACH H VALUE:\n")
	buf.WriteString(heavy)
	buf.WriteString("\n")

	for _, r := range results {
		writeDetail(&buf, banner, r, npu, overhead)
	}

	buf.WriteString(heavy)
	buf.WriteString("OPTIMAL CONFIGURATION HIGHLIGHT:\n")
	buf.WriteString(heavy)
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "Optimal H value: %d\n", optimal.H)
	fmt.Fprintf(&buf, "Minimum total execution cycles: %d\n", optimal.TotalExecutionCycles)
	fmt.Fprintf(&buf, "See details for H=%d above in the detailed results section.\n", optimal.H)

	_, err := w.Write(buf.Bytes())
	return err
}

func writeDetail(buf *bytes.Buffer, banner string, r moe.PartitionResult, npu moe.NPURecords, overhead moe.Overhead) {
	npuList := FormatExperts(r.NPUExperts)
	pimList := FormatExperts(r.PIMExperts)

	buf.WriteString(banner)
	fmt.Fprintf(buf, "H (Gating Output): %d\n", r.H)
	buf.WriteString(banner)
	buf.WriteString("\n")

	fmt.Fprintf(buf, "NPU Experts (%d): %s\n", len(r.NPUExperts), npuList)
	fmt.Fprintf(buf, "PIM Experts (%d): %s\n", len(r.PIMExperts), pimList)
	buf.WriteString("\n")

	buf.WriteString("NPU Execution Details:\n")
	fmt.Fprintf(buf, "  Experts: %s\n", npuList)
	for _, id := range r.NPUExperts {
		if rec, ok := npu[id]; ok {
			fmt.Fprintf(buf, "    Expert %d: Total+load = %d cycles\n", id, rec.TotalWithLoad)
		}
	}
	fmt.Fprintf(buf, "  NPU Total Cycles: %d\n", r.NPUCycles)
	buf.WriteString("\n")

	buf.WriteString("PIM Execution Details:\n")
	fmt.Fprintf(buf, "  Experts: %s\n", pimList)
	fmt.Fprintf(buf, "  PIM Sum of Experts: %d\n", r.PIMCycles)
	buf.WriteString("\n")

	buf.WriteString("Activation Movements:\n")
	fmt.Fprintf(buf, "  activation_movement_1: %d\n", overhead.ActivationMovement1)
	fmt.Fprintf(buf, "  activation_movement_2: %d\n", overhead.ActivationMovement2)
	fmt.Fprintf(buf, "  PIM Total Cycles (with activations): %d\n", r.PIMCyclesWithActivation)
	buf.WriteString("\n")

	buf.WriteString("Parallel Execution:\n")
	fmt.Fprintf(buf, "  max(NPU_time, PIM_time_with_activation) = max(%d, %d) = %d\n",
		r.NPUCycles, r.PIMCyclesWithActivation, r.ParallelCycles)
	buf.WriteString("\n")

	fmt.Fprintf(buf, "TOTAL EXECUTION CYCLES: %d\n", r.TotalExecutionCycles)
	buf.WriteString("\n\n")
}

// SweepRow is one boundary of the JSON summary.
type SweepRow struct {
	H                       int   `json:"h"`
	NPUExpertCount          int   `json:"npu_expert_count"`
	NPUCycles               int64 `json:"npu_cycles"`
	PIMCyclesWithActivation int64 `json:"pim_cycles_with_activation"`
	TotalExecutionCycles    int64 `json:"total_execution_cycles"`
}

// Summary is the machine-readable form of a sweep.
type Summary struct {
	OptimalH             int            `json:"optimal_h"`
	TotalExecutionCycles int64          `json:"total_execution_cycles"`
	NPUExperts           []moe.ExpertID `json:"npu_experts"`
	PIMExperts           []moe.ExpertID `json:"pim_experts"`
	ActivationMovement1  int64          `json:"activation_movement_1"`
	ActivationMovement2  int64          `json:"activation_movement_2"`
	Sweep                []SweepRow     `json:"sweep"`
}

// NewSummary builds the JSON summary of a sweep.
func NewSummary(results []moe.PartitionResult, optimal moe.PartitionResult, overhead moe.Overhead) Summary {
	s := Summary{
		OptimalH:             optimal.H,
		TotalExecutionCycles: optimal.TotalExecutionCycles,
		NPUExperts:           nonNil(optimal.NPUExperts),
		PIMExperts:           nonNil(optimal.PIMExperts),
		ActivationMovement1:  overhead.ActivationMovement1,
		ActivationMovement2:  overhead.ActivationMovement2,
		Sweep:                make([]SweepRow, len(results)),
	}
	for i, r := range results {
		s.Sweep[i] = SweepRow{
			H:                       r.H,
			NPUExpertCount:          len(r.NPUExperts),
			NPUCycles:               r.NPUCycles,
			PIMCyclesWithActivation: r.PIMCyclesWithActivation,
			TotalExecutionCycles:    r.TotalExecutionCycles,
		}
	}
	return s
}

// WriteSummaryJSON writes the sweep summary as indented JSON.
func WriteSummaryJSON(w io.Writer, results []moe.PartitionResult, optimal moe.PartitionResult, overhead moe.Overhead) error {
	data, err := json.MarshalIndent(NewSummary(results, optimal, overhead), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sweep summary: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// nonNil keeps empty expert lists as [] rather than null in JSON.
func nonNil(ids []moe.ExpertID) []moe.ExpertID {
	if ids == nil {
		return []moe.ExpertID{}
	}
	return ids
}
