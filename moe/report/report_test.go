package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/moe-hybrid/moe"
	"github.com/inference-sim/moe-hybrid/moe/timing"
)

func TestFormatExperts(t *testing.T) {
	assert.Equal(t, "[]", FormatExperts(nil))
	assert.Equal(t, "[7]", FormatExperts([]moe.ExpertID{7}))
	assert.Equal(t, "[28, 3, 61]", FormatExperts([]moe.ExpertID{28, 3, 61}))
}

func TestWriteNPUResults_Layout(t *testing.T) {
	order := []moe.ExpertID{28, 3}
	records := moe.NPURecords{28: moe.NewNPURecord(1000, 4000, 200, 3800, 4)}

	var buf bytes.Buffer
	require.NoError(t, WriteNPUResults(&buf, order, records, DefaultNPUNote()))
	lines := strings.Split(buf.String(), "\n")

	assert.Equal(t, "Note: Data is for 8 units of 32x32 systolic array", lines[0])
	assert.Equal(t, "      Max MAC per cycle: 8192 (32x32x8 = 8192)", lines[1])
	assert.Equal(t, "", lines[2])
	assert.Equal(t, "Expert     param_load      fc1             gelu            fc2             Total           32units         Total+load     ", lines[3])
	assert.Equal(t, strings.Repeat("-", 120), lines[4])
	assert.Equal(t, "28         1000            4000            200             3800            8000            2000            3000           ", lines[5])
	// Missing expert renders as zeros
	assert.Equal(t, "3          0               0               0               0               0               0               0              ", lines[6])
	assert.Equal(t, "TOTAL EXECUTION CYCLES:   3000           ", lines[8])
}

func TestWritePIMResults_TotalsBlock(t *testing.T) {
	order := []moe.ExpertID{0, 1}
	records := moe.PIMRecords{0: moe.NewPIMRecord(10, 1, 10), 1: moe.NewPIMRecord(5, 0, 5)}
	overhead := moe.Overhead{ActivationMovement1: 100, ActivationMovement2: 50}

	var buf bytes.Buffer
	require.NoError(t, WritePIMResults(&buf, order, records, overhead, DefaultPIMNote()))
	out := buf.String()

	assert.Contains(t, out, "Note: Data is for 8 units of 16x16 systolic array\n")
	assert.Contains(t, out, "Expert     fc1             gelu            fc2             Total          \n")
	assert.Contains(t, out, "           --              --              --              --             \n")
	assert.Contains(t, out, "activation_movement_1:    100            \n")
	assert.Contains(t, out, "Sum of all experts:       31             \n")
	assert.Contains(t, out, "activation_movement_2:    50             \n")
	assert.Contains(t, out, "TOTAL EXECUTION CYCLES:   181            \n")
}

func TestResultsTables_RoundTripThroughParser(t *testing.T) {
	// GIVEN records built from raw trace cycles
	order := []moe.ExpertID{12, 0, 5}
	npu := moe.NPURecords{
		12: moe.NewNPURecord(900, 4003, 17, 3999, 4),
		0:  moe.NewNPURecord(1200, 100, 3, 100, 4),
	}
	pim := moe.PIMRecords{12: moe.NewPIMRecord(2001, 17, 1999), 5: moe.NewPIMRecord(3, 4, 5)}
	overhead := moe.Overhead{ActivationMovement1: 1480, ActivationMovement2: 730}

	// WHEN written as tables and read back
	var npuBuf, pimBuf bytes.Buffer
	require.NoError(t, WriteNPUResults(&npuBuf, order, npu, DefaultNPUNote()))
	require.NoError(t, WritePIMResults(&pimBuf, order, pim, overhead, DefaultPIMNote()))
	gotNPU, err := timing.ParseNPUResults(&npuBuf)
	require.NoError(t, err)
	gotPIM, gotOverhead, err := timing.ParsePIMResults(&pimBuf)
	require.NoError(t, err)

	// THEN every listed expert survives, with missing ones as zero records
	npu[5] = moe.NPURecord{}
	pim[0] = moe.PIMRecord{}
	if diff := cmp.Diff(npu, gotNPU); diff != "" {
		t.Errorf("NPU round trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pim, gotPIM); diff != "" {
		t.Errorf("PIM round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, overhead, gotOverhead)
}

func workedSweep() ([]moe.PartitionResult, moe.PartitionResult, moe.NPURecords, moe.Overhead) {
	order := []moe.ExpertID{0, 1, 2}
	npu := moe.NPURecords{0: {TotalWithLoad: 10}, 1: {TotalWithLoad: 20}, 2: {TotalWithLoad: 5}}
	pim := moe.PIMRecords{0: {Total: 4}, 1: {Total: 3}, 2: {Total: 6}}
	overhead := moe.Overhead{ActivationMovement1: 2, ActivationMovement2: 1}
	results, best := moe.Search(order, npu, pim, overhead)
	return results, best, npu, overhead
}

func TestWriteHybridResults_WorkedExample(t *testing.T) {
	results, best, npu, overhead := workedSweep()

	var buf bytes.Buffer
	require.NoError(t, WriteHybridResults(&buf, results, best, npu, overhead))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Hybrid NPU/PIM Execution Analysis - Optimal Configuration Search\n"+strings.Repeat("=", 65)+"\n\n"))
	assert.Contains(t, out, "H      NPU Experts     NPU Total       PIM Total       Parallel Time   Total Cycles   \n")
	assert.Contains(t, out, "1      1               10              12              12              12             \n")
	assert.Contains(t, out, "H (Gating Output): 2\n")
	assert.Contains(t, out, "NPU Experts (2): [0, 1]\nPIM Experts (1): [2]\n")
	assert.Contains(t, out, "    Expert 1: Total+load = 20 cycles\n")
	assert.Contains(t, out, "  PIM Sum of Experts: 6\n")
	assert.Contains(t, out, "  max(NPU_time, PIM_time_with_activation) = max(30, 9) = 30\n")
	assert.Contains(t, out, "NPU Experts (0): []\n")
	assert.True(t, strings.HasSuffix(out, "Optimal H value: 1\nMinimum total execution cycles: 12\nSee details for H=1 above in the detailed results section.\n"))
	assert.Equal(t, len(results), strings.Count(out, "TOTAL EXECUTION CYCLES: "))
}

func TestWriteHybridResults_SkipsNPUExpertsWithoutRecord(t *testing.T) {
	order := []moe.ExpertID{4, 9}
	npu := moe.NPURecords{9: {TotalWithLoad: 3}}
	results, best := moe.Search(order, npu, nil, moe.Overhead{})

	var buf bytes.Buffer
	require.NoError(t, WriteHybridResults(&buf, results, best, npu, moe.Overhead{}))

	assert.NotContains(t, buf.String(), "Expert 4: Total+load")
	assert.Contains(t, buf.String(), "    Expert 9: Total+load = 3 cycles\n")
}

func TestWriteSummaryJSON(t *testing.T) {
	results, best, _, overhead := workedSweep()

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryJSON(&buf, results, best, overhead))

	var got Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 1, got.OptimalH)
	assert.Equal(t, int64(12), got.TotalExecutionCycles)
	assert.Equal(t, []moe.ExpertID{0}, got.NPUExperts)
	assert.Equal(t, []moe.ExpertID{1, 2}, got.PIMExperts)
	require.Len(t, got.Sweep, 4)
	assert.Equal(t, SweepRow{H: 3, NPUExpertCount: 3, NPUCycles: 35, PIMCyclesWithActivation: 3, TotalExecutionCycles: 35}, got.Sweep[3])
}

func TestWriteSummaryJSON_EmptyListsAreArrays(t *testing.T) {
	results, best := moe.Search(nil, nil, nil, moe.Overhead{})

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryJSON(&buf, results, best, moe.Overhead{}))

	assert.Contains(t, buf.String(), `"npu_experts": []`)
	assert.Contains(t, buf.String(), `"pim_experts": []`)
}
