// Package testutil provides shared test infrastructure for the moe packages.
// It loads the golden sweep dataset and checks the invariants every
// PartitionResult must satisfy.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/inference-sim/moe-hybrid/moe"
)

// GoldenDataset represents the structure of testdata/goldensweeps.json.
type GoldenDataset struct {
	Sweeps []GoldenSweep `json:"sweeps"`
}

// GoldenSweep is one hand-computed boundary sweep.
type GoldenSweep struct {
	Name                 string         `json:"name"`
	Order                []moe.ExpertID `json:"order"`
	NPUTotalWithLoad     map[int]int64  `json:"npu_total_with_load"`
	PIMTotal             map[int]int64  `json:"pim_total"`
	ActivationMovement1  int64          `json:"activation_movement_1"`
	ActivationMovement2  int64          `json:"activation_movement_2"`
	TotalExecutionCycles []int64        `json:"total_execution_cycles"` // indexed by H
	OptimalH             int            `json:"optimal_h"`
}

// NPU returns the sweep's NPU records. Only TotalWithLoad is populated.
func (g GoldenSweep) NPU() moe.NPURecords {
	records := make(moe.NPURecords, len(g.NPUTotalWithLoad))
	for id, cycles := range g.NPUTotalWithLoad {
		records[moe.ExpertID(id)] = moe.NPURecord{TotalWithLoad: cycles}
	}
	return records
}

// PIM returns the sweep's PIM records. Only Total is populated.
func (g GoldenSweep) PIM() moe.PIMRecords {
	records := make(moe.PIMRecords, len(g.PIMTotal))
	for id, cycles := range g.PIMTotal {
		records[moe.ExpertID(id)] = moe.PIMRecord{Total: cycles}
	}
	return records
}

// Overhead returns the sweep's activation movements.
func (g GoldenSweep) Overhead() moe.Overhead {
	return moe.Overhead{ActivationMovement1: g.ActivationMovement1, ActivationMovement2: g.ActivationMovement2}
}

// LoadGoldenDataset loads the golden sweeps from the repo-root testdata directory.
// The path is resolved relative to this source file: moe/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldensweeps.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	return &dataset
}

// AssertPartitionInvariants checks that r splits order exactly at r.H and that
// its totals follow the max-of-two-sums rule.
func AssertPartitionInvariants(t *testing.T, order []moe.ExpertID, overhead moe.Overhead, r moe.PartitionResult) {
	t.Helper()
	if len(r.NPUExperts)+len(r.PIMExperts) != len(order) {
		t.Errorf("H=%d: %d NPU + %d PIM experts, want %d total", r.H, len(r.NPUExperts), len(r.PIMExperts), len(order))
		return
	}
	if len(r.NPUExperts) != r.H {
		t.Errorf("H=%d: got %d NPU experts", r.H, len(r.NPUExperts))
	}
	for i, id := range append(append([]moe.ExpertID(nil), r.NPUExperts...), r.PIMExperts...) {
		if id != order[i] {
			t.Errorf("H=%d: position %d holds expert %d, want %d", r.H, i, id, order[i])
		}
	}
	if want := overhead.ActivationMovement1 + r.PIMCycles + overhead.ActivationMovement2; r.PIMCyclesWithActivation != want {
		t.Errorf("H=%d: PIMCyclesWithActivation=%d, want %d", r.H, r.PIMCyclesWithActivation, want)
	}
	if want := max(r.NPUCycles, r.PIMCyclesWithActivation); r.ParallelCycles != want {
		t.Errorf("H=%d: ParallelCycles=%d, want %d", r.H, r.ParallelCycles, want)
	}
	if r.TotalExecutionCycles != r.ParallelCycles {
		t.Errorf("H=%d: TotalExecutionCycles=%d differs from ParallelCycles=%d", r.H, r.TotalExecutionCycles, r.ParallelCycles)
	}
}
