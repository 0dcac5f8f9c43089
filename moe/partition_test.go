package moe_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/inference-sim/moe-hybrid/moe"
	"github.com/inference-sim/moe-hybrid/moe/internal/testutil"
)

func workedExample() ([]moe.ExpertID, moe.NPURecords, moe.PIMRecords, moe.Overhead) {
	order := []moe.ExpertID{0, 1, 2}
	npu := moe.NPURecords{
		0: {TotalWithLoad: 10},
		1: {TotalWithLoad: 20},
		2: {TotalWithLoad: 5},
	}
	pim := moe.PIMRecords{
		0: {Total: 4},
		1: {Total: 3},
		2: {Total: 6},
	}
	return order, npu, pim, moe.Overhead{ActivationMovement1: 2, ActivationMovement2: 1}
}

func TestEvaluate_WorkedExample_EveryBoundary(t *testing.T) {
	order, npu, pim, overhead := workedExample()
	tests := []struct {
		h         int
		npuCycles int64
		pimCycles int64
		pimTotal  int64
		parallel  int64
	}{
		{0, 0, 13, 16, 16},
		{1, 10, 9, 12, 12},
		{2, 30, 6, 9, 30},
		{3, 35, 0, 3, 35},
	}
	for _, tt := range tests {
		r := moe.Evaluate(tt.h, order, npu, pim, overhead)
		assert.Equal(t, tt.h, r.H)
		assert.Equal(t, tt.npuCycles, r.NPUCycles, "H=%d NPU cycles", tt.h)
		assert.Equal(t, tt.pimCycles, r.PIMCycles, "H=%d PIM cycles", tt.h)
		assert.Equal(t, tt.pimTotal, r.PIMCyclesWithActivation, "H=%d PIM cycles with activation", tt.h)
		assert.Equal(t, tt.parallel, r.ParallelCycles, "H=%d parallel cycles", tt.h)
		assert.Equal(t, tt.parallel, r.TotalExecutionCycles, "H=%d total cycles", tt.h)
		testutil.AssertPartitionInvariants(t, order, overhead, r)
	}
}

func TestEvaluate_PrefixSplit_PreservesOrder(t *testing.T) {
	// GIVEN a non-sequential priority order
	order := []moe.ExpertID{28, 3, 61, 12, 40}

	// WHEN the boundary is 2
	r := moe.Evaluate(2, order, nil, nil, moe.Overhead{})

	// THEN the first two ranked experts go to the NPU in rank order
	if diff := cmp.Diff([]moe.ExpertID{28, 3}, r.NPUExperts); diff != "" {
		t.Errorf("NPU experts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]moe.ExpertID{61, 12, 40}, r.PIMExperts); diff != "" {
		t.Errorf("PIM experts mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_ResultSlices_DoNotAliasOrder(t *testing.T) {
	order := []moe.ExpertID{0, 1, 2}
	r := moe.Evaluate(1, order, nil, nil, moe.Overhead{})

	r.NPUExperts[0] = 99
	r.PIMExperts[0] = 98

	assert.Equal(t, []moe.ExpertID{0, 1, 2}, order, "mutating a result must not touch the order")
}

func TestEvaluate_Boundaries_AllOnOneDevice(t *testing.T) {
	order, npu, pim, overhead := workedExample()

	// H=0: nothing on the NPU, everything on PIM
	first := moe.Evaluate(0, order, npu, pim, overhead)
	assert.Zero(t, first.NPUCycles)
	assert.Empty(t, first.NPUExperts)
	assert.Equal(t, order, first.PIMExperts)

	// H=N: PIM still pays exactly the activation movements
	last := moe.Evaluate(len(order), order, npu, pim, overhead)
	assert.Zero(t, last.PIMCycles)
	assert.Empty(t, last.PIMExperts)
	assert.Equal(t, overhead.Sum(), last.PIMCyclesWithActivation)
}

func TestEvaluate_MissingRecords_CostZero(t *testing.T) {
	// GIVEN expert 7 has no record on either device
	order := []moe.ExpertID{5, 7}
	npu := moe.NPURecords{5: {TotalWithLoad: 10}}
	pim := moe.PIMRecords{5: {Total: 4}}

	// WHEN expert 7 is placed on each device in turn
	onNPU := moe.Evaluate(2, order, npu, pim, moe.Overhead{})
	onPIM := moe.Evaluate(1, order, npu, pim, moe.Overhead{})

	// THEN it contributes nothing
	assert.Equal(t, int64(10), onNPU.NPUCycles)
	assert.Equal(t, int64(0), onPIM.PIMCycles)
}

func TestEvaluate_NilRecordMaps_CostZero(t *testing.T) {
	order := []moe.ExpertID{0, 1}
	r := moe.Evaluate(1, order, nil, nil, moe.Overhead{ActivationMovement1: 3, ActivationMovement2: 4})
	assert.Zero(t, r.NPUCycles)
	assert.Zero(t, r.PIMCycles)
	assert.Equal(t, int64(7), r.TotalExecutionCycles)
}

func TestEvaluate_BoundaryOutOfRange_Panics(t *testing.T) {
	order := []moe.ExpertID{0, 1, 2}
	assert.Panics(t, func() { moe.Evaluate(-1, order, nil, nil, moe.Overhead{}) })
	assert.Panics(t, func() { moe.Evaluate(4, order, nil, nil, moe.Overhead{}) })
	assert.NotPanics(t, func() { moe.Evaluate(3, order, nil, nil, moe.Overhead{}) })
}
