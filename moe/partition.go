package moe

import "fmt"

// PartitionResult is the cost of one NPU/PIM boundary.
type PartitionResult struct {
	H          int        // number of experts on the NPU
	NPUExperts []ExpertID // order[:H]
	PIMExperts []ExpertID // order[H:]

	NPUCycles               int64 // sum of TotalWithLoad over NPUExperts
	PIMCycles               int64 // sum of Total over PIMExperts
	PIMCyclesWithActivation int64 // ActivationMovement1 + PIMCycles + ActivationMovement2
	ParallelCycles          int64 // max(NPUCycles, PIMCyclesWithActivation)
	TotalExecutionCycles    int64 // equals ParallelCycles
}

// Evaluate computes the cost of sending the first h experts of order to the NPU
// and the remaining experts to PIM.
// Experts with no record on their device contribute 0 cycles.
// Panics if h is outside [0, len(order)].
func Evaluate(h int, order []ExpertID, npu NPURecords, pim PIMRecords, overhead Overhead) PartitionResult {
	if h < 0 || h > len(order) {
		panic(fmt.Sprintf("moe: boundary %d outside [0, %d]", h, len(order)))
	}
	npuExperts := append([]ExpertID(nil), order[:h]...)
	pimExperts := append([]ExpertID(nil), order[h:]...)

	npuCycles := sumNPU(npuExperts, npu)
	pimCycles := sumPIM(pimExperts, pim)
	pimWithActivation := overhead.ActivationMovement1 + pimCycles + overhead.ActivationMovement2
	parallel := max(npuCycles, pimWithActivation)

	return PartitionResult{
		H:                       h,
		NPUExperts:              npuExperts,
		PIMExperts:              pimExperts,
		NPUCycles:               npuCycles,
		PIMCycles:               pimCycles,
		PIMCyclesWithActivation: pimWithActivation,
		ParallelCycles:          parallel,
		TotalExecutionCycles:    parallel,
	}
}

func sumNPU(experts []ExpertID, records NPURecords) int64 {
	var total int64
	for _, id := range experts {
		total += records[id].TotalWithLoad
	}
	return total
}

func sumPIM(experts []ExpertID, records PIMRecords) int64 {
	var total int64
	for _, id := range experts {
		total += records[id].Total
	}
	return total
}
