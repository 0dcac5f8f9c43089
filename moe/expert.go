package moe

import (
	"fmt"
	"sort"
)

// ExpertID identifies one MoE expert within a layer.
type ExpertID int

// NPURecord holds the measured NPU cycles of one expert.
type NPURecord struct {
	ParamLoad     int64 // weight transfer into NPU memory
	FC1           int64
	GELU          int64
	FC2           int64
	Total         int64 // FC1 + GELU + FC2 at the measured unit count
	Scaled        int64 // Total normalized to the deployed unit count
	TotalWithLoad int64 // Scaled + ParamLoad; the cost charged per NPU expert
}

// NewNPURecord builds an NPURecord from raw op cycles.
// computeDivisor normalizes compute between unit counts (8 -> 32 units is 4)
// and must be >= 1. ParamLoad is never scaled.
func NewNPURecord(paramLoad, fc1, gelu, fc2, computeDivisor int64) NPURecord {
	if computeDivisor < 1 {
		panic(fmt.Sprintf("moe: NPU compute divisor must be >= 1, got %d", computeDivisor))
	}
	total := fc1 + gelu + fc2
	scaled := total / computeDivisor
	return NPURecord{
		ParamLoad:     paramLoad,
		FC1:           fc1,
		GELU:          gelu,
		FC2:           fc2,
		Total:         total,
		Scaled:        scaled,
		TotalWithLoad: scaled + paramLoad,
	}
}

// PIMRecord holds the PIM cycles of one expert, already scaled to the PIM unit count.
type PIMRecord struct {
	FC1   int64
	GELU  int64
	FC2   int64
	Total int64 // FC1 + GELU + FC2; the cost charged per PIM expert
}

// NewPIMRecord builds a PIMRecord from device-scaled op cycles.
func NewPIMRecord(fc1, gelu, fc2 int64) PIMRecord {
	return PIMRecord{FC1: fc1, GELU: gelu, FC2: fc2, Total: fc1 + gelu + fc2}
}

// Overhead holds the activation data movement paid by the PIM path once per pass.
type Overhead struct {
	ActivationMovement1 int64 // activations into PIM
	ActivationMovement2 int64 // results back out of PIM
}

// Sum returns the combined activation movement cycles.
func (o Overhead) Sum() int64 {
	return o.ActivationMovement1 + o.ActivationMovement2
}

// NPURecords maps experts to their NPU timing. Absent experts cost 0.
type NPURecords map[ExpertID]NPURecord

// PIMRecords maps experts to their PIM timing. Absent experts cost 0.
type PIMRecords map[ExpertID]PIMRecord

// DefaultOrder returns the sequential order 0..n-1, used when no stats are available.
func DefaultOrder(n int) []ExpertID {
	order := make([]ExpertID, n)
	for i := range order {
		order[i] = ExpertID(i)
	}
	return order
}

// ValidateOrder returns an error if the order holds a negative or duplicate id.
func ValidateOrder(order []ExpertID) error {
	seen := make(map[ExpertID]int, len(order))
	for i, id := range order {
		if id < 0 {
			return fmt.Errorf("expert order position %d: negative expert id %d", i, id)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("expert order position %d: expert %d already listed at position %d", i, id, prev)
		}
		seen[id] = i
	}
	return nil
}

// Coverage lists the experts of an order that have no record on a device.
// Both slices are sorted ascending.
type Coverage struct {
	MissingNPU []ExpertID
	MissingPIM []ExpertID
}

// Complete reports whether every expert has a record on both devices.
func (c Coverage) Complete() bool {
	return len(c.MissingNPU) == 0 && len(c.MissingPIM) == 0
}

// MissingRecords reports which experts in order would silently cost 0 on each device.
func MissingRecords(order []ExpertID, npu NPURecords, pim PIMRecords) Coverage {
	var cov Coverage
	for _, id := range order {
		if _, ok := npu[id]; !ok {
			cov.MissingNPU = append(cov.MissingNPU, id)
		}
		if _, ok := pim[id]; !ok {
			cov.MissingPIM = append(cov.MissingPIM, id)
		}
	}
	sort.Slice(cov.MissingNPU, func(i, j int) bool { return cov.MissingNPU[i] < cov.MissingNPU[j] })
	sort.Slice(cov.MissingPIM, func(i, j int) bool { return cov.MissingPIM[i] < cov.MissingPIM[j] })
	return cov
}
