package timing

import (
	"fmt"
	"os"
	"strings"

	"github.com/inference-sim/moe-hybrid/moe"
)

const (
	activationMovement1 = "activation_movement_1"
	activationMovement2 = "activation_movement_2"
)

// Scaling normalizes raw simulator cycles to the deployed device configuration.
type Scaling struct {
	NPUComputeDivisor int64 // fc1+gelu+fc2 divisor, 4 maps 8 systolic units to 32
	PIMFCDivisor      int64 // applied to PIM fc1 and fc2 only
}

// DefaultScaling matches the 8-unit simulator runs used for 32-unit NPU and 8-unit PIM deployments.
func DefaultScaling() Scaling {
	return Scaling{NPUComputeDivisor: 4, PIMFCDivisor: 2}
}

// Validate checks that both divisors are usable.
func (s Scaling) Validate() error {
	if s.NPUComputeDivisor < 1 {
		return fmt.Errorf("NPU compute divisor must be >= 1, got %d", s.NPUComputeDivisor)
	}
	if s.PIMFCDivisor < 1 {
		return fmt.Errorf("PIM fc divisor must be >= 1, got %d", s.PIMFCDivisor)
	}
	return nil
}

type rawExpertOps struct {
	fc1, gelu, fc2, paramLoad int64
}

// collectExpertOps groups expert op cycles by id. Any parsable expert op
// registers its expert, even with an unrecognized kind. Later rows win.
func collectExpertOps(rows []OpRow) map[moe.ExpertID]*rawExpertOps {
	experts := make(map[moe.ExpertID]*rawExpertOps)
	for _, row := range rows {
		id, kind, ok := ExpertOp(row.OpName)
		if !ok {
			continue
		}
		ops := experts[id]
		if ops == nil {
			ops = &rawExpertOps{}
			experts[id] = ops
		}
		switch kind {
		case OpFC1:
			ops.fc1 = row.TotalCycle
		case OpFC2:
			ops.fc2 = row.TotalCycle
		case OpGELU:
			ops.gelu = row.TotalCycle
		case OpParamLoad:
			ops.paramLoad = row.TotalCycle
		}
	}
	return experts
}

// NPURecordsFromTrace builds NPU records from an NPU op trace.
func NPURecordsFromTrace(rows []OpRow, scaling Scaling) (moe.NPURecords, error) {
	if err := scaling.Validate(); err != nil {
		return nil, err
	}
	experts := collectExpertOps(rows)
	records := make(moe.NPURecords, len(experts))
	for id, ops := range experts {
		records[id] = moe.NewNPURecord(ops.paramLoad, ops.fc1, ops.gelu, ops.fc2, scaling.NPUComputeDivisor)
	}
	return records, nil
}

// PIMRecordsFromTrace builds PIM records and the activation overheads from a PIM op trace.
// Parameter loads are ignored: PIM computes where the weights live.
func PIMRecordsFromTrace(rows []OpRow, scaling Scaling) (moe.PIMRecords, moe.Overhead, error) {
	if err := scaling.Validate(); err != nil {
		return nil, moe.Overhead{}, err
	}
	var overhead moe.Overhead
	for _, row := range rows {
		if strings.Contains(row.OpName, expertOpMarker) {
			continue
		}
		switch {
		case strings.Contains(row.OpName, activationMovement1):
			overhead.ActivationMovement1 = row.TotalCycle
		case strings.Contains(row.OpName, activationMovement2):
			overhead.ActivationMovement2 = row.TotalCycle
		}
	}

	experts := collectExpertOps(rows)
	records := make(moe.PIMRecords, len(experts))
	for id, ops := range experts {
		records[id] = moe.NewPIMRecord(ops.fc1/scaling.PIMFCDivisor, ops.gelu, ops.fc2/scaling.PIMFCDivisor)
	}
	return records, overhead, nil
}

// LoadNPUTrace reads an NPU op trace file into NPU records.
func LoadNPUTrace(path string, scaling Scaling) (moe.NPURecords, error) {
	rows, err := loadOpTrace(path)
	if err != nil {
		return nil, err
	}
	return NPURecordsFromTrace(rows, scaling)
}

// LoadPIMTrace reads a PIM op trace file into PIM records and activation overheads.
func LoadPIMTrace(path string, scaling Scaling) (moe.PIMRecords, moe.Overhead, error) {
	rows, err := loadOpTrace(path)
	if err != nil {
		return nil, moe.Overhead{}, err
	}
	return PIMRecordsFromTrace(rows, scaling)
}

func loadOpTrace(path string) ([]OpRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening op trace %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only file

	rows, err := ParseOpTrace(file)
	if err != nil {
		return nil, fmt.Errorf("parsing op trace %s: %w", path, err)
	}
	return rows, nil
}
