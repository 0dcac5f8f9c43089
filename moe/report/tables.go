// Package report renders timing records and boundary sweeps as the fixed-layout
// text files consumed by downstream tooling, plus a JSON summary.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/inference-sim/moe-hybrid/moe"
)

// DeviceNote describes the simulated device configuration in a table header.
type DeviceNote struct {
	Units  string // e.g. "8 units of 32x32 systolic array"
	MaxMAC string // e.g. "8192 (32x32x8 = 8192)"
}

// DefaultNPUNote is the header of NPU tables built from 8-unit 32x32 runs.
func DefaultNPUNote() DeviceNote {
	return DeviceNote{Units: "8 units of 32x32 systolic array", MaxMAC: "8192 (32x32x8 = 8192)"}
}

// DefaultPIMNote is the header of PIM tables built from 8-unit 16x16 runs.
func DefaultPIMNote() DeviceNote {
	return DeviceNote{Units: "8 units of 16x16 systolic array", MaxMAC: "2048 (16x16x8 = 2048)"}
}

func writeNote(buf *bytes.Buffer, note DeviceNote) {
	fmt.Fprintf(buf, "Note: Data is for %s\n", note.Units)
	fmt.Fprintf(buf, "      Max MAC per cycle: %s\n", note.MaxMAC)
	buf.WriteString("\n")
}

func rule(n int) string {
	return strings.Repeat("-", n) + "\n"
}

// WriteNPUResults writes one row per expert in order. Experts without a record
// are written as zeros. The closing total is the sum of Total+load.
func WriteNPUResults(w io.Writer, order []moe.ExpertID, records moe.NPURecords, note DeviceNote) error {
	var buf bytes.Buffer
	writeNote(&buf, note)
	fmt.Fprintf(&buf, "%-10s %-15s %-15s %-15s %-15s %-15s %-15s %-15s\n",
		"Expert", "param_load", "fc1", "gelu", "fc2", "Total", "32units", "Total+load")
	buf.WriteString(rule(120))

	var total int64
	for _, id := range order {
		r := records[id]
		total += r.TotalWithLoad
		fmt.Fprintf(&buf, "%-10d %-15d %-15d %-15d %-15d %-15d %-15d %-15d\n",
			id, r.ParamLoad, r.FC1, r.GELU, r.FC2, r.Total, r.Scaled, r.TotalWithLoad)
	}

	buf.WriteString(rule(120))
	fmt.Fprintf(&buf, "%-25s %-15d\n", "TOTAL EXECUTION CYCLES:", total)
	_, err := w.Write(buf.Bytes())
	return err
}

// WritePIMResults writes one row per expert in order followed by the activation
// movements. The closing total is activation_movement_1 + sum + activation_movement_2.
func WritePIMResults(w io.Writer, order []moe.ExpertID, records moe.PIMRecords, overhead moe.Overhead, note DeviceNote) error {
	var buf bytes.Buffer
	writeNote(&buf, note)
	fmt.Fprintf(&buf, "%-10s %-15s %-15s %-15s %-15s\n", "Expert", "fc1", "gelu", "fc2", "Total")
	buf.WriteString(rule(70))

	var sum int64
	for _, id := range order {
		r := records[id]
		sum += r.Total
		fmt.Fprintf(&buf, "%-10d %-15d %-15d %-15d %-15d\n", id, r.FC1, r.GELU, r.FC2, r.Total)
	}

	buf.WriteString(rule(70))
	fmt.Fprintf(&buf, "%-10s %-15s %-15s %-15s %-15s\n", "", "--", "--", "--", "--")
	fmt.Fprintf(&buf, "%-25s %-15d\n", "activation_movement_1:", overhead.ActivationMovement1)
	fmt.Fprintf(&buf, "%-25s %-15d\n", "Sum of all experts:", sum)
	fmt.Fprintf(&buf, "%-25s %-15d\n", "activation_movement_2:", overhead.ActivationMovement2)
	fmt.Fprintf(&buf, "%-25s %-15d\n", "TOTAL EXECUTION CYCLES:", overhead.ActivationMovement1+sum+overhead.ActivationMovement2)
	_, err := w.Write(buf.Bytes())
	return err
}
