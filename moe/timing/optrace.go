// Package timing turns simulator output into per-expert timing records.
//
// Three sources are understood:
//   - op traces: tab-separated simulator dumps with OpName and TotalCycle columns
//   - the gating stats file, which ranks experts by routed tokens
//   - the NPU and PIM results tables written by moe/report, read back as records
package timing

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inference-sim/moe-hybrid/moe"
)

const (
	opNameColumn     = "OpName"
	totalCycleColumn = "TotalCycle"
	expertOpMarker   = "moe_expert"
)

// OpKind names the expert sub-operation an op trace row measures.
type OpKind string

const (
	OpFC1       OpKind = "fc1"
	OpGELU      OpKind = "gelu"
	OpFC2       OpKind = "fc2"
	OpParamLoad OpKind = "param_load"
	OpOther     OpKind = "" // expert op with an unrecognized suffix
)

// OpRow is one row of a simulator op trace.
type OpRow struct {
	OpName     string
	TotalCycle int64
}

// ParseOpTrace reads a tab-separated op trace. The first row is the header;
// the OpName and TotalCycle columns are located by name, other columns are ignored.
func ParseOpTrace(r io.Reader) ([]OpRow, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty op trace: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading op trace header: %w", err)
	}
	nameIdx, cycleIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case opNameColumn:
			nameIdx = i
		case totalCycleColumn:
			cycleIdx = i
		}
	}
	if nameIdx < 0 || cycleIdx < 0 {
		return nil, fmt.Errorf("op trace header %v must contain %q and %q columns", header, opNameColumn, totalCycleColumn)
	}

	var rows []OpRow
	for rowIdx := 1; ; rowIdx++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("op trace row %d: %w", rowIdx, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) <= nameIdx || len(record) <= cycleIdx {
			return nil, fmt.Errorf("op trace row %d: expected at least %d columns, got %d", rowIdx, max(nameIdx, cycleIdx)+1, len(record))
		}
		cycles, err := strconv.ParseInt(strings.TrimSpace(record[cycleIdx]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("op trace row %d: invalid %s %q: %w", rowIdx, totalCycleColumn, record[cycleIdx], err)
		}
		rows = append(rows, OpRow{OpName: record[nameIdx], TotalCycle: cycles})
	}
	return rows, nil
}

// ExpertOp splits an op name of the form "...moe_expert.<id>.<...>.<kind>".
// ok is false for non-expert ops and for expert ops whose id does not parse.
func ExpertOp(opName string) (id moe.ExpertID, kind OpKind, ok bool) {
	if !strings.Contains(opName, expertOpMarker) {
		return 0, OpOther, false
	}
	_, rest, found := strings.Cut(opName, expertOpMarker+".")
	if !found {
		return 0, OpOther, false
	}
	idStr, _, _ := strings.Cut(rest, ".")
	n, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, OpOther, false
	}
	for _, k := range []OpKind{OpFC1, OpFC2, OpGELU, OpParamLoad} {
		if strings.HasSuffix(opName, "."+string(k)) {
			return moe.ExpertID(n), k, true
		}
	}
	return moe.ExpertID(n), OpOther, true
}
