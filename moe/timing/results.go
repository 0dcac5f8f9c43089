package timing

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inference-sim/moe-hybrid/moe"
)

const (
	npuResultColumns = 8 // Expert param_load fc1 gelu fc2 Total 32units Total+load
	pimResultColumns = 5 // Expert fc1 gelu fc2 Total
)

// resultRows returns the data rows of a results table: lines whose first field
// is a decimal expert id and that carry at least five fields. The header,
// notes, rules and totals block are skipped.
func resultRows(r io.Reader) ([][]string, []string, error) {
	var rows [][]string
	var trailer []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "activation") {
			trailer = append(trailer, line)
			continue
		}
		if strings.HasPrefix(line, "Note") || strings.HasPrefix(line, "Expert") ||
			strings.HasPrefix(line, "-") || strings.HasPrefix(line, "TOTAL") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < pimResultColumns || !isDecimal(fields[0]) {
			continue
		}
		rows = append(rows, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading results table: %w", err)
	}
	return rows, trailer, nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func parseCycleFields(fields []string) ([]int64, error) {
	values := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cycle count %q: %w", f, err)
		}
		values[i] = v
	}
	return values, nil
}

// ParseNPUResults reads an NPU results table back into records.
// Every column is taken as written, so the table's own scaling is preserved.
func ParseNPUResults(r io.Reader) (moe.NPURecords, error) {
	rows, _, err := resultRows(r)
	if err != nil {
		return nil, err
	}
	records := make(moe.NPURecords, len(rows))
	for _, fields := range rows {
		if len(fields) < npuResultColumns {
			return nil, fmt.Errorf("NPU results row for expert %s: expected %d columns, got %d", fields[0], npuResultColumns, len(fields))
		}
		v, err := parseCycleFields(fields[:npuResultColumns])
		if err != nil {
			return nil, fmt.Errorf("NPU results row for expert %s: %w", fields[0], err)
		}
		records[moe.ExpertID(v[0])] = moe.NPURecord{
			ParamLoad:     v[1],
			FC1:           v[2],
			GELU:          v[3],
			FC2:           v[4],
			Total:         v[5],
			Scaled:        v[6],
			TotalWithLoad: v[7],
		}
	}
	return records, nil
}

// ParsePIMResults reads a PIM results table back into records and the activation overheads.
func ParsePIMResults(r io.Reader) (moe.PIMRecords, moe.Overhead, error) {
	rows, trailer, err := resultRows(r)
	if err != nil {
		return nil, moe.Overhead{}, err
	}
	records := make(moe.PIMRecords, len(rows))
	for _, fields := range rows {
		v, err := parseCycleFields(fields[:pimResultColumns])
		if err != nil {
			return nil, moe.Overhead{}, fmt.Errorf("PIM results row for expert %s: %w", fields[0], err)
		}
		records[moe.ExpertID(v[0])] = moe.PIMRecord{FC1: v[1], GELU: v[2], FC2: v[3], Total: v[4]}
	}

	var overhead moe.Overhead
	for _, line := range trailer {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		var target *int64
		switch {
		case strings.Contains(line, activationMovement1+":"):
			target = &overhead.ActivationMovement1
		case strings.Contains(line, activationMovement2+":"):
			target = &overhead.ActivationMovement2
		default:
			continue
		}
		v, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
		if err != nil {
			return nil, moe.Overhead{}, fmt.Errorf("PIM results %q: invalid cycle count: %w", line, err)
		}
		*target = v
	}
	return records, overhead, nil
}

// LoadNPUResults reads an NPU results table file.
func LoadNPUResults(path string) (moe.NPURecords, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening NPU results %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only file

	records, err := ParseNPUResults(file)
	if err != nil {
		return nil, fmt.Errorf("parsing NPU results %s: %w", path, err)
	}
	return records, nil
}

// LoadPIMResults reads a PIM results table file.
func LoadPIMResults(path string) (moe.PIMRecords, moe.Overhead, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, moe.Overhead{}, fmt.Errorf("opening PIM results %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only file

	records, overhead, err := ParsePIMResults(file)
	if err != nil {
		return nil, moe.Overhead{}, fmt.Errorf("parsing PIM results %s: %w", path, err)
	}
	return records, overhead, nil
}
