package timing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/moe-hybrid/moe"
)

const gatingHMarker = "H (Gating Output):"

// expertLine matches stats rows such as "Expert 28    73" (id, routed tokens).
var expertLine = regexp.MustCompile(`^Expert (\d+)\s+(\d+)`)

// ExpertStats is the parsed gating stats file of one MoE layer.
type ExpertStats struct {
	Order       []moe.ExpertID         // experts in listed order, highest priority first
	TokenCounts map[moe.ExpertID]int64 // routed tokens per listed expert
	GatingH     int                    // "H (Gating Output)" value; -1 if absent
	Defaulted   bool                   // true if the file was missing and Order is 0..N-1
}

// ParseExpertStats reads a gating stats file.
// Lines not matching the expert row or gating H formats are ignored.
func ParseExpertStats(r io.Reader) (*ExpertStats, error) {
	stats := &ExpertStats{
		TokenCounts: make(map[moe.ExpertID]int64),
		GatingH:     -1,
	}
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if strings.Contains(line, gatingHMarker) {
			fields := strings.Split(line, ":")
			h, err := strconv.Atoi(strings.TrimSpace(fields[1]))
			if err != nil {
				return nil, fmt.Errorf("stats line %d: invalid gating H %q: %w", lineNo, fields[1], err)
			}
			stats.GatingH = h
		}
		m := expertLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("stats line %d: invalid expert id %q: %w", lineNo, m[1], err)
		}
		tokens, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("stats line %d: invalid token count %q: %w", lineNo, m[2], err)
		}
		stats.Order = append(stats.Order, moe.ExpertID(id))
		stats.TokenCounts[moe.ExpertID(id)] = tokens
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return stats, nil
}

// LoadExpertStats reads the stats file at path. If the file does not exist the
// sequential order 0..defaultCount-1 is substituted and Defaulted is set.
func LoadExpertStats(path string, defaultCount int) (*ExpertStats, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Stats file %s not found. Using default order of %d experts.", path, defaultCount)
		return &ExpertStats{
			Order:       moe.DefaultOrder(defaultCount),
			TokenCounts: make(map[moe.ExpertID]int64),
			GatingH:     -1,
			Defaulted:   true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening stats %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only file

	stats, err := ParseExpertStats(file)
	if err != nil {
		return nil, fmt.Errorf("parsing stats %s: %w", path, err)
	}
	return stats, nil
}
