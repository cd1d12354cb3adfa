package catalog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// ParseTLE reads satellite targets from 3-line NORAD TLE format. The
// NORAD ID becomes the target ID ("sat-NNNNN"). Malformed entries are
// skipped with a warning log.
func ParseTLE(r io.Reader, logger *slog.Logger) ([]Target, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var targets []Target
	for i := 0; i+2 < len(lines); {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Try to find the next valid triplet.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		// NORAD ID from line1 cols 3-7 (0-indexed: 2..7).
		noradStr := strings.TrimSpace(line1[2:7])
		noradID, err := strconv.Atoi(noradStr)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid NORAD ID", "norad_str", noradStr, "name", name)
			i += 3
			continue
		}

		t := Target{
			ID:    fmt.Sprintf("sat-%d", noradID),
			Name:  strings.TrimSpace(name),
			Kind:  KindSatellite,
			Line1: line1,
			Line2: line2,
		}
		if err := t.Validate(); err != nil {
			logger.Warn("skipping invalid TLE entry", "name", name, "error", err)
			i += 3
			continue
		}
		targets = append(targets, t)
		i += 3
	}

	return targets, nil
}
