// Package humansize parses and formats byte counts with K/M/G suffixes,
// for the -s/--storage_size CLI flags.
package humansize

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses a size string like "64M", "1G", "512K", or a bare byte
// count. An empty string parses to 0; callers that require a positive
// size (nfcollect's -s/--storage_size) reject that themselves.
func Parse(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	upper := strings.ToUpper(s)

	var multiplier uint64 = 1
	numStr := upper
	switch {
	case strings.HasSuffix(upper, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(upper, "K")
	case strings.HasSuffix(upper, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(upper, "M")
	case strings.HasSuffix(upper, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(upper, "G")
	}

	num, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("humansize: invalid size %q: %w", s, err)
	}
	return num * multiplier, nil
}

// Format renders a byte count as a human-readable string.
func Format(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"K", "M", "G", "T"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}
