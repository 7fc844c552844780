package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidIntervals is the fixed set the kline endpoint accepts.
var ValidIntervals = []string{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "1w",
}

// ValidateInterval rejects anything outside ValidIntervals.
func ValidateInterval(interval string) error {
	interval = strings.ToLower(strings.TrimSpace(interval))
	for _, iv := range ValidIntervals {
		if iv == interval {
			return nil
		}
	}
	return fmt.Errorf("invalid interval %q, allowed: %s", interval, strings.Join(ValidIntervals, ", "))
}

// ValidateDays bounds the history depth a single run may request.
func ValidateDays(days int) error {
	if days <= 0 || days > 366 {
		return fmt.Errorf("days must be between 1 and 366, got %d", days)
	}
	return nil
}

// ParseIntervalDuration parses "15m", "1h", "4h", "1d", "1w" into time.Duration.
// Returns (0, false) on invalid input.
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
