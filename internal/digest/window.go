package digest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UTCToday returns midnight UTC of the calendar day containing now.
// All staleness comparisons are made at day granularity in UTC so that a
// digest's "since" cutoff does not drift with the server's wall-clock
// timezone.
func UTCToday(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var lookbackTerm = regexp.MustCompile(`(\d+)\s*(weeks?|days?|hours?|minutes?|min|seconds?|sec|w|d|h|m|s)`)

var lookbackUnits = map[byte]time.Duration{
	'w': 7 * 24 * time.Hour,
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// ParseLookback parses a human-readable lookback such as "2d", "1 week",
// "3d6h", or "3 days, 6 hours" into a duration. Unit names may be
// abbreviated or spelled out. The result is always positive — an empty or
// zero lookback is an error.
func ParseLookback(s string) (time.Duration, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return 0, fmt.Errorf("digest: empty lookback")
	}

	var total time.Duration
	rest := normalized
	for rest != "" {
		loc := lookbackTerm.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] != 0 {
			return 0, fmt.Errorf("digest: invalid lookback %q", s)
		}
		n, err := strconv.Atoi(rest[loc[2]:loc[3]])
		if err != nil {
			return 0, fmt.Errorf("digest: invalid lookback %q: %w", s, err)
		}
		unit := rest[loc[4]:loc[5]]
		total += time.Duration(n) * lookbackUnits[unit[0]]
		rest = strings.TrimLeft(rest[loc[1]:], " ,")
	}
	if total <= 0 {
		return 0, fmt.Errorf("digest: lookback %q must be positive", s)
	}
	return total, nil
}
