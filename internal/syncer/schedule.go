package syncer

import (
	"fmt"
	"time"
)

// parseResyncAt parses a "HH:MM" wall-clock boundary.
func parseResyncAt(v string) (hour, minute int, err error) {
	if _, e := fmt.Sscanf(v, "%d:%d", &hour, &minute); e != nil {
		return 0, 0, fmt.Errorf("bad resync time %q: %w", v, e)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad resync time %q", v)
	}
	return hour, minute, nil
}

// nextBoundary returns the first occurrence of the given local wall-clock
// time strictly after now.
func nextBoundary(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
