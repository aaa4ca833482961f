package driver

import (
	"math"
	"time"
)

// NextCheck implements spec.md §4.6: given the instant a rule's
// requirement was met and the current time, compute the next recheck
// instant, or ok=false if no further recheck is scheduled. Once past
// start, the recheck is the first check_every step strictly after now,
// so a check made exactly on a step schedules the following one.
func (t TimingConfig) NextCheck(metAt, now time.Time) (next time.Time, ok bool) {
	var end time.Time
	hasEnd := t.hasUntil
	if hasEnd {
		end = metAt.Add(t.Until)
		if !now.Before(end) {
			return time.Time{}, false
		}
	}

	start := metAt.Add(t.From)
	if now.Before(start) {
		return start, true
	}

	if !t.hasCheckEvery {
		return time.Time{}, false
	}

	elapsed := now.Sub(start)
	k := int64(math.Floor(float64(elapsed)/float64(t.CheckEvery))) + 1
	if k < 0 {
		k = 0
	}
	candidate := start.Add(time.Duration(k) * t.CheckEvery)
	if hasEnd && !candidate.Before(end) {
		return time.Time{}, false
	}
	return candidate, true
}
