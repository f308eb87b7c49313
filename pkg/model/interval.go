package model

import "time"

// Overlaps reports whether the half-open intervals [startA, endA) and
// [startB, endB) intersect. A booking ending exactly when another starts is
// adjacent, not overlapping; identical intervals always overlap.
//
// Every conflict check in the engine goes through this predicate.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}
