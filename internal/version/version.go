// Package version defines the monotonically increasing logical
// timestamp the MV-Tree versions records against.
package version

import "math"

// V is a clonable, totally ordered version token. Values are plain
// 64-bit counters; the zero value is never a valid write version
// (writes start at 1) so it doubles as "unset".
type V uint64

// Infinity is the sentinel used for an open ("alive") lifespan end.
const Infinity V = V(math.MaxUint64)

// Zero is the unset/never-written sentinel.
const Zero V = 0

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater
// than other.
func (v V) Compare(other V) int {
	switch {
	case v < other:
		return -1
	case v > other:
		return 1
	default:
		return 0
	}
}

// Less reports whether v sorts strictly before other.
func (v V) Less(other V) bool { return v < other }

// IsInfinity reports whether v is the open-ended sentinel.
func (v V) IsInfinity() bool { return v == Infinity }
