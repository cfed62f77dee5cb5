// Package descriptor implements the totally-ordered interval and
// region arithmetic the MV-Tree routes and queries with: Lifespan
// (version interval), KeyRange (key interval), Separator / MVSeparator
// (minimum-bound subtree sentinels) and MVRegion (key range x
// lifespan). None of it depends on a concrete key type — everything
// is expressed over kv.Key and version.V.
package descriptor

import (
	"strconv"

	"mvtree/internal/version"
)

// Lifespan is a version interval [Begin, End). End == version.Infinity
// means the entry is alive. Closed marks a special point-interval
// construction [v, v] used only for query regions and historical-root
// regions per §4.1 — ordinary entry lifespans are always half-open.
type Lifespan struct {
	Begin  version.V
	End    version.V
	Closed bool
}

// Alive constructs the open lifespan [from, ∞).
func Alive(from version.V) Lifespan {
	return Lifespan{Begin: from, End: version.Infinity}
}

// Closed point-interval constructor for query/historical-root regions.
func ClosedPoint(at version.V) Lifespan {
	return Lifespan{Begin: at, End: at, Closed: true}
}

// IsAlive reports whether the lifespan has not been closed.
func (l Lifespan) IsAlive() bool { return l.End == version.Infinity }

// IsPoint reports whether Begin == End (a degenerate, zero-length
// lifespan). After compaction no leaf entry should carry one — see P5.
func (l Lifespan) IsPoint() bool { return l.Begin == l.End }

// Contains reports whether v falls within the lifespan. For an
// ordinary half-open lifespan that's Begin <= v < End (or l.IsAlive()).
// For a Closed point-interval, End is inclusive.
func (l Lifespan) Contains(v version.V) bool {
	if v.Compare(l.Begin) < 0 {
		return false
	}
	if l.IsAlive() {
		return true
	}
	if l.Closed {
		return v.Compare(l.End) <= 0
	}
	return v.Compare(l.End) < 0
}

// Overlaps reports whether two lifespans share at least one version,
// i.e. l.Begin <= other's effective end AND other.Begin <= l's
// effective end, honoring each side's own Closed/alive flag.
func (l Lifespan) Overlaps(other Lifespan) bool {
	return withinEnd(l.Begin, other) && withinEnd(other.Begin, l)
}

// withinEnd reports whether v is at or before l's effective end bound:
// always true when l is alive; v <= l.End when l.Closed; v < l.End
// otherwise.
func withinEnd(v version.V, l Lifespan) bool {
	if l.IsAlive() {
		return true
	}
	cmp := v.Compare(l.End)
	if l.Closed {
		return cmp <= 0
	}
	return cmp < 0
}

// Delete returns a new lifespan with End closed at v. The caller is
// responsible for noticing when the result IsPoint and dropping the
// entry physically, per §4.3's "remove" semantics.
func (l Lifespan) Delete(v version.V) Lifespan {
	l.End = v
	l.Closed = false
	return l
}

// Equal checks both bounds and the closure flag, per §4.1.
func (l Lifespan) Equal(other Lifespan) bool {
	return l.Begin == other.Begin && l.End == other.End && l.Closed == other.Closed
}

// String is for debugging/logging only.
func (l Lifespan) String() string {
	if l.IsAlive() {
		return "[" + fmtV(l.Begin) + ", inf)"
	}
	close := ")"
	if l.Closed {
		close = "]"
	}
	return "[" + fmtV(l.Begin) + ", " + fmtV(l.End) + close
}

func fmtV(v version.V) string {
	if v == version.Infinity {
		return "inf"
	}
	return strconv.FormatUint(uint64(v), 10)
}
