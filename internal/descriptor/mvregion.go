package descriptor

import (
	"mvtree/internal/kv"
	"mvtree/internal/version"
)

// MVRegion pairs a KeyRange with a Lifespan: the key x time rectangle
// a subtree (or a historical root) is responsible for.
type MVRegion struct {
	Keys     KeyRange
	Lifespan Lifespan
}

// Overlaps requires both the key and time dimensions to overlap.
func (r MVRegion) Overlaps(other MVRegion) bool {
	return r.Keys.Overlaps(other.Keys) && r.Lifespan.Overlaps(other.Lifespan)
}

// ContainsKey reports whether k falls within the region's key range,
// independent of time.
func (r MVRegion) ContainsKey(k kv.Key) bool {
	return r.Keys.ContainsKey(k)
}

// Union widens r to cover other's key range, and — when includeTime is
// true — widens the lifespan to the enclosing span of both. When
// includeTime is false the lifespan is left as r's own (used when
// only the key-space footprint needs to grow, e.g. while inheriting a
// parent's max bound in §4.4.5).
func (r MVRegion) Union(other MVRegion, includeTime bool) MVRegion {
	out := MVRegion{Keys: r.Keys.Union(other.Keys), Lifespan: r.Lifespan}
	if includeTime {
		out.Lifespan = unionLifespan(r.Lifespan, other.Lifespan)
	}
	return out
}

// unionLifespan returns the minimum enclosing lifespan of a and b:
// the earliest Begin, and the latest End (alive beats any finite End).
func unionLifespan(a, b Lifespan) Lifespan {
	out := a
	if b.Begin.Compare(out.Begin) < 0 {
		out.Begin = b.Begin
	}
	switch {
	case a.IsAlive() || b.IsAlive():
		out.End = version.Infinity
		out.Closed = false
	case b.End.Compare(out.End) > 0:
		out.End = b.End
		out.Closed = b.Closed
	}
	return out
}
