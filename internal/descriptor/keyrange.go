package descriptor

import "mvtree/internal/kv"

// KeyRange is a closed interval [Min, Max] over keys.
type KeyRange struct {
	Min, Max kv.Key
}

// Point constructs the degenerate range [k, k].
func Point(k kv.Key) KeyRange { return KeyRange{Min: k, Max: k} }

// IsPoint reports whether Min == Max.
func (r KeyRange) IsPoint() bool { return kv.Equal(r.Min, r.Max) }

// ContainsKey reports whether k falls within [Min, Max].
func (r KeyRange) ContainsKey(k kv.Key) bool {
	return r.Min.Compare(k) <= 0 && k.Compare(r.Max) <= 0
}

// Overlaps reports whether [a,b] and [c,d] overlap: a <= d && c <= b.
func (r KeyRange) Overlaps(other KeyRange) bool {
	return r.Min.Compare(other.Max) <= 0 && other.Min.Compare(r.Max) <= 0
}

// Contains reports whether r fully encloses other: a <= c && d <= b.
func (r KeyRange) Contains(other KeyRange) bool {
	return r.Min.Compare(other.Min) <= 0 && other.Max.Compare(r.Max) <= 0
}

// Union extends r to the minimum enclosing range covering both r and
// other.
func (r KeyRange) Union(other KeyRange) KeyRange {
	out := r
	if other.Min.Compare(out.Min) < 0 {
		out.Min = other.Min
	}
	if other.Max.Compare(out.Max) > 0 {
		out.Max = other.Max
	}
	return out
}

// ExtendToKey widens r, if needed, so that k falls within it.
func (r KeyRange) ExtendToKey(k kv.Key) KeyRange {
	out := r
	if k.Compare(out.Min) < 0 {
		out.Min = k
	}
	if k.Compare(out.Max) > 0 {
		out.Max = k
	}
	return out
}
