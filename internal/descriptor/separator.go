package descriptor

import "mvtree/internal/kv"

// Separator is the minimum-bound sentinel an index entry carries: the
// lowest key of the subtree it heads, for the single-version tree.
type Separator struct {
	Key kv.Key
}

// Compare orders separators by key only.
func (s Separator) Compare(other Separator) int {
	return s.Key.Compare(other.Key)
}

// MVSeparator is the multi-version analogue: a (key, lifespan) pair.
// Separators compare by key, tie-breaking by lifespan.Begin where
// relevant (routing must distinguish successive versions of the same
// key region during a version-split's transient state).
type MVSeparator struct {
	Key      kv.Key
	Lifespan Lifespan
}

// Compare orders by key first, then by lifespan begin version.
func (s MVSeparator) Compare(other MVSeparator) int {
	if c := s.Key.Compare(other.Key); c != 0 {
		return c
	}
	return s.Lifespan.Begin.Compare(other.Lifespan.Begin)
}
