package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mvtree/internal/kv"
	"mvtree/internal/version"
)

// intKey is the test double standing in for a concrete kv.Key.
type intKey int

func (k intKey) Compare(other kv.Key) int {
	o := other.(intKey)
	switch {
	case k < o:
		return -1
	case k > o:
		return 1
	default:
		return 0
	}
}

func TestLifespanAliveContains(t *testing.T) {
	l := Alive(version.V(5))
	assert.True(t, l.IsAlive())
	assert.True(t, l.Contains(version.V(5)))
	assert.True(t, l.Contains(version.V(1000)))
	assert.False(t, l.Contains(version.V(4)))
}

func TestLifespanDeleteBecomesPoint(t *testing.T) {
	l := Alive(version.V(5))
	closed := l.Delete(version.V(5))
	assert.True(t, closed.IsPoint())
	assert.False(t, closed.IsAlive())
	assert.False(t, closed.Contains(version.V(5)))
}

func TestLifespanOverlapsHalfOpenBoundary(t *testing.T) {
	a := Lifespan{Begin: 1, End: 5}
	b := Lifespan{Begin: 5, End: 10}
	assert.False(t, a.Overlaps(b), "half-open intervals sharing only the boundary must not overlap")

	c := Lifespan{Begin: 4, End: 10}
	assert.True(t, a.Overlaps(c))

	alive := Alive(version.V(3))
	assert.True(t, a.Overlaps(alive))
}

func TestLifespanClosedPointQuery(t *testing.T) {
	q := ClosedPoint(version.V(7))
	within := Lifespan{Begin: 1, End: 7} // half-open: does not itself contain 7
	assert.False(t, within.Overlaps(q), "half-open [1,7) must not overlap the closed point interval at 7")

	touching := Lifespan{Begin: 7, End: 10}
	assert.True(t, touching.Overlaps(q), "an interval beginning exactly at the query point overlaps it")
}

func TestKeyRangeOverlapContainsUnion(t *testing.T) {
	a := KeyRange{Min: intKey(1), Max: intKey(10)}
	b := KeyRange{Min: intKey(5), Max: intKey(15)}
	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Contains(b))

	c := KeyRange{Min: intKey(2), Max: intKey(8)}
	assert.True(t, a.Contains(c))

	u := a.Union(b)
	assert.Equal(t, intKey(1), u.Min)
	assert.Equal(t, intKey(15), u.Max)
}

func TestKeyRangeContainsKey(t *testing.T) {
	r := KeyRange{Min: intKey(1), Max: intKey(10)}
	assert.True(t, r.ContainsKey(intKey(1)))
	assert.True(t, r.ContainsKey(intKey(10)))
	assert.False(t, r.ContainsKey(intKey(11)))
}

func TestSeparatorCompare(t *testing.T) {
	a := Separator{Key: intKey(3)}
	b := Separator{Key: intKey(5)}
	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
}

func TestMVSeparatorTieBreaksByLifespanBegin(t *testing.T) {
	a := MVSeparator{Key: intKey(3), Lifespan: Lifespan{Begin: 1, End: version.Infinity}}
	b := MVSeparator{Key: intKey(3), Lifespan: Lifespan{Begin: 2, End: version.Infinity}}
	assert.Negative(t, a.Compare(b))
}

func TestMVRegionOverlapsBothDimensions(t *testing.T) {
	r1 := MVRegion{Keys: KeyRange{Min: intKey(1), Max: intKey(10)}, Lifespan: Lifespan{Begin: 1, End: 5}}
	r2 := MVRegion{Keys: KeyRange{Min: intKey(20), Max: intKey(30)}, Lifespan: Lifespan{Begin: 1, End: 5}}
	assert.False(t, r1.Overlaps(r2), "key ranges disjoint")

	r3 := MVRegion{Keys: KeyRange{Min: intKey(5), Max: intKey(15)}, Lifespan: Lifespan{Begin: 10, End: 20}}
	assert.False(t, r1.Overlaps(r3), "lifespans disjoint")

	r4 := MVRegion{Keys: KeyRange{Min: intKey(5), Max: intKey(15)}, Lifespan: Lifespan{Begin: 3, End: 8}}
	assert.True(t, r1.Overlaps(r4))
}

func TestMVRegionUnionIncludeTime(t *testing.T) {
	r1 := MVRegion{Keys: KeyRange{Min: intKey(1), Max: intKey(10)}, Lifespan: Lifespan{Begin: 1, End: 5}}
	r2 := MVRegion{Keys: KeyRange{Min: intKey(5), Max: intKey(20)}, Lifespan: Alive(version.V(3))}

	u := r1.Union(r2, true)
	assert.Equal(t, intKey(1), u.Keys.Min)
	assert.Equal(t, intKey(20), u.Keys.Max)
	assert.True(t, u.Lifespan.IsAlive())

	uNoTime := r1.Union(r2, false)
	assert.Equal(t, r1.Lifespan, uNoTime.Lifespan)
}
