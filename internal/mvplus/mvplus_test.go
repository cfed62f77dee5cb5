package mvplus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvtree/codec/intkey"
	"mvtree/codec/stringvalue"
	"mvtree/internal/mvlog"
	"mvtree/internal/page"
	"mvtree/internal/store/memstore"
	"mvtree/internal/version"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	codec, err := page.NewCodec(intkey.Codec{}, stringvalue.Codec{}, 2000, 0.5, true, true)
	require.NoError(t, err)
	l, err := Open(memstore.New(), codec, 0, 0, 1, DefaultConfig(), mvlog.Nop())
	require.NoError(t, err)
	return l
}

func newEl(k int64, v string, ver uint64, op Op) Element {
	return Element{Key: intkey.Key(k), Value: stringvalue.Value(v), Version: version.V(ver), Op: op}
}

// exactLive re-descends the live tree by hand, the same shape
// mvtree.Tree.Exact uses, to check a Loader's output without
// depending on any query path this package doesn't itself implement.
func exactLive(t *testing.T, l *Loader, k int64) (string, bool) {
	t.Helper()
	if l.LiveRoot() == 0 {
		return "", false
	}
	id := l.LiveRoot()
	for {
		n, err := l.store.Get(id)
		require.NoError(t, err)
		if n.IsLeaf() {
			for _, it := range n.Items {
				if it.Key.Compare(intkey.Key(k)) == 0 && it.Lifespan.IsAlive() {
					return string(it.Value.(stringvalue.Value)), true
				}
			}
			return "", false
		}
		idx := chooseChildMV(n, intkey.Key(k))
		if idx < 0 {
			return "", false
		}
		id = n.Children[idx].Child
	}
}

func TestBulkLoadIntoEmptyTree(t *testing.T) {
	l := newTestLoader(t)
	require.NoError(t, l.BulkLoad(SliceSource([]Element{
		newEl(1, "a", 1, OpInsert),
		newEl(2, "b", 1, OpInsert),
		newEl(3, "c", 1, OpInsert),
	})))

	for k, want := range map[int64]string{1: "a", 2: "b", 3: "c"} {
		v, ok := exactLive(t, l, k)
		require.True(t, ok, "key %d missing", k)
		assert.Equal(t, want, v)
	}
	_, ok := exactLive(t, l, 99)
	assert.False(t, ok)
}

func TestBulkInsertSingleElementBeforeThreshold(t *testing.T) {
	l := newTestLoader(t)
	require.NoError(t, l.BulkInsert(newEl(7, "x", 1, OpInsert)))
	// Below reducedMemory, the element sits in the root queue and has
	// not yet reached a live page.
	_, ok := exactLive(t, l, 7)
	assert.False(t, ok)

	require.NoError(t, l.drainRootQueue())
	v, ok := exactLive(t, l, 7)
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestBulkLoadManyKeysTriggersReorganization(t *testing.T) {
	l := newTestLoader(t)
	const n = 400
	elements := make([]Element, 0, n)
	for i := int64(0); i < n; i++ {
		elements = append(elements, newEl(i, "v", 1, OpInsert))
	}
	require.NoError(t, l.BulkLoad(SliceSource(elements)))

	for i := int64(0); i < n; i++ {
		v, ok := exactLive(t, l, i)
		require.True(t, ok, "key %d missing after bulk load", i)
		assert.Equal(t, "v", v)
	}
}

func TestBulkLoadUpdateAndDeleteAgainstExistingTree(t *testing.T) {
	l := newTestLoader(t)
	require.NoError(t, l.BulkLoad(SliceSource([]Element{
		newEl(1, "a", 1, OpInsert),
		newEl(2, "b", 1, OpInsert),
	})))

	require.NoError(t, l.BulkLoad(SliceSource([]Element{
		newEl(1, "a2", 2, OpUpdate),
		newEl(2, "", 2, OpDelete),
	})))

	v, ok := exactLive(t, l, 1)
	require.True(t, ok)
	assert.Equal(t, "a2", v)

	_, ok = exactLive(t, l, 2)
	assert.False(t, ok)
}

// TestBulkLoadDeterministic checks that loading the same elements in
// two different arrival orders produces the same final live key set.
func TestBulkLoadDeterministic(t *testing.T) {
	forward := []Element{
		newEl(1, "a", 1, OpInsert),
		newEl(2, "b", 1, OpInsert),
		newEl(3, "c", 1, OpInsert),
		newEl(4, "d", 1, OpInsert),
	}
	reversed := make([]Element, len(forward))
	for i, e := range forward {
		reversed[len(forward)-1-i] = e
	}

	l1 := newTestLoader(t)
	require.NoError(t, l1.BulkLoad(SliceSource(forward)))
	l2 := newTestLoader(t)
	require.NoError(t, l2.BulkLoad(SliceSource(reversed)))

	for _, k := range []int64{1, 2, 3, 4} {
		v1, ok1 := exactLive(t, l1, k)
		v2, ok2 := exactLive(t, l2, k)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, v1, v2)
	}
}

func TestRetiresPriorRootOnSecondBatch(t *testing.T) {
	l := newTestLoader(t)
	require.NoError(t, l.BulkLoad(SliceSource([]Element{
		newEl(1, "a", 1, OpInsert),
	})))
	firstRoot := l.LiveRoot()

	const n = 400
	elements := make([]Element, 0, n)
	for i := int64(2); i < n; i++ {
		elements = append(elements, newEl(i, "v", 2, OpInsert))
	}
	require.NoError(t, l.BulkLoad(SliceSource(elements)))

	if l.LiveRoot() != firstRoot {
		v, ok, err := l.historicalRoots.Exact(versionKey(version.V(1)))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, pageValue(firstRoot), v)
	}
}

func TestFirstWriteMustBeInsert(t *testing.T) {
	l := newTestLoader(t)
	err := l.BulkInsert(newEl(1, "a", 1, OpDelete))
	require.NoError(t, err) // queued, not yet applied
	assert.Error(t, l.drainRootQueue())
}

func TestChooseTokenBounds(t *testing.T) {
	l := newTestLoader(t)
	// Within bounds: no token.
	assert.Equal(t, TokenNone, l.chooseToken(1, false, false, l.minLive(1)+1, l.maxLive(1)-1, 0))
	// Strong weight overflow plus capacity-exhausting op count: key split.
	assert.Equal(t, TokenKeySplit, l.chooseToken(1, false, false, l.maxLiveStrong(1), l.maxLive(1), 0))
	// Underflow with a thin neighbor: plain merge.
	assert.Equal(t, TokenMerge, l.chooseToken(1, false, false, l.minLive(1), 0, 0))
}
