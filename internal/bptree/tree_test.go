package bptree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvtree/codec/intkey"
	"mvtree/codec/stringvalue"
	"mvtree/internal/mvlog"
	"mvtree/internal/page"
	"mvtree/internal/store/memstore"
)

func newTestTree(t *testing.T, blockSize int) *Tree {
	t.Helper()
	codec, err := page.NewCodec(intkey.Codec{}, stringvalue.Codec{}, blockSize, 0.5, false, false)
	require.NoError(t, err)
	return Open(memstore.New(), codec, 0, false, mvlog.Nop())
}

func TestInsertExactRoundTrip(t *testing.T) {
	tr := newTestTree(t, 256)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("a")))
	require.NoError(t, tr.Insert(intkey.Key(2), stringvalue.Value("b")))

	v, ok, err := tr.Exact(intkey.Key(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stringvalue.Value("a"), v)

	_, ok, err = tr.Exact(intkey.Key(99))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertDuplicateRejected(t *testing.T) {
	tr := newTestTree(t, 256)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("a")))
	err := tr.Insert(intkey.Key(1), stringvalue.Value("b"))
	assert.Error(t, err)
}

func TestInsertManyTriggersSplits(t *testing.T) {
	tr := newTestTree(t, 200)
	const n = 500
	for i := 0; i < n; i++ {
		require.NoError(t, tr.Insert(intkey.Key(i), stringvalue.Value("v")))
	}
	assert.NotEqual(t, 0, uint64(tr.Root()))

	for i := 0; i < n; i++ {
		v, ok, err := tr.Exact(intkey.Key(i))
		require.NoError(t, err)
		require.True(t, ok, "key %d missing", i)
		assert.Equal(t, stringvalue.Value("v"), v)
	}
}

func TestScanReturnsSortedKeys(t *testing.T) {
	tr := newTestTree(t, 200)
	order := []int{5, 1, 9, 3, 7, 2, 8, 4, 6, 0}
	for _, k := range order {
		require.NoError(t, tr.Insert(intkey.Key(k), stringvalue.Value("v")))
	}

	cur, err := tr.Scan()
	require.NoError(t, err)
	var got []int
	for cur.Next() {
		got = append(got, int(cur.Key().(intkey.Key)))
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestQueryBoundedRange(t *testing.T) {
	tr := newTestTree(t, 200)
	for i := 0; i < 20; i++ {
		require.NoError(t, tr.Insert(intkey.Key(i), stringvalue.Value("v")))
	}

	cur, err := tr.Query(intkey.Key(5), intkey.Key(10))
	require.NoError(t, err)
	var got []int
	for cur.Next() {
		got = append(got, int(cur.Key().(intkey.Key)))
	}
	assert.Equal(t, []int{5, 6, 7, 8, 9, 10}, got)
}

func TestQueryOnEmptyTreeYieldsNoRows(t *testing.T) {
	tr := newTestTree(t, 200)
	cur, err := tr.Scan()
	require.NoError(t, err)
	assert.False(t, cur.Next())
	assert.NoError(t, cur.Err())
}

func TestUpdateReplacesValue(t *testing.T) {
	tr := newTestTree(t, 200)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("a")))
	require.NoError(t, tr.Update(intkey.Key(1), stringvalue.Value("z")))
	v, ok, err := tr.Exact(intkey.Key(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stringvalue.Value("z"), v)
}

func TestRemoveThenExactMisses(t *testing.T) {
	tr := newTestTree(t, 200)
	for i := 0; i < 50; i++ {
		require.NoError(t, tr.Insert(intkey.Key(i), stringvalue.Value("v")))
	}
	for i := 0; i < 50; i += 2 {
		require.NoError(t, tr.Remove(intkey.Key(i)))
	}
	for i := 0; i < 50; i++ {
		_, ok, err := tr.Exact(intkey.Key(i))
		require.NoError(t, err)
		assert.Equal(t, i%2 != 0, ok)
	}
}

func TestRemoveAllEmptiesTree(t *testing.T) {
	tr := newTestTree(t, 200)
	keys := []int{1, 2, 3, 4, 5}
	for _, k := range keys {
		require.NoError(t, tr.Insert(intkey.Key(k), stringvalue.Value("v")))
	}
	for _, k := range keys {
		require.NoError(t, tr.Remove(intkey.Key(k)))
	}
	assert.True(t, tr.IsEmpty())
}

func TestRemoveMissingKeyErrors(t *testing.T) {
	tr := newTestTree(t, 200)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("a")))
	assert.Error(t, tr.Remove(intkey.Key(2)))
}

func TestAllowDuplicatesInsertsBothEntries(t *testing.T) {
	codec, err := page.NewCodec(intkey.Codec{}, stringvalue.Codec{}, 200, 0.5, false, false)
	require.NoError(t, err)
	tr := Open(memstore.New(), codec, 0, true, mvlog.Nop())

	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("a")))
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("b")))

	cur, err := tr.Scan()
	require.NoError(t, err)
	count := 0
	for cur.Next() {
		count++
	}
	assert.Equal(t, 2, count)
}

func dupItems(keys ...int64) []page.LeafEntry {
	out := make([]page.LeafEntry, len(keys))
	for i, k := range keys {
		out[i] = page.LeafEntry{Key: intkey.Key(k), Value: stringvalue.Value("v")}
	}
	return out
}

func TestDupAwareSplitIndexSplitsBeforeEqualRun(t *testing.T) {
	idx := dupAwareSplitIndex(dupItems(5, 5, 5, 5, 5), true)
	require.Equal(t, 1, idx)
}

func TestDupAwareSplitIndexFallsBackToMedianWithoutRun(t *testing.T) {
	idx := dupAwareSplitIndex(dupItems(1, 2, 3, 4, 5), true)
	require.Equal(t, 2, idx)
}

func TestDupAwareSplitIndexIgnoresRunOutsideDuplicateMode(t *testing.T) {
	idx := dupAwareSplitIndex(dupItems(5, 5, 5, 5, 5), false)
	require.Equal(t, 2, idx)
}
