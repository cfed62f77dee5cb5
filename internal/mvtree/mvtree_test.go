package mvtree

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

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	codec, err := page.NewCodec(intkey.Codec{}, stringvalue.Codec{}, 200, 0.5, true, false)
	require.NoError(t, err)
	tr, err := Open(memstore.New(), codec, 0, 1, 0, DefaultConfig(), mvlog.Nop())
	require.NoError(t, err)
	return tr
}

func TestInsertExactRoundTrip(t *testing.T) {
	tr := newTestTree(t)
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
	tr := newTestTree(t)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("a")))
	assert.Error(t, tr.Insert(intkey.Key(1), stringvalue.Value("b")))
}

func TestUpdatePreservesHistoricalValue(t *testing.T) {
	tr := newTestTree(t)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("a")))
	v1 := tr.CurrentVersion()

	tr.Advance()
	require.NoError(t, tr.Update(intkey.Key(1), stringvalue.Value("b")))

	cur, ok, err := tr.Exact(intkey.Key(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stringvalue.Value("b"), cur)

	old, ok, err := tr.ExactAt(intkey.Key(1), v1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stringvalue.Value("a"), old)
}

func TestRemoveKeepsHistoricalVisibility(t *testing.T) {
	tr := newTestTree(t)
	require.NoError(t, tr.Insert(intkey.Key(5), stringvalue.Value("v")))
	v1 := tr.CurrentVersion()

	tr.Advance()
	require.NoError(t, tr.Remove(intkey.Key(5)))

	_, ok, err := tr.Exact(intkey.Key(5))
	require.NoError(t, err)
	assert.False(t, ok)

	old, ok, err := tr.ExactAt(intkey.Key(5), v1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stringvalue.Value("v"), old)
}

func TestRemoveMissingKeyErrors(t *testing.T) {
	tr := newTestTree(t)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("a")))
	assert.Error(t, tr.Remove(intkey.Key(2)))
}

func TestManyInsertsTriggerKeySplits(t *testing.T) {
	tr := newTestTree(t)
	const n = 60
	for i := 0; i < n; i++ {
		require.NoError(t, tr.Insert(intkey.Key(i), stringvalue.Value("v")))
	}
	for i := 0; i < n; i++ {
		v, ok, err := tr.Exact(intkey.Key(i))
		require.NoError(t, err, "key %d", i)
		require.True(t, ok, "key %d missing", i)
		assert.Equal(t, stringvalue.Value("v"), v)
	}
}

// TestVersionSplitPreservesHistory repeatedly updates the same small
// key set across many versions — each update closes an old entry and
// appends a new one, so a leaf's total entry count eventually forces a
// version-split while its live count stays small. Every past value
// must still be reachable at its own version afterward.
func TestVersionSplitPreservesHistory(t *testing.T) {
	tr := newTestTree(t)
	keys := []int{1, 2, 3}
	for _, k := range keys {
		require.NoError(t, tr.Insert(intkey.Key(k), stringvalue.Value("v0")))
	}

	type snapshot struct {
		version version.V
		values  map[int]string
	}
	var snapshots []snapshot

	for round := 1; round <= 12; round++ {
		tr.Advance()
		values := make(map[int]string, len(keys))
		for _, k := range keys {
			val := stringvalue.Value(string(rune('a' + round%26)))
			require.NoError(t, tr.Update(intkey.Key(k), val))
			values[k] = string(val)
		}
		snapshots = append(snapshots, snapshot{version: tr.CurrentVersion(), values: values})
	}

	for _, snap := range snapshots {
		for _, k := range keys {
			v, ok, err := tr.ExactAt(intkey.Key(k), snap.version)
			require.NoError(t, err)
			require.True(t, ok, "key %d missing at version %d", k, snap.version)
			assert.Equal(t, stringvalue.Value(snap.values[k]), v)
		}
	}
}

func TestRemoveTriggersStrongMerge(t *testing.T) {
	tr := newTestTree(t)
	const n = 40
	for i := 0; i < n; i++ {
		require.NoError(t, tr.Insert(intkey.Key(i), stringvalue.Value("v")))
	}
	tr.Advance()
	for i := 0; i < n; i += 2 {
		require.NoError(t, tr.Remove(intkey.Key(i)))
	}

	for i := 0; i < n; i++ {
		_, ok, err := tr.Exact(intkey.Key(i))
		require.NoError(t, err)
		assert.Equal(t, i%2 != 0, ok, "key %d", i)
	}
}

func TestHistoryReturnsEveryVersion(t *testing.T) {
	tr := newTestTree(t)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("v0")))
	for i := 1; i <= 4; i++ {
		tr.Advance()
		require.NoError(t, tr.Update(intkey.Key(1), stringvalue.Value(string(rune('0'+i)))))
	}

	cur, err := tr.History(intkey.Key(1))
	require.NoError(t, err)
	var values []string
	for cur.Next() {
		values = append(values, string(cur.Value().(stringvalue.Value)))
	}
	require.NoError(t, cur.Err())
	// A version-split can leave the still-alive entry physically
	// duplicated (closed in the old generation, alive in the new one),
	// so the count is a lower bound rather than an exact five.
	require.GreaterOrEqual(t, len(values), 5)
	assert.Equal(t, "v0", values[0])
	assert.Equal(t, "4", values[len(values)-1])
}

func TestQueryAtVersionSeesOnlyThenAliveKeys(t *testing.T) {
	tr := newTestTree(t)
	require.NoError(t, tr.Insert(intkey.Key(1), stringvalue.Value("v")))
	require.NoError(t, tr.Insert(intkey.Key(2), stringvalue.Value("v")))
	v1 := tr.CurrentVersion()

	tr.Advance()
	require.NoError(t, tr.Insert(intkey.Key(3), stringvalue.Value("v")))
	require.NoError(t, tr.Remove(intkey.Key(1)))

	cur, err := tr.Query(nil, nil, v1)
	require.NoError(t, err)
	var keys []int
	for cur.Next() {
		keys = append(keys, int(cur.Key().(intkey.Key)))
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []int{1, 2}, keys)

	cur, err = tr.Scan(tr.CurrentVersion())
	require.NoError(t, err)
	keys = nil
	for cur.Next() {
		keys = append(keys, int(cur.Key().(intkey.Key)))
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []int{2, 3}, keys)
}

func TestRunPurgeReclaimsClosedGenerations(t *testing.T) {
	tr := newTestTree(t)
	for i := 0; i < 30; i++ {
		require.NoError(t, tr.Insert(intkey.Key(i), stringvalue.Value("v")))
	}
	tr.Advance()
	for i := 0; i < 30; i += 2 {
		require.NoError(t, tr.Update(intkey.Key(i), stringvalue.Value("w")))
	}

	if tr.PendingPurgeCount() == 0 {
		t.Skip("no reorg produced a purge candidate at this capacity")
	}
	reclaimed, err := tr.RunPurge(tr.CurrentVersion() + 1)
	require.NoError(t, err)
	assert.Greater(t, reclaimed, 0)
	assert.Equal(t, 0, tr.PendingPurgeCount())
}
