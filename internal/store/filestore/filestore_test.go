package filestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvtree/codec/intkey"
	"mvtree/codec/stringvalue"
	"mvtree/internal/page"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	codec, err := page.NewCodec(intkey.Codec{}, stringvalue.Codec{}, 4096, 0.5, false, false)
	require.NoError(t, err)
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), codec, 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFilestoreInsertGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	id, err := s.Reserve()
	require.NoError(t, err)

	n := page.NewLeaf(id)
	n.InsertLeafEntry(page.LeafEntry{Key: intkey.Key(1), Value: stringvalue.Value("a")})
	require.NoError(t, s.Insert(n))

	got, err := s.Get(id)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, intkey.Key(1), got.Items[0].Key)
}

func TestFilestoreMissCountedThenCachedOnNextGet(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.Reserve()
	require.NoError(t, s.Insert(page.NewLeaf(id)))

	// Insert populates the cache directly, so force a miss by evicting.
	require.NoError(t, s.Remove(id))

	_, err := s.Get(id)
	require.NoError(t, err)
	st := s.Stats()
	assert.Equal(t, uint64(1), st.Misses)

	_, err = s.Get(id)
	require.NoError(t, err)
	st = s.Stats()
	assert.Equal(t, uint64(1), st.Hits)
}
