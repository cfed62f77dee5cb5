package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvtree/internal/page"
)

func TestReserveInsertGet(t *testing.T) {
	s := New()
	id, err := s.Reserve()
	require.NoError(t, err)

	n := page.NewLeaf(id)
	require.NoError(t, s.Insert(n))

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(page.ID(99))
	assert.Error(t, err)
}

func TestUpdateAndRemove(t *testing.T) {
	s := New()
	id, _ := s.Reserve()
	require.NoError(t, s.Insert(page.NewLeaf(id)))

	n, _ := s.Get(id)
	n.Next = page.ID(5)
	require.NoError(t, s.Update(n))

	got, _ := s.Get(id)
	assert.Equal(t, page.ID(5), got.Next)

	require.NoError(t, s.Remove(id))
	_, err := s.Get(id)
	assert.Error(t, err)
}

func TestStatsTrackHitsAndMisses(t *testing.T) {
	s := New()
	id, _ := s.Reserve()
	_ = s.Insert(page.NewLeaf(id))
	_, _ = s.Get(id)
	_, _ = s.Get(page.ID(404))

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}
