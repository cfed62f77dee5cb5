package spillqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvtree/codec/intkey"
	"mvtree/codec/stringvalue"
	"mvtree/internal/page"
)

func TestSpillAndDrainRoundTrip(t *testing.T) {
	q, err := Open(t.TempDir(), intkey.Codec{}, stringvalue.Codec{})
	require.NoError(t, err)

	batch := []page.BufferedElement{
		{Key: intkey.Key(1), Value: stringvalue.Value("one"), Version: 3, Op: page.OpInsert},
		{Key: intkey.Key(2), Value: stringvalue.Value("two"), Version: 4, Op: page.OpDelete},
	}
	_, err = q.Spill(batch)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Depth())

	got, err := q.DrainNext()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, intkey.Key(1), got[0].Key)
	assert.Equal(t, page.OpDelete, got[1].Op)
	assert.Equal(t, 0, q.Depth())
}

func TestDrainNextEmptyReturnsNil(t *testing.T) {
	q, err := Open(t.TempDir(), intkey.Codec{}, stringvalue.Codec{})
	require.NoError(t, err)

	got, err := q.DrainNext()
	require.NoError(t, err)
	assert.Nil(t, got)
}
