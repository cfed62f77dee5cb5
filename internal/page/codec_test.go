package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvtree/codec/intkey"
	"mvtree/codec/stringvalue"
	"mvtree/internal/descriptor"
	"mvtree/internal/version"
)

func TestCodecDerivesCapacityBounds(t *testing.T) {
	c, err := NewCodec(intkey.Codec{}, stringvalue.Codec{}, 4096, 0.5, false, false)
	require.NoError(t, err)
	assert.Greater(t, c.BLeaf, 1)
	assert.Greater(t, c.BInner, 1)
	assert.LessOrEqual(t, c.DLeaf, c.BLeaf/2+1)
}

func TestNewCodecRejectsTooSmallBlock(t *testing.T) {
	_, err := NewCodec(intkey.Codec{}, stringvalue.Codec{}, 16, 0.5, false, false)
	assert.Error(t, err)
}

func TestLeafRoundTripSingleVersion(t *testing.T) {
	c, err := NewCodec(intkey.Codec{}, stringvalue.Codec{}, 4096, 0.5, false, false)
	require.NoError(t, err)

	n := NewLeaf(ID(7))
	n.Next = ID(8)
	n.InsertLeafEntry(LeafEntry{Key: intkey.Key(3), Value: stringvalue.Value("three")})
	n.InsertLeafEntry(LeafEntry{Key: intkey.Key(1), Value: stringvalue.Value("one")})

	raw, err := c.Encode(n)
	require.NoError(t, err)
	assert.Len(t, raw, 4096)

	got, err := c.Decode(ID(7), raw)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, intkey.Key(1), got.Items[0].Key)
	assert.Equal(t, intkey.Key(3), got.Items[1].Key)
	assert.Equal(t, stringvalue.Value("one"), got.Items[0].Value)
	assert.Equal(t, ID(8), got.Next)
}

func TestLeafRoundTripMultiVersion(t *testing.T) {
	c, err := NewCodec(intkey.Codec{}, stringvalue.Codec{}, 4096, 0.5, true, false)
	require.NoError(t, err)

	n := NewLeaf(ID(1))
	n.InsertLeafEntry(LeafEntry{
		Key:      intkey.Key(42),
		Value:    stringvalue.Value("payload"),
		Lifespan: descriptor.Alive(version.V(3)),
	})

	raw, err := c.Encode(n)
	require.NoError(t, err)
	got, err := c.Decode(ID(1), raw)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Lifespan.IsAlive())
	assert.Equal(t, version.V(3), got.Items[0].Lifespan.Begin)
}

func TestInnerRoundTripWeighted(t *testing.T) {
	c, err := NewCodec(intkey.Codec{}, stringvalue.Codec{}, 4096, 0.5, true, true)
	require.NoError(t, err)

	n := NewInner(ID(9), 1)
	n.InsertChildMV(IndexEntry{
		Child: ID(10),
		MVSep: descriptor.MVSeparator{Key: intkey.Key(5), Lifespan: descriptor.Alive(version.V(1))},
		W:     3, T: 7,
	})

	raw, err := c.Encode(n)
	require.NoError(t, err)
	got, err := c.Decode(ID(9), raw)
	require.NoError(t, err)
	require.Len(t, got.Children, 1)
	assert.Equal(t, ID(10), got.Children[0].Child)
	assert.Equal(t, int64(3), got.Children[0].W)
	assert.Equal(t, int64(7), got.Children[0].T)
}

func TestOverflowUnderflowDetection(t *testing.T) {
	c, err := NewCodec(intkey.Codec{}, stringvalue.Codec{}, 200, 0.5, false, false)
	require.NoError(t, err)

	n := NewLeaf(ID(1))
	assert.True(t, c.IsUnderflowLeaf(n))
	for i := 0; i < c.BLeaf+1; i++ {
		n.InsertLeafEntry(LeafEntry{Key: intkey.Key(i), Value: stringvalue.Value("x")})
	}
	assert.True(t, c.IsOverflowLeaf(n))
}
