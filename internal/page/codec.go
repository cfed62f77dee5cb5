package page

import (
	"bytes"
	"encoding/binary"
	"math"

	"mvtree/internal/kv"
	"mvtree/internal/mverr"
)

// MaxPredecessors bounds the predecessor list reserved for in MV mode:
// a node gains a second predecessor only when it is created by a
// strong merge or merge-key-split (§4.4.4), and never more than two.
const MaxPredecessors = 2

// Codec derives the page capacity bounds (B, D per §4.2/§4.3) from the
// collaborator codecs and a fixed block size, then (de)serializes
// Node values against that fixed layout. One Codec is shared by every
// page of a given tree.
type Codec struct {
	KeyCodec   kv.KeyCodec
	ValueCodec kv.ValueCodec
	BlockSize  int
	// MinOccupancy is the minimum fraction of B an underflowed node
	// must be topped back up to re-enter, e.g. 0.5 for the classic
	// half-full B+-tree bound.
	MinOccupancy float64
	// MultiVersion selects the MV leaf/inner entry layout (lifespan
	// fields, predecessor reservation) over the single-version one.
	MultiVersion bool
	// Weighted additionally reserves the w/t counters MV-Tree-Plus
	// carries on every index entry (§4.5); only meaningful alongside
	// MultiVersion.
	Weighted bool

	BLeaf, DLeaf   int
	BInner, DInner int

	leafEntrySize  int
	innerEntrySize int
}

// NewCodec validates the collaborator codecs against blockSize and
// derives the page capacity bounds. It fails if even a single entry of
// either kind cannot fit in a page, since no split could ever shrink a
// node below that floor.
func NewCodec(kc kv.KeyCodec, vc kv.ValueCodec, blockSize int, minOccupancy float64, multiVersion, weighted bool) (*Codec, error) {
	c := &Codec{
		KeyCodec:     kc,
		ValueCodec:   vc,
		BlockSize:    blockSize,
		MinOccupancy: minOccupancy,
		MultiVersion: multiVersion,
		Weighted:     weighted,
	}

	c.leafEntrySize = kc.MaxSize() + vc.MaxSize()
	c.innerEntrySize = 8 + kc.MaxSize()
	if multiVersion {
		c.leafEntrySize += lifespanWireSize
		c.innerEntrySize += lifespanWireSize
		if weighted {
			c.innerEntrySize += 16 // w, t int64 weight counters
		}
	}

	predReserve := 0
	if multiVersion {
		predReserve = MaxPredecessors * c.innerEntrySize
	}

	leafBudget := blockSize - baseHeaderSize
	innerBudget := blockSize - baseHeaderSize - predReserve
	if leafBudget < c.leafEntrySize {
		return nil, mverr.InvalidInput("block size %d too small to fit a single leaf entry of size %d", blockSize, c.leafEntrySize)
	}
	if innerBudget < c.innerEntrySize {
		return nil, mverr.InvalidInput("block size %d too small to fit a single inner entry (with predecessor reserve) of size %d", blockSize, c.innerEntrySize)
	}

	c.BLeaf = leafBudget / c.leafEntrySize
	c.BInner = innerBudget / c.innerEntrySize
	c.DLeaf = int(math.Ceil(float64(c.BLeaf) * minOccupancy))
	c.DInner = int(math.Ceil(float64(c.BInner) * minOccupancy))
	if c.DLeaf < 1 {
		c.DLeaf = 1
	}
	if c.DInner < 1 {
		c.DInner = 1
	}
	return c, nil
}

// IsOverflowLeaf reports whether n has grown past its leaf capacity
// and must be split.
func (c *Codec) IsOverflowLeaf(n *Node) bool { return n.Count() > c.BLeaf }

// IsOverflowInner reports whether n has grown past its inner capacity.
func (c *Codec) IsOverflowInner(n *Node) bool { return n.Count() > c.BInner }

// IsUnderflowLeaf reports whether a non-root leaf has fallen below its
// minimum occupancy and must be merged or redistributed.
func (c *Codec) IsUnderflowLeaf(n *Node) bool { return n.Count() < c.DLeaf }

// IsUnderflowInner is IsUnderflowLeaf's inner-node analogue.
func (c *Codec) IsUnderflowInner(n *Node) bool { return n.Count() < c.DInner }

// Encode serializes n into a fixed BlockSize byte slice.
//
// Layout: [Header][predecessors (MV only, up to MaxPredecessors
// entries)][entries...], zero-padded to BlockSize.
func (c *Codec) Encode(n *Node) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(c.BlockSize)

	h := Header{Kind: n.Kind, Level: uint16(n.Level), Next: n.Next}
	if n.IsLeaf() {
		h.Count = uint16(len(n.Items))
	} else {
		h.Count = uint16(len(n.Children))
	}
	if c.MultiVersion {
		h.PredCount = uint16(len(n.Predecessors))
	}
	if err := writeHeader(buf, h); err != nil {
		return nil, err
	}

	if c.MultiVersion {
		for _, p := range n.Predecessors {
			if err := c.writeIndexEntry(buf, p); err != nil {
				return nil, err
			}
		}
	}

	if n.IsLeaf() {
		for _, it := range n.Items {
			if err := c.writeLeafEntry(buf, it); err != nil {
				return nil, err
			}
		}
	} else {
		for _, e := range n.Children {
			if err := c.writeIndexEntry(buf, e); err != nil {
				return nil, err
			}
		}
	}

	out := buf.Bytes()
	if len(out) > c.BlockSize {
		return nil, mverr.Corrupted("encoded page %d exceeds block size: %d > %d", n.ID, len(out), c.BlockSize)
	}
	padded := make([]byte, c.BlockSize)
	copy(padded, out)
	return padded, nil
}

// Decode reverses Encode, reconstructing the Node at id.
func (c *Codec) Decode(id ID, raw []byte) (*Node, error) {
	r := bytes.NewReader(raw)
	h, err := readHeader(r)
	if err != nil {
		return nil, mverr.Corrupted("page %d: decoding header: %v", id, err)
	}

	n := &Node{ID: id, Level: int(h.Level), Kind: h.Kind, Next: h.Next}

	if c.MultiVersion {
		n.Predecessors = make([]IndexEntry, 0, h.PredCount)
		for i := uint16(0); i < h.PredCount; i++ {
			e, err := c.readIndexEntry(r)
			if err != nil {
				return nil, mverr.Corrupted("page %d: decoding predecessor %d: %v", id, i, err)
			}
			n.Predecessors = append(n.Predecessors, e)
		}
	}

	if n.Kind == KindLeaf {
		n.Items = make([]LeafEntry, 0, h.Count)
		for i := uint16(0); i < h.Count; i++ {
			it, err := c.readLeafEntry(r)
			if err != nil {
				return nil, mverr.Corrupted("page %d: decoding leaf entry %d: %v", id, i, err)
			}
			n.Items = append(n.Items, it)
		}
	} else {
		n.Children = make([]IndexEntry, 0, h.Count)
		for i := uint16(0); i < h.Count; i++ {
			e, err := c.readIndexEntry(r)
			if err != nil {
				return nil, mverr.Corrupted("page %d: decoding child entry %d: %v", id, i, err)
			}
			n.Children = append(n.Children, e)
		}
	}
	return n, nil
}

func (c *Codec) writeLeafEntry(buf *bytes.Buffer, it LeafEntry) error {
	if err := c.KeyCodec.Encode(buf, it.Key); err != nil {
		return err
	}
	if err := c.ValueCodec.Encode(buf, it.Value); err != nil {
		return err
	}
	if c.MultiVersion {
		return writeLifespan(buf, it.Lifespan)
	}
	return nil
}

func (c *Codec) readLeafEntry(r *bytes.Reader) (LeafEntry, error) {
	k, err := c.KeyCodec.Decode(r)
	if err != nil {
		return LeafEntry{}, err
	}
	v, err := c.ValueCodec.Decode(r)
	if err != nil {
		return LeafEntry{}, err
	}
	it := LeafEntry{Key: k, Value: v}
	if c.MultiVersion {
		l, err := readLifespan(r)
		if err != nil {
			return LeafEntry{}, err
		}
		it.Lifespan = l
	}
	return it, nil
}

func (c *Codec) writeIndexEntry(buf *bytes.Buffer, e IndexEntry) error {
	if err := binary.Write(buf, binary.BigEndian, uint64(e.Child)); err != nil {
		return err
	}
	if c.MultiVersion {
		if err := c.KeyCodec.Encode(buf, e.MVSep.Key); err != nil {
			return err
		}
		if err := writeLifespan(buf, e.MVSep.Lifespan); err != nil {
			return err
		}
		if c.Weighted {
			if err := binary.Write(buf, binary.BigEndian, e.W); err != nil {
				return err
			}
			if err := binary.Write(buf, binary.BigEndian, e.T); err != nil {
				return err
			}
		}
		return nil
	}
	return c.KeyCodec.Encode(buf, e.Sep.Key)
}

func (c *Codec) readIndexEntry(r *bytes.Reader) (IndexEntry, error) {
	var child uint64
	if err := binary.Read(r, binary.BigEndian, &child); err != nil {
		return IndexEntry{}, err
	}
	e := IndexEntry{Child: ID(child)}
	k, err := c.KeyCodec.Decode(r)
	if err != nil {
		return IndexEntry{}, err
	}
	if c.MultiVersion {
		l, err := readLifespan(r)
		if err != nil {
			return IndexEntry{}, err
		}
		e.MVSep.Key, e.MVSep.Lifespan = k, l
		if c.Weighted {
			if err := binary.Read(r, binary.BigEndian, &e.W); err != nil {
				return IndexEntry{}, err
			}
			if err := binary.Read(r, binary.BigEndian, &e.T); err != nil {
				return IndexEntry{}, err
			}
		}
	} else {
		e.Sep.Key = k
	}
	return e, nil
}
