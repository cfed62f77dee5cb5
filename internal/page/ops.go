package page

import (
	"sort"

	"mvtree/internal/descriptor"
	"mvtree/internal/kv"
)

// search returns the smallest index i such that less(i) is true, or
// len(n) if no such index exists — a thin wrapper around sort.Search
// kept here so every lookup in the package goes through one place.
func search(n int, less func(i int) bool) int {
	return sort.Search(n, less)
}

// FindKey returns the index of the first item whose key is >= k
// (lower_bound), and whether that item's key equals k exactly. Leaf
// items must be kept sorted by key (ties broken by Lifespan.Begin in
// MV mode, handled by callers before insertion).
func (n *Node) FindKey(k kv.Key) (idx int, exact bool) {
	idx = search(len(n.Items), func(i int) bool { return n.Items[i].Key.Compare(k) >= 0 })
	exact = idx < len(n.Items) && n.Items[idx].Key.Compare(k) == 0
	return idx, exact
}

// InsertLeafEntry inserts e into the sorted Items slice at its
// ordered position and returns that position. Duplicate keys are
// appended after any existing entries with the same key (stable
// ordering for duplicate-key leaves and for MV lifespan chains).
func (n *Node) InsertLeafEntry(e LeafEntry) int {
	idx := search(len(n.Items), func(i int) bool { return n.Items[i].Key.Compare(e.Key) > 0 })
	n.Items = append(n.Items, LeafEntry{})
	copy(n.Items[idx+1:], n.Items[idx:])
	n.Items[idx] = e
	return idx
}

// RemoveLeafEntryAt deletes the item at idx.
func (n *Node) RemoveLeafEntryAt(idx int) {
	n.Items = append(n.Items[:idx], n.Items[idx+1:]...)
}

// ChooseChild returns the index of the child whose separator is the
// last one <= k, i.e. the subtree responsible for k (§4.2's
// chooseSubtree). Children must be sorted ascending by separator key
// and the first child's separator is the implicit -infinity bound.
func (n *Node) ChooseChild(k kv.Key) int {
	idx := search(len(n.Children), func(i int) bool { return n.Children[i].Sep.Key.Compare(k) > 0 })
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// ChooseChildMV is ChooseChild's MV analogue: route by key first, then
// require the child's separator lifespan to contain the reference
// version (the predecessor chain is consulted by the caller when it
// does not).
func (n *Node) ChooseChildMV(k kv.Key, at descriptor.Lifespan) int {
	best := -1
	for i, c := range n.Children {
		if c.MVSep.Key.Compare(k) > 0 {
			break
		}
		if c.MVSep.Lifespan.Overlaps(at) {
			best = i
		}
	}
	if best == -1 && len(n.Children) > 0 {
		// No live child covers the reference version at this key —
		// fall back to the last entry whose key bound qualifies; the
		// caller decides whether to follow a predecessor link instead.
		idx := search(len(n.Children), func(i int) bool { return n.Children[i].MVSep.Key.Compare(k) > 0 })
		if idx > 0 {
			best = idx - 1
		} else {
			best = 0
		}
	}
	return best
}

// InsertChild inserts e into Children at its ordered position (by
// Sep.Key) and returns that position.
func (n *Node) InsertChild(e IndexEntry) int {
	idx := search(len(n.Children), func(i int) bool { return n.Children[i].Sep.Key.Compare(e.Sep.Key) > 0 })
	n.Children = append(n.Children, IndexEntry{})
	copy(n.Children[idx+1:], n.Children[idx:])
	n.Children[idx] = e
	return idx
}

// InsertChildMV is InsertChild's MV analogue, ordering by MVSeparator.
func (n *Node) InsertChildMV(e IndexEntry) int {
	idx := search(len(n.Children), func(i int) bool { return n.Children[i].MVSep.Compare(e.MVSep) > 0 })
	n.Children = append(n.Children, IndexEntry{})
	copy(n.Children[idx+1:], n.Children[idx:])
	n.Children[idx] = e
	return idx
}

// RemoveChildAt deletes the child entry at idx.
func (n *Node) RemoveChildAt(idx int) {
	n.Children = append(n.Children[:idx], n.Children[idx+1:]...)
}

// InsertLeafEntryMV inserts e ordered by (Key, Lifespan.Begin) — the MV
// leaf's sort order, which must distinguish successive historical
// versions of the same key (§4.1's MVSeparator tie-break rule applies
// symmetrically to leaf entries).
func (n *Node) InsertLeafEntryMV(e LeafEntry) int {
	idx := search(len(n.Items), func(i int) bool {
		if c := n.Items[i].Key.Compare(e.Key); c != 0 {
			return c > 0
		}
		return n.Items[i].Lifespan.Begin.Compare(e.Lifespan.Begin) > 0
	})
	n.Items = append(n.Items, LeafEntry{})
	copy(n.Items[idx+1:], n.Items[idx:])
	n.Items[idx] = e
	return idx
}

// LiveItemCount returns the number of leaf items currently alive.
func (n *Node) LiveItemCount() int {
	c := 0
	for _, it := range n.Items {
		if it.Lifespan.IsAlive() {
			c++
		}
	}
	return c
}

// LiveChildCount returns the number of child entries currently alive.
func (n *Node) LiveChildCount() int {
	c := 0
	for _, e := range n.Children {
		if e.MVSep.Lifespan.IsAlive() {
			c++
		}
	}
	return c
}

// LiveItems returns a fresh slice of n's currently-alive leaf entries,
// key order preserved.
func (n *Node) LiveItems() []LeafEntry {
	out := make([]LeafEntry, 0, n.LiveItemCount())
	for _, it := range n.Items {
		if it.Lifespan.IsAlive() {
			out = append(out, it)
		}
	}
	return out
}

// LiveChildren returns a fresh slice of n's currently-alive child
// entries, key order preserved.
func (n *Node) LiveChildren() []IndexEntry {
	out := make([]IndexEntry, 0, n.LiveChildCount())
	for _, e := range n.Children {
		if e.MVSep.Lifespan.IsAlive() {
			out = append(out, e)
		}
	}
	return out
}

// MinKey returns the lowest key carried by the node: the first item's
// key on a leaf, the first child's separator key on an inner node.
// Reports ok=false for an empty node. Single-version trees only; MV
// trees must use MinKeyMV (inner entries route on MVSep, not Sep).
func (n *Node) MinKey() (k kv.Key, ok bool) {
	if n.IsLeaf() {
		if len(n.Items) == 0 {
			return nil, false
		}
		return n.Items[0].Key, true
	}
	if len(n.Children) == 0 {
		return nil, false
	}
	return n.Children[0].Sep.Key, true
}

// MinKeyMV is MinKey's MV analogue, reading the MVSeparator's key.
// Children remain key-sorted regardless of any liveness interleaving
// InsertChildMV introduces among same-key entries, so index 0 is
// always the lowest key present.
func (n *Node) MinKeyMV() (k kv.Key, ok bool) {
	if n.IsLeaf() {
		if len(n.Items) == 0 {
			return nil, false
		}
		return n.Items[0].Key, true
	}
	if len(n.Children) == 0 {
		return nil, false
	}
	return n.Children[0].MVSep.Key, true
}
