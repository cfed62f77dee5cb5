package mvtree

import (
	"mvtree/internal/kv"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// Cursor is a reference-point range cursor: it walks the leaf chain
// that was in effect at a given version, skipping entries not alive
// at that version, in the same Next/Key/Value/Err shape as
// internal/bptree.Cursor. Physical pages are never deleted in place —
// a key-split repartitions a node's full alive+dead entry set and
// threads Next through the result, so following Next from whatever
// leaf findLeafAtVersion lands on reaches every entry that was live at
// at, even across later splits of that neighborhood.
type Cursor struct {
	tree    *Tree
	at      version.V
	node    *page.Node
	idx     int
	max     kv.Key
	started bool
	done    bool
	err     error
}

// Query returns a cursor over [min, max] as of version at (max == nil
// means unbounded above, min == nil means start from the beginning).
func (t *Tree) Query(min, max kv.Key, at version.V) (*Cursor, error) {
	c := &Cursor{tree: t, max: max, at: at}
	if t.liveRoot == 0 && at >= t.current {
		c.done = true
		return c, nil
	}
	if min == nil {
		leaf, err := t.firstLeafAtVersion(at)
		if err != nil {
			return nil, err
		}
		if leaf == nil {
			c.done = true
			return c, nil
		}
		c.node, c.idx = leaf, -1
		return c, nil
	}
	leaf, err := t.findLeafAtVersion(min, at)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		c.done = true
		return c, nil
	}
	idx, _ := leaf.FindKey(min)
	c.node, c.idx = leaf, idx-1
	return c, nil
}

// Scan returns a cursor over every entry alive as of version at.
func (t *Tree) Scan(at version.V) (*Cursor, error) { return t.Query(nil, nil, at) }

// firstLeafAtVersion descends the leftmost spine of the root that was
// live as of at, following predecessor links where a node's current
// generation doesn't cover at.
func (t *Tree) firstLeafAtVersion(at version.V) (*page.Node, error) {
	rootID, err := t.rootForVersion(at)
	if err != nil {
		return nil, err
	}
	if rootID == 0 {
		return nil, nil
	}
	id := rootID
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return nil, err
		}
		if n.IsLeaf() {
			return n, nil
		}
		best := -1
		for i, c := range n.Children {
			if c.MVSep.Lifespan.Contains(at) {
				best = i
				break
			}
		}
		if best >= 0 {
			id = n.Children[best].Child
			continue
		}
		if len(n.Predecessors) == 0 {
			return nil, nil
		}
		id = n.Predecessors[0].Child
	}
}

// Next advances the cursor, skipping any entry not alive at the
// cursor's reference version, and reports whether a further pair is
// available.
func (c *Cursor) Next() bool {
	if c.done || c.err != nil {
		return false
	}
	for {
		c.idx++
		for c.node != nil && c.idx >= len(c.node.Items) {
			if c.node.Next == 0 {
				c.node = nil
				break
			}
			n, err := c.tree.store.Get(c.node.Next)
			if err != nil {
				c.err = err
				return false
			}
			c.node, c.idx = n, 0
		}
		if c.node == nil {
			c.done = true
			return false
		}
		item := c.node.Items[c.idx]
		if c.max != nil && item.Key.Compare(c.max) > 0 {
			c.done = true
			return false
		}
		if item.Lifespan.Contains(c.at) {
			return true
		}
	}
}

// Key returns the current entry's key. Valid only after Next returns true.
func (c *Cursor) Key() kv.Key { return c.node.Items[c.idx].Key }

// Value returns the current entry's value. Valid only after Next returns true.
func (c *Cursor) Value() kv.Value { return c.node.Items[c.idx].Value }

// Err returns the first error encountered while advancing, if any.
func (c *Cursor) Err() error { return c.err }
