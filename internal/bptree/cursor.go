package bptree

import (
	"mvtree/internal/kv"
	"mvtree/internal/page"
)

// Cursor is a forward range cursor over leaf next-neighbor links,
// following the standard Go iterator shape (Next/Key/Value/Err — the
// database/sql.Rows convention) rather than an eager SearchRange that
// materializes the whole result as two slices; an on-disk tree can
// outgrow what that shape can hold.
type Cursor struct {
	tree    *Tree
	node    *page.Node
	idx     int
	max     kv.Key
	started bool
	done    bool
	err     error
}

// Query returns a cursor over [min, max] (max == nil means unbounded
// above). An empty tree yields an exhausted cursor with no error — per
// SPEC_FULL.md's Open Question decision, an empty range scan is not a
// diagnosable condition.
func (t *Tree) Query(min, max kv.Key) (*Cursor, error) {
	c := &Cursor{tree: t, max: max}
	if t.root == 0 {
		c.done = true
		return c, nil
	}
	if min == nil {
		leaf, err := t.firstLeaf()
		if err != nil {
			return nil, err
		}
		c.node, c.idx = leaf, 0
		return c, nil
	}
	leaf, _, err := t.findLeaf(min)
	if err != nil {
		return nil, err
	}
	idx, _ := leaf.FindKey(min)
	c.node, c.idx = leaf, idx
	return c, nil
}

// Scan returns a cursor over every entry in the tree, in key order.
func (t *Tree) Scan() (*Cursor, error) { return t.Query(nil, nil) }

// Next advances the cursor and reports whether a further (key, value)
// pair is available.
func (c *Cursor) Next() bool {
	if c.done || c.err != nil {
		return false
	}
	if c.started {
		c.idx++
	}
	c.started = true
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
	if c.max != nil && c.node.Items[c.idx].Key.Compare(c.max) > 0 {
		c.done = true
		return false
	}
	return true
}

// Key returns the current entry's key. Valid only after Next returns true.
func (c *Cursor) Key() kv.Key { return c.node.Items[c.idx].Key }

// Value returns the current entry's value. Valid only after Next returns true.
func (c *Cursor) Value() kv.Value { return c.node.Items[c.idx].Value }

// Err returns the first error encountered while advancing, if any.
func (c *Cursor) Err() error { return c.err }
