// Package bptree implements the single-version, disk-resident B+-tree
// core: Insert/Remove/Update/Exact/Query over a page.Codec and a
// store.PageStore, grounded on mini-db-engine's findLeaf/Insert/Delete
// path-stack walk (mini-db-engine/internal/btree/tree.go) but
// generalized from its concrete CompositeKey/Record types to the
// kv.Key/kv.Value collaborator interfaces.
package bptree

import (
	"mvtree/internal/descriptor"
	"mvtree/internal/kv"
	"mvtree/internal/mverr"
	"mvtree/internal/mvlog"
	"mvtree/internal/page"
	"mvtree/internal/store"
)

// Tree is a single-version B+-tree. The zero Root (page.ID 0) means
// an empty tree; Insert allocates the first leaf lazily.
type Tree struct {
	store           store.PageStore
	codec           *page.Codec
	root            page.ID
	allowDuplicates bool
	log             mvlog.Logger
}

// Open attaches a Tree to an existing (possibly empty) root page id.
// Pass page.ID(0) for a brand-new tree.
func Open(s store.PageStore, codec *page.Codec, root page.ID, allowDuplicates bool, log mvlog.Logger) *Tree {
	return &Tree{store: s, codec: codec, root: root, allowDuplicates: allowDuplicates, log: log}
}

// Root returns the current root page id (0 if the tree is empty).
func (t *Tree) Root() page.ID { return t.root }

// IsEmpty reports whether the tree holds no entries.
func (t *Tree) IsEmpty() bool { return t.root == 0 }

// findLeaf descends from the root to the leaf that would contain k,
// returning the ancestor path (root-to-parent, excluding the leaf
// itself) for split/rebalance propagation.
func (t *Tree) findLeaf(k kv.Key) (*page.Node, []page.ID, error) {
	if t.root == 0 {
		return nil, nil, mverr.InvalidInput("bptree: empty tree")
	}
	var path []page.ID
	id := t.root
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return nil, nil, err
		}
		if n.IsLeaf() {
			return n, path, nil
		}
		path = append(path, id)
		id = n.Children[n.ChooseChild(k)].Child
	}
}

// Exact returns the value stored under k, or ok=false if absent.
func (t *Tree) Exact(k kv.Key) (kv.Value, bool, error) {
	if t.root == 0 {
		return nil, false, nil
	}
	leaf, _, err := t.findLeaf(k)
	if err != nil {
		return nil, false, err
	}
	idx, exact := leaf.FindKey(k)
	if !exact {
		return nil, false, nil
	}
	return leaf.Items[idx].Value, true, nil
}

// Insert adds (k, v). Unless the tree allows duplicates, inserting an
// already-present key returns an InvalidInput error.
func (t *Tree) Insert(k kv.Key, v kv.Value) error {
	if t.root == 0 {
		return t.insertIntoEmpty(k, v)
	}

	leaf, path, err := t.findLeaf(k)
	if err != nil {
		return err
	}
	if !t.allowDuplicates {
		if _, exact := leaf.FindKey(k); exact {
			return mverr.InvalidInput("bptree: key already exists")
		}
	}

	leaf = leaf.Clone()
	leaf.InsertLeafEntry(page.LeafEntry{Key: k, Value: v})
	if !t.codec.IsOverflowLeaf(leaf) {
		return t.store.Update(leaf)
	}

	left, right, pushKey, err := t.splitLeaf(leaf)
	if err != nil {
		return err
	}
	if err := t.store.Update(left); err != nil {
		return err
	}
	if err := t.store.Insert(right); err != nil {
		return err
	}
	return t.propagateSplit(path, left, right.ID, pushKey)
}

func (t *Tree) insertIntoEmpty(k kv.Key, v kv.Value) error {
	id, err := t.store.Reserve()
	if err != nil {
		return err
	}
	leaf := page.NewLeaf(id)
	leaf.InsertLeafEntry(page.LeafEntry{Key: k, Value: v})
	if err := t.store.Insert(leaf); err != nil {
		return err
	}
	t.root = id
	return nil
}

// Update replaces the value stored under an existing key k.
func (t *Tree) Update(k kv.Key, v kv.Value) error {
	if t.root == 0 {
		return mverr.InvalidInput("bptree: update on empty tree")
	}
	leaf, _, err := t.findLeaf(k)
	if err != nil {
		return err
	}
	idx, exact := leaf.FindKey(k)
	if !exact {
		return mverr.InvalidInput("bptree: key not found")
	}
	leaf = leaf.Clone()
	leaf.Items[idx].Value = v
	return t.store.Update(leaf)
}

// Remove deletes the entry for k. Under duplicate-key mode only the
// first matching entry is removed (the direct leaf-walk remove; see
// SPEC_FULL.md's Open Question decision on generalized remove_old).
func (t *Tree) Remove(k kv.Key) error {
	if t.root == 0 {
		return mverr.InvalidInput("bptree: remove from empty tree")
	}
	leaf, path, err := t.findLeaf(k)
	if err != nil {
		return err
	}
	idx, exact := leaf.FindKey(k)
	if !exact {
		return mverr.InvalidInput("bptree: key not found")
	}

	leaf = leaf.Clone()
	leaf.RemoveLeafEntryAt(idx)

	if len(path) == 0 {
		if len(leaf.Items) == 0 {
			t.root = 0
			return t.store.Remove(leaf.ID)
		}
		return t.store.Update(leaf)
	}
	if !t.codec.IsUnderflowLeaf(leaf) {
		return t.store.Update(leaf)
	}
	return t.rebalanceLeaf(leaf, path)
}

// splitLeaf splits a full leaf, returning the (unchanged-id) left
// half, a freshly allocated right half, and the key to push into the
// parent.
func (t *Tree) splitLeaf(leaf *page.Node) (left, right *page.Node, pushKey kv.Key, err error) {
	mid := dupAwareSplitIndex(leaf.Items, t.allowDuplicates)
	rightID, err := t.store.Reserve()
	if err != nil {
		return nil, nil, nil, err
	}
	right = page.NewLeaf(rightID)
	right.Items = append(right.Items, leaf.Items[mid:]...)
	right.Next = leaf.Next
	leaf.Items = leaf.Items[:mid]
	leaf.Next = rightID
	return leaf, right, right.Items[0].Key, nil
}

// dupAwareSplitIndex picks a full leaf's split point. A duplicate-key
// leaf must not split in the middle of a run of equal keys: scan left
// from the 75% mark while keys stay equal, down to the 25% mark, and
// split immediately before that run so the whole run lands in the
// right half. Outside duplicate-key mode, or when no equal-key run
// reaches the 75% mark, the plain midpoint split is used.
func dupAwareSplitIndex(items []page.LeafEntry, allowDuplicates bool) int {
	n := len(items)
	mid := n / 2
	if !allowDuplicates || n == 0 {
		return mid
	}
	i := 3 * n / 4
	if i <= 0 || i >= n || items[i].Key.Compare(items[i-1].Key) != 0 {
		return mid
	}
	quarter := n / 4
	for i > quarter && items[i].Key.Compare(items[i-1].Key) == 0 {
		i--
	}
	return i
}

func (t *Tree) splitInnerNode(n *page.Node) (right *page.Node, pushKey kv.Key, err error) {
	mid := len(n.Children) / 2
	rightID, err := t.store.Reserve()
	if err != nil {
		return nil, nil, err
	}
	right = page.NewInner(rightID, n.Level)
	right.Children = append(right.Children, n.Children[mid:]...)
	n.Children = n.Children[:mid]
	return right, right.Children[0].Sep.Key, nil
}

// propagateSplit inserts (pushKey -> rightID) into path's innermost
// ancestor, splitting and continuing upward as each parent overflows,
// and finally grows the tree by one level if the split reaches the
// root.
func (t *Tree) propagateSplit(path []page.ID, leftNode *page.Node, rightID page.ID, pushKey kv.Key) error {
	for i := len(path) - 1; i >= 0; i-- {
		parent, err := t.store.Get(path[i])
		if err != nil {
			return err
		}
		parent = parent.Clone()
		parent.InsertChild(page.IndexEntry{Child: rightID, Sep: descriptor.Separator{Key: pushKey}})
		if !t.codec.IsOverflowInner(parent) {
			return t.store.Update(parent)
		}

		right, newPushKey, err := t.splitInnerNode(parent)
		if err != nil {
			return err
		}
		if err := t.store.Update(parent); err != nil {
			return err
		}
		if err := t.store.Insert(right); err != nil {
			return err
		}
		leftNode, rightID, pushKey = parent, right.ID, newPushKey
	}
	return t.createNewRoot(leftNode, rightID, pushKey)
}

func (t *Tree) createNewRoot(left *page.Node, rightID page.ID, pushKey kv.Key) error {
	leftMin, ok := left.MinKey()
	if !ok {
		return mverr.Corrupted("bptree: cannot build new root: left child %d has no entries", left.ID)
	}
	rootID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	root := page.NewInner(rootID, left.Level+1)
	root.Children = append(root.Children,
		page.IndexEntry{Child: left.ID, Sep: descriptor.Separator{Key: leftMin}},
		page.IndexEntry{Child: rightID, Sep: descriptor.Separator{Key: pushKey}},
	)
	if err := t.store.Insert(root); err != nil {
		return err
	}
	t.root = rootID
	return nil
}

// firstLeaf descends the leftmost spine of the tree, used by
// unbounded scans where there is no key to route by.
func (t *Tree) firstLeaf() (*page.Node, error) {
	id := t.root
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return nil, err
		}
		if n.IsLeaf() {
			return n, nil
		}
		id = n.Children[0].Child
	}
}

func childIndexByID(n *page.Node, id page.ID) int {
	for i, c := range n.Children {
		if c.Child == id {
			return i
		}
	}
	return -1
}
