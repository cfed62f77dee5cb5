package mvtree

import (
	"mvtree/internal/descriptor"
	"mvtree/internal/kv"
	"mvtree/internal/mverr"
	"mvtree/internal/mvlog"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// afterLeafGrowth runs after a leaf gains an entry (insert or update),
// splitting it if the physical page budget has overflowed. A
// version-split (copy the live subset into a new page, close the old
// entries in place) is tried first since it's cheap and keeps the
// node's history intact; a key-split is used when even the live
// subset alone would still overflow.
func (t *Tree) afterLeafGrowth(leaf *page.Node, path []page.ID) error {
	if len(leaf.Items) <= t.codec.BLeaf {
		return nil
	}
	if leaf.LiveItemCount() <= t.codec.BLeaf {
		return t.versionSplitLeaf(leaf, path)
	}
	return t.keySplitLeaf(leaf, path)
}

func (t *Tree) afterInnerGrowth(node *page.Node, path []page.ID) error {
	if len(node.Children) <= t.codec.BInner {
		return nil
	}
	if node.LiveChildCount() <= t.codec.BInner {
		return t.versionSplitInner(node, path)
	}
	return t.keySplitInner(node, path)
}

// versionSplitLeaf copies every currently-alive item into a freshly
// allocated leaf, closes those same items in place in the old leaf,
// and links the new leaf's Predecessors back to it. The old leaf
// keeps answering historical queries; the new one takes over live
// traffic (§4.4.2's version-split).
func (t *Tree) versionSplitLeaf(leaf *page.Node, path []page.ID) error {
	minKey, ok := leaf.MinKeyMV()
	if !ok {
		return mverr.Corrupted("mvtree: version-split on empty leaf %d", leaf.ID)
	}
	newID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	newLeaf := page.NewLeaf(newID)
	newLeaf.Next = leaf.Next
	for _, it := range leaf.Items {
		if it.Lifespan.IsAlive() {
			newLeaf.Items = append(newLeaf.Items, it)
		}
	}
	newLeaf.Predecessors = []page.IndexEntry{{
		Child: leaf.ID,
		MVSep: descriptor.MVSeparator{Key: minKey, Lifespan: descriptor.Lifespan{Begin: version.Zero, End: t.current}},
	}}

	for i := range leaf.Items {
		if leaf.Items[i].Lifespan.IsAlive() {
			leaf.Items[i].Lifespan = leaf.Items[i].Lifespan.Delete(t.current)
		}
	}
	if err := t.store.Update(leaf); err != nil {
		return err
	}
	if err := t.store.Insert(newLeaf); err != nil {
		return err
	}
	t.purge.Enqueue(leaf.ID, t.current)

	return t.replaceChildInParent(path, leaf.ID, newLeaf.ID, minKey)
}

func (t *Tree) versionSplitInner(node *page.Node, path []page.ID) error {
	minKey, ok := node.MinKeyMV()
	if !ok {
		return mverr.Corrupted("mvtree: version-split on empty inner node %d", node.ID)
	}
	newID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	newNode := page.NewInner(newID, node.Level)
	for _, c := range node.Children {
		if c.MVSep.Lifespan.IsAlive() {
			newNode.Children = append(newNode.Children, c)
		}
	}
	newNode.Predecessors = []page.IndexEntry{{
		Child: node.ID,
		MVSep: descriptor.MVSeparator{Key: minKey, Lifespan: descriptor.Lifespan{Begin: version.Zero, End: t.current}},
	}}

	for i := range node.Children {
		if node.Children[i].MVSep.Lifespan.IsAlive() {
			node.Children[i].MVSep.Lifespan = node.Children[i].MVSep.Lifespan.Delete(t.current)
		}
	}
	if err := t.store.Update(node); err != nil {
		return err
	}
	if err := t.store.Insert(newNode); err != nil {
		return err
	}
	t.purge.Enqueue(node.ID, t.current)

	return t.replaceChildInParent(path, node.ID, newNode.ID, minKey)
}

// keySplitLeaf is the classic disjoint-key split, over the leaf's full
// alive+dead entry set: the old node keeps the lower half, a new node
// takes the upper half. Used when the live subset is itself too big
// for a version-split to help.
func (t *Tree) keySplitLeaf(leaf *page.Node, path []page.ID) error {
	mid := len(leaf.Items) / 2
	newID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	right := page.NewLeaf(newID)
	right.Items = append(right.Items, leaf.Items[mid:]...)
	right.Next = leaf.Next
	leaf.Items = leaf.Items[:mid]
	leaf.Next = newID
	if err := t.store.Update(leaf); err != nil {
		return err
	}
	if err := t.store.Insert(right); err != nil {
		return err
	}
	return t.appendChildInParent(leaf, path, right.ID, right.Items[0].Key)
}

func (t *Tree) keySplitInner(node *page.Node, path []page.ID) error {
	mid := len(node.Children) / 2
	newID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	right := page.NewInner(newID, node.Level)
	right.Children = append(right.Children, node.Children[mid:]...)
	node.Children = node.Children[:mid]
	if err := t.store.Update(node); err != nil {
		return err
	}
	if err := t.store.Insert(right); err != nil {
		return err
	}
	return t.appendChildInParent(node, path, right.ID, right.Children[0].MVSep.Key)
}

// replaceChildInParent swaps oldChildID for newChildID in the parent's
// child set (closing the old entry, appending the new one at the same
// key), used when a version-split keeps the node's key range but
// changes its identity. An empty path means the split leaf/node was
// itself the root.
func (t *Tree) replaceChildInParent(path []page.ID, oldChildID, newChildID page.ID, key kv.Key) error {
	if len(path) == 0 {
		return t.recordRootChange(newChildID)
	}
	parent, err := t.store.Get(path[len(path)-1])
	if err != nil {
		return err
	}
	parent = parent.Clone()
	closeChildEntry(parent, oldChildID, t.current)
	parent.InsertChildMV(page.IndexEntry{Child: newChildID, MVSep: descriptor.MVSeparator{Key: key, Lifespan: descriptor.Alive(t.current)}})
	if err := t.store.Update(parent); err != nil {
		return err
	}
	return t.afterInnerGrowth(parent, path[:len(path)-1])
}

// appendChildInParent adds a brand-new sibling next to an unchanged
// left node, used when a key-split creates a disjoint second subtree.
// At the root, there is no parent to append to, so a fresh root level
// is grown instead.
func (t *Tree) appendChildInParent(leftNode *page.Node, path []page.ID, rightID page.ID, rightMinKey kv.Key) error {
	if len(path) == 0 {
		return t.growRoot(leftNode, rightID, rightMinKey)
	}
	parent, err := t.store.Get(path[len(path)-1])
	if err != nil {
		return err
	}
	parent = parent.Clone()
	parent.InsertChildMV(page.IndexEntry{Child: rightID, MVSep: descriptor.MVSeparator{Key: rightMinKey, Lifespan: descriptor.Alive(t.current)}})
	if err := t.store.Update(parent); err != nil {
		return err
	}
	return t.afterInnerGrowth(parent, path[:len(path)-1])
}

func (t *Tree) growRoot(left *page.Node, rightID page.ID, rightMinKey kv.Key) error {
	leftMin, ok := left.MinKeyMV()
	if !ok {
		return mverr.Corrupted("mvtree: cannot grow root: left child %d has no entries", left.ID)
	}
	rootID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	root := page.NewInner(rootID, left.Level+1)
	root.Children = append(root.Children,
		page.IndexEntry{Child: left.ID, MVSep: descriptor.MVSeparator{Key: leftMin, Lifespan: descriptor.Alive(t.current)}},
		page.IndexEntry{Child: rightID, MVSep: descriptor.MVSeparator{Key: rightMinKey, Lifespan: descriptor.Alive(t.current)}},
	)
	if err := t.store.Insert(root); err != nil {
		return err
	}
	return t.recordRootChange(rootID)
}

func closeChildEntry(n *page.Node, id page.ID, at version.V) {
	for i := range n.Children {
		if n.Children[i].Child == id && n.Children[i].MVSep.Lifespan.IsAlive() {
			n.Children[i].MVSep.Lifespan = n.Children[i].MVSep.Lifespan.Delete(at)
			return
		}
	}
}

// strongMergeLeaf is invoked after a remove drops a leaf's live count
// below DLeaf. It picks a live sibling (preferring the right one),
// version-splits both leaf and sibling in place — closing every
// currently-alive item at the current version so the two originals
// become pure history — and unions only the live snapshot taken just
// before closing into a single new node (if it fits) or merges then
// re-splits that live-only set by key. Either way both originals
// survive as Predecessors for time travel, now holding nothing but
// closed, non-overlapping lifespans.
func (t *Tree) strongMergeLeaf(leaf *page.Node, path []page.ID) error {
	parent, err := t.store.Get(path[len(path)-1])
	if err != nil {
		return err
	}
	parent = parent.Clone()
	idx := liveChildIndexByID(parent, leaf.ID)
	if idx < 0 {
		t.log.Warn("mvtree: leaf underflowed but its parent entry is gone; leaving it degraded", mvlog.Uint64("leaf", uint64(leaf.ID)))
		return nil
	}

	sibling, siblingIsRight, err := t.pickLiveSibling(parent, idx)
	if err != nil {
		return err
	}
	if sibling == nil {
		return nil
	}

	leafLive, leaf, err := t.closeLiveLeafItems(leaf)
	if err != nil {
		return err
	}
	siblingLive, sibling, err := t.closeLiveLeafItems(sibling)
	if err != nil {
		return err
	}

	if len(leafLive)+len(siblingLive) <= t.codec.BLeaf {
		return t.mergeLeaves(parent, path, leaf, sibling, leafLive, siblingLive, siblingIsRight)
	}
	return t.mergeKeySplitLeaves(parent, path, leaf, sibling, leafLive, siblingLive, siblingIsRight)
}

func (t *Tree) strongMergeInner(node *page.Node, path []page.ID) error {
	parent, err := t.store.Get(path[len(path)-1])
	if err != nil {
		return err
	}
	parent = parent.Clone()
	idx := liveChildIndexByID(parent, node.ID)
	if idx < 0 {
		t.log.Warn("mvtree: inner node underflowed but its parent entry is gone; leaving it degraded", mvlog.Uint64("node", uint64(node.ID)))
		return nil
	}

	sibling, siblingIsRight, err := t.pickLiveSibling(parent, idx)
	if err != nil {
		return err
	}
	if sibling == nil {
		return nil
	}

	nodeLive, node, err := t.closeLiveInnerChildren(node)
	if err != nil {
		return err
	}
	siblingLive, sibling, err := t.closeLiveInnerChildren(sibling)
	if err != nil {
		return err
	}

	if len(nodeLive)+len(siblingLive) <= t.codec.BInner {
		return t.mergeInners(parent, path, node, sibling, nodeLive, siblingLive, siblingIsRight)
	}
	return t.mergeKeySplitInners(parent, path, node, sibling, nodeLive, siblingLive, siblingIsRight)
}

// closeLiveLeafItems snapshots n's currently-alive items, then closes
// every one of them in place at the current version and persists the
// page — the same "copy the live subset, close the originals" shape
// versionSplitLeaf uses, except the live snapshot feeds a merge
// instead of a freshly allocated version-split sibling. Returns the
// pre-close snapshot and the now-closed (cloned) node.
func (t *Tree) closeLiveLeafItems(n *page.Node) ([]page.LeafEntry, *page.Node, error) {
	n = n.Clone()
	live := n.LiveItems()
	for i := range n.Items {
		if n.Items[i].Lifespan.IsAlive() {
			n.Items[i].Lifespan = n.Items[i].Lifespan.Delete(t.current)
		}
	}
	if err := t.store.Update(n); err != nil {
		return nil, nil, err
	}
	return live, n, nil
}

// closeLiveInnerChildren is closeLiveLeafItems's inner-node analogue,
// operating over MVSep.Lifespan on Children instead of Items.
func (t *Tree) closeLiveInnerChildren(n *page.Node) ([]page.IndexEntry, *page.Node, error) {
	n = n.Clone()
	live := n.LiveChildren()
	for i := range n.Children {
		if n.Children[i].MVSep.Lifespan.IsAlive() {
			n.Children[i].MVSep.Lifespan = n.Children[i].MVSep.Lifespan.Delete(t.current)
		}
	}
	if err := t.store.Update(n); err != nil {
		return nil, nil, err
	}
	return live, n, nil
}

// pickLiveSibling returns the nearest live sibling of the child at
// idx, preferring the right neighbor (matches bptree's borrow-right
// first convention).
func (t *Tree) pickLiveSibling(parent *page.Node, idx int) (*page.Node, bool, error) {
	if i, ok := nextLiveChildIndex(parent, idx); ok {
		n, err := t.store.Get(parent.Children[i].Child)
		if err != nil {
			return nil, false, err
		}
		return n, true, nil
	}
	if i, ok := prevLiveChildIndex(parent, idx); ok {
		n, err := t.store.Get(parent.Children[i].Child)
		if err != nil {
			return nil, false, err
		}
		return n, false, nil
	}
	return nil, false, nil
}

func nextLiveChildIndex(n *page.Node, from int) (int, bool) {
	for i := from + 1; i < len(n.Children); i++ {
		if n.Children[i].MVSep.Lifespan.IsAlive() {
			return i, true
		}
	}
	return 0, false
}

func prevLiveChildIndex(n *page.Node, from int) (int, bool) {
	for i := from - 1; i >= 0; i-- {
		if n.Children[i].MVSep.Lifespan.IsAlive() {
			return i, true
		}
	}
	return 0, false
}

func liveChildIndexByID(n *page.Node, id page.ID) int {
	for i, c := range n.Children {
		if c.Child == id && c.MVSep.Lifespan.IsAlive() {
			return i
		}
	}
	return -1
}

// closedPredecessors builds the two-entry Predecessors list a merge
// produces. The precise per-side key range each original node covered
// is not reconstructed here — both new pages list both originals,
// which is sufficient since choosePredecessor re-filters by key and
// lifespan at lookup time; see DESIGN.md's merge-key-split note.
func closedPredecessors(a, b page.ID, at version.V) []page.IndexEntry {
	return []page.IndexEntry{
		{Child: a, MVSep: descriptor.MVSeparator{Lifespan: descriptor.Lifespan{Begin: version.Zero, End: at}}},
		{Child: b, MVSep: descriptor.MVSeparator{Lifespan: descriptor.Lifespan{Begin: version.Zero, End: at}}},
	}
}

func (t *Tree) mergeLeaves(parent *page.Node, path []page.ID, leaf, sibling *page.Node, leafLive, siblingLive []page.LeafEntry, siblingIsRight bool) error {
	newID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	merged := page.NewLeaf(newID)
	if siblingIsRight {
		merged.Items = append(merged.Items, leafLive...)
		merged.Items = append(merged.Items, siblingLive...)
		merged.Next = sibling.Next
	} else {
		merged.Items = append(merged.Items, siblingLive...)
		merged.Items = append(merged.Items, leafLive...)
		merged.Next = leaf.Next
	}
	if len(merged.Items) == 0 {
		return mverr.Corrupted("mvtree: leaf merge produced an empty node")
	}
	leftMin := merged.Items[0].Key
	merged.Predecessors = closedPredecessors(leaf.ID, sibling.ID, t.current)
	if err := t.store.Insert(merged); err != nil {
		return err
	}

	closeChildEntry(parent, leaf.ID, t.current)
	closeChildEntry(parent, sibling.ID, t.current)
	parent.InsertChildMV(page.IndexEntry{Child: newID, MVSep: descriptor.MVSeparator{Key: leftMin, Lifespan: descriptor.Alive(t.current)}})
	if err := t.store.Update(parent); err != nil {
		return err
	}
	t.purge.Enqueue(leaf.ID, t.current)
	t.purge.Enqueue(sibling.ID, t.current)
	return t.afterParentResize(parent, path[:len(path)-1])
}

func (t *Tree) mergeKeySplitLeaves(parent *page.Node, path []page.ID, leaf, sibling *page.Node, leafLive, siblingLive []page.LeafEntry, siblingIsRight bool) error {
	var all []page.LeafEntry
	var next page.ID
	if siblingIsRight {
		all = append(all, leafLive...)
		all = append(all, siblingLive...)
		next = sibling.Next
	} else {
		all = append(all, siblingLive...)
		all = append(all, leafLive...)
		next = leaf.Next
	}
	mid := len(all) / 2

	leftID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	rightID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	leftNode := page.NewLeaf(leftID)
	leftNode.Items = append(leftNode.Items, all[:mid]...)
	leftNode.Next = rightID
	rightNode := page.NewLeaf(rightID)
	rightNode.Items = append(rightNode.Items, all[mid:]...)
	rightNode.Next = next

	preds := closedPredecessors(leaf.ID, sibling.ID, t.current)
	leftNode.Predecessors = preds
	rightNode.Predecessors = preds
	if err := t.store.Insert(leftNode); err != nil {
		return err
	}
	if err := t.store.Insert(rightNode); err != nil {
		return err
	}

	closeChildEntry(parent, leaf.ID, t.current)
	closeChildEntry(parent, sibling.ID, t.current)
	leftMin, _ := leftNode.MinKeyMV()
	rightMin, _ := rightNode.MinKeyMV()
	parent.InsertChildMV(page.IndexEntry{Child: leftID, MVSep: descriptor.MVSeparator{Key: leftMin, Lifespan: descriptor.Alive(t.current)}})
	parent.InsertChildMV(page.IndexEntry{Child: rightID, MVSep: descriptor.MVSeparator{Key: rightMin, Lifespan: descriptor.Alive(t.current)}})
	if err := t.store.Update(parent); err != nil {
		return err
	}
	t.purge.Enqueue(leaf.ID, t.current)
	t.purge.Enqueue(sibling.ID, t.current)
	return t.afterParentResize(parent, path[:len(path)-1])
}

func (t *Tree) mergeInners(parent *page.Node, path []page.ID, node, sibling *page.Node, nodeLive, siblingLive []page.IndexEntry, siblingIsRight bool) error {
	newID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	merged := page.NewInner(newID, node.Level)
	if siblingIsRight {
		merged.Children = append(merged.Children, nodeLive...)
		merged.Children = append(merged.Children, siblingLive...)
	} else {
		merged.Children = append(merged.Children, siblingLive...)
		merged.Children = append(merged.Children, nodeLive...)
	}
	if len(merged.Children) == 0 {
		return mverr.Corrupted("mvtree: inner merge produced an empty node")
	}
	leftMin := merged.Children[0].MVSep.Key
	merged.Predecessors = closedPredecessors(node.ID, sibling.ID, t.current)
	if err := t.store.Insert(merged); err != nil {
		return err
	}

	closeChildEntry(parent, node.ID, t.current)
	closeChildEntry(parent, sibling.ID, t.current)
	parent.InsertChildMV(page.IndexEntry{Child: newID, MVSep: descriptor.MVSeparator{Key: leftMin, Lifespan: descriptor.Alive(t.current)}})
	if err := t.store.Update(parent); err != nil {
		return err
	}
	t.purge.Enqueue(node.ID, t.current)
	t.purge.Enqueue(sibling.ID, t.current)
	return t.afterParentResize(parent, path[:len(path)-1])
}

func (t *Tree) mergeKeySplitInners(parent *page.Node, path []page.ID, node, sibling *page.Node, nodeLive, siblingLive []page.IndexEntry, siblingIsRight bool) error {
	var all []page.IndexEntry
	if siblingIsRight {
		all = append(all, nodeLive...)
		all = append(all, siblingLive...)
	} else {
		all = append(all, siblingLive...)
		all = append(all, nodeLive...)
	}
	mid := len(all) / 2

	leftID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	rightID, err := t.store.Reserve()
	if err != nil {
		return err
	}
	leftNode := page.NewInner(leftID, node.Level)
	leftNode.Children = append(leftNode.Children, all[:mid]...)
	rightNode := page.NewInner(rightID, node.Level)
	rightNode.Children = append(rightNode.Children, all[mid:]...)

	preds := closedPredecessors(node.ID, sibling.ID, t.current)
	leftNode.Predecessors = preds
	rightNode.Predecessors = preds
	if err := t.store.Insert(leftNode); err != nil {
		return err
	}
	if err := t.store.Insert(rightNode); err != nil {
		return err
	}

	closeChildEntry(parent, node.ID, t.current)
	closeChildEntry(parent, sibling.ID, t.current)
	leftMin, _ := leftNode.MinKeyMV()
	rightMin, _ := rightNode.MinKeyMV()
	parent.InsertChildMV(page.IndexEntry{Child: leftID, MVSep: descriptor.MVSeparator{Key: leftMin, Lifespan: descriptor.Alive(t.current)}})
	parent.InsertChildMV(page.IndexEntry{Child: rightID, MVSep: descriptor.MVSeparator{Key: rightMin, Lifespan: descriptor.Alive(t.current)}})
	if err := t.store.Update(parent); err != nil {
		return err
	}
	t.purge.Enqueue(node.ID, t.current)
	t.purge.Enqueue(sibling.ID, t.current)
	return t.afterParentResize(parent, path[:len(path)-1])
}

// afterParentResize runs after a merge changes a parent's child set:
// the total count grew by one (plain merge: two closed, one appended)
// or two (merge-key-split: two closed, two appended) so an overflow is
// possible, and a plain merge shrank the live count by one so an
// underflow is possible too. A root left with a single live child
// collapses by one level.
func (t *Tree) afterParentResize(parent *page.Node, path []page.ID) error {
	if len(parent.Children) > t.codec.BInner {
		if parent.LiveChildCount() <= t.codec.BInner {
			return t.versionSplitInner(parent, path)
		}
		return t.keySplitInner(parent, path)
	}
	if len(path) == 0 {
		if parent.LiveChildCount() == 1 {
			return t.demoteRoot(parent)
		}
		return nil
	}
	if parent.LiveChildCount() < t.codec.DInner {
		return t.strongMergeInner(parent, path)
	}
	return nil
}

// demoteRoot makes the root's single remaining live child the new
// root, the MV analogue of bptree's single-child root collapse.
func (t *Tree) demoteRoot(parent *page.Node) error {
	for _, c := range parent.Children {
		if c.MVSep.Lifespan.IsAlive() {
			return t.recordRootChange(c.Child)
		}
	}
	return mverr.Corrupted("mvtree: root %d has no live child to demote to", parent.ID)
}
