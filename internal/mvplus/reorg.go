package mvplus

import (
	"mvtree/internal/descriptor"
	"mvtree/internal/kv"
	"mvtree/internal/mverr"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// reorganize dispatches a chosen token to its execution, structured
// identically to mvtree's §4.4.2 state machine (version-split,
// key-split, strong-merge, merge-key-split) but weight-driven rather
// than count-driven, per §4.5.1. It returns the id of whichever
// resulting page now covers key, and the id that page's *parent* is
// (0 if the returned page is itself the new live root — distinguishes
// a plain root replacement from a root-level key-split that grows the
// tree by one level).
func (l *Loader) reorganize(tok Token, node *page.Node, parentID page.ID, at version.V, key kv.Key) (page.ID, page.ID, error) {
	switch tok {
	case TokenVersionSplit:
		return l.doVersionSplit(node, parentID, at, key)
	case TokenKeySplit:
		return l.doKeySplit(node, parentID, at, key)
	case TokenMerge:
		return l.doMerge(node, parentID, at, key, false)
	case TokenMergeKeySplit:
		return l.doMerge(node, parentID, at, key, true)
	default:
		return 0, 0, mverr.Corrupted("mvplus: no execution defined for reorganization token %s", tok)
	}
}

// versionSplitNode copies node's live entries into a fresh page,
// closes node's own live entries in place at "at", and links the
// fresh page's Predecessors back to node — the Glossary's "Version
// split", identical to mvtree.versionSplitLeaf/Inner.
func (l *Loader) versionSplitNode(node *page.Node, at version.V) (*page.Node, error) {
	minKey, ok := node.MinKeyMV()
	if !ok {
		return nil, mverr.Corrupted("mvplus: version-split on empty page %d", node.ID)
	}
	newID, err := l.store.Reserve()
	if err != nil {
		return nil, err
	}

	var fresh *page.Node
	if node.IsLeaf() {
		fresh = page.NewLeaf(newID)
		fresh.Next = node.Next
		for _, it := range node.Items {
			if it.Lifespan.IsAlive() {
				fresh.Items = append(fresh.Items, it)
			}
		}
	} else {
		fresh = page.NewInner(newID, node.Level)
		for _, c := range node.Children {
			if c.MVSep.Lifespan.IsAlive() {
				fresh.Children = append(fresh.Children, c)
			}
		}
	}
	fresh.Predecessors = []page.IndexEntry{{
		Child: node.ID,
		MVSep: descriptor.MVSeparator{Key: minKey, Lifespan: descriptor.Lifespan{Begin: version.Zero, End: at}},
	}}

	old := node.Clone()
	if old.IsLeaf() {
		for i := range old.Items {
			if old.Items[i].Lifespan.IsAlive() {
				old.Items[i].Lifespan = old.Items[i].Lifespan.Delete(at)
			}
		}
	} else {
		for i := range old.Children {
			if old.Children[i].MVSep.Lifespan.IsAlive() {
				old.Children[i].MVSep.Lifespan = old.Children[i].MVSep.Lifespan.Delete(at)
			}
		}
	}
	if err := l.store.Update(old); err != nil {
		return nil, err
	}
	if err := l.store.Insert(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (l *Loader) doVersionSplit(node *page.Node, parentID page.ID, at version.V, key kv.Key) (page.ID, page.ID, error) {
	fresh, err := l.versionSplitNode(node, at)
	if err != nil {
		return 0, 0, err
	}
	return l.applyReorgResult(parentID, []page.ID{node.ID}, at, []*page.Node{fresh}, key)
}

// doKeySplit version-splits node to isolate its live entries, then
// splits that fresh generation in two by key — for inner nodes, at
// the index that balances w across the halves (§4.5.1's addition over
// §4.4.2's plain median).
func (l *Loader) doKeySplit(node *page.Node, parentID page.ID, at version.V, key kv.Key) (page.ID, page.ID, error) {
	fresh, err := l.versionSplitNode(node, at)
	if err != nil {
		return 0, 0, err
	}
	left, right, err := l.keySplitNode(fresh, at)
	if err != nil {
		return 0, 0, err
	}
	return l.applyReorgResult(parentID, []page.ID{node.ID}, at, []*page.Node{left, right}, key)
}

// keySplitNode splits fresh (already persisted, containing only live
// entries) into two pages, reusing fresh's own id for the left half.
func (l *Loader) keySplitNode(fresh *page.Node, at version.V) (left, right *page.Node, err error) {
	rightID, err := l.store.Reserve()
	if err != nil {
		return nil, nil, err
	}
	if fresh.IsLeaf() {
		mid := len(fresh.Items) / 2
		right = page.NewLeaf(rightID)
		right.Items = append(right.Items, fresh.Items[mid:]...)
		right.Next = fresh.Next
		fresh.Items = fresh.Items[:mid]
		fresh.Next = rightID
	} else {
		mid := weightSplitIndex(fresh.Children, l.maxLive(fresh.Level))
		right = page.NewInner(rightID, fresh.Level)
		right.Children = append(right.Children, fresh.Children[mid:]...)
		fresh.Children = fresh.Children[:mid]
	}
	if fresh.Count() == 0 || right.Count() == 0 {
		return nil, nil, mverr.Corrupted("mvplus: key-split of page %d yielded an empty partition", fresh.ID)
	}
	if err := l.store.Update(fresh); err != nil {
		return nil, nil, err
	}
	if err := l.store.Insert(right); err != nil {
		return nil, nil, err
	}
	return fresh, right, nil
}

// weightSplitIndex scans live entries accumulating w, stopping at the
// first index whose prefix weight exceeds maxLive/2, per §4.5.1.
func weightSplitIndex(children []page.IndexEntry, maxLive int64) int {
	target := maxLive / 2
	var acc int64
	for i, c := range children {
		acc += c.W
		if acc > target {
			idx := i + 1
			if idx >= len(children) {
				idx = len(children) - 1
			}
			if idx < 1 {
				idx = 1
			}
			return idx
		}
	}
	mid := len(children) / 2
	if mid < 1 {
		mid = 1
	}
	return mid
}

// doMerge is the Glossary's "Strong merge" / "Merge-key-split": the
// chosen-subtree sibling is version-split first so only its live
// entries migrate, the two live sets are concatenated into a fresh
// page, and — for MERGE_KEY_SPLIT — that page is immediately
// key-split again if it would itself strong-overflow.
func (l *Loader) doMerge(node *page.Node, parentID page.ID, at version.V, key kv.Key, keySplitAfter bool) (page.ID, page.ID, error) {
	if parentID == 0 {
		return 0, 0, mverr.Corrupted("mvplus: merge token chosen at the root")
	}
	parent, err := l.store.Get(parentID)
	if err != nil {
		return 0, 0, err
	}
	siblingID, siblingIsRight, ok := pickLiveSibling(parent, node.ID)
	if !ok {
		// No live sibling to merge with — leave the node as-is rather
		// than fail the whole load; it stays thin until a future
		// insert brings a sibling back into range.
		return node.ID, parentID, nil
	}
	sibling, err := l.store.Get(siblingID)
	if err != nil {
		return 0, 0, err
	}
	if err := l.flushDescendantBuffers(sibling); err != nil {
		return 0, 0, err
	}
	sibling, err = l.store.Get(siblingID) // flushing may have rewritten it
	if err != nil {
		return 0, 0, err
	}

	nPrime, err := l.versionSplitNode(node, at)
	if err != nil {
		return 0, 0, err
	}
	sPrime, err := l.versionSplitNode(sibling, at)
	if err != nil {
		return 0, 0, err
	}

	merged, err := l.mergeLiveInto(nPrime, sPrime, siblingIsRight)
	if err != nil {
		return 0, 0, err
	}
	preds := []page.IndexEntry{{Child: nPrime.ID}, {Child: sPrime.ID}}
	merged.Predecessors = preds
	if err := l.store.Insert(merged); err != nil {
		return 0, 0, err
	}

	var result []*page.Node
	if keySplitAfter {
		left, right, err := l.keySplitNode(merged, at)
		if err != nil {
			return 0, 0, err
		}
		left.Predecessors, right.Predecessors = preds, preds
		if err := l.store.Update(left); err != nil {
			return 0, 0, err
		}
		if err := l.store.Update(right); err != nil {
			return 0, 0, err
		}
		result = []*page.Node{left, right}
	} else {
		result = []*page.Node{merged}
	}
	return l.applyReorgResult(parentID, []page.ID{node.ID, siblingID}, at, result, key)
}

// mergeLiveInto concatenates two already-version-split (live-only)
// pages into a freshly allocated page, in key order.
func (l *Loader) mergeLiveInto(a, b *page.Node, bIsRight bool) (*page.Node, error) {
	id, err := l.store.Reserve()
	if err != nil {
		return nil, err
	}
	if a.IsLeaf() {
		m := page.NewLeaf(id)
		if bIsRight {
			m.Items = append(m.Items, a.Items...)
			m.Items = append(m.Items, b.Items...)
			m.Next = b.Next
		} else {
			m.Items = append(m.Items, b.Items...)
			m.Items = append(m.Items, a.Items...)
			m.Next = a.Next
		}
		return m, nil
	}
	m := page.NewInner(id, a.Level)
	if bIsRight {
		m.Children = append(m.Children, a.Children...)
		m.Children = append(m.Children, b.Children...)
	} else {
		m.Children = append(m.Children, b.Children...)
		m.Children = append(m.Children, a.Children...)
	}
	return m, nil
}

// pickLiveSibling returns the nearest live sibling of childID under
// parent, preferring the right neighbor (matches bptree's and
// mvtree's borrow-right-first convention).
func pickLiveSibling(parent *page.Node, childID page.ID) (siblingID page.ID, isRight bool, ok bool) {
	idx := indexOfChildByID(parent, childID)
	if idx < 0 {
		return 0, false, false
	}
	for i := idx + 1; i < len(parent.Children); i++ {
		if parent.Children[i].MVSep.Lifespan.IsAlive() {
			return parent.Children[i].Child, true, true
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if parent.Children[i].MVSep.Lifespan.IsAlive() {
			return parent.Children[i].Child, false, true
		}
	}
	return 0, false, false
}

func indexOfChildByID(n *page.Node, id page.ID) int {
	for i, c := range n.Children {
		if c.Child == id {
			return i
		}
	}
	return -1
}

func closeChildEntryAt(n *page.Node, id page.ID, at version.V) {
	for i := range n.Children {
		if n.Children[i].Child == id && n.Children[i].MVSep.Lifespan.IsAlive() {
			n.Children[i].MVSep.Lifespan = n.Children[i].MVSep.Lifespan.Delete(at)
			return
		}
	}
}

// liveWeight is a freshly reorganized page's w: every entry a
// version-split/merge copies is, by construction, live, so it is
// simply the page's live item count (leaf) or the sum of its
// children's own w (inner, whose children are untouched by this
// reorganization and already carry an accurate count).
func liveWeight(n *page.Node) int64 {
	if n.IsLeaf() {
		return int64(n.LiveItemCount())
	}
	var w int64
	for _, c := range n.Children {
		w += c.W
	}
	return w
}

func buildEntries(newNodes []*page.Node, at version.V) []page.IndexEntry {
	out := make([]page.IndexEntry, 0, len(newNodes))
	for _, n := range newNodes {
		minKey, _ := n.MinKeyMV()
		out = append(out, page.IndexEntry{
			Child: n.ID,
			MVSep: descriptor.MVSeparator{Key: minKey, Lifespan: descriptor.Alive(at)},
			W:     liveWeight(n),
			T:     0,
		})
	}
	return out
}

func chooseByKeyMV(entries []page.IndexEntry, key kv.Key) page.ID {
	best := entries[0]
	for _, e := range entries[1:] {
		if e.MVSep.Key.Compare(key) <= 0 {
			best = e
		}
	}
	return best.Child
}

// applyReorgResult installs newNodes in place of oldIDs: by replacing
// the parent's child entries (the common case), or — when parentID is
// 0 — by either becoming the new live root outright (a single result,
// version-split) or growing the tree by one level (two results, a
// root-level key-split). Returns the id of whichever result covers
// key, and that result's parent id (0 if it is itself the new root).
func (l *Loader) applyReorgResult(parentID page.ID, oldIDs []page.ID, at version.V, newNodes []*page.Node, key kv.Key) (page.ID, page.ID, error) {
	entries := buildEntries(newNodes, at)

	if parentID == 0 {
		if len(entries) == 1 {
			l.liveRoot = entries[0].Child
			l.rootW, l.rootT = entries[0].W, 0
			return l.liveRoot, 0, nil
		}
		rootID, err := l.store.Reserve()
		if err != nil {
			return 0, 0, err
		}
		root := page.NewInner(rootID, newNodes[0].Level+1)
		root.Children = append(root.Children, entries...)
		if err := l.store.Insert(root); err != nil {
			return 0, 0, err
		}
		l.liveRoot = rootID
		l.rootW, l.rootT = entries[0].W+entries[1].W, 0
		return chooseByKeyMV(entries, key), rootID, nil
	}

	parent, err := l.store.Get(parentID)
	if err != nil {
		return 0, 0, err
	}
	parent = parent.Clone()
	for _, old := range oldIDs {
		closeChildEntryAt(parent, old, at)
	}
	for _, e := range entries {
		parent.InsertChildMV(e)
	}
	if err := l.enforcePhysicalLimit(parent); err != nil {
		return 0, 0, err
	}
	if err := l.store.Update(parent); err != nil {
		return 0, 0, err
	}
	return chooseByKeyMV(entries, key), parentID, nil
}

// enforcePhysicalLimit is §4.4.6's overflow chain, adapted to
// MV-Plus: when a parent's physical child count exceeds B_inner after
// a reorganization adds an entry, the historical (non-live) entries
// that sort first in the node (by separator key, then begin version)
// are split off into a new overflow page linked backward via
// Predecessors — the eager variant SPEC_FULL.md's Open Question
// decision calls for, run the instant physical overflow is detected
// rather than lazily. Live entries always stay in the head node; an
// inner node whose *live* count alone exceeds B_inner (which the
// weight-driven key-split above should already have prevented) is
// left over capacity, since there is no historical entry left to move.
func (l *Loader) enforcePhysicalLimit(n *page.Node) error {
	if n.IsLeaf() || n.Count() <= l.codec.BInner {
		return nil
	}
	var live, historical []page.IndexEntry
	for _, c := range n.Children {
		if c.MVSep.Lifespan.IsAlive() {
			live = append(live, c)
		} else {
			historical = append(historical, c)
		}
	}
	keep := l.codec.BInner - len(live)
	if keep < 0 {
		keep = 0
	}
	if keep >= len(historical) {
		return nil
	}
	toMove := historical[:len(historical)-keep]
	stay := historical[len(historical)-keep:]

	overflowID, err := l.store.Reserve()
	if err != nil {
		return err
	}
	overflow := page.NewInner(overflowID, n.Level)
	overflow.Children = toMove
	if err := l.store.Insert(overflow); err != nil {
		return err
	}

	merged := make([]page.IndexEntry, 0, len(live)+len(stay))
	merged = append(merged, live...)
	merged = append(merged, stay...)
	n.Children = merged
	n.Predecessors = append(n.Predecessors, page.IndexEntry{Child: overflowID})
	if len(n.Predecessors) > page.MaxPredecessors {
		n.Predecessors = n.Predecessors[len(n.Predecessors)-page.MaxPredecessors:]
	}
	return nil
}
