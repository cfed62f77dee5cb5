package mvtree

import (
	"mvtree/internal/kv"
	"mvtree/internal/mverr"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// findLeafForWrite descends the live root to the leaf responsible for
// k, following only entries currently alive. Mirrors bptree.Tree's
// findLeaf but routes on MVSeparator lifespans rather than a plain key
// bound, since a node's children can carry closed entries alongside
// live ones after a version-split.
func (t *Tree) findLeafForWrite(k kv.Key) (*page.Node, []page.ID, error) {
	if t.liveRoot == 0 {
		return nil, nil, mverr.InvalidInput("mvtree: empty tree")
	}
	var path []page.ID
	id := t.liveRoot
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return nil, nil, err
		}
		if n.IsLeaf() {
			return n, path, nil
		}
		path = append(path, id)
		idx := chooseLiveChild(n, k)
		if idx < 0 {
			return nil, nil, mverr.Corrupted("mvtree: node %d has no live child for the current write path", n.ID)
		}
		id = n.Children[idx].Child
	}
}

// chooseLiveChild scans Children in key order (InsertChildMV's sort
// order) and keeps the last alive entry whose key is <= k. Because
// live and closed entries for the same key boundary sort adjacently,
// this always lands on the entry actually responsible for k today.
func chooseLiveChild(n *page.Node, k kv.Key) int {
	best := -1
	for i, c := range n.Children {
		if c.MVSep.Key.Compare(k) > 0 {
			break
		}
		if c.MVSep.Lifespan.IsAlive() {
			best = i
		}
	}
	return best
}

// findAliveItem looks for k's currently-live leaf entry.
func (t *Tree) findAliveItem(leaf *page.Node, k kv.Key) (int, bool) {
	for i, it := range leaf.Items {
		if it.Key.Compare(k) == 0 && it.Lifespan.IsAlive() {
			return i, true
		}
	}
	return -1, false
}

// findLeafAtVersion descends the root that was live as of at and
// returns the leaf that held k back then, following predecessor links
// whenever the current generation of a node doesn't cover at — the
// trail a reorg leaves behind (§4.4.3's time-travel routing).
func (t *Tree) findLeafAtVersion(k kv.Key, at version.V) (*page.Node, error) {
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
			if hasCoverage(n, k, at) || len(n.Predecessors) == 0 {
				return n, nil
			}
			pred, ok := choosePredecessor(n, k, at)
			if !ok {
				return n, nil
			}
			id = pred.Child
			continue
		}

		idx := chooseChildAtVersion(n, k, at)
		if idx >= 0 {
			id = n.Children[idx].Child
			continue
		}
		if len(n.Predecessors) == 0 {
			return nil, nil
		}
		pred, ok := choosePredecessor(n, k, at)
		if !ok {
			return nil, nil
		}
		id = pred.Child
	}
}

// hasCoverage reports whether leaf itself (not a predecessor) has any
// entry for k alive at version at.
func hasCoverage(leaf *page.Node, k kv.Key, at version.V) bool {
	for _, it := range leaf.Items {
		if it.Key.Compare(k) == 0 && it.Lifespan.Contains(at) {
			return true
		}
	}
	return false
}

func chooseChildAtVersion(n *page.Node, k kv.Key, at version.V) int {
	best := -1
	for i, c := range n.Children {
		if c.MVSep.Key.Compare(k) > 0 {
			break
		}
		if c.MVSep.Lifespan.Contains(at) {
			best = i
		}
	}
	return best
}

// choosePredecessor picks, among a node's predecessor links valid at
// version at with key <= k, the one whose key is closest to k — the
// predecessor that actually covered k before this node replaced it.
// MaxPredecessors is small (2), so a linear scan is cheap.
func choosePredecessor(n *page.Node, k kv.Key, at version.V) (page.IndexEntry, bool) {
	best := -1
	for i, p := range n.Predecessors {
		if p.MVSep.Key != nil && p.MVSep.Key.Compare(k) > 0 {
			continue
		}
		if !p.MVSep.Lifespan.Contains(at) {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		if n.Predecessors[best].MVSep.Key == nil {
			continue
		}
		if p.MVSep.Key != nil && n.Predecessors[best].MVSep.Key.Compare(p.MVSep.Key) < 0 {
			best = i
		}
	}
	if best == -1 {
		return page.IndexEntry{}, false
	}
	return n.Predecessors[best], true
}

// rootForVersion returns the root page id that was live at version at.
// at >= the tree's current version always means "now". Older versions
// are resolved by scanning the historical-root catalog for the latest
// recorded change at or before at.
func (t *Tree) rootForVersion(at version.V) (page.ID, error) {
	if at >= t.current {
		return t.liveRoot, nil
	}
	cur, err := t.historicalRoots.Query(nil, versionKey(at))
	if err != nil {
		return 0, err
	}
	var found page.ID
	any := false
	for cur.Next() {
		found = page.ID(cur.Value().(pageValue))
		any = true
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}
	if !any {
		return 0, nil
	}
	return found, nil
}
