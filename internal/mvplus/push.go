package mvplus

import (
	"mvtree/internal/descriptor"
	"mvtree/internal/kv"
	"mvtree/internal/mverr"
	"mvtree/internal/mvlog"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// ElementSource pulls the next staged element from an unsorted input
// stream (§4.5's Element iterator); ok=false signals clean EOF.
type ElementSource func() (Element, bool, error)

// SliceSource adapts a plain, already-materialized slice to
// ElementSource, for small loads and tests.
func SliceSource(elements []Element) ElementSource {
	i := 0
	return func() (Element, bool, error) {
		if i >= len(elements) {
			return Element{}, false, nil
		}
		e := elements[i]
		i++
		return e, true, nil
	}
}

// BulkLoad drains source through BulkInsert, flushes every remaining
// buffer once the stream is exhausted, and — if this batch replaced the
// root that was live when this call started — retires that prior root
// into the historical catalog, per §4.5 bullets 1 and 2.
func (l *Loader) BulkLoad(source ElementSource) error {
	priorRoot := l.liveRoot
	priorVersion := l.minVersion

	for {
		e, ok, err := source()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := l.BulkInsert(e); err != nil {
			return err
		}
	}
	if err := l.drainRootQueue(); err != nil {
		return err
	}
	if err := l.pushAllBuffers(); err != nil {
		return err
	}
	if priorRoot != 0 && priorRoot != l.liveRoot {
		return l.retireRoot(priorRoot, priorVersion)
	}
	return nil
}

// BulkInsert stages a single element into the root queue, draining it
// through pushEntry once the queue reaches reducedMemory (§4.5's
// "queue holding up to reducedMemory elements at the root").
func (l *Loader) BulkInsert(el Element) error {
	if el.Key == nil {
		return mverr.InvalidInput("mvplus: element key must not be nil")
	}
	be := page.BufferedElement{Key: el.Key, Value: el.Value, Version: uint64(el.Version), Op: el.Op}
	l.rootQueue = append(l.rootQueue, be)
	if l.maxVersion.Compare(el.Version) < 0 {
		l.maxVersion = el.Version
	}
	if len(l.rootQueue) >= l.reducedMemory {
		return l.drainRootQueue()
	}
	return nil
}

func (l *Loader) drainRootQueue() error {
	batch := l.rootQueue
	l.rootQueue = nil
	for _, e := range batch {
		if err := l.pushEntry(e); err != nil {
			return err
		}
	}
	return nil
}

// pushEntry descends from the live root to el's destination, checking
// the (w, t) weight bound at every node it passes through and
// reorganizing in place the instant a bound is crossed, before
// deciding whether to buffer, apply, or keep descending — §4.5's
// pushEntry.
func (l *Loader) pushEntry(el page.BufferedElement) error {
	if l.liveRoot == 0 {
		return l.pushIntoEmpty(el)
	}
	at := version.V(el.Version)
	if l.maxVersion.Compare(at) < 0 {
		l.maxVersion = at
	}

	id := l.liveRoot
	parentID := page.ID(0)

	for {
		node, err := l.store.Get(id)
		if err != nil {
			return err
		}
		isRoot := parentID == 0

		var w, t, wNeighbor int64
		var parent *page.Node
		var idx int
		parentHasOneLiveChild := false
		if isRoot {
			w, t = l.rootW, l.rootT
		} else {
			parent, err = l.store.Get(parentID)
			if err != nil {
				return err
			}
			idx = indexOfChildByID(parent, id)
			if idx < 0 {
				return mverr.Corrupted("mvplus: page %d is not among parent %d's children", id, parentID)
			}
			w, t = parent.Children[idx].W, parent.Children[idx].T
			parentHasOneLiveChild = parent.LiveChildCount() == 1
			if sibID, _, ok := pickLiveSibling(parent, id); ok {
				if si := indexOfChildByID(parent, sibID); si >= 0 {
					wNeighbor = parent.Children[si].W
				}
			}
		}

		tok := l.chooseToken(node.Level, isRoot, parentHasOneLiveChild, w, t, wNeighbor)
		if tok != TokenNone {
			if err := l.flushDescendantBuffers(node); err != nil {
				return err
			}
			node, err = l.store.Get(id) // flushing rewrote node; re-fetch
			if err != nil {
				return err
			}
			newID, newParentID, err := l.reorganize(tok, node, parentID, at, el.Key)
			if err != nil {
				return err
			}
			id, parentID = newID, newParentID
			continue
		}

		if !isRoot && l.isBufferLevel(node.Level) {
			return l.appendToBuffer(node, el)
		}

		if err := l.applyCounterDelta(parent, parentID, idx, isRoot, el); err != nil {
			return err
		}

		if node.IsLeaf() {
			return l.growLeafNode(node, el)
		}

		childIdx := chooseChildMV(node, el.Key)
		if childIdx < 0 {
			return mverr.Corrupted("mvplus: page %d has no live child for the given key", node.ID)
		}
		parentID = id
		id = node.Children[childIdx].Child
	}
}

func (l *Loader) pushIntoEmpty(el page.BufferedElement) error {
	if el.Op != page.OpInsert {
		return mverr.InvalidInput("mvplus: the first write into an empty tree must be an insert")
	}
	id, err := l.store.Reserve()
	if err != nil {
		return err
	}
	leaf := page.NewLeaf(id)
	leaf.InsertLeafEntryMV(page.LeafEntry{Key: el.Key, Value: el.Value, Lifespan: descriptor.Alive(version.V(el.Version))})
	if err := l.store.Insert(leaf); err != nil {
		return err
	}
	l.liveRoot = id
	l.rootW, l.rootT = 1, 1
	if l.maxVersion.Compare(version.V(el.Version)) < 0 {
		l.maxVersion = version.V(el.Version)
	}
	return nil
}

// chooseChildMV picks the live child whose key range covers k, purely
// by key — pushEntry always descends along the current live
// generation, so there is no reference version to additionally check
// (c.f. page.Node.ChooseChildMV, which also filters by a reference
// lifespan for point-in-time queries).
func chooseChildMV(n *page.Node, k kv.Key) int {
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

// applyDelta applies §4.5's per-element (w, t) update rule: an insert
// grows the live set and counts as an operation; an update leaves the
// live set unchanged but still counts; a delete shrinks the live set
// without adding to the operation count (a removal doesn't push the
// node any closer to BUFFER/overflow capacity).
func applyDelta(w, t int64, op page.BufferedOp) (int64, int64) {
	switch op {
	case page.OpInsert:
		return w + 1, t + 1
	case page.OpUpdate:
		return w, t + 1
	case page.OpDelete:
		return w - 1, t
	default:
		return w, t
	}
}

func (l *Loader) applyCounterDelta(parent *page.Node, parentID page.ID, idx int, isRoot bool, el page.BufferedElement) error {
	if isRoot {
		l.rootW, l.rootT = applyDelta(l.rootW, l.rootT, el.Op)
		return nil
	}
	p := parent.Clone()
	p.Children[idx].W, p.Children[idx].T = applyDelta(p.Children[idx].W, p.Children[idx].T, el.Op)
	return l.store.Update(p)
}

func findAliveItem(n *page.Node, k page.LeafEntry) (int, bool) {
	for i, it := range n.Items {
		if it.Key.Compare(k.Key) == 0 && it.Lifespan.IsAlive() {
			return i, true
		}
	}
	return -1, false
}

func (l *Loader) growLeafNode(node *page.Node, el page.BufferedElement) error {
	node = node.Clone()
	at := version.V(el.Version)
	switch el.Op {
	case page.OpInsert:
		node.InsertLeafEntryMV(page.LeafEntry{Key: el.Key, Value: el.Value, Lifespan: descriptor.Alive(at)})
	case page.OpDelete:
		idx, ok := findAliveItem(node, page.LeafEntry{Key: el.Key})
		if !ok {
			return mverr.InvalidInput("mvplus: delete for a key with no live entry")
		}
		node.Items[idx].Lifespan = node.Items[idx].Lifespan.Delete(at)
	case page.OpUpdate:
		if idx, ok := findAliveItem(node, page.LeafEntry{Key: el.Key}); ok {
			node.Items[idx].Lifespan = node.Items[idx].Lifespan.Delete(at)
		}
		node.InsertLeafEntryMV(page.LeafEntry{Key: el.Key, Value: el.Value, Lifespan: descriptor.Alive(at)})
	default:
		return mverr.InvalidInput("mvplus: unknown buffered op %d", el.Op)
	}
	return l.store.Update(node)
}

// appendToBuffer stages el in node's own buffer, spilling the
// accumulated batch to the configured queue once it reaches
// reducedMemory (§4.5's per-node buffer spill threshold).
func (l *Loader) appendToBuffer(node *page.Node, el page.BufferedElement) error {
	node = node.Clone()
	node.Buffer = append(node.Buffer, el)
	if len(node.Buffer) >= l.reducedMemory {
		if err := l.spillBuffer(node); err != nil {
			return err
		}
	}
	return l.store.Update(node)
}

func (l *Loader) spillBuffer(node *page.Node) error {
	if l.queueFactory == nil {
		l.log.Warn("mvplus: buffer full with no queue_factory configured, growing in memory", mvlog.Uint64("node", uint64(node.ID)))
		return nil
	}
	q, ok := l.spillQueues[node.ID]
	if !ok {
		var err error
		q, err = l.queueFactory(node.ID)
		if err != nil {
			return err
		}
		l.spillQueues[node.ID] = q
	}
	batch := node.Buffer
	node.Buffer = nil
	if _, err := q.Spill(batch); err != nil {
		return err
	}
	return nil
}

// flushDescendantBuffers empties node's own in-memory buffer and any
// queue it has spilled to, re-pushing every staged element through
// pushEntry from the live root — always correct, since a buffered
// element's destination is determined purely by its key, never by
// which node happened to hold it.
func (l *Loader) flushDescendantBuffers(node *page.Node) error {
	if len(node.Buffer) == 0 && l.spillDepth(node.ID) == 0 {
		return nil
	}
	pending := node.Buffer
	if len(pending) > 0 {
		cleared := node.Clone()
		cleared.Buffer = nil
		if err := l.store.Update(cleared); err != nil {
			return err
		}
	}
	for _, e := range pending {
		if err := l.pushEntry(e); err != nil {
			return err
		}
	}
	if q, ok := l.spillQueues[node.ID]; ok {
		for {
			batch, err := q.DrainNext()
			if err != nil {
				return err
			}
			if batch == nil {
				break
			}
			for _, e := range batch {
				if err := l.pushEntry(e); err != nil {
					return err
				}
			}
		}
		delete(l.spillQueues, node.ID)
	}
	return nil
}

func (l *Loader) spillDepth(id page.ID) int {
	if q, ok := l.spillQueues[id]; ok {
		return q.Depth()
	}
	return 0
}

// pushAllBuffers repeatedly sweeps every buffer-bearing node still
// carrying pending work and flushes it, until none remain — §4.5's
// pushAllBuffers, run once at the end of a bulk-load.
func (l *Loader) pushAllBuffers() error {
	for {
		ids, err := l.collectBufferNodes()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, id := range ids {
			n, err := l.store.Get(id)
			if err != nil {
				return err
			}
			if err := l.flushDescendantBuffers(n); err != nil {
				return err
			}
		}
	}
}

// collectBufferNodes walks the live tree breadth-first, collecting
// the ids of every buffer-level node that still has pending work (an
// in-memory buffer or a non-empty spill queue).
func (l *Loader) collectBufferNodes() ([]page.ID, error) {
	if l.liveRoot == 0 {
		return nil, nil
	}
	var out []page.ID
	queue := []page.ID{l.liveRoot}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, err := l.store.Get(id)
		if err != nil {
			return nil, err
		}
		if n.IsLeaf() {
			continue
		}
		if l.isBufferLevel(n.Level) && (len(n.Buffer) > 0 || l.spillDepth(id) > 0) {
			out = append(out, id)
		}
		for _, c := range n.Children {
			if c.MVSep.Lifespan.IsAlive() {
				queue = append(queue, c.Child)
			}
		}
	}
	return out, nil
}
