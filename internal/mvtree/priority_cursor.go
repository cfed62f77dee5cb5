package mvtree

import (
	"container/heap"

	"mvtree/internal/descriptor"
	"mvtree/internal/kv"
	"mvtree/internal/page"
)

// HistoryEntry is one version of a key's value, as recorded by a
// single leaf's Lifespan-tagged entry.
type HistoryEntry struct {
	Lifespan descriptor.Lifespan
	Value    kv.Value
}

// PriorityCursor walks every version a key has ever held, oldest
// first, merging candidates pulled from each distinct leaf generation
// the key ever lived in — the live leaf plus whatever historical
// generations the root catalog and predecessor chain surface. A
// container/heap min-heap keyed by Lifespan.Begin does the merge,
// since the per-generation candidate lists are individually small but
// not already globally ordered relative to each other.
type PriorityCursor struct {
	items []HistoryEntry
	idx   int
	err   error
}

// History returns a cursor over every (lifespan, value) k has ever
// held, oldest first. Reads are eager: a key's full history is
// expected to be small relative to a single scan's working set.
func (t *Tree) History(k kv.Key) (*PriorityCursor, error) {
	leaves, err := t.generationsForKey(k)
	if err != nil {
		return nil, err
	}

	pq := &historyHeap{}
	heap.Init(pq)
	for _, leaf := range leaves {
		for _, it := range leaf.Items {
			if it.Key.Compare(k) == 0 {
				heap.Push(pq, HistoryEntry{Lifespan: it.Lifespan, Value: it.Value})
			}
		}
	}

	c := &PriorityCursor{idx: -1}
	for pq.Len() > 0 {
		c.items = append(c.items, heap.Pop(pq).(HistoryEntry))
	}
	return c, nil
}

// generationsForKey collects every distinct leaf page that has ever
// been responsible for k, across the live tree and every recorded
// historical root, following predecessor links down each generation.
func (t *Tree) generationsForKey(k kv.Key) ([]*page.Node, error) {
	seen := map[page.ID]*page.Node{}

	var addChain func(rootID page.ID) error
	addChain = func(rootID page.ID) error {
		if rootID == 0 {
			return nil
		}
		id := rootID
		for {
			if _, ok := seen[id]; ok {
				return nil
			}
			n, err := t.store.Get(id)
			if err != nil {
				return err
			}
			seen[id] = n
			if n.IsLeaf() {
				for _, pred := range n.Predecessors {
					if err := addChain(pred.Child); err != nil {
						return err
					}
				}
				return nil
			}
			idx := chooseAnyChild(n, k)
			if idx < 0 {
				for _, pred := range n.Predecessors {
					if err := addChain(pred.Child); err != nil {
						return err
					}
				}
				return nil
			}
			id = n.Children[idx].Child
		}
	}

	if err := addChain(t.liveRoot); err != nil {
		return nil, err
	}

	cur, err := t.historicalRoots.Scan()
	if err != nil {
		return nil, err
	}
	for cur.Next() {
		if err := addChain(page.ID(cur.Value().(pageValue))); err != nil {
			return nil, err
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	out := make([]*page.Node, 0, len(seen))
	for _, n := range seen {
		if n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out, nil
}

// chooseAnyChild routes by key alone, ignoring liveness — used to walk
// every generation of the tree's shape regardless of which version it
// belonged to.
func chooseAnyChild(n *page.Node, k kv.Key) int {
	best := -1
	for i, c := range n.Children {
		if c.MVSep.Key.Compare(k) > 0 {
			break
		}
		best = i
	}
	return best
}

// Next advances to the next (older-to-newer) history entry.
func (c *PriorityCursor) Next() bool {
	if c.err != nil || c.idx+1 >= len(c.items) {
		return false
	}
	c.idx++
	return true
}

// Lifespan returns the current entry's validity interval.
func (c *PriorityCursor) Lifespan() descriptor.Lifespan { return c.items[c.idx].Lifespan }

// Value returns the current entry's value.
func (c *PriorityCursor) Value() kv.Value { return c.items[c.idx].Value }

// Err returns the first error encountered while building the cursor.
func (c *PriorityCursor) Err() error { return c.err }

// historyHeap is a container/heap min-heap over HistoryEntry, ordered
// by Lifespan.Begin.
type historyHeap []HistoryEntry

func (h historyHeap) Len() int            { return len(h) }
func (h historyHeap) Less(i, j int) bool  { return h[i].Lifespan.Begin.Compare(h[j].Lifespan.Begin) < 0 }
func (h historyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *historyHeap) Push(x interface{}) { *h = append(*h, x.(HistoryEntry)) }
func (h *historyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
