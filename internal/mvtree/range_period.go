package mvtree

import (
	"sort"

	"mvtree/internal/descriptor"
	"mvtree/internal/kv"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// PeriodEntry is one (key, value) pair as it stood during some portion
// of a RangePeriod query's [from, to] window.
type PeriodEntry struct {
	Key      kv.Key
	Value    kv.Value
	Lifespan descriptor.Lifespan
}

// PeriodCursor walks every tuple, across every generation, whose key
// falls in [min, max] and whose lifespan overlaps [from, to], each
// tuple once however many generations hold a copy of it — the
// range generalization of History, which answers the same question
// for a single key. Built eagerly, same as PriorityCursor: a bounded
// key range over a bounded version window is expected to be small
// relative to a full scan.
type PeriodCursor struct {
	items []PeriodEntry
	idx   int
	err   error
}

// RangePeriod returns every version any key in [min, max] held during
// [from, to], oldest first within each key. min == nil means unbounded
// below, max == nil unbounded above, to == version.Infinity unbounded
// above in time.
func (t *Tree) RangePeriod(min, max kv.Key, from, to version.V) (*PeriodCursor, error) {
	leaves, err := t.generationsForRange(min, max)
	if err != nil {
		return nil, err
	}
	window := descriptor.Lifespan{Begin: from, End: to, Closed: true}

	var items []PeriodEntry
	for _, leaf := range leaves {
		for _, it := range leaf.Items {
			if !keyInRange(it.Key, min, max) {
				continue
			}
			if !it.Lifespan.Overlaps(window) {
				continue
			}
			items = append(items, PeriodEntry{Key: it.Key, Value: it.Value, Lifespan: it.Lifespan})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if c := items[i].Key.Compare(items[j].Key); c != 0 {
			return c < 0
		}
		return items[i].Lifespan.Begin.Compare(items[j].Lifespan.Begin) < 0
	})

	// Version-splits and merges leave copies of one tuple in several
	// generations; the copies share its key and Begin. Keep only the
	// copy with the latest End, which carries the tuple's real lifespan.
	out := items[:0]
	for _, it := range items {
		if n := len(out); n > 0 && out[n-1].Key.Compare(it.Key) == 0 && out[n-1].Lifespan.Begin == it.Lifespan.Begin {
			if out[n-1].Lifespan.End.Compare(it.Lifespan.End) < 0 {
				out[n-1] = it
			}
			continue
		}
		out = append(out, it)
	}

	return &PeriodCursor{idx: -1, items: out}, nil
}

// generationsForRange collects every distinct leaf page that has ever
// held a key in [min, max], across the live tree and every recorded
// historical root, following both child routing and predecessor links
// — the key-range generalization of generationsForKey, which only ever
// follows a single child per inner node.
func (t *Tree) generationsForRange(min, max kv.Key) ([]*page.Node, error) {
	seen := map[page.ID]*page.Node{}

	var visit func(id page.ID) error
	visit = func(id page.ID) error {
		if id == 0 {
			return nil
		}
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
				if err := visit(pred.Child); err != nil {
					return err
				}
			}
			return nil
		}
		for _, idx := range childrenInRange(n, min, max) {
			if err := visit(n.Children[idx].Child); err != nil {
				return err
			}
		}
		for _, pred := range n.Predecessors {
			if err := visit(pred.Child); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(t.liveRoot); err != nil {
		return nil, err
	}

	cur, err := t.historicalRoots.Scan()
	if err != nil {
		return nil, err
	}
	for cur.Next() {
		if err := visit(page.ID(cur.Value().(pageValue))); err != nil {
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

// childrenInRange returns every child index whose subtree might hold a
// key in [min, max], routing by key alone (ignoring liveness) the same
// way chooseAnyChild does for a single key.
func childrenInRange(n *page.Node, min, max kv.Key) []int {
	start := 0
	if min != nil {
		if s := chooseAnyChild(n, min); s > 0 {
			start = s
		}
	}
	var out []int
	for i := start; i < len(n.Children); i++ {
		if max != nil && n.Children[i].MVSep.Key.Compare(max) > 0 {
			break
		}
		out = append(out, i)
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = append(out, len(n.Children)-1)
	}
	return out
}

func keyInRange(k, min, max kv.Key) bool {
	if min != nil && k.Compare(min) < 0 {
		return false
	}
	if max != nil && k.Compare(max) > 0 {
		return false
	}
	return true
}

// Next advances to the next entry, ordered by key then by lifespan
// start within a key.
func (c *PeriodCursor) Next() bool {
	if c.err != nil || c.idx+1 >= len(c.items) {
		return false
	}
	c.idx++
	return true
}

// Key returns the current entry's key.
func (c *PeriodCursor) Key() kv.Key { return c.items[c.idx].Key }

// Value returns the current entry's value.
func (c *PeriodCursor) Value() kv.Value { return c.items[c.idx].Value }

// Lifespan returns the current entry's validity interval.
func (c *PeriodCursor) Lifespan() descriptor.Lifespan { return c.items[c.idx].Lifespan }

// Err returns the first error encountered while building the cursor.
func (c *PeriodCursor) Err() error { return c.err }
