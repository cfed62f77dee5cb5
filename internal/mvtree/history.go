package mvtree

import (
	"sync"

	"mvtree/internal/mverr"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// purgeEntry records a page that became purely historical (no live
// entry routes to it anymore) at closedAt — every reader holding a
// reference-point at or after closedAt no longer needs it.
type purgeEntry struct {
	id       page.ID
	closedAt version.V
}

// PurgeQueue accumulates pages orphaned by version-splits and merges
// until a caller decides it's safe to reclaim them. Physical removal
// is never automatic: a long-lived historical reader pinned to an old
// version must be allowed to finish before its pages vanish, so
// reclamation always comes from an explicit call: RunPurge, or
// SetCutoffVersion (which the gc CLI subcommand uses).
type PurgeQueue struct {
	mu      sync.Mutex
	entries []purgeEntry
}

// NewPurgeQueue returns an empty queue.
func NewPurgeQueue() *PurgeQueue { return &PurgeQueue{} }

// Enqueue records that id stopped being reachable from live routing as
// of closedAt.
func (q *PurgeQueue) Enqueue(id page.ID, closedAt version.V) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, purgeEntry{id: id, closedAt: closedAt})
}

// Len reports how many pages are awaiting reclamation.
func (q *PurgeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// RunPurge physically removes every queued page that became
// historical strictly before retainBelow — i.e. no reader asking for a
// version >= retainBelow can still need it — and reports how many were
// reclaimed. Entries not yet eligible stay queued for a later call.
func (t *Tree) RunPurge(retainBelow version.V) (int, error) {
	return t.drainPurge(func(dv version.V) bool { return dv.Compare(retainBelow) < 0 })
}

// SetCutoffVersion advances the tree's cutoff version and immediately
// reclaims every queued page whose death version is <= v (L5's
// semantics: exactly the pages that died at or before the cutoff, and
// idempotent when called again with the same v). The cutoff must only
// move forward and must never pass the current write version.
func (t *Tree) SetCutoffVersion(v version.V) (int, error) {
	if v.Compare(t.cutoff) < 0 {
		return 0, mverr.InvalidInput("mvtree: cutoff version must be monotonically increasing, got %v after %v", v, t.cutoff)
	}
	if v.Compare(t.current) > 0 {
		return 0, mverr.InvalidInput("mvtree: cutoff version %v cannot exceed the current version %v", v, t.current)
	}
	t.cutoff = v
	return t.drainPurge(func(dv version.V) bool { return dv.Compare(v) <= 0 })
}

func (t *Tree) drainPurge(eligible func(version.V) bool) (int, error) {
	t.purge.mu.Lock()
	var keep []purgeEntry
	var reclaim []page.ID
	for _, e := range t.purge.entries {
		if eligible(e.closedAt) {
			reclaim = append(reclaim, e.id)
		} else {
			keep = append(keep, e)
		}
	}
	t.purge.entries = keep
	t.purge.mu.Unlock()

	for _, id := range reclaim {
		if err := t.store.Remove(id); err != nil {
			return 0, err
		}
	}
	return len(reclaim), nil
}

// PendingPurgeCount reports how many pages are queued for reclamation.
func (t *Tree) PendingPurgeCount() int { return t.purge.Len() }
