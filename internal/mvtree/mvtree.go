// Package mvtree implements the multi-version B+-tree: versioned
// writes, the version-split/key-split/strong-merge/merge-key-split
// reorganization state machine, a historical-root catalog, and
// reference-point time-travel queries. mini-db-engine's B+-tree is
// single-version, so the write-path unwind here is grounded on its
// path-stack walk (mini-db-engine/internal/btree/tree.go's
// Insert/Delete loops) generalized from physical key removal to the
// append/close pattern MVCC requires: nothing already written to a
// page is ever deleted in place, only marked with a closed Lifespan —
// physical reclamation is the purge queue's job, drained only by an
// explicit RunPurge or SetCutoffVersion call.
package mvtree

import (
	"mvtree/internal/bptree"
	"mvtree/internal/descriptor"
	"mvtree/internal/kv"
	"mvtree/internal/mverr"
	"mvtree/internal/mvlog"
	"mvtree/internal/page"
	"mvtree/internal/store"
	"mvtree/internal/version"
)

// Tree is a disk-resident multi-version B+-tree.
type Tree struct {
	store store.PageStore
	codec *page.Codec
	log   mvlog.Logger

	liveRoot page.ID
	current  version.V
	cutoff   version.V

	// historicalRoots maps the version at which a new root took
	// effect to that root's page id, so a time-travel query for an
	// old version starts its descent from the root page that was live
	// back then (§4.4.3).
	historicalRoots *bptree.Tree

	purge *PurgeQueue
}

// Config carries the tuning knobs validated at Open time.
type Config struct {
	// MinLiveOccupancy is checked at Open against the strong version
	// condition (§4.4.1): it must lie in (0, 0.5]. It does not set the
	// strong-merge threshold; merges are triggered by the codec's
	// DLeaf/DInner live-count bounds.
	MinLiveOccupancy float64
}

// DefaultConfig matches the codec's own MinOccupancy.
func DefaultConfig() Config { return Config{MinLiveOccupancy: 0.5} }

// Open attaches a Tree to an existing (or brand-new, liveRoot==0) live
// root. catalogRoot is the historical-root catalog's own root page id
// (0 for a fresh catalog).
func Open(s store.PageStore, codec *page.Codec, liveRoot page.ID, startVersion version.V, catalogRoot page.ID, cfg Config, log mvlog.Logger) (*Tree, error) {
	if !codec.MultiVersion {
		return nil, mverr.InvalidInput("mvtree: codec must be opened with MultiVersion=true")
	}
	if err := validateStrongVersionCondition(codec, cfg); err != nil {
		return nil, err
	}
	catalogCodec, err := page.NewCodec(versionKeyCodec{}, pageValueCodec{}, codec.BlockSize, 0.5, false, false)
	if err != nil {
		return nil, err
	}
	t := &Tree{
		store:           s,
		codec:           codec,
		log:             log,
		liveRoot:        liveRoot,
		current:         startVersion,
		historicalRoots: bptree.Open(s, catalogCodec, catalogRoot, false, log),
		purge:           NewPurgeQueue(),
	}
	return t, nil
}

// validateStrongVersionCondition checks that a just-merged node (at
// exactly B/2 + B/2 = B live entries in the worst case admitted by
// MinLiveOccupancy) cannot overflow again without at least one
// intervening insert — i.e. MinLiveOccupancy must leave room below the
// capacity bound B for the merge itself to land under B.
func validateStrongVersionCondition(codec *page.Codec, cfg Config) error {
	if cfg.MinLiveOccupancy <= 0 || cfg.MinLiveOccupancy >= 1 {
		return mverr.InvalidInput("mvtree: MinLiveOccupancy must be in (0, 1), got %v", cfg.MinLiveOccupancy)
	}
	if cfg.MinLiveOccupancy > 0.5 {
		return mverr.InvalidInput("mvtree: MinLiveOccupancy %v violates the strong version condition — a merge of two nodes each above B/2 live entries could immediately overflow", cfg.MinLiveOccupancy)
	}
	return nil
}

// CurrentVersion returns the version writes are currently stamped with.
func (t *Tree) CurrentVersion() version.V { return t.current }

// LiveRoot returns the page id of the currently-live root.
func (t *Tree) LiveRoot() page.ID { return t.liveRoot }

// CutoffVersion returns the most recent version passed to
// SetCutoffVersion (zero if never called).
func (t *Tree) CutoffVersion() version.V { return t.cutoff }

// HistoricalRoots exposes the retired-root catalog for callers that
// need to inspect it directly (cmd/mvtreectl's roots subcommand) —
// keyed by the version at which a root took effect, valued by that
// root's page id (the live root included).
func (t *Tree) HistoricalRoots() *bptree.Tree { return t.historicalRoots }

// Advance closes off the current version and returns the version
// number subsequent writes will be stamped with. Historical queries
// against the version just closed remain valid against whatever root
// id was live up to this call.
func (t *Tree) Advance() version.V {
	t.current++
	return t.current
}

// recordRootChange persists (version -> newRoot) into the historical
// catalog and makes newRoot the live root. Called whenever a reorg
// operation replaces the root page's identity; a later root change
// within the same version replaces that version's catalog entry.
func (t *Tree) recordRootChange(newRoot page.ID) error {
	key := versionKey(t.current)
	_, exists, err := t.historicalRoots.Exact(key)
	if err != nil {
		return err
	}
	if exists {
		err = t.historicalRoots.Update(key, pageValue(newRoot))
	} else {
		err = t.historicalRoots.Insert(key, pageValue(newRoot))
	}
	if err != nil {
		return err
	}
	t.liveRoot = newRoot
	return nil
}

// Insert adds (k, v), alive from the current version onward. Inserting
// a key that already has a live entry is an error — use Update.
func (t *Tree) Insert(k kv.Key, v kv.Value) error {
	if t.liveRoot == 0 {
		return t.insertIntoEmpty(k, v)
	}
	leaf, path, err := t.findLeafForWrite(k)
	if err != nil {
		return err
	}
	if idx, ok := t.findAliveItem(leaf, k); ok {
		_ = idx
		return mverr.InvalidInput("mvtree: key already has a live entry")
	}

	leaf = leaf.Clone()
	leaf.InsertLeafEntryMV(page.LeafEntry{Key: k, Value: v, Lifespan: descriptor.Alive(t.current)})
	if err := t.store.Update(leaf); err != nil {
		return err
	}
	return t.afterLeafGrowth(leaf, path)
}

func (t *Tree) insertIntoEmpty(k kv.Key, v kv.Value) error {
	id, err := t.store.Reserve()
	if err != nil {
		return err
	}
	leaf := page.NewLeaf(id)
	leaf.InsertLeafEntryMV(page.LeafEntry{Key: k, Value: v, Lifespan: descriptor.Alive(t.current)})
	if err := t.store.Insert(leaf); err != nil {
		return err
	}
	return t.recordRootChange(id)
}

// Update closes the existing live entry for k and inserts a fresh one,
// both stamped at the current version — the MVCC read-your-own-write
// boundary falls exactly on version granularity.
func (t *Tree) Update(k kv.Key, v kv.Value) error {
	if t.liveRoot == 0 {
		return mverr.InvalidInput("mvtree: update on empty tree")
	}
	leaf, path, err := t.findLeafForWrite(k)
	if err != nil {
		return err
	}
	idx, ok := t.findAliveItem(leaf, k)
	if !ok {
		return mverr.InvalidInput("mvtree: key not found")
	}

	leaf = leaf.Clone()
	leaf.Items[idx].Lifespan = leaf.Items[idx].Lifespan.Delete(t.current)
	leaf.InsertLeafEntryMV(page.LeafEntry{Key: k, Value: v, Lifespan: descriptor.Alive(t.current)})
	if err := t.store.Update(leaf); err != nil {
		return err
	}
	return t.afterLeafGrowth(leaf, path)
}

// Remove closes the live entry for k at the current version. The
// entry itself is never deleted — time-travel queries against earlier
// versions still see it as alive.
func (t *Tree) Remove(k kv.Key) error {
	if t.liveRoot == 0 {
		return mverr.InvalidInput("mvtree: remove from empty tree")
	}
	leaf, path, err := t.findLeafForWrite(k)
	if err != nil {
		return err
	}
	idx, ok := t.findAliveItem(leaf, k)
	if !ok {
		return mverr.InvalidInput("mvtree: key not found")
	}

	leaf = leaf.Clone()
	leaf.Items[idx].Lifespan = leaf.Items[idx].Lifespan.Delete(t.current)
	if err := t.store.Update(leaf); err != nil {
		return err
	}
	if leaf.LiveItemCount() >= t.codec.DLeaf || len(path) == 0 {
		return nil
	}
	return t.strongMergeLeaf(leaf, path)
}

// Exact returns the currently-live value for k, if any.
func (t *Tree) Exact(k kv.Key) (kv.Value, bool, error) {
	return t.ExactAt(k, t.current)
}

// ExactAt returns the value k held at the given reference version.
func (t *Tree) ExactAt(k kv.Key, at version.V) (kv.Value, bool, error) {
	if t.liveRoot == 0 && at == t.current {
		return nil, false, nil
	}
	leaf, err := t.findLeafAtVersion(k, at)
	if err != nil {
		return nil, false, err
	}
	if leaf == nil {
		return nil, false, nil
	}
	for _, it := range leaf.Items {
		if it.Key.Compare(k) == 0 && it.Lifespan.Contains(at) {
			return it.Value, true, nil
		}
	}
	return nil, false, nil
}
