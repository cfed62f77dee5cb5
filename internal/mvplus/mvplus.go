// Package mvplus implements the buffered bulk-loading / bulk-update
// variant of the MV-Tree ("MV-Tree-Plus"): per-node buffers on
// selected levels, weight-balanced reorganization driven by the five
// §4.5.1 tokens, and two entry points — BulkLoad for an unsorted input
// stream and BulkInsert for a single staged element, both of which
// route through pushEntry, a descent loop carrying (w, t) weight
// counters on every edge instead of the raw occupancy counts mvtree's
// write path checks.
//
// mini-db-engine writes one record at a time, so there is no direct
// analogue for a buffered loader. The descent shape is grounded on the
// same path-stack walk mvtree.Tree generalizes from
// mini-db-engine/internal/btree/tree.go's Insert/Delete unwind loop;
// the per-entry (w, t) bookkeeping read by a policy function is
// grounded on mini-db-engine's PageManager LRU hit/miss/eviction
// counters (internal/page/cache.go), the closest thing in the corpus
// to "small mutable counters attached to a long-lived structure,
// consulted by a reorganization/eviction policy."
package mvplus

import (
	"math"

	"mvtree/internal/bptree"
	"mvtree/internal/kv"
	"mvtree/internal/mverr"
	"mvtree/internal/mvlog"
	"mvtree/internal/page"
	"mvtree/internal/store"
	"mvtree/internal/version"
)

// Op names the write kind a staged Element represents (§4.5's
// Element = (value, version, op)). Re-exported from package page so
// callers never need to import it directly just to build an Element.
type Op = page.BufferedOp

const (
	OpInsert = page.OpInsert
	OpUpdate = page.OpUpdate
	OpDelete = page.OpDelete
)

// Element is one entry in the bulk-load/bulk-insert input stream.
type Element struct {
	Key     kv.Key
	Value   kv.Value
	Version version.V
	Op      Op
}

// SpillQueue is the external collaborator a buffer overflows into
// once it would otherwise grow past the loader's memory budget — §6's
// "queue_factory" tuning knob. store/spillqueue.Queue is the worked
// disk-backed implementation.
type SpillQueue interface {
	Spill(elements []page.BufferedElement) (string, error)
	DrainNext() ([]page.BufferedElement, error)
	Depth() int
}

// QueueFactory vends a fresh SpillQueue the first time a given node's
// in-memory buffer would overflow. A nil factory means buffers simply
// keep growing in memory instead of spilling to disk — acceptable for
// tests and small loads, not for anything that must bound process
// memory.
type QueueFactory func(nodeID page.ID) (SpillQueue, error)

// Config carries the §4.5 tuning parameters.
type Config struct {
	// MemoryCapacity bounds the loader's total working set, in
	// elements. reducedMemory = MemoryCapacity/4 is both the root
	// queue's drain threshold and each buffer's spill threshold.
	MemoryCapacity int
	// ParamA is the weight-bound branching parameter (§4.5);
	// defaults to the codec's DInner when zero.
	ParamA int
	// Epsilon is the same ε-slack §4.4 uses for the strong version
	// condition, reused here for minLiveStrong/maxLiveStrong.
	Epsilon float64
	// QueueFactory backs buffer spillover; nil disables spilling.
	QueueFactory QueueFactory
}

// DefaultConfig matches mvtree.DefaultConfig's occupancy assumptions.
func DefaultConfig() Config { return Config{MemoryCapacity: 256, Epsilon: 0.1} }

// Loader is the MV-Tree-Plus buffered bulk-loader/updater: a live MV
// tree shape (same page layout mvtree.Tree writes, with W/T weight
// counters and Buffer populated) plus a root queue and the per-node
// buffers that amortize reorganization cost across many writes.
type Loader struct {
	store store.PageStore
	codec *page.Codec
	log   mvlog.Logger

	liveRoot   page.ID
	rootW      int64
	rootT      int64
	minVersion version.V
	maxVersion version.V

	historicalRoots *bptree.Tree

	reducedMemory    int
	firstBufferLevel int
	paramA           int64
	epsilon          float64

	rootQueue    []page.BufferedElement
	queueFactory QueueFactory
	spillQueues  map[page.ID]SpillQueue
}

// Open attaches a Loader to an existing (or brand-new, liveRoot==0)
// live root, built with a Weighted, MultiVersion codec. catalogRoot is
// the historical-root catalog's own root page id (0 for a fresh
// catalog) — the same nested-bptree.Tree pattern mvtree.Tree uses.
func Open(s store.PageStore, codec *page.Codec, liveRoot page.ID, catalogRoot page.ID, startVersion version.V, cfg Config, log mvlog.Logger) (*Loader, error) {
	if !codec.MultiVersion || !codec.Weighted {
		return nil, mverr.InvalidInput("mvplus: codec must be opened with MultiVersion=true, Weighted=true")
	}
	if cfg.MemoryCapacity <= 0 {
		return nil, mverr.InvalidInput("mvplus: MemoryCapacity must be positive, got %d", cfg.MemoryCapacity)
	}
	paramA := cfg.ParamA
	if paramA <= 0 {
		paramA = codec.DInner
	}
	if paramA <= 1 {
		return nil, mverr.InvalidInput("mvplus: ParamA (or codec DInner) must be > 1, got %d", paramA)
	}

	catalogCodec, err := page.NewCodec(versionKeyCodec{}, pageValueCodec{}, codec.BlockSize, 0.5, false, false)
	if err != nil {
		return nil, err
	}

	reduced := cfg.MemoryCapacity / 4
	if reduced < 1 {
		reduced = 1
	}

	l := &Loader{
		store:            s,
		codec:            codec,
		log:              log,
		liveRoot:         liveRoot,
		minVersion:       startVersion,
		maxVersion:       startVersion,
		historicalRoots:  bptree.Open(s, catalogCodec, catalogRoot, false, log),
		reducedMemory:    reduced,
		firstBufferLevel: firstBufferLevel(reduced, codec.BInner),
		paramA:           int64(paramA),
		epsilon:          cfg.Epsilon,
		queueFactory:     cfg.QueueFactory,
		spillQueues:      map[page.ID]SpillQueue{},
	}
	return l, nil
}

// firstBufferLevel computes §4.5's floor(log_B(reducedMemory/B_inner)),
// floored at 1 (a buffer level of 0 would mean the leaves themselves).
func firstBufferLevel(reducedMemory, bInner int) int {
	if bInner <= 1 || reducedMemory <= bInner {
		return 1
	}
	v := int(math.Floor(math.Log(float64(reducedMemory)/float64(bInner)) / math.Log(float64(bInner))))
	if v < 1 {
		v = 1
	}
	return v
}

// isBufferLevel reports whether level carries a per-node buffer
// (Glossary: "Buffer level").
func (l *Loader) isBufferLevel(level int) bool {
	return level > 0 && level%l.firstBufferLevel == 0
}

// LiveRoot returns the page id of the currently-live root.
func (l *Loader) LiveRoot() page.ID { return l.liveRoot }

// HistoricalRootsID returns the historical-root catalog's own root
// page id, for persisting alongside LiveRoot in the tree-descriptor
// sidecar (§6).
func (l *Loader) HistoricalRootsID() page.ID { return l.historicalRoots.Root() }

// MaxVersion returns the highest version any processed Element has
// carried so far.
func (l *Loader) MaxVersion() version.V { return l.maxVersion }
