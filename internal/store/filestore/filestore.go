// Package filestore is a single-file, write-through PageStore with an
// LRU read cache, grounded on mini-db-engine's PageManager
// (mini-db-engine/internal/page/page_manager.go) but with the
// hand-rolled container/list LRU swapped for golang-lru/v2, and pages
// always encoded through a page.Codec rather than Go-native structs.
package filestore

import (
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"mvtree/internal/mverr"
	"mvtree/internal/page"
	"mvtree/internal/store"
)

// DefaultCacheSize is the default number of decoded pages kept warm.
const DefaultCacheSize = 256

// Store is a file-backed PageStore: pages are fixed-size slots in a
// single file, addressed by (id-1)*blockSize, with a bounded LRU of
// decoded *page.Node values in front of the file.
type Store struct {
	mu        sync.Mutex
	file      *os.File
	codec     *page.Codec
	blockSize int
	next      uint64
	cache     *lru.Cache[page.ID, *page.Node]
	stats     store.Stats
}

// Open opens (or creates) the database file at path, sized according
// to codec.BlockSize, and resumes page-id allocation after whatever
// pages it already contains.
func Open(path string, codec *page.Codec, cacheSize int) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, mverr.IO("open", 0, err)
	}
	c, err := lru.New[page.ID, *page.Node](cacheSize)
	if err != nil {
		return nil, err
	}
	s := &Store{file: f, codec: codec, blockSize: codec.BlockSize, cache: c}

	fi, err := f.Stat()
	if err != nil {
		return nil, mverr.IO("stat", 0, err)
	}
	s.next = uint64(fi.Size()/int64(s.blockSize)) + 1
	return s, nil
}

// Reserve hands out the next sequential page id without touching the
// file; the slot is materialized on the following Insert.
func (s *Store) Reserve() (page.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := page.ID(s.next)
	s.next++
	return id, nil
}

func (s *Store) Insert(n *page.Node) error { return s.writeThrough(n) }
func (s *Store) Update(n *page.Node) error { return s.writeThrough(n) }

// writeThrough encodes n and writes it to its slot, then refreshes the
// cache entry — every write is immediately durable, the same
// WritePageToFile-on-every-mutation pattern mini-db-engine uses (no
// deferred flush or WAL; out of scope here).
func (s *Store) writeThrough(n *page.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.codec.Encode(n)
	if err != nil {
		return err
	}
	off := int64(n.ID-1) * int64(s.blockSize)
	if _, err := s.file.WriteAt(raw, off); err != nil {
		return mverr.IO("write", uint64(n.ID), err)
	}
	if evicted := s.cache.Add(n.ID, n.Clone()); evicted {
		s.stats.Evictions++
	}
	s.stats.Writes++
	return nil
}

// Get returns the node at id, serving from cache when present and
// falling back to a file read (counted in Stats) on a miss.
func (s *Store) Get(id page.ID) (*page.Node, error) {
	s.mu.Lock()
	if n, ok := s.cache.Get(id); ok {
		s.stats.Hits++
		s.mu.Unlock()
		return n.Clone(), nil
	}
	s.mu.Unlock()

	raw := make([]byte, s.blockSize)
	off := int64(id-1) * int64(s.blockSize)
	if _, err := s.file.ReadAt(raw, off); err != nil {
		return nil, mverr.IO("read", uint64(id), err)
	}
	n, err := s.codec.Decode(id, raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Misses++
	s.stats.Reads++
	if evicted := s.cache.Add(id, n.Clone()); evicted {
		s.stats.Evictions++
	}
	return n, nil
}

// Remove evicts id from cache. The file slot is left in place — the
// allocator never reclaims ids mid-lifetime, matching the tree's
// arena-by-id ownership model (ids are weak references elsewhere:
// predecessor links, the purge queue).
func (s *Store) Remove(id page.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
	return nil
}

func (s *Store) Stats() store.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Store) Close() error { return s.file.Close() }
