package main

import (
	"encoding/json"
	"os"

	"mvtree/internal/mverr"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// treeDescriptor is the small sidecar state a db-file needs beyond its
// page data: the two root ids every tree layer keeps in memory
// (mvplus.Loader exposes LiveRoot/HistoricalRootsID; mvtree.Tree
// exposes LiveRoot and the catalog via HistoricalRoots), plus the
// version bookkeeping a fresh process must resume from. No pack library
// owns "round-trip a small typed struct to a sidecar file" the way
// viper owns hierarchical config — internal/mvconfig uses viper for
// user-edited config, and this internal state file uses the
// standard-library encoding/json directly.
type treeDescriptor struct {
	BlockSize      int     `json:"block_size"`
	MinOccupancy   float64 `json:"min_occupancy"`
	LiveRoot       uint64  `json:"live_root"`
	CatalogRoot    uint64  `json:"catalog_root"`
	MinVersion     uint64  `json:"min_version"`
	CurrentVersion uint64  `json:"current_version"`
	CutoffVersion  uint64  `json:"cutoff_version"`
}

func descriptorPath(dbFile string) string { return dbFile + ".mvtree.json" }

func loadDescriptor(dbFile string, blockSize int, minOccupancy float64) (treeDescriptor, error) {
	raw, err := os.ReadFile(descriptorPath(dbFile))
	if os.IsNotExist(err) {
		return treeDescriptor{BlockSize: blockSize, MinOccupancy: minOccupancy}, nil
	}
	if err != nil {
		return treeDescriptor{}, mverr.IO("read", 0, err)
	}
	var d treeDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return treeDescriptor{}, mverr.Corrupted("mvtreectl: decoding descriptor %q: %v", descriptorPath(dbFile), err)
	}
	return d, nil
}

func saveDescriptor(dbFile string, d treeDescriptor) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(descriptorPath(dbFile), raw, 0o644); err != nil {
		return mverr.IO("write", 0, err)
	}
	return nil
}

func (d treeDescriptor) liveRootID() page.ID    { return page.ID(d.LiveRoot) }
func (d treeDescriptor) catalogRootID() page.ID { return page.ID(d.CatalogRoot) }
func (d treeDescriptor) minVersionV() version.V { return version.V(d.MinVersion) }
func (d treeDescriptor) currentV() version.V    { return version.V(d.CurrentVersion) }
func (d treeDescriptor) cutoffV() version.V     { return version.V(d.CutoffVersion) }
