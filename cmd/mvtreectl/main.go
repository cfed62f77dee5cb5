// Command mvtreectl is a small inspection CLI over the MV-Tree engine:
// bulk-load a JSONL element stream, run reference-point and
// time-window range queries, dump the historical-root catalog, and
// advance the garbage-collection cutoff — an external consumer of
// internal/mvtree and internal/mvplus the same way mini-db-engine's
// cmd/minidb is an external consumer of internal/btree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mvtree/internal/mvconfig"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mvtreectl",
		Short: "Inspect and bulk-load a disk-resident multi-version B+-tree",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "tuning config file (YAML/JSON/TOML); defaults used when omitted")
	root.AddCommand(newBulkLoadCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newRootsCmd())
	root.AddCommand(newGCCmd())
	return root
}

// loadTuningConfig reads --config if given, else mvconfig.Default().
func loadTuningConfig() (mvconfig.Config, error) {
	if configPath == "" {
		return mvconfig.Default(), nil
	}
	return mvconfig.Load(configPath)
}
