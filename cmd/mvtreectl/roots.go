package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mvtree/internal/mvlog"
	"mvtree/internal/mvtree"
)

func newRootsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roots <db-file>",
		Short: "Dump the historical-root catalog: version -> retired root page id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoots(args[0])
		},
	}
}

func runRoots(dbFile string) error {
	cfg, err := loadTuningConfig()
	if err != nil {
		return err
	}
	codec, err := openCodec(cfg)
	if err != nil {
		return err
	}
	desc, err := loadDescriptor(dbFile, cfg.BlockSize, cfg.MinCapacityRatio)
	if err != nil {
		return err
	}
	s, err := openStore(dbFile, codec)
	if err != nil {
		return err
	}
	defer s.Close()

	tr, err := mvtree.Open(s, codec, desc.liveRootID(), desc.currentV(), desc.catalogRootID(), mvtree.DefaultConfig(), mvlog.Nop())
	if err != nil {
		return err
	}

	fmt.Printf("live root: %d\n", tr.LiveRoot())
	c, err := tr.HistoricalRoots().Scan()
	if err != nil {
		return err
	}
	for c.Next() {
		fmt.Printf("retired_at=%v root=%v\n", c.Key(), c.Value())
	}
	return c.Err()
}
