package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mvtree/codec/intkey"
	"mvtree/internal/kv"
	"mvtree/internal/mvlog"
	"mvtree/internal/mvtree"
	"mvtree/internal/version"
)

func newQueryCmd() *cobra.Command {
	var lo, hi int64
	var ver uint64

	cmd := &cobra.Command{
		Use:   "query <db-file>",
		Short: "Run a reference-point range query over [--lo, --hi] as of --version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var min, max kv.Key
			if cmd.Flags().Changed("lo") {
				min = intkey.Key(lo)
			}
			if cmd.Flags().Changed("hi") {
				max = intkey.Key(hi)
			}
			return runQuery(args[0], min, max, version.V(ver))
		},
	}
	cmd.Flags().Int64Var(&lo, "lo", 0, "lower key bound, inclusive (unbounded if omitted)")
	cmd.Flags().Int64Var(&hi, "hi", 0, "upper key bound, inclusive (unbounded if omitted)")
	cmd.Flags().Uint64Var(&ver, "version", 0, "reference version (current version if omitted)")
	return cmd
}

func runQuery(dbFile string, min, max kv.Key, at version.V) error {
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

	if at == 0 {
		at = desc.currentV()
	}
	tr, err := mvtree.Open(s, codec, desc.liveRootID(), desc.currentV(), desc.catalogRootID(), mvtree.DefaultConfig(), mvlog.Nop())
	if err != nil {
		return err
	}

	c, err := tr.Query(min, max, at)
	if err != nil {
		return err
	}
	for c.Next() {
		fmt.Printf("%v\t%v\n", c.Key(), c.Value())
	}
	return c.Err()
}
