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

func newHistoryCmd() *cobra.Command {
	var lo, hi int64
	var from, to uint64

	cmd := &cobra.Command{
		Use:   "history <db-file>",
		Short: "List every version a key in [--lo, --hi] held during [--from, --to]",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var min, max kv.Key
			if cmd.Flags().Changed("lo") {
				min = intkey.Key(lo)
			}
			if cmd.Flags().Changed("hi") {
				max = intkey.Key(hi)
			}
			toV := version.V(to)
			if !cmd.Flags().Changed("to") {
				toV = version.Infinity
			}
			return runHistory(args[0], min, max, version.V(from), toV)
		},
	}
	cmd.Flags().Int64Var(&lo, "lo", 0, "lower key bound, inclusive (unbounded if omitted)")
	cmd.Flags().Int64Var(&hi, "hi", 0, "upper key bound, inclusive (unbounded if omitted)")
	cmd.Flags().Uint64Var(&from, "from", 0, "lower version bound, inclusive")
	cmd.Flags().Uint64Var(&to, "to", 0, "upper version bound, inclusive (unbounded if omitted)")
	return cmd
}

func runHistory(dbFile string, min, max kv.Key, from, to version.V) error {
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

	c, err := tr.RangePeriod(min, max, from, to)
	if err != nil {
		return err
	}
	for c.Next() {
		fmt.Printf("%v\t%v\t%v\n", c.Key(), c.Value(), c.Lifespan())
	}
	return c.Err()
}
