package main

import (
	"mvtree/codec/intkey"
	"mvtree/codec/stringvalue"
	"mvtree/internal/mvconfig"
	"mvtree/internal/page"
	"mvtree/internal/store/filestore"
)

// openCodec builds the Weighted, MultiVersion codec every mvtreectl
// subcommand shares — bulk-load writes the W/T counters mvplus.Loader
// needs, and query/history/roots/gc read the same page layout back
// through mvtree.Tree, which simply ignores the counters it doesn't
// use. A single db-file is therefore readable by both layers without
// a format migration between them.
func openCodec(cfg mvconfig.Config) (*page.Codec, error) {
	return page.NewCodec(intkey.Codec{}, stringvalue.Codec{}, cfg.BlockSize, cfg.MinCapacityRatio, true, true)
}

func openStore(dbFile string, codec *page.Codec) (*filestore.Store, error) {
	return filestore.Open(dbFile, codec, filestore.DefaultCacheSize)
}
