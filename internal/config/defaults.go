package config

import (
	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/LeJamon/goUnitrie/internal/storage/nodestore"
	"github.com/spf13/viper"
)

// setDefaults sets all default values
func setDefaults(v *viper.Viper) {
	store := nodestore.DefaultConfig()

	// Store defaults
	v.SetDefault("store.backend", store.Backend)
	v.SetDefault("store.path", store.Path)
	v.SetDefault("store.cache_size", store.CacheSize)
	v.SetDefault("store.cache_ttl", store.CacheTTL)
	v.SetDefault("store.compressor", store.Compressor)
	v.SetDefault("store.create_if_missing", store.CreateIfMissing)
	v.SetDefault("store.node_cache_size", trie.DefaultNodeCacheSize)
	v.SetDefault("store.codec", trie.CanonicalCodec.Name())

	// Trie defaults
	v.SetDefault("trie.secure", true)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.outputs", []string{"stderr"})
}
