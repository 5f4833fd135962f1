package config

import (
	"fmt"
	"time"

	"github.com/LeJamon/goUnitrie/internal/storage/nodestore"
)

// StoreConfig represents the [store] section
// Configures the persistent node store behind the trie
type StoreConfig struct {
	Backend         string        `toml:"backend" mapstructure:"backend"`
	Path            string        `toml:"path" mapstructure:"path"`
	CacheSize       int           `toml:"cache_size" mapstructure:"cache_size"`
	CacheTTL        time.Duration `toml:"cache_ttl" mapstructure:"cache_ttl"`
	Compressor      string        `toml:"compressor" mapstructure:"compressor"`
	CreateIfMissing bool          `toml:"create_if_missing" mapstructure:"create_if_missing"`
	NodeCacheSize   int           `toml:"node_cache_size" mapstructure:"node_cache_size"`
	Codec           string        `toml:"codec" mapstructure:"codec"`
}

// Validate performs validation on the store configuration
func (s *StoreConfig) Validate() error {
	if err := s.NodestoreConfig().Validate(); err != nil {
		return err
	}

	if s.NodeCacheSize <= 0 {
		return fmt.Errorf("node_cache_size must be positive, got %d", s.NodeCacheSize)
	}

	switch s.Codec {
	case "unitrie", "legacy":
	default:
		return fmt.Errorf("invalid codec: %s (valid options: unitrie, legacy)", s.Codec)
	}

	return nil
}

// NodestoreConfig converts the section into the record database settings
func (s *StoreConfig) NodestoreConfig() *nodestore.Config {
	cfg := nodestore.DefaultConfig()
	cfg.ApplyOptions(
		nodestore.WithBackend(s.Backend),
		nodestore.WithPath(s.Path),
		nodestore.WithCacheSize(s.CacheSize),
		nodestore.WithCacheTTL(s.CacheTTL),
		nodestore.WithCompression(s.Compressor, cfg.CompressionLevel),
		nodestore.WithCreateIfMissing(s.CreateIfMissing),
	)
	return cfg
}

// IsPersistent returns true if nodes survive a restart
func (s *StoreConfig) IsPersistent() bool {
	return s.Backend != "memory"
}
