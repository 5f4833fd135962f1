package nodestore

import (
	"fmt"
	"time"

	"github.com/LeJamon/goUnitrie/internal/storage/nodestore/compression"
)

// Config holds configuration options for the NodeStore.
type Config struct {
	// Backend specifies the storage backend to use
	Backend string `json:"backend" yaml:"backend"`

	// Path specifies the file system path for data storage
	Path string `json:"path" yaml:"path"`

	// Record cache configuration
	CacheSize int           `json:"cache_size" yaml:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// Compression configuration
	Compressor       string `json:"compressor" yaml:"compressor"`
	CompressionLevel int    `json:"compression_level" yaml:"compression_level"`

	CreateIfMissing bool `json:"create_if_missing" yaml:"create_if_missing"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:          "pebble",
		Path:             "./unitrie-db",
		CacheSize:        16384,
		CacheTTL:         10 * time.Minute,
		Compressor:       "lz4",
		CompressionLevel: 1,
		CreateIfMissing:  true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return NewValidationError("backend", nil, "backend must be specified")
	}
	if !IsBackendAvailable(c.Backend) {
		return fmt.Errorf("%w: %s", ErrUnsupportedBackend, c.Backend)
	}

	if c.Path == "" && c.Backend != "memory" {
		return NewValidationError("path", nil, "path must be specified")
	}

	if c.CacheSize < 0 {
		return NewValidationError("cache_size", c.CacheSize, "must be non-negative")
	}

	if c.CacheTTL < 0 {
		return NewValidationError("cache_ttl", c.CacheTTL, "must be non-negative")
	}

	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return NewValidationError("compression_level", c.CompressionLevel, "must be between 0 and 9")
	}

	if !compression.IsAvailable(c.Compressor) {
		return fmt.Errorf("%w: %s", ErrUnsupportedCompressor, c.Compressor)
	}

	return nil
}

// Option represents a functional option for configuring the NodeStore.
type Option func(*Config)

// WithPath sets the storage path.
func WithPath(path string) Option {
	return func(c *Config) {
		c.Path = path
	}
}

// WithBackend sets the storage backend.
func WithBackend(backend string) Option {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithCacheSize sets the record cache size (number of items).
func WithCacheSize(size int) Option {
	return func(c *Config) {
		c.CacheSize = size
	}
}

// WithCacheTTL sets the record cache time-to-live duration.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheTTL = ttl
	}
}

// WithCompression sets the compression algorithm and level.
func WithCompression(compressor string, level int) Option {
	return func(c *Config) {
		c.Compressor = compressor
		c.CompressionLevel = level
	}
}

// WithCreateIfMissing controls whether the database should be created if it doesn't exist.
func WithCreateIfMissing(create bool) Option {
	return func(c *Config) {
		c.CreateIfMissing = create
	}
}

// ApplyOptions applies the given options to the config.
func (c *Config) ApplyOptions(options ...Option) {
	for _, option := range options {
		option(c)
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf(`NodeStore Configuration:
  Backend: %s
  Path: %s
  Cache: %d items, TTL: %v
  Compression: %s (level %d)
  Create If Missing: %t`,
		c.Backend,
		c.Path,
		c.CacheSize, c.CacheTTL,
		c.Compressor, c.CompressionLevel,
		c.CreateIfMissing)
}
