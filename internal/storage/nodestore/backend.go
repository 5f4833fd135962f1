package nodestore

import (
	"fmt"
	"sort"
	"sync"
)

// BackendFactory is a function that creates a new backend instance.
type BackendFactory func(config *Config) (Backend, error)

var (
	backendMu        sync.RWMutex
	backendFactories = make(map[string]BackendFactory)
)

// RegisterBackend registers a backend factory with the given name.
func RegisterBackend(name string, factory BackendFactory) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendFactories[name] = factory
}

// CreateBackend creates a new backend instance for the given name and configuration.
func CreateBackend(name string, config *Config) (Backend, error) {
	backendMu.RLock()
	factory, ok := backendFactories[name]
	backendMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, name)
	}

	return factory(config)
}

// AvailableBackends returns the sorted names of the registered backends.
func AvailableBackends() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()

	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBackendAvailable checks if a backend with the given name is available.
func IsBackendAvailable(name string) bool {
	backendMu.RLock()
	_, ok := backendFactories[name]
	backendMu.RUnlock()
	return ok
}

// BackendInfo provides information about a backend.
type BackendInfo struct {
	Name        string // Backend name
	Description string // Human-readable description
	Persistent  bool   // Whether the backend provides persistent storage
	Compression bool   // Whether the backend compresses records
}

// String returns a string representation of the backend info.
func (bi BackendInfo) String() string {
	features := []string{}
	if bi.Persistent {
		features = append(features, "persistent")
	} else {
		features = append(features, "in-memory")
	}
	if bi.Compression {
		features = append(features, "compression")
	}

	return fmt.Sprintf("%s: %s (Features: %v)", bi.Name, bi.Description, features)
}

// BackendWithInfo is an interface that backends can implement to provide
// additional information about their capabilities.
type BackendWithInfo interface {
	Backend
	Info() BackendInfo
}

// Open creates the backend named by config, opens it and wraps it in a
// Database with the configured caches.
func Open(config *Config) (*DatabaseImpl, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	backend, err := CreateBackend(config.Backend, config)
	if err != nil {
		return nil, err
	}
	if err := backend.Open(config.CreateIfMissing); err != nil {
		return nil, NewErrorWithoutHash("open", backend.Name(), err)
	}
	return NewDatabase(backend, config.CacheSize, config.CacheTTL), nil
}

func init() {
	RegisterBackend("memory", NewMemoryBackendFromConfig)
	RegisterBackend("pebble", NewPebbleBackend)
	RegisterBackend("leveldb", NewLevelDBBackend)
	RegisterBackend("bolt", NewBoltBackend)
}
