package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LeJamon/goUnitrie/internal/config"
	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/LeJamon/goUnitrie/internal/storage/nodestore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// openStore opens the record database described by sc and wraps it in a
// trie node store. The returned close func flushes and closes the database.
func openStore(sc config.StoreConfig) (*trie.NodeStore, func() error, error) {
	codec, err := trie.CodecByName(sc.Codec)
	if err != nil {
		return nil, nil, err
	}
	db, err := nodestore.Open(sc.NodestoreConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store at %q: %w", sc.Backend, sc.Path, err)
	}
	ns, err := trie.NewNodeStore(db,
		trie.WithNodeCodec(codec),
		trie.WithNodeCacheSize(sc.NodeCacheSize),
		trie.WithLogger(logger.Named("nodestore")),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	logger.Debug("store opened", zap.String("backend", sc.Backend), zap.String("path", sc.Path))
	closeFn := func() error {
		return errors.Join(db.Sync(), db.Close())
	}
	return ns, closeFn, nil
}

// openTrie opens the configured store and the trie at root.
func openTrie(rootArg string) (*trie.Trie, func() error, error) {
	root, err := parseHash(rootArg)
	if err != nil {
		return nil, nil, err
	}
	ns, closeFn, err := openStore(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	t, err := trie.Open(ns, root, cfg.Trie.Secure)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return t, closeFn, nil
}

// parseHex decodes a hex argument with or without the 0x prefix.
func parseHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if s == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := parseHex(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid root hash %q: want %d bytes, got %d", s, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}
