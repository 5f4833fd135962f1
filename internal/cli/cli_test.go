package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LeJamon/goUnitrie/internal/core/state"
	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/LeJamon/goUnitrie/internal/storage/nodestore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// newFixture writes a small account state into a leveldb store under a
// temp dir, points the configuration at it and returns the state root.
func newFixture(t *testing.T) (string, common.Hash) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")

	cfg := nodestore.DefaultConfig()
	cfg.ApplyOptions(nodestore.WithBackend("leveldb"), nodestore.WithPath(dir))
	db, err := nodestore.Open(cfg)
	require.NoError(t, err)
	ns, err := trie.NewNodeStore(db)
	require.NoError(t, err)

	repo := state.NewRepository(trie.New(trie.WithStore(ns), trie.WithSecure(true)))
	_, err = repo.AddBalance(alice, uint256.NewInt(1000))
	require.NoError(t, err)
	_, err = repo.IncreaseNonce(alice)
	require.NoError(t, err)
	require.NoError(t, repo.SaveCode(alice, []byte{0x60, 0x00, 0x60, 0x00}))
	require.NoError(t, repo.SetupContract(alice))
	require.NoError(t, repo.AddStorageRow(alice, common.HexToHash("0x01"), common.HexToHash("0x2a")))
	_, err = repo.AddBalance(bob, uint256.NewInt(7))
	require.NoError(t, err)

	root, err := repo.GetRoot()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	useStore(t, "leveldb", dir)
	t.Setenv("UNITRIE_LOG_LEVEL", "error")
	return dir, root
}

func useStore(t *testing.T, backend, path string) {
	t.Setenv("UNITRIE_STORE_BACKEND", backend)
	t.Setenv("UNITRIE_STORE_PATH", path)
}

// execute runs the root command with fresh flag values and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, debug = "", false
	keysSize, keysPrefix = 0, ""
	copyBackend, copyPath = "", ""
	verifyWorkers, verifyStopFirst, verifyMaxReport = 0, false, 100

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "unitrie version 0.1.0-dev")
	assert.Contains(t, out, "unitrie, legacy")
	assert.Contains(t, out, "Store backends: bolt, leveldb, memory, pebble")
}

func TestRootInfo(t *testing.T) {
	_, root := newFixture(t)

	out, err := execute(t, "root", root.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Root:  "+root.Hex())
	assert.Contains(t, out, "Nodes: ")

	_, err = execute(t, "root", "0x1234")
	assert.ErrorContains(t, err, "want 32 bytes")

	_, err = execute(t, "root", common.HexToHash("0xdead").Hex())
	assert.ErrorIs(t, err, trie.ErrStoreConsistency)
}

func TestRootInfoEmpty(t *testing.T) {
	useStore(t, "memory", "")
	out, err := execute(t, "root", trie.EmptyHash.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Nodes: 0")
}

func TestKeys(t *testing.T) {
	_, root := newFixture(t)
	codec := state.NewKeyCodec(true)

	out, err := execute(t, "keys", root.Hex(), "--size", "31")
	require.NoError(t, err)
	lines := strings.Fields(out)
	assert.ElementsMatch(t, []string{
		hexutil.Encode(codec.AccountKey(alice)),
		hexutil.Encode(codec.AccountKey(bob)),
	}, lines)

	out, err = execute(t, "keys", root.Hex(), "--prefix", hexutil.Encode(codec.AccountKey(alice)))
	require.NoError(t, err)
	lines = strings.Fields(out)
	assert.Contains(t, lines, hexutil.Encode(codec.AccountKey(alice)))
	assert.Contains(t, lines, hexutil.Encode(codec.CodeKey(alice)))
	assert.Contains(t, lines, hexutil.Encode(codec.StorageKey(alice, common.HexToHash("0x01"))))
	assert.NotContains(t, lines, hexutil.Encode(codec.AccountKey(bob)))

	_, err = execute(t, "keys", root.Hex(), "--size", "31", "--prefix", "0x00")
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestGet(t *testing.T) {
	_, root := newFixture(t)
	codec := state.NewKeyCodec(true)

	out, err := execute(t, "get", root.Hex(), hexutil.Encode(codec.CodeKey(alice)))
	require.NoError(t, err)
	assert.Equal(t, "0x60006000\n", out)

	_, err = execute(t, "get", root.Hex(), "0xff")
	assert.ErrorContains(t, err, "not found")

	_, err = execute(t, "get", root.Hex(), "0xzz")
	assert.ErrorContains(t, err, "invalid hex")
}

func TestAccount(t *testing.T) {
	_, root := newFixture(t)

	out, err := execute(t, "account", root.Hex(), alice.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Nonce:        1")
	assert.Contains(t, out, "Balance:      1000")
	assert.Contains(t, out, "Hibernated:   false")
	assert.NotContains(t, out, "Storage root: "+trie.EmptyHash.Hex())

	out, err = execute(t, "account", root.Hex(), bob.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Code hash:    "+state.EmptyCodeHash.Hex())

	_, err = execute(t, "account", root.Hex(), common.HexToAddress("0x33").Hex())
	assert.ErrorContains(t, err, "not found")

	_, err = execute(t, "account", root.Hex(), "carol")
	assert.ErrorContains(t, err, "invalid address")
}

func TestCopy(t *testing.T) {
	_, root := newFixture(t)
	before, err := execute(t, "root", root.Hex())
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "copy")
	out, err := execute(t, "copy", root.Hex(), "--to-backend", "pebble", "--to-path", target)
	require.NoError(t, err)
	assert.Contains(t, out, "to pebble store at "+target)

	// A second copy finds the root present and writes nothing new.
	_, err = execute(t, "copy", root.Hex(), "--to-backend", "pebble", "--to-path", target)
	require.NoError(t, err)

	useStore(t, "pebble", target)
	after, err := execute(t, "root", root.Hex())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	out, err = execute(t, "account", root.Hex(), alice.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Balance:      1000")
}

func TestCopyRejectsSource(t *testing.T) {
	dir, root := newFixture(t)
	_, err := execute(t, "copy", root.Hex(), "--to-path", dir)
	assert.ErrorContains(t, err, "source store")

	_, err = execute(t, "copy", root.Hex(), "--to-backend", "rocksdb", "--to-path", dir)
	assert.ErrorContains(t, err, "copy target")
}

func TestVerify(t *testing.T) {
	newFixture(t)

	out, err := execute(t, "verify", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend: leveldb")
	assert.Contains(t, out, "Verification Result: VALID")
	assert.Contains(t, out, "Corrupt Records: 0")
}

func TestConfigErrors(t *testing.T) {
	_, err := execute(t, "--conf", filepath.Join(t.TempDir(), "absent.toml"), "version")
	assert.ErrorContains(t, err, "does not exist")

	t.Setenv("UNITRIE_STORE_CODEC", "patricia")
	_, err = execute(t, "root", trie.EmptyHash.Hex())
	assert.ErrorContains(t, err, "invalid codec")
}
