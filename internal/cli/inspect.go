package cli

import (
	"errors"
	"fmt"

	"github.com/LeJamon/goUnitrie/internal/core/state"
	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	keysSize   int
	keysPrefix string
)

var rootInfoCmd = &cobra.Command{
	Use:   "root <hash>",
	Short: "Show the node count of a trie root",
	Long: `Load the trie rooted at <hash> from the configured store and walk it,
reporting the number of nodes reachable from the root.`,
	Args: cobra.ExactArgs(1),
	RunE: runRootInfo,
}

var keysCmd = &cobra.Command{
	Use:   "keys <root>",
	Short: "List the keys stored under a trie root",
	Long: `List the keys of the trie rooted at <root>, one hex key per line.

Examples:
    unitrie keys 0x56e8...b421
    unitrie keys 0x56e8...b421 --size 21
    unitrie keys 0x56e8...b421 --prefix 0x00`,
	Args: cobra.ExactArgs(1),
	RunE: runKeys,
}

var getCmd = &cobra.Command{
	Use:   "get <root> <key>",
	Short: "Print the value stored at a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var accountCmd = &cobra.Command{
	Use:   "account <root> <address>",
	Short: "Show the account record of an address",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccount,
}

func init() {
	rootCmd.AddCommand(rootInfoCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(accountCmd)

	keysCmd.Flags().IntVar(&keysSize, "size", 0, "only list keys of this many bytes (0 lists every key)")
	keysCmd.Flags().StringVar(&keysPrefix, "prefix", "", "only list keys under this hex prefix")
}

func runRootInfo(cmd *cobra.Command, args []string) (err error) {
	t, closeFn, err := openTrie(args[0])
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeFn()) }()

	size, err := t.Size()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Root:  %s\n", t.Hash().Hex())
	fmt.Fprintf(out, "Nodes: %d\n", size)
	return nil
}

func runKeys(cmd *cobra.Command, args []string) (err error) {
	if keysSize > 0 && keysPrefix != "" {
		return fmt.Errorf("--size and --prefix are mutually exclusive")
	}
	t, closeFn, err := openTrie(args[0])
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeFn()) }()

	var keys [][]byte
	if keysPrefix != "" {
		prefix, perr := parseHex(keysPrefix)
		if perr != nil {
			return perr
		}
		keys, err = t.CollectKeysFrom(prefix)
	} else {
		size := trie.Unbounded
		if keysSize > 0 {
			size = keysSize
		}
		keys, err = t.CollectKeys(size)
	}
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, k := range keys {
		fmt.Fprintln(out, hexutil.Encode(k))
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) (err error) {
	key, err := parseHex(args[1])
	if err != nil {
		return err
	}
	t, closeFn, err := openTrie(args[0])
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeFn()) }()

	value, err := t.Get(key)
	if err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("key %s not found", hexutil.Encode(key))
	}
	fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(value))
	return nil
}

func runAccount(cmd *cobra.Command, args []string) (err error) {
	if !common.IsHexAddress(args[1]) {
		return fmt.Errorf("invalid address %q", args[1])
	}
	addr := common.HexToAddress(args[1])

	t, closeFn, err := openTrie(args[0])
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeFn()) }()

	repo := state.NewRepository(t, state.WithRepositoryLogger(logger.Named("state")))
	defer repo.Close()

	account, err := repo.GetAccountState(addr)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account %s not found", addr.Hex())
	}
	codeHash, _, err := repo.GetCodeHash(addr)
	if err != nil {
		return err
	}
	storageRoot, err := repo.GetStorageStateRoot(addr)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Address:      %s\n", addr.Hex())
	fmt.Fprintf(out, "Nonce:        %d\n", account.Nonce)
	fmt.Fprintf(out, "Balance:      %s\n", account.Balance.Dec())
	fmt.Fprintf(out, "Hibernated:   %t\n", account.IsHibernated())
	fmt.Fprintf(out, "Code hash:    %s\n", codeHash.Hex())
	fmt.Fprintf(out, "Storage root: %s\n", storageRoot.Hex())
	return nil
}
