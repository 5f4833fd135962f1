package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/LeJamon/goUnitrie/internal/storage/nodestore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	copyBackend string
	copyPath    string

	verifyWorkers   int
	verifyStopFirst bool
	verifyMaxReport int
)

var copyCmd = &cobra.Command{
	Use:   "copy <root>",
	Short: "Copy a trie root into another store",
	Long: `Copy every node and long value reachable from <root> into the store
at --to-path. Subtrees already present in the target are skipped, so an
interrupted copy can be resumed.

Examples:
    unitrie copy 0x56e8...b421 --to-path /var/lib/unitrie/snapshot
    unitrie copy 0x56e8...b421 --to-backend leveldb --to-path ./export`,
	Args: cobra.ExactArgs(1),
	RunE: runCopy,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute the hash of every record in the store",
	Long: `Stream every record of the configured store, recompute its keccak
hash and decode trie nodes with the configured codec. Records whose key is
not their hash, or which do not decode, are reported as corrupt.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(verifyCmd)

	copyCmd.Flags().StringVar(&copyBackend, "to-backend", "", "target backend (default: the configured backend)")
	copyCmd.Flags().StringVar(&copyPath, "to-path", "", "target store path")

	verifyCmd.Flags().IntVar(&verifyWorkers, "workers", 0, "hashing goroutines (0 uses GOMAXPROCS)")
	verifyCmd.Flags().BoolVar(&verifyStopFirst, "stop-on-error", false, "stop at the first corrupt record")
	verifyCmd.Flags().IntVar(&verifyMaxReport, "max-report", 100, "corrupt record hashes to list")
}

func runCopy(cmd *cobra.Command, args []string) (err error) {
	target := cfg.Store
	if copyBackend != "" {
		target.Backend = copyBackend
	}
	target.Path = copyPath
	target.CreateIfMissing = true
	if err := target.Validate(); err != nil {
		return fmt.Errorf("copy target: %w", err)
	}
	if target.Backend == cfg.Store.Backend && target.Path == cfg.Store.Path {
		return fmt.Errorf("copy target is the source store")
	}

	t, closeSource, err := openTrie(args[0])
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeSource()) }()

	dst, closeTarget, err := openStore(target)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeTarget()) }()

	start := time.Now()
	if err := t.CopyTo(cmd.Context(), dst); err != nil {
		return err
	}
	logger.Info("copy finished",
		zap.Stringer("root", t.Hash()),
		zap.String("target", target.Path),
		zap.Duration("elapsed", time.Since(start)))
	fmt.Fprintf(cmd.OutOrStdout(), "Copied %s to %s store at %s\n", t.Hash().Hex(), target.Backend, target.Path)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) (err error) {
	ns, closeFn, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeFn()) }()

	db, ok := ns.Database().(*nodestore.DatabaseImpl)
	if !ok {
		return fmt.Errorf("store %T does not expose its backend", ns.Database())
	}

	opts := nodestore.DefaultVerifyOptions()
	opts.Workers = verifyWorkers
	opts.StopOnFirstError = verifyStopFirst
	opts.MaxCorruptNodes = verifyMaxReport
	opts.Check = ns.CheckRecord
	opts.ProgressCallback = func(verified int64) {
		logger.Info("verifying", zap.Int64("records", verified))
	}

	result, err := nodestore.NewBackendVerifier(db.Backend()).VerifyAll(cmd.Context(), opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if info, ok := db.Backend().(nodestore.BackendWithInfo); ok {
		fmt.Fprintf(out, "Backend: %s\n", info.Info())
	}
	fmt.Fprintln(out, result.String())
	for _, h := range result.CorruptHashes {
		fmt.Fprintf(out, "  corrupt: %s\n", h.Hex())
	}
	if !result.IsValid() {
		return fmt.Errorf("%w: %d corrupt records", nodestore.ErrDataCorrupt, result.CorruptNodes)
	}
	return nil
}
