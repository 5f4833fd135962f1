package nodestore

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"
)

// Verifier defines the interface for data verification operations.
type Verifier interface {
	// Verify checks the integrity of all records in the backend.
	Verify(ctx context.Context) error

	// VerifyNode verifies a single record by its hash.
	VerifyNode(hash common.Hash) error
}

// VerificationResult holds the result of a verification operation.
type VerificationResult struct {
	TotalNodes    int64         // Total number of records checked
	CorruptNodes  int64         // Number of corrupt records found
	MissingData   int64         // Number of records with empty data
	HashMismatch  int64         // Number of records whose key is not their hash
	Rejected      int64         // Number of records refused by the Check hook
	CorruptHashes []common.Hash // Corrupt record hashes, up to MaxCorruptNodes
}

// IsValid returns true if no corruption was detected.
func (r *VerificationResult) IsValid() bool {
	return r.CorruptNodes == 0
}

// String returns a formatted string representation of the verification result.
func (r *VerificationResult) String() string {
	status := "VALID"
	if !r.IsValid() {
		status = "CORRUPT"
	}

	return fmt.Sprintf(`Verification Result: %s
  Total Records: %d
  Corrupt Records: %d
  Missing Data: %d
  Hash Mismatches: %d
  Rejected: %d`,
		status,
		r.TotalNodes,
		r.CorruptNodes,
		r.MissingData,
		r.HashMismatch,
		r.Rejected)
}

// VerifyOptions holds options for verification operations.
type VerifyOptions struct {
	// StopOnFirstError stops verification when the first error is encountered.
	StopOnFirstError bool

	// MaxCorruptNodes limits the number of corrupt record hashes collected.
	MaxCorruptNodes int

	// Workers is the number of hashing goroutines. Zero means GOMAXPROCS.
	Workers int

	// Check, if set, validates the content of each well-hashed record.
	Check func(*Node) error

	// ProgressCallback is called periodically with the number of records verified.
	ProgressCallback func(verified int64)

	// ProgressInterval specifies how often to call ProgressCallback.
	ProgressInterval int64
}

// DefaultVerifyOptions returns default verification options.
func DefaultVerifyOptions() *VerifyOptions {
	return &VerifyOptions{
		MaxCorruptNodes:  100,
		ProgressInterval: 10000,
	}
}

// BackendVerifier wraps any Backend to provide verification capabilities.
type BackendVerifier struct {
	backend Backend
}

// NewBackendVerifier creates a new verifier for the given backend.
func NewBackendVerifier(backend Backend) *BackendVerifier {
	return &BackendVerifier{backend: backend}
}

// Verify implements the Verifier interface.
func (v *BackendVerifier) Verify(ctx context.Context) error {
	result, err := v.VerifyAll(ctx, DefaultVerifyOptions())
	if err != nil {
		return err
	}
	if !result.IsValid() {
		return fmt.Errorf("%w: %d corrupt records found", ErrDataCorrupt, result.CorruptNodes)
	}
	return nil
}

// VerifyAll streams every record to a pool of workers that recompute its
// hash, and returns the tally.
func (v *BackendVerifier) VerifyAll(ctx context.Context, opts *VerifyOptions) (*VerificationResult, error) {
	if !v.backend.IsOpen() {
		return nil, ErrBackendClosed
	}
	if opts == nil {
		opts = DefaultVerifyOptions()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	result := &VerificationResult{}
	var (
		mu       sync.Mutex
		verified atomic.Int64
	)
	corrupt := func(hash common.Hash, counter *int64) {
		atomic.AddInt64(counter, 1)
		atomic.AddInt64(&result.CorruptNodes, 1)
		mu.Lock()
		if len(result.CorruptHashes) < opts.MaxCorruptNodes {
			result.CorruptHashes = append(result.CorruptHashes, hash)
		}
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	records := make(chan *Node, workers*4)

	g.Go(func() error {
		defer close(records)
		return v.backend.ForEach(func(node *Node) error {
			select {
			case records <- node:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for node := range records {
				n := verified.Add(1)
				atomic.AddInt64(&result.TotalNodes, 1)
				if opts.ProgressCallback != nil && opts.ProgressInterval > 0 && n%opts.ProgressInterval == 0 {
					opts.ProgressCallback(n)
				}

				if err := checkRecord(node); err != nil {
					if len(node.Data) == 0 {
						corrupt(node.Hash, &result.MissingData)
					} else {
						corrupt(node.Hash, &result.HashMismatch)
					}
					if opts.StopOnFirstError {
						return err
					}
					continue
				}
				if opts.Check != nil {
					if err := opts.Check(node); err != nil {
						corrupt(node.Hash, &result.Rejected)
						if opts.StopOnFirstError {
							return fmt.Errorf("record %s rejected: %w", node.Hash.Hex(), err)
						}
					}
				}
			}
			return nil
		})
	}

	return result, g.Wait()
}

// VerifyNode verifies a single record by its hash.
func (v *BackendVerifier) VerifyNode(hash common.Hash) error {
	if !v.backend.IsOpen() {
		return ErrBackendClosed
	}

	node, status := v.backend.Fetch(hash)
	if err := statusError(v.backend.Name(), "verify", hash, status); err != nil {
		return err
	}
	return checkRecord(node)
}

func checkRecord(node *Node) error {
	if len(node.Data) == 0 {
		return fmt.Errorf("%w: record %s has no data", ErrDataCorrupt, node.Hash.Hex())
	}
	if computed := crypto.Keccak256Hash(node.Data); computed != node.Hash {
		return fmt.Errorf("%w: record %s hashes to %s", ErrDataCorrupt, node.Hash.Hex(), computed.Hex())
	}
	return nil
}
