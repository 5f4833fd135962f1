package nodestore

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("record not found")

	// ErrDataCorrupt indicates that stored data is corrupted
	ErrDataCorrupt = errors.New("data corruption detected")

	// ErrBackendClosed indicates that the backend is closed
	ErrBackendClosed = errors.New("backend is closed")

	// ErrBackendOpen indicates an Open call on an already open backend
	ErrBackendOpen = errors.New("backend already open")

	// ErrInvalidNode indicates that a record is invalid
	ErrInvalidNode = errors.New("invalid record")

	// ErrInvalidConfig indicates that the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedBackend indicates that a backend is not supported
	ErrUnsupportedBackend = errors.New("unsupported backend")

	// ErrUnsupportedCompressor indicates that a compressor is not supported
	ErrUnsupportedCompressor = errors.New("unsupported compressor")
)

// NodeStoreError wraps an error with additional context specific to the NodeStore.
type NodeStoreError struct {
	Operation string      // The operation that failed
	Hash      common.Hash // The hash involved in the operation (if applicable)
	Backend   string      // The backend name
	Cause     error       // The underlying error
}

// Error implements the error interface.
func (e *NodeStoreError) Error() string {
	if e.Hash == (common.Hash{}) {
		return fmt.Sprintf("nodestore %s error on backend %s: %v",
			e.Operation, e.Backend, e.Cause)
	}
	return fmt.Sprintf("nodestore %s error on backend %s for hash %s: %v",
		e.Operation, e.Backend, e.Hash.Hex(), e.Cause)
}

// Unwrap returns the underlying error.
func (e *NodeStoreError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error.
func (e *NodeStoreError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewError creates a new NodeStoreError.
func NewError(operation, backend string, hash common.Hash, cause error) *NodeStoreError {
	return &NodeStoreError{
		Operation: operation,
		Hash:      hash,
		Backend:   backend,
		Cause:     cause,
	}
}

// NewErrorWithoutHash creates a new NodeStoreError without a hash.
func NewErrorWithoutHash(operation, backend string, cause error) *NodeStoreError {
	return &NodeStoreError{
		Operation: operation,
		Backend:   backend,
		Cause:     cause,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string      // The field that failed validation
	Value   interface{} // The invalid value
	Message string      // Human-readable error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error: %s (value: %v): %s",
			e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Is matches ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StatusError turns a non-OK backend status into an error.
type StatusError struct {
	Backend   string      // The backend name
	Operation string      // The operation that failed
	Hash      common.Hash // The hash involved (if applicable)
	Status    Status      // The backend status code
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Hash == (common.Hash{}) {
		return fmt.Sprintf("backend %s %s failed: %s", e.Backend, e.Operation, e.Status)
	}
	return fmt.Sprintf("backend %s %s failed for hash %s: %s",
		e.Backend, e.Operation, e.Hash.Hex(), e.Status)
}

// Is maps the status onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch e.Status {
	case NotFound:
		return target == ErrNotFound
	case DataCorrupt:
		return target == ErrDataCorrupt
	}
	return false
}

func statusError(backend, operation string, hash common.Hash, status Status) error {
	if status == OK {
		return nil
	}
	return &StatusError{Backend: backend, Operation: operation, Hash: hash, Status: status}
}

// CompressionError represents a compression-related error.
type CompressionError struct {
	Compressor string // The compressor name
	Operation  string // "compress" or "decompress"
	DataSize   int    // Size of the data being processed
	Cause      error  // The underlying error
}

// Error implements the error interface.
func (e *CompressionError) Error() string {
	return fmt.Sprintf("compression error: %s %s failed for %d bytes: %v",
		e.Compressor, e.Operation, e.DataSize, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CompressionError) Unwrap() error {
	return e.Cause
}

// Is matches ErrDataCorrupt for failed decompression.
func (e *CompressionError) Is(target error) bool {
	return e.Operation == "decompress" && target == ErrDataCorrupt
}

// IsNotFound checks if an error indicates that a record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDataCorrupt checks if an error indicates data corruption.
func IsDataCorrupt(err error) bool {
	return errors.Is(err, ErrDataCorrupt)
}

// IsBackendClosed checks if an error indicates that the backend is closed.
func IsBackendClosed(err error) bool {
	return errors.Is(err, ErrBackendClosed)
}
