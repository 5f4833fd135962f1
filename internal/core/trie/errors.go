package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrSerialization indicates a malformed or truncated node message
	ErrSerialization = errors.New("malformed node message")

	// ErrStoreConsistency indicates a referenced node or value is missing from the store
	ErrStoreConsistency = errors.New("store consistency fault")

	// ErrUnsupportedFormat indicates a node message this build cannot decode
	ErrUnsupportedFormat = errors.New("unsupported node format")

	// ErrInvariantViolation indicates value bytes disagreeing with their bookkeeping
	ErrInvariantViolation = errors.New("node invariant violated")

	// ErrKeyTooLong indicates a key whose bit length does not fit the path length field
	ErrKeyTooLong = errors.New("key too long")

	// ErrValueTooLong indicates a value whose length does not fit the uint24 length field
	ErrValueTooLong = errors.New("value too long")

	// ErrNoStore indicates an operation that needs a store on a trie without one
	ErrNoStore = errors.New("trie has no store")

	// ErrCodecMismatch indicates a copy between stores using different node formats
	ErrCodecMismatch = errors.New("codec mismatch")
)

// SerializationError describes why a node message could not be parsed.
type SerializationError struct {
	Codec  string // Name of the codec that rejected the message
	Reason string // Human-readable reason
	Cause  error  // Underlying error, if any
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", ErrSerialization, e.Codec, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", ErrSerialization, e.Codec, e.Reason)
}

// Unwrap returns the underlying error.
func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrSerialization.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

// StoreConsistencyError reports a hash referenced from a live structure that
// the store cannot produce.
type StoreConsistencyError struct {
	Hash common.Hash // The missing hash
	What string      // "node" or "value"
}

// Error implements the error interface.
func (e *StoreConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s %s not found", ErrStoreConsistency, e.What, e.Hash.Hex())
}

// Is reports whether target is ErrStoreConsistency.
func (e *StoreConsistencyError) Is(target error) bool {
	return target == ErrStoreConsistency
}

// UnsupportedFormatError reports a header this build does not understand.
type UnsupportedFormatError struct {
	Codec  string
	Header byte // The offending arity or flags byte
	Reason string
}

// Error implements the error interface.
func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: %s: %s (0x%02x)", ErrUnsupportedFormat, e.Codec, e.Reason, e.Header)
}

// Is reports whether target is ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// InvariantViolationError reports value bytes that disagree with the recorded
// length or hash.
type InvariantViolationError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvariantViolation, e.Reason)
}

// Is reports whether target is ErrInvariantViolation.
func (e *InvariantViolationError) Is(target error) bool {
	return target == ErrInvariantViolation
}

func newSerializationError(codec, reason string, cause error) error {
	return &SerializationError{Codec: codec, Reason: reason, Cause: cause}
}

func newInvariantError(format string, args ...interface{}) error {
	return &InvariantViolationError{Reason: fmt.Sprintf(format, args...)}
}

// IsStoreConsistency checks if an error reports a dangling reference.
func IsStoreConsistency(err error) bool {
	return errors.Is(err, ErrStoreConsistency)
}

// IsFatal checks if an error denotes corrupted data or a programming defect
// rather than a transient condition.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSerialization) ||
		errors.Is(err, ErrStoreConsistency) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrInvariantViolation)
}
