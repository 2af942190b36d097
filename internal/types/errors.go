package types

import "errors"

// Sentinel errors shared by the dispenser, provider, and challenger, keyed to
// the error-kind table in spec.md §7. Callers should use errors.Is against
// these rather than string-matching messages.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrDuplicateCommitment   = errors.New("commitment already exists")
	ErrBadProof              = errors.New("proof verification failed")
	ErrNotRecoverable        = errors.New("commitment is not recoverable")
	ErrInsufficientPlacement = errors.New("fewer than k chunks were placed")
	ErrInsufficientChunks    = errors.New("fewer than k chunks available")
	ErrCorruptChunk          = errors.New("chunk contradicts interpolated polynomial")
	ErrChainRPCTransient     = errors.New("transient chain RPC error")
	ErrChainRPCFatal         = errors.New("chain RPC reverted")
	ErrTimeout               = errors.New("operation timed out")
	ErrStorageFull           = errors.New("local storage is full")
	ErrStorageCorrupt        = errors.New("local storage entry is corrupt")
	ErrSetupLoadFailure      = errors.New("failed to load trusted setup")
	ErrNotFound              = errors.New("not found")
)
