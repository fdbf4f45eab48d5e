// Package kerrors classifies the error conditions that cross a task
// boundary in the coordinator: RPC/network failures that are worth
// retrying, malformed on-chain data that is not, and proving failures
// that may or may not warrant a witness split.
package kerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of retry policy and logging.
type Kind int

const (
	// OtherError is the zero value: an unclassified error.
	OtherError Kind = iota

	// RpcUnavailable marks a transient network or RPC failure. Retryable.
	RpcUnavailable

	// BlockNotFound marks a missing L1 or L2 block. Fatal for the current task.
	BlockNotFound

	// BlobNotFound marks a missing EIP-4844 blob sidecar. Fatal for the current task.
	BlobNotFound

	// Rlp marks malformed RLP-encoded on-chain data.
	Rlp

	// TrieWalker marks a malformed Merkle-Patricia trie node encountered during a walk.
	TrieWalker

	// PreimageMismatch marks a witness preimage whose bytes do not hash to its claimed key.
	PreimageMismatch

	// ProofConstruction marks a KZG opening that failed self-verification.
	ProofConstruction

	// ExecutionError marks a zkVM execution failure or a segment-limit overrun.
	ExecutionError

	// NotAwaitingProof marks local proving skipped by configuration.
	NotAwaitingProof

	// DuplicateSubmission marks an on-chain propose reverted because the
	// extra-data triple already exists.
	DuplicateSubmission
)

// String renders the Kind for logging.
func (k Kind) String() string {
	switch k {
	case RpcUnavailable:
		return "rpc_unavailable"
	case BlockNotFound:
		return "block_not_found"
	case BlobNotFound:
		return "blob_not_found"
	case Rlp:
		return "rlp"
	case TrieWalker:
		return "trie_walker"
	case PreimageMismatch:
		return "preimage_mismatch"
	case ProofConstruction:
		return "proof_construction"
	case ExecutionError:
		return "execution_error"
	case NotAwaitingProof:
		return "not_awaiting_proof"
	case DuplicateSubmission:
		return "duplicate_submission"
	default:
		return "other_error"
	}
}

// Error is a classified, wrapped error. It satisfies errors.Is/errors.As
// against both a specific Error value and the wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

// New builds a classified error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a classified error wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind. This lets
// callers write errors.Is(err, kerrors.New(kerrors.BlockNotFound, "")) as a
// Kind-only match, mirroring sentinel-error comparisons elsewhere in the
// codebase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind of err, walking the wrap chain. Returns
// OtherError if err is nil or does not wrap a *Error.
func KindOf(err error) Kind {
	if err == nil {
		return OtherError
	}
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return OtherError
}

// Retryable reports whether err should be retried by the retry package's
// default policy.
func Retryable(err error) bool {
	return KindOf(err) == RpcUnavailable
}
