// Package logging wraps github.com/ethereum/go-ethereum/log so that every
// component logs through the same structured, leveled logger rather than
// each reimplementing level filtering and formatting.
package logging

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
)

// Logger is a structured, leveled logger. It is a type alias for
// go-ethereum's Logger so that components can accept either this package's
// constructors or a logger threaded down from elsewhere without adapters.
type Logger = log.Logger

// New returns a Logger with the given component name attached as a
// "component" field on every record.
func New(component string) Logger {
	return log.Root().With("component", component)
}

// SetVerbosity installs a terminal handler at the given legacy verbosity
// level (0=silent..5=trace) on the root logger. Call once at process
// startup.
func SetVerbosity(level int) {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(level), true)
	log.SetDefault(log.NewLogger(handler))
}

// WithProposal returns l with the proposal index attached. Dispatch workers
// combine it with WithProofFile, so every worker error is logged with the
// proposal index and the canonical proof filename.
func WithProposal(l Logger, proposalIndex uint64) Logger {
	return l.With("proposal_index", proposalIndex)
}

// WithProofFile returns l with the canonical proof filename attached.
func WithProofFile(l Logger, filename string) Logger {
	return l.With("proof_file", filename)
}
