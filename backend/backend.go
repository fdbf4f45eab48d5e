// Package backend implements the three proving backend adapters behind a
// single Adapter interface: a local zkVM guest executor, a remote proving
// service, and a decentralized proving market.
package backend

import (
	"context"

	"github.com/kailua-zk/kailua-go/proof"
)

// Adapter is the uniform façade every backend exposes.
type Adapter interface {
	Prove(ctx context.Context, witnessFrames [][]byte, stitchedProofs []proof.Proof, proveSnark bool) (proof.Proof, error)
}

// ForceRecursion reports whether KAILUA_FORCE_RECURSION-equivalent behavior
// is enabled: stitched proofs are written as guest input instead of loaded
// as receipt assumptions. This remains an environment-gated debugging aid
// rather than a first-class config field (see DESIGN.md's Open Question
// decisions).
func ForceRecursion(getenv func(string) string) bool {
	return getenv("KAILUA_FORCE_RECURSION") != ""
}
