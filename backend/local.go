package backend

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/proof"
)

// ExecutorEnv is the input environment handed to a local guest executor:
// witness frames plus receipt assumptions for stitched zkVM receipts.
type ExecutorEnv struct {
	SegmentLimitPo2 int
	Frames          [][]byte
	Assumptions     [][]byte
}

// Receipt is the raw output of a local guest execution/proving run.
type Receipt struct {
	Bytes   []byte
	Journal []byte
}

// GuestExecutor runs the FPVM guest program against an ExecutorEnv,
// optionally wrapping the resulting STARK receipt into a Groth16 SNARK.
// This is the extension point a real zkVM binding would implement; no
// concrete executor ships in this module (see DESIGN.md).
type GuestExecutor interface {
	Execute(ctx context.Context, image []byte, env ExecutorEnv, proveSnark bool) (Receipt, error)
}

// ReceiptVerifier checks a receipt against the expected FPVM image id.
type ReceiptVerifier interface {
	Verify(receipt Receipt, imageID common.Hash) error
}

// Local is the local zkVM backend adapter.
type Local struct {
	Executor        GuestExecutor
	Verifier        ReceiptVerifier
	Image           []byte
	ImageID         common.Hash
	SegmentLimitPo2 int

	// ForceRecursion: when set, stitched zkVM receipts are forcibly written
	// as guest input instead of loaded as receipt assumptions.
	ForceRecursion bool
}

// Prove builds an executor environment from witnessFrames and
// stitchedProofs, invokes the guest executor, and verifies the resulting
// receipt before returning it.
func (l *Local) Prove(ctx context.Context, witnessFrames [][]byte, stitchedProofs []proof.Proof, proveSnark bool) (proof.Proof, error) {
	env := ExecutorEnv{
		SegmentLimitPo2: l.SegmentLimitPo2,
		Frames:          append([][]byte(nil), witnessFrames...),
	}

	for _, p := range stitchedProofs {
		isZKVMReceipt := p.Kind == proof.KindZKVMStark || p.Kind == proof.KindZKVMGroth16
		if isZKVMReceipt && !l.ForceRecursion {
			env.Assumptions = append(env.Assumptions, p.Receipt)
			continue
		}
		// Non-receipt proofs (market seals), and any proof under
		// ForceRecursion, travel as guest input rather than an assumption.
		env.Frames = append(env.Frames, p.Encode())
	}

	receipt, err := l.Executor.Execute(ctx, l.Image, env, proveSnark)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.ExecutionError, "local guest execution", err)
	}

	if err := l.Verifier.Verify(receipt, l.ImageID); err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.ProofConstruction, "verify local receipt", err)
	}

	kind := proof.KindZKVMStark
	if proveSnark {
		kind = proof.KindZKVMGroth16
	}
	return proof.Proof{Kind: kind, Receipt: receipt.Bytes, Journal: receipt.Journal}, nil
}
