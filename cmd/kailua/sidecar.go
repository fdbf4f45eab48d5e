package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/blobmath"
	"github.com/kailua-zk/kailua-go/kerrors"
)

// outputReader resolves the canonical L2 output root at a block number,
// satisfied by *l2Client; kept as an interface so the field-element
// derivation logic can be tested without a dialed RPC client.
type outputReader interface {
	OutputAtBlock(ctx context.Context, blockNumber uint64) (common.Hash, error)
}

// intermediateOutputRoot resolves the canonical output root the sidecar
// packs at position i (0-indexed among the proposal_output_count-1
// intermediate outputs), or the zero hash once blockNumber reaches or
// passes cutoffBlockNumber, filling positions beyond the proposed/faulty
// block with zeros.
func intermediateOutputRoot(ctx context.Context, l2 outputReader, blockNumber, cutoffBlockNumber uint64) (common.Hash, error) {
	if blockNumber >= cutoffBlockNumber {
		return common.Hash{}, nil
	}
	return l2.OutputAtBlock(ctx, blockNumber)
}

// buildOutputFieldElements computes hash_to_fe(output_root) for every
// intermediate position the proposal's sidecar blobs must carry: positions
// parent+i*output_block_span for i in [1, proposal_output_count-1] (the
// terminal position is carried out-of-band as the proposal's root claim,
// not in a blob).
func buildOutputFieldElements(
	ctx context.Context,
	l2 outputReader,
	parentBlockNumber, outputBlockSpan, proposalOutputCount uint64,
	faultyBlockNumber uint64,
	faultyRoot common.Hash,
	faultInjected bool,
) ([]*big.Int, error) {
	if proposalOutputCount == 0 {
		return nil, kerrors.New(kerrors.OtherError, "proposal_output_count must be nonzero")
	}
	count := proposalOutputCount - 1
	elements := make([]*big.Int, count)
	for i := uint64(0); i < count; i++ {
		blockNumber := parentBlockNumber + (i+1)*outputBlockSpan
		var root common.Hash
		var err error
		switch {
		case faultInjected && blockNumber == faultyBlockNumber:
			root = faultyRoot
		case faultInjected:
			root, err = intermediateOutputRoot(ctx, l2, blockNumber, faultyBlockNumber)
		default:
			root, err = l2.OutputAtBlock(ctx, blockNumber)
		}
		if err != nil {
			return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch intermediate output root", err)
		}
		elements[i] = blobmath.HashToFE(root)
	}
	return elements, nil
}

// packFieldElementsIntoBlobs packs field elements into blobs using
// FieldElementsPerBlob-1 slots per blob, the inverse of
// proposal.ReconstructOutputTrace's unpacking scheme. Unused trailing slots
// within the final blob are left zero.
func packFieldElementsIntoBlobs(elements []*big.Int) []*blobmath.Blob {
	if len(elements) == 0 {
		return nil
	}
	slotsPerBlob := blobmath.FieldElementsPerBlob - 1
	numBlobs := (len(elements) + slotsPerBlob - 1) / slotsPerBlob
	blobs := make([]*blobmath.Blob, numBlobs)
	for b := range blobs {
		blobs[b] = &blobmath.Blob{}
	}
	for i, fe := range elements {
		blobIdx := i / slotsPerBlob
		pos := i % slotsPerBlob
		blobs[blobIdx][pos] = blobmath.FieldElementBytes(fe)
	}
	return blobs
}

// rawBlobBytes flattens a blobmath.Blob into its raw 131072-byte EIP-4844
// wire representation, the layout keySigner.signBlobTx expects.
func rawBlobBytes(b *blobmath.Blob) []byte {
	out := make([]byte, 0, blobmath.FieldElementsPerBlob*blobmath.BytesPerFieldElement)
	for _, fe := range b {
		out = append(out, fe[:]...)
	}
	return out
}
