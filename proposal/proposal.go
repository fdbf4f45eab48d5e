// Package proposal implements the proposal model, output-trace
// reconstruction, and divergence analysis: a proposal's claim about an L2
// output trace, compared against the canonical trace to find the first
// point of disagreement and classify the resulting fault.
package proposal

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/blobmath"
	"github.com/kailua-zk/kailua-go/kerrors"
)

// Proposal records an on-chain claim about an L2 output trace.
type Proposal struct {
	Index               uint64
	L1Head              common.Hash
	ParentIndex         uint64
	DuplicationCounter  uint64
	ClaimedOutputRoot   common.Hash
	OutputBlockNumber   uint64 // terminal L2 block number this proposal claims to
	Blobs               []*blobmath.Blob
	BlobVersionedHashes []common.Hash // EIP-4844 versioned hashes of Blobs, in the same order
}

// OutputTrace is the reconstructed mapping from L2 block number to output
// root for one proposal: positions parent+i·output_block_span for
// i in [1, proposal_output_count].
type OutputTrace struct {
	ParentBlockNumber uint64
	OutputBlockSpan   uint64
	// Outputs[i] is the output root claimed at ParentBlockNumber + (i+1)*OutputBlockSpan,
	// for i in [0, proposal_output_count). The terminal entry (index
	// proposal_output_count-1) always equals the proposal's ClaimedOutputRoot.
	Outputs []common.Hash
}

// ReconstructOutputTrace rebuilds a proposal's output trace from its blob
// sidecars: the first FieldElementsPerBlob-1 field elements of each blob
// encode intermediate outputs; the terminal output is the proposal's own
// claimed root, carried as the proposal's root claim rather than in the blob.
//
// Since hash_to_fe is a lossy reduction, intermediate entries are not
// inverted back to output roots: they hold the raw field-element bytes
// read from the blob. FindDivergence compares them against canonical
// outputs by re-deriving each canonical output's field element.
func ReconstructOutputTrace(p *Proposal, parentBlockNumber, outputBlockSpan, proposalOutputCount uint64) (*OutputTrace, error) {
	trace := &OutputTrace{
		ParentBlockNumber: parentBlockNumber,
		OutputBlockSpan:   outputBlockSpan,
		Outputs:           make([]common.Hash, proposalOutputCount),
	}

	fieldElementsPerBlob := uint64(blobmath.FieldElementsPerBlob)
	for i := uint64(0); i < proposalOutputCount; i++ {
		if i == proposalOutputCount-1 {
			trace.Outputs[i] = p.ClaimedOutputRoot
			continue
		}
		blobIdx := i / (fieldElementsPerBlob - 1)
		posInBlob := i % (fieldElementsPerBlob - 1)
		if int(blobIdx) >= len(p.Blobs) {
			return nil, kerrors.New(kerrors.BlobNotFound, "proposal references a blob beyond its sidecar count")
		}
		trace.Outputs[i] = common.BytesToHash(p.Blobs[blobIdx][posInBlob][:])
	}
	return trace, nil
}

// FaultKind classifies a divergence by where it occurs in the output
// trace.
type FaultKind uint8

const (
	// NoFault indicates the trace matched canonical outputs at every position.
	NoFault FaultKind = iota
	// OutputFault is a divergence at an intermediate, blob-encoded output.
	OutputFault
	// TerminalFault is a divergence at the proposal's terminal claim.
	TerminalFault
)

// Divergence describes the first point at which a proposal's trace
// disagrees with canonical L2 outputs.
type Divergence struct {
	Point uint64 // smallest i in [0, proposal_output_count) where traces disagree
	Kind  FaultKind
}

// FindDivergence compares a proposal's reconstructed trace against the
// canonical outputs (indexed identically, produced by the caller from the
// L2 node), returning the smallest index of disagreement. Per invariant 5
// (divergence monotonicity), refining canonical with more observations can
// only move the detected divergence point to an index ≤ the one found with
// fewer observations — this function does not itself need to reason about
// refinement, since it always scans from index 0 and returns on first
// mismatch.
func FindDivergence(trace *OutputTrace, canonical []common.Hash, proposalOutputCount uint64) *Divergence {
	for i := uint64(0); i < proposalOutputCount; i++ {
		if i >= uint64(len(canonical)) {
			break
		}
		want := canonical[i]
		if i < proposalOutputCount-1 {
			// Intermediate entries are blob field elements, so the canonical
			// root is reduced with hash_to_fe before comparing.
			want = common.Hash(blobmath.FieldElementBytes(blobmath.HashToFE(want)))
		}
		if trace.Outputs[i] != want {
			kind := OutputFault
			if i == proposalOutputCount-1 {
				kind = TerminalFault
			}
			return &Divergence{Point: i, Kind: kind}
		}
	}
	return nil
}

// NormalizeFaultBlockNumber applies the terminal-fault normalization: when
// the divergence point is the terminal claim, the faulty block number is
// shifted back one output_block_span so the proving window still ends on
// a real intermediate output.
func NormalizeFaultBlockNumber(faultyBlockNumber, outputBlockSpan uint64, kind FaultKind) uint64 {
	if kind == TerminalFault {
		return faultyBlockNumber - outputBlockSpan
	}
	return faultyBlockNumber
}

// FaultyBlockNumber computes parent + (divergence.Point+1)*output_block_span,
// the L2 block height at which the divergence's output was claimed.
func FaultyBlockNumber(parentBlockNumber, outputBlockSpan uint64, divergencePoint uint64) uint64 {
	return parentBlockNumber + (divergencePoint+1)*outputBlockSpan
}

// ExtraData is the packed (terminal_block_number, parent_index,
// duplication_counter) triple used to disambiguate sibling proposals:
// big-endian uint64 || uint64 || uint64.
type ExtraData struct {
	TerminalBlockNumber uint64
	ParentIndex         uint64
	DuplicationCounter  uint64
}

// Pack encodes the extra-data triple into its 24-byte on-chain layout.
func (e ExtraData) Pack() [24]byte {
	var out [24]byte
	binary.BigEndian.PutUint64(out[0:8], e.TerminalBlockNumber)
	binary.BigEndian.PutUint64(out[8:16], e.ParentIndex)
	binary.BigEndian.PutUint64(out[16:24], e.DuplicationCounter)
	return out
}

// UnpackExtraData parses the 24-byte on-chain extra-data layout back into
// its triple, the inverse of Pack.
func UnpackExtraData(raw [24]byte) ExtraData {
	return ExtraData{
		TerminalBlockNumber: binary.BigEndian.Uint64(raw[0:8]),
		ParentIndex:         binary.BigEndian.Uint64(raw[8:16]),
		DuplicationCounter:  binary.BigEndian.Uint64(raw[16:24]),
	}
}

// GameLookup is the on-chain games(gameType, claim, extraData) read used
// by the duplication-counter sibling search.
type GameLookup func(claim common.Hash, extraData [24]byte) (common.Address, error)

// FindUniqueDuplicationCounter starts at duplication counter 0 and
// increments until lookup returns the zero address, proving the
// (parentIndex, claim, counter) triple is unique.
func FindUniqueDuplicationCounter(lookup GameLookup, terminalBlockNumber, parentIndex uint64, claim common.Hash) (uint64, error) {
	for counter := uint64(0); ; counter++ {
		extra := ExtraData{TerminalBlockNumber: terminalBlockNumber, ParentIndex: parentIndex, DuplicationCounter: counter}
		addr, err := lookup(claim, extra.Pack())
		if err != nil {
			return 0, kerrors.Wrap(kerrors.RpcUnavailable, "games lookup", err)
		}
		if addr == (common.Address{}) {
			return counter, nil
		}
	}
}
