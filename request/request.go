// Package request builds fault/validity proof request messages from
// divergence analysis between a proposal and the canonical L2 trace.
package request

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/proposal"
)

func keccak256(data []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// BlobFetchRequest pairs an L1 block reference with one of its indexed blob
// hashes.
type BlobFetchRequest struct {
	BlockHash  common.Hash
	BlockNum   uint64
	BlobIndex  uint64
	BlobHash   common.Hash
}

// ValidityPrecondition binds a validity proof request to the exact set of
// sidecar blobs the proposal relied on.
type ValidityPrecondition struct {
	ProposalL2HeadNumber uint64
	ProposalOutputCount  uint64
	OutputBlockSpan      uint64
	BlobHashes           []BlobFetchRequest
}

// PreconditionHash derives the 32-byte binding hash for this precondition
// set. A nil *ValidityPrecondition (fault requests carry none) hashes to
// the zero value.
func (v *ValidityPrecondition) PreconditionHash() common.Hash {
	if v == nil {
		return common.Hash{}
	}
	var buf []byte
	var scratch [8]byte
	putU64 := func(x uint64) {
		for i := 0; i < 8; i++ {
			scratch[7-i] = byte(x)
			x >>= 8
		}
		buf = append(buf, scratch[:]...)
	}
	putU64(v.ProposalL2HeadNumber)
	putU64(v.ProposalOutputCount)
	putU64(v.OutputBlockSpan)
	for _, b := range v.BlobHashes {
		buf = append(buf, b.BlockHash.Bytes()...)
		putU64(b.BlobIndex)
		buf = append(buf, b.BlobHash.Bytes()...)
	}
	return keccak256(buf)
}

// Message is the request emitted to the proving dispatcher's task channel.
type Message struct {
	ProposalIndex        uint64
	Precondition         *ValidityPrecondition
	L1Head               common.Hash
	AgreedL2HeadHash     common.Hash
	AgreedL2BlockNumber  uint64
	AgreedL2OutputRoot   common.Hash
	ClaimedL2BlockNumber uint64
	ClaimedL2OutputRoot  common.Hash
}

// OutputCache is the sync agent's read-only view of canonical L2 outputs,
// keyed by block number; the request builder never writes to it.
type OutputCache interface {
	OutputAt(blockNumber uint64) (common.Hash, bool)
}

// L2HeadHasher resolves the L2 block hash for a given block number, needed
// to populate AgreedL2HeadHash.
type L2HeadHasher interface {
	HeaderHashByNumber(ctx context.Context, number uint64) (common.Hash, error)
}

// BuildFaultRequest takes the divergence point between parent and
// proposal, derives the agreed/claimed L2 block numbers straddling the
// first bad transition, and emits a fault Message with no precondition
// data.
func BuildFaultRequest(
	ctx context.Context,
	l2 L2HeadHasher,
	outputs OutputCache,
	outputBlockSpan uint64,
	parent, target *proposal.Proposal,
	divergencePoint uint64,
	l1Head common.Hash,
) (*Message, error) {
	agreedL2HeadNumber := parent.OutputBlockNumber + outputBlockSpan*divergencePoint

	agreedHeadHash, err := l2.HeaderHashByNumber(ctx, agreedL2HeadNumber)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch agreed l2 head", err)
	}
	agreedRoot, ok := outputs.OutputAt(agreedL2HeadNumber)
	if !ok {
		return nil, kerrors.New(kerrors.OtherError, "agreed output root not cached")
	}

	claimedBlockNumber := agreedL2HeadNumber + outputBlockSpan
	claimedRoot, ok := outputs.OutputAt(claimedBlockNumber)
	if !ok {
		return nil, kerrors.New(kerrors.OtherError, "claimed output root not cached")
	}

	return &Message{
		ProposalIndex:        target.Index,
		Precondition:         nil,
		L1Head:               l1Head,
		AgreedL2HeadHash:     agreedHeadHash,
		AgreedL2BlockNumber:  agreedL2HeadNumber,
		AgreedL2OutputRoot:   agreedRoot,
		ClaimedL2BlockNumber: claimedBlockNumber,
		ClaimedL2OutputRoot:  claimedRoot,
	}, nil
}

// L1NextBlockResolver resolves the L1 block immediately following a given
// L1 head hash, used to pair each sidecar blob with its on-chain index.
type L1NextBlockResolver interface {
	NextBlock(ctx context.Context, afterL1Head common.Hash) (blockHash common.Hash, blockNum uint64, err error)
}

// BuildValidityRequest constructs a validity Message for a proposal that
// matched canonical outputs at every position. When proposalOutputCount >
// 1, it binds a ValidityPrecondition over the proposal's sidecar blobs.
func BuildValidityRequest(
	ctx context.Context,
	l2 L2HeadHasher,
	l1 L1NextBlockResolver,
	proposalOutputCount uint64,
	outputBlockSpan uint64,
	parent, target *proposal.Proposal,
	blobHashes []common.Hash,
	l1Head common.Hash,
) (*Message, error) {
	var precondition *ValidityPrecondition
	if proposalOutputCount > 1 {
		if len(blobHashes) == 0 {
			return nil, kerrors.New(kerrors.OtherError, "validity request requires at least one sidecar blob")
		}
		blockHash, blockNum, err := l1.NextBlock(ctx, target.L1Head)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch l1 block following proposal", err)
		}
		fetches := make([]BlobFetchRequest, len(blobHashes))
		for i, h := range blobHashes {
			fetches[i] = BlobFetchRequest{BlockHash: blockHash, BlockNum: blockNum, BlobIndex: uint64(i), BlobHash: h}
		}
		precondition = &ValidityPrecondition{
			ProposalL2HeadNumber: parent.OutputBlockNumber,
			ProposalOutputCount:  proposalOutputCount,
			OutputBlockSpan:      outputBlockSpan,
			BlobHashes:           fetches,
		}
	}

	agreedHeadHash, err := l2.HeaderHashByNumber(ctx, parent.OutputBlockNumber)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch parent l2 head", err)
	}

	return &Message{
		ProposalIndex:        target.Index,
		Precondition:         precondition,
		L1Head:               l1Head,
		AgreedL2HeadHash:     agreedHeadHash,
		AgreedL2BlockNumber:  parent.OutputBlockNumber,
		AgreedL2OutputRoot:   parent.ClaimedOutputRoot,
		ClaimedL2BlockNumber: target.OutputBlockNumber,
		ClaimedL2OutputRoot:  target.ClaimedOutputRoot,
	}, nil
}
