// Package syncagent implements the polling loop over the dispute game
// factory: a batch-timeout poll/seal loop paired with a registry keyed by
// proposal index that applies idempotent updates on every tick.
package syncagent

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/beacon"
	"github.com/kailua-zk/kailua-go/blobmath"
	"github.com/kailua-zk/kailua-go/chain"
	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/logging"
	"github.com/kailua-zk/kailua-go/proposal"
	"github.com/kailua-zk/kailua-go/request"
)

// L2OutputOracle reads the canonical L2 output root and head hash at a
// given block number.
type L2OutputOracle interface {
	OutputAtBlock(ctx context.Context, blockNumber uint64) (common.Hash, error)
	HeaderHashByNumber(ctx context.Context, number uint64) (common.Hash, error)
}

// L1TimestampReader reads an L1 block's inclusion timestamp, used to
// derive the beacon slot a proposal's sidecar blobs were published in,
// and resolves the L1 block immediately following a given head hash, used
// to pair a proposal's sidecar blobs with their on-chain index.
type L1TimestampReader interface {
	TimestampByHash(ctx context.Context, hash common.Hash) (uint64, error)
	NextBlock(ctx context.Context, afterL1Head common.Hash) (blockHash common.Hash, blockNum uint64, err error)
}

// GameInstance is the subset of chain.Game/chain.Tournament the agent reads
// to materialize one proposal record.
type GameInstance interface {
	chain.Tournament
}

// GameFactory dials a game instance's contract interface given its address.
type GameFactory func(addr common.Address) GameInstance

// Deployment is the subset of config.Deployment the agent's tick needs.
type Deployment struct {
	OutputBlockSpan     uint64
	ProposalOutputCount uint64
	ProposalBlobs       uint64
}

// Agent owns the sync state: a map from proposal index to proposal
// record, an in-memory output cache, the last processed gameCount, and
// the current deployment.
type Agent struct {
	factory     chain.Factory
	gameFactory GameFactory
	beaconCli   *beacon.Client
	l1ts        L1TimestampReader
	l2Outputs   L2OutputOracle
	deployment  Deployment
	log         logging.Logger

	tasks chan<- request.Message

	lastGameCount uint64
	proposals     map[uint64]*proposal.Proposal
	outputs       *lru.Cache[uint64, common.Hash]
}

// New constructs an Agent with a bounded output-root cache.
func New(
	factory chain.Factory,
	gameFactory GameFactory,
	beaconCli *beacon.Client,
	l1ts L1TimestampReader,
	l2Outputs L2OutputOracle,
	deployment Deployment,
	tasks chan<- request.Message,
) (*Agent, error) {
	cache, err := lru.New[uint64, common.Hash](4096)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.OtherError, "allocate output cache", err)
	}
	return &Agent{
		factory:     factory,
		gameFactory: gameFactory,
		beaconCli:   beaconCli,
		l1ts:        l1ts,
		l2Outputs:   l2Outputs,
		deployment:  deployment,
		log:         logging.New("syncagent"),
		tasks:       tasks,
		proposals:   make(map[uint64]*proposal.Proposal),
		outputs:     cache,
	}, nil
}

// outputAt reads the cache, falling back to the L2 oracle on miss and
// populating the cache, since a never-visited block number is not yet
// known.
func (a *Agent) outputAt(ctx context.Context, blockNumber uint64) (common.Hash, error) {
	if root, ok := a.outputs.Get(blockNumber); ok {
		return root, nil
	}
	root, err := a.l2Outputs.OutputAtBlock(ctx, blockNumber)
	if err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.RpcUnavailable, "fetch canonical output", err)
	}
	a.outputs.Add(blockNumber, root)
	return root, nil
}

// Tick runs one iteration of the sync loop: materialize newly-seen
// proposals, populate their output cache, then compare each against its
// parent's canonical trace. Every step is keyed by proposal index, so
// replaying a Tick after a partial failure is a cheap no-op for
// already-materialized proposals.
func (a *Agent) Tick(ctx context.Context) error {
	gameCount, err := a.factory.GameCount(ctx)
	if err != nil {
		return kerrors.Wrap(kerrors.RpcUnavailable, "read gameCount", err)
	}

	newIndices := make([]uint64, 0, gameCount-a.lastGameCount)
	for i := a.lastGameCount; i < gameCount; i++ {
		if _, seen := a.proposals[i]; seen {
			continue
		}
		addr, err := a.factory.GameAtIndex(ctx, i)
		if err != nil {
			return kerrors.Wrap(kerrors.RpcUnavailable, "read gameAtIndex", err)
		}
		p, err := a.materializeProposal(ctx, i, addr)
		if err != nil {
			return err
		}
		a.proposals[i] = p
		newIndices = append(newIndices, i)
		a.log.Debug("materialized proposal", "index", i, "block", p.OutputBlockNumber)
	}
	a.lastGameCount = gameCount

	for _, i := range newIndices {
		if err := a.populateOutputs(ctx, a.proposals[i]); err != nil {
			return err
		}
	}

	for _, i := range newIndices {
		p := a.proposals[i]
		parent, ok := a.proposals[p.ParentIndex]
		if !ok || p.ParentIndex == i {
			continue // genesis/root proposal has no parent to diverge against
		}
		if err := a.compareAndEnqueue(ctx, parent, p); err != nil {
			return err
		}
	}

	return nil
}

func (a *Agent) materializeProposal(ctx context.Context, index uint64, addr common.Address) (*proposal.Proposal, error) {
	game := a.gameFactory(addr)

	terminalBlockNumber, err := game.L2BlockNumber(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read l2BlockNumber", err)
	}
	claimedRoot, err := game.RootClaim(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read rootClaim", err)
	}
	rawExtra, err := game.ExtraData(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read extraData", err)
	}
	l1Head, err := game.L1Head(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read l1Head", err)
	}
	extra := proposal.UnpackExtraData(rawExtra)

	blobs, blobHashes, err := a.fetchSidecarBlobs(ctx, l1Head)
	if err != nil {
		return nil, err
	}

	return &proposal.Proposal{
		Index:               index,
		L1Head:              l1Head,
		ParentIndex:         extra.ParentIndex,
		DuplicationCounter:  extra.DuplicationCounter,
		ClaimedOutputRoot:   claimedRoot,
		OutputBlockNumber:   terminalBlockNumber,
		Blobs:               blobs,
		BlobVersionedHashes: blobHashes,
	}, nil
}

// fetchSidecarBlobs enumerates the sidecar blobs published alongside a
// proposal's L1 inclusion block: slot = (timestamp - genesis_time) /
// seconds_per_slot. It returns both the raw field-element blobs (used to
// reconstruct the proposal's output trace) and their EIP-4844 versioned
// hashes (used to bind a validity proof request to this exact blob set).
func (a *Agent) fetchSidecarBlobs(ctx context.Context, l1Head common.Hash) ([]*blobmath.Blob, []common.Hash, error) {
	if a.deployment.ProposalBlobs == 0 {
		return nil, nil, nil
	}
	timestamp, err := a.l1ts.TimestampByHash(ctx, l1Head)
	if err != nil {
		return nil, nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch l1 block timestamp", err)
	}
	slot := a.beaconCli.SlotForTimestamp(timestamp)
	sidecars, err := a.beaconCli.BlobSidecars(ctx, slot)
	if err != nil {
		return nil, nil, err
	}

	blobs := make([]*blobmath.Blob, 0, a.deployment.ProposalBlobs)
	hashes := make([]common.Hash, 0, a.deployment.ProposalBlobs)
	for _, sc := range sidecars {
		if uint64(len(blobs)) >= a.deployment.ProposalBlobs {
			break
		}
		var b blobmath.Blob
		for i := 0; i < blobmath.FieldElementsPerBlob; i++ {
			copy(b[i][:], sc.Blob[i*blobmath.BytesPerFieldElement:(i+1)*blobmath.BytesPerFieldElement])
		}
		blobs = append(blobs, &b)
		hashes = append(hashes, sc.VersionedHash())
	}
	return blobs, hashes, nil
}

// populateOutputs fills the cache with canonical outputs at every L2 block
// number this proposal's trace references.
func (a *Agent) populateOutputs(ctx context.Context, p *proposal.Proposal) error {
	parent, ok := a.proposals[p.ParentIndex]
	parentBlockNumber := p.OutputBlockNumber - a.deployment.OutputBlockSpan*a.deployment.ProposalOutputCount
	if ok {
		parentBlockNumber = parent.OutputBlockNumber
	}
	for i := uint64(1); i <= a.deployment.ProposalOutputCount; i++ {
		blockNumber := parentBlockNumber + i*a.deployment.OutputBlockSpan
		if _, err := a.outputAt(ctx, blockNumber); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) canonicalTrace(parentBlockNumber uint64) ([]common.Hash, error) {
	canonical := make([]common.Hash, a.deployment.ProposalOutputCount)
	for i := uint64(0); i < a.deployment.ProposalOutputCount; i++ {
		blockNumber := parentBlockNumber + (i+1)*a.deployment.OutputBlockSpan
		root, ok := a.outputs.Get(blockNumber)
		if !ok {
			return nil, kerrors.New(kerrors.OtherError, "canonical output not yet cached")
		}
		canonical[i] = root
	}
	return canonical, nil
}

// syncOutputCache adapts the agent's bounded output-root cache to
// request.OutputCache.
type syncOutputCache struct {
	cache *lru.Cache[uint64, common.Hash]
}

func (c syncOutputCache) OutputAt(blockNumber uint64) (common.Hash, bool) {
	return c.cache.Get(blockNumber)
}

// compareAndEnqueue compares a proposal's trace to canonical outputs and
// enqueues a fault or validity proof request. A validity request for a
// proposal with more than one output carries a ValidityPrecondition over
// that proposal's own sidecar blobs, so the proof stays bound to the
// exact blob set it was checked against.
func (a *Agent) compareAndEnqueue(ctx context.Context, parent, p *proposal.Proposal) error {
	trace, err := proposal.ReconstructOutputTrace(p, parent.OutputBlockNumber, a.deployment.OutputBlockSpan, a.deployment.ProposalOutputCount)
	if err != nil {
		return err
	}
	canonical, err := a.canonicalTrace(parent.OutputBlockNumber)
	if err != nil {
		return err
	}

	divergence := proposal.FindDivergence(trace, canonical, a.deployment.ProposalOutputCount)

	var msg *request.Message
	if divergence != nil {
		msg, err = request.BuildFaultRequest(ctx, a.l2Outputs, syncOutputCache{a.outputs}, a.deployment.OutputBlockSpan, parent, p, divergence.Point, p.L1Head)
	} else {
		msg, err = request.BuildValidityRequest(ctx, a.l2Outputs, a.l1ts, a.deployment.ProposalOutputCount, a.deployment.OutputBlockSpan, parent, p, p.BlobVersionedHashes, p.L1Head)
	}
	if err != nil {
		return err
	}

	select {
	case a.tasks <- *msg:
	case <-ctx.Done():
		return kerrors.Wrap(kerrors.RpcUnavailable, "enqueue proof request", ctx.Err())
	}
	return nil
}

// Proposals returns a read-only snapshot of the currently-known proposals,
// for request-builder callers that need direct record access rather than
// the agent's own enqueueing.
func (a *Agent) Proposals() map[uint64]*proposal.Proposal {
	out := make(map[uint64]*proposal.Proposal, len(a.proposals))
	for k, v := range a.proposals {
		out[k] = v
	}
	return out
}
