package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/kailua-zk/kailua-go/chain"
	"github.com/kailua-zk/kailua-go/dispatch"
	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/proposal"
	"github.com/kailua-zk/kailua-go/request"
)

// validateCommand runs the divergence analysis and proof-request
// construction for a single proposal named by --game, against its parent
// named by --parent-index, then drives a one-shot
// dispatcher to compute the resulting fault or validity proof. This is the
// manual, single-proposal counterpart to what sync does continuously for
// every newly observed proposal.
var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "compute the fault or validity proof for one proposal against its parent",
	Flags: validateFlags(),
	Action: func(c *cli.Context) error {
		rt, err := loadRuntime(c.Context, c)
		if err != nil {
			return err
		}
		defer rt.Close()

		if c.String(flagGame) == "" {
			return kerrors.New(kerrors.OtherError, flagGame+" is required for validate")
		}

		targetAddr := common.HexToAddress(c.String(flagGame))
		target := chain.TournamentContract{Client: rt.chainClient, Address: targetAddr}

		parentIndex := c.Uint64(flagParentIndex)
		parentAddr, err := rt.factory.GameAtIndex(c.Context, parentIndex)
		if err != nil {
			return kerrors.Wrap(kerrors.RpcUnavailable, "read parent gameAtIndex", err)
		}
		parentGame := chain.TournamentContract{Client: rt.chainClient, Address: parentAddr}

		parentProposal, err := loadProposal(c.Context, parentGame, parentIndex)
		if err != nil {
			return err
		}
		targetProposal, err := loadProposal(c.Context, target, c.Uint64(flagTargetIndex))
		if err != nil {
			return err
		}

		canonical, divergence, err := divergeAgainstCanonical(c.Context, rt, parentProposal, targetProposal)
		if err != nil {
			return err
		}

		msg, err := buildValidationMessage(c.Context, rt, parentProposal, targetProposal, canonical, divergence)
		if err != nil {
			return err
		}

		cache, err := newDirCache(c.String(flagCacheDir))
		if err != nil {
			return err
		}
		backendAdapter, backendErr := selectBackend(c)
		if backendErr != nil {
			rt.log.Warn("proving backend unavailable; validation will stop short of producing a proof", "err", backendErr)
		}
		dispatcher := dispatch.New(
			cache,
			unwiredPreflighter{},
			backendAdapter,
			unwiredVerifier(backendErr),
			rt.l2,
			dispatch.Config{
				PayoutRecipient: common.HexToAddress(c.String(flagPayout)),
				ConfigHash:      rt.deployment.ConfigHash,
				FPVMImageID:     rt.deployment.FPVMImageID,
				MaxWitnessSize:  c.Int(flagMaxWitness),
				OutputBlockSpan: rt.deployment.OutputBlockSpan,
				ProveSnark:      c.Bool(flagProveSnark),
			},
			rt.metrics,
		)

		p, err := dispatcher.Process(c.Context, *msg)
		if err != nil {
			return err
		}
		rt.log.Info("validation proof computed", "kind", p.Kind, "claimed_block", msg.ClaimedL2BlockNumber)
		return nil
	},
}

func loadProposal(ctx context.Context, game chain.Tournament, index uint64) (*proposal.Proposal, error) {
	blockNumber, err := game.L2BlockNumber(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read l2BlockNumber", err)
	}
	root, err := game.RootClaim(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read rootClaim", err)
	}
	extraRaw, err := game.ExtraData(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read extraData", err)
	}
	l1Head, err := game.L1Head(ctx)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "read l1Head", err)
	}
	extra := proposal.UnpackExtraData(extraRaw)

	return &proposal.Proposal{
		Index:              index,
		L1Head:             l1Head,
		ParentIndex:        extra.ParentIndex,
		DuplicationCounter: extra.DuplicationCounter,
		ClaimedOutputRoot:  root,
		OutputBlockNumber:  blockNumber,
	}, nil
}

// divergeAgainstCanonical fetches the canonical L2 output at every position
// the target proposal claims and runs proposal.FindDivergence against it.
func divergeAgainstCanonical(ctx context.Context, rt *runtime, parent, target *proposal.Proposal) ([]common.Hash, *proposal.Divergence, error) {
	count := rt.deployment.ProposalOutputCount
	canonical := make([]common.Hash, count)
	for i := uint64(0); i < count; i++ {
		blockNumber := parent.OutputBlockNumber + (i+1)*rt.deployment.OutputBlockSpan
		root, err := rt.l2.OutputAtBlock(ctx, blockNumber)
		if err != nil {
			return nil, nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch canonical output", err)
		}
		canonical[i] = root
	}

	trace, err := proposal.ReconstructOutputTrace(target, parent.OutputBlockNumber, rt.deployment.OutputBlockSpan, count)
	if err != nil {
		return canonical, nil, err
	}
	return canonical, proposal.FindDivergence(trace, canonical, count), nil
}

// buildValidationMessage builds a fault Message when a divergence was
// found, or a validity Message spanning the whole proposal otherwise.
func buildValidationMessage(ctx context.Context, rt *runtime, parent, target *proposal.Proposal, canonical []common.Hash, divergence *proposal.Divergence) (*request.Message, error) {
	if divergence != nil {
		return request.BuildFaultRequest(ctx, rt.l2, canonicalCache{canonical: canonical, parentBlockNumber: parent.OutputBlockNumber, outputBlockSpan: rt.deployment.OutputBlockSpan}, rt.deployment.OutputBlockSpan, parent, target, divergence.Point, target.L1Head)
	}

	blobHashes, err := sidecarVersionedHashes(ctx, rt, target)
	if err != nil {
		return nil, err
	}
	return request.BuildValidityRequest(ctx, rt.l2, rt.l1read, rt.deployment.ProposalOutputCount, rt.deployment.OutputBlockSpan, parent, target, blobHashes, target.L1Head)
}

// sidecarVersionedHashes fetches the target proposal's blob sidecars from
// the beacon node and returns their EIP-4844 versioned hashes, in blob
// order.
func sidecarVersionedHashes(ctx context.Context, rt *runtime, target *proposal.Proposal) ([]common.Hash, error) {
	if rt.deployment.ProposalOutputCount <= 1 {
		return nil, nil
	}
	if rt.beacon == nil {
		return nil, kerrors.New(kerrors.OtherError, flagBeaconRPC+" is required to validate a multi-output proposal")
	}
	_, blockNum, err := rt.l1read.NextBlock(ctx, target.L1Head)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "resolve proposal inclusion block", err)
	}
	header, err := rt.l1.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNum))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch l1 header", err)
	}
	slot := rt.beacon.SlotForTimestamp(header.Time)
	sidecars, err := rt.beacon.BlobSidecars(ctx, slot)
	if err != nil {
		return nil, err
	}
	out := make([]common.Hash, len(sidecars))
	for i, sc := range sidecars {
		out[i] = sc.VersionedHash()
	}
	return out, nil
}

// canonicalCache adapts a precomputed canonical output slice to
// request.OutputCache, keyed by block number.
type canonicalCache struct {
	canonical         []common.Hash
	parentBlockNumber uint64
	outputBlockSpan   uint64
}

func (c canonicalCache) OutputAt(blockNumber uint64) (common.Hash, bool) {
	if blockNumber <= c.parentBlockNumber || c.outputBlockSpan == 0 {
		return common.Hash{}, false
	}
	offset := blockNumber - c.parentBlockNumber
	if offset%c.outputBlockSpan != 0 {
		return common.Hash{}, false
	}
	i := offset/c.outputBlockSpan - 1
	if i >= uint64(len(c.canonical)) {
		return common.Hash{}, false
	}
	return c.canonical[i], true
}
