package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/kailua-zk/kailua-go/chain"
	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/proposal"
)

// proposeCommand submits a new proposal extending a parent game instance:
// fetch the parent, compute the proposed block/root, pack the sidecar,
// find a free duplication counter, and submit with bond top-up and blob
// sidecar.
var proposeCommand = &cli.Command{
	Name:  "propose",
	Usage: "submit a new proposal extending a parent dispute game instance",
	Flags: proposeFlags(),
	Action: func(c *cli.Context) error {
		rt, err := requireSigningRuntime(c)
		if err != nil {
			return err
		}
		defer rt.Close()

		parentIndex := c.Uint64(flagParentIndex)
		parentBlockNumber, err := parentGameBlockNumber(c.Context, rt, parentIndex)
		if err != nil {
			return err
		}

		proposedBlockNumber := parentBlockNumber + rt.deployment.BlocksPerProposal()
		proposedRoot, err := rt.l2.OutputAtBlock(c.Context, proposedBlockNumber)
		if err != nil {
			return kerrors.Wrap(kerrors.RpcUnavailable, "fetch proposed output root", err)
		}

		txHash, err := submitProposal(c.Context, rt, parentIndex, parentBlockNumber, proposedBlockNumber, proposedRoot, false, 0, common.Hash{})
		if err != nil {
			return err
		}
		rt.log.Info("proposal submitted", "tx", txHash, "claimed_block", proposedBlockNumber, "claimed_root", proposedRoot)
		return nil
	},
}

// requireSigningRuntime loads the runtime and fails fast if no signing key
// or game address was configured, since propose/fault both submit
// transactions against a specific game implementation.
func requireSigningRuntime(c *cli.Context) (*runtime, error) {
	rt, err := loadRuntime(c.Context, c)
	if err != nil {
		return nil, err
	}
	if rt.signer == nil {
		rt.Close()
		return nil, kerrors.New(kerrors.OtherError, flagSigningKey+" is required")
	}
	if c.String(flagGame) == "" {
		rt.Close()
		return nil, kerrors.New(kerrors.OtherError, flagGame+" is required")
	}
	return rt, nil
}

func parentGameBlockNumber(ctx context.Context, rt *runtime, parentIndex uint64) (uint64, error) {
	parentAddr, err := rt.factory.GameAtIndex(ctx, parentIndex)
	if err != nil {
		return 0, kerrors.Wrap(kerrors.RpcUnavailable, "read parent gameAtIndex", err)
	}
	parentGame := chain.TournamentContract{Client: rt.chainClient, Address: parentAddr}
	return parentGame.L2BlockNumber(ctx)
}

// submitProposal packs the sidecar, finds a free duplication counter,
// tops up any owed participation bond, and submits the propose transaction,
// shared by propose and fault (which differs only in how the intermediate
// field elements and root claim are derived).
func submitProposal(
	ctx context.Context,
	rt *runtime,
	parentIndex, parentBlockNumber, proposedBlockNumber uint64,
	claimedRoot common.Hash,
	faultInjected bool,
	faultyBlockNumber uint64,
	faultyRoot common.Hash,
) (common.Hash, error) {
	elements, err := buildOutputFieldElements(
		ctx, rt.l2,
		parentBlockNumber, rt.deployment.OutputBlockSpan, rt.deployment.ProposalOutputCount,
		faultyBlockNumber, faultyRoot, faultInjected,
	)
	if err != nil {
		return common.Hash{}, err
	}
	blobs := packFieldElementsIntoBlobs(elements)

	lookup := func(claim common.Hash, extraData [24]byte) (common.Address, error) {
		return rt.factory.Games(ctx, rt.gameType, claim, extraData)
	}
	dupeCounter, err := proposal.FindUniqueDuplicationCounter(lookup, proposedBlockNumber, parentIndex, claimedRoot)
	if err != nil {
		return common.Hash{}, err
	}
	extra := proposal.ExtraData{
		TerminalBlockNumber: proposedBlockNumber,
		ParentIndex:         parentIndex,
		DuplicationCounter:  dupeCounter,
	}.Pack()

	treasury := rt.treasury()
	bond, err := treasury.ParticipationBond(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	paidIn, err := treasury.PaidBonds(ctx, rt.signer.Address())
	if err != nil {
		return common.Hash{}, err
	}
	owed := new(big.Int).Sub(bond, paidIn)
	if owed.Sign() < 0 {
		owed.SetInt64(0)
	}

	rawBlobs := make([][]byte, len(blobs))
	for i, b := range blobs {
		rawBlobs[i] = rawBlobBytes(b)
	}

	return treasury.Propose(ctx, claimedRoot, extra, owed, rawBlobs)
}
