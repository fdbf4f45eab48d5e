package main

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// faultCommand deliberately submits a faulty proposal, for end-to-end
// testing of the refutation path. This path is for testing only, never
// production dispute resolution — see the Usage string.
var faultCommand = &cli.Command{
	Name:  "fault",
	Usage: "TESTING ONLY: submit a deliberately faulty proposal to exercise the refutation path",
	Flags: faultFlags(),
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

		gameCount, err := rt.factory.GameCount(c.Context)
		if err != nil {
			return kerrors.Wrap(kerrors.RpcUnavailable, "read gameCount", err)
		}

		outputBlockSpan := rt.deployment.OutputBlockSpan
		faultOffset := c.Uint64(flagFaultOffset)
		faultyBlockNumber := parentBlockNumber + faultOffset*outputBlockSpan

		var faultyRoot common.Hash
		if !c.Bool(flagFaultNull) {
			faultyRoot = common.BigToHash(new(big.Int).SetUint64(gameCount))
		}

		proposedBlockNumber := parentBlockNumber + rt.deployment.BlocksPerProposal()
		var proposedRoot common.Hash
		if proposedBlockNumber == faultyBlockNumber {
			proposedRoot = faultyRoot
		} else {
			proposedRoot, err = rt.l2.OutputAtBlock(c.Context, proposedBlockNumber)
			if err != nil {
				return kerrors.Wrap(kerrors.RpcUnavailable, "fetch proposed output root", err)
			}
		}

		txHash, err := submitProposal(c.Context, rt, parentIndex, parentBlockNumber, proposedBlockNumber, proposedRoot, true, faultyBlockNumber, faultyRoot)
		if err != nil {
			rt.log.Error("failed to submit faulty proposal", "err", err)
			return err
		}
		rt.log.Info("faulty proposal submitted", "tx", txHash, "faulty_block", faultyBlockNumber, "faulty_root", faultyRoot)
		return nil
	},
}
