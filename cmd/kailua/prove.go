package main

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/kailua-zk/kailua-go/dispatch"
	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/request"
)

const (
	flagL1Head        = "l1-head"
	flagAgreedBlock   = "agreed-l2-block-number"
	flagAgreedRoot    = "agreed-l2-output-root"
	flagClaimedBlock  = "claimed-l2-block-number"
	flagClaimedRoot   = "claimed-l2-output-root"
	flagProposalIndex = "proposal-index"
)

// proveCommand computes the proof for one explicit boot-info transition,
// bypassing divergence analysis and proposal lookups entirely: the
// agreed/claimed root and block number are taken directly from the flags
// rather than derived from chain state.
var proveCommand = &cli.Command{
	Name:  "prove",
	Usage: "compute the proof for one explicit (agreed root, claimed root, claimed block) transition",
	Flags: append(commonFlags(),
		&cli.StringFlag{Name: flagL1Head, Usage: "L1 head hash the transition is proven against", Required: true},
		&cli.Uint64Flag{Name: flagAgreedBlock, Usage: "agreed L2 block number", Required: true},
		&cli.StringFlag{Name: flagAgreedRoot, Usage: "agreed L2 output root", Required: true},
		&cli.Uint64Flag{Name: flagClaimedBlock, Usage: "claimed L2 block number", Required: true},
		&cli.StringFlag{Name: flagClaimedRoot, Usage: "claimed L2 output root", Required: true},
		&cli.Uint64Flag{Name: flagProposalIndex, Usage: "proposal index this proof belongs to, for logging and journal context"},
	),
	Action: func(c *cli.Context) error {
		rt, err := loadRuntime(c.Context, c)
		if err != nil {
			return err
		}
		defer rt.Close()

		agreedHeadHash, err := rt.l2.HeaderHashByNumber(c.Context, c.Uint64(flagAgreedBlock))
		if err != nil {
			return kerrors.Wrap(kerrors.RpcUnavailable, "fetch agreed l2 head hash", err)
		}

		msg := request.Message{
			ProposalIndex:        c.Uint64(flagProposalIndex),
			Precondition:         nil,
			L1Head:               common.HexToHash(c.String(flagL1Head)),
			AgreedL2HeadHash:     agreedHeadHash,
			AgreedL2BlockNumber:  c.Uint64(flagAgreedBlock),
			AgreedL2OutputRoot:   common.HexToHash(c.String(flagAgreedRoot)),
			ClaimedL2BlockNumber: c.Uint64(flagClaimedBlock),
			ClaimedL2OutputRoot:  common.HexToHash(c.String(flagClaimedRoot)),
		}

		cache, err := newDirCache(c.String(flagCacheDir))
		if err != nil {
			return err
		}
		backendAdapter, backendErr := selectBackend(c)
		if backendErr != nil {
			rt.log.Warn("proving backend unavailable; this request will fail once dequeued", "err", backendErr)
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

		p, err := dispatcher.Process(c.Context, msg)
		if err != nil {
			return err
		}
		rt.log.Info("proof computed", "kind", p.Kind, "claimed_block", msg.ClaimedL2BlockNumber)
		return nil
	},
}
