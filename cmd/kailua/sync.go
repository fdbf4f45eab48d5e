package main

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/kailua-zk/kailua-go/chain"
	"github.com/kailua-zk/kailua-go/dispatch"
	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/logging"
	"github.com/kailua-zk/kailua-go/request"
	"github.com/kailua-zk/kailua-go/syncagent"
)

// syncCommand runs the sync agent's poll loop against the dispute game
// factory, feeding divergent proposals to the proving dispatcher.
var syncCommand = &cli.Command{
	Name:  "sync",
	Usage: "poll the dispute game factory and dispatch fault/validity proof requests to a proving backend",
	Flags: commonFlags(),
	Action: func(c *cli.Context) error {
		ctx := c.Context
		rt, err := loadRuntime(ctx, c)
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.beacon == nil {
			return kerrors.New(kerrors.OtherError, flagBeaconRPC+" is required for sync")
		}
		if c.String(flagGame) == "" {
			return kerrors.New(kerrors.OtherError, flagGame+" is required for sync")
		}

		tasks := make(chan request.Message, c.Int(flagConcurrency)*2+1)

		gameFactory := func(addr common.Address) syncagent.GameInstance {
			return chain.TournamentContract{Client: rt.chainClient, Address: addr}
		}

		agent, err := syncagent.New(
			rt.factory,
			gameFactory,
			rt.beacon,
			rt.l1read,
			rt.l2,
			syncagent.Deployment{
				OutputBlockSpan:     rt.deployment.OutputBlockSpan,
				ProposalOutputCount: rt.deployment.ProposalOutputCount,
				ProposalBlobs:       rt.deployment.ProposalBlobs,
			},
			tasks,
		)
		if err != nil {
			return err
		}

		cache, err := newDirCache(c.String(flagCacheDir))
		if err != nil {
			return err
		}

		backendAdapter, backendErr := selectBackend(c)
		if backendErr != nil {
			rt.log.Warn("proving backend unavailable; tasks will be queued but proving will fail until one is wired", "err", backendErr)
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

		result := make(chan error, 2)
		go func() { result <- dispatcher.Run(ctx, tasks, c.Int(flagConcurrency)) }()
		go func() { result <- runPollLoop(ctx, agent, pollInterval(c), rt.log) }()

		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	},
}

// runPollLoop calls Tick on a fixed interval until ctx is cancelled.
func runPollLoop(ctx context.Context, agent *syncagent.Agent, interval time.Duration, log logging.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := agent.Tick(ctx); err != nil {
				log.Error("sync tick failed", "err", err)
			}
		}
	}
}

// unwiredPreflighter reports the dispatch.Preflighter extension point is
// unwired: running the FPVM guest natively against a local oracle requires
// the same concrete zkVM binding the proving backends do.
type unwiredPreflighter struct{}

func (unwiredPreflighter) Run(ctx context.Context, msg request.Message) (*dispatch.Preflight, error) {
	return nil, kerrors.New(kerrors.NotAwaitingProof, "no dispatch.Preflighter is wired; preflight requires a concrete FPVM guest binding")
}
