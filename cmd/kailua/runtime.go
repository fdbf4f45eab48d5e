package main

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"github.com/urfave/cli/v2"

	"github.com/kailua-zk/kailua-go/beacon"
	"github.com/kailua-zk/kailua-go/blobmath"
	"github.com/kailua-zk/kailua-go/chain"
	"github.com/kailua-zk/kailua-go/config"
	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/logging"
	"github.com/kailua-zk/kailua-go/metrics"
	"github.com/kailua-zk/kailua-go/telemetry"
)

// runtime holds every dialed client and derived contract view a subcommand
// needs, assembled once in loadRuntime and threaded into whichever
// subcommand Action runs.
type runtime struct {
	l1     *ethclient.Client
	l2     *l2Client
	l1read l1Reader
	beacon *beacon.Client

	chainClient *chain.Client
	factory     chain.Factory
	factoryAddr common.Address

	deployment config.Deployment
	gameType   uint32

	signer *keySigner
	opener *blobmath.Opener

	metrics *metrics.Registry
	tracer  telemetry.Tracer
	log     logging.Logger
}

// loadRuntime dials L1/L2/beacon RPCs, builds the contract-call client, and
// reads the live deployment off the configured game contract once at
// startup.
func loadRuntime(ctx context.Context, c *cli.Context) (*runtime, error) {
	l1, err := ethclient.DialContext(ctx, c.String(flagL1RPC))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "dial l1", err)
	}
	l2, err := dialL2(ctx, c.String(flagL2RPC))
	if err != nil {
		return nil, err
	}

	var beaconCli *beacon.Client
	if addr := c.String(flagBeaconRPC); addr != "" {
		beaconCli, err = beacon.Dial(ctx, addr)
		if err != nil {
			return nil, err
		}
	}

	contractABI, err := chain.ParseABI()
	if err != nil {
		return nil, err
	}
	chainClient := chain.NewClient(l1, contractABI)

	factoryAddr := common.HexToAddress(c.String(flagFactory))
	factory := chain.FactoryContract{Client: chainClient, Address: factoryAddr}

	var deployment config.Deployment
	var gameType uint32
	if gameAddr := c.String(flagGame); gameAddr != "" {
		addr := common.HexToAddress(gameAddr)
		deployment, err = readDeployment(ctx, chainClient, addr)
		if err != nil {
			return nil, err
		}
		gameType, err = (chain.GameContract{Client: chainClient, Address: addr}).GameType(ctx)
		if err != nil {
			return nil, err
		}
	}

	opener, err := blobmath.NewOpener()
	if err != nil {
		return nil, err
	}

	var signer *keySigner
	if keyHex := c.String(flagSigningKey); keyHex != "" {
		chainID, err := l1.ChainID(ctx)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch l1 chain id", err)
		}
		signer, err = newKeySigner(l1, chainID, opener, keyHex)
		if err != nil {
			return nil, err
		}
	}

	log := logging.New("cmd")
	tp := sdktrace.NewTracerProvider()
	if endpoint := c.String(flagTelemetry); endpoint != "" {
		log.Warn("telemetry endpoint configured but no OTLP exporter is wired; spans are created but not exported", "endpoint", endpoint)
	}
	tracer := telemetry.NewTracer("cmd", tp.Tracer("kailua"))

	return &runtime{
		l1:          l1,
		l2:          l2,
		l1read:      l1Reader{eth: l1},
		beacon:      beaconCli,
		chainClient: chainClient,
		factory:     factory,
		factoryAddr: factoryAddr,
		deployment:  deployment,
		gameType:    gameType,
		signer:      signer,
		opener:      opener,
		metrics:     metrics.NewRegistry(),
		tracer:      tracer,
		log:         log,
	}, nil
}

// readDeployment reads every immutable field of config.Deployment off a
// live KailuaGame contract.
func readDeployment(ctx context.Context, client *chain.Client, gameAddr common.Address) (config.Deployment, error) {
	game := chain.GameContract{Client: client, Address: gameAddr}

	treasuryAddr, err := game.Treasury(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	verifier, err := game.Verifier(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	imageID, err := game.ImageID(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	configHash, err := game.ConfigHash(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	outputCount, err := game.ProposalOutputCount(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	outputSpan, err := game.OutputBlockSpan(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	proposalBlobs, err := game.ProposalBlobs(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	factoryAddr, err := game.Factory(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	clockDuration, err := game.ClockDuration(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	genesisTime, err := game.GenesisTimestamp(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	l2BlockTime, err := game.L2BlockTime(ctx)
	if err != nil {
		return config.Deployment{}, err
	}
	proposalTimeGap, err := game.ProposalTimeGap(ctx)
	if err != nil {
		return config.Deployment{}, err
	}

	return config.Deployment{
		Treasury:            treasuryAddr,
		GameImplementation:  gameAddr,
		Verifier:            verifier,
		FPVMImageID:         imageID,
		ConfigHash:          configHash,
		ProposalOutputCount: outputCount,
		OutputBlockSpan:     outputSpan,
		ProposalBlobs:       proposalBlobs,
		Factory:             factoryAddr,
		Timeout:             time.Duration(clockDuration) * time.Second,
		GenesisTime:         genesisTime,
		L2BlockTime:         l2BlockTime,
		ProposalTimeGap:     time.Duration(proposalTimeGap) * time.Second,
	}, nil
}

func (r *runtime) treasury() chain.Treasury {
	return chain.TreasuryContract{
		Client:  r.chainClient,
		Address: r.deployment.Treasury,
		Eth:     r.l1,
		Signer:  r.signer,
	}
}

func (r *runtime) Close() {
	r.l1.Close()
}
