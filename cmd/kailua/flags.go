package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Flag names shared across every subcommand: each accepts L1/L2/beacon RPC
// URLs, a signing key, a payout-recipient address, segment-limit,
// max-witness-size, concurrency counts, and an optional telemetry
// endpoint.
const (
	flagL1RPC       = "l1-rpc"
	flagL2RPC       = "l2-rpc"
	flagBeaconRPC   = "beacon-rpc"
	flagFactory     = "factory"
	flagGame        = "game"
	flagSigningKey  = "signing-key"
	flagPayout      = "payout-recipient"
	flagSegmentPo2  = "segment-limit-po2"
	flagMaxWitness  = "max-witness-size"
	flagConcurrency = "concurrency"
	flagTelemetry   = "telemetry-endpoint"
	flagProveSnark  = "prove-snark"
	flagCacheDir    = "cache-dir"
	flagBackend     = "backend"
	flagBonsaiURL   = "bonsai-url"
	flagBonsaiKey   = "bonsai-api-key"
	flagDevMode     = "dev-mode"
	flagPollEvery   = "poll-interval"
	flagParentIndex = "parent-index"
	flagTargetIndex = "target-index"
	flagFaultOffset = "fault-offset"
	flagFaultNull   = "fault-null"
)

// commonFlags returns the flags every subcommand binds.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagL1RPC, Usage: "L1 execution client JSON-RPC URL", Required: true, Category: "RPC"},
		&cli.StringFlag{Name: flagL2RPC, Usage: "L2 execution client JSON-RPC URL", Required: true, Category: "RPC"},
		&cli.StringFlag{Name: flagBeaconRPC, Usage: "L1 beacon node HTTP API URL", Category: "RPC"},
		&cli.StringFlag{Name: flagFactory, Usage: "dispute game factory contract address", Required: true, Category: "CONTRACTS"},
		&cli.StringFlag{Name: flagGame, Usage: "KailuaGame implementation contract address", Category: "CONTRACTS"},
		&cli.StringFlag{Name: flagSigningKey, Usage: "hex-encoded ECDSA private key used to sign submitted transactions", EnvVars: []string{"KAILUA_SIGNING_KEY"}, Category: "SIGNING"},
		&cli.StringFlag{Name: flagPayout, Usage: "payout recipient address pinned into every proof journal", Category: "PROVING"},
		&cli.IntFlag{Name: flagSegmentPo2, Usage: "zkVM segment limit, log2 of cycles per segment", Value: 20, Category: "PROVING"},
		&cli.IntFlag{Name: flagMaxWitness, Usage: "maximum witness size in bytes before a task is split", Value: 64 << 20, Category: "PROVING"},
		&cli.IntFlag{Name: flagConcurrency, Usage: "number of concurrent proving workers", Value: 1, Category: "PROVING"},
		&cli.BoolFlag{Name: flagProveSnark, Usage: "wrap the zkVM STARK receipt into a Groth16 SNARK", Category: "PROVING"},
		&cli.StringFlag{Name: flagTelemetry, Usage: "OTLP trace collector endpoint (optional)", Category: "TELEMETRY"},
		&cli.StringFlag{Name: flagCacheDir, Usage: "directory backing the on-disk proof cache", Value: "./kailua-proofs", Category: "PROVING"},
		&cli.StringFlag{Name: flagBackend, Usage: "proving backend: local, service, or market", Value: "local", Category: "PROVING"},
		&cli.StringFlag{Name: flagBonsaiURL, Usage: "remote proving service base URL (backend=service)", Category: "PROVING"},
		&cli.StringFlag{Name: flagBonsaiKey, Usage: "remote proving service API key (backend=service)", EnvVars: []string{"BONSAI_API_KEY"}, Category: "PROVING"},
		&cli.BoolFlag{Name: flagDevMode, Usage: "short-circuit the market backend with a fake seal (testing only)", Category: "PROVING"},
		&cli.DurationFlag{Name: flagPollEvery, Usage: "sync agent tick interval", Value: 12 * time.Second, Category: "SYNC"},
	}
}

// proposeFlags extends commonFlags with the flags propose/fault need to
// locate a parent proposal.
func proposeFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.Uint64Flag{Name: flagParentIndex, Usage: "factory index of the parent proposal to extend"},
	)
}

// faultFlags extends proposeFlags with the fault-injection parameters for
// the testing-only fault subcommand.
func faultFlags() []cli.Flag {
	return append(proposeFlags(),
		&cli.Uint64Flag{Name: flagFaultOffset, Usage: "offset of the faulty block within the proposal, in output_block_span units", Required: true},
		&cli.BoolFlag{Name: flagFaultNull, Usage: "use the zero hash as the faulty root claim instead of a derived non-matching one"},
	)
}

// validateFlags extends proposeFlags (which already carries --parent-index)
// with the target proposal's own factory index.
func validateFlags() []cli.Flag {
	return append(proposeFlags(),
		&cli.Uint64Flag{Name: flagTargetIndex, Usage: "factory index of the proposal under dispute (the --game address)", Required: true},
	)
}
