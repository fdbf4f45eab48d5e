// Command kailua is the fault-proof and validity-proof coordinator CLI for
// an optimistic rollup built on a dispute-game factory: it watches
// proposals on L1, detects divergence from canonical L2 output traces, and
// drives a proving pipeline to resolve dispute games.
//
// Usage:
//
//	kailua sync --l1-rpc ... --l2-rpc ... --beacon-rpc ... --factory ... --game ...
//	kailua propose --l1-rpc ... --l2-rpc ... --factory ... --game ... --signing-key ... --parent-index N
//	kailua fault --l1-rpc ... --l2-rpc ... --factory ... --game ... --signing-key ... --parent-index N --fault-offset N
//	kailua validate --l1-rpc ... --l2-rpc ... --factory ... --game ... --parent-index N --target-index N
//	kailua prove --l1-rpc ... --l2-rpc ... --factory ... --l1-head ... --agreed-l2-block-number N ...
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kailua-zk/kailua-go/logging"
)

var version = "v0.1.0-dev"

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &cli.App{
		Name:    "kailua",
		Usage:   "fault-proof and validity-proof coordinator for an optimistic rollup",
		Version: version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "verbosity", Value: 3, Usage: "log level 0-5 (0=silent, 5=trace)"},
		},
		Before: func(c *cli.Context) error {
			logging.SetVerbosity(c.Int("verbosity"))
			return nil
		},
		Commands: []*cli.Command{
			syncCommand,
			proposeCommand,
			faultCommand,
			validateCommand,
			proveCommand,
		},
	}

	if err := app.RunContext(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
