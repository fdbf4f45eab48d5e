// Package dispatch implements the proving dispatcher: a cache-hit
// short-circuit, preflight execution, witness sizing with
// split-on-overflow, backend selection, and receipt verification before
// persistence. A worker pool drains a task channel and, when a witness
// exceeds the configured size limit, recursively splits the L2 block
// range in half and stitches the two child proofs back together, ordering
// children by claimed L2 block number before combining.
package dispatch

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/kailua-zk/kailua-go/backend"
	"github.com/kailua-zk/kailua-go/journal"
	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/logging"
	"github.com/kailua-zk/kailua-go/metrics"
	"github.com/kailua-zk/kailua-go/proof"
	"github.com/kailua-zk/kailua-go/request"
)

// Cache persists and retrieves completed proofs by their canonical
// filename.
type Cache interface {
	Get(filename string) ([]byte, bool, error)
	Put(filename string, data []byte) error
}

// Preflight is the outcome of executing the verifier guest natively
// against a local oracle: every preimage touched is recorded, and the
// claimed output is computed if achievable.
type Preflight struct {
	WitnessFrame      []byte
	ClaimedOutputRoot common.Hash
	Achievable        bool
}

// Preflighter runs preflight for one request message.
type Preflighter interface {
	Run(ctx context.Context, msg request.Message) (*Preflight, error)
}

// OutputResolver resolves the canonical L2 output root at a block number,
// used to compute the midpoint of a split task's L2 range.
type OutputResolver interface {
	ResolveOutputRoot(ctx context.Context, blockNumber uint64) (common.Hash, error)
}

// Config carries the dispatcher's process-wide, immutable parameters.
type Config struct {
	PayoutRecipient common.Address
	ConfigHash      common.Hash
	FPVMImageID     common.Hash
	MaxWitnessSize  int
	OutputBlockSpan uint64
	ProveSnark      bool
}

// Dispatcher executes proof request messages on a bounded pool of workers.
type Dispatcher struct {
	cache     Cache
	preflight Preflighter
	backend   backend.Adapter
	verifier  backend.ReceiptVerifier
	outputs   OutputResolver
	config    Config
	metrics   *metrics.Registry
	log       logging.Logger
}

// New constructs a Dispatcher.
func New(cache Cache, preflight Preflighter, adapter backend.Adapter, verifier backend.ReceiptVerifier, outputs OutputResolver, config Config, reg *metrics.Registry) *Dispatcher {
	return &Dispatcher{
		cache:     cache,
		preflight: preflight,
		backend:   adapter,
		verifier:  verifier,
		outputs:   outputs,
		config:    config,
		metrics:   reg,
		log:       logging.New("dispatch"),
	}
}

// Run drains tasks from in with the given worker concurrency until the
// channel is closed or ctx is cancelled. Closing the channel signals
// shutdown; workers drain in-flight tasks then exit.
func (d *Dispatcher) Run(ctx context.Context, in <-chan request.Message, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for msg := range in {
		msg := msg
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		g.Go(func() error {
			defer func() { <-sem }()
			log := logging.WithProofFile(logging.WithProposal(d.log, msg.ProposalIndex), d.journalFor(msg).Filename())
			if _, err := d.Process(ctx, msg); err != nil {
				log.Error("proof request failed", "err", err)
				if d.metrics != nil {
					d.metrics.BackendErrors.WithLabelValues("dispatch", kerrors.KindOf(err).String()).Inc()
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Process runs the full cache/preflight/prove/verify pipeline for a
// single request message, returning the resulting proof.
func (d *Dispatcher) Process(ctx context.Context, msg request.Message) (proof.Proof, error) {
	j := d.journalFor(msg)
	filename := j.Filename()

	if data, ok, err := d.cache.Get(filename); err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.OtherError, "read proof cache", err)
	} else if ok {
		if d.metrics != nil {
			d.metrics.CacheHits.Inc()
		}
		return proof.Decode(data)
	}

	if d.metrics != nil {
		d.metrics.QueueDepth.Inc()
		defer d.metrics.QueueDepth.Dec()
	}

	pre, err := d.preflight.Run(ctx, msg)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.ExecutionError, "preflight", err)
	}

	var p proof.Proof
	if d.config.MaxWitnessSize > 0 && len(pre.WitnessFrame) > d.config.MaxWitnessSize {
		p, err = d.splitAndStitch(ctx, msg)
	} else {
		p, err = d.backend.Prove(ctx, [][]byte{pre.WitnessFrame}, nil, d.config.ProveSnark)
	}
	if err != nil {
		return proof.Proof{}, err
	}

	// A market seal is verified on-chain by the SetVerifier contract the
	// seal targets, not by a local receipt check; only zkVM receipts are
	// re-checked here against FPVMImageID before being cached.
	if p.Kind == proof.KindZKVMStark || p.Kind == proof.KindZKVMGroth16 {
		if err := d.verifier.Verify(backend.Receipt{Bytes: p.Receipt}, d.config.FPVMImageID); err != nil {
			return proof.Proof{}, kerrors.Wrap(kerrors.ProofConstruction, "verify receipt before persisting", err)
		}
	}
	p.Journal = j.Pack()

	if err := d.cache.Put(filename, p.Encode()); err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.OtherError, "write proof cache", err)
	}
	return p, nil
}

func (d *Dispatcher) journalFor(msg request.Message) journal.ProofJournal {
	return journal.ProofJournal{
		PayoutRecipient:      d.config.PayoutRecipient,
		PreconditionHash:     msg.Precondition.PreconditionHash(),
		L1Head:               msg.L1Head,
		AgreedL2OutputRoot:   msg.AgreedL2OutputRoot,
		ClaimedL2OutputRoot:  msg.ClaimedL2OutputRoot,
		ClaimedL2BlockNumber: msg.ClaimedL2BlockNumber,
		ConfigHash:           d.config.ConfigHash,
		FPVMImageID:          d.config.FPVMImageID,
	}
}

// splitAndStitch halves the L2 block range, proves each half concurrently
// (with matching boot-info stitching), and combines the two child proofs
// into a single stitching proof.
func (d *Dispatcher) splitAndStitch(ctx context.Context, msg request.Message) (proof.Proof, error) {
	agreed := msg.AgreedL2BlockNumber
	span := d.config.OutputBlockSpan
	if span == 0 {
		return proof.Proof{}, kerrors.New(kerrors.OtherError, "cannot split a task with unknown output_block_span")
	}
	if msg.ClaimedL2BlockNumber <= agreed {
		return proof.Proof{}, kerrors.New(kerrors.OtherError, "claimed block number does not exceed agreed block number")
	}

	blocks := (msg.ClaimedL2BlockNumber - agreed) / span
	if blocks < 2 {
		return proof.Proof{}, kerrors.New(kerrors.ExecutionError, "witness exceeds max size but the range cannot be split further")
	}
	midBlocks := blocks / 2
	midBlockNumber := agreed + midBlocks*span

	midRoot, err := d.outputs.ResolveOutputRoot(ctx, midBlockNumber)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "resolve split midpoint output root", err)
	}

	left := msg
	left.ClaimedL2BlockNumber = midBlockNumber
	left.ClaimedL2OutputRoot = midRoot

	right := msg
	right.AgreedL2BlockNumber = midBlockNumber
	right.AgreedL2OutputRoot = midRoot
	right.ClaimedL2BlockNumber = msg.ClaimedL2BlockNumber

	var leftProof, rightProof proof.Proof
	var leftErr, rightErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); leftProof, leftErr = d.Process(ctx, left) }()
	go func() { defer wg.Done(); rightProof, rightErr = d.Process(ctx, right) }()
	wg.Wait()
	if leftErr != nil {
		return proof.Proof{}, leftErr
	}
	if rightErr != nil {
		return proof.Proof{}, rightErr
	}

	// Stitching composition: children are ordered by claimed_l2_block_number
	// before combining.
	stitched := []proof.Proof{leftProof, rightProof}
	return d.backend.Prove(ctx, nil, stitched, d.config.ProveSnark)
}
