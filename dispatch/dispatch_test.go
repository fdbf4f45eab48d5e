package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/backend"
	"github.com/kailua-zk/kailua-go/proof"
	"github.com/kailua-zk/kailua-go/request"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(filename string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[filename]
	return v, ok, nil
}

func (c *memCache) Put(filename string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[filename] = data
	return nil
}

type fakePreflighter struct {
	frame      []byte
	outputRoot common.Hash
}

func (f fakePreflighter) Run(ctx context.Context, msg request.Message) (*Preflight, error) {
	return &Preflight{WitnessFrame: f.frame, ClaimedOutputRoot: f.outputRoot, Achievable: true}, nil
}

// spanSizedPreflighter returns a witness frame of bytesPerSpan bytes for
// every span blocks the requested range covers.
type spanSizedPreflighter struct {
	span         uint64
	bytesPerSpan int
}

func (f spanSizedPreflighter) Run(ctx context.Context, msg request.Message) (*Preflight, error) {
	spans := int((msg.ClaimedL2BlockNumber - msg.AgreedL2BlockNumber) / f.span)
	return &Preflight{WitnessFrame: make([]byte, spans*f.bytesPerSpan), Achievable: true}, nil
}

type fakeAdapter struct {
	calls atomic.Int64
}

func (f *fakeAdapter) Prove(ctx context.Context, witnessFrames [][]byte, stitchedProofs []proof.Proof, proveSnark bool) (proof.Proof, error) {
	f.calls.Add(1)
	return proof.Proof{Kind: proof.KindZKVMStark, Receipt: []byte("receipt")}, nil
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(receipt backend.Receipt, imageID common.Hash) error { return nil }

type fakeOutputs struct {
	root common.Hash
}

func (f fakeOutputs) ResolveOutputRoot(ctx context.Context, blockNumber uint64) (common.Hash, error) {
	return f.root, nil
}

func testMessage() request.Message {
	return request.Message{
		ProposalIndex:        1,
		L1Head:               common.HexToHash("0xL1"),
		AgreedL2BlockNumber:  190,
		AgreedL2OutputRoot:   common.HexToHash("0xaa"),
		ClaimedL2BlockNumber: 200,
		ClaimedL2OutputRoot:  common.HexToHash("0xbb"),
	}
}

func TestProcessCachesAndShortCircuitsOnReplay(t *testing.T) {
	cache := newMemCache()
	adapter := &fakeAdapter{}
	d := New(cache, fakePreflighter{frame: []byte("w")}, adapter, fakeVerifier{}, fakeOutputs{}, Config{
		FPVMImageID:     common.HexToHash("0ximage"),
		OutputBlockSpan: 10,
		MaxWitnessSize:  1 << 20,
	}, nil)

	msg := testMessage()
	if _, err := d.Process(context.Background(), msg); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if adapter.calls.Load() != 1 {
		t.Fatalf("expected one backend invocation, got %d", adapter.calls.Load())
	}

	if _, err := d.Process(context.Background(), msg); err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if adapter.calls.Load() != 1 {
		t.Fatalf("expected cache hit to skip the backend on replay, got %d calls", adapter.calls.Load())
	}
}

func TestProcessSplitsWitnessExceedingMaxSize(t *testing.T) {
	cache := newMemCache()
	adapter := &fakeAdapter{}
	// 16-byte frame for the whole range, 8 bytes for each one-span half.
	d := New(cache, spanSizedPreflighter{span: 10, bytesPerSpan: 8}, adapter, fakeVerifier{}, fakeOutputs{root: common.HexToHash("0xmid")}, Config{
		FPVMImageID:     common.HexToHash("0ximage"),
		OutputBlockSpan: 10,
		MaxWitnessSize:  8,
	}, nil)

	msg := testMessage() // agreed=190, span=10
	msg.ClaimedL2BlockNumber = 210 // 2 output-block spans wide: splittable in half

	p, err := d.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if p.Kind != proof.KindZKVMStark {
		t.Fatalf("expected a stark proof from the stitching call, got %v", p.Kind)
	}
	// Two children plus one stitching call.
	if adapter.calls.Load() != 3 {
		t.Fatalf("expected 2 child proofs + 1 stitch call, got %d backend calls", adapter.calls.Load())
	}
}

func TestProcessReturnsErrorWhenSplitRangeTooNarrow(t *testing.T) {
	cache := newMemCache()
	adapter := &fakeAdapter{}
	d := New(cache, fakePreflighter{frame: make([]byte, 64)}, adapter, fakeVerifier{}, fakeOutputs{}, Config{
		OutputBlockSpan: 10,
		MaxWitnessSize:  8,
	}, nil)

	msg := testMessage() // agreed=190, claimed=200, span=10: exactly one output_block_span, cannot split further

	if _, err := d.Process(context.Background(), msg); err == nil {
		t.Fatal("expected an error when the range cannot be split any further")
	}
}

type erroringVerifier struct{}

func (erroringVerifier) Verify(receipt backend.Receipt, imageID common.Hash) error {
	return errBadReceipt
}

var errBadReceipt = verifyError("receipt does not match expected image id")

type verifyError string

func (e verifyError) Error() string { return string(e) }

func TestProcessRejectsUnverifiedReceiptBeforeCaching(t *testing.T) {
	cache := newMemCache()
	adapter := &fakeAdapter{}
	d := New(cache, fakePreflighter{frame: []byte("w")}, adapter, erroringVerifier{}, fakeOutputs{}, Config{
		OutputBlockSpan: 10,
		MaxWitnessSize:  1 << 20,
	}, nil)

	msg := testMessage()
	if _, err := d.Process(context.Background(), msg); err == nil {
		t.Fatal("expected verification failure to propagate")
	}
	if len(cache.data) != 0 {
		t.Fatal("expected a failed verification to not be persisted to the cache")
	}
}
