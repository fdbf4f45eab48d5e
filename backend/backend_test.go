package backend

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/proof"
)

func TestForceRecursion(t *testing.T) {
	env := map[string]string{"KAILUA_FORCE_RECURSION": "1"}
	getenv := func(k string) string { return env[k] }
	if !ForceRecursion(getenv) {
		t.Fatal("expected ForceRecursion true when env var set")
	}
	if ForceRecursion(func(string) string { return "" }) {
		t.Fatal("expected ForceRecursion false when env var unset")
	}
}

type fakeExecutor struct {
	receipt Receipt
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, image []byte, env ExecutorEnv, proveSnark bool) (Receipt, error) {
	return f.receipt, f.err
}

type fakeVerifier struct{ err error }

func (f *fakeVerifier) Verify(receipt Receipt, imageID common.Hash) error { return f.err }

func TestLocalProveRoutesZKVMReceiptsAsAssumptions(t *testing.T) {
	exec := &fakeExecutor{receipt: Receipt{Bytes: []byte("r"), Journal: []byte("j")}}
	l := &Local{Executor: exec, Verifier: &fakeVerifier{}, ImageID: common.HexToHash("0x1")}

	stitched := []proof.Proof{{Kind: proof.KindZKVMStark, Receipt: []byte("inner")}}
	p, err := l.Prove(context.Background(), [][]byte{[]byte("frame")}, stitched, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if p.Kind != proof.KindZKVMStark {
		t.Fatalf("expected stark kind without prove_snark, got %v", p.Kind)
	}
}

func TestLocalProveWrapsGroth16WhenRequested(t *testing.T) {
	exec := &fakeExecutor{receipt: Receipt{Bytes: []byte("r")}}
	l := &Local{Executor: exec, Verifier: &fakeVerifier{}}
	p, err := l.Prove(context.Background(), nil, nil, true)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if p.Kind != proof.KindZKVMGroth16 {
		t.Fatalf("expected groth16 kind, got %v", p.Kind)
	}
}

func TestLocalProveForceRecursionWritesAsInput(t *testing.T) {
	var gotEnv ExecutorEnv
	exec := &fakeExecutor{receipt: Receipt{Bytes: []byte("r")}}
	l := &Local{Executor: execCapture(exec, &gotEnv), Verifier: &fakeVerifier{}, ForceRecursion: true}

	stitched := []proof.Proof{{Kind: proof.KindZKVMStark, Receipt: []byte("inner")}}
	if _, err := l.Prove(context.Background(), nil, stitched, false); err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if len(gotEnv.Assumptions) != 0 {
		t.Fatal("expected no assumptions under ForceRecursion")
	}
	if len(gotEnv.Frames) != 1 {
		t.Fatalf("expected the stitched proof written as a guest frame, got %d frames", len(gotEnv.Frames))
	}
}

type capturingExecutor struct {
	inner *fakeExecutor
	dst   *ExecutorEnv
}

func (c *capturingExecutor) Execute(ctx context.Context, image []byte, env ExecutorEnv, proveSnark bool) (Receipt, error) {
	*c.dst = env
	return c.inner.Execute(ctx, image, env, proveSnark)
}

func execCapture(inner *fakeExecutor, dst *ExecutorEnv) GuestExecutor {
	return &capturingExecutor{inner: inner, dst: dst}
}

type fakeSessionClient struct {
	status SessionStatus
}

func (f *fakeSessionClient) UploadImage(ctx context.Context, imageIDHex string, image []byte) error {
	return nil
}
func (f *fakeSessionClient) UploadInput(ctx context.Context, input []byte) (string, error) {
	return "input-1", nil
}
func (f *fakeSessionClient) UploadReceipt(ctx context.Context, receipt []byte) (string, error) {
	return "receipt-1", nil
}
func (f *fakeSessionClient) CreateSession(ctx context.Context, imageIDHex, inputID string, assumptionReceiptIDs []string) (string, error) {
	return "session-1", nil
}
func (f *fakeSessionClient) SessionStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	return f.status, nil
}
func (f *fakeSessionClient) CreateSnarkSession(ctx context.Context, sessionID string) (string, error) {
	return "snark-session-1", nil
}
func (f *fakeSessionClient) Download(ctx context.Context, url string) ([]byte, error) {
	return []byte("receipt-bytes"), nil
}

func TestServiceProveSucceedsImmediately(t *testing.T) {
	s := &Service{
		Client:   &fakeSessionClient{status: SessionStatus{Status: "SUCCEEDED", ReceiptURL: "http://x/receipt"}},
		Verifier: &fakeVerifier{},
	}
	p, err := s.Prove(context.Background(), [][]byte{[]byte("w")}, nil, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if p.Kind != proof.KindZKVMStark {
		t.Fatalf("expected stark kind, got %v", p.Kind)
	}
}

func TestServicePollIntervalDefault(t *testing.T) {
	s := &Service{}
	if s.pollInterval() != time.Second {
		t.Fatalf("expected default poll interval of 1s, got %v", s.pollInterval())
	}
}

type fakeMarketClient struct {
	wallet      common.Address
	nonce       uint64
	imageID     common.Hash
	submittedID *big.Int
}

func (f *fakeMarketClient) UploadImage(ctx context.Context, image []byte) (string, error) {
	return "ipfs://image", nil
}
func (f *fakeMarketClient) UploadInput(ctx context.Context, input []byte) (string, error) {
	return "ipfs://input", nil
}
func (f *fakeMarketClient) ImageInfo(ctx context.Context) (common.Hash, error) { return f.imageID, nil }
func (f *fakeMarketClient) WalletAddress() common.Address                     { return f.wallet }
func (f *fakeMarketClient) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeMarketClient) RequestIDFromNonce(ctx context.Context) (*big.Int, error) {
	return big.NewInt(42), nil
}
func (f *fakeMarketClient) GetSubmittedRequest(ctx context.Context, requestID *big.Int) (*SubmittedRequest, error) {
	return nil, context.DeadlineExceeded // no in-flight match in this fixture
}
func (f *fakeMarketClient) SubmitRequest(ctx context.Context, req ProofRequest) (*big.Int, uint64, error) {
	f.submittedID = req.ID
	return req.ID, 1500, nil
}
func (f *fakeMarketClient) WaitForFulfillment(ctx context.Context, requestID *big.Int, pollInterval time.Duration, expiresAt uint64) ([]byte, []byte, error) {
	return []byte("journal"), []byte("seal-bytes"), nil
}

type fakeEstimator struct{}

func (fakeEstimator) EstimateCycles(ctx context.Context, image []byte, env ExecutorEnv) (uint64, error) {
	return 4, nil
}

func TestMarketProveDevModeReturnsFakeSeal(t *testing.T) {
	client := &fakeMarketClient{imageID: common.HexToHash("0xaa")}
	m := &Market{Client: client, DevMode: true}
	p, err := m.Prove(context.Background(), nil, nil, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if p.Kind != proof.KindMarketSeal || len(p.Seal) != 4 {
		t.Fatalf("expected a 4-byte selector seal in dev mode, got %+v", p)
	}
}

func TestMarketProveSubmitsAndAwaitsFulfillment(t *testing.T) {
	client := &fakeMarketClient{wallet: common.HexToAddress("0xbb"), nonce: 3}
	m := &Market{Client: client, Estimator: fakeEstimator{}, Lookback: 2}
	p, err := m.Prove(context.Background(), [][]byte{[]byte("w")}, nil, false)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if p.Kind != proof.KindMarketSeal || string(p.Seal) != "seal-bytes" {
		t.Fatalf("expected submitted seal, got %+v", p)
	}
	if client.submittedID == nil {
		t.Fatal("expected a request to have been submitted")
	}
}

func TestMarketWithJournalScopesACopy(t *testing.T) {
	base := Market{JournalDigest: common.Hash{}}
	scoped := base.WithJournal(common.HexToHash("0xdeadbeef"))
	if base.JournalDigest != (common.Hash{}) {
		t.Fatal("WithJournal must not mutate the receiver")
	}
	if scoped.JournalDigest == (common.Hash{}) {
		t.Fatal("expected scoped copy to carry the journal digest")
	}
}
