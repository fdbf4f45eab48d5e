package backend

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/proof"
)

func keccak256(data []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// Requirements binds a market proof request to an expected image id and
// journal digest.
type Requirements struct {
	ImageID         common.Hash
	PredicateDigest common.Hash
}

// Offer is the price curve for a market proof request: a per-megacycle
// price ramp, ramp-up period, and timeout.
type Offer struct {
	MinPricePerMCycle *big.Int
	MaxPricePerMCycle *big.Int
	RampUpPeriod      uint64
	Timeout           uint64
}

// ProofRequest is a single market proof request.
type ProofRequest struct {
	ID           *big.Int
	ImageURL     string
	InputURL     string
	Requirements Requirements
	Offer        Offer
}

// SubmittedRequest is a previously-submitted request as read back from the
// market, used for the nonce-lookback dedup search.
type SubmittedRequest struct {
	Requirements Requirements
	ExpiresAt    uint64
}

// MarketClient abstracts the decentralized proving market's storage
// upload, request submission, and fulfillment-wait calls.
type MarketClient interface {
	UploadImage(ctx context.Context, image []byte) (imageURL string, err error)
	UploadInput(ctx context.Context, input []byte) (inputURL string, err error)
	// ImageInfo returns the set-verifier's expected image id, consulted for
	// the dev-mode fake-seal short-circuit.
	ImageInfo(ctx context.Context) (imageID common.Hash, err error)
	WalletAddress() common.Address
	TransactionCount(ctx context.Context, addr common.Address) (uint64, error)
	RequestIDFromNonce(ctx context.Context) (*big.Int, error)
	GetSubmittedRequest(ctx context.Context, requestID *big.Int) (*SubmittedRequest, error)
	SubmitRequest(ctx context.Context, req ProofRequest) (requestID *big.Int, expiresAt uint64, err error)
	WaitForFulfillment(ctx context.Context, requestID *big.Int, pollInterval time.Duration, expiresAt uint64) (journal, seal []byte, err error)
}

// PreflightEstimator runs a guest program natively to count execution
// cycles, used to price a market offer before submitting it.
type PreflightEstimator interface {
	EstimateCycles(ctx context.Context, image []byte, env ExecutorEnv) (megaCycles uint64, err error)
}

// Market is the decentralized proving market backend adapter.
type Market struct {
	Client       MarketClient
	Estimator    PreflightEstimator
	Image        []byte
	ImageID      common.Hash
	DevMode      bool
	Lookback     uint64
	PollInterval time.Duration

	// JournalDigest is the expected public journal's digest this request
	// must resolve to, set per-task by the dispatcher before Prove is
	// called (the journal is already known before any backend is invoked).
	JournalDigest common.Hash
}

// WithJournal returns a shallow copy of m bound to digest, for the
// dispatcher to scope one Market value per proving task without mutating a
// shared adapter instance.
func (m Market) WithJournal(digest common.Hash) *Market {
	m.JournalDigest = digest
	return &m
}

func (m *Market) pollInterval() time.Duration {
	if m.PollInterval > 0 {
		return m.PollInterval
	}
	return 5 * time.Second
}

// Prove posts (or finds an in-flight match for) a market proof request and
// awaits its fulfillment.
func (m *Market) Prove(ctx context.Context, witnessFrames [][]byte, stitchedProofs []proof.Proof, proveSnark bool) (proof.Proof, error) {
	if m.DevMode {
		return m.fakeSeal(ctx)
	}

	requirements := Requirements{ImageID: m.ImageID, PredicateDigest: m.JournalDigest}

	wallet := m.Client.WalletAddress()
	nonce, err := m.Client.TransactionCount(ctx, wallet)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "get wallet transaction count", err)
	}

	if seal, ok, err := m.findInFlightMatch(ctx, nonce, requirements); err != nil {
		return proof.Proof{}, err
	} else if ok {
		return proof.Proof{Kind: proof.KindMarketSeal, Seal: seal}, nil
	}

	input := encodeFrames(witnessFrames)
	for _, p := range stitchedProofs {
		input = append(input, encodeFrames([][]byte{p.Encode()})...)
	}

	megaCycles, err := m.Estimator.EstimateCycles(ctx, m.Image, ExecutorEnv{Frames: [][]byte{input}})
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.ExecutionError, "preflight cycle estimate", err)
	}

	imageURL, err := m.Client.UploadImage(ctx, m.Image)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "upload image to storage provider", err)
	}
	inputURL, err := m.Client.UploadInput(ctx, input)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "upload input to storage provider", err)
	}

	requestID, err := m.Client.RequestIDFromNonce(ctx)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "derive request id from nonce", err)
	}

	req := ProofRequest{
		ID:           requestID,
		ImageURL:     imageURL,
		InputURL:     inputURL,
		Requirements: requirements,
		Offer: Offer{
			MinPricePerMCycle: weiPerMCycle(megaCycles, minPriceWei),
			MaxPricePerMCycle: weiPerMCycle(megaCycles, maxPriceWei),
			RampUpPeriod:      10,
			Timeout:           1500,
		},
	}

	submittedID, expiresAt, err := m.Client.SubmitRequest(ctx, req)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "submit market request", err)
	}
	_, seal, err := m.Client.WaitForFulfillment(ctx, submittedID, m.pollInterval(), expiresAt)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "await market fulfillment", err)
	}
	return proof.Proof{Kind: proof.KindMarketSeal, Seal: seal}, nil
}

// findInFlightMatch walks back the last Lookback wallet nonces looking for
// an already-submitted request with identical Requirements, avoiding a
// duplicate on-chain request.
func (m *Market) findInFlightMatch(ctx context.Context, walletNonce uint64, requirements Requirements) ([]byte, bool, error) {
	for i := uint64(0); i < m.Lookback; i++ {
		if i >= walletNonce {
			break
		}
		nonce := walletNonce - (i + 1)
		requestID, err := m.requestIDForNonce(nonce)
		if err != nil {
			continue
		}
		submitted, err := m.Client.GetSubmittedRequest(ctx, requestID)
		if err != nil {
			continue // no request at that nonce
		}
		if submitted.Requirements != requirements {
			continue
		}
		_, seal, err := m.Client.WaitForFulfillment(ctx, requestID, m.pollInterval(), submitted.ExpiresAt)
		if err != nil {
			return nil, false, kerrors.Wrap(kerrors.RpcUnavailable, "await in-flight market request", err)
		}
		return seal, true, nil
	}
	return nil, false, nil
}

func (m *Market) requestIDForNonce(nonce uint64) (*big.Int, error) {
	addr := m.Client.WalletAddress()
	id := new(big.Int).Lsh(new(big.Int).SetBytes(addr.Bytes()), 32)
	return id.Or(id, new(big.Int).SetUint64(nonce)), nil
}

// fakeSeal returns an empty SetVerifier seal against the set-verifier's
// reported image info, a dev-mode short-circuit used in integration
// testing.
func (m *Market) fakeSeal(ctx context.Context) (proof.Proof, error) {
	imageID, err := m.Client.ImageInfo(ctx)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "fetch set-verifier image info", err)
	}
	selector := setVerifierSelector(imageID)
	seal := append([]byte(nil), selector[:]...)
	return proof.Proof{Kind: proof.KindMarketSeal, Seal: seal}, nil
}

var (
	minPriceWei = big.NewInt(1_000_000_000_000_000) // 0.001 ether
	maxPriceWei = big.NewInt(2_000_000_000_000_000) // 0.002 ether
)

func weiPerMCycle(megaCycles uint64, priceWei *big.Int) *big.Int {
	if megaCycles == 0 {
		megaCycles = 1
	}
	return new(big.Int).Div(priceWei, new(big.Int).SetUint64(megaCycles))
}

func setVerifierSelector(imageID common.Hash) [4]byte {
	var out [4]byte
	copy(out[:], keccak256(append([]byte("risc0.SetInclusionReceiptVerifierParameters"), imageID.Bytes()...))[:4])
	return out
}
