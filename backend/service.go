package backend

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/proof"
)

// SessionStatus is a remote proving service's reported session state.
type SessionStatus struct {
	Status     string // "RUNNING", "SUCCEEDED", or a terminal failure string
	ReceiptURL string
	ErrorMsg   string
}

// SessionClient abstracts the REST calls a remote proving service exposes:
// image/input upload, session creation, status polling, receipt download,
// and an optional second SNARK-wrapping session.
type SessionClient interface {
	UploadImage(ctx context.Context, imageIDHex string, image []byte) error
	UploadInput(ctx context.Context, input []byte) (inputID string, err error)
	UploadReceipt(ctx context.Context, receipt []byte) (receiptID string, err error)
	CreateSession(ctx context.Context, imageIDHex, inputID string, assumptionReceiptIDs []string) (sessionID string, err error)
	SessionStatus(ctx context.Context, sessionID string) (SessionStatus, error)
	CreateSnarkSession(ctx context.Context, sessionID string) (snarkSessionID string, err error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Service is the remote proving service backend adapter.
type Service struct {
	Client         SessionClient
	Verifier       ReceiptVerifier
	ImageIDHex     string
	Image          []byte
	ImageID        common.Hash
	PollInterval   time.Duration
	ForceRecursion bool
}

func (s *Service) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return time.Second
}

// Prove uploads the program image and assembled input, creates a proving
// session, polls until it resolves, and optionally chains a second session
// to wrap the STARK as a Groth16 SNARK.
func (s *Service) Prove(ctx context.Context, witnessFrames [][]byte, stitchedProofs []proof.Proof, proveSnark bool) (proof.Proof, error) {
	input := encodeFrames(witnessFrames)

	var assumptionIDs []string
	for _, p := range stitchedProofs {
		isZKVMReceipt := p.Kind == proof.KindZKVMStark || p.Kind == proof.KindZKVMGroth16
		if isZKVMReceipt && !s.ForceRecursion {
			id, err := s.Client.UploadReceipt(ctx, p.Receipt)
			if err != nil {
				return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "upload assumption receipt", err)
			}
			assumptionIDs = append(assumptionIDs, id)
			continue
		}
		input = append(input, encodeFrames([][]byte{p.Encode()})...)
	}

	if err := s.Client.UploadImage(ctx, s.ImageIDHex, s.Image); err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "upload image", err)
	}
	inputID, err := s.Client.UploadInput(ctx, input)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "upload input", err)
	}
	sessionID, err := s.Client.CreateSession(ctx, s.ImageIDHex, inputID, assumptionIDs)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "create session", err)
	}

	receiptURL, err := s.awaitSession(ctx, sessionID)
	if err != nil {
		return proof.Proof{}, err
	}
	receiptBytes, err := s.Client.Download(ctx, receiptURL)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "download receipt", err)
	}
	if err := s.Verifier.Verify(Receipt{Bytes: receiptBytes}, s.ImageID); err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.ProofConstruction, "verify receipt from remote service", err)
	}

	if !proveSnark {
		return proof.Proof{Kind: proof.KindZKVMStark, Receipt: receiptBytes}, nil
	}

	snarkSessionID, err := s.Client.CreateSnarkSession(ctx, sessionID)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "create snark session", err)
	}
	snarkReceiptURL, err := s.awaitSession(ctx, snarkSessionID)
	if err != nil {
		return proof.Proof{}, err
	}
	groth16Bytes, err := s.Client.Download(ctx, snarkReceiptURL)
	if err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.RpcUnavailable, "download groth16 receipt", err)
	}
	if err := s.Verifier.Verify(Receipt{Bytes: groth16Bytes}, s.ImageID); err != nil {
		return proof.Proof{}, kerrors.Wrap(kerrors.ProofConstruction, "verify groth16 receipt from remote service", err)
	}
	return proof.Proof{Kind: proof.KindZKVMGroth16, Receipt: groth16Bytes}, nil
}

func (s *Service) awaitSession(ctx context.Context, sessionID string) (string, error) {
	for {
		status, err := s.Client.SessionStatus(ctx, sessionID)
		if err != nil {
			return "", kerrors.Wrap(kerrors.RpcUnavailable, "poll session status", err)
		}
		switch status.Status {
		case "SUCCEEDED":
			if status.ReceiptURL == "" {
				return "", kerrors.New(kerrors.OtherError, "session succeeded with no receipt url")
			}
			return status.ReceiptURL, nil
		case "RUNNING":
			select {
			case <-ctx.Done():
				return "", kerrors.Wrap(kerrors.RpcUnavailable, "wait for session", ctx.Err())
			case <-time.After(s.pollInterval()):
			}
		default:
			return "", kerrors.New(kerrors.ExecutionError, "session "+sessionID+" exited: "+status.Status+" "+status.ErrorMsg)
		}
	}
}

func encodeFrames(frames [][]byte) []byte {
	var out []byte
	for _, f := range frames {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(f)))
		out = append(out, lenBuf[:]...)
		out = append(out, f...)
	}
	return out
}
