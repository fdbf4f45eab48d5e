package main

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kailua-zk/kailua-go/blobmath"
	"github.com/kailua-zk/kailua-go/kerrors"
)

// keySigner implements chain.Signer over a local ECDSA private key,
// submitting a DynamicFeeTx for blob-less proposals and a BlobTx carrying
// an EIP-4844 sidecar otherwise.
type keySigner struct {
	key     *ecdsa.PrivateKey
	from    common.Address
	eth     *ethclient.Client
	chainID *big.Int
	opener  *blobmath.Opener
}

func newKeySigner(eth *ethclient.Client, chainID *big.Int, opener *blobmath.Opener, keyHex string) (*keySigner, error) {
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.OtherError, "parse signing key", err)
	}
	return &keySigner{
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		eth:     eth,
		chainID: chainID,
		opener:  opener,
	}, nil
}

func (s *keySigner) Address() common.Address {
	return s.from
}

// SendTransaction implements chain.Signer. blobs holds the raw 131072-byte
// blob payloads packed by the proposal layer; nil means the claim fits
// entirely in extra-data and no sidecar is attached.
func (s *keySigner) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int, blobs [][]byte) (common.Hash, error) {
	nonce, err := s.eth.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.RpcUnavailable, "fetch nonce", err)
	}
	tipCap, err := s.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.RpcUnavailable, "suggest tip cap", err)
	}
	head, err := s.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.RpcUnavailable, "fetch latest header", err)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	var signedTx *types.Transaction
	if len(blobs) == 0 {
		signedTx, err = s.signDynamicFeeTx(ctx, nonce, to, data, value, tipCap, feeCap)
	} else {
		signedTx, err = s.signBlobTx(nonce, to, data, value, tipCap, feeCap, head.BaseFee, blobs)
	}
	if err != nil {
		return common.Hash{}, err
	}

	if err := s.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.RpcUnavailable, "broadcast transaction", err)
	}
	return signedTx.Hash(), nil
}

func (s *keySigner) signDynamicFeeTx(ctx context.Context, nonce uint64, to common.Address, data []byte, value, tipCap, feeCap *big.Int) (*types.Transaction, error) {
	gasLimit, err := s.eth.EstimateGas(ctx, gasEstimateMsg(s.from, to, data, value))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "estimate gas", err)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit + gasLimit/5,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}

// signBlobTx builds and signs a BlobTx, computing KZG commitments and
// proofs for the sidecar via the shared Opener rather than duplicating the
// ceremony context per transaction.
func (s *keySigner) signBlobTx(nonce uint64, to common.Address, data []byte, value, tipCap, feeCap, baseFee *big.Int, rawBlobs [][]byte) (*types.Transaction, error) {
	blobs := make([]*blobmath.Blob, len(rawBlobs))
	for i, raw := range rawBlobs {
		var b blobmath.Blob
		for fe := 0; fe < blobmath.FieldElementsPerBlob; fe++ {
			off := fe * blobmath.BytesPerFieldElement
			copy(b[fe][:], raw[off:off+blobmath.BytesPerFieldElement])
		}
		blobs[i] = &b
	}

	sidecar, err := s.opener.BuildSidecar(blobs)
	if err != nil {
		return nil, err
	}

	kzgBlobs := make([]kzg4844.Blob, len(blobs))
	commitments := make([]kzg4844.Commitment, len(blobs))
	proofs := make([]kzg4844.Proof, len(blobs))
	blobHashes := make([]common.Hash, len(blobs))
	for i, raw := range rawBlobs {
		copy(kzgBlobs[i][:], raw)
		commitments[i] = kzg4844.Commitment(sidecar.Commitments[i])
		proofs[i] = kzg4844.Proof(sidecar.Proofs[i])
		blobHashes[i] = blobmath.VersionedHash(sidecar.Commitments[i])
	}

	blobFeeCap := new(big.Int).Add(baseFee, big.NewInt(1))

	tx := types.NewTx(&types.BlobTx{
		ChainID:    uint256FromBig(s.chainID),
		Nonce:      nonce,
		GasTipCap:  uint256FromBig(tipCap),
		GasFeeCap:  uint256FromBig(feeCap),
		Gas:        500_000,
		To:         to,
		Value:      uint256FromBig(value),
		Data:       data,
		BlobFeeCap: uint256FromBig(blobFeeCap),
		BlobHashes: blobHashes,
		Sidecar: &types.BlobTxSidecar{
			Blobs:       kzgBlobs,
			Commitments: commitments,
			Proofs:      proofs,
		},
	})
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}
