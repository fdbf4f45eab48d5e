// Package blobmath implements the bit-reversed KZG evaluation layer over
// BLS12-381 that the proposal model uses to pack and open L2 output roots
// inside EIP-4844 blobs.
package blobmath

import (
	"crypto/sha256"
	"math/big"

	fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	goethkzg "github.com/crate-crypto/go-eth-kzg"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// FieldElementsPerBlob is the number of scalar field elements carried by
// one EIP-4844 blob.
const FieldElementsPerBlob = 4096

// logFieldElementsPerBlob is log2(FieldElementsPerBlob), the bit width bitrev operates over.
const logFieldElementsPerBlob = 12

// BytesPerFieldElement is the canonical big-endian encoding width of a
// BLS12-381 scalar field element.
const BytesPerFieldElement = 32

// blsModulus is the BLS12-381 scalar field modulus, p.
var blsModulus, _ = new(big.Int).SetString(
	"52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)

// Omega is the primitive FieldElementsPerBlob-th root of unity in the
// BLS12-381 scalar field, derived from the fixed primitive root 7:
// ω = 7^((p-1)/FieldElementsPerBlob) mod p.
//
// Computed once at package init via gnark-crypto's fr.Element modular
// exponentiation rather than hardcoded, so the derivation itself is
// exercised and checked against the expected literal value in the tests.
var Omega = computeOmega()

func computeOmega() *big.Int {
	exp := new(big.Int).Sub(blsModulus, big.NewInt(1))
	exp.Div(exp, big.NewInt(FieldElementsPerBlob))

	var base, result fr.Element
	base.SetUint64(7)
	result.Exp(base, exp)

	var out big.Int
	result.BigInt(&out)
	return &out
}

// Bitrev reverses the low k bits of i. It is an involution: Bitrev(Bitrev(i, k), k) == i.
func Bitrev(i uint32, k uint) uint32 {
	var rev uint32
	for b := uint(0); b < k; b++ {
		rev <<= 1
		rev |= (i >> b) & 1
	}
	return rev
}

// EvaluationPoint returns ω^{bitrev(i, log2(FieldElementsPerBlob))}, the
// evaluation point backing blob position i under the bit-reversed domain.
func EvaluationPoint(i uint32) *big.Int {
	r := Bitrev(i, logFieldElementsPerBlob)
	return new(big.Int).Exp(Omega, big.NewInt(int64(r)), blsModulus)
}

// HashToFE reduces a 32-byte output root into a canonical BLS12-381 scalar
// field element. The reduction is a plain big-endian interpretation modulo
// p; values already below p are unchanged, and every result is a canonical
// field element below p. Inputs at or above p wrap around, so distinct
// roots can map to the same field element.
func HashToFE(root common.Hash) *big.Int {
	v := new(big.Int).SetBytes(root.Bytes())
	return v.Mod(v, blsModulus)
}

// FieldElementBytes canonically encodes a field element as 32 big-endian
// bytes, left-padded with zeros.
func FieldElementBytes(fe *big.Int) [BytesPerFieldElement]byte {
	var out [BytesPerFieldElement]byte
	b := fe.Bytes()
	copy(out[BytesPerFieldElement-len(b):], b)
	return out
}

// Blob is one EIP-4844 blob's worth of field elements, in natural
// (non-bit-reversed) position order.
type Blob [FieldElementsPerBlob][BytesPerFieldElement]byte

// Opening is a KZG opening at one evaluation point: the claimed value and
// the accompanying proof.
type Opening struct {
	Value [BytesPerFieldElement]byte
	Proof [48]byte
}

// Opener produces and self-verifies KZG openings against a trusted setup.
// The concrete implementation wraps go-eth-kzg's Context, which embeds the
// real Ethereum ceremony SRS; this package consumes that trusted setup
// rather than implementing one.
type Opener struct {
	ctx *goethkzg.Context
}

// NewOpener constructs an Opener backed by the real Ethereum KZG ceremony
// trusted setup embedded in go-eth-kzg.
func NewOpener() (*Opener, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ProofConstruction, "initialize kzg context", err)
	}
	return &Opener{ctx: ctx}, nil
}

// Commit computes the KZG commitment for a blob.
func (o *Opener) Commit(blob *Blob) ([48]byte, error) {
	var gb goethkzg.Blob
	flattenBlob(blob, &gb)

	comm, err := o.ctx.BlobToKZGCommitment(&gb, 0)
	if err != nil {
		return [48]byte{}, kerrors.Wrap(kerrors.ProofConstruction, "blob to commitment", err)
	}
	return [48]byte(comm), nil
}

// Open produces the KZG opening of blob at position i, under the
// bit-reversed evaluation point ω^{bitrev(i)}. The implementation self-
// verifies before returning, failing with kerrors.ProofConstruction if the
// opening does not verify against the blob's own commitment.
func (o *Opener) Open(blob *Blob, commitment [48]byte, i uint32) (Opening, error) {
	if i >= FieldElementsPerBlob {
		return Opening{}, kerrors.New(kerrors.ProofConstruction, "position out of range")
	}

	var gb goethkzg.Blob
	flattenBlob(blob, &gb)

	comm := goethkzg.KZGCommitment(commitment)

	z := EvaluationPoint(i)
	zBytes := FieldElementBytes(z)

	proof, value, err := o.ctx.ComputeKZGProof(&gb, zBytes, 0)
	if err != nil {
		return Opening{}, kerrors.Wrap(kerrors.ProofConstruction, "compute kzg proof", err)
	}

	if err := o.ctx.VerifyKZGProof(comm, zBytes, value, proof); err != nil {
		return Opening{}, kerrors.Wrap(kerrors.ProofConstruction, "opening failed self-verification", err)
	}

	return Opening{Value: value, Proof: [48]byte(proof)}, nil
}

// Sidecar is the (blobs, commitments, proofs) triple submitted alongside a
// proposal transaction.
type Sidecar struct {
	Blobs       []*Blob
	Commitments [][48]byte
	Proofs      [][48]byte
}

// BuildSidecar computes commitment_j = blob_to_kzg_commitment(blob_j) and
// proof_j = compute_blob_kzg_proof(blob_j, commitment_j) for each of the
// given blobs.
func (o *Opener) BuildSidecar(blobs []*Blob) (*Sidecar, error) {
	sc := &Sidecar{
		Blobs:       blobs,
		Commitments: make([][48]byte, len(blobs)),
		Proofs:      make([][48]byte, len(blobs)),
	}

	for j, b := range blobs {
		comm, err := o.Commit(b)
		if err != nil {
			return nil, err
		}

		var gb goethkzg.Blob
		flattenBlob(b, &gb)
		gcomm := goethkzg.KZGCommitment(comm)

		proof, err := o.ctx.ComputeBlobKZGProof(&gb, gcomm, 0)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.ProofConstruction, "compute blob kzg proof", err)
		}
		if err := o.ctx.VerifyBlobKZGProof(&gb, gcomm, proof); err != nil {
			return nil, kerrors.Wrap(kerrors.ProofConstruction, "blob proof failed self-verification", err)
		}

		sc.Commitments[j] = comm
		sc.Proofs[j] = [48]byte(proof)
	}
	return sc, nil
}

// VersionedHash computes the EIP-4844 versioned hash of a KZG commitment:
// 0x01 || sha256(commitment)[1:].
func VersionedHash(commitment [48]byte) common.Hash {
	h := sha256Sum(commitment[:])
	h[0] = 0x01
	return h
}

func sha256Sum(b []byte) common.Hash {
	// sha256 rather than keccak: EIP-4844 defines the versioned hash over
	// SHA-256, not Keccak256.
	s := sha256.Sum256(b)
	return common.Hash(s)
}

func flattenBlob(b *Blob, out *goethkzg.Blob) {
	for i, fe := range b {
		copy(out[i*BytesPerFieldElement:(i+1)*BytesPerFieldElement], fe[:])
	}
}

// Keccak256 is the coordinator's general-purpose hash, distinct from
// EIP-4844's sha256 versioned hash above.
func Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}
