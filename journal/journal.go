// Package journal implements the public proof journal and its
// deterministic filename derivation.
package journal

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ProofJournal is the public output of a single proof: everything the
// on-chain verifier needs to bind a submitted proof to the claim it
// resolves.
type ProofJournal struct {
	PayoutRecipient      common.Address
	PreconditionHash      common.Hash
	L1Head                common.Hash
	AgreedL2OutputRoot     common.Hash
	ClaimedL2OutputRoot    common.Hash
	ClaimedL2BlockNumber   uint64
	ConfigHash             common.Hash
	FPVMImageID            common.Hash
}

// Pack encodes the journal in a fixed field order: payout recipient,
// precondition hash, L1 head, agreed root, claimed root, claimed block
// number, config hash, image id. Two runs with identical inputs always
// produce byte-identical output; Pack contains no non-deterministic step
// (no map iteration, no randomness), so this holds by construction.
func (j ProofJournal) Pack() []byte {
	buf := make([]byte, 0, 20+32+32+32+32+8+32+32)
	buf = append(buf, j.PayoutRecipient.Bytes()...)
	buf = append(buf, j.PreconditionHash.Bytes()...)
	buf = append(buf, j.L1Head.Bytes()...)
	buf = append(buf, j.AgreedL2OutputRoot.Bytes()...)
	buf = append(buf, j.ClaimedL2OutputRoot.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, j.ClaimedL2BlockNumber)
	buf = append(buf, j.ConfigHash.Bytes()...)
	buf = append(buf, j.FPVMImageID.Bytes()...)
	return buf
}

// Filename returns the canonical proof cache filename: the hex-encoded
// Keccak256 of the packed journal, with a .prf extension.
func (j ProofJournal) Filename() string {
	h := sha3.NewLegacyKeccak256()
	h.Write(j.Pack())
	return common.Bytes2Hex(h.Sum(nil)) + ".prf"
}
