// Package proof implements a tagged Proof variant: a zkVM receipt (STARK
// or Groth16) or an ABI-encoded seal from the decentralized proving
// market.
package proof

import (
	"encoding/binary"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// Kind tags which Proof variant a value carries. A Groth16 receipt is
// given its own tag rather than reusing the STARK tag (see DESIGN.md),
// since the two have different calldata shapes on the verifying contract.
type Kind uint8

const (
	// KindZKVMStark is a native zkVM STARK receipt.
	KindZKVMStark Kind = iota + 1
	// KindZKVMGroth16 is a zkVM receipt wrapped into a Groth16 SNARK.
	KindZKVMGroth16
	// KindMarketSeal is an ABI-encoded seal returned by a decentralized proving market.
	KindMarketSeal
)

// Proof is a tagged proof value. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Proof struct {
	Kind Kind

	// Receipt carries the zkVM receipt bytes for KindZKVMStark/KindZKVMGroth16.
	Receipt []byte

	// Journal is the public journal bytes the receipt attests to.
	Journal []byte

	// Seal carries the ABI-encoded market seal for KindMarketSeal.
	Seal []byte
}

// Encode serializes p as tag(1) || len(journal)(4) || journal || len(payload)(4) || payload,
// where payload is Receipt for the zkVM kinds and Seal for the market
// kind. This is an explicit length-prefixed binary framing rather than a
// general-purpose encoding, since the receipt/seal payloads are opaque
// bytes produced by an external prover, not structured Go values.
func (p Proof) Encode() []byte {
	payload := p.Receipt
	if p.Kind == KindMarketSeal {
		payload = p.Seal
	}

	buf := make([]byte, 0, 1+4+len(p.Journal)+4+len(payload))
	buf = append(buf, byte(p.Kind))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Journal)))
	buf = append(buf, p.Journal...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf
}

// Decode parses the framing produced by Encode.
func Decode(data []byte) (Proof, error) {
	if len(data) < 1+4 {
		return Proof{}, kerrors.New(kerrors.Rlp, "proof encoding too short")
	}
	kind := Kind(data[0])
	off := 1

	journalLen := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	if off+int(journalLen) > len(data) {
		return Proof{}, kerrors.New(kerrors.Rlp, "proof journal length out of range")
	}
	journal := data[off : off+int(journalLen)]
	off += int(journalLen)

	if off+4 > len(data) {
		return Proof{}, kerrors.New(kerrors.Rlp, "proof encoding truncated before payload length")
	}
	payloadLen := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	if off+int(payloadLen) > len(data) {
		return Proof{}, kerrors.New(kerrors.Rlp, "proof payload length out of range")
	}
	payload := data[off : off+int(payloadLen)]

	p := Proof{Kind: kind, Journal: append([]byte(nil), journal...)}
	switch kind {
	case KindZKVMStark, KindZKVMGroth16:
		p.Receipt = append([]byte(nil), payload...)
	case KindMarketSeal:
		p.Seal = append([]byte(nil), payload...)
	default:
		return Proof{}, kerrors.New(kerrors.OtherError, "unknown proof kind")
	}
	return p, nil
}
