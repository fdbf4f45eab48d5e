package witness

import (
	"github.com/ethereum/go-ethereum/common"
)

// StitchedBootInfo describes one transition already proven, consumed by
// the guest when composing multiple proofs into a single contiguous
// transition.
type StitchedBootInfo struct {
	L1Head                common.Hash
	AgreedL2OutputRoot     common.Hash
	ClaimedL2OutputRoot    common.Hash
	ClaimedL2BlockNumber   uint64
}

// BlobWitnessData holds the preloaded blob bundle (raw blobs, their KZG
// commitments, and the field-element proofs already computed for them)
// that backs the proposal's output-trace openings inside the guest,
// without the guest needing L1 network access.
type BlobWitnessData struct {
	Blobs       [][]byte
	Commitments [][48]byte
	Proofs      [][48]byte
}

// Witness is the complete input handed to the verifier guest: an oracle
// witness (this package's Store), a blob witness, the payout recipient,
// the precondition validation data hash, any stitched boot infos, and the
// FPVM image id.
type Witness struct {
	OracleWitness                  *Store
	BlobsWitness                   BlobWitnessData
	PayoutRecipientAddress         common.Address
	PreconditionValidationDataHash common.Hash
	StitchedBootInfo               []StitchedBootInfo
	FPVMImageID                    common.Hash
}

// PreimageCount reports the number of preimage entries in the oracle witness.
func (w *Witness) PreimageCount() int {
	if w.OracleWitness == nil {
		return 0
	}
	return w.OracleWitness.Len()
}

// ValidatePreimages validates the oracle witness: every preimage in the
// oracle witness must hash to its claimed key; this is the guest-side
// precondition for trusting anything the oracle serves afterward.
func (w *Witness) ValidatePreimages() error {
	if w.OracleWitness == nil {
		return nil
	}
	return w.OracleWitness.ValidatePreimages()
}
