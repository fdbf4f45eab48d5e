package journal

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func sampleJournal() ProofJournal {
	return ProofJournal{
		PayoutRecipient:      common.HexToAddress("0x1111"),
		PreconditionHash:     common.HexToHash("0x2222"),
		L1Head:               common.HexToHash("0x3333"),
		AgreedL2OutputRoot:   common.HexToHash("0x4444"),
		ClaimedL2OutputRoot:  common.HexToHash("0x5555"),
		ClaimedL2BlockNumber: 12345,
		ConfigHash:           common.HexToHash("0x6666"),
		FPVMImageID:          common.HexToHash("0x7777"),
	}
}

// TestJournalDeterminism is invariant 3: two runs with identical inputs
// produce byte-identical journals and hence identical proof filenames.
func TestJournalDeterminism(t *testing.T) {
	j1 := sampleJournal()
	j2 := sampleJournal()

	p1, p2 := j1.Pack(), j2.Pack()
	if string(p1) != string(p2) {
		t.Fatal("Pack() must be deterministic for identical inputs")
	}
	if j1.Filename() != j2.Filename() {
		t.Fatal("Filename() must be deterministic for identical inputs")
	}
}

func TestJournalFilenameFormat(t *testing.T) {
	j := sampleJournal()
	name := j.Filename()
	if !strings.HasSuffix(name, ".prf") {
		t.Fatalf("expected .prf extension, got %q", name)
	}
	// 32-byte keccak256 hex-encoded = 64 chars, plus ".prf".
	if len(name) != 64+4 {
		t.Fatalf("expected filename length 68, got %d (%q)", len(name), name)
	}
}

func TestJournalDiffersOnFieldChange(t *testing.T) {
	j1 := sampleJournal()
	j2 := sampleJournal()
	j2.ClaimedL2BlockNumber++

	if j1.Filename() == j2.Filename() {
		t.Fatal("expected different filenames for different journals")
	}
}
