package proposal

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/blobmath"
)

func TestExtraDataPackS3(t *testing.T) {
	e := ExtraData{TerminalBlockNumber: 0x100, ParentIndex: 0x02, DuplicationCounter: 0x00}
	got := e.Pack()
	want := [24]byte{
		0, 0, 0, 0, 0, 0, 1, 0,
		0, 0, 0, 0, 0, 0, 0, 2,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	if got != want {
		t.Fatalf("Pack() = %x, want %x", got, want)
	}
}

func TestNormalizeFaultBlockNumberS4(t *testing.T) {
	const parentBlock = 1000
	const outputBlockSpan = 4
	const proposalOutputCount = 1024
	const faultOffset = 1024 // terminal

	faulty := parentBlock + faultOffset*outputBlockSpan
	if faulty != 5096 {
		t.Fatalf("test setup: faulty = %d, want 5096", faulty)
	}

	kind := TerminalFault
	got := NormalizeFaultBlockNumber(uint64(faulty), outputBlockSpan, kind)
	if got != 5092 {
		t.Fatalf("NormalizeFaultBlockNumber = %d, want 5092", got)
	}
	_ = proposalOutputCount
}

func TestFindUniqueDuplicationCounterS5(t *testing.T) {
	calls := 0
	lookup := func(claim common.Hash, extraData [24]byte) (common.Address, error) {
		calls++
		var e ExtraData
		e.DuplicationCounter = uint64(extraData[16])<<56 | uint64(extraData[17])<<48 | uint64(extraData[18])<<40 |
			uint64(extraData[19])<<32 | uint64(extraData[20])<<24 | uint64(extraData[21])<<16 | uint64(extraData[22])<<8 | uint64(extraData[23])
		if e.DuplicationCounter == 0 || e.DuplicationCounter == 1 {
			return common.HexToAddress("0x01"), nil
		}
		return common.Address{}, nil
	}

	counter, err := FindUniqueDuplicationCounter(lookup, 0x100, 0x02, common.HexToHash("0xabc"))
	if err != nil {
		t.Fatalf("FindUniqueDuplicationCounter: %v", err)
	}
	if counter != 2 {
		t.Fatalf("counter = %d, want 2", counter)
	}
	if calls != 3 {
		t.Fatalf("expected 3 lookup calls (d=0,1,2), got %d", calls)
	}
}

func TestFindDivergenceMonotonicity(t *testing.T) {
	trace := &OutputTrace{Outputs: []common.Hash{
		common.HexToHash("0x1"),
		common.HexToHash("0x2"),
		common.HexToHash("0x3"),
	}}
	canonical := []common.Hash{
		common.HexToHash("0x1"),
		common.HexToHash("0xdead"), // diverges at index 1
		common.HexToHash("0x3"),
	}

	div := FindDivergence(trace, canonical, 3)
	if div == nil {
		t.Fatal("expected a divergence")
	}
	if div.Point != 1 {
		t.Fatalf("divergence point = %d, want 1", div.Point)
	}
	if div.Kind != OutputFault {
		t.Fatalf("expected OutputFault, got %v", div.Kind)
	}

	// Refining canonical with a second divergence earlier on must not move
	// the detected point to something greater than 1.
	canonical2 := []common.Hash{
		common.HexToHash("0xfeed"), // also diverges at index 0 now
		common.HexToHash("0xdead"),
		common.HexToHash("0x3"),
	}
	div2 := FindDivergence(trace, canonical2, 3)
	if div2.Point > div.Point {
		t.Fatalf("divergence point increased after adding more observations: %d > %d", div2.Point, div.Point)
	}
}

func TestFindDivergenceTerminalFault(t *testing.T) {
	trace := &OutputTrace{Outputs: []common.Hash{
		common.HexToHash("0x1"),
		common.HexToHash("0x2"),
	}}
	canonical := []common.Hash{
		common.HexToHash("0x1"),
		common.HexToHash("0xbad"),
	}
	div := FindDivergence(trace, canonical, 2)
	if div == nil || div.Kind != TerminalFault {
		t.Fatalf("expected TerminalFault at the last index, got %+v", div)
	}
}

func TestReconstructOutputTraceTerminalFromClaim(t *testing.T) {
	var blob blobmath.Blob
	blob[0] = blobmath.FieldElementBytes(big.NewInt(7))

	p := &Proposal{
		ClaimedOutputRoot: common.HexToHash("0xterminal"),
		Blobs:             []*blobmath.Blob{&blob},
	}

	trace, err := ReconstructOutputTrace(p, 1000, 4, 3)
	if err != nil {
		t.Fatalf("ReconstructOutputTrace: %v", err)
	}
	if trace.Outputs[len(trace.Outputs)-1] != p.ClaimedOutputRoot {
		t.Fatal("terminal output must equal the proposal's claimed root")
	}
}
