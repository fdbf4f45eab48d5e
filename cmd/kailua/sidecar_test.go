package main

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/blobmath"
)

type fakeOutputReader struct {
	roots map[uint64]common.Hash
}

func (f fakeOutputReader) OutputAtBlock(_ context.Context, blockNumber uint64) (common.Hash, error) {
	return f.roots[blockNumber], nil
}

func TestBuildOutputFieldElementsNonFaulty(t *testing.T) {
	l2 := fakeOutputReader{roots: map[uint64]common.Hash{
		2: common.HexToHash("0x02"),
		4: common.HexToHash("0x04"),
		6: common.HexToHash("0x06"),
	}}

	elements, err := buildOutputFieldElements(context.Background(), l2, 0, 2, 4, 0, common.Hash{}, false)
	if err != nil {
		t.Fatalf("buildOutputFieldElements: %v", err)
	}
	if len(elements) != 3 {
		t.Fatalf("len(elements) = %d, want 3", len(elements))
	}
	for i, blockNumber := range []uint64{2, 4, 6} {
		want := blobmath.HashToFE(l2.roots[blockNumber])
		if elements[i].Cmp(want) != 0 {
			t.Errorf("elements[%d] = %s, want %s", i, elements[i], want)
		}
	}
}

func TestBuildOutputFieldElementsFaultInjected(t *testing.T) {
	l2 := fakeOutputReader{roots: map[uint64]common.Hash{
		2: common.HexToHash("0x02"),
		4: common.HexToHash("0x04"),
		6: common.HexToHash("0x06"),
	}}
	faultyBlockNumber := uint64(4)
	faultyRoot := common.HexToHash("0xbad")

	elements, err := buildOutputFieldElements(context.Background(), l2, 0, 2, 4, faultyBlockNumber, faultyRoot, true)
	if err != nil {
		t.Fatalf("buildOutputFieldElements: %v", err)
	}

	// Position 0 (block 2) precedes the fault: fetched normally.
	if want := blobmath.HashToFE(l2.roots[2]); elements[0].Cmp(want) != 0 {
		t.Errorf("elements[0] = %s, want %s", elements[0], want)
	}
	// Position 1 (block 4) is the fault point: substituted.
	if want := blobmath.HashToFE(faultyRoot); elements[1].Cmp(want) != 0 {
		t.Errorf("elements[1] = %s, want %s", elements[1], want)
	}
	// Position 2 (block 6) is beyond the fault point: zero-filled.
	if want := blobmath.HashToFE(common.Hash{}); elements[2].Cmp(want) != 0 {
		t.Errorf("elements[2] = %s, want %s", elements[2], want)
	}
}

func TestBuildOutputFieldElementsRejectsZeroCount(t *testing.T) {
	_, err := buildOutputFieldElements(context.Background(), fakeOutputReader{}, 0, 2, 0, 0, common.Hash{}, false)
	if err == nil {
		t.Fatal("expected an error for proposal_output_count == 0")
	}
}

func TestPackFieldElementsIntoBlobsSingleBlob(t *testing.T) {
	elements := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	blobs := packFieldElementsIntoBlobs(elements)
	if len(blobs) != 1 {
		t.Fatalf("len(blobs) = %d, want 1", len(blobs))
	}
	for i, fe := range elements {
		want := blobmath.FieldElementBytes(fe)
		if blobs[0][i] != want {
			t.Errorf("blobs[0][%d] = %x, want %x", i, blobs[0][i], want)
		}
	}
}

func TestPackFieldElementsIntoBlobsSpillsToSecondBlob(t *testing.T) {
	slotsPerBlob := blobmath.FieldElementsPerBlob - 1
	elements := make([]*big.Int, slotsPerBlob+1)
	for i := range elements {
		elements[i] = big.NewInt(int64(i))
	}

	blobs := packFieldElementsIntoBlobs(elements)
	if len(blobs) != 2 {
		t.Fatalf("len(blobs) = %d, want 2", len(blobs))
	}
	if want := blobmath.FieldElementBytes(elements[slotsPerBlob-1]); blobs[0][slotsPerBlob-1] != want {
		t.Errorf("blobs[0][last] = %x, want %x", blobs[0][slotsPerBlob-1], want)
	}
	if want := blobmath.FieldElementBytes(elements[slotsPerBlob]); blobs[1][0] != want {
		t.Errorf("blobs[1][0] = %x, want %x", blobs[1][0], want)
	}
}

func TestPackFieldElementsIntoBlobsEmpty(t *testing.T) {
	if blobs := packFieldElementsIntoBlobs(nil); blobs != nil {
		t.Fatalf("expected nil blobs for no elements, got %d", len(blobs))
	}
}

func TestRawBlobBytesLength(t *testing.T) {
	b := &blobmath.Blob{}
	raw := rawBlobBytes(b)
	want := blobmath.FieldElementsPerBlob * blobmath.BytesPerFieldElement
	if len(raw) != want {
		t.Fatalf("len(rawBlobBytes) = %d, want %d", len(raw), want)
	}
}
