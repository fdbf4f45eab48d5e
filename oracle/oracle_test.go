package oracle

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/kailua-zk/kailua-go/witness"
)

type fakeOracle struct {
	data map[witness.PreimageKey][]byte
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{data: make(map[witness.PreimageKey][]byte)}
}

func (f *fakeOracle) Get(ctx context.Context, key witness.PreimageKey) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, errKeyNotFound
	}
	return v, nil
}

type fakeHinter struct{ hints []string }

func (f *fakeHinter) Hint(ctx context.Context, hint string) error {
	f.hints = append(f.hints, hint)
	return nil
}

func encodeHeaderAndPutPreimage(o *fakeOracle, header *types.Header) common.Hash {
	data, err := rlp.EncodeToBytes(header)
	if err != nil {
		panic(err)
	}
	hash := header.Hash()
	o.data[witness.NewKeccak256Key(hash.Bytes())] = data
	return hash
}

func TestHeaderByHashCacheMissThenHit(t *testing.T) {
	o := newFakeOracle()
	h := &types.Header{Number: big.NewInt(100), Difficulty: big.NewInt(0)}
	hash := encodeHeaderAndPutPreimage(o, h)

	hinter := &fakeHinter{}
	c := &ChainProvider{oracle: o, hinter: hinter, headers: map[common.Hash]*types.Header{}, headersByNum: map[uint64]*types.Header{}}

	got, err := c.HeaderByHash(context.Background(), hash)
	if err != nil {
		t.Fatalf("HeaderByHash: %v", err)
	}
	if got.Number.Uint64() != 100 {
		t.Fatalf("got number %d, want 100", got.Number.Uint64())
	}
	if len(hinter.hints) != 1 {
		t.Fatalf("expected 1 hint on cache miss, got %d", len(hinter.hints))
	}

	// Second call should hit cache and not hint again.
	if _, err := c.HeaderByHash(context.Background(), hash); err != nil {
		t.Fatalf("HeaderByHash (cached): %v", err)
	}
	if len(hinter.hints) != 1 {
		t.Fatalf("expected still 1 hint after cache hit, got %d", len(hinter.hints))
	}
}

func TestBlockInfoByNumberWalksBackward(t *testing.T) {
	o := newFakeOracle()
	genesis := &types.Header{Number: big.NewInt(0), Difficulty: big.NewInt(0)}
	genesisHash := encodeHeaderAndPutPreimage(o, genesis)

	child := &types.Header{Number: big.NewInt(1), ParentHash: genesisHash, Difficulty: big.NewInt(0)}
	childHash := encodeHeaderAndPutPreimage(o, child)

	hinter := &fakeHinter{}
	c := &ChainProvider{
		oracle: o, hinter: hinter,
		headers:      map[common.Hash]*types.Header{childHash: child},
		headersByNum: map[uint64]*types.Header{1: child},
		head:         child,
	}

	got, err := c.BlockInfoByNumber(context.Background(), 0)
	if err != nil {
		t.Fatalf("BlockInfoByNumber(0): %v", err)
	}
	if got.Hash() != genesisHash {
		t.Fatalf("got hash %s, want genesis hash %s", got.Hash(), genesisHash)
	}
}

func TestBlockInfoByNumberPastHead(t *testing.T) {
	head := &types.Header{Number: big.NewInt(5), Difficulty: big.NewInt(0)}
	c := &ChainProvider{head: head, headersByNum: map[uint64]*types.Header{}}
	if _, err := c.BlockInfoByNumber(context.Background(), 6); err == nil {
		t.Fatal("expected BlockNotFound for a number past head")
	}
}

// encodeLeaf builds a single-leaf trie's root node bytes: [compact(path+terminator), value].
func encodeLeaf(indexKey []byte, value []byte) []byte {
	nibbles := hexToNibbles(indexKey)
	nibbles = append(nibbles, terminatorByte)
	compact := hexToCompactForTest(nibbles)
	encoded, err := rlp.EncodeToBytes([][]byte{compact, value})
	if err != nil {
		panic(err)
	}
	return encoded
}

// hexToCompactForTest mirrors the teacher's hexToCompact (trie/encoding.go)
// closely enough to build a test fixture; production decoding goes through
// compactToHex in trie.go, which this is the inverse of.
func hexToCompactForTest(hex []byte) []byte {
	terminator := byte(0)
	if len(hex) > 0 && hex[len(hex)-1] == terminatorByte {
		terminator = 1
		hex = hex[:len(hex)-1]
	}
	buf := make([]byte, len(hex)/2+1)
	buf[0] = terminator << 5
	if len(hex)&1 == 1 {
		buf[0] |= 1 << 4
		buf[0] |= hex[0]
		hex = hex[1:]
	}
	for i := 0; i < len(hex); i += 2 {
		buf[1+i/2] = hex[i]<<4 | hex[i+1]
	}
	return buf
}

func TestWalkOrderedListSingleEntry(t *testing.T) {
	indexKey, _ := rlp.EncodeToBytes(uint64(0))
	want := []byte("receipt-0-bytes")
	root := encodeLeaf(indexKey, want)

	got, err := walkOrderedList(root, indexKey, func(h []byte) ([]byte, error) {
		t.Fatal("single-leaf root should not need resolution")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("walkOrderedList: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWalkOrderedListMissingIndexStops(t *testing.T) {
	indexKey0, _ := rlp.EncodeToBytes(uint64(0))
	indexKey1, _ := rlp.EncodeToBytes(uint64(1))
	root := encodeLeaf(indexKey0, []byte("only entry"))

	if _, err := walkOrderedList(root, indexKey1, nil); err != errKeyNotFound {
		t.Fatalf("expected errKeyNotFound for a key not present, got %v", err)
	}
}
