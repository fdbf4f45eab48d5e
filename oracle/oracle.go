// Package oracle implements a hint-driven L1 chain view: header/receipt/
// transaction retrieval backed by a content-addressed preimage oracle,
// with a local header cache extended by walking parent hashes backward
// from a known head.
package oracle

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/kailua-zk/kailua-go/kerrors"
	"github.com/kailua-zk/kailua-go/witness"
)

// Hint types sent to the backing Hinter before a preimage fetch, so a
// hint-aware prefetcher can pull the right payload into the preimage
// store ahead of the oracle read that follows.
const (
	HintL1BlockHeader = "l1-block-header"
	HintL1Receipts    = "l1-receipts"
	HintL1Transactions = "l1-transactions"
)

// PreimageOracle serves preimages by key, suspending (blocking, from the
// caller's perspective) while the backing hint is serviced.
type PreimageOracle interface {
	Get(ctx context.Context, key witness.PreimageKey) ([]byte, error)
}

// Hinter signals which preimage the next oracle Get calls are about to
// request, so a prefetching implementation can resolve it out of band.
type Hinter interface {
	Hint(ctx context.Context, hint string) error
}

// ChainProvider is a hint-driven L1 chain view. It never talks to an RPC
// endpoint directly: every fetch goes through the oracle, which may be
// backed by a live RPC-and-cache prefetcher or by a pre-populated witness
// store inside the verifier guest.
type ChainProvider struct {
	oracle PreimageOracle
	hinter Hinter

	headers     map[common.Hash]*types.Header
	headersByNum map[uint64]*types.Header
	head        *types.Header
}

// NewChainProvider constructs a ChainProvider and seeds its cache with the
// header at l1Head.
func NewChainProvider(ctx context.Context, oracle PreimageOracle, hinter Hinter, l1Head common.Hash) (*ChainProvider, error) {
	c := &ChainProvider{
		oracle:       oracle,
		hinter:       hinter,
		headers:      make(map[common.Hash]*types.Header),
		headersByNum: make(map[uint64]*types.Header),
	}
	head, err := c.HeaderByHash(ctx, l1Head)
	if err != nil {
		return nil, err
	}
	c.head = head
	return c, nil
}

// HeaderByHash serves a header from the local cache; on a miss it sends an
// L1BlockHeader hint, fetches the RLP keyed by Keccak256(hash), and
// decodes it.
func (c *ChainProvider) HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	if h, ok := c.headers[hash]; ok {
		return h, nil
	}

	if err := c.hinter.Hint(ctx, fmt.Sprintf("%s %s", HintL1BlockHeader, hash.Hex())); err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "send header hint", err)
	}

	data, err := c.oracle.Get(ctx, witness.NewKeccak256Key(hash.Bytes()))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch header preimage", err)
	}

	var header types.Header
	if err := rlp.DecodeBytes(data, &header); err != nil {
		return nil, kerrors.Wrap(kerrors.Rlp, "decode header", err)
	}
	if header.Hash() != hash {
		return nil, kerrors.New(kerrors.PreimageMismatch, "header hash mismatch")
	}

	c.headers[hash] = &header
	c.headersByNum[header.Number.Uint64()] = &header
	return &header, nil
}

// BlockInfoByNumber returns the header at L1 height n,
// failing with BlockNotFound when n exceeds the cached head's number.
// Otherwise it walks parent hashes backward from the current head,
// extending the cache, until n is reached.
func (c *ChainProvider) BlockInfoByNumber(ctx context.Context, n uint64) (*types.Header, error) {
	if c.head == nil {
		return nil, kerrors.New(kerrors.BlockNotFound, "chain provider not initialized")
	}
	if n > c.head.Number.Uint64() {
		return nil, kerrors.New(kerrors.BlockNotFound, "requested block number past head")
	}
	if h, ok := c.headersByNum[n]; ok {
		return h, nil
	}

	cur := c.head
	for cur.Number.Uint64() > n {
		parent, err := c.HeaderByHash(ctx, cur.ParentHash)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	return cur, nil
}

// ReceiptsByHash fetches the header at hash, sends an L1Receipts hint, and
// walks the receipts trie rooted at header.ReceiptHash, decoding each
// 2718-typed envelope.
func (c *ChainProvider) ReceiptsByHash(ctx context.Context, hash common.Hash) (types.Receipts, error) {
	header, err := c.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if err := c.hinter.Hint(ctx, fmt.Sprintf("%s %s", HintL1Receipts, hash.Hex())); err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "send receipts hint", err)
	}

	rootData, err := c.oracle.Get(ctx, witness.NewKeccak256Key(header.ReceiptHash.Bytes()))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch receipts root node", err)
	}

	receipts := make(types.Receipts, 0)
	for i := 0; ; i++ {
		indexKey, err := rlp.EncodeToBytes(uint64(i))
		if err != nil {
			return nil, kerrors.Wrap(kerrors.Rlp, "encode receipt index", err)
		}
		value, err := walkOrderedList(rootData, indexKey, c.resolveNode(ctx))
		if err != nil {
			if err == errKeyNotFound {
				break
			}
			return nil, kerrors.Wrap(kerrors.TrieWalker, "walk receipts trie", err)
		}

		var receipt types.Receipt
		if err := receipt.UnmarshalBinary(value); err != nil {
			return nil, kerrors.Wrap(kerrors.Rlp, "decode receipt envelope", err)
		}
		receipts = append(receipts, &receipt)
	}
	return receipts, nil
}

// BlockInfoAndTransactionsByHash is symmetric to ReceiptsByHash, using
// header.TxHash and an L1Transactions hint.
func (c *ChainProvider) BlockInfoAndTransactionsByHash(ctx context.Context, hash common.Hash) (*types.Header, types.Transactions, error) {
	header, err := c.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}

	if err := c.hinter.Hint(ctx, fmt.Sprintf("%s %s", HintL1Transactions, hash.Hex())); err != nil {
		return nil, nil, kerrors.Wrap(kerrors.RpcUnavailable, "send transactions hint", err)
	}

	rootData, err := c.oracle.Get(ctx, witness.NewKeccak256Key(header.TxHash.Bytes()))
	if err != nil {
		return nil, nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch transactions root node", err)
	}

	txs := make(types.Transactions, 0)
	for i := 0; ; i++ {
		indexKey, err := rlp.EncodeToBytes(uint64(i))
		if err != nil {
			return nil, nil, kerrors.Wrap(kerrors.Rlp, "encode transaction index", err)
		}
		value, err := walkOrderedList(rootData, indexKey, c.resolveNode(ctx))
		if err != nil {
			if err == errKeyNotFound {
				break
			}
			return nil, nil, kerrors.Wrap(kerrors.TrieWalker, "walk transactions trie", err)
		}

		var tx types.Transaction
		if err := tx.UnmarshalBinary(value); err != nil {
			return nil, nil, kerrors.Wrap(kerrors.Rlp, "decode transaction envelope", err)
		}
		txs = append(txs, &tx)
	}
	return header, txs, nil
}

// TrieNodeByHash fetches a single trie node keyed by Keccak256(hash), for
// callers (e.g. a Merkle proof verifier) that need ad hoc node resolution
// outside of an ordered-list walk.
func (c *ChainProvider) TrieNodeByHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	return c.oracle.Get(ctx, witness.NewKeccak256Key(hash.Bytes()))
}

func (c *ChainProvider) resolveNode(ctx context.Context) func([]byte) ([]byte, error) {
	return func(hash []byte) ([]byte, error) {
		data, err := c.oracle.Get(ctx, witness.NewKeccak256Key(hash))
		if err != nil {
			return nil, kerrors.Wrap(kerrors.RpcUnavailable, "resolve trie node", err)
		}
		return data, nil
	}
}
