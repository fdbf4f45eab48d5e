package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// l2Client reads the L2 rollup node's canonical chain view. It implements
// syncagent.L2OutputOracle, dispatch.OutputResolver, and request.L2HeadHasher
// with a single type, since all three reduce to "ask the L2 node."
type l2Client struct {
	eth *ethclient.Client
	rpc *rpc.Client
}

func dialL2(ctx context.Context, url string) (*l2Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "dial l2", err)
	}
	return &l2Client{eth: ethclient.NewClient(rpcClient), rpc: rpcClient}, nil
}

// outputAtBlock calls the L2 rollup node's optimism_outputAtBlock method.
func (c *l2Client) outputAtBlock(ctx context.Context, blockNumber uint64) (common.Hash, error) {
	var result struct {
		OutputRoot common.Hash `json:"outputRoot"`
	}
	if err := c.rpc.CallContext(ctx, &result, "optimism_outputAtBlock", hexutil.EncodeUint64(blockNumber)); err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.RpcUnavailable, "optimism_outputAtBlock", err)
	}
	return result.OutputRoot, nil
}

// OutputAtBlock implements syncagent.L2OutputOracle.
func (c *l2Client) OutputAtBlock(ctx context.Context, blockNumber uint64) (common.Hash, error) {
	return c.outputAtBlock(ctx, blockNumber)
}

// ResolveOutputRoot implements dispatch.OutputResolver.
func (c *l2Client) ResolveOutputRoot(ctx context.Context, blockNumber uint64) (common.Hash, error) {
	return c.outputAtBlock(ctx, blockNumber)
}

// HeaderHashByNumber implements request.L2HeadHasher.
func (c *l2Client) HeaderHashByNumber(ctx context.Context, number uint64) (common.Hash, error) {
	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.RpcUnavailable, "fetch l2 header", err)
	}
	return header.Hash(), nil
}

// l1Reader wraps an L1 ethclient for the two small capability interfaces
// the sync agent and request builder need beyond chain.Client's contract
// reads: block timestamps and next-block resolution for blob pairing.
type l1Reader struct {
	eth *ethclient.Client
}

// TimestampByHash implements syncagent.L1TimestampReader.
func (r l1Reader) TimestampByHash(ctx context.Context, hash common.Hash) (uint64, error) {
	header, err := r.eth.HeaderByHash(ctx, hash)
	if err != nil {
		return 0, kerrors.Wrap(kerrors.RpcUnavailable, "fetch l1 header by hash", err)
	}
	return header.Time, nil
}

// NextBlock implements request.L1NextBlockResolver.
func (r l1Reader) NextBlock(ctx context.Context, afterL1Head common.Hash) (common.Hash, uint64, error) {
	header, err := r.eth.HeaderByHash(ctx, afterL1Head)
	if err != nil {
		return common.Hash{}, 0, kerrors.Wrap(kerrors.RpcUnavailable, "fetch l1 head header", err)
	}
	next := new(big.Int).Add(header.Number, big.NewInt(1))
	nextHeader, err := r.eth.HeaderByNumber(ctx, next)
	if err != nil {
		return common.Hash{}, 0, kerrors.Wrap(kerrors.RpcUnavailable, "fetch next l1 header", err)
	}
	return nextHeader.Hash(), nextHeader.Number.Uint64(), nil
}
