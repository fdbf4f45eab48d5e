// Package chain models the on-chain reads and writes of the dispute game
// protocol as small capability interfaces — SystemConfig, Factory, Game,
// Tournament, Treasury — rather than a generated contract-binding package.
package chain

import (
	"context"
	"math/big"
	"reflect"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// SystemConfig reads the address of the dispute game factory from a
// rollup's system config contract.
type SystemConfig interface {
	DisputeGameFactory(ctx context.Context) (common.Address, error)
}

// Factory reads the dispute game factory's index, implementation, and
// instance registry.
type Factory interface {
	GameCount(ctx context.Context) (uint64, error)
	GameAtIndex(ctx context.Context, i uint64) (common.Address, error)
	GameImpls(ctx context.Context, gameType uint32) (common.Address, error)
	Games(ctx context.Context, gameType uint32, rootClaim common.Hash, extraData [24]byte) (common.Address, error)
}

// Game reads the immutable parameters of a deployed KailuaGame instance.
type Game interface {
	Treasury(ctx context.Context) (common.Address, error)
	Verifier(ctx context.Context) (common.Address, error)
	ImageID(ctx context.Context) (common.Hash, error)
	ConfigHash(ctx context.Context) (common.Hash, error)
	ProposalOutputCount(ctx context.Context) (uint64, error)
	OutputBlockSpan(ctx context.Context) (uint64, error)
	ProposalBlobs(ctx context.Context) (uint64, error)
	GameType(ctx context.Context) (uint32, error)
	Factory(ctx context.Context) (common.Address, error)
	ClockDuration(ctx context.Context) (uint64, error)
	GenesisTimestamp(ctx context.Context) (uint64, error)
	L2BlockTime(ctx context.Context) (uint64, error)
	ProposalTimeGap(ctx context.Context) (uint64, error)
}

// Tournament reads the terminal L2 block number and identity fields of a
// specific game instance: KailuaTournament.l2BlockNumber() and the standard
// IDisputeGame rootClaim()/extraData() getters every factory-spawned game
// instance carries (used to reconstruct the sync agent's in-memory
// Proposal records).
type Tournament interface {
	L2BlockNumber(ctx context.Context) (uint64, error)
	RootClaim(ctx context.Context) (common.Hash, error)
	ExtraData(ctx context.Context) ([24]byte, error)
	L1Head(ctx context.Context) (common.Hash, error)
}

// Treasury reads bond accounting and submits new proposals.
type Treasury interface {
	ParticipationBond(ctx context.Context) (*big.Int, error)
	PaidBonds(ctx context.Context, addr common.Address) (*big.Int, error)
	Propose(ctx context.Context, claimedRoot common.Hash, extraData [24]byte, value *big.Int, blobs [][]byte) (common.Hash, error)
}

// Client wraps an ethclient.Client plus the contract ABI used to pack the
// hand-written calls backing Factory/Game/Tournament/Treasury, replacing a
// generated binding package with explicit selector-level packing for the
// handful of methods this module actually calls.
type Client struct {
	eth *ethclient.Client
	abi abi.ABI
}

// NewClient wraps an already-dialed ethclient.Client with the ABI used for
// call packing.
func NewClient(eth *ethclient.Client, contractABI abi.ABI) *Client {
	return &Client{eth: eth, abi: contractABI}
}

// call performs an eth_call against addr, packing args for method and
// unpacking the single return value into out.
func (c *Client) call(ctx context.Context, addr common.Address, method string, out interface{}, args ...interface{}) error {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return kerrors.Wrap(kerrors.OtherError, "pack call "+method, err)
	}
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return kerrors.Wrap(kerrors.RpcUnavailable, "call "+method, err)
	}
	vals, err := c.abi.Unpack(method, result)
	if err != nil {
		return kerrors.Wrap(kerrors.OtherError, "unpack result "+method, err)
	}
	if len(vals) == 0 {
		return kerrors.New(kerrors.OtherError, "empty return for "+method)
	}
	reflect.ValueOf(out).Elem().Set(reflect.ValueOf(vals[0]))
	return nil
}

// FactoryContract adapts Client to the Factory interface for one dispute
// game factory address.
type FactoryContract struct {
	Client  *Client
	Address common.Address
}

func (f FactoryContract) GameCount(ctx context.Context) (uint64, error) {
	var out *big.Int
	if err := f.Client.call(ctx, f.Address, "gameCount", &out); err != nil {
		return 0, err
	}
	return out.Uint64(), nil
}

func (f FactoryContract) GameAtIndex(ctx context.Context, i uint64) (common.Address, error) {
	var out common.Address
	err := f.Client.call(ctx, f.Address, "gameAtIndex", &out, new(big.Int).SetUint64(i))
	return out, err
}

func (f FactoryContract) GameImpls(ctx context.Context, gameType uint32) (common.Address, error) {
	var out common.Address
	err := f.Client.call(ctx, f.Address, "gameImpls", &out, gameType)
	return out, err
}

func (f FactoryContract) Games(ctx context.Context, gameType uint32, rootClaim common.Hash, extraData [24]byte) (common.Address, error) {
	var out common.Address
	err := f.Client.call(ctx, f.Address, "games", &out, gameType, rootClaim, extraData[:])
	return out, err
}

// GameContract adapts Client to the Game interface for one KailuaGame
// implementation address.
type GameContract struct {
	Client  *Client
	Address common.Address
}

func (g GameContract) Treasury(ctx context.Context) (common.Address, error) {
	var out common.Address
	return out, g.Client.call(ctx, g.Address, "treasury", &out)
}

func (g GameContract) Verifier(ctx context.Context) (common.Address, error) {
	var out common.Address
	return out, g.Client.call(ctx, g.Address, "verifier", &out)
}

func (g GameContract) ImageID(ctx context.Context) (common.Hash, error) {
	var out common.Hash
	return out, g.Client.call(ctx, g.Address, "imageId", &out)
}

func (g GameContract) ConfigHash(ctx context.Context) (common.Hash, error) {
	var out common.Hash
	return out, g.Client.call(ctx, g.Address, "configHash", &out)
}

func (g GameContract) ProposalOutputCount(ctx context.Context) (uint64, error) {
	var out *big.Int
	if err := g.Client.call(ctx, g.Address, "proposalOutputCount", &out); err != nil {
		return 0, err
	}
	return out.Uint64(), nil
}

func (g GameContract) OutputBlockSpan(ctx context.Context) (uint64, error) {
	var out *big.Int
	if err := g.Client.call(ctx, g.Address, "outputBlockSpan", &out); err != nil {
		return 0, err
	}
	return out.Uint64(), nil
}

func (g GameContract) ProposalBlobs(ctx context.Context) (uint64, error) {
	var out *big.Int
	if err := g.Client.call(ctx, g.Address, "proposalBlobs", &out); err != nil {
		return 0, err
	}
	return out.Uint64(), nil
}

func (g GameContract) GameType(ctx context.Context) (uint32, error) {
	var out uint32
	return out, g.Client.call(ctx, g.Address, "gameType", &out)
}

func (g GameContract) Factory(ctx context.Context) (common.Address, error) {
	var out common.Address
	return out, g.Client.call(ctx, g.Address, "factory", &out)
}

func (g GameContract) ClockDuration(ctx context.Context) (uint64, error) {
	var out uint64
	return out, g.Client.call(ctx, g.Address, "clockDuration", &out)
}

func (g GameContract) GenesisTimestamp(ctx context.Context) (uint64, error) {
	var out *big.Int
	if err := g.Client.call(ctx, g.Address, "genesisTimestamp", &out); err != nil {
		return 0, err
	}
	return out.Uint64(), nil
}

func (g GameContract) L2BlockTime(ctx context.Context) (uint64, error) {
	var out uint64
	return out, g.Client.call(ctx, g.Address, "l2BlockTime", &out)
}

func (g GameContract) ProposalTimeGap(ctx context.Context) (uint64, error) {
	var out uint64
	return out, g.Client.call(ctx, g.Address, "proposalTimeGap", &out)
}

// TournamentContract adapts Client to the Tournament interface for one
// factory-spawned game instance address.
type TournamentContract struct {
	Client  *Client
	Address common.Address
}

func (t TournamentContract) L2BlockNumber(ctx context.Context) (uint64, error) {
	var out *big.Int
	if err := t.Client.call(ctx, t.Address, "l2BlockNumber", &out); err != nil {
		return 0, err
	}
	return out.Uint64(), nil
}

func (t TournamentContract) RootClaim(ctx context.Context) (common.Hash, error) {
	var out common.Hash
	return out, t.Client.call(ctx, t.Address, "rootClaim", &out)
}

func (t TournamentContract) ExtraData(ctx context.Context) ([24]byte, error) {
	var out []byte
	if err := t.Client.call(ctx, t.Address, "extraData", &out); err != nil {
		return [24]byte{}, err
	}
	var arr [24]byte
	copy(arr[:], out)
	return arr, nil
}

func (t TournamentContract) L1Head(ctx context.Context) (common.Hash, error) {
	var out common.Hash
	return out, t.Client.call(ctx, t.Address, "l1Head", &out)
}

// TreasuryContract adapts Client to the Treasury interface for one
// treasury contract address, submitting proposals as signed transactions
// rather than eth_call reads.
type TreasuryContract struct {
	Client  *Client
	Address common.Address
	Eth     *ethclient.Client
	Signer  Signer
}

// Signer signs and submits a transaction to the treasury's propose method,
// abstracting the private-key/wallet plumbing and the EIP-4844 sidecar
// construction (commitments, proofs, versioned hashes) from the Treasury
// interface. blobs is nil for a proposal whose trace fits entirely in
// extra-data (proposal_output_count == 1).
type Signer interface {
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int, blobs [][]byte) (common.Hash, error)
}

func (t TreasuryContract) ParticipationBond(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := t.Client.call(ctx, t.Address, "participationBond", &out)
	return out, err
}

func (t TreasuryContract) PaidBonds(ctx context.Context, addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := t.Client.call(ctx, t.Address, "paidBonds", &out, addr)
	return out, err
}

func (t TreasuryContract) Propose(ctx context.Context, claimedRoot common.Hash, extraData [24]byte, value *big.Int, blobs [][]byte) (common.Hash, error) {
	data, err := t.Client.abi.Pack("propose", claimedRoot, extraData[:])
	if err != nil {
		return common.Hash{}, kerrors.Wrap(kerrors.OtherError, "pack propose call", err)
	}
	return t.Signer.SendTransaction(ctx, t.Address, data, value, blobs)
}

// waitMinedPollInterval bounds how often WaitMined polls for a receipt.
const waitMinedPollInterval = 2 * time.Second

// WaitMined blocks until tx is included, returning its receipt. It polls on
// a fixed interval rather than busy-looping against the RPC endpoint.
func WaitMined(ctx context.Context, eth *ethclient.Client, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(waitMinedPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, kerrors.Wrap(kerrors.RpcUnavailable, "wait for receipt", ctx.Err())
		case <-ticker.C:
		}
	}
}
