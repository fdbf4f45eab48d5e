// Package config defines the rollup configuration and deployment records
// that pin the proving pipeline to a specific chain and contract
// deployment.
package config

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// RollupConfig describes the L2 chain this coordinator proves transitions
// for. ConfigHash is pinned into every proof journal so a proof cannot be
// replayed against a different chain.
type RollupConfig struct {
	L1ChainID        uint64
	L2ChainID        uint64
	GenesisHash      common.Hash
	GenesisTime      uint64
	L2BlockTime      uint64
	L1SystemConfig   common.Address
}

// ConfigHash derives the stable content hash pinned into every proof
// journal. It is a keccak256 over the big-endian packed fields in
// declaration order, matching the packed-journal convention used
// throughout the on-chain interfaces.
func (c RollupConfig) ConfigHash() common.Hash {
	buf := make([]byte, 0, 8+8+32+8+8+20)
	buf = binary.BigEndian.AppendUint64(buf, c.L1ChainID)
	buf = binary.BigEndian.AppendUint64(buf, c.L2ChainID)
	buf = append(buf, c.GenesisHash.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, c.GenesisTime)
	buf = binary.BigEndian.AppendUint64(buf, c.L2BlockTime)
	buf = append(buf, c.L1SystemConfig.Bytes()...)

	h := sha3.NewLegacyKeccak256()
	h.Write(buf)
	return common.BytesToHash(h.Sum(nil))
}

// Deployment holds the immutable parameters read from a game
// implementation contract at startup.
type Deployment struct {
	Treasury          common.Address
	GameImplementation common.Address
	Verifier          common.Address
	FPVMImageID       common.Hash
	ConfigHash        common.Hash
	ProposalOutputCount uint64
	OutputBlockSpan     uint64
	ProposalBlobs       uint64
	Factory             common.Address
	Timeout             time.Duration
	GenesisTime         uint64
	L2BlockTime         uint64
	ProposalTimeGap     time.Duration
}

// BlocksPerProposal returns proposal_output_count · output_block_span, the
// span of L2 block heights covered by one proposal.
func (d Deployment) BlocksPerProposal() uint64 {
	return d.ProposalOutputCount * d.OutputBlockSpan
}

// AdmissibleAt reports whether a proposal claiming L2 height h may be
// submitted at L1 time l1Time: l1Time ≥ genesis_time + h·block_time +
// proposal_gap + 1.
func (d Deployment) AdmissibleAt(h uint64, l1Time uint64) bool {
	earliest := d.GenesisTime + h*d.L2BlockTime + uint64(d.ProposalTimeGap/time.Second) + 1
	return l1Time >= earliest
}
