package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func testDeployment() Deployment {
	return Deployment{
		ProposalOutputCount: 1024,
		OutputBlockSpan:     4,
		GenesisTime:         1000,
		L2BlockTime:         2,
		ProposalTimeGap:     10 * time.Second,
	}
}

func TestBlocksPerProposal(t *testing.T) {
	d := testDeployment()
	if got, want := d.BlocksPerProposal(), uint64(4096); got != want {
		t.Fatalf("BlocksPerProposal() = %d, want %d", got, want)
	}
}

func TestAdmissibleAt(t *testing.T) {
	d := testDeployment()
	h := uint64(100)
	earliest := d.GenesisTime + h*d.L2BlockTime + 10 + 1
	if d.AdmissibleAt(h, earliest-1) {
		t.Fatal("expected inadmissible one second before the earliest time")
	}
	if !d.AdmissibleAt(h, earliest) {
		t.Fatal("expected admissible exactly at the earliest time")
	}
}

func TestConfigHashDeterministic(t *testing.T) {
	c := RollupConfig{
		L1ChainID:      1,
		L2ChainID:      10,
		GenesisHash:    common.HexToHash("0x1234"),
		GenesisTime:    1700000000,
		L2BlockTime:    2,
		L1SystemConfig: common.HexToAddress("0xabcd"),
	}
	h1 := c.ConfigHash()
	h2 := c.ConfigHash()
	if h1 != h2 {
		t.Fatal("ConfigHash should be deterministic for identical inputs")
	}

	c2 := c
	c2.L2ChainID = 11
	if c.ConfigHash() == c2.ConfigHash() {
		t.Fatal("ConfigHash should differ when a field differs")
	}
}
