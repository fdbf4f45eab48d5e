// Package beacon wraps attestantio/go-eth2-client's HTTP service to serve
// the beacon API calls the sync agent needs: genesis time, seconds per
// slot, and blob sidecars for a slot.
package beacon

import (
	"context"
	"crypto/sha256"
	"strconv"
	"time"

	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/attestantio/go-eth2-client/api"
	"github.com/attestantio/go-eth2-client/http"
	"github.com/attestantio/go-eth2-client/spec/deneb"
	"github.com/ethereum/go-ethereum/common"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// Client serves the beacon API surface the sync agent needs.
type Client struct {
	service eth2client.Service

	genesisTime    uint64
	secondsPerSlot uint64
}

// Dial connects to a beacon node's HTTP API and caches its genesis time and
// seconds-per-slot, both of which are immutable for the lifetime of a chain.
func Dial(ctx context.Context, address string) (*Client, error) {
	service, err := http.New(ctx, http.WithAddress(address), http.WithTimeout(30*time.Second))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "dial beacon node", err)
	}

	genesisProvider, ok := service.(eth2client.GenesisProvider)
	if !ok {
		return nil, kerrors.New(kerrors.OtherError, "beacon service does not implement GenesisProvider")
	}
	genesisResp, err := genesisProvider.Genesis(ctx, &api.GenesisOpts{})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch genesis", err)
	}

	specProvider, ok := service.(eth2client.SpecProvider)
	if !ok {
		return nil, kerrors.New(kerrors.OtherError, "beacon service does not implement SpecProvider")
	}
	specResp, err := specProvider.Spec(ctx, &api.SpecOpts{})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.RpcUnavailable, "fetch spec", err)
	}

	secondsPerSlot, ok := specResp.Data["SECONDS_PER_SLOT"].(time.Duration)
	if !ok {
		return nil, kerrors.New(kerrors.OtherError, "spec response missing SECONDS_PER_SLOT")
	}

	return &Client{
		service:        service,
		genesisTime:    uint64(genesisResp.Data.GenesisTime.Unix()),
		secondsPerSlot: uint64(secondsPerSlot.Seconds()),
	}, nil
}

// GenesisTime returns the cached genesis time in unix seconds.
func (c *Client) GenesisTime() uint64 { return c.genesisTime }

// SecondsPerSlot returns the cached slot duration.
func (c *Client) SecondsPerSlot() uint64 { return c.secondsPerSlot }

// SlotForTimestamp computes slot = (timestamp - genesis_time) / seconds_per_slot,
// the beacon-slot derivation for an L1 block's inclusion timestamp.
func (c *Client) SlotForTimestamp(timestamp uint64) uint64 {
	if timestamp <= c.genesisTime {
		return 0
	}
	return (timestamp - c.genesisTime) / c.secondsPerSlot
}

// BlobSidecar is one blob sidecar entry, reduced to the fields the sync
// agent needs: its commitment (to compute the versioned hash) and its raw
// field-element payload.
type BlobSidecar struct {
	Index         uint64
	KZGCommitment [48]byte
	Blob          [131072]byte
}

// VersionedHash returns the EIP-4844 versioned hash of this sidecar's commitment.
func (b BlobSidecar) VersionedHash() common.Hash {
	sum := sha256Sum48(b.KZGCommitment)
	sum[0] = 0x01
	return sum
}

// BlobSidecars fetches every sidecar at the given slot.
func (c *Client) BlobSidecars(ctx context.Context, slot uint64) ([]BlobSidecar, error) {
	provider, ok := c.service.(eth2client.BlobSidecarsProvider)
	if !ok {
		return nil, kerrors.New(kerrors.OtherError, "beacon service does not implement BlobSidecarsProvider")
	}
	resp, err := provider.BlobSidecars(ctx, &api.BlobSidecarsOpts{Block: strconv.FormatUint(slot, 10)})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.BlobNotFound, "fetch blob sidecars", err)
	}

	out := make([]BlobSidecar, 0, len(resp.Data))
	for _, sc := range resp.Data {
		out = append(out, fromDenebSidecar(sc))
	}
	return out, nil
}

func fromDenebSidecar(sc *deneb.BlobSidecar) BlobSidecar {
	return BlobSidecar{
		Index:         sc.Index,
		KZGCommitment: sc.KZGCommitment,
		Blob:          sc.Blob,
	}
}

func sha256Sum48(b [48]byte) common.Hash {
	return common.Hash(sha256.Sum256(b[:]))
}
