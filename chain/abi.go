package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// ContractABIJSON packs every selector FactoryContract/GameContract/
// TournamentContract/TreasuryContract call: the dispute game factory, the
// KailuaGame implementation, a spawned tournament instance, and the
// treasury. Hand-maintained rather than generated, matching the package
// doc comment's stated design.
const ContractABIJSON = `[
  {"type":"function","name":"gameCount","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"gameAtIndex","inputs":[{"type":"uint256"}],"outputs":[{"type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"gameImpls","inputs":[{"type":"uint32"}],"outputs":[{"type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"games","inputs":[{"type":"uint32"},{"type":"bytes32"},{"type":"bytes"}],"outputs":[{"type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"disputeGameFactory","inputs":[],"outputs":[{"type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"treasury","inputs":[],"outputs":[{"type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"verifier","inputs":[],"outputs":[{"type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"imageId","inputs":[],"outputs":[{"type":"bytes32"}],"stateMutability":"view"},
  {"type":"function","name":"configHash","inputs":[],"outputs":[{"type":"bytes32"}],"stateMutability":"view"},
  {"type":"function","name":"proposalOutputCount","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"outputBlockSpan","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"proposalBlobs","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"gameType","inputs":[],"outputs":[{"type":"uint32"}],"stateMutability":"view"},
  {"type":"function","name":"factory","inputs":[],"outputs":[{"type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"clockDuration","inputs":[],"outputs":[{"type":"uint64"}],"stateMutability":"view"},
  {"type":"function","name":"genesisTimestamp","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"l2BlockTime","inputs":[],"outputs":[{"type":"uint64"}],"stateMutability":"view"},
  {"type":"function","name":"proposalTimeGap","inputs":[],"outputs":[{"type":"uint64"}],"stateMutability":"view"},
  {"type":"function","name":"l2BlockNumber","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"rootClaim","inputs":[],"outputs":[{"type":"bytes32"}],"stateMutability":"view"},
  {"type":"function","name":"extraData","inputs":[],"outputs":[{"type":"bytes"}],"stateMutability":"view"},
  {"type":"function","name":"l1Head","inputs":[],"outputs":[{"type":"bytes32"}],"stateMutability":"view"},
  {"type":"function","name":"participationBond","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"paidBonds","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"propose","inputs":[{"type":"bytes32"},{"type":"bytes"}],"outputs":[],"stateMutability":"payable"}
]`

// ParseABI parses ContractABIJSON, for callers constructing a Client.
func ParseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(ContractABIJSON))
	if err != nil {
		return abi.ABI{}, kerrors.Wrap(kerrors.OtherError, "parse contract abi", err)
	}
	return parsed, nil
}
