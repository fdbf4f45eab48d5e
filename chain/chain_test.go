package chain

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const gameCountABIJSON = `[
  {"type":"function","name":"gameCount","inputs":[],"outputs":[{"type":"uint256"}],"stateMutability":"view"}
]`

func TestCallPacksKnownMethod(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(gameCountABIJSON))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	if _, ok := parsed.Methods["gameCount"]; !ok {
		t.Fatal("expected gameCount method in parsed ABI")
	}

	data, err := parsed.Pack("gameCount")
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("expected a 4-byte selector with no arguments, got %d bytes", len(data))
	}
}
