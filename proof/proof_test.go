package proof

import "testing"

func TestEncodeDecodeRoundTripStark(t *testing.T) {
	p := Proof{Kind: KindZKVMStark, Journal: []byte("journal-bytes"), Receipt: []byte("receipt-bytes")}
	dec, err := Decode(p.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.Kind != p.Kind || string(dec.Journal) != string(p.Journal) || string(dec.Receipt) != string(p.Receipt) {
		t.Fatalf("round trip mismatch: got %+v", dec)
	}
}

func TestEncodeDecodeRoundTripMarketSeal(t *testing.T) {
	p := Proof{Kind: KindMarketSeal, Journal: []byte("j"), Seal: []byte("seal-bytes")}
	dec, err := Decode(p.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.Kind != KindMarketSeal || string(dec.Seal) != "seal-bytes" {
		t.Fatalf("round trip mismatch: got %+v", dec)
	}
}

func TestGroth16DistinctFromStark(t *testing.T) {
	if KindZKVMGroth16 == KindZKVMStark {
		t.Fatal("Groth16 must have a distinct tag from Stark")
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	if _, err := Decode([]byte{byte(KindZKVMStark)}); err == nil {
		t.Fatal("expected error decoding truncated data")
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	p := Proof{Kind: 0xFF, Journal: nil, Receipt: []byte("x")}
	if _, err := Decode(p.Encode()); err == nil {
		t.Fatal("expected error decoding unknown kind")
	}
}
