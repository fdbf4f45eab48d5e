package witness

import (
	"testing"
)

func TestValidatePreimagesInlineTotality(t *testing.T) {
	store := NewStore()
	data := []byte("hello kailua")
	key := NewKeccak256Key(data)
	store.InsertInline(key, data)

	if err := store.ValidatePreimages(); err != nil {
		t.Fatalf("expected success for a correctly hashed preimage, got %v", err)
	}

	got, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get after validation: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("Get returned %q, want %q", got, data)
	}
}

func TestValidatePreimagesRejectsMismatch(t *testing.T) {
	store := NewStore()
	key := NewSha256Key([]byte("original"))
	// Insert different bytes under the key computed for "original".
	store.InsertInline(key, []byte("tampered"))

	if err := store.ValidatePreimages(); err == nil {
		t.Fatal("expected failure for a preimage that does not hash to its key")
	}
}

func TestValidatePreimagesDeferredShard(t *testing.T) {
	store := NewStore()
	data := []byte("bulky preimage payload")
	key := NewKeccak256Key(data)

	shardIdx := store.AddShard([][]byte{data})
	store.InsertDeferred(key, ShardRef{ShardIndex: uint32(shardIdx), SlotIndex: 0})

	if err := store.ValidatePreimages(); err != nil {
		t.Fatalf("expected success after splicing the deferred shard, got %v", err)
	}
	if _, err := store.Get(key); err != nil {
		t.Fatalf("Get after deferred validation: %v", err)
	}
}

func TestGetBeforeValidationRefused(t *testing.T) {
	store := NewStore()
	data := []byte("x")
	key := NewKeccak256Key(data)
	store.InsertInline(key, data)

	if _, err := store.Get(key); err == nil {
		t.Fatal("expected Get to refuse serving before validation")
	}
}

func TestPreimageKeyTypeDistinguishesDomains(t *testing.T) {
	data := []byte("same bytes, different domain")
	kk := NewKeccak256Key(data)
	ks := NewSha256Key(data)
	if kk == ks {
		t.Fatal("keccak and sha256 keys over the same data must differ")
	}
}

func TestWitnessValidatePreimagesDelegates(t *testing.T) {
	store := NewStore()
	data := []byte("boot")
	key := NewKeccak256Key(data)
	store.InsertInline(key, data)

	w := &Witness{OracleWitness: store}
	if err := w.ValidatePreimages(); err != nil {
		t.Fatalf("Witness.ValidatePreimages: %v", err)
	}
	if got, want := w.PreimageCount(), 1; got != want {
		t.Fatalf("PreimageCount() = %d, want %d", got, want)
	}
}
