// Package witness implements the content-addressed preimage store handed
// to the verifier guest, and the Witness/StitchedBootInfo records that
// describe one or more stitched proof transitions.
package witness

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// KeyType tags a PreimageKey with the hashing discipline its bytes must
// satisfy. Two keys with different tags but identical bytes address
// different domains.
type KeyType uint8

const (
	// KeyTypeLocal identifies an invalid/uninitialized key.
	KeyTypeLocal KeyType = iota
	// KeyTypeKeccak256 keys hash their preimage with Keccak256.
	KeyTypeKeccak256
	// KeyTypeSha256 keys hash their preimage with SHA-256.
	KeyTypeSha256
	// KeyTypeBlob keys address a single field element within a versioned blob.
	KeyTypeBlob
	// KeyTypeGlobalGeneric keys are opaque identifiers outside the hash-addressed domains.
	KeyTypeGlobalGeneric
)

// PreimageKey is a tagged 32-byte identifier. Equality requires both the
// type tag and the bytes to match.
type PreimageKey struct {
	Type  KeyType
	Bytes [32]byte
}

// NewKeccak256Key builds a PreimageKey for data addressed by Keccak256(data).
func NewKeccak256Key(data []byte) PreimageKey {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var b [32]byte
	copy(b[:], h.Sum(nil))
	return PreimageKey{Type: KeyTypeKeccak256, Bytes: b}
}

// NewSha256Key builds a PreimageKey for data addressed by SHA-256(data).
func NewSha256Key(data []byte) PreimageKey {
	sum := sha256.Sum256(data)
	return PreimageKey{Type: KeyTypeSha256, Bytes: sum}
}

// NewBlobKey builds a PreimageKey addressing field element index within the
// blob identified by versionedHash.
func NewBlobKey(versionedHash common.Hash, index uint64) PreimageKey {
	var b [32]byte
	// The low 8 bytes carry the field-element index; the remaining bytes
	// carry enough of the versioned hash to disambiguate blobs, enough
	// structure to resolve (blob, index) uniquely.
	copy(b[:24], versionedHash.Bytes()[:24])
	for i := 0; i < 8; i++ {
		b[24+i] = byte(index >> (8 * (7 - i)))
	}
	return PreimageKey{Type: KeyTypeBlob, Bytes: b}
}

// NewGlobalGenericKey builds a PreimageKey for an opaque identifier outside
// the hash-addressed domains (e.g. a precondition validation data hash).
func NewGlobalGenericKey(id [32]byte) PreimageKey {
	return PreimageKey{Type: KeyTypeGlobalGeneric, Bytes: id}
}

// Verify reports whether data hashes to this key under the key's type tag.
// KeyTypeBlob and KeyTypeGlobalGeneric keys are not hash-addressed and
// always verify (their binding is structural, checked elsewhere).
func (k PreimageKey) Verify(data []byte) bool {
	switch k.Type {
	case KeyTypeKeccak256:
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		var got [32]byte
		copy(got[:], h.Sum(nil))
		return got == k.Bytes
	case KeyTypeSha256:
		return sha256.Sum256(data) == k.Bytes
	default:
		return true
	}
}

// entryState is the lifecycle of one preimage store entry: Empty →
// Loaded → Validated → Served.
type entryState uint8

const (
	stateEmpty entryState = iota
	stateLoaded
	stateValidated
	stateServed
)

// ShardRef locates a preimage's bytes in a deferred shard rather than
// inline in the main payload.
type ShardRef struct {
	ShardIndex uint32
	SlotIndex  uint32
}

type entry struct {
	key   PreimageKey
	data  []byte
	shard *ShardRef
	state entryState
}

// Store is a sharded, content-addressed preimage map. The main shard
// carries keys and small inline preimages; bulky preimages are deferred to
// subsequent shards, identified by (shard_index, slot_index), and spliced
// in before validation.
type Store struct {
	entries map[PreimageKey]*entry
	order   []PreimageKey
	shards  [][][]byte // shards[shardIndex][slotIndex] = raw bytes
}

// NewStore constructs an empty preimage store.
func NewStore() *Store {
	return &Store{entries: make(map[PreimageKey]*entry)}
}

// InsertInline adds a preimage whose bytes are already available. The
// entry starts Loaded.
func (s *Store) InsertInline(key PreimageKey, data []byte) {
	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.entries[key] = &entry{key: key, data: cp, state: stateLoaded}
}

// InsertDeferred registers a preimage key whose bytes will arrive later in
// the given shard. The entry starts Empty.
func (s *Store) InsertDeferred(key PreimageKey, ref ShardRef) {
	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = &entry{key: key, shard: &ref, state: stateEmpty}
}

// AddShard appends a shard of raw preimage bytes, addressable by slot
// index for entries registered via InsertDeferred.
func (s *Store) AddShard(slots [][]byte) int {
	s.shards = append(s.shards, slots)
	return len(s.shards) - 1
}

// splice resolves every Empty entry against its registered shard slot,
// moving it to Loaded. Called once before ValidatePreimages.
func (s *Store) splice() error {
	for _, key := range s.order {
		e := s.entries[key]
		if e.state != stateEmpty {
			continue
		}
		if e.shard == nil {
			return kerrors.New(kerrors.PreimageMismatch, "empty entry with no shard reference")
		}
		if int(e.shard.ShardIndex) >= len(s.shards) {
			return kerrors.New(kerrors.PreimageMismatch, "shard index out of range")
		}
		slots := s.shards[e.shard.ShardIndex]
		if int(e.shard.SlotIndex) >= len(slots) {
			return kerrors.New(kerrors.PreimageMismatch, "slot index out of range")
		}
		e.data = slots[e.shard.SlotIndex]
		e.state = stateLoaded
	}
	return nil
}

// ValidatePreimages checks that every entry's bytes hash to its key under
// the key's type tag. Any failure is fatal for the whole witness: the
// store is left unvalidated and an error is returned. On success, every
// entry transitions to Validated, and entries without shard metadata
// transition directly to Served.
func (s *Store) ValidatePreimages() error {
	if err := s.splice(); err != nil {
		return err
	}
	for _, key := range s.order {
		e := s.entries[key]
		if e.state != stateLoaded {
			return kerrors.New(kerrors.PreimageMismatch, "entry not loaded before validation")
		}
		if !e.key.Verify(e.data) {
			return kerrors.New(kerrors.PreimageMismatch, "preimage does not hash to its key")
		}
	}
	for _, key := range s.order {
		e := s.entries[key]
		e.state = stateValidated
		if e.shard == nil {
			e.state = stateServed
		}
	}
	return nil
}

// Get serves a preimage by key. It is only callable once the store (or
// this specific entry) has reached Validated or Served; an attempt to
// serve from any earlier state is refused.
func (s *Store) Get(key PreimageKey) ([]byte, error) {
	e, ok := s.entries[key]
	if !ok {
		return nil, kerrors.New(kerrors.PreimageMismatch, "unknown preimage key")
	}
	if e.state != stateValidated && e.state != stateServed {
		return nil, kerrors.New(kerrors.PreimageMismatch, "preimage not yet validated")
	}
	e.state = stateServed
	return e.data, nil
}

// Len reports the number of distinct preimage entries, independent of
// lifecycle state.
func (s *Store) Len() int {
	return len(s.order)
}
