package oracle

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// The trie node shapes below are pointed at an oracle-backed node resolver
// (see resolveNode in oracle.go) instead of a local trie database: every
// hashNode reference is resolved by asking the preimage oracle for
// Keccak256(hash) rather than a local key/value store.

const terminatorByte = 16

type node interface{}

type fullNode struct {
	Children [17]node
}

type shortNode struct {
	Key []byte
	Val node
}

type hashNode []byte

type valueNode []byte

func decodeNode(data []byte) (node, error) {
	if len(data) == 0 {
		return nil, kerrors.New(kerrors.TrieWalker, "empty node encoding")
	}
	elems, err := decodeRLPList(data)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.TrieWalker, "decode rlp list", err)
	}
	switch len(elems) {
	case 2:
		return decodeShort(elems)
	case 17:
		return decodeFull(elems)
	default:
		return nil, kerrors.New(kerrors.TrieWalker, fmt.Sprintf("expected 2 or 17 elements, got %d", len(elems)))
	}
}

func decodeShort(elems [][]byte) (node, error) {
	key := compactToHex(elems[0])
	if hasTerm(key) {
		return &shortNode{Key: key, Val: valueNode(elems[1])}, nil
	}
	child, err := decodeRef(elems[1])
	if err != nil {
		return nil, err
	}
	return &shortNode{Key: key, Val: child}, nil
}

func decodeFull(elems [][]byte) (node, error) {
	n := &fullNode{}
	for i := 0; i < 16; i++ {
		if len(elems[i]) == 0 {
			continue
		}
		child, err := decodeRef(elems[i])
		if err != nil {
			return nil, err
		}
		n.Children[i] = child
	}
	if len(elems[16]) > 0 {
		n.Children[16] = valueNode(elems[16])
	}
	return n, nil
}

func decodeRef(data []byte) (node, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) == 32 {
		return hashNode(data), nil
	}
	return decodeNode(data)
}

// decodeRLPList decodes a top-level RLP list into its element byte slices,
// reusing go-ethereum's rlp.RawValue so the behavior matches the encoding
// go-ethereum itself produces for trie nodes.
func decodeRLPList(data []byte) ([][]byte, error) {
	var raw []rlp.RawValue
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return nil, err
	}
	out := make([][]byte, len(raw))
	for i, r := range raw {
		var s []byte
		if err := rlp.DecodeBytes(r, &s); err == nil {
			out[i] = s
			continue
		}
		// Element is itself a list (an inlined child node): keep its raw
		// RLP encoding so decodeRef can recurse into it.
		out[i] = r
	}
	return out, nil
}

func hasTerm(s []byte) bool {
	return len(s) > 0 && s[len(s)-1] == terminatorByte
}

func keybytesToHex(b []byte) []byte {
	l := len(b)*2 + 1
	nibbles := make([]byte, l)
	for i, v := range b {
		nibbles[i*2] = v / 16
		nibbles[i*2+1] = v % 16
	}
	nibbles[l-1] = terminatorByte
	return nibbles
}

func compactToHex(compact []byte) []byte {
	if len(compact) == 0 {
		return compact
	}
	base := keybytesToHex(compact)
	base = base[:len(base)-1]
	chop := 2 - base[0]&1
	if base[0]&2 != 0 {
		result := make([]byte, len(base)-int(chop)+1)
		copy(result, base[chop:])
		result[len(result)-1] = terminatorByte
		return result
	}
	result := make([]byte, len(base)-int(chop))
	copy(result, base[chop:])
	return result
}

// hexToNibbles converts an RLP-encoded unsigned list index (the ordered-list
// trie key convention for receipts/transactions tries) into the hex-nibble
// path used to walk the trie.
func hexToNibbles(indexKey []byte) []byte {
	nibbles := make([]byte, len(indexKey)*2)
	for i, b := range indexKey {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}

var errKeyNotFound = errors.New("trie: key not present")

// walkOrderedList resolves the value stored at indexKey by walking the trie
// rooted at root, resolving hash references via resolve.
func walkOrderedList(root []byte, indexKey []byte, resolve func(hash []byte) ([]byte, error)) ([]byte, error) {
	n, err := decodeNode(root)
	if err != nil {
		return nil, err
	}
	path := hexToNibbles(indexKey)
	return walkNode(n, path, resolve)
}

func walkNode(n node, path []byte, resolve func([]byte) ([]byte, error)) ([]byte, error) {
	switch v := n.(type) {
	case valueNode:
		return []byte(v), nil
	case hashNode:
		data, err := resolve(v)
		if err != nil {
			return nil, err
		}
		child, err := decodeNode(data)
		if err != nil {
			return nil, err
		}
		return walkNode(child, path, resolve)
	case *shortNode:
		key := v.Key
		if hasTerm(key) {
			key = key[:len(key)-1]
		}
		if len(path) < len(key) {
			return nil, errKeyNotFound
		}
		for i := range key {
			if key[i] != path[i] {
				return nil, errKeyNotFound
			}
		}
		return walkNode(v.Val, path[len(key):], resolve)
	case *fullNode:
		if len(path) == 0 {
			if v.Children[16] == nil {
				return nil, errKeyNotFound
			}
			return walkNode(v.Children[16], path, resolve)
		}
		child := v.Children[path[0]]
		if child == nil {
			return nil, errKeyNotFound
		}
		return walkNode(child, path[1:], resolve)
	case nil:
		return nil, errKeyNotFound
	default:
		return nil, kerrors.New(kerrors.TrieWalker, "unexpected node type")
	}
}
