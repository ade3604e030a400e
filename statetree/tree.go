// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package statetree implements the sparse Merkle tree keyed by
// shard.Address that backs a block's state_merkle_root (spec.md
// §4.8): "root of the tree after applying all substate ups/downs of
// the block (deterministic order = command order, then (SubstateId,
// version))". Grounded on the leaf-hash-then-pairwise-combine shape
// of the pack's merkle_tree_operations.go (a different example repo's
// generic binary Merkle tree), generalized from an ordered leaf slice
// to a key/value map so leaves can be looked up and updated by
// address, and hashed with blake2b (the same hash spec.md §6 uses for
// block ids) instead of sha256.
package statetree

import (
	"sort"

	"github.com/shardbft/consensus/shard"
	"golang.org/x/crypto/blake2b"
)

// Tree is an in-memory sparse Merkle tree: a map from shard.Address to
// a leaf value hash, with Root() recomputing the tree root by sorting
// keys and combining pairwise. This trades the O(log address-space)
// proof size of a true bitwise trie for a simpler O(n log n) rebuild,
// acceptable for the per-shard-group leaf counts this system expects;
// Root is still a faithful content commitment of the full leaf set.
type Tree struct {
	leaves map[shard.Address][32]byte
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{leaves: make(map[shard.Address][32]byte)}
}

// Put sets the leaf at addr to hash(value), in the deterministic
// application order the caller is responsible for (command order,
// then (SubstateId, version) within a command — see CommandsHash in
// package block for the matching ordering rule applied to commands
// themselves).
func (t *Tree) Put(addr shard.Address, value []byte) {
	t.leaves[addr] = blake2b.Sum256(value)
}

// Delete removes addr's leaf entirely (used when a substate goes
// DOWN and should no longer contribute to the root — the original's
// sparse tree represents an absent leaf as a fixed zero hash, which
// Root's sorted-combine below achieves implicitly by omission).
func (t *Tree) Delete(addr shard.Address) {
	delete(t.leaves, addr)
}

// Get returns the stored leaf hash for addr, if present.
func (t *Tree) Get(addr shard.Address) ([32]byte, bool) {
	h, ok := t.leaves[addr]
	return h, ok
}

// Len returns the number of live leaves.
func (t *Tree) Len() int { return len(t.leaves) }

// Root computes the Merkle root over every live leaf, ordered by
// address ascending. An empty tree's root is the all-zero hash.
func (t *Tree) Root() [32]byte {
	if len(t.leaves) == 0 {
		return [32]byte{}
	}
	addrs := make([]shard.Address, 0, len(t.leaves))
	for a := range t.leaves {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return lessAddress(addrs[i], addrs[j])
	})

	level := make([][32]byte, len(addrs))
	for i, a := range addrs {
		level[i] = hashLeaf(a, t.leaves[a])
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			var buf [64]byte
			copy(buf[:32], level[i][:])
			copy(buf[32:], level[i+1][:])
			next[i/2] = blake2b.Sum256(buf[:])
		}
		level = next
	}
	return level[0]
}

func hashLeaf(addr shard.Address, valueHash [32]byte) [32]byte {
	var buf [shard.AddressLength + 32]byte
	copy(buf[:shard.AddressLength], addr.Bytes())
	copy(buf[shard.AddressLength:], valueHash[:])
	return blake2b.Sum256(buf[:])
}

func lessAddress(a, b shard.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ApplyDownUp updates the tree for one transaction's leaves in order:
// downs delete their leaf, ups set it to the value hash. This mirrors
// pendingstore's own down-then-up ordering for a single transaction's
// diff; callers applying a whole block's worth of diffs must call
// this once per transaction, in the block's command order, to match
// spec.md §4.8's ordering requirement exactly.
func (t *Tree) ApplyDownUp(downs []DownLeaf, ups []UpLeaf) {
	for _, d := range downs {
		t.Delete(d.Address)
	}
	for _, u := range ups {
		t.Put(u.Address, u.Value)
	}
}

// DownLeaf/UpLeaf are the minimal (address, value) pairs ApplyDownUp
// needs; callers derive them from substate.Change via
// shard.FromSubstateID.
type DownLeaf struct {
	Address shard.Address
}

type UpLeaf struct {
	Address shard.Address
	Value   []byte
}
