// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"encoding/binary"
	"sort"

	"github.com/shardbft/consensus/shard"
	"golang.org/x/crypto/blake2b"
)

// Block is the per-shard-group replicated unit of the chain
// (spec.md §3). ID is a hash of header + commands and must be
// recomputed (via Hash) and compared on receipt — the gateway treats
// a mismatch as a validation failure (spec.md §4.2).
type Block struct {
	ID       ID
	Epoch    uint64
	ShardGroup shard.ShardGroup
	Height   uint64
	ParentID ID
	Justify  QuorumCertificate

	Commands []Command

	StateMerkleRoot      ID
	Timestamp            uint64 // unix ms
	BaseLayerBlockHeight uint64
	BaseLayerBlockHash   ID
	ProposedBy           []byte // 33-byte compressed pubkey
	TotalLeaderFee       uint64
	Signature            []byte
}

// HeaderBytes returns the fixed little-endian header encoding from
// spec.md §6:
//
//	epoch(u64) || shard_group(u32,u32) || height(u64) || parent_id(32B) ||
//	justify_id(32B) || state_merkle_root(32B) || timestamp(u64 ms) ||
//	base_layer_height(u64) || base_layer_hash(32B) || proposed_by(33B) ||
//	commands_hash(32B)
func (b *Block) HeaderBytes() []byte {
	const size = 8 + 4 + 4 + 8 + 32 + 32 + 32 + 8 + 8 + 32 + 33 + 32
	buf := make([]byte, 0, size)
	var tmp [8]byte

	binary.LittleEndian.PutUint64(tmp[:], b.Epoch)
	buf = append(buf, tmp[:]...)

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], b.ShardGroup.Start.AsU32())
	buf = append(buf, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], b.ShardGroup.End.AsU32())
	buf = append(buf, tmp4[:]...)

	binary.LittleEndian.PutUint64(tmp[:], b.Height)
	buf = append(buf, tmp[:]...)

	buf = append(buf, b.ParentID[:]...)

	justifyID := b.Justify.Hash()
	buf = append(buf, justifyID[:]...)

	buf = append(buf, b.StateMerkleRoot[:]...)

	binary.LittleEndian.PutUint64(tmp[:], b.Timestamp)
	buf = append(buf, tmp[:]...)

	binary.LittleEndian.PutUint64(tmp[:], b.BaseLayerBlockHeight)
	buf = append(buf, tmp[:]...)

	buf = append(buf, b.BaseLayerBlockHash[:]...)

	proposedBy := make([]byte, 33)
	copy(proposedBy, b.ProposedBy)
	buf = append(buf, proposedBy...)

	ch := b.CommandsHash()
	buf = append(buf, ch[:]...)

	return buf
}

// Hash computes block_id = BLAKE2b-256(header_bytes).
func (b *Block) Hash() ID {
	h := blake2b.Sum256(b.HeaderBytes())
	return h
}

// CommandsHash hashes the block's command list in deterministic
// command order (the order they appear in Commands; the proposer is
// required by spec.md §4.5 to emit them in a canonical order, so no
// re-sorting happens here).
func (b *Block) CommandsHash() ID {
	h, _ := blake2b.New256(nil)
	for _, c := range b.Commands {
		h.Write(commandBytes(c))
	}
	var out ID
	copy(out[:], h.Sum(nil))
	return out
}

func commandBytes(c Command) []byte {
	buf := []byte{byte(c.Kind)}
	switch {
	case c.Atom != nil:
		buf = append(buf, atomBytes(c.Atom)...)
	case c.ForeignAtom != nil:
		buf = append(buf, atomBytes(c.ForeignAtom)...)
	case c.Mint != nil:
		var tmp [8]byte
		buf = append(buf, c.Mint.CommitmentAddress[:]...)
		binary.LittleEndian.PutUint64(tmp[:], c.Mint.Value)
		buf = append(buf, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], c.Mint.BaseLayerHeight)
		buf = append(buf, tmp[:]...)
	case c.EvictPubKey != nil:
		buf = append(buf, c.EvictPubKey...)
	}
	return buf
}

func atomBytes(a *TransactionAtom) []byte {
	buf := append([]byte{}, a.TransactionID[:]...)
	buf = append(buf, byte(boolByte(a.Decision.IsAbort)), byte(a.Decision.Reason))
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], a.TransactionFee)
	buf = append(buf, tmp[:]...)
	buf = append(buf, evidenceBytes(a.Evidence)...)
	return buf
}

func boolByte(b bool) int {
	if b {
		return 1
	}
	return 0
}

// evidenceBytes produces a deterministic byte encoding of an Evidence
// map by sorting shard groups, then substate id strings, before
// serializing — map iteration order in Go is intentionally randomized,
// so every caller that needs a stable hash or wire form must go
// through this helper rather than ranging over the map directly.
func evidenceBytes(e Evidence) []byte {
	groups := e.ShardGroups()
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Start != groups[j].Start {
			return groups[i].Start < groups[j].Start
		}
		return groups[i].End < groups[j].End
	})

	var buf []byte
	for _, sg := range groups {
		var tmp4 [4]byte
		binary.LittleEndian.PutUint32(tmp4[:], sg.Start.AsU32())
		buf = append(buf, tmp4[:]...)
		binary.LittleEndian.PutUint32(tmp4[:], sg.End.AsU32())
		buf = append(buf, tmp4[:]...)

		g := e[sg]
		inKeys := sortedKeys(g.Inputs)
		for _, k := range inKeys {
			in := g.Inputs[k]
			buf = append(buf, []byte(k)...)
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], in.Version)
			buf = append(buf, tmp[:]...)
			buf = append(buf, byte(in.LockType))
		}
		outKeys := sortedKeys(g.Outputs)
		for _, k := range outKeys {
			out := g.Outputs[k]
			buf = append(buf, []byte(k)...)
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], out.Version)
			buf = append(buf, tmp[:]...)
		}
	}
	return buf
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Hash computes a deterministic id for a QuorumCertificate from its
// fields (used as the "justify_id" embedded in a child block's
// header).
func (qc QuorumCertificate) Hash() ID {
	h, _ := blake2b.New256(nil)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], qc.Epoch)
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], qc.BlockHeight)
	h.Write(tmp[:])
	h.Write(qc.BlockID[:])
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], qc.ShardGroup.Start.AsU32())
	h.Write(tmp4[:])
	binary.LittleEndian.PutUint32(tmp4[:], qc.ShardGroup.End.AsU32())
	h.Write(tmp4[:])
	h.Write([]byte{byte(boolByte(qc.Decision.IsAbort)), byte(qc.Decision.Reason)})
	h.Write(qc.Signatures.Signers)
	var out ID
	copy(out[:], h.Sum(nil))
	return out
}
