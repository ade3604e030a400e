// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package shard implements the substate addressing scheme: the mapping
// from a SubstateId/version pair to a 256-bit address, and from an
// address to the Shard and ShardGroup that owns it.
package shard

import (
	"math/big"
	"math/bits"
)

// NumPreshards is the number of equal partitions of the 256-bit
// substate address space for an epoch. It must be a power of two in
// [1, 256].
type NumPreshards uint32

// Valid reports whether n is a legal preshard count.
func (n NumPreshards) Valid() bool {
	v := uint32(n)
	if v == 0 || v > 256 {
		return false
	}
	return v&(v-1) == 0
}

func (n NumPreshards) AsU32() uint32 { return uint32(n) }

// Shard identifies one of NumPreshards equal slices of the address
// space. Shards are 1-indexed, matching the original implementation's
// convention (Shard::first() == 1).
type Shard uint32

// First returns the first (lowest) shard index.
func First() Shard { return Shard(1) }

func (s Shard) AsU32() uint32 { return uint32(s) }

// ShardGroup is a contiguous, inclusive range of shards assigned to a
// single committee in a given epoch.
type ShardGroup struct {
	Start Shard
	End   Shard
}

func NewShardGroup(start, end Shard) ShardGroup {
	return ShardGroup{Start: start, End: end}
}

// NumShards returns the number of shards covered by this group.
func (g ShardGroup) NumShards() uint32 {
	if g.End < g.Start {
		return 0
	}
	return uint32(g.End-g.Start) + 1
}

// Contains reports whether the shard is within this group's range.
func (g ShardGroup) Contains(s Shard) bool {
	return s >= g.Start && s <= g.End
}

// Overlaps reports whether two shard groups share any shard.
func (g ShardGroup) Overlaps(other ShardGroup) bool {
	return g.Start <= other.End && other.Start <= g.End
}

var maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxU256 is the inclusive upper bound of the substate address integer
// space, 2^256 - 1.
func MaxU256() *big.Int {
	return new(big.Int).Set(maxU256)
}

// ToShard maps a 256-bit address integer to a Shard under the given
// preshard count. Mirrors the original SubstateAddress::to_shard: the
// address space is divided into num_shards equal slices (shard_size =
// MAX >> trailing_zeros(num_shards)), the address's slice index is
// 1-based, and the result is clamped to num_shards for the MAX
// address.
func ToShard(addrU256 *big.Int, numShards NumPreshards) Shard {
	n := numShards.AsU32()
	if n == 1 || addrU256.Sign() == 0 {
		return First()
	}

	shardSize := new(big.Int).Rsh(maxU256, uint(bits.TrailingZeros32(n)))
	q := new(big.Int).Div(addrU256, shardSize)
	shardNumber := uint32(q.Uint64()) + 1
	if shardNumber > n {
		shardNumber = n
	}
	return Shard(shardNumber)
}

// ToShardGroup maps an address to the ShardGroup that owns it, given
// the committee count for the epoch. The first (numShards mod
// numCommittees) groups receive one extra shard, matching the
// original's remainder-distribution loop.
func ToShardGroup(addrU256 *big.Int, numShards NumPreshards, numCommittees uint32) ShardGroup {
	n := numShards.AsU32()
	if numCommittees > n {
		numCommittees = n
	}
	if numCommittees <= 1 {
		return NewShardGroup(First(), Shard(n))
	}

	shardsPerCommittee := n / numCommittees
	rem := n % numCommittees

	shardIndex := ToShard(addrU256, numShards).AsU32() - 1

	var start, end uint32
	end = shardsPerCommittee
	remaining := rem
	if remaining > 0 {
		end++
	}
	for end <= shardIndex {
		start += shardsPerCommittee
		if remaining > 0 {
			start++
			remaining--
		}
		end = start + shardsPerCommittee
		if remaining > 0 {
			end++
		}
	}
	return NewShardGroup(Shard(start+1), Shard(end))
}

// Partition computes the num-committees shard groups that tile
// [1, numShards] for an epoch, in committee order. The first
// (numShards mod numCommittees) groups get ceil(numShards/numCommittees)
// shards; the rest get the floor value.
func Partition(numShards NumPreshards, numCommittees uint32) []ShardGroup {
	n := numShards.AsU32()
	if numCommittees == 0 {
		return nil
	}
	if numCommittees > n {
		numCommittees = n
	}
	groups := make([]ShardGroup, 0, numCommittees)
	if numCommittees <= 1 {
		groups = append(groups, NewShardGroup(First(), Shard(n)))
		return groups
	}

	shardsPerCommittee := n / numCommittees
	rem := n % numCommittees

	start := uint32(1)
	for i := uint32(0); i < numCommittees; i++ {
		size := shardsPerCommittee
		if i < rem {
			size++
		}
		end := start + size - 1
		groups = append(groups, NewShardGroup(Shard(start), Shard(end)))
		start = end + 1
	}
	return groups
}
