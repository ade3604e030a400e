// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package shard

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"math/bits"
)

// ObjectKeyLength is the length in bytes of the object key component
// of a SubstateAddress.
const ObjectKeyLength = 32

// AddressLength is the total byte length of a SubstateAddress: a
// 32-byte object key followed by a 4-byte big-endian version.
const AddressLength = ObjectKeyLength + 4

// ObjectKey is the 32-byte creator-derived key embedded in every
// SubstateId variant.
type ObjectKey [ObjectKeyLength]byte

// Address is the 36-byte (object key || big-endian u32 version)
// binary address of a versioned substate. The zero address is
// reserved ("global").
type Address [AddressLength]byte

// FromObjectKey builds an Address from an object key and version.
func FromObjectKey(key ObjectKey, version uint32) Address {
	var a Address
	copy(a[:ObjectKeyLength], key[:])
	binary.BigEndian.PutUint32(a[ObjectKeyLength:], version)
	return a
}

// FromSubstateID builds the Address for (id, version).
func FromSubstateID(id SubstateId, version uint32) Address {
	return FromObjectKey(id.ObjectKey(), version)
}

// AddressFromBytes parses a 36-byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("shard: invalid address length %d, want %d", len(b), AddressLength)
	}
	copy(a[:], b)
	return a, nil
}

// Zero is the reserved "global" address.
func Zero() Address { return Address{} }

// Max is the highest representable address.
func Max() Address {
	var a Address
	for i := range a {
		a[i] = 0xff
	}
	return a
}

func (a Address) IsZero() bool {
	for _, b := range a {
		if b != 0 {
			return false
		}
	}
	return true
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) ObjectKeyBytes() []byte { return a[:ObjectKeyLength] }

func (a Address) ObjectKey() ObjectKey {
	var k ObjectKey
	copy(k[:], a[:ObjectKeyLength])
	return k
}

func (a Address) Version() uint32 {
	return binary.BigEndian.Uint32(a[ObjectKeyLength:])
}

// ToU256 returns the object-key portion of the address interpreted as
// a big-endian unsigned 256-bit integer.
func (a Address) ToU256() *big.Int {
	return new(big.Int).SetBytes(a.ObjectKeyBytes())
}

// String renders the address as lowercase hex, the wire display form
// from spec.md §6.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// ToShard returns the Shard this address belongs to under numShards.
func (a Address) ToShard(numShards NumPreshards) Shard {
	return ToShard(a.ToU256(), numShards)
}

// ToShardGroup returns the ShardGroup this address belongs to.
func (a Address) ToShardGroup(numShards NumPreshards, numCommittees uint32) ShardGroup {
	return ToShardGroup(a.ToU256(), numShards, numCommittees)
}

// AddressAtShardBoundary returns the lowest address that belongs to
// shard i+1 under numShards (shards are 1-indexed, i is 0-based) —
// used by boundary tests (see
// spec.md §8: "address_at(i, n).to_shard(n) = i + 1").
func AddressAtShardBoundary(i uint32, numShards NumPreshards) Address {
	n := numShards.AsU32()
	shardSize := new(big.Int).Rsh(MaxU256(), uint(bits.TrailingZeros32(n)))
	offset := new(big.Int).Mul(shardSize, big.NewInt(int64(i)))
	var keyBytes [ObjectKeyLength]byte
	offset.FillBytes(keyBytes[:])
	return FromObjectKey(ObjectKey(keyBytes), 0)
}
