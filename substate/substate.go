// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package substate defines the versioned substate record and lock
// types of spec.md §3/§4.7, grounded on
// dan_layer/engine_types/src/substate.rs (original_source) for field
// shape and dan_layer/consensus/src/hotstuff/substate_store/pending_store.rs
// for lock semantics.
package substate

import (
	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/shard"
)

// DestroyedBy records who/what caused a substate to go DOWN.
type DestroyedBy struct {
	ByTx      block.TransactionID
	ByShard   shard.ShardGroup
	AtEpoch   uint64
	ByQC      block.ID
}

// Record is a versioned substate: { id, version, value, created_by_tx,
// created_by_shard, created_at_epoch, destroyed? } from spec.md §3. An
// UP substate has Destroyed == nil; a DOWN one has it set.
type Record struct {
	ID              shard.SubstateId
	Version         uint32
	Value           []byte
	CreatedByTx     block.TransactionID
	CreatedByShard  shard.ShardGroup
	CreatedAtEpoch  uint64
	Destroyed       *DestroyedBy
}

func (r *Record) IsUp() bool   { return r.Destroyed == nil }
func (r *Record) IsDown() bool { return r.Destroyed != nil }

func (r *Record) Address() shard.Address {
	return shard.FromSubstateID(r.ID, r.Version)
}

// LockType mirrors block.LockType; re-exported so callers of this
// package don't need to import block just for lock constants.
type LockType = block.LockType

const (
	LockRead   = block.LockRead
	LockWrite  = block.LockWrite
	LockOutput = block.LockOutput
)

// Lock is a SubstateLock: { transaction_id, version, lock_type,
// is_local_only } from spec.md §3.
type Lock struct {
	TransactionID block.TransactionID
	Version       uint32
	LockType      LockType
	IsLocalOnly   bool
}

// Change is a pending SubstateChange: either an Up (new record) or a
// Down (marking an existing version destroyed).
type ChangeKind uint8

const (
	ChangeUp ChangeKind = iota
	ChangeDown
)

type Change struct {
	Kind ChangeKind
	Up   *Record    // set when Kind == ChangeUp
	Down *DownChange // set when Kind == ChangeDown
}

type DownChange struct {
	ID        shard.SubstateId
	Version   uint32
	Destroyed DestroyedBy
}

func NewUpChange(r *Record) Change {
	return Change{Kind: ChangeUp, Up: r}
}

func NewDownChange(id shard.SubstateId, version uint32, destroyed DestroyedBy) Change {
	return Change{Kind: ChangeDown, Down: &DownChange{ID: id, Version: version, Destroyed: destroyed}}
}

// Diff is the (downs, ups) pair an execution applies atomically
// (spec.md §4.7 put_diff).
type Diff struct {
	Downs []Change
	Ups   []Change
}
