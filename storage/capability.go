// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/substate"
)

// EpochSingletons bundles the per-epoch bookkeeping records spec.md
// §3/§6 calls out: HighQC, LeafBlock, LockedBlock, LastExecuted,
// LastVoted, LastSentVote.
type EpochSingletons struct {
	HighQC       block.QuorumCertificate
	LeafBlockID  block.ID
	LockedBlockID block.ID
	LastExecuted block.ID
	LastVoted    LastVoted
	LastSentVote block.ID
}

type LastVoted struct {
	BlockID block.ID
	Height  uint64
}

// ReadTx is the snapshot-isolated read capability (spec.md §9). Every
// method here has a direct counterpart in the original's
// dan_layer/storage state-store trait; method names follow that
// trait's snake_case-to-PascalCase translation (blocks_get ->
// BlocksGet, transaction_pool_get_for_blocks ->
// TransactionPoolGetForBlocks, ...).
type ReadTx interface {
	BlocksGet(id block.ID) (*block.Block, error)
	BlocksGetParentChain(leafID block.ID, upTo block.ID) ([]*block.Block, error)
	BlocksGetTip(sg shard.ShardGroup, epoch uint64) (*block.Block, error)

	QCGet(id block.ID) (*block.QuorumCertificate, error)

	SubstatesGet(addr shard.Address) (*substate.Record, error)
	SubstateGetLatestVersion(id shard.SubstateId) (uint32, error)

	TransactionPoolGet(id block.TransactionID) (*pool.Record, error)
	TransactionPoolGetForBlocks(blockIDs []block.ID) ([]*pool.Record, error)
	TransactionPoolGetReady(maxItems int) ([]*pool.Record, error)

	LocksGet(id shard.SubstateId) ([]substate.Lock, error)

	ForeignProposalsGet(sg shard.ShardGroup, blockID block.ID) (*ForeignProposalRow, error)

	SingletonsGet(epoch uint64, sg shard.ShardGroup) (*EpochSingletons, error)

	ValidatorStatsGet(nodeID block.NodeID, epoch uint64) (*ValidatorEpochStats, error)

	// Close releases the transaction's snapshot. Callers must call it
	// exactly once when done reading.
	Close()
}

// WriteTx is the serializable write capability. All writes issued
// between a BeginWrite/Commit pair are applied atomically or not at
// all (spec.md §5, "All writes for one proposal commit atomically or
// not at all").
type WriteTx interface {
	ReadTx

	BlocksInsert(b *block.Block) error
	QCInsert(qc *block.QuorumCertificate) error

	SubstatesUp(r *substate.Record) error
	SubstatesDown(id shard.SubstateId, version uint32, destroyed substate.DestroyedBy) error

	TransactionPoolInsert(r *pool.Record) error
	TransactionPoolAddPendingUpdate(id block.TransactionID, u pool.PendingUpdate) error
	TransactionPoolConfirmPending(blockID block.ID) error
	TransactionPoolDiscardPending(blockID block.ID) error
	TransactionPoolRemove(id block.TransactionID) error

	LocksAdd(id shard.SubstateId, l substate.Lock) error
	LocksRemoveForTransaction(txID block.TransactionID) error
	LockConflictRecord(row LockConflictRow) error

	ForeignProposalsInsert(row *ForeignProposalRow) error

	SingletonsSet(epoch uint64, sg shard.ShardGroup, s EpochSingletons) error

	ValidatorStatsRecordVote(nodeID block.NodeID, epoch uint64, voted bool) error

	Commit() error
	Rollback() error
}

// Store is the top-level storage capability: a way to obtain
// transactions of either isolation level (spec.md §9).
type Store interface {
	ReadTx() (ReadTx, error)
	WriteTx() (WriteTx, error)
}

// ForeignProposalRow is the persisted form of a ForeignProposal
// (spec.md §3/§6).
type ForeignProposalRow struct {
	ShardGroup  shard.ShardGroup
	BlockID     block.ID
	Block       *block.Block
	JustifyQC   block.QuorumCertificate
	BlockPledge map[block.TransactionID][]SubstatePledge
}

// SubstatePledge carries the exact UP value or an explicit DOWN
// marker for a specific (SubstateId, version) (spec.md §3).
type SubstatePledge struct {
	ID      shard.SubstateId
	Version uint32
	IsDown  bool
	Value   []byte
}

// LockConflictRow is the persisted record of a soft lock conflict
// (spec.md §4.7, §7).
type LockConflictRow struct {
	TransactionID block.TransactionID
	Existing      substate.Lock
	Requested     substate.Lock
	IsLocalOnly   bool
}

// ValidatorEpochStats is the participation accounting backing
// eviction decisions (spec.md §4.9, §6 validator_epoch_stats table).
type ValidatorEpochStats struct {
	NodeID        block.NodeID
	Epoch         uint64
	BlocksVoted   uint64
	BlocksTotal   uint64
}

// ParticipationShare returns the fraction of blocks this validator
// voted on in the epoch so far.
func (s ValidatorEpochStats) ParticipationShare() float64 {
	if s.BlocksTotal == 0 {
		return 1
	}
	return float64(s.BlocksVoted) / float64(s.BlocksTotal)
}
