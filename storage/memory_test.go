// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/substate"
)

func testSubstateID(b byte) shard.SubstateId {
	var key shard.ObjectKey
	key[0] = b
	return shard.SubstateId{Kind: shard.KindComponent, Key: key}
}

func TestMemoryStoreBlocksRoundTrip(t *testing.T) {
	mem := NewMemoryStore()
	sg := shard.NewShardGroup(1, 1)
	b := &block.Block{ID: block.ID{1}, Epoch: 1, ShardGroup: sg, Height: 0}

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.BlocksInsert(b))
	require.NoError(t, wtx.Commit())

	rtx, err := mem.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()

	got, err := rtx.BlocksGet(block.ID{1})
	require.NoError(t, err)
	require.Equal(t, b, got)

	tip, err := rtx.BlocksGetTip(sg, 1)
	require.NoError(t, err)
	require.Equal(t, b, tip)

	_, err = rtx.BlocksGet(block.ID{99})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreBlocksGetParentChain(t *testing.T) {
	mem := NewMemoryStore()
	genesis := &block.Block{ID: block.ID{1}}
	child := &block.Block{ID: block.ID{2}, ParentID: block.ID{1}}
	grandchild := &block.Block{ID: block.ID{3}, ParentID: block.ID{2}}

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.BlocksInsert(genesis))
	require.NoError(t, wtx.BlocksInsert(child))
	require.NoError(t, wtx.BlocksInsert(grandchild))
	require.NoError(t, wtx.Commit())

	rtx, err := mem.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()

	chain, err := rtx.BlocksGetParentChain(block.ID{3}, block.ID{1})
	require.NoError(t, err)
	require.Equal(t, []*block.Block{grandchild, child, genesis}, chain)
}

func TestMemoryStoreSubstatesUpDownAndLatestVersion(t *testing.T) {
	mem := NewMemoryStore()
	id := testSubstateID(1)

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.SubstatesUp(&substate.Record{ID: id, Version: 0, Value: []byte("v0")}))
	require.NoError(t, wtx.SubstatesUp(&substate.Record{ID: id, Version: 1, Value: []byte("v1")}))
	require.NoError(t, wtx.Commit())

	rtx, err := mem.ReadTx()
	require.NoError(t, err)

	v, err := rtx.SubstateGetLatestVersion(id)
	require.NoError(t, err)
	require.Equal(t, uint32(1), v)

	r, err := rtx.SubstatesGet(shard.FromSubstateID(id, 1))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), r.Value)
	rtx.Close()

	wtx2, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx2.SubstatesDown(id, 0, substate.DestroyedBy{ByTx: block.TransactionID{7}}))
	require.ErrorIs(t, wtx2.SubstatesDown(id, 0, substate.DestroyedBy{}), ErrSubstateDown)
	require.ErrorIs(t, wtx2.SubstatesDown(testSubstateID(2), 0, substate.DestroyedBy{}), ErrNotFound)
	require.NoError(t, wtx2.Commit())
}

func TestMemoryStoreLocksAddAndRemoveForTransaction(t *testing.T) {
	mem := NewMemoryStore()
	id := testSubstateID(1)
	txA := block.TransactionID{0xA}
	txB := block.TransactionID{0xB}

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.LocksAdd(id, substate.Lock{TransactionID: txA, LockType: substate.LockRead}))
	require.NoError(t, wtx.LocksAdd(id, substate.Lock{TransactionID: txB, LockType: substate.LockRead}))
	require.NoError(t, wtx.Commit())

	rtx, err := mem.ReadTx()
	require.NoError(t, err)
	locks, err := rtx.LocksGet(id)
	require.NoError(t, err)
	require.Len(t, locks, 2)
	rtx.Close()

	wtx2, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx2.LocksRemoveForTransaction(txA))
	require.NoError(t, wtx2.Commit())

	rtx2, err := mem.ReadTx()
	require.NoError(t, err)
	defer rtx2.Close()
	locks, err = rtx2.LocksGet(id)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	require.Equal(t, txB, locks[0].TransactionID)
}

func TestMemoryStoreTransactionPoolInsertGetAndRemove(t *testing.T) {
	mem := NewMemoryStore()
	r := pool.NewRecord(block.TransactionID{1})

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.TransactionPoolInsert(r))
	require.NoError(t, wtx.Commit())

	rtx, err := mem.ReadTx()
	require.NoError(t, err)
	got, err := rtx.TransactionPoolGet(r.TransactionID)
	require.NoError(t, err)
	require.Equal(t, r, got)
	rtx.Close()

	wtx2, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx2.TransactionPoolRemove(r.TransactionID))
	require.NoError(t, wtx2.Commit())

	rtx2, err := mem.ReadTx()
	require.NoError(t, err)
	defer rtx2.Close()
	_, err = rtx2.TransactionPoolGet(r.TransactionID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTransactionPoolConfirmAndDiscardPending(t *testing.T) {
	mem := NewMemoryStore()
	r := pool.NewRecord(block.TransactionID{1})
	b := &block.Block{ID: block.ID{1}, Commands: []block.Command{
		block.NewPrepare(&block.TransactionAtom{TransactionID: block.TransactionID{1}}),
	}}

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.TransactionPoolInsert(r))
	require.NoError(t, wtx.BlocksInsert(b))
	require.NoError(t, wtx.TransactionPoolAddPendingUpdate(r.TransactionID, pool.PendingUpdate{
		BlockID:  b.ID,
		NewStage: pool.StagePrepared,
		Decision: block.Commit(),
		Evidence: block.NewEvidence(),
	}))
	require.NoError(t, wtx.TransactionPoolConfirmPending(b.ID))
	require.NoError(t, wtx.Commit())

	require.Equal(t, pool.StagePrepared, r.Stage)

	r.ProposePending(block.ID{2}, pool.StageLocalPrepared, block.Commit(), block.NewEvidence())
	wtx2, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx2.TransactionPoolDiscardPending(block.ID{2}))
	require.NoError(t, wtx2.Commit())
	require.Empty(t, r.Pending)
}

func TestMemoryStoreValidatorStatsRecordVoteAccumulates(t *testing.T) {
	mem := NewMemoryStore()
	nodeID := block.NodeID{1}

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.ValidatorStatsRecordVote(nodeID, 1, true))
	require.NoError(t, wtx.ValidatorStatsRecordVote(nodeID, 1, false))
	require.NoError(t, wtx.Commit())

	rtx, err := mem.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()

	stats, err := rtx.ValidatorStatsGet(nodeID, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), stats.BlocksTotal)
	require.Equal(t, uint64(1), stats.BlocksVoted)
	require.Equal(t, 0.5, stats.ParticipationShare())
}

func TestMemoryStoreSingletonsSetGet(t *testing.T) {
	mem := NewMemoryStore()
	sg := shard.NewShardGroup(1, 1)
	s := EpochSingletons{LeafBlockID: block.ID{5}}

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.SingletonsSet(3, sg, s))
	require.NoError(t, wtx.Commit())

	rtx, err := mem.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()

	got, err := rtx.SingletonsGet(3, sg)
	require.NoError(t, err)
	require.Equal(t, s, *got)

	_, err = rtx.SingletonsGet(99, sg)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreForeignProposalsInsertGet(t *testing.T) {
	mem := NewMemoryStore()
	sg := shard.NewShardGroup(1, 1)
	row := &ForeignProposalRow{ShardGroup: sg, BlockID: block.ID{1}, Block: &block.Block{ID: block.ID{1}}}

	wtx, err := mem.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.ForeignProposalsInsert(row))
	require.NoError(t, wtx.Commit())

	rtx, err := mem.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()

	got, err := rtx.ForeignProposalsGet(sg, block.ID{1})
	require.NoError(t, err)
	require.Equal(t, row, got)
}
