// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hotstuff

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/storage"
)

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.New(log.NoLog{}, prometheus.NewRegistry())
	require.NoError(t, err)
	return p
}

func sgLocal() shard.ShardGroup  { return shard.NewShardGroup(1, 2) }
func sgRemote() shard.ShardGroup { return shard.NewShardGroup(3, 4) }

func testSubstateID(t *testing.T, seed byte) shard.SubstateId {
	t.Helper()
	var key shard.ObjectKey
	key[0] = seed
	return shard.SubstateId{Kind: shard.KindComponent, Key: key}
}

func TestForeignHandlerMergesPrepareEvidenceAndAdvances(t *testing.T) {
	p := newTestPool(t)
	txID := ids.GenerateTestID()
	rec := p.GetOrCreate(txID)

	subID := testSubstateID(t, 1)
	key := subID.String()
	rec.Evidence.Group(sgRemote()).Inputs[key] = block.InputEvidence{ID: subID, Version: 1, LockType: block.LockWrite}

	h := NewForeignHandler(log.NoLog{}, sgLocal(), nil)

	ev := block.NewEvidence()
	ev.Group(sgLocal())
	ev.Group(sgRemote()).Inputs[key] = block.InputEvidence{
		ID: subID, Version: 1, LockType: block.LockWrite, PrepareQC: &block.ID{1},
	}
	atom := &block.TransactionAtom{TransactionID: txID, Decision: block.Commit(), Evidence: ev}

	row := storage.ForeignProposalRow{
		ShardGroup: sgRemote(),
		Block: &block.Block{
			Commands: []block.Command{block.NewLocalPrepare(atom)},
		},
		BlockPledge: map[block.TransactionID][]storage.SubstatePledge{
			txID: {{ID: subID, Version: 1}},
		},
	}

	candidateBlockID := block.ID{9}
	require.NoError(t, h.ProcessForeignProposal(row, candidateBlockID, p, nil))

	pending, ok := rec.PendingFor(candidateBlockID)
	require.True(t, ok)
	require.Equal(t, pool.StageLocalPrepared, pending.NewStage)
	require.False(t, pending.Decision.IsAbort)
}

func TestForeignHandlerPropagatesAbort(t *testing.T) {
	p := newTestPool(t)
	txID := ids.GenerateTestID()
	rec := p.GetOrCreate(txID)

	subID := testSubstateID(t, 2)
	key := subID.String()
	rec.Evidence.Group(sgRemote()).Inputs[key] = block.InputEvidence{ID: subID, Version: 1, LockType: block.LockWrite}

	h := NewForeignHandler(log.NoLog{}, sgLocal(), nil)

	ev := block.NewEvidence()
	ev.Group(sgLocal())
	ev.Group(sgRemote()).Inputs[key] = block.InputEvidence{ID: subID, Version: 1, LockType: block.LockWrite}
	atom := &block.TransactionAtom{
		TransactionID: txID,
		Decision:      block.Abort(block.AbortReasonLockConflict),
		Evidence:      ev,
	}

	row := storage.ForeignProposalRow{
		ShardGroup: sgRemote(),
		Block: &block.Block{
			Commands: []block.Command{block.NewLocalPrepare(atom)},
		},
	}

	candidateBlockID := block.ID{7}
	require.NoError(t, h.ProcessForeignProposal(row, candidateBlockID, p, nil))

	pending, ok := rec.PendingFor(candidateBlockID)
	require.True(t, ok)
	require.True(t, pending.Decision.IsAbort)
	require.Equal(t, block.AbortReasonForeignShardGroupDecidedToAbort, pending.Decision.Reason)
	require.Equal(t, pool.StageLocalPrepared, pending.NewStage)
}

func TestForeignHandlerSkipsUntrackedTransaction(t *testing.T) {
	p := newTestPool(t)
	h := NewForeignHandler(log.NoLog{}, sgLocal(), nil)

	subID := testSubstateID(t, 3)
	ev := block.NewEvidence()
	ev.Group(sgLocal())
	ev.Group(sgRemote()).Inputs[subID.String()] = block.InputEvidence{ID: subID, Version: 1}
	atom := &block.TransactionAtom{TransactionID: ids.GenerateTestID(), Decision: block.Commit(), Evidence: ev}

	row := storage.ForeignProposalRow{
		ShardGroup: sgRemote(),
		Block: &block.Block{
			Commands: []block.Command{block.NewLocalPrepare(atom)},
		},
	}
	require.NoError(t, h.ProcessForeignProposal(row, block.ID{1}, p, nil))
}

func TestForeignHandlerRejectsCommitWithoutPledges(t *testing.T) {
	subID := testSubstateID(t, 4)
	group := &block.GroupEvidence{
		Inputs:  map[string]block.InputEvidence{subID.String(): {ID: subID, Version: 1}},
		Outputs: map[string]block.OutputEvidence{},
	}
	err := validatePledges(group, nil, false)
	require.ErrorIs(t, err, ErrForeignMissingPledges)
}

func TestForeignHandlerAllowsCommitWithoutPledgesWhenOutputOnly(t *testing.T) {
	outID := testSubstateID(t, 5)
	group := &block.GroupEvidence{
		Inputs:  map[string]block.InputEvidence{},
		Outputs: map[string]block.OutputEvidence{outID.String(): {ID: outID, Version: 1}},
	}
	require.NoError(t, validatePledges(group, nil, false))
}

func TestForeignHandlerAllowsCommitWithoutPledgesWhenGlobal(t *testing.T) {
	subID := testSubstateID(t, 6)
	group := &block.GroupEvidence{
		Inputs:  map[string]block.InputEvidence{subID.String(): {ID: subID, Version: 1}},
		Outputs: map[string]block.OutputEvidence{},
	}
	require.NoError(t, validatePledges(group, nil, true))
}

func TestForeignHandlerRejectsPledgeNotInEvidence(t *testing.T) {
	subID := testSubstateID(t, 7)
	group := &block.GroupEvidence{
		Inputs:  map[string]block.InputEvidence{subID.String(): {ID: subID, Version: 1}},
		Outputs: map[string]block.OutputEvidence{},
	}
	stray := testSubstateID(t, 8)
	pledges := []storage.SubstatePledge{{ID: stray, Version: 1}}
	err := validatePledges(group, pledges, false)
	require.ErrorIs(t, err, ErrForeignInvalidPledge)
}

func TestForeignHandlerRejectsPledgeVersionMismatch(t *testing.T) {
	subID := testSubstateID(t, 9)
	group := &block.GroupEvidence{
		Inputs:  map[string]block.InputEvidence{subID.String(): {ID: subID, Version: 1}},
		Outputs: map[string]block.OutputEvidence{},
	}
	pledges := []storage.SubstatePledge{{ID: subID, Version: 2}}
	err := validatePledges(group, pledges, false)
	require.ErrorIs(t, err, ErrForeignInvalidPledge)
}

func TestForeignHandlerRejectsAbortWithPledges(t *testing.T) {
	p := newTestPool(t)
	txID := ids.GenerateTestID()
	rec := p.GetOrCreate(txID)
	subID := testSubstateID(t, 10)
	rec.Evidence.Group(sgRemote()).Inputs[subID.String()] = block.InputEvidence{ID: subID, Version: 1}

	h := NewForeignHandler(log.NoLog{}, sgLocal(), nil)

	ev := block.NewEvidence()
	ev.Group(sgLocal())
	ev.Group(sgRemote()).Inputs[subID.String()] = block.InputEvidence{ID: subID, Version: 1}
	atom := &block.TransactionAtom{
		TransactionID: txID,
		Decision:      block.Abort(block.AbortReasonExecutionFailure),
		Evidence:      ev,
	}
	row := storage.ForeignProposalRow{
		ShardGroup: sgRemote(),
		Block: &block.Block{
			Commands: []block.Command{block.NewLocalPrepare(atom)},
		},
		BlockPledge: map[block.TransactionID][]storage.SubstatePledge{
			txID: {{ID: subID, Version: 1}},
		},
	}
	err := h.ProcessForeignProposal(row, block.ID{1}, p, nil)
	require.ErrorIs(t, err, ErrForeignUnexpectedPledges)
}
