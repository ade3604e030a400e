// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/pendingstore"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/substate"
)

// fakeExecutor is a deterministic stand-in for a real execution
// engine, used only to exercise the Executor contract's shape.
type fakeExecutor struct {
	calls [][]ResolvedInput
}

var _ Executor = (*fakeExecutor)(nil)

func (f *fakeExecutor) Execute(ctx context.Context, txID block.TransactionID, inputs []ResolvedInput) (Result, error) {
	f.calls = append(f.calls, inputs)

	var fee uint64
	for _, in := range inputs {
		fee += uint64(len(in.Value))
	}

	return Result{
		Decision:       block.Commit(),
		TransactionFee: fee,
		Diff: substate.Diff{
			Ups: []substate.Change{substate.NewUpChange(&substate.Record{
				ID:          shard.SubstateId{Kind: shard.KindComponent},
				Version:     1,
				CreatedByTx: txID,
			})},
		},
		ResolvedLocks: []pendingstore.LockRequest{
			{ID: shard.SubstateId{Kind: shard.KindComponent}, LockType: substate.LockOutput},
		},
	}, nil
}

func TestFakeExecutorIsDeterministicGivenSameInputs(t *testing.T) {
	exec := &fakeExecutor{}
	txID := block.TransactionID{1}
	inputs := []ResolvedInput{
		{ID: shard.SubstateId{Kind: shard.KindComponent}, Version: 0, Value: []byte("abc"), LockType: substate.LockRead},
	}

	r1, err := exec.Execute(context.Background(), txID, inputs)
	require.NoError(t, err)
	r2, err := exec.Execute(context.Background(), txID, inputs)
	require.NoError(t, err)

	require.Equal(t, r1.Decision, r2.Decision)
	require.Equal(t, r1.TransactionFee, r2.TransactionFee)
	require.Len(t, exec.calls, 2)
}
