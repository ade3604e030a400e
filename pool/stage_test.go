// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageCanContinueToForwardPipeline(t *testing.T) {
	require.True(t, StageNew.CanContinueTo(StagePrepared))
	require.True(t, StagePrepared.CanContinueTo(StageLocalPrepared))
	require.True(t, StageLocalPrepared.CanContinueTo(StageAllPrepared))
	require.True(t, StageLocalPrepared.CanContinueTo(StageSomePrepared))
	require.True(t, StageAllPrepared.CanContinueTo(StageLocalAccepted))
	require.True(t, StageSomePrepared.CanContinueTo(StageLocalAccepted))
	require.True(t, StageLocalAccepted.CanContinueTo(StageAllAccepted))
	require.True(t, StageLocalAccepted.CanContinueTo(StageSomeAccepted))
}

func TestStageCanContinueToRejectsBackwardOrSkippedMoves(t *testing.T) {
	require.False(t, StageNew.CanContinueTo(StageLocalPrepared), "must not skip Prepared")
	require.False(t, StagePrepared.CanContinueTo(StageNew), "must not move backward")
	require.False(t, StageAllPrepared.CanContinueTo(StageAllPrepared), "a stage never continues to itself")
}

func TestStageCanContinueToAllowsOutputOnlyFastPathToLocalAccepted(t *testing.T) {
	require.True(t, StagePrepared.CanContinueTo(StageLocalAccepted), "output-only transactions skip straight past the prepare stages")
	require.True(t, StageLocalPrepared.CanContinueTo(StageLocalAccepted))
}

func TestStageCanContinueToAllowsMovingBetweenSameOrderSiblings(t *testing.T) {
	// AllPrepared/SomePrepared (and AllAccepted/SomeAccepted) share an
	// order slot; CanContinueTo treats same-order, different-stage as
	// a legal move since the two are mutually exclusive outcomes of
	// the same pipeline step, not a forward/backward distinction.
	require.True(t, StageAllPrepared.CanContinueTo(StageSomePrepared))
	require.True(t, StageSomePrepared.CanContinueTo(StageAllPrepared))
}

func TestStageLocalOnlyOnlyReachableFromNew(t *testing.T) {
	require.True(t, StageNew.CanContinueTo(StageLocalOnly))
	require.False(t, StagePrepared.CanContinueTo(StageLocalOnly))
	require.False(t, StageLocalOnly.CanContinueTo(StageAllAccepted), "LocalOnly is terminal")
}

func TestStageIsPreparedIsAcceptedIsReadyToCommit(t *testing.T) {
	require.False(t, StageNew.IsPrepared())
	require.False(t, StagePrepared.IsPrepared())
	require.True(t, StageLocalPrepared.IsPrepared())
	require.True(t, StageAllPrepared.IsPrepared())
	require.False(t, StageLocalOnly.IsPrepared())

	require.False(t, StageAllPrepared.IsAccepted())
	require.True(t, StageLocalAccepted.IsAccepted())
	require.True(t, StageLocalOnly.IsAccepted())

	require.True(t, StageAllAccepted.IsReadyToCommit())
	require.True(t, StageSomeAccepted.IsReadyToCommit())
	require.True(t, StageLocalOnly.IsReadyToCommit())
	require.False(t, StageLocalAccepted.IsReadyToCommit())
}
