// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultHotstuffParamsValid(t *testing.T) {
	require.NoError(t, DefaultHotstuffParams().Valid())
	require.NoError(t, LocalNetHotstuffParams().Valid())
}

func TestHotstuffParamsValidRejectsBadFields(t *testing.T) {
	base := DefaultHotstuffParams()

	bad := base
	bad.BlockTime = 0
	require.Error(t, bad.Valid())

	bad = base
	bad.MaxLeaderFailureTime = base.BaseLeaderFailureTime - time.Millisecond
	require.Error(t, bad.Valid())

	bad = base
	bad.EvictionParticipationThreshold = 1.5
	require.Error(t, bad.Valid())

	bad = base
	bad.EvictionWindowBlocks = 0
	require.Error(t, bad.Valid())

	bad = base
	bad.MaxBlockCommands = 0
	require.Error(t, bad.Valid())
}

func TestDefaultHotstuffParamsDerivedTimeouts(t *testing.T) {
	p := DefaultHotstuffParams()
	require.Equal(t, 2*p.BlockTime, p.ForeignProposalRequestTimeout)
	require.Equal(t, 10*p.BlockTime, p.MissingForeignProposalTimeout)
}
