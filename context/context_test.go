// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package context

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/shardbft/consensus/internal/api/metrics"
)

func testNodeContext() *NodeContext {
	return &NodeContext{
		NetworkID: 96369,
		SubnetID:  ids.GenerateTestID(),
		NodeID:    ids.GenerateTestNodeID(),
		PublicKey: []byte("test-public-key"),
		Log:       log.NoLog{},
		Metrics:   metrics.NewMultiGatherer(),
		StartTime: time.Now(),
	}
}

func TestWithContextFromContext(t *testing.T) {
	nc := testNodeContext()
	ctx := WithContext(context.Background(), nc)

	retrieved := FromContext(ctx)
	require.NotNil(t, retrieved)
	require.Equal(t, nc.NodeID, retrieved.NodeID)
	require.Equal(t, nc.SubnetID, retrieved.SubnetID)
	require.Equal(t, nc.NetworkID, retrieved.NetworkID)
}

func TestFromContextEmpty(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))
}

func TestGetNodeID(t *testing.T) {
	require.Equal(t, ids.EmptyNodeID, GetNodeID(context.Background()))

	nc := testNodeContext()
	ctx := WithContext(context.Background(), nc)
	require.Equal(t, nc.NodeID, GetNodeID(ctx))
}

func TestGetSubnetID(t *testing.T) {
	require.Equal(t, ids.Empty, GetSubnetID(context.Background()))

	nc := testNodeContext()
	ctx := WithContext(context.Background(), nc)
	require.Equal(t, nc.SubnetID, GetSubnetID(ctx))
}
