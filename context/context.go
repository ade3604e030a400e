// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package context carries the per-process, per-shard-group identity
// and collaborator handles the node/ event loop and its subsystems
// share: this node's id and subnet, the structured logger, and the
// metrics registry every component registers its gauges/counters into
// (spec.md §5/§9's ambient concerns). Narrowed from a generic
// avalanchego VM-context grab-bag (XChainID/CChainID/WarpSigner/
// NetworkUpgrades — snowman-VM concepts with no counterpart in a
// sharded-L2 validator) down to the fields this module's components
// actually read; see DESIGN.md for what was dropped and why.
package context

import (
	"context"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/shardbft/consensus/internal/api/metrics"
)

// NodeContext is the identity and collaborator bundle threaded
// through the node package's Engine and its subsystems.
type NodeContext struct {
	// NetworkID is the numeric network identifier (1=mainnet, 2=testnet).
	NetworkID uint32
	// SubnetID identifies the validator set this node's committees are
	// drawn from (github.com/luxfi/validators.State's subnet argument).
	SubnetID ids.ID
	// NodeID is this validator's own identity.
	NodeID ids.NodeID
	// PublicKey is this validator's BLS public key, compressed.
	PublicKey []byte

	Log     log.Logger
	Metrics metrics.MultiGatherer

	StartTime time.Time
}

type contextKeyType struct{}

var contextKey = contextKeyType{}

// WithContext attaches nc to ctx.
func WithContext(ctx context.Context, nc *NodeContext) context.Context {
	return context.WithValue(ctx, contextKey, nc)
}

// FromContext retrieves the NodeContext attached by WithContext, or
// nil if none was attached.
func FromContext(ctx context.Context) *NodeContext {
	nc, _ := ctx.Value(contextKey).(*NodeContext)
	return nc
}

// GetNodeID returns the attached NodeContext's NodeID, or the empty
// node id if none is attached.
func GetNodeID(ctx context.Context) ids.NodeID {
	if nc := FromContext(ctx); nc != nil {
		return nc.NodeID
	}
	return ids.EmptyNodeID
}

// GetSubnetID returns the attached NodeContext's SubnetID, or the
// empty id if none is attached.
func GetSubnetID(ctx context.Context) ids.ID {
	if nc := FromContext(ctx); nc != nil {
		return nc.SubnetID
	}
	return ids.Empty
}
