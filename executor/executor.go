// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor defines the transaction execution capability
// spec.md §4.5/§7 treats as an external collaborator: given a
// transaction and its resolved inputs, produce a decision, resulting
// substate diff, the locks taken, the fee charged, and log output.
// Execution must be deterministic given the same inputs (spec.md §7) —
// this package only states that contract; the engine backing it (a
// WASM runtime, a native VM) is out of this module's scope, matching
// spec.md's Non-goals around execution engine internals.
package executor

import (
	"context"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/pendingstore"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/substate"
)

// ResolvedInput is one input substate resolved to a concrete value
// (either found locally or pledged by a foreign shard group).
type ResolvedInput struct {
	ID       shard.SubstateId
	Version  uint32
	Value    []byte
	LockType substate.LockType
}

// Result is the outcome of executing one transaction.
type Result struct {
	Decision       block.Decision
	Diff           substate.Diff
	ResolvedLocks  []pendingstore.LockRequest
	TransactionFee uint64
	Logs           []string
}

// Executor runs a transaction against its resolved inputs. spec.md
// §7 requires this to be a pure function of (transaction, inputs): no
// external I/O, wall-clock reads, or randomness, so that every
// validator that ran the same inputs reaches the same Result.
type Executor interface {
	Execute(ctx context.Context, txID block.TransactionID, inputs []ResolvedInput) (Result, error)
}
