// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hotstuff

import (
	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/pendingstore"
	"github.com/shardbft/consensus/substate"
)

// VoteDecision is what the local proposal handler decided for a
// candidate block: Vote{Accept} or NoVote{reason} (spec.md §4.3).
type VoteDecision struct {
	Accept bool
	Reason string
}

func Accept() VoteDecision { return VoteDecision{Accept: true} }

func NoVote(reason string) VoteDecision { return VoteDecision{Accept: false, Reason: reason} }

// ChangeSet is the tentative result of processing one candidate block
// through the four-phase pipeline: every pool transition was already
// recorded against the block's id via Record.ProposePending (so it's
// visible to other candidates built on top before this one locks in),
// and everything else gathered here is only committed to durable
// storage once the block is locked (spec.md §4.3: "all writes for one
// proposal commit atomically or not at all", and spec.md §4.6:
// "tentative until the block carrying them is locked in").
type ChangeSet struct {
	BlockID  block.ID
	ParentID block.ID

	// TouchedTransactions lists every transaction id this block's
	// commands proposed a pending update for — the set
	// pool.ConfirmAllTransitions/storage.TransactionPoolConfirmPending
	// needs on commit.
	TouchedTransactions []block.TransactionID

	// SubstateDiff is every substate change the block's commands
	// produced, in command order (spec.md §4.8's ordering
	// requirement).
	SubstateDiff []substate.Change

	// NewLocks is every lock granted while processing this block, by
	// SubstateId string.
	NewLocks map[string][]substate.Lock

	// EvictedPubKeys lists the validator public keys this block's
	// EvictNode commands named.
	EvictedPubKeys [][]byte

	// EndsEpoch is true if this block carries an EndEpoch command.
	EndsEpoch bool
}

// newChangeSet adapts a pendingstore.Store's accumulated diff/locks
// into a ChangeSet once a candidate block has finished processing.
func newChangeSet(blockID, parentID block.ID, touched []block.TransactionID, store *pendingstore.Store) *ChangeSet {
	return &ChangeSet{
		BlockID:             blockID,
		ParentID:            parentID,
		TouchedTransactions: touched,
		SubstateDiff:        store.Diff(),
		NewLocks:            store.NewLocks(),
	}
}
