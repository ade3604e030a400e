// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package node implements spec.md §5's single-threaded cooperative
// event loop: the chained-HotStuff three-chain commit rule, and the
// atomic application of a hotstuff.ChangeSet to durable storage, the
// sparse Merkle state tree, and the transaction pool once a block
// locks in. Grounded on
// original_source/dan_layer/consensus/src/hotstuff/on_receive_vote.rs
// (the vote-driven commit check) and on engine/chain/engine.go's
// single-goroutine, callback-driven loop shape for the surrounding Go
// idiom — generalized from snowman's single-chain finality to the
// three-generation justify-chain rule spec.md §4.1 describes.
package node

import (
	"errors"
	"fmt"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/hotstuff"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/statetree"
	"github.com/shardbft/consensus/storage"
	"github.com/shardbft/consensus/substate"
)

// ErrNotCommittable means the candidate's justify-chain does not yet
// reach back three consecutive heights, so no new block locks in.
// This is the ordinary, expected case for most candidates — callers
// should treat it as "nothing to commit" rather than a failure.
var ErrNotCommittable = errors.New("node: candidate does not complete a three-chain")

// ThreeChainCommit implements spec.md §4.1's locking rule: "if blocks
// b1 -> b2 -> b3 are such that b_{k+1}.justify.block = b_k, then b1 is
// locked after b3 is proposed." Given the newly-processed candidate
// playing the role of b3, it walks the justify chain b3.justify -> b2,
// b2.justify -> b1, checks that each step is also the chain's direct
// parent at a consecutive height (so the chain being justified is the
// same chain being extended, not a fork), and returns b1 — the block
// that becomes the new LockedBlock — once both steps hold.
//
// Returns ErrNotCommittable (wrapped) when the candidate's ancestry is
// too shallow or not yet justified three deep; any other error means
// the chain is corrupt or storage failed.
func ThreeChainCommit(rtx storage.ReadTx, candidate *block.Block) (*block.Block, error) {
	if candidate.Justify.IsGenesis() {
		return nil, fmt.Errorf("%w: justify is genesis", ErrNotCommittable)
	}

	b2, err := rtx.BlocksGet(candidate.Justify.BlockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: justify block %s not found", ErrNotCommittable, candidate.Justify.BlockID)
		}
		return nil, fmt.Errorf("node: resolve justify block: %w", err)
	}
	if b2.ID != candidate.ParentID || candidate.Height != b2.Height+1 {
		return nil, fmt.Errorf("%w: justify block is not candidate's direct parent at a consecutive height", ErrNotCommittable)
	}

	if b2.Justify.IsGenesis() {
		return nil, fmt.Errorf("%w: grandparent justify is genesis", ErrNotCommittable)
	}
	b1, err := rtx.BlocksGet(b2.Justify.BlockID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: grandparent justify block %s not found", ErrNotCommittable, b2.Justify.BlockID)
		}
		return nil, fmt.Errorf("node: resolve grandparent justify block: %w", err)
	}
	if b1.ID != b2.ParentID || b2.Height != b1.Height+1 {
		return nil, fmt.Errorf("%w: grandparent justify block is not parent's direct parent at a consecutive height", ErrNotCommittable)
	}

	return b1, nil
}

// ApplyChangeSet commits one block's tentative ChangeSet atomically to
// wtx and tree, per spec.md §4.3/§5 ("all writes for one proposal
// commit atomically or not at all"): substates move up/down, new locks
// are persisted, every touched pool record's pending transition is
// confirmed, and the state tree is updated to match. Singleton
// bookkeeping (LastExecuted, LockedBlockID, ...), committee eviction,
// and epoch transitions are the caller's responsibility (Engine.commitChain)
// since they depend on the whole chain of newly-locked blocks, not one
// ChangeSet in isolation. ApplyChangeSet does not call
// wtx.Commit/Rollback — the caller controls the transaction boundary
// so several blocks' ChangeSets (e.g. ancestors skipped over by a
// three-chain jump) can be folded into one commit.
func ApplyChangeSet(wtx storage.WriteTx, tree *statetree.Tree, cs *hotstuff.ChangeSet) error {
	var downs []statetree.DownLeaf
	var ups []statetree.UpLeaf

	for _, change := range cs.SubstateDiff {
		switch change.Kind {
		case substate.ChangeUp:
			if err := wtx.SubstatesUp(change.Up); err != nil {
				return fmt.Errorf("node: apply up-substate %s: %w", change.Up.ID, err)
			}
			ups = append(ups, statetree.UpLeaf{Address: change.Up.Address(), Value: change.Up.Value})
		case substate.ChangeDown:
			down := change.Down
			if err := wtx.SubstatesDown(down.ID, down.Version, down.Destroyed); err != nil {
				return fmt.Errorf("node: apply down-substate %s: %w", down.ID, err)
			}
			downs = append(downs, statetree.DownLeaf{Address: shard.FromSubstateID(down.ID, down.Version)})
		}
	}
	tree.ApplyDownUp(downs, ups)

	for idKey, locks := range cs.NewLocks {
		id, err := shard.ParseSubstateId(idKey)
		if err != nil {
			return fmt.Errorf("node: parse lock owner id %q: %w", idKey, err)
		}
		for _, l := range locks {
			if err := wtx.LocksAdd(id, l); err != nil {
				return fmt.Errorf("node: add lock for %s: %w", id, err)
			}
		}
	}

	if err := wtx.TransactionPoolConfirmPending(cs.BlockID); err != nil {
		return fmt.Errorf("node: confirm pending pool transitions for block %s: %w", cs.BlockID, err)
	}

	return nil
}
