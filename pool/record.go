// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"github.com/shardbft/consensus/block"
)

// PendingUpdate is a tentative stage transition attached to a
// not-yet-committed block (spec.md §4.6: "new evidence/stage changes
// are tentative until the block carrying them is locked in"). Several
// pending updates for the same record can coexist across sibling
// candidate blocks; only the branch that gets locked survives.
type PendingUpdate struct {
	BlockID  block.ID
	NewStage Stage
	Decision block.Decision
	Evidence block.Evidence
}

// Record is a TransactionPoolRecord (spec.md §3): the pool's current
// view of a transaction's pipeline stage, merged evidence, and
// decision, plus any tentative updates proposed by not-yet-committed
// blocks.
type Record struct {
	TransactionID block.TransactionID

	// Stage/Decision/Evidence are the last *committed* view.
	Stage    Stage
	Decision block.Decision
	Evidence block.Evidence

	TransactionFee uint64
	LeaderFee      *uint64

	// Pending holds tentative transitions keyed by the candidate
	// block id that proposed them, in the order they were proposed.
	Pending []PendingUpdate
}

// NewRecord creates a fresh pool record in stage New.
func NewRecord(txID block.TransactionID) *Record {
	return &Record{
		TransactionID: txID,
		Stage:         StageNew,
		Decision:      block.Commit(),
		Evidence:      block.NewEvidence(),
	}
}

// ProposePending records a tentative transition for blockID without
// touching the committed view. It is the caller's responsibility to
// have already checked Stage.CanContinueTo(newStage).
func (r *Record) ProposePending(blockID block.ID, newStage Stage, decision block.Decision, evidence block.Evidence) {
	r.Pending = append(r.Pending, PendingUpdate{
		BlockID:  blockID,
		NewStage: newStage,
		Decision: decision,
		Evidence: evidence,
	})
}

// PendingFor returns the tentative update proposed for blockID, if
// any.
func (r *Record) PendingFor(blockID block.ID) (PendingUpdate, bool) {
	for _, p := range r.Pending {
		if p.BlockID == blockID {
			return p, true
		}
	}
	return PendingUpdate{}, false
}

// ConfirmTransition commits the tentative update proposed for
// lockedBlockID and discards every other pending update — the branch
// that didn't get locked in never happens (spec.md §4.6
// confirm_all_transitions, applied one record at a time by the
// caller for every record touched by the locked block).
func (r *Record) ConfirmTransition(lockedBlockID block.ID) bool {
	update, ok := r.PendingFor(lockedBlockID)
	if !ok {
		return false
	}
	r.Stage = update.NewStage
	r.Decision = r.Decision.And(update.Decision)
	mergeEvidenceInto(r.Evidence, update.Evidence)
	r.Pending = nil
	return true
}

// DiscardPending drops every tentative update without committing any
// of them — used when a candidate block is abandoned (it lost a view
// change, or a sibling got locked instead).
func (r *Record) DiscardPending() {
	r.Pending = nil
}

// mergeEvidenceInto monotonically merges src into dst, group by
// group, preserving dst's existing PrepareQC/AcceptQC (spec.md §4.4).
func mergeEvidenceInto(dst, src block.Evidence) {
	for _, sg := range src.ShardGroups() {
		g := src.Group(sg)
		dst.MergeGroup(sg, g.Inputs, g.Outputs, "prepare")
		dst.MergeGroup(sg, g.Inputs, g.Outputs, "accept")
	}
}
