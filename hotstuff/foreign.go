// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hotstuff wires the pacemaker, gateway, transaction pool,
// pending substate store, and state tree into the four-phase
// commitment pipeline (spec.md §4.3-§4.5): the local proposal
// handler, the foreign proposal processor, and the block proposer.
// Grounded throughout on
// original_source/dan_layer/consensus/src/hotstuff/{on_ready_to_vote_on_local_block.rs,
// on_receive_foreign_proposal.rs, proposer/...} for control flow, and
// on engine/chain/engine.go's Stage-driven processing loop for the
// teacher's event-handling idiom.
package hotstuff

import (
	"errors"
	"fmt"

	"github.com/luxfi/log"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/storage"
)

var (
	// ErrForeignRecordMissing names the case of a foreign command that
	// references a transaction the local pool does not track.
	// ForeignHandler does not return it: processAtom logs a warning
	// and skips such commands.
	ErrForeignRecordMissing = errors.New("hotstuff: local transaction record missing for foreign command (gateway should have parked this proposal)")
	ErrForeignInvalidPledge = errors.New("hotstuff: foreign proposal pledge does not match its own evidence")
	ErrForeignMissingPledges = errors.New("hotstuff: foreign commit atom omitted required pledges")
	ErrForeignUnexpectedPledges = errors.New("hotstuff: foreign abort atom carries pledges")
)

// Phase discriminates which half of the pipeline a foreign command
// belongs to: LocalPrepare commands merge prepare evidence,
// LocalAccept commands merge accept evidence (spec.md §4.4).
type Phase uint8

const (
	PhasePrepare Phase = iota
	PhaseAccept
)

// ForeignHandler implements spec.md §4.4: called once per attached
// foreign proposal, for every command in it that names a transaction
// touching the local shard group.
type ForeignHandler struct {
	log           log.Logger
	localSG       shard.ShardGroup
	isOutputOnly  func(txID block.TransactionID, sg shard.ShardGroup) bool
}

// NewForeignHandler constructs a ForeignHandler for the local
// committee's shard group. isOutputOnly reports whether, from the
// local shard group's own perspective, a transaction only ever
// produces outputs there (no inputs) — the "output-only" fast path
// spec.md §4.4's pledge-validation rule exempts from requiring
// pledges at the prepare phase.
func NewForeignHandler(logger log.Logger, localSG shard.ShardGroup, isOutputOnly func(block.TransactionID, shard.ShardGroup) bool) *ForeignHandler {
	return &ForeignHandler{log: logger, localSG: localSG, isOutputOnly: isOutputOnly}
}

// ProcessForeignProposal walks every command in a foreign block that
// carries a TransactionAtom referencing the local shard group and
// applies spec.md §4.4's evidence-merge/readiness rules to the pool
// record, recording the resulting tentative transition against
// candidateBlockID — the *local* candidate block this foreign
// proposal was attached to (spec.md §4.3 step 3: "Foreign proposals
// attached to the message are individually validated and persisted").
func (h *ForeignHandler) ProcessForeignProposal(row storage.ForeignProposalRow, candidateBlockID block.ID, p *pool.Pool, isGlobal func(block.TransactionID) bool) error {
	for _, cmd := range row.Block.Commands {
		var phase Phase
		switch cmd.Kind {
		case block.CommandLocalPrepare:
			phase = PhasePrepare
		case block.CommandLocalAccept:
			phase = PhaseAccept
		default:
			continue
		}
		atom := cmd.Atom
		if atom == nil || !atom.Evidence.Has(h.localSG) {
			continue
		}
		pledges := row.BlockPledge[atom.TransactionID]
		global := isGlobal != nil && isGlobal(atom.TransactionID)
		if err := h.processAtom(row.ShardGroup, atom, phase, pledges, global, candidateBlockID, p); err != nil {
			return fmt.Errorf("hotstuff: foreign command %s for tx %s: %w", cmd.Kind, atom.TransactionID, err)
		}
	}
	return nil
}

func (h *ForeignHandler) processAtom(foreignSG shard.ShardGroup, atom *block.TransactionAtom, phase Phase, pledges []storage.SubstatePledge, isGlobal bool, candidateBlockID block.ID, p *pool.Pool) error {
	record, ok := p.Get(atom.TransactionID)
	if !ok {
		// The transaction is not tracked locally. The command is
		// logged as a warning and skipped on the assumption that the
		// transaction already finalized and left the pool; that
		// assumption is not checked, and no error is returned.
		h.log.Warn("foreign command references untracked transaction; assuming already finalized", "transactionID", atom.TransactionID)
		return nil
	}

	switch phase {
	case PhasePrepare:
		if record.Stage.IsPrepared() {
			// Idempotent: already moved past LocalPrepared locally.
			return nil
		}
	case PhaseAccept:
		if record.Stage.IsAccepted() {
			return nil
		}
	}

	newDecision := record.Decision
	group := atom.Evidence.Group(foreignSG)

	if atom.Decision.IsAbort {
		if len(pledges) > 0 {
			return ErrForeignUnexpectedPledges
		}
		if !record.Decision.IsAbort {
			newDecision = block.Abort(block.AbortReasonForeignShardGroupDecidedToAbort)
			h.log.Info("foreign shard group decided to abort",
				"transactionID", atom.TransactionID, "shardGroupStart", foreignSG.Start, "shardGroupEnd", foreignSG.End,
				"reason", atom.Decision.Reason)
		}
	} else if err := validatePledges(group, pledges, isGlobal); err != nil {
		return err
	}

	mergedEvidence := block.NewEvidence()
	for _, sg := range record.Evidence.ShardGroups() {
		g := record.Evidence.Group(sg)
		mergedEvidence.Group(sg).Inputs = copyInputs(g.Inputs)
		mergedEvidence.Group(sg).Outputs = copyOutputs(g.Outputs)
	}
	phaseTag := "prepare"
	if phase == PhaseAccept {
		phaseTag = "accept"
	}
	mergedEvidence.MergeGroup(foreignSG, group.Inputs, group.Outputs, phaseTag)

	nextStage, ready := h.nextStage(record, mergedEvidence, newDecision, phase, atom.TransactionID)
	if !ready {
		record.ProposePending(candidateBlockID, record.Stage, newDecision, mergedEvidence)
		return nil
	}
	record.ProposePending(candidateBlockID, nextStage, newDecision, mergedEvidence)
	h.log.Debug("foreign evidence merged, local transition proposed",
		"transactionID", atom.TransactionID, "nextStage", nextStage, "decision", newDecision)
	return nil
}

// nextStage implements spec.md §4.4's readiness advancement. Prepare
// phase: a record at New or Prepared moves to LocalPrepared once the
// decision is Abort, every shard group in the merged evidence has
// prepare evidence, or the local committee is output-only for this
// transaction. Accept phase: a prepared, not yet accepted record moves
// to AllAccepted once the decision is Abort or every shard group has
// accept evidence. Otherwise the stage is unchanged and ready is false.
func (h *ForeignHandler) nextStage(record *pool.Record, evidence block.Evidence, decision block.Decision, phase Phase, txID block.TransactionID) (pool.Stage, bool) {
	allPrepared := allGroupsSatisfy(evidence, (*block.GroupEvidence).HasPrepareQC)
	allAccepted := allGroupsSatisfy(evidence, (*block.GroupEvidence).HasAcceptQC)
	localOutputOnly := h.isOutputOnly != nil && h.isOutputOnly(txID, h.localSG)

	switch phase {
	case PhasePrepare:
		if record.Stage == pool.StageNew || record.Stage == pool.StagePrepared {
			if decision.IsAbort || allPrepared || localOutputOnly {
				return pool.StageLocalPrepared, true
			}
		}
	case PhaseAccept:
		if record.Stage.IsPrepared() && !record.Stage.IsAccepted() {
			if decision.IsAbort || allAccepted {
				return pool.StageAllAccepted, true
			}
		}
	}
	return record.Stage, false
}

func allGroupsSatisfy(e block.Evidence, pred func(*block.GroupEvidence) bool) bool {
	for _, sg := range e.ShardGroups() {
		if !pred(e.Group(sg)) {
			return false
		}
	}
	return true
}

// validatePledges implements spec.md §4.4's pledge rules for a Commit
// atom: when the foreign evidence names inputs, at least one pledge is
// required unless the group is output-only or the transaction is
// global (pledges are not matched one-for-one against the inputs);
// every pledge given must name an input or output of that evidence at
// the same version.
func validatePledges(group *block.GroupEvidence, pledges []storage.SubstatePledge, isGlobal bool) error {
	if len(group.Inputs) > 0 && len(pledges) == 0 && !group.IsOutputOnly() && !isGlobal {
		return ErrForeignMissingPledges
	}
	for _, pl := range pledges {
		key := pl.ID.String()
		if in, ok := group.Inputs[key]; ok {
			if in.Version != pl.Version {
				return fmt.Errorf("%w: input %s version %d != pledge version %d", ErrForeignInvalidPledge, key, in.Version, pl.Version)
			}
			continue
		}
		if out, ok := group.Outputs[key]; ok {
			if out.Version != pl.Version {
				return fmt.Errorf("%w: output %s version %d != pledge version %d", ErrForeignInvalidPledge, key, out.Version, pl.Version)
			}
			continue
		}
		return fmt.Errorf("%w: pledge %s not named in evidence", ErrForeignInvalidPledge, key)
	}
	return nil
}

func copyInputs(m map[string]block.InputEvidence) map[string]block.InputEvidence {
	out := make(map[string]block.InputEvidence, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyOutputs(m map[string]block.OutputEvidence) map[string]block.OutputEvidence {
	out := make(map[string]block.OutputEvidence, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
