// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"github.com/shardbft/consensus/shard"
)

// LockType mirrors spec.md §3's SubstateLock.lock_type.
type LockType uint8

const (
	LockRead LockType = iota
	LockWrite
	LockOutput
)

func (t LockType) String() string {
	switch t {
	case LockRead:
		return "Read"
	case LockWrite:
		return "Write"
	case LockOutput:
		return "Output"
	default:
		return "Unknown"
	}
}

// InputEvidence records one input substate a transaction touches
// within a single shard group, and the QC ids (if any) that have
// observed the prepare/accept steps for it.
type InputEvidence struct {
	ID        shard.SubstateId
	Version   uint32
	LockType  LockType
	PrepareQC *ID
	AcceptQC  *ID
}

// OutputEvidence records one output substate version a transaction
// produces within a shard group.
type OutputEvidence struct {
	ID      shard.SubstateId
	Version uint32
}

// GroupEvidence is the per-shard-group slice of Evidence: which
// inputs/outputs this transaction touches there, keyed by the
// substate id's canonical string form (SubstateId isn't map-key-safe
// because NonFungible ids may carry a []byte payload).
type GroupEvidence struct {
	Inputs  map[string]InputEvidence
	Outputs map[string]OutputEvidence
}

func newGroupEvidence() *GroupEvidence {
	return &GroupEvidence{
		Inputs:  make(map[string]InputEvidence),
		Outputs: make(map[string]OutputEvidence),
	}
}

// Evidence is the full per-shard-group evidence map for a
// transaction (spec.md §3). Evidence is monotonic-merge across
// foreign proposals: Merge only ever adds information, and Clear
// drops one shard group's entry entirely (used on abort).
type Evidence map[shard.ShardGroup]*GroupEvidence

func NewEvidence() Evidence { return make(Evidence) }

// Group returns (creating if necessary) the evidence slice for sg.
func (e Evidence) Group(sg shard.ShardGroup) *GroupEvidence {
	g, ok := e[sg]
	if !ok {
		g = newGroupEvidence()
		e[sg] = g
	}
	return g
}

// Has reports whether evidence for sg has been recorded at all.
func (e Evidence) Has(sg shard.ShardGroup) bool {
	_, ok := e[sg]
	return ok
}

// Clear drops a shard group's evidence entirely — used when a
// foreign shard group's decision flips to Abort and the local
// record's evidence for it must be discarded (spec.md §3).
func (e Evidence) Clear(sg shard.ShardGroup) {
	delete(e, sg)
}

// ShardGroups returns the shard groups this evidence currently
// covers.
func (e Evidence) ShardGroups() []shard.ShardGroup {
	out := make([]shard.ShardGroup, 0, len(e))
	for sg := range e {
		out = append(out, sg)
	}
	return out
}

// MergeGroup merges a foreign shard group's evidence into e,
// attaching prepareQC (or acceptQC) to every input it lists, and
// recording every output. The merge is monotonic: an existing
// PrepareQC/AcceptQC is never cleared by a later merge, only ever
// set (spec.md §4.4).
func (e Evidence) MergeGroup(sg shard.ShardGroup, inputs map[string]InputEvidence, outputs map[string]OutputEvidence, phase string) {
	g := e.Group(sg)
	for k, in := range inputs {
		existing, ok := g.Inputs[k]
		if !ok {
			existing = in
			if phase == "prepare" {
				existing.PrepareQC = in.PrepareQC
			} else {
				existing.AcceptQC = in.AcceptQC
			}
			g.Inputs[k] = existing
			continue
		}
		if phase == "prepare" && existing.PrepareQC == nil {
			existing.PrepareQC = in.PrepareQC
		}
		if phase == "accept" && existing.AcceptQC == nil {
			existing.AcceptQC = in.AcceptQC
		}
		g.Inputs[k] = existing
	}
	for k, out := range outputs {
		if _, ok := g.Outputs[k]; !ok {
			g.Outputs[k] = out
		}
	}
}

// IsOutputOnly reports whether sg's recorded evidence for this
// transaction contains only outputs (no inputs) — the fast-path
// condition referenced throughout spec.md §4.4/§4.6.
func (g *GroupEvidence) IsOutputOnly() bool {
	return len(g.Inputs) == 0 && len(g.Outputs) > 0
}

// HasPrepareQC reports whether every input in this group evidence has
// been observed by a LocalPrepare QC.
func (g *GroupEvidence) HasPrepareQC() bool {
	for _, in := range g.Inputs {
		if in.PrepareQC == nil {
			return false
		}
	}
	return true
}

// HasAcceptQC reports whether every input in this group evidence has
// been observed by a LocalAccept QC.
func (g *GroupEvidence) HasAcceptQC() bool {
	for _, in := range g.Inputs {
		if in.AcceptQC == nil {
			return false
		}
	}
	return true
}
