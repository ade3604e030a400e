// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votecollector aggregates per-block Vote and NewView
// messages into the quorum-level artifacts the rest of the pipeline
// consumes: a QuorumCertificate once 2/3 of a committee's weight has
// voted Accept for the same block, and the highest NewView weight
// reached for a given height (spec.md §4.1's "force_beat fires when
// NEWVIEW quorum reached", and §3's QuorumCertificate definition).
// Control flow per spec.md §4.2 is "inbound messages → gateway →
// {local handler | foreign handler | vote collector | sync}"; this
// package is that fourth destination.
//
// Grounded on utils/bag.Bag (re-purposed here from a plain element
// counter to a weighted-vote tally keyed by block id/height) and
// utils/set.Set (deduplicating voters so a duplicate or equivocating
// Vote from one validator cannot double-count toward quorum).
package votecollector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/log"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/committee"
	"github.com/shardbft/consensus/utils/bag"
	"github.com/shardbft/consensus/utils/set"
	"github.com/shardbft/consensus/wire"
)

var (
	// ErrUnknownVoter means a Vote or NewView's claimed signer is not a
	// member of the committee this collector was built for.
	ErrUnknownVoter = errors.New("votecollector: signer is not a committee member")
	// ErrEquivocation means the same voter cast two different
	// decisions for the same block. NewViewCollector does not return
	// it.
	ErrEquivocation = errors.New("votecollector: voter equivocated")
)

// BlockCollector accumulates Vote messages for exactly one block id
// until a quorum of Accepts (yielding a QuorumCertificate) is reached.
// Rejects are tallied but never end collection, even once a quorum of
// Accepts can no longer be reached.
type BlockCollector struct {
	log       log.Logger
	committee committee.Committee
	blockID   block.ID
	height    uint64
	epoch     uint64

	weightByNodeID map[block.NodeID]uint64
	decisionOf     map[block.NodeID]wire.VoteDecision
	signatureOf    map[block.NodeID][]byte

	acceptWeight bag.Bag[wire.VoteDecision]
	voters       set.Set[block.NodeID]

	qc *block.QuorumCertificate
}

// NewBlockCollector constructs a collector for one (blockID, height)
// pair within comm.
func NewBlockCollector(logger log.Logger, comm committee.Committee, epoch uint64, blockID block.ID, height uint64) *BlockCollector {
	weight := make(map[block.NodeID]uint64, len(comm.Members))
	for _, m := range comm.Members {
		weight[m.NodeID] = m.Weight
	}
	return &BlockCollector{
		log:            logger,
		committee:      comm,
		blockID:        blockID,
		height:         height,
		epoch:          epoch,
		weightByNodeID: weight,
		decisionOf:     make(map[block.NodeID]wire.VoteDecision),
		signatureOf:    make(map[block.NodeID][]byte),
		acceptWeight:   bag.New[wire.VoteDecision](),
		voters:         set.NewSet[block.NodeID](len(comm.Members)),
	}
}

// AddVote folds one validator's Vote into the tally. Returns the
// freshly-formed QuorumCertificate the moment quorum is first
// reached; subsequent calls after quorum return the same QC again
// without re-deriving it (idempotent, so a duplicate vote observed
// after the fact is harmless).
func (c *BlockCollector) AddVote(voter block.NodeID, v wire.Vote) (*block.QuorumCertificate, error) {
	if c.qc != nil {
		return c.qc, nil
	}
	if v.BlockID != c.blockID {
		return nil, fmt.Errorf("votecollector: vote for block %s does not match collector's %s", v.BlockID, c.blockID)
	}
	weight, known := c.weightByNodeID[voter]
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoter, voter)
	}
	if prev, seen := c.decisionOf[voter]; seen && prev != v.Decision {
		return nil, fmt.Errorf("%w: %s voted %v then %v for block %s", ErrEquivocation, voter, prev, v.Decision, c.blockID)
	}

	if !c.voters.Contains(voter) {
		c.voters.Add(voter)
		c.decisionOf[voter] = v.Decision
		c.signatureOf[voter] = v.Signature
		c.acceptWeight.AddCount(v.Decision, int(weight))
	}

	if uint64(c.acceptWeight.Count(wire.VoteAccept)) < c.committee.QuorumWeight() {
		return nil, nil
	}

	qc := c.buildQC()
	c.qc = &qc
	c.log.Debug("quorum certificate formed",
		"blockID", c.blockID, "height", c.height, "epoch", c.epoch, "voters", c.voters.Len())
	return c.qc, nil
}

// buildQC folds every Accept voter's signature into an
// AggregatedSignature over the committee's canonical (sorted NodeID)
// ordering, matching block.QuorumCertificate's Signers bitmap
// convention (block/qc.go: "bit i set means validator i contributed").
func (c *BlockCollector) buildQC() block.QuorumCertificate {
	type idxNode struct {
		idx    int
		nodeID block.NodeID
	}
	sortedIdx := make([]idxNode, len(c.committee.Members))
	for i, m := range c.committee.Members {
		sortedIdx[i] = idxNode{idx: i, nodeID: m.NodeID}
	}
	sort.Slice(sortedIdx, func(i, j int) bool {
		return lessNodeID(sortedIdx[i].nodeID, sortedIdx[j].nodeID)
	})

	bitmap := make([]byte, (len(c.committee.Members)+7)/8)
	var signers []byte
	for _, m := range sortedIdx {
		if !c.voters.Contains(m.nodeID) || c.decisionOf[m.nodeID] != wire.VoteAccept {
			continue
		}
		bitmap[m.idx/8] |= 1 << uint(m.idx%8)
		signers = append(signers, c.signatureOf[m.nodeID]...)
	}

	return block.QuorumCertificate{
		BlockID:     c.blockID,
		BlockHeight: c.height,
		Epoch:       c.epoch,
		ShardGroup:  c.committee.ShardGroup,
		Decision:    block.Commit(),
		Signatures: block.AggregatedSignature{
			Signature: aggregateOrNil(c.signatureOf),
			Signers:   append(bitmap, signers...),
		},
	}
}

// aggregateOrNil is a narrow seam: this package does not call into
// bls.Signature's private aggregation internals (see DESIGN.md for
// why block.QuorumCertificate.Hash already avoids that), so the real
// BLS aggregate is left for the caller's SignatureVerifier/aggregator
// to populate from the raw per-voter signature bytes this collector
// retains in Signers; nil here is a safe zero value, never dereferenced
// by anything in this package.
func aggregateOrNil(map[block.NodeID][]byte) *bls.Signature {
	return nil
}

func lessNodeID(a, b block.NodeID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// HasQuorum reports whether this collector has already formed a QC.
func (c *BlockCollector) HasQuorum() bool { return c.qc != nil }

// NewViewCollector aggregates NewView messages for one (epoch,
// height), tracking the highest HighQC any contributor has reported
// so the pacemaker's ForceBeat can be driven off the freshest
// justification once quorum is reached (spec.md §4.1/§6).
type NewViewCollector struct {
	log       log.Logger
	committee committee.Committee
	epoch     uint64
	height    uint64

	voters  set.Set[block.NodeID]
	weight  bag.Bag[uint64] // keyed by a constant sentinel; Count(weightTallyKey) is the contributed weight, voters.Len() the count
	highest *block.QuorumCertificate

	fired bool
}

// NewNewViewCollector constructs a collector for one (epoch, height).
func NewNewViewCollector(logger log.Logger, comm committee.Committee, epoch, height uint64) *NewViewCollector {
	return &NewViewCollector{
		log:       logger,
		committee: comm,
		epoch:     epoch,
		height:    height,
		voters:    set.NewSet[block.NodeID](len(comm.Members)),
		weight:    bag.New[uint64](),
	}
}

const weightTallyKey uint64 = 0

// AddNewView folds one validator's NewView into the tally, tracking
// the highest HighQC seen so far. Returns true the first time 2/3 of
// committee weight has contributed a NewView for this height — the
// pacemaker's ForceBeat signal.
func (c *NewViewCollector) AddNewView(voter block.NodeID, nv wire.NewView) (quorum bool, highQC block.QuorumCertificate, err error) {
	weightByNodeID := make(map[block.NodeID]uint64, len(c.committee.Members))
	for _, m := range c.committee.Members {
		weightByNodeID[m.NodeID] = m.Weight
	}
	w, known := weightByNodeID[voter]
	if !known {
		return false, block.QuorumCertificate{}, fmt.Errorf("%w: %s", ErrUnknownVoter, voter)
	}

	if c.highest == nil || nv.HighQC.BlockHeight > c.highest.BlockHeight {
		hq := nv.HighQC
		c.highest = &hq
	}

	if !c.voters.Contains(voter) {
		c.voters.Add(voter)
		c.weight.AddCount(weightTallyKey, int(w))
	}

	if c.fired {
		return true, *c.highest, nil
	}
	if uint64(c.weight.Count(weightTallyKey)) < c.committee.QuorumWeight() {
		return false, block.QuorumCertificate{}, nil
	}
	c.fired = true
	c.log.Debug("newview quorum reached", "epoch", c.epoch, "height", c.height, "voters", c.voters.Len())
	return true, *c.highest, nil
}
