// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package eviction tracks each committee member's participation share
// over the blocks recorded so far in an epoch and decides eligibility
// for an EvictNode command (spec.md §4.9). It generalizes teacher's
// uptime/validator-uptime packages (GetUptime/SetUptime,
// db.ErrNotFound sentinel) from per-node connectivity uptime to
// per-node per-epoch QC-leaf-bitmask participation accounting, per
// SPEC_FULL.md §4's eviction fidelity note.
package eviction

import (
	"errors"
	"fmt"

	"github.com/luxfi/log"
	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/config"
	"github.com/shardbft/consensus/storage"
)

var ErrUnknownValidator = errors.New("eviction: no participation stats recorded for validator")

// ParticipationTracker accumulates, for every committee member, per-
// epoch vote and block counts taken from each QC's signer bitmap (not
// a trailing window: counts cover the whole epoch so far) and exposes
// the threshold check spec.md §4.9
// describes ("a node whose participation share falls below a
// configured threshold over a window of blocks becomes eligible for
// eviction").
type ParticipationTracker struct {
	log    log.Logger
	params config.HotstuffParams
}

// New returns a ParticipationTracker reading/writing participation
// stats through the storage capability's ValidatorEpochStats table.
func New(logger log.Logger, params config.HotstuffParams) *ParticipationTracker {
	return &ParticipationTracker{log: logger, params: params}
}

// RecordBlock updates every committee member's participation stats
// for one committed block: members whose bit is set in the QC's
// signer bitmap get a vote credited, and every member (voting or not)
// gets their block-total incremented. This is the "QC leaf-bitmask"
// accounting spec.md §4.9 describes.
func (t *ParticipationTracker) RecordBlock(wtx storage.WriteTx, epoch uint64, committeeOrder []block.NodeID, signers []byte) error {
	for i, nodeID := range committeeOrder {
		voted := bitSet(signers, i)
		if err := wtx.ValidatorStatsRecordVote(nodeID, epoch, voted); err != nil {
			return fmt.Errorf("eviction: record vote for %s: %w", nodeID, err)
		}
	}
	return nil
}

func bitSet(bitmap []byte, i int) bool {
	byteIdx := i / 8
	if byteIdx >= len(bitmap) {
		return false
	}
	return bitmap[byteIdx]&(1<<uint(i%8)) != 0
}

// EligibleForEviction reports whether nodeID's participation share in
// epoch, over at least EvictionWindowBlocks blocks, has fallen below
// EvictionParticipationThreshold (spec.md §4.9/§8 scenario 6: "Over a
// 50-block window validator V skips every vote").
func (t *ParticipationTracker) EligibleForEviction(rtx storage.ReadTx, nodeID block.NodeID, epoch uint64) (bool, error) {
	stats, err := rtx.ValidatorStatsGet(nodeID, epoch)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownValidator, nodeID)
	}
	if stats.BlocksTotal < t.params.EvictionWindowBlocks {
		// Not enough observations yet over the configured window to
		// make an eviction decision.
		return false, nil
	}
	share := stats.ParticipationShare()
	eligible := share < t.params.EvictionParticipationThreshold
	if eligible {
		t.log.Info("validator eligible for eviction",
			"nodeID", nodeID,
			"epoch", epoch,
			"participationShare", share,
			"threshold", t.params.EvictionParticipationThreshold,
		)
	}
	return eligible, nil
}

// EvictionCandidates scans the given committee and returns every
// member eligible for eviction this epoch, in committee order, for
// the block proposer's EvictNode command selection (spec.md §4.5
// item 4).
func (t *ParticipationTracker) EvictionCandidates(rtx storage.ReadTx, committeeOrder []block.NodeID, epoch uint64) ([]block.NodeID, error) {
	var out []block.NodeID
	for _, nodeID := range committeeOrder {
		eligible, err := t.EligibleForEviction(rtx, nodeID, epoch)
		if err != nil {
			if errors.Is(err, ErrUnknownValidator) {
				continue
			}
			return nil, err
		}
		if eligible {
			out = append(out, nodeID)
		}
	}
	return out, nil
}

// Proof is the EvictionProof spec.md §4.9 says is produced once an
// EvictNode command commits: the committing QC plus the bitmask
// sequence that justified the eviction, submitted to the base layer
// via the layer-one-submitter collaborator interface (spec.md §6).
type Proof struct {
	NodeID block.NodeID
	QC     block.QuorumCertificate
	// BitmaskSequence holds signer bitmaps evidencing the
	// participation shortfall to an external verifier. The engine
	// fills it with one bitmap: the signers of the committing block's
	// justifying QC.
	BitmaskSequence [][]byte
}

// LayerOneSubmitter is the external collaborator interface spec.md
// §6 describes ("core calls layer_one_submitter.submit(tx); errors
// are logged but not fatal").
type LayerOneSubmitter interface {
	Submit(payloadType string, payload []byte) error
}

// SubmitEvictionProof encodes proof as a LayerOneTransaction payload
// and submits it, logging (never propagating) a submission failure
// per spec.md §7's "Storage... Fatal" table entry NOT applying here —
// base-layer submission failures are explicitly non-fatal.
func (t *ParticipationTracker) SubmitEvictionProof(submitter LayerOneSubmitter, proof Proof) {
	payload := encodeProof(proof)
	if err := submitter.Submit("EvictionProof", payload); err != nil {
		t.log.Warn("eviction proof submission failed", "nodeID", proof.NodeID, "error", err)
	}
}

func encodeProof(proof Proof) []byte {
	buf := append([]byte{}, proof.NodeID[:]...)
	buf = append(buf, proof.QC.BlockID[:]...)
	for _, bm := range proof.BitmaskSequence {
		buf = append(buf, bm...)
	}
	return buf
}
