// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway implements the inbound message gateway (spec.md
// §4.2): the stateless validation every HotstuffMessage passes
// through before it reaches the local handler, foreign handler, vote
// collector, or sync subsystem, plus the parked-proposal bookkeeping
// for proposals that reference transactions this node hasn't seen
// yet. Grounded on engine/chain/engine.go's state-machine Stage enum
// pattern for the Outcome enum, and utils/linked/hashmap.go for the
// arrival-ordered parked-proposal store.
package gateway

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/luxfi/log"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/committee"
	"github.com/shardbft/consensus/config"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/utils/linked"
	"github.com/shardbft/consensus/wire"
)

// Outcome discriminates what the gateway decided to do with an
// inbound message (spec.md §4.2).
type Outcome uint8

const (
	// OutcomeReady means the message passed every stateless check and
	// may be handed to the local/foreign handler, vote collector, or
	// sync subsystem.
	OutcomeReady Outcome = iota
	// OutcomeParkedProposal means the message was a Proposal
	// referencing a transaction id the pool doesn't know yet; it is
	// held until the missing transactions arrive or the pacemaker
	// advances past its height.
	OutcomeParkedProposal
	// OutcomeDiscard means the message failed a check that warrants
	// silent drop with no further action.
	OutcomeDiscard
	// OutcomeInvalid means the message failed a check that is worth
	// recording/logging as a validation error.
	OutcomeInvalid
	// OutcomeFallenBehind means the message's epoch is older than the
	// accepted window [current - AcceptedEpochSkew, current]; it is
	// reported to the caller, which decides whether to trigger
	// catch-up sync.
	OutcomeFallenBehind
	// OutcomeFutureEpoch means the message names an epoch this node
	// hasn't reached yet at all.
	OutcomeFutureEpoch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "Ready"
	case OutcomeParkedProposal:
		return "ParkedProposal"
	case OutcomeDiscard:
		return "Discard"
	case OutcomeInvalid:
		return "Invalid"
	case OutcomeFallenBehind:
		return "FallenBehind"
	case OutcomeFutureEpoch:
		return "FutureEpoch"
	default:
		return "Unknown"
	}
}

// Result bundles an Outcome with the extra data specific to it: the
// missing transaction ids and block id for OutcomeParkedProposal, or
// the validation error for OutcomeInvalid.
type Result struct {
	Outcome     Outcome
	MissingTxs  []block.TransactionID
	BlockID     block.ID
	Err         error
}

var (
	ErrBlockIDMismatch   = errors.New("gateway: computed block id does not match header")
	ErrJustifyMissing    = errors.New("gateway: message carries no justify")
	ErrUnknownSigner     = errors.New("gateway: signer is not a member of the stated committee")
	ErrSignatureInvalid  = errors.New("gateway: signature verification failed")
)

// SignatureVerifier abstracts the committee-membership signature
// check spec.md §4.2 requires ("signature verifies against committee
// membership at the stated epoch"). The concrete verifier (BLS
// aggregate for QCs/NewView, single-validator for a Vote/Proposal) is
// supplied by the caller rather than implemented in this package —
// see DESIGN.md for why this module does not call into
// github.com/luxfi/crypto/bls's private signature representation
// directly.
type SignatureVerifier interface {
	VerifyVote(v *wire.Vote, c committee.Committee) error
	VerifyProposalSignature(proposedBy []byte, blockID block.ID, signature []byte, c committee.Committee) error
	VerifyQC(qc block.QuorumCertificate, c committee.Committee) error
}

// TransactionKnown reports whether the pool already tracks a
// transaction id — the gateway parks a Proposal when any referenced
// command's transaction id fails this check.
type TransactionKnown func(id block.TransactionID) bool

// MissingTransactionsSender delivers a MissingTransactionsRequest to
// a peer, chosen per spec.md §4.2 ("the proposer, or a shuffled
// committee member if the local node would otherwise be the
// target").
type MissingTransactionsSender interface {
	SendMissingTransactionsRequest(to block.NodeID, req wire.MissingTransactionsRequest) error
}

// Gateway is the inbound message gateway of spec.md §4.2.
type Gateway struct {
	log      log.Logger
	params   config.HotstuffParams
	verifier SignatureVerifier
	pool     *pool.Pool
	sender   MissingTransactionsSender

	localNodeID block.NodeID
	rand        *rand.Rand

	// parked holds proposals awaiting missing transactions, keyed by
	// block id, in arrival order (spec.md §4.2 "parked proposals
	// expire silently if the pacemaker advances past their height").
	parked *linked.Hashmap[block.ID, ParkedEntry]
}

// ParkedEntry is what's retained for a parked proposal.
type ParkedEntry struct {
	Proposal   wire.Proposal
	Height     uint64
	MissingTxs []block.TransactionID
}

// New constructs a Gateway.
func New(logger log.Logger, params config.HotstuffParams, verifier SignatureVerifier, txPool *pool.Pool, sender MissingTransactionsSender, localNodeID block.NodeID, seed int64) *Gateway {
	return &Gateway{
		log:         logger,
		params:      params,
		verifier:    verifier,
		pool:        txPool,
		sender:      sender,
		localNodeID: localNodeID,
		rand:        rand.New(rand.NewSource(seed)),
		parked:      linked.NewHashmap[block.ID, ParkedEntry](),
	}
}

// CheckEpoch validates msgEpoch against the local node's current
// epoch: accepted range is [current - AcceptedEpochSkew, current]
// (spec.md §4.2). A future epoch is reported separately from a
// too-far-behind one so the caller can decide whether to sync or
// simply discard.
func (g *Gateway) CheckEpoch(msgEpoch, currentEpoch uint64) Outcome {
	if msgEpoch > currentEpoch {
		return OutcomeFutureEpoch
	}
	if currentEpoch-msgEpoch > g.params.AcceptedEpochSkew {
		return OutcomeFallenBehind
	}
	return OutcomeReady
}

// ValidateBlockID recomputes b's hash and compares it to b.ID,
// failing closed on any mismatch (spec.md §4.2 "block id equals
// computed hash").
func ValidateBlockID(b *block.Block) error {
	computed := b.Hash()
	if computed != b.ID {
		return fmt.Errorf("%w: got %s want %s", ErrBlockIDMismatch, b.ID, computed)
	}
	return nil
}

// ProcessProposal runs the stateless checks of spec.md §4.2 over an
// inbound Proposal: epoch range, block id, and — if every referenced
// transaction is already known to the pool — hands back OutcomeReady.
// Otherwise the proposal is parked and a MissingTransactionsRequest is
// dispatched.
func (g *Gateway) ProcessProposal(p wire.Proposal, currentEpoch uint64, localCommittee committee.Committee) Result {
	if outcome := g.CheckEpoch(p.Block.Epoch, currentEpoch); outcome != OutcomeReady {
		return Result{Outcome: outcome}
	}

	if err := ValidateBlockID(&p.Block); err != nil {
		return Result{Outcome: OutcomeInvalid, Err: err}
	}

	if g.verifier != nil {
		if err := g.verifier.VerifyProposalSignature(p.Block.ProposedBy, p.Block.ID, p.Block.Signature, localCommittee); err != nil {
			return Result{Outcome: OutcomeInvalid, Err: fmt.Errorf("%w: %w", ErrSignatureInvalid, err)}
		}
	}

	missing := g.missingTransactions(p.Block)
	if len(missing) == 0 {
		return Result{Outcome: OutcomeReady}
	}

	g.park(p, missing)
	g.requestMissing(p, missing, localCommittee)
	return Result{Outcome: OutcomeParkedProposal, MissingTxs: missing, BlockID: p.Block.ID}
}

// missingTransactions returns every transaction id referenced by a
// command in b that the pool does not yet track.
func (g *Gateway) missingTransactions(b block.Block) []block.TransactionID {
	var missing []block.TransactionID
	seen := make(map[block.TransactionID]bool)
	for _, c := range b.Commands {
		txID, ok := c.TransactionID()
		if !ok || seen[txID] {
			continue
		}
		seen[txID] = true
		if _, tracked := g.pool.Get(txID); !tracked {
			missing = append(missing, txID)
		}
	}
	return missing
}

func (g *Gateway) park(p wire.Proposal, missing []block.TransactionID) {
	g.parked.Put(p.Block.ID, ParkedEntry{Proposal: p, Height: p.Block.Height, MissingTxs: missing})
	g.log.Debug("proposal parked pending missing transactions",
		"blockID", p.Block.ID, "height", p.Block.Height, "missing", len(missing))
}

// requestMissing sends a MissingTransactionsRequest to the block's
// proposer (resolved via the committee's round-robin leader schedule
// for the block's height, rather than decoding the wire-level
// compressed-pubkey ProposedBy field), or — if that would make the
// local node its own target — to a pseudo-randomly chosen member of
// the local committee instead (spec.md §4.2).
func (g *Gateway) requestMissing(p wire.Proposal, missing []block.TransactionID, c committee.Committee) {
	if g.sender == nil {
		return
	}
	target, err := c.LeaderForHeight(p.Block.Height)
	if err != nil {
		g.log.Warn("cannot resolve proposal's leader for missing-transactions request", "blockID", p.Block.ID, "error", err)
		return
	}

	if target == g.localNodeID && len(c.Members) > 0 {
		idx := g.rand.Intn(len(c.Members))
		target = c.Members[idx].NodeID
	}

	req := wire.MissingTransactionsRequest{BlockID: p.Block.ID, TransactionIDs: missing}
	if err := g.sender.SendMissingTransactionsRequest(target, req); err != nil {
		g.log.Warn("failed to send missing transactions request", "blockID", p.Block.ID, "to", target, "error", err)
	}
}

// OnTransactionsArrived re-queues every parked proposal whose missing
// set is now fully satisfied, returning the proposals ready for
// re-processing (spec.md §4.2 "When all missing transactions arrive,
// the parked proposal is re-queued").
func (g *Gateway) OnTransactionsArrived(arrived block.TransactionID) []wire.Proposal {
	type kv struct {
		id    block.ID
		entry ParkedEntry
	}
	var all []kv
	g.parked.Iterate(func(id block.ID, entry ParkedEntry) bool {
		all = append(all, kv{id, entry})
		return true
	})

	var ready []wire.Proposal
	for _, e := range all {
		entry := e.entry
		entry.MissingTxs = removeTxID(entry.MissingTxs, arrived)
		if len(entry.MissingTxs) == 0 {
			ready = append(ready, entry.Proposal)
			g.parked.Delete(e.id)
			continue
		}
		g.parked.Put(e.id, entry)
	}
	return ready
}

func removeTxID(ids []block.TransactionID, remove block.TransactionID) []block.TransactionID {
	out := ids[:0]
	for _, id := range ids {
		if id != remove {
			out = append(out, id)
		}
	}
	return out
}

// ExpireBelow drops every parked proposal at or below height — the
// pacemaker has advanced past them, so spec.md §4.2 says they "expire
// silently".
func (g *Gateway) ExpireBelow(height uint64) {
	var expired []block.ID
	g.parked.Iterate(func(id block.ID, entry ParkedEntry) bool {
		if entry.Height <= height {
			expired = append(expired, id)
		}
		return true
	})
	for _, id := range expired {
		g.parked.Delete(id)
	}
}

// ParkedCount returns the number of proposals currently parked.
func (g *Gateway) ParkedCount() int { return g.parked.Len() }
