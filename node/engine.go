// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"errors"
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/log"

	"github.com/shardbft/consensus/block"
	nodecontext "github.com/shardbft/consensus/context"
	"github.com/shardbft/consensus/committee"
	"github.com/shardbft/consensus/config"
	"github.com/shardbft/consensus/eviction"
	"github.com/shardbft/consensus/gateway"
	"github.com/shardbft/consensus/hotstuff"
	"github.com/shardbft/consensus/pacemaker"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/statetree"
	"github.com/shardbft/consensus/storage"
	"github.com/shardbft/consensus/votecollector"
	"github.com/shardbft/consensus/wire"
)

// Sender is the outbound half of the transport collaborator spec.md
// §6 describes for the wire.Message envelope: the engine calls these
// once a local decision (a vote, a new-view, a freshly-built proposal)
// needs to leave the process. Grounded on
// engine/chain/network.go's Sender interface in the teacher (renamed
// from the teacher's block/tx gossip verbs to this protocol's
// message kinds).
type Sender interface {
	SendVote(to block.NodeID, v wire.Vote) error
	SendNewView(to block.NodeID, nv wire.NewView) error
	BroadcastProposal(p wire.Proposal) error
}

// Engine is the single-threaded cooperative event loop of spec.md §5:
// one instance per local shard-group committee, driving the pacemaker
// and routing inbound wire.Message traffic through the gateway to the
// local/foreign handlers, the vote collector, and — on every freshly
// formed quorum certificate — the three-chain commit rule. All
// exported methods are meant to be called from a single goroutine (the
// owning shard group's dispatch loop); nothing here is safe for
// concurrent use from multiple goroutines, mirroring engine/chain/engine.go's
// single-goroutine contract in the teacher.
type Engine struct {
	log log.Logger
	nc  *nodecontext.NodeContext

	sg     shard.ShardGroup
	params config.HotstuffParams

	store storage.Store
	tree  *statetree.Tree
	pool  *pool.Pool

	pm        *pacemaker.Pacemaker
	gw        *gateway.Gateway
	local     *hotstuff.LocalHandler
	foreign   *hotstuff.ForeignHandler
	proposer  *hotstuff.Proposer
	evict     *eviction.ParticipationTracker
	submitter eviction.LayerOneSubmitter
	sender    Sender

	comm committee.Committee

	blockCollectors   map[block.ID]*votecollector.BlockCollector
	newViewCollectors map[uint64]*votecollector.NewViewCollector

	// pendingChangeSets holds every not-yet-locked candidate's tentative
	// ChangeSet, keyed by block id, so commitChain can replay them onto
	// durable storage once ThreeChainCommit names a new LockedBlock
	// (spec.md §4.6: "tentative until the block carrying them is
	// locked in").
	pendingChangeSets map[block.ID]*hotstuff.ChangeSet
	pendingBlocks     map[block.ID]*block.Block
}

// EngineConfig bundles the collaborators an Engine needs. All fields
// are required except Submitter, which may be nil, and Eviction, which
// may be nil only when Submitter is nil too.
type EngineConfig struct {
	Log        log.Logger
	NodeContext *nodecontext.NodeContext
	ShardGroup shard.ShardGroup
	Params     config.HotstuffParams
	Store      storage.Store
	Tree       *statetree.Tree
	Pool       *pool.Pool
	Pacemaker  *pacemaker.Pacemaker
	Gateway    *gateway.Gateway
	Local      *hotstuff.LocalHandler
	Foreign    *hotstuff.ForeignHandler
	Proposer   *hotstuff.Proposer
	Eviction   *eviction.ParticipationTracker
	// Submitter is the base-layer client eviction proofs are submitted
	// through (spec.md §4.9). Optional: a nil Submitter means EvictNode
	// commits still run but no proof ever leaves the process, the right
	// behavior for a shard group not wired to a base layer yet (e.g. in
	// tests).
	Submitter eviction.LayerOneSubmitter
	Sender    Sender
	Committee committee.Committee
}

// NewEngine constructs an Engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		log:               cfg.Log,
		nc:                cfg.NodeContext,
		sg:                cfg.ShardGroup,
		params:            cfg.Params,
		store:             cfg.Store,
		tree:              cfg.Tree,
		pool:              cfg.Pool,
		pm:                cfg.Pacemaker,
		gw:                cfg.Gateway,
		local:             cfg.Local,
		foreign:           cfg.Foreign,
		proposer:          cfg.Proposer,
		evict:             cfg.Eviction,
		submitter:         cfg.Submitter,
		sender:            cfg.Sender,
		comm:              cfg.Committee,
		blockCollectors:   make(map[block.ID]*votecollector.BlockCollector),
		newViewCollectors: make(map[uint64]*votecollector.NewViewCollector),
		pendingChangeSets: make(map[block.ID]*hotstuff.ChangeSet),
		pendingBlocks:     make(map[block.ID]*block.Block),
	}
}

// OnProposal implements the Proposal arm of spec.md §4.2's inbound
// dispatch: the message passes through the gateway's stateless checks,
// every attached foreign proposal is merged into the pool, the local
// four-phase pipeline runs against the candidate, and — on Accept —
// a Vote is sent to the leader of the next height.
func (e *Engine) OnProposal(p wire.Proposal, currentEpoch uint64) error {
	res := e.gw.ProcessProposal(p, currentEpoch, e.comm)
	switch res.Outcome {
	case gateway.OutcomeReady:
	case gateway.OutcomeParkedProposal:
		e.log.Debug("proposal parked awaiting missing transactions", "blockID", res.BlockID, "missing", len(res.MissingTxs))
		return nil
	default:
		if res.Err != nil {
			return fmt.Errorf("node: proposal rejected by gateway (%s): %w", res.Outcome, res.Err)
		}
		e.log.Debug("proposal discarded by gateway", "outcome", res.Outcome)
		return nil
	}

	rtx, err := e.store.ReadTx()
	if err != nil {
		return fmt.Errorf("node: open read tx: %w", err)
	}
	defer rtx.Close()

	singletons, err := rtx.SingletonsGet(p.Block.Epoch, e.sg)
	if err != nil {
		return fmt.Errorf("node: load epoch singletons: %w", err)
	}
	locked, err := rtx.BlocksGet(singletons.LockedBlockID)
	if err != nil {
		return fmt.Errorf("node: load locked block %s: %w", singletons.LockedBlockID, err)
	}

	for _, fp := range p.ForeignProposals {
		row := storage.ForeignProposalRow{
			ShardGroup:  fp.Block.ShardGroup,
			BlockID:     fp.Block.ID,
			Block:       &fp.Block,
			JustifyQC:   fp.JustifyQC,
			BlockPledge: fp.BlockPledge,
		}
		if err := e.foreign.ProcessForeignProposal(row, p.Block.ID, e.pool, nil); err != nil {
			return fmt.Errorf("node: process foreign proposal %s: %w", fp.Block.ID, err)
		}
	}

	decision, cs, err := e.local.ProcessCandidate(rtx, &p.Block, locked)
	if err != nil {
		return fmt.Errorf("node: process candidate %s: %w", p.Block.ID, err)
	}
	if cs != nil {
		e.pendingChangeSets[p.Block.ID] = cs
		blk := p.Block
		e.pendingBlocks[p.Block.ID] = &blk
	}
	if !decision.Accept {
		e.log.Debug("candidate not voted for", "blockID", p.Block.ID, "reason", decision.Reason)
		return nil
	}

	leader, err := e.comm.LeaderForHeight(p.Block.Height + 1)
	if err != nil {
		return fmt.Errorf("node: resolve next leader: %w", err)
	}
	vote := wire.Vote{
		Epoch:                 p.Block.Epoch,
		BlockID:               p.Block.ID,
		UnverifiedBlockHeight:  p.Block.Height,
		Decision:               wire.VoteAccept,
	}
	if err := e.sender.SendVote(leader, vote); err != nil {
		return fmt.Errorf("node: send vote for %s: %w", p.Block.ID, err)
	}

	singletons.LastVoted = storage.LastVoted{BlockID: p.Block.ID, Height: p.Block.Height}
	singletons.LastSentVote = p.Block.ID
	wtx, err := e.store.WriteTx()
	if err != nil {
		return fmt.Errorf("node: open write tx to persist last vote: %w", err)
	}
	defer wtx.Rollback()
	if err := wtx.SingletonsSet(p.Block.Epoch, e.sg, *singletons); err != nil {
		return fmt.Errorf("node: persist last voted/sent singletons: %w", err)
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("node: commit last vote persistence: %w", err)
	}

	e.pm.UpdateView(p.Block.Epoch, p.Block.Height+1, e.pm.View().Height)
	return nil
}

// OnVote implements the Vote arm of spec.md §4.2: folds voter's Vote
// into the block's BlockCollector and, the moment a quorum certificate
// forms, persists it and attempts to advance the locked chain.
func (e *Engine) OnVote(voter block.NodeID, v wire.Vote) error {
	bc, ok := e.blockCollectors[v.BlockID]
	if !ok {
		bc = votecollector.NewBlockCollector(e.log, e.comm, v.Epoch, v.BlockID, v.UnverifiedBlockHeight)
		e.blockCollectors[v.BlockID] = bc
	}
	qc, err := bc.AddVote(voter, v)
	if err != nil {
		return fmt.Errorf("node: add vote from %s: %w", voter, err)
	}
	if qc == nil {
		return nil
	}

	wtx, err := e.store.WriteTx()
	if err != nil {
		return fmt.Errorf("node: open write tx: %w", err)
	}
	defer wtx.Rollback()

	if err := wtx.QCInsert(qc); err != nil {
		return fmt.Errorf("node: insert qc for %s: %w", v.BlockID, err)
	}

	candidate, ok := e.pendingBlocks[v.BlockID]
	if !ok {
		candidate, err = wtx.BlocksGet(v.BlockID)
		if err != nil {
			return fmt.Errorf("node: load voted block %s: %w", v.BlockID, err)
		}
	}

	if err := e.commitChain(wtx, candidate); err != nil && !errors.Is(err, ErrNotCommittable) {
		return fmt.Errorf("node: commit chain for %s: %w", v.BlockID, err)
	}

	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("node: commit write tx: %w", err)
	}

	e.pm.ForceBeat(&v.UnverifiedBlockHeight)
	return nil
}

// OnNewView implements the NewView arm of spec.md §4.2: folds voter's
// NewView into the height's NewViewCollector and fires the
// pacemaker's ForceBeat once 2/3 of committee weight has contributed
// (spec.md §4.1: "force_beat fires when NEWVIEW quorum reached").
func (e *Engine) OnNewView(voter block.NodeID, nv wire.NewView) error {
	nvc, ok := e.newViewCollectors[nv.NewHeight]
	if !ok {
		nvc = votecollector.NewNewViewCollector(e.log, e.comm, e.pm.View().Epoch, nv.NewHeight)
		e.newViewCollectors[nv.NewHeight] = nvc
	}
	quorum, _, err := nvc.AddNewView(voter, nv)
	if err != nil {
		return fmt.Errorf("node: add new-view from %s: %w", voter, err)
	}
	if quorum {
		e.pm.ForceBeat(&nv.NewHeight)
	}
	return nil
}

// commitChain walks ThreeChainCommit from candidate and, if it names a
// newly-locked block, replays every pending ChangeSet between the
// previous LockedBlock and the new one onto wtx/tree in height order,
// then advances the epoch singletons. It is a no-op (returning
// ErrNotCommittable) when candidate's justify-chain is not yet three
// deep — the overwhelmingly common case on every vote that doesn't
// complete a three-chain.
func (e *Engine) commitChain(wtx storage.WriteTx, candidate *block.Block) error {
	newLocked, err := ThreeChainCommit(wtx, candidate)
	if err != nil {
		return err
	}

	singletons, err := wtx.SingletonsGet(candidate.Epoch, e.sg)
	if err != nil {
		return fmt.Errorf("node: load epoch singletons: %w", err)
	}
	if singletons.LockedBlockID == newLocked.ID {
		return nil
	}

	chain, err := wtx.BlocksGetParentChain(newLocked.ID, singletons.LockedBlockID)
	if err != nil {
		return fmt.Errorf("node: walk chain to new locked block: %w", err)
	}
	// BlocksGetParentChain returns newLocked's ancestry down to and
	// including the previous locked block, leaf-first; apply
	// oldest-first (the previous locked block's ChangeSet, if any, was
	// already applied by an earlier commitChain call and is simply
	// absent from pendingChangeSets now) so each ChangeSet's
	// assumptions about its parent's already-applied state hold.
	committeeOrder := make([]block.NodeID, len(e.comm.Members))
	pubKeyToNodeID := make(map[string]block.NodeID, len(e.comm.Members))
	for i, m := range e.comm.Members {
		committeeOrder[i] = m.NodeID
		if m.PublicKey != nil {
			pubKeyToNodeID[string(bls.PublicKeyToCompressedBytes(m.PublicKey))] = m.NodeID
		}
	}

	var epochEndedAt *block.Block
	for i := len(chain) - 1; i >= 0; i-- {
		b := chain[i]
		cs, ok := e.pendingChangeSets[b.ID]
		if !ok {
			continue
		}
		if err := ApplyChangeSet(wtx, e.tree, cs); err != nil {
			return fmt.Errorf("node: apply change set for %s: %w", b.ID, err)
		}
		if e.evict != nil {
			if err := e.evict.RecordBlock(wtx, b.Epoch, committeeOrder, b.Justify.Signatures.Signers); err != nil {
				return fmt.Errorf("node: record participation for %s: %w", b.ID, err)
			}
			for _, pk := range cs.EvictedPubKeys {
				e.submitEvictionProof(b, pk, pubKeyToNodeID)
			}
		}
		if cs.EndsEpoch {
			epochEndedAt = b
		}
		delete(e.pendingChangeSets, b.ID)
		delete(e.pendingBlocks, b.ID)
	}

	singletons.LockedBlockID = newLocked.ID
	singletons.LastExecuted = newLocked.ID
	singletons.HighQC = candidate.Justify
	singletons.LeafBlockID = candidate.ID
	if err := wtx.SingletonsSet(candidate.Epoch, e.sg, *singletons); err != nil {
		return fmt.Errorf("node: persist epoch singletons: %w", err)
	}

	if epochEndedAt != nil {
		if err := e.rolloverEpoch(wtx, epochEndedAt); err != nil {
			return fmt.Errorf("node: roll over epoch past %s: %w", epochEndedAt.ID, err)
		}
	}

	e.log.Info("block locked", "blockID", newLocked.ID, "height", newLocked.Height, "epoch", newLocked.Epoch)
	return nil
}

// submitEvictionProof builds and submits the EvictionProof for one
// EvictNode command that committed in block b (spec.md §4.9/§8
// scenario 6). Submission failures are logged by the tracker itself,
// never fatal to the commit — base-layer unavailability must not stall
// consensus.
func (e *Engine) submitEvictionProof(b *block.Block, pubKey []byte, pubKeyToNodeID map[string]block.NodeID) {
	if e.submitter == nil {
		return
	}
	nodeID, ok := pubKeyToNodeID[string(pubKey)]
	if !ok {
		e.log.Warn("evicted node's public key not found in committee; submitting proof with empty node id", "blockID", b.ID)
	}
	e.evict.SubmitEvictionProof(e.submitter, eviction.Proof{
		NodeID:          nodeID,
		QC:              b.Justify,
		BitmaskSequence: [][]byte{b.Justify.Signatures.Signers},
	})
}

// rolloverEpoch implements spec.md §4.3 step 7 and the §2 "Epoch
// checkpoint" component: once a locked block carrying EndEpoch is
// applied, the state tree's root at that point becomes the checkpoint
// root, the next epoch's genesis block is synthesized extending it
// (sharing state_merkle_root per spec.md §8), and the pacemaker moves
// to the new epoch's height-0 view.
func (e *Engine) rolloverEpoch(wtx storage.WriteTx, finalBlock *block.Block) error {
	nextEpoch := finalBlock.Epoch + 1
	checkpointRoot := e.tree.Root()

	genesis := &block.Block{
		Epoch:      nextEpoch,
		ShardGroup: e.sg,
		Height:     0,
		ParentID:   finalBlock.ID,
		Justify:    block.GenesisQC(nextEpoch, e.sg),
	}
	copy(genesis.StateMerkleRoot[:], checkpointRoot[:])
	genesis.ID = genesis.Hash()
	if err := wtx.BlocksInsert(genesis); err != nil {
		return fmt.Errorf("node: insert next epoch's genesis block: %w", err)
	}

	if err := wtx.SingletonsSet(nextEpoch, e.sg, storage.EpochSingletons{
		HighQC:        genesis.Justify,
		LeafBlockID:   genesis.ID,
		LockedBlockID: genesis.ID,
		LastExecuted:  genesis.ID,
	}); err != nil {
		return fmt.Errorf("node: persist next epoch's singletons: %w", err)
	}

	e.pm.SetEpoch(nextEpoch)
	e.log.Info("epoch checkpoint committed, rolled over to next epoch",
		"endedEpoch", finalBlock.Epoch, "nextEpoch", nextEpoch, "genesisBlockID", genesis.ID)
	return nil
}

// Propose builds a new candidate block extending tip, using the
// proposer's deterministic command ordering (spec.md §4.5), and
// returns it as a wire.Proposal; it does not broadcast it.
// Called by the owning shard group's dispatch loop on the pacemaker's
// OnBeat/OnForceBeat callback when the local node is the height's
// leader.
func (e *Engine) Propose(rtx storage.ReadTx, tip *block.Block, foreignAtoms []*block.TransactionAtom, mints []*block.UtxoMint, endEpoch bool) (*wire.Proposal, error) {
	evictions, err := e.evictionCandidates(rtx, tip.Epoch)
	if err != nil {
		return nil, err
	}
	commands := e.proposer.BuildCommands(foreignAtoms, mints, evictions, endEpoch)

	singletons, err := rtx.SingletonsGet(tip.Epoch, e.sg)
	if err != nil {
		return nil, fmt.Errorf("node: load epoch singletons: %w", err)
	}

	candidate := &block.Block{
		Epoch:      tip.Epoch,
		ShardGroup: e.sg,
		Height:     tip.Height + 1,
		ParentID:   tip.ID,
		Justify:    singletons.HighQC,
		Commands:   commands,
		Timestamp:  0, // caller stamps a real wall-clock time before broadcast
		ProposedBy: e.nc.PublicKey,
	}
	// StateMerkleRoot reflects e.tree's root as of tip, before this
	// candidate's own commands are tentatively applied by ProcessCandidate.
	root := e.tree.Root()
	copy(candidate.StateMerkleRoot[:], root[:])
	candidate.ID = candidate.Hash()

	return &wire.Proposal{Block: *candidate}, nil
}

func (e *Engine) evictionCandidates(rtx storage.ReadTx, epoch uint64) ([]hotstuff.EvictionCandidate, error) {
	if e.evict == nil {
		return nil, nil
	}
	committeeOrder := make([]block.NodeID, len(e.comm.Members))
	pubKeyOf := make(map[block.NodeID][]byte, len(e.comm.Members))
	for i, m := range e.comm.Members {
		committeeOrder[i] = m.NodeID
		if m.PublicKey != nil {
			pubKeyOf[m.NodeID] = bls.PublicKeyToCompressedBytes(m.PublicKey)
		}
	}
	nodeIDs, err := e.evict.EvictionCandidates(rtx, committeeOrder, epoch)
	if err != nil {
		return nil, fmt.Errorf("node: compute eviction candidates: %w", err)
	}
	out := make([]hotstuff.EvictionCandidate, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		out = append(out, hotstuff.EvictionCandidate{NodeID: id, PubKey: pubKeyOf[id]})
	}
	return out, nil
}
