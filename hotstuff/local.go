// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hotstuff

import (
	"errors"
	"fmt"

	"github.com/luxfi/log"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/committee"
	"github.com/shardbft/consensus/config"
	"github.com/shardbft/consensus/pendingstore"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/storage"
	"github.com/shardbft/consensus/substate"
)

var (
	// ErrJustifyBlockNotFound means the candidate's justify references a
	// QC/block this node has never persisted — spec.md §4.3 says this
	// should trigger catch-up sync rather than a validation failure.
	ErrJustifyBlockNotFound = errors.New("hotstuff: justify block not found locally")
	ErrParentBlockNotFound  = errors.New("hotstuff: candidate's parent block not found locally")
)

// LocalHandler implements spec.md §4.3: the per-shard-group local
// proposal pipeline run on receipt of a Proposal (and, identically,
// by the proposer itself before broadcasting). Grounded on
// original_source/dan_layer/consensus/src/hotstuff/on_ready_to_vote_on_local_block.rs
// for the phase sequencing and on engine/chain/engine.go's
// Stage-driven loop for the surrounding Go idiom.
type LocalHandler struct {
	log     log.Logger
	sg      shard.ShardGroup
	params  config.HotstuffParams
	exec    Executor
	pool    *pool.Pool
	foreign *ForeignHandler
}

// Executor is the subset of the executor package's capability this
// handler needs, narrowed to avoid an import cycle concern and to
// keep the handler trivially mockable in tests.
type Executor interface {
	Execute(txID block.TransactionID, inputs []ExecutorInput) (ExecutorResult, error)
}

// ExecutorInput/ExecutorResult mirror executor.ResolvedInput/Result;
// kept as local aliases so this package's public surface doesn't leak
// the executor package's import of pendingstore.
type ExecutorInput struct {
	ID       shard.SubstateId
	Version  uint32
	Value    []byte
	LockType substate.LockType
}

type ExecutorResult struct {
	Decision       block.Decision
	Diff           substate.Diff
	ResolvedLocks  []pendingstore.LockRequest
	TransactionFee uint64
}

// NewLocalHandler constructs a LocalHandler for one shard group's
// consensus instance.
func NewLocalHandler(logger log.Logger, sg shard.ShardGroup, params config.HotstuffParams, exec Executor, txPool *pool.Pool, foreign *ForeignHandler) *LocalHandler {
	return &LocalHandler{log: logger, sg: sg, params: params, exec: exec, pool: txPool, foreign: foreign}
}

// IsSafeNode implements spec.md §4.3's safe-node predicate: candidate
// extends locked (walking the parent chain), or candidate's justify
// has a strictly higher block height than locked's. Dummy blocks
// bypass this check entirely — see ProcessCandidate.
func IsSafeNode(rtx storage.ReadTx, candidate *block.Block, locked *block.Block) (bool, error) {
	if candidate.Justify.BlockHeight > locked.Height {
		return true, nil
	}
	if candidate.ParentID == locked.ID {
		return true, nil
	}
	chain, err := rtx.BlocksGetParentChain(candidate.ParentID, locked.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// The walk ran off the stored chain without meeting locked.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hotstuff: walk parent chain for safe-node check: %w", err)
	}
	for _, b := range chain {
		if b.ID == locked.ID {
			return true, nil
		}
	}
	return false, nil
}

// FillDummyBlocks synthesizes the deterministic placeholder blocks
// needed to bridge a height gap between parent and a candidate whose
// height is more than one past it (spec.md §4.1 "a block proposal
// that references a higher block than the parent height + 1 causes
// dummy blocks to be locally inserted to fill the gap", and spec.md
// §5 Open Question: dummy blocks bypass the safe-node check because
// every honest node derives byte-identical ones from the same
// (parent, targetHeight, committee) inputs, not from the wire).
func FillDummyBlocks(c committee.Committee, parent *block.Block, targetHeight uint64) []*block.Block {
	var out []*block.Block
	prev := parent
	for h := parent.Height + 1; h < targetHeight; h++ {
		leader, _ := c.LeaderForHeight(h)
		dummy := &block.Block{
			Epoch:           parent.Epoch,
			ShardGroup:      parent.ShardGroup,
			Height:          h,
			ParentID:        prev.ID,
			Justify:         parent.Justify,
			StateMerkleRoot: prev.StateMerkleRoot,
			Timestamp:       parent.Timestamp,
			ProposedBy:      leader[:],
		}
		dummy.ID = dummy.Hash()
		out = append(out, dummy)
		prev = dummy
	}
	return out
}

// ProcessCandidate runs spec.md §4.3's pipeline for one candidate
// block against an already-open read snapshot: resolves the justify
// and parent, checks safety (skipped for dummy-filled ancestry),
// executes every command, and returns the Vote/NoVote decision plus
// the tentative ChangeSet (committed by the caller only once this
// block locks in).
func (h *LocalHandler) ProcessCandidate(rtx storage.ReadTx, candidate *block.Block, locked *block.Block) (VoteDecision, *ChangeSet, error) {
	if !candidate.Justify.IsGenesis() {
		if _, err := rtx.BlocksGet(candidate.Justify.BlockID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return VoteDecision{}, nil, fmt.Errorf("%w: %s", ErrJustifyBlockNotFound, candidate.Justify.BlockID)
			}
			return VoteDecision{}, nil, err
		}
	}

	parent, err := rtx.BlocksGet(candidate.ParentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return VoteDecision{}, nil, fmt.Errorf("%w: %s", ErrParentBlockNotFound, candidate.ParentID)
		}
		return VoteDecision{}, nil, err
	}

	isDummyExtension := candidate.Height > parent.Height+1
	if !isDummyExtension {
		safe, err := IsSafeNode(rtx, candidate, locked)
		if err != nil {
			return VoteDecision{}, nil, err
		}
		if !safe {
			return NoVote("not safe: does not extend locked block and justify height is not higher"), nil, nil
		}
	}

	store := pendingstore.New(h.log, rtx, candidate.ParentID)
	var touched []block.TransactionID

	for _, cmd := range candidate.Commands {
		switch cmd.Kind {
		case block.CommandPrepare, block.CommandLocalOnly:
			txID, err := h.processLocalPrepare(store, cmd, candidate.ID)
			if err != nil {
				return NoVote(err.Error()), nil, nil
			}
			touched = append(touched, txID)
		case block.CommandLocalPrepare, block.CommandAllPrepare, block.CommandSomePrepare,
			block.CommandLocalAccept, block.CommandAllAccept, block.CommandSomeAccept:
			txID, err := h.processPipelineAdvance(cmd, candidate.ID)
			if err != nil {
				return NoVote(err.Error()), nil, nil
			}
			touched = append(touched, txID)
		case block.CommandMintConfidentialOutput:
			if err := h.applyMint(store, cmd.Mint); err != nil {
				return NoVote(err.Error()), nil, nil
			}
		case block.CommandEvictNode:
			// Recorded on the ChangeSet below; once this block commits
			// the engine submits an eviction proof for the node.
			// Committee membership is not changed locally.
		case block.CommandEndEpoch:
		}
	}

	cs := newChangeSet(candidate.ID, candidate.ParentID, touched, store)
	for _, cmd := range candidate.Commands {
		if cmd.Kind == block.CommandEvictNode {
			cs.EvictedPubKeys = append(cs.EvictedPubKeys, cmd.EvictPubKey)
		}
		if cmd.Kind == block.CommandEndEpoch {
			cs.EndsEpoch = true
		}
	}

	h.log.Debug("candidate block processed", "blockID", candidate.ID, "height", candidate.Height, "commands", len(candidate.Commands))
	return Accept(), cs, nil
}

// processLocalPrepare executes a New/LocalOnly transaction's Prepare
// command: resolves its local inputs through the pending store,
// invokes the executor, and records the resulting tentative pool
// transition (spec.md §4.5/§4.6).
func (h *LocalHandler) processLocalPrepare(store *pendingstore.Store, cmd block.Command, candidateBlockID block.ID) (block.TransactionID, error) {
	atom := cmd.Atom
	if atom == nil {
		return block.TransactionID{}, fmt.Errorf("hotstuff: prepare command missing atom")
	}
	record, ok := h.pool.Get(atom.TransactionID)
	if !ok {
		record = h.pool.GetOrCreate(atom.TransactionID)
	}

	group := atom.Evidence.Group(h.sg)
	var inputs []ExecutorInput
	for key, in := range group.Inputs {
		val, err := store.Get(in.ID, in.Version)
		if err != nil {
			return atom.TransactionID, fmt.Errorf("hotstuff: resolve input %s: %w", key, err)
		}
		inputs = append(inputs, ExecutorInput{ID: in.ID, Version: in.Version, Value: val, LockType: in.LockType})
	}

	result, err := h.exec.Execute(atom.TransactionID, inputs)
	if err != nil {
		return atom.TransactionID, fmt.Errorf("hotstuff: execute %s: %w", atom.TransactionID, err)
	}

	for _, req := range result.ResolvedLocks {
		if err := store.TryLock(atom.TransactionID, req.ID, req.Version, req.LockType, cmd.Kind == block.CommandLocalOnly, req.VersionPinned); err != nil {
			return atom.TransactionID, fmt.Errorf("hotstuff: lock %s: %w", req.ID, err)
		}
	}
	if err := store.PutDiff(atom.TransactionID, result.Diff); err != nil {
		return atom.TransactionID, err
	}

	nextStage := pool.StagePrepared
	if cmd.Kind == block.CommandLocalOnly {
		nextStage = pool.StageLocalOnly
	}
	record.ProposePending(candidateBlockID, nextStage, result.Decision, atom.Evidence)
	return atom.TransactionID, nil
}

// stageForPipelineCommand maps a command kind emitted by nextCommand
// back to the pool stage it advances its transaction to.
func stageForPipelineCommand(kind block.CommandKind) pool.Stage {
	switch kind {
	case block.CommandLocalPrepare:
		return pool.StageLocalPrepared
	case block.CommandAllPrepare:
		return pool.StageAllPrepared
	case block.CommandSomePrepare:
		return pool.StageSomePrepared
	case block.CommandLocalAccept:
		return pool.StageLocalAccepted
	case block.CommandAllAccept:
		return pool.StageAllAccepted
	case block.CommandSomeAccept:
		return pool.StageSomeAccepted
	default:
		return pool.StageNew
	}
}

// processPipelineAdvance handles every pipeline command beyond the
// initial Prepare/LocalOnly: the record's stage, decision, and
// evidence were already established by an earlier local or foreign
// phase, so this only proposes carrying that already-known state
// forward onto candidateBlockID (spec.md §4.5/§4.6) once the move is
// itself a legal one.
func (h *LocalHandler) processPipelineAdvance(cmd block.Command, candidateBlockID block.ID) (block.TransactionID, error) {
	atom := cmd.Atom
	if atom == nil {
		return block.TransactionID{}, fmt.Errorf("hotstuff: %s command missing atom", cmd.Kind)
	}
	record, ok := h.pool.Get(atom.TransactionID)
	if !ok {
		return atom.TransactionID, fmt.Errorf("hotstuff: %s command for untracked transaction %s", cmd.Kind, atom.TransactionID)
	}
	nextStage := stageForPipelineCommand(cmd.Kind)
	if !record.Stage.CanContinueTo(nextStage) {
		return atom.TransactionID, fmt.Errorf("hotstuff: %s: record %s cannot continue from %s to %s", cmd.Kind, atom.TransactionID, record.Stage, nextStage)
	}
	record.ProposePending(candidateBlockID, nextStage, record.Decision, record.Evidence)
	return atom.TransactionID, nil
}

func (h *LocalHandler) applyMint(store *pendingstore.Store, mint *block.UtxoMint) error {
	if mint == nil {
		return nil
	}
	id := shard.SubstateId{Kind: shard.KindUnclaimedConfidentialOutput, Key: shard.ObjectKey(mint.CommitmentAddress)}
	rec := &substate.Record{ID: id, Version: 0, CreatedAtEpoch: 0, CreatedByShard: h.sg}
	if err := store.Put(substate.NewUpChange(rec)); err != nil {
		return fmt.Errorf("hotstuff: mint %s: %w", mint.CommitmentAddress, err)
	}
	return nil
}
