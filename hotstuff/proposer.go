// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hotstuff

import (
	"bytes"
	"sort"

	"github.com/luxfi/log"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/config"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
)

// EvictionCandidate pairs a node id eligible for eviction with the
// validator public key an EvictNode command must carry (spec.md
// §4.9).
type EvictionCandidate struct {
	NodeID block.NodeID
	PubKey []byte
}

// Proposer builds the ordered command list for a new block (spec.md
// §4.5): attached foreign proposals, confidential mints, ready
// transaction-pipeline commands (sorted by transaction id for
// deterministic hashing across every validator that independently
// assembles the same candidate), evictions, and — on an epoch
// boundary — EndEpoch.
type Proposer struct {
	log         log.Logger
	sg          shard.ShardGroup
	params      config.HotstuffParams
	pool        *pool.Pool
	isLocalOnly func(txID block.TransactionID) bool
}

// NewProposer constructs a Proposer for one shard group's instance.
// isLocalOnly reports whether a transaction's inputs/outputs are
// entirely within this committee's shard group, selecting the
// LocalOnly command shortcut over Prepare (spec.md §4.6).
func NewProposer(logger log.Logger, sg shard.ShardGroup, params config.HotstuffParams, txPool *pool.Pool, isLocalOnly func(block.TransactionID) bool) *Proposer {
	return &Proposer{log: logger, sg: sg, params: params, pool: txPool, isLocalOnly: isLocalOnly}
}

// BuildCommands assembles spec.md §4.5's canonical command ordering.
// foreignProposals and mints are supplied pre-selected by the caller
// (the former from ForeignProposalRows not yet attached to a local
// block, the latter from confirmed base-layer burn events); evictions
// comes from eviction.ParticipationTracker.EvictionCandidates.
func (p *Proposer) BuildCommands(foreignProposals []*block.TransactionAtom, mints []*block.UtxoMint, evictions []EvictionCandidate, endEpoch bool) []block.Command {
	var out []block.Command
	budget := p.params.MaxBlockCommands

	for _, atom := range foreignProposals {
		if len(out) >= budget {
			return out
		}
		out = append(out, block.NewForeignProposal(atom))
	}

	maxMints := p.params.MaxMintsPerBlock
	for i, mint := range mints {
		if i >= maxMints || len(out) >= budget {
			break
		}
		out = append(out, block.NewMint(mint))
	}

	for _, record := range p.readySorted() {
		if len(out) >= budget {
			break
		}
		atom := &block.TransactionAtom{
			TransactionID:  record.TransactionID,
			Decision:       record.Decision,
			Evidence:       record.Evidence,
			TransactionFee: record.TransactionFee,
			LeaderFee:      record.LeaderFee,
		}
		out = append(out, p.nextCommand(record, atom))
	}

	for _, cand := range evictions {
		if len(out) >= budget {
			break
		}
		out = append(out, block.NewEvictNode(cand.PubKey))
	}

	if endEpoch && len(out) < budget {
		out = append(out, block.NewEndEpoch())
	}

	return out
}

// nextCommand picks the wire Command matching record's next pipeline
// stage (spec.md §4.5 "emits exactly one command matching the
// transaction's next pipeline stage"). New moves to LocalOnly or
// Prepared depending on isLocalOnly; every later stage advances one
// step along the order table in pool/stage.go, choosing the
// All/Some-prefixed sibling by whether the record's merged decision is
// an abort — an aborting transaction only ever needs *some* shard
// groups' evidence to finalize (transaction_pool.rs's AllPrepared /
// SomePrepared / AllAccepted / SomeAccepted distinction).
func (p *Proposer) nextCommand(record *pool.Record, atom *block.TransactionAtom) block.Command {
	isSome := record.Decision.IsAbort

	switch record.Stage {
	case pool.StageNew:
		if p.isLocalOnly != nil && p.isLocalOnly(record.TransactionID) {
			return block.NewLocalOnly(atom)
		}
		return block.NewPrepare(atom)
	case pool.StagePrepared:
		return block.NewLocalPrepare(atom)
	case pool.StageLocalPrepared:
		if isSome {
			return block.NewSomePrepare(atom)
		}
		return block.NewAllPrepare(atom)
	case pool.StageAllPrepared, pool.StageSomePrepared:
		return block.NewLocalAccept(atom)
	case pool.StageLocalAccepted:
		if isSome {
			return block.NewSomeAccept(atom)
		}
		return block.NewAllAccept(atom)
	default:
		// AllAccepted/SomeAccepted/LocalOnly are commit-ready and never
		// reach here: Pool.Ready excludes them.
		return block.NewPrepare(atom)
	}
}

// readySorted returns pool.Ready's candidates sorted by transaction
// id ascending — pool.Ready iterates a Go map and is not itself
// ordered, and spec.md §4.5 requires "transaction commands sorted by
// transaction_id" so every validator independently proposing from the
// same pool state computes a byte-identical command list.
func (p *Proposer) readySorted() []*pool.Record {
	records := p.pool.Ready(p.params.MaxBlockCommands)
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].TransactionID[:], records[j].TransactionID[:]) < 0
	})
	return records
}
