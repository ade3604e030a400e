// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire defines the HotstuffMessage envelope (spec.md §6) and
// its binary codec. google.golang.org/protobuf was the obvious choice
// for this but is dropped (no protoc available to generate .pb.go —
// see DESIGN.md); instead this package hand-rolls a length-prefixed
// little-endian codec in the same fixed-layout idiom
// block.Block.HeaderBytes already uses for the block header. Map-valued
// fields (a ForeignProposal's BlockPledge, and the shard groups,
// inputs and outputs of a TransactionAtom's Evidence) are written in
// Go map iteration order, so messages carrying them do not have a
// single canonical encoding.
package wire

import (
	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/storage"
)

// Kind discriminates the HotstuffMessage oneof.
type Kind uint8

const (
	KindProposal Kind = iota
	KindForeignProposal
	KindForeignProposalNotification
	KindForeignProposalRequest
	KindVote
	KindNewView
	KindMissingTransactionsRequest
	KindMissingTransactionsResponse
	KindCatchUpSyncRequest
	KindSyncResponse
)

func (k Kind) String() string {
	switch k {
	case KindProposal:
		return "Proposal"
	case KindForeignProposal:
		return "ForeignProposal"
	case KindForeignProposalNotification:
		return "ForeignProposalNotification"
	case KindForeignProposalRequest:
		return "ForeignProposalRequest"
	case KindVote:
		return "Vote"
	case KindNewView:
		return "NewView"
	case KindMissingTransactionsRequest:
		return "MissingTransactionsRequest"
	case KindMissingTransactionsResponse:
		return "MissingTransactionsResponse"
	case KindCatchUpSyncRequest:
		return "CatchUpSyncRequest"
	case KindSyncResponse:
		return "SyncResponse"
	default:
		return "Unknown"
	}
}

// VoteDecision is Vote's decision field (spec.md §6: "decision ∈
// {Accept, Reject}" — a coarser field than block.Decision's abort
// reasons, since a NoVote never goes on the wire as a vote at all).
type VoteDecision uint8

const (
	VoteAccept VoteDecision = iota
	VoteReject
)

type Proposal struct {
	Block            block.Block
	ForeignProposals []ForeignProposal
}

type ForeignProposal struct {
	Block       block.Block
	JustifyQC   block.QuorumCertificate
	BlockPledge map[block.TransactionID][]storage.SubstatePledge
}

type ForeignProposalNotification struct {
	BlockID block.ID
	Epoch   uint64
}

// ForeignProposalRequest names either a specific block id, or an
// (epoch, shard_group) pair (spec.md §6 "block_id | (epoch,
// shard_group)"); exactly one of the two forms is populated.
type ForeignProposalRequest struct {
	BlockID    *block.ID
	Epoch      uint64
	ShardGroup shard.ShardGroup
	ByEpoch    bool
}

type Vote struct {
	Epoch                  uint64
	BlockID                block.ID
	UnverifiedBlockHeight  uint64
	Decision               VoteDecision
	Signature              []byte
}

type NewView struct {
	HighQC    block.QuorumCertificate
	NewHeight uint64
	LastVote  *Vote
}

type MissingTransactionsRequest struct {
	BlockID        block.ID
	TransactionIDs []block.TransactionID
}

type MissingTransactionsResponse struct {
	BlockID      block.ID
	Transactions [][]byte // opaque transaction payloads, caller decodes
}

type CatchUpSyncRequest struct {
	FromEpoch  uint64
	FromHeight uint64
}

type SyncResponse struct {
	Blocks []block.Block
	QCs    []block.QuorumCertificate
}

// Message is the HotstuffMessage oneof: exactly one of the typed
// fields matching Kind is populated.
type Message struct {
	Kind Kind

	Proposal                    *Proposal
	ForeignProposal             *ForeignProposal
	ForeignProposalNotification *ForeignProposalNotification
	ForeignProposalRequest      *ForeignProposalRequest
	Vote                        *Vote
	NewView                     *NewView
	MissingTransactionsRequest  *MissingTransactionsRequest
	MissingTransactionsResponse *MissingTransactionsResponse
	CatchUpSyncRequest          *CatchUpSyncRequest
	SyncResponse                *SyncResponse
}
