// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool implements the TransactionPoolRecord state machine
// (spec.md §3/§4.6): the ordered pipeline a transaction moves through
// as local and foreign evidence accumulates, and the pending/committed
// transition bookkeeping a block proposal needs before it can be
// locked in. Grounded on engine/chain/poll/set.go for the
// log.Logger + prometheus.Registerer constructor idiom.
package pool

// Stage is a TransactionPoolStage (spec.md §3). Stages are ordered;
// a record may only move forward, never backward, except for the
// LocalOnly short-circuit which jumps straight past the multi-shard
// stages.
type Stage uint8

const (
	StageNew Stage = iota
	StagePrepared
	StageLocalPrepared
	StageAllPrepared
	StageSomePrepared
	StageLocalAccepted
	StageAllAccepted
	StageSomeAccepted
	StageLocalOnly
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "New"
	case StagePrepared:
		return "Prepared"
	case StageLocalPrepared:
		return "LocalPrepared"
	case StageAllPrepared:
		return "AllPrepared"
	case StageSomePrepared:
		return "SomePrepared"
	case StageLocalAccepted:
		return "LocalAccepted"
	case StageAllAccepted:
		return "AllAccepted"
	case StageSomeAccepted:
		return "SomeAccepted"
	case StageLocalOnly:
		return "LocalOnly"
	default:
		return "Unknown"
	}
}

// order gives each stage's position in the forward-only pipeline,
// except LocalOnly which sits in its own track (it never follows
// AllPrepared/SomePrepared and is reached directly from New).
var order = map[Stage]int{
	StageNew:           0,
	StagePrepared:      1,
	StageLocalPrepared: 2,
	StageAllPrepared:   3,
	StageSomePrepared:  3,
	StageLocalAccepted: 4,
	StageAllAccepted:   5,
	StageSomeAccepted:  5,
	StageLocalOnly:     1,
}

// CanContinueTo reports whether a transition from s to next is a
// legal forward move in the pipeline (spec.md §4.6 can_continue_to).
// LocalOnly may only be reached from New, and once reached is
// terminal except for the final commit. Prepared/LocalPrepared may
// also jump straight to LocalAccepted: the output-only fast path
// (transaction_pool.rs's "Output-only case - we can skip straight to
// LocalAccepted", and the LocalPrepared->LocalAccepted edge spec.md
// §4.6 lists directly) for a transaction with no input shard group
// left to prepare against.
func (s Stage) CanContinueTo(next Stage) bool {
	if s == StageLocalOnly {
		return false
	}
	if next == StageLocalOnly {
		return s == StageNew
	}
	if next == StageLocalAccepted && (s == StagePrepared || s == StageLocalPrepared) {
		return true
	}
	return order[next] == order[s]+1 || (order[next] == order[s] && next != s)
}

// IsPrepared reports whether this stage is LocalPrepared or later.
func (s Stage) IsPrepared() bool {
	return order[s] >= order[StageLocalPrepared] && s != StageLocalOnly
}

// IsAccepted reports whether this stage is LocalAccepted or later,
// or the transaction took the LocalOnly shortcut.
func (s Stage) IsAccepted() bool {
	return s == StageLocalOnly || order[s] >= order[StageLocalAccepted]
}

// IsReadyToCommit reports whether this stage is a terminal stage from
// which a block may commit the transaction (AllAccept/SomeAccept for
// multi-shard, LocalOnly for single-shard).
func (s Stage) IsReadyToCommit() bool {
	switch s {
	case StageAllAccepted, StageSomeAccepted, StageLocalOnly:
		return true
	default:
		return false
	}
}
