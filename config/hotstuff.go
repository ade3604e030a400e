// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "time"

// HotstuffParams bundles the sharded-BFT-specific consensus constants
// spec.md §4.1/§4.9/§5 treats as "configurable consensus constants"
// rather than source-level literals. It is the only parameter set in
// this package: a struct with a Valid() check and two preset
// constructors (DefaultHotstuffParams, LocalNetHotstuffParams).
type HotstuffParams struct {
	// BlockTime is the pacemaker's block_time clock period (spec.md
	// §4.1).
	BlockTime time.Duration `json:"blockTime" yaml:"blockTime"`

	// BaseLeaderFailureTime/MaxLeaderFailureTime bound the
	// leader_failure clock's exponential backoff (spec.md §4.1
	// "resets timers using exponential backoff on consecutive leader
	// failures").
	BaseLeaderFailureTime time.Duration `json:"baseLeaderFailureTime" yaml:"baseLeaderFailureTime"`
	MaxLeaderFailureTime  time.Duration `json:"maxLeaderFailureTime" yaml:"maxLeaderFailureTime"`

	// ForeignProposalRequestTimeout/MissingForeignProposalTimeout
	// resolve the Open Question spec.md §9 leaves unanswered ("the
	// source TODO comments describe REQUEST_FOREIGN_PROPOSAL_TIMEOUT
	// and MISSING_FOREIGN_PROPOSAL_TIMEOUT but the handler is commented
	// out"). The defaults are 2x and 10x BlockTime respectively. No
	// component in this module reads these two fields: there is no
	// foreign-proposal request timer and no retry of a
	// ForeignProposalRequest.
	ForeignProposalRequestTimeout  time.Duration `json:"foreignProposalRequestTimeout" yaml:"foreignProposalRequestTimeout"`
	MissingForeignProposalTimeout time.Duration `json:"missingForeignProposalTimeout" yaml:"missingForeignProposalTimeout"`

	// EvictionParticipationThreshold/EvictionWindowBlocks resolve the
	// eviction-threshold Open Question (spec.md §9/§4.9): a validator
	// whose participation share over the blocks recorded so far in the
	// epoch falls below the threshold becomes eviction-eligible, once
	// at least EvictionWindowBlocks blocks have been recorded.
	EvictionParticipationThreshold float64 `json:"evictionParticipationThreshold" yaml:"evictionParticipationThreshold"`
	EvictionWindowBlocks           uint64  `json:"evictionWindowBlocks" yaml:"evictionWindowBlocks"`

	// MaxBlockCommands caps the per-block command budget the proposer
	// (spec.md §4.5) draws from; MaxMintsPerBlock further bounds how
	// many MintConfidentialOutput atoms it will include in one block.
	MaxBlockCommands  int `json:"maxBlockCommands" yaml:"maxBlockCommands"`
	MaxMintsPerBlock  int `json:"maxMintsPerBlock" yaml:"maxMintsPerBlock"`

	// EpochsInSync is a configured bound on how many epochs a
	// CatchUpSyncRequest may span. No component in this module reads
	// it; the gateway does not check it.
	EpochsInSync uint64 `json:"epochsInSync" yaml:"epochsInSync"`

	// AcceptedEpochSkew is the inclusive window around the local
	// node's current epoch that inbound messages are accepted from
	// (spec.md §4.2: "epoch in [current - 10, current]").
	AcceptedEpochSkew uint64 `json:"acceptedEpochSkew" yaml:"acceptedEpochSkew"`
}

// Valid reports whether p's fields fall within the ranges spec.md
// requires for them to make sense (strictly positive durations, a
// threshold within [0, 1]).
func (p HotstuffParams) Valid() error {
	switch {
	case p.BlockTime <= 0:
		return &hotstuffParamError{field: "blockTime", reason: "must be > 0"}
	case p.BaseLeaderFailureTime <= 0:
		return &hotstuffParamError{field: "baseLeaderFailureTime", reason: "must be > 0"}
	case p.MaxLeaderFailureTime < p.BaseLeaderFailureTime:
		return &hotstuffParamError{field: "maxLeaderFailureTime", reason: "must be >= baseLeaderFailureTime"}
	case p.EvictionParticipationThreshold < 0 || p.EvictionParticipationThreshold > 1:
		return &hotstuffParamError{field: "evictionParticipationThreshold", reason: "must be within [0, 1]"}
	case p.EvictionWindowBlocks == 0:
		return &hotstuffParamError{field: "evictionWindowBlocks", reason: "must be > 0"}
	case p.MaxBlockCommands <= 0:
		return &hotstuffParamError{field: "maxBlockCommands", reason: "must be > 0"}
	}
	return nil
}

type hotstuffParamError struct {
	field  string
	reason string
}

func (e *hotstuffParamError) Error() string {
	return "hotstuff params: " + e.field + ": " + e.reason
}

// DefaultHotstuffParams returns the mainnet-shaped defaults recorded
// as this repo's Open Question decisions (SPEC_FULL.md §5).
func DefaultHotstuffParams() HotstuffParams {
	blockTime := 5 * time.Second
	return HotstuffParams{
		BlockTime:                      blockTime,
		BaseLeaderFailureTime:          2 * blockTime,
		MaxLeaderFailureTime:           10 * blockTime,
		ForeignProposalRequestTimeout:  2 * blockTime,
		MissingForeignProposalTimeout:  10 * blockTime,
		EvictionParticipationThreshold: 0.5,
		EvictionWindowBlocks:           50,
		MaxBlockCommands:               500,
		MaxMintsPerBlock:               50,
		EpochsInSync:                   2,
		AcceptedEpochSkew:              10,
	}
}

// LocalNetHotstuffParams returns faster timings for local development
// networks.
func LocalNetHotstuffParams() HotstuffParams {
	p := DefaultHotstuffParams()
	p.BlockTime = 500 * time.Millisecond
	p.BaseLeaderFailureTime = 2 * p.BlockTime
	p.MaxLeaderFailureTime = 10 * p.BlockTime
	p.ForeignProposalRequestTimeout = 2 * p.BlockTime
	p.MissingForeignProposalTimeout = 10 * p.BlockTime
	p.EvictionWindowBlocks = 20
	return p
}
