// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package committee maps an epoch's validator set onto shard groups
// (spec.md §3/§4.4): each shard group is served by one committee, a
// subset of the network's validators. Grounded on validator/new.go
// and validator/validators.go's re-export-from-github.com/luxfi/validators
// pattern; this package wraps that same validators.State rather than
// reimplementing stake/weight bookkeeping.
package committee

import (
	"context"
	"fmt"
	"sort"

	"github.com/luxfi/ids"
	luxvalidators "github.com/luxfi/validators"
	"github.com/shardbft/consensus/shard"
)

// Committee is the set of validators responsible for one shard group
// in one epoch.
type Committee struct {
	Epoch      uint64
	ShardGroup shard.ShardGroup
	Members    []*luxvalidators.GetValidatorOutput
}

// Contains reports whether nodeID is a member of this committee.
func (c Committee) Contains(nodeID ids.NodeID) bool {
	for _, m := range c.Members {
		if m.NodeID == nodeID {
			return true
		}
	}
	return false
}

// QuorumWeight returns the minimum total weight required for a
// quorum certificate over this committee: strictly more than 2/3 of
// total weight, matching spec.md §3's "at-least-⅔ committee members"
// description applied to weighted validators rather than a flat
// count.
func (c Committee) QuorumWeight() uint64 {
	var total uint64
	for _, m := range c.Members {
		total += m.Weight
	}
	return total*2/3 + 1
}

// LeaderForHeight returns the deterministic round-robin leader for a
// given block height within this committee (spec.md §4.3: "the
// deterministic round-robin leader schedule of the local committee",
// used both for normal proposals and to fill in dummy blocks).
func (c Committee) LeaderForHeight(height uint64) (ids.NodeID, error) {
	if len(c.Members) == 0 {
		return ids.EmptyNodeID, fmt.Errorf("committee: empty committee for shard group %v", c.ShardGroup)
	}
	idx := int(height % uint64(len(c.Members)))
	return c.Members[idx].NodeID, nil
}

// Directory resolves committees for an epoch from the network's full
// validator set, partitioning it across shard.Partition's groups in
// NodeID order — a simple, deterministic assignment. spec.md does not
// mandate a specific stake-weighted or VRF-based assignment scheme,
// so the simplest deterministic rule is used here (an Open Question
// decision, recorded in DESIGN.md).
type Directory struct {
	state    luxvalidators.State
	subnetID ids.ID
}

// NewDirectory wraps a github.com/luxfi/validators.State to serve
// per-shard-group committees for the given subnet.
func NewDirectory(state luxvalidators.State, subnetID ids.ID) *Directory {
	return &Directory{state: state, subnetID: subnetID}
}

// CommitteesForEpoch returns every shard group's committee for the
// given epoch (resolved to a validator-set height by the caller),
// partitioning the validator set across numShards/numCommittees
// groups.
func (d *Directory) CommitteesForEpoch(ctx context.Context, epoch, atHeight uint64, numShards shard.NumPreshards, numCommittees uint32) ([]Committee, error) {
	set, err := d.state.GetValidatorSet(ctx, atHeight, d.subnetID)
	if err != nil {
		return nil, fmt.Errorf("committee: get validator set at height %d: %w", atHeight, err)
	}

	all := make([]*luxvalidators.GetValidatorOutput, 0, len(set))
	for _, v := range set {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool {
		return lessNodeID(all[i].NodeID, all[j].NodeID)
	})

	groups := shard.Partition(numShards, numCommittees)
	committees := make([]Committee, 0, len(groups))
	n := len(groups)
	if n == 0 {
		return committees, nil
	}
	perGroup := len(all) / n
	for i, g := range groups {
		start := i * perGroup
		end := start + perGroup
		if i == n-1 {
			end = len(all)
		}
		if start > len(all) {
			start = len(all)
		}
		if end > len(all) {
			end = len(all)
		}
		committees = append(committees, Committee{Epoch: epoch, ShardGroup: g, Members: all[start:end]})
	}
	return committees, nil
}

func lessNodeID(a, b ids.NodeID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
