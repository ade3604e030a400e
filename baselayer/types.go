// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package baselayer defines the inbound/outbound shapes of the
// base-layer scanner collaborator spec.md §6 describes: the core
// consumes a stream of EpochEvents, ValidatorChanges and BurntUtxos
// from it, and submits LayerOneTransactions (eviction proofs, ...)
// back to it. Grounded on
// original_source/applications/tari_dan_app_utilities/src/base_layer_scanner.rs's
// ValidatorNodeChange/BurntUtxo/SideChainFeatureData shapes, renamed
// to this module's naming and trimmed to what the core actually
// consumes (no template registration — out of scope per spec.md §1).
package baselayer

import (
	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/shard"
)

// EpochEventKind discriminates EpochEvent's single current variant;
// kept as an enum rather than a bare struct so the wire shape can grow
// more variants without changing the Client interface.
type EpochEventKind uint8

const (
	// EpochChanged fires when the base layer's height has advanced
	// past the boundary of the current epoch (spec.md §4.5 item 5:
	// "EndEpoch iff the base-layer epoch has advanced past the
	// current epoch").
	EpochChanged EpochEventKind = iota
)

// EpochEvent is an inbound notification from the base-layer scanner.
type EpochEvent struct {
	Kind EpochEventKind

	// Epoch is the newly-active base-layer epoch.
	Epoch uint64

	// RegisteredShardGroup is set when this node has a validator
	// registration activating in Epoch, naming the shard group it is
	// registered against; nil if this node has no registration
	// activating this epoch.
	RegisteredShardGroup *shard.ShardGroup
}

// ValidatorChangeKind discriminates ValidatorChange's two variants.
type ValidatorChangeKind uint8

const (
	ValidatorAdd ValidatorChangeKind = iota
	ValidatorRemove
)

// ValidatorChange is an inbound validator-registration change scanned
// from the base layer (spec.md §6: "ValidatorChange { Add{pk,
// activation_epoch, claim_pk}, Remove{pk} }").
type ValidatorChange struct {
	Kind ValidatorChangeKind

	// PublicKey is the BLS public key of the validator being
	// registered or deregistered, in compressed form (the same
	// encoding bls.PublicKeyToCompressedBytes produces — see
	// committee package).
	PublicKey []byte

	// ActivationEpoch is the epoch this registration takes effect,
	// populated for Add only.
	ActivationEpoch uint64

	// ClaimPublicKey is the fee-claim key associated with an Add
	// registration.
	ClaimPublicKey []byte
}

// BurntUtxo is an inbound confirmation that a base-layer UTXO was
// burnt to mint a confidential output on this network (spec.md §6:
// "BurntUtxo { commitment_address, value, height }").
type BurntUtxo struct {
	CommitmentAddress block.ID
	Value             uint64
	Height            uint64
}

// Mint converts a scanned BurntUtxo into the UtxoMint payload a
// proposer includes as a MintConfidentialOutput command (spec.md
// §4.5).
func (u BurntUtxo) Mint() *block.UtxoMint {
	return &block.UtxoMint{
		CommitmentAddress: u.CommitmentAddress,
		Value:             u.Value,
		BaseLayerHeight:   u.Height,
	}
}

// LayerOneTransaction is the outbound payload spec.md §6 describes
// ("LayerOneTransaction { payload_type, payload }. The core calls
// layer_one_submitter.submit(tx)"). eviction.LayerOneSubmitter already
// defines the submit call itself as Submit(payloadType, payload) —
// this struct exists for callers that want to carry the pair together
// (e.g. queuing submissions), and SubmitterAdapter below bridges it to
// that interface.
type LayerOneTransaction struct {
	PayloadType string
	Payload     []byte
}
