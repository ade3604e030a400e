// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"github.com/luxfi/crypto/bls"
	"github.com/shardbft/consensus/shard"
)

// AggregatedSignature wraps a BLS aggregate signature over a block id
// plus the signer bitmap, the "aggregated signatures of at-least-⅔
// committee members" of spec.md §3. Grounded on
// github.com/luxfi/crypto/bls, the same package teacher's
// vms/platformvm/warp/signer.go builds its Signer interface around.
type AggregatedSignature struct {
	Signature *bls.Signature
	// Signers is a bitmap over the committee's canonical validator
	// ordering for this epoch/shard-group; bit i set means validator i
	// contributed to Signature.
	Signers []byte
}

// QuorumCertificate is an aggregated ≥⅔-committee certificate over a
// block id and decision (spec.md §3).
type QuorumCertificate struct {
	ID               ID
	BlockID          ID
	BlockHeight      uint64
	Epoch            uint64
	ShardGroup       shard.ShardGroup
	Decision         Decision
	Signatures       AggregatedSignature
	MerkleProofLeaves [][]byte
}

// GenesisQC returns the well-known QC justifying height-0 blocks: it
// references the zero block id and carries no real signature.
func GenesisQC(epoch uint64, sg shard.ShardGroup) QuorumCertificate {
	return QuorumCertificate{
		BlockID:     ID{},
		BlockHeight: 0,
		Epoch:       epoch,
		ShardGroup:  sg,
		Decision:    Commit(),
	}
}

// IsGenesis reports whether this QC is the synthetic genesis QC.
func (qc QuorumCertificate) IsGenesis() bool {
	return qc.BlockID == (ID{}) && qc.BlockHeight == 0
}
