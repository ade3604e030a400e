// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"errors"
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/config"
	"github.com/shardbft/consensus/gateway/gatewaymock"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/wire"
)

func newVerifiedTestGateway(t *testing.T, verifier SignatureVerifier, local block.NodeID) *Gateway {
	t.Helper()
	reg := prometheus.NewRegistry()
	p, err := pool.New(log.NoLog{}, reg)
	require.NoError(t, err)
	return New(log.NoLog{}, config.DefaultHotstuffParams(), verifier, p, nil, local, 1)
}

func TestProcessProposalRejectsInvalidSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	comm, _ := testCommittee(t, 4)
	local := ids.GenerateTestNodeID()

	verifier := gatewaymock.NewSignatureVerifier(ctrl)
	verifyErr := errors.New("bls: signature does not verify")
	verifier.EXPECT().
		VerifyProposalSignature(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(verifyErr)

	g := newVerifiedTestGateway(t, verifier, local)

	b := block.Block{
		Epoch:      comm.Epoch,
		ShardGroup: comm.ShardGroup,
		Height:     1,
		ProposedBy: []byte("leader-pubkey"),
		Signature:  []byte("a-signature"),
	}
	b.ID = b.Hash()

	res := g.ProcessProposal(wire.Proposal{Block: b}, comm.Epoch, comm)
	require.Equal(t, OutcomeInvalid, res.Outcome)
	require.ErrorIs(t, res.Err, ErrSignatureInvalid)
}

func TestProcessProposalAcceptsValidSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	comm, _ := testCommittee(t, 4)
	local := ids.GenerateTestNodeID()

	verifier := gatewaymock.NewSignatureVerifier(ctrl)
	verifier.EXPECT().
		VerifyProposalSignature(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	g := newVerifiedTestGateway(t, verifier, local)

	b := block.Block{
		Epoch:      comm.Epoch,
		ShardGroup: comm.ShardGroup,
		Height:     1,
		ProposedBy: []byte("leader-pubkey"),
		Signature:  []byte("a-signature"),
	}
	b.ID = b.Hash()

	res := g.ProcessProposal(wire.Proposal{Block: b}, comm.Epoch, comm)
	require.Equal(t, OutcomeReady, res.Outcome)
}
