// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gatewaymock provides a go.uber.org/mock/gomock mock of
// gateway.SignatureVerifier, in the same hand-maintained
// mockgen-output shape as validator/validatorsmock's re-export of
// github.com/luxfi/validators/validatorsmock.State — this package has
// no upstream equivalent to re-export, so the mock is written directly
// against gomock.Controller/Call rather than fabricated as an
// external dependency.
package gatewaymock

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/committee"
	"github.com/shardbft/consensus/gateway"
	"github.com/shardbft/consensus/wire"
)

var _ gateway.SignatureVerifier = (*SignatureVerifier)(nil)

// SignatureVerifier is a mock of gateway.SignatureVerifier.
type SignatureVerifier struct {
	ctrl     *gomock.Controller
	recorder *SignatureVerifierMockRecorder
}

// SignatureVerifierMockRecorder is the recorder for SignatureVerifier.
type SignatureVerifierMockRecorder struct {
	mock *SignatureVerifier
}

// NewSignatureVerifier constructs a mock SignatureVerifier.
func NewSignatureVerifier(ctrl *gomock.Controller) *SignatureVerifier {
	m := &SignatureVerifier{ctrl: ctrl}
	m.recorder = &SignatureVerifierMockRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected calls.
func (m *SignatureVerifier) EXPECT() *SignatureVerifierMockRecorder {
	return m.recorder
}

// VerifyVote mocks gateway.SignatureVerifier.VerifyVote.
func (m *SignatureVerifier) VerifyVote(v *wire.Vote, c committee.Committee) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VerifyVote", v, c)
	ret0, _ := ret[0].(error)
	return ret0
}

// VerifyVote indicates an expected call of VerifyVote.
func (mr *SignatureVerifierMockRecorder) VerifyVote(v, c interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VerifyVote", reflect.TypeOf((*SignatureVerifier)(nil).VerifyVote), v, c)
}

// VerifyProposalSignature mocks gateway.SignatureVerifier.VerifyProposalSignature.
func (m *SignatureVerifier) VerifyProposalSignature(proposedBy []byte, blockID block.ID, signature []byte, c committee.Committee) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VerifyProposalSignature", proposedBy, blockID, signature, c)
	ret0, _ := ret[0].(error)
	return ret0
}

// VerifyProposalSignature indicates an expected call of VerifyProposalSignature.
func (mr *SignatureVerifierMockRecorder) VerifyProposalSignature(proposedBy, blockID, signature, c interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VerifyProposalSignature", reflect.TypeOf((*SignatureVerifier)(nil).VerifyProposalSignature), proposedBy, blockID, signature, c)
}

// VerifyQC mocks gateway.SignatureVerifier.VerifyQC.
func (m *SignatureVerifier) VerifyQC(qc block.QuorumCertificate, c committee.Committee) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VerifyQC", qc, c)
	ret0, _ := ret[0].(error)
	return ret0
}

// VerifyQC indicates an expected call of VerifyQC.
func (mr *SignatureVerifierMockRecorder) VerifyQC(qc, c interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VerifyQC", reflect.TypeOf((*SignatureVerifier)(nil).VerifyQC), qc, c)
}
