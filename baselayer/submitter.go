// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package baselayer

import (
	"context"

	"github.com/shardbft/consensus/eviction"
)

// TransactionSubmitter is the outbound base-layer-client call spec.md
// §6 names ("core calls layer_one_submitter.submit(tx)").
type TransactionSubmitter interface {
	SubmitTransaction(ctx context.Context, tx LayerOneTransaction) error
}

// SubmitterAdapter satisfies eviction.LayerOneSubmitter by wrapping a
// TransactionSubmitter with a fixed context, so eviction's tracker
// (which has no context of its own to thread through) can submit
// eviction proofs without this package's wire shape leaking into
// eviction.
type SubmitterAdapter struct {
	ctx context.Context
	sub TransactionSubmitter
}

var _ eviction.LayerOneSubmitter = (*SubmitterAdapter)(nil)

// NewSubmitterAdapter constructs a SubmitterAdapter. ctx governs every
// submission made through it; callers that need per-call cancellation
// should construct a fresh adapter per call instead.
func NewSubmitterAdapter(ctx context.Context, sub TransactionSubmitter) *SubmitterAdapter {
	return &SubmitterAdapter{ctx: ctx, sub: sub}
}

// Submit implements eviction.LayerOneSubmitter.
func (a *SubmitterAdapter) Submit(payloadType string, payload []byte) error {
	return a.sub.SubmitTransaction(a.ctx, LayerOneTransaction{PayloadType: payloadType, Payload: payload})
}
