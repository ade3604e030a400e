// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/log"
	"github.com/shardbft/consensus/block"
)

var errFailedPoolSizeMetric = errors.New("failed to register transaction pool size metric")

// Pool tracks every in-flight TransactionPoolRecord, indexed by
// transaction id. It mirrors engine/chain/poll.Set's shape: a
// log.Logger for structured per-event logging, a single
// prometheus.Gauge tracking live size, and a plain map in place of
// poll.Set's linked.Hashmap (pool records are looked up by id, never
// iterated in insertion order).
type Pool struct {
	log     log.Logger
	size    prometheus.Gauge
	records map[block.TransactionID]*Record
}

// New returns an empty Pool.
func New(logger log.Logger, reg prometheus.Registerer) (*Pool, error) {
	size := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transaction_pool_size",
		Help: "Number of transactions currently tracked by the pool",
	})
	if err := reg.Register(size); err != nil {
		return nil, fmt.Errorf("%w: %w", errFailedPoolSizeMetric, err)
	}
	return &Pool{
		log:     logger,
		size:    size,
		records: make(map[block.TransactionID]*Record),
	}, nil
}

// GetOrCreate returns the existing record for txID, creating a fresh
// New-stage one if it doesn't exist yet.
func (p *Pool) GetOrCreate(txID block.TransactionID) *Record {
	r, ok := p.records[txID]
	if ok {
		return r
	}
	r = NewRecord(txID)
	p.records[txID] = r
	p.size.Inc()
	p.log.Debug("pool record created", "transactionID", txID, "stage", r.Stage)
	return r
}

// Get returns the record for txID, if tracked.
func (p *Pool) Get(txID block.TransactionID) (*Record, bool) {
	r, ok := p.records[txID]
	return r, ok
}

// Remove drops txID from the pool, e.g. once its commit has been
// executed and persisted.
func (p *Pool) Remove(txID block.TransactionID) {
	if _, ok := p.records[txID]; !ok {
		return
	}
	delete(p.records, txID)
	p.size.Dec()
	p.log.Debug("pool record removed", "transactionID", txID)
}

// Len returns the number of tracked records.
func (p *Pool) Len() int {
	return len(p.records)
}

// ConfirmAllTransitions commits, for every record with a pending
// update proposed by lockedBlockID, that update, and discards the
// pending updates of every other record that had a (now-abandoned)
// tentative update for a sibling of lockedBlockID (spec.md §4.6
// confirm_all_transitions — called once per locked block, with the
// set of transaction ids that block's commands touched).
func (p *Pool) ConfirmAllTransitions(lockedBlockID block.ID, touchedTxIDs []block.TransactionID) {
	for _, txID := range touchedTxIDs {
		r, ok := p.records[txID]
		if !ok {
			continue
		}
		if r.ConfirmTransition(lockedBlockID) {
			p.log.Debug("pool record transition confirmed",
				"transactionID", txID,
				"blockID", lockedBlockID,
				"stage", r.Stage,
				"decision", r.Decision,
			)
			if r.Stage.IsReadyToCommit() {
				continue
			}
		} else {
			r.DiscardPending()
		}
	}
}

// Ready returns up to maxItems records sitting at any non-terminal
// stage with no pending update yet — candidates a proposer can pick
// up for their next pipeline command (spec.md §4.5 block proposer
// command selection). A record stops being a candidate once it
// reaches a commit-ready stage (AllAccepted/SomeAccepted/LocalOnly);
// everything short of that, including one a foreign handler has
// already advanced past New/Prepared, must keep being offered back to
// the proposer or it can never progress to commit.
func (p *Pool) Ready(maxItems int) []*Record {
	out := make([]*Record, 0, maxItems)
	for _, r := range p.records {
		if len(out) >= maxItems {
			break
		}
		if !r.Stage.IsReadyToCommit() && len(r.Pending) == 0 {
			out = append(out, r)
		}
	}
	return out
}
