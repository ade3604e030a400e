// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package baselayer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/log"
)

// TipInfo is the base layer's current chain tip, as reported by
// Client.TipInfo.
type TipInfo struct {
	Height uint64
	Hash   [32]byte
}

// Client is the inbound base-layer-scanner collaborator interface
// spec.md §6 describes. Grounded on base_layer_scanner.rs's
// BaseNodeClient calls (get_tip_info, get_header_by_hash,
// get_validator_node_changes, get_sidechain_utxos), collapsed to the
// three typed event streams this module's core actually consumes.
type Client interface {
	TipInfo(ctx context.Context) (TipInfo, error)

	// HeaderHashAt returns the base-layer block hash at height, used
	// to detect a reorg by checking whether the scanner's last
	// scanned height still resolves to the hash it recorded.
	HeaderHashAt(ctx context.Context, height uint64) ([32]byte, error)

	EpochEventsSince(ctx context.Context, height uint64) ([]EpochEvent, error)
	ValidatorChangesSince(ctx context.Context, height uint64) ([]ValidatorChange, error)
	BurntUtxosSince(ctx context.Context, height uint64) ([]BurntUtxo, error)
}

// Callbacks are invoked as a scan discovers new inbound events, in
// the same "caller supplies callbacks, package drives no consensus
// logic itself" shape as pacemaker.Callbacks. Callbacks must be
// idempotent: a reorg rewinds the cursor to genesis and re-delivers
// every event from height 0 (spec.md §8 scenario 5: "Validator
// registrations are re-applied idempotently").
type Callbacks struct {
	OnEpochEvent      func(EpochEvent)
	OnValidatorChange func(ValidatorChange)
	OnBurntUtxo       func(BurntUtxo)
}

// Scanner polls a Client at a fixed interval, tracking a
// (last_scanned_height, last_scanned_hash) cursor and rewinding it to
// genesis on reorg, following base_layer_scanner.rs's
// get_blockchain_progression/sync_blockchain shape.
type Scanner struct {
	log      log.Logger
	client   Client
	cb       Callbacks
	interval time.Duration

	mu                sync.Mutex
	lastScannedHeight uint64
	lastScannedHash   [32]byte
	hasScanned        bool
}

// New constructs a Scanner. It does not begin polling until Run is
// called.
func New(logger log.Logger, client Client, interval time.Duration, cb Callbacks) *Scanner {
	return &Scanner{log: logger, client: client, interval: interval, cb: cb}
}

// Run scans once immediately, then polls every interval until ctx is
// cancelled. A failed scan is logged and retried on the next tick,
// mirroring base_layer_scanner.rs's start loop ("if let Err(err) =
// self.scan_blockchain().await { error!(...) }" inside the select
// loop, never aborting the loop itself).
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.ScanOnce(ctx); err != nil {
		s.log.Warn("base layer scan failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				s.log.Warn("base layer scan failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ScanOnce performs a single poll-and-ingest cycle. Exported so tests
// and callers with their own scheduling loop can drive a scan
// directly instead of through Run.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	tip, err := s.client.TipInfo(ctx)
	if err != nil {
		return fmt.Errorf("baselayer: get tip info: %w", err)
	}

	s.mu.Lock()
	fromHeight := s.lastScannedHeight
	lastHash := s.lastScannedHash
	hasScanned := s.hasScanned
	s.mu.Unlock()

	if hasScanned {
		if tip.Hash == lastHash {
			return nil
		}
		if reorged, err := s.detectReorg(ctx, fromHeight, lastHash, tip); err != nil {
			return err
		} else if reorged {
			s.log.Warn("base layer reorg detected, rescanning from genesis")
			fromHeight = 0
		}
	}

	if err := s.ingest(ctx, fromHeight); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastScannedHeight = tip.Height
	s.lastScannedHash = tip.Hash
	s.hasScanned = true
	s.mu.Unlock()
	return nil
}

func (s *Scanner) detectReorg(ctx context.Context, fromHeight uint64, lastHash [32]byte, tip TipInfo) (bool, error) {
	if tip.Height < fromHeight {
		return true, nil
	}
	if fromHeight == 0 {
		return false, nil
	}
	actual, err := s.client.HeaderHashAt(ctx, fromHeight)
	if err != nil {
		return false, fmt.Errorf("baselayer: header hash at %d: %w", fromHeight, err)
	}
	return actual != lastHash, nil
}

func (s *Scanner) ingest(ctx context.Context, fromHeight uint64) error {
	events, err := s.client.EpochEventsSince(ctx, fromHeight)
	if err != nil {
		return fmt.Errorf("baselayer: epoch events since %d: %w", fromHeight, err)
	}
	for _, e := range events {
		if s.cb.OnEpochEvent != nil {
			s.cb.OnEpochEvent(e)
		}
	}

	changes, err := s.client.ValidatorChangesSince(ctx, fromHeight)
	if err != nil {
		return fmt.Errorf("baselayer: validator changes since %d: %w", fromHeight, err)
	}
	for _, c := range changes {
		if s.cb.OnValidatorChange != nil {
			s.cb.OnValidatorChange(c)
		}
	}

	utxos, err := s.client.BurntUtxosSince(ctx, fromHeight)
	if err != nil {
		return fmt.Errorf("baselayer: burnt utxos since %d: %w", fromHeight, err)
	}
	for _, u := range utxos {
		if s.cb.OnBurntUtxo != nil {
			s.cb.OnBurntUtxo(u)
		}
	}

	return nil
}

// Cursor returns the scanner's current (last_scanned_height,
// last_scanned_hash) position, for diagnostics and tests.
func (s *Scanner) Cursor() (height uint64, hash [32]byte, hasScanned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScannedHeight, s.lastScannedHash, s.hasScanned
}
