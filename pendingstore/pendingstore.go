// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pendingstore implements the per-candidate-block substate
// overlay a proposal builds while it has not yet been committed: an
// append-only diff over a parent block's committed state, plus the
// lock-compatibility matrix that decides whether a transaction may
// take a given lock on a substate (spec.md §4.7). Grounded on
// original_source/dan_layer/consensus/src/hotstuff/substate_store/pending_store.rs,
// translated from its Option/Result idiom to Go's (value, bool, error)
// idiom, and on engine/chain/poll/set.go for the log.Logger
// constructor convention.
package pendingstore

import (
	"errors"
	"fmt"

	"github.com/luxfi/log"
	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/storage"
	"github.com/shardbft/consensus/substate"
)

var (
	ErrSubstateNotFound      = errors.New("pendingstore: substate not found")
	ErrSubstateIsDown        = errors.New("pendingstore: substate is down")
	ErrExpectedSubstateDown  = errors.New("pendingstore: expected substate to be down")
	ErrSubstateIsUp          = errors.New("pendingstore: substate already exists (is up)")
)

// LockConflict describes why a lock request failed.
type LockConflict struct {
	SubstateID    shard.SubstateId
	Existing      substate.LockType
	Requested     substate.LockType
	TransactionID block.TransactionID
	IsLocalOnly   bool
}

func (c LockConflict) Error() string {
	return fmt.Sprintf("pendingstore: lock conflict on %s: existing=%s requested=%s tx=%s local_only=%v",
		c.SubstateID, c.Existing, c.Requested, c.TransactionID, c.IsLocalOnly)
}

// Store is the per-proposal overlay described in spec.md §4.7: reads
// check the pending diff, then the committed substate table; writes
// only ever append to the pending diff. Diffs of uncommitted ancestor
// blocks are not consulted (parentBlock is recorded but not read).
// A Store is built fresh for each candidate block and discarded
// if that block doesn't get locked in.
type Store struct {
	log log.Logger

	read        storage.ReadTx
	parentBlock block.ID

	pending map[shard.Address]substate.Change // by substate address
	head    map[string]substate.Change        // by SubstateId.String(), latest change only
	diff    []substate.Change                 // append-only, oldest to newest

	newLocks map[string][]substate.Lock // by SubstateId.String()
}

// New builds a Store reading through readTx, layered over
// parentBlock's already-committed (but possibly not yet executed by
// this store's own pending diff) state.
func New(logger log.Logger, readTx storage.ReadTx, parentBlock block.ID) *Store {
	return &Store{
		log:         logger,
		read:        readTx,
		parentBlock: parentBlock,
		pending:     make(map[shard.Address]substate.Change),
		head:        make(map[string]substate.Change),
		newLocks:    make(map[string][]substate.Lock),
	}
}

// Get returns the up-to-date value for (id, version), or
// ErrSubstateIsDown / ErrSubstateNotFound.
func (s *Store) Get(id shard.SubstateId, version uint32) ([]byte, error) {
	addr := shard.FromSubstateID(id, version)
	if ch, ok := s.pending[addr]; ok {
		if ch.Kind == substate.ChangeDown {
			return nil, ErrSubstateIsDown
		}
		return ch.Up.Value, nil
	}

	rec, err := s.read.SubstatesGet(addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSubstateNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.IsDown() {
		return nil, ErrSubstateIsDown
	}
	return rec.Value, nil
}

// LatestVersion reports the latest known (version, isUp) for id,
// first checking this store's pending diff, then the committed
// table.
func (s *Store) LatestVersion(id shard.SubstateId) (version uint32, isUp bool, err error) {
	if ch, ok := s.head[id.String()]; ok {
		if ch.Kind == substate.ChangeUp {
			return ch.Up.Version, true, nil
		}
		return ch.Down.Version, false, nil
	}

	v, err := s.read.SubstateGetLatestVersion(id)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, ErrSubstateNotFound
	}
	if err != nil {
		return 0, false, err
	}
	addr := shard.FromSubstateID(id, v)
	rec, err := s.read.SubstatesGet(addr)
	if err != nil {
		return 0, false, err
	}
	return v, rec.IsUp(), nil
}

// Put appends change to the pending diff after checking the implied
// version invariant: an Up with a nonzero version must find its
// predecessor version DOWN; a Down must find its target version UP.
func (s *Store) Put(change substate.Change) error {
	switch change.Kind {
	case substate.ChangeUp:
		if change.Up.Version > 0 {
			prevAddr := shard.FromSubstateID(change.Up.ID, change.Up.Version-1)
			if err := s.assertIsDown(change.Up.ID, prevAddr); err != nil {
				return err
			}
		}
	case substate.ChangeDown:
		addr := shard.FromSubstateID(change.Down.ID, change.Down.Version)
		if err := s.assertIsUp(change.Down.ID, addr); err != nil {
			return err
		}
	}
	s.insert(change)
	return nil
}

// PutDiff applies an execution's full (downs, ups) atomically, in
// down-then-up order (spec.md §4.7 put_diff), logging each change the
// way the original logs 🔽/🔼 debug lines.
func (s *Store) PutDiff(txID block.TransactionID, diff substate.Diff) error {
	for _, down := range diff.Downs {
		s.log.Debug("pending store substate down", "transactionID", txID, "substateID", down.Down.ID)
		if err := s.Put(down); err != nil {
			return err
		}
	}
	for _, up := range diff.Ups {
		s.log.Debug("pending store substate up", "transactionID", txID, "substateID", up.Up.ID)
		if err := s.Put(up); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insert(change substate.Change) {
	idx := len(s.diff)
	s.diff = append(s.diff, change)
	switch change.Kind {
	case substate.ChangeUp:
		s.pending[shard.FromSubstateID(change.Up.ID, change.Up.Version)] = change
		s.head[change.Up.ID.String()] = change
	case substate.ChangeDown:
		s.pending[shard.FromSubstateID(change.Down.ID, change.Down.Version)] = change
		s.head[change.Down.ID.String()] = change
	}
	_ = idx
}

func (s *Store) assertIsUp(id shard.SubstateId, addr shard.Address) error {
	if ch, ok := s.pending[addr]; ok {
		if ch.Kind == substate.ChangeDown {
			return ErrSubstateIsDown
		}
		return nil
	}
	rec, err := s.read.SubstatesGet(addr)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrSubstateNotFound
	}
	if err != nil {
		return err
	}
	if rec.IsDown() {
		return ErrSubstateIsDown
	}
	return nil
}

func (s *Store) assertIsDown(id shard.SubstateId, addr shard.Address) error {
	if ch, ok := s.pending[addr]; ok {
		if ch.Kind == substate.ChangeUp {
			return ErrExpectedSubstateDown
		}
		return nil
	}
	rec, err := s.read.SubstatesGet(addr)
	if errors.Is(err, storage.ErrNotFound) {
		// never created: treated as down for the purposes of this check
		return nil
	}
	if err != nil {
		return err
	}
	if rec.IsUp() {
		return ErrExpectedSubstateDown
	}
	return nil
}

func (s *Store) lockAssertNotExist(id shard.SubstateId, addr shard.Address) error {
	if ch, ok := s.pending[addr]; ok {
		if ch.Kind == substate.ChangeUp {
			return ErrSubstateIsUp
		}
		return nil
	}
	_, err := s.read.SubstatesGet(addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return ErrSubstateIsUp
}

// latestLock returns the most recently requested lock for id, among
// this store's own pending locks first, falling back to persisted
// locks.
func (s *Store) latestLock(id shard.SubstateId) (substate.Lock, bool, error) {
	if locks := s.newLocks[id.String()]; len(locks) > 0 {
		return locks[len(locks)-1], true, nil
	}
	persisted, err := s.read.LocksGet(id)
	if err != nil {
		return substate.Lock{}, false, err
	}
	if len(persisted) == 0 {
		return substate.Lock{}, false, nil
	}
	return persisted[len(persisted)-1], true, nil
}

func (s *Store) addNewLock(id shard.SubstateId, l substate.Lock) {
	key := id.String()
	s.newLocks[key] = append(s.newLocks[key], l)
}

// NewLocks returns every lock this store has granted, by substate id
// string, in request order — the set a caller must persist once the
// candidate block locks in.
func (s *Store) NewLocks() map[string][]substate.Lock {
	return s.newLocks
}

// Diff returns the append-only list of substate changes this store
// has accumulated.
func (s *Store) Diff() []substate.Change {
	return s.diff
}

// TryLock requests lockType on (id, version) for txID, applying the
// compatibility matrix from spec.md §4.7:
//
//	existing READ:   any tx MAY add READ; Local-Only-Rules MAY add OUTPUT
//	                 (never WRITE); otherwise the same tx MAY add OUTPUT
//	existing WRITE:  same tx or Local-Only-Rules MAY add OUTPUT only
//	existing OUTPUT: only Local-Only-Rules MAY add READ/WRITE (never OUTPUT)
//
// A transaction re-requesting the lock type it already holds is
// granted as a no-op. Local-Only-Rules apply only when both the existing and the
// requested lock are marked local-only. A failure where the
// requested lock names an exact version is a hard conflict (the
// transaction must ABORT); an unversioned conflict is soft (the
// transaction may be retried once the lock is released).
func (s *Store) TryLock(txID block.TransactionID, id shard.SubstateId, version uint32, lockType substate.LockType, isLocalOnly, versionPinned bool) error {
	existing, ok, err := s.latestLock(id)
	if err != nil {
		return err
	}

	addr := shard.FromSubstateID(id, version)

	if !ok {
		if lockType == substate.LockOutput {
			if err := s.lockAssertNotExist(id, addr); err != nil {
				return err
			}
		} else if err := s.assertIsUp(id, addr); err != nil {
			return err
		}
		s.addNewLock(id, substate.Lock{TransactionID: txID, Version: version, LockType: lockType, IsLocalOnly: isLocalOnly})
		return nil
	}

	hasLocalOnlyRules := existing.IsLocalOnly && isLocalOnly
	sameTx := existing.TransactionID == txID

	if sameTx && existing.LockType == lockType {
		return nil
	}

	conflict := LockConflict{SubstateID: id, Existing: existing.LockType, Requested: lockType, TransactionID: existing.TransactionID, IsLocalOnly: hasLocalOnlyRules}

	switch existing.LockType {
	case substate.LockRead:
		if hasLocalOnlyRules && lockType == substate.LockWrite {
			return conflict
		}
		if !hasLocalOnlyRules && !sameTx && lockType != substate.LockRead {
			return conflict
		}
		if !hasLocalOnlyRules && sameTx && lockType != substate.LockOutput {
			return conflict
		}
	case substate.LockWrite:
		if !sameTx && !hasLocalOnlyRules {
			conflict.IsLocalOnly = false
			return conflict
		}
		if lockType != substate.LockOutput {
			return conflict
		}
		lockType = substate.LockOutput
	case substate.LockOutput:
		if !hasLocalOnlyRules {
			return conflict
		}
		if lockType == substate.LockOutput {
			return conflict
		}
	}

	s.log.Debug("pending store lock granted",
		"transactionID", txID,
		"substateID", id,
		"lockType", lockType,
		"localOnly", isLocalOnly,
	)
	s.addNewLock(id, substate.Lock{TransactionID: txID, Version: version, LockType: lockType, IsLocalOnly: isLocalOnly})
	return nil
}

// LockStatus accumulates the outcome of locking every input/output a
// transaction needs (spec.md §4.7 try_lock_all): a hard conflict
// means the transaction must ABORT; any other failure means it stays
// pending until the conflicting lock is released.
type LockStatus struct {
	Failures     []error
	Conflicts    []LockConflict
	HardConflict error
}

func (ls *LockStatus) add(err error) {
	ls.Failures = append(ls.Failures, err)
	var c LockConflict
	if errors.As(err, &c) {
		ls.Conflicts = append(ls.Conflicts, c)
	}
}

func (ls *LockStatus) IsAnyFailed() bool { return len(ls.Failures) > 0 }
func (ls *LockStatus) IsHardConflict() bool { return ls.HardConflict != nil }

// LockRequest is one entry of a try-lock-all batch.
type LockRequest struct {
	ID            shard.SubstateId
	Version       uint32
	LockType      substate.LockType
	VersionPinned bool
}

// TryLockAll locks every request in order, stopping early once a hard
// conflict is hit (spec.md §4.7).
func (s *Store) TryLockAll(txID block.TransactionID, reqs []LockRequest, isLocalOnly bool) *LockStatus {
	status := &LockStatus{}
	for _, req := range reqs {
		err := s.TryLock(txID, req.ID, req.Version, req.LockType, isLocalOnly, req.VersionPinned)
		if err == nil {
			continue
		}
		status.add(err)

		var conflict LockConflict
		isConflict := errors.As(err, &conflict)
		switch {
		case errors.Is(err, ErrSubstateIsUp), errors.Is(err, ErrSubstateIsDown), errors.Is(err, ErrSubstateNotFound):
			status.HardConflict = err
		case isConflict && req.VersionPinned:
			status.HardConflict = err
		}

		if status.IsHardConflict() {
			break
		}
	}
	return status
}
