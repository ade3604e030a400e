// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"sync"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/substate"
)

// memoryDB is the shared, mutex-guarded state backing every
// transaction handed out by a MemoryStore. It plays the role
// github.com/luxfi/database's in-memory implementation plays for the
// teacher: a single-process stand-in with the same isolation
// contract a real backend would give (spec.md §9), used here for
// tests and for a single-validator-process deployment. Grounded on
// uptime.TestState's map-backed State for the ErrNotFound-on-miss
// convention, generalized from a single table to the full set
// spec.md §6 lists.
type memoryDB struct {
	mu sync.RWMutex

	blocks map[block.ID]*block.Block
	qcs    map[block.ID]*block.QuorumCertificate
	tips   map[tipKey]block.ID

	substates map[shard.Address]*substate.Record
	latest    map[string]uint32 // SubstateId.String() -> highest known version

	txPool map[block.TransactionID]*pool.Record

	locks map[string][]substate.Lock // SubstateId.String() -> locks
	conflicts []LockConflictRow

	foreignProposals map[foreignKey]*ForeignProposalRow

	singletons map[singletonKey]EpochSingletons

	validatorStats map[statsKey]*ValidatorEpochStats
}

type tipKey struct {
	sg    shard.ShardGroup
	epoch uint64
}

type foreignKey struct {
	sg      shard.ShardGroup
	blockID block.ID
}

type singletonKey struct {
	epoch uint64
	sg    shard.ShardGroup
}

type statsKey struct {
	node  block.NodeID
	epoch uint64
}

// MemoryStore is a Store backed by memoryDB. Read transactions take a
// read lock for their lifetime (snapshot isolation: the view can't
// change underneath them); write transactions take the write lock
// from BeginWrite to Commit/Rollback (serializable isolation: only
// one write transaction is ever in flight), matching spec.md §9's
// "reads are snapshot-isolated, writes are serializable" requirement.
type MemoryStore struct {
	db *memoryDB
}

// NewMemoryStore returns an empty, ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: &memoryDB{
		blocks:           make(map[block.ID]*block.Block),
		qcs:              make(map[block.ID]*block.QuorumCertificate),
		tips:             make(map[tipKey]block.ID),
		substates:        make(map[shard.Address]*substate.Record),
		latest:           make(map[string]uint32),
		txPool:           make(map[block.TransactionID]*pool.Record),
		locks:            make(map[string][]substate.Lock),
		foreignProposals: make(map[foreignKey]*ForeignProposalRow),
		singletons:       make(map[singletonKey]EpochSingletons),
		validatorStats:   make(map[statsKey]*ValidatorEpochStats),
	}}
}

func (m *MemoryStore) ReadTx() (ReadTx, error) {
	m.db.mu.RLock()
	return &memoryReadTx{db: m.db}, nil
}

func (m *MemoryStore) WriteTx() (WriteTx, error) {
	m.db.mu.Lock()
	return &memoryWriteTx{memoryReadTx: memoryReadTx{db: m.db}}, nil
}

type memoryReadTx struct {
	db     *memoryDB
	closed bool
}

func (t *memoryReadTx) Close() {
	if !t.closed {
		t.closed = true
		t.db.mu.RUnlock()
	}
}

func (t *memoryReadTx) BlocksGet(id block.ID) (*block.Block, error) {
	b, ok := t.db.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (t *memoryReadTx) BlocksGetParentChain(leafID block.ID, upTo block.ID) ([]*block.Block, error) {
	var chain []*block.Block
	cur := leafID
	for {
		b, ok := t.db.blocks[cur]
		if !ok {
			return nil, ErrNotFound
		}
		chain = append(chain, b)
		if cur == upTo {
			break
		}
		cur = b.ParentID
	}
	return chain, nil
}

func (t *memoryReadTx) BlocksGetTip(sg shard.ShardGroup, epoch uint64) (*block.Block, error) {
	id, ok := t.db.tips[tipKey{sg: sg, epoch: epoch}]
	if !ok {
		return nil, ErrNotFound
	}
	return t.BlocksGet(id)
}

func (t *memoryReadTx) QCGet(id block.ID) (*block.QuorumCertificate, error) {
	qc, ok := t.db.qcs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return qc, nil
}

func (t *memoryReadTx) SubstatesGet(addr shard.Address) (*substate.Record, error) {
	r, ok := t.db.substates[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (t *memoryReadTx) SubstateGetLatestVersion(id shard.SubstateId) (uint32, error) {
	v, ok := t.db.latest[id.String()]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

func (t *memoryReadTx) TransactionPoolGet(id block.TransactionID) (*pool.Record, error) {
	r, ok := t.db.txPool[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (t *memoryReadTx) TransactionPoolGetForBlocks(blockIDs []block.ID) ([]*pool.Record, error) {
	seen := make(map[block.TransactionID]struct{})
	var out []*pool.Record
	for _, bid := range blockIDs {
		b, ok := t.db.blocks[bid]
		if !ok {
			continue
		}
		for _, c := range b.Commands {
			txID, ok := c.TransactionID()
			if !ok {
				continue
			}
			if _, dup := seen[txID]; dup {
				continue
			}
			seen[txID] = struct{}{}
			if r, ok := t.db.txPool[txID]; ok {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (t *memoryReadTx) TransactionPoolGetReady(maxItems int) ([]*pool.Record, error) {
	var out []*pool.Record
	for _, r := range t.db.txPool {
		if len(out) >= maxItems {
			break
		}
		if (r.Stage == pool.StageNew || r.Stage == pool.StagePrepared) && len(r.Pending) == 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memoryReadTx) LocksGet(id shard.SubstateId) ([]substate.Lock, error) {
	return t.db.locks[id.String()], nil
}

func (t *memoryReadTx) ForeignProposalsGet(sg shard.ShardGroup, blockID block.ID) (*ForeignProposalRow, error) {
	row, ok := t.db.foreignProposals[foreignKey{sg: sg, blockID: blockID}]
	if !ok {
		return nil, ErrNotFound
	}
	return row, nil
}

func (t *memoryReadTx) SingletonsGet(epoch uint64, sg shard.ShardGroup) (*EpochSingletons, error) {
	s, ok := t.db.singletons[singletonKey{epoch: epoch, sg: sg}]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (t *memoryReadTx) ValidatorStatsGet(nodeID block.NodeID, epoch uint64) (*ValidatorEpochStats, error) {
	s, ok := t.db.validatorStats[statsKey{node: nodeID, epoch: epoch}]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

type memoryWriteTx struct {
	memoryReadTx
}

// Close would otherwise release a read lock the write tx never took;
// write transactions must be ended via Commit or Rollback instead.
func (t *memoryWriteTx) Close() {
	t.closed = true
}

func (t *memoryWriteTx) release() {
	if !t.closed {
		t.closed = true
		t.db.mu.Unlock()
	}
}

func (t *memoryWriteTx) BlocksInsert(b *block.Block) error {
	t.db.blocks[b.ID] = b
	t.db.tips[tipKey{sg: b.ShardGroup, epoch: b.Epoch}] = b.ID
	return nil
}

func (t *memoryWriteTx) QCInsert(qc *block.QuorumCertificate) error {
	t.db.qcs[qc.ID] = qc
	return nil
}

func (t *memoryWriteTx) SubstatesUp(r *substate.Record) error {
	t.db.substates[r.Address()] = r
	key := r.ID.String()
	if v, ok := t.db.latest[key]; !ok || r.Version > v {
		t.db.latest[key] = r.Version
	}
	return nil
}

func (t *memoryWriteTx) SubstatesDown(id shard.SubstateId, version uint32, destroyed substate.DestroyedBy) error {
	addr := shard.FromSubstateID(id, version)
	r, ok := t.db.substates[addr]
	if !ok {
		return ErrNotFound
	}
	if r.IsDown() {
		return ErrSubstateDown
	}
	down := *r
	down.Destroyed = &destroyed
	t.db.substates[addr] = &down
	return nil
}

func (t *memoryWriteTx) TransactionPoolInsert(r *pool.Record) error {
	t.db.txPool[r.TransactionID] = r
	return nil
}

func (t *memoryWriteTx) TransactionPoolAddPendingUpdate(id block.TransactionID, u pool.PendingUpdate) error {
	r, ok := t.db.txPool[id]
	if !ok {
		return ErrNotFound
	}
	r.Pending = append(r.Pending, u)
	return nil
}

func (t *memoryWriteTx) TransactionPoolConfirmPending(blockID block.ID) error {
	b, ok := t.db.blocks[blockID]
	if !ok {
		return ErrNotFound
	}
	for _, c := range b.Commands {
		txID, ok := c.TransactionID()
		if !ok {
			continue
		}
		if r, ok := t.db.txPool[txID]; ok {
			r.ConfirmTransition(blockID)
		}
	}
	return nil
}

func (t *memoryWriteTx) TransactionPoolDiscardPending(blockID block.ID) error {
	for _, r := range t.db.txPool {
		if _, ok := r.PendingFor(blockID); ok {
			r.DiscardPending()
		}
	}
	return nil
}

func (t *memoryWriteTx) TransactionPoolRemove(id block.TransactionID) error {
	delete(t.db.txPool, id)
	return nil
}

func (t *memoryWriteTx) LocksAdd(id shard.SubstateId, l substate.Lock) error {
	key := id.String()
	t.db.locks[key] = append(t.db.locks[key], l)
	return nil
}

func (t *memoryWriteTx) LocksRemoveForTransaction(txID block.TransactionID) error {
	for key, locks := range t.db.locks {
		filtered := locks[:0]
		for _, l := range locks {
			if l.TransactionID != txID {
				filtered = append(filtered, l)
			}
		}
		t.db.locks[key] = filtered
	}
	return nil
}

func (t *memoryWriteTx) LockConflictRecord(row LockConflictRow) error {
	t.db.conflicts = append(t.db.conflicts, row)
	return nil
}

func (t *memoryWriteTx) ForeignProposalsInsert(row *ForeignProposalRow) error {
	t.db.foreignProposals[foreignKey{sg: row.ShardGroup, blockID: row.BlockID}] = row
	return nil
}

func (t *memoryWriteTx) SingletonsSet(epoch uint64, sg shard.ShardGroup, s EpochSingletons) error {
	t.db.singletons[singletonKey{epoch: epoch, sg: sg}] = s
	return nil
}

func (t *memoryWriteTx) ValidatorStatsRecordVote(nodeID block.NodeID, epoch uint64, voted bool) error {
	key := statsKey{node: nodeID, epoch: epoch}
	s, ok := t.db.validatorStats[key]
	if !ok {
		s = &ValidatorEpochStats{NodeID: nodeID, Epoch: epoch}
		t.db.validatorStats[key] = s
	}
	s.BlocksTotal++
	if voted {
		s.BlocksVoted++
	}
	return nil
}

func (t *memoryWriteTx) Commit() error {
	t.release()
	return nil
}

func (t *memoryWriteTx) Rollback() error {
	t.release()
	return nil
}
