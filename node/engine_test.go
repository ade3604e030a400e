// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	luxvalidators "github.com/luxfi/validators"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/committee"
	"github.com/shardbft/consensus/config"
	nodecontext "github.com/shardbft/consensus/context"
	"github.com/shardbft/consensus/eviction"
	"github.com/shardbft/consensus/gateway"
	"github.com/shardbft/consensus/hotstuff"
	"github.com/shardbft/consensus/pacemaker"
	"github.com/shardbft/consensus/pool"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/statetree"
	"github.com/shardbft/consensus/storage"
	"github.com/shardbft/consensus/wire"
)

type fakeSubmitter struct {
	payloads [][]byte
	types    []string
}

func (f *fakeSubmitter) Submit(payloadType string, payload []byte) error {
	f.types = append(f.types, payloadType)
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeExecutor struct {
	result hotstuff.ExecutorResult
}

func (f *fakeExecutor) Execute(block.TransactionID, []hotstuff.ExecutorInput) (hotstuff.ExecutorResult, error) {
	return f.result, nil
}

type fakeSender struct {
	votes      []wire.Vote
	newViews   []wire.NewView
	broadcasts []wire.Proposal
}

func (f *fakeSender) SendVote(to block.NodeID, v wire.Vote) error {
	f.votes = append(f.votes, v)
	return nil
}

func (f *fakeSender) SendNewView(to block.NodeID, nv wire.NewView) error {
	f.newViews = append(f.newViews, nv)
	return nil
}

func (f *fakeSender) BroadcastProposal(p wire.Proposal) error {
	f.broadcasts = append(f.broadcasts, p)
	return nil
}

// testEngineFixture bundles a fully wired Engine and the collaborators
// tests need direct access to (store, sender, pacemaker).
type testEngineFixture struct {
	engine *Engine
	store  storage.Store
	sender *fakeSender
	pm     *pacemaker.Pacemaker
	comm   committee.Committee
	sg     shard.ShardGroup
}

func newTestEngineFixture(t *testing.T, n int, execResult hotstuff.ExecutorResult) *testEngineFixture {
	t.Helper()
	sg := shard.NewShardGroup(0, 1)
	members := make([]*luxvalidators.GetValidatorOutput, n)
	for i := 0; i < n; i++ {
		members[i] = &luxvalidators.GetValidatorOutput{NodeID: ids.GenerateTestNodeID(), Weight: 1}
	}
	comm := committee.Committee{Epoch: 1, ShardGroup: sg, Members: members}

	params := config.DefaultHotstuffParams()
	// Timers long enough that they never fire within a test's lifetime;
	// pm.Stop() is still called by the caller as a defer for safety.
	params.BlockTime = time.Hour

	store := storage.NewMemoryStore()
	tree := statetree.New()
	txPool, err := pool.New(log.NoLog{}, prometheus.NewRegistry())
	require.NoError(t, err)

	sender := &fakeSender{}
	pm := pacemaker.New(log.NoLog{}, pacemaker.Config{
		BlockTime:             params.BlockTime,
		BaseLeaderFailureTime: params.BaseLeaderFailureTime,
		MaxLeaderFailureTime:  params.MaxLeaderFailureTime,
	}, pacemaker.Callbacks{})

	localNodeID := members[0].NodeID
	gw := gateway.New(log.NoLog{}, params, nil, txPool, nil, localNodeID, 1)
	exec := &fakeExecutor{result: execResult}
	local := hotstuff.NewLocalHandler(log.NoLog{}, sg, params, exec, txPool, nil)
	foreign := hotstuff.NewForeignHandler(log.NoLog{}, sg, func(block.TransactionID, shard.ShardGroup) bool { return false })
	proposer := hotstuff.NewProposer(log.NoLog{}, sg, params, txPool, func(block.TransactionID) bool { return false })

	nc := &nodecontext.NodeContext{NodeID: localNodeID, PublicKey: []byte{1, 2, 3}, Log: log.NoLog{}}

	engine := NewEngine(EngineConfig{
		Log:        log.NoLog{},
		NodeContext: nc,
		ShardGroup: sg,
		Params:     params,
		Store:      store,
		Tree:       tree,
		Pool:       txPool,
		Pacemaker:  pm,
		Gateway:    gw,
		Local:      local,
		Foreign:    foreign,
		Proposer:   proposer,
		Sender:     sender,
		Committee:  comm,
	})

	return &testEngineFixture{engine: engine, store: store, sender: sender, pm: pm, comm: comm, sg: sg}
}

func TestEngineOnProposalAcceptsKnownLocalOnlyCandidateAndSendsVote(t *testing.T) {
	f := newTestEngineFixture(t, 4, hotstuff.ExecutorResult{Decision: block.Commit()})
	defer f.pm.Stop()

	genesis := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 0, Justify: block.GenesisQC(1, f.sg)}
	genesis.ID = genesis.Hash()

	wtx, err := f.store.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.BlocksInsert(genesis))
	require.NoError(t, wtx.SingletonsSet(1, f.sg, storage.EpochSingletons{LockedBlockID: genesis.ID}))
	require.NoError(t, wtx.Commit())

	txID := block.TransactionID{1}
	f.engine.pool.GetOrCreate(txID)

	atom := &block.TransactionAtom{TransactionID: txID, Decision: block.Commit(), Evidence: block.NewEvidence()}
	candidate := &block.Block{
		Epoch: 1, ShardGroup: f.sg, Height: 1, ParentID: genesis.ID,
		Justify:  block.QuorumCertificate{BlockID: genesis.ID, BlockHeight: 0},
		Commands: []block.Command{block.NewLocalOnly(atom)},
	}
	candidate.ID = candidate.Hash()

	err = f.engine.OnProposal(wire.Proposal{Block: *candidate}, 1)
	require.NoError(t, err)

	require.Len(t, f.sender.votes, 1)
	require.Equal(t, candidate.ID, f.sender.votes[0].BlockID)
	require.Equal(t, wire.VoteAccept, f.sender.votes[0].Decision)

	_, ok := f.engine.pendingChangeSets[candidate.ID]
	require.True(t, ok)
}

func TestEngineOnProposalParksWhenTransactionUnknown(t *testing.T) {
	f := newTestEngineFixture(t, 4, hotstuff.ExecutorResult{Decision: block.Commit()})
	defer f.pm.Stop()

	genesis := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 0, Justify: block.GenesisQC(1, f.sg)}
	genesis.ID = genesis.Hash()
	wtx, err := f.store.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.BlocksInsert(genesis))
	require.NoError(t, wtx.SingletonsSet(1, f.sg, storage.EpochSingletons{LockedBlockID: genesis.ID}))
	require.NoError(t, wtx.Commit())

	// txID was never registered with the pool, so the gateway parks
	// this proposal instead of handing it to the local handler.
	atom := &block.TransactionAtom{TransactionID: block.TransactionID{9}, Decision: block.Commit(), Evidence: block.NewEvidence()}
	candidate := &block.Block{
		Epoch: 1, ShardGroup: f.sg, Height: 1, ParentID: genesis.ID,
		Justify:  block.QuorumCertificate{BlockID: genesis.ID, BlockHeight: 0},
		Commands: []block.Command{block.NewLocalOnly(atom)},
	}
	candidate.ID = candidate.Hash()

	err = f.engine.OnProposal(wire.Proposal{Block: *candidate}, 1)
	require.NoError(t, err)
	require.Empty(t, f.sender.votes, "a parked proposal never reaches the local handler")
}

func TestEngineOnVoteFormsQuorumAndLocksThreeChain(t *testing.T) {
	var forceBeats []pacemaker.View
	f := newTestEngineFixture(t, 4, hotstuff.ExecutorResult{})
	f.pm = pacemaker.New(log.NoLog{}, pacemaker.Config{BlockTime: time.Hour, BaseLeaderFailureTime: time.Hour, MaxLeaderFailureTime: time.Hour}, pacemaker.Callbacks{
		OnForceBeat: func(v pacemaker.View) { forceBeats = append(forceBeats, v) },
	})
	f.engine.pm = f.pm
	defer f.pm.Stop()

	wtx, err := f.store.WriteTx()
	require.NoError(t, err)

	b0 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 0, Justify: block.GenesisQC(1, f.sg)}
	b0.ID = b0.Hash()
	require.NoError(t, wtx.BlocksInsert(b0))

	b1 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 1, ParentID: b0.ID, Justify: block.QuorumCertificate{BlockID: b0.ID, BlockHeight: 0}}
	b1.ID = b1.Hash()
	require.NoError(t, wtx.BlocksInsert(b1))

	b2 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 2, ParentID: b1.ID, Justify: block.QuorumCertificate{BlockID: b1.ID, BlockHeight: 1}}
	b2.ID = b2.Hash()
	require.NoError(t, wtx.BlocksInsert(b2))

	b3 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 3, ParentID: b2.ID, Justify: block.QuorumCertificate{BlockID: b2.ID, BlockHeight: 2}}
	b3.ID = b3.Hash()
	require.NoError(t, wtx.BlocksInsert(b3))

	require.NoError(t, wtx.SingletonsSet(1, f.sg, storage.EpochSingletons{LockedBlockID: b0.ID}))
	require.NoError(t, wtx.Commit())

	vote := wire.Vote{Epoch: 1, BlockID: b3.ID, UnverifiedBlockHeight: b3.Height, Decision: wire.VoteAccept}
	for i, m := range f.comm.Members {
		v := vote
		v.Signature = []byte{byte(i)}
		err := f.engine.OnVote(m.NodeID, v)
		require.NoError(t, err)
		if i == 2 {
			break // quorum weight for 4 equal-weight members is 3
		}
	}

	rtx, err := f.store.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()
	singletons, err := rtx.SingletonsGet(1, f.sg)
	require.NoError(t, err)
	require.Equal(t, b1.ID, singletons.LockedBlockID, "three-chain commit over b0<-b1<-b2<-b3 locks b1")
	require.Equal(t, b3.ID, singletons.LeafBlockID)

	require.Len(t, forceBeats, 1, "OnVote force-beats the pacemaker once a QC forms")
}

func TestEngineOnNewViewFiresForceBeatOnQuorum(t *testing.T) {
	var forceBeats []pacemaker.View
	f := newTestEngineFixture(t, 4, hotstuff.ExecutorResult{})
	f.pm = pacemaker.New(log.NoLog{}, pacemaker.Config{BlockTime: time.Hour, BaseLeaderFailureTime: time.Hour, MaxLeaderFailureTime: time.Hour}, pacemaker.Callbacks{
		OnForceBeat: func(v pacemaker.View) { forceBeats = append(forceBeats, v) },
	})
	f.engine.pm = f.pm
	defer f.pm.Stop()

	nv := wire.NewView{HighQC: block.QuorumCertificate{BlockHeight: 7}, NewHeight: 10}
	for i, m := range f.comm.Members {
		err := f.engine.OnNewView(m.NodeID, nv)
		require.NoError(t, err)
		if i == 2 {
			break
		}
	}
	require.Len(t, forceBeats, 1)
	require.Equal(t, uint64(10), forceBeats[0].Height)
}

func TestEngineProposeBuildsCandidateExtendingTip(t *testing.T) {
	f := newTestEngineFixture(t, 4, hotstuff.ExecutorResult{})
	defer f.pm.Stop()

	tip := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 0, Justify: block.GenesisQC(1, f.sg)}
	tip.ID = tip.Hash()

	wtx, err := f.store.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.BlocksInsert(tip))
	require.NoError(t, wtx.SingletonsSet(1, f.sg, storage.EpochSingletons{LockedBlockID: tip.ID, HighQC: tip.Justify}))
	require.NoError(t, wtx.Commit())

	rtx, err := f.store.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()

	p, err := f.engine.Propose(rtx, tip, nil, nil, false)
	require.NoError(t, err)
	require.Equal(t, tip.ID, p.Block.ParentID)
	require.Equal(t, tip.Height+1, p.Block.Height)
	require.Equal(t, p.Block.Hash(), p.Block.ID)
}

func TestEngineOnProposalPersistsLastVotedSingleton(t *testing.T) {
	f := newTestEngineFixture(t, 4, hotstuff.ExecutorResult{Decision: block.Commit()})
	defer f.pm.Stop()

	genesis := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 0, Justify: block.GenesisQC(1, f.sg)}
	genesis.ID = genesis.Hash()

	wtx, err := f.store.WriteTx()
	require.NoError(t, err)
	require.NoError(t, wtx.BlocksInsert(genesis))
	require.NoError(t, wtx.SingletonsSet(1, f.sg, storage.EpochSingletons{LockedBlockID: genesis.ID}))
	require.NoError(t, wtx.Commit())

	txID := block.TransactionID{1}
	f.engine.pool.GetOrCreate(txID)

	atom := &block.TransactionAtom{TransactionID: txID, Decision: block.Commit(), Evidence: block.NewEvidence()}
	candidate := &block.Block{
		Epoch: 1, ShardGroup: f.sg, Height: 1, ParentID: genesis.ID,
		Justify:  block.QuorumCertificate{BlockID: genesis.ID, BlockHeight: 0},
		Commands: []block.Command{block.NewLocalOnly(atom)},
	}
	candidate.ID = candidate.Hash()

	require.NoError(t, f.engine.OnProposal(wire.Proposal{Block: *candidate}, 1))

	rtx, err := f.store.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()
	singletons, err := rtx.SingletonsGet(1, f.sg)
	require.NoError(t, err)
	require.Equal(t, candidate.ID, singletons.LastVoted.BlockID)
	require.Equal(t, candidate.Height, singletons.LastVoted.Height)
	require.Equal(t, candidate.ID, singletons.LastSentVote)
}

func TestEngineCommitChainEndEpochRollsOverToNextEpochGenesis(t *testing.T) {
	f := newTestEngineFixture(t, 4, hotstuff.ExecutorResult{})
	defer f.pm.Stop()

	wtx, err := f.store.WriteTx()
	require.NoError(t, err)

	b0 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 0, Justify: block.GenesisQC(1, f.sg)}
	b0.ID = b0.Hash()
	require.NoError(t, wtx.BlocksInsert(b0))

	b1 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 1, ParentID: b0.ID, Justify: block.QuorumCertificate{BlockID: b0.ID, BlockHeight: 0}}
	b1.ID = b1.Hash()
	require.NoError(t, wtx.BlocksInsert(b1))

	b2 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 2, ParentID: b1.ID, Justify: block.QuorumCertificate{BlockID: b1.ID, BlockHeight: 1}}
	b2.ID = b2.Hash()
	require.NoError(t, wtx.BlocksInsert(b2))

	b3 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 3, ParentID: b2.ID, Justify: block.QuorumCertificate{BlockID: b2.ID, BlockHeight: 2}}
	b3.ID = b3.Hash()
	require.NoError(t, wtx.BlocksInsert(b3))

	require.NoError(t, wtx.SingletonsSet(1, f.sg, storage.EpochSingletons{LockedBlockID: b0.ID}))
	require.NoError(t, wtx.Commit())

	// b1 carries the EndEpoch command that three-chain commit is about
	// to lock in.
	f.engine.pendingChangeSets[b1.ID] = &hotstuff.ChangeSet{BlockID: b1.ID, ParentID: b0.ID, EndsEpoch: true}

	vote := wire.Vote{Epoch: 1, BlockID: b3.ID, UnverifiedBlockHeight: b3.Height, Decision: wire.VoteAccept}
	for i, m := range f.comm.Members {
		v := vote
		v.Signature = []byte{byte(i)}
		require.NoError(t, f.engine.OnVote(m.NodeID, v))
		if i == 2 {
			break
		}
	}

	rtx, err := f.store.ReadTx()
	require.NoError(t, err)
	defer rtx.Close()

	singletons, err := rtx.SingletonsGet(1, f.sg)
	require.NoError(t, err)
	require.Equal(t, b1.ID, singletons.LockedBlockID)

	nextSingletons, err := rtx.SingletonsGet(2, f.sg)
	require.NoError(t, err)
	require.NotEqual(t, block.ID{}, nextSingletons.LeafBlockID, "next epoch's genesis was persisted")

	genesis, err := rtx.BlocksGet(nextSingletons.LeafBlockID)
	require.NoError(t, err)
	require.Equal(t, uint64(2), genesis.Epoch)
	require.Equal(t, uint64(0), genesis.Height)
	require.Equal(t, b1.ID, genesis.ParentID)

	require.Equal(t, uint64(2), f.pm.View().Epoch, "pacemaker rolled over to the next epoch")
}

func TestEngineCommitChainEvictNodeSubmitsProof(t *testing.T) {
	f := newTestEngineFixture(t, 4, hotstuff.ExecutorResult{})
	defer f.pm.Stop()

	submitter := &fakeSubmitter{}
	f.engine.evict = eviction.New(log.NoLog{}, config.DefaultHotstuffParams())
	f.engine.submitter = submitter

	wtx, err := f.store.WriteTx()
	require.NoError(t, err)

	b0 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 0, Justify: block.GenesisQC(1, f.sg)}
	b0.ID = b0.Hash()
	require.NoError(t, wtx.BlocksInsert(b0))

	b1 := &block.Block{
		Epoch: 1, ShardGroup: f.sg, Height: 1, ParentID: b0.ID,
		Justify: block.QuorumCertificate{BlockID: b0.ID, BlockHeight: 0, Signatures: block.AggregatedSignature{Signers: []byte{0x01}}},
	}
	b1.ID = b1.Hash()
	require.NoError(t, wtx.BlocksInsert(b1))

	b2 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 2, ParentID: b1.ID, Justify: block.QuorumCertificate{BlockID: b1.ID, BlockHeight: 1}}
	b2.ID = b2.Hash()
	require.NoError(t, wtx.BlocksInsert(b2))

	b3 := &block.Block{Epoch: 1, ShardGroup: f.sg, Height: 3, ParentID: b2.ID, Justify: block.QuorumCertificate{BlockID: b2.ID, BlockHeight: 2}}
	b3.ID = b3.Hash()
	require.NoError(t, wtx.BlocksInsert(b3))

	require.NoError(t, wtx.SingletonsSet(1, f.sg, storage.EpochSingletons{LockedBlockID: b0.ID}))
	require.NoError(t, wtx.Commit())

	evictedKey := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f.engine.pendingChangeSets[b1.ID] = &hotstuff.ChangeSet{BlockID: b1.ID, ParentID: b0.ID, EvictedPubKeys: [][]byte{evictedKey}}

	vote := wire.Vote{Epoch: 1, BlockID: b3.ID, UnverifiedBlockHeight: b3.Height, Decision: wire.VoteAccept}
	for i, m := range f.comm.Members {
		v := vote
		v.Signature = []byte{byte(i)}
		require.NoError(t, f.engine.OnVote(m.NodeID, v))
		if i == 2 {
			break
		}
	}

	require.Len(t, submitter.payloads, 1, "locking in b1 submits its EvictNode command's proof")
	require.Equal(t, []string{"EvictionProof"}, submitter.types)
}
