// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pacemaker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		BlockTime:             20 * time.Millisecond,
		BaseLeaderFailureTime: 20 * time.Millisecond,
		MaxLeaderFailureTime:  200 * time.Millisecond,
	}
}

func TestBeatFiresOnBeatImmediatelyForCurrentView(t *testing.T) {
	var got atomic.Value
	p := New(log.NoLog{}, testConfig(), Callbacks{
		OnBeat: func(v View) { got.Store(v) },
	})
	p.Start(1, 5, 4)
	p.Stop()

	p.Beat()
	v := got.Load().(View)
	require.Equal(t, View{Epoch: 1, Height: 5}, v)
}

func TestForceBeatUsesOverrideHeightWhenGiven(t *testing.T) {
	var got atomic.Value
	p := New(log.NoLog{}, testConfig(), Callbacks{
		OnForceBeat: func(v View) { got.Store(v) },
	})
	p.Start(1, 5, 4)
	p.Stop()

	h := uint64(9)
	p.ForceBeat(&h)
	v := got.Load().(View)
	require.Equal(t, View{Epoch: 1, Height: 9}, v)

	p.ForceBeat(nil)
	v = got.Load().(View)
	require.Equal(t, View{Epoch: 1, Height: 5}, v)
}

func TestBlockTimerFiresRepeatedlyWhileViewUnchanged(t *testing.T) {
	var count int32
	p := New(log.NoLog{}, testConfig(), Callbacks{
		OnBeat: func(View) { atomic.AddInt32(&count, 1) },
	})
	p.Start(1, 0, 0)
	defer p.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLeaderFailureFiresAfterTimeout(t *testing.T) {
	fired := make(chan View, 1)
	p := New(log.NoLog{}, testConfig(), Callbacks{
		OnLeaderFail: func(v View) { fired <- v },
	})
	p.Start(2, 3, 3)
	defer p.Stop()

	select {
	case v := <-fired:
		require.Equal(t, View{Epoch: 2, Height: 3}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("leader failure callback never fired")
	}
}

func TestLeaderFailureFiresOnlyOncePerHeight(t *testing.T) {
	var count int32
	p := New(log.NoLog{}, testConfig(), Callbacks{
		OnLeaderFail: func(View) { atomic.AddInt32(&count, 1) },
	})
	p.Start(1, 0, 0)
	defer p.Stop()

	time.Sleep(300 * time.Millisecond)
	require.LessOrEqual(t, atomic.LoadInt32(&count), int32(1))
}

func TestSuspendLeaderFailurePreventsFireUntilResume(t *testing.T) {
	fired := make(chan View, 1)
	p := New(log.NoLog{}, testConfig(), Callbacks{
		OnLeaderFail: func(v View) { fired <- v },
	})
	p.Start(1, 0, 0)
	defer p.Stop()

	p.SuspendLeaderFailure()
	time.Sleep(60 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("leader failure must not fire while suspended")
	default:
	}

	p.ResumeLeaderFailure()
	select {
	case v := <-fired:
		require.Equal(t, View{Epoch: 1, Height: 0}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("leader failure callback never fired after resume")
	}
}

func TestStopPreventsFurtherCallbacks(t *testing.T) {
	var count int32
	p := New(log.NoLog{}, testConfig(), Callbacks{
		OnBeat:       func(View) { atomic.AddInt32(&count, 1) },
		OnLeaderFail: func(View) { atomic.AddInt32(&count, 1) },
	})
	p.Start(1, 0, 0)
	p.Stop()

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestUpdateViewResetsBackoffWhenHighQCAdvances(t *testing.T) {
	p := New(log.NoLog{}, testConfig(), Callbacks{})
	p.Start(1, 0, 0)
	defer p.Stop()

	p.mu.Lock()
	p.consecutiveFailures = 3
	p.mu.Unlock()

	p.UpdateView(1, 1, 1) // highQCHeight advanced from 0 to 1
	p.mu.Lock()
	failures := p.consecutiveFailures
	p.mu.Unlock()
	require.Equal(t, uint64(0), failures)
}

func TestUpdateViewIncrementsBackoffWhenHighQCDoesNotAdvance(t *testing.T) {
	p := New(log.NoLog{}, testConfig(), Callbacks{})
	p.Start(1, 0, 5)
	defer p.Stop()

	p.UpdateView(1, 1, 5) // highQCHeight unchanged
	p.mu.Lock()
	failures := p.consecutiveFailures
	p.mu.Unlock()
	require.Equal(t, uint64(1), failures)
}

func TestLeaderFailureDurationExponentialBackoffCapsAtMax(t *testing.T) {
	p := New(log.NoLog{}, testConfig(), Callbacks{})

	p.mu.Lock()
	p.consecutiveFailures = 0
	d0 := p.leaderFailureDurationLocked()
	p.consecutiveFailures = 1
	d1 := p.leaderFailureDurationLocked()
	p.consecutiveFailures = 10
	d10 := p.leaderFailureDurationLocked()
	p.mu.Unlock()

	require.Equal(t, 20*time.Millisecond, d0)
	require.Equal(t, 40*time.Millisecond, d1)
	require.Equal(t, 200*time.Millisecond, d10, "must cap at MaxLeaderFailureTime")
}
