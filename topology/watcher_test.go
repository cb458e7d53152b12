// Copyright 2024 StreamNative, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package topology

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/coordination"
)

const base = "/redis/orders"

type recordingListener struct {
	sync.Mutex
	snapshots []Snapshot
	fail      atomic.Bool
}

func (l *recordingListener) OnSnapshot(_ context.Context, snapshot Snapshot) error {
	if l.fail.Load() {
		return errors.New("listener failure")
	}
	l.Lock()
	defer l.Unlock()
	l.snapshots = append(l.snapshots, snapshot)
	return nil
}

func (l *recordingListener) all() []Snapshot {
	l.Lock()
	defer l.Unlock()
	return append([]Snapshot(nil), l.snapshots...)
}

func (l *recordingListener) last() Snapshot {
	l.Lock()
	defer l.Unlock()
	if len(l.snapshots) == 0 {
		return Snapshot{}
	}
	return l.snapshots[len(l.snapshots)-1]
}

func watcherConfig() config.ClusterConfig {
	conf := config.NewClusterConfig()
	conf.Sharding = "orders"
	conf.Coordinator.Provider = config.ProviderMemory
	conf.Coordinator.MaxReconnectTime = time.Second
	conf.Rebuild.RateLimit = 0
	return conf
}

func put(t *testing.T, p coordination.Writer, path, role string) {
	t.Helper()
	require.NoError(t, p.Put(context.Background(), path, []byte(role)))
}

func TestWatcherEmptyStartup(t *testing.T) {
	p := coordination.NewMemoryProvider()
	l := &recordingListener{}

	w := NewWatcher(p, watcherConfig(), l, nil)
	assert.ErrorIs(t, w.Start(context.Background()), coordination.ErrNodeNotFound)

	put(t, p, base+"/shard-0/10.0.0.1:7000", "S")
	w = NewWatcher(p, watcherConfig(), l, nil)
	assert.ErrorIs(t, w.Start(context.Background()), ErrEmptyTopology)
	assert.Empty(t, l.all())
	assert.NoError(t, w.Close())
}

func TestWatcherSnapshotsAreCopies(t *testing.T) {
	p := coordination.NewMemoryProvider()
	put(t, p, base+"/shard-0/10.0.0.1:7000", "M")
	l := &recordingListener{}

	w := NewWatcher(p, watcherConfig(), l, func(err error) {
		assert.Fail(t, "unexpected fatal error", err)
	})
	require.NoError(t, w.Start(context.Background()))
	defer func() {
		assert.NoError(t, w.Close())
	}()

	l.last().Nodes[0].Host = "10.9.9.9"
	w.Current().Nodes[0].Port = 1
	assert.Equal(t, []string{"10.0.0.1:7000"}, w.Current().Addresses())

	snapshot := Snapshot{Version: 3, Nodes: []Node{{Host: "h", Port: 1}}}
	clone := snapshot.Clone()
	clone.Nodes[0].Host = "other"
	assert.Equal(t, "h", snapshot.Nodes[0].Host)
	assert.Equal(t, int64(3), clone.Version)
}

func TestWatcherFollowsChanges(t *testing.T) {
	p := coordination.NewMemoryProvider()
	put(t, p, base+"/shard-0/10.0.0.1:7000", "M")
	l := &recordingListener{}

	w := NewWatcher(p, watcherConfig(), l, func(err error) {
		assert.Fail(t, "unexpected fatal error", err)
	})
	require.NoError(t, w.Start(context.Background()))
	defer func() {
		assert.NoError(t, w.Close())
	}()

	assert.Equal(t, int64(1), l.last().Version)
	assert.Equal(t, []string{"10.0.0.1:7000"}, l.last().Addresses())

	put(t, p, base+"/shard-1/10.0.0.2:7000", "M")
	assert.Eventually(t, func() bool {
		return l.last().Len() == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), l.last().Version)
	assert.Equal(t, []string{"10.0.0.1:7000", "10.0.0.2:7000"}, w.Current().Addresses())

	// Failover within shard-1
	put(t, p, base+"/shard-1/10.0.0.2:7000", "S")
	put(t, p, base+"/shard-1/10.0.0.3:7000", "M")
	assert.Eventually(t, func() bool {
		s := l.last()
		return s.Len() == 2 && s.Nodes[1].Address() == "10.0.0.3:7000"
	}, 5*time.Second, 10*time.Millisecond)

	// Versions only grow
	snapshots := l.all()
	for i := 1; i < len(snapshots); i++ {
		assert.Greater(t, snapshots[i].Version, snapshots[i-1].Version)
	}
}

func TestWatcherKeepsTopologyOnEmptyRead(t *testing.T) {
	p := coordination.NewMemoryProvider()
	put(t, p, base+"/shard-0/10.0.0.1:7000", "M")
	l := &recordingListener{}

	w := NewWatcher(p, watcherConfig(), l, nil)
	require.NoError(t, w.Start(context.Background()))
	defer func() {
		assert.NoError(t, w.Close())
	}()

	// Demoting the only master leaves no valid shard
	put(t, p, base+"/shard-0/10.0.0.1:7000", "S")
	require.NoError(t, p.Delete(context.Background(), base))
	time.Sleep(200 * time.Millisecond)

	assert.Len(t, l.all(), 1)
	assert.Equal(t, []string{"10.0.0.1:7000"}, w.Current().Addresses())

	put(t, p, base+"/shard-0/10.0.0.9:7000", "M")
	assert.Eventually(t, func() bool {
		return l.last().Version == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"10.0.0.9:7000"}, l.last().Addresses())
}

func TestWatcherSkipsUnchangedSnapshots(t *testing.T) {
	p := coordination.NewMemoryProvider()
	put(t, p, base+"/shard-0/10.0.0.1:7000", "M")
	l := &recordingListener{}

	w := NewWatcher(p, watcherConfig(), l, nil)
	require.NoError(t, w.Start(context.Background()))
	defer func() {
		assert.NoError(t, w.Close())
	}()

	// Replica changes do not alter the masters
	put(t, p, base+"/shard-0/10.0.0.11:7000", "S")
	put(t, p, base+"/shard-0/10.0.0.12:7000", "S")
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, l.all(), 1)
}

func TestWatcherRetriesFailedListener(t *testing.T) {
	p := coordination.NewMemoryProvider()
	put(t, p, base+"/shard-0/10.0.0.1:7000", "M")
	l := &recordingListener{}

	w := NewWatcher(p, watcherConfig(), l, nil)
	require.NoError(t, w.Start(context.Background()))
	defer func() {
		assert.NoError(t, w.Close())
	}()

	l.fail.Store(true)
	put(t, p, base+"/shard-1/10.0.0.2:7000", "M")
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, l.all(), 1)
	assert.Equal(t, 1, w.Current().Len())

	l.fail.Store(false)
	put(t, p, base+"/shard-1/10.0.0.12:7000", "S")
	assert.Eventually(t, func() bool {
		return l.last().Len() == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), l.last().Version)
}

func TestWatcherRecoversSubscription(t *testing.T) {
	p := coordination.NewMemoryProvider()
	put(t, p, base+"/shard-0/10.0.0.1:7000", "M")
	l := &recordingListener{}

	w := NewWatcher(p, watcherConfig(), l, func(err error) {
		assert.Fail(t, "unexpected fatal error", err)
	})
	require.NoError(t, w.Start(context.Background()))
	defer func() {
		assert.NoError(t, w.Close())
	}()

	p.Disconnect(errors.New("session expired"))
	put(t, p, base+"/shard-1/10.0.0.2:7000", "M")

	assert.Eventually(t, func() bool {
		return l.last().Len() == 2
	}, 5*time.Second, 10*time.Millisecond)
}

// flakyProvider refuses new subscriptions while broken is set.
type flakyProvider struct {
	*coordination.MemoryProvider
	broken atomic.Bool
}

func (f *flakyProvider) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if f.broken.Load() {
		return nil, errors.New("coordination service unreachable")
	}
	return f.MemoryProvider.Watch(ctx, path)
}

func TestWatcherFatalOnPermanentLoss(t *testing.T) {
	p := &flakyProvider{MemoryProvider: coordination.NewMemoryProvider()}
	put(t, p, base+"/shard-0/10.0.0.1:7000", "M")
	l := &recordingListener{}

	conf := watcherConfig()
	conf.Coordinator.MaxReconnectTime = 300 * time.Millisecond

	fatal := make(chan error, 1)
	w := NewWatcher(p, conf, l, func(err error) {
		fatal <- err
	})
	require.NoError(t, w.Start(context.Background()))
	defer func() {
		assert.NoError(t, w.Close())
	}()

	p.broken.Store(true)
	p.Disconnect(errors.New("session expired"))

	select {
	case err := <-fatal:
		assert.ErrorIs(t, err, ErrSubscriptionLost)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "fatal handler was not invoked")
	}
}
