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

package coordination

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeZkNode struct {
	data     []byte
	children []string
}

// fakeZk mimics the one-shot watch semantics of a zookeeper session.
type fakeZk struct {
	sync.Mutex
	nodes        map[string]*fakeZkNode
	dataWatches  map[string][]chan zk.Event
	childWatches map[string][]chan zk.Event
	existWatches map[string][]chan zk.Event
}

func newFakeZk() *fakeZk {
	return &fakeZk{
		nodes:        map[string]*fakeZkNode{"/": {}},
		dataWatches:  map[string][]chan zk.Event{},
		childWatches: map[string][]chan zk.Event{},
		existWatches: map[string][]chan zk.Event{},
	}
}

func (f *fakeZk) Children(p string) ([]string, *zk.Stat, error) {
	f.Lock()
	defer f.Unlock()
	n, ok := f.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return append([]string(nil), n.children...), &zk.Stat{}, nil
}

func (f *fakeZk) ChildrenW(p string) ([]string, *zk.Stat, <-chan zk.Event, error) {
	f.Lock()
	defer f.Unlock()
	n, ok := f.nodes[p]
	if !ok {
		return nil, nil, nil, zk.ErrNoNode
	}
	return append([]string(nil), n.children...), &zk.Stat{}, f.register(f.childWatches, p), nil
}

func (f *fakeZk) Get(p string) ([]byte, *zk.Stat, error) {
	f.Lock()
	defer f.Unlock()
	n, ok := f.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return append([]byte(nil), n.data...), &zk.Stat{}, nil
}

func (f *fakeZk) GetW(p string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	f.Lock()
	defer f.Unlock()
	n, ok := f.nodes[p]
	if !ok {
		return nil, nil, nil, zk.ErrNoNode
	}
	return append([]byte(nil), n.data...), &zk.Stat{}, f.register(f.dataWatches, p), nil
}

func (f *fakeZk) ExistsW(p string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.Lock()
	defer f.Unlock()
	_, ok := f.nodes[p]
	return ok, &zk.Stat{}, f.register(f.existWatches, p), nil
}

func (f *fakeZk) Create(p string, data []byte, _ int32, _ []zk.ACL) (string, error) {
	f.Lock()
	defer f.Unlock()
	if _, ok := f.nodes[p]; ok {
		return "", zk.ErrNodeExists
	}
	parent, ok := f.nodes[path.Dir(p)]
	if !ok {
		return "", zk.ErrNoNode
	}
	f.nodes[p] = &fakeZkNode{data: append([]byte(nil), data...)}
	parent.children = append(parent.children, path.Base(p))

	f.fire(f.existWatches, p, zk.EventNodeCreated)
	f.fire(f.childWatches, path.Dir(p), zk.EventNodeChildrenChanged)
	return p, nil
}

func (f *fakeZk) Set(p string, data []byte, _ int32) (*zk.Stat, error) {
	f.Lock()
	defer f.Unlock()
	n, ok := f.nodes[p]
	if !ok {
		return nil, zk.ErrNoNode
	}
	n.data = append([]byte(nil), data...)
	f.fire(f.dataWatches, p, zk.EventNodeDataChanged)
	return &zk.Stat{}, nil
}

func (f *fakeZk) Delete(p string, _ int32) error {
	f.Lock()
	defer f.Unlock()
	n, ok := f.nodes[p]
	if !ok {
		return zk.ErrNoNode
	}
	if len(n.children) > 0 {
		return zk.ErrNotEmpty
	}
	delete(f.nodes, p)
	parent := f.nodes[path.Dir(p)]
	for i, c := range parent.children {
		if c == path.Base(p) {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}

	f.fire(f.dataWatches, p, zk.EventNodeDeleted)
	f.fire(f.childWatches, p, zk.EventNodeDeleted)
	f.fire(f.childWatches, path.Dir(p), zk.EventNodeChildrenChanged)
	return nil
}

func (f *fakeZk) Close() {
	f.expire(zk.ErrClosing)
}

// expire terminates every watch, the way a session expiry does.
func (f *fakeZk) expire(err error) {
	f.Lock()
	defer f.Unlock()
	for _, watches := range []map[string][]chan zk.Event{f.dataWatches, f.childWatches, f.existWatches} {
		for p, chans := range watches {
			for _, ch := range chans {
				ch <- zk.Event{Type: zk.EventNotWatching, State: zk.StateDisconnected, Path: p, Err: err}
				close(ch)
			}
			delete(watches, p)
		}
	}
}

func (f *fakeZk) watchCount() int {
	f.Lock()
	defer f.Unlock()
	count := 0
	for _, watches := range []map[string][]chan zk.Event{f.dataWatches, f.childWatches, f.existWatches} {
		for _, chans := range watches {
			count += len(chans)
		}
	}
	return count
}

func (*fakeZk) register(watches map[string][]chan zk.Event, p string) <-chan zk.Event {
	ch := make(chan zk.Event, 1)
	watches[p] = append(watches[p], ch)
	return ch
}

func (*fakeZk) fire(watches map[string][]chan zk.Event, p string, t zk.EventType) {
	for _, ch := range watches[p] {
		ch <- zk.Event{Type: t, State: zk.StateHasSession, Path: p}
		close(ch)
	}
	delete(watches, p)
}

func TestZookeeperWatchSessionExpired(t *testing.T) {
	fake := newFakeZk()
	z := newZookeeperProvider(fake, testLogger())
	ctx := context.Background()

	require.NoError(t, z.Put(ctx, basePath+"/shard-0/10.0.0.1:7000", []byte("M")))
	events, err := z.Watch(ctx, basePath)
	require.NoError(t, err)

	fake.expire(zk.ErrSessionExpired)

	e := waitEvent(t, events)
	assert.ErrorIs(t, e.Err, ErrSubscriptionLost)
	waitClosed(t, events)
}

func TestZookeeperWatchMissingBase(t *testing.T) {
	fake := newFakeZk()
	z := newZookeeperProvider(fake, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := z.Watch(ctx, basePath)
	require.NoError(t, err)

	// Creating the base path is observed through the existence watch
	require.NoError(t, z.Put(ctx, basePath+"/shard-0/10.0.0.1:7000", []byte("M")))
	e := waitEvent(t, events)
	assert.NoError(t, e.Err)

	drain(events)
	require.NoError(t, z.Put(ctx, basePath+"/shard-0/10.0.0.1:7000", []byte("S")))
	e = waitEvent(t, events)
	assert.NoError(t, e.Err)
}

func TestZookeeperWatchDoesNotAccumulate(t *testing.T) {
	fake := newFakeZk()
	z := newZookeeperProvider(fake, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, z.Put(ctx, basePath+"/shard-0/10.0.0.1:7000", []byte("M")))
	require.NoError(t, z.Put(ctx, basePath+"/shard-1/10.0.0.2:7000", []byte("M")))

	events, err := z.Watch(ctx, basePath)
	require.NoError(t, err)
	armed := fake.watchCount()

	for i := 0; i < 10; i++ {
		role := []byte("M")
		if i%2 == 0 {
			role = []byte("S")
		}
		require.NoError(t, z.Put(ctx, basePath+"/shard-1/10.0.0.2:7000", role))
		waitEvent(t, events)
		drain(events)
	}

	assert.Eventually(t, func() bool {
		return fake.watchCount() == armed
	}, time.Second, 10*time.Millisecond)
}

func TestZookeeperReadTreeData(t *testing.T) {
	z := newZookeeperProvider(newFakeZk(), testLogger())
	ctx := context.Background()

	require.NoError(t, z.Put(ctx, "/redis", []byte("root")))
	require.NoError(t, z.Put(ctx, basePath+"/shard-0/10.0.0.1:7000", []byte("M")))

	tree, err := z.ReadTree(ctx, "/redis")
	require.NoError(t, err)
	assert.Equal(t, "redis", tree.Name)
	assert.Equal(t, []byte("root"), tree.Data)
	assert.Equal(t, KindDirectory, tree.Kind)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = z.ReadTree(canceled, "/redis")
	assert.ErrorIs(t, err, context.Canceled)
}
