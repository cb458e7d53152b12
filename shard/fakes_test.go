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

package shard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/streamnative/kvshard/common"
	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/kv"
	"github.com/streamnative/kvshard/topology"
)

var errTransient = errors.New("connection reset")

type serverError string

func (e serverError) Error() string {
	return string(e)
}

func (serverError) RedisError() {}

// fakeNode is an in-memory key-value node shared by all the connections
// dialed to its address.
type fakeNode struct {
	sync.Mutex
	data     map[string]string
	calls    [][]any
	failures int
	failWith error
}

func newFakeNode() *fakeNode {
	return &fakeNode{data: map[string]string{}}
}

func (n *fakeNode) callCount() int {
	n.Lock()
	defer n.Unlock()
	return len(n.calls)
}

func (n *fakeNode) value(key string) (string, bool) {
	n.Lock()
	defer n.Unlock()
	v, ok := n.data[key]
	return v, ok
}

func (n *fakeNode) failNext(count int) {
	n.Lock()
	defer n.Unlock()
	n.failures = count
}

func (n *fakeNode) do(args []any) (any, error) {
	n.Lock()
	defer n.Unlock()

	n.calls = append(n.calls, args)
	if n.failures > 0 {
		n.failures--
		return nil, errTransient
	}
	if n.failWith != nil {
		return nil, n.failWith
	}

	str := func(i int) string { return fmt.Sprint(args[i]) }
	switch strings.ToLower(str(0)) {
	case "ping":
		return "PONG", nil
	case "set":
		n.data[str(1)] = str(2)
		return "OK", nil
	case "get":
		if v, ok := n.data[str(1)]; ok {
			return v, nil
		}
		return nil, kv.ErrNil
	case "del", "unlink", "exists":
		var count int64
		for i := 1; i < len(args); i++ {
			if _, ok := n.data[str(i)]; ok {
				count++
				if str(0) != "exists" {
					delete(n.data, str(i))
				}
			}
		}
		return count, nil
	case "mset":
		for i := 1; i < len(args); i += 2 {
			n.data[str(i)] = str(i + 1)
		}
		return "OK", nil
	case "msetnx":
		for i := 1; i < len(args); i += 2 {
			if _, ok := n.data[str(i)]; ok {
				return int64(0), nil
			}
		}
		for i := 1; i < len(args); i += 2 {
			n.data[str(i)] = str(i + 1)
		}
		return int64(1), nil
	case "mget":
		values := make([]any, 0, len(args)-1)
		for i := 1; i < len(args); i++ {
			if v, ok := n.data[str(i)]; ok {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		return values, nil
	case "randomkey":
		for k := range n.data {
			return k, nil
		}
		return nil, kv.ErrNil
	case "script":
		return "e0e1f9fabfc9d4800c877a703b823ac0578ff8db", nil
	}
	return nil, serverError("ERR unknown command '" + str(0) + "'")
}

type fakeConnection struct {
	node   topology.Node
	store  *fakeNode
	closed atomic.Bool
}

func (c *fakeConnection) Do(_ context.Context, args ...any) (any, error) {
	if c.closed.Load() {
		return nil, errors.New("use of closed connection")
	}
	return c.store.do(args)
}

func (c *fakeConnection) Node() topology.Node {
	return c.node
}

func (c *fakeConnection) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeDialer struct {
	sync.Mutex
	nodes map[string]*fakeNode
	conns []*fakeConnection
	down  map[string]bool
	hang  map[string]bool
	delay time.Duration

	dials       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		nodes: map[string]*fakeNode{},
		down:  map[string]bool{},
		hang:  map[string]bool{},
	}
}

func (d *fakeDialer) Dial(ctx context.Context, node topology.Node) (kv.Connection, error) {
	d.dials.Add(1)
	current := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		m := d.maxInFlight.Load()
		if current <= m || d.maxInFlight.CompareAndSwap(m, current) {
			break
		}
	}

	d.Lock()
	hang, down, delay := d.hang[node.Address()], d.down[node.Address()], d.delay
	d.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if down {
		return nil, errors.Errorf("dial tcp %s: connection refused", node.Address())
	}

	conn := &fakeConnection{node: node, store: d.node(node.Address())}
	d.Lock()
	d.conns = append(d.conns, conn)
	d.Unlock()
	return conn, nil
}

func (d *fakeDialer) node(address string) *fakeNode {
	d.Lock()
	defer d.Unlock()
	n, ok := d.nodes[address]
	if !ok {
		n = newFakeNode()
		d.nodes[address] = n
	}
	return n
}

func (d *fakeDialer) setDown(address string, down bool) {
	d.Lock()
	defer d.Unlock()
	d.down[address] = down
}

func (d *fakeDialer) totalCalls() int {
	d.Lock()
	nodes := make([]*fakeNode, 0, len(d.nodes))
	for _, n := range d.nodes {
		nodes = append(nodes, n)
	}
	d.Unlock()

	total := 0
	for _, n := range nodes {
		total += n.callCount()
	}
	return total
}

func testConfig() config.ClusterConfig {
	conf := config.NewClusterConfig()
	conf.Sharding = "orders"
	conf.Coordinator.Provider = config.ProviderMemory
	conf.Coordinator.MaxReconnectTime = time.Second
	conf.Timeout = time.Second
	conf.Retry.MaxAttempts = 2
	conf.Rebuild.RateLimit = 0
	return conf
}

func snapshotOf(version int64, addresses ...string) topology.Snapshot {
	nodes := make([]topology.Node, len(addresses))
	for i, a := range addresses {
		host, port, err := topology.ParseAddress(a)
		if err != nil {
			panic(err)
		}
		nodes[i] = topology.Node{Host: host, Port: port, Timeout: time.Second}
	}
	return topology.Snapshot{Version: version, Nodes: nodes}
}

func newTestRouter(t *testing.T, dialer kv.Dialer, conf config.ClusterConfig, addresses ...string) (*Router, *ActiveTopology) {
	t.Helper()
	active := NewActiveTopology()
	t.Cleanup(func() {
		_ = active.Close()
	})
	if len(addresses) > 0 {
		p := NewPoolBuilder(dialer, conf.Pool).Build(context.Background(), snapshotOf(1, addresses...))
		require.NoError(t, active.Swap(p))
	}

	hash, err := common.NewHashFunc(conf.Hash, conf.HashTags)
	require.NoError(t, err)
	policy := DefaultPolicy()
	m := newClientMetrics(noop.NewMeterProvider())
	return NewRouter(active, NewDispatcher(policy, conf.Retry, m), policy, hash), active
}
