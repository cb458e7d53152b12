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
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/streamnative/kvshard/common"
	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/kv"
	"github.com/streamnative/kvshard/topology"
)

// PooledConnection is the connection of one pool slot. At most maxActive
// callers borrow it at the same time.
type PooledConnection struct {
	conn    kv.Connection
	slots   chan struct{}
	maxWait time.Duration
}

func newPooledConnection(conn kv.Connection, maxActive int, maxWait time.Duration) *PooledConnection {
	if maxActive <= 0 {
		maxActive = 1
	}
	return &PooledConnection{
		conn:    conn,
		slots:   make(chan struct{}, maxActive),
		maxWait: maxWait,
	}
}

func (pc *PooledConnection) Node() topology.Node {
	return pc.conn.Node()
}

// borrow must be paired with a release, on every path.
func (pc *PooledConnection) borrow(ctx context.Context) error {
	select {
	case pc.slots <- struct{}{}:
		return nil
	default:
	}

	var expired <-chan time.Time
	if pc.maxWait > 0 {
		t := time.NewTimer(pc.maxWait)
		defer t.Stop()
		expired = t.C
	}

	select {
	case pc.slots <- struct{}{}:
		return nil
	case <-expired:
		return errors.Wrapf(ErrPoolExhausted, "%s: %d borrowers", pc.Node().Address(), cap(pc.slots))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (pc *PooledConnection) release() {
	<-pc.slots
}

func (pc *PooledConnection) Close() error {
	return pc.conn.Close()
}

type connections []*PooledConnection

func (c connections) Close() error {
	var err error
	for _, pc := range c {
		err = multierr.Append(err, pc.Close())
	}
	return err
}

// Pool is the set of connections built for one snapshot: Get(i) serves
// Snapshot().Nodes[i]. It is never modified after creation. It is closed
// when it has been retired and the last borrower released it.
type Pool struct {
	snapshot topology.Snapshot
	refs     *common.RefCount[connections]
}

func newPool(snapshot topology.Snapshot, conns connections) *Pool {
	return &Pool{
		snapshot: snapshot.Clone(),
		refs:     common.NewRefCount(conns),
	}
}

func (p *Pool) Snapshot() topology.Snapshot {
	return p.snapshot.Clone()
}

func (p *Pool) Version() int64 {
	return p.snapshot.Version
}

func (p *Pool) Len() int {
	return len(p.refs.Get())
}

func (p *Pool) Get(index int) *PooledConnection {
	return p.refs.Get()[index]
}

func (p *Pool) acquire() bool {
	return p.refs.TryAcquire()
}

// Release drops one reference. The holder reference is dropped when the
// pool is retired.
func (p *Pool) Release() error {
	return p.refs.Release()
}

// PoolBuilder connects to every node of a snapshot, with bounded
// concurrency.
type PoolBuilder struct {
	dialer kv.Dialer
	tuning config.PoolTuning
	log    *slog.Logger
}

func NewPoolBuilder(dialer kv.Dialer, tuning config.PoolTuning) *PoolBuilder {
	return &PoolBuilder{
		dialer: dialer,
		tuning: tuning,
		log: slog.With(
			slog.String("component", "pool-builder"),
		),
	}
}

// Build waits for all the connection attempts. A node that cannot be reached
// keeps its slot, with a connection that fails until the node is back.
func (b *PoolBuilder) Build(ctx context.Context, snapshot topology.Snapshot) *Pool {
	conns := make(connections, snapshot.Len())
	if snapshot.IsEmpty() {
		return newPool(snapshot, conns)
	}

	concurrency := b.tuning.BuildConcurrency
	if concurrency <= 0 {
		concurrency = config.DefaultBuildConcurrency
	}

	p := pool.New().WithMaxGoroutines(concurrency)
	for i, node := range snapshot.Nodes {
		p.Go(func() {
			conns[i] = newPooledConnection(b.dial(ctx, node), b.tuning.MaxActive, b.tuning.MaxWait)
		})
	}
	p.Wait()

	return newPool(snapshot, conns)
}

func (b *PoolBuilder) dial(ctx context.Context, node topology.Node) kv.Connection {
	dialCtx := ctx
	if node.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, node.Timeout)
		defer cancel()
	}

	conn, err := b.dialer.Dial(dialCtx, node)
	if err != nil {
		b.log.Warn(
			"Failed to connect to node",
			slog.Any("node", node),
			slog.Any("error", err),
		)
		return kv.NewRedialingConnection(b.dialer, node, err)
	}
	return conn
}
