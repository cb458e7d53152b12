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

package kv

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/streamnative/kvshard/topology"
)

const minRedialInterval = time.Second

// RedialingConnection stands in for a node that could not be reached while
// building a pool, so that the node keeps its shard index. Calls fail with
// ErrNodeUnavailable until a new dial attempt, at most once per interval,
// succeeds.
type RedialingConnection struct {
	sync.Mutex
	dialer      Dialer
	node        topology.Node
	interval    time.Duration
	conn        Connection
	lastErr     error
	lastAttempt time.Time
	closed      bool
	dialing     bool
	log         *slog.Logger
}

func NewRedialingConnection(dialer Dialer, node topology.Node, cause error) *RedialingConnection {
	interval := node.Timeout
	if interval < minRedialInterval {
		interval = minRedialInterval
	}
	return &RedialingConnection{
		dialer:      dialer,
		node:        node,
		interval:    interval,
		lastErr:     cause,
		lastAttempt: time.Now(),
		log: slog.With(
			slog.String("component", "redialing-connection"),
			slog.Any("node", node),
		),
	}
}

func (r *RedialingConnection) Do(ctx context.Context, args ...any) (any, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}
	return conn.Do(ctx, args...)
}

// connection returns the live connection, dialing again when the interval
// has passed. The dial runs without the lock, so concurrent callers fail
// fast instead of queueing behind it.
func (r *RedialingConnection) connection(ctx context.Context) (Connection, error) {
	r.Lock()
	if r.closed {
		r.Unlock()
		return nil, errors.Wrapf(ErrNodeUnavailable, "%s: connection closed", r.node.Address())
	}
	if r.conn != nil {
		conn := r.conn
		r.Unlock()
		return conn, nil
	}
	if r.dialing || time.Since(r.lastAttempt) < r.interval {
		err := r.lastErr
		r.Unlock()
		return nil, errors.Wrapf(ErrNodeUnavailable, "%s: %v", r.node.Address(), err)
	}
	r.dialing = true
	r.lastAttempt = time.Now()
	r.Unlock()

	conn, err := r.dialer.Dial(ctx, r.node)

	r.Lock()
	defer r.Unlock()
	r.dialing = false
	r.lastAttempt = time.Now()
	if err != nil {
		r.lastErr = err
		return nil, errors.Wrapf(ErrNodeUnavailable, "%s: %v", r.node.Address(), err)
	}
	if r.closed {
		return nil, multierr.Append(
			errors.Wrapf(ErrNodeUnavailable, "%s: connection closed", r.node.Address()),
			conn.Close(),
		)
	}
	r.log.Info("Node reachable again")
	r.conn = conn
	return conn, nil
}

func (r *RedialingConnection) Node() topology.Node {
	return r.node
}

func (r *RedialingConnection) Close() error {
	r.Lock()
	defer r.Unlock()

	r.closed = true
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
