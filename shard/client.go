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
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/streamnative/kvshard/common"
	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/coordination"
	"github.com/streamnative/kvshard/kv"
	"github.com/streamnative/kvshard/topology"
)

// Client is a router kept in sync with the topology published in the
// coordination service. The provider is not owned by the client.
type Client struct {
	io.Closer
	*Router

	active  *ActiveTopology
	builder *PoolBuilder
	watcher *topology.Watcher
	metrics *clientMetrics
	log     *slog.Logger
}

// NewClient returns once the initial topology is loaded and its pool built.
func NewClient(ctx context.Context, conf config.ClusterConfig, provider coordination.Reader, dialer kv.Dialer,
	opts ...ClientOption) (*Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid cluster configuration")
	}
	options, err := newClientOptions(opts...)
	if err != nil {
		return nil, err
	}
	hash, err := common.NewHashFunc(conf.Hash, conf.HashTags)
	if err != nil {
		return nil, err
	}

	m := newClientMetrics(options.meterProvider)
	active := NewActiveTopology()
	c := &Client{
		Router:  NewRouter(active, NewDispatcher(options.policy, conf.Retry, m), options.policy, hash),
		active:  active,
		builder: NewPoolBuilder(dialer, conf.Pool),
		metrics: m,
		log: slog.With(
			slog.String("component", "kvshard-client"),
			slog.String("sharding", conf.Sharding),
		),
	}
	c.watcher = topology.NewWatcher(provider, conf, topology.ListenerFunc(c.onSnapshot), options.fatalHandler)

	if err := c.watcher.Start(ctx); err != nil {
		_ = active.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) onSnapshot(ctx context.Context, snapshot topology.Snapshot) error {
	p := c.builder.Build(ctx, snapshot)
	err := ctx.Err()
	if err == nil {
		err = c.active.Swap(p)
	}
	c.metrics.recordRebuild(err)
	if err != nil {
		_ = p.Release()
		return err
	}

	c.metrics.recordTopology(snapshot.Version, snapshot.Len())
	c.log.Info(
		"Applied new topology",
		slog.Int64("version", snapshot.Version),
		slog.Any("nodes", snapshot.Addresses()),
	)
	return nil
}

func (c *Client) Close() error {
	return multierr.Combine(
		c.watcher.Close(),
		c.active.Close(),
	)
}
