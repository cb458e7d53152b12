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
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/topology"
)

const clientNamePrefix = "kvshard-"

type RedisOptions struct {
	PoolSize    int
	MinIdle     int
	MaxIdle     int
	PoolTimeout time.Duration
	TLS         *tls.Config
	ClientName  string
}

func NewRedisOptions(conf config.ClusterConfig) (RedisOptions, error) {
	options := RedisOptions{
		PoolSize:    conf.Pool.MaxActive,
		MinIdle:     conf.Pool.MinIdle,
		MaxIdle:     conf.Pool.MaxIdle,
		PoolTimeout: conf.Pool.MaxWait,
		ClientName:  clientNamePrefix + uuid.NewString(),
	}
	if conf.TLS.IsConfigured() {
		tlsConf, err := conf.TLS.MakeClientTLSConf()
		if err != nil {
			return options, errors.Wrap(err, "invalid tls configuration")
		}
		options.TLS = tlsConf
	}
	return options, nil
}

// RedisDialer connects to nodes speaking the Redis protocol.
type RedisDialer struct {
	options RedisOptions
	log     *slog.Logger
}

func NewRedisDialer(options RedisOptions) *RedisDialer {
	return &RedisDialer{
		options: options,
		log: slog.With(
			slog.String("component", "redis-dialer"),
			slog.String("client-name", options.ClientName),
		),
	}
}

// Dial creates the client and verifies the node answers within its timeout.
func (d *RedisDialer) Dial(ctx context.Context, node topology.Node) (Connection, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         node.Address(),
		Password:     node.Password,
		ClientName:   d.options.ClientName,
		Protocol:     2,
		DialTimeout:  node.Timeout,
		ReadTimeout:  node.Timeout,
		WriteTimeout: node.Timeout,
		PoolSize:     d.options.PoolSize,
		MinIdleConns: d.options.MinIdle,
		MaxIdleConns: d.options.MaxIdle,
		PoolTimeout:  d.options.PoolTimeout,
		TLSConfig:    d.options.TLS,
		// Retries are applied by the caller, on the same node
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})

	if node.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, node.Timeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to %s", node.Address())
	}

	d.log.Debug("Connected to node", slog.Any("node", node))
	return &redisConnection{
		client: client,
		node:   node,
	}, nil
}

type redisConnection struct {
	client *redis.Client
	node   topology.Node
}

func (c *redisConnection) Do(ctx context.Context, args ...any) (any, error) {
	return c.client.Do(ctx, args...).Result()
}

func (c *redisConnection) Node() topology.Node {
	return c.node
}

func (c *redisConnection) Close() error {
	return c.client.Close()
}
