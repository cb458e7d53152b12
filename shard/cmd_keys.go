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
	"time"
)

func (r *Router) run(ctx context.Context, sf ShardingFunction, name string, args ...any) (any, error) {
	return r.Execute(ctx, sf, NewCommand(name, args...))
}

// Del removes keys of the shard selected by sf. Use DelByKey for keys
// spread over several shards.
func (r *Router) Del(ctx context.Context, sf ShardingFunction, keys ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "del", stringsToArgs(keys)...))
}

func (r *Router) Unlink(ctx context.Context, sf ShardingFunction, keys ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "unlink", stringsToArgs(keys)...))
}

func (r *Router) Exists(ctx context.Context, sf ShardingFunction, keys ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "exists", stringsToArgs(keys)...))
}

func (r *Router) Touch(ctx context.Context, sf ShardingFunction, keys ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "touch", stringsToArgs(keys)...))
}

func (r *Router) Expire(ctx context.Context, sf ShardingFunction, key string, ttl time.Duration) (bool, error) {
	return toBool(r.run(ctx, sf, "expire", key, int64(ttl/time.Second)))
}

func (r *Router) PExpire(ctx context.Context, sf ShardingFunction, key string, ttl time.Duration) (bool, error) {
	return toBool(r.run(ctx, sf, "pexpire", key, ttl.Milliseconds()))
}

func (r *Router) ExpireAt(ctx context.Context, sf ShardingFunction, key string, at time.Time) (bool, error) {
	return toBool(r.run(ctx, sf, "expireat", key, at.Unix()))
}

func (r *Router) Persist(ctx context.Context, sf ShardingFunction, key string) (bool, error) {
	return toBool(r.run(ctx, sf, "persist", key))
}

func (r *Router) TTL(ctx context.Context, sf ShardingFunction, key string) (time.Duration, error) {
	reply, err := r.run(ctx, sf, "ttl", key)
	return toTTL(reply, err, time.Second)
}

func (r *Router) PTTL(ctx context.Context, sf ShardingFunction, key string) (time.Duration, error) {
	reply, err := r.run(ctx, sf, "pttl", key)
	return toTTL(reply, err, time.Millisecond)
}

func (r *Router) Type(ctx context.Context, sf ShardingFunction, key string) (string, error) {
	return toString(r.run(ctx, sf, "type", key))
}

// RandomKey has no key to route on and always goes to the first shard.
func (r *Router) RandomKey(ctx context.Context) (string, error) {
	return toString(r.run(ctx, Pinned(0), "randomkey"))
}

// Ping checks the first shard.
func (r *Router) Ping(ctx context.Context) error {
	return toStatus(r.run(ctx, Pinned(0), "ping"))
}
