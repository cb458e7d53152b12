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

func (r *Router) Get(ctx context.Context, sf ShardingFunction, key string) (string, error) {
	return toString(r.run(ctx, sf, "get", key))
}

func (r *Router) Set(ctx context.Context, sf ShardingFunction, key string, value any) error {
	return toStatus(r.run(ctx, sf, "set", key, value))
}

// SetEx sets the value with a time to live, in whole seconds.
func (r *Router) SetEx(ctx context.Context, sf ShardingFunction, key string, value any, ttl time.Duration) error {
	return toStatus(r.run(ctx, sf, "setex", key, int64(ttl/time.Second), value))
}

func (r *Router) PSetEx(ctx context.Context, sf ShardingFunction, key string, value any, ttl time.Duration) error {
	return toStatus(r.run(ctx, sf, "psetex", key, ttl.Milliseconds(), value))
}

func (r *Router) SetNX(ctx context.Context, sf ShardingFunction, key string, value any) (bool, error) {
	return toBool(r.run(ctx, sf, "setnx", key, value))
}

func (r *Router) GetSet(ctx context.Context, sf ShardingFunction, key string, value any) (string, error) {
	return toString(r.run(ctx, sf, "getset", key, value))
}

func (r *Router) GetDel(ctx context.Context, sf ShardingFunction, key string) (string, error) {
	return toString(r.run(ctx, sf, "getdel", key))
}

func (r *Router) Incr(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "incr", key))
}

func (r *Router) IncrBy(ctx context.Context, sf ShardingFunction, key string, increment int64) (int64, error) {
	return toInt64(r.run(ctx, sf, "incrby", key, increment))
}

func (r *Router) IncrByFloat(ctx context.Context, sf ShardingFunction, key string, increment float64) (float64, error) {
	return toFloat64(r.run(ctx, sf, "incrbyfloat", key, increment))
}

func (r *Router) Decr(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "decr", key))
}

func (r *Router) DecrBy(ctx context.Context, sf ShardingFunction, key string, decrement int64) (int64, error) {
	return toInt64(r.run(ctx, sf, "decrby", key, decrement))
}

func (r *Router) Append(ctx context.Context, sf ShardingFunction, key string, value string) (int64, error) {
	return toInt64(r.run(ctx, sf, "append", key, value))
}

func (r *Router) StrLen(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "strlen", key))
}

func (r *Router) GetRange(ctx context.Context, sf ShardingFunction, key string, start, end int64) (string, error) {
	return toString(r.run(ctx, sf, "getrange", key, start, end))
}

func (r *Router) SetRange(ctx context.Context, sf ShardingFunction, key string, offset int64, value string) (int64, error) {
	return toInt64(r.run(ctx, sf, "setrange", key, offset, value))
}

// MGet reads keys of the shard selected by sf. Use MGetByKey for keys spread
// over several shards.
func (r *Router) MGet(ctx context.Context, sf ShardingFunction, keys ...string) ([]any, error) {
	return toSlice(r.run(ctx, sf, "mget", stringsToArgs(keys)...))
}

// MSet takes alternating keys and values. Each pair goes to the shard of
// its key, and the call succeeds only if every shard succeeded.
func (r *Router) MSet(ctx context.Context, pairs ...any) error {
	return toStatus(r.Execute(ctx, nil, NewCommand("mset", pairs...)))
}

// MSetNX reports true only if every shard set its keys. It is not atomic
// across shards.
func (r *Router) MSetNX(ctx context.Context, pairs ...any) (bool, error) {
	return toBool(r.Execute(ctx, nil, NewCommand("msetnx", pairs...)))
}
