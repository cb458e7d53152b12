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

import "context"

func (r *Router) HGet(ctx context.Context, sf ShardingFunction, key, field string) (string, error) {
	return toString(r.run(ctx, sf, "hget", key, field))
}

// HSet takes alternating fields and values.
func (r *Router) HSet(ctx context.Context, sf ShardingFunction, key string, fieldValues ...any) (int64, error) {
	return toInt64(r.run(ctx, sf, "hset", append([]any{key}, fieldValues...)...))
}

func (r *Router) HSetNX(ctx context.Context, sf ShardingFunction, key, field string, value any) (bool, error) {
	return toBool(r.run(ctx, sf, "hsetnx", key, field, value))
}

func (r *Router) HMGet(ctx context.Context, sf ShardingFunction, key string, fields ...string) ([]any, error) {
	return toSlice(r.run(ctx, sf, "hmget", append([]any{key}, stringsToArgs(fields)...)...))
}

func (r *Router) HDel(ctx context.Context, sf ShardingFunction, key string, fields ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "hdel", append([]any{key}, stringsToArgs(fields)...)...))
}

func (r *Router) HExists(ctx context.Context, sf ShardingFunction, key, field string) (bool, error) {
	return toBool(r.run(ctx, sf, "hexists", key, field))
}

func (r *Router) HGetAll(ctx context.Context, sf ShardingFunction, key string) (map[string]string, error) {
	return toStringMap(r.run(ctx, sf, "hgetall", key))
}

func (r *Router) HKeys(ctx context.Context, sf ShardingFunction, key string) ([]string, error) {
	return toStrings(r.run(ctx, sf, "hkeys", key))
}

func (r *Router) HVals(ctx context.Context, sf ShardingFunction, key string) ([]string, error) {
	return toStrings(r.run(ctx, sf, "hvals", key))
}

func (r *Router) HLen(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "hlen", key))
}

func (r *Router) HIncrBy(ctx context.Context, sf ShardingFunction, key, field string, increment int64) (int64, error) {
	return toInt64(r.run(ctx, sf, "hincrby", key, field, increment))
}

func (r *Router) HIncrByFloat(ctx context.Context, sf ShardingFunction, key, field string, increment float64) (float64, error) {
	return toFloat64(r.run(ctx, sf, "hincrbyfloat", key, field, increment))
}
