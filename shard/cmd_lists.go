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

func (r *Router) LPush(ctx context.Context, sf ShardingFunction, key string, values ...any) (int64, error) {
	return toInt64(r.run(ctx, sf, "lpush", append([]any{key}, values...)...))
}

func (r *Router) RPush(ctx context.Context, sf ShardingFunction, key string, values ...any) (int64, error) {
	return toInt64(r.run(ctx, sf, "rpush", append([]any{key}, values...)...))
}

func (r *Router) LPop(ctx context.Context, sf ShardingFunction, key string) (string, error) {
	return toString(r.run(ctx, sf, "lpop", key))
}

func (r *Router) RPop(ctx context.Context, sf ShardingFunction, key string) (string, error) {
	return toString(r.run(ctx, sf, "rpop", key))
}

func (r *Router) LLen(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "llen", key))
}

func (r *Router) LRange(ctx context.Context, sf ShardingFunction, key string, start, stop int64) ([]string, error) {
	return toStrings(r.run(ctx, sf, "lrange", key, start, stop))
}

func (r *Router) LIndex(ctx context.Context, sf ShardingFunction, key string, index int64) (string, error) {
	return toString(r.run(ctx, sf, "lindex", key, index))
}

func (r *Router) LSet(ctx context.Context, sf ShardingFunction, key string, index int64, value any) error {
	return toStatus(r.run(ctx, sf, "lset", key, index, value))
}

func (r *Router) LRem(ctx context.Context, sf ShardingFunction, key string, count int64, value any) (int64, error) {
	return toInt64(r.run(ctx, sf, "lrem", key, count, value))
}

func (r *Router) LTrim(ctx context.Context, sf ShardingFunction, key string, start, stop int64) error {
	return toStatus(r.run(ctx, sf, "ltrim", key, start, stop))
}

// LInsert inserts value before the pivot, or after it when before is false.
func (r *Router) LInsert(ctx context.Context, sf ShardingFunction, key string, before bool, pivot, value any) (int64, error) {
	position := "after"
	if before {
		position = "before"
	}
	return toInt64(r.run(ctx, sf, "linsert", key, position, pivot, value))
}
