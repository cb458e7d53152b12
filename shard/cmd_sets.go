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

func (r *Router) SAdd(ctx context.Context, sf ShardingFunction, key string, members ...any) (int64, error) {
	return toInt64(r.run(ctx, sf, "sadd", append([]any{key}, members...)...))
}

func (r *Router) SRem(ctx context.Context, sf ShardingFunction, key string, members ...any) (int64, error) {
	return toInt64(r.run(ctx, sf, "srem", append([]any{key}, members...)...))
}

func (r *Router) SMembers(ctx context.Context, sf ShardingFunction, key string) ([]string, error) {
	return toStrings(r.run(ctx, sf, "smembers", key))
}

func (r *Router) SIsMember(ctx context.Context, sf ShardingFunction, key string, member any) (bool, error) {
	return toBool(r.run(ctx, sf, "sismember", key, member))
}

func (r *Router) SCard(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "scard", key))
}

func (r *Router) SPop(ctx context.Context, sf ShardingFunction, key string) (string, error) {
	return toString(r.run(ctx, sf, "spop", key))
}

func (r *Router) SRandMember(ctx context.Context, sf ShardingFunction, key string) (string, error) {
	return toString(r.run(ctx, sf, "srandmember", key))
}
