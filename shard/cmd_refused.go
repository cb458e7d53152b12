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

// The commands below move data between keys that may live on different
// shards. They always fail with ErrCommandRefused.

func (r *Router) Rename(ctx context.Context, sf ShardingFunction, key, newKey string) error {
	return toStatus(r.run(ctx, sf, "rename", key, newKey))
}

func (r *Router) RenameNX(ctx context.Context, sf ShardingFunction, key, newKey string) (bool, error) {
	return toBool(r.run(ctx, sf, "renamenx", key, newKey))
}

func (r *Router) SMove(ctx context.Context, sf ShardingFunction, source, destination string, member any) (bool, error) {
	return toBool(r.run(ctx, sf, "smove", source, destination, member))
}

func (r *Router) RPopLPush(ctx context.Context, sf ShardingFunction, source, destination string) (string, error) {
	return toString(r.run(ctx, sf, "rpoplpush", source, destination))
}

func (r *Router) SortStore(ctx context.Context, sf ShardingFunction, key, destination string) (int64, error) {
	return toInt64(r.run(ctx, sf, "sort", key, "store", destination))
}

func (r *Router) BitOp(ctx context.Context, sf ShardingFunction, operation, destination string, keys ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "bitop", append([]any{operation, destination}, stringsToArgs(keys)...)...))
}

func (r *Router) SInterStore(ctx context.Context, sf ShardingFunction, destination string, keys ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "sinterstore", append([]any{destination}, stringsToArgs(keys)...)...))
}

func (r *Router) SUnionStore(ctx context.Context, sf ShardingFunction, destination string, keys ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "sunionstore", append([]any{destination}, stringsToArgs(keys)...)...))
}

func (r *Router) PFMerge(ctx context.Context, sf ShardingFunction, destination string, keys ...string) error {
	return toStatus(r.run(ctx, sf, "pfmerge", append([]any{destination}, stringsToArgs(keys)...)...))
}
