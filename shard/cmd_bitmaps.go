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

func (r *Router) SetBit(ctx context.Context, sf ShardingFunction, key string, offset int64, value int) (int64, error) {
	return toInt64(r.run(ctx, sf, "setbit", key, offset, value))
}

func (r *Router) GetBit(ctx context.Context, sf ShardingFunction, key string, offset int64) (int64, error) {
	return toInt64(r.run(ctx, sf, "getbit", key, offset))
}

func (r *Router) BitCount(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "bitcount", key))
}

func (r *Router) BitPos(ctx context.Context, sf ShardingFunction, key string, bit int) (int64, error) {
	return toInt64(r.run(ctx, sf, "bitpos", key, bit))
}
