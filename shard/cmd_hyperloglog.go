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

func (r *Router) PFAdd(ctx context.Context, sf ShardingFunction, key string, elements ...any) (bool, error) {
	return toBool(r.run(ctx, sf, "pfadd", append([]any{key}, elements...)...))
}

func (r *Router) PFCount(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "pfcount", key))
}
