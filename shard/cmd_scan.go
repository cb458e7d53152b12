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

// ScanOptions restricts the keys or members returned by the scan commands.
type ScanOptions struct {
	Match string
	Count int64
}

func (o ScanOptions) args() []any {
	var args []any
	if o.Match != "" {
		args = append(args, "match", o.Match)
	}
	if o.Count > 0 {
		args = append(args, "count", o.Count)
	}
	return args
}

// Scan iterates the keys of one shard. A returned cursor of 0 ends the
// iteration.
func (r *Router) Scan(ctx context.Context, sf ShardingFunction, cursor uint64, options ScanOptions) ([]string, uint64, error) {
	return toScan(r.run(ctx, sf, "scan", append([]any{cursor}, options.args()...)...))
}

func (r *Router) HScan(ctx context.Context, sf ShardingFunction, key string, cursor uint64, options ScanOptions) ([]string, uint64, error) {
	return toScan(r.run(ctx, sf, "hscan", append([]any{key, cursor}, options.args()...)...))
}

func (r *Router) SScan(ctx context.Context, sf ShardingFunction, key string, cursor uint64, options ScanOptions) ([]string, uint64, error) {
	return toScan(r.run(ctx, sf, "sscan", append([]any{key, cursor}, options.args()...)...))
}

func (r *Router) ZScan(ctx context.Context, sf ShardingFunction, key string, cursor uint64, options ScanOptions) ([]string, uint64, error) {
	return toScan(r.run(ctx, sf, "zscan", append([]any{key, cursor}, options.args()...)...))
}
