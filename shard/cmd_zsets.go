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
	"strconv"
)

// Z is a sorted set member with its score.
type Z struct {
	Member string
	Score  float64
}

func (r *Router) ZAdd(ctx context.Context, sf ShardingFunction, key string, members ...Z) (int64, error) {
	args := make([]any, 0, 1+2*len(members))
	args = append(args, key)
	for _, m := range members {
		args = append(args, m.Score, m.Member)
	}
	return toInt64(r.run(ctx, sf, "zadd", args...))
}

func (r *Router) ZRem(ctx context.Context, sf ShardingFunction, key string, members ...string) (int64, error) {
	return toInt64(r.run(ctx, sf, "zrem", append([]any{key}, stringsToArgs(members)...)...))
}

func (r *Router) ZScore(ctx context.Context, sf ShardingFunction, key, member string) (float64, error) {
	return toFloat64(r.run(ctx, sf, "zscore", key, member))
}

func (r *Router) ZIncrBy(ctx context.Context, sf ShardingFunction, key string, increment float64, member string) (float64, error) {
	return toFloat64(r.run(ctx, sf, "zincrby", key, increment, member))
}

func (r *Router) ZCard(ctx context.Context, sf ShardingFunction, key string) (int64, error) {
	return toInt64(r.run(ctx, sf, "zcard", key))
}

// ZCount counts the members with a score in [min, max]. Bounds use the
// node syntax, e.g. "(1" or "-inf".
func (r *Router) ZCount(ctx context.Context, sf ShardingFunction, key, min, max string) (int64, error) {
	return toInt64(r.run(ctx, sf, "zcount", key, min, max))
}

func (r *Router) ZRange(ctx context.Context, sf ShardingFunction, key string, start, stop int64) ([]string, error) {
	return toStrings(r.run(ctx, sf, "zrange", key, start, stop))
}

func (r *Router) ZRangeWithScores(ctx context.Context, sf ShardingFunction, key string, start, stop int64) ([]Z, error) {
	return toZs(r.run(ctx, sf, "zrange", key, start, stop, "withscores"))
}

func (r *Router) ZRevRange(ctx context.Context, sf ShardingFunction, key string, start, stop int64) ([]string, error) {
	return toStrings(r.run(ctx, sf, "zrevrange", key, start, stop))
}

func (r *Router) ZRangeByScore(ctx context.Context, sf ShardingFunction, key, min, max string) ([]string, error) {
	return toStrings(r.run(ctx, sf, "zrangebyscore", key, min, max))
}

func (r *Router) ZRank(ctx context.Context, sf ShardingFunction, key, member string) (int64, error) {
	return toInt64(r.run(ctx, sf, "zrank", key, member))
}

func (r *Router) ZRevRank(ctx context.Context, sf ShardingFunction, key, member string) (int64, error) {
	return toInt64(r.run(ctx, sf, "zrevrank", key, member))
}

func (r *Router) ZRemRangeByRank(ctx context.Context, sf ShardingFunction, key string, start, stop int64) (int64, error) {
	return toInt64(r.run(ctx, sf, "zremrangebyrank", key, start, stop))
}

func (r *Router) ZRemRangeByScore(ctx context.Context, sf ShardingFunction, key, min, max string) (int64, error) {
	return toInt64(r.run(ctx, sf, "zremrangebyscore", key, min, max))
}

// ScoreBound formats a score for ZCount and the range commands, exclusive
// when open is set.
func ScoreBound(score float64, open bool) string {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	if open {
		return "(" + s
	}
	return s
}
