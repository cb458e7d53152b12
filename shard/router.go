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
	"log/slog"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/streamnative/kvshard/common"
	"github.com/streamnative/kvshard/kv"
	"github.com/streamnative/kvshard/topology"
)

// ShardingFunction chooses the shard of a call. The value is folded into
// the pool size by the router.
type ShardingFunction interface {
	ShardIndex() int64
}

type ShardingFunc func() int64

func (f ShardingFunc) ShardIndex() int64 {
	return f()
}

// Pinned always selects the same shard.
func Pinned(index int) ShardingFunction {
	return ShardingFunc(func() int64 {
		return int64(index)
	})
}

// Router sends each command to the shard selected for it, through the
// dispatcher.
type Router struct {
	active     *ActiveTopology
	dispatcher *Dispatcher
	policy     *Policy
	hash       common.HashFunc
	log        *slog.Logger
}

func NewRouter(active *ActiveTopology, dispatcher *Dispatcher, policy *Policy, hash common.HashFunc) *Router {
	return &Router{
		active:     active,
		dispatcher: dispatcher,
		policy:     policy,
		hash:       hash,
		log: slog.With(
			slog.String("component", "shard-router"),
		),
	}
}

// ByKey selects the shard of the key, with the configured hash function.
func (r *Router) ByKey(key string) ShardingFunction {
	return ShardingFunc(func() int64 {
		return r.hash(key)
	})
}

// Execute routes one command. Refused commands, a nil sharding function and
// an empty topology are rejected before any network call. Key/value pair
// commands ignore sf and are split by key.
func (r *Router) Execute(ctx context.Context, sf ShardingFunction, cmd Command) (any, error) {
	switch r.policy.Classify(cmd) {
	case ClassRefused:
		return nil, errors.Wrap(ErrCommandRefused, cmd.Name)
	case ClassMultiKeyValue:
		return r.executeKeyValues(ctx, cmd)
	}

	if isNil(sf) {
		return nil, errors.Wrap(ErrNilShardingFunction, cmd.Name)
	}

	p, err := r.active.Acquire()
	if err != nil {
		return nil, err
	}
	defer r.release(p)

	if p.Len() == 0 {
		return nil, ErrEmptyTopology
	}
	index := common.ShardIndex(sf.ShardIndex(), p.Len())
	return r.dispatcher.Execute(ctx, p.Get(index), cmd)
}

// Do runs a command given as a raw command line.
func (r *Router) Do(ctx context.Context, sf ShardingFunction, args ...any) (any, error) {
	cmd, err := ParseCommand(args...)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, sf, cmd)
}

// Snapshot returns the topology currently used for routing.
func (r *Router) Snapshot() topology.Snapshot {
	return r.active.Snapshot()
}

type keyGroup struct {
	index int
	args  []any
	keys  []int
}

// groupByShard groups the items, each of width elements starting with a key,
// by the shard of their key. Groups keep the order of their first key.
func (r *Router) groupByShard(args []any, width int, size int) ([]*keyGroup, error) {
	if len(args) == 0 || len(args)%width != 0 {
		return nil, errors.Wrapf(ErrInvalidArguments, "expected a multiple of %d arguments, got %d", width, len(args))
	}

	var groups []*keyGroup
	byIndex := make(map[int]*keyGroup)
	for i := 0; i < len(args); i += width {
		key, err := keyString(args[i])
		if err != nil {
			return nil, err
		}
		index := common.ShardIndex(r.hash(key), size)
		g, ok := byIndex[index]
		if !ok {
			g = &keyGroup{index: index}
			byIndex[index] = g
			groups = append(groups, g)
		}
		g.args = append(g.args, args[i:i+width]...)
		g.keys = append(g.keys, i/width)
	}
	return groups, nil
}

// fanOut sends one sub-command per group, all against the same pool, and
// returns the replies in group order.
func (r *Router) fanOut(ctx context.Context, name string, args []any, width int) ([]*keyGroup, []any, error) {
	p, err := r.active.Acquire()
	if err != nil {
		return nil, nil, err
	}
	defer r.release(p)

	if p.Len() == 0 {
		return nil, nil, ErrEmptyTopology
	}
	groups, err := r.groupByShard(args, width, p.Len())
	if err != nil {
		return nil, nil, err
	}

	replies := make([]any, len(groups))
	errs := make([]error, len(groups))
	if len(groups) == 1 {
		replies[0], errs[0] = r.dispatcher.Execute(ctx, p.Get(groups[0].index), NewCommand(name, groups[0].args...))
		return groups, replies, errs[0]
	}

	wg := pool.New()
	for i, g := range groups {
		wg.Go(func() {
			replies[i], errs[i] = r.dispatcher.Execute(ctx, p.Get(g.index), NewCommand(name, g.args...))
		})
	}
	wg.Wait()

	var failures error
	for i, e := range errs {
		if e != nil {
			failures = multierr.Append(failures, errors.Wrapf(e, "shard %d", groups[i].index))
		} else if replies[i] == nil {
			failures = multierr.Append(failures, errors.Errorf("shard %d: no reply", groups[i].index))
		}
	}
	if failures != nil {
		return groups, replies, errors.Wrapf(multierr.Combine(ErrPartialFailure, failures), "%s on %d shards", name, len(groups))
	}
	return groups, replies, nil
}

// executeKeyValues splits key/value pair commands by shard. With one shard
// the reply is returned unchanged. Otherwise all the shards must succeed
// with the same reply, except integer replies which are merged to the
// smallest one: msetnx is 1 only if every shard set its keys.
func (r *Router) executeKeyValues(ctx context.Context, cmd Command) (any, error) {
	groups, replies, err := r.fanOut(ctx, cmd.Name, cmd.Args, 2)
	if err != nil {
		return nil, err
	}
	if len(groups) == 1 {
		return replies[0], nil
	}

	merged := replies[0]
	for _, reply := range replies[1:] {
		if a, ok := merged.(int64); ok {
			if b, ok := reply.(int64); ok {
				merged = min(a, b)
				continue
			}
		}
		if !reflect.DeepEqual(merged, reply) {
			return nil, errors.Wrapf(ErrPartialFailure, "%s: shards replied %v and %v", cmd.Name, merged, reply)
		}
	}
	return merged, nil
}

// countByKey sends a counting multi-key command to every shard owning one
// of the keys and sums the counts.
func (r *Router) countByKey(ctx context.Context, name string, keys []string) (int64, error) {
	_, replies, err := r.fanOut(ctx, name, stringsToArgs(keys), 1)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, reply := range replies {
		n, err := toInt64(reply, nil)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// DelByKey deletes keys that may live on different shards.
func (r *Router) DelByKey(ctx context.Context, keys ...string) (int64, error) {
	return r.countByKey(ctx, "del", keys)
}

func (r *Router) UnlinkByKey(ctx context.Context, keys ...string) (int64, error) {
	return r.countByKey(ctx, "unlink", keys)
}

func (r *Router) ExistsByKey(ctx context.Context, keys ...string) (int64, error) {
	return r.countByKey(ctx, "exists", keys)
}

// MGetByKey reads keys that may live on different shards. Values are in the
// order of the keys, nil for a missing key.
func (r *Router) MGetByKey(ctx context.Context, keys ...string) ([]any, error) {
	groups, replies, err := r.fanOut(ctx, "mget", stringsToArgs(keys), 1)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(keys))
	for i, g := range groups {
		if replies[i] == nil {
			return nil, errors.Wrapf(kv.ErrNil, "mget on shard %d", g.index)
		}
		list, ok := replies[i].([]any)
		if !ok || len(list) != len(g.keys) {
			return nil, errors.Wrapf(ErrUnexpectedReply, "mget on shard %d: %T", g.index, replies[i])
		}
		for j, position := range g.keys {
			values[position] = list[j]
		}
	}
	return values, nil
}

// SMembersByKey reads the members of sets that may live on different
// shards. A missing key has no members.
func (r *Router) SMembersByKey(ctx context.Context, keys ...string) (map[string][]string, error) {
	replies, err := r.eachKey(ctx, "smembers", keys)
	if err != nil {
		return nil, err
	}
	members := make(map[string][]string, len(keys))
	for i, key := range keys {
		if members[key], err = toStrings(replies[i], nil); err != nil {
			return nil, errors.Wrapf(err, "smembers %s", key)
		}
	}
	return members, nil
}

// HGetAllByKey reads hashes that may live on different shards. A missing
// key has no fields.
func (r *Router) HGetAllByKey(ctx context.Context, keys ...string) (map[string]map[string]string, error) {
	replies, err := r.eachKey(ctx, "hgetall", keys)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]map[string]string, len(keys))
	for i, key := range keys {
		if hashes[key], err = toStringMap(replies[i], nil); err != nil {
			return nil, errors.Wrapf(err, "hgetall %s", key)
		}
	}
	return hashes, nil
}

// eachKey runs a single-key command once per key, all against the same
// pool. Shards are called concurrently, the keys of one shard in turn.
// Replies are in the order of the keys.
func (r *Router) eachKey(ctx context.Context, name string, keys []string) ([]any, error) {
	p, err := r.active.Acquire()
	if err != nil {
		return nil, err
	}
	defer r.release(p)

	if p.Len() == 0 {
		return nil, ErrEmptyTopology
	}
	groups, err := r.groupByShard(stringsToArgs(keys), 1, p.Len())
	if err != nil {
		return nil, err
	}

	replies := make([]any, len(keys))
	errs := make([]error, len(groups))
	wg := pool.New()
	for i, g := range groups {
		wg.Go(func() {
			pc := p.Get(g.index)
			for j, position := range g.keys {
				reply, err := r.dispatcher.Execute(ctx, pc, NewCommand(name, g.args[j]))
				if err == nil && reply == nil {
					err = kv.ErrNil
				}
				if err != nil {
					errs[i] = errors.Wrapf(err, "%s on shard %d", name, g.index)
					return
				}
				replies[position] = reply
			}
		})
	}
	wg.Wait()

	if len(groups) == 1 {
		return replies, errs[0]
	}
	if failures := multierr.Combine(errs...); failures != nil {
		return nil, errors.Wrapf(multierr.Combine(ErrPartialFailure, failures), "%s on %d shards", name, len(groups))
	}
	return replies, nil
}

func (r *Router) release(p *Pool) {
	if err := p.Release(); err != nil {
		r.log.Warn(
			"Failed to close retired pool",
			slog.Int64("version", p.Version()),
			slog.Any("error", err),
		)
	}
}

// isNil also catches typed nils, such as a nil pointer implementing
// ShardingFunction.
func isNil(sf ShardingFunction) bool {
	if sf == nil {
		return true
	}
	v := reflect.ValueOf(sf)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func keyString(arg any) (string, error) {
	switch k := arg.(type) {
	case string:
		return k, nil
	case []byte:
		return string(k), nil
	}
	return "", errors.Wrapf(ErrInvalidArguments, "key must be a string, got %T", arg)
}

func stringsToArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
