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

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// Eval runs a script on the shard selected by sf. All the keys must live on
// that shard.
func (r *Router) Eval(ctx context.Context, sf ShardingFunction, script string, keys []string, args ...any) (any, error) {
	return r.run(ctx, sf, "eval", scriptArgs(script, keys, args)...)
}

func (r *Router) EvalSha(ctx context.Context, sf ShardingFunction, sha string, keys []string, args ...any) (any, error) {
	return r.run(ctx, sf, "evalsha", scriptArgs(sha, keys, args)...)
}

func (r *Router) ScriptLoad(ctx context.Context, sf ShardingFunction, script string) (string, error) {
	return toString(r.run(ctx, sf, "script", "load", script))
}

func (r *Router) ScriptExists(ctx context.Context, sf ShardingFunction, shas ...string) ([]bool, error) {
	return toBools(r.run(ctx, sf, "script", append([]any{"exists"}, stringsToArgs(shas)...)...))
}

// ScriptLoadAll loads the script on every shard, so that EvalSha works
// whatever the shard. It returns the digest of the script.
func (r *Router) ScriptLoadAll(ctx context.Context, script string) (string, error) {
	p, err := r.active.Acquire()
	if err != nil {
		return "", err
	}
	defer r.release(p)

	if p.Len() == 0 {
		return "", ErrEmptyTopology
	}
	digests := make([]string, p.Len())
	errs := make([]error, p.Len())
	wg := pool.New()
	for i := 0; i < p.Len(); i++ {
		wg.Go(func() {
			digests[i], errs[i] = toString(r.dispatcher.Execute(ctx, p.Get(i), NewCommand("script", "load", script)))
		})
	}
	wg.Wait()

	var failures error
	for i, e := range errs {
		if e != nil {
			failures = multierr.Append(failures, errors.Wrapf(e, "shard %d", i))
		}
	}
	if failures != nil {
		return "", errors.Wrap(multierr.Combine(ErrPartialFailure, failures), "script load")
	}
	return digests[0], nil
}

func scriptArgs(script string, keys []string, args []any) []any {
	all := make([]any, 0, 2+len(keys)+len(args))
	all = append(all, script, len(keys))
	all = append(all, stringsToArgs(keys)...)
	return append(all, args...)
}
