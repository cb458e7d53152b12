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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/streamnative/kvshard/common"
	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/kv"
)

// Dispatcher runs every command sent to a pooled connection. It refuses the
// commands that make no sense across shards and retries failed calls on the
// same connection.
type Dispatcher struct {
	policy  *Policy
	retry   config.RetryPolicy
	metrics *clientMetrics
	log     *slog.Logger
}

func NewDispatcher(policy *Policy, retry config.RetryPolicy, m *clientMetrics) *Dispatcher {
	return &Dispatcher{
		policy:  policy,
		retry:   retry,
		metrics: m,
		log: slog.With(
			slog.String("component", "dispatcher"),
		),
	}
}

// Execute returns the reply of the command, nil for a nil reply. Error
// replies from the node and caller cancellations are returned as they are.
// Other failures are retried, up to the retry policy budget. When it is
// spent, the result depends on the retry mode: nil in lenient mode,
// ErrRetriesExhausted in strict mode.
func (d *Dispatcher) Execute(ctx context.Context, pc *PooledConnection, cmd Command) (any, error) {
	start := time.Now()
	if d.policy.IsRefused(cmd) {
		d.metrics.recordCommand(cmd.Name, start, resultRefused)
		return nil, errors.Wrap(ErrCommandRefused, cmd.Name)
	}

	if err := pc.borrow(ctx); err != nil {
		d.metrics.recordCommand(cmd.Name, start, resultFailure)
		return nil, err
	}
	defer pc.release()

	attempts := 0
	var lastErr error
	res, err := backoff.RetryNotifyWithData(
		func() (any, error) {
			attempts++
			res, err := d.attempt(ctx, pc, cmd)
			switch {
			case err == nil:
				return res, nil
			case kv.IsServerError(err):
				return nil, backoff.Permanent(err)
			case ctx.Err() != nil:
				return nil, backoff.Permanent(ctx.Err())
			}
			lastErr = err
			return nil, err
		},
		common.NewAttemptsBackOff(ctx, d.retry.Delay, d.retry.MaxAttempts),
		func(err error, duration time.Duration) {
			d.metrics.recordRetry(cmd.Name)
			d.log.Debug(
				"Command failed, retrying",
				slog.String("command", cmd.Name),
				slog.Any("node", pc.Node()),
				slog.Int("attempt", attempts),
				slog.Any("error", err),
				slog.Duration("retry-after", duration),
			)
		},
	)

	switch {
	case err == nil:
		d.metrics.recordCommand(cmd.Name, start, resultSuccess)
		return res, nil
	case lastErr == nil || kv.IsServerError(err) || ctx.Err() != nil:
		d.metrics.recordCommand(cmd.Name, start, resultFailure)
		return nil, err
	}

	d.metrics.recordCommand(cmd.Name, start, resultExhausted)
	if d.retry.Mode == config.RetryStrict {
		return nil, errors.Wrapf(multierr.Combine(ErrRetriesExhausted, lastErr),
			"%s on %s after %d attempts", cmd.Name, pc.Node().Address(), attempts)
	}

	d.log.Warn(
		"Command failed after all retries, returning a nil reply",
		slog.String("command", cmd.Name),
		slog.Any("node", pc.Node()),
		slog.Int("attempts", attempts),
		slog.Any("error", lastErr),
	)
	return nil, nil
}

func (d *Dispatcher) attempt(ctx context.Context, pc *PooledConnection, cmd Command) (any, error) {
	if timeout := pc.Node().Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := pc.conn.Do(ctx, cmd.Full()...)
	if errors.Is(err, kv.ErrNil) {
		return nil, nil
	}
	return res, err
}
