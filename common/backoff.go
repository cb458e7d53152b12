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

package common

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
)

// NewBackOff creates an exponential backoff bound to the context. A zero
// maxElapsedTime keeps retrying until the context is done.
func NewBackOff(ctx context.Context, maxElapsedTime time.Duration) backoff.BackOff {
	return NewBackOffWithInitialInterval(ctx, defaultInitialInterval, maxElapsedTime)
}

func NewBackOffWithInitialInterval(ctx context.Context, initialInterval time.Duration, maxElapsedTime time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = defaultMaxInterval
	b.MaxElapsedTime = maxElapsedTime
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// NewAttemptsBackOff allows maxRetries further attempts after the first one,
// each separated by a fixed delay. A zero delay retries immediately.
func NewAttemptsBackOff(ctx context.Context, delay time.Duration, maxRetries int) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if delay > 0 {
		b = backoff.NewConstantBackOff(delay)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}
