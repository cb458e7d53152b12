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
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/multierr"

	"github.com/streamnative/kvshard/topology"
)

var (
	ErrInvalidOptionPolicy       = errors.New("Policy cannot be nil")
	ErrInvalidOptionFatalHandler = errors.New("FatalHandler cannot be nil")
)

type clientOptions struct {
	meterProvider metric.MeterProvider
	policy        *Policy
	fatalHandler  topology.FatalHandler
}

// ClientOption is an interface for applying client options.
type ClientOption interface {
	apply(option clientOptions) (clientOptions, error)
}

func newClientOptions(opts ...ClientOption) (clientOptions, error) {
	options := clientOptions{
		meterProvider: noop.NewMeterProvider(),
		policy:        DefaultPolicy(),
		fatalHandler:  topology.ExitOnFatal,
	}
	var errs error
	var err error
	for _, o := range opts {
		options, err = o.apply(options)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return options, errs
}

type clientOptionFunc func(clientOptions) (clientOptions, error)

func (f clientOptionFunc) apply(c clientOptions) (clientOptions, error) {
	return f(c)
}

// WithMeterProvider sets the meter provider of the client metrics. Metrics
// are disabled by default.
func WithMeterProvider(meterProvider metric.MeterProvider) ClientOption {
	return clientOptionFunc(func(options clientOptions) (clientOptions, error) {
		if meterProvider == nil {
			options.meterProvider = noop.NewMeterProvider()
		} else {
			options.meterProvider = meterProvider
		}
		return options, nil
	})
}

func WithGlobalMeterProvider() ClientOption {
	return clientOptionFunc(func(options clientOptions) (clientOptions, error) {
		options.meterProvider = otel.GetMeterProvider()
		return options, nil
	})
}

// WithPolicy replaces the default command classification.
func WithPolicy(policy *Policy) ClientOption {
	return clientOptionFunc(func(options clientOptions) (clientOptions, error) {
		if policy == nil {
			return options, ErrInvalidOptionPolicy
		}
		options.policy = policy
		return options, nil
	})
}

// WithFatalHandler sets what happens when the topology subscription is lost
// for good. The process exits by default.
func WithFatalHandler(handler topology.FatalHandler) ClientOption {
	return clientOptionFunc(func(options clientOptions) (clientOptions, error) {
		if handler == nil {
			return options, ErrInvalidOptionFatalHandler
		}
		options.fatalHandler = handler
		return options, nil
	})
}
