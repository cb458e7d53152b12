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
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/streamnative/kvshard/common/metrics"
)

const (
	resultSuccess   = "success"
	resultFailure   = "failure"
	resultExhausted = "exhausted"
	resultRefused   = "refused"
)

type timer struct {
	sum   metric.Float64Counter
	count metric.Int64Counter
}

func newTimer(meter metric.Meter, name string) timer {
	return timer{
		sum:   newMillisCounter(meter, name),
		count: newCounter(meter, name+"_count", metrics.Dimensionless),
	}
}

func (t timer) Record(ctx context.Context, d time.Duration, attrs metric.MeasurementOption) {
	t.sum.Add(ctx, float64(d)/float64(time.Millisecond), attrs)
	t.count.Add(ctx, 1, attrs)
}

type clientMetrics struct {
	sinceFunc func(time.Time) time.Duration

	commandTime timer
	retries     metric.Int64Counter
	rebuilds    metric.Int64Counter

	version atomic.Int64
	nodes   atomic.Int64
}

func newClientMetrics(provider metric.MeterProvider) *clientMetrics {
	meter := provider.Meter("kvshard_client")
	m := &clientMetrics{
		sinceFunc:   time.Since,
		commandTime: newTimer(meter, "kvshard_client_command"),
		retries:     newCounter(meter, "kvshard_client_command_retries", metrics.Dimensionless),
		rebuilds:    newCounter(meter, "kvshard_client_topology_rebuilds", metrics.Dimensionless),
	}

	_, err := meter.Int64ObservableGauge(
		"kvshard_client_topology_version",
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.version.Load())
			return nil
		}),
	)
	fatalOnErr(err, "kvshard_client_topology_version")

	_, err = meter.Int64ObservableGauge(
		"kvshard_client_topology_nodes",
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.nodes.Load())
			return nil
		}),
	)
	fatalOnErr(err, "kvshard_client_topology_nodes")
	return m
}

func (m *clientMetrics) recordCommand(command string, start time.Time, result string) {
	m.commandTime.Record(context.Background(), m.sinceFunc(start), commandAttrs(command, result))
}

func (m *clientMetrics) recordRetry(command string) {
	m.retries.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
}

func (m *clientMetrics) recordRebuild(err error) {
	m.rebuilds.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result(err))))
}

func (m *clientMetrics) recordTopology(version int64, nodes int) {
	m.version.Store(version)
	m.nodes.Store(int64(nodes))
}

func newMillisCounter(meter metric.Meter, name string) metric.Float64Counter {
	counter, err := meter.Float64Counter(name, metric.WithUnit(string(metrics.Milliseconds)))
	fatalOnErr(err, name)
	return counter
}

func newCounter(meter metric.Meter, name string, unit metrics.Unit) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithUnit(string(unit)))
	fatalOnErr(err, name)
	return counter
}

func fatalOnErr(err error, name string) {
	if err != nil {
		slog.Error(
			"Failed to create metric",
			slog.String("metric-name", name),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}

func commandAttrs(command string, result string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("result", result),
	)
}

func result(err error) string {
	if err == nil {
		return resultSuccess
	}
	return resultFailure
}
