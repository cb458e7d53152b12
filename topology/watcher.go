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

package topology

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/streamnative/kvshard/common"
	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/coordination"
)

var (
	ErrEmptyTopology    = errors.New("topology has no masters")
	ErrSubscriptionLost = errors.New("topology subscription lost")
)

// Listener receives every new snapshot. Snapshots are delivered one at a
// time, with increasing versions.
type Listener interface {
	OnSnapshot(ctx context.Context, snapshot Snapshot) error
}

type ListenerFunc func(ctx context.Context, snapshot Snapshot) error

func (f ListenerFunc) OnSnapshot(ctx context.Context, snapshot Snapshot) error {
	return f(ctx, snapshot)
}

// FatalHandler is invoked when the subscription cannot be recovered. The
// router would otherwise keep serving a stale topology.
type FatalHandler func(err error)

func ExitOnFatal(err error) {
	slog.Error(
		"Topology subscription lost, exiting",
		slog.Any("error", err),
	)
	os.Exit(1)
}

type Watcher struct {
	io.Closer

	provider         coordination.Reader
	basePath         string
	builder          *SnapshotBuilder
	listener         Listener
	limiter          *rate.Limiter
	maxReconnectTime time.Duration
	fatal            FatalHandler

	// trigger holds at most one pending rebuild request
	trigger chan struct{}
	current atomic.Pointer[Snapshot]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger
}

func NewWatcher(provider coordination.Reader, conf config.ClusterConfig, listener Listener, fatal FatalHandler) *Watcher {
	if fatal == nil {
		fatal = ExitOnFatal
	}

	limit := rate.Inf
	if conf.Rebuild.RateLimit > 0 {
		limit = rate.Limit(conf.Rebuild.RateLimit)
	}
	burst := conf.Rebuild.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Watcher{
		provider:         provider,
		basePath:         conf.BasePath(),
		builder:          NewSnapshotBuilder(conf),
		listener:         listener,
		limiter:          rate.NewLimiter(limit, burst),
		maxReconnectTime: conf.Coordinator.MaxReconnectTime,
		fatal:            fatal,
		trigger:          make(chan struct{}, 1),
		log: slog.With(
			slog.String("component", "topology-watcher"),
			slog.String("base-path", conf.BasePath()),
		),
	}
}

// Start publishes the initial snapshot synchronously, then keeps following
// the coordination subtree in the background. An empty initial topology is
// an error, since routing would be undefined.
func (w *Watcher) Start(ctx context.Context) error {
	snapshot, err := w.load(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read initial topology")
	}
	if snapshot.IsEmpty() {
		return errors.Wrapf(ErrEmptyTopology, "no valid shard under %s", w.basePath)
	}

	snapshot.Version = 1
	if err := w.listener.OnSnapshot(ctx, snapshot.Clone()); err != nil {
		return errors.Wrap(err, "failed to publish initial topology")
	}
	w.current.Store(&snapshot)
	w.log.Info(
		"Initial topology loaded",
		slog.Int64("version", snapshot.Version),
		slog.Any("nodes", snapshot.Addresses()),
	)

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.wg.Add(2)
	go common.DoWithLabels(
		w.ctx,
		map[string]string{
			"kvshard":   "topology-watch",
			"base-path": w.basePath,
		},
		func() {
			defer w.wg.Done()
			w.watchWithRecovery()
		},
	)
	go common.DoWithLabels(
		w.ctx,
		map[string]string{
			"kvshard":   "topology-rebuild",
			"base-path": w.basePath,
		},
		func() {
			defer w.wg.Done()
			w.rebuildLoop()
		},
	)
	return nil
}

// Current returns the last published snapshot.
func (w *Watcher) Current() Snapshot {
	if s := w.current.Load(); s != nil {
		return s.Clone()
	}
	return Snapshot{}
}

func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) isClosed() bool {
	return w.ctx.Err() != nil
}

func (w *Watcher) watchWithRecovery() {
	backOff := common.NewBackOff(w.ctx, w.maxReconnectTime)
	err := backoff.RetryNotify(
		func() error {
			err := w.watch(backOff)
			if w.isClosed() {
				w.log.Debug("Closed", slog.Any("error", err))
				return nil
			}
			return err
		},
		backOff,
		func(err error, duration time.Duration) {
			w.log.Warn(
				"Topology subscription failed, retrying later",
				slog.Any("error", err),
				slog.Duration("retry-after", duration),
			)
		},
	)
	if err != nil && !w.isClosed() {
		w.fatal(errors.Wrap(ErrSubscriptionLost, err.Error()))
	}
}

// watch subscribes and consumes events until the subscription breaks. It
// always returns an error, unless the watcher is closed.
func (w *Watcher) watch(backOff backoff.BackOff) error {
	events, err := w.provider.Watch(w.ctx, w.basePath)
	if err != nil {
		return err
	}

	// Changes may have happened while unsubscribed
	backOff.Reset()
	w.requestRebuild()

	for {
		select {
		case <-w.ctx.Done():
			return nil

		case e, ok := <-events:
			if !ok {
				return errors.New("watch channel closed")
			}
			if e.Err != nil {
				return e.Err
			}
			w.log.Debug("Topology change notification", slog.String("path", e.Path))
			w.requestRebuild()
		}
	}
}

func (w *Watcher) requestRebuild() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// rebuildLoop runs rebuilds one at a time, away from the goroutine that
// receives the coordination events.
func (w *Watcher) rebuildLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.trigger:
			if err := w.limiter.Wait(w.ctx); err != nil {
				return
			}
			w.rebuild()
		}
	}
}

func (w *Watcher) rebuild() {
	snapshot, err := w.load(w.ctx)
	if err != nil {
		w.log.Warn(
			"Failed to read topology, keeping the current one",
			slog.Any("error", err),
		)
		return
	}

	if snapshot.IsEmpty() {
		w.log.Warn("Topology has no valid shard, keeping the current one")
		return
	}

	current := w.Current()
	if current.SameNodes(snapshot) {
		w.log.Debug("Topology unchanged", slog.Int64("version", current.Version))
		return
	}

	snapshot.Version = current.Version + 1
	if err := w.listener.OnSnapshot(w.ctx, snapshot.Clone()); err != nil {
		w.log.Warn(
			"Failed to apply topology, keeping the current one",
			slog.Int64("version", snapshot.Version),
			slog.Any("error", err),
		)
		return
	}

	w.current.Store(&snapshot)
	w.log.Info(
		"Topology changed",
		slog.Int64("version", snapshot.Version),
		slog.Any("nodes", snapshot.Addresses()),
	)
}

func (w *Watcher) load(ctx context.Context) (Snapshot, error) {
	tree, err := w.provider.ReadTree(ctx, w.basePath)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot, _ := w.builder.Build(tree)
	return snapshot, nil
}
