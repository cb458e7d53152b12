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
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/streamnative/kvshard/topology"
)

// ActiveTopology holds the pool currently used for routing. Readers take a
// reference on the pool, so a pool swapped out in the meantime stays open
// until they release it.
type ActiveTopology struct {
	current atomic.Pointer[Pool]
	closed  atomic.Bool
	log     *slog.Logger
}

func NewActiveTopology() *ActiveTopology {
	return &ActiveTopology{
		log: slog.With(
			slog.String("component", "active-topology"),
		),
	}
}

// Acquire returns the current pool with a reference taken. The caller must
// Release it.
func (a *ActiveTopology) Acquire() (*Pool, error) {
	for {
		p := a.current.Load()
		if p == nil {
			if a.closed.Load() {
				return nil, ErrTopologyClosed
			}
			return nil, ErrNoTopology
		}
		if p.acquire() {
			return p, nil
		}
		// Retired between the load and the acquire, a newer pool is in place
	}
}

// Swap publishes the pool and retires the previous one. Empty and older
// pools are rejected, and the current pool keeps serving. On error the
// caller still owns the pool.
func (a *ActiveTopology) Swap(p *Pool) error {
	if p.Len() == 0 {
		return ErrEmptyTopology
	}

	for {
		if a.closed.Load() {
			return ErrTopologyClosed
		}
		old := a.current.Load()
		if old != nil && old.Version() >= p.Version() {
			return errors.Wrapf(ErrStaleTopology, "version %d, current %d", p.Version(), old.Version())
		}
		if !a.current.CompareAndSwap(old, p) {
			continue
		}

		if old != nil {
			a.retire(old)
		}
		// Closed concurrently: take the pool back, unless Close retired it
		if a.closed.Load() && a.current.CompareAndSwap(p, nil) {
			return ErrTopologyClosed
		}
		return nil
	}
}

// Snapshot returns the snapshot of the current pool.
func (a *ActiveTopology) Snapshot() topology.Snapshot {
	if p := a.current.Load(); p != nil {
		return p.Snapshot()
	}
	return topology.Snapshot{}
}

func (a *ActiveTopology) Close() error {
	a.closed.Store(true)
	if p := a.current.Swap(nil); p != nil {
		return p.Release()
	}
	return nil
}

func (a *ActiveTopology) retire(p *Pool) {
	if err := p.Release(); err != nil {
		a.log.Warn(
			"Failed to close retired pool",
			slog.Int64("version", p.Version()),
			slog.Any("error", err),
		)
	}
}
