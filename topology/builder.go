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
	"bytes"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/coordination"
)

var ErrMalformedShard = errors.New("malformed shard directory")

// SnapshotBuilder turns the coordination tree below the base path into the
// ordered list of shard masters.
type SnapshotBuilder struct {
	MasterMarker string
	Timeout      time.Duration
	Password     string

	log *slog.Logger
}

func NewSnapshotBuilder(conf config.ClusterConfig) *SnapshotBuilder {
	return &SnapshotBuilder{
		MasterMarker: conf.MasterMarker,
		Timeout:      conf.Timeout,
		Password:     conf.Password,
		log: slog.With(
			slog.String("component", "snapshot-builder"),
		),
	}
}

// Build keeps the shard directories in the order they were provided. Shards
// that do not have exactly one valid master are left out, and the reasons
// are returned as warnings.
func (b *SnapshotBuilder) Build(base *coordination.TreeNode) (Snapshot, []error) {
	var warnings []error
	snapshot := Snapshot{}

	if base == nil {
		return snapshot, nil
	}
	if base.Kind != coordination.KindDirectory {
		return snapshot, b.warn(warnings, errors.Wrapf(ErrMalformedShard, "base %q is not a directory", base.Name))
	}

	marker := []byte(b.MasterMarker)
	for _, shard := range base.Children {
		if shard.Kind != coordination.KindDirectory {
			warnings = b.warn(warnings, errors.Wrapf(ErrMalformedShard, "%q has no nodes", shard.Name))
			continue
		}

		var masters []*coordination.TreeNode
		for _, n := range shard.Children {
			if n.Kind != coordination.KindLeaf {
				warnings = b.warn(warnings, errors.Wrapf(ErrMalformedShard, "%q: unexpected directory %q", shard.Name, n.Name))
				continue
			}
			if bytes.Equal(bytes.TrimSpace(n.Data), marker) {
				masters = append(masters, n)
			}
		}

		if len(masters) != 1 {
			warnings = b.warn(warnings, errors.Wrapf(ErrMalformedShard, "%q has %d masters", shard.Name, len(masters)))
			continue
		}

		host, port, err := ParseAddress(masters[0].Name)
		if err != nil {
			warnings = b.warn(warnings, errors.Wrapf(err, "shard %q", shard.Name))
			continue
		}

		snapshot.Nodes = append(snapshot.Nodes, Node{
			Host:     host,
			Port:     port,
			Timeout:  b.Timeout,
			Password: b.Password,
		})
	}
	return snapshot, warnings
}

func (b *SnapshotBuilder) warn(warnings []error, err error) []error {
	b.log.Warn(
		"Skipping malformed topology entry",
		slog.Any("error", err),
	)
	return append(warnings, err)
}
