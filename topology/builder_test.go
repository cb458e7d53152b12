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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/coordination"
)

func leaf(name, data string) *coordination.TreeNode {
	return &coordination.TreeNode{Name: name, Kind: coordination.KindLeaf, Data: []byte(data)}
}

func dir(name string, children ...*coordination.TreeNode) *coordination.TreeNode {
	return &coordination.TreeNode{Name: name, Kind: coordination.KindDirectory, Children: children}
}

func testBuilder() *SnapshotBuilder {
	conf := config.NewClusterConfig()
	conf.Timeout = 2 * time.Second
	conf.Password = "secret"
	return NewSnapshotBuilder(conf)
}

func TestBuildKeepsShardOrder(t *testing.T) {
	tree := dir("orders",
		dir("shard-2", leaf("10.0.0.3:7000", "M"), leaf("10.0.0.13:7000", "S")),
		dir("shard-0", leaf("10.0.0.11:7000", "S"), leaf("10.0.0.1:7000", "M")),
		dir("shard-1", leaf("10.0.0.2:7000", "M\n")),
	)

	snapshot, warnings := testBuilder().Build(tree)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"10.0.0.3:7000", "10.0.0.1:7000", "10.0.0.2:7000"}, snapshot.Addresses())
	for _, n := range snapshot.Nodes {
		assert.Equal(t, 2*time.Second, n.Timeout)
		assert.Equal(t, "secret", n.Password)
	}
	assert.EqualValues(t, 0, snapshot.Version)
}

func TestBuildSkipsMalformedShards(t *testing.T) {
	tree := dir("orders",
		dir("no-master", leaf("10.0.0.1:7000", "S")),
		dir("two-masters", leaf("10.0.0.2:7000", "M"), leaf("10.0.0.3:7000", "M")),
		dir("bad-address", leaf("not-an-address", "M")),
		leaf("stray-leaf", "M"),
		dir("nested", dir("10.0.0.4:7000", leaf("x", "M")), leaf("10.0.0.5:7000", "M")),
		dir("empty"),
		dir("good", leaf("10.0.0.6:7000", "M")),
	)

	snapshot, warnings := testBuilder().Build(tree)
	assert.Equal(t, []string{"10.0.0.5:7000", "10.0.0.6:7000"}, snapshot.Addresses())

	require.Len(t, warnings, 6)
	for _, w := range warnings[:2] {
		assert.ErrorIs(t, w, ErrMalformedShard)
	}
	assert.ErrorIs(t, warnings[2], ErrInvalidAddress)
}

func TestBuildCustomMarker(t *testing.T) {
	conf := config.NewClusterConfig()
	conf.MasterMarker = "primary"
	b := NewSnapshotBuilder(conf)

	snapshot, warnings := b.Build(dir("orders",
		dir("s0", leaf("10.0.0.1:7000", "M"), leaf("10.0.0.2:7000", "primary")),
	))
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"10.0.0.2:7000"}, snapshot.Addresses())
}

func TestBuildDegenerateTrees(t *testing.T) {
	snapshot, warnings := testBuilder().Build(nil)
	assert.True(t, snapshot.IsEmpty())
	assert.Empty(t, warnings)

	snapshot, warnings = testBuilder().Build(leaf("orders", "M"))
	assert.True(t, snapshot.IsEmpty())
	assert.Len(t, warnings, 1)

	snapshot, warnings = testBuilder().Build(dir("orders"))
	assert.True(t, snapshot.IsEmpty())
	assert.Empty(t, warnings)
}
