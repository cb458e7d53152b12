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

package coordination

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProviderExternalEdit(t *testing.T) {
	file := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(file, []byte(topologyDocument), 0o600))

	p, err := NewFileProvider(file)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := p.Watch(ctx, "/redis/orders")
	require.NoError(t, err)

	// Edits done by other tools are observed as well
	require.NoError(t, os.WriteFile(file, []byte(`
redis:
  orders:
    shard-a:
      "10.0.0.1:7000": M
`), 0o600))
	e := waitEvent(t, events)
	assert.NoError(t, e.Err)

	tree, err := p.ReadTree(ctx, "/redis/orders")
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "shard-a", tree.Children[0].Name)
}

func TestFileProviderInvalidDocument(t *testing.T) {
	file := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(file, []byte("redis: [unbalanced"), 0o600))

	p, err := NewFileProvider(file)
	require.NoError(t, err)

	_, err = p.ReadTree(context.Background(), "/redis")
	assert.Error(t, err)

	// Writes never clobber a document that cannot be parsed
	assert.Error(t, p.Put(context.Background(), "/redis/orders/shard-0/10.0.0.1:7000", []byte("M")))
	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "redis: [unbalanced", string(content))
}
