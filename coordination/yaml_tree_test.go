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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topologyDocument = `
redis:
  orders:
    shard-b:
      "10.0.0.2:7000": M
    shard-a:
      "10.0.0.1:7000": M
      "10.0.0.3:7000": S
      "10.0.0.4:7000":
  payments: {}
`

func TestReadYamlTree(t *testing.T) {
	tree, err := readYamlTree([]byte(topologyDocument), "/redis/orders")
	require.NoError(t, err)

	assert.Equal(t, "orders", tree.Name)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "shard-b", tree.Children[0].Name)
	assert.Equal(t, "shard-a", tree.Children[1].Name)

	shard := tree.Children[1]
	require.Len(t, shard.Children, 3)
	assert.Equal(t, "10.0.0.1:7000", shard.Children[0].Name)
	assert.Equal(t, []byte("M"), shard.Children[0].Data)
	assert.Equal(t, []byte("S"), shard.Children[1].Data)
	assert.Equal(t, KindLeaf, shard.Children[2].Kind)
	assert.Empty(t, shard.Children[2].Data)

	payments, err := readYamlTree([]byte(topologyDocument), "/redis/payments")
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, payments.Kind)
	assert.Empty(t, payments.Children)

	root, err := readYamlTree([]byte(topologyDocument), "/")
	require.NoError(t, err)
	assert.Equal(t, "", root.Name)
	require.Len(t, root.Children, 1)

	_, err = readYamlTree([]byte(topologyDocument), "/redis/orders/shard-c")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = readYamlTree([]byte(topologyDocument), "/redis/orders/shard-b/10.0.0.2:7000/x")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = readYamlTree([]byte(""), "/redis")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = readYamlTree([]byte("- a\n- b\n"), "/redis")
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestPutDeleteYamlNode(t *testing.T) {
	root, err := parseDocument([]byte(topologyDocument))
	require.NoError(t, err)

	require.NoError(t, putYamlNode(root, "/redis/orders/shard-c/10.0.0.5:7000", []byte("M")))
	assert.ErrorIs(t, putYamlNode(root, "/redis/orders/shard-b/10.0.0.2:7000/x", []byte("M")), ErrNotDirectory)
	assert.ErrorIs(t, putYamlNode(root, "/redis/orders", []byte("M")), ErrNotDirectory)
	assert.ErrorIs(t, putYamlNode(root, "/", []byte("M")), ErrNotDirectory)

	require.NoError(t, deleteYamlNode(root, "/redis/orders/shard-a/10.0.0.3:7000"))
	assert.ErrorIs(t, deleteYamlNode(root, "/redis/orders/shard-a/10.0.0.3:7000"), ErrNodeNotFound)
	assert.ErrorIs(t, deleteYamlNode(root, "/redis/missing/node"), ErrNodeNotFound)

	content, err := marshalDocument(root)
	require.NoError(t, err)

	tree, err := readYamlTree(content, "/redis/orders")
	require.NoError(t, err)
	require.Len(t, tree.Children, 3)
	assert.Equal(t, "shard-b", tree.Children[0].Name)
	assert.Equal(t, "shard-a", tree.Children[1].Name)
	assert.Equal(t, "shard-c", tree.Children[2].Name)
	assert.Len(t, tree.Children[1].Children, 2)
	assert.Equal(t, []byte("M"), tree.Children[2].Children[0].Data)
}
