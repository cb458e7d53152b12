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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXxh332(t *testing.T) {
	for _, test := range []struct {
		key      string
		expected uint32
	}{
		{"foo", 125730186},
		{"bar", 2687685474},
		{"baz", 862947621},
	} {
		t.Run(test.key, func(t *testing.T) {
			hash := Xxh332(test.key)
			assert.Equal(t, test.expected, hash)
		})
	}
}

func TestJavaStringHash(t *testing.T) {
	for _, test := range []struct {
		key      string
		expected int32
	}{
		{"", 0},
		{"a", 97},
		{"foo", 101574},
		{"key1", 3288498},
		{"testKey", -1422475155},
		{"\U0001F600", 1772899},
	} {
		t.Run(test.key, func(t *testing.T) {
			assert.Equal(t, test.expected, JavaStringHash(test.key))
		})
	}
}

func TestHashTag(t *testing.T) {
	assert.Equal(t, "user1000", HashTag("{user1000}.following"))
	assert.Equal(t, "user1000", HashTag("foo{user1000}{bar}"))
	assert.Equal(t, "foo{}{bar}", HashTag("foo{}{bar}"))
	assert.Equal(t, "foo{bar", HashTag("foo{bar"))
	assert.Equal(t, "plain", HashTag("plain"))
}

func TestNewHashFunc(t *testing.T) {
	java, err := NewHashFunc(HashJava, false)
	require.NoError(t, err)
	assert.EqualValues(t, -1422475155, java("testKey"))

	tagged, err := NewHashFunc(HashJava, true)
	require.NoError(t, err)
	assert.Equal(t, java("user"), tagged("{user}.profile"))
	assert.Equal(t, tagged("{user}.profile"), tagged("{user}.sessions"))

	x, err := NewHashFunc(HashXxh3, false)
	require.NoError(t, err)
	assert.EqualValues(t, 125730186, x("foo"))

	c, err := NewHashFunc(HashCrc16, false)
	require.NoError(t, err)
	assert.Equal(t, c("foo"), c("foo"))
	assert.GreaterOrEqual(t, c("foo"), int64(0))
	assert.LessOrEqual(t, c("foo"), int64(math.MaxUint16))

	_, err = NewHashFunc("md5", false)
	assert.ErrorIs(t, err, ErrUnknownHash)
}

func TestShardIndex(t *testing.T) {
	for _, test := range []struct {
		value    int64
		size     int
		expected int
	}{
		{0, 1, 0},
		{7, 2, 1},
		{-7, 2, 1},
		{-1422475155, 2, 1},
		{math.MaxInt64, 3, int(uint64(math.MaxInt64) % 3)},
		{math.MinInt64, 3, int((uint64(math.MaxInt64) + 1) % 3)},
		{math.MinInt32, 7, int(uint64(2147483648) % 7)},
	} {
		assert.Equal(t, test.expected, ShardIndex(test.value, test.size))
	}

	for _, size := range []int{1, 2, 3, 5, 16, 97} {
		for _, key := range []string{"", "a", "testKey", "{tag}x", "\U0001F600"} {
			idx := ShardIndex(int64(JavaStringHash(key)), size)
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, size)
			assert.Equal(t, idx, ShardIndex(int64(JavaStringHash(key)), size))
		}
	}
}
