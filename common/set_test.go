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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet[string]()
	assert.True(t, s.IsEmpty())

	s.Add("mset", "del", "mset")
	assert.Equal(t, 2, s.Count())
	assert.True(t, s.Contains("del"))
	assert.False(t, s.Contains("get"))
	assert.Equal(t, []string{"del", "mset"}, s.Sorted())
}

func TestSetIntersection(t *testing.T) {
	a := NewSet(1, 2, 3, 4)
	b := NewSet(3, 4, 5)

	assert.Equal(t, []int{3, 4}, a.Intersection(b).Sorted())
	assert.Equal(t, []int{3, 4}, b.Intersection(a).Sorted())
	assert.True(t, a.Intersection(NewSet[int]()).IsEmpty())
}
