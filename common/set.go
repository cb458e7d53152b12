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
	"slices"

	"golang.org/x/exp/constraints"
)

// Set is an unordered collection of distinct values. It is not safe for
// concurrent modification.
type Set[T constraints.Ordered] interface {
	Add(t ...T)
	Contains(t T) bool
	Count() int
	IsEmpty() bool
	Sorted() []T
	Intersection(other Set[T]) Set[T]
}

func NewSet[T constraints.Ordered](items ...T) Set[T] {
	s := &set[T]{items: make(map[T]struct{}, len(items))}
	s.Add(items...)
	return s
}

type set[T constraints.Ordered] struct {
	items map[T]struct{}
}

func (s *set[T]) Add(t ...T) {
	for _, x := range t {
		s.items[x] = struct{}{}
	}
}

func (s *set[T]) Contains(t T) bool {
	_, found := s.items[t]
	return found
}

func (s *set[T]) Count() int {
	return len(s.items)
}

func (s *set[T]) IsEmpty() bool {
	return s.Count() == 0
}

// Intersection returns a new set with the values present in both sets.
func (s *set[T]) Intersection(other Set[T]) Set[T] {
	res := NewSet[T]()
	for k := range s.items {
		if other.Contains(k) {
			res.Add(k)
		}
	}
	return res
}

func (s *set[T]) Sorted() []T {
	r := make([]T, 0, len(s.items))
	for k := range s.items {
		r = append(r, k)
	}
	slices.Sort(r)
	return r
}
