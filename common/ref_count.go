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
	"io"
	"sync/atomic"
)

// RefCount closes the wrapped value when the last reference is released.
// It starts with one reference, held by the creator.
type RefCount[T io.Closer] struct {
	rc atomic.Int32
	t  T
}

func NewRefCount[T io.Closer](t T) *RefCount[T] {
	r := &RefCount[T]{t: t}
	r.rc.Store(1)
	return r
}

// TryAcquire takes one more reference. It fails once the count has dropped
// to zero, since the value is then already closed.
func (r *RefCount[T]) TryAcquire() bool {
	for {
		count := r.rc.Load()
		if count <= 0 {
			return false
		}
		if r.rc.CompareAndSwap(count, count+1) {
			return true
		}
	}
}

func (r *RefCount[T]) Release() error {
	if count := r.rc.Add(-1); count == 0 {
		return r.t.Close()
	}
	return nil
}

func (r *RefCount[T]) RefCnt() int32 {
	return r.rc.Load()
}

func (r *RefCount[T]) Get() T {
	return r.t
}
