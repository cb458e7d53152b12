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
	"sync"

	"github.com/pkg/errors"
)

const watchBufferSize = 16

type memoryWatch struct {
	path string
	ch   chan Event
}

// MemoryProvider keeps the coordination tree in process. It is meant for
// tests and single process setups.
type MemoryProvider struct {
	sync.Mutex
	root    *TreeNode
	watches map[int64]*memoryWatch
	nextID  int64
	closed  bool
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		root:    &TreeNode{Kind: KindDirectory},
		watches: make(map[int64]*memoryWatch),
	}
}

func (m *MemoryProvider) ReadTree(_ context.Context, p string) (*TreeNode, error) {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return nil, ErrProviderClosed
	}
	n := m.lookup(p)
	if n == nil {
		return nil, errors.Wrapf(ErrNodeNotFound, "%s", p)
	}
	return copyTree(n), nil
}

func (m *MemoryProvider) Watch(ctx context.Context, p string) (<-chan Event, error) {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return nil, ErrProviderClosed
	}
	id := m.nextID
	m.nextID++
	w := &memoryWatch{
		path: cleanPath(p),
		ch:   make(chan Event, watchBufferSize),
	}
	m.watches[id] = w

	go func() {
		<-ctx.Done()
		m.Lock()
		defer m.Unlock()
		if _, ok := m.watches[id]; ok {
			delete(m.watches, id)
			close(w.ch)
		}
	}()
	return w.ch, nil
}

func (m *MemoryProvider) Put(_ context.Context, p string, data []byte) error {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return ErrProviderClosed
	}
	segments := splitPath(p)
	if len(segments) == 0 {
		return errors.Wrap(ErrNotDirectory, "cannot write the root node")
	}

	n := m.root
	for _, segment := range segments {
		child := n.Child(segment)
		if child == nil {
			child = &TreeNode{Name: segment, Kind: KindLeaf}
			n.Children = append(n.Children, child)
		}
		n.Kind = KindDirectory
		n = child
	}
	n.Data = append([]byte(nil), data...)

	m.notifyLocked(p, data)
	return nil
}

func (m *MemoryProvider) Delete(_ context.Context, p string) error {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return ErrProviderClosed
	}
	segments := splitPath(p)
	if len(segments) == 0 {
		return errors.Wrap(ErrNotDirectory, "cannot delete the root node")
	}
	parent := m.lookup("/" + joinPath(segments[:len(segments)-1]))
	if parent == nil {
		return errors.Wrapf(ErrNodeNotFound, "%s", p)
	}
	name := segments[len(segments)-1]
	for i, c := range parent.Children {
		if c.Name == name {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			m.notifyLocked(p, nil)
			return nil
		}
	}
	return errors.Wrapf(ErrNodeNotFound, "%s", p)
}

// Disconnect terminates every active watch with the given error, the way a
// coordination session expiry does.
func (m *MemoryProvider) Disconnect(err error) {
	m.Lock()
	defer m.Unlock()

	for id, w := range m.watches {
		// Make room so the loss is never dropped
		select {
		case <-w.ch:
		default:
		}
		w.ch <- Event{Path: w.path, Err: errors.Wrap(ErrSubscriptionLost, err.Error())}
		close(w.ch)
		delete(m.watches, id)
	}
}

func (m *MemoryProvider) Close() error {
	m.Lock()
	defer m.Unlock()

	m.closed = true
	for id, w := range m.watches {
		close(w.ch)
		delete(m.watches, id)
	}
	return nil
}

func (m *MemoryProvider) lookup(p string) *TreeNode {
	n := m.root
	for _, segment := range splitPath(p) {
		if n = n.Child(segment); n == nil {
			return nil
		}
	}
	return n
}

// notifyLocked wakes the watches on any ancestor of p, and on any
// descendant when a whole subtree goes away.
func (m *MemoryProvider) notifyLocked(p string, data []byte) {
	for _, w := range m.watches {
		if isUnder(p, w.path) || isUnder(w.path, p) {
			notify(w.ch, Event{Path: cleanPath(p), Data: data})
		}
	}
}

func copyTree(n *TreeNode) *TreeNode {
	c := &TreeNode{
		Name: n.Name,
		Kind: n.Kind,
		Data: append([]byte(nil), n.Data...),
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, copyTree(child))
	}
	return c
}
