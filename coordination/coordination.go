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
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNodeNotFound     = errors.New("coordination node not found")
	ErrNotDirectory     = errors.New("coordination node is not a directory")
	ErrSubscriptionLost = errors.New("coordination subscription lost")
	ErrProviderClosed   = errors.New("coordination provider closed")
)

type Kind int

const (
	KindLeaf Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "leaf"
}

// TreeNode is one node of a coordination subtree. Children keep the order in
// which the coordination service reported them.
type TreeNode struct {
	Name     string
	Kind     Kind
	Data     []byte
	Children []*TreeNode
}

func (n *TreeNode) Child(name string) *TreeNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Event signals that something changed below the watched path. Receivers
// re-read the subtree rather than relying on the event content. A non-nil
// Err means the subscription is gone and the channel is closed right after.
type Event struct {
	Path string
	Data []byte
	Err  error
}

type Reader interface {
	// ReadTree returns the subtree rooted at path.
	ReadTree(ctx context.Context, path string) (*TreeNode, error)

	// Watch delivers an event for every change below path, until the context
	// is done or the subscription is lost.
	Watch(ctx context.Context, path string) (<-chan Event, error)
}

type Writer interface {
	// Put creates or updates the node at path, creating missing parents.
	Put(ctx context.Context, path string, data []byte) error

	// Delete removes the node at path together with its children.
	Delete(ctx context.Context, path string) error
}

type Provider interface {
	io.Closer
	Reader
	Writer
}

func splitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func joinPath(segments []string) string {
	return strings.Join(segments, "/")
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// isUnder reports whether p is base or one of its descendants.
func isUnder(p, base string) bool {
	p, base = cleanPath(p), cleanPath(base)
	if base == "/" || p == base {
		return true
	}
	return strings.HasPrefix(p, base+"/")
}

// notify performs a non-blocking send. A pending event already tells the
// receiver to re-read, so a full channel can absorb further changes.
func notify(ch chan Event, e Event) {
	select {
	case ch <- e:
	default:
	}
}
