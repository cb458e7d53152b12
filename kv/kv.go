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

package kv

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/streamnative/kvshard/topology"
)

var (
	// ErrNil is the nil reply of a key-value node, e.g. a missing key.
	ErrNil = redis.Nil

	ErrNodeUnavailable = errors.New("node unavailable")
)

// Connection is a live link to one key-value node.
type Connection interface {
	io.Closer

	// Do sends one command and returns its raw reply.
	Do(ctx context.Context, args ...any) (any, error)

	Node() topology.Node
}

type Dialer interface {
	Dial(ctx context.Context, node topology.Node) (Connection, error)
}

// IsServerError reports whether err is an error reply from the node, as
// opposed to a transport failure. Error replies are deterministic.
func IsServerError(err error) bool {
	if err == nil || errors.Is(err, ErrNil) {
		return false
	}
	var redisErr redis.Error
	return errors.As(err, &redisErr)
}
