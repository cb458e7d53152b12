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
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidAddress = errors.New("invalid node address")

// Node describes one key-value node endpoint. Two nodes are the same
// endpoint when host and port match.
type Node struct {
	Host     string
	Port     int
	Timeout  time.Duration
	Password string
}

// ParseAddress splits a "host:port" coordination node name.
func ParseAddress(address string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(address))
	if err != nil {
		return "", 0, errors.Wrapf(ErrInvalidAddress, "%q: %v", address, err)
	}
	if host == "" {
		return "", 0, errors.Wrapf(ErrInvalidAddress, "%q: missing host", address)
	}
	port, err = strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, errors.Wrapf(ErrInvalidAddress, "%q: invalid port", address)
	}
	return host, port, nil
}

func (n Node) Address() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

func (n Node) Equal(other Node) bool {
	return n.Host == other.Host && n.Port == other.Port
}

func (n Node) String() string {
	return n.Address()
}

// LogValue keeps the password out of the logs.
func (n Node) LogValue() slog.Value {
	return slog.StringValue(n.Address())
}

// Snapshot is the ordered list of shard masters at a given version. The
// position of a node is its shard index.
type Snapshot struct {
	Version int64
	Nodes   []Node
}

// Clone returns a copy that shares no node list with s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Version: s.Version, Nodes: slices.Clone(s.Nodes)}
}

func (s Snapshot) Len() int {
	return len(s.Nodes)
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Nodes) == 0
}

// SameNodes compares the ordered endpoints, ignoring the version.
func (s Snapshot) SameNodes(other Snapshot) bool {
	if len(s.Nodes) != len(other.Nodes) {
		return false
	}
	for i := range s.Nodes {
		if !s.Nodes[i].Equal(other.Nodes[i]) {
			return false
		}
	}
	return true
}

func (s Snapshot) Addresses() []string {
	addresses := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		addresses[i] = n.Address()
	}
	return addresses
}
