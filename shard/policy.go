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

package shard

import (
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/streamnative/kvshard/common"
)

type Class int

const (
	// ClassSingle commands go to the shard chosen by the caller.
	ClassSingle Class = iota
	// ClassMultiKey commands may carry several keys under one routing decision.
	ClassMultiKey
	// ClassMultiKeyValue commands carry key/value pairs, routed pair by pair.
	ClassMultiKeyValue
	// ClassRefused commands have no meaning across shards.
	ClassRefused
)

func (c Class) String() string {
	switch c {
	case ClassSingle:
		return "single"
	case ClassMultiKey:
		return "multi-key"
	case ClassMultiKeyValue:
		return "multi-key-value"
	case ClassRefused:
		return "refused"
	}
	return "unknown"
}

var (
	defaultMultiKey = []string{
		"del", "exists", "mget", "unlink", "touch", "watch",
	}
	defaultMultiKeyValue = []string{
		"mset", "msetnx",
	}
	defaultRefused = []string{
		"rename", "renamenx", "copy", "move",
		"rpoplpush", "brpoplpush", "lmove", "blmove", "blpop", "brpop", "blmpop", "lmpop",
		"smove", "sinter", "sinterstore", "sintercard", "sunion", "sunionstore", "sdiff", "sdiffstore",
		"bzpopmin", "bzpopmax", "bzmpop", "zmpop",
		"zunionstore", "zinterstore", "zdiffstore", "zrangestore", "zunion", "zinter", "zdiff",
		"bitop", "pfmerge",
		"multi", "exec", "discard", "select", "swapdb", "flushall", "flushdb",
		"subscribe", "psubscribe", "ssubscribe", "monitor",
	}
	// Commands that are refused only when they write their result to a key.
	refusedWithStore = map[string]storeOptions{
		"sort": {
			first:    1,
			store:    []string{"store"},
			operands: map[string]int{"by": 1, "get": 1, "limit": 2},
		},
		"georadius": {
			first:    5,
			store:    []string{"store", "storedist"},
			operands: map[string]int{"count": 1},
		},
		"georadiusbymember": {
			first:    4,
			store:    []string{"store", "storedist"},
			operands: map[string]int{"count": 1},
		},
	}
)

// storeOptions locates the store keywords of a command among its options.
// Options start at first, and an option may be followed by operands that
// are never keywords, such as the pattern of sort BY.
type storeOptions struct {
	first    int
	store    []string
	operands map[string]int
}

func (o storeOptions) writesKey(cmd Command) bool {
	for i := o.first; i < len(cmd.Args); i++ {
		opt, ok := cmd.option(i)
		if !ok {
			continue
		}
		if slices.Contains(o.store, opt) {
			return true
		}
		i += o.operands[opt]
	}
	return false
}

// Policy classifies commands. It is not modified after creation and is
// safe for concurrent use.
type Policy struct {
	multiKey      common.Set[string]
	multiKeyValue common.Set[string]
	refused       common.Set[string]
}

// NewPolicy fails when a command appears in more than one set.
func NewPolicy(multiKey, multiKeyValue, refused []string) (*Policy, error) {
	p := &Policy{
		multiKey:      toSet(multiKey),
		multiKeyValue: toSet(multiKeyValue),
		refused:       toSet(refused),
	}
	for _, overlap := range []struct {
		a, b   common.Set[string]
		reason string
	}{
		{p.multiKey, p.multiKeyValue, "both multi-key and multi-key-value"},
		{p.multiKey, p.refused, "both multi-key and refused"},
		{p.multiKeyValue, p.refused, "both multi-key-value and refused"},
	} {
		if both := overlap.a.Intersection(overlap.b); !both.IsEmpty() {
			return nil, errors.Wrapf(ErrInvalidPolicy, "%v are %s", both.Sorted(), overlap.reason)
		}
	}
	return p, nil
}

func DefaultPolicy() *Policy {
	p, err := NewPolicy(defaultMultiKey, defaultMultiKeyValue, defaultRefused)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Policy) Classify(cmd Command) Class {
	name := strings.ToLower(cmd.Name)
	if p.refused.Contains(name) {
		return ClassRefused
	}
	if options, ok := refusedWithStore[name]; ok && options.writesKey(cmd) {
		return ClassRefused
	}
	if p.multiKeyValue.Contains(name) {
		return ClassMultiKeyValue
	}
	if p.multiKey.Contains(name) {
		return ClassMultiKey
	}
	return ClassSingle
}

func (p *Policy) IsRefused(cmd Command) bool {
	return p.Classify(cmd) == ClassRefused
}

func toSet(names []string) common.Set[string] {
	set := common.NewSet[string]()
	for _, n := range names {
		set.Add(strings.ToLower(n))
	}
	return set
}
