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

import "github.com/pkg/errors"

var (
	ErrCommandRefused      = errors.New("command refused on a sharded client")
	ErrNilShardingFunction = errors.New("sharding function must not be nil")
	ErrEmptyTopology       = errors.New("topology has no shards")
	ErrNoTopology          = errors.New("no topology published yet")
	ErrStaleTopology       = errors.New("topology version is not newer than the current one")
	ErrTopologyClosed      = errors.New("topology closed")
	ErrRetriesExhausted    = errors.New("command failed after all retries")
	ErrPartialFailure      = errors.New("command failed on some shards")
	ErrPoolExhausted       = errors.New("no connection available before timeout")
	ErrInvalidPolicy       = errors.New("invalid command policy")
	ErrEmptyCommand        = errors.New("command name must not be empty")
	ErrInvalidArguments    = errors.New("invalid command arguments")
	ErrUnexpectedReply     = errors.New("unexpected reply type")
)
