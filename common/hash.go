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
	"strings"
	"unicode/utf16"

	"github.com/howeyc/crc16"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

const (
	HashJava  = "java"
	HashXxh3  = "xxh3"
	HashCrc16 = "crc16"
)

var ErrUnknownHash = errors.New("unknown hash function")

// HashFunc maps a routing key to a signed value. Routing takes the absolute
// value modulo the number of shards.
type HashFunc func(key string) int64

// NewHashFunc returns the hash function registered under the given name.
// When hashTags is set, only the `{tag}` section of a key is hashed, if any.
func NewHashFunc(name string, hashTags bool) (HashFunc, error) {
	var f HashFunc
	switch strings.ToLower(name) {
	case HashJava, "":
		f = func(key string) int64 { return int64(JavaStringHash(key)) }
	case HashXxh3:
		f = func(key string) int64 { return int64(Xxh332(key)) }
	case HashCrc16:
		f = func(key string) int64 { return int64(Crc16(key)) }
	default:
		return nil, errors.Wrapf(ErrUnknownHash, "%q", name)
	}

	if !hashTags {
		return f, nil
	}
	return func(key string) int64 {
		return f(HashTag(key))
	}, nil
}

// JavaStringHash computes the same value as java.lang.String#hashCode, so
// keys land on the same shard as clients using that convention.
func JavaStringHash(key string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(key)) {
		h = 31*h + int32(c)
	}
	return h
}

func Xxh332(key string) uint32 {
	return uint32(xxh3.HashString(key))
}

func Crc16(key string) uint16 {
	return crc16.Checksum([]byte(key), crc16.IBMTable)
}

// HashTag returns the part of the key between the first '{' and the
// following '}', when that part is not empty. Otherwise the whole key.
func HashTag(key string) string {
	start := strings.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := strings.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}

// ShardIndex folds a signed value into [0, size). It is safe for the
// minimum integer value, whose absolute value does not fit in an int64.
func ShardIndex(value int64, size int) int {
	var abs uint64
	if value < 0 {
		abs = uint64(-(value + 1)) + 1
	} else {
		abs = uint64(value)
	}
	return int(abs % uint64(size))
}
