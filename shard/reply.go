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
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/streamnative/kvshard/kv"
)

// The converters below turn a raw reply into a typed value. A nil reply is
// reported as kv.ErrNil.

func unexpected(reply any) error {
	return errors.Wrapf(ErrUnexpectedReply, "%T", reply)
}

func toString(reply any, err error) (string, error) {
	if err != nil {
		return "", err
	}
	switch v := reply.(type) {
	case nil:
		return "", kv.ErrNil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}
	return "", unexpected(reply)
}

func toInt64(reply any, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	switch v := reply.(type) {
	case nil:
		return 0, kv.ErrNil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, unexpected(reply)
		}
		return n, nil
	}
	return 0, unexpected(reply)
}

func toBool(reply any, err error) (bool, error) {
	n, err := toInt64(reply, err)
	return n == 1, err
}

func toFloat64(reply any, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	switch v := reply.(type) {
	case nil:
		return 0, kv.ErrNil
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, unexpected(reply)
		}
		return f, nil
	}
	return 0, unexpected(reply)
}

// toStatus expects a simple status reply, e.g. OK.
func toStatus(reply any, err error) error {
	_, err = toString(reply, err)
	return err
}

func toSlice(reply any, err error) ([]any, error) {
	if err != nil {
		return nil, err
	}
	switch v := reply.(type) {
	case nil:
		return nil, kv.ErrNil
	case []any:
		return v, nil
	}
	return nil, unexpected(reply)
}

func toStrings(reply any, err error) ([]string, error) {
	list, err := toSlice(reply, err)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(list))
	for i, item := range list {
		if item == nil {
			continue
		}
		if values[i], err = toString(item, nil); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func toBools(reply any, err error) ([]bool, error) {
	list, err := toSlice(reply, err)
	if err != nil {
		return nil, err
	}
	values := make([]bool, len(list))
	for i, item := range list {
		if values[i], err = toBool(item, nil); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func toStringMap(reply any, err error) (map[string]string, error) {
	list, err := toStrings(reply, err)
	if err != nil {
		return nil, err
	}
	if len(list)%2 != 0 {
		return nil, unexpected(reply)
	}
	m := make(map[string]string, len(list)/2)
	for i := 0; i < len(list); i += 2 {
		m[list[i]] = list[i+1]
	}
	return m, nil
}

func toZs(reply any, err error) ([]Z, error) {
	list, err := toStrings(reply, err)
	if err != nil {
		return nil, err
	}
	if len(list)%2 != 0 {
		return nil, unexpected(reply)
	}
	zs := make([]Z, 0, len(list)/2)
	for i := 0; i < len(list); i += 2 {
		score, err := strconv.ParseFloat(list[i+1], 64)
		if err != nil {
			return nil, unexpected(reply)
		}
		zs = append(zs, Z{Member: list[i], Score: score})
	}
	return zs, nil
}

// toTTL keeps the negative markers of the node: -1 for no expiry and -2
// for a missing key.
func toTTL(reply any, err error, unit time.Duration) (time.Duration, error) {
	n, err := toInt64(reply, err)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return time.Duration(n), nil
	}
	return time.Duration(n) * unit, nil
}

func toScan(reply any, err error) ([]string, uint64, error) {
	list, err := toSlice(reply, err)
	if err != nil {
		return nil, 0, err
	}
	if len(list) != 2 {
		return nil, 0, unexpected(reply)
	}
	cursor, err := toString(list[0], nil)
	if err != nil {
		return nil, 0, err
	}
	next, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, 0, unexpected(reply)
	}
	items, err := toStrings(list[1], nil)
	if err != nil {
		return nil, 0, err
	}
	return items, next, nil
}
