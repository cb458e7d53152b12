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

package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

type ProviderKind string

const (
	ProviderZookeeper ProviderKind = "zookeeper"
	ProviderFile      ProviderKind = "file"
	ProviderConfigMap ProviderKind = "configmap"
	ProviderMemory    ProviderKind = "memory"
)

// String is used both by fmt.Print and by Cobra in help text.
func (p *ProviderKind) String() string {
	return string(*p)
}

// Set must have pointer receiver, so it doesn't change the value of a copy.
func (p *ProviderKind) Set(v string) error {
	switch ProviderKind(strings.ToLower(v)) {
	case ProviderZookeeper, ProviderFile, ProviderConfigMap, ProviderMemory:
		*p = ProviderKind(strings.ToLower(v))
		return nil
	default:
		return errors.Errorf("must be one of %s, %s, %s or %s",
			ProviderZookeeper, ProviderFile, ProviderConfigMap, ProviderMemory)
	}
}

// Type is only used in help text.
func (*ProviderKind) Type() string {
	return "provider"
}

type RetryMode string

const (
	// RetryLenient resolves a call to a nil reply once its retries are spent.
	RetryLenient RetryMode = "lenient"
	// RetryStrict returns an error once the retries are spent.
	RetryStrict RetryMode = "strict"
)

func (m *RetryMode) String() string {
	return string(*m)
}

func (m *RetryMode) Set(v string) error {
	switch RetryMode(strings.ToLower(v)) {
	case RetryLenient, RetryStrict:
		*m = RetryMode(strings.ToLower(v))
		return nil
	default:
		return errors.Errorf("must be one of %s or %s", RetryLenient, RetryStrict)
	}
}

func (*RetryMode) Type() string {
	return "mode"
}

type setter interface {
	Set(string) error
}

// kindsDecodeHook parses enum kinds from their string form, rejecting
// unknown values at load time.
func kindsDecodeHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		var target setter
		switch to {
		case reflect.TypeOf(ProviderKind("")):
			p := ProviderKind("")
			target = &p
		case reflect.TypeOf(RetryMode("")):
			m := RetryMode("")
			target = &m
		default:
			return data, nil
		}
		if err := target.Set(data.(string)); err != nil {
			return nil, err
		}
		return reflect.ValueOf(target).Elem().Interface(), nil
	}
}
