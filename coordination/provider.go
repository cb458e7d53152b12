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
	"github.com/pkg/errors"

	"github.com/streamnative/kvshard/config"
)

// New creates the provider selected by the coordinator configuration.
func New(conf config.CoordinatorConfig) (Provider, error) {
	switch conf.Provider {
	case config.ProviderZookeeper:
		z, err := NewZookeeperProvider(conf.Addresses, conf.SessionTimeout)
		if err != nil {
			return nil, err
		}
		return z, nil
	case config.ProviderFile:
		f, err := NewFileProvider(conf.FilePath)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.ProviderConfigMap:
		restConfig, err := NewK8SClientConfig()
		if err != nil {
			return nil, err
		}
		kc, err := NewK8SClientset(restConfig)
		if err != nil {
			return nil, err
		}
		return NewConfigMapProvider(kc, conf.K8SNamespace, conf.K8SConfigMap), nil
	case config.ProviderMemory:
		return NewMemoryProvider(), nil
	default:
		return nil, errors.Errorf("unknown coordination provider %q", conf.Provider)
	}
}
