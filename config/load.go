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
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "KVSHARD"

// NewViper returns a viper instance reading YAML from configFile, or from
// the default search paths when configFile is empty. Environment variables
// prefixed with KVSHARD_ override file values.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		v.SetConfigName("kvshard")
		v.AddConfigPath("/kvshard/conf")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(configFile)
	}

	setDefaults(v, NewClusterConfig())
	return v
}

// setDefaults registers every key so that environment overrides apply even
// when the file omits the key.
func setDefaults(v *viper.Viper, c ClusterConfig) {
	v.SetDefault("coordinator.provider", string(c.Coordinator.Provider))
	v.SetDefault("coordinator.addresses", c.Coordinator.Addresses)
	v.SetDefault("coordinator.sessionTimeout", c.Coordinator.SessionTimeout)
	v.SetDefault("coordinator.filePath", c.Coordinator.FilePath)
	v.SetDefault("coordinator.k8sNamespace", c.Coordinator.K8SNamespace)
	v.SetDefault("coordinator.k8sConfigMap", c.Coordinator.K8SConfigMap)
	v.SetDefault("coordinator.maxReconnectTime", c.Coordinator.MaxReconnectTime)
	v.SetDefault("sharding", c.Sharding)
	v.SetDefault("nodePathPrefix", c.NodePathPrefix)
	v.SetDefault("masterMarker", c.MasterMarker)
	v.SetDefault("password", c.Password)
	v.SetDefault("timeout", c.Timeout)
	v.SetDefault("hash", c.Hash)
	v.SetDefault("hashTags", c.HashTags)
	v.SetDefault("pool.maxActive", c.Pool.MaxActive)
	v.SetDefault("pool.minIdle", c.Pool.MinIdle)
	v.SetDefault("pool.maxIdle", c.Pool.MaxIdle)
	v.SetDefault("pool.maxWait", c.Pool.MaxWait)
	v.SetDefault("pool.buildConcurrency", c.Pool.BuildConcurrency)
	v.SetDefault("retry.maxAttempts", c.Retry.MaxAttempts)
	v.SetDefault("retry.mode", string(c.Retry.Mode))
	v.SetDefault("retry.delay", c.Retry.Delay)
	v.SetDefault("rebuild.rateLimit", c.Rebuild.RateLimit)
	v.SetDefault("rebuild.burst", c.Rebuild.Burst)
	v.SetDefault("tls.enabled", c.TLS.Enabled)
}

// Load reads the configuration, if a file can be found, decodes it on top
// of the defaults and validates the result.
func Load(v *viper.Viper) (ClusterConfig, error) {
	cc := NewClusterConfig()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cc, errors.Wrap(err, "failed to read cluster config")
		}
	}

	if err := v.Unmarshal(&cc, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		kindsDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(), // default hook
		mapstructure.StringToSliceHookFunc(","),     // default hook
	))); err != nil {
		return cc, errors.Wrap(err, "failed to load cluster config")
	}

	if err := cc.Validate(); err != nil {
		return cc, errors.Wrap(err, "invalid cluster config")
	}
	return cc, nil
}
