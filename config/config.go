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
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/streamnative/kvshard/common"
	"github.com/streamnative/kvshard/common/security"
)

const (
	DefaultNodePathPrefix   = "/redis"
	DefaultMasterMarker     = "M"
	DefaultTimeout          = 5 * time.Second
	DefaultSessionTimeout   = 10 * time.Second
	DefaultMaxReconnectTime = 5 * time.Minute
	DefaultMaxAttempts      = 5
	DefaultMaxActive        = 8
	DefaultMaxIdle          = 8
	DefaultMaxWait          = 5 * time.Second
	DefaultBuildConcurrency = 10
	DefaultRebuildRateLimit = 5.0
	DefaultRebuildBurst     = 1
)

var (
	ErrInvalidSharding    = errors.New("sharding label must not be empty")
	ErrInvalidCoordinator = errors.New("invalid coordinator configuration")
	ErrInvalidTimeout     = errors.New("timeout must be positive")
	ErrInvalidRetry       = errors.New("invalid retry policy")
	ErrInvalidPool        = errors.New("invalid pool tuning")
	ErrInvalidHash        = errors.New("invalid hash function")
)

// ClusterConfig is read once at startup and is not modified afterward.
type ClusterConfig struct {
	Coordinator    CoordinatorConfig    `mapstructure:"coordinator" yaml:"coordinator"`
	Sharding       string               `mapstructure:"sharding" yaml:"sharding"`
	NodePathPrefix string               `mapstructure:"nodePathPrefix" yaml:"nodePathPrefix"`
	MasterMarker   string               `mapstructure:"masterMarker" yaml:"masterMarker"`
	Password       string               `mapstructure:"password" yaml:"password"`
	Timeout        time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	Hash           string               `mapstructure:"hash" yaml:"hash"`
	HashTags       bool                 `mapstructure:"hashTags" yaml:"hashTags"`
	Pool           PoolTuning           `mapstructure:"pool" yaml:"pool"`
	Retry          RetryPolicy          `mapstructure:"retry" yaml:"retry"`
	Rebuild        RebuildPolicy        `mapstructure:"rebuild" yaml:"rebuild"`
	TLS            security.TLSOptions  `mapstructure:"tls" yaml:"tls"`
}

type CoordinatorConfig struct {
	Provider         ProviderKind  `mapstructure:"provider" yaml:"provider"`
	Addresses        []string      `mapstructure:"addresses" yaml:"addresses"`
	SessionTimeout   time.Duration `mapstructure:"sessionTimeout" yaml:"sessionTimeout"`
	FilePath         string        `mapstructure:"filePath" yaml:"filePath"`
	K8SNamespace     string        `mapstructure:"k8sNamespace" yaml:"k8sNamespace"`
	K8SConfigMap     string        `mapstructure:"k8sConfigMap" yaml:"k8sConfigMap"`
	MaxReconnectTime time.Duration `mapstructure:"maxReconnectTime" yaml:"maxReconnectTime"`
}

type PoolTuning struct {
	// MaxActive bounds the concurrent borrows of a single node connection.
	MaxActive int `mapstructure:"maxActive" yaml:"maxActive"`
	MinIdle   int `mapstructure:"minIdle" yaml:"minIdle"`
	MaxIdle   int `mapstructure:"maxIdle" yaml:"maxIdle"`
	// MaxWait is how long a borrow waits for a free slot.
	MaxWait time.Duration `mapstructure:"maxWait" yaml:"maxWait"`
	// BuildConcurrency bounds the parallel node connects of one rebuild.
	BuildConcurrency int `mapstructure:"buildConcurrency" yaml:"buildConcurrency"`
}

type RetryPolicy struct {
	// MaxAttempts is the number of additional attempts after the first failure.
	MaxAttempts int           `mapstructure:"maxAttempts" yaml:"maxAttempts"`
	Mode        RetryMode     `mapstructure:"mode" yaml:"mode"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`
}

type RebuildPolicy struct {
	// RateLimit is the maximum number of topology rebuilds per second.
	RateLimit float64 `mapstructure:"rateLimit" yaml:"rateLimit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

func NewClusterConfig() ClusterConfig {
	return ClusterConfig{
		Coordinator: CoordinatorConfig{
			Provider:         ProviderZookeeper,
			SessionTimeout:   DefaultSessionTimeout,
			MaxReconnectTime: DefaultMaxReconnectTime,
		},
		NodePathPrefix: DefaultNodePathPrefix,
		MasterMarker:   DefaultMasterMarker,
		Timeout:        DefaultTimeout,
		Hash:           common.HashJava,
		Pool: PoolTuning{
			MaxActive:        DefaultMaxActive,
			MaxIdle:          DefaultMaxIdle,
			MaxWait:          DefaultMaxWait,
			BuildConcurrency: DefaultBuildConcurrency,
		},
		Retry: RetryPolicy{
			MaxAttempts: DefaultMaxAttempts,
			Mode:        RetryLenient,
		},
		Rebuild: RebuildPolicy{
			RateLimit: DefaultRebuildRateLimit,
			Burst:     DefaultRebuildBurst,
		},
	}
}

// BasePath is the coordination path holding one directory per shard.
func (c *ClusterConfig) BasePath() string {
	return path.Join("/", c.NodePathPrefix, c.Sharding)
}

func (c *ClusterConfig) Validate() error {
	var err error
	if strings.TrimSpace(c.Sharding) == "" {
		err = multierr.Append(err, ErrInvalidSharding)
	}
	if c.Timeout <= 0 {
		err = multierr.Append(err, ErrInvalidTimeout)
	}
	if c.MasterMarker == "" {
		err = multierr.Append(err, errors.Wrap(ErrInvalidCoordinator, "master marker must not be empty"))
	}
	if _, hashErr := common.NewHashFunc(c.Hash, c.HashTags); hashErr != nil {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidHash, "%q", c.Hash))
	}
	err = multierr.Append(err, c.Coordinator.Validate())
	err = multierr.Append(err, c.Pool.Validate())
	err = multierr.Append(err, c.Retry.Validate())
	if c.Rebuild.RateLimit < 0 || c.Rebuild.Burst < 0 {
		err = multierr.Append(err, errors.New("rebuild rate limit and burst must not be negative"))
	}
	return err
}

func (c *CoordinatorConfig) Validate() error {
	switch c.Provider {
	case ProviderZookeeper:
		if len(c.Addresses) == 0 {
			return errors.Wrap(ErrInvalidCoordinator, "zookeeper addresses must not be empty")
		}
		for _, a := range c.Addresses {
			if strings.TrimSpace(a) == "" {
				return errors.Wrap(ErrInvalidCoordinator, "zookeeper address must not be empty")
			}
		}
	case ProviderFile:
		if c.FilePath == "" {
			return errors.Wrap(ErrInvalidCoordinator, "file path must be set with provider=file")
		}
	case ProviderConfigMap:
		if c.K8SNamespace == "" {
			return errors.Wrap(ErrInvalidCoordinator, "k8s namespace must be set with provider=configmap")
		}
		if c.K8SConfigMap == "" {
			return errors.Wrap(ErrInvalidCoordinator, "k8s configmap must be set with provider=configmap")
		}
	case ProviderMemory:
	default:
		return errors.Wrapf(ErrInvalidCoordinator, "unknown provider %q", c.Provider)
	}
	if c.MaxReconnectTime < 0 {
		return errors.Wrap(ErrInvalidCoordinator, "max reconnect time must not be negative")
	}
	return nil
}

func (p *PoolTuning) Validate() error {
	var err error
	if p.MaxActive <= 0 {
		err = multierr.Append(err, errors.Wrap(ErrInvalidPool, "maxActive must be positive"))
	}
	if p.MinIdle < 0 || p.MaxIdle < 0 {
		err = multierr.Append(err, errors.Wrap(ErrInvalidPool, "idle bounds must not be negative"))
	}
	if p.MaxWait < 0 {
		err = multierr.Append(err, errors.Wrap(ErrInvalidPool, "maxWait must not be negative"))
	}
	if p.BuildConcurrency <= 0 {
		err = multierr.Append(err, errors.Wrap(ErrInvalidPool, "buildConcurrency must be positive"))
	}
	return err
}

func (r *RetryPolicy) Validate() error {
	var err error
	if r.MaxAttempts < 0 {
		err = multierr.Append(err, errors.Wrap(ErrInvalidRetry, "maxAttempts must not be negative"))
	}
	if r.Delay < 0 {
		err = multierr.Append(err, errors.Wrap(ErrInvalidRetry, "delay must not be negative"))
	}
	if r.Mode != RetryLenient && r.Mode != RetryStrict {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidRetry, "unknown mode %q", r.Mode))
	}
	return err
}
