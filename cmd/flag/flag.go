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

package flag

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamnative/kvshard/config"
)

// ClusterFlags holds the flags shared by the commands that connect to a
// cluster. Flags set on the command line override the configuration file.
type ClusterFlags struct {
	ConfigFile  string
	MetricsAddr string

	provider  config.ProviderKind
	retryMode config.RetryMode
}

// ClusterFlagBindings maps each flag to its configuration key.
var ClusterFlagBindings = map[string]string{
	"sharding":             "sharding",
	"coordinator-provider": "coordinator.provider",
	"coordinator-address":  "coordinator.addresses",
	"file-path":            "coordinator.filePath",
	"k8s-namespace":        "coordinator.k8sNamespace",
	"k8s-configmap":        "coordinator.k8sConfigMap",
	"node-path-prefix":     "nodePathPrefix",
	"timeout":              "timeout",
	"hash":                 "hash",
	"retry-max-attempts":   "retry.maxAttempts",
	"retry-mode":           "retry.mode",
}

func NewClusterFlags() *ClusterFlags {
	return &ClusterFlags{
		provider:  config.ProviderZookeeper,
		retryMode: config.RetryLenient,
	}
}

func (f *ClusterFlags) Register(cmd *cobra.Command) {
	defaults := config.NewClusterConfig()
	flags := cmd.PersistentFlags()
	flags.StringVarP(&f.ConfigFile, "conf", "f", "", "Cluster configuration file")
	flags.StringVar(&f.MetricsAddr, "metrics-addr", "", "Bind address for the Prometheus metrics, disabled when empty")

	flags.StringP("sharding", "s", "", "Sharding label, the coordination directory of the shards")
	flags.Var(&f.provider, "coordinator-provider", "Coordination provider [zookeeper|file|configmap|memory]")
	flags.StringSliceP("coordinator-address", "a", nil, "Coordination service addresses")
	flags.String("file-path", "", "Topology file, with the file provider")
	flags.String("k8s-namespace", "", "ConfigMap namespace, with the configmap provider")
	flags.String("k8s-configmap", "", "ConfigMap name, with the configmap provider")
	flags.String("node-path-prefix", defaults.NodePathPrefix, "Coordination path prefix of the sharding directories")
	flags.Duration("timeout", defaults.Timeout, "Timeout of node connections and commands")
	flags.String("hash", defaults.Hash, "Hash function of the routing keys [java|xxh3|crc16]")
	flags.Int("retry-max-attempts", defaults.Retry.MaxAttempts, "Additional attempts of a failed command")
	flags.Var(&f.retryMode, "retry-mode", "Result of a command once its retries are spent [lenient|strict]")
}

// Load reads the configuration file and applies the flags the user set.
func (f *ClusterFlags) Load(cmd *cobra.Command) (config.ClusterConfig, error) {
	v := config.NewViper(f.ConfigFile)
	if err := bindChanged(cmd, v); err != nil {
		return config.ClusterConfig{}, err
	}
	return config.Load(v)
}

func bindChanged(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range ClusterFlagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "failed to bind flag %s", name)
		}
	}
	return nil
}
