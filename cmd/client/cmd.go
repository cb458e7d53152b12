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

package client

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/streamnative/kvshard/cmd/flag"
	"github.com/streamnative/kvshard/common/metrics"
	"github.com/streamnative/kvshard/coordination"
	"github.com/streamnative/kvshard/kv"
	"github.com/streamnative/kvshard/shard"
)

var (
	clusterFlags = flag.NewClusterFlags()

	client  *shard.Client
	closers []io.Closer

	Cmd = &cobra.Command{
		Use:                "client",
		Short:              "Read/Write keys",
		Long:               "Run commands against the sharded key-value cluster, routed by key",
		PersistentPreRunE:  start,
		PersistentPostRunE: stop,
	}
)

func init() {
	clusterFlags.Register(Cmd)

	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(delCmd)
	Cmd.AddCommand(msetCmd)
	Cmd.AddCommand(mgetCmd)
	Cmd.AddCommand(doCmd)
}

func start(cmd *cobra.Command, _ []string) error {
	conf, err := clusterFlags.Load(cmd)
	if err != nil {
		return err
	}

	var opts []shard.ClientOption
	if clusterFlags.MetricsAddr != "" {
		provider, err := metrics.NewMeterProvider()
		if err != nil {
			return err
		}
		server, err := metrics.Start(clusterFlags.MetricsAddr)
		if err != nil {
			return errors.Wrap(err, "failed to start the metrics server")
		}
		closers = append(closers, server)
		opts = append(opts, shard.WithMeterProvider(provider))
	}

	provider, err := coordination.New(conf.Coordinator)
	if err != nil {
		return err
	}
	closers = append(closers, provider)

	options, err := kv.NewRedisOptions(conf)
	if err != nil {
		return err
	}
	client, err = shard.NewClient(cmd.Context(), conf, provider, kv.NewRedisDialer(options), opts...)
	if err != nil {
		return err
	}
	closers = append(closers, client)
	return nil
}

func stop(*cobra.Command, []string) error {
	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, closers[i].Close())
	}
	closers = nil
	client = nil
	if err != nil {
		slog.Warn("Failed to close the client", slog.Any("error", err))
	}
	return err
}
