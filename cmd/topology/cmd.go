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

package topology

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/streamnative/kvshard/cmd/flag"
	"github.com/streamnative/kvshard/common/process"
	"github.com/streamnative/kvshard/config"
	"github.com/streamnative/kvshard/coordination"
	"github.com/streamnative/kvshard/topology"
)

var (
	clusterFlags = flag.NewClusterFlags()

	Cmd = &cobra.Command{
		Use:   "topology",
		Short: "Inspect and edit the shard topology",
		Long:  "Show or follow the shard masters published in the coordination service, and change node roles",
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the current shard masters",
		Args:  cobra.NoArgs,
		RunE:  execShow,
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print every topology change until interrupted",
		Args:  cobra.NoArgs,
		RunE:  execWatch,
	}
	setRoleCmd = &cobra.Command{
		Use:   "set-role SHARD ADDRESS ROLE",
		Short: "Set the role marker of a node, creating it if needed",
		Args:  cobra.ExactArgs(3),
		RunE:  execSetRole,
	}
)

func init() {
	clusterFlags.Register(Cmd)

	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(watchCmd)
	Cmd.AddCommand(setRoleCmd)
}

func connect(cmd *cobra.Command) (config.ClusterConfig, coordination.Provider, error) {
	conf, err := clusterFlags.Load(cmd)
	if err != nil {
		return conf, nil, err
	}
	provider, err := coordination.New(conf.Coordinator)
	if err != nil {
		return conf, nil, err
	}
	return conf, provider, nil
}

func execShow(cmd *cobra.Command, _ []string) error {
	conf, provider, err := connect(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	tree, err := provider.ReadTree(cmd.Context(), conf.BasePath())
	if err != nil && !errors.Is(err, coordination.ErrNodeNotFound) {
		return err
	}
	snapshot, warnings := topology.NewSnapshotBuilder(conf).Build(tree)
	for _, w := range warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	if snapshot.IsEmpty() {
		return errors.Wrapf(topology.ErrEmptyTopology, "no valid shard under %s", conf.BasePath())
	}
	writeSnapshot(cmd.OutOrStdout(), snapshot)
	return nil
}

func execWatch(cmd *cobra.Command, _ []string) error {
	conf, provider, err := connect(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	out := cmd.OutOrStdout()
	var last time.Time
	listener := topology.ListenerFunc(func(_ context.Context, snapshot topology.Snapshot) error {
		now := time.Now()
		if last.IsZero() {
			fmt.Fprintf(out, "version %d\n", snapshot.Version)
		} else {
			fmt.Fprintf(out, "version %d, previous %s\n", snapshot.Version, humanize.RelTime(last, now, "ago", "from now"))
		}
		writeSnapshot(out, snapshot)
		last = now
		return nil
	})

	return process.Run(cmd.Context(), func(ctx context.Context) (io.Closer, error) {
		w := topology.NewWatcher(provider, conf, listener, topology.ExitOnFatal)
		if err := w.Start(ctx); err != nil {
			return nil, err
		}
		return w, nil
	})
}

func execSetRole(cmd *cobra.Command, args []string) error {
	shardName, address, role := args[0], args[1], args[2]
	if strings.Contains(shardName, "/") {
		return errors.Errorf("invalid shard name %q", shardName)
	}
	if _, _, err := topology.ParseAddress(address); err != nil {
		return err
	}

	conf, provider, err := connect(cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	p := strings.Join([]string{conf.BasePath(), shardName, address}, "/")
	if err := provider.Put(cmd.Context(), p, []byte(role)); err != nil {
		return errors.Wrapf(err, "failed to set the role of %s", address)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

func writeSnapshot(w io.Writer, snapshot topology.Snapshot) {
	for i, n := range snapshot.Nodes {
		fmt.Fprintf(w, "%d\t%s\n", i, n.Address())
	}
}
