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
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/streamnative/kvshard/kv"
	"github.com/streamnative/kvshard/shard"
)

const nilOutput = "(nil)"

var (
	ErrIncorrectShardFlagUse = errors.New("--key and --shard cannot be used together")

	setTTL   time.Duration
	doKey    string
	doShard  int
	useShard bool

	getCmd = &cobra.Command{
		Use:   "get KEY [KEY...]",
		Short: "Get the values of keys",
		Args:  cobra.MinimumNArgs(1),
		RunE:  execGet,
	}
	setCmd = &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set the value of a key",
		Args:  cobra.ExactArgs(2),
		RunE:  execSet,
	}
	delCmd = &cobra.Command{
		Use:   "del KEY [KEY...]",
		Short: "Delete keys, on any shard",
		Args:  cobra.MinimumNArgs(1),
		RunE:  execDel,
	}
	msetCmd = &cobra.Command{
		Use:   "mset KEY VALUE [KEY VALUE...]",
		Short: "Set several keys, each on its own shard",
		Args:  cobra.MinimumNArgs(2),
		RunE:  execMSet,
	}
	mgetCmd = &cobra.Command{
		Use:   "mget KEY [KEY...]",
		Short: "Get several keys, each from its own shard",
		Args:  cobra.MinimumNArgs(1),
		RunE:  execMGet,
	}
	doCmd = &cobra.Command{
		Use:   "do COMMAND [ARG...]",
		Short: "Run any command on the shard of a key, or on a given shard",
		Args:  cobra.MinimumNArgs(1),
		RunE:  execDo,
	}
)

func init() {
	setCmd.Flags().DurationVar(&setTTL, "ttl", 0, "Time to live of the key, none when zero")
	doCmd.Flags().StringVarP(&doKey, "key", "k", "", "Routing key")
	doCmd.Flags().IntVar(&doShard, "shard", 0, "Shard index")
}

func execGet(cmd *cobra.Command, args []string) error {
	for _, key := range args {
		value, err := client.Get(cmd.Context(), client.ByKey(key), key)
		if errors.Is(err, kv.ErrNil) {
			value, err = nilOutput, nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}

func execSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	sf := client.ByKey(key)

	var err error
	if setTTL > 0 {
		err = client.PSetEx(cmd.Context(), sf, key, value, setTTL)
	} else {
		err = client.Set(cmd.Context(), sf, key, value)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

func execDel(cmd *cobra.Command, args []string) error {
	count, err := client.DelByKey(cmd.Context(), args...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), count)
	return nil
}

func execMSet(cmd *cobra.Command, args []string) error {
	pairs := make([]any, len(args))
	for i, a := range args {
		pairs[i] = a
	}
	if err := client.MSet(cmd.Context(), pairs...); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

func execMGet(cmd *cobra.Command, args []string) error {
	values, err := client.MGetByKey(cmd.Context(), args...)
	if err != nil {
		return err
	}
	for _, v := range values {
		writeReply(cmd.OutOrStdout(), v, "")
	}
	return nil
}

func execDo(cmd *cobra.Command, args []string) error {
	keyChanged, shardChanged := cmd.Flags().Changed("key"), cmd.Flags().Changed("shard")
	if keyChanged && shardChanged {
		return ErrIncorrectShardFlagUse
	}

	var sf shard.ShardingFunction
	switch {
	case shardChanged:
		sf = shard.Pinned(doShard)
	case keyChanged:
		sf = client.ByKey(doKey)
	case len(args) > 1:
		// The first argument of most commands is the key
		sf = client.ByKey(args[1])
	default:
		sf = shard.Pinned(0)
	}

	all := make([]any, len(args))
	for i, a := range args {
		all[i] = a
	}
	reply, err := client.Do(cmd.Context(), sf, all...)
	if err != nil {
		return err
	}
	writeReply(cmd.OutOrStdout(), reply, "")
	return nil
}

func writeReply(w io.Writer, reply any, indent string) {
	switch v := reply.(type) {
	case nil:
		fmt.Fprintln(w, indent+nilOutput)
	case string:
		fmt.Fprintln(w, indent+v)
	case int64:
		fmt.Fprintln(w, indent+"(integer) "+strconv.FormatInt(v, 10))
	case []any:
		for i, item := range v {
			if nested, ok := item.([]any); ok {
				fmt.Fprintf(w, "%s%d)\n", indent, i+1)
				writeReply(w, nested, indent+"   ")
				continue
			}
			fmt.Fprintf(w, "%s%d) ", indent, i+1)
			writeReply(w, item, "")
		}
	default:
		fmt.Fprintf(w, "%s%v\n", indent, v)
	}
}
