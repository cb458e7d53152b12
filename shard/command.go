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
	"fmt"
	"strings"
)

// Command is one key-value command, its name and its arguments.
type Command struct {
	Name string
	Args []any
}

func NewCommand(name string, args ...any) Command {
	return Command{
		Name: strings.ToLower(name),
		Args: args,
	}
}

// ParseCommand takes the name from the first element, as in a raw command line.
func ParseCommand(args ...any) (Command, error) {
	if len(args) == 0 {
		return Command{}, ErrEmptyCommand
	}
	name, ok := args[0].(string)
	if !ok || name == "" {
		return Command{}, ErrEmptyCommand
	}
	return NewCommand(name, args[1:]...), nil
}

// Full returns the name followed by the arguments, ready to be sent.
func (c Command) Full() []any {
	full := make([]any, 0, len(c.Args)+1)
	full = append(full, c.Name)
	return append(full, c.Args...)
}

// option returns the argument at i as a lowercase keyword, when it is text.
func (c Command) option(i int) (string, bool) {
	switch a := c.Args[i].(type) {
	case string:
		return strings.ToLower(a), true
	case []byte:
		return strings.ToLower(string(a)), true
	}
	return "", false
}

func (c Command) String() string {
	return fmt.Sprintf("%s(%d args)", c.Name, len(c.Args))
}
