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
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/fslock"
	"github.com/pkg/errors"

	"github.com/streamnative/kvshard/common"
)

// FileProvider reads the coordination tree from a YAML document on disk and
// watches the file for changes.
type FileProvider struct {
	path     string
	fileLock *fslock.Lock
	log      *slog.Logger
}

func NewFileProvider(path string) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "invalid topology file path")
	}
	return &FileProvider{
		path:     abs,
		fileLock: fslock.New(abs + ".lock"),
		log: slog.With(
			slog.String("component", "file-provider"),
			slog.String("file", abs),
		),
	}, nil
}

func (f *FileProvider) Close() error {
	return nil
}

func (f *FileProvider) ReadTree(_ context.Context, p string) (*TreeNode, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNodeNotFound, "%s", p)
		}
		return nil, errors.Wrap(err, "failed to read topology file")
	}
	return readYamlTree(content, p)
}

func (f *FileProvider) Watch(ctx context.Context, p string) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	// Editors often replace the file, so the parent directory is watched
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrap(err, "failed to watch topology directory")
	}

	ch := make(chan Event, 1)
	go common.DoWithLabels(
		ctx,
		map[string]string{
			"kvshard": "file-provider-watch",
		},
		func() { f.watch(ctx, watcher, cleanPath(p), ch) },
	)
	return ch, nil
}

func (f *FileProvider) watch(ctx context.Context, watcher *fsnotify.Watcher, p string, ch chan Event) {
	defer close(ch)
	defer func() {
		if err := watcher.Close(); err != nil {
			f.log.Warn("Failed to close file watcher", slog.Any("error", err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				f.sendLoss(ctx, ch, p, errors.New("file watcher closed"))
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				f.log.Debug("Topology file changed", slog.String("op", event.Op.String()))
				notify(ch, Event{Path: p})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				err = errors.New("file watcher closed")
			}
			f.sendLoss(ctx, ch, p, err)
			return
		}
	}
}

func (*FileProvider) sendLoss(ctx context.Context, ch chan Event, p string, err error) {
	// Drop a pending change, the loss supersedes it
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- Event{Path: p, Err: errors.Wrap(ErrSubscriptionLost, err.Error())}:
	case <-ctx.Done():
	}
}

func (f *FileProvider) Put(_ context.Context, p string, data []byte) error {
	return f.update(func(content []byte) ([]byte, error) {
		root, err := parseDocument(content)
		if err != nil {
			return nil, err
		}
		if err := putYamlNode(root, p, data); err != nil {
			return nil, err
		}
		return marshalDocument(root)
	})
}

func (f *FileProvider) Delete(_ context.Context, p string) error {
	return f.update(func(content []byte) ([]byte, error) {
		root, err := parseDocument(content)
		if err != nil {
			return nil, err
		}
		if err := deleteYamlNode(root, p); err != nil {
			return nil, err
		}
		return marshalDocument(root)
	})
}

// update applies a read-modify-write cycle while holding the file lock, so
// concurrent writers in other processes do not lose updates.
func (f *FileProvider) update(modify func(content []byte) ([]byte, error)) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}

	if err := f.fileLock.Lock(); err != nil {
		return errors.Wrap(err, "failed to acquire file lock")
	}
	defer func() {
		if err := f.fileLock.Unlock(); err != nil {
			f.log.Warn(
				"Failed to release file lock on topology",
				slog.Any("error", err),
			)
		}
	}()

	content, err := os.ReadFile(f.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to read topology file")
	}

	newContent, err := modify(content)
	if err != nil {
		return err
	}

	return os.WriteFile(f.path, newContent, 0640)
}
