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
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"github.com/streamnative/kvshard/common"
)

// zkClient is the subset of *zk.Conn used by the provider.
type zkClient interface {
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Delete(path string, version int32) error
	Close()
}

type zkLogger struct {
	log *slog.Logger
}

func (l *zkLogger) Printf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

type ZookeeperProvider struct {
	client zkClient
	log    *slog.Logger
}

func NewZookeeperProvider(addresses []string, sessionTimeout time.Duration) (*ZookeeperProvider, error) {
	log := slog.With(
		slog.String("component", "zookeeper-provider"),
		slog.Any("addresses", addresses),
	)

	conn, sessionEvents, err := zk.Connect(addresses, sessionTimeout, zk.WithLogger(&zkLogger{log}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to zookeeper")
	}

	z := newZookeeperProvider(conn, log)
	go common.DoWithLabels(
		context.Background(),
		map[string]string{
			"kvshard": "zookeeper-session",
		},
		func() { z.logSessionEvents(sessionEvents) },
	)
	return z, nil
}

func newZookeeperProvider(client zkClient, log *slog.Logger) *ZookeeperProvider {
	return &ZookeeperProvider{
		client: client,
		log:    log,
	}
}

func (z *ZookeeperProvider) logSessionEvents(events <-chan zk.Event) {
	for e := range events {
		switch e.State {
		case zk.StateHasSession:
			z.log.Info("Zookeeper session established", slog.String("server", e.Server))
		case zk.StateDisconnected:
			z.log.Warn("Zookeeper connection lost", slog.String("server", e.Server))
		case zk.StateExpired:
			z.log.Warn("Zookeeper session expired")
		case zk.StateAuthFailed:
			z.log.Error("Zookeeper authentication failed")
		default:
		}
	}
}

func (z *ZookeeperProvider) Close() error {
	z.client.Close()
	return nil
}

func (z *ZookeeperProvider) ReadTree(ctx context.Context, p string) (*TreeNode, error) {
	p = cleanPath(p)
	segments := splitPath(p)
	name := ""
	if len(segments) > 0 {
		name = segments[len(segments)-1]
	}
	return z.readNode(ctx, name, p)
}

func (z *ZookeeperProvider) readNode(ctx context.Context, name, p string) (*TreeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := z.client.Get(p)
	if err != nil {
		return nil, z.mapError(err, p)
	}
	children, _, err := z.client.Children(p)
	if err != nil {
		return nil, z.mapError(err, p)
	}

	node := &TreeNode{Name: name, Kind: KindLeaf, Data: data}
	if len(children) == 0 {
		return node, nil
	}

	node.Kind = KindDirectory
	for _, c := range children {
		child, err := z.readNode(ctx, c, path.Join(p, c))
		if errors.Is(err, ErrNodeNotFound) {
			// Removed while reading, the next event will re-read
			continue
		}
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func (*ZookeeperProvider) mapError(err error, p string) error {
	if errors.Is(err, zk.ErrNoNode) {
		return errors.Wrapf(ErrNodeNotFound, "%s", p)
	}
	return errors.Wrapf(err, "zookeeper operation failed on %s", p)
}

func (z *ZookeeperProvider) Put(_ context.Context, p string, data []byte) error {
	p = cleanPath(p)
	if p == "/" {
		return errors.Wrap(ErrNotDirectory, "cannot write the root node")
	}

	_, err := z.client.Set(p, data, -1)
	if !errors.Is(err, zk.ErrNoNode) {
		return z.wrap(err, p)
	}

	if err := z.createParents(p); err != nil {
		return err
	}
	_, err = z.client.Create(p, data, 0, zk.WorldACL(zk.PermAll))
	if errors.Is(err, zk.ErrNodeExists) {
		_, err = z.client.Set(p, data, -1)
	}
	return z.wrap(err, p)
}

func (z *ZookeeperProvider) createParents(p string) error {
	segments := splitPath(p)
	current := ""
	for _, s := range segments[:len(segments)-1] {
		current += "/" + s
		if _, err := z.client.Create(current, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return z.wrap(err, current)
		}
	}
	return nil
}

func (z *ZookeeperProvider) Delete(ctx context.Context, p string) error {
	p = cleanPath(p)
	if p == "/" {
		return errors.Wrap(ErrNotDirectory, "cannot delete the root node")
	}
	return z.deleteRecursive(ctx, p)
}

func (z *ZookeeperProvider) deleteRecursive(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	children, _, err := z.client.Children(p)
	if err != nil {
		return z.mapError(err, p)
	}
	for _, c := range children {
		if err := z.deleteRecursive(ctx, path.Join(p, c)); err != nil && !errors.Is(err, ErrNodeNotFound) {
			return err
		}
	}
	if err := z.client.Delete(p, -1); err != nil {
		return z.mapError(err, p)
	}
	return nil
}

func (*ZookeeperProvider) wrap(err error, p string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "zookeeper operation failed on %s", p)
}

// Zookeeper watches fire once, so every node of the subtree carries its own
// data and children watches, re-armed after they fire.
func (z *ZookeeperProvider) Watch(ctx context.Context, p string) (<-chan Event, error) {
	w := &zkWatch{
		client: z.client,
		log:    z.log,
		base:   cleanPath(p),
		armed:  make(map[string]bool),
		fired:  make(chan zkFired),
		done:   make(chan struct{}),
		out:    make(chan Event, 1),
	}

	if err := w.arm(); err != nil {
		close(w.done)
		return nil, errors.Wrap(err, "failed to watch zookeeper subtree")
	}

	go common.DoWithLabels(
		ctx,
		map[string]string{
			"kvshard": "zookeeper-watch",
			"path":    w.base,
		},
		func() { w.run(ctx) },
	)
	return w.out, nil
}

type zkFired struct {
	key   string
	event zk.Event
}

type zkWatch struct {
	client zkClient
	log    *slog.Logger
	base   string

	// armed is only accessed by the goroutine running the watch
	armed map[string]bool
	fired chan zkFired
	done  chan struct{}
	out   chan Event
}

func (w *zkWatch) run(ctx context.Context) {
	defer close(w.out)
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return

		case f := <-w.fired:
			delete(w.armed, f.key)
			if f.event.Type == zk.EventNotWatching || f.event.Err != nil {
				err := f.event.Err
				if err == nil {
					err = errors.New("zookeeper watch removed")
				}
				w.sendLoss(ctx, err)
				return
			}

			w.log.Debug(
				"Zookeeper node changed",
				slog.String("path", f.event.Path),
				slog.String("type", f.event.Type.String()),
			)
			notify(w.out, Event{Path: f.event.Path})

			if err := w.arm(); err != nil {
				w.sendLoss(ctx, err)
				return
			}
		}
	}
}

func (w *zkWatch) sendLoss(ctx context.Context, err error) {
	select {
	case <-w.out:
	default:
	}
	select {
	case w.out <- Event{Path: w.base, Err: errors.Wrap(ErrSubscriptionLost, err.Error())}:
	case <-ctx.Done():
	}
}

func (w *zkWatch) arm() error {
	return w.armNode(w.base)
}

func (w *zkWatch) armNode(p string) error {
	dataKey := "d:" + p
	if !w.armed[dataKey] {
		_, _, ch, err := w.client.GetW(p)
		if errors.Is(err, zk.ErrNoNode) {
			if p == w.base {
				return w.armExists(p)
			}
			return nil
		}
		if err != nil {
			return err
		}
		w.track(dataKey, ch)
	}

	var children []string
	var err error
	childrenKey := "c:" + p
	if !w.armed[childrenKey] {
		var ch <-chan zk.Event
		children, _, ch, err = w.client.ChildrenW(p)
		if err == nil {
			w.track(childrenKey, ch)
		}
	} else {
		children, _, err = w.client.Children(p)
	}
	if errors.Is(err, zk.ErrNoNode) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, c := range children {
		if err := w.armNode(path.Join(p, c)); err != nil {
			return err
		}
	}
	return nil
}

func (w *zkWatch) armExists(p string) error {
	key := "e:" + p
	if w.armed[key] {
		return nil
	}
	_, _, ch, err := w.client.ExistsW(p)
	if err != nil {
		return err
	}
	w.track(key, ch)
	return nil
}

func (w *zkWatch) track(key string, ch <-chan zk.Event) {
	w.armed[key] = true
	go func() {
		select {
		case e, ok := <-ch:
			if !ok {
				e = zk.Event{Type: zk.EventNotWatching, Err: zk.ErrClosing}
			}
			select {
			case w.fired <- zkFired{key: key, event: e}:
			case <-w.done:
			}
		case <-w.done:
		}
	}()
}
