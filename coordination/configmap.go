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

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"

	"github.com/streamnative/kvshard/common"
)

const (
	ConfigMapDataKey = "topology.yaml"
	fieldManager     = "kvshard"
)

// ConfigMapProvider stores the coordination tree as a YAML document inside
// a Kubernetes ConfigMap.
type ConfigMapProvider struct {
	kubernetes      kubernetes.Interface
	namespace, name string
	log             *slog.Logger
}

func NewConfigMapProvider(kc kubernetes.Interface, namespace, name string) *ConfigMapProvider {
	return &ConfigMapProvider{
		kubernetes: kc,
		namespace:  namespace,
		name:       name,
		log: slog.With(
			slog.String("component", "configmap-provider"),
			slog.String("namespace", namespace),
			slog.String("configmap", name),
		),
	}
}

func (c *ConfigMapProvider) Close() error {
	return nil
}

func (c *ConfigMapProvider) ReadTree(ctx context.Context, p string) (*TreeNode, error) {
	cm, err := c.kubernetes.CoreV1().ConfigMaps(c.namespace).Get(ctx, c.name, metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNodeNotFound, "%s", p)
		}
		return nil, errors.Wrap(err, "failed to get topology configmap")
	}
	return readYamlTree([]byte(cm.Data[ConfigMapDataKey]), p)
}

func (c *ConfigMapProvider) Watch(ctx context.Context, p string) (<-chan Event, error) {
	w, err := c.kubernetes.CoreV1().ConfigMaps(c.namespace).Watch(ctx, metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("metadata.name", c.name).String(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to watch topology configmap")
	}

	ch := make(chan Event, 1)
	go common.DoWithLabels(
		ctx,
		map[string]string{
			"kvshard": "configmap-provider-watch",
		},
		func() { c.watch(ctx, w, cleanPath(p), ch) },
	)
	return ch, nil
}

func (c *ConfigMapProvider) watch(ctx context.Context, w watch.Interface, p string, ch chan Event) {
	defer close(ch)
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.ResultChan():
			if !ok {
				c.sendLoss(ctx, ch, p, errors.New("configmap watch closed"))
				return
			}

			switch event.Type {
			case watch.Added, watch.Modified, watch.Deleted:
				cm, isConfigMap := event.Object.(*corev1.ConfigMap)
				if !isConfigMap || cm.Name != c.name {
					continue
				}
				c.log.Debug("Topology configmap changed", slog.String("type", string(event.Type)))
				notify(ch, Event{Path: p})

			case watch.Error:
				err := k8serrors.FromObject(event.Object)
				c.sendLoss(ctx, ch, p, err)
				return
			}
		}
	}
}

func (*ConfigMapProvider) sendLoss(ctx context.Context, ch chan Event, p string, err error) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- Event{Path: p, Err: errors.Wrap(ErrSubscriptionLost, err.Error())}:
	case <-ctx.Done():
	}
}

func (c *ConfigMapProvider) Put(ctx context.Context, p string, data []byte) error {
	return c.update(ctx, func(root []byte) ([]byte, error) {
		doc, err := parseDocument(root)
		if err != nil {
			return nil, err
		}
		if err := putYamlNode(doc, p, data); err != nil {
			return nil, err
		}
		return marshalDocument(doc)
	})
}

func (c *ConfigMapProvider) Delete(ctx context.Context, p string) error {
	return c.update(ctx, func(root []byte) ([]byte, error) {
		doc, err := parseDocument(root)
		if err != nil {
			return nil, err
		}
		if err := deleteYamlNode(doc, p); err != nil {
			return nil, err
		}
		return marshalDocument(doc)
	})
}

// update applies a read-modify-write cycle, retried when another writer
// updated the ConfigMap in between.
func (c *ConfigMapProvider) update(ctx context.Context, modify func([]byte) ([]byte, error)) error {
	client := c.kubernetes.CoreV1().ConfigMaps(c.namespace)

	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		cm, err := client.Get(ctx, c.name, metav1.GetOptions{})
		if err != nil && !k8serrors.IsNotFound(err) {
			return err
		}

		if k8serrors.IsNotFound(err) {
			content, err := modify(nil)
			if err != nil {
				return err
			}
			_, err = client.Create(ctx, &corev1.ConfigMap{
				ObjectMeta: metav1.ObjectMeta{Name: c.name, Namespace: c.namespace},
				Data:       map[string]string{ConfigMapDataKey: string(content)},
			}, metav1.CreateOptions{FieldManager: fieldManager})
			return err
		}

		content, err := modify([]byte(cm.Data[ConfigMapDataKey]))
		if err != nil {
			return err
		}
		if cm.Data == nil {
			cm.Data = map[string]string{}
		}
		cm.Data[ConfigMapDataKey] = string(content)
		_, err = client.Update(ctx, cm, metav1.UpdateOptions{FieldManager: fieldManager})
		return err
	})
}
