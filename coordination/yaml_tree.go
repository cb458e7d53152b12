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
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// A topology document is a YAML mapping where nested mappings are
// directories and scalars are leaves holding their data:
//
//	redis:
//	  orders:
//	    shard-0:
//	      "10.0.0.1:7000": M
//	      "10.0.0.3:7000": S

func parseDocument(content []byte) (*yaml.Node, error) {
	doc := &yaml.Node{}
	if err := yaml.Unmarshal(content, doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse topology document")
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.Wrap(ErrNotDirectory, "topology document root must be a mapping")
	}
	return root, nil
}

func marshalDocument(root *yaml.Node) ([]byte, error) {
	return yaml.Marshal(&yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{root},
	})
}

func mappingValue(m *yaml.Node, key string) (*yaml.Node, int) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1], i
		}
	}
	return nil, -1
}

func lookupNode(root *yaml.Node, p string) (*yaml.Node, error) {
	n := root
	for _, segment := range splitPath(p) {
		if n.Kind != yaml.MappingNode {
			return nil, errors.Wrapf(ErrNodeNotFound, "%s", p)
		}
		child, _ := mappingValue(n, segment)
		if child == nil {
			return nil, errors.Wrapf(ErrNodeNotFound, "%s", p)
		}
		n = child
	}
	return n, nil
}

func yamlToTree(name string, n *yaml.Node) *TreeNode {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		t := &TreeNode{Name: name, Kind: KindLeaf}
		if n.Tag != "!!null" {
			t.Data = []byte(n.Value)
		}
		return t
	}

	t := &TreeNode{Name: name, Kind: KindDirectory}
	for i := 0; i+1 < len(n.Content); i += 2 {
		t.Children = append(t.Children, yamlToTree(n.Content[i].Value, n.Content[i+1]))
	}
	return t
}

func readYamlTree(content []byte, p string) (*TreeNode, error) {
	root, err := parseDocument(content)
	if err != nil {
		return nil, err
	}
	n, err := lookupNode(root, p)
	if err != nil {
		return nil, err
	}
	segments := splitPath(p)
	name := ""
	if len(segments) > 0 {
		name = segments[len(segments)-1]
	}
	return yamlToTree(name, n), nil
}

func putYamlNode(root *yaml.Node, p string, data []byte) error {
	segments := splitPath(p)
	if len(segments) == 0 {
		return errors.Wrap(ErrNotDirectory, "cannot write the root node")
	}

	n := root
	for _, segment := range segments[:len(segments)-1] {
		child, _ := mappingValue(n, segment)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			n.Content = append(n.Content, scalar(segment), child)
		} else if child.Kind != yaml.MappingNode {
			return errors.Wrapf(ErrNotDirectory, "%s", segment)
		}
		n = child
	}

	last := segments[len(segments)-1]
	value := scalar(string(data))
	if existing, i := mappingValue(n, last); existing != nil {
		if existing.Kind == yaml.MappingNode && len(existing.Content) > 0 {
			return errors.Wrapf(ErrNotDirectory, "%s has children", p)
		}
		n.Content[i+1] = value
		return nil
	}
	n.Content = append(n.Content, scalar(last), value)
	return nil
}

func deleteYamlNode(root *yaml.Node, p string) error {
	segments := splitPath(p)
	if len(segments) == 0 {
		return errors.Wrap(ErrNotDirectory, "cannot delete the root node")
	}

	parent, err := lookupNode(root, "/"+joinPath(segments[:len(segments)-1]))
	if err != nil {
		return err
	}
	if parent.Kind != yaml.MappingNode {
		return errors.Wrapf(ErrNodeNotFound, "%s", p)
	}
	_, i := mappingValue(parent, segments[len(segments)-1])
	if i < 0 {
		return errors.Wrapf(ErrNodeNotFound, "%s", p)
	}
	parent.Content = append(parent.Content[:i], parent.Content[i+2:]...)
	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
