package localestore

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Flat YAML
// ---------------------------------------------------------------------------

// parseYAML decodes a flat mapping. The document node is kept so comments
// and scalar styles survive a rewrite.
func (s *Store) parseYAML(path string, data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return corruptf(path, "parsing YAML: %v", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return corruptf(path, "root must be a mapping")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return corruptf(path, "key %q must map to a plain scalar", k.Value)
		}
		if err := s.append(path, k.Value, v.Value); err != nil {
			return err
		}
	}
	s.node = &doc
	return nil
}

func (s *Store) marshalYAML() ([]byte, error) {
	out, err := yaml.Marshal(s.yamlDoc())
	if err != nil {
		return nil, fmt.Errorf("marshaling YAML: %w", err)
	}
	return out, nil
}

// yamlDoc applies the current values back into the kept document node,
// appending pairs for keys added since load. Fresh stores get a new
// document.
func (s *Store) yamlDoc() *yaml.Node {
	root := s.mappingRoot()
	if root == nil {
		root = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		s.node = &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	}
	present := make(map[string]bool, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		val, ok := s.values[k.Value]
		if !ok {
			continue
		}
		if v.Value != val {
			v.Value = val
			v.Tag = "!!str"
			v.Style = 0
		}
		if val == "" {
			v.Style = yaml.DoubleQuotedStyle
		}
		present[k.Value] = true
	}
	for _, k := range s.keys {
		if !present[k] {
			root.Content = append(root.Content, keyScalar(k), valueScalar(s.values[k]))
		}
	}
	return s.node
}

func (s *Store) mappingRoot() *yaml.Node {
	if s.node == nil || len(s.node.Content) == 0 {
		return nil
	}
	root := s.node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	return root
}

// deleteNodePair drops a key's pair from the kept document, if any.
func (s *Store) deleteNodePair(key string) {
	root := s.mappingRoot()
	if root == nil {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			root.Content = append(root.Content[:i], root.Content[i+2:]...)
			return
		}
	}
}

// renameNodePair relabels a key in place so its position, style and
// comments stay put.
func (s *Store) renameNodePair(oldKey, newKey string) {
	root := s.mappingRoot()
	if root == nil {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == oldKey {
			root.Content[i].Value = newKey
			return
		}
	}
}

func keyScalar(k string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
}

func valueScalar(v string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
	if v == "" {
		n.Style = yaml.DoubleQuotedStyle
	}
	return n
}
