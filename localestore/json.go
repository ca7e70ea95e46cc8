package localestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Flat JSON
// ---------------------------------------------------------------------------

// parseFlatJSON decodes {"key": "value"} objects with a token walk so the
// key order survives.
func (s *Store) parseFlatJSON(path string, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return corruptf(path, "%v", err)
	}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return corruptf(path, "reading key: %v", err)
		}
		key, ok := kt.(string)
		if !ok {
			return corruptf(path, "expected string key, got %v", kt)
		}
		vt, err := dec.Token()
		if err != nil {
			return corruptf(path, "reading value of %q: %v", key, err)
		}
		value, ok := vt.(string)
		if !ok {
			return corruptf(path, "value of %q is %v, want a string", key, vt)
		}
		if err := s.append(path, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) marshalFlatJSON() []byte {
	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range s.keys {
		b.WriteString("    ")
		b.WriteString(strconv.Quote(k))
		b.WriteString(": ")
		b.WriteString(strconv.Quote(s.values[k]))
		if i < len(s.keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return []byte(b.String())
}

// ---------------------------------------------------------------------------
// Nested JSON
// ---------------------------------------------------------------------------

// parseNestedJSON flattens {"nav": {"home": "Home"}} into dotted keys in
// document order.
func (s *Store) parseNestedJSON(path string, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return corruptf(path, "%v", err)
	}
	return s.flattenObject(dec, path, "")
}

// flattenObject consumes object members up to and including the closing
// brace, prefixing nested keys with their parent path.
func (s *Store) flattenObject(dec *json.Decoder, path, prefix string) error {
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return corruptf(path, "reading key: %v", err)
		}
		key, ok := kt.(string)
		if !ok {
			return corruptf(path, "expected string key, got %v", kt)
		}
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		vt, err := dec.Token()
		if err != nil {
			return corruptf(path, "reading value of %q: %v", full, err)
		}
		switch v := vt.(type) {
		case string:
			if err := s.append(path, full, v); err != nil {
				return err
			}
		case json.Delim:
			if v != '{' {
				return corruptf(path, "value of %q is %v, want a string or object", full, v)
			}
			if err := s.flattenObject(dec, path, full); err != nil {
				return err
			}
		default:
			return corruptf(path, "value of %q is %v, want a string or object", full, vt)
		}
	}
	if _, err := dec.Token(); err != nil {
		return corruptf(path, "unterminated object: %v", err)
	}
	return nil
}

// marshalNestedJSON re-nests dotted keys. A key that is both a leaf and a
// subtree prefix cannot be represented and fails as corruption.
func (s *Store) marshalNestedJSON() ([]byte, error) {
	root := newTreeNode()
	for _, key := range s.keys {
		if err := root.insert(key, key, s.values[key]); err != nil {
			return nil, err
		}
	}
	var b strings.Builder
	root.render(&b, 1)
	return []byte(b.String()), nil
}

// treeNode is an insertion-ordered JSON object under construction.
type treeNode struct {
	order    []string
	children map[string]*treeNode
	leaf     map[string]string
}

func newTreeNode() *treeNode {
	return &treeNode{children: make(map[string]*treeNode), leaf: make(map[string]string)}
}

func (n *treeNode) insert(fullKey, rest, value string) error {
	head, tail, nested := strings.Cut(rest, ".")
	if !nested {
		if _, ok := n.children[head]; ok {
			return corruptf("", "key %q is both a value and a group", fullKey)
		}
		if _, ok := n.leaf[head]; !ok {
			n.order = append(n.order, head)
		}
		n.leaf[head] = value
		return nil
	}
	if _, ok := n.leaf[head]; ok {
		return corruptf("", "key %q nests under an existing value", fullKey)
	}
	child, ok := n.children[head]
	if !ok {
		child = newTreeNode()
		n.children[head] = child
		n.order = append(n.order, head)
	}
	return child.insert(fullKey, tail, value)
}

func (n *treeNode) render(b *strings.Builder, depth int) {
	pad := strings.Repeat("    ", depth)
	b.WriteString("{\n")
	for i, key := range n.order {
		b.WriteString(pad)
		b.WriteString(strconv.Quote(key))
		b.WriteString(": ")
		if child, ok := n.children[key]; ok {
			child.render(b, depth+1)
		} else {
			b.WriteString(strconv.Quote(n.leaf[key]))
		}
		if i < len(n.order)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("    ", depth-1))
	b.WriteByte('}')
	if depth == 1 {
		b.WriteByte('\n')
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	t, err := dec.Token()
	if err != nil {
		return fmt.Errorf("parsing JSON: %v", err)
	}
	if d, ok := t.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %v, got %v", want, t)
	}
	return nil
}
