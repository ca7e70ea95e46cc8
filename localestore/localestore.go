// Package localestore reads and writes per-locale translation stores.
//
// A store is one file per locale: en.json, de.json, ... Three formats are
// supported:
//
//	flat JSON    {"nav.home": "Home"}
//	nested JSON  {"nav": {"home": "Home"}}
//	flat YAML    nav.home: Home
//
// Key order is preserved exactly on round-trip and new keys append at the
// end, so diffs stay reviewable. Empty string values mean untranslated.
package localestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Format identifies the on-disk encoding of a store.
type Format int

const (
	FlatJSON Format = iota
	NestedJSON
	FlatYAML
)

func (f Format) String() string {
	switch f {
	case FlatJSON:
		return "flat-json"
	case NestedJSON:
		return "nested-json"
	case FlatYAML:
		return "flat-yaml"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Ext returns the file extension for the format, dot included.
func (f Format) Ext() string {
	if f == FlatYAML {
		return ".yaml"
	}
	return ".json"
}

// ParseFormat maps a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "flat-json":
		return FlatJSON, nil
	case "nested-json":
		return NestedJSON, nil
	case "flat-yaml", "yaml":
		return FlatYAML, nil
	}
	return 0, fmt.Errorf("unknown store format %q (want flat-json, nested-json or flat-yaml)", s)
}

// CorruptError reports a store that cannot be trusted. Callers must leave
// the file on disk untouched and continue with other locales.
type CorruptError struct {
	Path   string
	Reason string
}

func (e *CorruptError) Error() string {
	if e.Path == "" {
		return "store corrupt: " + e.Reason
	}
	return fmt.Sprintf("store %s corrupt: %s", e.Path, e.Reason)
}

func corruptf(path, format string, args ...any) error {
	return &CorruptError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

// Store holds one locale's key/value pairs in file order. The zero value
// is not usable; call New or Load.
type Store struct {
	mu     sync.Mutex
	format Format
	keys   []string
	values map[string]string
	// node carries the parsed YAML document so comments and scalar styles
	// survive a rewrite. nil for JSON formats and fresh stores.
	node *yaml.Node
}

// New returns an empty store in the given format.
func New(format Format) *Store {
	return &Store{format: format, values: make(map[string]string)}
}

// Load reads a store file, sniffing the format from the extension and,
// for JSON, from the shape of the values. A missing file is not an error:
// it loads as an empty flat JSON store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(DetectFormat(path, nil)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, data, DetectFormat(path, data))
}

// DetectFormat picks the store format for a path, probing data (may be
// nil) to tell nested from flat JSON.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FlatYAML
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err == nil {
		for _, raw := range top {
			if v := strings.TrimSpace(string(raw)); strings.HasPrefix(v, "{") {
				return NestedJSON
			}
		}
	}
	return FlatJSON
}

// Parse decodes data in the given format. path is used in errors only.
func Parse(path string, data []byte, format Format) (*Store, error) {
	s := New(format)
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	var err error
	switch format {
	case FlatJSON:
		err = s.parseFlatJSON(path, data)
	case NestedJSON:
		err = s.parseNestedJSON(path, data)
	case FlatYAML:
		err = s.parseYAML(path, data)
	default:
		err = fmt.Errorf("unknown store format %v", format)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Format returns the store's encoding.
func (s *Store) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Keys returns the keys in file order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Get returns the value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether the key exists.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

// Set stores a value, appending the key at the end when it is new.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Delete removes a key, reporting whether it existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	s.deleteNodePair(key)
	return true
}

// Rename moves a value from oldKey to newKey, keeping its position.
// It reports false when oldKey is missing or newKey already exists.
func (s *Store) Rename(oldKey, newKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[oldKey]; !ok {
		return false
	}
	if _, ok := s.values[newKey]; ok {
		return false
	}
	s.values[newKey] = s.values[oldKey]
	delete(s.values, oldKey)
	for i, k := range s.keys {
		if k == oldKey {
			s.keys[i] = newKey
			break
		}
	}
	s.renameNodePair(oldKey, newKey)
	return true
}

// Values returns a copy of the key/value map.
func (s *Store) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Missing returns keys whose value is empty, in file order.
func (s *Store) Missing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, k := range s.keys {
		if s.values[k] == "" {
			out = append(out, k)
		}
	}
	return out
}

// Stats returns (total, translated) counts.
func (s *Store) Stats() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	translated := 0
	for _, v := range s.values {
		if v != "" {
			translated++
		}
	}
	return len(s.keys), translated
}

// Marshal serializes the store in its format.
func (s *Store) Marshal() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.format {
	case FlatJSON:
		return s.marshalFlatJSON(), nil
	case NestedJSON:
		return s.marshalNestedJSON()
	case FlatYAML:
		return s.marshalYAML()
	}
	return nil, fmt.Errorf("unknown store format %v", s.format)
}

// WriteFile serializes the store and writes it atomically: the bytes land
// in a temp file first and replace the target via rename, so a crashed
// run never leaves a torn store.
func (s *Store) WriteFile(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// append records a parsed pair, rejecting duplicates. Callers hold no lock
// during parse; the store is not shared yet.
func (s *Store) append(path, key, value string) error {
	if _, ok := s.values[key]; ok {
		return corruptf(path, "duplicate key %q", key)
	}
	s.keys = append(s.keys, key)
	s.values[key] = value
	return nil
}
