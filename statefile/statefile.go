// Package statefile implements keylift.lock — a sidecar that remembers,
// per locale and key, the MD5 of the source text a translation was made
// from and when it was recorded. This enables incremental work: a
// translation whose recorded hash no longer matches the current source
// text is stale and gets re-queued, everything else is left alone.
//
// The file lives next to .keylift.yaml as keylift.lock.
package statefile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the default state file name.
const FileName = "keylift.lock"

// Version is the state file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Entry records one translated key in one locale.
type Entry struct {
	// Hash is the MD5 hex digest of the source text the translation
	// was made from.
	Hash string `yaml:"hash"`
	// UpdatedAt is the RFC 3339 time the entry was recorded.
	UpdatedAt string `yaml:"updatedAt"`
}

// File represents the keylift.lock file structure.
type File struct {
	Version int                         `yaml:"version"`
	Entries map[string]map[string]Entry `yaml:"entries"` // locale -> key -> entry

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the state file from the given directory. A missing file
// loads as an empty state.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	f := &File{
		Version: Version,
		Entries: make(map[string]map[string]Entry),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.path = path
	if f.Entries == nil {
		f.Entries = make(map[string]map[string]Entry)
	}
	return f, nil
}

// Save writes the state file to disk via a temp file and rename.
func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path == "" {
		return fmt.Errorf("state file path not set")
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling state file: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".lock-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// Path returns the state file path.
func (f *File) Path() string {
	return f.path
}

// ---------------------------------------------------------------------------
// Entry operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a source text.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Lookup returns the recorded entry for a locale and key.
func (f *File) Lookup(locale, key string) (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.Entries[locale][key]
	return e, ok
}

// IsStale reports whether a recorded translation was made from a source
// text that has since changed. Keys with no entry are not stale; they
// were never translated.
func (f *File) IsStale(locale, key, sourceText string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.Entries[locale][key]
	if !ok {
		return false
	}
	return e.Hash != Hash(sourceText)
}

// Mark records that locale's key was translated from sourceText now.
func (f *File) Mark(locale, key, sourceText string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mark(locale, key, sourceText)
}

// MarkBatch records several keys at once. entries maps key to the source
// text its translation was made from.
func (f *File) MarkBatch(locale string, entries map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, text := range entries {
		f.mark(locale, key, text)
	}
}

func (f *File) mark(locale, key, sourceText string) {
	if f.Entries[locale] == nil {
		f.Entries[locale] = make(map[string]Entry)
	}
	f.Entries[locale][key] = Entry{
		Hash:      Hash(sourceText),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Rename moves every locale's entry from oldKey to newKey, so a renamed
// key keeps its translation history instead of being re-translated.
func (f *File) Rename(oldKey, newKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, keys := range f.Entries {
		if e, ok := keys[oldKey]; ok {
			keys[newKey] = e
			delete(keys, oldKey)
		}
	}
}

// DeleteKey drops a key from every locale.
func (f *File) DeleteKey(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, keys := range f.Entries {
		delete(keys, key)
	}
}

// Clean removes entries for a locale that are no longer in currentKeys,
// so removed keys do not accumulate.
func (f *File) Clean(locale string, currentKeys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.Entries[locale]
	if existing == nil {
		return
	}
	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}
	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// RemoveLocale drops all entries for a locale.
func (f *File) RemoveLocale(locale string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Entries, locale)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of locales and total entries.
func (f *File) Stats() (locales, keys int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	locales = len(f.Entries)
	for _, m := range f.Entries {
		keys += len(m)
	}
	return
}

// Locales returns the tracked locales, sorted.
func (f *File) Locales() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Entries))
	for l := range f.Entries {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
