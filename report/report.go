// Package report collects the actionable findings a run produces: parse
// failures, unsafe candidates, sync results, diagnostics. Items carry a
// severity and enough location detail for an editor to jump to.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Severity ranks findings. Errors fail a run; warnings fail it only in
// strict mode.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// MarshalJSON renders the severity as its lowercase name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Kind classifies a finding by what produced it.
type Kind string

const (
	KindParseFailure     Kind = "parse-failure"
	KindUnsafeCandidate  Kind = "unsafe-candidate"
	KindRelocationFailed Kind = "relocation-failed"
	KindKeyCollision     Kind = "key-collision"
	KindStoreCorrupt     Kind = "store-corrupt"
	KindIOFailure        Kind = "io-failure"
	KindOrphanKey        Kind = "orphan-key"
	KindMissingValue     Kind = "missing-translation"
	KindPlaceholderDiff  Kind = "placeholder-mismatch"
	KindStaleValue       Kind = "stale-translation"
	KindLocaleStats      Kind = "locale-stats"
	KindKeyAdded         Kind = "key-added"
	KindKeyRemoved       Kind = "key-removed"
	KindKeyRenamed       Kind = "key-renamed"
)

// Item is one actionable finding.
type Item struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Key      string   `json:"key,omitempty"`
	Locale   string   `json:"locale,omitempty"`
	Message  string   `json:"message"`
}

// Location renders the file:line prefix editors understand, or "" when the
// item has no file attached.
func (it Item) Location() string {
	if it.File == "" {
		return ""
	}
	if it.Line > 0 {
		return fmt.Sprintf("%s:%d", it.File, it.Line)
	}
	return it.File
}

// Collector gathers items from concurrent workers. The zero value is ready
// to use.
type Collector struct {
	mu    sync.Mutex
	items []Item
}

// Add records one item.
func (c *Collector) Add(item Item) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
}

// Infof records an info item with a formatted message.
func (c *Collector) Infof(kind Kind, format string, args ...any) {
	c.Add(Item{Severity: Info, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Items returns a sorted copy of everything collected so far.
func (c *Collector) Items() []Item {
	c.mu.Lock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	c.mu.Unlock()
	Sort(out)
	return out
}

// HasErrors reports whether any collected item is an error.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.Severity == Error {
			return true
		}
	}
	return false
}

// Counts returns how many items were collected per severity.
func (c *Collector) Counts() (info, warnings, errors int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		switch it.Severity {
		case Error:
			errors++
		case Warning:
			warnings++
		default:
			info++
		}
	}
	return info, warnings, errors
}

// Len returns the number of collected items.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Sort orders items deterministically: errors first, then warnings, then
// info; within a severity by file, line, locale, key, kind and message.
// Parallel scans may deliver items in any order; reports must not.
func Sort(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Locale != b.Locale {
			return a.Locale < b.Locale
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
}
