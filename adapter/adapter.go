// Package adapter defines the contract between the extraction pipeline and
// the framework-specific scanners, plus the shared candidate model: what a
// scanner found, where it sits in the file, and how a mutation replaces it.
//
// Adapters parse with whatever fits their framework, so byte positions may
// drift between what a parser reported and what sits in the file (entity
// decoding, tokenizers without position APIs, 0- vs 1-based columns).
// Relocate re-anchors every span against live content before any edit.
package adapter

import (
	"strings"
)

// Construct names the syntactic position a candidate was found in.
type Construct string

const (
	ConstructText            Construct = "text"
	ConstructAttribute       Construct = "attribute"
	ConstructExpression      Construct = "expression"
	ConstructTemplateLiteral Construct = "template-literal"
	ConstructCallArgument    Construct = "call-argument"
)

// Capabilities declares which constructs an adapter understands. Scanners
// must not emit, and Mutate must not touch, constructs outside the set.
type Capabilities struct {
	Text             bool
	Attributes       bool
	Expressions      bool
	TemplateLiterals bool
	CallArguments    bool
}

// Supports reports whether the construct is within the declared set.
func (c Capabilities) Supports(k Construct) bool {
	switch k {
	case ConstructText:
		return c.Text
	case ConstructAttribute:
		return c.Attributes
	case ConstructExpression:
		return c.Expressions
	case ConstructTemplateLiteral:
		return c.TemplateLiterals
	case ConstructCallArgument:
		return c.CallArguments
	}
	return false
}

// Candidate is one hardcoded string a scanner proposes for extraction.
type Candidate struct {
	Framework string // adapter ID that produced it
	File      string
	Line      int // 1-based
	Col       int // byte offset within the line as the scanner counted it
	Start     int // byte span of RawText in the scanned content
	End       int
	RawText   string // exact source bytes a mutation will replace
	Text      string // cleaned user-facing text to key and store
	Construct Construct
	Unsafe    bool
	Reason    string // set when Unsafe: why extraction would change meaning
}

// KeyRef is an existing translation call found in source. References keep
// already-extracted keys alive when stores are reconciled.
type KeyRef struct {
	Key  string
	File string
	Line int
}

// ScanResult is everything a scanner learned from one file.
type ScanResult struct {
	Candidates []Candidate
	Refs       []KeyRef
}

// TransformCandidate is a candidate with its assigned key.
type TransformCandidate struct {
	Candidate
	Key       string
	Default   string // value recorded in the source-locale store
	Namespace string
}

// MutationEdit replaces one byte span. Spans of a batch never overlap.
type MutationEdit struct {
	File        string
	Start       int
	End         int
	Replacement string
}

// Skip records a candidate Mutate could not apply and why.
type Skip struct {
	Candidate Candidate
	Reason    string
}

// MutationResult is the outcome of applying a batch to one file's content.
type MutationResult struct {
	Content   []byte
	DidMutate bool
	Skipped   []Skip
}

// Adapter scans and mutates the files of one framework.
//
// Scan reports candidates and key references found in src; an error means
// the file could not be parsed at all and was skipped. Mutate applies the
// batch to src and returns the new content without writing anything;
// candidates whose spans cannot be re-anchored are skipped, not fatal.
type Adapter interface {
	ID() string
	Capabilities() Capabilities
	CanHandle(path string) bool
	Scan(path string, src []byte) (ScanResult, error)
	Mutate(src []byte, batch []TransformCandidate) (MutationResult, error)
}

// Registry holds adapters in registration order; the first adapter whose
// CanHandle accepts a path wins.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds a registry from adapters in the given order.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// ForPath returns the first adapter that handles path.
func (r *Registry) ForPath(path string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.CanHandle(path) {
			return a, true
		}
	}
	return nil, false
}

// All returns the registered adapters in order.
func (r *Registry) All() []Adapter {
	return r.adapters
}

// JSQuote renders s as a single-quoted JavaScript string literal.
func JSQuote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
