// Package react extracts hardcoded UI strings from React sources. It scans
// JSX text nodes, translatable attributes and braced expressions without a
// full JavaScript parse: a small lexer tracks strings, comments, templates
// and JSX nesting, which is enough to find candidates, judge their safety
// and rewrite their exact byte spans.
package react

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/keylift/keylift/adapter"
)

// DefaultExtensions are the file types scanned unless configured otherwise.
// Plain .js/.ts files are left alone: JSX detection there is guesswork.
var DefaultExtensions = []string{".jsx", ".tsx"}

// DefaultTranslateFuncs are the call names recognized as existing
// translation references.
var DefaultTranslateFuncs = []string{"t", "i18n.t", "i18next.t"}

// Options configure the adapter. The zero value scans .jsx/.tsx files,
// treats the shared attribute set as translatable and rewrites candidates
// to t('key') calls.
type Options struct {
	Extensions        []string
	TranslatableAttrs []string
	TranslateFuncs    []string
	Call              string // call name inserted by mutations
}

func (o Options) effectiveExtensions() []string {
	if len(o.Extensions) > 0 {
		return o.Extensions
	}
	return DefaultExtensions
}

func (o Options) effectiveAttrs() map[string]bool {
	attrs := o.TranslatableAttrs
	if len(attrs) == 0 {
		attrs = adapter.DefaultTranslatableAttrs
	}
	set := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		set[strings.ToLower(a)] = true
	}
	return set
}

func (o Options) effectiveFuncs() map[string]bool {
	funcs := o.TranslateFuncs
	if len(funcs) == 0 {
		funcs = DefaultTranslateFuncs
	}
	set := make(map[string]bool, len(funcs))
	for _, f := range funcs {
		set[f] = true
	}
	return set
}

func (o Options) effectiveCall() string {
	if o.Call != "" {
		return o.Call
	}
	return "t"
}

// Adapter implements adapter.Adapter for React sources.
type Adapter struct {
	exts  []string
	attrs map[string]bool
	funcs map[string]bool
	call  string
}

// New builds a React adapter from opts.
func New(opts Options) *Adapter {
	return &Adapter{
		exts:  opts.effectiveExtensions(),
		attrs: opts.effectiveAttrs(),
		funcs: opts.effectiveFuncs(),
		call:  opts.effectiveCall(),
	}
}

func (a *Adapter) ID() string { return "react" }

func (a *Adapter) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{
		Text:             true,
		Attributes:       true,
		Expressions:      true,
		TemplateLiterals: true,
		CallArguments:    true,
	}
}

func (a *Adapter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range a.exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Scan lexes src and reports extraction candidates and existing translation
// references. The lexer is lenient about malformed JSX; only non-text input
// is a parse failure.
func (a *Adapter) Scan(path string, src []byte) (adapter.ScanResult, error) {
	if !utf8.Valid(src) {
		return adapter.ScanResult{}, fmt.Errorf("%s: not valid UTF-8 text", path)
	}
	s := newScanner(a, path, src)
	s.scanModule()
	return s.out, nil
}

// Mutate rewrites the batch into translation calls. Every span is
// re-anchored first; candidates that cannot be located are skipped and the
// rest of the batch still applies.
func (a *Adapter) Mutate(src []byte, batch []adapter.TransformCandidate) (adapter.MutationResult, error) {
	var edits []adapter.MutationEdit
	var skipped []adapter.Skip
	for _, tc := range batch {
		if tc.Unsafe {
			skipped = append(skipped, adapter.Skip{Candidate: tc.Candidate, Reason: "unsafe candidate"})
			continue
		}
		if !a.Capabilities().Supports(tc.Construct) {
			skipped = append(skipped, adapter.Skip{Candidate: tc.Candidate, Reason: fmt.Sprintf("construct %q not supported", tc.Construct)})
			continue
		}
		start, end, ok := adapter.Relocate(src, tc.Candidate)
		if !ok {
			skipped = append(skipped, adapter.Skip{Candidate: tc.Candidate, Reason: "original span not found in current content"})
			continue
		}
		call := a.call + "(" + adapter.JSQuote(tc.Key) + ")"
		var repl string
		switch tc.Construct {
		case adapter.ConstructText, adapter.ConstructAttribute:
			repl = "{" + call + "}"
		case adapter.ConstructExpression, adapter.ConstructTemplateLiteral:
			repl = call
		default:
			skipped = append(skipped, adapter.Skip{Candidate: tc.Candidate, Reason: fmt.Sprintf("no rewrite for construct %q", tc.Construct)})
			continue
		}
		edits = append(edits, adapter.MutationEdit{File: tc.File, Start: start, End: end, Replacement: repl})
	}
	if len(edits) == 0 {
		return adapter.MutationResult{Content: src, Skipped: skipped}, nil
	}
	out, err := adapter.ApplyEdits(src, edits)
	if err != nil {
		return adapter.MutationResult{}, fmt.Errorf("applying edits: %w", err)
	}
	return adapter.MutationResult{Content: out, DidMutate: true, Skipped: skipped}, nil
}
