// Package vue extracts hardcoded UI strings from Vue single-file
// components. The <template> block is walked with the x/net/html tokenizer;
// binding and mustache expressions get a shallow JavaScript read to judge
// safety; the <script> block is only searched for existing $t() references.
//
// The html tokenizer has no position API, so spans are reconstructed from
// the raw token bytes and re-anchored by adapter.Relocate before any edit.
package vue

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/keylift/keylift/adapter"
)

// DefaultTranslateFuncs are the call names recognized as existing
// translation references in templates and scripts.
var DefaultTranslateFuncs = []string{"$t", "t", "i18n.t", "this.$t"}

// Options configure the adapter. The zero value scans .vue files, treats
// the shared attribute set as translatable and rewrites candidates to
// $t('key') calls.
type Options struct {
	TranslatableAttrs []string
	TranslateFuncs    []string
	Call              string
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
	return "$t"
}

// Adapter implements adapter.Adapter for Vue single-file components.
type Adapter struct {
	attrs map[string]bool
	funcs map[string]bool
	call  string
	refRe *regexp.Regexp
}

// New builds a Vue adapter from opts.
func New(opts Options) *Adapter {
	funcs := opts.TranslateFuncs
	if len(funcs) == 0 {
		funcs = DefaultTranslateFuncs
	}
	return &Adapter{
		attrs: opts.effectiveAttrs(),
		funcs: opts.effectiveFuncs(),
		call:  opts.effectiveCall(),
		refRe: buildRefRegexp(funcs),
	}
}

func (a *Adapter) ID() string { return "vue" }

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
	return strings.ToLower(filepath.Ext(path)) == ".vue"
}

// Scan walks the component and reports candidates from the template block
// plus translation references from both template and script.
func (a *Adapter) Scan(path string, src []byte) (adapter.ScanResult, error) {
	if !utf8.Valid(src) {
		return adapter.ScanResult{}, fmt.Errorf("%s: not valid UTF-8 text", path)
	}
	w := &walker{a: a, path: path, src: src}
	w.run()
	return w.out, nil
}

// Mutate rewrites the batch. Text nodes become mustache calls, plain
// attributes become bindings, bound literals become calls; spans are
// re-anchored first and unlocatable candidates are skipped.
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
		repl, ok := a.replacement(tc)
		if !ok {
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

func (a *Adapter) replacement(tc adapter.TransformCandidate) (string, bool) {
	switch tc.Construct {
	case adapter.ConstructText:
		return "{{ " + a.call + "(" + adapter.JSQuote(tc.Key) + ") }}", true
	case adapter.ConstructAttribute:
		// title="Hi"  ->  :title="$t('key')"
		eq := strings.IndexByte(tc.RawText, '=')
		if eq < 0 {
			return "", false
		}
		name := strings.TrimSpace(tc.RawText[:eq])
		return ":" + name + `="` + a.call + "(" + adapter.JSQuote(tc.Key) + `)"`, true
	case adapter.ConstructExpression, adapter.ConstructTemplateLiteral:
		// Reuse the replaced literal's quote style so the surrounding
		// attribute quoting stays valid. Keys never contain quotes.
		q := byte('\'')
		if tc.RawText != "" && tc.RawText[0] == '"' {
			q = '"'
		}
		return a.call + "(" + string(q) + tc.Key + string(q) + ")", true
	}
	return "", false
}
