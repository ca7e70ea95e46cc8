// Package check audits the locale stores against the source store and the
// translation state, reporting orphans, gaps, placeholder drift and stale
// translations without modifying anything.
package check

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/keylift/keylift/localestore"
	"github.com/keylift/keylift/report"
	"github.com/keylift/keylift/statefile"
)

// Run inspects every target store and returns the findings, sorted the way
// reports render them. Orphan keys are errors; everything else that needs a
// human is a warning, and per-locale completion counts come back as info.
func Run(source *localestore.Store, targets map[string]*localestore.Store, state *statefile.File) []report.Item {
	var items []report.Item

	locales := make([]string, 0, len(targets))
	for l := range targets {
		locales = append(locales, l)
	}
	sort.Strings(locales)

	srcKeys := source.Keys()
	for _, locale := range locales {
		target := targets[locale]

		for _, key := range target.Keys() {
			if !source.Has(key) {
				items = append(items, report.Item{
					Severity: report.Error,
					Kind:     report.KindOrphanKey,
					Locale:   locale,
					Key:      key,
					Message:  "not present in the source store",
				})
			}
		}

		translated := 0
		for _, key := range srcKeys {
			srcVal, _ := source.Get(key)
			val, _ := target.Get(key)
			if val == "" {
				items = append(items, report.Item{
					Severity: report.Warning,
					Kind:     report.KindMissingValue,
					Locale:   locale,
					Key:      key,
					Message:  "missing translation",
				})
				continue
			}
			translated++
			if msg, ok := placeholderDiff(srcVal, val); ok {
				items = append(items, report.Item{
					Severity: report.Warning,
					Kind:     report.KindPlaceholderDiff,
					Locale:   locale,
					Key:      key,
					Message:  msg,
				})
			}
			if state.IsStale(locale, key, srcVal) {
				items = append(items, report.Item{
					Severity: report.Warning,
					Kind:     report.KindStaleValue,
					Locale:   locale,
					Key:      key,
					Message:  "source text changed since last translation",
				})
			}
		}

		items = append(items, report.Item{
			Severity: report.Info,
			Kind:     report.KindLocaleStats,
			Locale:   locale,
			Message:  statsLine(len(srcKeys), translated),
		})
	}

	report.Sort(items)
	return items
}

func statsLine(keys, translated int) string {
	missing := keys - translated
	pct := 100
	if keys > 0 {
		pct = 100 * translated / keys
	}
	return fmt.Sprintf("%d keys, %d translated, %d missing, %d%% complete", keys, translated, missing, pct)
}

// ---------------------------------------------------------------------------
// Placeholders
// ---------------------------------------------------------------------------

var (
	doubleBraceRe = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)
	singleBraceRe = regexp.MustCompile(`\{([\w.]+)\}`)
	printfVerbRe  = regexp.MustCompile(`%(?:%|[-+ #0]*[0-9]*(?:\.[0-9]+)?[a-zA-Z])`)
)

// placeholderDiff compares the placeholder multisets of a source text and
// its translation. Translators reorder placeholders freely; they must not
// drop, invent or retype them.
func placeholderDiff(src, dst string) (string, bool) {
	a := placeholders(src)
	b := placeholders(dst)
	if sameMultiset(a, b) {
		return "", false
	}
	return fmt.Sprintf("placeholders differ: source has %s, translation has %s", listOrNone(a), listOrNone(b)), true
}

// placeholders extracts {{name}}, {name} and printf-verb tokens. Double
// braces are masked before the single-brace pass so {{name}} is not also
// counted as {name}; "%%" is a literal percent, not a verb.
func placeholders(s string) []string {
	var out []string

	masked := []byte(s)
	for _, m := range doubleBraceRe.FindAllStringSubmatchIndex(s, -1) {
		out = append(out, "{{"+s[m[2]:m[3]]+"}}")
		for i := m[0]; i < m[1]; i++ {
			masked[i] = ' '
		}
	}
	ms := string(masked)

	for _, m := range singleBraceRe.FindAllStringSubmatchIndex(ms, -1) {
		out = append(out, "{"+ms[m[2]:m[3]]+"}")
	}
	for _, v := range printfVerbRe.FindAllString(ms, -1) {
		if v == "%%" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	for _, t := range b {
		counts[t]--
		if counts[t] < 0 {
			return false
		}
	}
	return true
}

func listOrNone(tokens []string) string {
	if len(tokens) == 0 {
		return "none"
	}
	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
