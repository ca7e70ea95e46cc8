// Package merge reconciles extraction results with the locale stores.
//
// A sync run compares the keys the scanners found (plus keys still
// referenced by translation calls) against the source store, producing a
// plan of added, removed, renamed and unchanged keys. Suspicious pairs in
// added x removed — a removed key whose text closely matches an added
// key's text — are promoted to renames so existing translations survive
// key churn. The plan is pure data; Apply performs it.
package merge

import (
	"sort"

	"github.com/keylift/keylift/humanize"
	"github.com/keylift/keylift/localestore"
	"github.com/keylift/keylift/statefile"
)

// DefaultRenameThreshold is the minimum normalized similarity for a
// removed/added pair to be treated as a rename.
const DefaultRenameThreshold = 0.82

// Extracted is one accepted candidate from a scan: the key it was
// assigned and the source-locale text it carries.
type Extracted struct {
	Key     string
	Default string
}

// Addition is a key the sync will create, with its source value.
type Addition struct {
	Key     string
	Default string
}

// Rename is a removed/added pair promoted by the similarity check.
// Default is the source text under the new key.
type Rename struct {
	From       string
	To         string
	Default    string
	Confidence float64
}

// Plan describes what a sync would change, relative to the source store.
type Plan struct {
	Added     []Addition
	Removed   []string
	Renamed   []Rename
	Unchanged []string
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Added) == 0 && len(p.Removed) == 0 && len(p.Renamed) == 0
}

// Options tune the sync.
type Options struct {
	// RenameThreshold overrides DefaultRenameThreshold when > 0.
	RenameThreshold float64
}

func (o Options) effectiveThreshold() float64 {
	if o.RenameThreshold > 0 {
		return o.RenameThreshold
	}
	return DefaultRenameThreshold
}

// ---------------------------------------------------------------------------
// Plan computation
// ---------------------------------------------------------------------------

// Compute builds the sync plan against the source store. extracted is in
// scan order; refKeys are keys referenced by existing translation calls,
// which count as desired even when no candidate produced them. A ref-only
// key missing from the store carries no source text, so its addition is
// valued with a humanized rendering of the key.
func Compute(source *localestore.Store, extracted []Extracted, refKeys []string, opts Options) Plan {
	desired := make(map[string]bool)
	defaults := make(map[string]string)
	var desiredOrder []string // first-seen scan order
	for _, e := range extracted {
		if !desired[e.Key] {
			desired[e.Key] = true
			desiredOrder = append(desiredOrder, e.Key)
			defaults[e.Key] = e.Default
		}
	}
	for _, k := range refKeys {
		if !desired[k] {
			desired[k] = true
			desiredOrder = append(desiredOrder, k)
			defaults[k] = humanize.FromKey(k)
		}
	}

	var plan Plan
	for _, k := range source.Keys() {
		if desired[k] {
			plan.Unchanged = append(plan.Unchanged, k)
		} else {
			plan.Removed = append(plan.Removed, k)
		}
	}
	for _, k := range desiredOrder {
		if !source.Has(k) {
			plan.Added = append(plan.Added, Addition{Key: k, Default: defaults[k]})
		}
	}

	promoteRenames(&plan, source, opts.effectiveThreshold())
	return plan
}

// promoteRenames moves matching removed/added pairs into plan.Renamed.
// Resolution is deterministic: highest similarity first, then smallest
// edit distance, then lexically smallest keys.
func promoteRenames(plan *Plan, source *localestore.Store, threshold float64) {
	type pair struct {
		removed string
		added   string
		text    string
		sim     float64
		dist    int
	}
	var pairs []pair
	for _, removed := range plan.Removed {
		oldText, _ := source.Get(removed)
		if oldText == "" {
			continue
		}
		for _, a := range plan.Added {
			if a.Default == "" {
				continue
			}
			dist := levenshtein(oldText, a.Default)
			sim := similarity(oldText, a.Default, dist)
			if sim >= threshold {
				pairs = append(pairs, pair{removed: removed, added: a.Key, text: a.Default, sim: sim, dist: dist})
			}
		}
	}
	if len(pairs) == 0 {
		return
	}

	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.sim != b.sim {
			return a.sim > b.sim
		}
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.removed != b.removed {
			return a.removed < b.removed
		}
		return a.added < b.added
	})

	claimedRemoved := make(map[string]bool)
	claimedAdded := make(map[string]bool)
	for _, p := range pairs {
		if claimedRemoved[p.removed] || claimedAdded[p.added] {
			continue
		}
		claimedRemoved[p.removed] = true
		claimedAdded[p.added] = true
		plan.Renamed = append(plan.Renamed, Rename{From: p.removed, To: p.added, Default: p.text, Confidence: p.sim})
	}
	sort.Slice(plan.Renamed, func(i, j int) bool { return plan.Renamed[i].From < plan.Renamed[j].From })

	var added []Addition
	for _, a := range plan.Added {
		if !claimedAdded[a.Key] {
			added = append(added, a)
		}
	}
	plan.Added = added

	var removed []string
	for _, r := range plan.Removed {
		if !claimedRemoved[r] {
			removed = append(removed, r)
		}
	}
	plan.Removed = removed
}

// ---------------------------------------------------------------------------
// Similarity
// ---------------------------------------------------------------------------

func similarity(a, b string, dist int) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(max)
}

// levenshtein computes the edit distance between two strings by rune,
// with the usual two-row table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// ---------------------------------------------------------------------------
// Apply
// ---------------------------------------------------------------------------

// Apply performs the plan on the source store, every target store, and
// the state file. After apply every target key exists in the source
// store, renamed keys keep their translations and history, and unchanged
// keys are untouched.
func Apply(plan Plan, source *localestore.Store, targets map[string]*localestore.Store, state *statefile.File) {
	for _, r := range plan.Renamed {
		source.Rename(r.From, r.To)
		source.Set(r.To, r.Default)
		for _, t := range targets {
			t.Rename(r.From, r.To)
		}
		state.Rename(r.From, r.To)
	}

	for _, k := range plan.Removed {
		source.Delete(k)
		for _, t := range targets {
			t.Delete(k)
		}
		state.DeleteKey(k)
	}

	for _, a := range plan.Added {
		source.Set(a.Key, a.Default)
	}

	srcKeys := source.Keys()
	for locale, t := range targets {
		for _, k := range srcKeys {
			if !t.Has(k) {
				t.Set(k, "")
			}
		}
		for _, k := range t.Keys() {
			if !source.Has(k) {
				t.Delete(k)
			}
		}
		state.Clean(locale, srcKeys)
	}
}

// ---------------------------------------------------------------------------
// Translation plan
// ---------------------------------------------------------------------------

// Reasons a key lands in the translation plan.
const (
	ReasonMissing = "missing"
	ReasonStale   = "stale"
)

// TranslationItem is one key in one locale that needs translator work.
type TranslationItem struct {
	Locale string
	Key    string
	Source string
	Reason string
}

// TranslationPlan queues the work a translate run would perform. Items
// are ordered by locale, then source store order.
type TranslationPlan struct {
	Items []TranslationItem
}

// ByLocale groups the items per locale, preserving order.
func (p TranslationPlan) ByLocale() map[string][]TranslationItem {
	out := make(map[string][]TranslationItem)
	for _, it := range p.Items {
		out[it.Locale] = append(out[it.Locale], it)
	}
	return out
}

// PlanTranslations lists, for every target locale, the keys whose value
// is empty (missing) or whose recorded source hash no longer matches the
// source text (stale). Keys with an empty source value are skipped; there
// is nothing to translate from.
func PlanTranslations(source *localestore.Store, targets map[string]*localestore.Store, state *statefile.File) TranslationPlan {
	locales := make([]string, 0, len(targets))
	for l := range targets {
		locales = append(locales, l)
	}
	sort.Strings(locales)

	var plan TranslationPlan
	for _, locale := range locales {
		t := targets[locale]
		for _, key := range source.Keys() {
			src, _ := source.Get(key)
			if src == "" {
				continue
			}
			val, _ := t.Get(key)
			switch {
			case val == "":
				plan.Items = append(plan.Items, TranslationItem{Locale: locale, Key: key, Source: src, Reason: ReasonMissing})
			case state.IsStale(locale, key, src):
				plan.Items = append(plan.Items, TranslationItem{Locale: locale, Key: key, Source: src, Reason: ReasonStale})
			}
		}
	}
	return plan
}

// Sync is Compute followed by Apply followed by PlanTranslations.
func Sync(source *localestore.Store, targets map[string]*localestore.Store, extracted []Extracted, refKeys []string, state *statefile.File, opts Options) (Plan, TranslationPlan) {
	plan := Compute(source, extracted, refKeys, opts)
	Apply(plan, source, targets, state)
	return plan, PlanTranslations(source, targets, state)
}
