package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/keylift/keylift/localestore"
	"github.com/keylift/keylift/merge"
	"github.com/keylift/keylift/statefile"
)

// fakeTranslator returns canned output per call, recording each batch.
type fakeTranslator struct {
	fn      func(call int, texts []string, target string) ([]string, error)
	calls   int
	batches [][]string
	targets []string
}

func (f *fakeTranslator) Translate(ctx context.Context, texts []string, sourceLocale, targetLocale string) ([]string, error) {
	call := f.calls
	f.calls++
	f.batches = append(f.batches, texts)
	f.targets = append(f.targets, targetLocale)
	return f.fn(call, texts, targetLocale)
}

func upcaseAll(call int, texts []string, target string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.ToUpper(t)
	}
	return out, nil
}

func planFor(locale string, pairs ...string) merge.TranslationPlan {
	var plan merge.TranslationPlan
	for i := 0; i+1 < len(pairs); i += 2 {
		plan.Items = append(plan.Items, merge.TranslationItem{
			Locale: locale,
			Key:    pairs[i],
			Source: pairs[i+1],
			Reason: merge.ReasonMissing,
		})
	}
	return plan
}

func emptyState(t *testing.T) *statefile.File {
	t.Helper()
	state, err := statefile.Load(t.TempDir())
	if err != nil {
		t.Fatalf("loading state: %v", err)
	}
	return state
}

// ---------------------------------------------------------------------------
// Fill
// ---------------------------------------------------------------------------

func TestFill_TranslatesAndMarksState(t *testing.T) {
	plan := planFor("de", "nav.home", "Home", "nav.about", "About us")
	store := localestore.New(localestore.FlatJSON)
	state := emptyState(t)
	tr := &fakeTranslator{fn: upcaseAll}

	res, err := Fill(context.Background(), tr, plan, map[string]*localestore.Store{"de": store}, state, FillOptions{SourceLocale: "en"})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if res.Translated != 2 || res.Failed != 0 || len(res.Errors) != 0 {
		t.Fatalf("result = %+v, want 2 translated", res)
	}
	if v, _ := store.Get("nav.home"); v != "HOME" {
		t.Errorf("nav.home = %q, want HOME", v)
	}
	if v, _ := store.Get("nav.about"); v != "ABOUT US" {
		t.Errorf("nav.about = %q, want ABOUT US", v)
	}
	if _, ok := state.Lookup("de", "nav.home"); !ok {
		t.Error("state has no entry for de/nav.home")
	}
	if state.IsStale("de", "nav.about", "About us") {
		t.Error("freshly marked entry reported stale")
	}
}

func TestFill_WrongLengthFailsChunkWithoutWrites(t *testing.T) {
	plan := planFor("de", "a", "First", "b", "Second")
	store := localestore.New(localestore.FlatJSON)
	state := emptyState(t)
	tr := &fakeTranslator{fn: func(call int, texts []string, target string) ([]string, error) {
		return []string{"only one"}, nil
	}}

	res, err := Fill(context.Background(), tr, plan, map[string]*localestore.Store{"de": store}, state, FillOptions{})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if res.Translated != 0 || res.Failed != 2 {
		t.Fatalf("result = %+v, want 2 failed", res)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Error(), "returned 1 strings for 2 inputs") {
		t.Fatalf("errors = %v", res.Errors)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d keys, want 0 after failed chunk", store.Len())
	}
	if _, ok := state.Lookup("de", "a"); ok {
		t.Error("state recorded entry from failed chunk")
	}
}

func TestFill_ChunksAndReportsProgress(t *testing.T) {
	plan := planFor("de", "k1", "one", "k2", "two", "k3", "three", "k4", "four", "k5", "five")
	store := localestore.New(localestore.FlatJSON)
	tr := &fakeTranslator{fn: upcaseAll}

	var progress []string
	saves := 0
	opts := FillOptions{
		ChunkSize: 2,
		Save:      func(locale string) error { saves++; return nil },
		OnProgress: func(locale string, done, total int) {
			progress = append(progress, fmt.Sprintf("%s %d/%d", locale, done, total))
		},
	}
	res, err := Fill(context.Background(), tr, plan, map[string]*localestore.Store{"de": store}, emptyState(t), opts)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if res.Translated != 5 {
		t.Fatalf("translated = %d, want 5", res.Translated)
	}
	if len(tr.batches) != 3 || len(tr.batches[0]) != 2 || len(tr.batches[2]) != 1 {
		t.Fatalf("batches = %v, want sizes 2,2,1", tr.batches)
	}
	want := []string{"de 2/5", "de 4/5", "de 5/5"}
	if fmt.Sprint(progress) != fmt.Sprint(want) {
		t.Errorf("progress = %v, want %v", progress, want)
	}
	if saves != 3 {
		t.Errorf("saves = %d, want one per chunk", saves)
	}
}

func TestFill_FailedChunkDoesNotStopLaterChunks(t *testing.T) {
	plan := planFor("de", "k1", "one", "k2", "two", "k3", "three")
	store := localestore.New(localestore.FlatJSON)
	tr := &fakeTranslator{fn: func(call int, texts []string, target string) ([]string, error) {
		if call == 1 {
			return nil, errors.New("provider exploded")
		}
		return upcaseAll(call, texts, target)
	}}

	res, err := Fill(context.Background(), tr, plan, map[string]*localestore.Store{"de": store}, emptyState(t), FillOptions{ChunkSize: 1})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if res.Translated != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v, want 2 translated and 1 failed", res)
	}
	if !store.Has("k1") || store.Has("k2") || !store.Has("k3") {
		t.Errorf("store keys = %v, want k1 and k3 only", store.Keys())
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Error(), "provider exploded") {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestFill_LocalesRunSorted(t *testing.T) {
	plan := merge.TranslationPlan{Items: []merge.TranslationItem{
		{Locale: "fr", Key: "k", Source: "one", Reason: merge.ReasonMissing},
		{Locale: "de", Key: "k", Source: "one", Reason: merge.ReasonMissing},
	}}
	stores := map[string]*localestore.Store{
		"de": localestore.New(localestore.FlatJSON),
		"fr": localestore.New(localestore.FlatJSON),
	}
	tr := &fakeTranslator{fn: upcaseAll}

	if _, err := Fill(context.Background(), tr, plan, stores, emptyState(t), FillOptions{}); err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(tr.targets) != 2 || tr.targets[0] != "de" || tr.targets[1] != "fr" {
		t.Errorf("locale order = %v, want [de fr]", tr.targets)
	}
}

func TestFill_MissingStoreFailsLocale(t *testing.T) {
	plan := merge.TranslationPlan{Items: []merge.TranslationItem{
		{Locale: "de", Key: "k", Source: "one", Reason: merge.ReasonMissing},
		{Locale: "fr", Key: "k", Source: "one", Reason: merge.ReasonMissing},
	}}
	store := localestore.New(localestore.FlatJSON)
	tr := &fakeTranslator{fn: upcaseAll}

	res, err := Fill(context.Background(), tr, plan, map[string]*localestore.Store{"de": store}, emptyState(t), FillOptions{})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if res.Translated != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v, want 1 translated and 1 failed", res)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Error(), "no store loaded for locale fr") {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestFill_CanceledContext(t *testing.T) {
	plan := planFor("de", "k", "one")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := &fakeTranslator{fn: upcaseAll}

	res, err := Fill(ctx, tr, plan, map[string]*localestore.Store{"de": localestore.New(localestore.FlatJSON)}, emptyState(t), FillOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if tr.calls != 0 {
		t.Errorf("translator called %d times after cancellation", tr.calls)
	}
	if res.Translated != 0 {
		t.Errorf("result = %+v, want nothing translated", res)
	}
}

func TestFill_SaveErrorAborts(t *testing.T) {
	plan := planFor("de", "k1", "one", "k2", "two")
	tr := &fakeTranslator{fn: upcaseAll}
	opts := FillOptions{
		ChunkSize: 1,
		Save:      func(locale string) error { return errors.New("disk full") },
	}

	_, err := Fill(context.Background(), tr, plan, map[string]*localestore.Store{"de": localestore.New(localestore.FlatJSON)}, emptyState(t), opts)
	if err == nil || !strings.Contains(err.Error(), "saving de") {
		t.Fatalf("err = %v, want saving de", err)
	}
	if tr.calls != 1 {
		t.Errorf("translator called %d times, want abort after first save", tr.calls)
	}
}

// ---------------------------------------------------------------------------
// Estimate / ResolveAPIKey
// ---------------------------------------------------------------------------

func TestEstimate(t *testing.T) {
	texts := []string{"Hello", "Straße"} // 5 + 6 runes
	cost := Estimate(texts, 2, 1)
	if cost.Texts != 4 {
		t.Errorf("Texts = %d, want 4", cost.Texts)
	}
	if cost.Characters != 22 {
		t.Errorf("Characters = %d, want 22", cost.Characters)
	}
	if cost.Requests != 4 {
		t.Errorf("Requests = %d, want 4", cost.Requests)
	}

	cost = Estimate(texts, 1, 0)
	if cost.Requests != 1 {
		t.Errorf("Requests = %d, want 1 with default chunk size", cost.Requests)
	}
}

func TestResolveAPIKey(t *testing.T) {
	for _, name := range APIKeyEnvVars {
		t.Setenv(name, "")
	}

	if got := ResolveAPIKey("explicit"); got != "explicit" {
		t.Errorf("got %q, want explicit flag value", got)
	}
	if got := ResolveAPIKey(""); got != "" {
		t.Errorf("got %q, want empty with no env", got)
	}

	t.Setenv("OPENAI_API_KEY", "from-openai")
	if got := ResolveAPIKey(""); got != "from-openai" {
		t.Errorf("got %q, want from-openai", got)
	}

	t.Setenv("KEYLIFT_API_KEY", "from-keylift")
	if got := ResolveAPIKey(""); got != "from-keylift" {
		t.Errorf("got %q, want KEYLIFT_API_KEY to win", got)
	}
	if got := ResolveAPIKey("explicit"); got != "explicit" {
		t.Errorf("got %q, want explicit to beat env", got)
	}
}
