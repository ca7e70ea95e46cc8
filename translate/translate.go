// Package translate fills queued translation work through a machine
// translation provider. The core never talks to a provider directly; it
// hands a TranslationPlan to Fill, which chunks the work, calls the
// Translator, and applies results to the locale stores chunk by chunk so
// an interrupted run loses at most one chunk.
package translate

import (
	"context"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/keylift/keylift/localestore"
	"github.com/keylift/keylift/merge"
	"github.com/keylift/keylift/statefile"
)

// DefaultChunkSize is how many strings go into one provider call.
const DefaultChunkSize = 25

// Translator turns source-locale strings into target-locale strings.
// result[i] must translate texts[i]; a length mismatch is an error the
// caller treats as a failed chunk.
type Translator interface {
	Translate(ctx context.Context, texts []string, sourceLocale, targetLocale string) ([]string, error)
}

// Cost is a rough work estimate for a translation run, computed before
// any request is sent.
type Cost struct {
	// Texts is the number of strings to translate, all locales counted.
	Texts int
	// Characters is the total source length in runes, all locales counted.
	Characters int
	// Requests is the number of provider calls the run will make.
	Requests int
}

// CostEstimator is implemented by providers that can estimate a run.
type CostEstimator interface {
	EstimateCost(texts []string, targetLocales int) Cost
}

// Estimate computes the cost of translating texts into targetLocales
// locales with the given chunk size (0 means DefaultChunkSize).
func Estimate(texts []string, targetLocales, chunkSize int) Cost {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chars := 0
	for _, t := range texts {
		chars += utf8.RuneCountInString(t)
	}
	chunks := (len(texts) + chunkSize - 1) / chunkSize
	return Cost{
		Texts:      len(texts) * targetLocales,
		Characters: chars * targetLocales,
		Requests:   chunks * targetLocales,
	}
}

// APIKeyEnvVars are checked in order when no key is given explicitly.
var APIKeyEnvVars = []string{"KEYLIFT_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY"}

// ResolveAPIKey returns explicit when set, else the first non-empty
// variable from APIKeyEnvVars. Loading .env files is the caller's job.
func ResolveAPIKey(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range APIKeyEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Plan filling
// ---------------------------------------------------------------------------

// FillOptions control how a translation plan is executed.
type FillOptions struct {
	// SourceLocale is the locale the plan's source texts are written in.
	SourceLocale string
	// ChunkSize is how many strings to translate per call (0 = default).
	ChunkSize int
	// Save persists a locale's store and state after each applied chunk.
	Save func(locale string) error
	// OnProgress is called after each chunk with per-locale progress.
	OnProgress func(locale string, done, total int)
	// OnLog emits log messages during the run.
	OnLog func(format string, args ...any)
}

func (o *FillOptions) effectiveChunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return DefaultChunkSize
}

func (o *FillOptions) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *FillOptions) progress(locale string, done, total int) {
	if o.OnProgress != nil {
		o.OnProgress(locale, done, total)
	}
}

// FillResult summarizes a translation run.
type FillResult struct {
	// Translated counts strings written to stores.
	Translated int
	// Failed counts strings whose chunk errored.
	Failed int
	// Errors holds one error per failed chunk or skipped locale.
	Errors []error
}

// Fill executes plan against the loaded stores. Locales run in sorted
// order; within a locale, chunks run in plan order. A failed chunk is
// recorded and skipped and later chunks still run; nothing from a failed
// chunk reaches a store. Fill returns an error only for cancellation or
// a failed save.
func Fill(ctx context.Context, tr Translator, plan merge.TranslationPlan, stores map[string]*localestore.Store, state *statefile.File, opts FillOptions) (*FillResult, error) {
	res := &FillResult{}
	byLocale := plan.ByLocale()

	locales := make([]string, 0, len(byLocale))
	for locale := range byLocale {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	chunkSize := opts.effectiveChunkSize()
	for _, locale := range locales {
		items := byLocale[locale]
		store := stores[locale]
		if store == nil {
			res.Failed += len(items)
			res.Errors = append(res.Errors, fmt.Errorf("no store loaded for locale %s", locale))
			continue
		}

		done := 0
		for start := 0; start < len(items); start += chunkSize {
			end := min(start+chunkSize, len(items))
			chunk := items[start:end]

			if err := ctx.Err(); err != nil {
				return res, err
			}

			texts := make([]string, len(chunk))
			for i, item := range chunk {
				texts[i] = item.Source
			}

			out, err := tr.Translate(ctx, texts, opts.SourceLocale, locale)
			if err == nil && len(out) != len(texts) {
				err = fmt.Errorf("translator returned %d strings for %d inputs", len(out), len(texts))
			}
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Failed += len(chunk)
				res.Errors = append(res.Errors, fmt.Errorf("%s: %w", locale, err))
				opts.log("chunk failed for %s: %v", locale, err)
				done += len(chunk)
				opts.progress(locale, done, len(items))
				continue
			}

			for i, item := range chunk {
				store.Set(item.Key, out[i])
				state.Mark(locale, item.Key, item.Source)
			}
			res.Translated += len(chunk)
			done += len(chunk)

			if opts.Save != nil {
				if err := opts.Save(locale); err != nil {
					return res, fmt.Errorf("saving %s: %w", locale, err)
				}
			}
			opts.progress(locale, done, len(items))
		}
	}
	return res, nil
}
