// Package transform runs the extraction pipeline over a source tree:
// discover files, scan them in parallel, assign keys in a sequential
// reduce, then rewrite each file's safe candidates in place.
package transform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keylift/keylift/adapter"
	"github.com/keylift/keylift/keygen"
	"github.com/keylift/keylift/report"
)

// skipDirs are directory names never worth scanning.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
	".next":        true,
	".nuxt":        true,
	"vendor":       true,
}

// Options tune a pipeline run.
type Options struct {
	// Roots are the directories to scan. Default: ["src"].
	Roots []string
	// Concurrency bounds the parallel scan workers.
	// Default: NumCPU, capped at 8.
	Concurrency int
	// DryRun scans and assigns keys but writes nothing.
	DryRun bool
	// Ignore adds names or globs to the skip set, matched against the
	// base name of directories and files.
	Ignore []string
}

func (o Options) effectiveRoots() []string {
	if len(o.Roots) > 0 {
		return o.Roots
	}
	return []string{"src"}
}

func (o Options) effectiveConcurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return min(runtime.NumCPU(), 8)
}

// Pipeline orchestrates the adapters over a project tree.
type Pipeline struct {
	registry *adapter.Registry
	opts     Options
}

// New builds a pipeline scanning with the given adapters.
func New(registry *adapter.Registry, opts Options) *Pipeline {
	return &Pipeline{registry: registry, opts: opts}
}

// Outcome is everything a run produced for the sync step and the report.
type Outcome struct {
	// Files lists every scanned file, sorted.
	Files []string
	// Accepted are the safe candidates with their assigned keys, in
	// deterministic file-then-scan order.
	Accepted []adapter.TransformCandidate
	// Refs are the translation calls already present in source.
	Refs []adapter.KeyRef
	// Mutated lists the files actually rewritten.
	Mutated []string
	// DryRun records whether writes were suppressed.
	DryRun bool
}

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

// Discover walks the roots and returns every file some adapter handles,
// sorted and deduplicated. Unreadable entries are skipped.
func (p *Pipeline) Discover() ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, root := range p.opts.effectiveRoots() {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if info.IsDir() {
				if skipDirs[info.Name()] || p.ignored(info.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if p.ignored(info.Name()) {
				return nil
			}
			if _, ok := p.registry.ForPath(path); ok && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (p *Pipeline) ignored(name string) bool {
	for _, pattern := range p.opts.Ignore {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

type scanOutcome struct {
	adapter adapter.Adapter
	content []byte
	result  adapter.ScanResult
	err     error
	ioErr   bool
}

// Run executes discovery, the parallel scan, the sequential reduce and the
// mutation pass. gen assigns keys and must be pre-seeded with the existing
// store contents; findings land in rep. Only context cancellation aborts
// the run; per-file failures become report items and the run continues.
func (p *Pipeline) Run(ctx context.Context, gen *keygen.Generator, rep *report.Collector) (*Outcome, error) {
	files, err := p.Discover()
	if err != nil {
		return nil, err
	}
	out := &Outcome{Files: files, DryRun: p.opts.DryRun}
	if len(files) == 0 {
		return out, nil
	}

	// Map: one worker per file, results indexed so order never depends on
	// scheduling.
	results := make([]scanOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(p.opts.effectiveConcurrency(), len(files)))
	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			a, _ := p.registry.ForPath(path)
			res := scanOutcome{adapter: a}
			res.content, res.err = readFileRetry(path)
			if res.err != nil {
				res.ioErr = true
			} else {
				res.result, res.err = a.Scan(path, res.content)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	// Reduce: sequential, deterministic file order. Unsafe candidates turn
	// into warnings, duplicate spans collapse, keys are assigned.
	batches := make(map[string][]adapter.TransformCandidate, len(files))
	for i, path := range files {
		res := results[i]
		if res.err != nil {
			kind := report.KindParseFailure
			if res.ioErr {
				kind = report.KindIOFailure
			}
			rep.Add(report.Item{
				Severity: report.Error,
				Kind:     kind,
				File:     path,
				Message:  res.err.Error(),
			})
			continue
		}
		out.Refs = append(out.Refs, res.result.Refs...)

		spans := make(map[[2]int]bool)
		for _, c := range res.result.Candidates {
			span := [2]int{c.Start, c.End}
			if spans[span] {
				continue
			}
			spans[span] = true

			if c.Unsafe {
				rep.Add(report.Item{
					Severity: report.Warning,
					Kind:     report.KindUnsafeCandidate,
					File:     c.File,
					Line:     c.Line,
					Message:  c.Reason,
				})
				continue
			}
			key, err := gen.Key(path, c.Text)
			if err != nil {
				rep.Add(report.Item{
					Severity: report.Error,
					Kind:     report.KindKeyCollision,
					File:     c.File,
					Line:     c.Line,
					Message:  err.Error(),
				})
				continue
			}
			tc := adapter.TransformCandidate{
				Candidate: c,
				Key:       key,
				Default:   c.Text,
				Namespace: keygen.Namespace(path),
			}
			out.Accepted = append(out.Accepted, tc)
			batches[path] = append(batches[path], tc)
		}
	}

	if p.opts.DryRun {
		return out, nil
	}

	// Mutate: sequential writes. Cancellation stops before the next file;
	// a write in flight always completes.
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		batch := batches[path]
		if len(batch) == 0 {
			continue
		}
		res := results[i]
		mres, err := res.adapter.Mutate(res.content, batch)
		if err != nil {
			rep.Add(report.Item{
				Severity: report.Error,
				Kind:     report.KindParseFailure,
				File:     path,
				Message:  err.Error(),
			})
			continue
		}
		for _, skip := range mres.Skipped {
			rep.Add(report.Item{
				Severity: report.Warning,
				Kind:     report.KindRelocationFailed,
				File:     skip.Candidate.File,
				Line:     skip.Candidate.Line,
				Message:  skip.Reason,
			})
		}
		if !mres.DidMutate {
			continue
		}
		if err := writeFileRetry(path, mres.Content); err != nil {
			rep.Add(report.Item{
				Severity: report.Error,
				Kind:     report.KindIOFailure,
				File:     path,
				Message:  err.Error(),
			})
			continue
		}
		out.Mutated = append(out.Mutated, path)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// File IO
// ---------------------------------------------------------------------------

const ioAttempts = 3

func readFileRetry(path string) ([]byte, error) {
	var data []byte
	var err error
	for attempt := 0; attempt < ioAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
		data, err = os.ReadFile(path)
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("reading %s: %w", path, err)
}

// writeFileRetry replaces path atomically, keeping its permissions.
func writeFileRetry(path string, content []byte) error {
	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	var err error
	for attempt := 0; attempt < ioAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
		if err = writeFileAtomic(path, content, perm); err == nil {
			return nil
		}
	}
	return fmt.Errorf("writing %s: %w", path, err)
}

func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".keylift-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
