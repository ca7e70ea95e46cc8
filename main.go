// keylift — extracts hardcoded UI strings from React and Vue sources into
// locale stores and keeps the stores translated.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/keylift/keylift/adapter"
	"github.com/keylift/keylift/check"
	"github.com/keylift/keylift/i18n"
	"github.com/keylift/keylift/keygen"
	"github.com/keylift/keylift/langmeta"
	"github.com/keylift/keylift/localestore"
	"github.com/keylift/keylift/merge"
	"github.com/keylift/keylift/project"
	"github.com/keylift/keylift/react"
	"github.com/keylift/keylift/report"
	"github.com/keylift/keylift/statefile"
	"github.com/keylift/keylift/transform"
	"github.com/keylift/keylift/translate"
	"github.com/keylift/keylift/vue"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

// colorEnabled gates every ANSI sequence. NO_COLOR wins; otherwise color
// stays on only when stderr is a terminal.
var colorEnabled = os.Getenv("NO_COLOR") == "" && isatty.IsTerminal(os.Stderr.Fd())

func paint(color, s string) string {
	if !colorEnabled {
		return s
	}
	return color + s + colorReset
}

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, paint(colorBlue, "[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, paint(colorGreen, "[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, paint(colorYellow, "[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, paint(colorRed, "[ERROR]")+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "keylift",
		Short: "Extract hardcoded UI strings into locale stores and translate them",
		Long: `keylift — i18n extraction and translation for React and Vue projects.

Finds hardcoded user-facing strings in JSX/TSX and Vue single-file
components, replaces them with stable translation keys, and keeps
per-locale key/value stores in sync with what the source references.
Missing translations can be filled through any OpenAI-compatible
endpoint.

Commands:
  status      Show project info and translation statistics
  init        Write a starter .keylift.yaml and locale scaffolding
  extract     Scan sources, rewrite safe strings, sync stores
  sync        Reconcile stores with the keys referenced in source
  check       Report store drift without modifying anything
  translate   Fill missing translations using an AI provider

Providers (translate):
  openai    api.openai.com (default)
  groq      api.groq.com/openai/v1
  ollama    localhost:11434/v1 — local, no API key
  custom    any OpenAI-compatible endpoint via --base-url`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newStatusCmd(),
		newInitCmd(),
		newExtractCmd(),
		newSyncCmd(),
		newCheckCmd(),
		newTranslateCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("keylift version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// status (read-only: project info + translation stats)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project info and translation statistics",
		Long: `Show the detected project layout and per-locale translation progress.

Displays the framework, store format, configured locales, and how much
of the source store each target locale covers. Does not modify any files.`,
		Run: func(cmd *cobra.Command, args []string) {
			runStatus()
		},
	}

	return cmd
}

func runStatus() {
	proj := detectProject()

	fmt.Fprintf(os.Stderr, "\n%s\n", paint(colorBlue, i18n.T("Project")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	fmt.Fprintf(os.Stderr, "  Root:       %s\n", proj.Root)

	framework := proj.Framework
	if framework == "" {
		framework = "none detected"
	}
	fmt.Fprintf(os.Stderr, "  Framework:  %s\n", framework)

	if fileExists(filepath.Join(proj.Root, project.ConfigFileName)) {
		fmt.Fprintf(os.Stderr, "  Config:     %s\n", project.ConfigFileName)
	} else {
		fmt.Fprintf(os.Stderr, "  Config:     none (defaults)\n")
	}

	fmt.Fprintf(os.Stderr, "  Stores:     %s (%s)\n", relPath(proj.Root, proj.LocalesDir), proj.StoreFormat)
	fmt.Fprintf(os.Stderr, "  Sources:    %s\n", strings.Join(relPaths(proj.Root, proj.SourceDirs), ", "))
	fmt.Fprintf(os.Stderr, "  Source:     %s\n", proj.Config.SourceLocale)

	targets := proj.TargetLocales()
	if len(targets) > 0 {
		fmt.Fprintf(os.Stderr, "  Targets:    %s\n", strings.Join(targets, ", "))
	} else {
		fmt.Fprintf(os.Stderr, "  Targets:    none configured\n")
	}

	fmt.Fprintln(os.Stderr)

	showTranslationStatus(proj, targets)
	printSuggestedCommands(proj)
}

func showTranslationStatus(proj *project.Project, targets []string) {
	source, err := loadStore(proj, proj.Config.SourceLocale)
	if err != nil {
		logError("Reading source store: %v", err)
		return
	}
	total := source.Len()

	fmt.Fprintf(os.Stderr, "%s\n", paint(colorBlue, i18n.T("Translation Status")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	if total == 0 {
		logInfo("Source store is empty. Run 'keylift extract' to populate it.")
		fmt.Fprintln(os.Stderr)
		return
	}

	fmt.Fprintf(os.Stderr, "  Source keys (%s): %d\n\n", proj.Config.SourceLocale, total)

	width := langColumnWidth(targets)
	for _, locale := range targets {
		store, err := loadStore(proj, locale)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %s\n", langCell(locale, width), paint(colorRed, "corrupt store"))
			continue
		}
		translated := 0
		for _, key := range source.Keys() {
			if v, _ := store.Get(key); v != "" {
				translated++
			}
		}
		percent := translated * 100 / total
		fmt.Fprintf(os.Stderr, "  %s %s  %d/%d\n", langCell(locale, width), progressBar(percent, 20), translated, total)
	}

	if state, err := statefile.Load(proj.Root); err == nil {
		if locales, keys := state.Stats(); keys > 0 {
			fmt.Fprintf(os.Stderr, "\n  Tracked: %d keys across %d locales (%s)\n", keys, locales, filepath.Base(state.Path()))
		}
	}

	fmt.Fprintln(os.Stderr)
}

func printSuggestedCommands(proj *project.Project) {
	fmt.Fprintf(os.Stderr, "%s\n", paint(colorBlue, i18n.T("Suggested Commands")))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintln(os.Stderr)

	if !fileExists(filepath.Join(proj.Root, project.ConfigFileName)) {
		fmt.Fprintf(os.Stderr, "  # Write a starter config and locale scaffolding\n")
		fmt.Fprintf(os.Stderr, "  keylift init\n\n")
	}

	fmt.Fprintf(os.Stderr, "  # Extract hardcoded strings and sync stores\n")
	fmt.Fprintf(os.Stderr, "  keylift extract\n\n")

	fmt.Fprintf(os.Stderr, "  # Preview what a sync would change\n")
	fmt.Fprintf(os.Stderr, "  keylift sync --dry-run\n\n")

	fmt.Fprintf(os.Stderr, "  # Fill missing translations\n")
	fmt.Fprintf(os.Stderr, "  keylift translate --provider openai\n\n")
}

// ---------------------------------------------------------------------------
// init (starter config + locale scaffolding)
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .keylift.yaml and locale scaffolding",
		Long: `Create a commented starter configuration and the locale store layout.

Refuses to overwrite an existing config. The locales directory and an
empty source store are created when missing, so the first extract has a
place to write.`,
		Run: func(cmd *cobra.Command, args []string) {
			runInit()
		},
	}

	return cmd
}

func runInit() {
	proj := detectProject()

	path, err := project.WriteStarterConfig(proj.Root)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	logSuccess("Created %s", relPath(proj.Root, path))

	// Re-detect so the scaffolding follows the config just written.
	proj = detectProject()

	if err := os.MkdirAll(proj.LocalesDir, 0755); err != nil {
		logError("Creating %s: %v", proj.LocalesDir, err)
		os.Exit(1)
	}

	srcPath := proj.SourceStorePath()
	if !fileExists(srcPath) {
		if err := localestore.New(proj.StoreFormat).WriteFile(srcPath); err != nil {
			logError("Creating %s: %v", srcPath, err)
			os.Exit(1)
		}
		logSuccess("Created %s", relPath(proj.Root, srcPath))
	}

	fmt.Fprintln(os.Stderr)
	printSuggestedCommands(proj)
}

// ---------------------------------------------------------------------------
// extract (scan + rewrite + sync)
// ---------------------------------------------------------------------------

func newExtractCmd() *cobra.Command {
	var (
		dryRun  bool
		strict  bool
		jobs    int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Scan sources, rewrite safe strings, and sync locale stores",
		Long: `Scan the source tree for hardcoded user-facing strings, replace the
safe ones with translation calls, and reconcile the locale stores.

Strings whose extraction would change program behavior (conditional
text, ambiguous interpolations) are reported instead of rewritten.
Every finding lands in the report; the exit code is 1 when any error
was found, and --strict promotes warnings to failures.

Examples:
  # Rewrite sources and update stores
  keylift extract

  # See what would change without touching anything
  keylift extract --dry-run

  # Fail CI on unsafe strings too
  keylift extract --strict`,
		Run: func(cmd *cobra.Command, args []string) {
			runExtract(extractArgs{dryRun: dryRun, strict: strict, jobs: jobs, jsonOut: jsonOut})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan and plan without writing anything")
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors for the exit code")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Parallel scan workers (0 = number of CPUs, capped at 8)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print findings as JSON on stdout")

	return cmd
}

type extractArgs struct {
	dryRun  bool
	strict  bool
	jobs    int
	jsonOut bool
}

func runExtract(a extractArgs) {
	proj := detectProject()

	if !a.dryRun {
		lock := acquireRunLock(proj)
		defer lock.Release()
	}

	rep := &report.Collector{}

	source, err := loadStore(proj, proj.Config.SourceLocale)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	targets := loadTargetStores(proj, rep)
	state := loadState(proj)

	gen := newGenerator(proj)
	seedGenerator(gen, source, targets)

	jobs := a.jobs
	if jobs <= 0 {
		jobs = proj.Config.Concurrency
	}
	pipeline := transform.New(newRegistry(proj), transform.Options{
		Roots:       proj.SourceDirs,
		Concurrency: jobs,
		DryRun:      a.dryRun,
		Ignore:      proj.Config.Ignore,
	})

	ctx, cancel := signalContext("Interrupted, finishing the current file...")
	defer cancel()

	logInfo("%s", i18n.T("Scanning sources..."))
	out, runErr := pipeline.Run(ctx, gen, rep)
	if runErr != nil && (out == nil || ctx.Err() == nil) {
		logError("%v", runErr)
		os.Exit(1)
	}
	interrupted := runErr != nil

	// A scan-phase interrupt yields no candidates and no references; a
	// sync against that would treat every existing key as orphaned.
	if interrupted && len(out.Accepted) == 0 && len(out.Refs) == 0 {
		logWarning("Interrupted before the scan finished, stores left untouched")
		os.Exit(0)
	}

	logInfo("Scanned %d files", len(out.Files))
	if !a.dryRun && len(out.Mutated) > 0 {
		logInfo("Rewrote %d files", len(out.Mutated))
	}

	// An empty scan of a populated store means the source dirs are
	// wrong, not that every string disappeared.
	if len(out.Files) == 0 && source.Len() > 0 {
		logWarning("No source files found under %s, stores left untouched",
			strings.Join(relPaths(proj.Root, proj.SourceDirs), ", "))
		finishReport(rep.Items(), a.jsonOut, a.strict)
		return
	}

	extracted, refKeys := planInputs(out)
	opts := merge.Options{RenameThreshold: proj.Config.RenameThreshold}

	if a.dryRun {
		plan := merge.Compute(source, extracted, refKeys, opts)
		items := rep.Items()
		if a.jsonOut {
			renderItemsJSON(items)
		} else {
			renderItems(items)
			renderPlanDetail(plan)
		}
		summarizePlan(plan)
		logInfo("Dry run: nothing was written")
		exitForItems(items, a.strict)
		return
	}

	plan, tplan := merge.Sync(source, targets, extracted, refKeys, state, opts)
	if err := persistStores(proj, source, targets, state, !plan.Empty()); err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	items := rep.Items()
	if a.jsonOut {
		renderItemsJSON(items)
	} else {
		renderItems(items)
	}
	summarizePlan(plan)
	if len(tplan.Items) > 0 {
		logInfo("%d strings queued for translation (run 'keylift translate')", len(tplan.Items))
	}

	if interrupted {
		logWarning("Interrupted, progress saved")
		os.Exit(0)
	}
	logSuccess("%s", i18n.T("Extract complete!"))
	exitForItems(items, a.strict)
}

// ---------------------------------------------------------------------------
// sync (reconcile stores without rewriting sources)
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var (
		dryRun  bool
		strict  bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile locale stores with the keys referenced in source",
		Long: `Scan the source tree without rewriting it and bring the locale stores
in line: add keys the source references, drop keys nothing references,
and carry translations across renamed keys.

A removed/added pair whose source texts are similar enough is treated
as a rename; existing translations follow the key instead of being
retranslated. Use --dry-run to print the plan without applying it.

Examples:
  # Apply the reconciliation
  keylift sync

  # Print the plan, renames with confidence, change nothing
  keylift sync --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runSync(syncArgs{dryRun: dryRun, strict: strict, jsonOut: jsonOut})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without applying it")
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors for the exit code")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print findings as JSON on stdout")

	return cmd
}

type syncArgs struct {
	dryRun  bool
	strict  bool
	jsonOut bool
}

func runSync(a syncArgs) {
	proj := detectProject()

	if !a.dryRun {
		lock := acquireRunLock(proj)
		defer lock.Release()
	}

	rep := &report.Collector{}

	source, err := loadStore(proj, proj.Config.SourceLocale)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	targets := loadTargetStores(proj, rep)
	state := loadState(proj)

	gen := newGenerator(proj)
	seedGenerator(gen, source, targets)

	// DryRun here means the pipeline never rewrites source files; the
	// scan still yields the candidates and references the plan needs.
	pipeline := transform.New(newRegistry(proj), transform.Options{
		Roots:       proj.SourceDirs,
		Concurrency: proj.Config.Concurrency,
		DryRun:      true,
		Ignore:      proj.Config.Ignore,
	})

	ctx, cancel := signalContext("Interrupted, stopping the scan...")
	defer cancel()

	logInfo("%s", i18n.T("Scanning sources..."))
	out, runErr := pipeline.Run(ctx, gen, rep)
	if runErr != nil {
		if ctx.Err() != nil {
			logWarning("Interrupted before the scan finished, stores left untouched")
			os.Exit(0)
		}
		logError("%v", runErr)
		os.Exit(1)
	}

	if len(out.Files) == 0 && source.Len() > 0 {
		logWarning("No source files found under %s, stores left untouched",
			strings.Join(relPaths(proj.Root, proj.SourceDirs), ", "))
		finishReport(rep.Items(), a.jsonOut, a.strict)
		return
	}

	extracted, refKeys := planInputs(out)
	opts := merge.Options{RenameThreshold: proj.Config.RenameThreshold}

	if a.dryRun {
		plan := merge.Compute(source, extracted, refKeys, opts)
		items := rep.Items()
		if a.jsonOut {
			renderItemsJSON(items)
		} else {
			renderItems(items)
			renderPlanDetail(plan)
		}
		summarizePlan(plan)
		exitForItems(items, a.strict)
		return
	}

	plan, tplan := merge.Sync(source, targets, extracted, refKeys, state, opts)
	if err := persistStores(proj, source, targets, state, !plan.Empty()); err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	items := rep.Items()
	if a.jsonOut {
		renderItemsJSON(items)
	} else {
		renderItems(items)
	}
	summarizePlan(plan)
	if len(tplan.Items) > 0 {
		logInfo("%d strings queued for translation (run 'keylift translate')", len(tplan.Items))
	}
	logSuccess("%s", i18n.T("Sync complete!"))
	exitForItems(items, a.strict)
}

// ---------------------------------------------------------------------------
// check (diagnostics only)
// ---------------------------------------------------------------------------

func newCheckCmd() *cobra.Command {
	var (
		strict  bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report store drift without modifying anything",
		Long: `Run read-only diagnostics over the locale stores: orphaned keys,
missing translations, placeholder mismatches against the source text,
and values gone stale since their last translation.

The exit code is 1 when any error was found; --strict fails on
warnings too. Suitable for CI.`,
		Run: func(cmd *cobra.Command, args []string) {
			runCheck(checkArgs{strict: strict, jsonOut: jsonOut})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors for the exit code")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print findings as JSON on stdout")

	return cmd
}

type checkArgs struct {
	strict  bool
	jsonOut bool
}

func runCheck(a checkArgs) {
	proj := detectProject()

	rep := &report.Collector{}

	source, err := loadStore(proj, proj.Config.SourceLocale)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	targets := loadTargetStores(proj, rep)
	state := loadState(proj)

	items := append(rep.Items(), check.Run(source, targets, state)...)
	report.Sort(items)

	finishReport(items, a.jsonOut, a.strict)
}

// finishReport renders items and applies the exit contract.
func finishReport(items []report.Item, jsonOut, strict bool) {
	if jsonOut {
		renderItemsJSON(items)
	} else {
		renderItems(items)
	}
	exitForItems(items, strict)
}

// ---------------------------------------------------------------------------
// translate (fill missing translations via an AI provider)
// ---------------------------------------------------------------------------

// providerBaseURLs maps provider presets to endpoints. Every entry speaks
// the OpenAI chat-completions shape.
var providerBaseURLs = map[string]string{
	"openai": translate.DefaultBaseURL,
	"groq":   "https://api.groq.com/openai/v1",
	"ollama": "http://localhost:11434/v1",
}

func newTranslateCmd() *cobra.Command {
	var (
		provider string
		model    string
		apiKey   string
		baseURL  string
		locales  string

		chunkSize int
		dryRun    bool

		// Network
		timeout    time.Duration
		proxy      string
		maxRetries int
		rps        float64
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Fill missing translations using an AI provider",
		Long: `Translate the queued plan: every key whose target value is empty or
whose source text changed since it was last translated.

Stores are saved after each chunk, so an interrupted run keeps its
progress. A response with the wrong number of strings fails that chunk
without writing anything from it.

Examples:
  # Fill every gap via OpenAI (reads OPENAI_API_KEY or KEYLIFT_API_KEY)
  keylift translate --provider openai

  # Groq, specific locales only
  keylift translate --provider groq --model llama-3.3-70b-versatile --locales de,fr

  # Local Ollama server, no API key
  keylift translate --provider ollama --model llama3.2

  # Show what would be translated and what it costs
  keylift translate --provider openai --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runTranslate(translateArgs{
				provider: provider, model: model, apiKey: apiKey,
				baseURL: baseURL, locales: locales,
				chunkSize: chunkSize, dryRun: dryRun,
				timeout: timeout, proxy: proxy,
				maxRetries: maxRetries, rps: rps,
			})
		},
	}

	// Provider selection
	cmd.Flags().StringVar(&provider, "provider", "openai", "AI provider: openai, groq, ollama, custom")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default depends on provider)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or KEYLIFT_API_KEY / OPENAI_API_KEY env var)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Custom API base URL (required with --provider custom)")

	// Target selection
	cmd.Flags().StringVar(&locales, "locales", "", "Locales to translate (comma-separated, default: all with gaps)")

	// Translation behavior
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Strings per API request (0 = default)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated without calling the provider")

	// Network
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Retries on rate limits and server errors (0 = default)")
	cmd.Flags().Float64Var(&rps, "rps", 0, "Requests per second (0 = unpaced)")

	// Provider completion
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"openai\tapi.openai.com — API key required",
			"groq\tGroq Cloud — API key required",
			"ollama\tlocal Ollama server — no API key",
			"custom\tany OpenAI-compatible endpoint via --base-url",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	// Model completion (provider-aware)
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		p, _ := cmd.Flags().GetString("provider")
		switch p {
		case "", "openai":
			return []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"}, cobra.ShellCompDirectiveNoFileComp
		case "groq":
			return []string{"llama-3.3-70b-versatile", "mixtral-8x7b-32768"}, cobra.ShellCompDirectiveNoFileComp
		case "ollama":
			return []string{"llama3.2", "qwen2.5", "mistral"}, cobra.ShellCompDirectiveNoFileComp
		default:
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
	})

	return cmd
}

type translateArgs struct {
	provider, model, apiKey, baseURL string
	locales                          string
	chunkSize                        int
	dryRun                           bool
	timeout                          time.Duration
	proxy                            string
	maxRetries                       int
	rps                              float64
}

func runTranslate(a translateArgs) {
	proj := detectProject()

	// A project-level .env may carry the provider key; flags and real
	// environment variables still win.
	_ = godotenv.Load(filepath.Join(proj.Root, ".env"))

	key := translate.ResolveAPIKey(a.apiKey)

	baseURL, err := resolveBaseURL(a.provider, a.baseURL)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if err := validateProvider(a.provider, a.model, key); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	model := a.model
	if model == "" {
		model = translate.DefaultModel
	}

	rep := &report.Collector{}

	source, err := loadStore(proj, proj.Config.SourceLocale)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	targets := loadTargetStores(proj, rep)
	state := loadState(proj)

	hadErrors := false
	for _, it := range rep.Items() {
		logError("%s: %s", it.Locale, it.Message)
		hadErrors = true
	}

	if a.locales != "" {
		requested := filterOutLang(strings.Split(a.locales, ","), proj.Config.SourceLocale)
		keep := intersectLanguages(sortedLocales(targets), requested)
		targets = pickLocales(targets, keep)
	}

	plan := merge.PlanTranslations(source, targets, state)
	if len(plan.Items) == 0 {
		logSuccess("%s", i18n.T("Nothing to translate."))
		if hadErrors {
			os.Exit(1)
		}
		return
	}

	byLocale := plan.ByLocale()

	if a.dryRun {
		var cost translate.Cost
		for _, locale := range sortedLocales(targets) {
			items := byLocale[locale]
			if len(items) == 0 {
				continue
			}
			missing, stale := 0, 0
			texts := make([]string, len(items))
			for i, it := range items {
				texts[i] = it.Source
				if it.Reason == merge.ReasonStale {
					stale++
				} else {
					missing++
				}
			}
			logInfo("%s (%s): %d missing, %d stale", locale, langmeta.Name(locale), missing, stale)
			c := translate.Estimate(texts, 1, a.chunkSize)
			cost.Texts += c.Texts
			cost.Characters += c.Characters
			cost.Requests += c.Requests
		}
		logInfo("Estimated: %d strings, %d characters, %d requests", cost.Texts, cost.Characters, cost.Requests)
		return
	}

	lock := acquireRunLock(proj)
	defer lock.Release()

	prov := translate.NewProvider(translate.Options{
		BaseURL:           baseURL,
		APIKey:            key,
		Model:             model,
		Timeout:           a.timeout,
		MaxRetries:        a.maxRetries,
		RequestsPerSecond: a.rps,
		Proxy:             a.proxy,
		OnLog: func(format string, args ...any) {
			logInfo(format, args...)
		},
	})

	ctx, cancel := signalContext("Interrupted, saving progress...")
	defer cancel()

	logInfo("Provider: %s, Model: %s", a.provider, model)
	logInfo("Translating %d strings across %d locales", len(plan.Items), len(byLocale))

	res, err := translate.Fill(ctx, prov, plan, targets, state, translate.FillOptions{
		SourceLocale: proj.Config.SourceLocale,
		ChunkSize:    a.chunkSize,
		Save: func(locale string) error {
			if err := targets[locale].WriteFile(proj.StorePath(locale)); err != nil {
				return err
			}
			return state.Save()
		},
		OnProgress: func(locale string, done, total int) {
			logInfo("  %s: %d/%d", locale, done, total)
		},
		OnLog: func(format string, args ...any) {
			logInfo(format, args...)
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			logWarning("Translation interrupted, partial progress saved")
			os.Exit(0)
		}
		logError("%v", err)
		os.Exit(1)
	}

	for _, ferr := range res.Errors {
		logError("%v", ferr)
	}
	if res.Failed > 0 || hadErrors {
		logWarning("Translated %d strings, %d failed", res.Translated, res.Failed)
		os.Exit(1)
	}

	logSuccess("%s", i18n.T("Translation complete!"))
	logInfo("Translated %d strings", res.Translated)
}

// resolveBaseURL maps a provider preset to its endpoint. An explicit
// --base-url always wins.
func resolveBaseURL(provider, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if url, ok := providerBaseURLs[provider]; ok {
		return url, nil
	}
	if provider == "custom" {
		return "", fmt.Errorf("provider 'custom' requires --base-url")
	}
	return "", fmt.Errorf("unknown provider %q (expected openai, groq, ollama, or custom)", provider)
}

func validateProvider(provider, model, key string) error {
	if model == "" && provider != "openai" {
		return fmt.Errorf("--model is required for provider '%s'", provider)
	}
	switch provider {
	case "openai", "groq":
		if key == "" {
			return fmt.Errorf("provider '%s' requires an API key\n\n"+
				"Pass --api-key or set one of: %s",
				provider, strings.Join(translate.APIKeyEnvVars, ", "))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Report rendering
// ---------------------------------------------------------------------------

// renderItems prints one line per finding on stderr, errors first.
func renderItems(items []report.Item) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr)
	for _, it := range items {
		label := paint(severityColor(it.Severity), fmt.Sprintf("%-7s", it.Severity))

		var parts []string
		if loc := it.Location(); loc != "" {
			parts = append(parts, loc)
		}
		if it.Locale != "" {
			parts = append(parts, it.Locale)
		}
		if it.Key != "" {
			parts = append(parts, it.Key)
		}
		prefix := strings.Join(parts, " ")
		if prefix != "" {
			prefix += ": "
		}

		fmt.Fprintf(os.Stderr, "  %s %-22s %s%s\n", label, it.Kind, prefix, it.Message)
	}
	fmt.Fprintln(os.Stderr)

	var info, warnings, errors int
	for _, it := range items {
		switch it.Severity {
		case report.Error:
			errors++
		case report.Warning:
			warnings++
		default:
			info++
		}
	}
	logInfo("Findings: %d errors, %d warnings, %d info", errors, warnings, info)
}

// renderItemsJSON prints the item list as indented JSON on stdout.
func renderItemsJSON(items []report.Item) {
	if items == nil {
		items = []report.Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		logError("Encoding report: %v", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func severityColor(s report.Severity) string {
	switch s {
	case report.Error:
		return colorRed
	case report.Warning:
		return colorYellow
	default:
		return colorBlue
	}
}

// exitForItems implements the exit contract: errors always fail the run,
// warnings fail it only under --strict.
func exitForItems(items []report.Item, strict bool) {
	for _, it := range items {
		if it.Severity == report.Error || (strict && it.Severity == report.Warning) {
			os.Exit(1)
		}
	}
}

// ---------------------------------------------------------------------------
// Plan rendering
// ---------------------------------------------------------------------------

// renderPlanDetail lists every planned change, renames with confidence.
func renderPlanDetail(plan merge.Plan) {
	if plan.Empty() {
		return
	}
	fmt.Fprintln(os.Stderr)
	for _, add := range plan.Added {
		fmt.Fprintf(os.Stderr, "  %s %s = %q\n", paint(colorGreen, "+"), add.Key, add.Default)
	}
	for _, r := range plan.Renamed {
		fmt.Fprintf(os.Stderr, "  %s %s -> %s (%.2f)\n", paint(colorYellow, "~"), r.From, r.To, r.Confidence)
	}
	for _, key := range plan.Removed {
		fmt.Fprintf(os.Stderr, "  %s %s\n", paint(colorRed, "-"), key)
	}
	fmt.Fprintln(os.Stderr)
}

// summarizePlan logs what a sync changed.
func summarizePlan(plan merge.Plan) {
	if plan.Empty() {
		logInfo("%s", i18n.T("Everything up to date."))
		return
	}
	if n := len(plan.Added); n > 0 {
		logInfo(i18n.N("%d key added", "%d keys added", n), n)
	}
	if n := len(plan.Removed); n > 0 {
		logInfo(i18n.N("%d key removed", "%d keys removed", n), n)
	}
	if n := len(plan.Renamed); n > 0 {
		logInfo(i18n.N("%d key renamed", "%d keys renamed", n), n)
		for _, r := range plan.Renamed {
			fmt.Fprintf(os.Stderr, "  %s -> %s (%.2f)\n", r.From, r.To, r.Confidence)
		}
	}
}

// planInputs converts a pipeline outcome into sync inputs.
func planInputs(out *transform.Outcome) ([]merge.Extracted, []string) {
	var extracted []merge.Extracted
	for _, tc := range out.Accepted {
		extracted = append(extracted, merge.Extracted{Key: tc.Key, Default: tc.Default})
	}
	var refKeys []string
	for _, ref := range out.Refs {
		refKeys = append(refKeys, ref.Key)
	}
	return extracted, refKeys
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func detectProject() *project.Project {
	proj, err := project.Detect(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	return proj
}

func acquireRunLock(proj *project.Project) *project.RunLock {
	lock, err := project.AcquireRunLock(proj.Root)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	return lock
}

// newRegistry builds the adapter set. The detected framework's adapter
// goes first; detection orders adapters, it never excludes any.
func newRegistry(proj *project.Project) *adapter.Registry {
	attrs := proj.Config.TranslatableAttributes
	r := react.New(react.Options{TranslatableAttrs: attrs})
	v := vue.New(vue.Options{TranslatableAttrs: attrs})
	if proj.Framework == project.FrameworkVue {
		return adapter.NewRegistry(v, r)
	}
	return adapter.NewRegistry(r, v)
}

func newGenerator(proj *project.Project) *keygen.Generator {
	gen := keygen.New(proj.Config.KeyPrefix)
	if proj.Config.HashLength > 0 {
		gen.SetHashLength(proj.Config.HashLength)
	}
	return gen
}

// seedGenerator claims every existing key so new assignments cannot
// collide. The source store is seeded last; dedupe-by-value must match
// against source texts, not target translations.
func seedGenerator(gen *keygen.Generator, source *localestore.Store, targets map[string]*localestore.Store) {
	for _, locale := range sortedLocales(targets) {
		gen.Seed(targets[locale].Values())
	}
	gen.Seed(source.Values())
}

// loadStore reads one locale store, returning an empty store of the
// project format when the file does not exist yet.
func loadStore(proj *project.Project, locale string) (*localestore.Store, error) {
	path := proj.StorePath(locale)
	if !fileExists(path) {
		return localestore.New(proj.StoreFormat), nil
	}
	return localestore.Load(path)
}

// loadTargetStores loads every target locale. A corrupt store becomes an
// error item and its locale is left out, so nothing rewrites it.
func loadTargetStores(proj *project.Project, rep *report.Collector) map[string]*localestore.Store {
	targets := make(map[string]*localestore.Store)
	for _, locale := range proj.TargetLocales() {
		store, err := loadStore(proj, locale)
		if err != nil {
			rep.Add(report.Item{
				Severity: report.Error,
				Kind:     report.KindStoreCorrupt,
				Locale:   locale,
				File:     relPath(proj.Root, proj.StorePath(locale)),
				Message:  err.Error(),
			})
			continue
		}
		targets[locale] = store
	}
	return targets
}

func loadState(proj *project.Project) *statefile.File {
	state, err := statefile.Load(proj.Root)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	return state
}

// persistStores writes the source store, every loaded target store and
// the state sidecar when the plan changed something. Target files that
// do not exist yet are created even for an empty plan, so configured
// locales always get a store.
func persistStores(proj *project.Project, source *localestore.Store, targets map[string]*localestore.Store, state *statefile.File, dirty bool) error {
	if dirty {
		if err := source.WriteFile(proj.SourceStorePath()); err != nil {
			return fmt.Errorf("writing %s: %w", proj.SourceStorePath(), err)
		}
	}
	for _, locale := range sortedLocales(targets) {
		path := proj.StorePath(locale)
		if !dirty && fileExists(path) {
			continue
		}
		if err := targets[locale].WriteFile(path); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if dirty {
		if err := state.Save(); err != nil {
			return err
		}
	}
	return nil
}

func pickLocales(stores map[string]*localestore.Store, keep []string) map[string]*localestore.Store {
	out := make(map[string]*localestore.Store, len(keep))
	for _, locale := range keep {
		if store, ok := stores[locale]; ok {
			out[locale] = store
		}
	}
	return out
}

func sortedLocales(stores map[string]*localestore.Store) []string {
	out := make([]string, 0, len(stores))
	for locale := range stores {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// signalContext cancels on SIGINT or SIGTERM, logging msg once.
func signalContext(msg string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logWarning("%s", msg)
		cancel()
	}()

	return ctx, cancel
}

// ---------------------------------------------------------------------------
// Display helpers
// ---------------------------------------------------------------------------

// progressBar renders a fixed-width bar like "██░░  50%". The bar is
// red below 50%, yellow below 100%, green at 100%.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	color := colorGreen
	if percent < 50 {
		color = colorRed
	} else if percent < 100 {
		color = colorYellow
	}
	return paint(color, bar) + fmt.Sprintf(" %3d%%", percent)
}

// flagFromRegion maps a two-letter region code to its emoji flag.
func flagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	r := strings.ToUpper(region)
	a, b := rune(r[0]), rune(r[1])
	if a < 'A' || a > 'Z' || b < 'A' || b > 'Z' {
		return ""
	}
	return string(rune(0x1F1E6+a-'A')) + string(rune(0x1F1E6+b-'A'))
}

// langFlag returns the emoji flag for a locale code, falling back to the
// region subtag when the registry has no entry.
func langFlag(lang string) string {
	if flag := langmeta.Flag(lang); flag != "" {
		return flag
	}
	norm := strings.ReplaceAll(lang, "_", "-")
	if i := strings.IndexByte(norm, '-'); i >= 0 {
		return flagFromRegion(norm[i+1:])
	}
	return ""
}

// langColumnWidth returns the widest locale code, for column alignment.
func langColumnWidth(langs []string) int {
	width := 0
	for _, lang := range langs {
		if len(lang) > width {
			width = len(lang)
		}
	}
	return width
}

// langCell pads a locale code to width and prefixes its flag when known.
func langCell(lang string, width int) string {
	flag := langFlag(lang)
	if flag == "" {
		flag = "  "
	}
	return fmt.Sprintf("%s %-*s", flag, width, lang)
}

// intersectLanguages filters available down to the requested list,
// preserving request order. Entries are trimmed; unknown ones drop out.
func intersectLanguages(available, requested []string) []string {
	have := make(map[string]bool, len(available))
	for _, lang := range available {
		have[lang] = true
	}
	var out []string
	for _, lang := range requested {
		lang = strings.TrimSpace(lang)
		if have[lang] {
			out = append(out, lang)
		}
	}
	return out
}

// filterOutLang removes every occurrence of lang, preserving order.
func filterOutLang(langs []string, lang string) []string {
	var out []string
	for _, l := range langs {
		if l != lang {
			out = append(out, l)
		}
	}
	return out
}

// fileExists returns true if the file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// relPath renders path relative to root for display. Paths outside the
// root stay absolute.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func relPaths(root string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = relPath(root, p)
	}
	return out
}
