// Package project locates a frontend project and resolves its keylift
// settings: nearest package.json marks the root, .keylift.yaml overrides,
// and conventional locations fill whatever the config leaves unset.
package project

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/keylift/keylift/localestore"
)

// Framework names reported by detection.
const (
	FrameworkReact = "react"
	FrameworkVue   = "vue"
)

// localesDirCandidates are probed in order when the config names no
// locales directory.
var localesDirCandidates = []string{
	"public/locales",
	"src/locales",
	"locales",
	"src/i18n/locales",
}

// sourceDirCandidates are probed when the config names no source dirs.
var sourceDirCandidates = []string{"src", "app", "components", "pages"}

// Project is a resolved keylift project.
type Project struct {
	// Root is the project root: the nearest directory at or above the
	// starting point containing package.json, else the starting point.
	Root string
	// Framework is react, vue, or empty when package.json names neither.
	Framework string
	// Config is the effective configuration, defaults applied.
	Config Config
	// LocalesDir is the absolute locale store directory.
	LocalesDir string
	// SourceDirs are the absolute directories to scan.
	SourceDirs []string
	// StoreFormat is the resolved store encoding.
	StoreFormat localestore.Format
}

// Detect resolves the project at startDir.
func Detect(startDir string) (*Project, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	root := findPackageRoot(abs)

	cfg, err := LoadConfig(root)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()

	p := &Project{
		Root:      root,
		Framework: detectFramework(root),
		Config:    *cfg,
	}

	if cfg.LocalesDir != "" {
		p.LocalesDir = filepath.Join(root, cfg.LocalesDir)
	} else {
		p.LocalesDir = discoverLocalesDir(root)
	}

	if len(cfg.SourceDirs) > 0 {
		for _, d := range cfg.SourceDirs {
			p.SourceDirs = append(p.SourceDirs, filepath.Join(root, d))
		}
	} else {
		p.SourceDirs = discoverSourceDirs(root)
	}

	p.StoreFormat, err = resolveFormat(cfg.StoreFormat, p.SourceStorePath())
	if err != nil {
		return nil, err
	}
	return p, nil
}

// findPackageRoot walks up from dir looking for package.json.
func findPackageRoot(dir string) string {
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, "package.json")); err == nil {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}

// detectFramework probes package.json dependencies. React wins when both
// are declared; adapters for the other framework still run, detection
// only orders them.
func detectFramework(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return ""
	}
	has := func(name string) bool {
		return gjson.GetBytes(data, "dependencies."+name).Exists() ||
			gjson.GetBytes(data, "devDependencies."+name).Exists()
	}
	switch {
	case has("react"):
		return FrameworkReact
	case has("vue"), has("nuxt"):
		return FrameworkVue
	}
	return ""
}

func discoverLocalesDir(root string) string {
	for _, cand := range localesDirCandidates {
		dir := filepath.Join(root, cand)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	// Nothing exists yet; init and sync create the first candidate.
	return filepath.Join(root, localesDirCandidates[0])
}

func discoverSourceDirs(root string) []string {
	var dirs []string
	for _, cand := range sourceDirCandidates {
		dir := filepath.Join(root, cand)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		dirs = []string{filepath.Join(root, "src")}
	}
	return dirs
}

// resolveFormat prefers the configured format and otherwise sniffs the
// existing source store.
func resolveFormat(configured, sourceStorePath string) (localestore.Format, error) {
	if configured != "" {
		return localestore.ParseFormat(configured)
	}
	if data, err := os.ReadFile(sourceStorePath); err == nil {
		return localestore.DetectFormat(sourceStorePath, data), nil
	}
	// Look for any extension variant of the source store.
	base := strings.TrimSuffix(sourceStorePath, filepath.Ext(sourceStorePath))
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := base + ext
		if data, err := os.ReadFile(path); err == nil {
			return localestore.DetectFormat(path, data), nil
		}
	}
	return localestore.FlatJSON, nil
}

// SourceStorePath returns the source-locale store path.
func (p *Project) SourceStorePath() string {
	return p.StorePath(p.Config.SourceLocale)
}

// StorePath returns the store path for a locale. Existing files keep
// their extension; new ones follow the resolved format.
func (p *Project) StorePath(locale string) string {
	want := filepath.Join(p.LocalesDir, locale+p.StoreFormat.Ext())
	if _, err := os.Stat(want); err == nil {
		return want
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(p.LocalesDir, locale+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return want
}

// TargetLocales returns the configured locales minus the source locale,
// plus any locale that already has a store file, sorted.
func (p *Project) TargetLocales() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(locale string) {
		if locale == "" || locale == p.Config.SourceLocale || seen[locale] {
			return
		}
		seen[locale] = true
		out = append(out, locale)
	}
	for _, l := range p.Config.Locales {
		add(l)
	}
	for _, l := range discoverStoreLocales(p.LocalesDir) {
		add(l)
	}
	sort.Strings(out)
	return out
}

// discoverStoreLocales lists locales that already have a store file.
func discoverStoreLocales(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var locales []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(name)
		switch ext {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		locale := strings.TrimSuffix(name, ext)
		if isLocaleCode(locale) {
			locales = append(locales, locale)
		}
	}
	sort.Strings(locales)
	return locales
}

// isLocaleCode reports whether s looks like a BCP 47 tag of the shapes
// stores are named with: en, de, pt-BR, zh-CN.
func isLocaleCode(s string) bool {
	if len(s) == 2 {
		return isLower(s[0]) && isLower(s[1])
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 2 && len(parts[0]) == 2 && len(parts[1]) >= 2 {
		return isLower(parts[0][0]) && isLower(parts[0][1])
	}
	return false
}

func isLower(b byte) bool { return b >= 'a' && b <= 'z' }
