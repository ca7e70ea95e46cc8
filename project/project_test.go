package project

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/keylift/keylift/localestore"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for missing file, got %+v", cfg)
	}
}

func TestLoadConfigEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), "")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected empty config, got nil")
	}
}

func TestLoadConfigFull(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), `
sourceLocale: en
locales: [de, fr, pt-BR]
localesDir: public/locales
sourceDirs: [src, app]
storeFormat: nested-json
translatableAttributes: [title, alt]
renameThreshold: 0.9
keyPrefix: app
hashLength: 8
concurrency: 4
ignore: ["*.stories.tsx"]
`)

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SourceLocale != "en" {
		t.Errorf("SourceLocale = %q", cfg.SourceLocale)
	}
	if want := []string{"de", "fr", "pt-BR"}; !reflect.DeepEqual(cfg.Locales, want) {
		t.Errorf("Locales = %v, want %v", cfg.Locales, want)
	}
	if cfg.StoreFormat != "nested-json" {
		t.Errorf("StoreFormat = %q", cfg.StoreFormat)
	}
	if cfg.RenameThreshold != 0.9 {
		t.Errorf("RenameThreshold = %v", cfg.RenameThreshold)
	}
	if cfg.HashLength != 8 {
		t.Errorf("HashLength = %d", cfg.HashLength)
	}
	if cfg.KeyPrefix != "app" {
		t.Errorf("KeyPrefix = %q", cfg.KeyPrefix)
	}
}

func TestLoadConfigRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ConfigFileName), "sourceLocal: en\n")

	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad locale", "locales: [not a locale]"},
		{"bad source locale", "sourceLocale: '!!'"},
		{"bad format", "storeFormat: csv"},
		{"threshold too high", "renameThreshold: 1.5"},
		{"negative threshold", "renameThreshold: -0.1"},
		{"hash too short", "hashLength: 2"},
		{"hash too long", "hashLength: 64"},
		{"negative concurrency", "concurrency: -1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, ConfigFileName), tc.body+"\n")
			if _, err := LoadConfig(dir); err == nil {
				t.Fatalf("expected error for %q", tc.body)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Detection
// ---------------------------------------------------------------------------

func TestDetectWalksUpToPackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"dependencies":{"react":"^18.0.0"}}`)
	nested := filepath.Join(root, "src", "components")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	p, err := Detect(nested)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if p.Root != root {
		t.Errorf("Root = %q, want %q", p.Root, root)
	}
	if p.Framework != FrameworkReact {
		t.Errorf("Framework = %q, want react", p.Framework)
	}
}

func TestDetectFramework(t *testing.T) {
	cases := []struct {
		name string
		pkg  string
		want string
	}{
		{"react dep", `{"dependencies":{"react":"^18.0.0"}}`, FrameworkReact},
		{"vue dev dep", `{"devDependencies":{"vue":"^3.4.0"}}`, FrameworkVue},
		{"nuxt counts as vue", `{"dependencies":{"nuxt":"^3.0.0"}}`, FrameworkVue},
		{"react beats vue", `{"dependencies":{"react":"*","vue":"*"}}`, FrameworkReact},
		{"neither", `{"dependencies":{"lodash":"*"}}`, ""},
		{"unparseable", `{not json`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, "package.json"), tc.pkg)
			if got := detectFramework(root); got != tc.want {
				t.Errorf("detectFramework = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetectLocalesDirPreference(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{}`)
	if err := os.MkdirAll(filepath.Join(root, "locales"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "public", "locales"), 0755); err != nil {
		t.Fatal(err)
	}

	p, err := Detect(root)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if want := filepath.Join(root, "public", "locales"); p.LocalesDir != want {
		t.Errorf("LocalesDir = %q, want %q", p.LocalesDir, want)
	}
}

func TestDetectHonorsConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{}`)
	writeFile(t, filepath.Join(root, ConfigFileName), `
localesDir: i18n
sourceDirs: [web]
storeFormat: flat-yaml
locales: [de]
`)

	p, err := Detect(root)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if want := filepath.Join(root, "i18n"); p.LocalesDir != want {
		t.Errorf("LocalesDir = %q, want %q", p.LocalesDir, want)
	}
	if want := []string{filepath.Join(root, "web")}; !reflect.DeepEqual(p.SourceDirs, want) {
		t.Errorf("SourceDirs = %v, want %v", p.SourceDirs, want)
	}
	if p.StoreFormat != localestore.FlatYAML {
		t.Errorf("StoreFormat = %v, want flat-yaml", p.StoreFormat)
	}
	if p.Config.SourceLocale != "en" {
		t.Errorf("SourceLocale default = %q, want en", p.Config.SourceLocale)
	}
}

func TestDetectSniffsStoreFormat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{}`)
	writeFile(t, filepath.Join(root, "public", "locales", "en.yaml"), "nav.home: Home\n")

	p, err := Detect(root)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if p.StoreFormat != localestore.FlatYAML {
		t.Errorf("StoreFormat = %v, want flat-yaml", p.StoreFormat)
	}
	if want := filepath.Join(root, "public", "locales", "en.yaml"); p.SourceStorePath() != want {
		t.Errorf("SourceStorePath = %q, want %q", p.SourceStorePath(), want)
	}
}

func TestDetectNestedJSONFromStoreShape(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{}`)
	writeFile(t, filepath.Join(root, "public", "locales", "en.json"), `{"nav":{"home":"Home"}}`)

	p, err := Detect(root)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if p.StoreFormat != localestore.NestedJSON {
		t.Errorf("StoreFormat = %v, want nested-json", p.StoreFormat)
	}
}

func TestStorePathKeepsExistingExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{}`)
	writeFile(t, filepath.Join(root, "locales", "de.yml"), "a: b\n")

	p, err := Detect(root)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if want := filepath.Join(root, "locales", "de.yml"); p.StorePath("de") != want {
		t.Errorf("StorePath(de) = %q, want %q", p.StorePath("de"), want)
	}
	if want := filepath.Join(root, "locales", "fr.json"); p.StorePath("fr") != want {
		t.Errorf("StorePath(fr) = %q, want %q", p.StorePath("fr"), want)
	}
}

func TestTargetLocales(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{}`)
	writeFile(t, filepath.Join(root, ConfigFileName), "locales: [fr, de, en]\n")
	writeFile(t, filepath.Join(root, "public", "locales", "en.json"), `{}`)
	writeFile(t, filepath.Join(root, "public", "locales", "pt-BR.json"), `{}`)
	writeFile(t, filepath.Join(root, "public", "locales", "notes.txt"), "not a store")

	p, err := Detect(root)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []string{"de", "fr", "pt-BR"}
	if got := p.TargetLocales(); !reflect.DeepEqual(got, want) {
		t.Errorf("TargetLocales = %v, want %v", got, want)
	}
}

// ---------------------------------------------------------------------------
// Starter config
// ---------------------------------------------------------------------------

func TestWriteStarterConfig(t *testing.T) {
	root := t.TempDir()

	path, err := WriteStarterConfig(root)
	if err != nil {
		t.Fatalf("WriteStarterConfig: %v", err)
	}
	if path != filepath.Join(root, ConfigFileName) {
		t.Errorf("path = %q", path)
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("starter config does not parse: %v", err)
	}
	if cfg.SourceLocale != "en" {
		t.Errorf("starter sourceLocale = %q, want en", cfg.SourceLocale)
	}

	if _, err := WriteStarterConfig(root); err == nil {
		t.Fatal("expected error when config already exists")
	} else if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %v, want mention of already exists", err)
	}
}

// ---------------------------------------------------------------------------
// Run lock
// ---------------------------------------------------------------------------

func TestRunLock(t *testing.T) {
	root := t.TempDir()

	lock, err := AcquireRunLock(root)
	if err != nil {
		t.Fatalf("AcquireRunLock: %v", err)
	}

	if _, err := AcquireRunLock(root); err == nil {
		t.Fatal("expected second acquire to fail")
	} else if !strings.Contains(err.Error(), "another keylift run is active") {
		t.Errorf("error = %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again, err := AcquireRunLock(root)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again.Release()
}

func TestRunLockStaleTakeover(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, RunLockName)
	writeFile(t, path, "12345\n")
	old := time.Now().Add(-11 * time.Minute)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	lock, err := AcquireRunLock(root)
	if err != nil {
		t.Fatalf("expected stale lock takeover, got %v", err)
	}
	lock.Release()
}
