package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/keylift/keylift/localestore"
)

// ConfigFileName is the per-project configuration file.
const ConfigFileName = ".keylift.yaml"

// Config is the parsed .keylift.yaml. Zero values mean "unset"; Detect
// fills them from the project layout.
type Config struct {
	SourceLocale           string   `yaml:"sourceLocale"`
	Locales                []string `yaml:"locales"`
	LocalesDir             string   `yaml:"localesDir"`
	SourceDirs             []string `yaml:"sourceDirs"`
	StoreFormat            string   `yaml:"storeFormat"`
	TranslatableAttributes []string `yaml:"translatableAttributes"`
	RenameThreshold        float64  `yaml:"renameThreshold"`
	KeyPrefix              string   `yaml:"keyPrefix"`
	HashLength             int      `yaml:"hashLength"`
	Concurrency            int      `yaml:"concurrency"`
	Ignore                 []string `yaml:"ignore"`
}

// LoadConfig reads .keylift.yaml from dir. Returns (nil, nil) when the
// file does not exist. Unknown fields are rejected so typos surface
// instead of silently falling back to defaults.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks field values without touching the filesystem.
func (c *Config) Validate() error {
	if c.SourceLocale != "" {
		if _, err := language.Parse(c.SourceLocale); err != nil {
			return fmt.Errorf("sourceLocale %q: %w", c.SourceLocale, err)
		}
	}
	for _, l := range c.Locales {
		if _, err := language.Parse(l); err != nil {
			return fmt.Errorf("locale %q: %w", l, err)
		}
	}
	if c.StoreFormat != "" {
		if _, err := localestore.ParseFormat(c.StoreFormat); err != nil {
			return err
		}
	}
	if c.RenameThreshold < 0 || c.RenameThreshold > 1 {
		return fmt.Errorf("renameThreshold %v: must be in (0, 1]", c.RenameThreshold)
	}
	if c.HashLength != 0 && (c.HashLength < 4 || c.HashLength > 32) {
		return fmt.Errorf("hashLength %d: must be between 4 and 32", c.HashLength)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency %d: must not be negative", c.Concurrency)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.SourceLocale == "" {
		c.SourceLocale = "en"
	}
}

// starterConfig is written by keylift init. Commented fields show the
// defaults without pinning them.
const starterConfig = `# keylift configuration. Every field is optional; unset fields fall
# back to detection (package.json, conventional directories).

# Locale the source code is written in.
sourceLocale: en

# Locales to translate into. Store files appear on the first sync.
locales:
  - de

# Where locale stores live, relative to this file.
# localesDir: public/locales

# Directories scanned for user-facing strings.
# sourceDirs:
#   - src

# Store encoding: flat-json, nested-json, or flat-yaml.
# storeFormat: flat-json

# JSX / SFC attributes whose string values are extracted.
# translatableAttributes: [title, placeholder, alt, aria-label]

# Similarity a removed/added key pair must reach to count as a rename.
# renameThreshold: 0.82

# Prefix prepended to every generated key.
# keyPrefix: ""

# Hex digits appended to disambiguate colliding keys (4..32).
# hashLength: 6

# Parallel file scans. 0 means number of CPUs, capped at 8.
# concurrency: 0

# Base-name globs skipped during discovery.
# ignore:
#   - "*.stories.tsx"
`

// WriteStarterConfig writes a commented starter .keylift.yaml into root.
// It refuses to overwrite an existing file.
func WriteStarterConfig(root string) (string, error) {
	path := filepath.Join(root, ConfigFileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%s already exists", path)
		}
		return "", err
	}
	if _, err := f.WriteString(starterConfig); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
