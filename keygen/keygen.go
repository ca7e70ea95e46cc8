// Package keygen assigns dotted translation keys to extracted strings.
//
// A key is prefix.namespace.slug: the namespace names the source file, the
// slug abbreviates the text. Generation is deterministic and idempotent;
// re-running extraction over the same tree yields the same keys, and a
// text that already owns a key keeps it.
package keygen

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/keylift/keylift/humanize"
)

// Suffix widths tried when a slug collides. Each is a recognized digest
// length, so display fallbacks skip the suffix segment.
var collisionWidths = []int{6, 12, 32}

// Generator hands out keys and remembers which text owns which key.
// It is not safe for concurrent use; key assignment runs in the
// sequential reduce step of a transform.
type Generator struct {
	prefix string
	widths []int
	owner  map[string]string // key -> text that owns it
}

// New returns a Generator. prefix may be empty; when set it is prepended
// to every key as its own segment.
func New(prefix string) *Generator {
	return &Generator{
		prefix: strings.Trim(prefix, "."),
		widths: collisionWidths,
		owner:  make(map[string]string),
	}
}

// SetHashLength overrides the first collision-suffix width. Lengths
// outside 4..32 are ignored.
func (g *Generator) SetHashLength(n int) {
	if n < 4 || n > 32 {
		return
	}
	widths := []int{n}
	for _, w := range collisionWidths {
		if w > n {
			widths = append(widths, w)
		}
	}
	g.widths = widths
}

// Seed registers the contents of an existing store so earlier runs keep
// their keys. values maps key to source-locale text.
func (g *Generator) Seed(values map[string]string) {
	for k, v := range values {
		g.owner[k] = v
	}
}

// Namespace derives the key namespace from a source file path:
// the extension-stripped basename in lower camel case.
func Namespace(file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if ns := humanize.Slug(base); ns != "" {
		return ns
	}
	return "misc"
}

// Key returns the key for text extracted from file. The same (file, text)
// pair always maps to the same key. Two different texts whose slugs
// collide get digest suffixes; if every suffix width is taken the keyspace
// is exhausted and an error is returned.
func (g *Generator) Key(file, text string) (string, error) {
	slug := humanize.Slug(text)
	if slug == "" {
		slug = hashOf(text)[:8]
	}
	base := joinKey(g.prefix, Namespace(file), slug)

	if owner, taken := g.owner[base]; !taken || owner == text {
		g.owner[base] = text
		return base, nil
	}
	digest := hashOf(text)
	for _, w := range g.widths {
		key := base + "." + digest[:w]
		if owner, taken := g.owner[key]; !taken || owner == text {
			g.owner[key] = text
			return key, nil
		}
	}
	return "", fmt.Errorf("key %s: all suffixes taken for %q", base, text)
}

func joinKey(segs ...string) string {
	var parts []string
	for _, s := range segs {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

func hashOf(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
