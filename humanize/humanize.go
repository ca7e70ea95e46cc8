// Package humanize turns translation keys into readable display text and
// raw UI text into machine key slugs.
//
// Keys are dotted paths whose trailing segment may be a content hash:
//
//	account.name          -> "Account Name"
//	cta.submit.a1b2c3     -> "Cta Submit"
//	CTASecondary          -> "CTA Secondary"
//
// The two directions share one word-splitting pass so that a key derived
// from a text humanizes back to something close to that text.
package humanize

import (
	"strings"
	"unicode"
)

// hashLengths are the segment lengths treated as hash-like when every
// character is a hex digit. They cover the generator's collision suffixes
// (6, 12, 32) and common digest prefixes.
var hashLengths = map[int]bool{
	4: true, 6: true, 8: true, 12: true, 16: true, 32: true, 40: true, 64: true,
}

// slug limits. Long texts contribute only their leading words to a key.
const (
	maxSlugWords = 6
	maxSlugBytes = 40
)

// FromKey derives display text from a translation key. It drops trailing
// dot-delimited segments that look like content hashes, splits the rest
// into words on separators and camelCase boundaries, title-cases each word
// while preserving all-uppercase acronyms, and drops a word that repeats
// the one before it.
//
// An empty key yields an empty string. A key without dots is used whole.
func FromKey(key string) string {
	if key == "" {
		return ""
	}
	words := SplitWords(trimHashTail(key))
	out := make([]string, 0, len(words))
	for _, w := range words {
		t := titleWord(w)
		if len(out) > 0 && strings.EqualFold(out[len(out)-1], t) {
			continue
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

// Slug derives a machine key segment from raw UI text: the leading words
// joined in lowerCamel style, non-ASCII and punctuation dropped, capped at
// maxSlugWords words and maxSlugBytes bytes. Returns "" when the text has
// no usable words; callers fall back to a content hash.
func Slug(text string) string {
	var parts []string
	for _, w := range SplitWords(text) {
		a := asciiWord(w)
		if a == "" {
			continue
		}
		parts = append(parts, a)
		if len(parts) == maxSlugWords {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	for i, w := range parts {
		if i == 0 {
			w = strings.ToLower(w)
		} else {
			w = titleWord(w)
		}
		if b.Len() > 0 && b.Len()+len(w) > maxSlugBytes {
			break
		}
		b.WriteString(w)
	}
	s := b.String()
	if len(s) > maxSlugBytes {
		s = s[:maxSlugBytes]
	}
	return s
}

// IsHashLike reports whether a key segment looks like a content hash:
// a recognized digest length and nothing but hex digits.
func IsHashLike(seg string) bool {
	if !hashLengths[len(seg)] {
		return false
	}
	for _, r := range seg {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

// SplitWords splits an identifier or text into words. Separator runs
// (anything that is not a letter or digit) end a word, as do camelCase
// boundaries ("ctaPrimary" -> cta, Primary) and acronym glue
// ("CTASecondary" -> CTA, Secondary). Digits stay attached to the word
// they follow.
func SplitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && startsWord(runes, i) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// startsWord reports whether runes[i] begins a new word inside an
// unbroken alphanumeric run.
func startsWord(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	if !unicode.IsUpper(r) {
		return false
	}
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	// ABc: the last capital of an acronym run starts the next word.
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}

// trimHashTail strips trailing hash-like (or empty) dot segments from the
// humanization base. When every segment looks like a hash the last one is
// kept so the result is never empty.
func trimHashTail(key string) string {
	segs := strings.Split(key, ".")
	end := len(segs)
	for end > 0 && (segs[end-1] == "" || IsHashLike(segs[end-1])) {
		end--
	}
	if end == 0 {
		return segs[len(segs)-1]
	}
	return strings.Join(segs[:end], ".")
}

// titleWord title-cases a single word, leaving multi-letter all-uppercase
// acronyms untouched.
func titleWord(w string) string {
	runes := []rune(w)
	if len(runes) > 1 && isAllUpper(runes) {
		return w
	}
	runes[0] = unicode.ToUpper(runes[0])
	for i := 1; i < len(runes); i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func isAllUpper(runes []rune) bool {
	hasLetter := false
	for _, r := range runes {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func asciiWord(w string) string {
	var b strings.Builder
	for _, r := range w {
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	}
	return false
}
