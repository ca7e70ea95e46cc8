package adapter

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultTranslatableAttrs are attribute names whose string values are
// user-facing across frameworks.
var DefaultTranslatableAttrs = []string{
	"title", "alt", "placeholder", "label", "legend-text", "tooltip",
	"description", "aria-label", "aria-description", "aria-placeholder",
}

var (
	reURL      = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://|^www\.`)
	rePathish  = regexp.MustCompile(`^[./~#@$:%{}\[\]]`)
	reAsset    = regexp.MustCompile(`\.(png|jpe?g|svg|gif|webp|ico|css|s[ac]ss|js|mjs|ts|tsx|jsx|vue|json|ya?ml|woff2?|ttf|mp[34])$`)
	reMIME     = regexp.MustCompile(`^[a-z]+/[a-z0-9.+-]+$`)
	reConstant = regexp.MustCompile(`^[A-Z0-9]+(_[A-Z0-9]+)+$`)
	reIdent    = regexp.MustCompile(`^[a-z][a-zA-Z0-9_-]*$`)
)

// HasLetter reports whether text contains at least one letter. Strings
// without letters (numbers, dashes, entities) are never candidates.
func HasLetter(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// LooksLikeCode reports whether text is machine-facing rather than UI copy:
// URLs, paths, asset names, MIME types, CONSTANT_CASE identifiers.
func LooksLikeCode(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	lower := strings.ToLower(t)
	return reURL.MatchString(lower) ||
		rePathish.MatchString(t) ||
		reAsset.MatchString(lower) ||
		reMIME.MatchString(t) ||
		reConstant.MatchString(t)
}

// IdentLike reports whether text is a single lowercase identifier-style
// word ("primary", "left", "userEmail"). Such values are usually enum props
// rather than copy, so attribute and expression scanning skips them; plain
// markup text keeps them.
func IdentLike(text string) bool {
	return reIdent.MatchString(strings.TrimSpace(text))
}
