package vue

import (
	"bytes"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"

	"github.com/keylift/keylift/adapter"
)

// Elements whose text is never UI copy. Attributes on them still are.
var suppressedTags = map[string]bool{
	"style":  true,
	"script": true,
	"code":   true,
	"pre":    true,
}

// walker drives one pass of the html tokenizer over a component. Byte
// offsets come from tiling the raw token slices; the tokenizer itself has
// no position API.
type walker struct {
	a     *Adapter
	path  string
	src   []byte
	lines []int // byte offset of each line start
	out   adapter.ScanResult
}

func (w *walker) run() {
	w.lines = append(w.lines, 0)
	for i, b := range w.src {
		if b == '\n' {
			w.lines = append(w.lines, i+1)
		}
	}

	z := xhtml.NewTokenizer(bytes.NewReader(w.src))
	offset := 0
	templateDepth := 0
	suppress := 0
	inScript := false
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			// Reading from memory, the only error is EOF.
			return
		}
		start := offset
		offset += len(z.Raw())

		switch tt {
		case xhtml.TextToken:
			if templateDepth > 0 && suppress == 0 {
				w.text(start, offset)
			} else if inScript && templateDepth == 0 {
				w.scriptRefs(start, offset)
			}

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if tt == xhtml.StartTagToken {
				switch {
				case tag == "template":
					templateDepth++
				case suppressedTags[tag] && templateDepth > 0:
					suppress++
				case tag == "script" && templateDepth == 0:
					inScript = true
				}
			}
			if templateDepth > 0 {
				w.tagAttrs(start, w.src[start:offset], z, hasAttr)
			}

		case xhtml.EndTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case tag == "template" && templateDepth > 0:
				templateDepth--
			case suppressedTags[tag] && suppress > 0:
				suppress--
			case tag == "script":
				inScript = false
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Template text
// ---------------------------------------------------------------------------

func (w *walker) text(start, end int) {
	ts, te := trimSpan(w.src[start:end])
	if ts >= te {
		return
	}
	start, end = start+ts, start+te
	body := string(w.src[start:end])

	if !strings.Contains(body, "{{") {
		w.plainText(start, end, body)
		return
	}
	if strings.HasPrefix(body, "{{") && strings.Index(body, "}}") == len(body)-2 {
		w.mustache(start+2, body[2:len(body)-2], start, end)
		return
	}
	w.mixedText(start, end, body)
}

func (w *walker) plainText(start, end int, body string) {
	norm := adapter.NormalizeSpace(html.UnescapeString(body))
	if utf8.RuneCountInString(norm) < 2 {
		return
	}
	if !adapter.HasLetter(norm) || adapter.LooksLikeCode(norm) {
		return
	}
	line, col := w.lineCol(start)
	w.emit(adapter.Candidate{
		Line: line, Col: col, Start: start, End: end,
		RawText: body, Text: norm,
		Construct: adapter.ConstructText,
	})
}

// mustache classifies the expression between one pair of {{ }} braces that
// makes up the whole text node.
func (w *walker) mustache(exprStart int, expr string, wholeStart, wholeEnd int) {
	res := classifyExpr(expr, w.a.funcs)
	refLine, _ := w.lineCol(exprStart)
	for _, key := range res.refs {
		w.emitRef(key, refLine)
	}
	if res.unsafe {
		w.emitUnsafe(wholeStart, wholeEnd, res.reason)
		return
	}
	for _, lit := range res.lits {
		w.emitLit(exprStart, lit)
	}
}

// mixedText handles static copy interleaved with {{ }} interpolations.
// The interpolations are still read for references, but the node as a
// whole cannot be lifted without a placeholder.
func (w *walker) mixedText(start, end int, body string) {
	static, inners := splitMustaches(body)
	refLine, _ := w.lineCol(start)
	for _, inner := range inners {
		for _, key := range classifyExpr(inner, w.a.funcs).refs {
			w.emitRef(key, refLine)
		}
	}
	if adapter.HasLetter(static) && !adapter.LooksLikeCode(static) {
		w.emitUnsafe(start, end, "static text mixed with {{ }} interpolation; extract with a placeholder instead")
	}
}

// splitMustaches separates a text run into its static remainder and the
// inner source of each {{ }} segment. Unterminated braces run to the end.
func splitMustaches(body string) (string, []string) {
	var static strings.Builder
	var inners []string
	for {
		open := strings.Index(body, "{{")
		if open < 0 {
			static.WriteString(body)
			break
		}
		static.WriteString(body[:open])
		rest := body[open+2:]
		close := strings.Index(rest, "}}")
		if close < 0 {
			inners = append(inners, rest)
			break
		}
		inners = append(inners, rest[:close])
		body = rest[close+2:]
		static.WriteByte(' ')
	}
	return strings.TrimSpace(static.String()), inners
}

// ---------------------------------------------------------------------------
// Tag attributes
// ---------------------------------------------------------------------------

func (w *walker) tagAttrs(tagStart int, raw []byte, z *xhtml.Tokenizer, hasAttr bool) {
	for hasAttr {
		k, v, more := z.TagAttr()
		hasAttr = more
		key, val := string(k), string(v)

		if base, ok := bindingBase(key); ok {
			w.binding(tagStart, raw, key, base)
			continue
		}
		if isDirective(key) {
			w.directiveRefs(tagStart, raw, key)
			continue
		}
		if w.a.attrs[key] {
			w.plainAttr(tagStart, raw, key, val)
		}
	}
}

func (w *walker) plainAttr(tagStart int, raw []byte, key, val string) {
	if !adapter.HasLetter(val) || adapter.LooksLikeCode(val) || adapter.IdentLike(val) {
		return
	}
	as, ae, _, _, ok := findRawAttr(raw, key)
	if !ok {
		return
	}
	line, col := w.lineCol(tagStart + as)
	w.emit(adapter.Candidate{
		Line: line, Col: col, Start: tagStart + as, End: tagStart + ae,
		RawText: string(raw[as:ae]), Text: val,
		Construct: adapter.ConstructAttribute,
	})
}

// binding analyzes :attr="expr" and v-bind:attr="expr" values. Every
// binding is read for references; only translatable attribute names can
// yield candidates.
func (w *walker) binding(tagStart int, raw []byte, key, base string) {
	as, ae, vs, ve, ok := findRawAttr(raw, key)
	if !ok {
		return
	}
	res := classifyExpr(string(raw[vs:ve]), w.a.funcs)
	refLine, _ := w.lineCol(tagStart + vs)
	for _, k := range res.refs {
		w.emitRef(k, refLine)
	}
	if !w.a.attrs[base] {
		return
	}
	if res.unsafe {
		w.emitUnsafe(tagStart+as, tagStart+ae, res.reason)
		return
	}
	for _, lit := range res.lits {
		w.emitLit(tagStart+vs, lit)
	}
}

func (w *walker) directiveRefs(tagStart int, raw []byte, key string) {
	_, _, vs, ve, ok := findRawAttr(raw, key)
	if !ok {
		return
	}
	refLine, _ := w.lineCol(tagStart + vs)
	for _, k := range classifyExpr(string(raw[vs:ve]), w.a.funcs).refs {
		w.emitRef(k, refLine)
	}
}

// bindingBase strips the v-bind shorthand or longhand from an attribute
// key, returning the bound attribute name.
func bindingBase(key string) (string, bool) {
	if strings.HasPrefix(key, ":") {
		return key[1:], len(key) > 1
	}
	if strings.HasPrefix(key, "v-bind:") {
		rest := key[len("v-bind:"):]
		return rest, rest != ""
	}
	return "", false
}

func isDirective(key string) bool {
	return strings.HasPrefix(key, "v-") || strings.HasPrefix(key, "@") || strings.HasPrefix(key, "#")
}

// findRawAttr walks the attributes of a raw start tag and locates key,
// returning byte spans into raw: [as,ae) covers name through closing quote,
// [vs,ve) the value inside the quotes. Attribute values are skipped whole,
// so a name occurring inside some other value cannot match.
func findRawAttr(raw []byte, key string) (as, ae, vs, ve int, ok bool) {
	i := 0
	for i < len(raw) && !isWS(raw[i]) && raw[i] != '>' {
		i++ // tag name
	}
	for i < len(raw) {
		for i < len(raw) && isWS(raw[i]) {
			i++
		}
		nameStart := i
		for i < len(raw) && !isWS(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		if i == nameStart {
			i++
			continue
		}
		name := raw[nameStart:i]
		j := i
		for j < len(raw) && isWS(raw[j]) {
			j++
		}
		if j >= len(raw) || raw[j] != '=' {
			continue // valueless attribute
		}
		j++
		for j < len(raw) && isWS(raw[j]) {
			j++
		}
		if j >= len(raw) {
			break
		}
		q := raw[j]
		if q != '"' && q != '\'' {
			vstart := j
			for j < len(raw) && !isWS(raw[j]) && raw[j] != '>' {
				j++
			}
			if bytes.EqualFold(name, []byte(key)) {
				return nameStart, j, vstart, j, true
			}
			i = j
			continue
		}
		j++
		vstart := j
		for j < len(raw) && raw[j] != q {
			j++
		}
		if j >= len(raw) {
			break
		}
		if bytes.EqualFold(name, []byte(key)) {
			return nameStart, j + 1, vstart, j, true
		}
		i = j + 1
	}
	return 0, 0, 0, 0, false
}

// ---------------------------------------------------------------------------
// Script references
// ---------------------------------------------------------------------------

// scriptRefs records $t('key') calls from a script block so the keys they
// name are treated as still in use.
func (w *walker) scriptRefs(start, end int) {
	body := w.src[start:end]
	for _, m := range w.a.refRe.FindAllSubmatchIndex(body, -1) {
		key := string(body[m[2]:m[3]])
		line, _ := w.lineCol(start + m[2])
		w.emitRef(key, line)
	}
}

// buildRefRegexp matches <func>('key') calls in script code. Longest names
// sort first so this.$t is not half-matched as $t.
func buildRefRegexp(funcs []string) *regexp.Regexp {
	names := make([]string, len(funcs))
	copy(names, funcs)
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	quote := `['"` + "`" + `]`
	return regexp.MustCompile(
		`(?:^|[^\w$.])(?:` + strings.Join(names, "|") + `)\s*\(\s*` + quote + `([^'"` + "`" + `\s]+)` + quote)
}

// ---------------------------------------------------------------------------
// Emit helpers
// ---------------------------------------------------------------------------

func (w *walker) emit(c adapter.Candidate) {
	c.Framework = w.a.ID()
	c.File = w.path
	w.out.Candidates = append(w.out.Candidates, c)
}

func (w *walker) emitRef(key string, line int) {
	w.out.Refs = append(w.out.Refs, adapter.KeyRef{Key: key, File: w.path, Line: line})
}

func (w *walker) emitLit(exprStart int, lit exprLit) {
	start, end := exprStart+lit.start, exprStart+lit.end
	construct := adapter.ConstructExpression
	if lit.template {
		construct = adapter.ConstructTemplateLiteral
	}
	line, col := w.lineCol(start)
	w.emit(adapter.Candidate{
		Line: line, Col: col, Start: start, End: end,
		RawText: string(w.src[start:end]), Text: lit.val,
		Construct: construct,
	})
}

func (w *walker) emitUnsafe(start, end int, reason string) {
	raw := string(w.src[start:end])
	line, col := w.lineCol(start)
	w.emit(adapter.Candidate{
		Line: line, Col: col, Start: start, End: end,
		RawText: raw, Text: adapter.NormalizeSpace(raw),
		Construct: adapter.ConstructExpression,
		Unsafe:    true,
		Reason:    reason,
	})
}

func (w *walker) lineCol(off int) (int, int) {
	n := sort.Search(len(w.lines), func(i int) bool { return w.lines[i] > off })
	return n, off - w.lines[n-1]
}

func trimSpan(b []byte) (int, int) {
	s, e := 0, len(b)
	for s < e && isWS(b[s]) {
		s++
	}
	for e > s && isWS(b[e-1]) {
		e--
	}
	return s, e
}

func isWS(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
