package react

import (
	"strings"

	"github.com/keylift/keylift/adapter"
)

// The scanner walks a module byte by byte in code mode, entering element
// mode when a '<' can only start JSX. It never builds a tree; it tracks
// just enough state (strings, comments, templates, brace depth) to find
// candidate spans and to keep offsets exact.

type scanner struct {
	a        *Adapter
	path     string
	src      []byte
	i        int
	line     int // 1-based
	lineOff  int // offset where the current line starts
	suppress int // inside style/script/code/pre elements
	out      adapter.ScanResult
}

func newScanner(a *Adapter, path string, src []byte) *scanner {
	return &scanner{a: a, path: path, src: src, line: 1}
}

type mark struct{ i, line, lineOff int }

func (s *scanner) mark() mark     { return mark{s.i, s.line, s.lineOff} }
func (s *scanner) reset(m mark)   { s.i, s.line, s.lineOff = m.i, m.line, m.lineOff }
func (s *scanner) eof() bool      { return s.i >= len(s.src) }
func (s *scanner) col() int       { return s.i - s.lineOff }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.i]
}

func (s *scanner) peekAt(n int) byte {
	if s.i+n >= len(s.src) {
		return 0
	}
	return s.src[s.i+n]
}

func (s *scanner) bump() byte {
	b := s.src[s.i]
	s.i++
	if b == '\n' {
		s.line++
		s.lineOff = s.i
	}
	return b
}

func (s *scanner) skipSpace() {
	for !s.eof() && isSpace(s.peek()) {
		s.bump()
	}
}

// exprKeywords put the lexer in operator position: after them '<' starts
// JSX and '/' starts a regex.
var exprKeywords = map[string]bool{
	"return": true, "case": true, "typeof": true, "instanceof": true,
	"in": true, "of": true, "new": true, "void": true, "delete": true,
	"do": true, "else": true, "yield": true, "await": true, "throw": true,
	"default": true,
}

// suppressedTags carry machine text; their children yield no candidates.
var suppressedTags = map[string]bool{
	"style": true, "script": true, "code": true, "pre": true,
}

// scanModule runs code mode over the whole file. prevValue tracks whether
// the previous significant token completed a value, which disambiguates
// '<' (JSX vs comparison) and '/' (regex vs division).
func (s *scanner) scanModule() {
	prevValue := false
	for !s.eof() {
		b := s.peek()
		switch {
		case isSpace(b):
			s.bump()
		case b == '/' && s.peekAt(1) == '/':
			s.skipLineComment()
		case b == '/' && s.peekAt(1) == '*':
			s.skipBlockComment()
		case b == '\'' || b == '"':
			s.readString()
			prevValue = true
		case b == '`':
			s.readTemplate()
			prevValue = true
		case b == '<' && !prevValue && s.jsxAhead():
			if s.scanElement() {
				prevValue = true
			} else {
				s.bump()
				prevValue = false
			}
		case isIdentStart(b):
			line := s.line
			name, _, _ := s.readIdentChain()
			if exprKeywords[name] {
				prevValue = false
			} else {
				s.maybeRef(name, line)
				prevValue = true
			}
		case b >= '0' && b <= '9':
			s.readNumber()
			prevValue = true
		case b == ')' || b == ']':
			s.bump()
			prevValue = true
		case b == '/':
			if prevValue {
				s.bump()
				prevValue = false
			} else {
				s.skipRegex()
				prevValue = true
			}
		default:
			s.bump()
			prevValue = false
		}
	}
}

// jsxAhead reports whether the byte after '<' can begin a tag or fragment.
func (s *scanner) jsxAhead() bool {
	n := s.peekAt(1)
	return isTagStart(n) || n == '>'
}

// scanElement consumes one JSX element including its children. It returns
// false after rewinding when the '<' turns out to be a TypeScript generic
// parameter list (<T,> or <T extends ...>), which .tsx shares syntax with.
func (s *scanner) scanElement() bool {
	save := s.mark()
	s.bump() // '<'
	if s.peek() == '>' {
		s.bump()
		s.scanChildren()
		return true
	}
	name := s.readTagName()
	if name == "" {
		s.reset(save)
		return false
	}
	s.skipSpace()
	if s.peek() == ',' {
		s.reset(save)
		return false
	}
	if isIdentStart(s.peek()) {
		m := s.mark()
		if s.readIdent() == "extends" {
			s.reset(save)
			return false
		}
		s.reset(m)
	}
	if suppressedTags[name] {
		s.suppress++
		defer func() { s.suppress-- }()
	}
	for !s.eof() {
		s.skipSpace()
		b := s.peek()
		switch {
		case b == '/' && s.peekAt(1) == '>':
			s.bump()
			s.bump()
			return true
		case b == '>':
			s.bump()
			s.scanChildren()
			return true
		case b == '{':
			s.scanExpr(ctxSpread, "")
		case isIdentStart(b):
			s.scanAttr()
		default:
			s.bump()
		}
	}
	return true
}

func (s *scanner) scanChildren() {
	for !s.eof() {
		b := s.peek()
		if b == '<' {
			n := s.peekAt(1)
			if n == '/' {
				for !s.eof() && s.bump() != '>' {
				}
				return
			}
			if isTagStart(n) || n == '>' {
				if !s.scanElement() {
					s.bump()
				}
				continue
			}
			s.bump()
			continue
		}
		if b == '{' {
			s.scanExpr(ctxChild, "")
			continue
		}
		s.scanText()
	}
}

// scanText consumes one text run between children. The candidate span
// excludes surrounding whitespace; inner whitespace is kept in the span
// and collapsed in the stored text.
func (s *scanner) scanText() {
	s.skipSpace()
	if s.eof() {
		return
	}
	if b := s.peek(); b == '<' || b == '{' {
		return
	}
	line, col, start := s.line, s.col(), s.i
	end := s.i + 1
	for !s.eof() {
		b := s.peek()
		if b == '<' || b == '{' {
			break
		}
		if !isSpace(b) {
			end = s.i + 1
		}
		s.bump()
	}
	if s.suppress > 0 {
		return
	}
	raw := string(s.src[start:end])
	text := adapter.NormalizeSpace(raw)
	if !adapter.HasLetter(text) || adapter.LooksLikeCode(text) {
		return
	}
	if len([]rune(text)) < 2 {
		return
	}
	s.emit(adapter.Candidate{
		Line: line, Col: col, Start: start, End: end,
		RawText: raw, Text: text,
		Construct: adapter.ConstructText,
	})
}

func (s *scanner) scanAttr() {
	name := s.readAttrName()
	s.skipSpace()
	if s.peek() != '=' {
		return
	}
	s.bump()
	s.skipSpace()
	switch b := s.peek(); {
	case b == '"' || b == '\'':
		line, col := s.line, s.col()
		val, start, end := s.readString()
		if !s.a.attrs[strings.ToLower(name)] {
			return
		}
		if !adapter.HasLetter(val) || adapter.LooksLikeCode(val) || adapter.IdentLike(val) {
			return
		}
		s.emit(adapter.Candidate{
			Line: line, Col: col, Start: start, End: end,
			RawText: string(s.src[start:end]), Text: val,
			Construct: adapter.ConstructAttribute,
		})
	case b == '{':
		s.scanExpr(ctxAttr, name)
	}
}

func (s *scanner) emit(c adapter.Candidate) {
	c.Framework = s.a.ID()
	c.File = s.path
	s.out.Candidates = append(s.out.Candidates, c)
}

func (s *scanner) emitRef(key string, line int) {
	s.out.Refs = append(s.out.Refs, adapter.KeyRef{Key: key, File: s.path, Line: line})
}

// maybeRef records an existing translation call. Pure lookahead: the main
// loop still consumes the call tokens normally.
func (s *scanner) maybeRef(name string, line int) {
	if !s.a.funcs[name] {
		return
	}
	j := s.i
	for j < len(s.src) && isSpace(s.src[j]) {
		j++
	}
	if j >= len(s.src) || s.src[j] != '(' {
		return
	}
	j++
	for j < len(s.src) && isSpace(s.src[j]) {
		j++
	}
	if j >= len(s.src) || (s.src[j] != '\'' && s.src[j] != '"') {
		return
	}
	key, _, ok := scanStringAt(s.src, j)
	if ok && key != "" {
		s.emitRef(key, line)
	}
}

// ---------------------------------------------------------------------------
// Low-level readers
// ---------------------------------------------------------------------------

// scanStringAt decodes the quoted literal starting at src[at]. Returns the
// decoded value, the offset one past the closing quote, and whether the
// literal was terminated before a newline or EOF.
func scanStringAt(src []byte, at int) (val string, end int, terminated bool) {
	quote := src[at]
	var b strings.Builder
	i := at + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			return b.String(), i + 1, true
		case c == '\\' && i+1 < len(src):
			switch esc := src[i+1]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(esc)
			}
			i += 2
		case c == '\n':
			return b.String(), i, false
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i, false
}

func (s *scanner) readString() (val string, start, end int) {
	start = s.i
	val, end, _ = scanStringAt(s.src, s.i)
	for s.i < end {
		s.bump()
	}
	return val, start, end
}

// readTemplate consumes a template literal. Interpolations are tokenized so
// translation references inside them are still collected; their text never
// becomes a candidate.
func (s *scanner) readTemplate() (val string, start, end int, interp bool) {
	start = s.i
	s.bump() // '`'
	var b strings.Builder
	for !s.eof() {
		c := s.peek()
		if c == '`' {
			s.bump()
			break
		}
		if c == '\\' && s.i+1 < len(s.src) {
			switch esc := s.src[s.i+1]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(esc)
			}
			s.bump()
			s.bump()
			continue
		}
		if c == '$' && s.peekAt(1) == '{' {
			interp = true
			s.bump()
			s.bump()
			toks, _ := s.tokenizeBraced()
			s.collectRefs(toks)
			continue
		}
		b.WriteByte(c)
		s.bump()
	}
	return b.String(), start, s.i, interp
}

func (s *scanner) readIdent() string {
	start := s.i
	for !s.eof() && isIdentChar(s.peek()) {
		s.bump()
	}
	return string(s.src[start:s.i])
}

// readIdentChain reads a dotted member chain (i18n.t, props.user.name) as
// one name so reference detection can match qualified calls.
func (s *scanner) readIdentChain() (string, int, int) {
	start := s.i
	for !s.eof() && isIdentChar(s.peek()) {
		s.bump()
	}
	for s.peek() == '.' && isIdentStart(s.peekAt(1)) {
		s.bump()
		for !s.eof() && isIdentChar(s.peek()) {
			s.bump()
		}
	}
	return string(s.src[start:s.i]), start, s.i
}

func (s *scanner) readTagName() string {
	if !isTagStart(s.peek()) {
		return ""
	}
	start := s.i
	for !s.eof() {
		b := s.peek()
		if isIdentChar(b) || b == '.' || b == '-' || b == ':' {
			s.bump()
		} else {
			break
		}
	}
	return string(s.src[start:s.i])
}

func (s *scanner) readAttrName() string {
	start := s.i
	for !s.eof() {
		b := s.peek()
		if isIdentChar(b) || b == '-' || b == ':' {
			s.bump()
		} else {
			break
		}
	}
	return string(s.src[start:s.i])
}

func (s *scanner) readNumber() {
	for !s.eof() && (isIdentChar(s.peek()) || s.peek() == '.') {
		s.bump()
	}
}

func (s *scanner) skipLineComment() {
	for !s.eof() && s.peek() != '\n' {
		s.bump()
	}
}

func (s *scanner) skipBlockComment() {
	s.bump()
	s.bump()
	for !s.eof() {
		if s.peek() == '*' && s.peekAt(1) == '/' {
			s.bump()
			s.bump()
			return
		}
		s.bump()
	}
}

// skipRegex consumes a regex literal so its quotes and braces cannot
// derail the lexer.
func (s *scanner) skipRegex() {
	s.bump() // '/'
	inClass := false
	for !s.eof() {
		b := s.peek()
		if b == '\\' {
			s.bump()
			if !s.eof() {
				s.bump()
			}
			continue
		}
		if b == '\n' {
			return
		}
		s.bump()
		if b == '[' {
			inClass = true
		} else if b == ']' {
			inClass = false
		} else if b == '/' && !inClass {
			break
		}
	}
	for !s.eof() && isIdentChar(s.peek()) {
		s.bump() // flags
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isIdentStart(b byte) bool {
	return b == '_' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentChar(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isTagStart(b byte) bool {
	return isIdentStart(b)
}
