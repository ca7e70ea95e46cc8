package react

import (
	"fmt"
	"strings"

	"github.com/keylift/keylift/adapter"
)

// Expression safety. A braced JSX expression is tokenized shallowly and
// classified from its top-level shape only: strings nested in calls,
// objects or arrays are someone else's business. The hazards that change
// meaning under translation are flagged, never rewritten:
//
//	{cond ? 'item' : 'items'}   conditional plural idiom
//	{'Hello ' + name}           word order frozen by concatenation
//	{`Hello ${name}`}           interpolation, same hazard
//
// A literal that renders alone ({'Save'}, {ok && 'Saved'}) is safe.

type tokKind int

const (
	tokStr tokKind = iota
	tokTpl
	tokIdent
	tokNum
	tokOp
	tokJSX
)

type token struct {
	kind   tokKind
	val    string // decoded string, ident chain or operator text
	start  int    // strings include their quotes
	end    int
	line   int
	col    int
	depth  int
	interp bool
}

type exprContext int

const (
	ctxChild exprContext = iota
	ctxAttr
	ctxSpread
)

// scanExpr consumes a braced expression starting at '{'. References are
// always collected; candidates only where the context allows them.
func (s *scanner) scanExpr(ctx exprContext, attr string) {
	s.bump() // '{'
	line, col := s.line, s.col()
	innerStart := s.i
	toks, innerEnd := s.tokenizeBraced()
	s.collectRefs(toks)

	allow := false
	switch ctx {
	case ctxChild:
		allow = s.suppress == 0
	case ctxAttr:
		allow = s.a.attrs[strings.ToLower(attr)]
	}
	if !allow {
		return
	}
	s.classify(toks, innerStart, innerEnd, line, col)
}

// tokenizeBraced consumes up to and including the '}' matching an already
// consumed '{', returning the tokens and the offset of that '}'.
func (s *scanner) tokenizeBraced() ([]token, int) {
	var toks []token
	depth := 0
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
			line, col := s.line, s.col()
			val, start, end := s.readString()
			toks = append(toks, token{kind: tokStr, val: val, start: start, end: end, line: line, col: col, depth: depth})
		case b == '`':
			line, col := s.line, s.col()
			val, start, end, interp := s.readTemplate()
			toks = append(toks, token{kind: tokTpl, val: val, start: start, end: end, line: line, col: col, depth: depth, interp: interp})
		case b == '}':
			if depth == 0 {
				end := s.i
				s.bump()
				return toks, end
			}
			depth--
			toks = append(toks, token{kind: tokOp, val: "}", depth: depth})
			s.bump()
		case b == '{' || b == '(' || b == '[':
			toks = append(toks, token{kind: tokOp, val: string(b), depth: depth})
			depth++
			s.bump()
		case b == ')' || b == ']':
			if depth > 0 {
				depth--
			}
			toks = append(toks, token{kind: tokOp, val: string(b), depth: depth})
			s.bump()
		case isIdentStart(b):
			line, col := s.line, s.col()
			name, start, end := s.readIdentChain()
			toks = append(toks, token{kind: tokIdent, val: name, start: start, end: end, line: line, col: col, depth: depth})
		case b >= '0' && b <= '9':
			start := s.i
			s.readNumber()
			toks = append(toks, token{kind: tokNum, start: start, end: s.i, depth: depth})
		case b == '<' && !prevIsOperand(toks) && s.jsxAhead():
			if s.scanElement() {
				toks = append(toks, token{kind: tokJSX, depth: depth})
			} else {
				s.bump()
				toks = append(toks, token{kind: tokOp, val: "<", depth: depth})
			}
		default:
			start := s.i
			for !s.eof() && isOpByte(s.peek()) {
				if s.peek() == '/' && (s.peekAt(1) == '/' || s.peekAt(1) == '*') {
					break
				}
				s.bump()
			}
			if s.i == start {
				s.bump()
			}
			toks = append(toks, token{kind: tokOp, val: string(s.src[start:s.i]), depth: depth})
		}
	}
	return toks, s.i
}

// prevIsOperand reports whether the last token completes a value, in which
// case a following '<' is a comparison rather than JSX.
func prevIsOperand(toks []token) bool {
	if len(toks) == 0 {
		return false
	}
	t := toks[len(toks)-1]
	switch t.kind {
	case tokIdent:
		return !exprKeywords[t.val]
	case tokNum, tokStr, tokTpl, tokJSX:
		return true
	case tokOp:
		return t.val == ")" || t.val == "]" || t.val == "}"
	}
	return false
}

// collectRefs finds t('key')-shaped calls anywhere in the token stream.
func (s *scanner) collectRefs(toks []token) {
	for i := 0; i+2 < len(toks); i++ {
		if toks[i].kind == tokIdent && s.a.funcs[toks[i].val] &&
			toks[i+1].kind == tokOp && toks[i+1].val == "(" &&
			toks[i+2].kind == tokStr && toks[i+2].val != "" {
			s.emitRef(toks[i+2].val, toks[i+2].line)
		}
	}
}

func (s *scanner) classify(toks []token, innerStart, innerEnd, line, col int) {
	var top []token
	for _, t := range toks {
		if t.depth == 0 {
			top = append(top, t)
		}
	}
	var strs []int
	for i, t := range top {
		if t.kind == tokStr || t.kind == tokTpl {
			strs = append(strs, i)
		}
	}
	if len(strs) == 0 {
		return
	}

	if len(top) == 1 {
		t := top[0]
		if t.kind == tokTpl && t.interp {
			if textish(t.val) {
				s.emitUnsafe(innerStart, innerEnd, line, col,
					"template literal with ${} interpolation; extract with a placeholder instead")
			}
			return
		}
		s.emitLiteral(t)
		return
	}

	for _, i := range strs {
		if top[i].kind == tokTpl && top[i].interp && textish(top[i].val) {
			s.emitUnsafe(innerStart, innerEnd, line, col,
				"template literal with ${} interpolation; extract with a placeholder instead")
			return
		}
	}

	// cond ? 'a' : 'b' with both branches literal
	if qi := indexOfOp(top, "?"); qi >= 1 && qi+3 == len(top)-1 && len(strs) == 2 {
		a, colon, b := top[qi+1], top[qi+2], top[qi+3]
		if a.kind == tokStr && b.kind == tokStr && colon.kind == tokOp && colon.val == ":" {
			if !textish(a.val) && !textish(b.val) {
				return
			}
			if a.val == b.val {
				s.emitLiteral(a)
				s.emitLiteral(b)
				return
			}
			s.emitUnsafe(innerStart, innerEnd, line, col,
				fmt.Sprintf("conditional renders different strings (%q / %q); move the condition behind one plural-aware key", a.val, b.val))
			return
		}
	}

	if indexOfOp(top, "+") >= 0 {
		for _, i := range strs {
			if textish(top[i].val) {
				s.emitUnsafe(innerStart, innerEnd, line, col,
					"string concatenation with dynamic parts freezes word order; extract with a placeholder instead")
				return
			}
		}
		return
	}

	// literal guarded by && / || / ? / : renders alone, safe to extract
	for _, i := range strs {
		if i == 0 {
			continue
		}
		prev := top[i-1]
		if prev.kind == tokOp && (prev.val == "&&" || prev.val == "||" || prev.val == "?" || prev.val == ":") {
			s.emitLiteral(top[i])
		}
	}
}

// emitLiteral emits one safe candidate for a string or template token.
func (s *scanner) emitLiteral(t token) {
	if t.kind == tokTpl && t.interp {
		return
	}
	if !textish(t.val) || adapter.IdentLike(t.val) {
		return
	}
	construct := adapter.ConstructExpression
	if t.kind == tokTpl {
		construct = adapter.ConstructTemplateLiteral
	}
	s.emit(adapter.Candidate{
		Line: t.line, Col: t.col, Start: t.start, End: t.end,
		RawText: string(s.src[t.start:t.end]), Text: t.val,
		Construct: construct,
	})
}

func (s *scanner) emitUnsafe(start, end, line, col int, reason string) {
	raw := string(s.src[start:end])
	s.emit(adapter.Candidate{
		Line: line, Col: col, Start: start, End: end,
		RawText: raw, Text: adapter.NormalizeSpace(raw),
		Construct: adapter.ConstructExpression,
		Unsafe:    true,
		Reason:    reason,
	})
}

func textish(v string) bool {
	return adapter.HasLetter(v) && !adapter.LooksLikeCode(v)
}

func indexOfOp(toks []token, op string) int {
	for i, t := range toks {
		if t.kind == tokOp && t.val == op {
			return i
		}
	}
	return -1
}

func isOpByte(b byte) bool {
	switch b {
	case '+', '-', '*', '/', '%', '=', '!', '?', ':', '&', '|', '^', '~', ',', ';', '.', '>':
		return true
	}
	return false
}
