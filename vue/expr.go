package vue

import (
	"fmt"
	"strings"

	"github.com/keylift/keylift/adapter"
)

// ---------------------------------------------------------------------------
// Binding expression analysis
// ---------------------------------------------------------------------------

// exprLit is a string literal found at the top level of an expression.
// Spans are byte offsets into the expression source.
type exprLit struct {
	val        string
	start, end int
	template   bool
}

// exprResult is the outcome of reading one binding or mustache expression.
type exprResult struct {
	lits   []exprLit
	refs   []string
	unsafe bool
	reason string
}

type etok struct {
	kind       ekind
	val        string
	start, end int
	interp     bool
}

type ekind int

const (
	etokStr ekind = iota
	etokTpl
	etokIdent
	etokNum
	etokOp
)

var exprKeywords = map[string]bool{
	"typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "void": true, "delete": true, "true": true,
	"false": true, "null": true, "undefined": true,
}

// classifyExpr gives a Vue binding expression a shallow read: enough to
// tell a lone literal from interpolation, concatenation or a conditional,
// and to collect $t() references. Only depth-0 tokens decide safety.
func classifyExpr(expr string, funcs map[string]bool) exprResult {
	toks := tokenizeExpr(expr)
	res := exprResult{refs: collectExprRefs(toks, funcs)}

	var top []etok
	depth := 0
	for _, t := range toks {
		if t.kind == etokOp {
			switch t.val {
			case "(", "[", "{":
				if depth == 0 {
					top = append(top, t)
				}
				depth++
				continue
			case ")", "]", "}":
				if depth > 0 {
					depth--
				}
				if depth == 0 {
					top = append(top, t)
				}
				continue
			}
		}
		if depth == 0 {
			top = append(top, t)
		}
	}

	var strs []int
	for i, t := range top {
		if t.kind == etokStr || t.kind == etokTpl {
			strs = append(strs, i)
		}
	}
	if len(strs) == 0 {
		return res
	}

	if len(top) == 1 {
		t := top[0]
		if t.kind == etokTpl && t.interp {
			if textish(t.val) {
				res.setUnsafe("template literal with ${} interpolation; extract with a placeholder instead")
			}
			return res
		}
		res.addLit(t)
		return res
	}

	for _, i := range strs {
		if top[i].kind == etokTpl && top[i].interp && textish(top[i].val) {
			res.setUnsafe("template literal with ${} interpolation; extract with a placeholder instead")
			return res
		}
	}

	// cond ? 'a' : 'b' with both branches literal
	if qi := indexOfExprOp(top, "?"); qi >= 1 && qi+3 == len(top)-1 && len(strs) == 2 {
		a, colon, b := top[qi+1], top[qi+2], top[qi+3]
		if a.kind == etokStr && b.kind == etokStr && colon.kind == etokOp && colon.val == ":" {
			if !textish(a.val) && !textish(b.val) {
				return res
			}
			if a.val == b.val {
				res.addLit(a)
				res.addLit(b)
				return res
			}
			res.setUnsafe(fmt.Sprintf("conditional renders different strings (%q / %q); move the condition behind one plural-aware key", a.val, b.val))
			return res
		}
	}

	if indexOfExprOp(top, "+") >= 0 {
		for _, i := range strs {
			if textish(top[i].val) {
				res.setUnsafe("string concatenation with dynamic parts freezes word order; extract with a placeholder instead")
				return res
			}
		}
		return res
	}

	// literal guarded by && / || / ? / : renders alone, safe to extract
	for _, i := range strs {
		if i == 0 {
			continue
		}
		prev := top[i-1]
		if prev.kind == etokOp && (prev.val == "&&" || prev.val == "||" || prev.val == "?" || prev.val == ":") {
			res.addLit(top[i])
		}
	}
	return res
}

func (r *exprResult) addLit(t etok) {
	if t.kind == etokTpl && t.interp {
		return
	}
	if !textish(t.val) || adapter.IdentLike(t.val) {
		return
	}
	r.lits = append(r.lits, exprLit{val: t.val, start: t.start, end: t.end, template: t.kind == etokTpl})
}

func (r *exprResult) setUnsafe(reason string) {
	r.unsafe = true
	r.reason = reason
}

func indexOfExprOp(top []etok, op string) int {
	for i, t := range top {
		if t.kind == etokOp && t.val == op {
			return i
		}
	}
	return -1
}

// collectExprRefs finds <func>('key') calls anywhere in the token stream.
func collectExprRefs(toks []etok, funcs map[string]bool) []string {
	var refs []string
	for i := 0; i+2 < len(toks); i++ {
		if toks[i].kind != etokIdent || !funcs[toks[i].val] {
			continue
		}
		if toks[i+1].kind != etokOp || toks[i+1].val != "(" {
			continue
		}
		if toks[i+2].kind == etokStr && toks[i+2].val != "" {
			refs = append(refs, toks[i+2].val)
		}
	}
	return refs
}

func textish(s string) bool {
	return adapter.HasLetter(s) && !adapter.LooksLikeCode(s)
}

// ---------------------------------------------------------------------------
// Expression tokenizer
// ---------------------------------------------------------------------------

func tokenizeExpr(expr string) []etok {
	var toks []etok
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'' || c == '"':
			val, end := readExprString(expr, i)
			toks = append(toks, etok{kind: etokStr, val: val, start: i, end: end})
			i = end
		case c == '`':
			val, interp, end := readExprTemplate(expr, i)
			toks = append(toks, etok{kind: etokTpl, val: val, start: i, end: end, interp: interp})
			i = end
		case isExprIdentStart(c):
			start := i
			for i < len(expr) && isExprIdentPart(expr[i]) {
				i++
			}
			// Swallow member chains so i18n.t stays one name.
			for i < len(expr) && expr[i] == '.' && i+1 < len(expr) && isExprIdentStart(expr[i+1]) {
				i++
				for i < len(expr) && isExprIdentPart(expr[i]) {
					i++
				}
			}
			toks = append(toks, etok{kind: etokIdent, val: expr[start:i], start: start, end: i})
		case c >= '0' && c <= '9':
			start := i
			for i < len(expr) && (isExprIdentPart(expr[i]) || expr[i] == '.') {
				i++
			}
			toks = append(toks, etok{kind: etokNum, val: expr[start:i], start: start, end: i})
		case strings.IndexByte("()[]{}", c) >= 0:
			toks = append(toks, etok{kind: etokOp, val: string(c), start: i, end: i + 1})
			i++
		default:
			start := i
			for i < len(expr) && isExprOpByte(expr[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			toks = append(toks, etok{kind: etokOp, val: expr[start:i], start: start, end: i})
		}
	}
	return toks
}

// readExprString returns the decoded value and the offset one past the
// closing quote. Unterminated strings run to the end of the expression.
func readExprString(expr string, start int) (string, int) {
	quote := expr[start]
	var b strings.Builder
	i := start + 1
	for i < len(expr) {
		c := expr[i]
		if c == '\\' && i+1 < len(expr) {
			switch expr[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(expr[i+1])
			}
			i += 2
			continue
		}
		if c == quote {
			return b.String(), i + 1
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), i
}

func readExprTemplate(expr string, start int) (string, bool, int) {
	var b strings.Builder
	interp := false
	i := start + 1
	for i < len(expr) {
		c := expr[i]
		if c == '\\' && i+1 < len(expr) {
			b.WriteByte(expr[i+1])
			i += 2
			continue
		}
		if c == '`' {
			return b.String(), interp, i + 1
		}
		if c == '$' && i+1 < len(expr) && expr[i+1] == '{' {
			interp = true
			depth := 1
			i += 2
			for i < len(expr) && depth > 0 {
				switch expr[i] {
				case '{':
					depth++
				case '}':
					depth--
				}
				i++
			}
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), interp, i
}

func isExprIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isExprIdentPart(c byte) bool {
	return isExprIdentStart(c) || (c >= '0' && c <= '9')
}

func isExprOpByte(c byte) bool {
	return strings.IndexByte("+-*/%=!?:&|^~,;.<>", c) >= 0
}
