package adapter

import (
	"bytes"
	"strings"
)

// Relocate re-anchors a candidate's span against live content. Parsers and
// tokenizers disagree about offsets often enough (decoded entities, 0- vs
// 1-based columns, no position API at all) that no recorded span is trusted
// before editing. The chain, most precise first:
//
//  1. the recorded span still holds the raw text;
//  2. the span re-derived from (line, column), column read as 0-based then
//     as 1-based;
//  3. the occurrence of the raw text nearest the recorded offset;
//  4. the occurrence of the whitespace-normalized text nearest the recorded
//     offset, span re-expanded to the actual bytes.
//
// ok is false when every step fails; such candidates are skipped and
// reported, never guessed.
func Relocate(content []byte, c Candidate) (start, end int, ok bool) {
	if c.RawText == "" {
		return 0, 0, false
	}
	raw := []byte(c.RawText)

	if spanHolds(content, c.Start, c.End, raw) {
		return c.Start, c.End, true
	}

	if ls := lineStart(content, c.Line); ls >= 0 {
		for _, col := range []int{c.Col, c.Col - 1} {
			if col < 0 {
				continue
			}
			s := ls + col
			if spanHolds(content, s, s+len(raw), raw) {
				return s, s + len(raw), true
			}
		}
	}

	if s := nearestIndex(content, raw, c.Start); s >= 0 {
		return s, s + len(raw), true
	}

	if s, e := nearestNormalized(content, c.Text, c.Start); s >= 0 {
		return s, e, true
	}

	return 0, 0, false
}

func spanHolds(content []byte, start, end int, raw []byte) bool {
	return start >= 0 && end <= len(content) && start < end &&
		bytes.Equal(content[start:end], raw)
}

// lineStart returns the byte offset where the 1-based line begins, or -1.
func lineStart(content []byte, line int) int {
	if line < 1 {
		return -1
	}
	off := 0
	for n := 1; n < line; n++ {
		i := bytes.IndexByte(content[off:], '\n')
		if i < 0 {
			return -1
		}
		off += i + 1
	}
	return off
}

// nearestIndex finds the occurrence of needle closest to want. Ties go to
// the earlier occurrence.
func nearestIndex(content, needle []byte, want int) int {
	best, bestDist := -1, 0
	off := 0
	for {
		i := bytes.Index(content[off:], needle)
		if i < 0 {
			break
		}
		pos := off + i
		dist := pos - want
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = pos, dist
		}
		off = pos + 1
	}
	return best
}

// nearestNormalized finds text in content comparing whitespace runs as
// equal, nearest to want. The returned span covers the actual bytes,
// whatever whitespace they contain.
func nearestNormalized(content []byte, text string, want int) (int, int) {
	norm := NormalizeSpace(text)
	if norm == "" {
		return -1, -1
	}
	first := norm[0]
	bestS, bestE, bestDist := -1, -1, 0
	for i := 0; i < len(content); i++ {
		if content[i] != first {
			continue
		}
		e, ok := matchNormalized(content, i, norm)
		if !ok {
			continue
		}
		dist := i - want
		if dist < 0 {
			dist = -dist
		}
		if bestS < 0 || dist < bestDist {
			bestS, bestE, bestDist = i, e, dist
		}
	}
	return bestS, bestE
}

// matchNormalized matches norm at content[pos:], accepting any whitespace
// run in content wherever norm holds a single space. Returns the end offset
// of the match.
func matchNormalized(content []byte, pos int, norm string) (int, bool) {
	i := pos
	for j := 0; j < len(norm); j++ {
		if i >= len(content) {
			return 0, false
		}
		if norm[j] == ' ' {
			if !isSpaceByte(content[i]) {
				return 0, false
			}
			for i < len(content) && isSpaceByte(content[i]) {
				i++
			}
			continue
		}
		if content[i] != norm[j] {
			return 0, false
		}
		i++
	}
	return i, true
}

// NormalizeSpace collapses every whitespace run to a single space and trims
// the ends. Candidate text is stored in this form; spans keep the original.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
