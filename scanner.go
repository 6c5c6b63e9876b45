package netlistfi

import "strings"

// Two block-comment syntaxes are recognized, searched independently
// (spec.md §4.1, §9 Open Question (b): genuinely nested/interleaved comments
// are rejected rather than silently resolved).
var blockCommentStart = []string{"(*", "/*"}
var blockCommentEnd = []string{"*)", "*/"}

// insideComment reports whether pos lies inside a line comment or either
// supported block comment, searching only within [lo, hi) of buf.
// Grounded on RtlFile::PosInsideComment.
func insideComment(buf []byte, pos, lo, hi int) (bool, error) {
	for syntax := range blockCommentStart {
		end := indexFrom(buf, blockCommentEnd[syntax], pos, hi)
		if end < 0 {
			continue
		}
		start := lastIndexBetween(buf, blockCommentStart[syntax], pos, end)
		if start < 0 {
			// Closer exists with no opener between pos and it: pos is inside.
			// Guard against the other block syntax also claiming pos, which
			// would mean two comment styles overlap/nest here.
			if otherSyntaxAlsoOpensHere(buf, syntax, pos, lo, hi) {
				return false, errf(ErrLexical, pos, "nested or interleaved block comments")
			}
			return true, nil
		}
	}

	// Inside line comment? Walk backwards from pos toward lo, stopping at a
	// newline.
	cur := pos
	for cur > lo {
		if buf[cur] == '\n' {
			break
		}
		if buf[cur] == '/' && cur > lo && buf[cur-1] == '/' {
			return true, nil
		}
		cur--
	}

	return false, nil
}

// otherSyntaxAlsoOpensHere checks whether the block-comment syntax other than
// `syntax` would also consider pos to be inside an open block, which signals
// an unsupported nested/interleaved comment (Open Question (b)).
func otherSyntaxAlsoOpensHere(buf []byte, syntax, pos, lo, hi int) bool {
	for other := range blockCommentStart {
		if other == syntax {
			continue
		}
		end := indexFrom(buf, blockCommentEnd[other], pos, hi)
		if end < 0 {
			continue
		}
		if lastIndexBetween(buf, blockCommentStart[other], pos, end) < 0 {
			return true
		}
	}
	return false
}

// indexFrom returns the byte offset of the first occurrence of needle at or
// after from within [0, hi), or -1.
func indexFrom(buf []byte, needle string, from, hi int) int {
	if from >= hi || from >= len(buf) {
		return -1
	}
	limit := hi
	if limit > len(buf) {
		limit = len(buf)
	}
	idx := strings.Index(string(buf[from:limit]), needle)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// lastIndexBetween returns the rightmost occurrence of needle in [lo, hi), or
// -1 if none (spec.md §4.1 reverse_find).
func lastIndexBetween(buf []byte, needle string, lo, hi int) int {
	if hi > len(buf) {
		hi = len(buf)
	}
	if lo < 0 || lo >= hi {
		return -1
	}
	idx := strings.LastIndex(string(buf[lo:hi]), needle)
	if idx < 0 {
		return -1
	}
	return lo + idx
}

// reverseFind is C1's reverse_find: the rightmost occurrence of needle in
// [lo, hi), with no comment awareness (callers filter).
func reverseFind(buf []byte, lo, hi int, needle string) (int, bool) {
	pos := lastIndexBetween(buf, needle, lo, hi)
	if pos < 0 {
		return 0, false
	}
	return pos, true
}
