package netlistfi

// needleKind identifies which assignment form a needle matched.
type needleKind int

const (
	needleAssign needleKind = iota
	needleNonBlocking
)

var needleText = map[needleKind]string{
	needleAssign:      "assign ",
	needleNonBlocking: "<=",
}

// needleKinds lists the needle texts in the order the original scans them.
var needleKinds = []needleKind{needleAssign, needleNonBlocking}

// needle is the location of one assignment the corruption pass will visit.
type needle struct {
	Kind needleKind
	Pos  int
}

// nextNeedle finds the earliest "assign " or "<=" at or after from within
// [0, stop), skipping over ones that fall inside a comment.
// Grounded on RtlFile::NextNeedle; the original's recursion on a
// commented-out hit becomes the loop below (spec.md §9: "stack depth
// bounded").
func nextNeedle(buf []byte, from, stop int) (needle, bool, error) {
	pos := from
	for {
		best := -1
		var bestKind needleKind
		for _, k := range needleKinds {
			hit := indexFrom(buf, needleText[k], pos, stop)
			if hit < 0 {
				continue
			}
			if best < 0 || hit < best {
				best = hit
				bestKind = k
			}
		}

		if best < 0 {
			return needle{}, false, nil
		}

		inComment, err := insideComment(buf, best, 0, len(buf))
		if err != nil {
			return needle{}, false, err
		}
		if inComment {
			pos = best + 1
			continue
		}

		return needle{Kind: bestKind, Pos: best}, true, nil
	}
}

func isSpaceOrTab(b byte) bool {
	return b == ' ' || b == '\t'
}

// firstNonSpace advances from pos past spaces/tabs.
func firstNonSpace(buf []byte, pos int) int {
	for pos < len(buf) && isSpaceOrTab(buf[pos]) {
		pos++
	}
	return pos
}

// lastNonSpace retreats from pos past spaces/tabs.
func lastNonSpace(buf []byte, pos int) int {
	for pos >= 0 && isSpaceOrTab(buf[pos]) {
		pos--
	}
	return pos
}

// lastCharAfter walks backward from pos and returns the offset just past the
// first byte in cutset it finds. Grounded on lastCharAfterGet, used to locate
// the start of a non-blocking assignee by walking back from its end past the
// preceding newline, space, or ')'.
func lastCharAfter(buf []byte, pos int, cutset string) int {
	for pos >= 0 {
		for i := 0; i < len(cutset); i++ {
			if buf[pos] == cutset[i] {
				return pos + 1
			}
		}
		pos--
	}
	return 0
}
