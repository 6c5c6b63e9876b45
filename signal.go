package netlistfi

import (
	"strings"

	"github.com/alecthomas/participle/v2"
)

// bracketRange is the tiny `[hi:lo]` / `[n]` grammar parsed with participle
// (spec.md's non-goal of understanding expressions doesn't cover this: it's a
// literal integer range, not a Verilog expression). Grounded on
// RtlFile.cpp's repeated strtol-around-a-colon parsing in signalWidthGet /
// signalArraySizeGet / subSignalArraySizeGet, unified here into one grammar.
type bracketRange struct {
	High int  `@Int`
	Low  *int `(":" @Int)?`
}

var bracketParser = participle.MustBuild(&bracketRange{})

// parseBracket parses the `[...]` starting at buf[open] (which must be '[')
// and returns the parsed range plus the byte offset immediately after the
// closing ']'.
func parseBracket(buf []byte, open int) (bracketRange, int, error) {
	if open >= len(buf) || buf[open] != '[' {
		return bracketRange{}, 0, errf(ErrDeclaration, open, "expected '[' ")
	}
	closeIdx := indexFrom(buf, "]", open+1, len(buf))
	if closeIdx < 0 {
		return bracketRange{}, 0, errf(ErrDeclaration, open, "unterminated bracket expression")
	}
	inner := string(buf[open+1 : closeIdx])
	var rng bracketRange
	if err := bracketParser.ParseString("", inner, &rng); err != nil {
		return bracketRange{}, 0, errf(ErrDeclaration, open, "malformed bracket expression %q: %v", inner, err)
	}
	return rng, closeIdx + 1, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// widthOf interprets a bracketRange as a `[hi:lo]` width spec; the
// colon form is mandatory here (spec.md §4.3: "Optional width spec `[hi:lo]`").
func widthOf(rng bracketRange) (int, error) {
	if rng.Low == nil {
		return 0, errf(ErrDeclaration, -1, "width spec requires '[hi:lo]', got a single index")
	}
	return abs(rng.High-*rng.Low) + 1, nil
}

// arraySizeOf interprets a bracketRange as an array spec: `[n]` means n
// elements, `[hi:lo]` means |hi-lo|+1 elements (spec.md §4.3).
func arraySizeOf(rng bracketRange) int {
	if rng.Low == nil {
		return rng.High
	}
	return abs(rng.High-*rng.Low) + 1
}

// subArraySizeOf interprets a bracketRange as a sub-signal select: a single
// index `[n]` selects exactly one element/bit, `[hi:lo]` selects |hi-lo|+1
// (spec.md §4.3 "Sub-signal width").
func subArraySizeOf(rng bracketRange) int {
	if rng.Low == nil {
		return 1
	}
	return abs(rng.High-*rng.Low) + 1
}

// declaration is a parsed signal declaration (spec.md §4.3 "Declaration
// parsing").
type declaration struct {
	Signal Signal
	End    int // byte offset immediately after the declaration's name
}

// typeGet searches backward from `in` toward moduleStart for the nearest
// preceding kind keyword, and reports whether it still qualifies as a
// declaration of the identifier found at `in` (no ';' in between).
// Grounded on RtlFile::TypeGet.
func typeGet(buf []byte, in, moduleStart int) (kind SignalKind, declStart int, ok bool) {
	best := -1
	for _, k := range signalKinds {
		start := lastIndexBetween(buf, k.rtlSpelling(), moduleStart, in)
		if start > best {
			best = start
			kind = k
		}
	}
	if best < 0 {
		return 0, moduleStart, false
	}
	declStart = best

	semi := indexFrom(buf, ";", declStart, len(buf))
	if semi >= 0 && semi <= in {
		return 0, moduleStart, false
	}

	return kind, declStart, true
}

// signalDeclarationGet locates the declaration of signalName within the
// module spanning [moduleStart, moduleEnd). Grounded on
// RtlFile::SignalDeclarationGet: an INPUT/OUTPUT hit is kept only as a
// fallback ("an input/output without an explicit wire defaults to wire");
// a WIRE/REG hit wins outright.
func signalDeclarationGet(buf []byte, signalName string, moduleStart, moduleEnd int) (int, error) {
	inputListEnd := indexFrom(buf, ")", moduleStart, moduleEnd)
	if inputListEnd < 0 {
		return 0, errf(ErrLexical, moduleStart, "module input list doesn't end")
	}

	var ioFallback = -1
	cursor := inputListEnd
	for cursor < moduleEnd {
		hit := indexFrom(buf, signalName, cursor, moduleEnd)
		if hit < 0 {
			break
		}

		inComment, err := insideComment(buf, hit, moduleStart, moduleEnd)
		if err != nil {
			return 0, err
		}
		if !inComment {
			kind, declStart, ok := typeGet(buf, hit, moduleStart)
			if ok {
				if kind == SignalInput || kind == SignalOutput {
					ioFallback = declStart
				} else {
					return declStart, nil
				}
			}
		}

		cursor = hit + 1
	}

	if ioFallback >= 0 {
		return ioFallback, nil
	}

	return 0, errf(ErrDeclaration, moduleStart, "could not find declaration of %q", signalName)
}

// parseDeclaration parses kind, width, name and element count starting at
// declStart. Grounded on RtlFile::SignalDeclarationParse.
func parseDeclaration(buf []byte, declStart int) (declaration, error) {
	bestStart := -1
	var bestKind SignalKind
	for _, k := range signalKinds {
		hit := indexFrom(buf, k.rtlSpelling(), declStart, len(buf))
		if hit < 0 {
			continue
		}
		if bestStart < 0 || hit < bestStart {
			bestStart = hit
			bestKind = k
		}
	}
	if bestStart < 0 {
		return declaration{}, errf(ErrDeclaration, declStart, "couldn't get signal type")
	}

	cursor := bestStart + len(bestKind.rtlSpelling())
	cursor = skipSpaceTab(buf, cursor)

	width := 1
	if cursor < len(buf) && buf[cursor] == '[' {
		rng, end, err := parseBracket(buf, cursor)
		if err != nil {
			return declaration{}, err
		}
		w, err := widthOf(rng)
		if err != nil {
			return declaration{}, err
		}
		width = w
		cursor = skipSpaceTab(buf, end)
	}

	semiIdx := indexFrom(buf, ";", cursor, len(buf))
	spaceIdx := indexFrom(buf, " ", cursor, len(buf))
	nameEnd := firstPositive(semiIdx, spaceIdx)
	if nameEnd < 0 {
		return declaration{}, errf(ErrDeclaration, cursor, "signal name doesn't end")
	}

	name := string(buf[cursor:nameEnd])

	elemCnt := 1
	arrayStart := indexFrom(buf, "[", nameEnd, len(buf))
	if arrayStart >= 0 && (semiIdx < 0 || arrayStart < semiIdx) {
		rng, _, err := parseBracket(buf, arrayStart)
		if err != nil {
			return declaration{}, err
		}
		elemCnt = arraySizeOf(rng)
	}

	return declaration{Signal: Signal{Kind: bestKind, Name: name, Width: width, ElemCnt: elemCnt}, End: nameEnd}, nil
}

func skipSpaceTab(buf []byte, pos int) int {
	for pos < len(buf) && (buf[pos] == ' ' || buf[pos] == '\t') {
		pos++
	}
	return pos
}

func firstPositive(a, b int) int {
	switch {
	case a < 0:
		return b
	case b < 0:
		return a
	case a < b:
		return a
	default:
		return b
	}
}

// resolveSignal finds and parses the declaration of signalName within the
// module spanning [moduleStart, moduleEnd).
func resolveSignal(buf []byte, signalName string, moduleStart, moduleEnd int) (Signal, error) {
	declStart, err := signalDeclarationGet(buf, signalName, moduleStart, moduleEnd)
	if err != nil {
		return Signal{}, err
	}
	decl, err := parseDeclaration(buf, declStart)
	if err != nil {
		return Signal{}, err
	}
	return decl.Signal, nil
}

// subSignalBracket locates the `[` that starts a bit- or array-select on a
// (possibly escaped) signal reference, per spec.md §4.3/§4.5: "for an escaped
// identifier the bracket must be preceded by a space". Per Open Question (a),
// an escaped identifier whose name contains a literal '[' not preceded by a
// space is rejected rather than guessed at.
func subSignalBracket(ref string) (idx int, ok bool, err error) {
	if strings.HasPrefix(ref, `\`) {
		spaceBracket := strings.Index(ref, " [")
		for i := 0; i < len(ref); i++ {
			if ref[i] != '[' {
				continue
			}
			precededBySpace := i > 0 && ref[i-1] == ' '
			if !precededBySpace {
				return 0, false, errf(ErrNaming, -1, "escaped identifier %q has an unspaced '[' and cannot be disambiguated", ref)
			}
		}
		if spaceBracket < 0 {
			return 0, false, nil
		}
		return spaceBracket + 1, true, nil
	}

	idx = strings.IndexByte(ref, '[')
	return idx, idx >= 0, nil
}

// subSignalWidth computes the width of a `name[a:b]` / `name[i]` reference.
// Grounded on RtlFile::SubSignalWidthGet.
func subSignalWidth(buf []byte, ref string, moduleStart, moduleEnd int) (int, error) {
	bracketIdx, ok, err := subSignalBracket(ref)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errf(ErrDeclaration, -1, "could not find '[' in %q", ref)
	}

	name := ref[:bracketIdx]
	signal, err := resolveSignal(buf, name, moduleStart, moduleEnd)
	if err != nil {
		return 0, err
	}

	bracketBuf := []byte(ref)
	rng, _, err := parseBracket(bracketBuf, bracketIdx)
	if err != nil {
		return 0, err
	}
	selected := subArraySizeOf(rng)

	if signal.ElemCnt > 1 {
		if selected > signal.ElemCnt {
			return 0, errf(ErrDeclaration, -1, "sub-signal %q is wider than the array declaration", ref)
		}
		return selected * signal.Width, nil
	}

	if selected > signal.Width {
		return 0, errf(ErrDeclaration, -1, "sub-signal %q is wider than the width declaration", ref)
	}
	return selected, nil
}
