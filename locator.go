package netlistfi

const maxNameBytes = 200

// foundModule is the result of locating one `module ... endmodule` span.
type foundModule struct {
	Name      string
	BodyStart int // byte immediately after the module name (the '#' or '(', or whitespace before it)
	BodyEnd   int // byte immediately after the next "endmodule"
}

// nextModule finds the next module declaration at or after from in buf.
// Returns ok=false (no error) when no more "module " tokens remain.
// Grounded on RtlFile::ModuleFind; the original's recursion on a commented hit
// becomes the inner `for` loop here (spec.md §9: "stack depth bounded").
func nextModule(buf []byte, from int) (foundModule, bool, error) {
	const modStart = "module "
	const modEnd = "endmodule"

	pos := from
	for {
		hit := indexFrom(buf, modStart, pos, len(buf))
		if hit < 0 {
			return foundModule{}, false, nil
		}

		nameStart := hit + len(modStart)

		hashIdx := indexFrom(buf, "#", nameStart, len(buf))
		parenIdx := indexFrom(buf, "(", nameStart, len(buf))

		nameEnd := -1
		switch {
		case hashIdx >= 0 && parenIdx >= 0:
			nameEnd = min(hashIdx, parenIdx)
		case hashIdx >= 0:
			nameEnd = hashIdx
		case parenIdx >= 0:
			nameEnd = parenIdx
		default:
			return foundModule{}, false, errf(ErrLexical, nameStart, "could not find module name terminator")
		}

		if nameEnd > len(buf) {
			return foundModule{}, false, errf(ErrLexical, nameStart, "module name ends after file")
		}

		trimStart, trimEnd := nameStart, nameEnd
		for trimStart < trimEnd && buf[trimStart] == ' ' {
			trimStart++
		}
		for trimStart < trimEnd && isNameTrailingSpace(buf[trimEnd-1]) {
			trimEnd--
		}

		inComment, err := insideComment(buf, hit, 0, len(buf))
		if err != nil {
			return foundModule{}, false, err
		}
		if inComment {
			pos = trimStart
			continue
		}

		if trimStart == trimEnd {
			return foundModule{}, false, errf(ErrNaming, nameStart, "empty module name")
		}

		name := string(buf[trimStart:trimEnd])
		if len(name) > maxNameBytes {
			return foundModule{}, false, errf(ErrNaming, nameStart, "module name %q too large", truncate(name))
		}

		bodyStart := trimEnd

		// Searched from the end of the module name, so an "endmodule" inside a
		// skipped, commented-out declaration before it is never matched.
		endIdx := indexFrom(buf, modEnd, trimEnd, len(buf))
		if endIdx < 0 {
			return foundModule{}, false, errf(ErrLexical, bodyStart, "module %q doesn't end", name)
		}
		bodyEnd := endIdx + len(modEnd)
		if bodyEnd > len(buf) {
			return foundModule{}, false, errf(ErrLexical, bodyStart, "module %q ends after end of file", name)
		}

		if nested := lastIndexBetween(buf, modStart, trimEnd, bodyEnd); nested >= 0 {
			return foundModule{}, false, errf(ErrStructural, nested, "nested module declaration inside %q", name)
		}

		return foundModule{Name: name, BodyStart: bodyStart, BodyEnd: bodyEnd}, true, nil
	}
}

func isNameTrailingSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\r'
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

