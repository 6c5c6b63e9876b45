package netlistfi

import (
	"strconv"
	"strings"
)

// corruptNeedle plans the corruption of a single assignment: it resolves the
// assignee(s), sums their width, mints a UUID, registers the synthesized
// fi_ signal on module, and records the replacement edit. Grounded on
// RtlFile::NeedleCorrupt.
func corruptNeedle(buf []byte, module *Module, edits *editSet, alloc *uuidAllocator, prefix string, mode FaultMode, moduleStart, moduleEnd int, n needle) error {
	targetStart, err := assigneeStart(buf, n, moduleStart)
	if err != nil {
		return err
	}
	targetStart = firstNonSpace(buf, targetStart)

	nameTerminator := byte('=')
	if n.Kind == needleNonBlocking {
		nameTerminator = '<'
	}
	termIdx := indexFrom(buf, string(nameTerminator), targetStart, moduleEnd)
	if termIdx < 0 {
		return errf(ErrPlanning, targetStart, "couldn't find signal name")
	}

	nameEnd := lastNonSpace(buf, termIdx-1) + 1
	if nameEnd <= targetStart {
		return errf(ErrPlanning, targetStart, "empty assignee")
	}
	rawName := string(buf[targetStart:nameEnd])

	signalNames, err := splitCompoundSignal(rawName)
	if err != nil {
		return errf(ErrPlanning, targetStart, "%v", err)
	}

	compoundWidth := 0
	for _, name := range signalNames {
		if len(name) > maxNameBytes {
			return errf(ErrNaming, targetStart, "signal name %q too large", truncate(name))
		}

		_, hasBracket, err := subSignalBracket(name)
		if err != nil {
			return err
		}

		var width int
		if hasBracket {
			width, err = subSignalWidth(buf, name, moduleStart, moduleEnd)
			if err != nil {
				return err
			}
		} else {
			signal, err := resolveSignal(buf, name, moduleStart, moduleEnd)
			if err != nil {
				return err
			}
			width = signal.ElemCnt * signal.Width
		}

		compoundWidth += width
	}

	equal := indexFrom(buf, "=", targetStart, len(buf))
	if equal < 0 {
		return errf(ErrPlanning, targetStart, "no equal sign in assignment")
	}
	semiColon := indexFrom(buf, ";", targetStart, len(buf))
	if semiColon < 0 {
		return errf(ErrPlanning, targetStart, "assignment doesn't stop")
	}
	newLine := indexFrom(buf, "\n", targetStart, len(buf))
	if newLine < 0 {
		return errf(ErrPlanning, targetStart, "no newline after assignment")
	}
	if semiColon <= equal {
		return errf(ErrPlanning, equal, "equal sign after semicolon")
	}
	if newLine <= semiColon {
		return errf(ErrPlanning, semiColon, "newline before semicolon")
	}

	inComment, err := insideComment(buf, equal, moduleStart, semiColon)
	if err != nil {
		return err
	}
	if inComment {
		return errf(ErrLexical, equal, "equal sign inside comment")
	}

	equal++ // don't replace the '=' itself

	var nameBuilder strings.Builder
	nameBuilder.WriteString("fi_")
	for _, name := range signalNames {
		nameBuilder.WriteString(name)
	}

	uuid := alloc.next()
	module.FiSignals = append(module.FiSignals, Signal{
		Kind:    SignalWire,
		Name:    nameBuilder.String(),
		Width:   compoundWidth,
		ElemCnt: 1,
		UUID:    uuid,
	})

	original := string(buf[equal:semiColon])
	replacement := corruptionReplacement(prefix, mode, uuid, compoundWidth, original)

	return edits.add(equal, semiColon, replacement)
}

// assigneeStart locates where the assignee begins for a needle.
// Grounded on RtlFile::NeedleCorrupt's FI_NEEDLE_ASSIGN / FI_NEEDLE_ASSIGN_NON_BLOCKIN cases.
func assigneeStart(buf []byte, n needle, moduleStart int) (int, error) {
	var start int
	switch n.Kind {
	case needleAssign:
		start = n.Pos + len(needleText[needleAssign])
	case needleNonBlocking:
		assigneeEnd := lastNonSpace(buf, n.Pos-1)
		start = lastCharAfter(buf, assigneeEnd, "\n )")
	default:
		return 0, errf(ErrPlanning, n.Pos, "unknown needle kind")
	}

	if start < moduleStart || start >= len(buf) {
		return 0, errf(ErrPlanning, n.Pos, "couldn't find signal name")
	}
	return start, nil
}

// splitCompoundSignal splits a `{a, b, c}` concatenation assignee into its
// component signal references, or returns a single-element slice for a plain
// assignee. Grounded on RtlFile::NeedleCorrupt's compound-signal handling.
func splitCompoundSignal(raw string) ([]string, error) {
	if !strings.HasPrefix(raw, "{") {
		return []string{raw}, nil
	}

	end := strings.IndexByte(raw, '}')
	if end < 0 {
		return nil, errf(ErrPlanning, -1, "compound signal that doesn't end")
	}

	var names []string
	for _, part := range strings.Split(raw[1:end], ",") {
		names = append(names, strings.TrimSpace(part))
	}
	return names, nil
}

// corruptionReplacement builds the masking expression spliced in place of the
// original right-hand side. Grounded on RtlFile::NeedleCorrupt's
// diffElem.Replacement construction; FI_SINGLE_BIT is not carried forward
// (spec.md §4.5 names only the per-bit-vector form).
func corruptionReplacement(prefix string, mode FaultMode, uuid, width int, original string) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(original)
	b.WriteString(") ")
	b.WriteString(mode.operator())
	b.WriteString("((")
	b.WriteString(fiEnableStr)
	b.WriteString(" && (")
	b.WriteString(strconv.Itoa(uuid))
	b.WriteString(" == ")
	b.WriteString(prefix)
	b.WriteString(globalFiNumber)
	b.WriteString(")) ? ")
	b.WriteString(prefix)
	b.WriteString(globalFiSignal)
	if width == 1 {
		b.WriteString("[0]")
	} else {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(width - 1))
		b.WriteString(":0]")
	}
	b.WriteString(" : {")
	b.WriteString(strconv.Itoa(width))
	b.WriteString("{1'b0}})")
	return b.String()
}
