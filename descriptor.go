package netlistfi

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DescriptorFileName returns the literal external-interface filename for a
// top module's hierarchy descriptor (spec.md §6).
func DescriptorFileName(topModule string) string {
	return topModule + "FiSignals.cpp"
}

// descriptor line tags. One module per MODULE/ENDMODULE block, in table
// order; pkg/selector parses this same grammar back with a bufio.Scanner.
const (
	tagHeader   = "# netlistfi descriptor"
	tagModule   = "MODULE"
	tagSignal   = "SIGNAL"
	tagInstance = "INSTANCE"
	tagEndMod   = "ENDMODULE"
	tagTop      = "TOP"
)

// WriteDescriptor emits the hierarchy descriptor for result to w. Grounded on
// RtlFile::LibraryCreate/MapOffsetsCalculate: module index assignment mirrors
// MapOffsetsCalculate's declaration-order numbering, here the moduleTable's
// own insertion order rather than a recomputed map.
func WriteDescriptor(w io.Writer, r *Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s\n", tagHeader)

	for i := 0; i < r.Modules.len(); i++ {
		m := r.Modules.byIndex(i)
		fmt.Fprintf(bw, "%s %d %s\n", tagModule, i, escapeField(m.Name))
		for _, s := range m.FiSignals {
			fmt.Fprintf(bw, "%s %s %d %d %d\n", tagSignal, s.Kind, s.Width, s.ElemCnt, s.UUID)
		}
		for _, inst := range m.Instances {
			fmt.Fprintf(bw, "%s %d %d\n", tagInstance, inst.Child, inst.UUID)
		}
		fmt.Fprintf(bw, "%s\n", tagEndMod)
	}

	fmt.Fprintf(bw, "%s %d %d\n", tagTop, r.Top, ReservedTopUUID)

	return bw.Flush()
}

// escapeField makes a module name safe to round-trip as a single
// whitespace-delimited field: embedded backslashes are doubled first
// (RtlFile.cpp's backslashToDoubleBackslash, spec.md:116), then embedded
// spaces are escaped so strings.Fields can't split the field apart. Doubling
// the backslash before escaping the space keeps the two escapes unambiguous
// on read: a lone `\` is always followed by either `\` or a space.
func escapeField(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ' ':
			b.WriteString(`\ `)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
