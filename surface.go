package netlistfi

import (
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// endOfPortList finds the ");" that closes a module's port list, skipping
// past commented-out hits and rejecting a stray ';' inside the port list.
// Grounded on the repeated ioEnd-search in RtlFile::FiEnableInputAdd /
// GlobalSignalsToTopAdd.
func endOfPortList(buf []byte, start, stop int) (int, error) {
	pos := start
	for {
		ioEnd := indexFrom(buf, ");", pos, stop)
		if ioEnd < 0 {
			return 0, errf(ErrStructural, start, "could not find end of port list")
		}

		inComment, err := insideComment(buf, ioEnd, start, stop)
		if err != nil {
			return 0, err
		}
		if inComment {
			pos = ioEnd + 1
			continue
		}

		semi := indexFrom(buf, ";", start, ioEnd)
		if semi >= 0 {
			return 0, errf(ErrStructural, semi, "unexpected ';' in port list")
		}

		return ioEnd, nil
	}
}

// trimTrailingNewlineSpace retreats pos past any run of '\n'/' ' immediately
// before it, returning the position just after the retained text.
func trimTrailingNewlineSpace(buf []byte, pos int) int {
	pos--
	for pos >= 0 && (buf[pos] == '\n' || buf[pos] == ' ') {
		pos--
	}
	return pos + 1
}

// addFiEnablePort wires a bare fiEnable input/wire into a non-top module's
// port list. Grounded on RtlFile::FiEnableInputAdd.
func addFiEnablePort(buf []byte, edits *editSet, start, stop int) error {
	ioEnd, err := endOfPortList(buf, start, stop)
	if err != nil {
		return err
	}

	replacement := ", " + fiEnableStr + ");\n input " + fiEnableStr + ";\n wire " + fiEnableStr + ";"
	return edits.add(ioEnd, ioEnd+2, replacement)
}

// addGlobalSignalsToTop wires the top module's GlobalFiSignal/GlobalFiNumber/
// GlobalFiModInstNr inputs and the derived fiEnable assignment. Grounded on
// RtlFile::GlobalSignalsToTopAdd.
func addGlobalSignalsToTop(buf []byte, edits *editSet, start, stop, fiSignalWidth, hierarchyDepth int) error {
	ioEnd, err := endOfPortList(buf, start, stop)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(", ")
	b.WriteString(globalFiSignal)
	b.WriteString(", ")
	b.WriteString(globalFiNumber)
	b.WriteString(", ")
	b.WriteString(globalFiModInstNum)
	b.WriteString(");\n")
	b.WriteString("input " + globalFiSignal + ";\n")
	b.WriteString("wire [" + strconv.Itoa(fiSignalWidth-1) + ":0] " + globalFiSignal + ";\n")
	b.WriteString("input " + globalFiNumber + ";\n")
	b.WriteString("wire [31:0] " + globalFiNumber + ";\n")
	b.WriteString("input " + globalFiModInstNum + ";\n")
	b.WriteString("wire [15:0] " + globalFiModInstNum + "[" + strconv.Itoa(hierarchyDepth) + "];\n")
	b.WriteString("wire " + fiEnableStr + ";\n")
	b.WriteString("assign " + fiEnableStr + " = ")
	for hier := 0; hier < hierarchyDepth; hier++ {
		b.WriteString("(" + strconv.Itoa(ReservedTopUUID) + " == " + globalFiModInstNum + "[" + strconv.Itoa(hier) + "])")
		if hier != hierarchyDepth-1 {
			b.WriteString(" || ")
		}
	}
	b.WriteString(";\n")

	return edits.add(ioEnd, ioEnd+2, b.String())
}

// isInstantiation reports whether an occurrence of moduleName at instStart is
// a real instantiation rather than a prefix of a longer identifier: the
// original requires a single trailing space and (when checkLeading is true)
// a preceding space or tab. Grounded on the two slightly different checks in
// RtlFile.cpp: the throwaway hierarchy-depth scan only checks the trailing
// byte; RtlFile::ModuleInstancesHandle checks both.
func isInstantiation(buf []byte, instStart, nameLen int, checkLeading bool) bool {
	nameEnd := instStart + nameLen
	if nameEnd >= len(buf) || buf[nameEnd] != ' ' {
		return false
	}
	if checkLeading && (instStart == 0 || !isSpaceOrTab(buf[instStart-1])) {
		return false
	}
	return true
}

// wireModuleInstances scans [moduleStart, moduleEnd) for instantiations of
// every module in table, mints an instance UUID for each, records it against
// module, and appends the fiEnable binding to the instance's port list.
// Grounded on RtlFile::ModuleInstancesHandle.
func wireModuleInstances(buf []byte, edits *editSet, alloc *uuidAllocator, table *moduleTable, module *Module, topModule string, isTop bool, moduleStart, moduleEnd, hierarchyDepth int) error {
	fiEnableSignal := globalFiModInstNum
	if !isTop {
		fiEnableSignal = topModule + "." + globalFiModInstNum
	}

	for childIdx := 0; childIdx < table.len(); childIdx++ {
		child := table.byIndex(childIdx)

		currPos := moduleStart
		for currPos < moduleEnd {
			instStart := indexFrom(buf, child.Name, currPos, moduleEnd)
			if instStart < 0 {
				break
			}

			inComment, err := insideComment(buf, instStart, moduleStart, moduleEnd)
			if err != nil {
				return err
			}

			if !isInstantiation(buf, instStart, len(child.Name), true) || inComment {
				currPos = instStart + 1
				continue
			}

			instUUID := alloc.next()
			module.Instances = append(module.Instances, Instance{Child: childIdx, UUID: instUUID})

			ioEnd := indexFrom(buf, ");", instStart, moduleEnd)
			if ioEnd < 0 {
				return errf(ErrStructural, instStart, "could not find end of inputs for module instance")
			}

			illegalSemi := indexFrom(buf, ";", instStart, ioEnd)
			if illegalSemi >= 0 {
				return errf(ErrStructural, illegalSemi, "unexpected ';' in module instance inputs")
			}

			replaceAt := trimTrailingNewlineSpace(buf, ioEnd)

			var b strings.Builder
			b.WriteString(",\n")
			b.WriteString("    ." + fiEnableStr + "(")
			b.WriteString(fiEnableStr + " && (")
			for hier := 0; hier < hierarchyDepth; hier++ {
				b.WriteString("(" + strconv.Itoa(instUUID) + " == " + fiEnableSignal + "[" + strconv.Itoa(hier) + "])")
				if hier < hierarchyDepth-1 {
					b.WriteString(" || ")
				}
			}
			b.WriteString("))")

			if err := edits.add(replaceAt, replaceAt, b.String()); err != nil {
				return err
			}

			currPos = ioEnd
		}
	}

	return nil
}

// discoverInstances records, without touching buf, which modules are
// instantiated inside [moduleStart, moduleEnd) — used for the throwaway
// hierarchy-depth scan that runs before any UUID is minted or any edit
// planned. Grounded on RtlFile::FiSignalsCreate's first instance-discovery
// loop (it omits the leading-space check that the later, real pass applies).
func discoverInstances(buf []byte, table *moduleTable, module *Module, moduleStart, moduleEnd int) error {
	for childIdx := 0; childIdx < table.len(); childIdx++ {
		child := table.byIndex(childIdx)

		currPos := moduleStart
		for currPos < moduleEnd {
			instStart := indexFrom(buf, child.Name, currPos, moduleEnd)
			if instStart < 0 {
				break
			}

			inComment, err := insideComment(buf, instStart, moduleStart, moduleEnd)
			if err != nil {
				return err
			}

			if !isInstantiation(buf, instStart, len(child.Name), false) || inComment {
				currPos = instStart + 1
				continue
			}

			module.Instances = append(module.Instances, Instance{Child: childIdx})
			currPos = instStart + len(child.Name)
		}
	}

	return nil
}

// hierarchyDepth computes the deepest instantiation chain rooted at
// table.byIndex(rootIdx), counting the root itself. Grounded on
// RtlFile::HierarchyDepthGet; unlike the original's unguarded recursion, a
// cycle in the instance graph is detected and reported rather than
// overflowing the stack (spec.md §5 "hierarchy must be acyclic").
func hierarchyDepth(table *moduleTable, rootIdx int) (int, error) {
	return hierarchyDepthRec(table, rootIdx, nil)
}

func hierarchyDepthRec(table *moduleTable, idx int, stack []int) (int, error) {
	if slices.Contains(stack, idx) {
		return 0, errf(ErrStructural, -1, "cyclic module instantiation involving %q", table.byIndex(idx).Name)
	}
	stack = append(stack, idx)

	module := table.byIndex(idx)
	deepest := 0
	for _, inst := range module.Instances {
		d, err := hierarchyDepthRec(table, inst.Child, stack)
		if err != nil {
			return 0, err
		}
		if d > deepest {
			deepest = d
		}
	}

	return deepest + 1, nil
}
