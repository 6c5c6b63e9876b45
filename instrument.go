package netlistfi

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
)

// Result is everything Instrument produces: the rewritten RTL and the module
// table the descriptor is built from.
type Result struct {
	Source  []byte
	Modules *moduleTable
	Top     int // index of the top module in Modules
}

// Instrument rewrites buf so every combinational and sequential assignment in
// it can be corrupted at simulation time, per the fault mode given. trace, if
// non-nil, receives the discovered module names, the hierarchy depth, the
// source text after the corruption pass, and the final module table —
// mirrors coverbee's InstrumentAndLoadCollection logWriter/spew.Fdump pattern.
// errs, if non-nil, is incremented for every complaint surfaced by any pass
// before it's returned up the call stack: the run-scoped replacement for the
// original's global nfiErrorCnt (spec.md §7 — every error is fatal to the
// current run, but the counter is still checked at shutdown as a second,
// redundant signal alongside the first hard error).
func Instrument(buf []byte, topModule string, mode FaultMode, errs *ErrorCounter, trace io.Writer) (*Result, error) {
	table := newModuleTable()

	// Pass 1: register every module by name.
	if err := discoverModuleNames(buf, table); err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("discovering modules: %w", err)
	}

	_, topIdx, ok := table.get(topModule)
	if !ok {
		err := errf(ErrDeclaration, -1, "top module %q not found", topModule)
		errs.Warn(err)
		return nil, err
	}

	if trace != nil {
		fmt.Fprintln(trace, "=== Modules discovered ===")
		spew.Fdump(trace, table.order)
	}

	// Pass 2: throwaway instance scan, just to compute hierarchy depth.
	if err := scanAllInstances(buf, table, discoverInstances); err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("scanning instance hierarchy: %w", err)
	}

	depth, err := hierarchyDepth(table, topIdx)
	if err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("computing hierarchy depth: %w", err)
	}

	if trace != nil {
		fmt.Fprintln(trace, "=== Hierarchy depth ===")
		spew.Fdump(trace, depth)
	}

	for i := 0; i < table.len(); i++ {
		table.byIndex(i).Instances = nil
	}

	// Pass 3: corrupt every assignment, wiring fiEnable into non-top modules.
	alloc := newUUIDAllocator()
	corruptEdits := newEditSet()
	if err := forEachModule(buf, func(name string, start, end int) error {
		module, idx, ok := table.get(name)
		if !ok {
			return errf(ErrStructural, start, "module %q not registered", name)
		}
		isTop := idx == topIdx
		if !isTop {
			if err := addFiEnablePort(buf, corruptEdits, start, end); err != nil {
				return err
			}
		}
		return corruptModuleAssignments(buf, module, corruptEdits, alloc, topModule, mode, start, end)
	}); err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("planning corruption: %w", err)
	}

	sortedCorrupt, err := corruptEdits.sorted()
	if err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("validating corruption edits: %w", err)
	}
	buf, err = applyEdits(buf, sortedCorrupt)
	if err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("applying corruption edits: %w", err)
	}

	if trace != nil {
		fmt.Fprintln(trace, "=== After corruption pass ===")
		fmt.Fprintln(trace, string(buf))
	}

	largestWidth := 0
	for i := 0; i < table.len(); i++ {
		for _, s := range table.byIndex(i).FiSignals {
			if s.Width > largestWidth {
				largestWidth = s.Width
			}
		}
	}

	// Pass 4: mint real instance UUIDs, wire fiEnable into instantiations, and
	// add the top module's global inputs.
	wireEdits := newEditSet()
	if err := forEachModule(buf, func(name string, start, end int) error {
		module, idx, ok := table.get(name)
		if !ok {
			return errf(ErrStructural, start, "module %q not registered", name)
		}
		isTop := idx == topIdx
		if err := wireModuleInstances(buf, wireEdits, alloc, table, module, topModule, isTop, start, end, depth); err != nil {
			return err
		}
		if isTop {
			return addGlobalSignalsToTop(buf, wireEdits, start, end, largestWidth, depth)
		}
		return nil
	}); err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("wiring instances: %w", err)
	}

	sortedWiring, err := wireEdits.sorted()
	if err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("validating wiring edits: %w", err)
	}
	buf, err = applyEdits(buf, sortedWiring)
	if err != nil {
		errs.Warn(err)
		return nil, fmt.Errorf("applying wiring edits: %w", err)
	}

	if trace != nil {
		fmt.Fprintln(trace, "=== Final module table ===")
		spew.Fdump(trace, table.byIdx)
	}

	return &Result{Source: buf, Modules: table, Top: topIdx}, nil
}

// discoverModuleNames walks buf registering every module declaration, in
// declaration order.
func discoverModuleNames(buf []byte, table *moduleTable) error {
	return forEachModule(buf, func(name string, start, end int) error {
		if _, _, exists := table.get(name); exists {
			return errf(ErrStructural, start, "module %q declared twice", name)
		}
		table.getOrCreate(name)
		return nil
	})
}

// forEachModule walks every module declaration in buf front to back, calling
// fn with its name and body span. Grounded on the ModuleFind-driven do/while
// loops repeated throughout RtlFile::FiSignalsCreate.
func forEachModule(buf []byte, fn func(name string, start, end int) error) error {
	pos := 0
	for pos < len(buf) {
		found, ok, err := nextModule(buf, pos)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(found.Name, found.BodyStart, found.BodyEnd); err != nil {
			return err
		}
		pos = found.BodyEnd
	}
	return nil
}

// scanAllInstances runs scan over every module's span, recording whichever
// instances scan finds against that module in the table.
func scanAllInstances(buf []byte, table *moduleTable, scan func([]byte, *moduleTable, *Module, int, int) error) error {
	return forEachModule(buf, func(name string, start, end int) error {
		module, _, ok := table.get(name)
		if !ok {
			return errf(ErrStructural, start, "module %q not registered", name)
		}
		return scan(buf, table, module, start, end)
	})
}

// corruptModuleAssignments walks every "assign "/"<=" needle in
// [start, end) and plans its corruption.
func corruptModuleAssignments(buf []byte, module *Module, edits *editSet, alloc *uuidAllocator, topModule string, mode FaultMode, start, end int) error {
	isTop := module.Name == topModule
	prefix := fiPrefix(topModule, isTop)

	pos := start
	for pos < end {
		n, ok, err := nextNeedle(buf, pos, end)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if err := corruptNeedle(buf, module, edits, alloc, prefix, mode, start, end, n); err != nil {
			return err
		}

		pos = n.Pos + 1
	}

	return nil
}
