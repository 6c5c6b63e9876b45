package selector

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/andreyvit/diff"
)

// formatTable re-serializes a parsed Table back into the descriptor line
// grammar, for the round-trip check below.
func formatTable(t *Table) string {
	var b strings.Builder
	for i, m := range t.Modules {
		fmt.Fprintf(&b, "MODULE %d %s\n", i, strings.ReplaceAll(m.Name, " ", `\ `))
		for _, s := range m.Signals {
			fmt.Fprintf(&b, "SIGNAL %s %d %d %d\n", s.Kind, s.Width, s.ElemCnt, s.UUID)
		}
		for _, inst := range m.Instances {
			fmt.Fprintf(&b, "INSTANCE %d %d\n", inst.Child, inst.UUID)
		}
		b.WriteString("ENDMODULE\n")
	}
	fmt.Fprintf(&b, "TOP %d %d\n", t.Top, t.TopUUID)
	return b.String()
}

const sampleDescriptor = `# netlistfi descriptor
MODULE 0 Cpu
SIGNAL SIGNAL_TYPE_WIRE 8 1 2
INSTANCE 1 3
ENDMODULE
MODULE 1 Adder
SIGNAL SIGNAL_TYPE_WIRE 4 1 4
ENDMODULE
TOP 0 1
`

func TestLoadParsesModulesSignalsInstances(t *testing.T) {
	table, err := Load(strings.NewReader(sampleDescriptor))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(table.Modules) != 2 {
		t.Fatalf("len(Modules): got %d, want 2", len(table.Modules))
	}
	if table.Top != 0 || table.TopUUID != 1 {
		t.Fatalf("Top/TopUUID: got %d/%d, want 0/1", table.Top, table.TopUUID)
	}

	cpu := table.Modules[0]
	if cpu.Name != "Cpu" {
		t.Fatalf("Modules[0].Name: got %q", cpu.Name)
	}
	if len(cpu.Signals) != 1 || cpu.Signals[0].Width != 8 || cpu.Signals[0].UUID != 2 {
		t.Fatalf("Modules[0].Signals: got %+v", cpu.Signals)
	}
	if len(cpu.Instances) != 1 || cpu.Instances[0].Child != 1 || cpu.Instances[0].UUID != 3 {
		t.Fatalf("Modules[0].Instances: got %+v", cpu.Instances)
	}

	adder := table.Modules[1]
	if adder.Name != "Adder" || len(adder.Signals) != 1 || adder.Signals[0].Width != 4 {
		t.Fatalf("Modules[1]: got %+v", adder)
	}
}

func TestLoadRejectsOutOfOrderModule(t *testing.T) {
	bad := strings.Replace(sampleDescriptor, "MODULE 1 Adder", "MODULE 5 Adder", 1)
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatal("expected an out-of-order MODULE index to be rejected")
	}
}

func TestLoadRejectsSignalOutsideModule(t *testing.T) {
	bad := "SIGNAL SIGNAL_TYPE_WIRE 8 1 2\nTOP 0 1\n"
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Fatal("expected a SIGNAL line outside any MODULE block to be rejected")
	}
}

func TestLoadUnescapesModuleName(t *testing.T) {
	src := "MODULE 0 weird\\ name\nENDMODULE\nTOP 0 1\n"
	table, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Modules[0].Name != "weird name" {
		t.Fatalf("got %q, want %q", table.Modules[0].Name, "weird name")
	}
}

func TestLoadUnescapesDoubledBackslash(t *testing.T) {
	// "mod\\inst" on the wire is escapeField's doubled form of "mod\inst".
	src := "MODULE 0 mod\\\\inst\nENDMODULE\nTOP 0 1\n"
	table, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Modules[0].Name != `mod\inst` {
		t.Fatalf("got %q, want %q", table.Modules[0].Name, `mod\inst`)
	}
}

func TestLoadUnescapesBackslashAndSpaceTogether(t *testing.T) {
	// escapeField's doubled-backslash-then-escaped-space form of
	// `weird\name with space`, reassembled across the multiple
	// strings.Fields tokens the escaped spaces split the line into.
	src := "MODULE 0 weird\\\\name\\ with\\ space\nENDMODULE\nTOP 0 1\n"
	table, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := `weird\name with space`
	if table.Modules[0].Name != want {
		t.Fatalf("got %q, want %q", table.Modules[0].Name, want)
	}
}

func TestUnescapeFieldDistinguishesBackslashFromSpace(t *testing.T) {
	if got := unescapeField(`a\\b`); got != `a\b` {
		t.Fatalf("unescapeField: got %q, want %q", got, `a\b`)
	}
	if got := unescapeField(`a\ b`); got != "a b" {
		t.Fatalf("unescapeField: got %q, want %q", got, "a b")
	}
}

func TestTableBitsSumsHierarchy(t *testing.T) {
	table, err := Load(strings.NewReader(sampleDescriptor))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := table.bits(0)
	if err != nil {
		t.Fatalf("bits: %v", err)
	}
	want := 8 + 4 // Cpu's own fi_ width plus its Adder instance's
	if got != want {
		t.Fatalf("bits(0): got %d, want %d", got, want)
	}
}

func TestDescriptorGrammarRoundTrips(t *testing.T) {
	table, err := Load(strings.NewReader(sampleDescriptor))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	body := strings.TrimPrefix(sampleDescriptor, "# netlistfi descriptor\n")
	got := formatTable(table)
	if got != body {
		t.Fatalf("re-serialized descriptor does not round-trip:\n%s", diff.LineDiff(body, got))
	}
}

func TestNewSelectorRejectsEmptyTable(t *testing.T) {
	table := &Table{Modules: []Module{{Name: "Empty"}}, Top: 0, bitsCache: make(map[int]int)}
	if _, err := NewSelector(table); err == nil {
		t.Fatal("expected a table with zero fault-injection bits to be rejected")
	}
}

func TestRandomFIStaysWithinTable(t *testing.T) {
	table, err := Load(strings.NewReader(sampleDescriptor))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sel, err := NewSelector(table)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		target, err := sel.RandomFI(rng)
		if err != nil {
			t.Fatalf("RandomFI: %v", err)
		}
		if target.AssignmentUUID != 2 && target.AssignmentUUID != 4 {
			t.Fatalf("unexpected assignment UUID %d", target.AssignmentUUID)
		}
	}
}

// TestRandomFIConvergesToBitWeightedFrequency exercises a two-signal design
// (widths 1 and 7, total 8 bits) and checks the chosen-signal frequency
// converges to the 1:7 split the bit widths imply.
func TestRandomFIConvergesToBitWeightedFrequency(t *testing.T) {
	src := "MODULE 0 Top\n" +
		"SIGNAL SIGNAL_TYPE_WIRE 1 1 2\n" +
		"SIGNAL SIGNAL_TYPE_WIRE 7 1 3\n" +
		"ENDMODULE\n" +
		"TOP 0 1\n"

	table, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sel, err := NewSelector(table)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	const draws = 200000
	var narrowHits, wideHits int
	for i := 0; i < draws; i++ {
		target, err := sel.RandomFI(rng)
		if err != nil {
			t.Fatalf("RandomFI: %v", err)
		}
		switch target.AssignmentUUID {
		case 2:
			narrowHits++
		case 3:
			wideHits++
		default:
			t.Fatalf("unexpected assignment UUID %d", target.AssignmentUUID)
		}
	}

	gotRatio := float64(wideHits) / float64(narrowHits)
	wantRatio := 7.0
	if gotRatio < wantRatio*0.9 || gotRatio > wantRatio*1.1 {
		t.Fatalf("wide:narrow ratio %.3f outside +/-10%% of the expected %.1f (narrow=%d wide=%d)",
			gotRatio, wantRatio, narrowHits, wideHits)
	}
}
