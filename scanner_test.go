package netlistfi

import "testing"

func TestInsideCommentLineComment(t *testing.T) {
	buf := []byte("wire a; // assign b = a;\nwire b;")
	pos := indexFrom(buf, "assign", 0, len(buf))
	if pos < 0 {
		t.Fatal("fixture missing assign token")
	}
	got, err := insideComment(buf, pos, 0, len(buf))
	if err != nil {
		t.Fatalf("insideComment: %v", err)
	}
	if !got {
		t.Fatal("expected position inside line comment to report true")
	}
}

func TestInsideCommentBlockComment(t *testing.T) {
	buf := []byte("/* assign b = a; */\nwire b;")
	pos := indexFrom(buf, "assign", 0, len(buf))
	got, err := insideComment(buf, pos, 0, len(buf))
	if err != nil {
		t.Fatalf("insideComment: %v", err)
	}
	if !got {
		t.Fatal("expected position inside block comment to report true")
	}
}

func TestInsideCommentAttributeBlock(t *testing.T) {
	buf := []byte("(* assign b = a; *)\nwire b;")
	pos := indexFrom(buf, "assign", 0, len(buf))
	got, err := insideComment(buf, pos, 0, len(buf))
	if err != nil {
		t.Fatalf("insideComment: %v", err)
	}
	if !got {
		t.Fatal("expected position inside (* *) attribute block to report true")
	}
}

func TestInsideCommentPlainCode(t *testing.T) {
	buf := []byte("wire a;\nassign b = a;\n")
	pos := indexFrom(buf, "assign", 0, len(buf))
	got, err := insideComment(buf, pos, 0, len(buf))
	if err != nil {
		t.Fatalf("insideComment: %v", err)
	}
	if got {
		t.Fatal("expected plain assignment to not be inside a comment")
	}
}

func TestInsideCommentNestedRejected(t *testing.T) {
	buf := []byte("/* (* assign b = a; *) */\n")
	pos := indexFrom(buf, "assign", 0, len(buf))
	_, err := insideComment(buf, pos, 0, len(buf))
	if err == nil {
		t.Fatal("expected interleaved block comment syntaxes to be rejected")
	}
	var nfe *Error
	if e, ok := err.(*Error); ok {
		nfe = e
	}
	if nfe == nil || nfe.Kind != ErrLexical {
		t.Fatalf("expected ErrLexical, got %v", err)
	}
}

func TestLastIndexBetween(t *testing.T) {
	buf := []byte("wire a; wire b; wire c;")
	got := lastIndexBetween(buf, "wire", 0, len(buf))
	want := 16
	if got != want {
		t.Fatalf("lastIndexBetween: got %d, want %d", got, want)
	}
}

func TestIndexFromBounds(t *testing.T) {
	buf := []byte("abcabc")
	if got := indexFrom(buf, "abc", 1, len(buf)); got != 3 {
		t.Fatalf("indexFrom: got %d, want 3", got)
	}
	if got := indexFrom(buf, "abc", 0, 2); got != -1 {
		t.Fatalf("indexFrom with hi cutoff: got %d, want -1", got)
	}
}
