package source

import (
	"testing"
)

func TestDocSetVersioning(t *testing.T) {
	ds := NewDocSet()

	id1 := ds.Add("file:///app.sfc", []byte("hello world"), 0)
	if id1 != 0 {
		t.Errorf("expected first DocID to be 0, got %d", id1)
	}

	latestID, exists := ds.GetLatest("file:///app.sfc")
	if !exists {
		t.Error("expected document to exist after Add")
	}
	if latestID != id1 {
		t.Errorf("expected latest ID %d, got %d", id1, latestID)
	}

	// Same URI, new content: new DocID, index points at the newest.
	id2 := ds.Add("file:///app.sfc", []byte("hello universe"), 0)
	if id2 != 1 {
		t.Errorf("expected second DocID to be 1, got %d", id2)
	}

	latestID, exists = ds.GetLatest("file:///app.sfc")
	if !exists {
		t.Error("expected document to exist after second Add")
	}
	if latestID != id2 {
		t.Errorf("expected latest ID %d, got %d", id2, latestID)
	}

	// The old version stays resolvable.
	doc1 := ds.Get(id1)
	if string(doc1.Content) != "hello world" {
		t.Errorf("expected first content 'hello world', got %q", string(doc1.Content))
	}
	doc2 := ds.Get(id2)
	if string(doc2.Content) != "hello universe" {
		t.Errorf("expected second content 'hello universe', got %q", string(doc2.Content))
	}
}

func TestAddVirtualLineIdx(t *testing.T) {
	ds := NewDocSet()

	id := ds.AddVirtual("file:///app.sfc.__script", []byte("a\nb\n"))
	doc := ds.Get(id)

	expected := []uint32{1, 3} // \n positions
	if len(doc.LineIdx) != len(expected) {
		t.Fatalf("expected LineIdx length %d, got %d", len(expected), len(doc.LineIdx))
	}
	for i, val := range expected {
		if doc.LineIdx[i] != val {
			t.Errorf("expected LineIdx[%d] = %d, got %d", i, val, doc.LineIdx[i])
		}
	}

	if doc.Flags&DocVirtual == 0 {
		t.Error("expected DocVirtual flag to be set")
	}
}

func TestCRLFNormalization(t *testing.T) {
	original := []byte("a\r\nb\r\n")
	normalized, changed := normalizeCRLF(original)

	if !changed {
		t.Error("expected CRLF normalization to be detected")
	}
	if string(normalized) != "a\nb\n" {
		t.Errorf("expected normalized content %q, got %q", "a\nb\n", string(normalized))
	}

	// Lone \r is preserved.
	kept, changed := normalizeCRLF([]byte("a\rb"))
	if changed {
		t.Error("expected lone \\r to be kept as-is")
	}
	if string(kept) != "a\rb" {
		t.Errorf("expected %q, got %q", "a\rb", string(kept))
	}
}

func TestResolveLineCol(t *testing.T) {
	ds := NewDocSet()
	id := ds.AddVirtual("file:///x", []byte("ab\ncd\ne"))

	cases := []struct {
		off  uint32
		want LineCol
	}{
		{0, LineCol{1, 1}},
		{1, LineCol{1, 2}},
		{2, LineCol{1, 3}}, // the \n terminating line 1
		{3, LineCol{2, 1}},
		{5, LineCol{2, 3}},
		{6, LineCol{3, 1}},
	}
	for _, tc := range cases {
		start, _ := ds.Resolve(Span{Doc: id, Start: tc.off, End: tc.off})
		if start != tc.want {
			t.Errorf("offset %d: expected %+v, got %+v", tc.off, tc.want, start)
		}
	}
}

func TestGetLine(t *testing.T) {
	ds := NewDocSet()
	id := ds.AddVirtual("file:///x", []byte("first\nsecond\nthird"))
	doc := ds.Get(id)

	if got := doc.GetLine(1); got != "first" {
		t.Errorf("line 1: expected 'first', got %q", got)
	}
	if got := doc.GetLine(2); got != "second" {
		t.Errorf("line 2: expected 'second', got %q", got)
	}
	if got := doc.GetLine(3); got != "third" {
		t.Errorf("line 3: expected 'third', got %q", got)
	}
	if got := doc.GetLine(4); got != "" {
		t.Errorf("line 4: expected empty, got %q", got)
	}
	if got := doc.GetLine(0); got != "" {
		t.Errorf("line 0: expected empty, got %q", got)
	}
}
