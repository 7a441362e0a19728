package document_test

import (
	"testing"

	"scrapsheet/internal/document"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name     string
		node     *document.Node
		expected int
	}{
		{
			name:     "text node spans its length",
			node:     document.NewText("hello"),
			expected: 5,
		},
		{
			name:     "empty paragraph spans its boundaries",
			node:     document.NewParagraph(),
			expected: 2,
		},
		{
			name:     "paragraph wraps its text",
			node:     document.NewParagraph(document.NewText("hi")),
			expected: 4,
		},
		{
			name: "doc sums blocks",
			node: document.NewDoc(
				document.NewParagraph(document.NewText("ab")),
				document.NewParagraph(document.NewText("cde")),
			),
			expected: 2 + 4 + 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.Size(); got != tt.expected {
				t.Errorf("Size() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestLeafSpanPositions(t *testing.T) {
	doc := document.NewDoc(
		document.NewHeading(1, document.NewText("Title")),
		document.NewParagraph(document.NewText("Body text")),
	)

	spans := doc.LeafSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	// Heading opens at 0, its text starts at 1. The heading spans
	// 2+5=7, so the paragraph's text starts at 7+1=8.
	if spans[0].Pos != 1 {
		t.Errorf("heading text pos = %d, want 1", spans[0].Pos)
	}
	if spans[1].Pos != 8 {
		t.Errorf("paragraph text pos = %d, want 8", spans[1].Pos)
	}
	if spans[1].Parent.Type != document.TypeParagraph {
		t.Errorf("paragraph text parent = %s, want paragraph", spans[1].Parent.Type)
	}
	if spans[1].Index != 0 {
		t.Errorf("paragraph text index = %d, want 0", spans[1].Index)
	}
}

func TestWalkDescendControl(t *testing.T) {
	doc := document.NewDoc(
		document.NewParagraph(document.NewText("a")),
		document.NewParagraph(document.NewText("b")),
	)

	var visited []string
	doc.Walk(func(n *document.Node, pos int) bool {
		visited = append(visited, n.Type)
		return n.Type != document.TypeParagraph
	})

	// Descent refused at paragraphs, so no text nodes are visited.
	if len(visited) != 2 {
		t.Fatalf("expected 2 visits, got %d: %v", len(visited), visited)
	}
	for _, typ := range visited {
		if typ != document.TypeParagraph {
			t.Errorf("visited %s, want only paragraphs", typ)
		}
	}
}

func TestMarks(t *testing.T) {
	n := document.NewText("hello")

	if _, ok := n.NodeID(); ok {
		t.Error("unmarked span should have no identifier")
	}

	n.AddMark(document.NodeIDMark("node-1"))
	id, ok := n.NodeID()
	if !ok || id != "node-1" {
		t.Errorf("NodeID() = %q, %v; want node-1, true", id, ok)
	}

	// Same-type marks replace, never stack.
	n.AddMark(document.NodeIDMark("node-2"))
	if id, _ := n.NodeID(); id != "node-2" {
		t.Errorf("NodeID() after replace = %q, want node-2", id)
	}
	if len(n.Marks) != 1 {
		t.Errorf("expected 1 mark, got %d", len(n.Marks))
	}

	n.AddMark(document.DiffMarkOf(document.DiffAdded, "node-2"))
	kind, ref, ok := n.DiffMark()
	if !ok || kind != document.DiffAdded || ref != "node-2" {
		t.Errorf("DiffMark() = %q, %q, %v", kind, ref, ok)
	}

	n.RemoveMarks(document.MarkDiff)
	if n.HasMark(document.MarkDiff) {
		t.Error("diff mark should be removed")
	}
	if !n.HasMark(document.MarkNodeID) {
		t.Error("identifier mark should survive diff mark removal")
	}
}

func TestInsertRemoveChild(t *testing.T) {
	p := document.NewParagraph(document.NewText("a"), document.NewText("c"))

	p.InsertChild(1, document.NewText("b"))
	if len(p.Content) != 3 || p.Content[1].Text != "b" {
		t.Fatalf("expected a,b,c; got %d children", len(p.Content))
	}

	p.RemoveChild(0)
	if len(p.Content) != 2 || p.Content[0].Text != "b" {
		t.Fatalf("expected b,c after removal")
	}

	// Out-of-range removals are ignored.
	p.RemoveChild(5)
	if len(p.Content) != 2 {
		t.Error("out-of-range removal should be a no-op")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := document.NewDoc(
		document.NewParagraph(document.NewText("hello", document.NodeIDMark("node-1"))),
	)
	clone := orig.Clone()

	clone.Content[0].Content[0].Text = "changed"
	clone.Content[0].Content[0].AddMark(document.NodeIDMark("node-2"))

	if orig.Content[0].Content[0].Text != "hello" {
		t.Error("mutating clone text leaked into original")
	}
	if id, _ := orig.Content[0].Content[0].NodeID(); id != "node-1" {
		t.Error("mutating clone marks leaked into original")
	}
}
