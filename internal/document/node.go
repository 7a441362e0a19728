package document

// Mark is an annotation attached to a node, e.g. a stable node identifier
// or a transient diff mark shown during edit review.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node is one node of a content tree. Block nodes carry children in
// Content; leaf text spans carry Text and Marks.
type Node struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Content []*Node        `json:"content,omitempty"`
}

// Mark and node type names shared with the host editor schema.
const (
	TypeDoc       = "doc"
	TypeParagraph = "paragraph"
	TypeHeading   = "heading"
	TypeText      = "text"

	MarkNodeID = "nodeId"
	MarkDiff   = "diffMark"

	DiffSuperseded = "superseded"
	DiffAdded      = "added"
)

// NewDoc returns an empty document root.
func NewDoc(children ...*Node) *Node {
	return &Node{Type: TypeDoc, Content: children}
}

// NewParagraph returns a paragraph block wrapping the given children.
func NewParagraph(children ...*Node) *Node {
	return &Node{Type: TypeParagraph, Content: children}
}

// NewHeading returns a heading block of the given level.
func NewHeading(level int, children ...*Node) *Node {
	return &Node{
		Type:    TypeHeading,
		Attrs:   map[string]any{"level": level},
		Content: children,
	}
}

// NewText returns a leaf text span carrying the given marks.
func NewText(text string, marks ...Mark) *Node {
	return &Node{Type: TypeText, Text: text, Marks: marks}
}

// NodeIDMark builds the identifier mark for a text span.
func NodeIDMark(id string) Mark {
	return Mark{Type: MarkNodeID, Attrs: map[string]any{"id": id}}
}

// DiffMarkOf builds a diff mark of the given kind referencing the
// identifier of the span the proposal targets.
func DiffMarkOf(kind, nodeID string) Mark {
	return Mark{Type: MarkDiff, Attrs: map[string]any{"kind": kind, "nodeId": nodeID}}
}

// IsText reports whether the node is a leaf text span.
func (n *Node) IsText() bool {
	return n.Type == TypeText
}

// Attr returns a string attribute of the mark.
func (m Mark) Attr(key string) (string, bool) {
	if m.Attrs == nil {
		return "", false
	}
	v, ok := m.Attrs[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MarkOfType returns the first mark of the given type.
func (n *Node) MarkOfType(name string) (Mark, bool) {
	for _, m := range n.Marks {
		if m.Type == name {
			return m, true
		}
	}
	return Mark{}, false
}

// HasMark reports whether the node carries a mark of the given type.
func (n *Node) HasMark(name string) bool {
	_, ok := n.MarkOfType(name)
	return ok
}

// NodeID returns the span's stable identifier, if one was assigned.
func (n *Node) NodeID() (string, bool) {
	m, ok := n.MarkOfType(MarkNodeID)
	if !ok {
		return "", false
	}
	return m.Attr("id")
}

// DiffMark returns the span's diff mark, if present.
func (n *Node) DiffMark() (kind, nodeID string, ok bool) {
	m, found := n.MarkOfType(MarkDiff)
	if !found {
		return "", "", false
	}
	kind, _ = m.Attr("kind")
	nodeID, _ = m.Attr("nodeId")
	return kind, nodeID, true
}

// AddMark appends a mark, replacing any existing mark of the same type.
func (n *Node) AddMark(m Mark) {
	n.RemoveMarks(m.Type)
	n.Marks = append(n.Marks, m)
}

// RemoveMarks strips every mark of the given type from the node.
func (n *Node) RemoveMarks(name string) {
	kept := n.Marks[:0]
	for _, m := range n.Marks {
		if m.Type != name {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		n.Marks = nil
		return
	}
	n.Marks = kept
}

// Size returns the node's span width in the engine's position space:
// text nodes span their text length, block nodes add one position for
// each boundary.
func (n *Node) Size() int {
	if n.IsText() {
		return len(n.Text)
	}
	size := 2
	for _, c := range n.Content {
		size += c.Size()
	}
	return size
}

// Walk traverses all descendants depth-first, reporting each node's
// position. The callback returns whether to descend into the node's
// children; traversal of siblings continues regardless.
func (n *Node) Walk(fn func(node *Node, pos int) bool) {
	walkChildren(n, 0, fn)
}

func walkChildren(parent *Node, base int, fn func(node *Node, pos int) bool) {
	pos := base
	for _, c := range parent.Content {
		descend := fn(c, pos)
		if descend && !c.IsText() {
			walkChildren(c, pos+1, fn)
		}
		pos += c.Size()
	}
}

// Span is a leaf text node located within the tree, together with the
// structural handle needed to mutate it in place.
type Span struct {
	Node   *Node
	Parent *Node
	Index  int
	Pos    int
}

// LeafSpans enumerates every leaf text span in document order.
func (n *Node) LeafSpans() []Span {
	var spans []Span
	collectSpans(n, 0, &spans)
	return spans
}

func collectSpans(parent *Node, base int, out *[]Span) {
	pos := base
	for i, c := range parent.Content {
		if c.IsText() {
			*out = append(*out, Span{Node: c, Parent: parent, Index: i, Pos: pos})
		} else {
			collectSpans(c, pos+1, out)
		}
		pos += c.Size()
	}
}

// InsertChild inserts a child node at the given index.
func (n *Node) InsertChild(index int, child *Node) {
	if index < 0 {
		index = 0
	}
	if index > len(n.Content) {
		index = len(n.Content)
	}
	n.Content = append(n.Content, nil)
	copy(n.Content[index+1:], n.Content[index:])
	n.Content[index] = child
}

// RemoveChild removes the child at the given index.
func (n *Node) RemoveChild(index int) {
	if index < 0 || index >= len(n.Content) {
		return
	}
	n.Content = append(n.Content[:index], n.Content[index+1:]...)
}

// Clone returns a deep copy of the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Type: n.Type, Text: n.Text}
	if n.Attrs != nil {
		out.Attrs = make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if n.Marks != nil {
		out.Marks = make([]Mark, len(n.Marks))
		for i, m := range n.Marks {
			cm := Mark{Type: m.Type}
			if m.Attrs != nil {
				cm.Attrs = make(map[string]any, len(m.Attrs))
				for k, v := range m.Attrs {
					cm.Attrs[k] = v
				}
			}
			out.Marks[i] = cm
		}
	}
	if n.Content != nil {
		out.Content = make([]*Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = c.Clone()
		}
	}
	return out
}
