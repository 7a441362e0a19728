package editor

import (
	"fmt"
	"sync"

	"scrapsheet/internal/document"

	"github.com/tliron/commonlog"
)

// ErrReadOnly is returned for direct edits while a review batch has the
// document locked.
var ErrReadOnly = fmt.Errorf("document is read-only during review")

// Editor is an in-memory document engine. It owns a content tree and a
// transaction pipeline: every content-changing transaction is followed
// by the node-identifier assignment pass, and edits issued through the
// editing surface notify change subscribers.
type Editor struct {
	mu         sync.Mutex
	doc        *document.Node
	readOnly   bool
	scrolledTo string
	onChange   []func()

	log commonlog.Logger
}

// New creates an editor around the given tree (nil for an empty
// document). The identifier pass runs immediately so every existing
// span is addressable.
func New(doc *document.Node) *Editor {
	if doc == nil {
		doc = document.NewDoc()
	}
	e := &Editor{
		doc: doc,
		log: commonlog.GetLogger("scrapsheet.editor"),
	}
	e.assignNodeIDs()
	return e
}

// ContentTree returns a deep copy of the live document.
func (e *Editor) ContentTree() *document.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// SetContentTree replaces the live document. Counts as a
// content-changing transaction: unmarked spans get identifiers.
func (e *Editor) SetContentTree(tree *document.Node) {
	e.mu.Lock()
	if tree == nil {
		tree = document.NewDoc()
	}
	e.doc = tree.Clone()
	e.mu.Unlock()
	e.assignNodeIDs()
}

// SetReadOnly gates the direct editing surface.
func (e *Editor) SetReadOnly(readOnly bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readOnly = readOnly
}

// ReadOnly reports whether direct editing is disabled.
func (e *Editor) ReadOnly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readOnly
}

// OnChange registers a callback fired after every transaction issued
// through the editing surface (typing, pasting). Diff primitives do not
// fire it; review triggers persistence explicitly on resolution.
func (e *Editor) OnChange(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, fn)
}

// ScrollTo records the span the host should bring into view. The
// in-memory engine just remembers it; a real host adapter scrolls.
func (e *Editor) ScrollTo(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scrolledTo = id
}

// ScrolledTo returns the identifier last requested via ScrollTo.
func (e *Editor) ScrolledTo() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrolledTo
}

// ReplaceSpanText replaces the text of the span carrying the given
// identifier. Refused while read-only.
func (e *Editor) ReplaceSpanText(id, text string) error {
	e.mu.Lock()
	if e.readOnly {
		e.mu.Unlock()
		return ErrReadOnly
	}
	found := false
	for _, span := range e.doc.LeafSpans() {
		if sid, ok := span.Node.NodeID(); ok && sid == id {
			span.Node.Text = text
			found = true
			break
		}
	}
	e.mu.Unlock()
	if !found {
		return fmt.Errorf("no span with id %q", id)
	}
	e.afterTransaction()
	return nil
}

// AppendParagraph appends a new paragraph with a single text span.
// Refused while read-only. Returns the identifier assigned to the new
// span.
func (e *Editor) AppendParagraph(text string) (string, error) {
	e.mu.Lock()
	if e.readOnly {
		e.mu.Unlock()
		return "", ErrReadOnly
	}
	span := document.NewText(text)
	e.doc.InsertChild(len(e.doc.Content), document.NewParagraph(span))
	e.mu.Unlock()
	e.afterTransaction()

	e.mu.Lock()
	defer e.mu.Unlock()
	id, _ := span.NodeID()
	return id, nil
}

// afterTransaction runs the post-transaction passes and notifies
// subscribers. Must be called without the lock held.
func (e *Editor) afterTransaction() {
	e.assignNodeIDs()

	e.mu.Lock()
	subs := make([]func(), len(e.onChange))
	copy(subs, e.onChange)
	e.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
