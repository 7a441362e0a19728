package editor

import (
	"scrapsheet/internal/document"

	"github.com/segmentio/ksuid"
)

// NewNodeID synthesizes a globally unique span identifier. KSUIDs carry
// a timestamp prefix and a random payload, so collisions are
// practically unreachable at document scale.
func NewNodeID() string {
	return "node-" + ksuid.New().String()
}

// assignNodeIDs is the post-transaction addressing pass: every leaf
// text span lacking an identifier mark gets a fresh one. Idempotent,
// since spans that already carry an identifier are left untouched, and
// a single O(document) traversal that never re-triggers itself.
// Returns the number of spans stamped.
func (e *Editor) assignNodeIDs() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	stamped := 0
	for _, span := range e.doc.LeafSpans() {
		if !span.Node.IsText() {
			// Leaf types that disallow marks are skipped; such spans
			// simply stay unaddressable.
			e.log.Debugf("skipping unmarkable span of type %s", span.Node.Type)
			continue
		}
		if span.Node.HasMark(document.MarkNodeID) {
			continue
		}
		span.Node.AddMark(document.NodeIDMark(NewNodeID()))
		stamped++
	}
	if stamped > 0 {
		e.log.Debugf("assigned %d node identifiers", stamped)
	}
	return stamped
}
