package editor

import (
	"sort"

	"scrapsheet/internal/document"
)

// Diff representation: a proposed edit is rendered as two sibling
// spans, the original marked superseded and a replacement marked
// added, so review can discard either half cheaply without losing the
// other mid-review. All primitives are a single O(document) traversal
// and silently no-op on stale identifiers.

// FindByNodeID returns the position of the span carrying the given
// identifier.
func (e *Editor) FindByNodeID(id string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	span, ok := e.findByNodeID(id)
	if !ok {
		return -1, false
	}
	return span.Pos, true
}

func (e *Editor) findByNodeID(id string) (document.Span, bool) {
	for _, span := range e.doc.LeafSpans() {
		if sid, ok := span.Node.NodeID(); ok && sid == id {
			return span, true
		}
	}
	return document.Span{}, false
}

func (e *Editor) findByDiff(kind, nodeID string) (document.Span, bool) {
	for _, span := range e.doc.LeafSpans() {
		if k, ref, ok := span.Node.DiffMark(); ok && k == kind && ref == nodeID {
			return span, true
		}
	}
	return document.Span{}, false
}

// MarkSuperseded attaches a superseded diff mark to the span holding
// the identifier.
func (e *Editor) MarkSuperseded(id string) bool {
	e.mu.Lock()
	span, ok := e.findByNodeID(id)
	if ok {
		span.Node.AddMark(document.DiffMarkOf(document.DiffSuperseded, id))
	}
	e.mu.Unlock()
	return ok
}

// InsertReplacementAfter inserts a new text span immediately after the
// span holding the identifier, carrying an added diff mark that refers
// back to it.
func (e *Editor) InsertReplacementAfter(id, text string, extra ...document.Mark) bool {
	e.mu.Lock()
	span, ok := e.findByNodeID(id)
	if ok {
		marks := append([]document.Mark{document.DiffMarkOf(document.DiffAdded, id)}, extra...)
		span.Parent.InsertChild(span.Index+1, document.NewText(text, marks...))
	}
	e.mu.Unlock()
	if ok {
		e.assignNodeIDs()
	}
	return ok
}

// CombinedApply marks the target superseded and inserts the replacement
// in one traversal, keeping batch application O(n) rather than O(n·k).
func (e *Editor) CombinedApply(id, text string) bool {
	e.mu.Lock()
	span, ok := e.findByNodeID(id)
	if ok {
		span.Node.AddMark(document.DiffMarkOf(document.DiffSuperseded, id))
		added := document.NewText(text, document.DiffMarkOf(document.DiffAdded, id))
		span.Parent.InsertChild(span.Index+1, added)
	}
	e.mu.Unlock()
	if ok {
		e.assignNodeIDs()
	}
	return ok
}

// ClearDiffMarks strips diff marks from every span whose mark refers to
// the given identifier.
func (e *Editor) ClearDiffMarks(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, span := range e.doc.LeafSpans() {
		if _, ref, ok := span.Node.DiffMark(); ok && ref == id {
			span.Node.RemoveMarks(document.MarkDiff)
		}
	}
}

// ClearAllDiffMarks strips every diff mark in the document. Diff marks
// are pure review artifacts and must never reach saved content.
func (e *Editor) ClearAllDiffMarks() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, span := range e.doc.LeafSpans() {
		span.Node.RemoveMarks(document.MarkDiff)
	}
}

// RemoveSupersededSpan deletes the span carrying the superseded mark
// for the identifier (the old half, discarded on accept).
func (e *Editor) RemoveSupersededSpan(id string) bool {
	return e.removeDiffSpan(document.DiffSuperseded, id)
}

// RemoveAddedSpan deletes the span carrying the added mark for the
// identifier (the proposed half, discarded on reject).
func (e *Editor) RemoveAddedSpan(id string) bool {
	return e.removeDiffSpan(document.DiffAdded, id)
}

func (e *Editor) removeDiffSpan(kind, id string) bool {
	e.mu.Lock()
	span, ok := e.findByDiff(kind, id)
	if ok {
		span.Parent.RemoveChild(span.Index)
	}
	e.mu.Unlock()
	return ok
}

// BatchRemoveSuperseded deletes the superseded spans for a whole
// identifier set in one traversal.
func (e *Editor) BatchRemoveSuperseded(ids map[string]struct{}) int {
	return e.batchRemoveDiff(document.DiffSuperseded, ids)
}

// BatchRemoveAdded deletes the added spans for a whole identifier set
// in one traversal.
func (e *Editor) BatchRemoveAdded(ids map[string]struct{}) int {
	return e.batchRemoveDiff(document.DiffAdded, ids)
}

func (e *Editor) batchRemoveDiff(kind string, ids map[string]struct{}) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var matched []document.Span
	for _, span := range e.doc.LeafSpans() {
		if k, ref, ok := span.Node.DiffMark(); ok && k == kind {
			if _, want := ids[ref]; want {
				matched = append(matched, span)
			}
		}
	}

	// Delete back to front so earlier removals don't shift the
	// indexes still to be removed.
	sort.Slice(matched, func(i, j int) bool { return matched[i].Pos > matched[j].Pos })
	for _, span := range matched {
		span.Parent.RemoveChild(span.Index)
	}
	return len(matched)
}
