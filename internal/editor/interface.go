package editor

import "scrapsheet/internal/document"

// Engine is the narrow capability surface of a live document engine
// that the review and session layers depend on. The in-memory Editor
// implements it; a host embedding a real rich-text engine supplies an
// adapter with the same contract.
type Engine interface {
	// Content access. ContentTree returns a detached copy; mutating it
	// never affects the live document.
	ContentTree() *document.Node
	SetContentTree(tree *document.Node)

	// Editing gate. While read-only, direct edits are refused; the
	// diff primitives below still operate.
	SetReadOnly(readOnly bool)
	ReadOnly() bool

	// Node addressing.
	FindByNodeID(id string) (pos int, ok bool)
	ScrollTo(id string)

	// Diff representation primitives.
	MarkSuperseded(id string) bool
	InsertReplacementAfter(id, text string, extra ...document.Mark) bool
	CombinedApply(id, text string) bool
	ClearDiffMarks(id string)
	ClearAllDiffMarks()
	RemoveSupersededSpan(id string) bool
	RemoveAddedSpan(id string) bool
	BatchRemoveSuperseded(ids map[string]struct{}) int
	BatchRemoveAdded(ids map[string]struct{}) int

	// Change notification for content-changing transactions issued
	// through the editing surface.
	OnChange(fn func())
}
