package review

import (
	"errors"
	"sync"

	"scrapsheet/internal/ai"
	"scrapsheet/internal/document"
	"scrapsheet/internal/editor"

	"github.com/tliron/commonlog"
)

var (
	// ErrBatchActive rejects re-entrant loads: one batch in review at
	// a time, callers must check rather than assume Load succeeds.
	ErrBatchActive = errors.New("a batch is already under review")

	// ErrNoEdits rejects empty batches and batches whose targets are
	// all missing from the document.
	ErrNoEdits = errors.New("no applicable edits in batch")
)

// Direction moves the review cursor.
type Direction string

const (
	Next Direction = "next"
	Prev Direction = "prev"
)

// Review drives the accept/reject workflow for one batch of proposed
// edits against a live document engine. While a batch is active the
// document is read-only except through review actions; on any terminal
// transition the final content is handed to the resolution hook.
type Review struct {
	mu     sync.Mutex
	engine editor.Engine
	log    commonlog.Logger

	pending      []ai.Edit
	cursor       int
	active       bool
	focused      string
	initialCount int
	snapshot     *document.Node

	onResolved func(tree *document.Node)
}

// New creates a reviewer bound to the given engine.
func New(engine editor.Engine) *Review {
	return &Review{
		engine: engine,
		log:    commonlog.GetLogger("scrapsheet.review"),
	}
}

// OnResolved registers the hook fired with the final content tree on
// every terminal transition. Hosts wire it to the autosave trigger.
func (r *Review) OnResolved(fn func(tree *document.Node)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResolved = fn
}

// Load starts reviewing a batch. Edits whose target spans are no
// longer present are dropped; the content snapshot for RejectAll is
// captured before any diff is materialized.
func (r *Review) Load(edits []ai.Edit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		r.log.Info("load ignored - batch already under review")
		return ErrBatchActive
	}

	var valid []ai.Edit
	for _, e := range edits {
		if _, ok := r.engine.FindByNodeID(e.NodeID); ok {
			valid = append(valid, e)
		}
	}
	if len(valid) == 0 {
		return ErrNoEdits
	}

	r.snapshot = r.engine.ContentTree()
	for _, e := range valid {
		r.engine.CombinedApply(e.NodeID, e.ReplaceText)
	}

	r.pending = valid
	r.cursor = 0
	r.focused = valid[0].NodeID
	r.initialCount = len(valid)
	r.active = true
	r.engine.SetReadOnly(true)
	r.engine.ScrollTo(r.focused)
	return nil
}

// Accept resolves one edit in favor of the replacement: the superseded
// span is deleted and the added span stays. Unknown identifiers are a
// no-op, since UI state can trail the document by a tick.
func (r *Review) Accept(id string) {
	r.resolveOne(id, func() {
		r.engine.RemoveSupersededSpan(id)
		r.engine.ClearDiffMarks(id)
	})
}

// Reject resolves one edit in favor of the original: the added span is
// deleted and the superseded span stays.
func (r *Review) Reject(id string) {
	r.resolveOne(id, func() {
		r.engine.RemoveAddedSpan(id)
		r.engine.ClearDiffMarks(id)
	})
}

func (r *Review) resolveOne(id string, apply func()) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}

	idx := -1
	for i, e := range r.pending {
		if e.NodeID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.log.Debugf("stale edit target %s ignored", id)
		r.mu.Unlock()
		return
	}

	apply()
	r.pending = append(r.pending[:idx], r.pending[idx+1:]...)

	if len(r.pending) == 0 {
		tree, fn := r.finalizeLocked()
		r.mu.Unlock()
		if fn != nil {
			fn(tree)
		}
		return
	}

	if r.cursor > len(r.pending)-1 {
		r.cursor = len(r.pending) - 1
	}
	r.focused = r.pending[r.cursor].NodeID
	r.mu.Unlock()
}

// AcceptAll resolves the whole remaining batch in favor of the
// replacements in a single traversal.
func (r *Review) AcceptAll() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}

	ids := make(map[string]struct{}, len(r.pending))
	for _, e := range r.pending {
		ids[e.NodeID] = struct{}{}
	}
	r.engine.BatchRemoveSuperseded(ids)
	r.pending = nil

	tree, fn := r.finalizeLocked()
	r.mu.Unlock()
	if fn != nil {
		fn(tree)
	}
}

// RejectAll discards the whole batch by restoring the content snapshot
// captured at load time. Valid because the document is read-only during
// review, so nothing outside the diff spans can have changed.
func (r *Review) RejectAll() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}

	r.engine.SetContentTree(r.snapshot)
	r.pending = nil

	tree, fn := r.finalizeLocked()
	r.mu.Unlock()
	if fn != nil {
		fn(tree)
	}
}

// ContinuePartial keeps the edits accepted so far and rejects the rest
// in a single traversal. Returns how many edits had been accepted.
func (r *Review) ContinuePartial() int {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return 0
	}

	accepted := r.initialCount - len(r.pending)

	ids := make(map[string]struct{}, len(r.pending))
	for _, e := range r.pending {
		ids[e.NodeID] = struct{}{}
	}
	r.engine.BatchRemoveAdded(ids)
	r.pending = nil

	tree, fn := r.finalizeLocked()
	r.mu.Unlock()
	if fn != nil {
		fn(tree)
	}
	return accepted
}

// Exit abandons the batch regardless of progress: snapshot restore
// plus forced state reset.
func (r *Review) Exit() {
	r.RejectAll()
}

// Navigate moves the cursor circularly and focuses the edit under it.
func (r *Review) Navigate(dir Direction) (ai.Edit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active || len(r.pending) == 0 {
		return ai.Edit{}, false
	}

	if dir == Prev {
		r.cursor = (r.cursor - 1 + len(r.pending)) % len(r.pending)
	} else {
		r.cursor = (r.cursor + 1) % len(r.pending)
	}
	r.focused = r.pending[r.cursor].NodeID
	r.engine.ScrollTo(r.focused)
	return r.pending[r.cursor], true
}

// finalizeLocked performs the terminal transition: strips any remaining
// diff marks, captures the canonical content, re-enables editing, and
// tears down batch state. Returns the content and the resolution hook
// for the caller to invoke outside the lock.
func (r *Review) finalizeLocked() (*document.Node, func(tree *document.Node)) {
	r.engine.ClearAllDiffMarks()
	tree := r.engine.ContentTree()
	r.engine.SetReadOnly(false)

	r.pending = nil
	r.cursor = 0
	r.active = false
	r.focused = ""
	r.snapshot = nil

	r.log.Info("review batch resolved")
	return tree, r.onResolved
}

// Active reports whether a batch is under review.
func (r *Review) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Pending returns a copy of the unresolved edits in review order.
func (r *Review) Pending() []ai.Edit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ai.Edit, len(r.pending))
	copy(out, r.pending)
	return out
}

// Cursor returns the navigation cursor index.
func (r *Review) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Focused returns the identifier of the edit under the cursor.
func (r *Review) Focused() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}

// AcceptedCount reports how many edits of the active batch have been
// individually accepted so far.
func (r *Review) AcceptedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0
	}
	return r.initialCount - len(r.pending)
}
