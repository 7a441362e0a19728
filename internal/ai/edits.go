package ai

// ToolType selects which class of suggestions an edit belongs to.
type ToolType string

const (
	ToolProofread  ToolType = "proofread"
	ToolGrammar    ToolType = "grammar"
	ToolParaphrase ToolType = "paraphrase"
	ToolImprove    ToolType = "improve"
	ToolShorten    ToolType = "shorten"
)

// Edit is one proposed change: replace the span addressed by NodeID
// with ReplaceText. Explanation is the human-readable rationale shown
// during review.
type Edit struct {
	NodeID      string
	Tool        ToolType
	ReplaceText string
	Explanation string
}

// Provider produces the ordered edit batch for a tool invocation. This
// is the integration seam for a real inference backend; the review
// state machine is agnostic to where edits come from.
type Provider interface {
	EditsFor(tool ToolType) []Edit
}
