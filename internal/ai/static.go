package ai

// StaticProvider serves a fixed edit set, standing in for a real
// inference service during development and in the demo harness. The
// default set targets the seeded demo document, whose spans carry
// deterministic seed-* identifiers.
type StaticProvider struct {
	edits []Edit
}

// NewStaticProvider returns a provider over the default demo edits.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{edits: demoEdits}
}

// NewStaticProviderWith returns a provider over a caller-supplied set.
func NewStaticProviderWith(edits []Edit) *StaticProvider {
	return &StaticProvider{edits: edits}
}

// EditsFor returns the edits applicable to the tool, in review order.
// Proofread is the catch-all and returns everything.
func (p *StaticProvider) EditsFor(tool ToolType) []Edit {
	if tool == ToolProofread {
		out := make([]Edit, len(p.edits))
		copy(out, p.edits)
		return out
	}
	var out []Edit
	for _, e := range p.edits {
		if e.Tool == tool {
			out = append(out, e)
		}
	}
	return out
}

// EditCount reports how many edits a tool would produce, for host
// tooltips.
func (p *StaticProvider) EditCount(tool ToolType) int {
	return len(p.EditsFor(tool))
}

var demoEdits = []Edit{
	{
		NodeID:      "seed-heading-1",
		Tool:        ToolGrammar,
		ReplaceText: "Institution C1 – Nutrition and Metabolism Laboratory",
		Explanation: "Corrected spelling: 'Metabelism' → 'Metabolism'",
	},
	{
		NodeID:      "seed-para-1",
		Tool:        ToolGrammar,
		ReplaceText: "The Nutrition and Metabolism Laboratory is a cutting-edge research facility dedicated to understanding the complex relationships between diet, metabolism, and human health.",
		Explanation: "Corrected spelling: 'Metabelism' → 'Metabolism'",
	},
	{
		NodeID:      "seed-heading-2",
		Tool:        ToolImprove,
		ReplaceText: "About Us",
		Explanation: "Improved heading: 'About Information' → 'About Us'",
	},
	{
		NodeID:      "seed-para-2",
		Tool:        ToolGrammar,
		ReplaceText: "Our research focuses on understanding how nutrients affect metabolic pathways and overall health outcomes. We utilize state-of-the-art equipment to conduct our experiments.",
		Explanation: "Corrected spellings: 'focusses' → 'focuses', 'equipement' → 'equipment'",
	},
	{
		NodeID:      "seed-para-3",
		Tool:        ToolParaphrase,
		ReplaceText: "For inquiries about our research or collaboration opportunities, please reach out to our administrative office.",
		Explanation: "Corrected spellings and rephrased: 'inqueries' → 'inquiries', 'oportunities' → 'opportunities'",
	},
}
