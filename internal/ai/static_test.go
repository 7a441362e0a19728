package ai_test

import (
	"testing"

	"scrapsheet/internal/ai"
)

func TestProofreadReturnsEverything(t *testing.T) {
	p := ai.NewStaticProvider()

	all := p.EditsFor(ai.ToolProofread)
	if len(all) == 0 {
		t.Fatal("proofread should propose the full demo set")
	}
	if p.EditCount(ai.ToolProofread) != len(all) {
		t.Error("EditCount disagrees with EditsFor")
	}
}

func TestToolFiltering(t *testing.T) {
	edits := []ai.Edit{
		{NodeID: "a", Tool: ai.ToolGrammar, ReplaceText: "x"},
		{NodeID: "b", Tool: ai.ToolShorten, ReplaceText: "y"},
		{NodeID: "c", Tool: ai.ToolGrammar, ReplaceText: "z"},
	}
	p := ai.NewStaticProviderWith(edits)

	grammar := p.EditsFor(ai.ToolGrammar)
	if len(grammar) != 2 {
		t.Fatalf("grammar edits = %d, want 2", len(grammar))
	}
	if grammar[0].NodeID != "a" || grammar[1].NodeID != "c" {
		t.Error("filtering should preserve order")
	}
	if got := p.EditsFor(ai.ToolParaphrase); len(got) != 0 {
		t.Errorf("paraphrase edits = %d, want 0", len(got))
	}
	if got := p.EditsFor(ai.ToolProofread); len(got) != 3 {
		t.Errorf("proofread edits = %d, want all 3", len(got))
	}
}

func TestEditsForReturnsCopy(t *testing.T) {
	p := ai.NewStaticProvider()

	first := p.EditsFor(ai.ToolProofread)
	first[0].ReplaceText = "mutated"

	again := p.EditsFor(ai.ToolProofread)
	if again[0].ReplaceText == "mutated" {
		t.Error("mutating a returned batch leaked into the provider")
	}
}
