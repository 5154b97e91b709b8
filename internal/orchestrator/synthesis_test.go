package orchestrator

import (
	"strings"
	"testing"

	"github.com/mavik-ai/prescreen/internal/tools"
)

func TestBuildSynthesisPromptPreScreen(t *testing.T) {
	state := &State{
		Request:       Request{Message: "Pre-screen this deal"},
		Intent:        IntentPreScreen,
		ExtractedText: "Riverside Commons, a 220-unit multifamily asset in Austin, TX.",
		Metrics: map[string]tools.Metric{
			"DSCR": {Value: 1.39, Trail: "DSCR = 2,500,000 / 1,800,000 = 1.39x"},
			"LTV":  {Value: 62.5, Trail: "LTV = 25,000,000 / 40,000,000 = 62.5%"},
		},
		RetrievalHits: []tools.Hit{{Title: "Gateway Logistics", Snippet: "industrial comp", Source: "comps:abc123"}},
		WebHits:       []tools.Hit{{Title: "Austin market report", Snippet: "rents up 3%", Source: "https://example.com/austin"}},
	}
	prompt := buildSynthesisPrompt(state)

	for _, want := range []string{
		"## Deal Summary",
		"## Recommendation",
		"DSCR = 2,500,000 / 1,800,000 = 1.39x",
		"Riverside Commons",
		"comps:abc123",
		"https://example.com/austin",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	// Metrics are listed in stable alphabetical order.
	if strings.Index(prompt, "- DSCR:") > strings.Index(prompt, "- LTV:") {
		t.Errorf("metrics out of order:\n%s", prompt)
	}
}

func TestBuildSynthesisPromptOmitsEmptySections(t *testing.T) {
	state := &State{
		Request: Request{Message: "What is a good DSCR?"},
		Intent:  IntentGeneral,
	}
	prompt := buildSynthesisPrompt(state)
	for _, absent := range []string{"DOCUMENT EXCERPT", "COMPUTED METRICS", "COMPARABLE DEALS", "WEB RESULTS"} {
		if strings.Contains(prompt, absent) {
			t.Errorf("prompt should not contain %q with no gathered data", absent)
		}
	}
	if !strings.Contains(prompt, "What is a good DSCR?") {
		t.Errorf("prompt missing the user question")
	}
}

func TestSplitSections(t *testing.T) {
	md := "## Deal Summary\n\nA 220-unit asset.\n\n## Financial Metrics\n\n- DSCR: 1.39x\n### nested\nstays inline\n\n## Recommendation\n\nProceed."
	sections := splitSections(md)
	if len(sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(sections))
	}
	if sections[0].Title != "Deal Summary" || sections[0].Content != "A 220-unit asset." {
		t.Fatalf("first section = %+v", sections[0])
	}
	if sections[1].Title != "Financial Metrics" || !strings.Contains(sections[1].Content, "### nested") {
		t.Fatalf("second section = %+v", sections[1])
	}
	if sections[2].Title != "Recommendation" {
		t.Fatalf("third section = %+v", sections[2])
	}
}

func TestSplitSectionsLeadingText(t *testing.T) {
	sections := splitSections("Preamble before any heading.\n\n## Summary\n\nBody.")
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}
	if sections[0].Title != "" || sections[0].Content != "Preamble before any heading." {
		t.Fatalf("leading section = %+v", sections[0])
	}
}

func TestSplitSectionsEmpty(t *testing.T) {
	if got := splitSections(""); len(got) != 0 {
		t.Fatalf("sections = %v, want none", got)
	}
}
