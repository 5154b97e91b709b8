package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mavik-ai/prescreen/internal/tools"
)

const (
	previewChars  = 6000
	maxPromptHits = 5
	maxTableRows  = 8
)

// buildSynthesisPrompt assembles the prompt for the final answer from
// whatever the run gathered. Sections with no data are omitted so the
// model never sees placeholders it could echo.
func buildSynthesisPrompt(s *State) string {
	var b strings.Builder

	switch s.Intent {
	case IntentPreScreen:
		b.WriteString("You are a commercial real estate credit analyst preparing a pre-screening analysis of a deal.\n")
		b.WriteString("Write a markdown analysis with exactly these level-2 sections, in this order:\n")
		b.WriteString("## Deal Summary\n## Financial Metrics\n## Market Context\n## Comparable Deals\n## Risks & Mitigants\n## Recommendation\n\n")
		b.WriteString("Ground every figure in the inputs below. Where a metric has a derivation shown, repeat it verbatim. Cite web sources by URL.\n\n")
	case IntentDocumentQA:
		b.WriteString("You are a commercial real estate analyst. Answer the user's question using only the document contents below.\n")
		b.WriteString("If the document does not contain the answer, say so plainly.\n\n")
	case IntentCalculation:
		b.WriteString("You are a commercial real estate analyst. Report the computed metrics below, repeating each derivation verbatim, then add one short sentence of interpretation.\n\n")
	case IntentResearch:
		b.WriteString("You are a commercial real estate analyst. Answer the user's question from the web results below. Cite sources by URL. Do not invent figures.\n\n")
	default:
		b.WriteString("You are a commercial real estate analyst assistant. Answer the user's question concisely and accurately.\n\n")
	}

	fmt.Fprintf(&b, "USER QUESTION:\n%s\n\n", s.Request.Message)

	if s.ExtractedText != "" {
		preview := s.ExtractedText
		if len(preview) > previewChars {
			preview = preview[:previewChars]
		}
		fmt.Fprintf(&b, "DOCUMENT EXCERPT:\n%s\n\n", preview)
	}
	if len(s.ExtractedTables) > 0 {
		b.WriteString("DOCUMENT TABLES:\n")
		for i, table := range s.ExtractedTables {
			fmt.Fprintf(&b, "Table %d:\n", i+1)
			rows := table.Rows
			if len(rows) > maxTableRows {
				rows = rows[:maxTableRows]
			}
			for _, row := range rows {
				b.WriteString(strings.Join(row, " | "))
				b.WriteByte('\n')
			}
		}
		b.WriteByte('\n')
	}
	if len(s.Metrics) > 0 {
		b.WriteString("COMPUTED METRICS:\n")
		names := make([]string, 0, len(s.Metrics))
		for name := range s.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %s\n", name, s.Metrics[name].Trail)
		}
		b.WriteByte('\n')
	}
	if len(s.RetrievalHits) > 0 {
		b.WriteString("COMPARABLE DEALS:\n")
		writeHits(&b, s.RetrievalHits)
	}
	if len(s.WebHits) > 0 {
		b.WriteString("WEB RESULTS:\n")
		writeHits(&b, s.WebHits)
	}

	return b.String()
}

func writeHits(b *strings.Builder, hits []tools.Hit) {
	n := len(hits)
	if n > maxPromptHits {
		n = maxPromptHits
	}
	for _, hit := range hits[:n] {
		snippet := hit.Snippet
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		fmt.Fprintf(b, "- [%s] %s (%s)\n", hit.Title, snippet, hit.Source)
	}
	b.WriteByte('\n')
}

// Section is one titled block of a pre-screening analysis.
type Section struct {
	Title   string
	Content string
}

// splitSections breaks markdown into its level-2 sections. Text before
// the first heading, if any, becomes an untitled leading section.
func splitSections(markdown string) []Section {
	lines := strings.Split(markdown, "\n")
	var sections []Section
	current := Section{}
	flush := func() {
		content := strings.TrimSpace(current.Content)
		if current.Title != "" || content != "" {
			current.Content = content
			sections = append(sections, current)
		}
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "###") {
			flush()
			current = Section{Title: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			continue
		}
		current.Content += line + "\n"
	}
	flush()
	return sections
}
