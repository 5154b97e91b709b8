package orchestrator

import (
	"strings"

	"github.com/mavik-ai/prescreen/internal/tools"
)

// Phrase sets for intent classification. Matching is case-insensitive
// substring matching over the whole message.
var (
	analysisPhrases = []string{
		"pre-screen", "pre screen", "prescreen",
		"full analysis", "complete analysis", "investment analysis",
		"underwriting analysis", "underwrite", "analyze", "analysis",
		"review the attached", "evaluate this deal",
	}
	calculationPhrases = []string{
		"calculate", "compute",
		"dscr", "debt service coverage",
		"ltv", "loan-to-value", "loan to value",
		"ltc", "loan-to-cost", "loan to cost",
		"cap rate", "capitalization rate",
		"debt yield", "noi", "net operating income",
	}
	researchPhrases = []string{
		"latest", "current", "recent", "today",
		"right now", "this week", "this month", "this quarter",
	}
)

// Classify maps a message (and whether a document is attached) to an
// intent and its required tool set. The rules are checked in a fixed
// priority order and the first match wins, so every input classifies
// to exactly one intent.
func Classify(message string, hasDocument bool) (Intent, []tools.ID) {
	m := strings.ToLower(message)

	switch {
	case hasDocument && matchesAny(m, analysisPhrases):
		return IntentPreScreen, []tools.ID{
			tools.Extract, tools.Retrieve, tools.Web, tools.Calculate, tools.GenerateReport,
		}
	case hasDocument:
		return IntentDocumentQA, []tools.ID{tools.Extract}
	case matchesAny(m, calculationPhrases) && containsDigit(m):
		return IntentCalculation, []tools.ID{tools.Calculate}
	case matchesAny(m, researchPhrases):
		return IntentResearch, []tools.ID{tools.Web}
	default:
		return IntentGeneral, nil
	}
}

func matchesAny(m string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(m, p) {
			return true
		}
	}
	return false
}

// containsDigit gates the calculation intent: metric keywords without
// figures are definition questions, not calculations.
func containsDigit(m string) bool {
	return strings.ContainsAny(m, "0123456789")
}
