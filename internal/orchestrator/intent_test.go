package orchestrator

import (
	"testing"

	"github.com/mavik-ai/prescreen/internal/tools"
)

func TestClassifyPreScreen(t *testing.T) {
	intent, required := Classify("Please pre-screen this deal", true)
	if intent != IntentPreScreen {
		t.Fatalf("intent = %s, want pre_screen", intent)
	}
	want := []tools.ID{tools.Extract, tools.Retrieve, tools.Web, tools.Calculate, tools.GenerateReport}
	if len(required) != len(want) {
		t.Fatalf("required = %v, want %v", required, want)
	}
	for i, id := range want {
		if required[i] != id {
			t.Fatalf("required[%d] = %s, want %s", i, required[i], id)
		}
	}
}

func TestClassifyDocumentQA(t *testing.T) {
	intent, required := Classify("What is the occupancy rate in this file?", true)
	if intent != IntentDocumentQA {
		t.Fatalf("intent = %s, want document_qa", intent)
	}
	if len(required) != 1 || required[0] != tools.Extract {
		t.Fatalf("required = %v, want [extract]", required)
	}
}

func TestClassifyCalculation(t *testing.T) {
	intent, required := Classify("Calculate DSCR for NOI of 2,500,000 and debt service of 1,800,000", false)
	if intent != IntentCalculation {
		t.Fatalf("intent = %s, want calculation", intent)
	}
	if len(required) != 1 || required[0] != tools.Calculate {
		t.Fatalf("required = %v, want [calculate]", required)
	}
}

func TestClassifyDefinitionIsGeneral(t *testing.T) {
	// Metric keywords without figures are definition questions.
	intent, required := Classify("What is DSCR?", false)
	if intent != IntentGeneral {
		t.Fatalf("intent = %s, want general", intent)
	}
	if len(required) != 0 {
		t.Fatalf("required = %v, want none", required)
	}
}

func TestClassifyResearch(t *testing.T) {
	intent, required := Classify("What are current multifamily cap rates in Austin?", false)
	if intent != IntentResearch {
		t.Fatalf("intent = %s, want research", intent)
	}
	if len(required) != 1 || required[0] != tools.Web {
		t.Fatalf("required = %v, want [web]", required)
	}
}

func TestClassifyDocumentBeatsResearch(t *testing.T) {
	// A document without analysis phrasing is document QA even when the
	// message carries timeliness words.
	intent, _ := Classify("What are the most recent rent figures in here?", true)
	if intent != IntentDocumentQA {
		t.Fatalf("intent = %s, want document_qa", intent)
	}
}

func TestClassifyCalculationBeatsResearch(t *testing.T) {
	intent, _ := Classify("Calculate the current DSCR with NOI of 1,200,000 and debt service of 900,000", false)
	if intent != IntentCalculation {
		t.Fatalf("intent = %s, want calculation", intent)
	}
}

// Classification is total: any input produces exactly one intent.
func TestClassifyTotal(t *testing.T) {
	inputs := []string{
		"", " ", "hello", "?????", "analyze", "latest 2025 numbers",
		"\n\t", "12345", "cap rate latest calculate analyze",
	}
	for _, msg := range inputs {
		for _, hasDoc := range []bool{true, false} {
			intent, _ := Classify(msg, hasDoc)
			switch intent {
			case IntentPreScreen, IntentDocumentQA, IntentCalculation, IntentResearch, IntentGeneral:
			default:
				t.Fatalf("Classify(%q, %v) returned unknown intent %q", msg, hasDoc, intent)
			}
		}
	}
}
