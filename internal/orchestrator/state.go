package orchestrator

import (
	"time"

	"github.com/mavik-ai/prescreen/internal/tools"
)

// Intent is the classified purpose of a run.
type Intent string

const (
	IntentPreScreen   Intent = "pre_screen"
	IntentDocumentQA  Intent = "document_qa"
	IntentCalculation Intent = "calculation"
	IntentResearch    Intent = "research"
	IntentGeneral     Intent = "general"
)

// Request is one chat turn entering the engine.
type Request struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	DocumentRef    string `json:"document_ref,omitempty"`
}

// ToolEvent records one tool invocation for the audit trail.
type ToolEvent struct {
	Tool       tools.ID `json:"tool"`
	Status     string   `json:"status"` // started, succeeded, failed
	DurationMS int64    `json:"duration_ms"`
	Summary    string   `json:"summary,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// State accumulates everything a run produces. Each field is written
// by exactly one tool (or by the engine itself); concurrent tools in a
// stage therefore never contend on a field, and merges happen under
// the engine's lock.
type State struct {
	Request Request
	Intent  Intent

	ExtractedText   string
	ExtractedTables []tools.Table
	RetrievalHits   []tools.Hit
	WebHits         []tools.Hit
	Metrics         map[string]tools.Metric

	Answer       string
	ArtifactType string
	ArtifactURL  string

	ToolEvents []ToolEvent
	StartedAt  time.Time
}

func NewState(req Request, intent Intent) *State {
	return &State{
		Request:   req,
		Intent:    intent,
		Metrics:   make(map[string]tools.Metric),
		StartedAt: time.Now(),
	}
}

// merge folds a tool's output into the state. Caller holds the engine
// lock; the tool ID determines which fields are written.
func (s *State) merge(id tools.ID, out tools.Output) {
	switch id {
	case tools.Extract:
		s.ExtractedText = out.Text
		s.ExtractedTables = out.Tables
	case tools.Retrieve:
		s.RetrievalHits = out.Hits
	case tools.Web:
		s.WebHits = out.Hits
	case tools.Calculate:
		for name, metric := range out.Metrics {
			s.Metrics[name] = metric
		}
	case tools.GenerateReport:
		s.ArtifactType = out.ArtifactType
		s.ArtifactURL = out.ArtifactURL
	}
}

// toolRequest projects the state into the request a tool adapter sees.
func (s *State) toolRequest(reportTitle string) tools.Request {
	return tools.Request{
		RunID:          s.Request.ID,
		Message:        s.Request.Message,
		DocumentRef:    s.Request.DocumentRef,
		ExtractedText:  s.ExtractedText,
		Tables:         s.ExtractedTables,
		ReportTitle:    reportTitle,
		ReportMarkdown: s.Answer,
	}
}

// succeeded reports whether the given tool completed successfully.
func (s *State) succeeded(id tools.ID) bool {
	for _, ev := range s.ToolEvents {
		if ev.Tool == id && ev.Status == "succeeded" {
			return true
		}
	}
	return false
}

// failed reports whether the given tool failed.
func (s *State) failed(id tools.ID) bool {
	for _, ev := range s.ToolEvents {
		if ev.Tool == id && ev.Status == "failed" {
			return true
		}
	}
	return false
}
