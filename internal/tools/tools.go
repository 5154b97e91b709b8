// Package tools defines the adapter contract every orchestrated tool
// implements, plus the registry the engine resolves tool IDs against.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// ID names a tool in the registry.
type ID string

const (
	Extract        ID = "extract"
	Retrieve       ID = "retrieve"
	Web            ID = "web"
	Calculate      ID = "calculate"
	GenerateReport ID = "generate_report"

	// Synthesize is a plan step, not a registry entry; the engine runs
	// it against the LLM provider directly.
	Synthesize ID = "synthesize"
)

// Request carries the slice of run state a tool adapter needs. Adapters
// read only the fields relevant to them and ignore the rest.
type Request struct {
	RunID       string
	Message     string
	DocumentRef string

	// Populated from earlier stages.
	ExtractedText string
	Tables        []Table

	// Report inputs.
	ReportTitle    string
	ReportMarkdown string
}

// Table is an extracted document table, rows of cells.
type Table struct {
	Page int        `json:"page,omitempty"`
	Rows [][]string `json:"rows"`
}

// Hit is a single retrieval or web search result. Source is the
// provenance of the snippet: a URL for web hits, a corpus document ID
// for retrieval hits. It is never fabricated.
type Hit struct {
	Title   string  `json:"title,omitempty"`
	Snippet string  `json:"snippet"`
	Source  string  `json:"source"`
	Score   float64 `json:"score,omitempty"`
}

// Metric is a computed financial metric with its derivation trail,
// e.g. "DSCR = 2,500,000 / 1,800,000 = 1.39x".
type Metric struct {
	Value float64 `json:"value"`
	Trail string  `json:"trail"`
}

// Output is the union of everything an adapter can produce. Each
// adapter fills only its own fields; the engine merges them into run
// state under the single-writer rule.
type Output struct {
	Text    string
	Tables  []Table
	Hits    []Hit
	Metrics map[string]Metric

	ArtifactType string
	ArtifactURL  string

	// Summary is a short human-readable note for the progress stream.
	Summary string
}

// Error is a structured tool failure. Adapters return *Error so the
// engine can surface a stable code on the progress stream.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errf builds a tool error with a formatted message.
func Errf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Adapter is the contract every tool implements.
type Adapter interface {
	ID() ID
	Invoke(ctx context.Context, req Request) (Output, error)
}

// Registry is the fixed set of tools available to the engine. It is
// built once at startup and read-only afterwards.
type Registry struct {
	adapters map[ID]Adapter
}

// NewRegistry builds a registry from the given adapters. Duplicate IDs
// are a programming error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[ID]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.adapters[a.ID()]; dup {
			return nil, fmt.Errorf("duplicate tool adapter %q", a.ID())
		}
		r.adapters[a.ID()] = a
	}
	return r, nil
}

// Get resolves a tool ID to its adapter.
func (r *Registry) Get(id ID) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// IDs lists registered tool IDs in stable order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
