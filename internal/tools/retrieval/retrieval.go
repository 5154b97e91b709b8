// Package retrieval finds comparable deals and underwriting guidance
// for the question at hand. Remote mode queries the retrieval service;
// local mode serves a bleve index built in process, which keeps dev
// environments working without the service.
package retrieval

import (
	"log"
	"strings"

	"github.com/mavik-ai/prescreen/internal/config"
	"github.com/mavik-ai/prescreen/internal/tools"
)

const maxQueryChars = 500

// New builds the retrieve adapter for the configured mode.
func New(cfg config.RetrievalConfig, logger *log.Logger) (tools.Adapter, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags)
	}
	if cfg.Mode == "remote" {
		return newRemote(cfg, logger), nil
	}
	return newLocal(cfg, logger)
}

// buildQuery prefers the head of the extracted document over the raw
// message: a deal document describes itself better than the question.
func buildQuery(req tools.Request) string {
	query := strings.TrimSpace(req.ExtractedText)
	if query == "" {
		query = strings.TrimSpace(req.Message)
	}
	if len(query) > maxQueryChars {
		query = query[:maxQueryChars]
	}
	return query
}
