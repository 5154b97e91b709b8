// Package extract calls the document-extraction service, which turns an
// uploaded document reference into plain text and tables.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mavik-ai/prescreen/internal/config"
	"github.com/mavik-ai/prescreen/internal/tools"
)

// Client is the extract tool adapter.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *log.Logger
}

func New(cfg config.ExtractConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (c *Client) ID() tools.ID { return tools.Extract }

type extractRequest struct {
	DocumentRef string `json:"document_ref"`
}

type extractResponse struct {
	Text   string        `json:"text"`
	Tables []tools.Table `json:"tables"`
	Pages  int           `json:"pages"`
	Error  string        `json:"error"`
}

// Invoke sends the document reference to the extraction service and
// returns its text and tables.
func (c *Client) Invoke(ctx context.Context, req tools.Request) (tools.Output, error) {
	if req.DocumentRef == "" {
		return tools.Output{}, tools.Errf("no_document", "extract requires a document reference")
	}

	body, err := json.Marshal(extractRequest{DocumentRef: req.DocumentRef})
	if err != nil {
		return tools.Output{}, fmt.Errorf("marshal extract request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return tools.Output{}, fmt.Errorf("build extract request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return tools.Output{}, tools.Errf("extract_unreachable", "extraction service: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return tools.Output{}, fmt.Errorf("read extract response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tools.Output{}, tools.Errf("extract_failed", "extraction service returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed extractResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return tools.Output{}, fmt.Errorf("decode extract response: %w", err)
	}
	if parsed.Error != "" {
		return tools.Output{}, tools.Errf("extract_failed", "%s", parsed.Error)
	}
	if parsed.Text == "" && len(parsed.Tables) == 0 {
		return tools.Output{}, tools.Errf("empty_document", "extraction produced no text or tables")
	}

	c.logger.Printf("extracted %d chars, %d tables from %s", len(parsed.Text), len(parsed.Tables), req.DocumentRef)
	return tools.Output{
		Text:    parsed.Text,
		Tables:  parsed.Tables,
		Summary: fmt.Sprintf("extracted %d pages, %d tables", parsed.Pages, len(parsed.Tables)),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
