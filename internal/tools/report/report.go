// Package report calls the report-builder service, which renders the
// synthesized analysis into a DOCX and returns a presigned download URL.
package report

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

// Client is the generate_report tool adapter.
type Client struct {
	endpoint     string
	defaultTitle string
	http         *http.Client
	logger       *log.Logger
}

func New(cfg config.ReportConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[REPORT] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	title := cfg.Title
	if title == "" {
		title = "Pre-Screening Analysis"
	}
	return &Client{
		endpoint:     cfg.Endpoint,
		defaultTitle: title,
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

func (c *Client) ID() tools.ID { return tools.GenerateReport }

type reportRequest struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

type reportResponse struct {
	URL   string `json:"url"`
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Invoke renders the markdown analysis into a document and returns the
// download URL.
func (c *Client) Invoke(ctx context.Context, req tools.Request) (tools.Output, error) {
	if req.ReportMarkdown == "" {
		return tools.Output{}, tools.Errf("no_content", "nothing to render into a report")
	}
	title := req.ReportTitle
	if title == "" {
		title = c.defaultTitle
	}

	body, err := json.Marshal(reportRequest{Title: title, Markdown: req.ReportMarkdown})
	if err != nil {
		return tools.Output{}, fmt.Errorf("marshal report request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return tools.Output{}, fmt.Errorf("build report request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return tools.Output{}, tools.Errf("report_unreachable", "report service: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tools.Output{}, fmt.Errorf("read report response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tools.Output{}, tools.Errf("report_failed", "report service returned %d", resp.StatusCode)
	}

	var parsed reportResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return tools.Output{}, fmt.Errorf("decode report response: %w", err)
	}
	if parsed.Error != "" {
		return tools.Output{}, tools.Errf("report_failed", "%s", parsed.Error)
	}
	if parsed.URL == "" {
		return tools.Output{}, tools.Errf("report_failed", "report service returned no URL")
	}

	artifactType := parsed.Type
	if artifactType == "" {
		artifactType = "docx"
	}
	c.logger.Printf("report rendered: %s", parsed.URL)
	return tools.Output{
		ArtifactType: artifactType,
		ArtifactURL:  parsed.URL,
		Summary:      "report ready",
	}, nil
}
