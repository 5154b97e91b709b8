// Package websearch queries Tavily for market context and optionally
// fetches top result pages through a readability pass.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/mavik-ai/prescreen/internal/config"
	"github.com/mavik-ai/prescreen/internal/tools"
)

const maxPageChars = 2000

// Client is the web search tool adapter.
type Client struct {
	apiKey     string
	endpoint   string
	maxResults int
	fetchPages bool
	http       *http.Client
	logger     *log.Logger
}

func New(cfg config.WebSearchConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[WEBSEARCH] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		apiKey:     cfg.TavilyAPIKey,
		endpoint:   cfg.Endpoint,
		maxResults: maxResults,
		fetchPages: cfg.FetchPages,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) ID() tools.ID { return tools.Web }

type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Invoke searches the web for the user's question and returns scored
// hits. The source of every hit is the result URL.
func (c *Client) Invoke(ctx context.Context, req tools.Request) (tools.Output, error) {
	if c.apiKey == "" {
		return tools.Output{}, tools.Errf("not_configured", "web search API key not configured")
	}

	query := buildQuery(req)
	body, err := json.Marshal(tavilyRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    c.maxResults,
		IncludeAnswer: false,
	})
	if err != nil {
		return tools.Output{}, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return tools.Output{}, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return tools.Output{}, tools.Errf("search_unreachable", "tavily: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return tools.Output{}, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tools.Output{}, tools.Errf("search_failed", "tavily returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return tools.Output{}, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]tools.Hit, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		hits = append(hits, tools.Hit{
			Title:   r.Title,
			Snippet: r.Content,
			Source:  r.URL,
			Score:   r.Score,
		})
	}

	if c.fetchPages {
		c.enrichFromPages(ctx, hits)
	}

	c.logger.Printf("query %q returned %d hits", truncate(query, 80), len(hits))
	return tools.Output{
		Hits:    hits,
		Summary: fmt.Sprintf("found %d sources", len(hits)),
	}, nil
}

// buildQuery frames the user's question as a market research query,
// anchored to the property location when the document names one.
func buildQuery(req tools.Request) string {
	query := strings.TrimSpace(req.Message)
	if loc := locationFrom(req.ExtractedText); loc != "" {
		query = query + " " + loc + " commercial real estate market"
	}
	return query
}

// locationFrom pulls a "City, ST" mention out of extracted text.
func locationFrom(text string) string {
	if text == "" {
		return ""
	}
	fields := strings.Fields(text)
	for i := 0; i+1 < len(fields) && i < 400; i++ {
		word, next := fields[i], fields[i+1]
		if strings.HasSuffix(word, ",") && len(next) == 2 && next == strings.ToUpper(next) &&
			next[0] >= 'A' && next[0] <= 'Z' && next[1] >= 'A' && next[1] <= 'Z' {
			city := strings.TrimSuffix(word, ",")
			if len(city) > 2 && strings.ToUpper(city[:1]) == city[:1] {
				return city + ", " + next
			}
		}
	}
	return ""
}

// enrichFromPages replaces snippets of the top hits with a readability
// pass over the live page. Failures leave the original snippet.
func (c *Client) enrichFromPages(ctx context.Context, hits []tools.Hit) {
	limit := 2
	if len(hits) < limit {
		limit = len(hits)
	}
	for i := 0; i < limit; i++ {
		text, err := c.fetchPage(ctx, hits[i].Source)
		if err != nil || text == "" {
			continue
		}
		hits[i].Snippet = text
	}
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; prescreen/1.0)")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(bytes.NewReader(raw), parsed)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > maxPageChars {
		text = text[:maxPageChars]
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
