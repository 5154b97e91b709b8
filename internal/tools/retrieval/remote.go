package retrieval

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

// remote queries the retrieval service over HTTP.
type remote struct {
	endpoint string
	topK     int
	http     *http.Client
	logger   *log.Logger
}

func newRemote(cfg config.RetrievalConfig, logger *log.Logger) *remote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &remote{
		endpoint: cfg.Endpoint,
		topK:     topK,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (r *remote) ID() tools.ID { return tools.Retrieve }

type remoteQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type remoteResponse struct {
	Hits []struct {
		DocID   string  `json:"doc_id"`
		Title   string  `json:"title"`
		Snippet string  `json:"snippet"`
		Score   float64 `json:"score"`
	} `json:"hits"`
}

func (r *remote) Invoke(ctx context.Context, req tools.Request) (tools.Output, error) {
	query := buildQuery(req)
	if query == "" {
		return tools.Output{}, tools.Errf("empty_query", "nothing to retrieve against")
	}

	body, err := json.Marshal(remoteQuery{Query: query, TopK: r.topK})
	if err != nil {
		return tools.Output{}, fmt.Errorf("marshal retrieval request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return tools.Output{}, fmt.Errorf("build retrieval request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return tools.Output{}, tools.Errf("retrieval_unreachable", "retrieval service: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return tools.Output{}, fmt.Errorf("read retrieval response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tools.Output{}, tools.Errf("retrieval_failed", "retrieval service returned %d", resp.StatusCode)
	}

	var parsed remoteResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return tools.Output{}, fmt.Errorf("decode retrieval response: %w", err)
	}

	hits := make([]tools.Hit, 0, len(parsed.Hits))
	for _, h := range parsed.Hits {
		hits = append(hits, tools.Hit{
			Title:   h.Title,
			Snippet: h.Snippet,
			Source:  "corpus:" + h.DocID,
			Score:   h.Score,
		})
	}
	r.logger.Printf("remote retrieval returned %d hits", len(hits))
	return tools.Output{
		Hits:    hits,
		Summary: fmt.Sprintf("matched %d corpus documents", len(hits)),
	}, nil
}
