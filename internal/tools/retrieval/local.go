package retrieval

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/mavik-ai/prescreen/internal/config"
	"github.com/mavik-ai/prescreen/internal/tools"
)

// Deal is one comparable-deal record in the local corpus.
type Deal struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Market   string  `json:"market"`
	Asset    string  `json:"asset"`
	Summary  string  `json:"summary"`
	CapRate  float64 `json:"cap_rate,omitempty"`
	DSCR     float64 `json:"dscr,omitempty"`
	LoanSize float64 `json:"loan_size,omitempty"`
}

// defaultDeals seeds the local index when no seed file is configured.
var defaultDeals = []Deal{
	{Title: "Riverside Multifamily Refinance", Market: "Austin, TX", Asset: "multifamily",
		Summary: "220-unit garden multifamily refinance, stabilized at 94% occupancy. Underwritten at 1.32x DSCR on a 5.1% cap.", CapRate: 5.1, DSCR: 1.32, LoanSize: 41_500_000},
	{Title: "Gateway Logistics Center Acquisition", Market: "Columbus, OH", Asset: "industrial",
		Summary: "480k sf cross-dock industrial acquisition, single tenant with 8 years of term. 6.2% cap, 65% LTV bridge to agency takeout.", CapRate: 6.2, DSCR: 1.45, LoanSize: 28_000_000},
	{Title: "Summit Medical Office Portfolio", Market: "Phoenix, AZ", Asset: "office",
		Summary: "Three-building medical office portfolio, 91% leased to hospital-affiliated tenants. Priced at a 6.8% cap with 1.40x underwritten DSCR.", CapRate: 6.8, DSCR: 1.4, LoanSize: 52_000_000},
	{Title: "Harborview Hotel Construction", Market: "Tampa, FL", Asset: "hospitality",
		Summary: "186-key select-service hotel ground-up construction, 62% LTC with completion guarantee. Sponsor has delivered four comparable flags.", LoanSize: 34_000_000},
	{Title: "Crescent Retail Power Center", Market: "Charlotte, NC", Asset: "retail",
		Summary: "Grocery-anchored power center with 96% collections through trailing twelve. 7.1% cap, debt yield of 10.4%.", CapRate: 7.1, DSCR: 1.5, LoanSize: 23_500_000},
}

// local serves retrieval from an in-memory bleve index.
type local struct {
	index  bleve.Index
	meta   map[string]Deal
	mu     sync.RWMutex
	topK   int
	logger *log.Logger
}

func newLocal(cfg config.RetrievalConfig, logger *log.Logger) (*local, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create retrieval index: %w", err)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	l := &local{index: index, meta: make(map[string]Deal), topK: topK, logger: logger}

	deals := defaultDeals
	if cfg.SeedFile != "" {
		deals, err = loadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
	}
	for _, deal := range deals {
		if err := l.Add(deal); err != nil {
			return nil, fmt.Errorf("seed retrieval index: %w", err)
		}
	}
	logger.Printf("local index seeded with %d deals", len(deals))
	return l, nil
}

func loadSeedFile(path string) ([]Deal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var deals []Deal
	if err := json.Unmarshal(raw, &deals); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return deals, nil
}

func (l *local) ID() tools.ID { return tools.Retrieve }

// Add indexes a deal. The document ID is derived from the content so
// re-adding the same deal is idempotent.
func (l *local) Add(deal Deal) error {
	if deal.ID == "" {
		deal.ID = sha1Hex(deal.Title + "|" + deal.Summary)[:12]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.meta[deal.ID] = deal
	return l.index.Index(deal.ID, deal)
}

func (l *local) Invoke(ctx context.Context, req tools.Request) (tools.Output, error) {
	if err := ctx.Err(); err != nil {
		return tools.Output{}, err
	}
	query := buildQuery(req)
	if query == "" {
		return tools.Output{}, tools.Errf("empty_query", "nothing to retrieve against")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	searchReq := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), l.topK, 0, false)
	res, err := l.index.Search(searchReq)
	if err != nil {
		return tools.Output{}, tools.Errf("search_failed", "retrieval index: %v", err)
	}

	hits := make([]tools.Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		deal, ok := l.meta[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, tools.Hit{
			Title:   deal.Title,
			Snippet: deal.Summary,
			Source:  "comps:" + deal.ID,
			Score:   hit.Score,
		})
	}
	return tools.Output{
		Hits:    hits,
		Summary: fmt.Sprintf("matched %d comparable deals", len(hits)),
	}, nil
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
