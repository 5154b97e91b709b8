package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mavik-ai/prescreen/internal/config"
	"github.com/mavik-ai/prescreen/internal/tools"
)

func TestInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.DocumentRef != "upload:abc" {
			t.Errorf("document_ref = %q", req.DocumentRef)
		}
		_ = json.NewEncoder(w).Encode(extractResponse{
			Text:   "Offering memorandum for a 220-unit multifamily asset.",
			Tables: []tools.Table{{Page: 3, Rows: [][]string{{"NOI", "2,500,000"}}}},
			Pages:  12,
		})
	}))
	defer srv.Close()

	client := New(config.ExtractConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, nil)
	out, err := client.Invoke(context.Background(), tools.Request{DocumentRef: "upload:abc"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out.Text == "" || len(out.Tables) != 1 {
		t.Fatalf("output = %+v", out)
	}
	if out.Tables[0].Rows[0][1] != "2,500,000" {
		t.Fatalf("table rows = %v", out.Tables[0].Rows)
	}
}

func TestInvokeRequiresDocument(t *testing.T) {
	client := New(config.ExtractConfig{Endpoint: "http://localhost:0"}, nil)
	_, err := client.Invoke(context.Background(), tools.Request{})
	terr, ok := err.(*tools.Error)
	if !ok || terr.Code != "no_document" {
		t.Fatalf("err = %v, want no_document", err)
	}
}

func TestInvokeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "parser crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(config.ExtractConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, nil)
	_, err := client.Invoke(context.Background(), tools.Request{DocumentRef: "upload:abc"})
	terr, ok := err.(*tools.Error)
	if !ok || terr.Code != "extract_failed" {
		t.Fatalf("err = %v, want extract_failed", err)
	}
}

func TestInvokeEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(extractResponse{})
	}))
	defer srv.Close()

	client := New(config.ExtractConfig{Endpoint: srv.URL, Timeout: 5 * time.Second}, nil)
	_, err := client.Invoke(context.Background(), tools.Request{DocumentRef: "upload:abc"})
	terr, ok := err.(*tools.Error)
	if !ok || terr.Code != "empty_document" {
		t.Fatalf("err = %v, want empty_document", err)
	}
}
