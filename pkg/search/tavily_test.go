package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req tavilySearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.APIKey != "test-key" || req.Query != "go concurrency" || req.MaxResults != 5 {
			t.Errorf("unexpected request %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Go blog", "url": "https://go.dev/blog", "content": "goroutines"},
				{"title": "no url", "url": "", "content": "dropped"},
			},
		})
	}))
	defer srv.Close()

	client := NewTavilyClient("test-key")
	client.BaseURL = srv.URL

	sources, err := client.Search(context.Background(), "go concurrency", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1 (empty URL dropped)", len(sources))
	}
	if sources[0].Title != "Go blog" || sources[0].Snippet != "goroutines" {
		t.Errorf("source = %+v", sources[0])
	}
}

func TestTavilySearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewTavilyClient("bad-key")
	client.BaseURL = srv.URL

	if _, err := client.Search(context.Background(), "q", 1); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestTavilySearchRequiresKey(t *testing.T) {
	client := NewTavilyClient("")
	if _, err := client.Search(context.Background(), "q", 1); err == nil {
		t.Fatal("expected error without API key")
	}
}
