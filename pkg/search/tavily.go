// Package search wraps the Tavily web-search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

const defaultBaseURL = "https://api.tavily.com"

// Searcher is the contract stages depend on; the Tavily client is the
// production implementation.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]pipeline.Source, error)
}

type TavilyClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

var _ Searcher = &TavilyClient{}

func NewTavilyClient(apiKey string) *TavilyClient {
	return &TavilyClient{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tavilySearchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns the results as pipeline sources.
// Results without a URL are discarded.
func (t *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]pipeline.Source, error) {
	if t.APIKey == "" {
		return nil, fmt.Errorf("tavily API key is not configured")
	}

	payload, err := json.Marshal(tavilySearchRequest{
		APIKey:     t.APIKey,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.BaseURL+"/search", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed tavilySearchResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	sources := make([]pipeline.Source, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		sources = append(sources, pipeline.Source{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}
	return sources, nil
}
