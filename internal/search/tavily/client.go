// Package tavily implements sentinel.Searcher against the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// ErrMissingAPIKey is returned when the client has no credentials.
var ErrMissingAPIKey = errors.New("tavily api key is not configured")

// Config captures client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls POST /search.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a Tavily client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type searchRequest struct {
	Query          string   `json:"query"`
	Topic          string   `json:"topic,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	Days           int      `json:"days,omitempty"`
	Country        string   `json:"country,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
	IncludeAnswer  bool     `json:"include_answer"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []result `json:"results"`
}

type result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// Search runs one query. Results are indexed from 1 in response order.
func (c *Client) Search(ctx context.Context, q sentinel.SearchQuery) ([]sentinel.SearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	body, err := json.Marshal(searchRequest{
		Query:          q.Query,
		Topic:          q.Topic,
		SearchDepth:    q.Depth,
		MaxResults:     q.MaxResults,
		Days:           q.Days,
		Country:        q.Country,
		ExcludeDomains: q.ExcludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]sentinel.SearchResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		out = append(out, sentinel.SearchResult{
			Index:         len(out) + 1,
			Title:         strings.TrimSpace(r.Title),
			URL:           strings.TrimSpace(r.URL),
			PublishedDate: strings.TrimSpace(r.PublishedDate),
			Content:       strings.TrimSpace(r.Content),
		})
	}
	return out, nil
}
