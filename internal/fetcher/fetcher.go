// Package fetcher gathers the source material for one zone: a news search
// followed by best-effort full-text dereferencing of each result.
package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/metrics"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

const (
	defaultMaxResults      = 3
	maxResultsCap          = 10
	defaultMinContentChars = 200
)

// Config shapes the search request and the dereferencing policy.
type Config struct {
	Topic          string
	Depth          string
	Country        string
	MaxResults     int
	Days           int
	Keywords       []string
	ExcludeDomains []string

	Dereference     bool
	MinContentChars int
}

// Fetcher implements sentinel.ContentFetcher.
type Fetcher struct {
	searcher sentinel.Searcher
	reader   sentinel.Reader
	cfg      Config
	logger   *zap.Logger
}

// New wires a Fetcher. reader may be nil, which disables dereferencing.
func New(searcher sentinel.Searcher, reader sentinel.Reader, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.MaxResults > maxResultsCap {
		cfg.MaxResults = maxResultsCap
	}
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = defaultMinContentChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{searcher: searcher, reader: reader, cfg: cfg, logger: logger}
}

// Query builds the search string for a zone.
func Query(zone string, keywords []string) string {
	parts := []string{zone, "road construction news Nigeria"}
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, " ")
}

// Fetch searches for the zone and upgrades each snippet to full text where the
// reader succeeds. Only the search call can fail the zone.
func (f *Fetcher) Fetch(ctx context.Context, zone sentinel.Zone) ([]sentinel.SearchResult, error) {
	results, err := f.searcher.Search(ctx, sentinel.SearchQuery{
		Query:          Query(zone.Name, f.cfg.Keywords),
		Topic:          f.cfg.Topic,
		MaxResults:     f.cfg.MaxResults,
		Depth:          f.cfg.Depth,
		Country:        f.cfg.Country,
		Days:           f.cfg.Days,
		ExcludeDomains: f.cfg.ExcludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", zone.Name, err)
	}

	out := make([]sentinel.SearchResult, 0, len(results))
	for _, res := range results {
		if excluded(res.URL, f.cfg.ExcludeDomains) {
			continue
		}
		if len(out) == f.cfg.MaxResults {
			break
		}
		res.Index = len(out) + 1
		res.FullText = false
		if f.cfg.Dereference && f.reader != nil && res.URL != "" {
			f.dereference(ctx, zone, &res)
		}
		if res.FullText {
			metrics.ObserveContentFetch("full_text", res.URL)
		} else {
			metrics.ObserveContentFetch("snippet", res.URL)
		}
		out = append(out, res)
	}
	return out, nil
}

func (f *Fetcher) dereference(ctx context.Context, zone sentinel.Zone, res *sentinel.SearchResult) {
	text, err := f.reader.Read(ctx, res.URL)
	if err != nil {
		f.logger.Debug("full text unavailable, using snippet",
			zap.String("zone", zone.Name),
			zap.String("url", res.URL),
			zap.Error(err),
		)
		return
	}
	if len([]rune(text)) < f.cfg.MinContentChars {
		f.logger.Debug("full text too short, using snippet",
			zap.String("zone", zone.Name),
			zap.String("url", res.URL),
			zap.Int("chars", len([]rune(text))),
		)
		return
	}
	res.Content = text
	res.FullText = true
}

func excluded(rawURL string, domains []string) bool {
	if len(domains) == 0 || rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
