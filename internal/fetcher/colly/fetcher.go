// Package collyfetcher dereferences article URLs into cleaned text through a
// reader proxy using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// ErrEmptyBody is returned when the proxy answers with no text.
var ErrEmptyBody = errors.New("reader returned empty body")

// Waiter paces outbound requests.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	// ReaderURL is prefixed to the target URL, e.g. "https://r.jina.ai/".
	ReaderURL string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	// MaxBodyBytes bounds each response; zero keeps 2 MiB.
	MaxBodyBytes int
}

// Reader implements sentinel.Reader using the Colly collector.
type Reader struct {
	cfg           Config
	limiter       Waiter
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Reader. limiter may be nil.
func New(cfg Config, limiter Waiter) *Reader {
	if cfg.ReaderURL == "" {
		cfg.ReaderURL = "https://r.jina.ai/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.MaxBodySize = cfg.MaxBodyBytes
	c.WithTransport(newHTTPTransport())

	return &Reader{cfg: cfg, limiter: limiter, baseCollector: c}
}

// ProxyURL renders the reader endpoint for target.
func (r *Reader) ProxyURL(target string) string {
	return r.cfg.ReaderURL + strings.TrimSpace(target)
}

// Read fetches the cleaned text for target.
func (r *Reader) Read(ctx context.Context, target string) (string, error) {
	proxyURL := r.ProxyURL(target)
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, proxyURL); err != nil {
			return "", err
		}
	}
	var (
		body     string
		fetchErr error
	)
	collector := r.buildCollector(&body, &fetchErr)
	if err := runCollector(ctx, collector, proxyURL, &fetchErr); err != nil {
		return "", err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	return body, nil
}

func (r *Reader) buildCollector(body *string, fetchErr *error) *colly.Collector {
	collector := r.baseCollector.Clone()
	if r.cfg.UserAgent != "" {
		collector.UserAgent = r.cfg.UserAgent
	}
	collector.SetRequestTimeout(r.cfg.Timeout)
	r.configureCollectorHooks(collector, body, fetchErr)
	return collector
}

func (r *Reader) configureCollectorHooks(hooks collectorHooks, body *string, fetchErr *error) {
	hooks.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept", "text/plain")
		req.Headers.Set("X-Return-Format", "text")
		if r.cfg.APIKey != "" {
			req.Headers.Set("Authorization", "Bearer "+r.cfg.APIKey)
		}
	})

	hooks.OnResponse(func(resp *colly.Response) {
		*body = string(resp.Body)
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("reader fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("reader visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("reader response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
