package sentinel

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by stores when a report does not exist.
var ErrNotFound = errors.New("not found")

// SearchQuery is a search request for one zone.
type SearchQuery struct {
	Query          string
	Topic          string
	MaxResults     int
	Depth          string
	Country        string
	Days           int
	ExcludeDomains []string
}

// Searcher runs a news search.
type Searcher interface {
	Search(ctx context.Context, query SearchQuery) ([]SearchResult, error)
}

// Reader dereferences a URL into cleaned body text.
type Reader interface {
	Read(ctx context.Context, url string) (string, error)
}

// ContentFetcher produces the search results for one zone.
type ContentFetcher interface {
	Fetch(ctx context.Context, zone Zone) ([]SearchResult, error)
}

// RiskExtractor turns labeled context into risks. It never fails; extraction
// problems yield an empty slice.
type RiskExtractor interface {
	Extract(ctx context.Context, zone Zone, text string) []Risk
}

// Geocoder looks up a free-text query. ok is false when nothing matched.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (coords Coordinates, ok bool, err error)
}

// CoordinateResolver always produces coordinates for a location in a zone.
type CoordinateResolver interface {
	Resolve(ctx context.Context, location string, zone Zone) Coordinates
}

// Notifier delivers a formatted alert message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// AlertDispatcher notifies operators about a risk. Delivery failures are
// logged by the implementation and reported only through the return value.
type AlertDispatcher interface {
	Notify(ctx context.Context, level Severity, score int, location, summary string) bool
}

// ReportStore persists sweep reports.
type ReportStore interface {
	SaveReport(ctx context.Context, report Report) error
	LatestReport(ctx context.Context) (Report, error)
	GetReport(ctx context.Context, id string) (Report, error)
	ListReports(ctx context.Context, limit int) ([]Report, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces report ids.
type IDGenerator interface {
	NewID() (string, error)
}
