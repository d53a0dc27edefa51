package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cnii-sentinel/internal/app"
	"github.com/JakeFAU/cnii-sentinel/internal/config"
	mempub "github.com/JakeFAU/cnii-sentinel/internal/publisher/memory"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
	"github.com/JakeFAU/cnii-sentinel/internal/storage/memory"
)

// MockNotifier mocks sentinel.Notifier.
type MockNotifier struct {
	mock.Mock
}

// Send satisfies sentinel.Notifier.
func (m *MockNotifier) Send(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, q sentinel.SearchQuery) ([]sentinel.SearchResult, error) {
	return []sentinel.SearchResult{{
		Title:   "Works on " + q.Query,
		URL:     "https://news.example/works",
		Content: "Contractors began excavation along the corridor this week.",
	}}, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, zone sentinel.Zone, _ string) []sentinel.Risk {
	if zone.Name != "Lagos-Ibadan Expressway" {
		return nil
	}
	return []sentinel.Risk{{Level: sentinel.SeverityHigh, Score: 9, Location: "Berger", Summary: "Trenching beside fiber duct"}}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	cfg.Fetcher.Dereference = false
	cfg.Geocode.Provider = "none"
	cfg.Storage.Backend = "memory"
	cfg.Publisher.Backend = "memory"
	cfg.Progress.LogEvents = false
	return cfg
}

func TestAppRunsSweepEndToEnd(t *testing.T) {
	t.Parallel()

	notifier := new(MockNotifier)
	notifier.On("Send", mock.Anything, mock.MatchedBy(func(text string) bool {
		return len(text) > 0
	})).Return(nil).Once()

	ctx := context.Background()
	a, err := app.New(ctx, testConfig(t), nil, app.Options{
		Registerer: prometheus.NewRegistry(),
		Searcher:   stubSearcher{},
		Extractor:  stubExtractor{},
		Notifier:   notifier,
	})
	require.NoError(t, err)

	report, err := a.Runner.Run(ctx, "")
	require.NoError(t, err)
	require.Equal(t, len(a.Zones.All()), report.ZonesScanned)
	require.Len(t, report.Risks, 1)
	require.True(t, report.Risks[0].Located())
	notifier.AssertExpectations(t)

	stored, err := a.Reports.LatestReport(ctx)
	require.NoError(t, err)
	require.Equal(t, report.ID, stored.ID)

	blobs, ok := a.Blobs.(*memory.BlobStore)
	require.True(t, ok)
	require.Len(t, blobs.Paths(), 1)

	pub, ok := a.Publisher.(*mempub.Publisher)
	require.True(t, ok)
	require.Len(t, pub.Topic("sweep.completed"), 1)

	require.NoError(t, a.Close(ctx))
	status := a.Status.Snapshot()
	require.Equal(t, report.ID, status.SweepID)
	require.False(t, status.Running)
}

func TestAppNoPersist(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), nil, app.Options{
		NoPersist:  true,
		Registerer: prometheus.NewRegistry(),
		Searcher:   stubSearcher{},
		Extractor:  stubExtractor{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.Nil(t, a.Reports)
	_, err = a.Runner.Run(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, a.Ready(context.Background()))
}

func TestAppServerServesZones(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), nil, app.Options{
		Registerer: prometheus.NewRegistry(),
		Searcher:   stubSearcher{},
		Extractor:  stubExtractor{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	rec := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/zones", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Lagos-Ibadan Expressway")
}

func TestAppSchedulerDisabledByDefault(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), nil, app.Options{
		Registerer: prometheus.NewRegistry(),
		Searcher:   stubSearcher{},
		Extractor:  stubExtractor{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	s, err := a.Scheduler()
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestAppRejectsUnknownBackends(t *testing.T) {
	t.Parallel()

	tests := map[string]func(*config.Config){
		"database":  func(c *config.Config) { c.Database.Driver = "sqlite" },
		"storage":   func(c *config.Config) { c.Storage.Backend = "s3" },
		"publisher": func(c *config.Config) { c.Publisher.Backend = "rabbit" },
		"geocode":   func(c *config.Config) { c.Geocode.Provider = "bing" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			mutate(&cfg)
			_, err := app.New(context.Background(), cfg, nil, app.Options{
				Registerer: prometheus.NewRegistry(),
				Searcher:   stubSearcher{},
				Extractor:  stubExtractor{},
			})
			require.Error(t, err)
		})
	}
}

func TestAppLoadsZoneFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Zones.File = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := app.New(context.Background(), cfg, nil, app.Options{Registerer: prometheus.NewRegistry()})
	require.ErrorContains(t, err, "read zone file")
}
