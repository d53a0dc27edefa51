package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://punchng.com/path", "punchng.com"},
		{"standard https", "https://Guardian.ng/path", "guardian.ng"},
		{"no scheme", "vanguardngr.com/path", "vanguardngr.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()
	require.NotNil(t, sweepsTotal)
	require.NotNil(t, geocodeTotal)
}

func TestObserveHelpers(t *testing.T) {
	Init()
	before := testutil.ToFloat64(zonesTotal.WithLabelValues("failed"))
	ObserveZone("failed")
	require.InDelta(t, before+1, testutil.ToFloat64(zonesTotal.WithLabelValues("failed")), 1e-9)

	beforeAlerts := testutil.ToFloat64(alertsTotal.WithLabelValues("sent"))
	ObserveAlert("sent")
	require.InDelta(t, beforeAlerts+1, testutil.ToFloat64(alertsTotal.WithLabelValues("sent")), 1e-9)

	ObserveSweep("success", 3*time.Second)
	require.Positive(t, testutil.CollectAndCount(sweepDurationSeconds))

	SetSweepInProgress(true)
	require.InDelta(t, 1, testutil.ToFloat64(sweepInProgress), 1e-9)
	SetSweepInProgress(false)
	require.InDelta(t, 0, testutil.ToFloat64(sweepInProgress), 1e-9)
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://r.jina.ai/x", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
