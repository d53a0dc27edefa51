package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cnii-sentinel/internal/geocode"
	"github.com/JakeFAU/cnii-sentinel/internal/progress"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
	"github.com/JakeFAU/cnii-sentinel/internal/zones"
)

var threeZones = staticZones{
	{Name: "Zone A", Default: sentinel.Coordinates{Lat: 6.1, Lon: 3.1}},
	{Name: "Zone B", Default: sentinel.Coordinates{Lat: 7.2, Lon: 4.2}},
	{Name: "Zone C", Default: sentinel.Coordinates{Lat: 8.3, Lon: 5.3}},
}

func risk(level sentinel.Severity, score int, location string) sentinel.Risk {
	return sentinel.Risk{
		Level:             level,
		Score:             score,
		Location:          location,
		ThreatType:        "Excavation",
		RecommendedAction: "Dispatch patrol",
		Summary:           "Works reported near " + location,
	}
}

func newTestOrchestrator(f *fakeFetcher, x *fakeExtractor, alerts sentinel.AlertDispatcher, emitter progress.Emitter) *Orchestrator {
	return New(threeZones, f, x, fakeResolver{coords: sentinel.Coordinates{Lat: 1, Lon: 2}}, alerts, emitter, clockwork.NewFakeClock(), Config{}, nil)
}

func TestSweepContinuesPastFailedZone(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{errs: map[string]error{"Zone B": errors.New("search quota exhausted")}}
	x := &fakeExtractor{risks: map[string][]sentinel.Risk{
		"Zone A": {risk(sentinel.SeverityMedium, 5, "Km 12")},
		"Zone C": {risk(sentinel.SeverityLow, 2, "Toll plaza"), risk(sentinel.SeverityMedium, 4, "Bridge")},
	}}
	emitter := &recordingEmitter{}
	o := newTestOrchestrator(f, x, &recordingAlerts{}, emitter)

	res := o.Sweep(context.Background(), "")

	require.Equal(t, []string{"Zone A", "Zone B", "Zone C"}, f.Calls())
	require.Equal(t, 2, res.ZonesScanned)
	require.Equal(t, 1, res.ZonesFailed)
	require.Len(t, res.Risks, 3)
	require.Equal(t, "Sweep complete. Scanned 2 zones. Identified 3 risks.", res.Summary)

	failed := emitter.ByStage(progress.StageZoneFailed)
	require.Len(t, failed, 1)
	require.Equal(t, "Zone B", failed[0].Zone)
	require.Contains(t, failed[0].Note, "search quota exhausted")
	require.Len(t, emitter.ByStage(progress.StageSweepDone), 1)
}

func TestSweepEveryRiskHasCoordinatesAndZone(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	x := &fakeExtractor{risks: map[string][]sentinel.Risk{
		"Zone A": {risk(sentinel.SeverityHigh, 9, "")},
		"Zone B": {risk(sentinel.SeverityLow, 1, "Somewhere vague")},
	}}
	o := newTestOrchestrator(f, x, &recordingAlerts{}, nil)

	res := o.Sweep(context.Background(), "")

	require.Len(t, res.Risks, 2)
	for _, r := range res.Risks {
		require.True(t, r.Located())
		require.NotEmpty(t, r.Zone)
	}
	require.Equal(t, "Zone A", res.Risks[0].Zone)
	require.Equal(t, "Zone B", res.Risks[1].Zone)
}

func TestSweepFailingGeocoderUsesZoneDefault(t *testing.T) {
	t.Parallel()

	cat := zones.MustDefault()
	zone := cat.All()[0]
	x := &fakeExtractor{risks: map[string][]sentinel.Risk{
		zone.Name: {risk(sentinel.SeverityMedium, 5, "Unresolvable junction")},
	}}
	resolver := geocode.NewResolver(failingGeocoder{}, cat, geocode.Config{Country: "Nigeria"}, nil)
	o := New(staticZones{zone}, &fakeFetcher{}, x, resolver, &recordingAlerts{}, nil, clockwork.NewFakeClock(), Config{}, nil)

	res := o.Sweep(context.Background(), "")

	require.Len(t, res.Risks, 1)
	require.InDelta(t, zone.Default.Lat, *res.Risks[0].Lat, 1e-9)
	require.InDelta(t, zone.Default.Lon, *res.Risks[0].Lon, 1e-9)
}

func TestSweepAlertThreshold(t *testing.T) {
	t.Parallel()

	x := &fakeExtractor{risks: map[string][]sentinel.Risk{
		"Zone A": {risk(sentinel.SeverityMedium, 6, "Six"), risk(sentinel.SeverityHigh, 7, "Seven")},
	}}
	alerts := &recordingAlerts{}
	emitter := &recordingEmitter{}
	o := newTestOrchestrator(&fakeFetcher{}, x, alerts, emitter)

	o.Sweep(context.Background(), "")

	calls := alerts.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, alertCall{Level: sentinel.SeverityHigh, Score: 7, Location: "Seven", Summary: "Works reported near Seven"}, calls[0])

	done := emitter.ByStage(progress.StageZoneDone)
	require.Equal(t, 1, done[0].Alerts)
}

func TestSweepSkipsExtractionWithoutText(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{results: map[string][]sentinel.SearchResult{
		"Zone A": {},
		"Zone B": {{Index: 1, URL: "https://news.example/b", Content: "   "}},
	}}
	x := &fakeExtractor{risks: map[string][]sentinel.Risk{
		"Zone A": {risk(sentinel.SeverityHigh, 9, "never")},
	}}
	o := newTestOrchestrator(f, x, &recordingAlerts{}, nil)

	res := o.Sweep(context.Background(), "")

	require.Len(t, x.texts, 1, "only Zone C has text")
	require.Equal(t, 3, res.ZonesScanned)
	require.Empty(t, res.Risks)
	require.NotNil(t, res.Risks)
}

func TestSweepAttributesSources(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{results: map[string][]sentinel.SearchResult{
		"Zone A": {{Index: 1, Title: "Contractor digs trench", URL: "https://punchng.com/trench", PublishedDate: "2026-10-10", Content: "trench"}},
	}}
	r := risk(sentinel.SeverityMedium, 5, "Trench")
	r.SourceURL = "https://punchng.com/trench/"
	x := &fakeExtractor{risks: map[string][]sentinel.Risk{"Zone A": {r}}}
	o := New(threeZones[:1], f, x, fakeResolver{}, nil, nil, clockwork.NewFakeClock(), Config{}, nil)

	res := o.Sweep(context.Background(), "")

	require.Len(t, res.Risks, 1)
	require.Equal(t, "Contractor digs trench", res.Risks[0].SourceTitle)
	require.Equal(t, "2026-10-10", res.Risks[0].PublishedDate)
}

func TestSweepExtraZone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		extra string
		want  []string
	}{
		{name: "none", extra: "", want: []string{"Zone A", "Zone B", "Zone C"}},
		{name: "placeholder", extra: "string", want: []string{"Zone A", "Zone B", "Zone C"}},
		{name: "appended last", extra: "Ikorodu Road", want: []string{"Zone A", "Zone B", "Zone C", "Ikorodu Road"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeFetcher{}
			o := newTestOrchestrator(f, &fakeExtractor{}, nil, nil)
			res := o.Sweep(context.Background(), tc.extra)
			require.Equal(t, tc.want, f.Calls())
			require.Equal(t, len(tc.want), res.ZonesScanned)
		})
	}
}

func TestSweepPanicIsContainedToZone(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{panics: map[string]bool{"Zone A": true}}
	x := &fakeExtractor{risks: map[string][]sentinel.Risk{"Zone B": {risk(sentinel.SeverityLow, 3, "B")}}}
	emitter := &recordingEmitter{}
	o := newTestOrchestrator(f, x, nil, emitter)

	res := o.Sweep(context.Background(), "")

	require.Equal(t, 2, res.ZonesScanned)
	require.Equal(t, 1, res.ZonesFailed)
	require.Len(t, res.Risks, 1)
	failed := emitter.ByStage(progress.StageZoneFailed)
	require.Len(t, failed, 1)
	require.Contains(t, failed[0].Note, "zone panic")
}

func TestSweepCancellationMarksRemainingZones(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeFetcher{}
	f.onFetch = func(sentinel.Zone) { cancel() }
	x := &fakeExtractor{risks: map[string][]sentinel.Risk{"Zone A": {risk(sentinel.SeverityLow, 2, "A")}}}
	emitter := &recordingEmitter{}
	o := newTestOrchestrator(f, x, nil, emitter)

	res := o.Sweep(ctx, "")

	require.Equal(t, []string{"Zone A"}, f.Calls())
	require.Equal(t, 1, res.ZonesScanned)
	require.Equal(t, 2, res.ZonesFailed)
	require.Len(t, res.Risks, 1)

	failed := emitter.ByStage(progress.StageZoneFailed)
	require.Len(t, failed, 2)
	for _, evt := range failed {
		require.Equal(t, ReasonCanceled, evt.Note)
	}
}

func TestSweepPausesBetweenZones(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClock()
	f := &fakeFetcher{}
	o := New(threeZones[:2], f, &fakeExtractor{}, fakeResolver{}, nil, nil, clk, Config{ZonePause: 2 * time.Second}, nil)

	done := make(chan sentinel.SweepResult, 1)
	go func() { done <- o.Sweep(context.Background(), "") }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	require.Equal(t, []string{"Zone A"}, f.Calls())

	clk.Advance(2 * time.Second)

	select {
	case res := <-done:
		require.Equal(t, 2, res.ZonesScanned)
		require.Equal(t, []string{"Zone A", "Zone B"}, f.Calls())
	case <-ctx.Done():
		t.Fatal("sweep did not resume after pause")
	}
}

func TestSweepIsRepeatable(t *testing.T) {
	t.Parallel()

	x := &fakeExtractor{risks: map[string][]sentinel.Risk{
		"Zone A": {risk(sentinel.SeverityHigh, 8, "A")},
		"Zone C": {risk(sentinel.SeverityMedium, 5, "C")},
	}}
	o := newTestOrchestrator(&fakeFetcher{}, x, &recordingAlerts{}, nil)

	first := o.Sweep(context.Background(), "")
	second := o.Sweep(context.Background(), "")

	require.Equal(t, first.Risks, second.Risks)
	require.Equal(t, first.Summary, second.Summary)
}

func TestSweepEmitsStagesInOrder(t *testing.T) {
	t.Parallel()

	x := &fakeExtractor{risks: map[string][]sentinel.Risk{"Zone A": {risk(sentinel.SeverityLow, 1, "A")}}}
	emitter := &recordingEmitter{}
	o := New(threeZones[:1], &fakeFetcher{}, x, fakeResolver{}, nil, emitter, clockwork.NewFakeClock(), Config{}, nil)

	o.Sweep(context.Background(), "")

	require.Equal(t, []progress.Stage{
		progress.StageSweepStart,
		progress.StageZoneStart,
		progress.StageZoneFetched,
		progress.StageZoneExtracted,
		progress.StageZoneDone,
		progress.StageSweepDone,
	}, emitter.Stages())
}
