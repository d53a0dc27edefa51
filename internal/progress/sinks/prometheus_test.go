package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cnii-sentinel/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{SweepID: "s1", TS: now, Stage: progress.StageSweepStart},
		{SweepID: "s1", TS: now, Stage: progress.StageZoneStart, Zone: "Apapa Port Access"},
		{SweepID: "s1", TS: now, Stage: progress.StageZoneFetched, Zone: "Apapa Port Access", Results: 3},
		{SweepID: "s1", TS: now, Stage: progress.StageZoneDone, Zone: "Apapa Port Access", Dur: 2 * time.Second},
		{SweepID: "s1", TS: now, Stage: progress.StageZoneStart, Zone: "Ikorodu Road"},
		{SweepID: "s1", TS: now, Stage: progress.StageZoneFailed, Zone: "Ikorodu Road", Note: "search failed"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.sweepsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.sweepsRunning))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.zoneStages.WithLabelValues(string(progress.StageZoneStart))))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.zoneFailures.WithLabelValues("Ikorodu Road")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.zoneResults, "sentinel_progress_zone_results"))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{SweepID: "s1", TS: now, Stage: progress.StageSweepDone},
		{SweepID: "s1", TS: now, Stage: progress.StageSweepDone},
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.sweepsRunning))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.sweepsCompleted.WithLabelValues("success")))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
