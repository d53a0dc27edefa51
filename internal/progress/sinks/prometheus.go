package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/cnii-sentinel/internal/progress"
)

// PrometheusSink exports per-stage counters derived from progress events.
type PrometheusSink struct {
	sweepsStarted   prometheus.Counter
	sweepsCompleted *prometheus.CounterVec
	sweepsRunning   prometheus.Gauge
	zoneStages      *prometheus.CounterVec
	zoneDuration    *prometheus.HistogramVec
	zoneFailures    *prometheus.CounterVec
	zoneResults     prometheus.Histogram

	tracker *sweepTracker
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sweepsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_progress_sweeps_started_total",
			Help: "Sweeps that emitted a start event.",
		}),
		sweepsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_progress_sweeps_completed_total",
			Help: "Sweeps that emitted a terminal event, by result.",
		}, []string{"result"}),
		sweepsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_progress_sweeps_running",
			Help: "Sweeps started but not yet finished.",
		}),
		zoneStages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_progress_zone_stage_total",
			Help: "Zone stage transitions.",
		}, []string{"stage"}),
		zoneDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentinel_progress_zone_duration_seconds",
			Help:    "Zone processing wall time by result.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"result"}),
		zoneFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_progress_zone_failures_total",
			Help: "Zones aborted by the per-zone failure boundary.",
		}, []string{"zone"}),
		zoneResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_progress_zone_results",
			Help:    "Search results fetched per zone.",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		}),
		tracker: newSweepTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.sweepsStarted,
		s.sweepsCompleted,
		s.sweepsRunning,
		s.zoneStages,
		s.zoneDuration,
		s.zoneFailures,
		s.zoneResults,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSweepStart:
		s.sweepsStarted.Inc()
		if s.tracker.start(evt.SweepID) {
			s.sweepsRunning.Inc()
		}
	case progress.StageSweepDone, progress.StageSweepError:
		result := "success"
		if evt.Stage == progress.StageSweepError {
			result = "error"
		}
		s.sweepsCompleted.WithLabelValues(result).Inc()
		if s.tracker.complete(evt.SweepID) {
			s.sweepsRunning.Dec()
		}
	default:
		if !evt.Stage.IsZoneStage() {
			return
		}
		s.zoneStages.WithLabelValues(string(evt.Stage)).Inc()
		switch evt.Stage {
		case progress.StageZoneFetched:
			s.zoneResults.Observe(float64(evt.Results))
		case progress.StageZoneDone:
			s.observeZone(evt, "success")
		case progress.StageZoneFailed:
			s.zoneFailures.WithLabelValues(evt.Zone).Inc()
			s.observeZone(evt, "error")
		}
	}
}

func (s *PrometheusSink) observeZone(evt progress.Event, result string) {
	if evt.Dur > 0 {
		s.zoneDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type sweepTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newSweepTracker() *sweepTracker {
	return &sweepTracker{running: make(map[string]struct{})}
}

func (t *sweepTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *sweepTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
