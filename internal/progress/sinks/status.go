package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/cnii-sentinel/internal/progress"
)

// ZoneStatus is the last known state of one zone in the current sweep.
type ZoneStatus struct {
	Zone    string         `json:"zone"`
	Stage   progress.Stage `json:"stage"`
	Results int            `json:"results"`
	Risks   int            `json:"risks"`
	Alerts  int            `json:"alerts"`
	Error   string         `json:"error,omitempty"`
}

// Status describes the most recent sweep seen by the sink.
type Status struct {
	SweepID    string       `json:"sweep_id,omitempty"`
	Running    bool         `json:"running"`
	Stage      string       `json:"stage,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Risks      int          `json:"risks"`
	Error      string       `json:"error,omitempty"`
	Zones      []ZoneStatus `json:"zones"`
}

// StatusSink folds events into an in-memory snapshot of the latest sweep.
type StatusSink struct {
	mu     sync.RWMutex
	status Status
	index  map[string]int
}

// NewStatusSink returns an empty status sink.
func NewStatusSink() *StatusSink {
	return &StatusSink{
		status: Status{Zones: []ZoneStatus{}},
		index:  make(map[string]int),
	}
}

// Consume applies the batch in order.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	if evt.Stage == progress.StageSweepStart {
		ts := evt.TS
		s.status = Status{
			SweepID:   evt.SweepID,
			Running:   true,
			Stage:     string(evt.Stage),
			StartedAt: &ts,
			Zones:     []ZoneStatus{},
		}
		s.index = make(map[string]int)
		return
	}
	if evt.SweepID != s.status.SweepID {
		return
	}
	s.status.Stage = string(evt.Stage)
	if evt.Stage.Terminal() {
		ts := evt.TS
		s.status.Running = false
		s.status.FinishedAt = &ts
		s.status.Risks = evt.Risks
		s.status.Error = evt.Note
		return
	}
	if !evt.Stage.IsZoneStage() {
		return
	}
	i, ok := s.index[evt.Zone]
	if !ok {
		s.status.Zones = append(s.status.Zones, ZoneStatus{Zone: evt.Zone})
		i = len(s.status.Zones) - 1
		s.index[evt.Zone] = i
	}
	z := &s.status.Zones[i]
	z.Stage = evt.Stage
	switch evt.Stage {
	case progress.StageZoneFetched:
		z.Results = evt.Results
	case progress.StageZoneExtracted:
		z.Risks = evt.Risks
	case progress.StageZoneDone:
		z.Risks = evt.Risks
		z.Alerts = evt.Alerts
	case progress.StageZoneFailed:
		z.Error = evt.Note
	}
}

// Snapshot returns a copy of the current status.
func (s *StatusSink) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.status
	out.Zones = append([]ZoneStatus(nil), s.status.Zones...)
	if out.Zones == nil {
		out.Zones = []ZoneStatus{}
	}
	return out
}

// Close implements progress.Sink.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
