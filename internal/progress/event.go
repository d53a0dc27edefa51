package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Sweep and zone stages.
const (
	StageSweepStart    Stage = "SWEEP_START"
	StageSweepDone     Stage = "SWEEP_DONE"
	StageSweepError    Stage = "SWEEP_ERROR"
	StageZoneStart     Stage = "ZONE_START"
	StageZoneFetched   Stage = "ZONE_FETCHED"
	StageZoneExtracted Stage = "ZONE_EXTRACTED"
	StageZoneDone      Stage = "ZONE_DONE"
	StageZoneFailed    Stage = "ZONE_FAILED"
)

// IsZoneStage reports whether s is scoped to a single zone.
func (s Stage) IsZoneStage() bool {
	switch s {
	case StageZoneStart, StageZoneFetched, StageZoneExtracted, StageZoneDone, StageZoneFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends a sweep.
func (s Stage) Terminal() bool {
	return s == StageSweepDone || s == StageSweepError
}

// Event is one step of sweep progress. Zone is set for zone stages. Risks
// counts the zone's risks, or the sweep total on SWEEP_DONE. Dur is set on
// terminal stages and Note carries error text for failures.
type Event struct {
	SweepID string        `json:"sweep_id"`
	TS      time.Time     `json:"ts"`
	Stage   Stage         `json:"stage"`
	Zone    string        `json:"zone,omitempty"`
	Results int           `json:"results,omitempty"`
	Risks   int           `json:"risks,omitempty"`
	Alerts  int           `json:"alerts,omitempty"`
	Dur     time.Duration `json:"dur_ns,omitempty"`
	Note    string        `json:"note,omitempty"`
}

// Validate rejects malformed events before they reach sinks.
func (e Event) Validate() error {
	if e.SweepID == "" {
		return errors.New("sweep id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSweepStart, StageSweepDone, StageSweepError:
	case StageZoneStart, StageZoneFetched, StageZoneExtracted, StageZoneDone, StageZoneFailed:
		if e.Zone == "" {
			return fmt.Errorf("%s requires zone", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// PublishKey routes bus messages for one sweep to the same partition.
func (e Event) PublishKey() string { return e.SweepID }

// EventType labels bus messages with the stage.
func (e Event) EventType() string { return string(e.Stage) }
