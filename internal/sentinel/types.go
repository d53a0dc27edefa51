package sentinel

import (
	"fmt"
	"strings"
	"time"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"latitude" yaml:"lat"`
	Lon float64 `json:"longitude" yaml:"lon"`
}

// IsZero reports whether both components are zero.
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// NationalCenter is the fallback coordinate used when a zone has no default.
var NationalCenter = Coordinates{Lat: 9.0820, Lon: 8.6753}

// Zone is a monitored corridor. Name is its identity.
type Zone struct {
	Name    string      `json:"name" yaml:"name"`
	Default Coordinates `json:"default" yaml:"default"`
}

// SearchResult is one retrieved item for a zone. Index is 1-based and stable
// within a single fetch call so prompts can cite it.
type SearchResult struct {
	Index         int    `json:"index"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date,omitempty"`
	Content       string `json:"content"`
	// FullText is true when Content came from the reader proxy rather than
	// the search snippet.
	FullText bool `json:"full_text"`
}

// Severity is the three-valued ordinal risk category.
type Severity string

// Severity values.
const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ParseSeverity parses a case-insensitive label.
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return SeverityLow, true
	case "medium", "moderate":
		return SeverityMedium, true
	case "high", "critical":
		return SeverityHigh, true
	default:
		return "", false
	}
}

// Rank orders severities: high > medium > low. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// Risk is one structured threat finding.
type Risk struct {
	Zone              string   `json:"zone"`
	Level             Severity `json:"risk_level"`
	Score             int      `json:"risk_score"`
	Location          string   `json:"location_identified"`
	ThreatType        string   `json:"threat_type"`
	RecommendedAction string   `json:"recommended_action"`
	Summary           string   `json:"summary"`
	SourceURL         string   `json:"source_url,omitempty"`
	SourceTitle       string   `json:"source_title,omitempty"`
	PublishedDate     string   `json:"published_date,omitempty"`
	Lat               *float64 `json:"latitude"`
	Lon               *float64 `json:"longitude"`
}

// SetCoordinates attaches resolved coordinates.
func (r *Risk) SetCoordinates(c Coordinates) {
	lat, lon := c.Lat, c.Lon
	r.Lat = &lat
	r.Lon = &lon
}

// Located reports whether both coordinates are populated.
func (r Risk) Located() bool {
	return r.Lat != nil && r.Lon != nil
}

// SweepResult is the aggregate output of one sweep.
type SweepResult struct {
	Summary      string    `json:"summary"`
	Risks        []Risk    `json:"risks"`
	ZonesScanned int       `json:"zones_scanned"`
	ZonesFailed  int       `json:"zones_failed"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// FormatSummary renders the human-readable sweep summary.
func FormatSummary(zonesScanned, risks int) string {
	return fmt.Sprintf("Sweep complete. Scanned %d zones. Identified %d risks.", zonesScanned, risks)
}

// Report is the persisted form of a SweepResult.
type Report struct {
	ID           string    `json:"report_id"`
	CreatedAt    time.Time `json:"created_at"`
	Summary      string    `json:"summary"`
	ZonesScanned int       `json:"zones_scanned"`
	ZonesFailed  int       `json:"zones_failed"`
	Risks        []Risk    `json:"risks"`
}
