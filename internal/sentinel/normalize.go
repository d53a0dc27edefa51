package sentinel

import "strings"

// Score bounds and the band edges used to derive a severity from a score.
const (
	MinScore        = 0
	MaxScore        = 10
	mediumBandStart = 4
	highBandStart   = 7
)

// SeverityForScore maps a clamped score onto its severity band.
func SeverityForScore(score int) Severity {
	switch {
	case score >= highBandStart:
		return SeverityHigh
	case score >= mediumBandStart:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ClampScore bounds a score to [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// NormalizeRisk makes level and score agree. The score is clamped first and
// the level is re-derived from it whenever the reported label is unknown or
// falls outside the score's band. Text fields are trimmed.
func NormalizeRisk(r Risk) Risk {
	r.Score = ClampScore(r.Score)
	band := SeverityForScore(r.Score)
	if level, ok := ParseSeverity(string(r.Level)); ok && level == band {
		r.Level = level
	} else {
		r.Level = band
	}
	r.Location = strings.TrimSpace(r.Location)
	r.ThreatType = strings.TrimSpace(r.ThreatType)
	r.RecommendedAction = strings.TrimSpace(r.RecommendedAction)
	r.Summary = strings.TrimSpace(r.Summary)
	r.SourceURL = strings.TrimSpace(r.SourceURL)
	return r
}

// AttributeSources back-fills source title and publication date on risks whose
// SourceURL matches one of the results. Matching ignores a trailing slash.
func AttributeSources(risks []Risk, results []SearchResult) {
	if len(risks) == 0 || len(results) == 0 {
		return
	}
	byURL := make(map[string]SearchResult, len(results))
	for _, res := range results {
		byURL[canonicalURL(res.URL)] = res
	}
	for i := range risks {
		res, ok := byURL[canonicalURL(risks[i].SourceURL)]
		if !ok {
			continue
		}
		if risks[i].SourceTitle == "" {
			risks[i].SourceTitle = res.Title
		}
		if risks[i].PublishedDate == "" {
			risks[i].PublishedDate = res.PublishedDate
		}
	}
}

func canonicalURL(raw string) string {
	return strings.TrimSuffix(strings.TrimSpace(raw), "/")
}
