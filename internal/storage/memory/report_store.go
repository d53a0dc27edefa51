package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// ReportStore is a mutex-guarded sentinel.ReportStore.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]sentinel.Report
	failErr error
}

// NewReportStore returns an empty store.
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]sentinel.Report)}
}

// FailWith makes every later SaveReport return err. Passing nil clears it.
func (s *ReportStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// SaveReport stores a copy of report. Ids must be unique.
func (s *ReportStore) SaveReport(_ context.Context, report sentinel.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if report.ID == "" {
		return errors.New("report id is required")
	}
	if _, exists := s.reports[report.ID]; exists {
		return errors.New("report already exists")
	}
	s.reports[report.ID] = cloneReport(report)
	return nil
}

// LatestReport returns the newest report by CreatedAt, then ID.
func (s *ReportStore) LatestReport(_ context.Context) (sentinel.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.ordered()
	if len(ordered) == 0 {
		return sentinel.Report{}, sentinel.ErrNotFound
	}
	return cloneReport(ordered[0]), nil
}

// GetReport returns a report by id.
func (s *ReportStore) GetReport(_ context.Context, id string) (sentinel.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return sentinel.Report{}, sentinel.ErrNotFound
	}
	return cloneReport(r), nil
}

// ListReports returns up to limit reports newest first, without risks.
func (s *ReportStore) ListReports(_ context.Context, limit int) ([]sentinel.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.ordered()
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	out := make([]sentinel.Report, 0, len(ordered))
	for _, r := range ordered {
		r.Risks = nil
		out = append(out, r)
	}
	return out, nil
}

// Len returns the number of stored reports.
func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func (s *ReportStore) ordered() []sentinel.Report {
	out := make([]sentinel.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func cloneReport(r sentinel.Report) sentinel.Report {
	if r.Risks == nil {
		return r
	}
	risks := make([]sentinel.Risk, len(r.Risks))
	for i, risk := range r.Risks {
		if risk.Lat != nil {
			lat := *risk.Lat
			risk.Lat = &lat
		}
		if risk.Lon != nil {
			lon := *risk.Lon
			risk.Lon = &lon
		}
		risks[i] = risk
	}
	r.Risks = risks
	return r
}
