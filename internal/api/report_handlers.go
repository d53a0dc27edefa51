package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	iduuid "github.com/JakeFAU/cnii-sentinel/internal/id/uuid"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 200
	reportTimeout      = 5 * time.Second
)

type reportHeaderDTO struct {
	ID           string    `json:"report_id"`
	CreatedAt    time.Time `json:"created_at"`
	Summary      string    `json:"summary"`
	ZonesScanned int       `json:"zones_scanned"`
	ZonesFailed  int       `json:"zones_failed"`
}

// listReports handles GET /v1/reports?limit=. It returns {"reports": [...]}
// newest first, 400 for an invalid limit, or 503 without a store.
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store unavailable")
		return
	}
	limit, err := parseLimit(r, defaultReportLimit, maxReportLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	reports, err := s.reports.ListReports(ctx, limit)
	if err != nil {
		s.logger.Error("list reports failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": toHeaderDTOs(reports)})
}

func (s *Server) latestReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	report, err := s.reports.LatestReport(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no reports")
			return
		}
		s.logger.Error("latest report failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// getReport handles GET /v1/reports/{report_id}: 400 for malformed ids and
// 404 when the store reports sentinel.ErrNotFound.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report store unavailable")
		return
	}
	id := chi.URLParam(r, "report_id")
	if !iduuid.Valid(id) {
		writeError(w, http.StatusBadRequest, "invalid report_id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()

	report, err := s.reports.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		s.logger.Error("get report failed", zap.String("report_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	return min(val, maxLimit), nil
}

func toHeaderDTOs(in []sentinel.Report) []reportHeaderDTO {
	out := make([]reportHeaderDTO, 0, len(in))
	for _, rep := range in {
		out = append(out, reportHeaderDTO{
			ID:           rep.ID,
			CreatedAt:    rep.CreatedAt,
			Summary:      rep.Summary,
			ZonesScanned: rep.ZonesScanned,
			ZonesFailed:  rep.ZonesFailed,
		})
	}
	return out
}
