package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

var riskColumns = []string{
	"zone", "risk_level", "risk_score", "location", "latitude", "longitude",
	"threat_type", "recommended_action", "summary", "source_url", "source_title", "published_date",
}

var headerColumns = []string{"id", "created_at", "summary", "zones_scanned", "zones_failed"}

func newMockStore(t *testing.T) (*ReportStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func ptr[T any](v T) *T { return &v }

func sampleReport() sentinel.Report {
	high := sentinel.Risk{
		Zone:              "Lagos-Ibadan Expressway",
		Level:             sentinel.SeverityHigh,
		Score:             8,
		Location:          "Berger Junction",
		ThreatType:        "Excavation",
		RecommendedAction: "Dispatch patrol",
		Summary:           "Excavators beside the median.",
		SourceURL:         "https://news.example.ng/berger",
	}
	high.SetCoordinates(sentinel.Coordinates{Lat: 6.6400, Lon: 3.3700})
	return sentinel.Report{
		ID:           "0192a3b4-5c6d-7e8f-9a0b-1c2d3e4f5a6b",
		CreatedAt:    time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC),
		Summary:      "Sweep complete. Scanned 8 zones. Identified 1 risks.",
		ZonesScanned: 8,
		Risks:        []sentinel.Risk{high},
	}
}

func TestSaveReportCommitsTransaction(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	report := sampleReport()
	r := report.Risks[0]

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO patrol_reports").
		WithArgs(report.ID, report.CreatedAt, ptr(report.Summary), 8, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO risk_records").
		WithArgs(
			report.ID, 0, ptr(r.Zone), "High", 8, ptr("Berger Junction"), r.Lat, r.Lon,
			ptr("Excavation"), ptr("Dispatch patrol"), ptr(r.Summary), ptr(r.SourceURL),
			(*string)(nil), (*string)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveReport(context.Background(), report))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportRollsBackOnRiskFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	report := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO patrol_reports").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO risk_records").
		WillReturnError(errors.New("check constraint violated"))
	mock.ExpectRollback()

	err := store.SaveReport(context.Background(), report)
	require.ErrorContains(t, err, "insert risk 0")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportBeginFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := store.SaveReport(context.Background(), sampleReport())
	require.ErrorContains(t, err, "begin report tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportRequiresID(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	require.Error(t, store.SaveReport(context.Background(), sentinel.Report{}))
}

func TestLatestReportLoadsRisks(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	report := sampleReport()

	mock.ExpectQuery("FROM patrol_reports ORDER BY created_at DESC").
		WillReturnRows(pgxmock.NewRows(headerColumns).
			AddRow(report.ID, report.CreatedAt, ptr(report.Summary), 8, 0))
	mock.ExpectQuery("FROM risk_records WHERE report_id").
		WithArgs(report.ID).
		WillReturnRows(pgxmock.NewRows(riskColumns).
			AddRow(ptr("Lagos-Ibadan Expressway"), "High", ptr(8), ptr("Berger Junction"), ptr(6.64), ptr(3.37),
				ptr("Excavation"), (*string)(nil), ptr("Excavators."), ptr("https://news.example.ng/berger"),
				(*string)(nil), (*string)(nil)))

	got, err := store.LatestReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, report.ID, got.ID)
	require.Equal(t, report.Summary, got.Summary)
	require.Equal(t, 8, got.ZonesScanned)
	require.Len(t, got.Risks, 1)
	require.Equal(t, sentinel.SeverityHigh, got.Risks[0].Level)
	require.Equal(t, 8, got.Risks[0].Score)
	require.Empty(t, got.Risks[0].RecommendedAction)
	require.True(t, got.Risks[0].Located())
	require.InDelta(t, 6.64, *got.Risks[0].Lat, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReportEmpty(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM patrol_reports").WillReturnError(pgx.ErrNoRows)

	_, err := store.LatestReport(context.Background())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReportNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM patrol_reports WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetReport(context.Background(), "missing")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListReports(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	at := time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM patrol_reports ORDER BY created_at DESC, id DESC LIMIT").
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows(headerColumns).
			AddRow("r2", at.Add(time.Hour), ptr("second"), 8, 0).
			AddRow("r1", at, (*string)(nil), 7, 1))

	got, err := store.ListReports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "r2", got[0].ID)
	require.Empty(t, got[1].Summary)
	require.Equal(t, 1, got[1].ZonesFailed)
	require.Nil(t, got[0].Risks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS patrol_reports").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
	require.Contains(t, Schema(), "risk_records")
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
	_, err = Open(context.Background(), Config{})
	require.Error(t, err)
}
