// Package postgres persists sweep reports to Postgres with pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL applied by Migrate.
func Schema() string { return schemaSQL }

// Config controls the connection pool.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ReportStore implements sentinel.ReportStore.
type ReportStore struct {
	pool pool
}

// Open connects a pool described by cfg.
func Open(ctx context.Context, cfg Config) (*ReportStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("database.url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ReportStore{pool: p}, nil
}

// NewWithPool wraps an existing pool. Tests pass a pgxmock pool.
func NewWithPool(p pool) (*ReportStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &ReportStore{pool: p}, nil
}

// Close releases the pool.
func (s *ReportStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity for readiness probes.
func (s *ReportStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema. It is idempotent.
func (s *ReportStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const insertReportSQL = `INSERT INTO patrol_reports (id, created_at, summary, zones_scanned, zones_failed)
VALUES ($1, $2, $3, $4, $5)`

const insertRiskSQL = `INSERT INTO risk_records (
	report_id, position, zone, risk_level, risk_score, location, latitude, longitude,
	threat_type, recommended_action, summary, source_url, source_title, published_date
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// SaveReport writes the report header and every risk in one transaction.
func (s *ReportStore) SaveReport(ctx context.Context, report sentinel.Report) (err error) {
	if report.ID == "" {
		return errors.New("report id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin report tx: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback report tx: %w", rbErr))
		}
	}()

	if _, err := tx.Exec(ctx, insertReportSQL,
		report.ID,
		report.CreatedAt,
		nullText(report.Summary),
		report.ZonesScanned,
		report.ZonesFailed,
	); err != nil {
		return fmt.Errorf("insert patrol report: %w", err)
	}
	for i, r := range report.Risks {
		if _, err := tx.Exec(ctx, insertRiskSQL, riskArgs(report.ID, i, r)...); err != nil {
			return fmt.Errorf("insert risk %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit report tx: %w", err)
	}
	committed = true
	return nil
}

func riskArgs(reportID string, position int, r sentinel.Risk) []any {
	return []any{
		reportID,
		position,
		nullText(r.Zone),
		string(r.Level),
		r.Score,
		nullText(r.Location),
		r.Lat,
		r.Lon,
		nullText(r.ThreatType),
		nullText(r.RecommendedAction),
		nullText(r.Summary),
		nullText(r.SourceURL),
		nullText(r.SourceTitle),
		nullText(r.PublishedDate),
	}
}

const reportColumns = `id::text, created_at, summary, zones_scanned, zones_failed`

// LatestReport returns the newest report with its risks.
func (s *ReportStore) LatestReport(ctx context.Context) (sentinel.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportColumns+`
FROM patrol_reports ORDER BY created_at DESC, id DESC LIMIT 1`)
	return s.loadReport(ctx, row)
}

// GetReport returns one report with its risks.
func (s *ReportStore) GetReport(ctx context.Context, id string) (sentinel.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportColumns+`
FROM patrol_reports WHERE id = $1`, id)
	return s.loadReport(ctx, row)
}

func (s *ReportStore) loadReport(ctx context.Context, row pgx.Row) (sentinel.Report, error) {
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.Report{}, sentinel.ErrNotFound
	}
	if err != nil {
		return sentinel.Report{}, fmt.Errorf("select patrol report: %w", err)
	}
	risks, err := s.risks(ctx, report.ID)
	if err != nil {
		return sentinel.Report{}, err
	}
	report.Risks = risks
	return report, nil
}

// ListReports returns up to limit report headers, newest first.
func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]sentinel.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `SELECT `+reportColumns+`
FROM patrol_reports ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list patrol reports: %w", err)
	}
	defer rows.Close()

	out := []sentinel.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patrol report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patrol reports: %w", err)
	}
	return out, nil
}

func scanReport(row pgx.Row) (sentinel.Report, error) {
	var (
		r       sentinel.Report
		summary *string
	)
	if err := row.Scan(&r.ID, &r.CreatedAt, &summary, &r.ZonesScanned, &r.ZonesFailed); err != nil {
		return sentinel.Report{}, err
	}
	r.Summary = deref(summary)
	return r, nil
}

func (s *ReportStore) risks(ctx context.Context, reportID string) ([]sentinel.Risk, error) {
	rows, err := s.pool.Query(ctx, `SELECT zone, risk_level, risk_score, location, latitude, longitude,
	threat_type, recommended_action, summary, source_url, source_title, published_date
FROM risk_records WHERE report_id = $1 ORDER BY position, id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("select risk records: %w", err)
	}
	defer rows.Close()

	out := []sentinel.Risk{}
	for rows.Next() {
		var (
			zone, location, threat, action, summary *string
			sourceURL, sourceTitle, published       *string
			level                                   string
			score                                   *int
			lat, lon                                *float64
		)
		if err := rows.Scan(&zone, &level, &score, &location, &lat, &lon,
			&threat, &action, &summary, &sourceURL, &sourceTitle, &published); err != nil {
			return nil, fmt.Errorf("scan risk record: %w", err)
		}
		r := sentinel.Risk{
			Zone:              deref(zone),
			Level:             sentinel.Severity(level),
			Location:          deref(location),
			ThreatType:        deref(threat),
			RecommendedAction: deref(action),
			Summary:           deref(summary),
			SourceURL:         deref(sourceURL),
			SourceTitle:       deref(sourceTitle),
			PublishedDate:     deref(published),
			Lat:               lat,
			Lon:               lon,
		}
		if score != nil {
			r.Score = *score
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk records: %w", err)
	}
	return out, nil
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
