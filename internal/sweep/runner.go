package sweep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/metrics"
	"github.com/JakeFAU/cnii-sentinel/internal/progress"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// Runner errors.
var (
	// ErrSweepInProgress is returned when Run is called while a sweep runs.
	ErrSweepInProgress = errors.New("a sweep is already in progress")
	// ErrPersist wraps report store failures. The sweep result is discarded.
	ErrPersist = errors.New("failed to persist sweep report")
)

// TopicCompleted is the default topic for CompletedEvent.
const TopicCompleted = "sweep.completed"

const persistTimeout = 30 * time.Second

// RunnerConfig controls post-sweep side effects.
type RunnerConfig struct {
	// Archive writes the report JSON to the blob store.
	Archive bool
	// CompletedTopic receives a CompletedEvent. Empty disables publishing.
	CompletedTopic string
}

// CompletedEvent announces a persisted report.
type CompletedEvent struct {
	ReportID     string    `json:"report_id"`
	CreatedAt    time.Time `json:"created_at"`
	Summary      string    `json:"summary"`
	ZonesScanned int       `json:"zones_scanned"`
	ZonesFailed  int       `json:"zones_failed"`
	RiskCount    int       `json:"risk_count"`
	HighRisks    int       `json:"high_risk_count"`
	ArchiveURI   string    `json:"archive_uri,omitempty"`
}

// PublishKey keys bus messages by report.
func (e CompletedEvent) PublishKey() string { return e.ReportID }

// EventType labels the bus message.
func (CompletedEvent) EventType() string { return TopicCompleted }

// Runner serializes sweeps and records their reports.
type Runner struct {
	mu sync.Mutex

	orch      *Orchestrator
	store     sentinel.ReportStore
	blobs     sentinel.BlobStore
	publisher sentinel.Publisher
	hasher    sentinel.Hasher
	ids       sentinel.IDGenerator
	clock     clockwork.Clock
	emitter   progress.Emitter
	cfg       RunnerConfig
	logger    *zap.Logger
}

// NewRunner wires a Runner. store, blobs and publisher may be nil to skip
// persistence, archiving and publishing respectively.
func NewRunner(
	orch *Orchestrator,
	store sentinel.ReportStore,
	blobs sentinel.BlobStore,
	publisher sentinel.Publisher,
	hasher sentinel.Hasher,
	ids sentinel.IDGenerator,
	clock clockwork.Clock,
	emitter progress.Emitter,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ids == nil {
		ids = orch.ids
	}
	return &Runner{
		orch:      orch,
		store:     store,
		blobs:     blobs,
		publisher: publisher,
		hasher:    hasher,
		ids:       ids,
		clock:     clock,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Busy reports whether a sweep is running right now.
func (r *Runner) Busy() bool {
	if r.mu.TryLock() {
		r.mu.Unlock()
		return false
	}
	return true
}

// Run executes one sweep and persists it as a Report. Concurrent calls fail
// fast with ErrSweepInProgress. A store failure returns an error wrapping
// ErrPersist; archive and publish failures are only logged.
func (r *Runner) Run(ctx context.Context, extraZone string) (sentinel.Report, error) {
	if !r.mu.TryLock() {
		return sentinel.Report{}, ErrSweepInProgress
	}
	defer r.mu.Unlock()

	metrics.SetSweepInProgress(true)
	defer metrics.SetSweepInProgress(false)

	id, err := r.ids.NewID()
	if err != nil {
		metrics.ObserveSweep("error", 0)
		return sentinel.Report{}, fmt.Errorf("generate report id: %w", err)
	}

	start := r.clock.Now()
	res := r.orch.run(ctx, id, extraZone)
	report := sentinel.Report{
		ID:           id,
		CreatedAt:    r.clock.Now().UTC(),
		Summary:      res.Summary,
		ZonesScanned: res.ZonesScanned,
		ZonesFailed:  res.ZonesFailed,
		Risks:        res.Risks,
	}

	// Persist even when the caller went away so partial sweeps are kept.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.SaveReport(saveCtx, report); err != nil {
			dur := r.clock.Since(start)
			metrics.ObserveSweep("persist_error", dur)
			r.logger.Error("sweep report not persisted",
				zap.String("report_id", report.ID),
				zap.String("summary", report.Summary),
				zap.Int("zones_scanned", report.ZonesScanned),
				zap.Int("zones_failed", report.ZonesFailed),
				zap.Int("risks", len(report.Risks)),
				zap.Error(err),
			)
			r.emit(progress.Event{
				SweepID: id,
				Stage:   progress.StageSweepError,
				Risks:   len(report.Risks),
				Dur:     dur,
				Note:    err.Error(),
			})
			return sentinel.Report{}, fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}

	uri := r.archive(saveCtx, report)
	r.publishCompleted(saveCtx, report, uri)

	dur := r.clock.Since(start)
	metrics.ObserveSweep("success", dur)
	r.emit(progress.Event{
		SweepID: id,
		Stage:   progress.StageSweepDone,
		Risks:   len(report.Risks),
		Dur:     dur,
	})
	return report, nil
}

// ArchivePath is reports/YYYY/MM/DD/{id}-{digest[:12]}.json.
func ArchivePath(report sentinel.Report, digest string) string {
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return fmt.Sprintf("reports/%s/%s-%s.json", report.CreatedAt.UTC().Format("2006/01/02"), report.ID, digest)
}

func (r *Runner) archive(ctx context.Context, report sentinel.Report) string {
	if !r.cfg.Archive || r.blobs == nil || r.hasher == nil {
		return ""
	}
	body, err := json.Marshal(report)
	if err != nil {
		r.logger.Warn("archive marshal failed", zap.String("report_id", report.ID), zap.Error(err))
		return ""
	}
	digest, err := r.hasher.Hash(body)
	if err != nil {
		r.logger.Warn("archive hash failed", zap.String("report_id", report.ID), zap.Error(err))
		return ""
	}
	uri, err := r.blobs.PutObject(ctx, ArchivePath(report, digest), "application/json", bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("archive upload failed", zap.String("report_id", report.ID), zap.Error(err))
		return ""
	}
	r.logger.Info("report archived", zap.String("report_id", report.ID), zap.String("uri", uri))
	return uri
}

func (r *Runner) publishCompleted(ctx context.Context, report sentinel.Report, uri string) {
	if r.publisher == nil || r.cfg.CompletedTopic == "" {
		return
	}
	evt := CompletedEvent{
		ReportID:     report.ID,
		CreatedAt:    report.CreatedAt,
		Summary:      report.Summary,
		ZonesScanned: report.ZonesScanned,
		ZonesFailed:  report.ZonesFailed,
		RiskCount:    len(report.Risks),
		ArchiveURI:   uri,
	}
	for _, risk := range report.Risks {
		if risk.Level == sentinel.SeverityHigh {
			evt.HighRisks++
		}
	}
	id, err := r.publisher.Publish(ctx, r.cfg.CompletedTopic, evt)
	if err != nil {
		r.logger.Warn("completion publish failed", zap.String("report_id", report.ID), zap.Error(err))
		return
	}
	r.logger.Debug("completion published", zap.String("report_id", report.ID), zap.String("message_id", id))
}

func (r *Runner) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = r.clock.Now()
	}
	r.emitter.Emit(evt)
}
