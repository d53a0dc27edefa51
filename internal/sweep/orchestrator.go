package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/alert"
	"github.com/JakeFAU/cnii-sentinel/internal/fetcher"
	iduuid "github.com/JakeFAU/cnii-sentinel/internal/id/uuid"
	"github.com/JakeFAU/cnii-sentinel/internal/metrics"
	"github.com/JakeFAU/cnii-sentinel/internal/progress"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// ReasonCanceled is the failure note for zones skipped by cancellation.
const ReasonCanceled = "canceled"

// TargetSource expands the optional extra zone into the ordered target list.
type TargetSource interface {
	Targets(extra string) []sentinel.Zone
}

// Config controls Orchestrator behavior.
type Config struct {
	// ZonePause is waited between zones. Zero disables it.
	ZonePause time.Duration
	// MaxCharsPerSource bounds each source block in the extraction context.
	MaxCharsPerSource int
}

// Orchestrator executes sweeps.
type Orchestrator struct {
	zones     TargetSource
	fetcher   sentinel.ContentFetcher
	extractor sentinel.RiskExtractor
	resolver  sentinel.CoordinateResolver
	alerts    sentinel.AlertDispatcher
	emitter   progress.Emitter
	clock     clockwork.Clock
	ids       sentinel.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator. A nil emitter discards progress and a nil
// clock uses the real one.
func New(
	zones TargetSource,
	contentFetcher sentinel.ContentFetcher,
	extractor sentinel.RiskExtractor,
	resolver sentinel.CoordinateResolver,
	alerts sentinel.AlertDispatcher,
	emitter progress.Emitter,
	clock clockwork.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if alerts == nil {
		alerts = alert.NewDispatcher(nil, logger)
	}
	if cfg.MaxCharsPerSource <= 0 {
		cfg.MaxCharsPerSource = 4000
	}
	return &Orchestrator{
		zones:     zones,
		fetcher:   contentFetcher,
		extractor: extractor,
		resolver:  resolver,
		alerts:    alerts,
		emitter:   emitter,
		clock:     clock,
		ids:       iduuid.New(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Sweep runs one sweep over the catalogue plus extraZone and emits its own
// SWEEP_DONE. It never fails; zone problems are counted in ZonesFailed.
func (o *Orchestrator) Sweep(ctx context.Context, extraZone string) sentinel.SweepResult {
	sweepID, err := o.ids.NewID()
	if err != nil {
		sweepID = fmt.Sprintf("sweep-%d", o.clock.Now().UnixNano())
	}
	res := o.run(ctx, sweepID, extraZone)
	o.emit(progress.Event{
		SweepID: sweepID,
		Stage:   progress.StageSweepDone,
		Risks:   len(res.Risks),
		Dur:     res.FinishedAt.Sub(res.StartedAt),
	})
	return res
}

func (o *Orchestrator) run(ctx context.Context, sweepID, extraZone string) sentinel.SweepResult {
	targets := o.zones.Targets(extraZone)
	res := sentinel.SweepResult{
		Risks:     []sentinel.Risk{},
		StartedAt: o.clock.Now(),
	}
	o.emit(progress.Event{SweepID: sweepID, Stage: progress.StageSweepStart})
	o.logger.Info("sweep started",
		zap.String("sweep_id", sweepID),
		zap.Int("zones", len(targets)),
		zap.String("extra_zone", extraZone),
	)

	for i, zone := range targets {
		if i > 0 && o.cfg.ZonePause > 0 {
			select {
			case <-ctx.Done():
			case <-o.clock.After(o.cfg.ZonePause):
			}
		}
		if ctx.Err() != nil {
			res.ZonesFailed += o.cancelRemaining(sweepID, targets[i:])
			break
		}

		start := o.clock.Now()
		risks, alerts, err := o.sweepZone(ctx, sweepID, zone)
		dur := o.clock.Since(start)
		if err != nil {
			res.ZonesFailed++
			metrics.ObserveZone("failed")
			o.logger.Error("zone failed",
				zap.String("sweep_id", sweepID),
				zap.String("zone", zone.Name),
				zap.Error(err),
			)
			o.emit(progress.Event{
				SweepID: sweepID,
				Stage:   progress.StageZoneFailed,
				Zone:    zone.Name,
				Dur:     dur,
				Note:    err.Error(),
			})
			continue
		}
		res.ZonesScanned++
		res.Risks = append(res.Risks, risks...)
		metrics.ObserveZone("success")
		o.emit(progress.Event{
			SweepID: sweepID,
			Stage:   progress.StageZoneDone,
			Zone:    zone.Name,
			Risks:   len(risks),
			Alerts:  alerts,
			Dur:     dur,
		})
	}

	res.FinishedAt = o.clock.Now()
	res.Summary = sentinel.FormatSummary(res.ZonesScanned, len(res.Risks))
	o.logger.Info("sweep finished",
		zap.String("sweep_id", sweepID),
		zap.Int("zones_scanned", res.ZonesScanned),
		zap.Int("zones_failed", res.ZonesFailed),
		zap.Int("risks", len(res.Risks)),
		zap.Duration("dur", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res
}

// sweepZone is the per-zone failure boundary. A panic anywhere below is
// converted to an error so the remaining zones still run.
func (o *Orchestrator) sweepZone(ctx context.Context, sweepID string, zone sentinel.Zone) (risks []sentinel.Risk, alerts int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			risks, alerts, err = nil, 0, fmt.Errorf("zone panic: %v", rec)
		}
	}()

	o.emit(progress.Event{SweepID: sweepID, Stage: progress.StageZoneStart, Zone: zone.Name})

	results, err := o.fetcher.Fetch(ctx, zone)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch content: %w", err)
	}
	o.emit(progress.Event{SweepID: sweepID, Stage: progress.StageZoneFetched, Zone: zone.Name, Results: len(results)})
	if !fetcher.HasText(results) {
		return []sentinel.Risk{}, 0, nil
	}

	found := o.extractor.Extract(ctx, zone, fetcher.BuildContext(results, o.cfg.MaxCharsPerSource))
	sentinel.AttributeSources(found, results)
	o.emit(progress.Event{SweepID: sweepID, Stage: progress.StageZoneExtracted, Zone: zone.Name, Risks: len(found)})

	risks = make([]sentinel.Risk, 0, len(found))
	for _, r := range found {
		r.Zone = zone.Name
		r.SetCoordinates(o.resolver.Resolve(ctx, r.Location, zone))
		metrics.ObserveRisk(string(r.Level))
		if alert.ShouldAlert(r) && o.alerts.Notify(ctx, r.Level, r.Score, r.Location, r.Summary) {
			alerts++
		}
		risks = append(risks, r)
	}
	return risks, alerts, nil
}

func (o *Orchestrator) cancelRemaining(sweepID string, zones []sentinel.Zone) int {
	for _, zone := range zones {
		metrics.ObserveZone(ReasonCanceled)
		o.emit(progress.Event{
			SweepID: sweepID,
			Stage:   progress.StageZoneFailed,
			Zone:    zone.Name,
			Note:    ReasonCanceled,
		})
	}
	o.logger.Warn("sweep canceled",
		zap.String("sweep_id", sweepID),
		zap.Int("zones_skipped", len(zones)),
	)
	return len(zones)
}

func (o *Orchestrator) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = o.clock.Now()
	}
	o.emitter.Emit(evt)
}
