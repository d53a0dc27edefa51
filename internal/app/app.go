// Package app builds the long-lived services from configuration and holds
// them for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/alert"
	"github.com/JakeFAU/cnii-sentinel/internal/alert/telegram"
	"github.com/JakeFAU/cnii-sentinel/internal/api"
	"github.com/JakeFAU/cnii-sentinel/internal/config"
	"github.com/JakeFAU/cnii-sentinel/internal/extractor"
	"github.com/JakeFAU/cnii-sentinel/internal/fetcher"
	collyreader "github.com/JakeFAU/cnii-sentinel/internal/fetcher/colly"
	"github.com/JakeFAU/cnii-sentinel/internal/geocode"
	"github.com/JakeFAU/cnii-sentinel/internal/geocode/googlemaps"
	"github.com/JakeFAU/cnii-sentinel/internal/geocode/nominatim"
	"github.com/JakeFAU/cnii-sentinel/internal/hash/sha256"
	iduuid "github.com/JakeFAU/cnii-sentinel/internal/id/uuid"
	"github.com/JakeFAU/cnii-sentinel/internal/metrics"
	"github.com/JakeFAU/cnii-sentinel/internal/policy/ratelimit"
	"github.com/JakeFAU/cnii-sentinel/internal/progress"
	"github.com/JakeFAU/cnii-sentinel/internal/progress/sinks"
	kafkapub "github.com/JakeFAU/cnii-sentinel/internal/publisher/kafka"
	mempub "github.com/JakeFAU/cnii-sentinel/internal/publisher/memory"
	natspub "github.com/JakeFAU/cnii-sentinel/internal/publisher/nats"
	pubsubpub "github.com/JakeFAU/cnii-sentinel/internal/publisher/pubsub"
	"github.com/JakeFAU/cnii-sentinel/internal/scheduler"
	"github.com/JakeFAU/cnii-sentinel/internal/search/tavily"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
	"github.com/JakeFAU/cnii-sentinel/internal/storage/gcs"
	"github.com/JakeFAU/cnii-sentinel/internal/storage/local"
	"github.com/JakeFAU/cnii-sentinel/internal/storage/memory"
	"github.com/JakeFAU/cnii-sentinel/internal/storage/postgres"
	"github.com/JakeFAU/cnii-sentinel/internal/sweep"
	"github.com/JakeFAU/cnii-sentinel/internal/zones"
)

// Options adjust construction for commands and tests.
type Options struct {
	// NoPersist skips the report store entirely.
	NoPersist bool
	// Clock overrides the real clock.
	Clock clockwork.Clock
	// Registerer receives the progress collectors. Nil uses the default.
	Registerer prometheus.Registerer
	// Searcher, Extractor and Notifier replace the configured providers.
	Searcher  sentinel.Searcher
	Extractor sentinel.RiskExtractor
	Notifier  sentinel.Notifier
	Geocoder  sentinel.Geocoder
}

// App holds the shared services. It is built once at startup.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Zones     *zones.Catalogue
	Reports   sentinel.ReportStore
	Blobs     sentinel.BlobStore
	Publisher sentinel.Publisher
	Status    *sinks.StatusSink
	Hub       *progress.Hub
	Runner    *sweep.Runner

	pinger  func(context.Context) error
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New builds every service named by cfg. It fails fast; anything opened
// before the failure is closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	// 1. Zone catalogue.
	if cfg.Zones.File != "" {
		a.Zones, err = zones.LoadFile(cfg.Zones.File)
		if err != nil {
			return nil, err
		}
	} else {
		a.Zones = zones.MustDefault()
	}

	// 2. Report store.
	if !opts.NoPersist {
		if err := a.openReportStore(ctx); err != nil {
			return nil, err
		}
	}

	// 3. Archive blob store.
	if err := a.openBlobStore(ctx); err != nil {
		return nil, err
	}

	// 4. Event publisher.
	if err := a.openPublisher(ctx); err != nil {
		return nil, err
	}

	// 5. Progress hub and sinks.
	if err := a.openProgress(opts.Registerer); err != nil {
		return nil, err
	}

	// 6. Sweep pipeline.
	orch, err := a.buildOrchestrator(opts, clock)
	if err != nil {
		return nil, err
	}
	a.Runner = sweep.NewRunner(orch, a.Reports, a.Blobs, a.Publisher, sha256.New(), iduuid.New(), clock, a.Hub,
		sweep.RunnerConfig{Archive: cfg.Sweep.Archive, CompletedTopic: cfg.Publisher.CompletedTopic}, logger)

	logger.Info("application services initialized",
		zap.Int("zones", len(a.Zones.All())),
		zap.String("database", cfg.Database.Driver),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("publisher", cfg.Publisher.Backend),
		zap.Bool("persist", a.Reports != nil),
	)
	return a, nil
}

func (a *App) openReportStore(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case "postgres":
		store, err := postgres.Open(ctx, postgres.Config{URL: a.Config.Database.URL, MaxConns: a.Config.Database.MaxConns})
		if err != nil {
			return fmt.Errorf("open report store: %w", err)
		}
		a.onClose("postgres", func(context.Context) error { store.Close(); return nil })
		if a.Config.Database.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		a.Reports = store
		a.pinger = store.Ping
	case "memory":
		a.Logger.Warn("using in-memory report store; reports are lost on exit")
		a.Reports = memory.NewReportStore()
	default:
		return fmt.Errorf("unknown database driver: %s", a.Config.Database.Driver)
	}
	return nil
}

func (a *App) openBlobStore(ctx context.Context) error {
	switch a.Config.Storage.Backend {
	case "gcs":
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.Config.Storage.GCSBucket, Prefix: a.Config.Storage.Prefix})
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		a.onClose("gcs", func(context.Context) error { return store.Close() })
		a.Blobs = store
	case "local":
		store, err := local.New(local.Config{BaseDir: a.Config.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		a.Blobs = store
	case "memory":
		a.Blobs = memory.NewBlobStore()
	case "none":
	default:
		return fmt.Errorf("unknown storage backend: %s", a.Config.Storage.Backend)
	}
	return nil
}

func (a *App) openPublisher(ctx context.Context) error {
	cfg := a.Config.Publisher
	switch cfg.Backend {
	case "nats":
		p, err := natspub.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("open publisher: %w", err)
		}
		a.onClose("nats", func(context.Context) error { return p.Close() })
		a.Publisher = p
	case "kafka":
		p, err := kafkapub.New(cfg.KafkaBrokers)
		if err != nil {
			return fmt.Errorf("open publisher: %w", err)
		}
		a.onClose("kafka", func(context.Context) error { return p.Close() })
		a.Publisher = p
	case "pubsub":
		p, err := pubsubpub.New(ctx, cfg.ProjectID)
		if err != nil {
			return fmt.Errorf("open publisher: %w", err)
		}
		a.onClose("pubsub", func(context.Context) error { return p.Close() })
		a.Publisher = p
	case "memory":
		a.Publisher = mempub.New()
	case "none":
	default:
		return fmt.Errorf("unknown publisher backend: %s", cfg.Backend)
	}
	return nil
}

func (a *App) openProgress(reg prometheus.Registerer) error {
	cfg := a.Config.Progress
	a.Status = sinks.NewStatusSink()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("register progress metrics: %w", err)
	}
	list := []progress.Sink{a.Status, promSink}
	if cfg.LogEvents {
		list = append(list, sinks.NewLogSink(a.Logger))
	}
	if cfg.PublishEvents && a.Publisher != nil {
		list = append(list, sinks.NewPublisherSink(a.Publisher, a.Config.Publisher.ProgressTopic))
	}
	a.Hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.BufferSize,
		MaxBatchEvents: cfg.MaxBatchEvents,
		MaxBatchWait:   cfg.MaxBatchWait,
		SinkTimeout:    cfg.SinkTimeout,
		Logger:         a.Logger,
	}, list...)
	// Registered last so it closes first and flushes into the publisher.
	a.onClose("progress", a.Hub.Close)
	return nil
}

func (a *App) buildOrchestrator(opts Options, clock clockwork.Clock) (*sweep.Orchestrator, error) {
	cfg := a.Config

	searcher := opts.Searcher
	if searcher == nil {
		if cfg.Search.APIKey == "" {
			a.Logger.Warn("search api key is empty; searches will fail")
		}
		searcher = tavily.New(tavily.Config{APIKey: cfg.Search.APIKey, BaseURL: cfg.Search.BaseURL, Timeout: cfg.Search.Timeout})
	}
	var reader sentinel.Reader
	if cfg.Fetcher.Dereference {
		limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Fetcher.RequestsPerSecond, OnDelay: metrics.ObserveRateLimitDelay})
		reader = collyreader.New(collyreader.Config{
			ReaderURL: cfg.Fetcher.ReaderURL,
			APIKey:    cfg.Fetcher.ReaderAPIKey,
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   cfg.Fetcher.Timeout,
		}, limiter)
	}
	content := fetcher.New(searcher, reader, fetcher.Config{
		Topic:           cfg.Search.Topic,
		Depth:           cfg.Search.Depth,
		Country:         cfg.Search.Country,
		MaxResults:      cfg.Search.MaxResults,
		Days:            cfg.Search.Days,
		Keywords:        cfg.Search.Keywords,
		ExcludeDomains:  cfg.Search.ExcludeDomains,
		Dereference:     cfg.Fetcher.Dereference,
		MinContentChars: cfg.Fetcher.MinContentChars,
	}, a.Logger.Named("fetcher"))

	extract := opts.Extractor
	if extract == nil {
		if cfg.LLM.APIKey == "" {
			a.Logger.Warn("llm api key is empty; extraction will yield no risks")
		}
		x, err := extractor.New(extractor.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, a.Logger.Named("extractor"))
		if err != nil {
			return nil, err
		}
		extract = x
	}

	geo := opts.Geocoder
	if geo == nil {
		var err error
		geo, err = a.buildGeocoder()
		if err != nil {
			return nil, err
		}
	}
	resolver := geocode.NewResolver(geo, a.Zones, geocode.Config{Country: cfg.Geocode.Country, Timeout: cfg.Geocode.Timeout}, a.Logger.Named("geocode"))

	notifier := opts.Notifier
	if notifier == nil {
		notifier = alert.NoopNotifier{}
		if cfg.Alert.Enabled() {
			tg, err := telegram.New(telegram.Config{
				BotToken: cfg.Alert.BotToken,
				ChatID:   cfg.Alert.ChatID,
				BaseURL:  cfg.Alert.BaseURL,
				Timeout:  cfg.Alert.Timeout,
			})
			if err != nil {
				return nil, err
			}
			notifier = tg
		}
	}

	return sweep.New(a.Zones, content, extract, resolver, alert.NewDispatcher(notifier, a.Logger.Named("alert")), a.Hub, clock,
		sweep.Config{ZonePause: cfg.Sweep.ZonePause, MaxCharsPerSource: cfg.Fetcher.MaxCharsPerSource}, a.Logger.Named("sweep")), nil
}

// buildGeocoder returns nil for the "none" provider, which makes every
// lookup fall back to zone defaults.
func (a *App) buildGeocoder() (sentinel.Geocoder, error) {
	cfg := a.Config.Geocode
	var geo sentinel.Geocoder
	switch cfg.Provider {
	case "nominatim":
		limiter := ratelimit.New(ratelimit.Config{RPS: cfg.RequestsPerSecond, OnDelay: metrics.ObserveRateLimitDelay})
		geo = nominatim.New(nominatim.Config{
			BaseURL:     cfg.BaseURL,
			UserAgent:   cfg.UserAgent,
			CountryCode: cfg.CountryCode,
			Timeout:     cfg.Timeout,
		}, limiter)
	case "googlemaps":
		gm, err := googlemaps.New(cfg.APIKey, cfg.CountryCode)
		if err != nil {
			return nil, err
		}
		geo = gm
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown geocode provider: %s", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		cached, err := geocode.NewCachedGeocoder(geo, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return geo, nil
}

// Server builds the HTTP API over the app's services.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Runner, a.Reports, a.Status, a.Zones, api.Options{
		APIKey:         a.Config.API.Key,
		RequestTimeout: a.Config.API.RequestTimeout,
		CORSOrigins:    a.Config.API.CORSOrigins,
		Ready:          a.Ready,
	}, a.Logger.Named("api"))
}

// Scheduler builds the sweep scheduler. It returns nil when disabled.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	cfg := a.Config.Scheduler
	if !cfg.Enabled {
		return nil, nil
	}
	return scheduler.New(a.Runner, scheduler.Config{
		Mode:     cfg.Mode,
		Interval: cfg.Interval,
		DailyAt:  cfg.DailyAt,
		Timezone: cfg.Timezone,
	}, a.Logger.Named("scheduler"))
}

// Ready checks the report store when it supports pinging.
func (a *App) Ready(ctx context.Context) error {
	if a.pinger == nil {
		return nil
	}
	return a.pinger(ctx)
}

// Close shuts services down in reverse order of construction.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.Logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}
