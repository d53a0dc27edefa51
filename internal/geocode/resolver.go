// Package geocode resolves free-text place names to coordinates. Resolution is
// best-effort: every call yields coordinates, falling back to the zone's
// default and then to the national centre.
package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/metrics"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

const defaultTimeout = 5 * time.Second

// ZoneLookup finds catalogue zones by name.
type ZoneLookup interface {
	Lookup(name string) (sentinel.Zone, bool)
}

// Config tunes the Resolver.
type Config struct {
	// Country is appended to every query, e.g. "Nigeria".
	Country string
	Timeout time.Duration
}

// Resolver implements sentinel.CoordinateResolver.
type Resolver struct {
	geocoder sentinel.Geocoder
	zones    ZoneLookup
	country  string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewResolver wires a provider. geocoder and zones may be nil; a nil geocoder
// always falls back.
func NewResolver(geocoder sentinel.Geocoder, zones ZoneLookup, cfg Config, logger *zap.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		geocoder: geocoder,
		zones:    zones,
		country:  cfg.Country,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Query renders the provider query for a location.
func (r *Resolver) Query(location string) string {
	location = strings.TrimSpace(location)
	if r.country == "" {
		return location
	}
	return location + ", " + r.country
}

// Resolve returns the first provider match for location, or the fallback for
// zone when the lookup fails for any reason.
func (r *Resolver) Resolve(ctx context.Context, location string, zone sentinel.Zone) sentinel.Coordinates {
	if strings.TrimSpace(location) != "" && r.geocoder != nil {
		coords, ok, err := r.lookup(ctx, r.Query(location))
		switch {
		case err != nil:
			metrics.ObserveGeocode("error")
			r.logger.Warn("geocode failed",
				zap.String("location", location),
				zap.String("zone", zone.Name),
				zap.Error(err),
			)
		case ok:
			metrics.ObserveGeocode("hit")
			return coords
		default:
			metrics.ObserveGeocode("miss")
		}
	}
	coords, source := r.fallback(zone)
	metrics.ObserveGeocode(source)
	r.logger.Debug("using fallback coordinates",
		zap.String("location", location),
		zap.String("zone", zone.Name),
		zap.String("source", source),
	)
	return coords
}

// Fallback returns the coordinates used when a lookup fails.
func (r *Resolver) Fallback(zone sentinel.Zone) sentinel.Coordinates {
	coords, _ := r.fallback(zone)
	return coords
}

func (r *Resolver) fallback(zone sentinel.Zone) (sentinel.Coordinates, string) {
	if !zone.Default.IsZero() {
		return zone.Default, "fallback_zone"
	}
	if r.zones != nil {
		if known, ok := r.zones.Lookup(zone.Name); ok && !known.Default.IsZero() {
			return known.Default, "fallback_zone"
		}
	}
	return sentinel.NationalCenter, "fallback_national"
}

func (r *Resolver) lookup(ctx context.Context, query string) (coords sentinel.Coordinates, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			coords, ok, err = sentinel.Coordinates{}, false, fmt.Errorf("geocoder panic: %v", rec)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.geocoder.Geocode(ctx, query)
}
