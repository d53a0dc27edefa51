// Package googlemaps geocodes through the Google Maps Geocoding API.
package googlemaps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

type geocodeAPI interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// Client implements sentinel.Geocoder, restricting matches to one country.
type Client struct {
	api     geocodeAPI
	country string
}

// New builds a client for apiKey. country is an ISO 3166-1 alpha-2 code.
func New(apiKey, country string) (*Client, error) {
	mc, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return newWithAPI(mc, country), nil
}

func newWithAPI(api geocodeAPI, country string) *Client {
	return &Client{api: api, country: strings.ToUpper(country)}
}

// Geocode returns the first match for query.
func (c *Client) Geocode(ctx context.Context, query string) (sentinel.Coordinates, bool, error) {
	req := &maps.GeocodingRequest{Address: query}
	if c.country != "" {
		req.Components = map[maps.Component]string{maps.ComponentCountry: c.country}
		req.Region = strings.ToLower(c.country)
	}
	results, err := c.api.Geocode(ctx, req)
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return sentinel.Coordinates{}, false, nil
		}
		return sentinel.Coordinates{}, false, fmt.Errorf("maps geocode: %w", err)
	}
	if len(results) == 0 {
		return sentinel.Coordinates{}, false, nil
	}
	loc := results[0].Geometry.Location
	return sentinel.Coordinates{Lat: loc.Lat, Lon: loc.Lng}, true, nil
}
