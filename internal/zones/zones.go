// Package zones holds the catalogue of monitored corridors and builds the
// target list for a sweep.
package zones

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

// NoExtraZone is the placeholder value clients send when they have no extra
// zone to add. It is compared case-insensitively.
const NoExtraZone = "string"

// Defaults returns the built-in critical zones in sweep order.
func Defaults() []sentinel.Zone {
	return []sentinel.Zone{
		{Name: "Lagos-Ibadan Expressway", Default: sentinel.Coordinates{Lat: 6.9530, Lon: 3.6157}},
		{Name: "Lagos-Abeokuta Expressway", Default: sentinel.Coordinates{Lat: 6.7020, Lon: 3.2570}},
		{Name: "Lekki-Epe Expressway", Default: sentinel.Coordinates{Lat: 6.4716, Lon: 3.7297}},
		{Name: "Akwa Ibom Kwa Ibo fiber route", Default: sentinel.Coordinates{Lat: 4.6544, Lon: 7.9254}},
		{Name: "Abuja-Kaduna Expressway", Default: sentinel.Coordinates{Lat: 9.6844, Lon: 7.8288}},
		{Name: "Benin-Ore Road", Default: sentinel.Coordinates{Lat: 6.5980, Lon: 5.2373}},
		{Name: "Port Harcourt-Enugu Expressway", Default: sentinel.Coordinates{Lat: 5.5074, Lon: 7.2343}},
		{Name: "Kano-Zaria Road", Default: sentinel.Coordinates{Lat: 11.5363, Lon: 8.0827}},
	}
}

// Catalogue is an immutable, ordered set of zones.
type Catalogue struct {
	zones  []sentinel.Zone
	byName map[string]sentinel.Zone
}

// New builds a catalogue. Names must be non-empty and unique.
func New(list []sentinel.Zone) (*Catalogue, error) {
	if len(list) == 0 {
		return nil, errors.New("zone catalogue is empty")
	}
	c := &Catalogue{
		zones:  make([]sentinel.Zone, 0, len(list)),
		byName: make(map[string]sentinel.Zone, len(list)),
	}
	for i, z := range list {
		z.Name = strings.TrimSpace(z.Name)
		if z.Name == "" {
			return nil, fmt.Errorf("zone %d: name is required", i)
		}
		key := strings.ToLower(z.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("zone %q: duplicate name", z.Name)
		}
		c.byName[key] = z
		c.zones = append(c.zones, z)
	}
	return c, nil
}

// MustDefault returns the built-in catalogue.
func MustDefault() *Catalogue {
	c, err := New(Defaults())
	if err != nil {
		panic(err)
	}
	return c
}

type fileFormat struct {
	Zones []sentinel.Zone `yaml:"zones"`
}

// LoadFile reads a YAML catalogue of the form:
//
//	zones:
//	  - name: Lagos-Ibadan Expressway
//	    default: {lat: 6.9530, lon: 3.6157}
func LoadFile(path string) (*Catalogue, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("read zone file: %w", err)
	}
	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse zone file: %w", err)
	}
	return New(doc.Zones)
}

// All returns a copy of the zones in order.
func (c *Catalogue) All() []sentinel.Zone {
	out := make([]sentinel.Zone, len(c.zones))
	copy(out, c.zones)
	return out
}

// Lookup finds a zone by case-insensitive name.
func (c *Catalogue) Lookup(name string) (sentinel.Zone, bool) {
	z, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return z, ok
}

// Targets returns the catalogue followed by extra, unless extra is blank or
// the NoExtraZone placeholder. An extra zone that names a catalogue entry
// still appends exactly one target, carrying that entry's default.
func (c *Catalogue) Targets(extra string) []sentinel.Zone {
	targets := c.All()
	name := strings.TrimSpace(extra)
	if name == "" || strings.EqualFold(name, NoExtraZone) {
		return targets
	}
	if z, ok := c.Lookup(name); ok {
		return append(targets, sentinel.Zone{Name: name, Default: z.Default})
	}
	return append(targets, sentinel.Zone{Name: name})
}
