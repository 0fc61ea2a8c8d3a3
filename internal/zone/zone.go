// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package zone resolves coordinates to configured circular zones.
package zone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/placesd/internal/geobus"
)

const (
	// HomeID is the id of the home zone. A tracker inside it reports the state StateHome.
	HomeID = "home"
	// StateHome is the tracker state inside the home zone.
	StateHome = "home"
	// StateNotHome is the tracker state outside all zones.
	StateNotHome = "not_home"

	// DefaultRadius is used for zones that are configured without radius.
	DefaultRadius = 100.0
)

var (
	ErrUnknownZone  = errors.New("unknown zone")
	ErrDuplicateID  = errors.New("duplicate zone id")
	ErrInvalidCoord = errors.New("invalid zone coordinates")
)

// Zone is a named circle on the map.
type Zone struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Radius    float64
}

// Match is the result of a zone lookup.
type Match struct {
	// State is the tracker state: StateHome, the zone's name or StateNotHome.
	State string
	// Name is the zone's display name. Outside all zones it equals State.
	Name string
	// Zone is the matched zone, nil outside all zones.
	Zone *Zone
}

// Registry holds the configured zones.
type Registry struct {
	zones []Zone
	byID  map[string]int
}

// NewRegistry validates the zones and returns a Registry.
func NewRegistry(zones []Zone) (*Registry, error) {
	r := &Registry{
		zones: make([]Zone, 0, len(zones)),
		byID:  make(map[string]int, len(zones)),
	}
	for _, z := range zones {
		z.ID = NormalizeID(z.ID)
		if _, ok := r.byID[z.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, z.ID)
		}
		if !(geobus.Coordinate{Lat: z.Latitude, Lon: z.Longitude}).Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCoord, z.ID)
		}
		if z.Radius <= 0 {
			z.Radius = DefaultRadius
		}
		if z.Name == "" {
			z.Name = z.ID
		}
		r.byID[z.ID] = len(r.zones)
		r.zones = append(r.zones, z)
	}
	return r, nil
}

// NormalizeID strips an optional "zone." prefix and lower-cases the id.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "zone."))
}

// Get returns the zone with the given id. The id may carry a "zone." prefix.
func (r *Registry) Get(id string) (Zone, error) {
	idx, ok := r.byID[NormalizeID(id)]
	if !ok {
		return Zone{}, fmt.Errorf("%w: %s", ErrUnknownZone, id)
	}
	return r.zones[idx], nil
}

// Zones returns a copy of all zones.
func (r *Registry) Zones() []Zone {
	out := make([]Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

// Locate returns the zone containing the position. A position is inside a zone when its
// distance minus the accuracy is below the zone radius. With several candidates the smallest
// zone wins and ties are broken by distance.
func (r *Registry) Locate(lat, lon, accuracy float64) Match {
	var best *Zone
	var bestDist float64
	pos := geobus.Coordinate{Lat: lat, Lon: lon}
	for i := range r.zones {
		z := &r.zones[i]
		dist := pos.DistanceTo(geobus.Coordinate{Lat: z.Latitude, Lon: z.Longitude})
		if dist-accuracy >= z.Radius {
			continue
		}
		if best == nil || z.Radius < best.Radius || (z.Radius == best.Radius && dist < bestDist) {
			best, bestDist = z, dist
		}
	}

	if best == nil {
		return Match{State: StateNotHome, Name: StateNotHome}
	}
	zone := *best
	if zone.ID == HomeID {
		return Match{State: StateHome, Name: zone.Name, Zone: &zone}
	}
	return Match{State: zone.Name, Name: zone.Name, Zone: &zone}
}
