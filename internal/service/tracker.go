// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"

	"github.com/wneessen/placesd/internal/geobus"
	"github.com/wneessen/placesd/internal/place"
	"github.com/wneessen/placesd/internal/zone"
)

// trackerView resolves a tracker's current position from the bus and its zone from the registry.
type trackerView struct {
	bus   *geobus.GeoBus
	zones *zone.Registry
}

func (t *trackerView) Location(_ context.Context, id string) (place.Location, bool) {
	r, ok := t.bus.Best(id)
	if !ok {
		return place.Location{}, false
	}

	accuracy := 0.0
	if r.HasAccuracy() {
		accuracy = r.AccuracyMeters
	}
	match := t.zones.Locate(r.Lat, r.Lon, accuracy)
	loc := place.Location{
		Lat:      r.Lat,
		Lon:      r.Lon,
		Zone:     match.State,
		ZoneName: match.Name,
	}
	if r.HasAccuracy() {
		loc.Accuracy.Set(r.AccuracyMeters)
	}
	return loc, true
}
