// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoip provides a coarse tracker position derived from the public IP address.
package geoip

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/placesd/internal/geobus"
	"github.com/wneessen/placesd/internal/http"
	"github.com/wneessen/placesd/internal/logger"
)

const (
	name = "geoip"

	APIEndpoint   = "https://reallyfreegeoip.org/json/"
	LookupTimeout = time.Second * 5
)

type GeolocationGeoIPProvider struct {
	name     string
	endpoint string
	http     *http.Client
	logger   *logger.Logger
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (geobus.Coordinate, error)
}

type APIResult struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country_name"`
	RegionCode  string  `json:"region_code,omitempty"`
	Region      string  `json:"region_name,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	TimeZone    string  `json:"time_zone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

func NewGeolocationGeoIPProvider(http *http.Client, log *logger.Logger) *GeolocationGeoIPProvider {
	provider := &GeolocationGeoIPProvider{
		name:     name,
		endpoint: APIEndpoint,
		http:     http,
		logger:   log,
		period:   30 * time.Minute,
		ttl:      60 * time.Minute,
	}
	provider.locateFn = provider.locate
	return provider
}

func (p *GeolocationGeoIPProvider) Name() string {
	return p.name
}

// LookupStream periodically resolves the public IP address to a position. Every successful
// lookup is emitted, an unchanged position refreshes the TTL of the bus entry.
func (p *GeolocationGeoIPProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}

		for {
			coord, err := p.locateFn(ctx)
			switch {
			case err != nil:
				p.logger.Debug("geoip lookup failed", slog.String("key", key), logger.Err(err))
			case state.Due(coord, p.period):
				state.Update(coord)
				select {
				case <-ctx.Done():
					return
				case out <- p.createResult(key, coord):
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(p.period):
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGeoIPProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
	return geobus.Result{
		Key:            key,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		AccuracyMeters: coord.Acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

func (p *GeolocationGeoIPProvider) locate(ctx context.Context) (geobus.Coordinate, error) {
	result := new(APIResult)
	if _, err := p.http.GetWithTimeout(ctx, p.endpoint, result, nil, nil, LookupTimeout); err != nil {
		return geobus.Coordinate{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}
	return coordinate(result)
}

// coordinate converts an API result. The accuracy is estimated from the finest
// administrative level the result carries.
func coordinate(result *APIResult) (geobus.Coordinate, error) {
	acc := float64(geobus.AccuracyUnknown)
	switch {
	case result.ZipCode != "":
		acc = geobus.AccuracyZip
	case result.City != "":
		acc = geobus.AccuracyCity
	case result.RegionCode != "":
		acc = geobus.AccuracyRegion
	case result.CountryCode != "":
		acc = geobus.AccuracyCountry
	}

	coord := geobus.Coordinate{
		Lat: geobus.Truncate(result.Latitude, geobus.TruncPrecision),
		Lon: geobus.Truncate(result.Longitude, geobus.TruncPrecision),
		Acc: acc,
	}
	if !coord.Valid() || (coord.Lat == 0 && coord.Lon == 0) {
		return geobus.Coordinate{}, fmt.Errorf("invalid coordinates in geoip result for %q", result.IP)
	}
	return coord, nil
}
