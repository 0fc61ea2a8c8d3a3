// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoip

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	stdhttp "net/http"
	"sync/atomic"
	"testing"
	"testing/synctest"

	"github.com/wneessen/placesd/internal/geobus"
	"github.com/wneessen/placesd/internal/http"
	"github.com/wneessen/placesd/internal/logger"
	"github.com/wneessen/placesd/internal/testhelper"
)

const testResponse = "../../../../testdata/geoip.json"

func testProvider(t *testing.T, fn func(*stdhttp.Request) (*stdhttp.Response, error)) *GeolocationGeoIPProvider {
	t.Helper()
	log := logger.NewLogger(slog.LevelDebug, io.Discard)
	client := http.New(log)
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	return NewGeolocationGeoIPProvider(client, log)
}

func TestGeolocationGeoIPProvider_Name(t *testing.T) {
	provider := testProvider(t, nil)
	if provider.Name() != name {
		t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
	}
}

func TestGeolocationGeoIPProvider_locate(t *testing.T) {
	t.Run("lookup succeeds with zip code accuracy", func(t *testing.T) {
		provider := testProvider(t, func(req *stdhttp.Request) (*stdhttp.Response, error) {
			if req.URL.String() != APIEndpoint {
				t.Errorf("expected request to %s, got %s", APIEndpoint, req.URL)
			}
			return testhelper.FileResponse(t, testResponse), nil
		})
		coord, err := provider.locate(t.Context())
		if err != nil {
			t.Fatalf("failed to locate: %s", err)
		}
		if math.Abs(coord.Lat-39.9509) > 1e-5 || math.Abs(coord.Lon+75.1575) > 1e-5 {
			t.Errorf("unexpected coordinates: %f,%f", coord.Lat, coord.Lon)
		}
		if coord.Acc != geobus.AccuracyZip {
			t.Errorf("expected accuracy to be %d, got %f", geobus.AccuracyZip, coord.Acc)
		}
	})
	t.Run("failing API returns an error", func(t *testing.T) {
		provider := testProvider(t, func(*stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		})
		if _, err := provider.locate(t.Context()); err == nil {
			t.Error("expected lookup to fail")
		}
	})
}

func TestCoordinate(t *testing.T) {
	tests := []struct {
		name    string
		result  APIResult
		wantAcc float64
		wantErr bool
	}{
		{"country only", APIResult{CountryCode: "US", Latitude: 37.75, Longitude: -97.82}, geobus.AccuracyCountry, false},
		{"region", APIResult{CountryCode: "US", RegionCode: "PA", Latitude: 40.1, Longitude: -77.2}, geobus.AccuracyRegion, false},
		{"city", APIResult{CountryCode: "US", City: "Philadelphia", Latitude: 39.95, Longitude: -75.16}, geobus.AccuracyCity, false},
		{"nothing known", APIResult{Latitude: 39.95, Longitude: -75.16}, geobus.AccuracyUnknown, false},
		{"null island", APIResult{CountryCode: "US"}, 0, true},
		{"out of range", APIResult{Latitude: 123, Longitude: 10}, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			coord, err := coordinate(&tc.result)
			if tc.wantErr {
				if err == nil {
					t.Error("expected conversion to fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("failed to convert result: %s", err)
			}
			if coord.Acc != tc.wantAcc {
				t.Errorf("expected accuracy to be %f, got %f", tc.wantAcc, coord.Acc)
			}
		})
	}
}

func TestGeolocationGeoIPProvider_LookupStream(t *testing.T) {
	t.Run("unchanged position is emitted again each period", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider := testProvider(t, nil)
			var calls atomic.Int32
			provider.locateFn = func(context.Context) (geobus.Coordinate, error) {
				if calls.Add(1) == 2 {
					return geobus.Coordinate{}, errors.New("intentionally failing")
				}
				return geobus.Coordinate{Lat: 39.95, Lon: -75.16, Acc: geobus.AccuracyCity}, nil
			}

			out := provider.LookupStream(ctx, "laptop")
			first := <-out
			if first.Key != "laptop" || first.Source != name {
				t.Errorf("unexpected result: %+v", first)
			}
			if first.AccuracyMeters != geobus.AccuracyCity {
				t.Errorf("expected accuracy to be %d, got %f", geobus.AccuracyCity, first.AccuracyMeters)
			}

			second := <-out
			if second.Lat != first.Lat || second.Lon != first.Lon {
				t.Errorf("expected the same position, got %+v", second)
			}
			if got := second.At.Sub(first.At); got != provider.period*2 {
				t.Errorf("expected second result after two periods, got %s", got)
			}
			if calls.Load() != 3 {
				t.Errorf("expected 3 lookups, got %d", calls.Load())
			}
			cancel()
			synctest.Wait()
		})
	})
}
