// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/placesd/internal/geobus"
	"github.com/wneessen/placesd/internal/logger"
)

const (
	testLat = 40.7185
	testLon = -74.0025
)

func testLogger() *logger.Logger {
	return logger.NewLogger(slog.LevelDebug, io.Discard)
}

func TestNewGeolocationGPSDProvider(t *testing.T) {
	t.Run("new GPSd provider succeeds", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider("localhost:2947", testLogger())
		if provider == nil {
			t.Fatal("expected provider to be non-nil")
		}
		if provider.addr != "localhost:2947" {
			t.Errorf("expected address to be localhost:2947, got %s", provider.addr)
		}
	})
}

func TestGeolocationGPSDProvider_Name(t *testing.T) {
	provider := NewGeolocationGPSDProvider("localhost:2947", testLogger())
	if !strings.EqualFold(provider.Name(), name) {
		t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
	}
}

func TestGeolocationGPSDProvider_createResult(t *testing.T) {
	provider := NewGeolocationGPSDProvider("localhost:2947", testLogger())
	result := provider.createResult("test", geobus.Coordinate{Lat: testLat, Lon: testLon, Acc: 8})
	if result.Lat != testLat {
		t.Errorf("expected latitude to be %f, got %f", testLat, result.Lat)
	}
	if result.Lon != testLon {
		t.Errorf("expected longitude to be %f, got %f", testLon, result.Lon)
	}
	if result.Key != "test" {
		t.Errorf("expected key to be %s, got %s", "test", result.Key)
	}
	if result.AccuracyMeters != 8 {
		t.Errorf("expected accuracy to be 8, got %f", result.AccuracyMeters)
	}
	if result.Source != provider.Name() {
		t.Errorf("expected source to be %s, got %s", provider.Name(), result.Source)
	}
	if result.TTL != provider.ttl {
		t.Errorf("expected TTL to be %d, got %d", provider.ttl, result.TTL)
	}
}

func TestHorizontalAccuracyMeters(t *testing.T) {
	tests := []struct {
		name string
		mode gpsd.Mode
		epx  float64
		epy  float64
		want float64
	}{
		{"epx and epy are combined", gpsd.Mode3D, 8.1, 11.4, math.Hypot(8.1, 11.4)},
		{"fallback to 3d fix accuracy", gpsd.Mode3D, 0, 0, fallbackAccuracy3DFix},
		{"fallback to 2d fix accuracy", gpsd.Mode2D, 0, 0, fallbackAccuracy2DFix},
		{"no fix", gpsd.NoFix, 0, 0, fallbackAccuracyNoFix},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := horizontalAccuracyMeters(tc.mode, tc.epx, tc.epy); got != tc.want {
				t.Errorf("expected accuracy %f, got %f", tc.want, got)
			}
		})
	}
}

func TestGeolocationGPSDProvider_LookupStream(t *testing.T) {
	t.Run("watch fails on first run, fixes without 2D are skipped", func(t *testing.T) {
		runCount := 0
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider := NewGeolocationGPSDProvider("localhost:2947", testLogger())
			provider.period = time.Millisecond * 10
			provider.watchFn = func(ctx context.Context, fixes chan<- Fix) error {
				if runCount == 0 {
					runCount++
					return errors.New("intentionally failing")
				}
				for _, fix := range []Fix{
					{Lat: 1, Lon: 2, Acc: 3, Mode: gpsd.NoFix},
					{Lat: 1.0, Lon: 2.0, Acc: 3.0, Mode: gpsd.Mode2D},
				} {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case fixes <- fix:
					}
				}
				<-ctx.Done()
				return ctx.Err()
			}

			out := provider.LookupStream(ctx, "test")
			if out == nil {
				t.Fatal("expected stream to be non-nil")
			}

			var result geobus.Result
			select {
			case r := <-out:
				result = r
				cancel()
			case <-ctx.Done():
				t.Fatalf("context done before result: %v", ctx.Err())
			}
			synctest.Wait()

			if result.Lat != 1.0 {
				t.Errorf("expected latitude to be %f, got %f", 1.0, result.Lat)
			}
			if result.Lon != 2.0 {
				t.Errorf("expected longitude to be %f, got %f", 2.0, result.Lon)
			}
			if result.AccuracyMeters != 3.0 {
				t.Errorf("expected accuracy to be %f, got %f", 3.0, result.AccuracyMeters)
			}
		})
	})
	t.Run("stationary fix is emitted again once per period", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			provider := NewGeolocationGPSDProvider("localhost:2947", testLogger())
			provider.watchFn = func(ctx context.Context, fixes chan<- Fix) error {
				for {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case fixes <- Fix{Lat: testLat, Lon: testLon, Acc: 5, Mode: gpsd.Mode3D}:
					}
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Second):
					}
				}
			}

			out := provider.LookupStream(ctx, "test")
			first := <-out
			second := <-out
			cancel()
			synctest.Wait()

			if second.Lat != first.Lat || second.Lon != first.Lon {
				t.Errorf("expected the same position, got %+v", second)
			}
			if got := second.At.Sub(first.At); got != provider.period {
				t.Errorf("expected one period between results, got %s", got)
			}
			if second.TTL <= provider.period {
				t.Errorf("expected TTL %s to outlast the period %s", second.TTL, provider.period)
			}
		})
	})
}
