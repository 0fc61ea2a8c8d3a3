// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/placesd/internal/geobus"
	"github.com/wneessen/placesd/internal/logger"
)

const (
	name = "gpsd"

	fallbackAccuracy3DFix = 10  // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25  // worse than 3D, but still accurate enough
	fallbackAccuracyNoFix = 1e6 // effectively unusable
)

// ErrWatchEnded is returned when gpsd closes the watch stream.
var ErrWatchEnded = errors.New("gpsd watch stream ended")

// Fix represents a single GPS fix reported by gpsd.
type Fix struct {
	Lat  float64
	Lon  float64
	Alt  float64
	Acc  float64
	Mode gpsd.Mode
}

// Has2DFix reports whether the fix has at least a 2D fix.
func (f Fix) Has2DFix() bool {
	return f.Mode >= gpsd.Mode2D
}

// GeolocationGPSDProvider streams TPV reports of a gpsd daemon as geolocation results.
type GeolocationGPSDProvider struct {
	name    string
	addr    string
	period  time.Duration
	ttl     time.Duration
	logger  *logger.Logger
	watchFn func(ctx context.Context, fixes chan<- Fix) error
}

// NewGeolocationGPSDProvider returns a provider for the gpsd daemon listening on addr.
func NewGeolocationGPSDProvider(addr string, log *logger.Logger) *GeolocationGPSDProvider {
	provider := &GeolocationGPSDProvider{
		name:   name,
		addr:   addr,
		period: time.Second * 30,
		ttl:    time.Minute * 2,
		logger: log,
	}
	provider.watchFn = provider.watch
	return provider
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// LookupStream emits a result for every 2D or better fix that moved the position. A stationary
// fix is emitted again once per provider period. Lost connections to gpsd are re-established
// after the provider period.
func (p *GeolocationGPSDProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	fixes := make(chan Fix)

	go func() {
		for {
			err := p.watchFn(ctx, fixes)
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("gpsd watch failed, reconnecting", slog.String("addr", p.addr),
				slog.Duration("retry_in", p.period), logger.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.period):
			}
		}
	}()

	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		for {
			var fix Fix
			select {
			case <-ctx.Done():
				return
			case fix = <-fixes:
			}
			if !fix.Has2DFix() {
				continue
			}

			coord := geobus.Coordinate{
				Lat: geobus.Truncate(fix.Lat, geobus.TruncPrecision),
				Lon: geobus.Truncate(fix.Lon, geobus.TruncPrecision),
				Acc: fix.Acc,
			}
			if !state.Due(coord, p.period) {
				continue
			}
			state.Update(coord)

			select {
			case <-ctx.Done():
				return
			case out <- p.createResult(key, coord):
			}
		}
	}()

	return out
}

// watch connects to gpsd and forwards TPV reports until the stream ends or ctx is done.
func (p *GeolocationGPSDProvider) watch(ctx context.Context, fixes chan<- Fix) error {
	session, err := gpsd.Dial(p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to gpsd at %q: %w", p.addr, err)
	}

	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		fix := Fix{
			Lat:  tpv.Lat,
			Lon:  tpv.Lon,
			Alt:  tpv.Alt,
			Acc:  horizontalAccuracyMeters(tpv.Mode, tpv.Epx, tpv.Epy),
			Mode: tpv.Mode,
		}
		select {
		case <-ctx.Done():
		case fixes <- fix:
		}
	})

	// go-gpsd has no Close(); the connection is torn down with the process.
	done := session.Watch()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrWatchEnded
	}
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGPSDProvider) createResult(key string, coord geobus.Coordinate) geobus.Result {
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

func horizontalAccuracyMeters(mode gpsd.Mode, epx, epy float64) float64 {
	if epx > 0 && epy > 0 {
		return math.Hypot(epx, epy)
	}
	switch mode {
	case gpsd.Mode3D:
		return fallbackAccuracy3DFix
	case gpsd.Mode2D:
		return fallbackAccuracy2DFix
	default:
		return fallbackAccuracyNoFix
	}
}
