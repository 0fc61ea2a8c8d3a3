// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/wneessen/placesd/internal/logger"
)

const (
	accuracyEpsilon = 1e-6
	initialBackoff  = time.Second
	maxBackoff      = 30 * time.Second
)

const (
	AccuracyCountry = 300000
	AccuracyRegion  = 100000
	AccuracyCity    = 15000
	AccuracyZip     = 3000
	AccuracyUnknown = 1000000
	TruncPrecision  = 6
)

// Provider defines an interface for geolocation service providers.
// It supports retrieving streamed results for a given key.
type Provider interface {
	Name() string
	LookupStream(ctx context.Context, key string) <-chan Result
}

// GeoBus coordinates the publishing and subscribing of geolocation results between providers and consumers.
type GeoBus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	best        map[string]Result
	subscribers map[string]map[chan Result]struct{}
}

// Result represents a geolocation result with associated metadata.
type Result struct {
	Key            string
	Lat, Lon       float64
	Alt            float64
	AccuracyMeters float64
	Source         string
	At             time.Time
	TTL            time.Duration
}

// BetterThan reports whether r is more accurate than other, with a small tolerance for precision.
func (r Result) BetterThan(other Result) bool {
	if other.Key == "" {
		return true
	}
	return r.AccuracyMeters < other.AccuracyMeters-accuracyEpsilon
}

// HasAccuracy reports whether the source provided an accuracy for the result.
func (r Result) HasAccuracy() bool {
	return r.AccuracyMeters >= 0 && r.AccuracyMeters < AccuracyUnknown
}

// Coordinate returns the position of the result.
func (r Result) Coordinate() Coordinate {
	return Coordinate{Lat: r.Lat, Lon: r.Lon, Acc: r.AccuracyMeters}
}

// IsExpired checks if the Result has exceeded its time-to-live (TTL) based on the current time and the timestamp.
func (r Result) IsExpired() bool {
	return r.TTL > 0 && time.Since(r.At) > r.TTL
}

// New initializes and returns a new instance of GeoBus to handle geolocation result coordination.
func New(logger *logger.Logger) *GeoBus {
	return &GeoBus{
		logger:      logger,
		best:        make(map[string]Result),
		subscribers: make(map[string]map[chan Result]struct{}),
	}
}

// NewOrchestrator returns an Orchestrator that publishes the results of the given providers on the bus.
func (b *GeoBus) NewOrchestrator(provider []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: provider,
	}
}

// Subscribe adds a subscriber for updates associated with the given key and buffer size, returning a result
// channel and an unsubscribe function.
func (b *GeoBus) Subscribe(key string, size int) (<-chan Result, func()) {
	resultChan := make(chan Result, size)
	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[chan Result]struct{})
	}

	b.subscribers[key][resultChan] = struct{}{}
	if best, ok := b.best[key]; ok && !best.IsExpired() {
		select {
		case resultChan <- best:
		default:
		}
	}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[key]; ok {
			delete(subs, resultChan)
			if len(subs) == 0 {
				delete(b.subscribers, key)
			}
		}
		b.mu.Unlock()
		close(resultChan)
	}

	return resultChan, unsub
}

// Publish stores the result as the current position of its key and delivers it to the key's
// subscribers whenever the position moved or the previous result expired. A result of a
// different source is ignored while a more accurate one is still fresh.
func (b *GeoBus) Publish(r Result) {
	if r.Key == "" || !r.Coordinate().Valid() {
		return
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev, have := b.best[r.Key]
	fresh := have && !prev.IsExpired()
	if fresh && prev.Source != r.Source && prev.BetterThan(r) {
		return
	}

	b.best[r.Key] = r
	if !fresh || !prev.Coordinate().SamePosition(r.Coordinate()) {
		b.broadcastResult(r)
		return
	}
	b.logger.Debug("position unchanged, refreshed TTL", slog.String("key", r.Key),
		slog.String("source", r.Source))
}

func (b *GeoBus) broadcastResult(r Result) {
	for ch := range b.subscribers[r.Key] {
		select {
		case ch <- r:
		default:
			b.logger.Warn("subscriber channel full, dropping location update", slog.String("key", r.Key))
		}
	}
}

// Best returns the current non-expired result for the given key.
func (b *GeoBus) Best(key string) (Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.best[key]
	return r, ok && !r.IsExpired()
}

// Keys returns the keys of all non-expired results, sorted.
func (b *GeoBus) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.best))
	for k, r := range b.best {
		if !r.IsExpired() {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Truncate cuts x down to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
