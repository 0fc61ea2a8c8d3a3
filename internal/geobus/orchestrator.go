// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/placesd/internal/logger"
)

// Orchestrator runs the location providers of a tracker and publishes their results on a GeoBus.
type Orchestrator struct {
	Bus       *GeoBus
	Providers []Provider
}

// Track runs all providers for the tracker key until ctx is cancelled. A provider whose stream
// ends or fails to start is restarted with exponential backoff.
func (o *Orchestrator) Track(ctx context.Context, key string) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			o.trackProvider(ctx, p, key)
		}(p)
	}
	wg.Wait()
}

func (o *Orchestrator) trackProvider(ctx context.Context, p Provider, key string) {
	log := o.Bus.logger.With(slog.String("tracker", key), slog.String("provider", p.Name()))
	backoff := initialBackoff
	for ctx.Err() == nil {
		stream, err := o.safeLookup(ctx, p, key)
		if err != nil {
			log.Warn("location provider failed to start", logger.Err(err))
		}
		if stream != nil {
			backoff = o.drain(ctx, stream, backoff)
		}
		if ctx.Err() != nil {
			return
		}
		log.Debug("location provider stream ended, restarting", slog.Duration("backoff", backoff))
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// drain publishes results of stream until it is closed or ctx is cancelled. The backoff is reset
// once the provider delivered a result.
func (o *Orchestrator) drain(ctx context.Context, stream <-chan Result, backoff time.Duration) time.Duration {
	for {
		select {
		case <-ctx.Done():
			return backoff
		case r, ok := <-stream:
			if !ok {
				return backoff
			}
			o.Bus.Publish(r)
			backoff = initialBackoff
		}
	}
}

// safeLookup starts the stream of a provider and converts a panic into an error.
func (o *Orchestrator) safeLookup(ctx context.Context, p Provider, key string) (ch <-chan Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			ch, err = nil, fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return p.LookupStream(ctx, key), nil
}
