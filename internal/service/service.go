// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package service wires location sources, zones, place sensors and the API into the placesd daemon.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/wneessen/placesd/internal/api"
	"github.com/wneessen/placesd/internal/config"
	"github.com/wneessen/placesd/internal/geobus"
	"github.com/wneessen/placesd/internal/geobus/provider/geoip"
	"github.com/wneessen/placesd/internal/geobus/provider/geolocation_file"
	"github.com/wneessen/placesd/internal/geobus/provider/gpsd"
	"github.com/wneessen/placesd/internal/http"
	"github.com/wneessen/placesd/internal/logger"
	"github.com/wneessen/placesd/internal/metrics"
	"github.com/wneessen/placesd/internal/nominatim"
	"github.com/wneessen/placesd/internal/place"
	"github.com/wneessen/placesd/internal/store"
	"github.com/wneessen/placesd/internal/zone"
)

const (
	SourcePush = "push"

	eventBufferSize        = 64
	subscriptionBufferSize = 8
)

type Service struct {
	config    *config.Config
	logger    *logger.Logger
	geobus    *geobus.GeoBus
	zones     *zone.Registry
	geocoder  *nominatim.Client
	store     store.Store
	metrics   *metrics.Metrics
	scheduler gocron.Scheduler
	events    chan place.Event
	eventLog  *api.EventLog
	api       *api.Server
	signals   signalSource

	trackers map[string]config.Tracker

	sensorLock sync.RWMutex
	sensors    map[string]*place.Sensor
	order      []string
}

// New builds the service from the configuration. Persisted snapshots are imported here.
func New(ctx context.Context, conf *config.Config, log *logger.Logger) (*Service, error) {
	zones := make([]zone.Zone, 0, len(conf.Zones))
	for _, z := range conf.Zones {
		zones = append(zones, zone.Zone{
			ID: z.ID, Name: z.Name, Latitude: z.Latitude, Longitude: z.Longitude, Radius: z.Radius,
		})
	}
	registry, err := zone.NewRegistry(zones)
	if err != nil {
		return nil, fmt.Errorf("failed to create zone registry: %w", err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	snapshots, err := store.New(ctx, store.Options{
		Backend:       conf.Storage.Backend,
		Path:          conf.Storage.Path,
		RedisAddr:     conf.Storage.RedisAddr,
		RedisPassword: conf.Storage.RedisPassword,
		RedisDB:       conf.Storage.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	m := metrics.New()
	service := &Service{
		config:    conf,
		logger:    log,
		geobus:    geobus.New(log),
		zones:     registry,
		store:     snapshots,
		metrics:   m,
		scheduler: scheduler,
		events:    make(chan place.Event, eventBufferSize),
		eventLog:  api.NewEventLog(conf.API.EventLogSize),
		signals:   stdLibSignalSource{},
		trackers:  make(map[string]config.Tracker, len(conf.Trackers)),
		sensors:   make(map[string]*place.Sensor, len(conf.Sensors)),
	}
	service.geocoder = nominatim.New(http.New(log), log, nominatim.Options{
		Endpoint:         conf.Nominatim.Endpoint,
		WikidataEndpoint: conf.Nominatim.WikidataEndpoint,
		Timeout:          conf.Nominatim.Timeout,
		CacheTTL:         conf.Nominatim.CacheTTL,
	}, m)

	for _, tracker := range conf.Trackers {
		service.trackers[tracker.ID] = tracker
	}
	for _, sc := range conf.Sensors {
		if err = service.addSensor(ctx, sc); err != nil {
			service.close()
			return nil, err
		}
	}
	if !conf.API.Disable {
		service.api = api.New(conf.API.Listen, service, service.eventLog, m.Handler(), log)
	}

	return service, nil
}

func (s *Service) addSensor(ctx context.Context, sc config.Sensor) error {
	home, err := s.zones.Get(sc.HomeZone)
	if err != nil {
		return fmt.Errorf("sensor %q: %w", sc.Name, err)
	}
	sensor, err := place.NewSensor(ctx, place.Config{
		Name:          sc.Name,
		UniqueID:      sc.UniqueID,
		TrackerID:     sc.Tracker,
		HomeZone:      home.ID,
		HomeLatitude:  home.Latitude,
		HomeLongitude: home.Longitude,
		Options:       sc.Options,
		MapProvider:   sc.MapProvider,
		MapZoom:       sc.MapZoom,
		Language:      sc.Language,
		APIKey:        sc.APIKey,
		ExtendedAttr:  sc.ExtendedAttr,
		ShowTime:      sc.ShowTime,
		Throttle:      s.config.Intervals.Throttle,
	}, place.Deps{
		Tracker:  &trackerView{bus: s.geobus, zones: s.zones},
		Geocoder: s.geocoder,
		Store:    s.store,
		Events:   s.events,
		Observer: s.metrics,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create sensor %q: %w", sc.Name, err)
	}

	s.sensorLock.Lock()
	defer s.sensorLock.Unlock()
	s.sensors[sensor.UniqueID()] = sensor
	s.order = append(s.order, sensor.UniqueID())
	return nil
}

// Run starts the location sources, the scan job, the event dispatcher and the API. It blocks until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.createScheduledJob(ctx, s.config.Intervals.Scan, s.scanSensors,
		"sensor_scan_job"); err != nil {
		return err
	}
	s.scheduler.Start()

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { s.dispatchEvents(ctx) })
	for id, tracker := range s.trackers {
		sub, unsub := s.geobus.Subscribe(id, subscriptionBufferSize)
		defer unsub()
		run(func() { s.processLocationUpdates(ctx, id, sub) })

		if providers := s.trackerProviders(tracker); len(providers) > 0 {
			orchestrator := s.geobus.NewOrchestrator(providers)
			run(func() { orchestrator.Track(ctx, id) })
		}
	}

	sigChan := make(chan os.Signal, 1)
	s.signals.Notify(sigChan, syscall.SIGHUP)
	defer s.signals.Stop(sigChan)
	run(func() { s.HandleRefreshSignal(ctx, sigChan) })

	apiErr := make(chan error, 1)
	if s.api != nil {
		run(func() { apiErr <- s.api.Run(ctx) })
	}

	s.logger.Info("service started", slog.Int("sensors", len(s.order)), slog.Int("trackers", len(s.trackers)),
		slog.Int("zones", len(s.zones.Zones())))
	var err error
	select {
	case <-ctx.Done():
	case err = <-apiErr:
		err = fmt.Errorf("API server failed: %w", err)
	}
	cancel()
	wg.Wait()

	if shutdownErr := s.scheduler.Shutdown(); shutdownErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to shut down scheduler: %w", shutdownErr))
	}
	return err
}

func (s *Service) close() {
	if err := s.geocoder.Close(); err != nil {
		s.logger.Warn("failed to close geocoder", logger.Err(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close snapshot store", logger.Err(err))
	}
}

func (s *Service) trackerProviders(tracker config.Tracker) []geobus.Provider {
	var providers []geobus.Provider
	if tracker.File != "" {
		providers = append(providers, geolocation_file.NewGeolocationFileProvider(tracker.File,
			tracker.FileInterval))
	}
	if tracker.GPSD != "" {
		providers = append(providers, gpsd.NewGeolocationGPSDProvider(tracker.GPSD, s.logger))
	}
	if tracker.GeoIP {
		providers = append(providers, geoip.NewGeolocationGeoIPProvider(http.New(s.logger), s.logger))
	}
	return providers
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// scanSensors runs the periodic, throttled update pass of every sensor.
func (s *Service) scanSensors(ctx context.Context) {
	for _, sensor := range s.Sensors() {
		if ctx.Err() != nil {
			return
		}
		sensor.ScanUpdate(ctx)
	}
}

// refreshSensors runs an unthrottled update pass of every sensor.
func (s *Service) refreshSensors(ctx context.Context, reason string) {
	for _, sensor := range s.Sensors() {
		if ctx.Err() != nil {
			return
		}
		sensor.Update(ctx, reason)
	}
}

// processLocationUpdates updates the sensors of a tracker whenever the tracker's position changes.
func (s *Service) processLocationUpdates(ctx context.Context, tracker string, sub <-chan geobus.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-sub:
			if !ok {
				return
			}
			s.metrics.ObserveLocation(tracker)
			s.logger.Debug("received location update", slog.String("tracker", tracker),
				slog.Float64("lat", r.Lat), slog.Float64("lon", r.Lon), slog.String("source", r.Source))
			for _, sensor := range s.Sensors() {
				if sensor.TrackerID() == tracker {
					sensor.Update(ctx, "tracker location changed")
				}
			}
		}
	}
}

// dispatchEvents records the change events fired by the sensors.
func (s *Service) dispatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.events:
			s.eventLog.Add(event)
			s.logger.Info("place changed", slog.String("sensor", event.Entity),
				slog.String("from", event.FromState), slog.String("to", event.ToState),
				slog.String("event_id", event.ID.String()))
		}
	}
}

// Sensors returns all sensors in configuration order.
func (s *Service) Sensors() []*place.Sensor {
	s.sensorLock.RLock()
	defer s.sensorLock.RUnlock()
	out := make([]*place.Sensor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sensors[id])
	}
	return out
}

// Sensor returns the sensor with the given unique id.
func (s *Service) Sensor(id string) (*place.Sensor, bool) {
	s.sensorLock.RLock()
	defer s.sensorLock.RUnlock()
	sensor, ok := s.sensors[id]
	return sensor, ok
}

// RemoveSensor deletes the snapshot of a sensor and stops updating it.
func (s *Service) RemoveSensor(ctx context.Context, id string) error {
	s.sensorLock.Lock()
	defer s.sensorLock.Unlock()
	sensor, ok := s.sensors[id]
	if !ok {
		return fmt.Errorf("%w: %s", api.ErrUnknownSensor, id)
	}
	if err := sensor.Remove(ctx); err != nil {
		return err
	}
	delete(s.sensors, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	s.logger.Info("sensor removed", slog.String("sensor", sensor.Name()))
	return nil
}

// Trackers returns the last known position of every tracker with a fresh location.
func (s *Service) Trackers() []api.Tracker {
	keys := s.geobus.Keys()
	out := make([]api.Tracker, 0, len(keys))
	for _, key := range keys {
		r, ok := s.geobus.Best(key)
		if !ok {
			continue
		}
		tracker := api.Tracker{
			ID:        key,
			Latitude:  r.Lat,
			Longitude: r.Lon,
			Source:    r.Source,
			UpdatedAt: r.At,
		}
		accuracy := 0.0
		if r.HasAccuracy() {
			accuracy = r.AccuracyMeters
			tracker.Accuracy = &accuracy
		}
		tracker.Zone = s.zones.Locate(r.Lat, r.Lon, accuracy).State
		out = append(out, tracker)
	}
	return out
}

// PushLocation publishes a location reported through the API for a configured tracker.
func (s *Service) PushLocation(tracker string, coord geobus.Coordinate) error {
	if _, ok := s.trackers[tracker]; !ok {
		return fmt.Errorf("%w: %s", api.ErrUnknownTracker, tracker)
	}
	s.geobus.Publish(geobus.Result{
		Key:            tracker,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		AccuracyMeters: coord.Acc,
		Source:         SourcePush,
		At:             time.Now(),
		TTL:            s.config.Intervals.LocationTTL,
	})
	return nil
}
