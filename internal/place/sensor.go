// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/placesd/internal/attrs"
	"github.com/wneessen/placesd/internal/logger"
	"github.com/wneessen/placesd/internal/nominatim"
	"github.com/wneessen/placesd/internal/vartype"
)

const (
	// MaxStateLength is the maximum length of the native value in characters.
	MaxStateLength = 255
	// DefaultThrottle is the minimum time between two periodic update passes.
	DefaultThrottle = time.Minute * 10
	// DefaultMapZoom is the zoom level of map links.
	DefaultMapZoom = 18

	sinceFormat = " (since %s)"
	// sinceLength is the length of the time suffix.
	sinceLength = len(" (since 15:04)")
)

// sinceSuffix matches the time suffix that is appended when show_time is enabled.
var sinceSuffix = regexp.MustCompile(` \(since \d{2}:\d{2}\)$`)

var (
	ErrMissingName     = errors.New("sensor name must not be empty")
	ErrMissingUniqueID = errors.New("sensor unique id must not be empty")
	ErrMissingTracker  = errors.New("sensor tracker must not be empty")
)

// Outcome is the result of an update pass.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeReverted  Outcome = "reverted"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeAborted   Outcome = "aborted"
	OutcomeThrottled Outcome = "throttled"
)

// Location is the current position of a tracker.
type Location struct {
	Lat      float64
	Lon      float64
	Accuracy vartype.VarFloat64
	Zone     string
	ZoneName string
}

// Tracker looks up the current location of a tracked device.
type Tracker interface {
	Location(ctx context.Context, id string) (Location, bool)
}

// Geocoder resolves coordinates to places and fetches extended place documents.
type Geocoder interface {
	Reverse(ctx context.Context, q nominatim.ReverseQuery) (*nominatim.Place, error)
	Details(ctx context.Context, q nominatim.DetailsQuery) (*nominatim.Details, error)
	Wikidata(ctx context.Context, id string) (map[string]any, error)
}

// Store persists attribute snapshots per sensor unique id.
type Store interface {
	Load(ctx context.Context, id string) (attrs.Store, error)
	Save(ctx context.Context, id string, data attrs.Store) error
	Delete(ctx context.Context, id string) error
}

// Observer is notified about update outcomes and fired events.
type Observer interface {
	ObserveUpdate(sensor string, outcome Outcome)
	ObserveEvent(sensor string)
}

// Config is the static configuration of a sensor.
type Config struct {
	Name          string
	UniqueID      string
	TrackerID     string
	HomeZone      string
	HomeLatitude  float64
	HomeLongitude float64
	Options       string
	MapProvider   string
	MapZoom       int
	Language      string
	APIKey        string
	ExtendedAttr  bool
	ShowTime      bool
	Throttle      time.Duration
}

func (c Config) attributes() attrs.Store {
	return attrs.Store{
		AttrName:         c.Name,
		AttrUniqueID:     c.UniqueID,
		AttrTrackerID:    c.TrackerID,
		AttrHomeZone:     c.HomeZone,
		AttrOptions:      c.Options,
		AttrMapProvider:  c.MapProvider,
		AttrMapZoom:      c.MapZoom,
		AttrLanguage:     c.Language,
		AttrAPIKey:       c.APIKey,
		AttrExtendedAttr: c.ExtendedAttr,
		AttrShowTime:     c.ShowTime,
	}
}

// Deps are the collaborators of a sensor. Store, Events and Observer may be nil.
type Deps struct {
	Tracker  Tracker
	Geocoder Geocoder
	Store    Store
	Events   chan<- Event
	Observer Observer
	Logger   *logger.Logger
}

// Sensor resolves the location of a tracker to a place. All update passes of a sensor are
// serialized.
type Sensor struct {
	mu       sync.Mutex
	conf     Config
	state    State
	lastScan time.Time
	removed  bool

	tracker  Tracker
	geocoder Geocoder
	store    Store
	events   chan<- Event
	observer Observer
	logger   *logger.Logger
	now      func() time.Time
}

// NewSensor returns a sensor for the given configuration. A previously persisted snapshot is
// imported; configuration values are never taken from the snapshot.
func NewSensor(ctx context.Context, conf Config, deps Deps) (*Sensor, error) {
	switch {
	case conf.Name == "":
		return nil, ErrMissingName
	case conf.UniqueID == "":
		return nil, ErrMissingUniqueID
	case conf.TrackerID == "":
		return nil, ErrMissingTracker
	}
	if conf.Options == "" {
		conf.Options = DefaultOptions
	}
	if conf.MapProvider == "" {
		conf.MapProvider = MapProviderApple
	}
	if conf.MapZoom <= 0 {
		conf.MapZoom = DefaultMapZoom
	}
	if conf.Throttle <= 0 {
		conf.Throttle = DefaultThrottle
	}

	log := deps.Logger
	if log == nil {
		log = logger.New(slog.LevelInfo)
	}
	sensor := &Sensor{
		conf:     conf,
		state:    State{InitialUpdate: true},
		tracker:  deps.Tracker,
		geocoder: deps.Geocoder,
		store:    deps.Store,
		events:   deps.Events,
		observer: deps.Observer,
		logger:   log.With(slog.String("sensor", conf.Name)),
		now:      time.Now,
	}

	if sensor.store != nil {
		data, err := sensor.store.Load(ctx, conf.UniqueID)
		switch {
		case err != nil:
			sensor.logger.Debug("no snapshot imported", logger.Err(err))
		case len(data) > 0:
			sensor.state = StateFromAttributes(data)
			sensor.logger.Debug("snapshot imported", slog.Int("attributes", len(data)))
		}
	}
	sensor.state.HomeLatitude = formatCoordinate(conf.HomeLatitude)
	sensor.state.HomeLongitude = formatCoordinate(conf.HomeLongitude)
	return sensor, nil
}

// Name returns the display name of the sensor.
func (s *Sensor) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conf.Name
}

// SetName changes the display name. It is picked up by the next update pass.
func (s *Sensor) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" && name != s.conf.Name {
		s.logger.Info("sensor renamed", slog.String("new_name", name))
		s.conf.Name = name
		s.logger = s.logger.With(slog.String("sensor", name))
	}
}

// UniqueID returns the unique id of the sensor.
func (s *Sensor) UniqueID() string {
	return s.conf.UniqueID
}

// TrackerID returns the id of the tracked device.
func (s *Sensor) TrackerID() string {
	return s.conf.TrackerID
}

// NativeValue returns the current state of the sensor.
func (s *Sensor) NativeValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.NativeValue
}

// State returns a copy of the committed state.
func (s *Sensor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Attributes returns the reported attributes of the sensor.
func (s *Sensor) Attributes() attrs.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	full := s.fullAttributes()
	keys := ExtraAttributeKeys
	if s.conf.ExtendedAttr {
		keys = append(keys[:len(keys):len(keys)], ExtendedAttributeKeys...)
	}
	return full.Select(keys...)
}

// Snapshot returns the persisted form of the sensor: all attributes without time values.
func (s *Sensor) Snapshot() attrs.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullAttributes().WithoutTimes()
}

func (s *Sensor) fullAttributes() attrs.Store {
	full := s.conf.attributes()
	for k, v := range s.state.Attributes() {
		full.Set(k, v)
	}
	full.Set(AttrAttribution, Attribution)
	full.Cleanup()
	return full
}

// Remove retires the sensor and deletes its persisted snapshot. Later update passes abort.
func (s *Sensor) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = true
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, s.conf.UniqueID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// ScanUpdate runs a periodic update pass unless the last periodic pass happened less than
// the throttle interval ago.
func (s *Sensor) ScanUpdate(ctx context.Context) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.lastScan.IsZero() && now.Sub(s.lastScan) < s.conf.Throttle {
		return OutcomeThrottled
	}
	s.lastScan = now
	return s.run(ctx, "scan interval", now)
}

// Update runs an update pass.
func (s *Sensor) Update(ctx context.Context, reason string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, reason, s.now())
}

func (s *Sensor) run(ctx context.Context, reason string, now time.Time) Outcome {
	if s.removed {
		s.logger.Debug("sensor removed, not updating", slog.String("reason", reason))
		return OutcomeAborted
	}
	s.logger.Debug("starting update", slog.String("reason", reason))
	outcome := s.update(ctx, now)
	s.state.LastUpdated = now
	s.logger.Debug("update finished", slog.String("outcome", string(outcome)),
		slog.String("state", s.state.NativeValue))
	if s.observer != nil {
		s.observer.ObserveUpdate(s.conf.UniqueID, outcome)
	}
	return outcome
}

// update computes the next state from a copy of the committed one and swaps it in only if the
// pass succeeds and the state changed. Every other path leaves the committed state untouched.
func (s *Sensor) update(ctx context.Context, now time.Time) Outcome {
	next := s.state.clone()
	next.PreviousState = next.NativeValue
	if s.conf.ShowTime {
		next.PreviousState = sinceSuffix.ReplaceAllString(next.NativeValue, "")
	}
	if _, ok := parseFloat(next.Latitude); ok {
		next.LatitudeOld = next.Latitude
	}
	if _, ok := parseFloat(next.Longitude); ok {
		next.LongitudeOld = next.Longitude
	}
	prevLastPlaceName := next.LastPlaceName

	loc, ok := s.tracker.Location(ctx, s.conf.TrackerID)
	if !ok {
		s.logger.Debug("tracker has no location", slog.String("tracker", s.conf.TrackerID))
		return OutcomeAborted
	}
	next.Latitude = formatCoordinate(loc.Lat)
	next.Longitude = formatCoordinate(loc.Lon)
	next.GPSAccuracy = loc.Accuracy
	next.Zone = loc.Zone
	next.ZoneName = ZoneDisplayName(loc.ZoneName)
	if next.ZoneName == "" {
		next.ZoneName = ZoneDisplayName(loc.Zone)
	}

	if !UpdateCoordinatesAndDistance(&next) {
		s.logger.Debug("current or home coordinates unknown, not updating")
		return OutcomeAborted
	}
	proceed, gate := ShouldUpdate(&next)
	if !proceed {
		s.logger.Debug("update not needed", slog.String("gate", string(gate)),
			slog.Int("updates_skipped", next.UpdatesSkipped))
		if gate == GateDebounced {
			s.state.UpdatesSkipped = next.UpdatesSkipped
		}
		return OutcomeSkipped
	}
	if next.Zone == "" {
		s.logger.Debug("tracker zone unknown, not updating")
		return OutcomeAborted
	}

	next.resetPlace()
	next.MapLink = MapLink(s.conf.MapProvider, s.conf.MapZoom, &next)
	place, err := s.geocoder.Reverse(ctx, nominatim.ReverseQuery{
		Lat:      next.Latitude,
		Lon:      next.Longitude,
		Language: s.conf.Language,
		Email:    s.conf.APIKey,
	})
	if err != nil {
		if errors.Is(err, nominatim.ErrAPIError) || errors.Is(err, nominatim.ErrNoResult) {
			s.logger.Info("no geodata for location", slog.String("location", next.LocationCurrent),
				logger.Err(err))
		} else {
			s.logger.Warn("reverse geocoding failed", logger.Err(err))
		}
		return OutcomeReverted
	}

	Parse(&next, place, s.conf.Language)
	if next.InitialUpdate || (!next.InZone() && next.LastPlaceName == next.PlaceName) {
		next.LastPlaceName = prevLastPlaceName
	}
	next.DisplayOptions = ParseOptions(s.conf.Options)
	next.IsDriving = DrivingStatus(&next)

	switch {
	case next.HasOption(OptFormattedPlace):
		next.FormattedPlace = BuildFormattedPlace(&next)
		next.NativeValue = next.FormattedPlace
	case !next.InZone():
		if value := BuildFromDisplayOptions(&next); value != "" {
			next.NativeValue = value
		}
	case (next.HasOption(OptZone) && next.Zone != "") || next.ZoneName == "":
		next.NativeValue = next.Zone
	default:
		next.NativeValue = next.ZoneName
	}
	next.NativeValue = truncateRunes(next.NativeValue, stateLimit(s.conf.ShowTime))
	next.LastChanged = now

	if !stateChanged(&next) {
		s.logger.Debug("state unchanged", slog.String("state", next.NativeValue))
		s.state.UpdatesSkipped = 0
		return OutcomeUnchanged
	}

	if s.conf.ExtendedAttr {
		s.extendedAttributes(ctx, &next)
	}
	if s.conf.ShowTime && next.NativeValue != "" {
		next.NativeValue += fmt.Sprintf(sinceFormat, now.Format("15:04"))
	}
	next.InitialUpdate = false
	s.state = next

	s.logger.Info("state changed", slog.String("from", next.PreviousState),
		slog.String("to", next.NativeValue))
	s.fireEvent(ctx, prevLastPlaceName, now)
	s.persist(ctx)
	return OutcomeCommitted
}

// stateChanged compares the candidate native value with the previous state.
func stateChanged(s *State) bool {
	if s.PreviousState == "" || s.NativeValue == "" || s.InitialUpdate {
		return true
	}
	prev := strings.ToLower(strings.TrimSpace(s.PreviousState))
	value := strings.ToLower(strings.TrimSpace(s.NativeValue))
	return prev != value &&
		strings.ReplaceAll(prev, " ", "") != value &&
		prev != strings.ToLower(strings.TrimSpace(s.Zone))
}

// stateLimit returns the number of characters available for the state. The time suffix
// counts against MaxStateLength.
func stateLimit(showTime bool) int {
	if showTime {
		return MaxStateLength - sinceLength
	}
	return MaxStateLength
}

func truncateRunes(value string, n int) string {
	runes := []rune(value)
	if len(runes) <= n {
		return value
	}
	return string(runes[:n])
}

func (s *Sensor) extendedAttributes(ctx context.Context, next *State) {
	if next.OSMID == "" || next.OSMType == "" {
		return
	}
	details, err := s.geocoder.Details(ctx, nominatim.DetailsQuery{
		OSMType:  next.OSMType,
		OSMID:    next.OSMID,
		Language: s.conf.Language,
		Email:    s.conf.APIKey,
	})
	if err != nil {
		s.logger.Warn("failed to fetch OSM details", logger.Err(err))
		return
	}
	next.OSMDetailsDict = details.Raw
	next.WikidataID = details.WikidataID
	if next.WikidataID == "" {
		return
	}
	doc, err := s.geocoder.Wikidata(ctx, next.WikidataID)
	if err != nil {
		s.logger.Warn("failed to fetch wikidata entity", slog.String("id", next.WikidataID),
			logger.Err(err))
		return
	}
	next.WikidataDict = doc
}

func (s *Sensor) fireEvent(ctx context.Context, prevLastPlaceName string, now time.Time) {
	if s.events == nil {
		return
	}
	event := newEvent(s.conf, &s.state, prevLastPlaceName, now)
	select {
	case s.events <- event:
		if s.observer != nil {
			s.observer.ObserveEvent(s.conf.UniqueID)
		}
	case <-ctx.Done():
		s.logger.Warn("change event dropped", logger.Err(ctx.Err()))
	}
}

func (s *Sensor) persist(ctx context.Context) {
	if s.store == nil || s.removed {
		return
	}
	if err := s.store.Save(ctx, s.conf.UniqueID, s.fullAttributes().WithoutTimes()); err != nil {
		s.logger.Warn("failed to persist snapshot", logger.Err(err))
	}
}

// formatCoordinate renders a coordinate as decimal string with at least one decimal place.
func formatCoordinate(v float64) string {
	out := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}
