// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/wneessen/placesd/internal/attrs"
	"github.com/wneessen/placesd/internal/logger"
	"github.com/wneessen/placesd/internal/nominatim"
)

var testNow = time.Date(2026, 10, 15, 12, 34, 0, 0, time.UTC)

type fakeTracker struct {
	mu  sync.Mutex
	loc *Location
}

func (f *fakeTracker) Location(context.Context, string) (Location, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loc == nil {
		return Location{}, false
	}
	return *f.loc, true
}

func (f *fakeTracker) move(lat, lon float64, zone string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loc = &Location{Lat: lat, Lon: lon, Zone: zone, ZoneName: zone}
}

type fakeGeocoder struct {
	mu    sync.Mutex
	place *nominatim.Place
	err   error
	calls int
}

func (f *fakeGeocoder) Reverse(context.Context, nominatim.ReverseQuery) (*nominatim.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.place, nil
}

func (f *fakeGeocoder) Details(context.Context, nominatim.DetailsQuery) (*nominatim.Details, error) {
	return &nominatim.Details{Raw: map[string]any{"category": "building"}, WikidataID: "Q28515"}, nil
}

func (f *fakeGeocoder) Wikidata(context.Context, string) (map[string]any, error) {
	return map[string]any{"id": "Q28515"}, nil
}

func (f *fakeGeocoder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memStore struct {
	mu   sync.Mutex
	data map[string]attrs.Store
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]attrs.Store)}
}

func (m *memStore) Load(_ context.Context, id string) (attrs.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id].Clone(), nil
}

func (m *memStore) Save(_ context.Context, id string, data attrs.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data.Clone()
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
	events   int
}

func (c *countingObserver) ObserveUpdate(_ string, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = make(map[Outcome]int)
	}
	c.outcomes[outcome]++
}

func (c *countingObserver) ObserveEvent(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events++
}

type testEnv struct {
	sensor   *Sensor
	tracker  *fakeTracker
	geocoder *fakeGeocoder
	store    *memStore
	events   chan Event
	observer *countingObserver
}

func testConfig() Config {
	return Config{
		Name:          "Phone Place",
		UniqueID:      "phone-place",
		TrackerID:     "phone",
		HomeLatitude:  40.001,
		HomeLongitude: -75.001,
		Options:       "street, city, state",
	}
}

func newTestEnv(t *testing.T, conf Config, store *memStore) *testEnv {
	t.Helper()
	if store == nil {
		store = newMemStore()
	}
	env := &testEnv{
		tracker:  &fakeTracker{},
		geocoder: &fakeGeocoder{place: loadPlace(t, testReverse)},
		store:    store,
		events:   make(chan Event, 10),
		observer: &countingObserver{},
	}
	sensor, err := NewSensor(t.Context(), conf, Deps{
		Tracker:  env.tracker,
		Geocoder: env.geocoder,
		Store:    env.store,
		Events:   env.events,
		Observer: env.observer,
		Logger:   logger.NewLogger(slog.LevelDebug, io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create sensor: %s", err)
	}
	sensor.now = func() time.Time { return testNow }
	env.sensor = sensor
	return env
}

func (e *testEnv) expectOutcome(t *testing.T, want Outcome) {
	t.Helper()
	if got := e.sensor.Update(t.Context(), "test"); got != want {
		t.Fatalf("expected outcome %q, got %q", want, got)
	}
}

func (e *testEnv) nextEvent(t *testing.T) Event {
	t.Helper()
	select {
	case event := <-e.events:
		return event
	default:
		t.Fatal("expected a change event, got none")
	}
	return Event{}
}

func (e *testEnv) expectNoEvent(t *testing.T) {
	t.Helper()
	select {
	case event := <-e.events:
		t.Fatalf("expected no change event, got %q", event.ToState)
	default:
	}
}

func TestNewSensor(t *testing.T) {
	t.Run("missing configuration values fail", func(t *testing.T) {
		tests := []struct {
			name   string
			modify func(*Config)
			want   error
		}{
			{"name", func(c *Config) { c.Name = "" }, ErrMissingName},
			{"unique id", func(c *Config) { c.UniqueID = "" }, ErrMissingUniqueID},
			{"tracker", func(c *Config) { c.TrackerID = "" }, ErrMissingTracker},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				conf := testConfig()
				tt.modify(&conf)
				if _, err := NewSensor(t.Context(), conf, Deps{}); !errors.Is(err, tt.want) {
					t.Errorf("expected error %s, got %v", tt.want, err)
				}
			})
		}
	})
	t.Run("defaults are applied", func(t *testing.T) {
		conf := testConfig()
		conf.Options = ""
		env := newTestEnv(t, conf, nil)
		if env.sensor.conf.Options != DefaultOptions {
			t.Errorf("expected default options, got %q", env.sensor.conf.Options)
		}
		if env.sensor.conf.MapProvider != MapProviderApple {
			t.Errorf("expected default map provider, got %q", env.sensor.conf.MapProvider)
		}
		if env.sensor.conf.MapZoom != DefaultMapZoom {
			t.Errorf("expected default map zoom, got %d", env.sensor.conf.MapZoom)
		}
		if !env.sensor.State().InitialUpdate {
			t.Error("expected a fresh sensor to await its initial update")
		}
	})
	t.Run("persisted snapshot is imported", func(t *testing.T) {
		store := newMemStore()
		store.data["phone-place"] = attrs.Store{
			AttrNativeValue:   "Springfield",
			AttrLatitude:      "40.0",
			AttrLongitude:     "-75.0",
			AttrHomeLatitude:  "1.0",
			AttrHomeLongitude: "1.0",
			AttrZone:          "not_home",
		}
		env := newTestEnv(t, testConfig(), store)
		state := env.sensor.State()
		if state.InitialUpdate {
			t.Error("expected initial update flag to be cleared after import")
		}
		if state.NativeValue != "Springfield" {
			t.Errorf("expected imported state, got %q", state.NativeValue)
		}
		if state.HomeLatitude != "40.001" || state.HomeLongitude != "-75.001" {
			t.Errorf("expected home coordinates from config, got %s,%s", state.HomeLatitude,
				state.HomeLongitude)
		}

		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeSkipped)
		if env.geocoder.count() != 0 {
			t.Error("expected no geocoding for the imported location")
		}
	})
}

func TestSensor_Update(t *testing.T) {
	t.Run("first update resolves the address", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), nil)
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeCommitted)

		state := env.sensor.State()
		if state.NativeValue != "12 Main St, Springfield, Illinois" {
			t.Errorf("unexpected state: %q", state.NativeValue)
		}
		if state.InitialUpdate {
			t.Error("expected initial update flag to be cleared")
		}
		if dist := state.DistanceFromHomeM.Value(); dist < 130 || dist > 150 {
			t.Errorf("expected distance from home of about 140m, got %f", dist)
		}
		if state.LastChanged != testNow || state.LastUpdated != testNow {
			t.Errorf("unexpected timestamps: %s / %s", state.LastChanged, state.LastUpdated)
		}
		if !strings.HasPrefix(state.MapLink, "https://maps.apple.com/") {
			t.Errorf("unexpected map link: %s", state.MapLink)
		}

		event := env.nextEvent(t)
		if event.Type != EventType || event.ToState != state.NativeValue || event.FromState != "" {
			t.Errorf("unexpected event: %+v", event)
		}
		if event.Data.String(AttrCity) != "Springfield" {
			t.Errorf("expected city in event data, got %q", event.Data.String(AttrCity))
		}
		if event.Data.Get(AttrAttribution) != Attribution {
			t.Error("expected attribution in event data")
		}

		snapshot := env.store.data["phone-place"]
		if snapshot.String(AttrNativeValue) != state.NativeValue {
			t.Errorf("expected persisted state, got %q", snapshot.String(AttrNativeValue))
		}
		if _, ok := snapshot[AttrLastChanged]; ok {
			t.Error("expected time values to be excluded from the snapshot")
		}
		if snapshot.String(AttrTrackerID) != "phone" {
			t.Error("expected configuration values in the snapshot")
		}
		if env.observer.events != 1 || env.observer.outcomes[OutcomeCommitted] != 1 {
			t.Errorf("unexpected observations: %+v", env.observer)
		}
	})
	t.Run("entering the home zone reports the zone name", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), nil)
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeCommitted)
		_ = env.nextEvent(t)

		env.tracker.move(40.001, -75.001, "home")
		env.expectOutcome(t, OutcomeCommitted)
		state := env.sensor.State()
		if state.NativeValue != "Home" {
			t.Errorf("expected state Home, got %q", state.NativeValue)
		}
		if state.IsDriving {
			t.Error("expected no driving status inside a zone")
		}
		if state.LastPlaceName != "Home" {
			t.Errorf("expected last place name Home, got %q", state.LastPlaceName)
		}
		if state.PreviousState != "12 Main St, Springfield, Illinois" {
			t.Errorf("unexpected previous state: %q", state.PreviousState)
		}
		event := env.nextEvent(t)
		if event.FromState != state.PreviousState || event.Data.String(AttrLastPlaceName) != "Home" {
			t.Errorf("unexpected event: %+v", event)
		}
	})
	t.Run("failed geocoding reverts the update", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), nil)
		env.geocoder.err = context.DeadlineExceeded
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeReverted)

		state := env.sensor.State()
		if state.NativeValue != "" || state.PlaceName != "" || state.Latitude != "" {
			t.Errorf("expected state to be untouched, got %+v", state)
		}
		if state.LastUpdated != testNow {
			t.Errorf("expected last updated to be stamped, got %s", state.LastUpdated)
		}
		if !state.InitialUpdate {
			t.Error("expected initial update to be retried")
		}
		env.expectNoEvent(t)
		if len(env.store.data) != 0 {
			t.Error("expected nothing to be persisted")
		}
	})
	t.Run("second update at the same location is skipped", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), nil)
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeCommitted)
		_ = env.nextEvent(t)
		first := env.sensor.State()

		env.expectOutcome(t, OutcomeSkipped)
		second := env.sensor.State()
		if second.NativeValue != first.NativeValue || second.UpdatesSkipped != 0 {
			t.Errorf("expected unchanged state, got %q/%d", second.NativeValue, second.UpdatesSkipped)
		}
		if env.geocoder.count() != 1 {
			t.Errorf("expected a single geocoding request, got %d", env.geocoder.count())
		}
		env.expectNoEvent(t)
	})
	t.Run("short movements are debounced until an update is forced", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), nil)
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeCommitted)
		_ = env.nextEvent(t)

		env.tracker.move(40.00004, -75.0, "not_home")
		for i := 1; i <= 4; i++ {
			env.expectOutcome(t, OutcomeSkipped)
			if skipped := env.sensor.State().UpdatesSkipped; skipped != i {
				t.Fatalf("expected %d skipped updates, got %d", i, skipped)
			}
		}
		env.expectOutcome(t, OutcomeUnchanged)
		if skipped := env.sensor.State().UpdatesSkipped; skipped != 0 {
			t.Errorf("expected skip counter to be reset, got %d", skipped)
		}
		if env.geocoder.count() != 2 {
			t.Errorf("expected two geocoding requests, got %d", env.geocoder.count())
		}
		env.expectNoEvent(t)
	})
	t.Run("missing tracker location aborts", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), nil)
		env.expectOutcome(t, OutcomeAborted)
	})
	t.Run("missing zone aborts before geocoding", func(t *testing.T) {
		env := newTestEnv(t, testConfig(), nil)
		env.tracker.move(40.0, -75.0, "")
		env.expectOutcome(t, OutcomeAborted)
		if env.geocoder.count() != 0 {
			t.Error("expected no geocoding request")
		}
	})
	t.Run("long states are truncated", func(t *testing.T) {
		conf := testConfig()
		conf.Options = "street"
		env := newTestEnv(t, conf, nil)
		env.geocoder.place = &nominatim.Place{
			Category: "highway",
			Type:     "residential",
			Address:  nominatim.Fields{"road": strings.Repeat("ä", 300)},
		}
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeCommitted)
		if n := utf8.RuneCountInString(env.sensor.NativeValue()); n != MaxStateLength {
			t.Errorf("expected state of %d characters, got %d", MaxStateLength, n)
		}
	})
	t.Run("truncated long state is unchanged on the next pass", func(t *testing.T) {
		for _, showTime := range []bool{false, true} {
			conf := testConfig()
			conf.Options = "street"
			conf.ShowTime = showTime
			env := newTestEnv(t, conf, nil)
			env.geocoder.place = &nominatim.Place{Address: nominatim.Fields{"road": strings.Repeat("x", 300)}}
			env.tracker.move(40.0, -75.0, "not_home")
			env.expectOutcome(t, OutcomeCommitted)
			_ = env.nextEvent(t)

			env.tracker.move(40.0005, -75.0, "not_home")
			env.expectOutcome(t, OutcomeUnchanged)
			env.expectNoEvent(t)
			if env.geocoder.count() != 2 {
				t.Errorf("expected two geocoding requests, got %d", env.geocoder.count())
			}
		}
	})
	t.Run("show time appends the time within the length limit", func(t *testing.T) {
		conf := testConfig()
		conf.Options = "street"
		conf.ShowTime = true
		env := newTestEnv(t, conf, nil)
		env.geocoder.place = &nominatim.Place{Address: nominatim.Fields{"road": strings.Repeat("x", 300)}}
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeCommitted)
		value := env.sensor.NativeValue()
		if !strings.HasSuffix(value, " (since 12:34)") {
			t.Errorf("expected time suffix, got %q", value)
		}
		if n := utf8.RuneCountInString(value); n != MaxStateLength {
			t.Errorf("expected state of %d characters, got %d", MaxStateLength, n)
		}
	})
	t.Run("time suffix is stripped from the previous state", func(t *testing.T) {
		conf := testConfig()
		conf.ShowTime = true
		env := newTestEnv(t, conf, nil)
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeCommitted)
		if got := env.sensor.NativeValue(); got != "12 Main St, Springfield, Illinois (since 12:34)" {
			t.Errorf("unexpected state: %q", got)
		}

		env.tracker.move(40.001, -75.001, "home")
		env.expectOutcome(t, OutcomeCommitted)
		state := env.sensor.State()
		if state.PreviousState != "12 Main St, Springfield, Illinois" {
			t.Errorf("unexpected previous state: %q", state.PreviousState)
		}
		if state.NativeValue != "Home (since 12:34)" {
			t.Errorf("unexpected state: %q", state.NativeValue)
		}
	})
	t.Run("extended attributes are fetched on change", func(t *testing.T) {
		conf := testConfig()
		conf.ExtendedAttr = true
		env := newTestEnv(t, conf, nil)
		env.tracker.move(40.0, -75.0, "not_home")
		env.expectOutcome(t, OutcomeCommitted)
		state := env.sensor.State()
		if state.WikidataID != "Q28515" || state.WikidataDict == nil || state.OSMDetailsDict == nil {
			t.Errorf("expected extended attributes, got %q", state.WikidataID)
		}
		if env.sensor.Attributes().Get(AttrWikidataID) != "Q28515" {
			t.Error("expected wikidata id in reported attributes")
		}
		event := env.nextEvent(t)
		if event.Data.Get(AttrWikidataID) != "Q28515" {
			t.Error("expected wikidata id in event data")
		}
	})
}

func TestSensor_ScanUpdate(t *testing.T) {
	t.Run("periodic updates are throttled", func(t *testing.T) {
		conf := testConfig()
		conf.Throttle = time.Minute
		env := newTestEnv(t, conf, nil)
		env.tracker.move(40.0, -75.0, "not_home")

		now := testNow
		env.sensor.now = func() time.Time { return now }
		if got := env.sensor.ScanUpdate(t.Context()); got != OutcomeCommitted {
			t.Fatalf("expected committed update, got %q", got)
		}
		now = now.Add(time.Second * 30)
		if got := env.sensor.ScanUpdate(t.Context()); got != OutcomeThrottled {
			t.Errorf("expected throttled update, got %q", got)
		}
		now = now.Add(time.Minute)
		if got := env.sensor.ScanUpdate(t.Context()); got != OutcomeSkipped {
			t.Errorf("expected skipped update, got %q", got)
		}
	})
}

func TestSensor_Attributes(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.tracker.move(40.0, -75.0, "not_home")
	env.expectOutcome(t, OutcomeCommitted)

	t.Run("reported attributes exclude internal values", func(t *testing.T) {
		reported := env.sensor.Attributes()
		for _, key := range []string{AttrAPIKey, AttrOSMDict, AttrInitialUpdate, AttrNativeValue, AttrWikidataID} {
			if _, ok := reported[key]; ok {
				t.Errorf("expected %s to be excluded", key)
			}
		}
		if reported.String(AttrStreet) != "Main St" {
			t.Errorf("expected street to be reported, got %q", reported.String(AttrStreet))
		}
		if reported.String(AttrOptions) != "street, city, state" {
			t.Errorf("expected options to be reported, got %q", reported.String(AttrOptions))
		}
	})
	t.Run("renaming changes the display name", func(t *testing.T) {
		env.sensor.SetName("Renamed")
		if env.sensor.Name() != "Renamed" {
			t.Errorf("expected new name, got %q", env.sensor.Name())
		}
	})
	t.Run("removing the sensor deletes the snapshot", func(t *testing.T) {
		if err := env.sensor.Remove(t.Context()); err != nil {
			t.Fatalf("failed to remove sensor: %s", err)
		}
		if _, ok := env.store.data["phone-place"]; ok {
			t.Error("expected snapshot to be deleted")
		}
	})
	t.Run("removed sensor is not updated again", func(t *testing.T) {
		for len(env.events) > 0 {
			<-env.events
		}
		calls := env.geocoder.count()
		env.tracker.move(41.0, -74.0, "not_home")
		env.geocoder.place = &nominatim.Place{Address: nominatim.Fields{"road": "Elm St", "city": "Newark"}}
		env.expectOutcome(t, OutcomeAborted)
		if got := env.sensor.ScanUpdate(t.Context()); got != OutcomeAborted {
			t.Errorf("expected periodic pass to be aborted, got %q", got)
		}
		if env.geocoder.count() != calls {
			t.Error("expected no geocoding request after removal")
		}
		if _, ok := env.store.data["phone-place"]; ok {
			t.Error("expected snapshot to stay deleted")
		}
		env.expectNoEvent(t)
	})
}

func TestStateChanged(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		value    string
		zone     string
		want     bool
	}{
		{"different values", "Springfield", "Chicago", "not_home", true},
		{"same value ignoring case", "springfield", "Springfield", "not_home", false},
		{"previous without spaces", "MainSt", "Main St", "not_home", true},
		{"value without spaces", "Main St", "mainst", "not_home", false},
		{"previous equals zone", "home", "Home Sweet Home", "home", false},
		{"no previous state", "", "Springfield", "not_home", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{PreviousState: tt.previous, NativeValue: tt.value, Zone: tt.zone}
			if got := stateChanged(state); got != tt.want {
				t.Errorf("expected %t, got %t", tt.want, got)
			}
		})
	}
}

func TestStateLimit(t *testing.T) {
	t.Run("state without time uses the full length", func(t *testing.T) {
		if got := stateLimit(false); got != MaxStateLength {
			t.Errorf("expected %d, got %d", MaxStateLength, got)
		}
	})
	t.Run("time suffix reduces the available length", func(t *testing.T) {
		if got := stateLimit(true); got != 241 {
			t.Errorf("expected 241, got %d", got)
		}
	})
	t.Run("short values are not truncated", func(t *testing.T) {
		if got := truncateRunes("Home", stateLimit(true)); got != "Home" {
			t.Errorf("unexpected state: %q", got)
		}
	})
}
