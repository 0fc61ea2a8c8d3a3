// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Xuanwo/go-locale"
	"github.com/google/uuid"
	"github.com/kkyr/fig"
	"golang.org/x/text/language"

	"github.com/wneessen/placesd/internal/place"
	"github.com/wneessen/placesd/internal/store"
	"github.com/wneessen/placesd/internal/zone"
)

const (
	configEnv = "PLACESD"
	appName   = "placesd"

	DefaultFileInterval = time.Second * 30
	maxMapZoom          = 20
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Storage struct {
		// Allowed values: file, redis, sqlite
		Backend       string `fig:"backend" default:"file"`
		Path          string `fig:"path"`
		RedisAddr     string `fig:"redis_addr" default:"localhost:6379"`
		RedisPassword string `fig:"redis_password"`
		RedisDB       int    `fig:"redis_db"`
	} `fig:"storage"`

	Intervals struct {
		Scan        time.Duration `fig:"scan" default:"30s"`
		Throttle    time.Duration `fig:"throttle" default:"10m"`
		LocationTTL time.Duration `fig:"location_ttl" default:"1h"`
	} `fig:"intervals"`

	Nominatim struct {
		Endpoint         string        `fig:"endpoint" default:"https://nominatim.openstreetmap.org"`
		WikidataEndpoint string        `fig:"wikidata_endpoint" default:"https://www.wikidata.org/wiki/Special:EntityData"`
		Timeout          time.Duration `fig:"timeout" default:"10s"`
		CacheTTL         time.Duration `fig:"cache_ttl" default:"24h"`
	} `fig:"nominatim"`

	API struct {
		Listen       string `fig:"listen" default:"127.0.0.1:8765"`
		Disable      bool   `fig:"disable"`
		EventLogSize int    `fig:"event_log_size" default:"100"`
	} `fig:"api"`

	Trackers []Tracker `fig:"trackers"`
	Zones    []Zone    `fig:"zones"`
	Sensors  []Sensor  `fig:"sensors"`
}

// Tracker is a tracked device and its location sources. Locations can always be pushed
// through the API.
type Tracker struct {
	ID           string        `fig:"id"`
	File         string        `fig:"file"`
	FileInterval time.Duration `fig:"file_interval"`
	GPSD         string        `fig:"gpsd"`
	GeoIP        bool          `fig:"geoip"`
}

// Zone is a named circular area.
type Zone struct {
	ID        string  `fig:"id"`
	Name      string  `fig:"name"`
	Latitude  float64 `fig:"latitude"`
	Longitude float64 `fig:"longitude"`
	Radius    float64 `fig:"radius"`
}

// Sensor configures a place sensor.
type Sensor struct {
	Name         string `fig:"name"`
	UniqueID     string `fig:"unique_id"`
	Tracker      string `fig:"tracker"`
	HomeZone     string `fig:"home_zone"`
	Options      string `fig:"options"`
	MapProvider  string `fig:"map_provider"`
	MapZoom      int    `fig:"map_zoom"`
	Language     string `fig:"language"`
	APIKey       string `fig:"api_key"`
	ExtendedAttr bool   `fig:"extended_attr"`
	ShowTime     bool   `fig:"show_time"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate checks the configuration and fills in derived defaults.
func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = detectLocale()
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.Intervals.Scan <= 0 || c.Intervals.Throttle < 0 || c.Intervals.LocationTTL <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	for _, endpoint := range []string{c.Nominatim.Endpoint, c.Nominatim.WikidataEndpoint} {
		if u, err := url.Parse(endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint URL: %q", endpoint)
		}
	}
	if c.API.EventLogSize <= 0 {
		return fmt.Errorf("invalid event log size: %d", c.API.EventLogSize)
	}

	trackers := make(map[string]struct{}, len(c.Trackers))
	for i := range c.Trackers {
		tracker := &c.Trackers[i]
		if tracker.ID == "" {
			return fmt.Errorf("tracker %d: id must not be empty", i)
		}
		if _, ok := trackers[tracker.ID]; ok {
			return fmt.Errorf("duplicate tracker id: %s", tracker.ID)
		}
		trackers[tracker.ID] = struct{}{}
		if tracker.FileInterval <= 0 {
			tracker.FileInterval = DefaultFileInterval
		}
	}

	zones := make(map[string]struct{}, len(c.Zones))
	for i := range c.Zones {
		z := &c.Zones[i]
		z.ID = zone.NormalizeID(z.ID)
		if z.ID == "" {
			return fmt.Errorf("zone %d: id must not be empty", i)
		}
		if z.Name == "" {
			z.Name = place.ZoneDisplayName(z.ID)
		}
		if z.Radius <= 0 {
			z.Radius = zone.DefaultRadius
		}
		zones[z.ID] = struct{}{}
	}

	uniqueIDs := make(map[string]struct{}, len(c.Sensors))
	for i := range c.Sensors {
		if err := c.Sensors[i].validate(trackers, zones, c.Locale); err != nil {
			return fmt.Errorf("sensor %d: %w", i, err)
		}
		id := c.Sensors[i].UniqueID
		if _, ok := uniqueIDs[id]; ok {
			return fmt.Errorf("duplicate sensor unique id: %s", id)
		}
		uniqueIDs[id] = struct{}{}
	}

	return nil
}

func (c *Config) validateStorage() error {
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	switch c.Storage.Backend {
	case store.BackendFile:
		if c.Storage.Path == "" {
			c.Storage.Path = filepath.Join(stateDir(), "snapshots")
		}
	case store.BackendSQLite:
		if c.Storage.Path == "" {
			c.Storage.Path = filepath.Join(stateDir(), appName+".db")
		}
	case store.BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis address must not be empty")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}
	return nil
}

// validate fills in the sensor defaults. Sensors without a language use locale. A derived unique id
// includes the name, so renaming a sensor in the config starts a new snapshot unless unique_id is set.
func (s *Sensor) validate(trackers, zones map[string]struct{}, locale string) error {
	if s.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if _, ok := trackers[s.Tracker]; !ok {
		return fmt.Errorf("unknown tracker: %q", s.Tracker)
	}
	if s.UniqueID == "" {
		s.UniqueID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(appName+":"+s.Tracker+":"+s.Name)).String()
	}
	s.HomeZone = zone.NormalizeID(s.HomeZone)
	if s.HomeZone == "" {
		s.HomeZone = zone.HomeID
	}
	if _, ok := zones[s.HomeZone]; !ok {
		return fmt.Errorf("unknown home zone: %q", s.HomeZone)
	}
	if s.Options == "" {
		s.Options = place.DefaultOptions
	}
	s.MapProvider = strings.ToLower(s.MapProvider)
	switch s.MapProvider {
	case "":
		s.MapProvider = place.MapProviderApple
	case place.MapProviderApple, place.MapProviderGoogle, place.MapProviderOSM:
	default:
		return fmt.Errorf("invalid map provider: %s", s.MapProvider)
	}
	if s.MapZoom == 0 {
		s.MapZoom = place.DefaultMapZoom
	}
	if s.MapZoom < 1 || s.MapZoom > maxMapZoom {
		return fmt.Errorf("invalid map zoom: %d", s.MapZoom)
	}
	if strings.TrimSpace(s.Language) == "" {
		s.Language = locale
	}
	for _, lang := range strings.Split(s.Language, ",") {
		if lang = strings.TrimSpace(lang); lang == "" {
			continue
		}
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("invalid language %q: %w", lang, err)
		}
	}
	return nil
}

func detectLocale() string {
	tag, err := locale.Detect()
	if err != nil || tag == language.Und {
		return language.English.String()
	}
	return tag.String()
}

func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", appName)
}
