// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package nominatim implements the OpenStreetMap Nominatim reverse geocoding, the OSM details
// lookup and the Wikidata entity lookup used for extended place attributes.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	ttlcache "github.com/jellydator/ttlcache/v2"

	"github.com/wneessen/placesd/internal/http"
	"github.com/wneessen/placesd/internal/logger"
)

const (
	DefaultEndpoint         = "https://nominatim.openstreetmap.org"
	DefaultWikidataEndpoint = "https://www.wikidata.org/wiki/Special:EntityData"
	DefaultCacheTTL         = time.Hour * 24
	APITimeout              = time.Second * 10

	// reverseZoom requests building level detail.
	reverseZoom = "18"
)

const (
	EndpointReverse  = "reverse"
	EndpointDetails  = "details"
	EndpointWikidata = "wikidata"
)

var (
	// ErrNoResult is returned when the API answered without any usable data.
	ErrNoResult = errors.New("no result returned by API")
	// ErrAPIError is returned when the API answered with an error document.
	ErrAPIError = errors.New("API returned an error")
	// ErrInvalidOSMType is returned for OSM types other than node, way and relation.
	ErrInvalidOSMType = errors.New("invalid OSM type")
)

// Observer is notified about every upstream request.
type Observer interface {
	ObserveRequest(endpoint, outcome string)
}

// Options configures the Client.
type Options struct {
	Endpoint         string
	WikidataEndpoint string
	Timeout          time.Duration
	CacheTTL         time.Duration
}

// Client talks to the Nominatim and Wikidata APIs.
type Client struct {
	http     *http.Client
	logger   *logger.Logger
	opts     Options
	observer Observer

	details  *ttlcache.Cache
	wikidata *ttlcache.Cache
}

// ReverseQuery holds the parameters of a reverse geocoding lookup. Latitude and longitude are
// passed on as given.
type ReverseQuery struct {
	Lat      string
	Lon      string
	Language string
	Email    string
}

// DetailsQuery holds the parameters of an OSM details lookup.
type DetailsQuery struct {
	OSMType  string
	OSMID    string
	Language string
	Email    string
}

// Details is the OSM details document of a place.
type Details struct {
	Raw        map[string]any
	WikidataID string
}

// New returns a Client. The observer may be nil.
func New(client *http.Client, log *logger.Logger, opts Options, observer Observer) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.WikidataEndpoint == "" {
		opts.WikidataEndpoint = DefaultWikidataEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = APITimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	opts.Endpoint = strings.TrimSuffix(opts.Endpoint, "/")
	opts.WikidataEndpoint = strings.TrimSuffix(opts.WikidataEndpoint, "/")

	return &Client{
		http:     client,
		logger:   log,
		opts:     opts,
		observer: observer,
		details:  newCache(opts.CacheTTL),
		wikidata: newCache(opts.CacheTTL),
	}
}

func newCache(ttl time.Duration) *ttlcache.Cache {
	cache := ttlcache.NewCache()
	_ = cache.SetTTL(ttl)
	cache.SkipTTLExtensionOnHit(true)
	return cache
}

// Close stops the cache janitors.
func (c *Client) Close() error {
	return errors.Join(c.details.Close(), c.wikidata.Close())
}

// Reverse resolves the coordinates of q to a Place.
func (c *Client) Reverse(ctx context.Context, q ReverseQuery) (*Place, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", q.Lat)
	query.Set("lon", q.Lon)
	if q.Language != "" {
		query.Set("accept-language", q.Language)
	}
	query.Set("addressdetails", "1")
	query.Set("namedetails", "1")
	query.Set("zoom", reverseZoom)
	query.Set("limit", "1")
	if q.Email != "" {
		query.Set("email", q.Email)
	}

	var raw json.RawMessage
	if err := c.get(ctx, EndpointReverse, c.opts.Endpoint+"/reverse", &raw, query); err != nil {
		return nil, fmt.Errorf("failed to fetch reverse geocode from Nominatim API: %w", err)
	}
	place, err := DecodePlace(raw)
	if err != nil {
		c.observe(EndpointReverse, "error")
		return nil, err
	}
	c.observe(EndpointReverse, "ok")
	return place, nil
}

// Details fetches the OSM details document for the object of q. Documents are cached.
func (c *Client) Details(ctx context.Context, q DetailsQuery) (*Details, error) {
	abbr, err := OSMTypeAbbr(q.OSMType)
	if err != nil {
		return nil, err
	}
	key := abbr + q.OSMID + "|" + q.Language
	if cached, err := c.details.Get(key); err == nil {
		if details, ok := cached.(*Details); ok {
			c.observe(EndpointDetails, "cached")
			return details, nil
		}
	}

	query := url.Values{}
	query.Set("osmtype", abbr)
	query.Set("osmid", q.OSMID)
	query.Set("linkedplaces", "1")
	query.Set("hierarchy", "1")
	query.Set("group_hierarchy", "1")
	query.Set("limit", "1")
	query.Set("format", "json")
	if q.Email != "" {
		query.Set("email", q.Email)
	}
	if q.Language != "" {
		query.Set("accept-language", q.Language)
	}

	var raw map[string]any
	if err = c.get(ctx, EndpointDetails, c.opts.Endpoint+"/details", &raw, query); err != nil {
		return nil, fmt.Errorf("failed to fetch OSM details from Nominatim API: %w", err)
	}
	if err = checkRaw(raw); err != nil {
		c.observe(EndpointDetails, "error")
		return nil, err
	}
	c.observe(EndpointDetails, "ok")

	details := &Details{Raw: raw}
	if tags, ok := raw["extratags"].(map[string]any); ok {
		details.WikidataID, _ = tags["wikidata"].(string)
	}
	if err = c.details.Set(key, details); err != nil {
		c.logger.Debug("failed to cache OSM details", slog.String("key", key), logger.Err(err))
	}
	return details, nil
}

// Wikidata fetches the linked-data entity document for id. Documents are cached.
func (c *Client) Wikidata(ctx context.Context, id string) (map[string]any, error) {
	if id == "" {
		return nil, ErrNoResult
	}
	if cached, err := c.wikidata.Get(id); err == nil {
		if doc, ok := cached.(map[string]any); ok {
			c.observe(EndpointWikidata, "cached")
			return doc, nil
		}
	}

	var raw map[string]any
	endpoint := c.opts.WikidataEndpoint + "/" + url.PathEscape(id) + ".json"
	if err := c.get(ctx, EndpointWikidata, endpoint, &raw, nil); err != nil {
		return nil, fmt.Errorf("failed to fetch entity %q from Wikidata API: %w", id, err)
	}
	if err := checkRaw(raw); err != nil {
		c.observe(EndpointWikidata, "error")
		return nil, err
	}
	c.observe(EndpointWikidata, "ok")
	if err := c.wikidata.Set(id, raw); err != nil {
		c.logger.Debug("failed to cache wikidata entity", slog.String("id", id), logger.Err(err))
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, endpoint, address string, target any, query url.Values) error {
	start := time.Now()
	code, err := c.http.GetWithTimeout(ctx, address, target, query, nil, c.opts.Timeout)
	c.logger.Debug("upstream request finished", slog.String("endpoint", endpoint),
		slog.Int("status", code), slog.Duration("took", time.Since(start)))
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		c.observe(endpoint, outcome)
		return err
	}
	return nil
}

func (c *Client) observe(endpoint, outcome string) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, outcome)
	}
}

// OSMTypeAbbr maps node, way and relation to the one-letter abbreviations of the details API.
func OSMTypeAbbr(osmType string) (string, error) {
	switch strings.ToLower(osmType) {
	case "node", "n":
		return "N", nil
	case "way", "w":
		return "W", nil
	case "relation", "r":
		return "R", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOSMType, osmType)
	}
}

func checkRaw(raw map[string]any) error {
	if len(raw) == 0 {
		return ErrNoResult
	}
	if msg, ok := raw["error_message"]; ok {
		return fmt.Errorf("%w: %v", ErrAPIError, msg)
	}
	if msg, ok := raw["error"]; ok {
		return fmt.Errorf("%w: %v", ErrAPIError, msg)
	}
	return nil
}

// formatNumber renders JSON numbers without exponent or trailing zeros.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
