// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package store persists sensor snapshots across restarts.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/wneessen/placesd/internal/attrs"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"

	keyPrefix = "places-"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Store loads, saves and deletes attribute snapshots. Loading a missing snapshot returns an
// empty store and no error.
type Store interface {
	Load(ctx context.Context, id string) (attrs.Store, error)
	Save(ctx context.Context, id string, data attrs.Store) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Options select and configure the storage backend.
type Options struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New returns the Store for the configured backend.
func New(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendFile, "":
		return NewFileStore(opts.Path)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

// Key returns the storage key of a sensor's snapshot.
func Key(id string) string {
	return keyPrefix + Slug(id)
}

// Slug converts s into a lower-case ASCII identifier. Accents are stripped and runs of other
// characters are replaced by a single underscore.
func Slug(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	underscore := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && sb.Len() > 0 {
			sb.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}

func encode(data attrs.Store) ([]byte, error) {
	out, err := json.Marshal(data.WithoutTimes())
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return out, nil
}

func decode(data []byte) (attrs.Store, error) {
	out := attrs.Store{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return out, nil
}
