// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wneessen/placesd/internal/attrs"
	"github.com/wneessen/placesd/internal/testhelper"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"phone", "phone"},
		{"Phone Place", "phone_place"},
		{"Zürich Büro", "zurich_buro"},
		{"  --My  Sensor--  ", "my_sensor"},
		{"sensor.phone_1", "sensor_phone_1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("expected slug %q, got %q", tt.want, got)
			}
		})
	}
	t.Run("key carries the prefix", func(t *testing.T) {
		if got := Key("Phone Place"); got != "places-phone_place" {
			t.Errorf("unexpected key: %s", got)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("unknown backend fails", func(t *testing.T) {
		_, err := New(t.Context(), Options{Backend: "etcd"})
		if !errors.Is(err, ErrUnknownBackend) {
			t.Errorf("expected unknown backend error, got %v", err)
		}
	})
	t.Run("file backend is the default", func(t *testing.T) {
		store, err := New(t.Context(), Options{Path: t.TempDir()})
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		if _, ok := store.(*FileStore); !ok {
			t.Errorf("expected file store, got %T", store)
		}
	})
}

func testSnapshot() attrs.Store {
	return attrs.Store{
		"native_value":     "12 Main St, Springfield",
		"gps_accuracy":     12.5,
		"updates_skipped":  2,
		"display_options":  []string{"street", "city"},
		"osm_dict":         map[string]any{"place_id": 289412},
		"last_changed":     time.Now(),
		"current_latitude": "40.0",
	}
}

func testStore(t *testing.T, store Store) {
	t.Helper()
	t.Run("missing snapshot loads empty", func(t *testing.T) {
		data, err := store.Load(t.Context(), "missing")
		if err != nil {
			t.Fatalf("failed to load snapshot: %s", err)
		}
		if len(data) != 0 {
			t.Errorf("expected empty snapshot, got %v", data)
		}
	})
	t.Run("saved snapshot can be loaded", func(t *testing.T) {
		if err := store.Save(t.Context(), "Phone Place", testSnapshot()); err != nil {
			t.Fatalf("failed to save snapshot: %s", err)
		}
		data, err := store.Load(t.Context(), "Phone Place")
		if err != nil {
			t.Fatalf("failed to load snapshot: %s", err)
		}
		if data.String("native_value") != "12 Main St, Springfield" {
			t.Errorf("unexpected native value: %v", data.Get("native_value"))
		}
		if num, ok := data.Get("gps_accuracy").(json.Number); !ok || num.String() != "12.5" {
			t.Errorf("unexpected gps accuracy: %v", data.Get("gps_accuracy"))
		}
		if _, ok := data["last_changed"]; ok {
			t.Error("expected time values to be dropped")
		}
		if _, ok := data.Get("osm_dict").(map[string]any); !ok {
			t.Errorf("expected nested dict, got %T", data.Get("osm_dict"))
		}
	})
	t.Run("saving again overwrites the snapshot", func(t *testing.T) {
		if err := store.Save(t.Context(), "Phone Place", attrs.Store{"native_value": "Home"}); err != nil {
			t.Fatalf("failed to save snapshot: %s", err)
		}
		data, err := store.Load(t.Context(), "Phone Place")
		if err != nil {
			t.Fatalf("failed to load snapshot: %s", err)
		}
		if data.String("native_value") != "Home" || len(data) != 1 {
			t.Errorf("unexpected snapshot: %v", data)
		}
	})
	t.Run("deleted snapshot loads empty", func(t *testing.T) {
		if err := store.Delete(t.Context(), "Phone Place"); err != nil {
			t.Fatalf("failed to delete snapshot: %s", err)
		}
		if err := store.Delete(t.Context(), "Phone Place"); err != nil {
			t.Errorf("deleting a missing snapshot should not fail: %s", err)
		}
		data, err := store.Load(t.Context(), "Phone Place")
		if err != nil {
			t.Fatalf("failed to load snapshot: %s", err)
		}
		if len(data) != 0 {
			t.Errorf("expected empty snapshot, got %v", data)
		}
	})
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("failed to create file store: %s", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	testStore(t, store)

	t.Run("snapshot file is named after the key", func(t *testing.T) {
		if err = store.Save(t.Context(), "Phone", attrs.Store{"native_value": "Home"}); err != nil {
			t.Fatalf("failed to save snapshot: %s", err)
		}
		if _, err = os.Stat(filepath.Join(dir, "places-phone.json")); err != nil {
			t.Errorf("expected snapshot file: %s", err)
		}
	})
	t.Run("corrupt snapshot fails to load", func(t *testing.T) {
		if err = os.WriteFile(filepath.Join(dir, "places-broken.json"), []byte("{"), 0o600); err != nil {
			t.Fatalf("failed to write file: %s", err)
		}
		if _, err = store.Load(t.Context(), "broken"); err == nil {
			t.Error("expected corrupt snapshot to fail")
		}
	})
	t.Run("empty directory is rejected", func(t *testing.T) {
		if _, err = NewFileStore(""); err == nil {
			t.Error("expected empty directory to fail")
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(t.Context(), filepath.Join(t.TempDir(), "placesd.db"))
	if err != nil {
		t.Fatalf("failed to create sqlite store: %s", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	testStore(t, store)
}

func TestRedisStore(t *testing.T) {
	testhelper.PerformIntegrationTests(t)
	addr := os.Getenv("PLACESD_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	store, err := NewRedisStore(t.Context(), addr, "", 0)
	if err != nil {
		t.Fatalf("failed to connect to redis: %s", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	testStore(t, store)
}
