// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package attrs implements the untyped attribute map that is used whenever sensor state crosses
// a serialization boundary (snapshots, change events and API output).
package attrs

import (
	"maps"
	"reflect"
	"time"
)

// Store is a mapping from attribute name to value.
type Store map[string]any

// IsBlankValue reports whether v counts as blank. nil, the empty string, false, empty
// containers and nil pointers are blank. Numeric zero is NOT blank.
func IsBlankValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return false
	case time.Time:
		return val.IsZero()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// IsBlank reports whether the attribute is absent or blank.
func (s Store) IsBlank(key string) bool {
	v, ok := s[key]
	if !ok {
		return true
	}
	return IsBlankValue(v)
}

// Get returns the attribute value or nil if it is absent or blank.
func (s Store) Get(key string) any {
	if s.IsBlank(key) {
		return nil
	}
	return s[key]
}

// GetDefault returns the attribute value if it is present (even when blank) and fallback otherwise.
func (s Store) GetDefault(key string, fallback any) any {
	if v, ok := s[key]; ok {
		return v
	}
	return fallback
}

// String returns the attribute as string or the empty string if it is blank or of a different type.
func (s Store) String(key string) string {
	v, _ := s.Get(key).(string)
	return v
}

// Set stores the attribute value.
func (s Store) Set(key string, value any) {
	s[key] = value
}

// Clear removes the attribute.
func (s Store) Clear(key string) {
	delete(s, key)
}

// Cleanup removes all blank attributes.
func (s Store) Cleanup() {
	maps.DeleteFunc(s, func(_ string, v any) bool {
		return IsBlankValue(v)
	})
}

// Clone returns a shallow copy of the store.
func (s Store) Clone() Store {
	return maps.Clone(s)
}

// WithoutTimes returns a copy of the store without any time.Time values.
func (s Store) WithoutTimes() Store {
	out := make(Store, len(s))
	for k, v := range s {
		switch v.(type) {
		case time.Time, *time.Time:
			continue
		}
		out[k] = v
	}
	return out
}

// Select returns a copy that holds only the non-blank attributes named in keys.
func (s Store) Select(keys ...string) Store {
	out := make(Store, len(keys))
	for _, k := range keys {
		if v := s.Get(k); v != nil {
			out[k] = v
		}
	}
	return out
}
