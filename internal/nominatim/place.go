// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package nominatim

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Place is a typed view of a jsonv2 reverse geocoding response. Raw holds the complete
// decoded document.
type Place struct {
	PlaceID     json.Number `json:"place_id"`
	OSMType     string      `json:"osm_type"`
	OSMID       json.Number `json:"osm_id"`
	Category    string      `json:"category"`
	Type        string      `json:"type"`
	AddressType string      `json:"addresstype"`
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Address     Fields      `json:"address"`
	NameDetails Fields      `json:"namedetails"`

	Raw map[string]any `json:"-"`
}

// Fields is a flat string mapping. Numbers and booleans are converted to strings, nested
// values and nulls are dropped.
type Fields map[string]string

// UnmarshalJSON satisfies the json.Unmarshaler interface.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = formatNumber(val)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	*f = out
	return nil
}

// Has reports whether key is present.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// DecodePlace decodes a reverse geocoding response. Empty documents and error documents
// yield an error.
func DecodePlace(data []byte) (*Place, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode reverse geocode response: %w", err)
	}
	if err := checkRaw(raw); err != nil {
		return nil, err
	}

	place := new(Place)
	if err := json.Unmarshal(data, place); err != nil {
		return nil, fmt.Errorf("failed to decode reverse geocode response: %w", err)
	}
	if place.Address == nil {
		place.Address = Fields{}
	}
	if place.NameDetails == nil {
		place.NameDetails = Fields{}
	}
	place.Raw = raw
	return place, nil
}
