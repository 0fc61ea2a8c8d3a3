// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

import (
	"strings"

	"github.com/wneessen/placesd/internal/nominatim"
)

// cityKeys are the address keys that may carry the city, in order of priority.
var cityKeys = []string{"city", "town", "village", "township", "municipality", "city_district"}

// streetRefDelimiters separate multiple route references, e.g. "I-90;US-20".
const streetRefDelimiters = `,\/;:`

// Parse fills the place attributes of s from a reverse geocoding result. language is the
// comma separated list of preferred languages.
func Parse(s *State, p *nominatim.Place, language string) {
	s.OSMDict = p.Raw
	addr := p.Address

	if p.Type != "" {
		s.PlaceType = p.Type
		if s.PlaceType == "yes" {
			s.PlaceType = p.AddressType
		}
		if v, ok := addr[s.PlaceType]; ok {
			s.PlaceName = v
		}
	}
	if p.Category != "" {
		s.PlaceCategory = p.Category
		if v, ok := addr[s.PlaceCategory]; ok {
			s.PlaceName = v
		}
	}
	if v, ok := p.NameDetails["name"]; ok {
		s.PlaceName = v
	}
	for _, lang := range splitList(language) {
		if v, ok := p.NameDetails["name:"+lang]; ok {
			s.PlaceName = v
			break
		}
	}
	if !s.InZone() && s.PlaceName != "house" {
		s.NativeValue = s.PlaceName
	}

	s.StreetNumber = addr["house_number"]
	s.Street = addr["road"]
	switch {
	case addr.Has("neighbourhood"):
		s.PlaceNeighbourhood = addr["neighbourhood"]
	case addr.Has("hamlet"):
		s.PlaceNeighbourhood = addr["hamlet"]
	}

	for _, key := range cityKeys {
		if v, ok := addr[key]; ok {
			s.City = v
			break
		}
	}
	if rest, ok := strings.CutPrefix(s.City, "City of "); ok {
		s.City = rest + " City"
	}

	if v, ok := addr["city_district"]; ok {
		s.PostalTown = v
	}
	if v, ok := addr["suburb"]; ok {
		s.PostalTown = v
	}
	s.Region = addr["state"]
	if iso := addr["ISO3166-2-lvl4"]; iso != "" {
		if _, abbr, ok := strings.Cut(iso, "-"); ok {
			if code, _, _ := strings.Cut(abbr, "-"); code != "" {
				s.StateAbbr = strings.ToUpper(code)
			}
		}
	}
	s.County = addr["county"]
	s.Country = addr["country"]
	s.PostalCode = addr["postcode"]
	s.FormattedAddress = p.DisplayName
	s.OSMID = p.OSMID.String()
	s.OSMType = p.OSMType

	if strings.EqualFold(s.PlaceCategory, "highway") {
		if ref, ok := p.NameDetails["ref"]; ok {
			s.StreetRef = TruncateStreetRef(ref)
		}
	}
}

// TruncateStreetRef cuts a route reference at the earliest delimiter.
func TruncateStreetRef(ref string) string {
	if idx := strings.IndexAny(ref, streetRefDelimiters); idx != -1 {
		return ref[:idx]
	}
	return ref
}

// DrivingStatus reports whether the tracker is moving on a highway outside of any zone.
func DrivingStatus(s *State) bool {
	if s.InZone() || s.DirectionOfTravel == DirectionStationary {
		return false
	}
	return s.PlaceCategory == "highway" || s.PlaceType == "motorway"
}

func splitList(list string) []string {
	var out []string
	for item := range strings.SplitSeq(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
