// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Display option tokens.
const (
	OptFormattedPlace   = "formatted_place"
	OptDriving          = "driving"
	OptZone             = "zone"
	OptZoneName         = "zone_name"
	OptPlaceName        = "place_name"
	OptPlace            = "place"
	OptStreetNumber     = "street_number"
	OptStreet           = "street"
	OptCity             = "city"
	OptCounty           = "county"
	OptState            = "state"
	OptRegion           = "region"
	OptPostalCode       = "postal_code"
	OptCountry          = "country"
	OptFormattedAddress = "formatted_address"
	OptDoNotShowNotHome = "do_not_show_not_home"
	OptDoNotReorder     = "do_not_reorder"
	OptNeighbourhood    = "place_neighbourhood"
	OptNeighborhood     = "place_neighborhood"
	OptPlaceType        = "place_type"
	OptPlaceCategory    = "place_category"
)

// Map providers for the map link.
const (
	MapProviderApple  = "apple"
	MapProviderGoogle = "google"
	MapProviderOSM    = "osm"
)

// DefaultOptions is used when a sensor has no display options configured.
const DefaultOptions = "zone_name, place"

// ParseOptions splits a comma separated option list into trimmed, lower-cased tokens.
func ParseOptions(options string) []string {
	return splitList(strings.ToLower(options))
}

// Title title-cases s. Underscores are treated as word separators.
func Title(s string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(s, "_", " "))
}

// ZoneDisplayName title-cases all lower-case zone names and keeps everything else as is.
func ZoneDisplayName(name string) string {
	if name != "" && name == strings.ToLower(name) {
		return Title(name)
	}
	return name
}

// BuildFormattedPlace returns the compact human-readable description of the location.
// The place name is never used directly.
func BuildFormattedPlace(s *State) string {
	var parts []string
	if s.InZone() {
		parts = append(parts, strings.TrimSpace(s.ZoneName))
		return joinParts(parts)
	}

	if s.IsDriving && s.HasOption(OptDriving) {
		parts = append(parts, "Driving")
	}
	isHighway := strings.EqualFold(s.PlaceCategory, "highway")
	switch {
	case s.PlaceType != "" && !strings.EqualFold(s.PlaceType, "unclassified") && !isHighway:
		placeType := Title(s.PlaceType)
		placeType = strings.ReplaceAll(placeType, "Proposed", "")
		placeType = strings.ReplaceAll(placeType, "Construction", "")
		if placeType = strings.TrimSpace(placeType); placeType != "" {
			parts = append(parts, placeType)
		}
	case s.PlaceCategory != "" && !isHighway:
		parts = append(parts, strings.TrimSpace(Title(s.PlaceCategory)))
	}

	if s.Street != "" {
		street := strings.TrimSpace(s.Street)
		placeType := strings.ToLower(s.PlaceType)
		if isHighway && (placeType == "motorway" || placeType == "trunk") && s.StreetRef != "" {
			street = strings.TrimSpace(s.StreetRef)
		}
		if s.StreetNumber != "" {
			street = strings.TrimSpace(s.StreetNumber) + " " + street
		}
		parts = append(parts, street)
	}
	if strings.EqualFold(s.PlaceType, "house") && s.PlaceNeighbourhood != "" {
		parts = append(parts, strings.TrimSpace(s.PlaceNeighbourhood))
	}

	switch {
	case s.City != "":
		parts = append(parts, strings.TrimSpace(strings.ReplaceAll(s.City, " Township", "")))
	case s.County != "":
		parts = append(parts, strings.TrimSpace(s.County))
	}
	if s.StateAbbr != "" {
		parts = append(parts, s.StateAbbr)
	}
	return joinParts(parts)
}

// BuildFromDisplayOptions composes the state from the user-selected display options. It
// returns the empty string when nothing could be composed.
func BuildFromDisplayOptions(s *State) string {
	if s.HasOption(OptDoNotReorder) {
		return buildInOptionOrder(s)
	}

	var parts []string
	add := func(v string) {
		if v != "" {
			parts = append(parts, v)
		}
	}

	if s.HasOption(OptDriving) && s.IsDriving {
		parts = append(parts, "Driving")
	}
	showZone := !s.HasOption(OptDoNotShowNotHome)
	switch {
	case showZone && s.HasOption(OptZoneName) && s.ZoneName != "":
		parts = append(parts, s.ZoneName)
	case showZone && s.HasOption(OptZone) && s.Zone != "":
		parts = append(parts, s.Zone)
	}

	if s.HasOption(OptPlaceName) {
		add(s.PlaceName)
	}
	if s.HasOption(OptPlace) {
		if s.PlaceName != s.Street {
			add(s.PlaceName)
		}
		if !strings.EqualFold(s.PlaceCategory, "place") {
			add(s.PlaceCategory)
		}
		if !strings.EqualFold(s.PlaceType, "yes") {
			add(s.PlaceType)
		}
		add(s.PlaceNeighbourhood)
		add(s.StreetNumber)
		add(s.Street)
	} else {
		numberOption := s.HasOption(OptStreetNumber)
		if numberOption {
			add(s.StreetNumber)
		}
		if s.HasOption(OptStreet) && s.Street != "" {
			if !numberOption && s.StreetNumber != "" {
				parts = append(parts, s.StreetNumber+" "+s.Street)
			} else {
				parts = append(parts, s.Street)
			}
		}
	}

	if s.HasOption(OptCity) {
		add(s.City)
	}
	if s.HasOption(OptCounty) {
		add(s.County)
	}
	if s.HasOption(OptState) || s.HasOption(OptRegion) {
		add(s.Region)
	}
	if s.HasOption(OptPostalCode) {
		add(s.PostalCode)
	}
	if s.HasOption(OptCountry) {
		add(s.Country)
	}
	if s.HasOption(OptFormattedAddress) {
		add(s.FormattedAddress)
	}
	return strings.Join(parts, ", ")
}

// buildInOptionOrder emits the values of the options in the order the user listed them.
// Options without a matching attribute are skipped.
func buildInOptionOrder(s *State) string {
	var parts []string
	for _, opt := range s.DisplayOptions {
		var value string
		switch opt {
		case OptDriving:
			if s.IsDriving {
				value = "Driving"
			}
		case OptZone:
			value = s.Zone
		case OptZoneName:
			value = s.ZoneName
		case OptPlaceName, OptPlace:
			value = s.PlaceName
		case OptPlaceType:
			value = s.PlaceType
		case OptPlaceCategory:
			value = s.PlaceCategory
		case OptNeighbourhood, OptNeighborhood:
			value = s.PlaceNeighbourhood
		case OptStreetNumber:
			value = s.StreetNumber
		case OptStreet:
			value = s.Street
		case OptCity:
			value = s.City
		case OptCounty:
			value = s.County
		case OptState, OptRegion:
			value = s.Region
		case OptPostalCode:
			value = s.PostalCode
		case OptCountry:
			value = s.Country
		case OptFormattedAddress:
			value = s.FormattedAddress
		case OptFormattedPlace:
			value = s.FormattedPlace
		}
		if value != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, ", ")
}

// MapLink returns a link to the current location on the map of the given provider. Unknown
// providers fall back to Apple Maps.
func MapLink(provider string, zoom int, s *State) string {
	if s.LocationCurrent == "" {
		return ""
	}
	loc := s.LocationCurrent
	switch strings.ToLower(provider) {
	case MapProviderGoogle:
		return fmt.Sprintf("https://maps.google.com/?q=%s&ll=%s&z=%d", loc, loc, zoom)
	case MapProviderOSM:
		return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%s&mlon=%s#map=%d/%s/%s", s.Latitude,
			s.Longitude, zoom, prefix(s.Latitude, 8), prefix(s.Longitude, 9))
	default:
		return fmt.Sprintf("https://maps.apple.com/maps/?q=%s&z=%d", loc, zoom)
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func joinParts(parts []string) string {
	out := strings.Join(parts, ", ")
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.ReplaceAll(out, "  ", " ")
	return strings.TrimSpace(out)
}
