// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/wneessen/placesd/internal/attrs"
	"github.com/wneessen/placesd/internal/vartype"
)

// Directions of travel relative to the home zone.
const (
	DirectionStationary = "stationary"
	DirectionTowards    = "towards home"
	DirectionAway       = "away from home"
)

// State is the authoritative per-sensor record. Coordinates are kept as the decimal strings
// that were reported by the tracker. Empty strings mean "absent".
type State struct {
	Latitude      string
	Longitude     string
	LatitudeOld   string
	LongitudeOld  string
	HomeLatitude  string
	HomeLongitude string
	GPSAccuracy   vartype.VarFloat64

	Zone     string
	ZoneName string

	LocationCurrent  string
	LocationPrevious string
	HomeLocation     string

	DistanceFromHomeM  vartype.VarFloat64
	DistanceFromHomeKM vartype.VarFloat64
	DistanceFromHomeMI vartype.VarFloat64
	DistanceTraveledM  vartype.VarFloat64
	DistanceTraveledMI vartype.VarFloat64
	DirectionOfTravel  string

	PlaceType          string
	PlaceCategory      string
	PlaceName          string
	PlaceNeighbourhood string
	Street             string
	StreetNumber       string
	StreetRef          string
	City               string
	PostalTown         string
	Region             string
	StateAbbr          string
	County             string
	Country            string
	PostalCode         string
	FormattedAddress   string
	OSMID              string
	OSMType            string

	OSMDict        map[string]any
	OSMDetailsDict map[string]any
	WikidataDict   map[string]any
	WikidataID     string

	FormattedPlace string
	MapLink        string
	IsDriving      bool
	DisplayOptions []string

	NativeValue    string
	PreviousState  string
	LastPlaceName  string
	LastChanged    time.Time
	LastUpdated    time.Time
	UpdatesSkipped int
	InitialUpdate  bool
}

// InZone reports whether the tracker is inside a recognized zone.
func (s *State) InZone() bool {
	zone := strings.ToLower(s.Zone)
	switch {
	case zone == "", zone == "away", zone == "not_home", zone == "notset":
		return false
	case strings.Contains(zone, "stationary"):
		return false
	default:
		return true
	}
}

// HasOption reports whether the display options contain opt.
func (s *State) HasOption(opt string) bool {
	return slices.Contains(s.DisplayOptions, opt)
}

// resetPlace clears everything that is derived from a geocoding result and resets the
// skip counter.
func (s *State) resetPlace() {
	s.PlaceType, s.PlaceCategory, s.PlaceName, s.PlaceNeighbourhood = "", "", "", ""
	s.Street, s.StreetNumber, s.StreetRef = "", "", ""
	s.City, s.PostalTown, s.Region, s.StateAbbr = "", "", "", ""
	s.County, s.Country, s.PostalCode, s.FormattedAddress = "", "", "", ""
	s.OSMID, s.OSMType = "", ""
	s.OSMDict, s.OSMDetailsDict, s.WikidataDict, s.WikidataID = nil, nil, nil, ""
	s.FormattedPlace, s.MapLink = "", ""
	s.IsDriving = false
	s.DisplayOptions = nil
	s.UpdatesSkipped = 0
}

// clone returns a copy that shares no mutable containers with s.
func (s State) clone() State {
	s.OSMDict = maps.Clone(s.OSMDict)
	s.OSMDetailsDict = maps.Clone(s.OSMDetailsDict)
	s.WikidataDict = maps.Clone(s.WikidataDict)
	s.DisplayOptions = slices.Clone(s.DisplayOptions)
	return s
}

// Attributes converts the state into an attribute store. Blank values are omitted.
func (s *State) Attributes() attrs.Store {
	store := attrs.Store{
		AttrLatitude:       s.Latitude,
		AttrLongitude:      s.Longitude,
		AttrLatitudeOld:    s.LatitudeOld,
		AttrLongitudeOld:   s.LongitudeOld,
		AttrHomeLatitude:   s.HomeLatitude,
		AttrHomeLongitude:  s.HomeLongitude,
		AttrGPSAccuracy:    s.GPSAccuracy.Any(),
		AttrZone:           s.Zone,
		AttrZoneName:       s.ZoneName,
		AttrLocationCur:    s.LocationCurrent,
		AttrLocationPrev:   s.LocationPrevious,
		AttrHomeLocation:   s.HomeLocation,
		AttrDistHomeM:      s.DistanceFromHomeM.Any(),
		AttrDistHomeKM:     s.DistanceFromHomeKM.Any(),
		AttrDistHomeMI:     s.DistanceFromHomeMI.Any(),
		AttrDistTravM:      s.DistanceTraveledM.Any(),
		AttrDistTravMI:     s.DistanceTraveledMI.Any(),
		AttrDirection:      s.DirectionOfTravel,
		AttrPlaceType:      s.PlaceType,
		AttrPlaceCategory:  s.PlaceCategory,
		AttrPlaceName:      s.PlaceName,
		AttrNeighbourhood:  s.PlaceNeighbourhood,
		AttrStreet:         s.Street,
		AttrStreetNumber:   s.StreetNumber,
		AttrStreetRef:      s.StreetRef,
		AttrCity:           s.City,
		AttrPostalTown:     s.PostalTown,
		AttrRegion:         s.Region,
		AttrStateAbbr:      s.StateAbbr,
		AttrCounty:         s.County,
		AttrCountry:        s.Country,
		AttrPostalCode:     s.PostalCode,
		AttrFormattedAddr:  s.FormattedAddress,
		AttrOSMID:          s.OSMID,
		AttrOSMType:        s.OSMType,
		AttrOSMDict:        s.OSMDict,
		AttrOSMDetailsDict: s.OSMDetailsDict,
		AttrWikidataDict:   s.WikidataDict,
		AttrWikidataID:     s.WikidataID,
		AttrFormattedPlace: s.FormattedPlace,
		AttrMapLink:        s.MapLink,
		AttrIsDriving:      s.IsDriving,
		AttrDisplayOptions: s.DisplayOptions,
		AttrNativeValue:    s.NativeValue,
		AttrPreviousState:  s.PreviousState,
		AttrLastPlaceName:  s.LastPlaceName,
		AttrLastChanged:    s.LastChanged,
		AttrLastUpdated:    s.LastUpdated,
		AttrUpdatesSkipped: s.UpdatesSkipped,
		AttrInitialUpdate:  s.InitialUpdate,
	}
	store.Cleanup()
	return store
}

// StateFromAttributes restores a state from an attribute store, e.g. a decoded snapshot.
// Values of unexpected types are ignored. The initial update flag is never restored.
func StateFromAttributes(store attrs.Store) State {
	var s State
	s.Latitude = stringAttr(store, AttrLatitude)
	s.Longitude = stringAttr(store, AttrLongitude)
	s.LatitudeOld = stringAttr(store, AttrLatitudeOld)
	s.LongitudeOld = stringAttr(store, AttrLongitudeOld)
	s.HomeLatitude = stringAttr(store, AttrHomeLatitude)
	s.HomeLongitude = stringAttr(store, AttrHomeLongitude)
	s.GPSAccuracy = floatAttr(store, AttrGPSAccuracy)
	s.Zone = stringAttr(store, AttrZone)
	s.ZoneName = stringAttr(store, AttrZoneName)
	s.LocationCurrent = stringAttr(store, AttrLocationCur)
	s.LocationPrevious = stringAttr(store, AttrLocationPrev)
	s.HomeLocation = stringAttr(store, AttrHomeLocation)
	s.DistanceFromHomeM = floatAttr(store, AttrDistHomeM)
	s.DistanceFromHomeKM = floatAttr(store, AttrDistHomeKM)
	s.DistanceFromHomeMI = floatAttr(store, AttrDistHomeMI)
	s.DistanceTraveledM = floatAttr(store, AttrDistTravM)
	s.DistanceTraveledMI = floatAttr(store, AttrDistTravMI)
	s.DirectionOfTravel = stringAttr(store, AttrDirection)
	s.PlaceType = stringAttr(store, AttrPlaceType)
	s.PlaceCategory = stringAttr(store, AttrPlaceCategory)
	s.PlaceName = stringAttr(store, AttrPlaceName)
	s.PlaceNeighbourhood = stringAttr(store, AttrNeighbourhood)
	s.Street = stringAttr(store, AttrStreet)
	s.StreetNumber = stringAttr(store, AttrStreetNumber)
	s.StreetRef = stringAttr(store, AttrStreetRef)
	s.City = stringAttr(store, AttrCity)
	s.PostalTown = stringAttr(store, AttrPostalTown)
	s.Region = stringAttr(store, AttrRegion)
	s.StateAbbr = stringAttr(store, AttrStateAbbr)
	s.County = stringAttr(store, AttrCounty)
	s.Country = stringAttr(store, AttrCountry)
	s.PostalCode = stringAttr(store, AttrPostalCode)
	s.FormattedAddress = stringAttr(store, AttrFormattedAddr)
	s.OSMID = stringAttr(store, AttrOSMID)
	s.OSMType = stringAttr(store, AttrOSMType)
	s.OSMDict = mapAttr(store, AttrOSMDict)
	s.OSMDetailsDict = mapAttr(store, AttrOSMDetailsDict)
	s.WikidataDict = mapAttr(store, AttrWikidataDict)
	s.WikidataID = stringAttr(store, AttrWikidataID)
	s.FormattedPlace = stringAttr(store, AttrFormattedPlace)
	s.MapLink = stringAttr(store, AttrMapLink)
	s.IsDriving, _ = store.Get(AttrIsDriving).(bool)
	s.DisplayOptions = stringsAttr(store, AttrDisplayOptions)
	s.NativeValue = stringAttr(store, AttrNativeValue)
	s.PreviousState = stringAttr(store, AttrPreviousState)
	s.LastPlaceName = stringAttr(store, AttrLastPlaceName)
	if v := floatAttr(store, AttrUpdatesSkipped); v.IsSet() {
		s.UpdatesSkipped = int(v.Value())
	}
	return s
}

func stringAttr(store attrs.Store, key string) string {
	switch v := store.Get(key).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func floatAttr(store attrs.Store, key string) vartype.VarFloat64 {
	var out vartype.VarFloat64
	switch v := store.Get(key).(type) {
	case float64:
		out.Set(v)
	case float32:
		out.Set(float64(v))
	case int:
		out.Set(float64(v))
	case int64:
		out.Set(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			out.Set(f)
		}
	}
	return out
}

func mapAttr(store attrs.Store, key string) map[string]any {
	v, _ := store.Get(key).(map[string]any)
	return v
}

func stringsAttr(store attrs.Store, key string) []string {
	switch v := store.Get(key).(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
