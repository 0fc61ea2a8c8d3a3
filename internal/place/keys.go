// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

// Attribute names used whenever a sensor's state is serialized.
const (
	AttrName           = "name"
	AttrUniqueID       = "unique_id"
	AttrTrackerID      = "devicetracker_entityid"
	AttrHomeZone       = "home_zone"
	AttrOptions        = "options"
	AttrMapProvider    = "map_provider"
	AttrMapZoom        = "map_zoom"
	AttrLanguage       = "language"
	AttrExtendedAttr   = "extended_attr"
	AttrShowTime       = "show_time"
	AttrAPIKey         = "api_key"
	AttrAttribution    = "attribution"
	AttrLatitude       = "current_latitude"
	AttrLongitude      = "current_longitude"
	AttrLatitudeOld    = "previous_latitude"
	AttrLongitudeOld   = "previous_longitude"
	AttrHomeLatitude   = "home_latitude"
	AttrHomeLongitude  = "home_longitude"
	AttrGPSAccuracy    = "gps_accuracy"
	AttrZone           = "devicetracker_zone"
	AttrZoneName       = "devicetracker_zone_name"
	AttrLocationCur    = "current_location"
	AttrLocationPrev   = "previous_location"
	AttrHomeLocation   = "home_location"
	AttrDistHomeM      = "distance_from_home_m"
	AttrDistHomeKM     = "distance_from_home_km"
	AttrDistHomeMI     = "distance_from_home_mi"
	AttrDistTravM      = "distance_traveled_m"
	AttrDistTravMI     = "distance_traveled_mi"
	AttrDirection      = "direction_of_travel"
	AttrPlaceName      = "place_name"
	AttrPlaceType      = "place_type"
	AttrPlaceCategory  = "place_category"
	AttrNeighbourhood  = "place_neighbourhood"
	AttrStreet         = "street"
	AttrStreetNumber   = "street_number"
	AttrStreetRef      = "street_ref"
	AttrCity           = "city"
	AttrPostalTown     = "postal_town"
	AttrRegion         = "state_province"
	AttrStateAbbr      = "state_abbr"
	AttrCounty         = "county"
	AttrCountry        = "country"
	AttrPostalCode     = "postal_code"
	AttrFormattedAddr  = "formatted_address"
	AttrOSMID          = "osm_id"
	AttrOSMType        = "osm_type"
	AttrOSMDict        = "osm_dict"
	AttrOSMDetailsDict = "osm_details_dict"
	AttrWikidataDict   = "wikidata_dict"
	AttrWikidataID     = "wikidata_id"
	AttrFormattedPlace = "formatted_place"
	AttrMapLink        = "map_link"
	AttrIsDriving      = "is_driving"
	AttrDisplayOptions = "display_options"
	AttrNativeValue    = "native_value"
	AttrPreviousState  = "previous_state"
	AttrLastPlaceName  = "last_place_name"
	AttrLastChanged    = "last_changed"
	AttrLastUpdated    = "last_updated"
	AttrUpdatesSkipped = "updates_skipped"
	AttrInitialUpdate  = "initial_update"
)

// Attribution is reported with every sensor.
const Attribution = "Data © OpenStreetMap contributors, ODbL 1.0. https://osm.org/copyright"

// EventAttributeKeys are the attributes carried by a change event.
var EventAttributeKeys = []string{
	AttrGPSAccuracy, AttrOSMID, AttrOSMType, AttrPlaceType, AttrPlaceName, AttrPlaceCategory,
	AttrNeighbourhood, AttrStreet, AttrStreetNumber, AttrStreetRef, AttrCity, AttrPostalTown,
	AttrRegion, AttrStateAbbr, AttrCounty, AttrCountry, AttrPostalCode, AttrFormattedAddr,
	AttrFormattedPlace, AttrLatitude, AttrLongitude, AttrLatitudeOld, AttrLongitudeOld,
	AttrZone, AttrZoneName, AttrDistHomeKM, AttrDistHomeM, AttrDistHomeMI, AttrDistTravM,
	AttrDistTravMI, AttrDirection, AttrMapLink, AttrIsDriving, AttrLastChanged, AttrAttribution,
}

// ExtendedAttributeKeys are added to events and reported attributes when extended
// attributes are enabled.
var ExtendedAttributeKeys = []string{
	AttrOSMDetailsDict, AttrWikidataID, AttrWikidataDict,
}

// ExtraAttributeKeys are the attributes reported next to the native value.
var ExtraAttributeKeys = []string{
	AttrAttribution, AttrGPSAccuracy, AttrLatitudeOld, AttrLongitudeOld, AttrLatitude,
	AttrLongitude, AttrZone, AttrZoneName, AttrHomeZone, AttrHomeLatitude, AttrHomeLongitude,
	AttrDistHomeKM, AttrDistHomeM, AttrDistHomeMI, AttrDistTravM, AttrDistTravMI, AttrDirection,
	AttrPlaceType, AttrPlaceName, AttrPlaceCategory, AttrNeighbourhood, AttrStreet,
	AttrStreetNumber, AttrStreetRef, AttrCity, AttrPostalTown, AttrRegion, AttrStateAbbr,
	AttrCounty, AttrCountry, AttrPostalCode, AttrFormattedAddr, AttrFormattedPlace, AttrOSMID,
	AttrOSMType, AttrMapLink, AttrIsDriving, AttrPreviousState, AttrLastPlaceName,
	AttrLastChanged, AttrLastUpdated, AttrUpdatesSkipped, AttrOptions, AttrTrackerID,
	AttrMapProvider, AttrMapZoom, AttrLanguage, AttrExtendedAttr, AttrShowTime,
}
