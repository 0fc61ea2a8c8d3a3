// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

import (
	"math"
	"strconv"

	"github.com/wneessen/placesd/internal/geobus"
)

const (
	metersPerMile = 1609.0
	// stationaryKM is the movement in kilometers below which the tracker counts as stationary.
	stationaryKM = 0.2
)

// UpdateCoordinatesAndDistance derives the location strings, the last place name, the
// distance from home, the direction of travel and the distance traveled. It returns false
// if the current or home coordinates are unknown.
func UpdateCoordinatesAndDistance(s *State) bool {
	lastDistance := s.DistanceFromHomeM

	if s.Latitude != "" && s.Longitude != "" {
		s.LocationCurrent = s.Latitude + "," + s.Longitude
	}
	if s.LatitudeOld != "" && s.LongitudeOld != "" {
		s.LocationPrevious = s.LatitudeOld + "," + s.LongitudeOld
	}
	if s.HomeLatitude != "" && s.HomeLongitude != "" {
		s.HomeLocation = s.HomeLatitude + "," + s.HomeLongitude
	}

	switch {
	case !s.InZone() && s.PlaceName != "":
		s.LastPlaceName = s.PlaceName
	case s.InZone():
		s.LastPlaceName = s.ZoneName
	}

	lat, okLat := parseFloat(s.Latitude)
	lon, okLon := parseFloat(s.Longitude)
	homeLat, okHomeLat := parseFloat(s.HomeLatitude)
	homeLon, okHomeLon := parseFloat(s.HomeLongitude)
	if !okLat || !okLon || !okHomeLat || !okHomeLon {
		return false
	}

	distHome := geobus.Distance(lat, lon, homeLat, homeLon)
	s.DistanceFromHomeM.Set(distHome)
	s.DistanceFromHomeKM.Set(round(distHome/1000, 3))
	s.DistanceFromHomeMI.Set(round(distHome/metersPerMile, 3))

	oldLat, okOldLat := parseFloat(s.LatitudeOld)
	oldLon, okOldLon := parseFloat(s.LongitudeOld)
	if !okOldLat || !okOldLon {
		s.DirectionOfTravel = DirectionStationary
		s.DistanceTraveledM.Set(0)
		s.DistanceTraveledMI.Reset()
		return true
	}

	deviation := geobus.Haversine(oldLon, oldLat, lon, lat)
	switch {
	case deviation <= stationaryKM, !lastDistance.IsSet():
		s.DirectionOfTravel = DirectionStationary
	case lastDistance.Value() > distHome:
		s.DirectionOfTravel = DirectionTowards
	case lastDistance.Value() < distHome:
		s.DirectionOfTravel = DirectionAway
	default:
		s.DirectionOfTravel = DirectionStationary
	}

	traveled := geobus.Distance(lat, lon, oldLat, oldLon)
	s.DistanceTraveledM.Set(traveled)
	s.DistanceTraveledMI.Set(round(traveled/metersPerMile, 3))
	return true
}

func parseFloat(v string) (float64, bool) {
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
