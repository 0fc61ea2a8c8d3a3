// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"math"
)

// EarthRadiusKM is the mean earth radius used for great-circle distances.
const EarthRadiusKM = 6371.0

// Coordinate represents a geographic coordinate.
type Coordinate struct {
	Lat float64
	Lon float64
	Acc float64
}

// Haversine returns the great-circle distance in kilometers between two points given in
// decimal degrees. Note the longitude-first argument order.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	rLat1, rLat2 := lat1*math.Pi/180, lat2*math.Pi/180
	dLat := rLat2 - rLat1
	dLon := (lon2 - lon1) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(h))
}

// Distance returns the great-circle distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	return Haversine(lon1, lat1, lon2, lat2) * 1000
}

// DistanceTo returns the distance in meters to other.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return Distance(c.Lat, c.Lon, other.Lat, other.Lon)
}

// SamePosition reports whether both coordinates point to the same position, ignoring accuracy.
func (c Coordinate) SamePosition(other Coordinate) bool {
	return c.Lat == other.Lat && c.Lon == other.Lon
}

// Valid checks if the coordinate is valid according to the EPSG logic
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
