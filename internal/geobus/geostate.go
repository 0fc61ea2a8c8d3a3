// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import "time"

// GeolocationState tracks the last known geolocation coordinates and accuracy values.
// It provides functionality to detect changes in geolocation data.
type GeolocationState struct {
	last     Coordinate
	haveLast bool
	at       time.Time
}

// HasChanged reports whether the position differs from the last stored one. An accuracy
// change alone is not a positional change.
func (s *GeolocationState) HasChanged(c Coordinate) bool {
	if !s.haveLast {
		return true
	}
	return !s.last.SamePosition(c)
}

// Due reports whether c should be emitted. An unchanged position is due again once refresh
// has passed since the last Update, which keeps a stationary position fresh on the bus.
func (s *GeolocationState) Due(c Coordinate, refresh time.Duration) bool {
	return s.HasChanged(c) || time.Since(s.at) >= refresh
}

// Update updates the stored geolocation state with the provided coordinate.
func (s *GeolocationState) Update(new Coordinate) {
	s.last = new
	s.haveLast = true
	s.at = time.Now()
}
