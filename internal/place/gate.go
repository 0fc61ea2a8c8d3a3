// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

const (
	// MinDistanceTraveled is the distance in meters below which an update is debounced.
	MinDistanceTraveled = 10.0
	// MaxUpdatesSkipped is the number of debounced updates after which an update is forced.
	MaxUpdatesSkipped = 3
)

// GateReason explains the decision of ShouldUpdate.
type GateReason string

const (
	GateZeroAccuracy  GateReason = "gps accuracy is 0"
	GateInitialUpdate GateReason = "initial update"
	GateUnchanged     GateReason = "location unchanged"
	GateForced        GateReason = "too many skipped updates"
	GateDebounced     GateReason = "distance traveled below threshold"
	GateMoved         GateReason = "location changed"
)

// ShouldUpdate decides whether an update pass may continue past the coordinate stage. The
// first matching rule wins. The debounce rule increments UpdatesSkipped.
func ShouldUpdate(s *State) (bool, GateReason) {
	if s.GPSAccuracy.IsSet() && s.GPSAccuracy.Value() == 0 {
		return false, GateZeroAccuracy
	}
	if s.InitialUpdate {
		return true, GateInitialUpdate
	}
	if s.LocationCurrent == s.LocationPrevious {
		return false, GateUnchanged
	}

	traveled := s.DistanceTraveledM.ValueOr(0)
	if s.DistanceTraveledM.IsSet() && traveled >= 0 && s.UpdatesSkipped > MaxUpdatesSkipped {
		return true, GateForced
	}
	if traveled < MinDistanceTraveled {
		s.UpdatesSkipped++
		return false, GateDebounced
	}
	return true, GateMoved
}
