// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package place

import (
	"time"

	"github.com/google/uuid"

	"github.com/wneessen/placesd/internal/attrs"
)

// EventType is the type of the change event fired after every committed update.
const EventType = "places_state_update"

// Event announces a committed state change of a sensor.
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"event_type"`
	Time      time.Time   `json:"time_fired"`
	UniqueID  string      `json:"unique_id"`
	Entity    string      `json:"entity"`
	FromState string      `json:"from_state,omitempty"`
	ToState   string      `json:"to_state,omitempty"`
	Data      attrs.Store `json:"data"`
}

// newEvent builds the change event for the committed state. prevLastPlaceName is the last
// place name before the update pass.
func newEvent(conf Config, state *State, prevLastPlaceName string, at time.Time) Event {
	full := state.Attributes()
	full.Set(AttrAttribution, Attribution)

	data := attrs.Store{}
	if conf.Name != "" {
		data.Set("entity", conf.Name)
	}
	if state.PreviousState != "" {
		data.Set("from_state", state.PreviousState)
	}
	if state.NativeValue != "" {
		data.Set("to_state", state.NativeValue)
	}
	for _, key := range EventAttributeKeys {
		if v := full.Get(key); v != nil {
			data.Set(key, v)
		}
	}
	if state.LastPlaceName != "" && state.LastPlaceName != prevLastPlaceName {
		data.Set(AttrLastPlaceName, state.LastPlaceName)
	}
	if conf.ExtendedAttr {
		for _, key := range ExtendedAttributeKeys {
			if v := full.Get(key); v != nil {
				data.Set(key, v)
			}
		}
	}

	return Event{
		ID:        uuid.New(),
		Type:      EventType,
		Time:      at,
		UniqueID:  conf.UniqueID,
		Entity:    conf.Name,
		FromState: state.PreviousState,
		ToState:   state.NativeValue,
		Data:      data,
	}
}
