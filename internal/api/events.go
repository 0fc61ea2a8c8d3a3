// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package api

import (
	"sync"

	"github.com/wneessen/placesd/internal/place"
)

// DefaultEventLogSize is the number of change events kept for the events endpoint.
const DefaultEventLogSize = 100

// EventLog keeps the most recent change events in a ring buffer.
type EventLog struct {
	mu     sync.RWMutex
	events []place.Event
	next   int
	full   bool
}

// NewEventLog returns an EventLog holding up to size events.
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{events: make([]place.Event, size)}
}

// Add appends an event, overwriting the oldest one when the log is full.
func (l *EventLog) Add(event place.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[l.next] = event
	l.next = (l.next + 1) % len(l.events)
	if l.next == 0 {
		l.full = true
	}
}

// Recent returns up to n events, newest first. n <= 0 returns all events.
func (l *EventLog) Recent(n int) []place.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := l.next
	if l.full {
		count = len(l.events)
	}
	if n <= 0 || n > count {
		n = count
	}
	out := make([]place.Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.next - i + len(l.events)) % len(l.events)
		out = append(out, l.events[idx])
	}
	return out
}
