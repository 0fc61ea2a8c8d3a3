// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus metrics of placesd.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wneessen/placesd/internal/place"
)

const namespace = "placesd"

// Metrics holds the collectors on a dedicated registry.
type Metrics struct {
	registry  *prometheus.Registry
	updates   *prometheus.CounterVec
	requests  *prometheus.CounterVec
	events    *prometheus.CounterVec
	locations *prometheus.CounterVec
}

// New registers the collectors and the Go runtime collectors on a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_updates_total",
			Help:      "Update passes per sensor and outcome",
		}, []string{"sensor", "outcome"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to the geocoding services per endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Change events fired per sensor",
		}, []string{"sensor"}),
		locations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_locations_total",
			Help:      "Location updates received per tracker",
		}, []string{"tracker"}),
	}
}

// ObserveUpdate counts an update pass.
func (m *Metrics) ObserveUpdate(sensor string, outcome place.Outcome) {
	m.updates.WithLabelValues(sensor, string(outcome)).Inc()
}

// ObserveEvent counts a fired change event.
func (m *Metrics) ObserveEvent(sensor string) {
	m.events.WithLabelValues(sensor).Inc()
}

// ObserveRequest counts a request to a geocoding service.
func (m *Metrics) ObserveRequest(endpoint, outcome string) {
	m.requests.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveLocation counts a location update of a tracker.
func (m *Metrics) ObserveLocation(tracker string) {
	m.locations.WithLabelValues(tracker).Inc()
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
