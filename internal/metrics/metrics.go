// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes lock activity as Prometheus metrics.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var axisNames = [3]string{"x", "y", "z"}

// Metrics collects enrollment and unlock activity.
type Metrics struct {
	registry *prometheus.Registry

	sessionsTotal   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	samplesCaptured prometheus.Histogram

	correlation *prometheus.GaugeVec
	dtwDistance prometheus.Gauge
	enrolled    prometheus.Gauge

	requestsTotal      *prometheus.CounterVec
	sensorErrorsTotal  prometheus.Counter
	publishErrorsTotal prometheus.Counter
}

// New creates the metrics and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gesture_lock_sessions_total",
			Help: "Completed capture sessions",
		},
		[]string{"kind", "outcome"}, // kind: enroll, authenticate
	)

	m.sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gesture_lock_session_duration_seconds",
			Help: "Time from request to final status",
			// prompt + calibration + 5s window lands between 6s and 8s
			Buckets: []float64{1, 2, 4, 6, 7, 8, 10, 15},
		},
		[]string{"kind"},
	)

	m.samplesCaptured = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gesture_lock_samples_captured",
			Help:    "Samples kept after trimming",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	m.correlation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gesture_lock_last_correlation",
			Help: "Per-axis correlation of the last unlock attempt",
		},
		[]string{"axis"},
	)

	m.dtwDistance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gesture_lock_last_dtw_distance",
		Help: "Warped distance of the last unlock attempt",
	})

	m.enrolled = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gesture_lock_reference_enrolled",
		Help: "1 when a reference gesture is stored",
	})

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gesture_lock_requests_total",
			Help: "Enroll and unlock requests by source",
		},
		[]string{"source", "request"}, // source: touch, mqtt, web
	)

	m.sensorErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gesture_lock_sensor_errors_total",
		Help: "Sensor configuration or read failures",
	})

	m.publishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gesture_lock_publish_errors_total",
		Help: "Failed MQTT publishes",
	})
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.sessionsTotal.Describe(ch)
	m.sessionDuration.Describe(ch)
	m.samplesCaptured.Describe(ch)
	m.correlation.Describe(ch)
	m.dtwDistance.Describe(ch)
	m.enrolled.Describe(ch)
	m.requestsTotal.Describe(ch)
	m.sensorErrorsTotal.Describe(ch)
	m.publishErrorsTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.sessionsTotal.Collect(ch)
	m.sessionDuration.Collect(ch)
	m.samplesCaptured.Collect(ch)
	m.correlation.Collect(ch)
	m.dtwDistance.Collect(ch)
	m.enrolled.Collect(ch)
	m.requestsTotal.Collect(ch)
	m.sensorErrorsTotal.Collect(ch)
	m.publishErrorsTotal.Collect(ch)
}

// RecordSession counts a finished session.
func (m *Metrics) RecordSession(kind, outcome string, samples int, d time.Duration) {
	m.sessionsTotal.WithLabelValues(kind, outcome).Inc()
	m.sessionDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.samplesCaptured.Observe(float64(samples))
}

// RecordMatch stores the scores of the last comparison. NaN axes are kept
// as NaN so a flat attempt is visible as such.
func (m *Metrics) RecordMatch(axes [3]float64, distance float64) {
	for i, r := range axes {
		m.correlation.WithLabelValues(axisNames[i]).Set(r)
	}
	if distance > 0 && !math.IsInf(distance, 0) {
		m.dtwDistance.Set(distance)
	}
}

// SetEnrolled reports whether a reference exists.
func (m *Metrics) SetEnrolled(ok bool) {
	if ok {
		m.enrolled.Set(1)
		return
	}
	m.enrolled.Set(0)
}

// Request counts an incoming enroll or unlock request.
func (m *Metrics) Request(source, request string) {
	m.requestsTotal.WithLabelValues(source, request).Inc()
}

func (m *Metrics) SensorError() { m.sensorErrorsTotal.Inc() }

func (m *Metrics) PublishError() { m.publishErrorsTotal.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
