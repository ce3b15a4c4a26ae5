// SPDX-License-Identifier: Apache-2.0

// Package metrics collects the orchestrator's operational counters: the
// rolling login-performance numbers served as JSON, and the Prometheus
// collectors registered on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solanagram/solanagram/models"
)

// rollingWindow is how many recent login latencies feed the average.
const rollingWindow = 10

// LoginMetrics tracks login attempts with a rolling latency window.
// Safe for concurrent use.
type LoginMetrics struct {
	mu         sync.Mutex
	total      int64
	successful int64
	failed     int64
	last       []float64

	loginCounter   *prometheus.CounterVec
	loginLatency   prometheus.Histogram
	floodWaits     prometheus.Counter
	bridgeRejected prometheus.Counter
}

// NewLoginMetrics constructs the collector set and registers it on reg.
func NewLoginMetrics(reg prometheus.Registerer) *LoginMetrics {
	m := &LoginMetrics{
		loginCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solanagram",
			Name:      "login_requests_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		loginLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "solanagram",
			Name:      "login_duration_seconds",
			Help:      "Wall-clock latency of login operations.",
			Buckets:   prometheus.DefBuckets,
		}),
		floodWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "solanagram",
			Name:      "flood_waits_total",
			Help:      "Flood-wait responses surfaced by Telegram.",
		}),
		bridgeRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "solanagram",
			Name:      "bridge_rejected_total",
			Help:      "Operations rejected by the bridge high-water mark.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.loginCounter, m.loginLatency, m.floodWaits, m.bridgeRejected)
	}
	return m
}

// ObserveLogin records one login attempt with its latency.
func (m *LoginMetrics) ObserveLogin(duration time.Duration, success bool) {
	seconds := duration.Seconds()

	m.mu.Lock()
	m.total++
	if success {
		m.successful++
	} else {
		m.failed++
	}
	m.last = append(m.last, seconds)
	if len(m.last) > rollingWindow {
		m.last = m.last[len(m.last)-rollingWindow:]
	}
	m.mu.Unlock()

	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.loginCounter.WithLabelValues(outcome).Inc()
	m.loginLatency.Observe(seconds)
}

// ObserveFloodWait records a flood-wait surfaced to a caller.
func (m *LoginMetrics) ObserveFloodWait() {
	m.floodWaits.Inc()
}

// ObserveBridgeRejected records a SystemBusy rejection.
func (m *LoginMetrics) ObserveBridgeRejected() {
	m.bridgeRejected.Inc()
}

// Snapshot returns the JSON payload of /api/metrics/login-performance.
func (m *LoginMetrics) Snapshot() models.LoginMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := models.LoginMetrics{
		TotalRequests:      m.total,
		SuccessfulRequests: m.successful,
		FailedRequests:     m.failed,
		Last10Times:        append([]float64(nil), m.last...),
	}

	if len(m.last) > 0 {
		var sum float64
		for _, v := range m.last {
			sum += v
		}
		out.AvgTime = sum / float64(len(m.last))
	}

	return out
}
