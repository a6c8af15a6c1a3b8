/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics holds the prometheus collectors of the reachability engine.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reachability"

// Metrics is safe to use as a nil pointer; every method then does nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	probeResults *prometheus.CounterVec
	verdict      prometheus.Gauge
	subscribers  prometheus.Gauge
	wakeups      *prometheus.CounterVec
	emitted      prometheus.Counter
}

// New builds the collectors and registers them on reg. A nil reg leaves them
// unregistered. Collectors already registered on reg are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Aggregation runs by resulting verdict.",
		}, []string{"verdict"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Time from the start of an aggregation run until its verdict.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		probeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_results_total",
			Help:      "Settled probe outcomes by target.",
		}, []string{"target", "outcome"}),
		verdict: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "verdict",
			Help:      "Last published verdict: 1 connected, 0 disconnected, -1 unknown.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Active status stream subscribers.",
		}),
		wakeups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_wakeups_total",
			Help:      "Scheduler wake-ups by reason and whether they started a run.",
		}, []string{"reason", "started"}),
		emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Verdict changes emitted to subscribers.",
		}),
	}
	m.verdict.Set(-1)
	if reg == nil {
		return m
	}
	m.runs = register(reg, m.runs)
	m.runDuration = register(reg, m.runDuration)
	m.probeResults = register(reg, m.probeResults)
	m.verdict = register(reg, m.verdict)
	m.subscribers = register(reg, m.subscribers)
	m.wakeups = register(reg, m.wakeups)
	m.emitted = register(reg, m.emitted)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) ObserveRun(verdict string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(verdict).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveProbe(target string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.probeResults.WithLabelValues(target, outcome).Inc()
}

// SetVerdict records 1 for connected, 0 for disconnected and -1 for unknown.
func (m *Metrics) SetVerdict(v float64) {
	if m == nil {
		return
	}
	m.verdict.Set(v)
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *Metrics) ObserveWakeup(reason string, started bool) {
	if m == nil {
		return
	}
	s := "false"
	if started {
		s = "true"
	}
	m.wakeups.WithLabelValues(reason, s).Inc()
}

func (m *Metrics) IncEmitted() {
	if m == nil {
		return
	}
	m.emitted.Inc()
}
