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

// Package adapter integrates reachability with external systems: host network
// change sources, health endpoints and OpenTelemetry.
package adapter

import (
	"errors"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/reachability/pkg/aggregate"
)

var (
	// ErrNotMeasured means no verdict is known, usually because nobody
	// subscribes to the status stream.
	ErrNotMeasured  = errors.New("connectivity not measured yet")
	ErrDisconnected = errors.New("connectivity: disconnected")
)

// DefaultGoroutineThreshold fails liveness when exceeded.
const DefaultGoroutineThreshold = 10000

// StatusReader exposes the last known verdict. *connectivity.Checker
// implements it.
type StatusReader interface {
	LastKnownStatus() (aggregate.Verdict, bool)
}

// ReadinessCheck fails unless the last known verdict is Connected.
func ReadinessCheck(r StatusReader) healthcheck.Check {
	return func() error {
		v, ok := r.LastKnownStatus()
		if !ok {
			return ErrNotMeasured
		}
		if v != aggregate.Connected {
			return ErrDisconnected
		}
		return nil
	}
}

// NewHealthHandler serves /live and /ready. With a non-nil reg the check
// results are also exported as prometheus gauges.
func NewHealthHandler(r StatusReader, reg prometheus.Registerer) healthcheck.Handler {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, "reachability")
	} else {
		h = healthcheck.NewHandler()
	}
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(DefaultGoroutineThreshold))
	h.AddReadinessCheck("connectivity", ReadinessCheck(r))
	return h
}
