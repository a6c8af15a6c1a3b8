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

package adapter

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/srediag/reachability/pkg/aggregate"
)

// RegisterOTelMetrics exports the last known verdict as the observable gauge
// "reachability.verdict" (1 connected, 0 disconnected, -1 unknown). Call
// Unregister on the result to detach.
func RegisterOTelMetrics(meter metric.Meter, r StatusReader) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge("reachability.verdict",
		metric.WithDescription("Last known connectivity verdict."),
	)
	if err != nil {
		return nil, err
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, verdictValue(r.LastKnownStatus()))
		return nil
	}, gauge)
}

func verdictValue(v aggregate.Verdict, ok bool) int64 {
	switch {
	case !ok:
		return -1
	case v == aggregate.Connected:
		return 1
	default:
		return 0
	}
}
