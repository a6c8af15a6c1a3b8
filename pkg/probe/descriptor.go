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

package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/srediag/reachability/api"
)

// ErrNoProbeFunc is returned by Run on a zero Descriptor.
var ErrNoProbeFunc = errors.New("probe: descriptor has no probe function")

// ProbeFunc reports the outcome of one reachability check. Any error counts as
// an unreachable target.
type ProbeFunc func(ctx context.Context) (bool, error)

// Descriptor describes one reachability check. It is immutable once built and
// safe to share between goroutines.
type Descriptor struct {
	target  string
	timeout time.Duration
	run     ProbeFunc
}

// FromFunc wraps an arbitrary probe function.
func FromFunc(target string, timeout time.Duration, fn ProbeFunc) Descriptor {
	return Descriptor{target: target, timeout: timeout, run: fn}
}

// New binds prober to target. A nil prober selects DefaultProber.
func New(target string, timeout time.Duration, prober api.Prober) Descriptor {
	if prober == nil {
		prober = DefaultProber()
	}
	return FromFunc(target, timeout, func(ctx context.Context) (bool, error) {
		return prober.Probe(ctx, target)
	})
}

// FromHostPort builds a TCP connect probe for host:port.
func FromHostPort(host string, port int, timeout time.Duration) Descriptor {
	return New(net.JoinHostPort(host, strconv.Itoa(port)), timeout, &TCPProber{})
}

// FromURL builds an HTTP HEAD probe for url.
func FromURL(url string, timeout time.Duration) Descriptor {
	return New(url, timeout, &HTTPProber{})
}

func (d Descriptor) Target() string { return d.target }

func (d Descriptor) Timeout() time.Duration { return d.timeout }

// Run invokes the probe function with the descriptor's own timeout applied to
// ctx. A non-positive timeout leaves ctx untouched, so a probe that ignores
// cancellation can run forever.
func (d Descriptor) Run(ctx context.Context) (bool, error) {
	if d.run == nil {
		return false, ErrNoProbeFunc
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.run(ctx)
}

func (d Descriptor) String() string {
	return d.target + " (timeout " + d.timeout.String() + ")"
}
