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

// Package config holds the process-wide probe configuration and the daemon's
// YAML file schema.
//
// The built-in defaults probe public DNS resolvers so the module works out of
// the box. Integrators should replace them with endpoints they control.
package config

import (
	"slices"
	"sync"
	"time"

	"github.com/srediag/reachability/pkg/aggregate"
	"github.com/srediag/reachability/pkg/probe"
)

// DefaultPollInterval is the re-evaluation period used until one is configured.
const DefaultPollInterval = 10 * time.Second

// Config is a snapshot of the probe settings.
type Config struct {
	Probes       []probe.Descriptor
	PollInterval time.Duration
	Policy       aggregate.Policy
}

// DefaultConfig returns the zero-configuration settings.
func DefaultConfig() Config {
	return Config{
		Probes:       probe.Defaults(),
		PollInterval: DefaultPollInterval,
		Policy:       aggregate.AnySucceeds,
	}
}

// Option changes one field of a Config. Fields without an Option keep their
// current value.
type Option func(*Config)

// WithProbes replaces the whole probe list. An empty list is allowed and
// always yields a disconnected verdict.
func WithProbes(probes []probe.Descriptor) Option {
	probes = slices.Clone(probes)
	return func(c *Config) { c.Probes = probes }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

func WithPolicy(p aggregate.Policy) Option {
	return func(c *Config) { c.Policy = p }
}

// WithStrict selects AllSucceed when strict is true, AnySucceeds otherwise.
func WithStrict(strict bool) Option {
	return WithPolicy(aggregate.PolicyFromStrict(strict))
}

// Holder guards the live configuration. Values are not validated; nonsensical
// durations are the caller's problem.
type Holder struct {
	mu  sync.RWMutex
	cfg Config
}

// NewHolder starts from DefaultConfig and applies opts.
func NewHolder(opts ...Option) *Holder {
	h := &Holder{cfg: DefaultConfig()}
	h.Initialize(opts...)
	return h
}

// Initialize applies opts on top of the current configuration. It may be
// called at any time; runs already in progress keep the snapshot they started
// with.
func (h *Holder) Initialize(opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, opt := range opts {
		if opt != nil {
			opt(&h.cfg)
		}
	}
}

// Snapshot returns a copy that later updates do not affect.
func (h *Holder) Snapshot() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.cfg
	c.Probes = slices.Clone(h.cfg.Probes)
	return c
}

func (h *Holder) PollInterval() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg.PollInterval
}

func (h *Holder) SetPollInterval(d time.Duration) {
	h.Initialize(WithPollInterval(d))
}
