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

// Package connectivity is the entry point of the reachability module. A
// Checker owns the probe configuration, the aggregation engine, the status
// stream and the scheduler. Build one per process and pass it to whoever needs
// connectivity information.
//
//	checker := connectivity.New()
//	defer checker.Close()
//	sub := checker.StatusChanges()
//	defer sub.Close()
//	for v := range sub.C() {
//		log.Println("internet:", v)
//	}
//
// Background probing only happens while at least one subscription is open.
package connectivity

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/reachability/api"
	"github.com/srediag/reachability/internal/logging"
	"github.com/srediag/reachability/internal/metrics"
	"github.com/srediag/reachability/pkg/aggregate"
	"github.com/srediag/reachability/pkg/config"
	"github.com/srediag/reachability/pkg/scheduler"
	"github.com/srediag/reachability/pkg/status"
)

type options struct {
	trigger    api.TriggerSource
	registerer prometheus.Registerer
	tracer     trace.Tracer
	poolSize   int
	mailbox    uint64
	backOff    func() backoff.BackOff
	config     []config.Option
}

type Option func(*options)

// WithTriggerSource re-runs probes on host connectivity changes.
func WithTriggerSource(t api.TriggerSource) Option {
	return func(o *options) { o.trigger = t }
}

// WithRegisterer registers the prometheus collectors on r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func WithPoolSize(n int) Option {
	return func(o *options) { o.poolSize = n }
}

// WithMailboxSize bounds how many undelivered changes each subscriber buffers.
func WithMailboxSize(n uint64) Option {
	return func(o *options) { o.mailbox = n }
}

// WithTriggerBackOff sets the re-attach policy for a failing trigger source.
func WithTriggerBackOff(f func() backoff.BackOff) Option {
	return func(o *options) { o.backOff = f }
}

// WithConfig applies initial configuration, as Initialize would.
func WithConfig(opts ...config.Option) Option {
	return func(o *options) { o.config = append(o.config, opts...) }
}

// Checker is safe for concurrent use.
type Checker struct {
	holder    *config.Holder
	engine    *aggregate.Engine
	publisher *status.Publisher
	scheduler *scheduler.Controller
	log       *logging.Logger
}

func New(opts ...Option) *Checker {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	m := metrics.New(o.registerer)
	engine := aggregate.NewEngine(
		aggregate.WithMetrics(m),
		aggregate.WithTracer(o.tracer),
		aggregate.WithPoolSize(o.poolSize),
	)
	publisher := status.NewPublisher(
		status.WithMetrics(m),
		status.WithMailboxSize(o.mailbox),
	)
	holder := config.NewHolder(o.config...)

	schedOpts := []scheduler.Option{
		scheduler.WithMetrics(m),
		scheduler.WithBackOff(o.backOff),
	}
	if o.trigger != nil {
		schedOpts = append(schedOpts, scheduler.WithTriggerSource(o.trigger))
	}
	sched := scheduler.New(holder, engine, publisher, schedOpts...)
	publisher.SetHooks(status.Hooks{
		OnFirst: sched.Start,
		OnLast:  sched.Stop,
	})

	return &Checker{
		holder:    holder,
		engine:    engine,
		publisher: publisher,
		scheduler: sched,
		log:       logging.New("connectivity"),
	}
}

// Initialize updates the configuration. Omitted fields keep their value and
// the next run uses the result.
func (c *Checker) Initialize(opts ...config.Option) {
	c.holder.Initialize(opts...)
}

// CheckOnce runs every configured probe and returns the verdict. It neither
// publishes nor touches the scheduler.
func (c *Checker) CheckOnce(ctx context.Context) aggregate.Verdict {
	snap := c.holder.Snapshot()
	return c.engine.Run(ctx, snap.Probes, snap.Policy)
}

// HasInternetAccess reports whether CheckOnce yields Connected.
func (c *Checker) HasInternetAccess(ctx context.Context) bool {
	return c.CheckOnce(ctx).Bool()
}

// StatusChanges subscribes to verdict changes. The first subscription
// triggers an immediate run and starts periodic probing; closing the last one
// stops it and forgets the last verdict.
func (c *Checker) StatusChanges() *status.Subscription {
	return c.publisher.Subscribe()
}

// SetPollInterval changes the re-evaluation period and restarts a pending
// timer with it.
func (c *Checker) SetPollInterval(d time.Duration) {
	c.holder.SetPollInterval(d)
	c.scheduler.ResetTimer()
}

// LastKnownStatus returns the last published verdict; ok is false before the
// first run or after the stream lost all subscribers.
func (c *Checker) LastKnownStatus() (v aggregate.Verdict, ok bool) {
	return c.publisher.Current()
}

// Config returns a snapshot of the current configuration.
func (c *Checker) Config() config.Config {
	return c.holder.Snapshot()
}

// Close closes every open subscription, stops background probing and
// releases the probe pool. StatusChanges after Close returns a closed
// subscription.
func (c *Checker) Close() {
	c.publisher.Close()
	c.scheduler.Stop()
	c.engine.Close()
	c.log.Debugf("closed")
}
