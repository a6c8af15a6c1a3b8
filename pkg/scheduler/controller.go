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

// Package scheduler decides when probes are re-run: once when the status
// stream gains its first subscriber, then on a timer re-armed after every run
// and on host connectivity changes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/reachability/api"
	"github.com/srediag/reachability/internal/logging"
	"github.com/srediag/reachability/internal/metrics"
	"github.com/srediag/reachability/pkg/aggregate"
	"github.com/srediag/reachability/pkg/config"
	"github.com/srediag/reachability/pkg/probe"
)

// State of a Controller.
type State int

const (
	Idle State = iota
	Armed
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	reasonStart   = "start"
	reasonTimer   = "timer"
	reasonTrigger = "trigger"
)

var errTriggerClosed = errors.New("trigger stream closed")

// ConfigSource supplies the settings each run starts with.
type ConfigSource interface {
	Snapshot() config.Config
}

// Runner evaluates probes.
type Runner interface {
	Run(ctx context.Context, probes []probe.Descriptor, policy aggregate.Policy) aggregate.Verdict
}

// Sink receives every verdict.
type Sink interface {
	PublishIfChanged(v aggregate.Verdict) bool
	Reset()
}

// Controller is safe for concurrent use.
type Controller struct {
	cfg        ConfigSource
	runner     Runner
	sink       Sink
	trigger    api.TriggerSource
	newBackOff func() backoff.BackOff
	metrics    *metrics.Metrics
	log        *logging.Logger

	mu          sync.Mutex
	state       State
	epoch       uint64
	timer       *time.Timer
	timerSeq    uint64
	stopTrigger context.CancelFunc
}

type Option func(*Controller)

// WithTriggerSource attaches a connectivity change source while the
// controller is active.
func WithTriggerSource(t api.TriggerSource) Option {
	return func(c *Controller) { c.trigger = t }
}

// WithBackOff sets the policy used to re-attach a failed trigger source.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Controller) {
		if f != nil {
			c.newBackOff = f
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func New(cfg ConfigSource, runner Runner, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg,
		runner:     runner,
		sink:       sink,
		newBackOff: defaultBackOff,
		log:        logging.New("scheduler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start leaves Idle: it attaches the trigger source and runs the probes once.
// The timer is armed when that run completes. Start on an active controller
// does nothing.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return
	}
	c.epoch++
	if c.trigger != nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopTrigger = cancel
		go c.listen(ctx, c.epoch)
	}
	c.log.Debugf("started, epoch %d", c.epoch)
	c.metrics.ObserveWakeup(reasonStart, true)
	c.beginLocked()
}

// Stop returns to Idle from any state: the timer is cancelled, the trigger
// source detached and the last verdict cleared. A run in flight is not
// cancelled but its verdict is discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return
	}
	c.state = Idle
	c.epoch++
	c.stopTimerLocked()
	if c.stopTrigger != nil {
		c.stopTrigger()
		c.stopTrigger = nil
	}
	c.sink.Reset()
	c.log.Debugf("stopped")
}

// ResetTimer re-arms a pending timer with the current poll interval, counted
// from now. It never starts a run. While a run is in flight the new interval
// takes effect when that run completes.
func (c *Controller) ResetTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Armed {
		return
	}
	c.stopTimerLocked()
	c.armLocked()
}

// beginLocked enters Running and evaluates the current configuration in the
// background.
func (c *Controller) beginLocked() {
	c.state = Running
	c.stopTimerLocked()
	snap := c.cfg.Snapshot()
	go c.run(c.epoch, snap)
}

func (c *Controller) run(epoch uint64, snap config.Config) {
	v := c.runner.Run(context.Background(), snap.Probes, snap.Policy)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state != Running {
		c.log.Debugf("discarding %s from a stopped epoch", v)
		return
	}
	c.sink.PublishIfChanged(v)
	c.state = Armed
	c.armLocked()
}

func (c *Controller) armLocked() {
	d := c.cfg.Snapshot().PollInterval
	if d <= 0 {
		d = config.DefaultPollInterval
	}
	c.timerSeq++
	epoch, seq := c.epoch, c.timerSeq
	c.timer = time.AfterFunc(d, func() {
		c.wake(epoch, seq, reasonTimer)
	})
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// invalidates callbacks that already fired
	c.timerSeq++
}

// wake starts a run unless one is in flight. seq is only checked for timer
// wake-ups.
func (c *Controller) wake(epoch, seq uint64, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.state == Idle {
		return
	}
	if reason == reasonTimer && seq != c.timerSeq {
		return
	}
	if c.state == Running {
		c.metrics.ObserveWakeup(reason, false)
		c.log.Tracef("%s wake-up ignored, run in flight", reason)
		return
	}
	c.metrics.ObserveWakeup(reason, true)
	c.beginLocked()
}

// listen keeps the trigger source attached until ctx ends. Failures are
// logged and retried; the timer keeps running meanwhile.
func (c *Controller) listen(ctx context.Context, epoch uint64) {
	b := backoff.WithContext(c.newBackOff(), ctx)
	op := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("trigger source panic: %v", r)
			}
		}()
		events, err := c.trigger.Watch(ctx)
		if err != nil {
			return err
		}
		b.Reset()
		for range events {
			c.wake(epoch, 0, reasonTrigger)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return errTriggerClosed
	}
	notify := func(err error, next time.Duration) {
		c.log.Warnf("trigger source: %v, re-attaching in %s", err, next)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil && ctx.Err() == nil {
		c.log.Warnf("trigger source given up: %v", err)
	}
}
