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

// Package status keeps the last known verdict and broadcasts verdict changes
// to subscribers.
package status

import (
	"strconv"
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/srediag/reachability/internal/logging"
	"github.com/srediag/reachability/internal/metrics"
	"github.com/srediag/reachability/pkg/aggregate"
)

// DefaultMailboxSize is the per-subscriber backlog before verdicts are dropped.
const DefaultMailboxSize = 16

// Hooks observe subscriber-count transitions. OnFirst runs when the count goes
// from zero to one, OnLast when it returns to zero. Calls are serialized with
// Subscribe and Close, so hooks must not subscribe or close subscriptions.
type Hooks struct {
	OnFirst func()
	OnLast  func()
}

// Publisher is safe for concurrent use.
type Publisher struct {
	// lifecycle serializes subscriber-count transitions and their hooks.
	lifecycle sync.Mutex
	hooks     Hooks
	closed    bool

	mu   sync.Mutex
	last aggregate.Verdict

	subs        cmap.ConcurrentMap[string, *Subscription]
	nextID      atomic.Uint64
	mailboxSize uint64

	metrics *metrics.Metrics
	log     *logging.Logger
}

type Option func(*Publisher)

func WithHooks(h Hooks) Option {
	return func(p *Publisher) { p.hooks = h }
}

func WithMailboxSize(n uint64) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.mailboxSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{
		subs:        cmap.New[*Subscription](),
		mailboxSize: DefaultMailboxSize,
		log:         logging.New("status"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetHooks replaces the transition hooks.
func (p *Publisher) SetHooks(h Hooks) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.hooks = h
}

// PublishIfChanged records v as the last verdict and emits it when at least
// one subscriber exists and v differs from the previous verdict. It reports
// whether v was emitted.
func (p *Publisher) PublishIfChanged(v aggregate.Verdict) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := p.last == aggregate.Unknown || p.last != v
	p.last = v
	p.metrics.SetVerdict(gaugeValue(v))
	if !changed || p.subs.IsEmpty() {
		return false
	}
	for _, sub := range p.subs.Items() {
		sub.offer(v)
	}
	p.metrics.IncEmitted()
	p.log.Debugf("status changed to %s", v)
	return true
}

// Current returns the last verdict; ok is false when none has been recorded
// since the stream was last observed.
func (p *Publisher) Current() (v aggregate.Verdict, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.last != aggregate.Unknown
}

// Subscribers returns the number of open subscriptions.
func (p *Publisher) Subscribers() int {
	return p.subs.Count()
}

// Subscribe opens a subscription. The first subscription runs OnFirst. After
// Close the returned subscription's channel is already closed.
func (p *Publisher) Subscribe() *Subscription {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	sub := newSubscription(p, strconv.FormatUint(p.nextID.Add(1), 10), p.mailboxSize)
	if p.closed {
		sub.once.Do(sub.release)
		return sub
	}
	p.subs.Set(sub.id, sub)
	n := p.subs.Count()
	p.metrics.SetSubscribers(n)
	if n == 1 && p.hooks.OnFirst != nil {
		p.hooks.OnFirst()
	}
	return sub
}

func (p *Publisher) unsubscribe(sub *Subscription) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.subs.Has(sub.id) {
		return
	}
	p.subs.Remove(sub.id)
	n := p.subs.Count()
	p.metrics.SetSubscribers(n)
	if n > 0 {
		return
	}
	if p.hooks.OnLast != nil {
		p.hooks.OnLast()
	}
	p.Reset()
}

// Close closes every open subscription, so their channels close and OnLast
// runs. Later subscriptions are closed on arrival.
func (p *Publisher) Close() {
	p.lifecycle.Lock()
	p.closed = true
	p.lifecycle.Unlock()

	for _, sub := range p.subs.Items() {
		sub.Close()
	}
}

// Reset forgets the last verdict.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = aggregate.Unknown
	p.metrics.SetVerdict(gaugeValue(aggregate.Unknown))
}

func gaugeValue(v aggregate.Verdict) float64 {
	switch v {
	case aggregate.Connected:
		return 1
	case aggregate.Disconnected:
		return 0
	default:
		return -1
	}
}
