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

// Package aggregate runs a list of probes concurrently and folds their
// outcomes into a single verdict.
package aggregate

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/reachability/internal/logging"
	"github.com/srediag/reachability/internal/metrics"
	"github.com/srediag/reachability/pkg/probe"
)

// DefaultPoolSize is the number of pooled probe workers. Probes beyond it run
// on their own goroutines.
const DefaultPoolSize = 64

// Engine is safe for concurrent use. Runs share the worker pool and nothing else.
type Engine struct {
	pool    *ants.Pool
	tracer  trace.Tracer
	metrics *metrics.Metrics
	log     *logging.Logger
	size    int
}

type Option func(*Engine)

func WithPoolSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.size = n
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine builds an Engine. If the worker pool cannot be created every probe
// runs on its own goroutine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tracer: noop.NewTracerProvider().Tracer(""),
		log:    logging.New("aggregate"),
		size:   DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	pool, err := ants.NewPool(e.size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			e.log.Errorf("probe worker panic: %v", p)
		}),
	)
	if err != nil {
		e.log.Warnf("probe pool unavailable, using goroutines: %v", err)
	} else {
		e.pool = pool
	}
	return e
}

// Run invokes every probe concurrently and returns the verdict as soon as it
// is decided. It never fails: errors and panics from a probe count as a failed
// probe, and cancelling ctx yields Disconnected. Probes still pending when the
// verdict is known are cancelled and their results discarded.
//
// No run-wide timeout is applied. A probe without its own timeout that never
// returns stalls the run.
func (e *Engine) Run(ctx context.Context, probes []probe.Descriptor, policy Policy) Verdict {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "aggregate.Run", trace.WithAttributes(
		attribute.Int("probe.count", len(probes)),
		attribute.String("policy", policy.String()),
	))
	defer span.End()

	v, succeeded := e.run(ctx, probes, policy)

	span.SetAttributes(
		attribute.String("verdict", v.String()),
		attribute.Int("probe.succeeded", succeeded),
	)
	e.metrics.ObserveRun(v.String(), time.Since(start))
	e.log.Debugf("run finished: %d probes, policy %s, %d succeeded, verdict %s",
		len(probes), policy, succeeded, v)
	return v
}

func (e *Engine) run(ctx context.Context, probes []probe.Descriptor, policy Policy) (Verdict, int) {
	if len(probes) == 0 {
		return Disconnected, 0
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so abandoned probes never block on send.
	results := make(chan bool, len(probes))
	for _, d := range probes {
		d := d // per-iteration copy; module targets go 1.21 loop semantics
		e.submit(func() {
			results <- e.settle(runCtx, d)
		})
	}
	return decide(ctx, results, len(probes), policy)
}

// decide applies the combination rule after every settled probe.
func decide(ctx context.Context, results <-chan bool, total int, policy Policy) (Verdict, int) {
	outstanding, succeeded := total, 0
	for outstanding > 0 {
		select {
		case <-ctx.Done():
			return Disconnected, succeeded
		case ok := <-results:
			outstanding--
			if ok {
				succeeded++
			}
			if policy == AnySucceeds && succeeded > 0 {
				return Connected, succeeded
			}
		}
	}
	if policy == AllSucceed {
		if succeeded == total {
			return Connected, succeeded
		}
		return Disconnected, succeeded
	}
	if succeeded > 0 {
		return Connected, succeeded
	}
	return Disconnected, succeeded
}

func (e *Engine) settle(ctx context.Context, d probe.Descriptor) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warnf("probe %s panicked: %v", d.Target(), r)
			ok = false
		}
		// abandoned probes are not reported
		if ctx.Err() == nil {
			e.metrics.ObserveProbe(d.Target(), ok)
		}
	}()
	ok, err := d.Run(ctx)
	if err != nil {
		e.log.Tracef("probe %s failed: %v", d.Target(), err)
		return false
	}
	return ok
}

func (e *Engine) submit(task func()) {
	if e.pool != nil {
		if err := e.pool.Submit(task); err == nil {
			return
		}
	}
	go task()
}

// Close releases the worker pool. Runs started afterwards still work.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}
