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

package aggregate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/srediag/reachability/internal/metrics"
	"github.com/srediag/reachability/pkg/probe"
)

func constant(name string, ok bool) probe.Descriptor {
	return probe.FromFunc(name, time.Second, func(context.Context) (bool, error) {
		return ok, nil
	})
}

func failing(name string) probe.Descriptor {
	return probe.FromFunc(name, time.Second, func(context.Context) (bool, error) {
		return false, errors.New("boom")
	})
}

// blocking waits until its context ends and reports cancellation on cancelled.
func blocking(name string, cancelled chan<- struct{}) probe.Descriptor {
	return probe.FromFunc(name, 0, func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		if cancelled != nil {
			close(cancelled)
		}
		return true, nil
	})
}

type EngineTestSuite struct {
	suite.Suite
	engine *Engine
}

func (s *EngineTestSuite) SetupTest() {
	s.engine = NewEngine()
}

func (s *EngineTestSuite) TearDownTest() {
	s.engine.Close()
}

func (s *EngineTestSuite) run(probes []probe.Descriptor, policy Policy) Verdict {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.engine.Run(ctx, probes, policy)
}

func (s *EngineTestSuite) TestAnySucceedsMixed() {
	v := s.run([]probe.Descriptor{constant("up", true), constant("down", false)}, AnySucceeds)
	s.Equal(Connected, v)
}

func (s *EngineTestSuite) TestAllSucceedMixed() {
	v := s.run([]probe.Descriptor{constant("up", true), constant("down", false)}, AllSucceed)
	s.Equal(Disconnected, v)
}

func (s *EngineTestSuite) TestAllSucceedAllTrue() {
	v := s.run([]probe.Descriptor{constant("a", true), constant("b", true), constant("c", true)}, AllSucceed)
	s.Equal(Connected, v)
}

func (s *EngineTestSuite) TestAnySucceedsAllFalse() {
	v := s.run([]probe.Descriptor{constant("a", false), failing("b")}, AnySucceeds)
	s.Equal(Disconnected, v)
}

func (s *EngineTestSuite) TestEmptyListNeverInvokes() {
	for _, policy := range []Policy{AnySucceeds, AllSucceed} {
		s.Equal(Disconnected, s.run(nil, policy))
		s.Equal(Disconnected, s.run([]probe.Descriptor{}, policy))
	}
}

func (s *EngineTestSuite) TestFailingProbeFoldsToFalse() {
	s.Equal(Disconnected, s.run([]probe.Descriptor{failing("err")}, AnySucceeds))

	// (true, err) still counts as a failure
	lying := probe.FromFunc("lying", time.Second, func(context.Context) (bool, error) {
		return true, errors.New("partial")
	})
	s.Equal(Disconnected, s.run([]probe.Descriptor{lying}, AnySucceeds))
}

func (s *EngineTestSuite) TestPanickingProbeFoldsToFalse() {
	p := probe.FromFunc("panic", time.Second, func(context.Context) (bool, error) {
		panic("probe exploded")
	})
	s.NotPanics(func() {
		s.Equal(Disconnected, s.run([]probe.Descriptor{p}, AnySucceeds))
		s.Equal(Connected, s.run([]probe.Descriptor{p, constant("up", true)}, AnySucceeds))
	})
}

func (s *EngineTestSuite) TestShortCircuitCancelsPending() {
	cancelled := make(chan struct{})
	v := s.run([]probe.Descriptor{blocking("stuck", cancelled), constant("up", true)}, AnySucceeds)
	s.Equal(Connected, v)
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		s.Fail("pending probe was not cancelled after the verdict")
	}
}

func (s *EngineTestSuite) TestAllSucceedWaitsForEveryProbe() {
	release := make(chan struct{})
	var settled atomic.Int32
	slow := probe.FromFunc("slow", 0, func(context.Context) (bool, error) {
		<-release
		settled.Add(1)
		return false, nil
	})
	done := make(chan Verdict, 1)
	go func() { done <- s.run([]probe.Descriptor{constant("up", true), slow}, AllSucceed) }()

	select {
	case <-done:
		s.Fail("verdict decided before every probe settled")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	s.Equal(Disconnected, <-done)
	s.EqualValues(1, settled.Load())
}

func (s *EngineTestSuite) TestCallerCancelYieldsDisconnected() {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	v := s.engine.Run(ctx, []probe.Descriptor{
		probe.FromFunc("ignores-ctx", 0, func(context.Context) (bool, error) {
			select {}
		}),
	}, AllSucceed)
	s.Equal(Disconnected, v)
}

func (s *EngineTestSuite) TestProbesRunConcurrentlyBeyondPoolSize() {
	engine := NewEngine(WithPoolSize(1))
	defer engine.Close()

	const n = 5
	var barrier sync.WaitGroup
	barrier.Add(n)
	probes := make([]probe.Descriptor, 0, n)
	for i := 0; i < n; i++ {
		probes = append(probes, probe.FromFunc("barrier", 0, func(context.Context) (bool, error) {
			barrier.Done()
			barrier.Wait()
			return true, nil
		}))
	}

	done := make(chan Verdict, 1)
	go func() { done <- engine.Run(context.Background(), probes, AllSucceed) }()
	select {
	case v := <-done:
		s.Equal(Connected, v)
	case <-time.After(5 * time.Second):
		s.Fail("probes did not run concurrently")
	}
}

func (s *EngineTestSuite) TestMetricsRecorded() {
	reg := prometheus.NewRegistry()
	engine := NewEngine(WithMetrics(metrics.New(reg)))
	defer engine.Close()

	engine.Run(context.Background(), []probe.Descriptor{constant("a", true), constant("b", true)}, AllSucceed)
	engine.Run(context.Background(), nil, AnySucceeds)

	count, err := testutil.GatherAndCount(reg, "reachability_runs_total")
	s.Require().Nil(err)
	s.Equal(2, count)
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func TestPolicyParsing(t *testing.T) {
	cases := map[string]Policy{"any": AnySucceeds, "strict": AllSucceed, "ALL": AllSucceed, "": AnySucceeds}
	for in, want := range cases {
		got, err := ParsePolicy(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePolicy("most")
	assert.Error(t, err)
	assert.Equal(t, AllSucceed, PolicyFromStrict(true))
	assert.Equal(t, AnySucceeds, PolicyFromStrict(false))
}
