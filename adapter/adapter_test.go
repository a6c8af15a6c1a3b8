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
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/srediag/reachability/api"
	"github.com/srediag/reachability/pkg/aggregate"
)

type fixedStatus struct {
	v  aggregate.Verdict
	ok bool
}

func (f fixedStatus) LastKnownStatus() (aggregate.Verdict, bool) { return f.v, f.ok }

func serve(h http.Handler, path string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name   string
		status fixedStatus
		ready  int
	}{
		{"connected", fixedStatus{aggregate.Connected, true}, http.StatusOK},
		{"disconnected", fixedStatus{aggregate.Disconnected, true}, http.StatusServiceUnavailable},
		{"unknown", fixedStatus{}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.status, prometheus.NewRegistry())
			assert.Equal(t, http.StatusOK, serve(h, "/live"))
			assert.Equal(t, tc.ready, serve(h, "/ready"))
		})
	}
}

func TestReadinessCheckErrors(t *testing.T) {
	assert.ErrorIs(t, ReadinessCheck(fixedStatus{})(), ErrNotMeasured)
	assert.ErrorIs(t, ReadinessCheck(fixedStatus{aggregate.Disconnected, true})(), ErrDisconnected)
	assert.NoError(t, ReadinessCheck(fixedStatus{aggregate.Connected, true})())
	assert.Equal(t, http.StatusOK, serve(NewHealthHandler(fixedStatus{aggregate.Connected, true}, nil), "/ready"))
}

func TestRegisterOTelMetrics(t *testing.T) {
	reg, err := RegisterOTelMetrics(noop.NewMeterProvider().Meter("test"), fixedStatus{})
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.NoError(t, reg.Unregister())

	assert.Equal(t, int64(-1), verdictValue(aggregate.Connected, false))
	assert.Equal(t, int64(1), verdictValue(aggregate.Connected, true))
	assert.Equal(t, int64(0), verdictValue(aggregate.Disconnected, true))
}

// fakeInterfaces returns whatever table is currently set.
type fakeInterfaces struct {
	mu    sync.Mutex
	table gnet.InterfaceStatList
	err   error
}

func (f *fakeInterfaces) set(table gnet.InterfaceStatList, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table, f.err = table, err
}

func (f *fakeInterfaces) list(context.Context) (gnet.InterfaceStatList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.table, f.err
}

func iface(name string, flags []string, addrs ...string) gnet.InterfaceStat {
	st := gnet.InterfaceStat{Name: name, Flags: flags}
	for _, a := range addrs {
		st.Addrs = append(st.Addrs, gnet.InterfaceAddr{Addr: a})
	}
	return st
}

type InterfaceTriggerTestSuite struct {
	suite.Suite
	fake    *fakeInterfaces
	trigger *InterfaceTrigger
}

func (s *InterfaceTriggerTestSuite) SetupTest() {
	s.fake = &fakeInterfaces{}
	s.fake.set(gnet.InterfaceStatList{iface("eth0", []string{"up"}, "10.0.0.2/24")}, nil)
	s.trigger = &InterfaceTrigger{Interval: 5 * time.Millisecond, list: s.fake.list}
}

func (s *InterfaceTriggerTestSuite) TestEmitsOnChange() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := s.trigger.Watch(ctx)
	s.Require().NoError(err)

	select {
	case ev := <-events:
		s.Failf("unexpected event", "%+v", ev)
	case <-time.After(40 * time.Millisecond):
	}

	s.fake.set(gnet.InterfaceStatList{iface("eth0", []string{"up"}, "10.0.0.3/24")}, nil)
	select {
	case ev := <-events:
		s.Equal("interfaces", ev.Source)
	case <-time.After(2 * time.Second):
		s.Fail("no event after address change")
	}

	cancel()
	s.Eventually(func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *InterfaceTriggerTestSuite) TestInitialListFailure() {
	s.fake.set(nil, errors.New("permission denied"))
	_, err := s.trigger.Watch(context.Background())
	s.Error(err)
}

func (s *InterfaceTriggerTestSuite) TestStreamEndsWhenPollingKeepsFailing() {
	events, err := s.trigger.Watch(context.Background())
	s.Require().NoError(err)
	s.fake.set(nil, errors.New("gone"))
	s.Eventually(func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestInterfaceTriggerTestSuite(t *testing.T) {
	suite.Run(t, new(InterfaceTriggerTestSuite))
}

func TestFingerprintIgnoresOrder(t *testing.T) {
	a := gnet.InterfaceStatList{
		iface("eth0", []string{"up", "broadcast"}, "10.0.0.2/24", "fe80::1/64"),
		iface("lo", []string{"up", "loopback"}, "127.0.0.1/8"),
	}
	b := gnet.InterfaceStatList{
		iface("lo", []string{"loopback", "up"}, "127.0.0.1/8"),
		iface("eth0", []string{"broadcast", "up"}, "fe80::1/64", "10.0.0.2/24"),
	}
	assert.Equal(t, fingerprint(a), fingerprint(b))

	c := gnet.InterfaceStatList{iface("eth0", []string{"broadcast"}, "10.0.0.2/24", "fe80::1/64")}
	assert.NotEqual(t, fingerprint(a), fingerprint(c))
}

type recvResult struct {
	changed bool
	err     error
}

// fakeNetlink replays results and reports a poll timeout when none are queued.
type fakeNetlink struct {
	results chan recvResult
	mu      sync.Mutex
	closed  bool
}

func (f *fakeNetlink) Receive() (bool, error) {
	select {
	case r := <-f.results:
		return r.changed, r.err
	case <-time.After(5 * time.Millisecond):
		return false, nil
	}
}

func (f *fakeNetlink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeNetlink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type NetlinkTriggerTestSuite struct {
	suite.Suite
	conn    *fakeNetlink
	trigger NetlinkTrigger
}

func (s *NetlinkTriggerTestSuite) SetupTest() {
	s.conn = &fakeNetlink{results: make(chan recvResult, 8)}
	s.trigger = NetlinkTrigger{dial: func(time.Duration) (netlinkConn, error) { return s.conn, nil }}
}

func (s *NetlinkTriggerTestSuite) TestDialFailure() {
	dialErr := errors.New("operation not permitted")
	trig := NetlinkTrigger{dial: func(time.Duration) (netlinkConn, error) { return nil, dialErr }}
	events, err := trig.Watch(context.Background())
	s.ErrorIs(err, dialErr)
	s.Nil(events)
}

func (s *NetlinkTriggerTestSuite) TestEmitsOnlyForChanges() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := s.trigger.Watch(ctx)
	s.Require().NoError(err)

	s.conn.results <- recvResult{changed: false}
	s.conn.results <- recvResult{changed: true}
	select {
	case ev := <-events:
		s.Equal("netlink", ev.Source)
	case <-time.After(time.Second):
		s.FailNow("no event for a change")
	}
	select {
	case ev := <-events:
		s.Failf("unexpected event", "%+v", ev)
	case <-time.After(30 * time.Millisecond):
	}
}

func (s *NetlinkTriggerTestSuite) TestBurstCoalesces() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := s.trigger.Watch(ctx)
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		s.conn.results <- recvResult{changed: true}
	}
	s.Eventually(func() bool { return len(s.conn.results) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	received := 0
	for {
		select {
		case <-events:
			received++
			continue
		case <-time.After(30 * time.Millisecond):
		}
		break
	}
	s.Equal(1, received)
}

func (s *NetlinkTriggerTestSuite) TestReceiveErrorEndsStream() {
	events, err := s.trigger.Watch(context.Background())
	s.Require().NoError(err)

	s.conn.results <- recvResult{err: errors.New("netlink recv: bad file descriptor")}
	select {
	case _, open := <-events:
		s.False(open)
	case <-time.After(time.Second):
		s.FailNow("stream not closed after receive error")
	}
	s.Eventually(s.conn.isClosed, time.Second, 5*time.Millisecond)
}

func (s *NetlinkTriggerTestSuite) TestCancelEndsStream() {
	ctx, cancel := context.WithCancel(context.Background())
	events, err := s.trigger.Watch(ctx)
	s.Require().NoError(err)

	cancel()
	select {
	case _, open := <-events:
		s.False(open)
	case <-time.After(time.Second):
		s.FailNow("stream not closed after cancel")
	}
	s.Eventually(s.conn.isClosed, time.Second, 5*time.Millisecond)
}

func TestNetlinkTriggerTestSuite(t *testing.T) {
	suite.Run(t, new(NetlinkTriggerTestSuite))
}

func TestNewTriggerSource(t *testing.T) {
	for _, kind := range []string{"", "netlink", "interfaces", "none"} {
		src, err := NewTriggerSource(kind, time.Second)
		assert.NoError(t, err, kind)
		assert.NotNil(t, src, kind)
	}
	_, err := NewTriggerSource("dbus", time.Second)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := api.NopTriggerSource{}.Watch(ctx)
	require.NoError(t, err)
	cancel()
	_, open := <-events
	assert.False(t, open)
}
