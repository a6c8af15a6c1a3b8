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
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/srediag/reachability/api"
	"github.com/srediag/reachability/internal/logging"
	"github.com/srediag/reachability/internal/netlink"
)

const (
	// DefaultInterfacePoll is how often InterfaceTrigger lists interfaces.
	DefaultInterfacePoll = 5 * time.Second

	netlinkPollTimeout = time.Second
	interfaceRetries   = 3
)

var log = logging.New("adapter")

// NetlinkTrigger delivers an event for every rtnetlink link, address or route
// change. Only available on Linux.
type NetlinkTrigger struct {
	dial func(pollTimeout time.Duration) (netlinkConn, error)
}

type netlinkConn interface {
	Receive() (bool, error)
	Close() error
}

func dialNetlink(pollTimeout time.Duration) (netlinkConn, error) {
	return netlink.Dial(pollTimeout)
}

func (t NetlinkTrigger) Watch(ctx context.Context) (<-chan api.Event, error) {
	dial := t.dial
	if dial == nil {
		dial = dialNetlink
	}
	conn, err := dial(netlinkPollTimeout)
	if err != nil {
		return nil, err
	}
	// one slot: bursts of kernel messages collapse into a single event
	out := make(chan api.Event, 1)
	go func() {
		defer close(out)
		defer func() { _ = conn.Close() }()
		for ctx.Err() == nil {
			changed, err := conn.Receive()
			if err != nil {
				log.Warnf("netlink watch ended: %v", err)
				return
			}
			if changed {
				emit(out, "netlink")
			}
		}
	}()
	return out, nil
}

// InterfaceTrigger polls the host interface table and delivers an event when
// names, flags or addresses change.
type InterfaceTrigger struct {
	Interval time.Duration

	list func(ctx context.Context) (gnet.InterfaceStatList, error)
}

func NewInterfaceTrigger(interval time.Duration) *InterfaceTrigger {
	if interval <= 0 {
		interval = DefaultInterfacePoll
	}
	return &InterfaceTrigger{Interval: interval, list: gnet.InterfacesWithContext}
}

func (t *InterfaceTrigger) Watch(ctx context.Context) (<-chan api.Event, error) {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultInterfacePoll
	}
	list := t.list
	if list == nil {
		list = gnet.InterfacesWithContext
	}
	prev, err := t.snapshot(ctx, list)
	if err != nil {
		return nil, err
	}

	out := make(chan api.Event, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			var cur string
			op := func() error {
				var err error
				cur, err = t.snapshot(ctx, list)
				return err
			}
			b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval/4), interfaceRetries), ctx)
			if err := backoff.Retry(op, b); err != nil {
				if ctx.Err() == nil {
					log.Warnf("interface poll failed: %v", err)
				}
				return
			}
			if cur != prev {
				prev = cur
				emit(out, "interfaces")
			}
		}
	}()
	return out, nil
}

func (t *InterfaceTrigger) snapshot(ctx context.Context, list func(context.Context) (gnet.InterfaceStatList, error)) (string, error) {
	ifaces, err := list(ctx)
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	return fingerprint(ifaces), nil
}

// fingerprint is independent of interface and address ordering.
func fingerprint(ifaces gnet.InterfaceStatList) string {
	lines := make([]string, 0, len(ifaces))
	for _, iface := range ifaces {
		flags := append([]string(nil), iface.Flags...)
		sort.Strings(flags)
		addrs := make([]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
		sort.Strings(addrs)
		lines = append(lines, iface.Name+"|"+strings.Join(flags, ",")+"|"+strings.Join(addrs, ","))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func emit(out chan<- api.Event, source string) {
	select {
	case out <- api.Event{Source: source, At: time.Now()}:
	default:
	}
}

// NewTriggerSource maps a configured kind to a source. The empty kind picks
// netlink on Linux and interface polling elsewhere; "none" disables triggers.
func NewTriggerSource(kind string, pollInterval time.Duration) (api.TriggerSource, error) {
	switch kind {
	case "":
		if runtime.GOOS == "linux" {
			return NetlinkTrigger{}, nil
		}
		return NewInterfaceTrigger(pollInterval), nil
	case "netlink":
		return NetlinkTrigger{}, nil
	case "interfaces":
		return NewInterfaceTrigger(pollInterval), nil
	case "none":
		return api.NopTriggerSource{}, nil
	}
	return nil, fmt.Errorf("adapter: unknown trigger source %q", kind)
}
