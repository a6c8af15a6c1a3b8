//go:build !js

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
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

const defaultICMPTimeout = 3 * time.Second

// ICMPProber sends a single echo request and reports the target reachable when
// a reply arrives. Unprivileged mode needs net.ipv4.ping_group_range on Linux.
type ICMPProber struct {
	Privileged bool
}

func (p *ICMPProber) Probe(ctx context.Context, target string) (bool, error) {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return false, fmt.Errorf("icmp probe %s: %w", target, err)
	}
	pinger.Count = 1
	pinger.Timeout = defaultICMPTimeout
	if deadline, ok := ctx.Deadline(); ok {
		pinger.Timeout = time.Until(deadline)
	}
	pinger.SetPrivileged(p.Privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("icmp probe %s: %w", target, err)
	}
	return pinger.Statistics().PacketsRecv > 0, nil
}

// FromICMP builds an unprivileged ICMP echo probe for host.
func FromICMP(host string, timeout time.Duration) Descriptor {
	return New(host, timeout, &ICMPProber{})
}
