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
	"net"
)

// TCPProber reports a target reachable when a TCP connection to it can be
// established. Targets are "host:port".
type TCPProber struct {
	// Dialer is used for connecting; the zero value uses a default net.Dialer.
	Dialer *net.Dialer
}

func (p *TCPProber) Probe(ctx context.Context, target string) (bool, error) {
	d := p.Dialer
	if d == nil {
		d = &net.Dialer{}
	}
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return false, fmt.Errorf("tcp connect %s: %w", target, err)
	}
	_ = conn.Close()
	return true, nil
}
