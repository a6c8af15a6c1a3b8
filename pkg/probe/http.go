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
	"io"
	"net/http"
)

// HTTPProber issues a HEAD request and reports the target reachable when the
// response status is accepted. Targets are absolute URLs.
type HTTPProber struct {
	Client *http.Client
	// Accept decides which status codes count as reachable; nil accepts 2xx and 3xx.
	Accept func(status int) bool
}

func (p *HTTPProber) Probe(ctx context.Context, target string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false, fmt.Errorf("http probe %s: %w", target, err)
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("http probe %s: %w", target, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	accept := p.Accept
	if accept == nil {
		accept = func(status int) bool { return status >= 200 && status < 400 }
	}
	return accept(resp.StatusCode), nil
}
