//go:build js

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
	"errors"
	"time"
)

var errICMPUnsupported = errors.New("icmp probe: not supported on js/wasm")

// ICMPProber always fails under js/wasm.
type ICMPProber struct {
	Privileged bool
}

func (p *ICMPProber) Probe(context.Context, string) (bool, error) {
	return false, errICMPUnsupported
}

func FromICMP(host string, timeout time.Duration) Descriptor {
	return New(host, timeout, &ICMPProber{})
}
