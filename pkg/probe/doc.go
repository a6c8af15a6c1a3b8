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

// Package probe describes individual reachability checks and ships the TCP,
// HTTP and ICMP probers used to build them.
//
// The default targets are public DNS resolvers reached over TCP/53. They exist
// so the module works with zero configuration; production deployments should
// probe endpoints they operate themselves.
package probe

import "time"

// DefaultTimeout bounds each default probe.
const DefaultTimeout = 3 * time.Second

var defaultResolvers = []string{
	"1.1.1.1",
	"8.8.8.8",
	"9.9.9.9",
}

// Defaults returns a fresh copy of the built-in probe list.
func Defaults() []Descriptor {
	out := make([]Descriptor, 0, len(defaultResolvers))
	for _, host := range defaultResolvers {
		out = append(out, FromHostPort(host, 53, DefaultTimeout))
	}
	return out
}
