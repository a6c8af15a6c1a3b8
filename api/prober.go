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

// Package api defines public API contracts for reachability.
package api

import (
	"context"
)

// Prober checks whether a single target is reachable.
type Prober interface {
	// Probe reports whether target answered before ctx expired.
	Probe(ctx context.Context, target string) (bool, error)
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, target string) (bool, error)

func (f ProberFunc) Probe(ctx context.Context, target string) (bool, error) {
	return f(ctx, target)
}
