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
	"fmt"
	"strings"
)

// Policy combines individual probe outcomes into a verdict.
type Policy int

const (
	// AnySucceeds reports connected as soon as one probe succeeds.
	AnySucceeds Policy = iota
	// AllSucceed reports connected only when every probe succeeds ("strict").
	AllSucceed
)

// PolicyFromStrict maps the strict flag to a Policy.
func PolicyFromStrict(strict bool) Policy {
	if strict {
		return AllSucceed
	}
	return AnySucceeds
}

func (p Policy) String() string {
	switch p {
	case AnySucceeds:
		return "any"
	case AllSucceed:
		return "all"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts "any"/"permissive" and "all"/"strict".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any", "permissive", "":
		return AnySucceeds, nil
	case "all", "strict":
		return AllSucceed, nil
	}
	return AnySucceeds, fmt.Errorf("aggregate: unknown policy %q", s)
}

// Verdict is the aggregated outcome of one run. Unknown only appears where no
// run has been recorded yet.
type Verdict int

const (
	Unknown Verdict = iota
	Connected
	Disconnected
)

func (v Verdict) String() string {
	switch v {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Bool reports whether v is Connected.
func (v Verdict) Bool() bool { return v == Connected }
