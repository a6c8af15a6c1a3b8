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

package api

import (
	"context"
	"time"
)

// Event is an opaque host connectivity change notification. Only its arrival
// matters; Source and At are informational.
type Event struct {
	Source string
	At     time.Time
}

// TriggerSource delivers host connectivity changes such as link up/down or
// address changes.
type TriggerSource interface {
	// Watch subscribes to change events. Cancelling ctx unsubscribes and the
	// returned channel is closed once the source stops delivering.
	Watch(ctx context.Context) (<-chan Event, error)
}

// NopTriggerSource never delivers events. The channel
// closes when ctx is done.
type NopTriggerSource struct{}

func (NopTriggerSource) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
