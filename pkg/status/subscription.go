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

package status

import (
	"sync"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/srediag/reachability/pkg/aggregate"
)

// Subscription receives verdict changes on C until Close is called.
type Subscription struct {
	id   string
	p    *Publisher
	box  *queue.Queue
	size int64
	ch   chan aggregate.Verdict
	done chan struct{}
	once sync.Once
}

func newSubscription(p *Publisher, id string, size uint64) *Subscription {
	s := &Subscription{
		id:   id,
		p:    p,
		box:  queue.New(int64(size)),
		size: int64(size),
		ch:   make(chan aggregate.Verdict),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

// C delivers verdict changes. It is closed after Close.
func (s *Subscription) C() <-chan aggregate.Verdict {
	return s.ch
}

// Close detaches the subscription. Closing the last one stops background
// probing. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.p.unsubscribe(s)
		s.release()
	})
}

// release stops the pump, which closes ch.
func (s *Subscription) release() {
	close(s.done)
	s.box.Dispose()
}

// offer is only called with the publisher lock held, so the length check
// cannot race with another offer. A full mailbox loses its oldest entry so
// the newest verdict is always queued.
func (s *Subscription) offer(v aggregate.Verdict) {
	if s.box.Len() >= s.size {
		if dropped := s.dropOldest(); dropped != nil {
			s.p.log.Warnf("subscriber %s is not draining, dropped %v", s.id, dropped)
		}
	}
	_ = s.box.Put(v)
}

// dropOldest removes the head of the mailbox without waiting. It returns nil
// when the pump emptied the mailbox first.
func (s *Subscription) dropOldest() interface{} {
	taken := false
	items, err := s.box.TakeUntil(func(interface{}) bool {
		if taken {
			return false
		}
		taken = true
		return true
	})
	if err != nil || len(items) == 0 {
		return nil
	}
	return items[0]
}

// pump moves mailbox entries to ch. Dropped entries can leave duplicates in
// the mailbox, so repeats of the last delivered verdict are skipped.
func (s *Subscription) pump() {
	defer close(s.ch)
	last := aggregate.Unknown
	for {
		items, err := s.box.Get(s.size)
		if err != nil {
			return
		}
		for _, item := range items {
			v, ok := item.(aggregate.Verdict)
			if !ok || v == last {
				continue
			}
			select {
			case s.ch <- v:
				last = v
			case <-s.done:
				return
			}
		}
	}
}
