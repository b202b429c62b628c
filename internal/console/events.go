// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package console

import (
	"context"
	"sync"

	"github.com/novakernel/sys/internal/console/vt100"
)

// EventKind discriminates a cons-event, grounded on remcons.c's
// remcons_event_type_t (KBD press/release, POS, RESIZE).
type EventKind int

const (
	EventKeyPress EventKind = iota
	EventKeyRelease
	EventPos
	EventResize
)

// Event is one entry in the session's input-event queue.
type Event struct {
	Kind EventKind

	Mods vt100.KeyMod
	Ch   rune

	Col, Row int
	Pressed  bool
}

// EventQueue is the cons-event queue of spec §4.6: "VT100 callbacks
// enqueue cons-events ... the terminal-client session pulls events via
// a blocking get_event". It is ordered FIFO; GetEvent blocks (subject
// to ctx) until an event is enqueued or the queue is closed.
type EventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []Event
	closed bool
}

// NewEventQueue returns an empty queue ready for use.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an event and wakes one blocked GetEvent, if any.
func (q *EventQueue) Push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.events = append(q.events, e)
	q.cond.Signal()
}

// PushKey enqueues the press+release pair spec §4.6 requires for every
// decoded keystroke.
func (q *EventQueue) PushKey(mods vt100.KeyMod, ch rune) {
	q.Push(Event{Kind: EventKeyPress, Mods: mods, Ch: ch})
	q.Push(Event{Kind: EventKeyRelease, Mods: mods, Ch: ch})
}

// GetEvent blocks until an event is available, the queue is closed, or
// ctx is done. Events are delivered in enqueue order (§5 "Ordering").
func (q *EventQueue) GetEvent(ctx context.Context) (Event, bool) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.events) == 0 && !q.closed {
		if ctx.Err() != nil {
			return Event{}, false
		}
		q.cond.Wait()
	}
	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events = q.events[1:]
	return e, true
}

// Close unblocks any pending GetEvent with a false result.
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
