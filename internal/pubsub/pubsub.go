// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package pubsub provides event pub/sub types compatible with Crush's interface.
package pubsub

import (
	"context"
	"sync"
)

// EventType represents the type of event.
type EventType int

const (
	// CreatedEvent indicates a new item was created.
	CreatedEvent EventType = iota
	// UpdatedEvent indicates an existing item was updated.
	UpdatedEvent
	// DeletedEvent indicates an item was deleted.
	DeletedEvent
)

// Event wraps an event with type information.
// Matches Crush's pubsub.Event[T] pattern.
type Event[T any] struct {
	Type    EventType
	Payload T
}

// NewCreatedEvent creates a new "created" event.
func NewCreatedEvent[T any](payload T) Event[T] {
	return Event[T]{Type: CreatedEvent, Payload: payload}
}

// NewUpdatedEvent creates a new "updated" event.
func NewUpdatedEvent[T any](payload T) Event[T] {
	return Event[T]{Type: UpdatedEvent, Payload: payload}
}

// NewDeletedEvent creates a new "deleted" event.
func NewDeletedEvent[T any](payload T) Event[T] {
	return Event[T]{Type: DeletedEvent, Payload: payload}
}

// defaultBufferSize is the channel buffer given to each subscriber so a
// slow consumer does not block a publisher under normal load.
const defaultBufferSize = 64

// Broker fans out Event[T] values to any number of subscribers. It is the
// delivery mechanism the bare Event[T] type above needs: orchestrator,
// permission, and session state all publish through one of these rather
// than each hand-rolling its own channel bookkeeping.
type Broker[T any] struct {
	mu   sync.RWMutex
	subs map[chan Event[T]]struct{}
	done bool
}

// NewBroker creates an empty Broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[chan Event[T]]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel. The
// channel is closed automatically when ctx is done or the broker is shut
// down; callers must keep draining it until it closes to avoid leaking
// the broker's internal goroutine.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	ch := make(chan Event[T], defaultBufferSize)

	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()

	return ch
}

func (b *Broker[T]) unsubscribe(ch chan Event[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish delivers an event to every current subscriber. A subscriber
// whose buffer is full has the event dropped rather than blocking the
// publisher — subscribers needing lossless delivery should drain
// promptly.
func (b *Broker[T]) Publish(evt Event[T]) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Shutdown closes every subscriber channel and rejects further
// subscriptions.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
