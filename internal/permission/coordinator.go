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
package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/weaveloop/weave/internal/pubsub"
)

// entry is the coordinator's bookkeeping for one in-flight Request.
type entry struct {
	req      Request
	state    State
	done     chan Resolution
	question string
}

// Coordinator is the default, in-process Service implementation. Each
// session has at most one Pending (or Explaining) request at a time;
// further requests for the same session queue behind it, matching the
// spec's single in-flight approval slot.
type Coordinator struct {
	mu sync.Mutex

	current map[string]*entry   // sessionID -> current pending/explaining entry
	queue    map[string][]*entry // sessionID -> queued entries awaiting a slot
	byID     map[string]*entry   // requestID -> entry, for Resolve/Explain lookup

	skip    map[string]bool            // sessionID -> skip-requests override
	always  map[string]map[string]bool // sessionID -> toolName -> always approved

	requests      *pubsub.Broker[Request]
	notifications *pubsub.Broker[Notification]
	explains      *pubsub.Broker[ExplainRequest]
}

var _ Service = (*Coordinator)(nil)

// NewCoordinator creates an empty Approval Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		current:       make(map[string]*entry),
		queue:         make(map[string][]*entry),
		byID:          make(map[string]*entry),
		skip:          make(map[string]bool),
		always:        make(map[string]map[string]bool),
		requests:      pubsub.NewBroker[Request](),
		notifications: pubsub.NewBroker[Notification](),
		explains:      pubsub.NewBroker[ExplainRequest](),
	}
}

// RequestApproval implements Service.
func (c *Coordinator) RequestApproval(ctx context.Context, req Request) (Resolution, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	c.mu.Lock()
	if c.skip[req.SessionID] || c.always[req.SessionID][req.ToolName] {
		c.mu.Unlock()
		return ResolutionApprove, nil
	}

	e := &entry{req: req, state: StatePending, done: make(chan Resolution, 1)}
	c.byID[req.ID] = e

	if _, busy := c.current[req.SessionID]; busy {
		c.queue[req.SessionID] = append(c.queue[req.SessionID], e)
		c.mu.Unlock()
	} else {
		c.current[req.SessionID] = e
		c.mu.Unlock()
		c.requests.Publish(pubsub.NewCreatedEvent(req))
	}

	select {
	case res := <-e.done:
		return res, nil
	case <-ctx.Done():
		c.abandon(e)
		return "", ctx.Err()
	}
}

// Resolve implements Service.
func (c *Coordinator) Resolve(requestID string, resolution Resolution) error {
	c.mu.Lock()
	e, ok := c.byID[requestID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("permission: unknown request %q", requestID)
	}
	if c.current[e.req.SessionID] != e {
		c.mu.Unlock()
		return fmt.Errorf("permission: request %q is not the session's current pending request", requestID)
	}
	if resolution == ResolutionAlways {
		if c.always[e.req.SessionID] == nil {
			c.always[e.req.SessionID] = make(map[string]bool)
		}
		c.always[e.req.SessionID][e.req.ToolName] = true
	}

	delete(c.byID, requestID)
	delete(c.current, e.req.SessionID)
	c.promoteNext(e.req.SessionID)
	c.mu.Unlock()

	c.notifications.Publish(pubsub.NewCreatedEvent(Notification{
		ToolCallID: e.req.ToolCallID,
		Resolution: resolution,
	}))
	e.done <- resolution
	return nil
}

// Explain implements Service: moves the current pending request into
// StateExplaining without resolving it.
func (c *Coordinator) Explain(requestID, question string) error {
	c.mu.Lock()
	e, ok := c.byID[requestID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("permission: unknown request %q", requestID)
	}
	if e.state != StatePending {
		c.mu.Unlock()
		return fmt.Errorf("permission: request %q is not pending (state=%s)", requestID, e.state)
	}
	e.state = StateExplaining
	e.question = question
	c.mu.Unlock()

	c.explains.Publish(pubsub.NewCreatedEvent(ExplainRequest{RequestID: requestID, Question: question}))
	return nil
}

// ProvideExplanation implements Service: answers an outstanding Explain
// and returns the request to StatePending. The original RequestApproval
// call is still blocked on e.done throughout — this never touches it.
func (c *Coordinator) ProvideExplanation(requestID, answer string) error {
	c.mu.Lock()
	e, ok := c.byID[requestID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("permission: unknown request %q", requestID)
	}
	if e.state != StateExplaining {
		c.mu.Unlock()
		return fmt.Errorf("permission: request %q is not being explained (state=%s)", requestID, e.state)
	}
	e.state = StatePending
	c.mu.Unlock()
	return nil
}

// abandon removes an entry whose RequestApproval caller gave up (context
// canceled) from whatever queue or current slot it occupies.
func (c *Coordinator) abandon(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, e.req.ID)
	if c.current[e.req.SessionID] == e {
		delete(c.current, e.req.SessionID)
		c.promoteNext(e.req.SessionID)
		return
	}
	q := c.queue[e.req.SessionID]
	for i, qe := range q {
		if qe == e {
			c.queue[e.req.SessionID] = append(q[:i], q[i+1:]...)
			break
		}
	}
}

// promoteNext must be called with c.mu held. It pops the next queued
// entry for sessionID (if any) into the current slot and publishes its
// Request.
func (c *Coordinator) promoteNext(sessionID string) {
	q := c.queue[sessionID]
	if len(q) == 0 {
		return
	}
	next := q[0]
	c.queue[sessionID] = q[1:]
	c.current[sessionID] = next
	go c.requests.Publish(pubsub.NewCreatedEvent(next.req))
}

// SetSkipRequests implements Service.
func (c *Coordinator) SetSkipRequests(sessionID string, skip bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skip[sessionID] = skip
}

// SkipRequests implements Service.
func (c *Coordinator) SkipRequests(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skip[sessionID]
}

// AutoApproveSession implements Service.
func (c *Coordinator) AutoApproveSession(sessionID string) {
	c.SetSkipRequests(sessionID, true)
}

// Subscribe implements Service.
func (c *Coordinator) Subscribe(ctx context.Context) <-chan pubsub.Event[Request] {
	return c.requests.Subscribe(ctx)
}

// SubscribeNotifications implements Service.
func (c *Coordinator) SubscribeNotifications(ctx context.Context) <-chan pubsub.Event[Notification] {
	return c.notifications.Subscribe(ctx)
}

// SubscribeExplanations implements Service.
func (c *Coordinator) SubscribeExplanations(ctx context.Context) <-chan pubsub.Event[ExplainRequest] {
	return c.explains.Subscribe(ctx)
}
