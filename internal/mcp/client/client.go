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
// Package client implements an MCP client: handshake, request/response
// correlation over a Transport, and tool discovery/invocation.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/weaveloop/weave/internal/mcp/protocol"
	"github.com/weaveloop/weave/internal/mcp/transport"
)

// Client is one connection to one MCP server.
type Client struct {
	transport transport.Transport
	logger    *zap.Logger

	initialized        bool
	initializing       bool
	protocolVersion    string
	serverInfo         protocol.Implementation
	serverCapabilities protocol.ServerCapabilities

	nextID    int64
	pending   map[string]chan *protocol.Response
	pendingMu sync.RWMutex

	tools   map[string]protocol.Tool
	toolsMu sync.RWMutex

	samplingHandler SamplingHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// Config configures a Client.
type Config struct {
	Transport      transport.Transport
	Logger         *zap.Logger
	RequestTimeout time.Duration // not applied; each request is bounded only by the caller's ctx
}

// SamplingHandler answers a server-issued sampling/createMessage request.
type SamplingHandler func(ctx context.Context, params protocol.SamplingParams) (*protocol.SamplingResult, error)

// NewClient starts a Client's receive loop against an already-connected Transport.
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	c := &Client{
		transport: config.Transport,
		logger:    config.Logger,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]chan *protocol.Response),
		tools:     make(map[string]protocol.Tool),
	}

	c.wg.Add(1)
	go c.receiveLoop()

	return c
}

// Initialize performs the MCP handshake.
func (c *Client) Initialize(ctx context.Context, clientInfo protocol.Implementation) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return fmt.Errorf("already initialized")
	}
	if c.initializing {
		c.mu.Unlock()
		return fmt.Errorf("initialization already in progress")
	}
	c.initializing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if !c.initialized {
			c.initializing = false
		}
		c.mu.Unlock()
	}()

	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    protocol.ClientCapabilities{},
		ClientInfo:      clientInfo,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      c.nextRequestID(),
		Method:  "initialize",
		Params:  paramsJSON,
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("parse initialize result: %w", err)
	}
	if result.ProtocolVersion != protocol.ProtocolVersion {
		return fmt.Errorf("protocol version mismatch: client=%s server=%s", protocol.ProtocolVersion, result.ProtocolVersion)
	}

	c.mu.Lock()
	c.initialized = true
	c.protocolVersion = result.ProtocolVersion
	c.serverInfo = result.ServerInfo
	c.serverCapabilities = result.Capabilities
	c.mu.Unlock()

	c.logger.Info("mcp client initialized",
		zap.String("server", result.ServerInfo.Name),
		zap.String("version", result.ServerInfo.Version),
		zap.Bool("tools", result.Capabilities.Tools != nil),
	)

	notification := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  "notifications/initialized",
	}
	notificationJSON, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal initialized notification: %w", err)
	}
	return c.transport.Send(ctx, notificationJSON)
}

// Ping checks connection health.
func (c *Client) Ping(ctx context.Context) error {
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      c.nextRequestID(),
		Method:  "ping",
		Params:  json.RawMessage(`{}`),
	}
	_, err := c.sendRequest(ctx, req)
	return err
}

// ServerInfo returns the connected server's implementation info.
func (c *Client) ServerInfo() protocol.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// IsInitialized reports whether the handshake has completed.
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// SetSamplingHandler registers the handler for server-issued sampling requests.
func (c *Client) SetSamplingHandler(handler SamplingHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samplingHandler = handler
}

// Close cancels the receive loop and closes the underlying Transport.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	if err := c.transport.Close(); err != nil {
		c.logger.Error("close transport", zap.Error(err))
	}
	c.wg.Wait()
	return nil
}

func (c *Client) sendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := protocol.ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.ID == nil {
		req.ID = c.nextRequestID()
	}

	respChan := make(chan *protocol.Response, 1)
	reqIDStr := req.ID.String()

	c.pendingMu.Lock()
	c.pending[reqIDStr] = respChan
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqIDStr)
		c.pendingMu.Unlock()
	}()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := c.transport.Send(ctx, reqJSON); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	}
}

func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		data, err := c.transport.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			c.logger.Error("receive message", zap.Error(err))
			continue
		}
		if len(data) == 0 {
			continue
		}

		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err == nil && resp.ID != nil {
			c.handleResponse(&resp)
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(data, &req); err == nil && req.Method != "" {
			c.handleServerRequest(&req)
			continue
		}

		c.logger.Warn("unrecognized mcp message", zap.ByteString("data", data))
	}
}

func (c *Client) handleResponse(resp *protocol.Response) {
	reqIDStr := resp.ID.String()

	c.pendingMu.RLock()
	respChan, exists := c.pending[reqIDStr]
	c.pendingMu.RUnlock()

	if !exists {
		c.logger.Warn("response for unknown request", zap.String("id", reqIDStr))
		return
	}
	select {
	case respChan <- resp:
	default:
	}
}

func (c *Client) handleServerRequest(req *protocol.Request) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Minute)
	defer cancel()

	var resp *protocol.Response
	switch req.Method {
	case "sampling/createMessage":
		resp = c.handleSamplingRequest(ctx, req)
	default:
		resp = c.errorResponse(req.ID, protocol.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	respJSON, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("marshal server-request response", zap.Error(err))
		return
	}
	if err := c.transport.Send(ctx, respJSON); err != nil {
		c.logger.Error("send server-request response", zap.Error(err))
	}
}

func (c *Client) handleSamplingRequest(ctx context.Context, req *protocol.Request) *protocol.Response {
	c.mu.RLock()
	handler := c.samplingHandler
	c.mu.RUnlock()

	if handler == nil {
		return c.errorResponse(req.ID, protocol.MethodNotFound, "sampling not supported")
	}

	var params protocol.SamplingParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.errorResponse(req.ID, protocol.InvalidParams, "invalid sampling params")
	}

	result, err := handler(ctx, params)
	if err != nil {
		return c.errorResponse(req.ID, protocol.InternalError, "sampling failed")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return c.errorResponse(req.ID, protocol.InternalError, "marshal sampling result")
	}
	return &protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: req.ID, Result: resultJSON}
}

func (c *Client) nextRequestID() *protocol.RequestID {
	id := atomic.AddInt64(&c.nextID, 1)
	return protocol.NewNumericRequestID(id)
}

func (c *Client) errorResponse(id *protocol.RequestID, code int, message string) *protocol.Response {
	return &protocol.Response{JSONRPC: protocol.JSONRPCVersion, ID: id, Error: protocol.NewError(code, message, nil)}
}
