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
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
)

// HTTPTransport speaks Transport over HTTP POST (send) and SSE (receive).
type HTTPTransport struct {
	endpoint   string
	sseClient  *sse.Client
	httpClient *http.Client

	events chan []byte
	errors chan error

	mu     sync.Mutex
	closed bool

	logger *zap.Logger
}

// HTTPConfig configures the HTTP/SSE transport.
type HTTPConfig struct {
	Endpoint string
	Headers  map[string]string
	SSEPath  string // default "/sse"
	Logger   *zap.Logger
}

// NewHTTPTransport connects to an MCP server exposed over HTTP/SSE.
func NewHTTPTransport(config HTTPConfig) (*HTTPTransport, error) {
	if config.SSEPath == "" {
		config.SSEPath = "/sse"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sseClient := sse.NewClient(config.Endpoint + config.SSEPath)
	for k, v := range config.Headers {
		sseClient.Headers[k] = v
	}

	t := &HTTPTransport{
		endpoint:   config.Endpoint,
		sseClient:  sseClient,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		events:     make(chan []byte, 100),
		errors:     make(chan error, 1),
		logger:     logger,
	}

	sseClient.OnDisconnect(func(c *sse.Client) {
		t.logger.Warn("mcp SSE disconnected", zap.String("endpoint", config.Endpoint))
		select {
		case t.errors <- fmt.Errorf("SSE disconnected"):
		default:
		}
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := sseClient.SubscribeWithContext(ctx, "message", func(msg *sse.Event) {
			select {
			case t.events <- msg.Data:
			case <-ctx.Done():
			}
		})
		if err != nil {
			logger.Warn("mcp SSE subscribe failed",
				zap.String("endpoint", config.Endpoint), zap.Error(err))
		}
	}()

	return t, nil
}

// Send POSTs message to the server's /messages endpoint.
func (h *HTTPTransport) Send(ctx context.Context, message []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("transport closed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/messages", bytes.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Receive blocks for the next SSE event or connection error.
func (h *HTTPTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err, ok := <-h.errors:
		if !ok {
			return nil, io.EOF
		}
		return nil, err
	case data, ok := <-h.events:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

// Close releases the SSE subscription's channels.
func (h *HTTPTransport) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	close(h.events)
	close(h.errors)
	return nil
}
