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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StdioTransport speaks Transport over a subprocess's stdin/stdout.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	reader *bufio.Reader
	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

// StdioConfig configures the stdio transport.
type StdioConfig struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string
	Logger  *zap.Logger
}

// NewStdioTransport starts the configured command and wires its pipes.
func NewStdioTransport(config StdioConfig) (*StdioTransport, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	// #nosec G204 -- server commands come from the operator's own MCP config, not user input
	cmd := exec.Command(config.Command, config.Args...)
	if config.Dir != "" {
		cmd.Dir = config.Dir
	}

	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start command: %w", err)
	}

	t := &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		reader: bufio.NewReader(stdout),
		logger: config.Logger,
	}

	go t.monitorStderr()

	config.Logger.Info("mcp server started",
		zap.String("command", config.Command),
		zap.Strings("args", config.Args),
		zap.Int("pid", cmd.Process.Pid),
	)

	return t, nil
}

// monitorStderr drains the subprocess's stderr so it never blocks on a full pipe.
func (s *StdioTransport) monitorStderr() {
	reader := bufio.NewReader(s.stderr)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.logger.Debug("mcp server stderr", zap.ByteString("line", line))
		}
		if err != nil {
			return
		}
	}
}

// Send writes message followed by a newline to the subprocess's stdin.
func (s *StdioTransport) Send(ctx context.Context, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("transport closed")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := s.stdin.Write(message); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if _, err := s.stdin.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// Receive reads one newline-delimited message from the subprocess's stdout.
func (s *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	type readResult struct {
		data []byte
		err  error
	}
	resultChan := make(chan readResult, 1)

	go func() {
		data, err := s.reader.ReadBytes('\n')
		if err != nil {
			resultChan <- readResult{nil, err}
			return
		}
		data = data[:len(data)-1]
		if len(data) > 0 && data[len(data)-1] == '\r' {
			data = data[:len(data)-1]
		}
		resultChan <- readResult{data, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.data, result.err
	}
}

// Close signals the subprocess to shut down, waiting up to 5s before killing it.
func (s *StdioTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn("mcp server exited with error", zap.Error(err))
		}
	case <-time.After(5 * time.Second):
		s.logger.Warn("mcp server did not exit, killing", zap.Int("pid", s.cmd.Process.Pid))
		s.cmd.Process.Kill()
		<-done
	}

	s.stdout.Close()
	s.stderr.Close()
	return nil
}
