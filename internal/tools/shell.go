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
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ShellParams is the shell tool's argument shape.
type ShellParams struct {
	Command []string `json:"command"`
	Workdir string   `json:"workdir,omitempty"`
	Timeout int      `json:"timeout,omitempty"`
}

// shellOutput is the shell tool's successful JSON result body.
type shellOutput struct {
	Output   string       `json:"output"`
	Metadata shellMetaout `json:"metadata"`
}

type shellMetaout struct {
	ExitCode        int     `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// runShell dispatches the shell tool: command[0] == "read_chunk",
// "list_dir" or "apply_patch" is routed to the matching special handler; anything else
// runs as a real subprocess, sandboxed to workdir and bounded by timeout.
func (d *Dispatcher) runShell(ctx context.Context, p ShellParams) (string, bool, error) {
	if len(p.Command) == 0 {
		return "", true, fmt.Errorf("'command' must be an array of strings")
	}

	switch p.Command[0] {
	case readChunkLiteral:
		return d.runReadChunk(p.Command[1:])
	case applyPatchLiteral:
		return d.runApplyPatch(ctx, p.Command[1:])
	case listDirLiteral:
		return d.runListDir(p.Command[1:])
	default:
		return d.runSubprocess(ctx, p)
	}
}

func (d *Dispatcher) runSubprocess(ctx context.Context, p ShellParams) (string, bool, error) {
	timeoutSeconds := p.Timeout
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultShellTimeoutSeconds
	}

	workdir := p.Workdir
	if workdir == "" {
		workdir = d.workspaceRoot
	}
	resolvedDir, err := (Resolver{Root: d.workspaceRoot}).Resolve(workdir)
	if err != nil {
		return "", true, fmt.Errorf("invalid workdir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	binary, shellArgs := shellInvocation(p.Command)
	cmd := exec.CommandContext(runCtx, binary, shellArgs...)
	cmd.Dir = resolvedDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start).Seconds()

	exitCode := 0
	isError := false
	if runCtx.Err() == context.DeadlineExceeded {
		exitCode = -1
		isError = true
		stderr.WriteString(fmt.Sprintf("\ncommand timed out after %ds", timeoutSeconds))
	} else if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		isError = exitCode != 0
	}

	combined := stdout.String()
	if stderr.Len() > 0 {
		combined += stderr.String()
	}

	body, err := json.Marshal(shellOutput{
		Output: combined,
		Metadata: shellMetaout{
			ExitCode:        exitCode,
			DurationSeconds: duration,
		},
	})
	if err != nil {
		return "", true, fmt.Errorf("encode shell result: %w", err)
	}
	return string(body), isError, nil
}

// shellInvocation picks the platform shell the way the teacher's shell
// tool does: bash/sh on Unix, PowerShell/cmd on Windows, joining the
// command array into one string passed to -c/-Command.
func shellInvocation(command []string) (binary string, args []string) {
	joined := joinCommand(command)
	if runtime.GOOS == "windows" {
		if p, err := exec.LookPath("powershell.exe"); err == nil {
			return p, []string{"-NoProfile", "-NonInteractive", "-Command", joined}
		}
		return "cmd.exe", []string{"/C", joined}
	}
	if p, err := exec.LookPath("bash"); err == nil {
		return p, []string{"-c", joined}
	}
	return "/bin/sh", []string{"-c", joined}
}

func joinCommand(command []string) string {
	quoted := make([]string, len(command))
	for i, c := range command {
		quoted[i] = shellQuote(c)
	}
	return strings.Join(quoted, " ")
}

// shellQuote wraps an argument in single quotes so spaces and shell
// metacharacters in a tool-supplied argument cannot be reinterpreted.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
