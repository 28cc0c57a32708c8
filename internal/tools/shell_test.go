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
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunShell_CapturesStdoutAndExitCode(t *testing.T) {
	d := New(Config{WorkspaceRoot: t.TempDir()})
	content, isError, err := d.runShell(context.Background(), ShellParams{Command: []string{"echo", "hello world"}})
	require.NoError(t, err)
	assert.False(t, isError)

	var out shellOutput
	require.NoError(t, json.Unmarshal([]byte(content), &out))
	assert.Contains(t, out.Output, "hello world")
	assert.Equal(t, 0, out.Metadata.ExitCode)
}

func TestRunShell_NonZeroExitIsReportedAsError(t *testing.T) {
	d := New(Config{WorkspaceRoot: t.TempDir()})
	content, isError, err := d.runShell(context.Background(), ShellParams{Command: []string{"false"}})
	require.NoError(t, err)
	assert.True(t, isError)

	var out shellOutput
	require.NoError(t, json.Unmarshal([]byte(content), &out))
	assert.NotEqual(t, 0, out.Metadata.ExitCode)
}

func TestRunShell_EmptyCommandIsRejected(t *testing.T) {
	d := New(Config{WorkspaceRoot: t.TempDir()})
	_, isError, err := d.runShell(context.Background(), ShellParams{})
	assert.True(t, isError)
	assert.Error(t, err)
}

func TestRunShell_TimeoutIsReportedInMetadata(t *testing.T) {
	d := New(Config{WorkspaceRoot: t.TempDir()})
	content, isError, err := d.runShell(context.Background(), ShellParams{
		Command: []string{"sleep", "5"},
		Timeout: 1,
	})
	require.NoError(t, err)
	assert.True(t, isError)

	var out shellOutput
	require.NoError(t, json.Unmarshal([]byte(content), &out))
	assert.Contains(t, out.Output, "timed out")
}

func TestShellQuote_EscapesEmbeddedSingleQuotes(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}
