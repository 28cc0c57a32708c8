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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `--- a/a.txt
+++ b/a.txt
@@ -1,3 +1,3 @@
 one
-two
+TWO
 three
`

func TestRunApplyPatch_ReplacesLineAndReportsCounts(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "one\ntwo\nthree\n")

	d := New(Config{WorkspaceRoot: dir})
	summary, isError, err := d.runApplyPatch(context.Background(), []string{sampleDiff})
	require.NoError(t, err)
	assert.False(t, isError)
	assert.Contains(t, summary, "a.txt: +1 -1")
	assert.Contains(t, summary, "- two")
	assert.Contains(t, summary, "+ TWO")

	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\nthree\n", string(got))
}

func TestRunApplyPatch_ContextMismatchIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "not\nwhat\nwe\nexpect\n")

	d := New(Config{WorkspaceRoot: dir})
	_, isError, err := d.runApplyPatch(context.Background(), []string{sampleDiff})
	assert.True(t, isError)
	assert.Error(t, err)
}

func TestRunApplyPatch_EmptyPatchIsRejected(t *testing.T) {
	d := New(Config{WorkspaceRoot: t.TempDir()})
	_, isError, err := d.runApplyPatch(context.Background(), []string{""})
	assert.True(t, isError)
	assert.Error(t, err)
}

func TestParseUnifiedDiff_ExtractsPathAndHunkLines(t *testing.T) {
	patches, err := parseUnifiedDiff(sampleDiff)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "a.txt", patches[0].Path)
	require.Len(t, patches[0].Hunks, 1)
	assert.Equal(t, 1, patches[0].Hunks[0].OldStart)
}

func TestAllPatchesWritable_TrueOnlyWhenEveryPathResolvesWithinRoots(t *testing.T) {
	dir := t.TempDir()
	writable := []string{dir}
	insideAbs := filepath.Join(dir, "sub", "file.txt")

	assert.True(t, allPatchesWritable([]filePatch{{Path: insideAbs}}, writable))
	assert.False(t, allPatchesWritable([]filePatch{{Path: "/etc/passwd"}}, writable))
}
