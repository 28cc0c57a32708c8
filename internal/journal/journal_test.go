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
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func TestJournal_AppendAndReplayRoundTrips(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "sess-1")
	require.NoError(t, err)

	require.NoError(t, j.RecordConnected())
	require.NoError(t, j.RecordReceived(frame{Type: "user_input", Text: "hello"}))
	require.NoError(t, j.RecordSent(frame{Type: "response_item", Text: "hi there"}))
	require.NoError(t, j.RecordEnded())
	require.NoError(t, j.Close())

	events, err := Replay(dir, "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, EventSessionConnected, events[0].EventType)
	assert.Equal(t, EventReceived, events[1].EventType)
	assert.Equal(t, DirectionIncoming, events[1].Direction)
	assert.Equal(t, EventSent, events[2].EventType)
	assert.Equal(t, DirectionOutgoing, events[2].Direction)
	assert.Equal(t, EventSessionEnded, events[3].EventType)

	var got frame
	require.NoError(t, json.Unmarshal(events[1].MessageData, &got))
	assert.Equal(t, frame{Type: "user_input", Text: "hello"}, got)
}

func TestJournal_ReopenAppendsRatherThanTruncates(t *testing.T) {
	dir := t.TempDir()
	j1, err := Open(dir, "sess-2")
	require.NoError(t, err)
	require.NoError(t, j1.RecordReceived(frame{Type: "a"}))
	require.NoError(t, j1.Close())

	j2, err := Open(dir, "sess-2")
	require.NoError(t, err)
	require.NoError(t, j2.RecordReceived(frame{Type: "b"}))
	require.NoError(t, j2.Close())

	events, err := Replay(dir, "sess-2")
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestReplay_MissingJournalReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	events, err := Replay(dir, "never-existed")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestArchive_RenamesJournalOutOfActiveSet(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "sess-3")
	require.NoError(t, err)
	require.NoError(t, j.RecordConnected())
	require.NoError(t, j.Close())

	require.NoError(t, Archive(dir, "sess-3"))

	_, err = os.Stat(filepath.Join(dir, "sess-3.jsonl"))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".jsonl" && e.Name()[0] == '.' {
			found = true
		}
	}
	assert.True(t, found, "expected an archived dot-prefixed journal file")
}

func TestArchive_MissingJournalIsNoOp(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, Archive(dir, "never-existed"))
}

func TestSweeper_RemovesArchivesOlderThanMaxAge(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "sess-4")
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, Archive(dir, "sess-4"))

	var archived string
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".jsonl" && e.Name()[0] == '.' {
			archived = filepath.Join(dir, e.Name())
		}
	}
	require.NotEmpty(t, archived, "expected an archived journal")

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(archived, old, old))

	sweeper := NewSweeper(dir, 24*time.Hour)
	sweeper.sweep()

	_, err = os.Stat(archived)
	assert.True(t, os.IsNotExist(err), "expected archive past retention to be removed")
}

func TestSweeper_KeepsArchivesWithinMaxAge(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir, "sess-5")
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, Archive(dir, "sess-5"))

	sweeper := NewSweeper(dir, 24*time.Hour)
	sweeper.sweep()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".jsonl" && e.Name()[0] == '.' {
			found = true
		}
	}
	assert.True(t, found, "expected a fresh archive to survive the sweep")
}
